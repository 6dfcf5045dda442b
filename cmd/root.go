package cmd

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/hh-outreach/internal/store"
)

const (
	app = "hh-outreach"
)

type Config struct {
	Account   *AccountConfig   `mapstructure:"account"`
	Store     *store.Config    `mapstructure:"store"`
	Transport *TransportConfig `mapstructure:"transport"`
	AI        *AIConfig        `mapstructure:"ai"`
	Profile   *ProfileConfig   `mapstructure:"profile"`
	Outreach  *OutreachConfig  `mapstructure:"outreach"`
	Server    *ServerConfig    `mapstructure:"server"`
}

type AccountConfig struct {
	Address string `mapstructure:"address"`
	Name    string `mapstructure:"name"`
}

type TransportConfig struct {
	Provider string       `mapstructure:"provider"`
	Gmail    *GmailConfig `mapstructure:"gmail"`
	SMTP     *SMTPConfig  `mapstructure:"smtp"`
}

type GmailConfig struct {
	ClientID         string `mapstructure:"client-id"`
	ClientSecret     string `mapstructure:"client-secret"`
	ClientSecretFile string `mapstructure:"client-secret-file"`
	TokenFile        string `mapstructure:"token-file"`
}

type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
	ImplicitTLS  bool   `mapstructure:"implicit-tls"`
}

type AIConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Provider string        `mapstructure:"provider"`
	Timeout  time.Duration `mapstructure:"timeout"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	MaxRetries   int    `mapstructure:"max-retries"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type ProfileConfig struct {
	// Source is local (the store) or headhunter (an hh.ru resume).
	Source            string  `mapstructure:"source"`
	TokenFile         string  `mapstructure:"token-file"`
	Resume            string  `mapstructure:"resume"`
	UserAgent         string  `mapstructure:"user-agent"`
	MinimumCompletion float64 `mapstructure:"minimum-completion"`
}

type OutreachConfig struct {
	ExcludeFile      string   `mapstructure:"exclude-file"`
	ExcludeCompanies []string `mapstructure:"exclude-companies"`
}

type ServerConfig struct {
	Listen string `mapstructure:"listen"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "hh-outreach sends job-search emails to recruiters and keeps track of the conversations",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("profile.token-file", "HH_TOKEN_FILE"); err != nil {
		log.Fatalf("binding HH_TOKEN_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("ai.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	viper.SetEnvPrefix("HH_OUTREACH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("store.driver", store.DriverSQLite)
	viper.SetDefault("transport.provider", "gmail")
	viper.SetDefault("ai.provider", "gemini")
	viper.SetDefault("ai.timeout", "60s")
	viper.SetDefault("profile.source", "local")
	viper.SetDefault("server.listen", ":8080")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is hh-outreach.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Version needs no config.
	if versionCmd.CalledAs() != "" {
		return
	}

	// .env is optional
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	// We can't proceed if the config file parsed with error.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Account == nil {
		config.Account = &AccountConfig{}
	}
	if config.Store == nil {
		config.Store = &store.Config{}
	}
	if config.Transport == nil {
		config.Transport = &TransportConfig{}
	}
	if config.AI == nil {
		config.AI = &AIConfig{}
	}
	if config.Profile == nil {
		config.Profile = &ProfileConfig{}
	}
	if config.Outreach == nil {
		config.Outreach = &OutreachConfig{}
	}
	if config.Server == nil {
		config.Server = &ServerConfig{}
	}

	return config, nil
}
