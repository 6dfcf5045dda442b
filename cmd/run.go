package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/ai"
	"github.com/spigell/hh-outreach/internal/ai/gemini"
	"github.com/spigell/hh-outreach/internal/filtering"
	"github.com/spigell/hh-outreach/internal/gmail"
	"github.com/spigell/hh-outreach/internal/headhunter"
	"github.com/spigell/hh-outreach/internal/logger"
	"github.com/spigell/hh-outreach/internal/outreach"
	"github.com/spigell/hh-outreach/internal/profile"
	"github.com/spigell/hh-outreach/internal/secrets"
	"github.com/spigell/hh-outreach/internal/smtp"
	"github.com/spigell/hh-outreach/internal/store"
)

// deps is everything a command needs. Parts are built lazily so that
// commands touching only contacts do not require mail credentials.
type deps struct {
	ctx    context.Context
	config *Config
	logger *zap.Logger
	store  *store.Store
}

// setup builds the logger, reads the config and opens the store. Errors are
// fatal, like everywhere in the cli.
func setup(ctx context.Context) *deps {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"), app, version)
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(redacted(config), "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	st, err := store.Open(*config.Store, logger)
	if err != nil {
		logger.Fatal("opening the store", zap.Error(err))
	}

	return &deps{ctx: ctx, config: config, logger: logger, store: st}
}

func (r *deps) close() {
	if err := r.store.Close(); err != nil {
		r.logger.Warn("closing the store", zap.Error(err))
	}
	_ = r.logger.Sync()
}

func (r *deps) filters() *filtering.Config {
	return &filtering.Config{
		ExcludeCompanies: r.config.Outreach.ExcludeCompanies,
		ExcludeFile:      r.config.Outreach.ExcludeFile,
	}
}

// orchestrator wires the transport, composer and profile source.
func (r *deps) orchestrator() *outreach.Orchestrator {
	if strings.TrimSpace(r.config.Account.Address) == "" {
		r.logger.Fatal("account address is required", zap.String("hint", "set account.address in the configuration file"))
	}

	transport, err := newTransport(r.config.Transport, r.logger)
	if err != nil {
		r.logger.Fatal("creating a mail transport", zap.Error(err))
	}

	var composer ai.Composer
	if r.config.AI.Enabled {
		composer, err = newComposer(r.ctx, r.config.AI, r.logger)
		if err != nil {
			r.logger.Warn("ai assistance is disabled", zap.Error(err))
		}
	}

	profiles, err := r.profileSource()
	if err != nil {
		r.logger.Fatal("creating a profile source", zap.Error(err))
	}

	return outreach.New(outreach.Config{
		Account:           r.config.Account.Address,
		AccountName:       r.config.Account.Name,
		MinimumCompletion: r.config.Profile.MinimumCompletion,
		GenerationTimeout: r.config.AI.Timeout,
	}, r.store, transport, composer, profiles, r.logger)
}

func (r *deps) profileSource() (profile.Source, error) {
	cfg := r.config.Profile
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", "local":
		return r.store, nil
	case "headhunter":
		return newHeadhunterSource(cfg, r.logger)
	default:
		return nil, fmt.Errorf("unsupported profile source: %s", cfg.Source)
	}
}

func newHeadhunterSource(cfg *ProfileConfig, logger *zap.Logger) (*headhunter.ProfileSource, error) {
	token, err := secrets.Load(secrets.Source{
		Name: "headhunter token",
		File: strings.TrimSpace(cfg.TokenFile),
		Env:  "HH_TOKEN",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set profile.token-file, HH_TOKEN_FILE or HH_TOKEN)", err)
	}

	hh := headhunter.New(logger, token)
	if cfg.UserAgent != "" {
		hh.UserAgent = cfg.UserAgent
	}

	return headhunter.NewProfileSource(hh, cfg.Resume), nil
}

func newTransport(cfg *TransportConfig, logger *zap.Logger) (outreach.Transport, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	switch provider {
	case "", "gmail":
		if cfg.Gmail == nil {
			return nil, fmt.Errorf("transport.gmail section is required for the gmail provider")
		}
		secret, err := secrets.Load(secrets.Source{
			Name:  "gmail client secret",
			Value: cfg.Gmail.ClientSecret,
			File:  cfg.Gmail.ClientSecretFile,
			Env:   "GOOGLE_CLIENT_SECRET",
		})
		if err != nil {
			return nil, err
		}
		return gmail.New(gmail.Options{
			ClientID:     cfg.Gmail.ClientID,
			ClientSecret: secret,
			TokenFile:    cfg.Gmail.TokenFile,
		}, logger.With(zap.String("transport", "gmail"))), nil
	case "smtp":
		if cfg.SMTP == nil {
			return nil, fmt.Errorf("transport.smtp section is required for the smtp provider")
		}
		// relays without auth need no password
		password, err := secrets.Load(secrets.Source{
			Name:     "smtp password",
			Value:    cfg.SMTP.Password,
			File:     cfg.SMTP.PasswordFile,
			Env:      "SMTP_PASSWORD",
			Optional: cfg.SMTP.Username == "",
		})
		if err != nil {
			return nil, err
		}
		t, err := smtp.New(smtp.Options{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: password,
			Implicit: cfg.SMTP.ImplicitTLS,
		}, logger.With(zap.String("transport", "smtp")))
		if err != nil {
			return nil, err
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport provider: %s", cfg.Provider)
	}
}

func newComposer(ctx context.Context, cfg *AIConfig, logger *zap.Logger) (ai.Composer, error) {
	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		return nil, fmt.Errorf("ai.gemini section is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name:  "gemini api key",
		Value: cfg.Gemini.APIKey,
		File:  cfg.Gemini.APIKeyFile,
		Env:   "GEMINI_API_KEY",
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file, GEMINI_API_KEY_FILE or GEMINI_API_KEY)", err)
	}

	genLogger := logger.With(
		zap.String("provider", "gemini"),
		zap.String("model", cfg.Gemini.Model),
		zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
	)

	generator, err := gemini.NewGenerator(ctx, apiKey, cfg.Gemini.Model, cfg.Gemini.MaxRetries, genLogger)
	if err != nil {
		return nil, err
	}

	return gemini.NewComposer(generator, generator.Model(), cfg.Gemini.MaxLogLength, logger), nil
}

// redacted copies the config without inline secrets for debug output.
func redacted(c *Config) Config {
	out := *c
	if c.Transport != nil {
		t := *c.Transport
		if t.Gmail != nil {
			g := *t.Gmail
			g.ClientSecret = mask(g.ClientSecret)
			t.Gmail = &g
		}
		if t.SMTP != nil {
			s := *t.SMTP
			s.Password = mask(s.Password)
			t.SMTP = &s
		}
		out.Transport = &t
	}
	if c.AI != nil && c.AI.Gemini != nil {
		a := *c.AI
		g := *c.AI.Gemini
		g.APIKey = mask(g.APIKey)
		a.Gemini = &g
		out.AI = &a
	}
	return out
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "***"
}
