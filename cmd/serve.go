package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/hh-outreach/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the outreach API",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		d := setup(ctx)
		defer d.close()

		addr := d.config.Server.Listen
		if listen := flagString(cmd, "listen"); listen != "" {
			addr = listen
		}

		srv := server.New(d.orchestrator(), d.store, d.filters(), d.logger)

		d.logger.Info("starting the hh-outreach api", zap.String("version", version))
		if err := srv.Run(ctx, addr); err != nil {
			d.logger.Fatal("serving the api", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("listen", "l", "", "address to listen on (default from server.listen)")
}
