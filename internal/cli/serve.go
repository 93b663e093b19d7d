package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/go-coders/modelbench/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a finished results directory over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(server.Config{
			Port:       cfg.Server.Port,
			Debug:      cfg.Debug,
			ResultsDir: cfg.Run.OutputDir,
		}, nil)
		printer.Printf("serving %s on :%d\n", cfg.Run.OutputDir, cfg.Server.Port)
		return srv.Start(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
