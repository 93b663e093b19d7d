// Package cli wires the commands of the modelbench binary.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/go-coders/modelbench/internal/config"
	"github.com/go-coders/modelbench/pkg/logger"
	"github.com/go-coders/modelbench/pkg/util"
)

var (
	cfgFile   string
	debugFlag bool

	printer = util.NewPrinter(nil)

	rootCmd = &cobra.Command{
		Use:   "modelbench",
		Short: "Batch capability benchmark for chat-completion models",
		Long: "modelbench runs suites of code, writing and image-generation cases\n" +
			"against a chat-completion API, extracts the produced artifacts and\n" +
			"aggregates per-category statistics.",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "modelbench.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")
}

// loadConfig reads the config file, applies the debug flag and prints any
// validation warnings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if debugFlag {
		cfg.Debug = true
	}
	logger.Init(cfg.Debug)
	for _, w := range cfg.Validate() {
		printer.PrintWarning(w)
	}
	return cfg, nil
}
