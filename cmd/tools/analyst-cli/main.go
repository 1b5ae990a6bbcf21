// cmd/tools/analyst-cli/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"marketing-analyst/internal/common/config"
	"marketing-analyst/internal/common/logger"
)

const (
	exitCodeSuccess = 0
	exitCodeError   = 1
)

type globalFlags struct {
	configPath string
	verbose    bool
}

func main() {
	os.Exit(run())
}

func run() int {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:           "analyst-cli",
		Short:         "Operator CLI for the marketing analyst: templates, queries, schema and tool catalog.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to a config file (default: configs/config.yaml lookup)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Set debug logging level")

	rootCmd.AddCommand(
		newTemplatesCmd(),
		newQueryCmd(flags),
		newSchemaCmd(flags),
		newToolsCmd(),
		newAskCmd(flags),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

func (f *globalFlags) load() (*config.Config, logger.Logger, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFromFile(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, nil, err
	}

	level := "warn"
	if f.verbose {
		level = "debug"
	}
	return cfg, logger.NewStructured(level, "console"), nil
}
