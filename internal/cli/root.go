// SPDX-License-Identifier: Apache-2.0

// Package cli implements the askpass-bridge command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/akihiro/git-askpass-bridge/internal/config"
	"github.com/akihiro/git-askpass-bridge/internal/logging"
)

var (
	configPath    string
	flagBackend   string
	flagRuntime   string
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Config
	logger *slog.Logger
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to config YAML (default: $XDG_CONFIG_HOME/askpass-bridge/config.yaml)")
	pf.StringVar(&flagBackend, "backend", "", "Token vault: auto, secretservice, wincred, wincred-helper, keyring, memory")
	pf.StringVar(&flagRuntime, "runtime-dir", "", "Directory for the bridge socket (default: $XDG_RUNTIME_DIR or the temp dir)")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: text or json")
}

var rootCmd = &cobra.Command{
	Use:   "askpass-bridge",
	Short: "Answer git credential prompts from the host process",
	Long: "Runs a local credential bridge that git reaches through GIT_ASKPASS.\n" +
		"Prompts are shown on this terminal; remembered tokens are served from the OS vault.",
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// loadSettings resolves config file, environment and flags, in that order.
func loadSettings(cmd *cobra.Command, _ []string) error {
	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("backend") {
		loaded.Backend = flagBackend
	}
	if flags.Changed("runtime-dir") {
		loaded.RuntimeDir = flagRuntime
	}
	if flags.Changed("log-level") {
		loaded.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		loaded.LogFormat = flagLogFormat
	}

	l, err := logging.New(os.Stderr, loaded.LogLevel, loaded.LogFormat)
	if err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	cfg = loaded
	logger = l
	slog.SetDefault(l)
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
