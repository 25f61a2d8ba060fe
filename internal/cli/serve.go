// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the credential bridge until interrupted",
	Long: "Starts the bridge, prints the environment for git as export lines and\n" +
		"answers prompts on this terminal until SIGINT or SIGTERM.\n" +
		"Other shells can pick the environment up with: eval \"$(askpass-bridge env)\"",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := startBridge()
	defer b.Close()

	env, err := b.server.Env(ctx)
	if err != nil {
		return fmt.Errorf("prepare git environment: %w", err)
	}
	if !b.server.Enabled() {
		logger.Warn("bridge disabled, git will receive empty answers")
	}

	session := sessionPath(cfg.ScriptDir)
	if err := saveSession(session, env.Environ()); err != nil {
		logger.Warn("cannot record session", "error", err)
	} else {
		defer os.Remove(session)
	}
	if err := writeExports(cmd.OutOrStdout(), env.Environ()); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Info("shutting down askpass bridge")
	return nil
}
