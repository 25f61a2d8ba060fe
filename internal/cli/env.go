// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/akihiro/git-askpass-bridge/internal/askpass"
)

func init() {
	rootCmd.AddCommand(envCmd)
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Print the git environment of the running bridge",
	Long: "Prints export lines pointing git at the bridge started by 'askpass-bridge serve'.\n" +
		"Without a reachable bridge, GIT_ASKPASS is set to a script that answers nothing,\n" +
		"so git fails fast instead of hanging on a prompt.",
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func runEnv(cmd *cobra.Command, _ []string) error {
	data, err := loadSession(cmd.Context(), sessionPath(cfg.ScriptDir))
	if err == nil {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	logger.Debug("no live bridge session", "error", err)

	empty := filepath.Join(cfg.ScriptDir, askpass.ScriptEmpty)
	if _, err := os.Stat(empty); err != nil {
		return fmt.Errorf("no bridge running and %s is not installed; start 'askpass-bridge serve' first", empty)
	}
	return writeExports(cmd.OutOrStdout(), askpass.Env{Askpass: empty}.Environ())
}
