// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/akihiro/git-askpass-bridge/internal/askpass"
)

func init() {
	rootCmd.AddCommand(execCmd)
}

var execCmd = &cobra.Command{
	Use:   "exec [flags] -- <command> [args...]",
	Short: "Run a command with git prompts answered by the bridge",
	Long: "Starts the bridge, runs the command with GIT_ASKPASS pointing at it and\n" +
		"disposes the bridge when the command exits. The exit code is the command's.",
	Args: cobra.MinimumNArgs(1),
	RunE: runExec,
}

func runExec(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := startBridge()
	env, err := b.server.Env(ctx)
	if err != nil {
		b.Close()
		return fmt.Errorf("prepare git environment: %w", err)
	}

	child := exec.CommandContext(ctx, args[0], args[1:]...)
	child.Env = append(os.Environ(), env.Environ()...)
	if sub := gitSubcommand(args); sub != "" {
		child.Env = append(child.Env, askpass.EnvCommand+"="+sub)
	}
	child.Stdin = os.Stdin
	child.Stdout = cmd.OutOrStdout()
	child.Stderr = cmd.ErrOrStderr()

	err = child.Run()
	b.Close()

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		stop()
		os.Exit(exitCode(exitErr))
	}
	if err != nil {
		return fmt.Errorf("run %s: %w", args[0], err)
	}
	return nil
}

// exitCode maps a child's exit to ours, following the shell convention of
// 128+signal for a child killed by a signal.
func exitCode(err *exec.ExitError) int {
	if code := err.ExitCode(); code >= 0 {
		return code
	}
	if ws, ok := err.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return 128 + int(ws.Signal())
	}
	return 1
}

// gitGlobalsWithValue are git options that consume the following argument.
var gitGlobalsWithValue = map[string]bool{
	"-C": true, "-c": true,
	"--git-dir": true, "--work-tree": true, "--namespace": true,
	"--config-env": true,
}

// gitSubcommand returns the subcommand of a git invocation, e.g. "fetch"
// for `git -C repo fetch origin`, or "" if argv is not git.
func gitSubcommand(argv []string) string {
	if len(argv) == 0 {
		return ""
	}
	name := strings.TrimSuffix(filepath.Base(argv[0]), ".exe")
	if name != "git" {
		return ""
	}
	rest := argv[1:]
	for i := 0; i < len(rest); i++ {
		arg := rest[i]
		if !strings.HasPrefix(arg, "-") {
			return arg
		}
		if arg == "--" {
			return ""
		}
		if gitGlobalsWithValue[arg] {
			i++
		}
	}
	return ""
}
