package cli

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akihiro/git-askpass-bridge/internal/askpass"
	"github.com/akihiro/git-askpass-bridge/internal/logging"
	"github.com/akihiro/git-askpass-bridge/internal/prompt"
)

// runCLI executes the root command with an isolated config directory.
func runCLI(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags undoes flag values left behind by a previous Execute.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func TestGitSubcommand(t *testing.T) {
	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"git", "fetch", "origin"}, "fetch"},
		{[]string{"/usr/bin/git", "push"}, "push"},
		{[]string{`C:\Git\cmd\git.exe`, "pull"}, "pull"},
		{[]string{"git", "-C", "repo", "fetch"}, "fetch"},
		{[]string{"git", "-c", "http.proxy=x", "--no-pager", "clone", "url"}, "clone"},
		{[]string{"git", "--git-dir", "x/.git", "fetch"}, "fetch"},
		{[]string{"git"}, ""},
		{[]string{"git", "--version"}, ""},
		{[]string{"make", "fetch"}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gitSubcommand(tt.argv), "argv %q", tt.argv)
	}
}

func TestExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("needs a POSIX shell")
	}
	for script, want := range map[string]int{
		"exit 3":        3,
		"kill -TERM $$": 128 + int(syscall.SIGTERM),
		"kill -KILL $$": 128 + int(syscall.SIGKILL),
	} {
		err := exec.Command("sh", "-c", script).Run()
		var exitErr *exec.ExitError
		require.ErrorAs(t, err, &exitErr, "script %q", script)
		assert.Equal(t, want, exitCode(exitErr), "script %q", script)
	}
}

func TestWriteExports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeExports(&buf, []string{"A=plain", "B=it's quoted", "C=x=y"}))
	assert.Equal(t, "export A='plain'\nexport B='it'\\''s quoted'\nexport C='x=y'\n", buf.String())
}

func TestSessionHandle(t *testing.T) {
	var buf bytes.Buffer
	handle := "/run/user/1000/askpass-bridge-ab'cd-sock"
	require.NoError(t, writeExports(&buf, askpass.Env{Askpass: "/s/askpass.sh", Handle: handle}.Environ()))
	assert.Equal(t, handle, sessionHandle(buf.Bytes()))
	assert.Empty(t, sessionHandle([]byte("export GIT_ASKPASS='/x'\n")))
}

func TestReadSecret_Stdin(t *testing.T) {
	for in, want := range map[string]string{
		"tok\n":   "tok",
		"tok\r\n": "tok",
		"tok":     "tok",
		"a b\n\n": "a b\n",
	} {
		got, err := readSecret(strings.NewReader(in), &bytes.Buffer{})
		require.NoError(t, err)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestLoadSession(t *testing.T) {
	logger = logging.Discard()
	dir, err := os.MkdirTemp("/tmp", "apb")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	s := askpass.New(askpass.Config{
		RuntimeDir: dir,
		ScriptDir:  dir,
		ClientPath: "/bin/true",
		Prompter:   prompt.Unavailable{},
		Logger:     logger,
	})
	env, err := s.Env(context.Background())
	require.NoError(t, err)

	path := sessionPath(dir)
	require.NoError(t, saveSession(path, env.Environ()))

	data, err := loadSession(context.Background(), path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "export "+askpass.EnvHandle+"=")

	require.NoError(t, s.Dispose())
	_, err = loadSession(context.Background(), path)
	assert.Error(t, err, "a disposed bridge is not live")

	_, err = loadSession(context.Background(), filepath.Join(dir, "missing.env"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEnvCommand_NoBridge(t *testing.T) {
	scripts := t.TempDir()
	t.Setenv("ASKPASS_BRIDGE_SCRIPT_DIR", scripts)

	_, err := runCLI(t, "", "env")
	assert.Error(t, err, "no scripts installed yet")

	empty := filepath.Join(scripts, askpass.ScriptEmpty)
	require.NoError(t, os.WriteFile(empty, []byte("#!/bin/sh\necho ''\n"), 0o700))
	out, err := runCLI(t, "", "env")
	require.NoError(t, err)
	assert.Equal(t, "export GIT_ASKPASS='"+empty+"'\n", out)
}

func TestTokenCommands_Memory(t *testing.T) {
	out, err := runCLI(t, "s3cret\n", "--backend", "memory", "token", "set", "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, "Stored token for https://example.com\n", out)
	assert.NotContains(t, out, "s3cret")

	// Each invocation opens a fresh in-memory vault.
	_, err = runCLI(t, "", "--backend", "memory", "token", "get", "https://example.com")
	assert.ErrorContains(t, err, "no token stored")

	_, err = runCLI(t, "", "--backend", "memory", "token", "delete", "https://example.com")
	assert.ErrorContains(t, err, "no token stored")

	_, err = runCLI(t, "\n", "--backend", "memory", "token", "set", "h")
	assert.ErrorContains(t, err, "empty token")
}

func TestTokenCommands_NormalizeHost(t *testing.T) {
	out, err := runCLI(t, "tok\n", "--backend", "memory", "token", "set", "https://example.com':")
	require.NoError(t, err)
	assert.Equal(t, "Stored token for https://example.com\n", out)
}

func TestVersionCommand(t *testing.T) {
	out, err := runCLI(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "askpass-bridge"`)
	assert.Contains(t, out, version)
}

func TestBadLogLevel(t *testing.T) {
	_, err := runCLI(t, "", "--log-level", "loud", "version")
	assert.ErrorContains(t, err, "configure logging")
}
