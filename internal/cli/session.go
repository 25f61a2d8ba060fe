// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akihiro/git-askpass-bridge/internal/askpass"
	"github.com/akihiro/git-askpass-bridge/internal/channel"
)

const sessionFileName = "session.env"

// probeTimeout bounds the liveness check of a recorded session.
const probeTimeout = 2 * time.Second

// sessionPath is where a running serve records its environment.
func sessionPath(scriptDir string) string {
	return filepath.Join(scriptDir, sessionFileName)
}

// shellQuote wraps s in single quotes for POSIX shells.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// writeExports prints env as export lines suitable for eval.
func writeExports(w io.Writer, env []string) error {
	for _, kv := range env {
		name, value, _ := strings.Cut(kv, "=")
		if _, err := fmt.Fprintf(w, "export %s=%s\n", name, shellQuote(value)); err != nil {
			return err
		}
	}
	return nil
}

// saveSession records env for later env invocations.
func saveSession(path string, env []string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := writeExports(f, env); err != nil {
		f.Close()
		return fmt.Errorf("write session: %w", err)
	}
	return f.Close()
}

// sessionHandle extracts the recorded channel address from a session file.
func sessionHandle(data []byte) string {
	prefix := "export " + askpass.EnvHandle + "="
	sc := bufio.NewScanner(strings.NewReader(string(data)))
	for sc.Scan() {
		line := sc.Text()
		if v, ok := strings.CutPrefix(line, prefix); ok {
			return strings.ReplaceAll(strings.Trim(v, "'"), `'\''`, "'")
		}
	}
	return ""
}

// loadSession returns the recorded exports if the bridge behind them still
// accepts connections.
func loadSession(ctx context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	handle := sessionHandle(data)
	if handle == "" {
		return nil, errors.New("session has no bridge handle")
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	conn, err := channel.Dial(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("bridge not reachable: %w", err)
	}
	conn.Close()
	return data, nil
}
