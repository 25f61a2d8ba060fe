package askpass

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/akihiro/git-askpass-bridge/internal/logging"
	"github.com/akihiro/git-askpass-bridge/internal/prompt"
)

// shortTempDir returns a temp dir whose path leaves room for a socket name
// under the 104/108 byte sun_path limit, which t.TempDir can exceed.
func shortTempDir(t *testing.T) string {
	t.Helper()
	root := ""
	if runtime.GOOS != "windows" {
		if _, err := os.Stat("/tmp"); err == nil {
			root = "/tmp"
		}
	}
	dir, err := os.MkdirTemp(root, "apb")
	if err != nil {
		t.Fatalf("MkdirTemp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })
	return dir
}

// newTestServer starts a Server answering through p and disposes it at cleanup.
func newTestServer(t *testing.T, p prompt.Prompter) *Server {
	t.Helper()
	dir := shortTempDir(t)
	s := New(Config{
		RuntimeDir: dir,
		ScriptDir:  filepath.Join(dir, "scripts"),
		ClientPath: "/usr/local/bin/askpass-client",
		Prompter:   p,
		Logger:     logging.Discard(),
	})
	s.Setup()
	t.Cleanup(func() { s.Dispose() })
	return s
}

// answer returns a prompter that always succeeds with text.
func answer(text string) prompt.Prompter {
	return prompt.PrompterFunc(func(context.Context, prompt.Question) prompt.Outcome {
		return prompt.Success{Text: text}
	})
}

// envMap is a Getenv over a fixed map that records every lookup.
type envMap struct {
	vars    map[string]string
	lookups []string
}

func (e *envMap) Getenv(key string) string {
	e.lookups = append(e.lookups, key)
	return e.vars[key]
}
