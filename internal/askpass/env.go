// SPDX-License-Identifier: Apache-2.0

package askpass

import (
	"context"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// Environment variables shared between the bridge, the askpass scripts and
// the client. The names are a contract with whatever spawns git.
const (
	EnvAskpass        = "GIT_ASKPASS"
	EnvTerminalPrompt = "GIT_TERMINAL_PROMPT"
	EnvClient         = "GIT_ASKPASS_BRIDGE_CLIENT"
	EnvHandle         = "GIT_ASKPASS_BRIDGE_HANDLE"
	EnvPipe           = "GIT_ASKPASS_BRIDGE_PIPE"
	EnvCommand        = "GIT_ASKPASS_BRIDGE_COMMAND"
)

// Script file names installed into the script directory.
const (
	ScriptAskpass = "askpass.sh"
	ScriptEmpty   = "askpass-empty.sh"
)

//go:embed scripts/*.sh
var scripts embed.FS

// Env is the environment handed to git. When the bridge is disabled only
// Askpass is set, and it points at a script that answers with nothing.
type Env struct {
	Askpass        string
	Client         string
	Handle         string
	TerminalPrompt string
}

// Environ returns the non-empty variables as KEY=value pairs.
func (e Env) Environ() []string {
	var out []string
	for _, kv := range [][2]string{
		{EnvAskpass, e.Askpass},
		{EnvClient, e.Client},
		{EnvHandle, e.Handle},
		{EnvTerminalPrompt, e.TerminalPrompt},
	} {
		if kv[1] != "" {
			out = append(out, kv[0]+"="+kv[1])
		}
	}
	return out
}

// Env waits for setup and returns the environment for git. Scripts are
// (re)installed into the configured script directory on first use.
func (s *Server) Env(ctx context.Context) (Env, error) {
	addr, err := s.Address(ctx)
	if err != nil {
		return Env{}, err
	}

	s.scriptsOnce.Do(func() {
		s.scriptsErr = installScripts(s.cfg.ScriptDir)
	})
	if s.scriptsErr != nil {
		return Env{}, s.scriptsErr
	}

	if !s.Enabled() {
		return Env{Askpass: filepath.Join(s.cfg.ScriptDir, ScriptEmpty)}, nil
	}
	return Env{
		Askpass:        filepath.Join(s.cfg.ScriptDir, ScriptAskpass),
		Client:         s.clientPath(),
		Handle:         addr,
		TerminalPrompt: "0",
	}, nil
}

func (s *Server) clientPath() string {
	if s.cfg.ClientPath != "" {
		return s.cfg.ClientPath
	}
	name := "askpass-client"
	if runtime.GOOS == "windows" {
		name += ".exe"
	}
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}

// installScripts writes the embedded scripts into dir atomically via a
// temp file + rename, so a git process never runs a half-written script.
func installScripts(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create script dir: %w", err)
	}
	for _, name := range []string{ScriptAskpass, ScriptEmpty} {
		data, err := scripts.ReadFile("scripts/" + name)
		if err != nil {
			return fmt.Errorf("read embedded %s: %w", name, err)
		}
		tmp, err := os.CreateTemp(dir, name+".*.tmp")
		if err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
		_, werr := tmp.Write(data)
		cerr := tmp.Close()
		if werr == nil {
			werr = cerr
		}
		if werr == nil {
			werr = os.Chmod(tmp.Name(), 0o700)
		}
		if werr == nil {
			werr = os.Rename(tmp.Name(), filepath.Join(dir, name))
		}
		if werr != nil {
			os.Remove(tmp.Name())
			return fmt.Errorf("install %s: %w", name, werr)
		}
	}
	return nil
}
