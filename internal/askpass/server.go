// SPDX-License-Identifier: Apache-2.0

// Package askpass implements both ends of the git credential bridge. Server
// runs in the long-lived host process, owns the local channel and answers
// credential requests through a prompt.Prompter. Client is the short-lived
// process git runs via GIT_ASKPASS; it forwards one request and writes the
// answer where the askpass script can read it.
//
// The wire protocol is one HTTP/1.1 POST per connection. The request body is
// the JSON object {"request": ..., "host": ...}. A 200 response carries the
// answer as a JSON string, "" meaning the user cancelled. Any other status
// is a failure and has an empty body.
package askpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akihiro/git-askpass-bridge/internal/channel"
	"github.com/akihiro/git-askpass-bridge/internal/ipc"
	"github.com/akihiro/git-askpass-bridge/internal/prompt"
	"github.com/google/uuid"
)

// maxRequestSize bounds a request body. Git prompts are a line of text.
const maxRequestSize = 1 << 20

// readHeaderTimeout bounds how long a connected client may take to send its
// request headers. The body follows immediately; only the prompt is slow.
const readHeaderTimeout = 10 * time.Second

const detailsSuffix = " (press Enter to confirm or Escape to cancel)"

// Config configures a Server.
type Config struct {
	// RuntimeDir is where the socket is created (channel.DefaultDir if empty).
	RuntimeDir string
	// ScriptDir receives the askpass scripts referenced by Env.
	ScriptDir string
	// ClientPath is the askpass-client binary exported to git.
	ClientPath string
	// PromptTimeout bounds each prompt; zero waits until the user answers.
	PromptTimeout time.Duration
	// Prompter answers requests. Nil answers every request with "".
	Prompter prompt.Prompter
	Logger   *slog.Logger
	// Random is the nonce source (crypto/rand if nil).
	Random io.Reader
}

// Server is the host side of the bridge. Create it with New, call Start (or
// Setup), hand Env to git, and Dispose it when the session ends.
type Server struct {
	cfg    Config
	logger *slog.Logger
	http   *http.Server

	startOnce sync.Once
	ready     chan struct{} // closed once setup has finished
	addr      string
	listener  net.Listener
	watcher   *socketWatcher
	enabled   atomic.Bool

	scriptsOnce sync.Once
	scriptsErr  error

	closeOnce sync.Once
	closeErr  error
}

// New creates a Server. It does not bind anything until Start or Setup.
func New(cfg Config) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prompter == nil {
		cfg.Prompter = prompt.Unavailable{}
	}
	logger := cfg.Logger.With("component", "askpass")
	s := &Server{
		cfg:    cfg,
		logger: logger,
		ready:  make(chan struct{}),
	}
	s.enabled.Store(true)
	s.http = &http.Server{
		Handler:           s,
		ReadHeaderTimeout: readHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}
	return s
}

// Start begins setup in the background. It is safe to call more than once.
func (s *Server) Start() {
	s.startOnce.Do(func() {
		go func() {
			defer close(s.ready)
			s.setup()
		}()
	})
}

// Setup starts the server if needed, waits for setup to finish and returns
// the channel address. The address is returned even when binding failed;
// consult Enabled before using it.
func (s *Server) Setup() string {
	s.Start()
	<-s.ready
	return s.addr
}

// Address waits for setup like Setup, but gives up when ctx is done.
func (s *Server) Address(ctx context.Context) (string, error) {
	s.Start()
	select {
	case <-s.ready:
		return s.addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Enabled reports whether the channel is usable. It turns false for good
// when setup fails or the socket disappears.
func (s *Server) Enabled() bool {
	return s.enabled.Load()
}

func (s *Server) disable() {
	s.enabled.Store(false)
}

func (s *Server) setup() {
	nonce, err := channel.NewNonce(s.cfg.Random)
	if err != nil {
		s.logger.Error("could not launch git askpass helper", "error", err)
		s.disable()
		return
	}
	addr := channel.Derive(s.cfg.RuntimeDir, nonce)
	s.addr = addr

	listener, err := channel.Listen(addr)
	if err != nil {
		s.logger.Error("could not launch git askpass helper", "address", addr, "error", err)
		s.disable()
		return
	}
	s.listener = listener

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("askpass channel stopped", "address", addr, "error", err)
			s.disable()
		}
	}()

	if channel.Filesystem {
		w, err := watchSocket(addr, s.logger, func() {
			s.logger.Warn("askpass socket removed externally, bridge disabled", "address", addr)
			s.disable()
		})
		if err != nil {
			s.logger.Warn("cannot watch askpass socket", "address", addr, "error", err)
		}
		s.watcher = w
	}

	s.logger.Info("askpass bridge listening", "address", addr)
}

// ServeHTTP handles one credential request.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := s.logger.With("request_id", uuid.NewString())

	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestSize+1))
	if err != nil {
		logger.Warn("read credential request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if len(body) > maxRequestSize {
		logger.Warn("credential request too large", "bytes", len(body))
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		return
	}

	var req ipc.CredentialRequest
	if err := json.Unmarshal(body, &req); err != nil {
		logger.Warn("malformed credential request", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	answer, err := s.resolve(r.Context(), logger, req)
	if err != nil {
		logger.Error("credential request failed", "host", req.Host, "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(answer)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logger.Debug("write credential response", "error", err)
	}
}

// resolve asks the prompter and maps its outcome to an answer. A prompt
// failure is logged and answered with "", never with its error text. An
// error return means the request itself could not be served.
func (s *Server) resolve(ctx context.Context, logger *slog.Logger, req ipc.CredentialRequest) (string, error) {
	host := prompt.NormalizeHost(req.Host)
	q := prompt.Question{
		IsSecret: prompt.IsPasswordRequest(req.Request),
		Text:     req.Request,
		Details:  host + detailsSuffix,
		Host:     host,
	}

	promptCtx := ctx
	if s.cfg.PromptTimeout > 0 {
		var cancel context.CancelFunc
		promptCtx, cancel = context.WithTimeout(ctx, s.cfg.PromptTimeout)
		defer cancel()
	}

	outcome, err := s.ask(promptCtx, q)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("request abandoned: %w", err)
	}

	switch o := outcome.(type) {
	case prompt.Success:
		logger.Info("credential provided", "host", req.Host, "secret", q.IsSecret)
		return o.Text, nil
	case prompt.Cancel:
		logger.Info("credential prompt cancelled", "host", req.Host)
		return "", nil
	case prompt.Failure:
		if errors.Is(o.Err, context.DeadlineExceeded) {
			logger.Warn("credential prompt timed out", "host", req.Host, "timeout", s.cfg.PromptTimeout)
		} else {
			logger.Error("credential prompt failed", "host", req.Host, "error", o.Err)
		}
		return "", nil
	default:
		return "", errors.New("prompter returned no outcome")
	}
}

// ask calls the prompter, turning a panic into an error so one bad prompt
// cannot take the host down.
func (s *Server) ask(ctx context.Context, q prompt.Question) (outcome prompt.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New("prompter panicked")
		}
	}()
	return s.cfg.Prompter.Ask(ctx, q), nil
}

// Dispose stops accepting connections, closes in-flight ones and removes
// the socket file. Clients still waiting for an answer see a transport
// error. Calling Dispose again returns the first result.
func (s *Server) Dispose() error {
	s.closeOnce.Do(func() {
		// Never let a late Start bind after disposal.
		s.startOnce.Do(func() { close(s.ready) })
		<-s.ready
		s.disable()

		if s.watcher != nil {
			s.watcher.Close()
		}
		// Close shuts the listener before the live connections.
		if err := s.http.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.closeErr = fmt.Errorf("close askpass channel: %w", err)
		}
		if s.listener != nil && channel.Filesystem {
			if err := channel.Remove(s.addr); err != nil && s.closeErr == nil {
				s.closeErr = err
			}
		}
		s.logger.Debug("askpass bridge disposed", "address", s.addr)
	})
	return s.closeErr
}
