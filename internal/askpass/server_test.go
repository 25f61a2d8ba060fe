package askpass

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/akihiro/git-askpass-bridge/internal/channel"
	"github.com/akihiro/git-askpass-bridge/internal/logging"
	"github.com/akihiro/git-askpass-bridge/internal/prompt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// post sends a raw body to the server and returns status and body.
func post(t *testing.T, addr, body string) (int, string) {
	t.Helper()
	client := &http.Client{Transport: &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return channel.Dial(ctx, addr)
		},
		DisableKeepAlives: true,
	}}
	resp, err := client.Post("http://askpass/", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestSetup_Listens(t *testing.T) {
	s := newTestServer(t, answer("x"))
	require.True(t, s.Enabled())

	addr, err := s.Address(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s.Setup(), addr, "setup runs once")
	assert.Contains(t, addr, "askpass-bridge-")
	if channel.Filesystem {
		_, err := os.Stat(addr)
		assert.NoError(t, err)
	}
}

func TestServeHTTP_Answers(t *testing.T) {
	var got prompt.Question
	s := newTestServer(t, prompt.PrompterFunc(func(_ context.Context, q prompt.Question) prompt.Outcome {
		got = q
		return prompt.Success{Text: `s3"cret`}
	}))

	status, body := post(t, s.Setup(), `{"request":"Password for 'https://example.com': ","host":"https://example.com"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"s3\"cret"`, body)

	assert.True(t, got.IsSecret)
	assert.Equal(t, "Password for 'https://example.com': ", got.Text)
	assert.Equal(t, "https://example.com (press Enter to confirm or Escape to cancel)", got.Details)
	assert.Equal(t, "https://example.com", got.Host)
}

func TestServeHTTP_WordSplitHost(t *testing.T) {
	var got prompt.Question
	s := newTestServer(t, prompt.PrompterFunc(func(_ context.Context, q prompt.Question) prompt.Outcome {
		got = q
		return prompt.Success{Text: "x"}
	}))
	status, _ := post(t, s.Setup(), `{"request":"Password","host":"https://example.com'"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "https://example.com", got.Host)
	assert.Equal(t, "https://example.com"+detailsSuffix, got.Details)
}

func TestServeHTTP_UsernameIsNotSecret(t *testing.T) {
	var got prompt.Question
	s := newTestServer(t, prompt.PrompterFunc(func(_ context.Context, q prompt.Question) prompt.Outcome {
		got = q
		return prompt.Success{Text: "octocat"}
	}))
	status, body := post(t, s.Setup(), `{"request":"Username for 'https://example.com': ","host":"h"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"octocat"`, body)
	assert.False(t, got.IsSecret)
}

func TestServeHTTP_OutcomeMapping(t *testing.T) {
	tests := []struct {
		name       string
		outcome    prompt.Outcome
		wantStatus int
		wantBody   string
	}{
		{"success", prompt.Success{Text: "tok"}, http.StatusOK, `"tok"`},
		{"empty success", prompt.Success{}, http.StatusOK, `""`},
		{"cancel", prompt.Cancel{}, http.StatusOK, `""`},
		{"failure", prompt.Failure{Err: errors.New("secret-bearing failure")}, http.StatusOK, `""`},
		{"nil outcome", nil, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, prompt.PrompterFunc(func(context.Context, prompt.Question) prompt.Outcome {
				return tt.outcome
			}))
			status, body := post(t, s.Setup(), `{"request":"Password","host":"h"}`)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestServeHTTP_SecretNotLogged(t *testing.T) {
	var logs bytes.Buffer
	logger, err := logging.New(&logs, "debug", logging.FormatText)
	require.NoError(t, err)

	dir := shortTempDir(t)
	s := New(Config{
		RuntimeDir: dir,
		ScriptDir:  dir,
		Logger:     logger,
		Prompter: prompt.PrompterFunc(func(context.Context, prompt.Question) prompt.Outcome {
			return prompt.Success{Text: "hunter2"}
		}),
	})
	defer s.Dispose()

	status, body := post(t, s.Setup(), `{"request":"Password","host":"h"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `"hunter2"`, body)
	assert.NotContains(t, logs.String(), "hunter2")
	assert.Contains(t, logs.String(), "request_id=")
}

func TestServeHTTP_PanickingPrompter(t *testing.T) {
	s := newTestServer(t, prompt.PrompterFunc(func(context.Context, prompt.Question) prompt.Outcome {
		panic("boom")
	}))
	status, body := post(t, s.Setup(), `{"request":"Password","host":"h"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Empty(t, body)

	status, _ = post(t, s.Setup(), `{"request":"Password","host":"h"}`)
	assert.Equal(t, http.StatusInternalServerError, status, "server survives the panic")
}

func TestServeHTTP_Malformed(t *testing.T) {
	s := newTestServer(t, answer("never"))
	for _, body := range []string{"", "{", `["request"]`, `"just a string"`} {
		status, resp := post(t, s.Setup(), body)
		assert.Equal(t, http.StatusBadRequest, status, "body %q", body)
		assert.Empty(t, resp)
	}
}

func TestServeHTTP_PromptTimeout(t *testing.T) {
	dir := shortTempDir(t)
	s := New(Config{
		RuntimeDir:    dir,
		ScriptDir:     dir,
		PromptTimeout: 50 * time.Millisecond,
		Logger:        logging.Discard(),
		Prompter: prompt.PrompterFunc(func(ctx context.Context, _ prompt.Question) prompt.Outcome {
			<-ctx.Done()
			return prompt.Failure{Err: ctx.Err()}
		}),
	})
	defer s.Dispose()

	status, body := post(t, s.Setup(), `{"request":"Password","host":"h"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, `""`, body)
}

func TestSetup_BindFailureDisables(t *testing.T) {
	if !channel.Filesystem {
		t.Skip("named pipes have no directory to be missing")
	}
	scripts := shortTempDir(t)
	s := New(Config{
		RuntimeDir: filepath.Join(scripts, "does", "not", "exist"),
		ScriptDir:  scripts,
		Prompter:   answer("x"),
		Logger:     logging.Discard(),
	})
	defer s.Dispose()

	addr := s.Setup()
	assert.NotEmpty(t, addr, "the unusable address is still returned")
	assert.False(t, s.Enabled())

	env, err := s.Env(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(scripts, ScriptEmpty), env.Askpass)
	assert.Empty(t, env.Handle)
	for _, kv := range env.Environ() {
		assert.False(t, strings.HasPrefix(kv, EnvHandle+"="), "disabled env must not carry a handle: %s", kv)
		assert.NotContains(t, kv, addr)
	}
	_, err = os.Stat(env.Askpass)
	assert.NoError(t, err, "inert script is installed")
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestSetup_NonceFailureDisables(t *testing.T) {
	dir := shortTempDir(t)
	s := New(Config{RuntimeDir: dir, ScriptDir: dir, Random: brokenReader{}, Logger: logging.Discard()})
	defer s.Dispose()

	assert.Empty(t, s.Setup())
	assert.False(t, s.Enabled())
}

func TestEnv_Enabled(t *testing.T) {
	s := newTestServer(t, answer("x"))
	env, err := s.Env(context.Background())
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(s.cfg.ScriptDir, ScriptAskpass), env.Askpass)
	assert.Equal(t, "/usr/local/bin/askpass-client", env.Client)
	assert.Equal(t, s.Setup(), env.Handle)
	assert.Equal(t, "0", env.TerminalPrompt)
	assert.Contains(t, env.Environ(), EnvHandle+"="+s.Setup())

	script, err := os.ReadFile(env.Askpass)
	require.NoError(t, err)
	assert.Contains(t, string(script), "$GIT_ASKPASS_BRIDGE_CLIENT")
	if runtime.GOOS != "windows" {
		info, err := os.Stat(env.Askpass)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
}

func TestEnv_WaitsForContext(t *testing.T) {
	s := New(Config{Logger: logging.Discard()})
	defer s.Dispose()
	s.startOnce.Do(func() {}) // setup never completes

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Env(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(s.ready)
}

func TestDispose_RemovesSocketAndIsIdempotent(t *testing.T) {
	dir := shortTempDir(t)
	s := New(Config{RuntimeDir: dir, ScriptDir: dir, Prompter: answer("x"), Logger: logging.Discard()})
	addr := s.Setup()
	require.True(t, s.Enabled())

	require.NoError(t, s.Dispose())
	assert.NoError(t, s.Dispose())
	assert.False(t, s.Enabled())

	if channel.Filesystem {
		_, err := os.Stat(addr)
		assert.True(t, os.IsNotExist(err), "socket file should be gone, stat err = %v", err)
	}
	_, err := channel.Dial(context.Background(), addr)
	assert.Error(t, err)
}

func TestDispose_BeforeStart(t *testing.T) {
	s := New(Config{Logger: logging.Discard()})
	require.NoError(t, s.Dispose())
	assert.Empty(t, s.Setup(), "a disposed server never binds")
	assert.False(t, s.Enabled())
}

func TestDispose_FailsInFlightRequests(t *testing.T) {
	asked := make(chan struct{})
	s := newTestServer(t, prompt.PrompterFunc(func(ctx context.Context, _ prompt.Question) prompt.Outcome {
		close(asked)
		<-ctx.Done()
		return prompt.Failure{Err: ctx.Err()}
	}))

	out := filepath.Join(shortTempDir(t), "answer")
	env := &envMap{vars: map[string]string{EnvHandle: s.Setup(), EnvPipe: out}}
	c := &Client{Getenv: env.Getenv, Dial: channel.Dial, Stderr: io.Discard}

	code := make(chan int, 1)
	go func() {
		code <- c.Run(context.Background(), []string{"client", "askpass.sh", "Password", "for", "'h'"})
	}()

	<-asked
	require.NoError(t, s.Dispose())
	assert.Equal(t, 1, <-code)
	_, err := os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no answer file on failure")
}

func TestSocketRemovedExternallyDisables(t *testing.T) {
	if !channel.Filesystem {
		t.Skip("named pipes cannot be unlinked")
	}
	s := newTestServer(t, answer("x"))
	require.True(t, s.Enabled())

	require.NoError(t, os.Remove(s.Setup()))
	assert.Eventually(t, func() bool { return !s.Enabled() }, 2*time.Second, 10*time.Millisecond)

	env, err := s.Env(context.Background())
	require.NoError(t, err)
	assert.Empty(t, env.Handle)
	assert.Equal(t, filepath.Join(s.cfg.ScriptDir, ScriptEmpty), env.Askpass)
}

func TestConcurrentRequestsArePaired(t *testing.T) {
	const n = 20
	s := newTestServer(t, prompt.PrompterFunc(func(_ context.Context, q prompt.Question) prompt.Outcome {
		// Reverse completion order relative to arrival to shake out cross-talk.
		var i int
		fmt.Sscanf(q.Host, "host-%d", &i)
		time.Sleep(time.Duration(n-i) * time.Millisecond)
		return prompt.Success{Text: "answer-for-" + q.Host}
	}))
	addr := s.Setup()
	outDir := shortTempDir(t)

	var wg sync.WaitGroup
	codes := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			env := &envMap{vars: map[string]string{
				EnvHandle: addr,
				EnvPipe:   filepath.Join(outDir, fmt.Sprintf("out-%d", i)),
			}}
			c := &Client{Getenv: env.Getenv, Dial: channel.Dial, Stderr: io.Discard}
			codes[i] = c.Run(context.Background(), []string{"client", "askpass.sh", "Password", "for", fmt.Sprintf("'host-%d'", i)})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.Equal(t, 0, codes[i], "client %d", i)
		data, err := os.ReadFile(filepath.Join(outDir, fmt.Sprintf("out-%d", i)))
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("answer-for-host-%d\n", i), string(data))
	}
}
