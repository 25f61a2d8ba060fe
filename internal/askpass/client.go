// SPDX-License-Identifier: Apache-2.0

package askpass

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"

	"github.com/akihiro/git-askpass-bridge/internal/channel"
	"github.com/akihiro/git-askpass-bridge/internal/ipc"
)

// SkipCommand is the git subcommand the client never answers for, so that
// background fetches cannot pop up credential prompts.
const SkipCommand = "fetch"

// maxResponseSize bounds the answer read from the bridge.
const maxResponseSize = 1 << 20

// clientArgs is the exact argv length: program, script, request text,
// an unused word and the quoted host, as produced by askpass.sh.
const clientArgs = 5

// fatalMessage is printed before every failure. The secret never is.
const fatalMessage = "Missing or invalid credentials."

var errSkipFetch = errors.New("skip fetch commands")

// Client is the askpass helper process. The zero value is not usable; use
// NewClient, then override fields in tests.
type Client struct {
	Getenv func(key string) string
	Dial   func(ctx context.Context, addr string) (net.Conn, error)
	Stderr io.Writer
}

// NewClient returns a Client wired to the process environment, the real
// channel and os.Stderr.
func NewClient() *Client {
	return &Client{
		Getenv: os.Getenv,
		Dial:   channel.Dial,
		Stderr: os.Stderr,
	}
}

// Run performs one credential exchange and returns the process exit code:
// 0 when the answer was written, 1 on any failure.
func (c *Client) Run(ctx context.Context, args []string) int {
	if err := c.run(ctx, args); err != nil {
		fmt.Fprintln(c.Stderr, fatalMessage)
		fmt.Fprintln(c.Stderr, err)
		return 1
	}
	return 0
}

func (c *Client) run(ctx context.Context, args []string) error {
	if len(args) != clientArgs {
		return errors.New("wrong number of arguments")
	}
	handle := c.Getenv(EnvHandle)
	if handle == "" {
		return errors.New("missing handle")
	}
	output := c.Getenv(EnvPipe)
	if output == "" {
		return errors.New("missing pipe")
	}
	if c.Getenv(EnvCommand) == SkipCommand {
		return errSkipFetch
	}

	host, err := ExtractHost(args[4])
	if err != nil {
		return err
	}
	answer, err := c.exchange(ctx, handle, ipc.CredentialRequest{Request: args[2], Host: host})
	if err != nil {
		return err
	}

	if err := os.WriteFile(output, []byte(answer+"\n"), 0o600); err != nil {
		return fmt.Errorf("write answer: %w", err)
	}
	return nil
}

// ExtractHost strips the quote pair git wraps around the remote, e.g.
// `'https://example.com'` becomes `https://example.com`.
func ExtractHost(token string) (string, error) {
	if len(token) < 2 {
		return "", fmt.Errorf("invalid host argument %q", token)
	}
	return token[1 : len(token)-1], nil
}

// exchange POSTs req over the channel at handle and returns the answer.
func (c *Client) exchange(ctx context.Context, handle string, req ipc.CredentialRequest) (string, error) {
	transport := &http.Transport{
		DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
			return c.Dial(ctx, handle)
		},
		DisableKeepAlives: true,
	}
	defer transport.CloseIdleConnections()
	client := &http.Client{Transport: transport}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://askpass/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("error in request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("error in request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("bad status code: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("error in request: %w", err)
	}

	// The decode error is dropped: it can quote parts of the body.
	var answer string
	if err := json.Unmarshal(raw, &answer); err != nil {
		return "", errors.New("error parsing response")
	}
	return answer, nil
}
