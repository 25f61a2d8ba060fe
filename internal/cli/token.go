// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/akihiro/git-askpass-bridge/internal/prompt"
	"github.com/akihiro/git-askpass-bridge/internal/store"
)

var tokenShow bool

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenSetCmd, tokenGetCmd, tokenDeleteCmd)
	tokenGetCmd.Flags().BoolVar(&tokenShow, "show", false, "Print the token itself instead of only reporting it")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage tokens remembered in the OS vault",
	Long: "Tokens are keyed by the host git asks about, e.g. https://github.com.\n" +
		"A stored token answers password prompts for that host without asking.",
}

var tokenSetCmd = &cobra.Command{
	Use:   "set <host>",
	Short: "Store a token, read from the terminal without echo or from stdin",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenSet,
}

var tokenGetCmd = &cobra.Command{
	Use:   "get <host>",
	Short: "Report whether a token is stored",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenGet,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete <host>",
	Short: "Remove a stored token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenDelete,
}

func openTokens() (*store.TokenStore, error) {
	tokens, err := store.Open(cfg.Backend, store.Options{HelperPath: cfg.HelperPath})
	if err != nil {
		return nil, fmt.Errorf("open token vault: %w", err)
	}
	return tokens, nil
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	host := prompt.NormalizeHost(args[0])
	secret, err := readSecret(cmd.InOrStdin(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	if secret == "" {
		return errors.New("refusing to store an empty token")
	}

	tokens, err := openTokens()
	if err != nil {
		return err
	}
	defer tokens.Close()

	if err := tokens.Set(cfg.ServiceKey, host, secret); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Stored token for %s\n", host)
	return nil
}

func runTokenGet(cmd *cobra.Command, args []string) error {
	host := prompt.NormalizeHost(args[0])
	tokens, err := openTokens()
	if err != nil {
		return err
	}
	defer tokens.Close()

	secret, found, err := tokens.Get(cfg.ServiceKey, host)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no token stored for %s", host)
	}
	if tokenShow {
		fmt.Fprintln(cmd.OutOrStdout(), secret)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Token stored for %s\n", host)
	return nil
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	host := prompt.NormalizeHost(args[0])
	tokens, err := openTokens()
	if err != nil {
		return err
	}
	defer tokens.Close()

	deleted, err := tokens.Delete(cfg.ServiceKey, host)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("no token stored for %s", host)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted token for %s\n", host)
	return nil
}

// readSecret reads a token without echo when in is a terminal, otherwise
// the whole of in with one trailing newline removed.
func readSecret(in io.Reader, w io.Writer) (string, error) {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(w, "Token: ")
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(w)
		if err != nil {
			return "", fmt.Errorf("read token: %w", err)
		}
		return string(data), nil
	}
	data, err := io.ReadAll(io.LimitReader(in, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	s := strings.TrimSuffix(string(data), "\n")
	return strings.TrimSuffix(s, "\r"), nil
}
