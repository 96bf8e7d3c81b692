package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"picharvest/pkg/credentials"
	"picharvest/pkg/ui"
)

var tokenEndpoint string

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage search API tokens",
	Long: `Manage bearer tokens for authenticated SearXNG endpoints.

Tokens are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - The PICHARVEST_SEARCH_TOKEN environment variable (read only)

A run looks the token up under search.account, or under the SearXNG host
when no account is configured.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set <account>",
	Short: "Store a token",
	Example: `  # Prompt for the token of a SearXNG host
  picharvest auth set searx.example.org

  # Pipe it in
  echo "$TOKEN" | picharvest auth set searx.example.org`,
	Args: cobra.ExactArgs(1),
	RunE: runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List stored tokens, masked",
	Args:  cobra.NoArgs,
	RunE:  runAuthShow,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <account>",
	Short: "Remove a stored token",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authShowCmd)
	authCmd.AddCommand(authDeleteCmd)

	authSetCmd.Flags().StringVar(&tokenEndpoint, "endpoint", "", "endpoint the token belongs to, for reference")
}

func credentialManager() (*credentials.Manager, error) {
	dir, err := credentials.ConfigDir()
	if err != nil {
		return nil, err
	}
	return credentials.NewManager(dir)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	m, err := credentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	account := strings.TrimSpace(args[0])
	fmt.Printf("Token for %s: ", account)
	value, err := readSecret()
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if value == "" {
		return credentials.ErrInvalidToken
	}

	tok := &credentials.Token{Account: account, Value: value, Endpoint: tokenEndpoint}
	if err := m.Store(tok); err != nil {
		return err
	}
	ui.PrintSuccess("Token stored for " + account)
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	m, err := credentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	toks, err := m.List()
	if err != nil {
		return err
	}
	if len(toks) == 0 {
		ui.PrintWarning("No tokens stored")
		return nil
	}

	sort.Slice(toks, func(i, j int) bool { return toks[i].Account < toks[j].Account })
	for _, t := range toks {
		masked := credentials.Mask(t)
		line := masked.Value
		if masked.Endpoint != "" {
			line += "  " + ui.Dim(masked.Endpoint)
		}
		if !masked.LastModified.IsZero() {
			line += "  " + ui.Dim(masked.LastModified.Format("2006-01-02 15:04"))
		}
		ui.PrintInfo(masked.Account, line)
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	m, err := credentialManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := m.Delete(args[0]); err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return fmt.Errorf("no token stored for %s", args[0])
		}
		return err
	}
	ui.PrintSuccess("Token removed for " + args[0])
	return nil
}

// readSecret reads a line without echo from a terminal, or plainly from a pipe
func readSecret() (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
