package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"enricher/pkg/auth"
	"enricher/pkg/ui"
)

var logoutAll bool

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage stored API keys",
	Long: `Manage the Airtable, Apify and Anthropic API keys.

Keys are kept in, in order of preference:
  - The system keychain (when available)
  - An encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

A key set in the config file, the environment or on the command line always
wins over a stored one.`,
}

var loginCmd = &cobra.Command{
	Use:   "login [service]",
	Short: "Store an API key securely",
	Long: `Store an API key for airtable, apify or anthropic. The key is read without
echo when the terminal allows it.`,
	Example: `  # Choose the service interactively
  enricher auth login

  # Store the Apify token
  enricher auth login apify`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout [service]",
	Short: "Remove a stored API key",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runLogout,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored API keys (masked)",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

func init() {
	logoutCmd.Flags().BoolVar(&logoutAll, "all", false, "remove the keys of every service")

	authCmd.AddCommand(loginCmd, logoutCmd, authListCmd)
	rootCmd.AddCommand(authCmd)
}

func runLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)

	service, err := serviceArg(args, reader)
	if err != nil {
		return err
	}

	if manager.Exists(service) {
		fmt.Printf("A %s key is already stored. Replace it? (y/N): ", service)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return nil
		}
	}

	auth.WriteKeyGuide(os.Stdout, service)

	fmt.Printf("\n%s API key (hidden): ", service)
	key, err := readSecret(reader)
	if err != nil {
		return fmt.Errorf("failed to read key: %w", err)
	}
	if len(key) < 8 {
		return errors.New("that key is too short to be valid")
	}

	if err := manager.Store(&auth.Credential{Service: service, APIKey: key}); err != nil {
		return err
	}
	ui.PrintSuccess(fmt.Sprintf("Stored %s key %s", service, auth.MaskKey(key)))
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}

	var services []auth.Service
	if logoutAll {
		services = auth.Services()
	} else {
		s, err := serviceArg(args, bufio.NewReader(os.Stdin))
		if err != nil {
			return err
		}
		services = []auth.Service{s}
	}

	removed := 0
	for _, s := range services {
		err := manager.Delete(s)
		switch {
		case err == nil:
			removed++
			ui.PrintSuccess("Removed " + string(s) + " key")
		case errors.Is(err, auth.ErrCredentialsNotFound):
			if !logoutAll {
				return fmt.Errorf("no stored %s key", s)
			}
		default:
			return err
		}
	}
	if logoutAll && removed == 0 {
		ui.PrintWarning("No stored keys found")
	}
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	creds, err := manager.List()
	if err != nil {
		return err
	}

	stored := make(map[auth.Service]*auth.Credential, len(creds))
	for _, c := range creds {
		stored[c.Service] = auth.Sanitize(c)
	}

	for _, s := range auth.Services() {
		c, ok := stored[s]
		if !ok {
			ui.PrintInfo(string(s), ui.Dim("not set (auth login "+string(s)+" or "+s.EnvVar()+")"))
			continue
		}
		value := c.APIKey
		if !c.LastModified.IsZero() {
			value += ui.Dim("  updated " + c.LastModified.Format("2006-01-02 15:04"))
		}
		ui.PrintInfo(string(s), value)
	}
	return nil
}

func serviceArg(args []string, reader *bufio.Reader) (auth.Service, error) {
	if len(args) > 0 {
		return auth.ParseService(args[0])
	}

	fmt.Println("Select service:")
	for i, s := range auth.Services() {
		fmt.Printf("  %d. %s\n", i+1, s)
	}
	fmt.Print("\nChoice: ")
	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	var choice int
	if _, err := fmt.Sscanf(input, "%d", &choice); err == nil {
		if choice < 1 || choice > len(auth.Services()) {
			return "", fmt.Errorf("invalid choice %d", choice)
		}
		return auth.Services()[choice-1], nil
	}
	return auth.ParseService(input)
}

func readSecret(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		secret, err := term.ReadPassword(fd)
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
