package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hublinkchat/hublink/pkg/accounts"
	"github.com/hublinkchat/hublink/pkg/model"
)

func newBootstrapAdminCmd() *cobra.Command {
	var username string
	cmd := &cobra.Command{
		Use:   "bootstrap-admin",
		Short: "Create the first ADMIN account, prompting for a password without echoing it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if username == "" {
				return fmt.Errorf("--username is required")
			}

			cfg, err := loadServerConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openAccountStore(cfg)
			if err != nil {
				return fmt.Errorf("open account store: %w", err)
			}
			defer func() { _ = store.Close() }()

			password, err := readPassword("Password for " + username + ": ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			confirm, err := readPassword("Confirm password: ")
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			if password != confirm {
				return fmt.Errorf("passwords do not match")
			}

			if _, err := store.Create(username, password, model.RoleAdmin); err != nil {
				if err == accounts.ErrAlreadyExists {
					return fmt.Errorf("account %q already exists", username)
				}
				return fmt.Errorf("create admin account: %w", err)
			}
			if err := store.Flush(); err != nil {
				return fmt.Errorf("flush account store: %w", err)
			}

			fmt.Printf("created ADMIN account %q\n", username)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "username for the new ADMIN account")
	return cmd
}

// readPassword prompts on stdout and reads a line from the terminal
// without echoing it back, falling back to plain stdin when not attached
// to a terminal (e.g. piped input in scripts), grounded on
// jholhewres-goclaw's copilot.ReadPassword (pkg/devclaw/copilot/vault.go).
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Println()
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	var buf [1024]byte
	n, err := os.Stdin.Read(buf[:])
	if err != nil {
		return "", err
	}
	line := string(buf[:n])
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line, nil
}
