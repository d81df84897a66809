package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ntclick/ai-research-roma/pkg/config"
)

func newSecretsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secrets",
		Short: "Manage the encrypted secrets file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set NAME",
		Short: "Set a secret, reading the value from the terminal or stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return fmt.Errorf("secret name must not be empty")
			}

			exists := config.SecretsFileExists(flags.secretsDir)
			password, err := secretsPassword(!exists)
			if err != nil {
				return err
			}
			if exists {
				secrets, err := config.DecryptSecretsFile(flags.secretsDir, password)
				if err != nil {
					return fmt.Errorf("failed to unlock secrets: %w", err)
				}
				config.SetDecryptedSecrets(secrets)
			}

			value, err := readSecretValue(name)
			if err != nil {
				return err
			}
			config.SetSecret(name, value)
			if err := config.SaveSecretsToFile(flags.secretsDir, password); err != nil {
				return err //nolint:wrapcheck // already descriptive
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s saved %s to %s\n", color.GreenString("✓"), name, config.SecretsPath(flags.secretsDir))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List secret names (never values)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !config.SecretsFileExists(flags.secretsDir) {
				fmt.Fprintln(cmd.OutOrStdout(), "no secrets file")
				return nil
			}
			password, err := secretsPassword(false)
			if err != nil {
				return err
			}
			secrets, err := config.DecryptSecretsFile(flags.secretsDir, password)
			if err != nil {
				return fmt.Errorf("failed to unlock secrets: %w", err)
			}
			config.SetDecryptedSecrets(secrets)
			for _, name := range config.GetDecryptedSecretNames() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})
	return cmd
}

func readSecretValue(name string) (string, error) {
	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if term.IsTerminal(fd) {
		fmt.Fprintf(os.Stderr, "Value for %s: ", name)
		value, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read value: %w", err)
		}
		return strings.TrimSpace(string(value)), nil
	}

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read value from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}
