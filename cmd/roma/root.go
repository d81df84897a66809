package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ntclick/ai-research-roma/pkg/config"
	"github.com/ntclick/ai-research-roma/pkg/logx"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	secretsDir string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   "roma",
		Short: "Recursive crypto research assistant",
		Long: `roma answers crypto research questions by routing simple queries to a
single capability (prices, news, research, images, social posts) and by
decomposing complex ones into sub-queries whose answers are synthesized.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if flags.debug {
				logx.SetDebug(true)
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "config file (JSON or YAML)")
	cmd.PersistentFlags().StringVar(&flags.secretsDir, "secrets-dir", ".", "directory holding .roma/secrets.json.enc")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable debug logging")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newAskCmd(flags))
	cmd.AddCommand(newSecretsCmd(flags))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig reads the config file and unlocks the secrets file when present.
func loadConfig(flags *rootFlags) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err //nolint:wrapcheck // already descriptive
	}
	config.SetConfig(cfg)

	if config.SecretsFileExists(flags.secretsDir) {
		password, err := secretsPassword(false)
		if err != nil {
			return nil, err
		}
		secrets, err := config.DecryptSecretsFile(flags.secretsDir, password)
		if err != nil {
			return nil, fmt.Errorf("failed to unlock secrets: %w", err)
		}
		config.SetDecryptedSecrets(secrets)
	}
	return cfg, nil
}

// secretsPassword reads ROMA_PASSWORD or prompts on the terminal.
func secretsPassword(confirm bool) (string, error) {
	if password := os.Getenv(config.EnvSecretsPassword); password != "" {
		return password, nil
	}

	fd := int(os.Stdin.Fd()) //nolint:gosec // file descriptors fit in int
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("secrets password required: set %s", config.EnvSecretsPassword)
	}

	fmt.Fprint(os.Stderr, "Secrets password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if !confirm {
		return string(first), nil
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
