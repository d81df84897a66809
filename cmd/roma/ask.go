package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ntclick/ai-research-roma/pkg/session"
)

func newAskCmd(flags *rootFlags) *cobra.Command {
	var (
		user     string
		asJSON   bool
		inMemory bool
	)

	cmd := &cobra.Command{
		Use:   "ask <query>",
		Short: "Resolve one query and print the response",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(flags)
			if err != nil {
				return err
			}
			a, err := newApp(cfg, appOptions{inMemory: inMemory})
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			env := a.sessions.Handle(cmd.Context(), session.Request{
				User:  user,
				Tool:  session.ToolResearch,
				Query: strings.Join(args, " "),
			})
			return printEnvelope(cmd.OutOrStdout(), env, asJSON)
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "cli", "user whose history is used")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw response envelope")
	cmd.Flags().BoolVar(&inMemory, "no-history", false, "do not read or write the history database")
	return cmd
}

func printEnvelope(w io.Writer, env session.Envelope, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(env) //nolint:wrapcheck // writer errors are self-describing
	}

	header := color.New(color.FgGreen, color.Bold)
	if env.HasError {
		header = color.New(color.FgRed, color.Bold)
	}
	meta := env.APISource
	if env.SubtaskCount > 0 {
		meta = fmt.Sprintf("%s, %d steps", meta, env.SubtaskCount)
	}
	if _, err := header.Fprintf(w, "[%s]\n", meta); err != nil {
		return err //nolint:wrapcheck // writer errors are self-describing
	}
	if _, err := fmt.Fprintln(w, env.Content); err != nil {
		return err //nolint:wrapcheck // writer errors are self-describing
	}
	if env.ImageURL != "" {
		_, err := fmt.Fprintf(w, "\n%s %s\n", color.CyanString("image:"), env.ImageURL)
		return err //nolint:wrapcheck // writer errors are self-describing
	}
	return nil
}
