package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ntclick/ai-research-roma/pkg/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "roma version %s\n", version.String())
		},
	}
}
