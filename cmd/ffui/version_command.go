package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ffui/internal/version"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the ffui version",
		Annotations: map[string]string{"noAutoConfig": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "ffui %s\n", version.Version)
			return nil
		},
	}
}
