package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voicenav/internal/email"
)

func init() {
	rootCmd.AddCommand(emailCmd)
}

var emailCmd = &cobra.Command{
	Use:   "email <spoken address...>",
	Short: "Rebuild an email address from its spoken form",
	Example: `  voicenav email john at gmail dot com
  voicenav email "my email is j o h n underscore doe at outlook dot com"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rebuilt := email.Reconstruct(email.StripLeadIns(strings.Join(args, " ")))
		if !email.Valid(rebuilt) {
			return fmt.Errorf("%q is not a valid email address", rebuilt)
		}
		fmt.Fprintln(cmd.OutOrStdout(), rebuilt)
		return nil
	},
}
