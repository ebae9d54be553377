package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stratvault/deskfeed/internal/version"
)

// NewVersionCommand constructs the `version` command.
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "deskfeed", version.String())
		},
	}
}
