package cli

import (
	"github.com/spf13/cobra"

	"stockroom/internal/tui"
)

func newTUICommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse and adjust stock in an interactive terminal dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, opts, func(a *app) error {
				return tui.Run(cmd.Context(), a.service)
			})
		},
	}
}
