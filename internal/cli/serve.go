package cli

import (
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the quote and transfer HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Serve(cmd.Context())
	},
}
