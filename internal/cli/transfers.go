package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fiatsend/internal/app"
)

var transfersLimit int

var transfersCmd = &cobra.Command{
	Use:   "transfers",
	Short: "Display recent transfers recorded by the ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		if transfersLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}
		return getApp().Transfers(cmd.Context(), app.TransfersOptions{Limit: transfersLimit})
	},
}

func init() {
	transfersCmd.Flags().IntVar(&transfersLimit, "limit", 20, "Number of transfers to display")
}
