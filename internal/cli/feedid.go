package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"fiatsend/internal/oracle"
)

var feedIDCmd = &cobra.Command{
	Use:   "feed-id HEX",
	Short: "Validate a price feed id and print its canonical form",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := oracle.ResolveFeedID(args[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), id.Hex())
		return err
	},
}
