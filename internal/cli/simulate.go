package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"fiatsend/internal/convert"
)

var (
	simulateUSD      uint64
	simulateMantissa int64
	simulateExponent int32
	simulateTo       string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-transfer",
	Short: "Run a dry transfer at a fixed price and send its notification",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateUSD == 0 || simulateMantissa <= 0 {
			return errors.New("--usd and --mantissa must be greater than zero")
		}
		price := convert.Price{Mantissa: simulateMantissa, Exponent: simulateExponent}
		return getApp().SimulateTransfer(cmd.Context(), simulateUSD, price, simulateTo)
	},
}

func init() {
	simulateCmd.Flags().Uint64Var(&simulateUSD, "usd", 100, "Whole US dollars to pay")
	simulateCmd.Flags().Int64Var(&simulateMantissa, "mantissa", 15_000_000_000, "Price mantissa")
	simulateCmd.Flags().Int32Var(&simulateExponent, "exponent", -8, "Price exponent")
	simulateCmd.Flags().StringVar(&simulateTo, "to", "simulated-destination", "Destination account")
}
