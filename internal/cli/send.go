package cli

import (
	"github.com/spf13/cobra"

	"fiatsend/internal/app"
)

var (
	sendUSD        uint64
	sendTo         string
	sendFrom       string
	sendTWAPWindow uint64
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Convert a USD amount at the current quote and transfer it",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.SendOptions{
			USD:  sendUSD,
			To:   sendTo,
			From: sendFrom,
		}
		if cmd.Flags().Changed("twap-window") {
			opts.Window = &sendTWAPWindow
		}
		return getApp().Send(cmd.Context(), opts)
	},
}

func init() {
	sendCmd.Flags().Uint64Var(&sendUSD, "usd", 0, "Whole US dollars to pay")
	sendCmd.Flags().StringVar(&sendTo, "to", "", "Destination account")
	sendCmd.Flags().StringVar(&sendFrom, "from", "", "Source account (defaults to ledger.payer or the signer)")
	sendCmd.Flags().Uint64Var(&sendTWAPWindow, "twap-window", 0, "Price with the TWAP over this many trailing seconds")
	_ = sendCmd.MarkFlagRequired("usd")
	_ = sendCmd.MarkFlagRequired("to")
}
