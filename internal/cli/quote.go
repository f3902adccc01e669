package cli

import (
	"github.com/spf13/cobra"

	"fiatsend/internal/app"
)

var (
	quoteUSD        uint64
	quoteTWAPWindow uint64
	quoteWatch      bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Show how many base units a USD amount buys right now",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.QuoteOptions{USD: quoteUSD, Watch: quoteWatch}
		if cmd.Flags().Changed("twap-window") {
			opts.Window = &quoteTWAPWindow
		}
		return getApp().Quote(cmd.Context(), opts)
	},
}

func init() {
	quoteCmd.Flags().Uint64Var(&quoteUSD, "usd", 0, "Whole US dollars to price")
	quoteCmd.Flags().Uint64Var(&quoteTWAPWindow, "twap-window", 0, "Price with the TWAP over this many trailing seconds")
	quoteCmd.Flags().BoolVar(&quoteWatch, "watch", false, "Re-quote every watch.interval until interrupted")
	_ = quoteCmd.MarkFlagRequired("usd")
}
