package app

import (
	"context"
	"errors"
	"math"

	"fiatsend/internal/convert"
	"fiatsend/internal/ledger"
	"fiatsend/internal/oracle"
	"fiatsend/internal/service"
)

const simulatedPayer ledger.Account = "simulated-payer"

// SimulateTransfer runs one conversion at a fixed price against a throwaway
// in-memory ledger and dispatches the notification, to exercise alert channels.
func (a *App) SimulateTransfer(ctx context.Context, usd uint64, price convert.Price, destination string) error {
	if !a.Config.Alerting.Enabled {
		return errors.New("alerting is not enabled")
	}
	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no notification channel configured")
	}

	mem := ledger.NewMemory(map[ledger.Account]uint64{simulatedPayer: math.MaxUint64})
	svc := service.New(
		a.serviceOptions(simulatedPayer),
		oracle.NewAcquirer(a.staticSource(price), a.Config.Oracle.MaxTWAPWindow, a.Logger),
		ledger.NewAuthorizer(mem, a.Logger),
		oracle.SystemClock{},
		notifier,
		a.Logger,
	)

	receipt, err := svc.Send(ctx, service.Request{
		FiatAmount:  usd,
		Mode:        oracle.Instant(),
		Destination: ledger.Account(destination),
	})
	if err != nil {
		return err
	}
	return printReceipt(a.Out, receipt)
}
