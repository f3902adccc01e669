package app

import (
	"context"
	"errors"
	"time"

	"fiatsend/internal/scheduler"
)

// QuoteOptions describe one `quote` invocation.
type QuoteOptions struct {
	USD    uint64
	Window *uint64
	// Watch re-quotes every watch.interval until interrupted.
	Watch    bool
	MaxTicks int
}

// Quote prints the amount fiat would buy without moving value.
func (a *App) Quote(ctx context.Context, opts QuoteOptions) error {
	ctx, cancel := withSignals(ctx)
	defer cancel()

	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	mode := modeFor(opts.Window)
	if !opts.Watch {
		q, err := rt.svc.Quote(ctx, opts.USD, mode)
		if err != nil {
			return err
		}
		return printQuote(a.Out, q)
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Watch.Interval,
		AlignToStart: a.Config.Watch.AlignToBucket,
		StartupDelay: a.Config.Watch.StartupDelay,
		Immediate:    true,
		MaxTicks:     opts.MaxTicks,
	}, a.Logger)

	a.Logger.Info().Dur("interval", a.Config.Watch.Interval).Str("mode", mode.String()).Msg("watching quotes")
	err = sched.Run(ctx, func(ctx context.Context, _ time.Time) error {
		q, err := rt.svc.Quote(ctx, opts.USD, mode)
		if err != nil {
			return err
		}
		return printQuote(a.Out, q)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.Logger.Info().Msg("quote watch stopped")
	return nil
}
