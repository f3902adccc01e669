package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"fiatsend/internal/alerting"
	"fiatsend/internal/config"
	"fiatsend/internal/convert"
	"fiatsend/internal/ledger"
	"fiatsend/internal/ledger/evm"
	"fiatsend/internal/oracle"
	"fiatsend/internal/oracle/hermes"
	"fiatsend/internal/service"
	"fiatsend/internal/storage"
	"fiatsend/internal/version"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	// Out receives command results; logs never go here.
	Out io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

// runtime is the wired conversion flow plus the pieces commands inspect.
type runtime struct {
	svc     *service.Service
	history ledger.History
	payer   ledger.Account
	close   func()
}

func (a *App) newSource() (oracle.Source, error) {
	cfg := a.Config.Oracle
	switch cfg.Driver {
	case config.OracleHermes:
		userAgent := cfg.UserAgent
		if userAgent == "" {
			userAgent = version.UserAgent()
		}
		return hermes.New(hermes.Options{
			BaseURL:           cfg.BaseURL,
			Timeout:           cfg.RequestTimeout,
			UserAgent:         userAgent,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
		}, a.Logger), nil
	case config.OracleStatic:
		return a.staticSource(convert.Price{Mantissa: cfg.Static.Mantissa, Exponent: cfg.Static.Exponent}), nil
	default:
		return nil, fmt.Errorf("oracle driver %q not supported", cfg.Driver)
	}
}

func (a *App) staticSource(price convert.Price) *oracle.StaticSource {
	src := oracle.NewStaticSource(nil)
	src.Put(oracle.Observation{Feed: a.Config.FeedID(), Price: price})
	return src
}

type ledgerHandle struct {
	ledger  ledger.Ledger
	history ledger.History
	clock   oracle.Clock
	payer   ledger.Account
	close   func()
}

func (a *App) newLedger(ctx context.Context) (*ledgerHandle, error) {
	cfg := a.Config.Ledger
	handle := &ledgerHandle{clock: oracle.SystemClock{}, payer: ledger.Account(cfg.Payer), close: func() {}}

	switch cfg.Driver {
	case config.LedgerMemory:
		balances := make(map[ledger.Account]uint64, len(cfg.Memory.Accounts))
		for _, acct := range cfg.Memory.Accounts {
			balances[ledger.Account(acct.ID)] = acct.Balance
		}
		mem := ledger.NewMemory(balances)
		handle.ledger, handle.history = mem, mem
		a.Logger.Warn().Int("accounts", len(balances)).Msg("using in-memory ledger; balances reset on exit")

	case config.LedgerPostgres:
		pool, err := storage.NewPool(ctx, a.Config.Database)
		if err != nil {
			return nil, err
		}
		pg := storage.NewLedger(pool)
		handle.ledger, handle.history, handle.close = pg, pg, pg.Close

	case config.LedgerEVM:
		l, closeClient, err := evm.Dial(ctx, cfg.EVM.RPCURL, evm.Options{
			PrivateKey:     cfg.EVM.PrivateKey,
			WeiPerBaseUnit: cfg.EVM.WeiPerBaseUnit,
			GasLimit:       cfg.EVM.GasLimit,
			WaitMined:      cfg.EVM.WaitMined,
			PollInterval:   cfg.EVM.PollInterval,
			Timeout:        cfg.EVM.RequestTimeout,
		}, a.Logger)
		if err != nil {
			return nil, err
		}
		handle.ledger, handle.close = l, closeClient
		if handle.payer == "" {
			handle.payer = l.Account()
		}
		if cfg.EVM.ChainClock {
			handle.clock = l
		}

	default:
		return nil, fmt.Errorf("ledger driver %q not supported", cfg.Driver)
	}
	return handle, nil
}

func (a *App) newNotifier() alerting.Notifier {
	if !a.Config.Alerting.Enabled {
		return nil
	}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, cfg.Timeout, a.Logger)
	}
	return nil
}

func (a *App) serviceOptions(payer ledger.Account) service.Options {
	return service.Options{
		FeedID:           a.Config.FeedID(),
		MaxAge:           a.Config.Oracle.MaxAge,
		BaseUnitScale:    a.Config.Conversion.BaseUnitScale,
		RejectZeroAmount: a.Config.Conversion.RejectZeroAmount,
		Payer:            payer,
		Channels:         a.Config.Alerting.Channels,
	}
}

func (a *App) build(ctx context.Context) (*runtime, error) {
	source, err := a.newSource()
	if err != nil {
		return nil, err
	}
	lh, err := a.newLedger(ctx)
	if err != nil {
		return nil, err
	}

	svc := service.New(
		a.serviceOptions(lh.payer),
		oracle.NewAcquirer(source, a.Config.Oracle.MaxTWAPWindow, a.Logger),
		ledger.NewAuthorizer(lh.ledger, a.Logger),
		lh.clock,
		a.newNotifier(),
		a.Logger,
	)
	return &runtime{svc: svc, history: lh.history, payer: lh.payer, close: lh.close}, nil
}

func withSignals(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
}

func modeFor(window *uint64) oracle.Mode {
	if window == nil {
		return oracle.Instant()
	}
	return oracle.Windowed(*window)
}

// SendOptions describe one `send` invocation.
type SendOptions struct {
	USD    uint64
	To     string
	From   string
	Window *uint64
}

// Send converts and transfers once, printing the receipt.
func (a *App) Send(ctx context.Context, opts SendOptions) error {
	ctx, cancel := withSignals(ctx)
	defer cancel()

	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	receipt, err := rt.svc.Send(ctx, service.Request{
		FiatAmount:  opts.USD,
		Mode:        modeFor(opts.Window),
		Source:      ledger.Account(opts.From),
		Destination: ledger.Account(opts.To),
	})
	if errors.Is(err, ledger.ErrTransferUnconfirmed) {
		if perr := printReceipt(a.Out, receipt); perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		return err
	}
	return printReceipt(a.Out, receipt)
}

// TransfersOptions configure the transfers listing.
type TransfersOptions struct {
	Limit int
}

// Transfers prints recent transfers from ledgers that keep history.
func (a *App) Transfers(ctx context.Context, opts TransfersOptions) error {
	rt, err := a.build(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	if rt.history == nil {
		return errors.New("configured ledger does not keep transfer history")
	}
	transfers, err := rt.history.ListRecentTransfers(ctx, opts.Limit)
	if err != nil {
		return err
	}
	return printTransfers(a.Out, transfers)
}
