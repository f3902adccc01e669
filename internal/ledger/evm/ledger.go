package evm

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/rs/zerolog"

	"fiatsend/internal/ledger"
	"fiatsend/internal/oracle"
)

// Backend is the subset of an Ethereum client the ledger needs. Both
// *ethclient.Client and the simulated backend client satisfy it.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Options parameterise the EVM ledger.
type Options struct {
	PrivateKey     string
	WeiPerBaseUnit uint64
	GasLimit       uint64
	WaitMined      bool
	PollInterval   time.Duration
	Timeout        time.Duration
}

// Ledger moves native coin with plain value transfers signed by one key.
type Ledger struct {
	opts    Options
	backend Backend
	key     *ecdsa.PrivateKey
	signer  common.Address
	logger  zerolog.Logger

	// serialises nonce assignment for this signer
	sendMux sync.Mutex
}

// Dial connects to rpcURL and builds a ledger on top of it.
func Dial(ctx context.Context, rpcURL string, opts Options, logger zerolog.Logger) (*Ledger, func(), error) {
	if rpcURL == "" {
		return nil, nil, errors.New("ethereum rpc url not configured")
	}
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, nil, fmt.Errorf("dial ethereum rpc: %w", err)
	}
	l, err := New(client, opts, logger)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return l, client.Close, nil
}

// New builds a ledger over an existing backend.
func New(backend Backend, opts Options, logger zerolog.Logger) (*Ledger, error) {
	if strings.TrimSpace(opts.PrivateKey) == "" {
		return nil, errors.New("signer private key not configured")
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(opts.PrivateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse signer private key: %w", err)
	}

	if opts.WeiPerBaseUnit == 0 {
		opts.WeiPerBaseUnit = params.GWei
	}
	if opts.GasLimit == 0 {
		opts.GasLimit = params.TxGas
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 2 * time.Minute
	}

	signer := crypto.PubkeyToAddress(key.PublicKey)
	return &Ledger{
		opts:    opts,
		backend: backend,
		key:     key,
		signer:  signer,
		logger:  logger.With().Str("component", "evm_ledger").Str("signer", signer.Hex()).Logger(),
	}, nil
}

// Account is the payer account this ledger can sign for.
func (l *Ledger) Account() ledger.Account {
	return ledger.Account(l.signer.Hex())
}

// Transfer signs and submits a native value transfer. With WaitMined the call
// returns only after the transaction is included and succeeded. If no receipt
// shows up before Timeout the Result still carries the tx hash and the error
// matches ledger.ErrTransferUnconfirmed.
func (l *Ledger) Transfer(ctx context.Context, intent ledger.Intent) (ledger.Result, error) {
	if !common.IsHexAddress(string(intent.Source)) || common.HexToAddress(string(intent.Source)) != l.signer {
		return ledger.Result{}, fmt.Errorf("%w: %s (signer is %s)", ledger.ErrUnauthorizedSource, intent.Source, l.signer.Hex())
	}
	if !common.IsHexAddress(string(intent.Destination)) {
		return ledger.Result{}, fmt.Errorf("%w: %q is not a hex address", ledger.ErrInvalidDestination, intent.Destination)
	}
	to := common.HexToAddress(string(intent.Destination))

	value := new(big.Int).Mul(new(big.Int).SetUint64(intent.AmountBaseUnits), new(big.Int).SetUint64(l.opts.WeiPerBaseUnit))

	var cancel context.CancelFunc
	ctx, cancel = context.WithTimeout(ctx, l.opts.Timeout)
	defer cancel()

	l.sendMux.Lock()
	tx, err := l.signTransfer(ctx, to, value)
	if err == nil {
		err = l.backend.SendTransaction(ctx, tx)
	}
	l.sendMux.Unlock()
	if err != nil {
		return ledger.Result{}, err
	}

	l.logger.Info().Str("tx", tx.Hash().Hex()).Str("to", to.Hex()).Str("wei", value.String()).Msg("transfer submitted")

	res := ledger.Result{Reference: tx.Hash().Hex()}
	if l.opts.WaitMined {
		mined, err := l.waitMined(ctx, tx.Hash())
		if err != nil {
			return res, err
		}
		if !mined {
			return res, fmt.Errorf("%w: %s not mined within %s", ledger.ErrTransferUnconfirmed, tx.Hash().Hex(), l.opts.Timeout)
		}
	}

	res.CommittedAt = time.Now().UTC()
	return res, nil
}

func (l *Ledger) signTransfer(ctx context.Context, to common.Address, value *big.Int) (*types.Transaction, error) {
	chainID, err := l.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("read chain id: %w", err)
	}
	head, err := l.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("read latest header: %w", err)
	}
	tip, err := l.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas tip: %w", err)
	}

	feeCap := new(big.Int).Set(tip)
	if head.BaseFee != nil {
		feeCap.Add(feeCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	}

	maxCost := new(big.Int).Mul(feeCap, new(big.Int).SetUint64(l.opts.GasLimit))
	maxCost.Add(maxCost, value)
	balance, err := l.backend.BalanceAt(ctx, l.signer, nil)
	if err != nil {
		return nil, fmt.Errorf("read signer balance: %w", err)
	}
	if balance.Cmp(maxCost) < 0 {
		return nil, fmt.Errorf("%w: have %s wei, need up to %s wei", ledger.ErrInsufficientBalance, balance, maxCost)
	}

	nonce, err := l.backend.PendingNonceAt(ctx, l.signer)
	if err != nil {
		return nil, fmt.Errorf("read pending nonce: %w", err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       l.opts.GasLimit,
		To:        &to,
		Value:     value,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), l.key)
	if err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	return signed, nil
}

// waitMined polls for the receipt until ctx ends. Receipt lookups can fail
// transiently (not yet indexed, node hiccups), so every lookup error is retried.
// It reports false when the deadline passes without a receipt; an error means
// the transaction was mined and reverted.
func (l *Ledger) waitMined(ctx context.Context, hash common.Hash) (bool, error) {
	ticker := time.NewTicker(l.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := l.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return true, fmt.Errorf("transaction %s reverted in block %s", hash.Hex(), receipt.BlockNumber)
			}
			return true, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			l.logger.Debug().Err(err).Str("tx", hash.Hex()).Msg("receipt not available yet")
		}

		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

// Now reads the latest block timestamp, so freshness is judged by chain time.
func (l *Ledger) Now(ctx context.Context) (time.Time, error) {
	head, err := l.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return time.Time{}, fmt.Errorf("read latest header: %w", err)
	}
	return time.Unix(int64(head.Time), 0).UTC(), nil
}

var (
	_ ledger.Ledger = (*Ledger)(nil)
	_ oracle.Clock  = (*Ledger)(nil)
)
