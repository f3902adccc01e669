package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"fiatsend/internal/convert"
	"fiatsend/internal/ledger"
	"fiatsend/internal/oracle"
	"fiatsend/internal/service"
)

const solUSD = "0xef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"

var testNow = time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC)

type clockAt time.Time

func (c clockAt) Now(context.Context) (time.Time, error) { return time.Time(c), nil }

type testEnv struct {
	router http.Handler
	source *oracle.StaticSource
	ledger *ledger.Memory
	feed   oracle.FeedID
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mem := ledger.NewMemory(map[ledger.Account]uint64{"treasury": 1_000_000_000})
	return newTestEnvWith(t, mem, mem)
}

func newTestEnvWith(t *testing.T, l ledger.Ledger, mem *ledger.Memory) *testEnv {
	t.Helper()
	feed, err := oracle.ResolveFeedID(solUSD)
	require.NoError(t, err)

	src := oracle.NewStaticSource(func() time.Time { return testNow })
	src.Put(oracle.Observation{
		Feed:       feed,
		Price:      convert.Price{Mantissa: 15_000_000_000, Exponent: -8},
		ObservedAt: testNow.Add(-10 * time.Second),
	})
	svc := service.New(service.Options{
		FeedID:           feed,
		MaxAge:           time.Hour,
		BaseUnitScale:    1_000_000_000,
		RejectZeroAmount: true,
		Payer:            "treasury",
	},
		oracle.NewAcquirer(src, 0, zerolog.Nop()),
		ledger.NewAuthorizer(l, zerolog.Nop()),
		clockAt(testNow),
		nil,
		zerolog.Nop(),
	)

	return &testEnv{
		router: NewRouter(svc, Options{History: mem}, zerolog.Nop()),
		source: src,
		ledger: mem,
		feed:   feed,
	}
}

func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, httptest.NewRequest(method, target, &buf))
	return rec
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestQuoteInstant(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/quote?usd=100", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp quoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, uint64(666_666_666), resp.AmountBaseUnits)
	require.Equal(t, "instant", resp.Mode)
	require.Equal(t, "150", resp.Price.String())
	require.Equal(t, 10.0, resp.AgeSeconds)
	require.Zero(t, env.ledger.Balance("merchant"), "quotes must not move value")
}

func TestQuoteWindowed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/v1/quote?usd=100&window=300", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp quoteResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "twap", resp.Mode)
	require.Equal(t, uint64(300), resp.WindowSeconds)
	require.NotNil(t, resp.WindowStart)
}

func TestQuoteErrors(t *testing.T) {
	cases := []struct {
		name   string
		target string
		status int
		kind   string
	}{
		{"missing amount", "/v1/quote", http.StatusBadRequest, "bad_request"},
		{"fractional amount", "/v1/quote?usd=1.5", http.StatusBadRequest, "bad_request"},
		{"negative amount", "/v1/quote?usd=-1", http.StatusBadRequest, "bad_request"},
		{"zero amount", "/v1/quote?usd=0", http.StatusBadRequest, "invalid_amount"},
		{"zero window", "/v1/quote?usd=1&window=0", http.StatusBadRequest, "invalid_window"},
		{"window too long", "/v1/quote?usd=1&window=601", http.StatusBadRequest, "invalid_window"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newTestEnv(t)
			rec := env.do(t, http.MethodGet, tc.target, nil)
			require.Equal(t, tc.status, rec.Code, rec.Body.String())

			var resp errorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			require.Equal(t, tc.kind, resp.Kind)
		})
	}
}

func TestQuoteStalePrice(t *testing.T) {
	env := newTestEnv(t)
	env.source.Put(oracle.Observation{
		Feed:       env.feed,
		Price:      convert.Price{Mantissa: 15_000_000_000, Exponent: -8},
		ObservedAt: testNow.Add(-time.Hour - time.Second),
	})

	rec := env.do(t, http.MethodGet, "/v1/quote?usd=100", nil)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestQuoteInvalidPrice(t *testing.T) {
	env := newTestEnv(t)
	env.source.Put(oracle.Observation{Feed: env.feed, Price: convert.Price{Mantissa: 0, Exponent: -8}})

	rec := env.do(t, http.MethodGet, "/v1/quote?usd=100", nil)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSendTransfer(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/transfers", map[string]any{"usd": 100, "destination": "merchant"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp receiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "treasury", resp.Source)
	require.Equal(t, "committed", resp.Status)
	require.NotNil(t, resp.CommittedAt)
	require.NotEmpty(t, resp.Reference)
	require.Equal(t, uint64(666_666_666), env.ledger.Balance("merchant"))
	require.Equal(t, uint64(333_333_334), env.ledger.Balance("treasury"))

	list := env.do(t, http.MethodGet, "/v1/transfers?limit=5", nil)
	require.Equal(t, http.StatusOK, list.Code)
	var records []transferRecord
	require.NoError(t, json.Unmarshal(list.Body.Bytes(), &records))
	require.Len(t, records, 1)
	require.Equal(t, resp.Reference, records[0].ID)
}

type pendingLedger struct{}

func (pendingLedger) Transfer(context.Context, ledger.Intent) (ledger.Result, error) {
	return ledger.Result{Reference: "0xpending"}, fmt.Errorf("%w: 0xpending not mined within 2m0s", ledger.ErrTransferUnconfirmed)
}

func TestSendUnconfirmedIsAccepted(t *testing.T) {
	env := newTestEnvWith(t, pendingLedger{}, ledger.NewMemory(nil))
	rec := env.do(t, http.MethodPost, "/v1/transfers", map[string]any{"usd": 100, "destination": "merchant"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp receiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "pending", resp.Status)
	require.Equal(t, "0xpending", resp.Reference)
	require.Equal(t, uint64(666_666_666), resp.AmountBaseUnits)
	require.Nil(t, resp.CommittedAt)
	require.Contains(t, resp.Error, "unconfirmed")
}

func TestSendRejectedByLedger(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/transfers", map[string]any{"usd": 1000, "destination": "merchant"})
	require.Equal(t, http.StatusPaymentRequired, rec.Code, rec.Body.String())
	require.Equal(t, uint64(1_000_000_000), env.ledger.Balance("treasury"))
}

func TestSendWindowZeroLeavesBalances(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/transfers", map[string]any{"usd": 1, "destination": "merchant", "window_seconds": 0})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, uint64(1_000_000_000), env.ledger.Balance("treasury"))
}

func TestSendRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/v1/transfers", map[string]any{"usd": 1, "destination": "merchant", "usd_cents": 5})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
