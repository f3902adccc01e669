package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"fiatsend/internal/ledger"
	"fiatsend/internal/oracle"
	"fiatsend/internal/service"
)

const maxBodyBytes = 1 << 16

var errBadRequest = errors.New("bad request")

type handler struct {
	conv    Converter
	history ledger.History
	logger  zerolog.Logger
}

type quoteResponse struct {
	Feed            string          `json:"feed"`
	Mode            string          `json:"mode"`
	WindowSeconds   uint64          `json:"window_seconds,omitempty"`
	FiatAmount      uint64          `json:"fiat_amount"`
	Price           decimal.Decimal `json:"price"`
	PriceMantissa   int64           `json:"price_mantissa"`
	PriceExponent   int32           `json:"price_exponent"`
	ObservedAt      time.Time       `json:"observed_at"`
	WindowStart     *time.Time      `json:"window_start,omitempty"`
	AgeSeconds      float64         `json:"age_seconds"`
	AmountBaseUnits uint64          `json:"amount_base_units"`
	Amount          decimal.Decimal `json:"amount"`
}

type receiptResponse struct {
	quoteResponse
	Source      string    `json:"source"`
	Destination string    `json:"destination"`
	Reference   string     `json:"reference"`
	Status      string     `json:"status"`
	CommittedAt *time.Time `json:"committed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
}

type transferRequest struct {
	USD           uint64  `json:"usd"`
	Destination   string  `json:"destination"`
	Source        string  `json:"source"`
	WindowSeconds *uint64 `json:"window_seconds"`
}

type transferRecord struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	Destination     string    `json:"destination"`
	AmountBaseUnits uint64    `json:"amount_base_units"`
	CreatedAt       time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (h *handler) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *handler) quote(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	usd, err := parseAmount(query.Get("usd"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	mode, err := parseMode(query.Has("window"), query.Get("window"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	q, err := h.conv.Quote(r.Context(), usd, mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newQuoteResponse(q))
}

func (h *handler) send(w http.ResponseWriter, r *http.Request) {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	var body transferRequest
	if err := dec.Decode(&body); err != nil {
		h.writeError(w, fmt.Errorf("%w: decode body: %v", errBadRequest, err))
		return
	}

	mode := oracle.Instant()
	if body.WindowSeconds != nil {
		mode = oracle.Windowed(*body.WindowSeconds)
	}

	receipt, err := h.conv.Send(r.Context(), service.Request{
		FiatAmount:  body.USD,
		Mode:        mode,
		Source:      ledger.Account(body.Source),
		Destination: ledger.Account(body.Destination),
	})
	if errors.Is(err, ledger.ErrTransferUnconfirmed) {
		resp := newReceiptResponse(receipt)
		resp.Status = "pending"
		resp.Error = err.Error()
		writeJSON(w, http.StatusAccepted, resp)
		return
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	resp := newReceiptResponse(receipt)
	resp.Status = "committed"
	writeJSON(w, http.StatusCreated, resp)
}

func newReceiptResponse(r service.Receipt) receiptResponse {
	resp := receiptResponse{
		quoteResponse: newQuoteResponse(r.Quote),
		Source:        string(r.Source),
		Destination:   string(r.Destination),
		Reference:     r.Reference,
	}
	if !r.CommittedAt.IsZero() {
		at := r.CommittedAt
		resp.CommittedAt = &at
	}
	return resp
}

func (h *handler) listTransfers(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			h.writeError(w, fmt.Errorf("%w: limit must be between 1 and 500", errBadRequest))
			return
		}
		limit = n
	}

	transfers, err := h.history.ListRecentTransfers(r.Context(), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]transferRecord, 0, len(transfers))
	for _, t := range transfers {
		out = append(out, transferRecord{
			ID:              t.ID,
			Source:          string(t.Source),
			Destination:     string(t.Destination),
			AmountBaseUnits: t.AmountBaseUnits,
			CreatedAt:       t.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func newQuoteResponse(q service.Quote) quoteResponse {
	resp := quoteResponse{
		Feed:            q.Feed.Hex(),
		Mode:            q.Mode.Label(),
		WindowSeconds:   q.Mode.WindowSeconds,
		FiatAmount:      q.FiatAmount,
		Price:           q.Observation.Price.Decimal(),
		PriceMantissa:   q.Observation.Mantissa,
		PriceExponent:   q.Observation.Exponent,
		ObservedAt:      q.Observation.ObservedAt,
		AgeSeconds:      q.Age.Seconds(),
		AmountBaseUnits: q.AmountBaseUnits,
		Amount:          q.Amount(),
	}
	if !q.Observation.WindowStart.IsZero() {
		start := q.Observation.WindowStart
		resp.WindowStart = &start
	}
	return resp
}

// parseAmount accepts whole, non-negative fiat units only.
func parseAmount(raw string) (uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, fmt.Errorf("%w: usd is required", errBadRequest)
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: usd must be a whole number of dollars", errBadRequest)
	}
	return n, nil
}

func parseMode(present bool, raw string) (oracle.Mode, error) {
	if !present {
		return oracle.Instant(), nil
	}
	secs, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return oracle.Mode{}, fmt.Errorf("%w: window must be whole seconds", errBadRequest)
	}
	return oracle.Windowed(secs), nil
}

func statusFor(err error) (int, string) {
	if errors.Is(err, errBadRequest) {
		return http.StatusBadRequest, "bad_request"
	}
	kind := service.Kind(err)
	switch kind {
	case "invalid_amount", "invalid_destination", "missing_source", "invalid_window", "invalid_feed_format", "zero_amount":
		return http.StatusBadRequest, kind
	case "unknown_feed":
		return http.StatusNotFound, kind
	case "stale_price":
		return http.StatusConflict, kind
	case "invalid_price", "overflow":
		return http.StatusUnprocessableEntity, kind
	case "transfer_unconfirmed":
		return http.StatusAccepted, kind
	case "transfer_rejected":
		return http.StatusPaymentRequired, kind
	case "timeout":
		return http.StatusGatewayTimeout, kind
	default:
		return http.StatusBadGateway, kind
	}
}

func (h *handler) writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("kind", kind).Msg("request failed")
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
