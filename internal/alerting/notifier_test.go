package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func testNote() Notification {
	return Notification{
		CommittedAt:     time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
		FiatAmount:      100,
		Price:           decimal.RequireFromString("150"),
		Mode:            "instant",
		Amount:          decimal.RequireFromString("0.666666666"),
		AmountBaseUnits: 666_666_666,
		Source:          "treasury",
		Destination:     "merchant",
		Reference:       "ref-1",
	}
}

func TestTelegramNotifierSuccess(t *testing.T) {
	received := make(map[string]string)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottoken/sendMessage" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testNote()); err != nil {
		t.Fatalf("Notify should succeed: %v", err)
	}

	if received["chat_id"] != "chat" {
		t.Fatalf("chat_id mismatch: %#v", received)
	}
	for _, want := range []string{"100 USD", "666666666 base units", "merchant", "ref-1"} {
		if !strings.Contains(received["text"], want) {
			t.Fatalf("message should mention %q:\n%s", want, received["text"])
		}
	}
}

func TestTelegramNotifierError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testNote()); err == nil {
		t.Fatal("ok=false should fail")
	}
}

func TestTelegramNotifierHTTPStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	notifier := NewTelegramNotifier("token", "chat", srv.URL, time.Second, zerolog.Nop())
	if err := notifier.Notify(context.Background(), testNote()); err == nil {
		t.Fatal("non-2xx status should fail")
	}
}
