package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fiatsend/internal/oracle"
)

const solUSD = "ef0d8b6fda2ceba41da15d4095d1da392a0d2f8ed0c6c7bc0f4cfac8c280b56d"

func testFeed(t *testing.T) oracle.FeedID {
	t.Helper()
	id, err := oracle.ResolveFeedID(solUSD)
	if err != nil {
		t.Fatalf("resolve feed: %v", err)
	}
	return id
}

func newTestClient(url string) *Client {
	return New(Options{BaseURL: url, Timeout: time.Second, UserAgent: "test"}, zerolog.Nop())
}

func TestLatestPriceSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != latestPricePath {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ids[]"); got != solUSD {
			t.Fatalf("ids[] should carry the bare feed id, got %q", got)
		}
		if r.URL.Query().Get("parsed") != "true" {
			t.Fatal("parsed=true must be requested")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"parsed": []map[string]any{{
				"id": solUSD,
				"price": map[string]any{
					"price":        "15000000000",
					"conf":         "1200000",
					"expo":         -8,
					"publish_time": 1_767_366_245,
				},
			}},
		})
	}))
	defer srv.Close()

	obs, err := newTestClient(srv.URL).LatestPrice(context.Background(), testFeed(t))
	if err != nil {
		t.Fatalf("successful response should not fail: %v", err)
	}
	if obs.Mantissa != 15_000_000_000 || obs.Exponent != -8 {
		t.Fatalf("unexpected price %d e%d", obs.Mantissa, obs.Exponent)
	}
	if obs.ObservedAt.Unix() != 1_767_366_245 {
		t.Fatalf("publish_time not mapped: %s", obs.ObservedAt)
	}
	if obs.Feed != testFeed(t) {
		t.Fatalf("feed id not mapped: %s", obs.Feed)
	}
}

func TestLatestTWAPSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v2/updates/twap/300/latest" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"parsed": []map[string]any{{
				"id":              solUSD,
				"start_timestamp": 1_767_365_945,
				"end_timestamp":   1_767_366_245,
				"twap": map[string]any{
					"price":        "14950000000",
					"conf":         "900000",
					"expo":         -8,
					"publish_time": 1_767_366_245,
				},
				"down_slots_ratio": "0",
			}},
		})
	}))
	defer srv.Close()

	obs, err := newTestClient(srv.URL).LatestTWAP(context.Background(), testFeed(t), 300*time.Second)
	if err != nil {
		t.Fatalf("successful response should not fail: %v", err)
	}
	if obs.Mantissa != 14_950_000_000 {
		t.Fatalf("unexpected mantissa %d", obs.Mantissa)
	}
	if got := obs.ObservedAt.Sub(obs.WindowStart); got != 300*time.Second {
		t.Fatalf("window span should be 300s, got %s", got)
	}
}

func TestLatestPriceUnknownFeed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Price ids not found: " + solUSD))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).LatestPrice(context.Background(), testFeed(t))
	if !errors.Is(err, oracle.ErrUnknownFeed) {
		t.Fatalf("404 should map to ErrUnknownFeed, got %v", err)
	}
}

func TestLatestPriceEmptyParsed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"parsed":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).LatestTWAP(context.Background(), testFeed(t), time.Minute)
	if !errors.Is(err, oracle.ErrUnknownFeed) {
		t.Fatalf("empty parsed list should map to ErrUnknownFeed, got %v", err)
	}
}

func TestLatestPriceServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).LatestPrice(context.Background(), testFeed(t))
	if err == nil {
		t.Fatal("HTTP 502 should fail")
	}
	if errors.Is(err, oracle.ErrUnknownFeed) {
		t.Fatal("server errors are not unknown feeds")
	}
}

func TestLatestPriceMalformedMantissa(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"parsed":[{"id":"` + solUSD + `","price":{"price":"1.5","expo":-8,"publish_time":1}}]}`))
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).LatestPrice(context.Background(), testFeed(t)); err == nil {
		t.Fatal("non-integer mantissa should fail")
	}
}
