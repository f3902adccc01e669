package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"fiatsend/internal/convert"
	"fiatsend/internal/oracle"
)

const (
	latestPricePath = "/v2/updates/price/latest"
	latestTWAPPath  = "/v2/updates/twap/%d/latest"

	defaultBaseURL = "https://hermes.pyth.network"
)

// Options parameterise the Hermes client.
type Options struct {
	BaseURL           string
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	Burst             int
}

// Client reads parsed price and TWAP updates from a Pyth Hermes endpoint.
type Client struct {
	opts    Options
	logger  zerolog.Logger
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
}

// New constructs a Hermes client.
func New(opts Options, logger zerolog.Logger) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		opts:    opts,
		logger:  logger.With().Str("component", "hermes_source").Logger(),
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
		limiter: rate.NewLimiter(limit, burst),
	}
}

// LatestPrice fetches the latest published price for feed.
func (c *Client) LatestPrice(ctx context.Context, feed oracle.FeedID) (oracle.Observation, error) {
	var res priceUpdateResponse
	if err := c.get(ctx, latestPricePath, feed, &res); err != nil {
		return oracle.Observation{}, err
	}
	if len(res.Parsed) == 0 {
		return oracle.Observation{}, fmt.Errorf("%w: %s", oracle.ErrUnknownFeed, feed)
	}

	entry := res.Parsed[0]
	id, err := oracle.ResolveFeedID(entry.ID)
	if err != nil {
		return oracle.Observation{}, fmt.Errorf("parse response feed id: %w", err)
	}
	price, err := entry.Price.toPrice()
	if err != nil {
		return oracle.Observation{}, err
	}

	return oracle.Observation{
		Feed:       id,
		Price:      price,
		ObservedAt: time.Unix(entry.Price.PublishTime, 0).UTC(),
	}, nil
}

// LatestTWAP fetches the time-weighted average over the trailing window.
func (c *Client) LatestTWAP(ctx context.Context, feed oracle.FeedID, window time.Duration) (oracle.Observation, error) {
	seconds := int64(window / time.Second)
	if seconds <= 0 {
		return oracle.Observation{}, fmt.Errorf("%w: %s", oracle.ErrInvalidWindow, window)
	}

	var res twapUpdateResponse
	if err := c.get(ctx, fmt.Sprintf(latestTWAPPath, seconds), feed, &res); err != nil {
		return oracle.Observation{}, err
	}
	if len(res.Parsed) == 0 {
		return oracle.Observation{}, fmt.Errorf("%w: %s", oracle.ErrUnknownFeed, feed)
	}

	entry := res.Parsed[0]
	id, err := oracle.ResolveFeedID(entry.ID)
	if err != nil {
		return oracle.Observation{}, fmt.Errorf("parse response feed id: %w", err)
	}
	price, err := entry.TWAP.toPrice()
	if err != nil {
		return oracle.Observation{}, err
	}

	return oracle.Observation{
		Feed:        id,
		Price:       price,
		WindowStart: time.Unix(entry.StartTimestamp, 0).UTC(),
		ObservedAt:  time.Unix(entry.EndTimestamp, 0).UTC(),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, feed oracle.FeedID, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("hermes rate limit: %w", err)
	}

	query := url.Values{}
	query.Set("ids[]", feed.Bare())
	query.Set("parsed", "true")
	query.Set("encoding", "hex")
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if ua := strings.TrimSpace(c.opts.UserAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	} else {
		req.Header.Set("User-Agent", "fiatsend/1.0")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return parseHTTPError(resp.StatusCode, feed, payload)
	}

	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("decode hermes response: %w", err)
	}

	c.logger.Debug().Str("path", path).Str("feed", feed.Hex()).Msg("hermes update received")
	return nil
}

type rawPrice struct {
	Price       string `json:"price"`
	Expo        int32  `json:"expo"`
	PublishTime int64  `json:"publish_time"`
}

func (p rawPrice) toPrice() (convert.Price, error) {
	mantissa, err := strconv.ParseInt(strings.TrimSpace(p.Price), 10, 64)
	if err != nil {
		return convert.Price{}, fmt.Errorf("parse price mantissa %q: %w", p.Price, err)
	}
	return convert.Price{Mantissa: mantissa, Exponent: p.Expo}, nil
}

type priceUpdateResponse struct {
	Parsed []struct {
		ID    string   `json:"id"`
		Price rawPrice `json:"price"`
	} `json:"parsed"`
}

type twapUpdateResponse struct {
	Parsed []struct {
		ID             string   `json:"id"`
		StartTimestamp int64    `json:"start_timestamp"`
		EndTimestamp   int64    `json:"end_timestamp"`
		TWAP           rawPrice `json:"twap"`
	} `json:"parsed"`
}

func parseHTTPError(status int, feed oracle.FeedID, payload []byte) error {
	msg := strings.TrimSpace(string(payload))
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %s", oracle.ErrUnknownFeed, feed, msg)
	}
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(msg), "not found") {
		return fmt.Errorf("%w: %s: %s", oracle.ErrUnknownFeed, feed, msg)
	}
	if msg != "" {
		return fmt.Errorf("hermes api error (%d): %s", status, msg)
	}
	return errors.New("hermes api error (" + strconv.Itoa(status) + ")")
}

var _ oracle.Source = (*Client)(nil)
