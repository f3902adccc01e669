package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification describes a committed transfer.
type Notification struct {
	CommittedAt     time.Time
	FiatAmount      uint64
	Price           decimal.Decimal
	Mode            string
	Amount          decimal.Decimal
	AmountBaseUnits uint64
	Source          string
	Destination     string
	Reference       string
	Channels        []string
	AdditionalMsg   string
}

// Notifier delivers transfer notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes messages through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "notify_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered receipt.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram responded with status %d", resp.StatusCode)
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil && !result.OK {
		return fmt.Errorf("telegram returned ok=false: %s", result.Description)
	}

	n.logger.Info().Str("reference", note.Reference).
		Str("channels", strings.Join(note.Channels, ",")).
		Msg("transfer notification sent")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	builder.WriteString("[fiatsend transfer]\n")
	builder.WriteString(fmt.Sprintf("Committed: %s UTC\n", note.CommittedAt.UTC().Format(time.RFC3339)))
	builder.WriteString(fmt.Sprintf("Paid: %d USD (%s quote @ %s)\n", note.FiatAmount, note.Mode, note.Price.String()))
	builder.WriteString(fmt.Sprintf("Amount: %s (%d base units)\n", note.Amount.String(), note.AmountBaseUnits))
	builder.WriteString(fmt.Sprintf("From: %s\n", note.Source))
	builder.WriteString(fmt.Sprintf("To: %s\n", note.Destination))
	builder.WriteString(fmt.Sprintf("Ref: %s\n", note.Reference))
	if len(note.Channels) > 0 {
		builder.WriteString(fmt.Sprintf("Channels: %s\n", strings.Join(note.Channels, ",")))
	}
	if note.AdditionalMsg != "" {
		builder.WriteString(note.AdditionalMsg)
	}
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
