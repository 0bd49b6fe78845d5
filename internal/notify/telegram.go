package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

// severityEmoji decorates the Telegram rendering per severity level.
var severityEmoji = map[types.Severity]string{
	types.SeverityCritical: "\U0001F6A8",
	types.SeverityWarning:  "⚠️",
	types.SeverityInfo:     "ℹ️",
}

// TelegramTransport posts alerts to a Telegram chat via the bot API.
type TelegramTransport struct {
	botToken string
	chatID   string
	client   *http.Client
}

// NewTelegramTransport builds the transport; empty credentials mean the
// caller should not register it.
func NewTelegramTransport(botToken, chatID string) *TelegramTransport {
	return &TelegramTransport{botToken: botToken, chatID: chatID, client: newTransportHTTPClient()}
}

func (t *TelegramTransport) Name() string {
	return "telegram"
}

func (t *TelegramTransport) Send(ctx context.Context, envelope types.NotificationEnvelope) error {
	text := fmt.Sprintf("%s *%s*\n%s\ntriggered: %s",
		severityEmoji[envelope.Severity],
		envelope.Severity,
		envelope.Summary(),
		envelope.TriggeredAt.Format(time.RFC3339),
	)

	payload, err := json.Marshal(map[string]string{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	if err != nil {
		return &TransportError{Channel: t.Name(), Retriable: false, Cause: err}
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Channel: t.Name(), Retriable: false, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return &TransportError{Channel: t.Name(), Retriable: true, Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(t.Name(), resp.StatusCode)
	}
	return nil
}
