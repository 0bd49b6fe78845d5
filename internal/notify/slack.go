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

// SlackTransport posts alerts to a Slack incoming webhook.
type SlackTransport struct {
	webhookURL string
	client     *http.Client
}

// NewSlackTransport builds the transport over a webhook URL.
func NewSlackTransport(webhookURL string) *SlackTransport {
	return &SlackTransport{webhookURL: webhookURL, client: newTransportHTTPClient()}
}

func (t *SlackTransport) Name() string {
	return "slack"
}

func (t *SlackTransport) Send(ctx context.Context, envelope types.NotificationEnvelope) error {
	color := "#439FE0"
	switch envelope.Severity {
	case types.SeverityCritical:
		color = "#D00000"
	case types.SeverityWarning:
		color = "#E8A317"
	}

	payload, err := json.Marshal(map[string]any{
		"attachments": []map[string]any{{
			"color": color,
			"title": fmt.Sprintf("[%s] %s %s", envelope.Severity, envelope.AssetSymbol, envelope.MetricName),
			"text":  envelope.Summary(),
			"ts":    envelope.TriggeredAt.Unix(),
			"footer": fmt.Sprintf("triggered %s",
				envelope.TriggeredAt.Format(time.RFC3339)),
		}},
	})
	if err != nil {
		return &TransportError{Channel: t.Name(), Retriable: false, Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(payload))
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
