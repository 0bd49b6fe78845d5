package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

func testEnvelope() types.NotificationEnvelope {
	return types.NotificationEnvelope{
		Severity:       types.SeverityCritical,
		AssetSymbol:    "WBTC",
		MetricName:     "por_ratio",
		Value:          0.97,
		ThresholdValue: 1.0,
		Operator:       types.OpLT,
		TriggeredAt:    time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC),
	}
}

func TestSlackTransportSend(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	transport := NewSlackTransport(server.URL)
	require.NoError(t, transport.Send(context.Background(), testEnvelope()))

	attachments, ok := received["attachments"].([]any)
	require.True(t, ok)
	require.Len(t, attachments, 1)
	first := attachments[0].(map[string]any)
	assert.Contains(t, first["title"], "WBTC")
	assert.Contains(t, first["text"], "por_ratio")
}

func TestSlackTransportClassifiesFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		retriable bool
	}{
		{"server error is retriable", http.StatusInternalServerError, true},
		{"rate limit is retriable", http.StatusTooManyRequests, true},
		{"bad request is terminal", http.StatusBadRequest, false},
		{"gone webhook is terminal", http.StatusNotFound, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			transport := NewSlackTransport(server.URL)
			err := transport.Send(context.Background(), testEnvelope())
			require.Error(t, err)

			var te *TransportError
			require.True(t, errors.As(err, &te))
			assert.Equal(t, tt.retriable, te.Retriable)
			assert.Equal(t, "slack", te.Channel)
		})
	}
}

func TestTelegramTransportName(t *testing.T) {
	// The bot API base URL is fixed, so Send is not exercised against a stub
	// here; only the channel name is checked.
	transport := NewTelegramTransport("token", "chat")
	assert.Equal(t, "telegram", transport.Name())
}
