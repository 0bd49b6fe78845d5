// Package notify implements the notification transports. Only the message
// contract lives in the core; everything beyond the envelope is
// transport-specific rendering.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

// Transport delivers one notification envelope to an external channel.
type Transport interface {
	Name() string
	Send(ctx context.Context, envelope types.NotificationEnvelope) error
}

// TransportError classifies a delivery failure. Retriable failures keep the
// alert pending; terminal failures mark it failed.
type TransportError struct {
	Channel   string
	Retriable bool
	Cause     error
}

func (e *TransportError) Error() string {
	kind := "terminal"
	if e.Retriable {
		kind = "retriable"
	}
	return fmt.Sprintf("%s transport failed (%s): %v", e.Channel, kind, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// classifyStatus maps an HTTP status into the retry classification.
func classifyStatus(channel string, status int) error {
	err := fmt.Errorf("unexpected status %d", status)
	retriable := status >= 500 || status == http.StatusTooManyRequests
	return &TransportError{Channel: channel, Retriable: retriable, Cause: err}
}

func newTransportHTTPClient() *http.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = 1
	c.RetryWaitMin = 300 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	c.Logger = nil
	return c.StandardClient()
}
