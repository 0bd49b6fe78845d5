/*

This file contains the notifier: it drains pending alerts on the critical
cadence, formats the stable envelope, and hands it to the configured
transports. Retriable transport failures keep the alert pending up to the
per-alert retry cap; terminal failures and exhausted retries mark the alert
permanently failed with a reason code.

*/

package alerting

import (
	"context"
	"errors"

	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/metrics"
	"github.com/avantgarde-labs/riskmon/internal/notify"
	"github.com/avantgarde-labs/riskmon/internal/state"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var notifierLogger = logger.GetForComponent("notifier")

const drainBatchSize = 100

// Notifier delivers pending alerts through an ordered transport list.
type Notifier struct {
	transports []notify.Transport
	retryCap   int
}

// NewNotifier builds a notifier. With no transports configured the drain is
// a no-op and alerts stay pending.
func NewNotifier(retryCap int, transports ...notify.Transport) *Notifier {
	return &Notifier{transports: transports, retryCap: retryCap}
}

// Drain makes one delivery pass over up to drainBatchSize pending alerts.
// Returns (delivered, failed).
func (n *Notifier) Drain(ctx context.Context) (int, int) {
	if len(n.transports) == 0 {
		return 0, 0
	}

	pending, err := state.PendingAlerts(drainBatchSize)
	if err != nil {
		notifierLogger.Error().Err(err).Msg("Failed to load pending alerts")
		return 0, 0
	}
	if len(pending) == 0 {
		return 0, 0
	}

	delivered, failed := 0, 0
	for _, alert := range pending {
		if ctx.Err() != nil {
			break
		}
		if n.deliver(ctx, alert) {
			delivered++
		} else {
			failed++
		}
	}

	notifierLogger.Info().
		Int("pending", len(pending)).
		Int("delivered", delivered).
		Int("failed", failed).
		Msg("Notifier drain complete")
	return delivered, failed
}

// deliver tries each transport in order until one accepts the envelope.
func (n *Notifier) deliver(ctx context.Context, alert types.Alert) bool {
	envelope := types.NotificationEnvelope{
		Severity:        alert.Severity,
		AssetSymbol:     alert.AssetSymbol,
		MetricName:      alert.MetricName,
		Value:           alert.Value,
		ThresholdValue:  alert.ThresholdValue,
		Operator:        alert.Operator,
		TriggeredAt:     alert.TriggeredAt.UTC(),
		Chain:           alert.Chain,
		SuppressedCount: alert.SuppressedCount,
	}

	var lastErr error
	terminalFailure := false
	for _, transport := range n.transports {
		err := transport.Send(ctx, envelope)
		if err == nil {
			if markErr := state.MarkAlertNotified(alert.ID, transport.Name()); markErr != nil {
				notifierLogger.Error().Err(markErr).Int64("alert", alert.ID).Msg("Delivered but failed to mark notified")
			}
			metrics.NotificationsSent.WithLabelValues(transport.Name(), "ok").Inc()
			return true
		}

		lastErr = err
		metrics.NotificationsSent.WithLabelValues(transport.Name(), "error").Inc()
		var te *notify.TransportError
		if errors.As(err, &te) && !te.Retriable {
			terminalFailure = true
		}
		notifierLogger.Error().
			Err(err).
			Int64("alert", alert.ID).
			Str("channel", transport.Name()).
			Msg("Notification transport failed")
	}

	if terminalFailure {
		n.fail(alert.ID, "transport_rejected: "+lastErr.Error())
		return false
	}

	attempts, err := state.IncrementDeliveryAttempts(alert.ID)
	if err != nil {
		notifierLogger.Error().Err(err).Int64("alert", alert.ID).Msg("Failed to record delivery attempt")
		return false
	}
	if attempts >= n.retryCap {
		n.fail(alert.ID, "retry_cap_exhausted")
	}
	return false
}

func (n *Notifier) fail(alertID int64, reason string) {
	if err := state.MarkAlertFailed(alertID, reason); err != nil {
		notifierLogger.Error().Err(err).Int64("alert", alertID).Msg("Failed to mark alert failed")
		return
	}
	notifierLogger.Warn().Int64("alert", alertID).Str("reason", reason).Msg("Alert permanently failed")
}
