/*

This file contains the alert engine: every newly appended sample is checked
against the active threshold rules, breaches become pending alert rows, and
bursts inside the suppression window collapse onto the last unnotified alert
of the same rule tuple.

*/

package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/metrics"
	"github.com/avantgarde-labs/riskmon/internal/state"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var alertLogger = logger.GetForComponent("alert_engine")

// Engine evaluates samples against the threshold catalog.
type Engine struct {
	thresholds        *catalog.ThresholdCatalog
	suppressionWindow time.Duration
}

// NewEngine builds the alert engine over the shared threshold catalog.
func NewEngine(thresholds *catalog.ThresholdCatalog, suppressionWindow time.Duration) *Engine {
	return &Engine{thresholds: thresholds, suppressionWindow: suppressionWindow}
}

// ReloadThresholds re-reads the persisted rules and swaps the active set
// atomically. Called at startup and on an explicit reload signal.
func (e *Engine) ReloadThresholds() error {
	rules, err := state.ListThresholds()
	if err != nil {
		return fmt.Errorf("reload thresholds: %w", err)
	}
	e.thresholds.Reload(rules)
	alertLogger.Info().Int("rules", e.thresholds.Size()).Msg("Threshold catalog reloaded")
	return nil
}

// Evaluate checks one sample against every applicable rule and returns the
// number of alerts written. A warning and a critical rule firing on the same
// sample both produce rows; severities are never collapsed into each other.
func (e *Engine) Evaluate(ctx context.Context, sample types.MetricSample) (int, error) {
	rules := e.thresholds.Match(sample.AssetSymbol, sample.MetricName)
	if len(rules) == 0 {
		return 0, nil
	}

	written := 0
	for _, rule := range rules {
		if !rule.Operator.Compare(sample.Value, rule.ThresholdValue) {
			continue
		}

		triggeredAt := sample.RecordedAt
		if triggeredAt.IsZero() {
			triggeredAt = time.Now().UTC()
		}

		// Suppression: a firing of the same (asset, metric, operator,
		// threshold, severity) tuple inside the window is absorbed by the
		// previous alert rather than written again.
		since := triggeredAt.Add(-e.suppressionWindow)
		previous, err := state.LastAlertForRule(sample.AssetSymbol, sample.MetricName,
			rule.Operator, rule.ThresholdValue, rule.Severity, since)
		if err != nil {
			return written, err
		}
		if previous != nil {
			if _, err := state.IncrementSuppressed(sample.AssetSymbol, sample.MetricName,
				rule.Operator, rule.ThresholdValue, rule.Severity); err != nil {
				alertLogger.Error().Err(err).Msg("Failed to record suppressed firing")
			}
			metrics.AlertsSuppressed.Inc()
			alertLogger.Debug().
				Str("asset", sample.AssetSymbol).
				Str("metric", sample.MetricName).
				Str("severity", string(rule.Severity)).
				Msg("Alert suppressed within window")
			continue
		}

		alert := types.Alert{
			AssetSymbol:    sample.AssetSymbol,
			MetricName:     sample.MetricName,
			Value:          sample.Value,
			ThresholdValue: rule.ThresholdValue,
			Operator:       rule.Operator,
			Severity:       rule.Severity,
			Chain:          sample.Chain,
			Message:        formatAlertMessage(sample, rule),
			TriggeredAt:    triggeredAt,
		}
		if _, err := state.InsertAlert(alert); err != nil {
			return written, err
		}
		written++
		metrics.AlertsTriggered.WithLabelValues(string(rule.Severity)).Inc()

		alertLogger.Warn().
			Str("asset", sample.AssetSymbol).
			Str("metric", sample.MetricName).
			Float64("value", sample.Value).
			Float64("threshold", rule.ThresholdValue).
			Str("severity", string(rule.Severity)).
			Msg("Threshold breached")
	}
	return written, nil
}

func formatAlertMessage(sample types.MetricSample, rule types.ThresholdRule) string {
	msg := fmt.Sprintf("%s %s", sample.AssetSymbol, sample.MetricName)
	if sample.Chain != "" {
		msg += fmt.Sprintf(" (%s)", sample.Chain)
	}
	msg += fmt.Sprintf(": %.4f %s %v [%s]", sample.Value, rule.Operator, rule.ThresholdValue, rule.Severity)
	return msg
}
