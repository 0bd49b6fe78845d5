/*

This file contains threshold rules, alert records and the notification
envelope handed to transports.

*/

package types

import (
	"fmt"
	"time"
)

// Severity of a threshold rule and the alerts it produces.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Operator is a threshold comparison operator.
type Operator string

const (
	OpLT Operator = "<"
	OpLE Operator = "<="
	OpGT Operator = ">"
	OpGE Operator = ">="
	OpEQ Operator = "="
)

// Compare evaluates "value op threshold". Unknown operators never match.
func (op Operator) Compare(value, threshold float64) bool {
	switch op {
	case OpLT:
		return value < threshold
	case OpLE:
		return value <= threshold
	case OpGT:
		return value > threshold
	case OpGE:
		return value >= threshold
	case OpEQ:
		return value == threshold
	}
	return false
}

// ThresholdRule triggers alerts when a sample value satisfies the comparison.
// AssetSymbol is empty for global rules; per-asset rules take precedence over
// global rules for the same (metric, operator).
type ThresholdRule struct {
	ID             int64     `json:"id,omitempty"`
	AssetSymbol    string    `json:"asset_symbol,omitempty"`
	MetricName     string    `json:"metric_name"`
	Operator       Operator  `json:"operator"`
	ThresholdValue float64   `json:"threshold_value"`
	Severity       Severity  `json:"severity"`
	Enabled        bool      `json:"enabled"`
	CreatedAt      time.Time `json:"created_at,omitempty"`
}

// Alert is one threshold breach. Rows are created pending (Notified false)
// and move to notified or permanently failed; they are never mutated after
// notification.
type Alert struct {
	ID                  int64     `json:"id"`
	AssetSymbol         string    `json:"asset_symbol"`
	MetricName          string    `json:"metric_name"`
	Value               float64   `json:"value"`
	ThresholdValue      float64   `json:"threshold_value"`
	Operator            Operator  `json:"operator"`
	Severity            Severity  `json:"severity"`
	Message             string    `json:"message"`
	Chain               Chain     `json:"chain,omitempty"`
	Notified            bool      `json:"notified"`
	NotificationChannel string    `json:"notification_channel,omitempty"`
	SuppressedCount     int       `json:"suppressed_count"`
	DeliveryAttempts    int       `json:"delivery_attempts"`
	Failed              bool      `json:"failed"`
	FailureReason       string    `json:"failure_reason,omitempty"`
	TriggeredAt         time.Time `json:"triggered_at"`
}

// NotificationEnvelope is the stable message contract handed to transports.
// Transport-specific rendering happens beyond this boundary.
type NotificationEnvelope struct {
	Severity        Severity  `json:"severity"`
	AssetSymbol     string    `json:"asset_symbol"`
	MetricName      string    `json:"metric_name"`
	Value           float64   `json:"value"`
	ThresholdValue  float64   `json:"threshold_value"`
	Operator        Operator  `json:"operator"`
	TriggeredAt     time.Time `json:"triggered_at"`
	Chain           Chain     `json:"chain,omitempty"`
	SuppressedCount int       `json:"suppressed_count,omitempty"`
}

// Summary renders the one-line human form of the envelope.
func (e NotificationEnvelope) Summary() string {
	s := fmt.Sprintf("%s %s", e.AssetSymbol, e.MetricName)
	if e.Chain != "" {
		s += fmt.Sprintf(" (%s)", e.Chain)
	}
	s += fmt.Sprintf(": %.4f %s %v [%s]", e.Value, e.Operator, e.ThresholdValue, e.Severity)
	if e.SuppressedCount > 0 {
		s += fmt.Sprintf(" (+%d suppressed)", e.SuppressedCount)
	}
	return s
}
