package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/types"
	"github.com/rs/zerolog/log"
)

// Threshold and alert persistence.

// SeedThresholds inserts the built-in rules, skipping any that already exist
// (the unique rule index makes this idempotent).
func SeedThresholds(rules []types.ThresholdRule) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	inserted := 0
	for _, r := range rules {
		res, err := DB.Exec(`
			INSERT INTO morpho.rm_alert_thresholds (asset_symbol, metric_name, operator, threshold_value, severity, enabled)
			VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6)
			ON CONFLICT (COALESCE(asset_symbol, ''), metric_name, operator, threshold_value) DO NOTHING
		`, r.AssetSymbol, r.MetricName, string(r.Operator), r.ThresholdValue, string(r.Severity), r.Enabled)
		if err != nil {
			return inserted, storageErr("seed threshold", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// AddThreshold inserts a custom rule. Returns 0 without error when an
// identical rule already exists.
func AddThreshold(rule types.ThresholdRule) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	var id int64
	err := DB.QueryRow(`
		INSERT INTO morpho.rm_alert_thresholds (asset_symbol, metric_name, operator, threshold_value, severity, enabled)
		VALUES (NULLIF($1, ''), $2, $3, $4, $5, $6)
		ON CONFLICT (COALESCE(asset_symbol, ''), metric_name, operator, threshold_value) DO NOTHING
		RETURNING id
	`, rule.AssetSymbol, rule.MetricName, string(rule.Operator), rule.ThresholdValue, string(rule.Severity), rule.Enabled).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storageErr("add threshold", err)
	}
	return id, nil
}

// SetThresholdEnabled flips a rule on or off.
func SetThresholdEnabled(id int64, enabled bool) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(`UPDATE morpho.rm_alert_thresholds SET enabled = $2 WHERE id = $1`, id, enabled); err != nil {
		return storageErr("set threshold enabled", err)
	}
	return nil
}

// ListThresholds returns every rule, enabled or not, for catalog reloads.
func ListThresholds() ([]types.ThresholdRule, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`
		SELECT id, COALESCE(asset_symbol, ''), metric_name, operator, threshold_value, severity, enabled, created_at
		FROM morpho.rm_alert_thresholds
		ORDER BY metric_name, operator, threshold_value
	`)
	if err != nil {
		return nil, storageErr("list thresholds", err)
	}
	defer rows.Close()

	var rules []types.ThresholdRule
	for rows.Next() {
		var r types.ThresholdRule
		var op, sev string
		if err := rows.Scan(&r.ID, &r.AssetSymbol, &r.MetricName, &op, &r.ThresholdValue, &sev, &r.Enabled, &r.CreatedAt); err != nil {
			log.Error().Err(err).Msg("Failed to scan threshold row")
			continue
		}
		r.Operator = types.Operator(op)
		r.Severity = types.Severity(sev)
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// InsertAlert creates a pending alert row and returns its ID.
func InsertAlert(alert types.Alert) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	triggeredAt := alert.TriggeredAt
	if triggeredAt.IsZero() {
		triggeredAt = time.Now().UTC()
	}

	var id int64
	err := DB.QueryRow(`
		INSERT INTO morpho.rm_alerts_log
			(asset_symbol, metric_name, value, threshold_value, operator, severity, message, chain, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id
	`, alert.AssetSymbol, alert.MetricName, alert.Value, alert.ThresholdValue,
		string(alert.Operator), string(alert.Severity), alert.Message, string(alert.Chain), triggeredAt).Scan(&id)
	if err != nil {
		return 0, storageErr("insert alert", err)
	}
	return id, nil
}

// LastAlertForRule returns the most recent alert for a rule tuple triggered
// at or after since, or nil. This backs the suppression-window check.
func LastAlertForRule(assetSymbol, metricName string, operator types.Operator, thresholdValue float64, severity types.Severity, since time.Time) (*types.Alert, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	row := DB.QueryRow(`
		SELECT id, asset_symbol, metric_name, value, threshold_value, operator, severity,
			COALESCE(message, ''), COALESCE(chain, ''), notified, COALESCE(notification_channel, ''),
			suppressed_count, delivery_attempts, failed, COALESCE(failure_reason, ''), triggered_at
		FROM morpho.rm_alerts_log
		WHERE asset_symbol = $1 AND metric_name = $2 AND operator = $3
			AND threshold_value = $4 AND severity = $5 AND triggered_at >= $6
		ORDER BY triggered_at DESC
		LIMIT 1
	`, assetSymbol, metricName, string(operator), thresholdValue, string(severity), since)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("last alert for rule", err)
	}
	return alert, nil
}

// IncrementSuppressed bumps the suppressed-firings counter on the most recent
// unnotified alert of a rule tuple. Returns false when every alert of the
// tuple has already been notified.
func IncrementSuppressed(assetSymbol, metricName string, operator types.Operator, thresholdValue float64, severity types.Severity) (bool, error) {
	if DB == nil {
		return false, fmt.Errorf("database not initialized")
	}

	res, err := DB.Exec(`
		UPDATE morpho.rm_alerts_log
		SET suppressed_count = suppressed_count + 1
		WHERE id = (
			SELECT id FROM morpho.rm_alerts_log
			WHERE asset_symbol = $1 AND metric_name = $2 AND operator = $3
				AND threshold_value = $4 AND severity = $5 AND notified = FALSE AND failed = FALSE
			ORDER BY triggered_at DESC
			LIMIT 1
		)
	`, assetSymbol, metricName, string(operator), thresholdValue, string(severity))
	if err != nil {
		return false, storageErr("increment suppressed", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// PendingAlerts returns undelivered, unfailed alerts ordered critical-first
// then oldest-first, the order the notifier drains them in.
func PendingAlerts(limit int) ([]types.Alert, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := DB.Query(`
		SELECT id, asset_symbol, metric_name, value, threshold_value, operator, severity,
			COALESCE(message, ''), COALESCE(chain, ''), notified, COALESCE(notification_channel, ''),
			suppressed_count, delivery_attempts, failed, COALESCE(failure_reason, ''), triggered_at
		FROM morpho.rm_alerts_log
		WHERE notified = FALSE AND failed = FALSE
		ORDER BY
			CASE severity WHEN 'critical' THEN 1 WHEN 'warning' THEN 2 ELSE 3 END,
			triggered_at ASC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, storageErr("pending alerts", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

// MarkAlertNotified finalizes a delivered alert with its channel.
func MarkAlertNotified(id int64, channel string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(`
		UPDATE morpho.rm_alerts_log
		SET notified = TRUE, notification_channel = $2
		WHERE id = $1
	`, id, channel); err != nil {
		return storageErr("mark alert notified", err)
	}
	return nil
}

// IncrementDeliveryAttempts records one failed delivery and returns the new
// attempt count.
func IncrementDeliveryAttempts(id int64) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	var attempts int
	err := DB.QueryRow(`
		UPDATE morpho.rm_alerts_log
		SET delivery_attempts = delivery_attempts + 1
		WHERE id = $1
		RETURNING delivery_attempts
	`, id).Scan(&attempts)
	if err != nil {
		return 0, storageErr("increment delivery attempts", err)
	}
	return attempts, nil
}

// MarkAlertFailed permanently fails an alert with a reason code.
func MarkAlertFailed(id int64, reason string) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(`
		UPDATE morpho.rm_alerts_log
		SET failed = TRUE, failure_reason = $2
		WHERE id = $1
	`, id, reason); err != nil {
		return storageErr("mark alert failed", err)
	}
	return nil
}

// ActiveAlerts returns alerts triggered within the last 24 hours, the same
// window as the rm_active_alerts view.
func ActiveAlerts(severity types.Severity) ([]types.Alert, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, asset_symbol, metric_name, value, threshold_value, operator, severity,
			COALESCE(message, ''), COALESCE(chain, ''), notified, COALESCE(notification_channel, ''),
			suppressed_count, delivery_attempts, failed, COALESCE(failure_reason, ''), triggered_at
		FROM morpho.rm_active_alerts
	`
	var args []any
	if severity != "" {
		query += ` WHERE severity = $1`
		args = append(args, string(severity))
	}
	query += ` ORDER BY triggered_at DESC`

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, storageErr("active alerts", err)
	}
	defer rows.Close()

	return collectAlerts(rows)
}

func scanAlert(row rowScanner) (*types.Alert, error) {
	var alert types.Alert
	var op, sev, chain string
	err := row.Scan(&alert.ID, &alert.AssetSymbol, &alert.MetricName, &alert.Value, &alert.ThresholdValue,
		&op, &sev, &alert.Message, &chain, &alert.Notified, &alert.NotificationChannel,
		&alert.SuppressedCount, &alert.DeliveryAttempts, &alert.Failed, &alert.FailureReason, &alert.TriggeredAt)
	if err != nil {
		return nil, err
	}
	alert.Operator = types.Operator(op)
	alert.Severity = types.Severity(sev)
	alert.Chain = types.Chain(chain)
	return &alert, nil
}

func collectAlerts(rows *sql.Rows) ([]types.Alert, error) {
	var alerts []types.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan alert row")
			continue
		}
		alerts = append(alerts, *alert)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("alert rows iteration", err)
	}
	return alerts, nil
}
