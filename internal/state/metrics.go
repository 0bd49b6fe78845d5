package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/types"
	"github.com/rs/zerolog/log"
)

// Metric store: append-only time series with a latest-wins read side.
// Out-of-order appends are accepted; reads always resolve by max recorded_at,
// so a late write never regresses the latest view.

// AppendSample persists one metric sample. Total for valid input; only a
// storage outage fails, surfaced as ErrStorageUnavailable.
func AppendSample(sample types.MetricSample) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	var metadataJSON []byte
	if sample.Metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(sample.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal sample metadata: %w", err)
		}
	}

	recordedAt := sample.RecordedAt
	if recordedAt.IsZero() {
		recordedAt = time.Now().UTC()
	}

	_, err := DB.Exec(`
		INSERT INTO morpho.rm_metrics_history (asset_symbol, metric_name, value, chain, metadata, recorded_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`, sample.AssetSymbol, sample.MetricName, sample.Value, string(sample.Chain), metadataJSON, recordedAt)
	if err != nil {
		return storageErr("append sample", err)
	}
	return nil
}

// AppendSamples persists a batch inside one transaction. Either the whole
// batch lands or none of it does.
func AppendSamples(samples []types.MetricSample) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}
	if len(samples) == 0 {
		return 0, nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, storageErr("begin batch insert", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO morpho.rm_metrics_history (asset_symbol, metric_name, value, chain, metadata, recorded_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
	`)
	if err != nil {
		return 0, storageErr("prepare batch insert", err)
	}
	defer stmt.Close()

	for _, sample := range samples {
		var metadataJSON []byte
		if sample.Metadata != nil {
			metadataJSON, err = json.Marshal(sample.Metadata)
			if err != nil {
				return 0, fmt.Errorf("failed to marshal sample metadata: %w", err)
			}
		}
		recordedAt := sample.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now().UTC()
		}
		if _, err := stmt.Exec(sample.AssetSymbol, sample.MetricName, sample.Value, string(sample.Chain), metadataJSON, recordedAt); err != nil {
			return 0, storageErr("batch insert sample", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, storageErr("commit batch insert", err)
	}
	return len(samples), nil
}

// LatestMetric returns the max-timestamp sample for (asset, metric), or nil
// when no sample exists. Absence is not an error; callers must treat it
// explicitly.
func LatestMetric(assetSymbol, metricName string) (*types.MetricSample, error) {
	return LatestMetricBefore(assetSymbol, metricName, time.Time{})
}

// LatestMetricBefore returns the max-timestamp sample with
// recorded_at <= cutoff. A zero cutoff means "no bound".
func LatestMetricBefore(assetSymbol, metricName string, cutoff time.Time) (*types.MetricSample, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT id, asset_symbol, metric_name, value, COALESCE(chain, ''), metadata, recorded_at
		FROM morpho.rm_metrics_history
		WHERE asset_symbol = $1 AND metric_name = $2
	`
	args := []any{assetSymbol, metricName}
	if !cutoff.IsZero() {
		query += ` AND recorded_at <= $3`
		args = append(args, cutoff)
	}
	query += ` ORDER BY recorded_at DESC LIMIT 1`

	sample, err := scanSample(DB.QueryRow(query, args...))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("latest metric", err)
	}
	return sample, nil
}

// MetricRange returns samples for (asset, metric) within [from, to],
// oldest first.
func MetricRange(assetSymbol, metricName string, from, to time.Time) ([]types.MetricSample, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	rows, err := DB.Query(`
		SELECT id, asset_symbol, metric_name, value, COALESCE(chain, ''), metadata, recorded_at
		FROM morpho.rm_metrics_history
		WHERE asset_symbol = $1 AND metric_name = $2 AND recorded_at >= $3 AND recorded_at <= $4
		ORDER BY recorded_at ASC
	`, assetSymbol, metricName, from, to)
	if err != nil {
		return nil, storageErr("metric range", err)
	}
	defer rows.Close()

	return collectSamples(rows)
}

// LatestAll returns the latest sample per metric for an asset.
func LatestAll(assetSymbol string) (map[string]types.MetricSample, error) {
	return LatestAllBefore(assetSymbol, time.Time{})
}

// LatestAllBefore returns, per metric, the max-timestamp sample with
// recorded_at <= cutoff. This is the consistent snapshot read used by the
// scoring engine.
func LatestAllBefore(assetSymbol string, cutoff time.Time) (map[string]types.MetricSample, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT DISTINCT ON (metric_name)
			id, asset_symbol, metric_name, value, COALESCE(chain, ''), metadata, recorded_at
		FROM morpho.rm_metrics_history
		WHERE asset_symbol = $1
	`
	args := []any{assetSymbol}
	if !cutoff.IsZero() {
		query += ` AND recorded_at <= $2`
		args = append(args, cutoff)
	}
	query += ` ORDER BY metric_name, recorded_at DESC`

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, storageErr("latest all", err)
	}
	defer rows.Close()

	out := make(map[string]types.MetricSample)
	samples, err := collectSamples(rows)
	if err != nil {
		return nil, err
	}
	for _, s := range samples {
		out[s.MetricName] = s
	}
	return out, nil
}

// LatestPerTarget returns, per (chain, market anchor), the latest sample of a
// metric with recorded_at <= cutoff. Used for TVL-weighted aggregation of
// per-market lending metrics before scoring.
func LatestPerTarget(assetSymbol, metricName string, cutoff time.Time) ([]types.MetricSample, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT DISTINCT ON (COALESCE(chain, ''), COALESCE(metadata->>'market', ''))
			id, asset_symbol, metric_name, value, COALESCE(chain, ''), metadata, recorded_at
		FROM morpho.rm_metrics_history
		WHERE asset_symbol = $1 AND metric_name = $2
	`
	args := []any{assetSymbol, metricName}
	if !cutoff.IsZero() {
		query += ` AND recorded_at <= $3`
		args = append(args, cutoff)
	}
	query += ` ORDER BY COALESCE(chain, ''), COALESCE(metadata->>'market', ''), recorded_at DESC`

	rows, err := DB.Query(query, args...)
	if err != nil {
		return nil, storageErr("latest per target", err)
	}
	defer rows.Close()

	return collectSamples(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*types.MetricSample, error) {
	var sample types.MetricSample
	var chain string
	var metadataJSON []byte
	err := row.Scan(&sample.ID, &sample.AssetSymbol, &sample.MetricName, &sample.Value, &chain, &metadataJSON, &sample.RecordedAt)
	if err != nil {
		return nil, err
	}
	sample.Chain = types.Chain(chain)
	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &sample.Metadata); err != nil {
			log.Error().Err(err).Int64("id", sample.ID).Msg("Failed to unmarshal sample metadata")
		}
	}
	return &sample, nil
}

func collectSamples(rows *sql.Rows) ([]types.MetricSample, error) {
	var samples []types.MetricSample
	for rows.Next() {
		sample, err := scanSample(rows)
		if err != nil {
			log.Error().Err(err).Msg("Failed to scan metric row")
			continue
		}
		samples = append(samples, *sample)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("metric rows iteration", err)
	}
	return samples, nil
}
