/*

This file contains the dispatcher: given a frequency class and the registry
snapshot captured at tick start, it fans the implied work units out over a
bounded worker pool, enforces per-unit deadlines, retries retriable failures
with jittered exponential backoff, and persists whatever succeeded. One
failing unit never blocks another; a tick that cannot write to storage stops
writing but keeps already-persisted samples valid.

*/

package dispatcher

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/alerting"
	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/fetcher"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/metrics"
	"github.com/avantgarde-labs/riskmon/internal/state"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var dispatchLogger = logger.GetForComponent("dispatcher")

// tickDeadlineFactor scales the unit deadline into the whole-tick deadline.
const tickDeadlineFactor = 5

// Config holds the dispatcher's tuning knobs.
type Config struct {
	WorkerPoolSize       int
	CriticalUnitDeadline time.Duration
	UnitDeadline         time.Duration
	RetryMax             int
	RetryBase            time.Duration
	RetryCap             time.Duration
	RetryJitter          float64
}

// UnitError describes one finally-failed work unit.
type UnitError struct {
	Asset     string `json:"asset"`
	Kind      string `json:"kind"`
	Target    string `json:"target"`
	Retriable bool   `json:"retriable"`
	Error     string `json:"error"`
}

// TickReport summarizes one dispatcher tick.
type TickReport struct {
	Class           types.FrequencyClass `json:"class"`
	StartedAt       time.Time            `json:"started_at"`
	Duration        time.Duration        `json:"duration"`
	AssetsProcessed int                  `json:"assets_processed"`
	UnitsTotal      int                  `json:"units_total"`
	UnitsFailed     int                  `json:"units_failed"`
	SamplesStored   int64                `json:"samples_stored"`
	AlertsTriggered int64                `json:"alerts_triggered"`
	Incomplete      bool                 `json:"incomplete"`
	Errors          []UnitError          `json:"errors,omitempty"`
}

// Dispatcher routes schedule ticks to fetchers and persists the results.
type Dispatcher struct {
	cfg      Config
	fetchers map[fetcher.Kind]fetcher.Fetcher
	alerts   *alerting.Engine
	sem      chan struct{}
}

// New assembles a dispatcher over the full fetcher family.
func New(cfg Config, alerts *alerting.Engine, fetchers ...fetcher.Fetcher) *Dispatcher {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 16
	}
	byKind := make(map[fetcher.Kind]fetcher.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byKind[f.Kind()] = f
	}
	return &Dispatcher{cfg: cfg, fetchers: byKind, alerts: alerts, sem: make(chan struct{}, cfg.WorkerPoolSize)}
}

// RunTick executes one tick of a frequency class against the enabled-asset
// snapshot taken at entry. Config changes made while the tick runs are
// ignored until the next tick.
func (d *Dispatcher) RunTick(ctx context.Context, class types.FrequencyClass) TickReport {
	report := TickReport{Class: class, StartedAt: time.Now().UTC()}

	assets, err := state.ListEnabledAssets()
	if err != nil {
		dispatchLogger.Error().Err(err).Str("class", string(class)).Msg("Failed to snapshot registry, skipping tick")
		report.Incomplete = true
		metrics.TicksTotal.WithLabelValues(string(class), "registry_error").Inc()
		return report
	}
	report.AssetsProcessed = len(assets)

	classMetrics := catalog.MetricsForClass(class)
	var units []WorkUnit
	for _, asset := range assets {
		units = append(units, ExpandWorkUnits(class, asset, classMetrics)...)
	}
	report.UnitsTotal = len(units)
	if len(units) == 0 {
		metrics.TicksTotal.WithLabelValues(string(class), "empty").Inc()
		report.Duration = time.Since(report.StartedAt)
		return report
	}

	unitDeadline := d.unitDeadline(class)
	tickCtx, cancel := context.WithTimeout(ctx, tickDeadlineFactor*unitDeadline)
	defer cancel()

	var (
		wg            sync.WaitGroup
		mu            sync.Mutex
		storageDown   atomic.Bool
		samplesStored atomic.Int64
		alertsFired   atomic.Int64
	)

	for _, unit := range units {
		select {
		case <-tickCtx.Done():
			report.Incomplete = true
		default:
		}
		if report.Incomplete {
			break
		}

		wg.Add(1)
		go func(unit WorkUnit) {
			defer wg.Done()

			select {
			case d.sem <- struct{}{}:
				defer func() { <-d.sem }()
			case <-tickCtx.Done():
				return
			}

			samples, err := d.runUnit(tickCtx, unit, unitDeadline)
			if err != nil {
				mu.Lock()
				report.UnitsFailed++
				report.Errors = append(report.Errors, UnitError{
					Asset:     unit.Scope.Asset.Symbol,
					Kind:      string(unit.Kind),
					Target:    unit.Scope.Target(),
					Retriable: fetcher.IsRetriable(err),
					Error:     err.Error(),
				})
				mu.Unlock()
				metrics.WorkUnitsTotal.WithLabelValues(string(unit.Kind), "failed").Inc()
				dispatchLogger.Error().
					Err(err).
					Str("asset", unit.Scope.Asset.Symbol).
					Str("kind", string(unit.Kind)).
					Str("target", unit.Scope.Target()).
					Msg("Work unit failed after retries")
				return
			}
			metrics.WorkUnitsTotal.WithLabelValues(string(unit.Kind), "ok").Inc()

			if storageDown.Load() {
				return
			}
			for _, sample := range samples {
				if !unit.Metrics[sample.MetricName] {
					continue
				}
				if err := state.AppendSample(sample); err != nil {
					if errors.Is(err, state.ErrStorageUnavailable) {
						// Stop writing; completed fetch work elsewhere in the
						// tick is not retried.
						storageDown.Store(true)
						dispatchLogger.Error().Err(err).Msg("Storage unavailable, aborting remaining writes for tick")
						return
					}
					dispatchLogger.Error().Err(err).Str("metric", sample.MetricName).Msg("Failed to append sample")
					continue
				}
				samplesStored.Add(1)
				metrics.SamplesStored.Inc()

				fired, err := d.alerts.Evaluate(tickCtx, sample)
				if err != nil {
					// Threshold evaluation never blocks the sample write.
					dispatchLogger.Error().
						Err(err).
						Str("asset", sample.AssetSymbol).
						Str("metric", sample.MetricName).
						Msg("Threshold evaluation error")
					continue
				}
				alertsFired.Add(int64(fired))
			}
		}(unit)
	}

	wg.Wait()

	report.SamplesStored = samplesStored.Load()
	report.AlertsTriggered = alertsFired.Load()
	report.Duration = time.Since(report.StartedAt)
	if storageDown.Load() || tickCtx.Err() != nil {
		report.Incomplete = true
	}

	outcome := "ok"
	if report.Incomplete {
		outcome = "incomplete"
		dispatchLogger.Warn().
			Str("class", string(class)).
			Int("unitsTotal", report.UnitsTotal).
			Int("unitsFailed", report.UnitsFailed).
			Msg("Incomplete tick; persisted partial results remain valid")
	}
	metrics.TicksTotal.WithLabelValues(string(class), outcome).Inc()

	dispatchLogger.Info().
		Str("class", string(class)).
		Int("assets", report.AssetsProcessed).
		Int("units", report.UnitsTotal).
		Int("failed", report.UnitsFailed).
		Int64("samples", report.SamplesStored).
		Int64("alerts", report.AlertsTriggered).
		Str("took", report.Duration.String()).
		Msg("Tick complete")
	return report
}

// runUnit executes one work unit with its deadline and retry budget.
// Only retriable failures are retried; the last error is returned when the
// budget is exhausted.
func (d *Dispatcher) runUnit(ctx context.Context, unit WorkUnit, deadline time.Duration) ([]types.MetricSample, error) {
	impl, ok := d.fetchers[unit.Kind]
	if !ok {
		return nil, &fetcher.FetchError{FetcherKind: unit.Kind, Retriable: false,
			Cause: errors.New("no fetcher registered for kind")}
	}

	var lastErr error
	for attempt := 0; attempt <= d.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, d.backoff(attempt)); err != nil {
				return nil, lastErr
			}
		}

		unitCtx, cancel := context.WithTimeout(ctx, deadline)
		start := time.Now()
		samples, err := impl.Fetch(unitCtx, unit.Scope)
		cancel()
		metrics.FetchDuration.WithLabelValues(string(unit.Kind)).Observe(time.Since(start).Seconds())

		if err == nil {
			return samples, nil
		}
		lastErr = err
		if !fetcher.IsRetriable(err) {
			return nil, err
		}
		dispatchLogger.Debug().
			Err(err).
			Str("asset", unit.Scope.Asset.Symbol).
			Str("kind", string(unit.Kind)).
			Int("attempt", attempt+1).
			Msg("Retriable fetch failure")
	}
	return nil, lastErr
}

func (d *Dispatcher) unitDeadline(class types.FrequencyClass) time.Duration {
	if class == types.ClassCritical {
		return d.cfg.CriticalUnitDeadline
	}
	return d.cfg.UnitDeadline
}

// backoff computes the jittered exponential delay before retry n (1-based).
func (d *Dispatcher) backoff(attempt int) time.Duration {
	delay := d.cfg.RetryBase << (attempt - 1)
	if delay > d.cfg.RetryCap {
		delay = d.cfg.RetryCap
	}
	jitter := 1 + d.cfg.RetryJitter*(2*rand.Float64()-1)
	return time.Duration(float64(delay) * jitter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
