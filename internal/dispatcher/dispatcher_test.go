package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgarde-labs/riskmon/internal/fetcher"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

// stubFetcher fails a configured number of times before succeeding.
type stubFetcher struct {
	kind      fetcher.Kind
	failures  int
	retriable bool
	calls     int
	samples   []types.MetricSample
}

func (s *stubFetcher) Kind() fetcher.Kind {
	return s.kind
}

func (s *stubFetcher) Fetch(ctx context.Context, scope fetcher.Scope) ([]types.MetricSample, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, &fetcher.FetchError{FetcherKind: s.kind, Retriable: s.retriable, Cause: errors.New("upstream down")}
	}
	return s.samples, nil
}

func testConfig() Config {
	return Config{
		WorkerPoolSize:       4,
		CriticalUnitDeadline: time.Second,
		UnitDeadline:         time.Second,
		RetryMax:             2,
		RetryBase:            time.Millisecond,
		RetryCap:             4 * time.Millisecond,
		RetryJitter:          0.25,
	}
}

func TestRunUnitRetriesRetriableFailures(t *testing.T) {
	stub := &stubFetcher{
		kind: fetcher.KindOracle, failures: 2, retriable: true,
		samples: []types.MetricSample{{MetricName: "oracle_freshness_minutes", Value: 1}},
	}
	d := New(testConfig(), nil, stub)

	unit := WorkUnit{Kind: fetcher.KindOracle, Metrics: map[string]bool{"oracle_freshness_minutes": true}}
	samples, err := d.runUnit(context.Background(), unit, time.Second)

	require.NoError(t, err)
	assert.Len(t, samples, 1)
	// 2 failures + 1 success = retry budget of 2 fully used.
	assert.Equal(t, 3, stub.calls)
}

func TestRunUnitStopsOnTerminalFailure(t *testing.T) {
	stub := &stubFetcher{kind: fetcher.KindLiquidity, failures: 10, retriable: false}
	d := New(testConfig(), nil, stub)

	unit := WorkUnit{Kind: fetcher.KindLiquidity, Metrics: map[string]bool{}}
	_, err := d.runUnit(context.Background(), unit, time.Second)

	require.Error(t, err)
	assert.False(t, fetcher.IsRetriable(err))
	// Terminal failures are never retried.
	assert.Equal(t, 1, stub.calls)
}

func TestRunUnitExhaustsRetryBudget(t *testing.T) {
	stub := &stubFetcher{kind: fetcher.KindMarket, failures: 10, retriable: true}
	d := New(testConfig(), nil, stub)

	unit := WorkUnit{Kind: fetcher.KindMarket, Metrics: map[string]bool{}}
	_, err := d.runUnit(context.Background(), unit, time.Second)

	require.Error(t, err)
	assert.True(t, fetcher.IsRetriable(err))
	// Initial attempt plus RetryMax retries.
	assert.Equal(t, 3, stub.calls)
}

func TestRunUnitUnknownKind(t *testing.T) {
	d := New(testConfig(), nil)
	unit := WorkUnit{Kind: fetcher.KindReserve, Metrics: map[string]bool{}}

	_, err := d.runUnit(context.Background(), unit, time.Second)
	require.Error(t, err)
	assert.False(t, fetcher.IsRetriable(err))
}

func TestBackoffStaysWithinJitterBounds(t *testing.T) {
	cfg := testConfig()
	cfg.RetryBase = time.Second
	cfg.RetryCap = 8 * time.Second
	cfg.RetryJitter = 0.25
	d := New(cfg, nil)

	for attempt := 1; attempt <= 5; attempt++ {
		base := cfg.RetryBase << (attempt - 1)
		if base > cfg.RetryCap {
			base = cfg.RetryCap
		}
		for i := 0; i < 50; i++ {
			delay := d.backoff(attempt)
			assert.GreaterOrEqual(t, delay, time.Duration(float64(base)*0.75))
			assert.LessOrEqual(t, delay, time.Duration(float64(base)*1.25))
		}
	}
}
