package fetcher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDailyReturns(t *testing.T) {
	returns := dailyReturns([]float64{100, 110, 99})
	require.Len(t, returns, 2)
	assert.InDelta(t, 0.10, returns[0], 1e-9)
	assert.InDelta(t, -0.10, returns[1], 1e-9)

	assert.Nil(t, dailyReturns([]float64{100}))
	assert.Nil(t, dailyReturns(nil))
}

func TestPercentileLinearInterpolation(t *testing.T) {
	xs := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, percentile(xs, 0), 1e-9)
	assert.InDelta(t, 3.0, percentile(xs, 50), 1e-9)
	assert.InDelta(t, 5.0, percentile(xs, 100), 1e-9)
	// 5th percentile of 5 points: rank 0.2 between 1 and 2.
	assert.InDelta(t, 1.2, percentile(xs, 5), 1e-9)
}

func TestStddev(t *testing.T) {
	assert.InDelta(t, 2.0, stddev([]float64{2, 4, 4, 4, 5, 5, 7, 9}), 1e-9)
	assert.Zero(t, stddev(nil))
}

func TestHHIIndex(t *testing.T) {
	// Monopoly: one holder owns everything.
	assert.InDelta(t, 10000, hhiIndex([]float64{42}), 1e-9)
	// Four equal holders: 4 * (0.25)^2 * 10000 = 2500.
	assert.InDelta(t, 2500, hhiIndex([]float64{10, 10, 10, 10}), 1e-9)
	assert.Zero(t, hhiIndex(nil))
	// Non-positive balances are ignored.
	assert.InDelta(t, 10000, hhiIndex([]float64{5, 0, -1}), 1e-9)
}

func TestGiniCoefficient(t *testing.T) {
	// Perfectly uniform distribution approaches zero.
	assert.InDelta(t, 0, giniCoefficient([]float64{5, 5, 5, 5}), 1e-9)

	// Extreme concentration approaches one.
	concentrated := make([]float64, 100)
	for i := range concentrated {
		concentrated[i] = 0.0001
	}
	concentrated[99] = 1e9
	assert.Greater(t, giniCoefficient(concentrated), 0.95)

	assert.Zero(t, giniCoefficient(nil))
}

func TestTopNShare(t *testing.T) {
	balances := []float64{50, 30, 10, 5, 5}
	assert.InDelta(t, 80, topNShare(balances, 2, 100), 1e-9)
	assert.InDelta(t, 100, topNShare(balances, 10, 100), 1e-9)
	assert.Zero(t, topNShare(balances, 2, 0))
}

func TestEstimateSlippagePct(t *testing.T) {
	// $100K into a $10M pool: 100000 / (5000000 + 100000) ~= 1.96%.
	assert.InDelta(t, 1.9608, estimateSlippagePct(100_000, 10_000_000), 1e-3)
	// Deeper pool, less slippage.
	assert.Less(t, estimateSlippagePct(100_000, 100_000_000), estimateSlippagePct(100_000, 10_000_000))
	// Empty pool is uninvestable.
	assert.Equal(t, 100.0, estimateSlippagePct(100_000, 0))
}

func TestCascadeLiquidationPct(t *testing.T) {
	positions := []lendingPosition{
		{BorrowedUSD: 100, HealthFactor: 1.05},
		{BorrowedUSD: 300, HealthFactor: 2.0},
		{BorrowedUSD: 0, HealthFactor: 0.9},
	}
	// 100 of 400 borrowed value sits below the 1.1 cutoff.
	assert.InDelta(t, 25.0, cascadeLiquidationPct(positions), 1e-9)
	assert.Zero(t, cascadeLiquidationPct(nil))
}

func TestRecursiveLendingPct(t *testing.T) {
	positions := []lendingPosition{
		{SuppliedUSD: 600},
		{SuppliedUSD: 400, BorrowedUSD: 100},
	}
	// 400 of 1000 supplied is in loop positions.
	assert.InDelta(t, 40.0, recursiveLendingPct(positions), 1e-9)
	assert.Zero(t, recursiveLendingPct(nil))
}

func TestMaxAbsDeviation(t *testing.T) {
	token := []float64{100, 101, 99}
	under := []float64{100, 100, 100}
	dev, ok := maxAbsDeviation(token, under)
	require.True(t, ok)
	assert.InDelta(t, 1.0, dev, 1e-9)

	_, ok = maxAbsDeviation(nil, under)
	assert.False(t, ok)
}

func TestParseScaled(t *testing.T) {
	v, err := parseScaled("1500000000000000000", 18)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, v, 1e-9)

	_, err = parseScaled("not-a-number", 18)
	assert.Error(t, err)

	_, err = parseScaled("", 18)
	assert.Error(t, err)
}

func TestFetchErrorClassification(t *testing.T) {
	retriableErr := retriable(KindOracle, assert.AnError)
	assert.True(t, IsRetriable(retriableErr))

	terminalErr := terminal(KindOracle, assert.AnError)
	assert.False(t, IsRetriable(terminalErr))

	var fe *FetchError
	require.ErrorAs(t, retriableErr, &fe)
	assert.Equal(t, KindOracle, fe.FetcherKind)
	assert.ErrorIs(t, fe, assert.AnError)

	assert.False(t, IsRetriable(nil))
	assert.False(t, IsRetriable(errors.ErrUnsupported))
}
