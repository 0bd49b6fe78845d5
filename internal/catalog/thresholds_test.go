package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

func TestSeedThresholdRulesAreGlobalAndUnique(t *testing.T) {
	rules := SeedThresholdRules()
	require.NotEmpty(t, rules)

	seen := make(map[string]bool)
	for _, r := range rules {
		assert.Empty(t, r.AssetSymbol, "seed rules are global scope")
		assert.True(t, r.Enabled)
		assert.True(t, Known(r.MetricName), "unknown metric %s", r.MetricName)

		key := fmt.Sprintf("%s %s %v", r.MetricName, r.Operator, r.ThresholdValue)
		assert.False(t, seen[key], "duplicate rule %s", key)
		seen[key] = true
	}
}

func TestThresholdCatalogMatch(t *testing.T) {
	c := NewThresholdCatalog()
	c.Reload([]types.ThresholdRule{
		{MetricName: MetricPoRRatio, Operator: types.OpLT, ThresholdValue: 1.0, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricPoRRatio, Operator: types.OpLT, ThresholdValue: 0.99, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricHHI, Operator: types.OpGT, ThresholdValue: 4000, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricHHI, Operator: types.OpGT, ThresholdValue: 5000, Severity: types.SeverityWarning, Enabled: true, AssetSymbol: "WBTC"},
		{MetricName: MetricGini, Operator: types.OpGT, ThresholdValue: 0.8, Severity: types.SeverityWarning, Enabled: false},
	})

	// Global rules apply to any asset.
	assert.Len(t, c.Match("RLP", MetricPoRRatio), 2)

	// A per-asset rule shadows the global rule with the same operator.
	wbtcHHI := c.Match("WBTC", MetricHHI)
	require.Len(t, wbtcHHI, 1)
	assert.Equal(t, 5000.0, wbtcHHI[0].ThresholdValue)

	// Other assets still see the global rule.
	otherHHI := c.Match("RLP", MetricHHI)
	require.Len(t, otherHHI, 1)
	assert.Equal(t, 4000.0, otherHHI[0].ThresholdValue)

	// Disabled rules are dropped at reload.
	assert.Empty(t, c.Match("RLP", MetricGini))

	// Unknown metrics match nothing.
	assert.Empty(t, c.Match("RLP", "nonexistent"))
}

func TestThresholdCatalogReloadSwapsAtomically(t *testing.T) {
	c := NewThresholdCatalog()
	assert.Equal(t, 0, c.Size())

	c.Reload(SeedThresholdRules())
	assert.Equal(t, len(SeedThresholdRules()), c.Size())

	c.Reload(nil)
	assert.Equal(t, 0, c.Size())
}

func TestMetricsForClass(t *testing.T) {
	critical := MetricsForClass(types.ClassCritical)
	assert.Equal(t, map[string]bool{
		MetricPoRRatio:        true,
		MetricOracleFreshness: true,
		MetricPegDeviation:    true,
	}, critical)

	high := MetricsForClass(types.ClassHigh)
	assert.Len(t, high, 4)
	assert.True(t, high[MetricPoolTVL])
	assert.True(t, high[MetricSlippage500K])

	medium := MetricsForClass(types.ClassMedium)
	assert.Len(t, medium, 7)
	assert.True(t, medium[MetricCrossChainLag])

	daily := MetricsForClass(types.ClassDaily)
	assert.Len(t, daily, 4)
	assert.True(t, daily[MetricCVaR95])

	// Every catalog metric belongs to exactly one class.
	total := len(critical) + len(high) + len(medium) + len(daily)
	assert.Equal(t, len(AllMetrics()), total)
}
