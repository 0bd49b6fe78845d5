/*

This file contains the threshold catalog: the built-in seed rules and the
read-mostly in-memory rule set consulted by the alert engine. Reloads swap
the whole rule set atomically; per-asset rules shadow global rules for the
same (metric, operator).

*/

package catalog

import (
	"sync/atomic"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

// SeedThresholdRules returns the built-in global rules applied at first boot.
func SeedThresholdRules() []types.ThresholdRule {
	return []types.ThresholdRule{
		{MetricName: MetricPoRRatio, Operator: types.OpLT, ThresholdValue: 1.0, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricPoRRatio, Operator: types.OpLT, ThresholdValue: 0.99, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricOracleFreshness, Operator: types.OpGT, ThresholdValue: 30, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricOracleFreshness, Operator: types.OpGT, ThresholdValue: 60, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricPegDeviation, Operator: types.OpGT, ThresholdValue: 2.0, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricPegDeviation, Operator: types.OpGT, ThresholdValue: 5.0, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricUtilizationRate, Operator: types.OpGT, ThresholdValue: 90, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricUtilizationRate, Operator: types.OpGT, ThresholdValue: 95, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricPoolTVL, Operator: types.OpLT, ThresholdValue: 100000, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricSlippage100K, Operator: types.OpGT, ThresholdValue: 2.0, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricSlippage100K, Operator: types.OpGT, ThresholdValue: 5.0, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricHHI, Operator: types.OpGT, ThresholdValue: 4000, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricHHI, Operator: types.OpGT, ThresholdValue: 6000, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricGini, Operator: types.OpGT, ThresholdValue: 0.8, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricGini, Operator: types.OpGT, ThresholdValue: 0.9, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricCLR, Operator: types.OpGT, ThresholdValue: 10, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricCLR, Operator: types.OpGT, ThresholdValue: 20, Severity: types.SeverityCritical, Enabled: true},
		{MetricName: MetricRLR, Operator: types.OpGT, ThresholdValue: 20, Severity: types.SeverityWarning, Enabled: true},
		{MetricName: MetricRLR, Operator: types.OpGT, ThresholdValue: 35, Severity: types.SeverityCritical, Enabled: true},
	}
}

// ThresholdCatalog holds the active rule set. Lookups never block reloads;
// Reload publishes a fresh snapshot with one atomic pointer swap.
type ThresholdCatalog struct {
	rules atomic.Pointer[ruleSet]
}

type ruleSet struct {
	// byMetric groups enabled rules by metric name.
	byMetric map[string][]types.ThresholdRule
}

// NewThresholdCatalog builds an empty catalog; call Reload with the persisted
// rules before the first dispatch tick.
func NewThresholdCatalog() *ThresholdCatalog {
	c := &ThresholdCatalog{}
	c.Reload(nil)
	return c
}

// Reload replaces the active rule set. Disabled rules are dropped here so the
// hot path never filters them.
func (c *ThresholdCatalog) Reload(rules []types.ThresholdRule) {
	set := &ruleSet{byMetric: make(map[string][]types.ThresholdRule)}
	for _, r := range rules {
		if !r.Enabled {
			continue
		}
		set.byMetric[r.MetricName] = append(set.byMetric[r.MetricName], r)
	}
	c.rules.Store(set)
}

// Match returns the rules applicable to (assetSymbol, metric): the asset's
// own rules plus every global rule not shadowed by an asset rule with the
// same (metric, operator).
func (c *ThresholdCatalog) Match(assetSymbol, metric string) []types.ThresholdRule {
	set := c.rules.Load()
	candidates := set.byMetric[metric]
	if len(candidates) == 0 {
		return nil
	}

	shadowed := make(map[types.Operator]bool)
	var out []types.ThresholdRule
	for _, r := range candidates {
		if r.AssetSymbol == assetSymbol {
			out = append(out, r)
			shadowed[r.Operator] = true
		}
	}
	for _, r := range candidates {
		if r.AssetSymbol == "" && !shadowed[r.Operator] {
			out = append(out, r)
		}
	}
	return out
}

// Size returns the number of active rules, for observability.
func (c *ThresholdCatalog) Size() int {
	set := c.rules.Load()
	n := 0
	for _, rules := range set.byMetric {
		n += len(rules)
	}
	return n
}
