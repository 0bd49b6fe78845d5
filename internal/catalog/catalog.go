/*

This file contains the immutable metric catalog: every metric name the system
collects, its unit, direction and collection frequency class. The catalog is
fixed at compile time; samples carrying unknown metric names never enter the
store.

*/

package catalog

import "github.com/avantgarde-labs/riskmon/internal/types"

// Metric names. The set is closed; fetchers may only emit these.
const (
	MetricPoRRatio              = "por_ratio"
	MetricOracleFreshness       = "oracle_freshness_minutes"
	MetricPegDeviation          = "peg_deviation_pct"
	MetricPoolTVL               = "pool_tvl_usd"
	MetricUtilizationRate       = "utilization_rate"
	MetricSlippage100K          = "slippage_100k_pct"
	MetricSlippage500K          = "slippage_500k_pct"
	MetricHHI                   = "hhi"
	MetricGini                  = "gini"
	MetricCLR                   = "clr_pct"
	MetricRLR                   = "rlr_pct"
	MetricTotalSupply           = "total_supply"
	MetricTop10Concentration    = "top10_lp_concentration_pct"
	MetricCrossChainLag         = "cross_chain_oracle_lag_minutes"
	MetricVolatilityAnnualized  = "volatility_annualized_pct"
	MetricVaR95                 = "var95_pct"
	MetricCVaR95                = "cvar95_pct"
	MetricPriceDeviation365dMax = "price_deviation_365d_max_pct"
)

// MetricInfo describes one catalog entry.
type MetricInfo struct {
	Name           string
	Class          types.FrequencyClass
	Unit           string
	HigherIsBetter bool
}

// metricCatalog is keyed by metric name. Loaded once; read-only afterwards.
var metricCatalog = map[string]MetricInfo{
	MetricPoRRatio:              {MetricPoRRatio, types.ClassCritical, "ratio", true},
	MetricOracleFreshness:       {MetricOracleFreshness, types.ClassCritical, "minutes", false},
	MetricPegDeviation:          {MetricPegDeviation, types.ClassCritical, "percent", false},
	MetricPoolTVL:               {MetricPoolTVL, types.ClassHigh, "usd", true},
	MetricUtilizationRate:       {MetricUtilizationRate, types.ClassHigh, "percent", false},
	MetricSlippage100K:          {MetricSlippage100K, types.ClassHigh, "percent", false},
	MetricSlippage500K:          {MetricSlippage500K, types.ClassHigh, "percent", false},
	MetricHHI:                   {MetricHHI, types.ClassMedium, "index", false},
	MetricGini:                  {MetricGini, types.ClassMedium, "coefficient", false},
	MetricCLR:                   {MetricCLR, types.ClassMedium, "percent", false},
	MetricRLR:                   {MetricRLR, types.ClassMedium, "percent", false},
	MetricTotalSupply:           {MetricTotalSupply, types.ClassMedium, "tokens", true},
	MetricTop10Concentration:    {MetricTop10Concentration, types.ClassMedium, "percent", false},
	MetricCrossChainLag:         {MetricCrossChainLag, types.ClassMedium, "minutes", false},
	MetricVolatilityAnnualized:  {MetricVolatilityAnnualized, types.ClassDaily, "percent", false},
	MetricVaR95:                 {MetricVaR95, types.ClassDaily, "percent", false},
	MetricCVaR95:                {MetricCVaR95, types.ClassDaily, "percent", false},
	MetricPriceDeviation365dMax: {MetricPriceDeviation365dMax, types.ClassDaily, "percent", false},
}

// Lookup returns catalog info for a metric name.
func Lookup(name string) (MetricInfo, bool) {
	info, ok := metricCatalog[name]
	return info, ok
}

// Known reports whether the metric name belongs to the catalog.
func Known(name string) bool {
	_, ok := metricCatalog[name]
	return ok
}

// MetricsForClass returns the metric-name set collected at a frequency class.
func MetricsForClass(class types.FrequencyClass) map[string]bool {
	out := make(map[string]bool)
	for name, info := range metricCatalog {
		if info.Class == class {
			out[name] = true
		}
	}
	return out
}

// AllMetrics returns every catalog metric name.
func AllMetrics() []string {
	out := make([]string, 0, len(metricCatalog))
	for name := range metricCatalog {
		out = append(out, name)
	}
	return out
}
