package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var scoreTestNow = time.Date(2026, 8, 5, 12, 0, 0, 0, time.UTC)

func date(t time.Time) types.Date {
	return types.Date{Time: t}
}

// wrappedBTCConfig is a fully-qualified asset: recent top-tier audit, mature
// deployment, clean incident record, 4/7 multisig behind a 72h timelock.
func wrappedBTCConfig() types.AssetConfig {
	return types.AssetConfig{
		TokenAddresses: []types.TokenAddress{
			{Chain: types.ChainEthereum, Address: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599"},
		},
		Governance: &types.Governance{
			Roles: []types.GovernanceRole{
				{RoleName: "owner", AuthorityKind: types.AuthorityMultisig, Threshold: 4, SignerCount: 7},
			},
			HasTimelock:   true,
			TimelockHours: 72,
			CustodyModel:  types.CustodyRegulatedInsured,
			HasBlacklist:  false,
		},
		AuditData: []types.Audit{
			{Auditor: "Trail of Bits", Date: date(scoreTestNow.AddDate(0, -2, 0))},
		},
		DeploymentDate: &types.Date{Time: scoreTestNow.AddDate(0, 0, -900)},
	}
}

// healthySnapshot carries excellent values for every metric-backed
// sub-score.
func healthySnapshot(symbol string) types.MetricSnapshot {
	values := map[string]float64{
		catalog.MetricPoRRatio:             1.001,
		catalog.MetricOracleFreshness:      2,
		catalog.MetricCrossChainLag:        1,
		catalog.MetricPegDeviation:         0.05,
		catalog.MetricVolatilityAnnualized: 25,
		catalog.MetricVaR95:                3.2,
		catalog.MetricSlippage100K:         0.15,
		catalog.MetricSlippage500K:         0.4,
		catalog.MetricHHI:                  1200,
		catalog.MetricUtilizationRate:      55,
		catalog.MetricCLR:                  3,
		catalog.MetricRLR:                  4,
	}
	samples := make(map[string]types.MetricSample, len(values))
	for name, value := range values {
		samples[name] = types.MetricSample{
			AssetSymbol: symbol,
			MetricName:  name,
			Value:       value,
			RecordedAt:  scoreTestNow.Add(-time.Minute),
		}
	}
	return types.MetricSnapshot{AssetSymbol: symbol, Cutoff: scoreTestNow, Samples: samples}
}

func testAsset(cfg types.AssetConfig) types.Asset {
	return types.Asset{
		Symbol:     "WBTC",
		Name:       "Wrapped Bitcoin",
		Type:       types.AssetWrapped,
		Underlying: "BTC",
		Decimals:   8,
		Enabled:    true,
		Config:     cfg,
	}
}

func TestScoreFullyQualifiedAGrade(t *testing.T) {
	asset := testAsset(wrappedBTCConfig())
	result := Score(asset, healthySnapshot(asset.Symbol), scoreTestNow)

	require.True(t, result.Qualified)
	require.NotNil(t, result.Overall)
	assert.GreaterOrEqual(t, result.Overall.Score, 85.0)
	assert.Equal(t, "A", result.Overall.Grade)
	assert.Empty(t, result.Breakers)
	assert.Len(t, result.Categories, 6)
}

func TestScoreUndercollateralizedReserveCapsAtC(t *testing.T) {
	asset := testAsset(wrappedBTCConfig())
	snapshot := healthySnapshot(asset.Symbol)
	sample := snapshot.Samples[catalog.MetricPoRRatio]
	sample.Value = 0.97
	snapshot.Samples[catalog.MetricPoRRatio] = sample

	result := Score(asset, snapshot, scoreTestNow)

	require.True(t, result.Qualified)
	require.NotNil(t, result.Overall)
	// The weighted score still computes high; the breaker does the capping.
	assert.GreaterOrEqual(t, result.Overall.BaseScore, 70.0)
	assert.Equal(t, 69.0, result.Overall.Score)
	assert.Equal(t, "C", result.Overall.Grade)

	require.NotEmpty(t, result.Breakers)
	assert.Equal(t, "Reserve Undercollateralized", result.Breakers[0].Name)
}

func TestScoreUnresolvedCriticalIssueDisqualifies(t *testing.T) {
	cfg := wrappedBTCConfig()
	cfg.AuditData = []types.Audit{
		{Auditor: "Trail of Bits", Date: date(scoreTestNow.AddDate(0, -2, 0)), CriticalIssuesUnresolved: 1},
	}
	asset := testAsset(cfg)

	result := Score(asset, healthySnapshot(asset.Symbol), scoreTestNow)

	assert.False(t, result.Qualified)
	assert.Nil(t, result.Overall)
	assert.Nil(t, result.Categories)
	assert.Contains(t, result.PrimaryChecks.FailedChecks, "no_critical_audit_issues")
}

func TestScoreCriticalAdminEOACapsAtD(t *testing.T) {
	cfg := wrappedBTCConfig()
	cfg.Governance.Roles = []types.GovernanceRole{
		{RoleName: "owner", AuthorityKind: types.AuthorityEOA, RoleWeight: 5},
	}
	asset := testAsset(cfg)

	result := Score(asset, healthySnapshot(asset.Symbol), scoreTestNow)

	require.True(t, result.Qualified)
	require.NotNil(t, result.Overall)
	assert.Equal(t, 54.0, result.Overall.Score)
	assert.Equal(t, "D", result.Overall.Grade)

	var names []string
	for _, b := range result.Breakers {
		names = append(names, b.Name)
	}
	assert.Contains(t, names, "Critical Admin EOA")
}

func TestScoreIsDeterministic(t *testing.T) {
	asset := testAsset(wrappedBTCConfig())
	snapshot := healthySnapshot(asset.Symbol)

	first := Score(asset, snapshot, scoreTestNow)
	second := Score(asset, snapshot, scoreTestNow)

	require.NotNil(t, first.Overall)
	require.NotNil(t, second.Overall)
	assert.Equal(t, first.Overall.Score, second.Overall.Score)
	assert.Equal(t, first.Overall.Grade, second.Overall.Grade)
	assert.Equal(t, len(first.Breakers), len(second.Breakers))
	assert.Equal(t, first.Categories, second.Categories)
}

func TestScoreMissingMetricRedistributesWeight(t *testing.T) {
	asset := testAsset(wrappedBTCConfig())
	snapshot := healthySnapshot(asset.Symbol)
	delete(snapshot.Samples, catalog.MetricCrossChainLag)

	result := Score(asset, snapshot, scoreTestNow)
	require.True(t, result.Qualified)

	var reserveOracle *types.CategoryScore
	for i := range result.Categories {
		if result.Categories[i].Key == "reserve_oracle" {
			reserveOracle = &result.Categories[i]
		}
	}
	require.NotNil(t, reserveOracle)

	// The missing sub-score is noted in the trace and the category still
	// reports, renormalized over the present inputs.
	var missing, present int
	for _, sub := range reserveOracle.Breakdown {
		if sub.Missing {
			missing++
		} else {
			present++
		}
	}
	assert.Equal(t, 1, missing)
	assert.Equal(t, 2, present)
	assert.Greater(t, reserveOracle.Score, 0.0)
}

func TestScoreAbsentSectionsDeactivateCategories(t *testing.T) {
	cfg := wrappedBTCConfig()
	cfg.Governance = nil
	asset := testAsset(cfg)

	snapshot := healthySnapshot(asset.Symbol)
	result := Score(asset, snapshot, scoreTestNow)

	require.True(t, result.Qualified)
	require.NotNil(t, result.Overall)
	for _, cat := range result.Categories {
		assert.NotEqual(t, "counterparty", cat.Key)
	}
}

func TestTVLWeightedAverage(t *testing.T) {
	samples := []types.MetricSample{
		{Value: 90, Metadata: map[string]any{"tvl_usd": 9000000.0}},
		{Value: 10, Metadata: map[string]any{"tvl_usd": 1000000.0}},
	}
	avg, ok := tvlWeightedAverage(samples)
	require.True(t, ok)
	assert.InDelta(t, 82.0, avg, 1e-9)

	// Markets without TVL context fall back to equal weighting.
	samples[1].Metadata = nil
	avg, ok = tvlWeightedAverage(samples)
	require.True(t, ok)
	assert.InDelta(t, 50.0, avg, 1e-9)
}
