package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/fetcher"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

func fullAsset() types.Asset {
	return types.Asset{
		Symbol: "WSTETH",
		Config: types.AssetConfig{
			TokenAddresses: []types.TokenAddress{
				{Chain: types.ChainEthereum, Address: "0xaaa"},
				{Chain: types.ChainBase, Address: "0xbbb"},
			},
			LendingConfigs: []types.LendingConfig{
				{Protocol: types.LendingAaveV3, Chain: types.ChainEthereum, TokenAddress: "0xaaa", Pool: "0xpool"},
				{Protocol: types.LendingCompoundV3, Chain: types.ChainBase, TokenAddress: "0xbbb", Comet: "0xcomet"},
			},
			DexPools: []types.DexPool{
				{Protocol: types.DexUniswapV3, Chain: types.ChainEthereum, PoolAddress: "0xpool1"},
			},
			PriceFeeds: []types.OracleFeed{
				{Chain: types.ChainEthereum, Address: "0xfeed1", Name: "STETH/ETH"},
			},
			CrossChainFeeds: []types.OracleFeed{
				{Chain: types.ChainEthereum, Address: "0xfeed2", Name: "WSTETH/USD"},
				{Chain: types.ChainBase, Address: "0xfeed3", Name: "WSTETH/USD"},
			},
			ProofOfReserve: &types.ProofOfReserve{Kind: types.PoRLiquidStaking, StakedToken: "0xsteth"},
			PriceRisk:      &types.PriceRisk{TokenPriceID: "wrapped-steth", UnderlyingPriceID: "ethereum"},
		},
	}
}

func countByKind(units []WorkUnit) map[fetcher.Kind]int {
	counts := make(map[fetcher.Kind]int)
	for _, u := range units {
		counts[u.Kind]++
	}
	return counts
}

func TestExpandWorkUnitsCritical(t *testing.T) {
	asset := fullAsset()
	units := ExpandWorkUnits(types.ClassCritical, asset, catalog.MetricsForClass(types.ClassCritical))

	counts := countByKind(units)
	// 1 price feed + 2 cross-chain feeds for freshness, 1 reserve, 1 peg.
	assert.Equal(t, 3, counts[fetcher.KindOracle])
	assert.Equal(t, 1, counts[fetcher.KindReserve])
	assert.Equal(t, 1, counts[fetcher.KindMarket])

	for _, u := range units {
		assert.Equal(t, types.ClassCritical, u.Scope.Class)
		assert.Equal(t, asset.Symbol, u.Scope.Asset.Symbol)
		assert.True(t, u.Metrics[catalog.MetricPoRRatio])
		assert.False(t, u.Metrics[catalog.MetricPoolTVL])
	}
}

func TestExpandWorkUnitsHigh(t *testing.T) {
	units := ExpandWorkUnits(types.ClassHigh, fullAsset(), catalog.MetricsForClass(types.ClassHigh))

	counts := countByKind(units)
	assert.Equal(t, 1, counts[fetcher.KindLiquidity])
	assert.Equal(t, 2, counts[fetcher.KindLending])
	assert.Zero(t, counts[fetcher.KindOracle])
}

func TestExpandWorkUnitsMedium(t *testing.T) {
	units := ExpandWorkUnits(types.ClassMedium, fullAsset(), catalog.MetricsForClass(types.ClassMedium))

	counts := countByKind(units)
	// One distribution unit per token address.
	assert.Equal(t, 2, counts[fetcher.KindDistribution])
	assert.Equal(t, 2, counts[fetcher.KindLending])
	assert.Equal(t, 1, counts[fetcher.KindLiquidity])
	// Paired cross-chain feeds produce one lag unit.
	assert.Equal(t, 1, counts[fetcher.KindOracle])

	var crossChain int
	for _, u := range units {
		if u.Scope.CrossChain {
			crossChain++
		}
	}
	assert.Equal(t, 1, crossChain)
}

func TestExpandWorkUnitsDaily(t *testing.T) {
	units := ExpandWorkUnits(types.ClassDaily, fullAsset(), catalog.MetricsForClass(types.ClassDaily))
	require.Len(t, units, 1)
	assert.Equal(t, fetcher.KindMarket, units[0].Kind)
}

func TestExpandWorkUnitsIntersectsWithConfig(t *testing.T) {
	// An asset with no configuration sections implies no work at all.
	bare := types.Asset{Symbol: "BARE"}
	for _, class := range types.AllFrequencyClasses {
		units := ExpandWorkUnits(class, bare, catalog.MetricsForClass(class))
		assert.Empty(t, units, "class %s", class)
	}

	// A single cross-chain feed cannot be paired, so no lag unit appears.
	one := fullAsset()
	one.Config.CrossChainFeeds = one.Config.CrossChainFeeds[:1]
	units := ExpandWorkUnits(types.ClassMedium, one, catalog.MetricsForClass(types.ClassMedium))
	for _, u := range units {
		assert.False(t, u.Scope.CrossChain)
	}
}
