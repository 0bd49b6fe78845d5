package fetcher

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/config"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var liquidityLogger = logger.GetForComponent("liquidity_fetcher")

// Trade sizes probed for slippage, in USD.
const (
	tradeSize100K = 100_000
	tradeSize500K = 500_000
)

// LiquidityFetcher reads DEX pool depth from the protocol subgraph and
// derives TVL, slippage estimates and LP concentration per pool.
type LiquidityFetcher struct {
	http *httpClient
}

// NewLiquidityFetcher builds the liquidity fetcher.
func NewLiquidityFetcher() *LiquidityFetcher {
	return &LiquidityFetcher{http: newHTTPClient()}
}

func (f *LiquidityFetcher) Kind() Kind {
	return KindLiquidity
}

const poolDepthQuery = `
query ($pool: ID!) {
  pool(id: $pool) {
    totalValueLockedUSD
  }
  positions(first: 200, orderBy: liquidity, orderDirection: desc, where: {pool: $pool}) {
    owner
    liquidity
  }
}`

type poolDepthResponse struct {
	Pool *struct {
		TotalValueLockedUSD string `json:"totalValueLockedUSD"`
	} `json:"pool"`
	Positions []struct {
		Owner     string `json:"owner"`
		Liquidity string `json:"liquidity"`
	} `json:"positions"`
}

func (f *LiquidityFetcher) Fetch(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	pool := scope.Pool
	if pool == nil {
		return nil, nil
	}

	url := config.SubgraphURL(pool.Protocol, pool.Chain)
	var resp poolDepthResponse
	if err := f.http.graphqlQuery(ctx, KindLiquidity, url, poolDepthQuery, map[string]any{"pool": pool.PoolAddress}, &resp); err != nil {
		return nil, err
	}
	if resp.Pool == nil {
		return nil, terminal(KindLiquidity, fmt.Errorf("pool %s not found in subgraph %s", pool.PoolAddress, url))
	}

	tvl, err := strconv.ParseFloat(resp.Pool.TotalValueLockedUSD, 64)
	if err != nil {
		return nil, terminal(KindLiquidity, fmt.Errorf("unparseable TVL %q: %w", resp.Pool.TotalValueLockedUSD, err))
	}

	// Aggregate LP liquidity per owner; a single LP can hold many positions.
	byOwner := make(map[string]float64)
	for _, pos := range resp.Positions {
		liq, err := strconv.ParseFloat(pos.Liquidity, 64)
		if err != nil {
			continue
		}
		byOwner[pos.Owner] += liq
	}
	balances := make([]float64, 0, len(byOwner))
	var totalLiquidity float64
	for _, b := range byOwner {
		balances = append(balances, b)
		totalLiquidity += b
	}

	now := time.Now().UTC()
	meta := map[string]any{
		"pool":     pool.PoolAddress,
		"protocol": string(pool.Protocol),
	}
	if pool.PoolName != "" {
		meta["pool_name"] = pool.PoolName
	}

	sample := func(metric string, value float64) types.MetricSample {
		return types.MetricSample{
			AssetSymbol: scope.Asset.Symbol,
			MetricName:  metric,
			Value:       value,
			Chain:       pool.Chain,
			Metadata:    meta,
			RecordedAt:  now,
		}
	}

	samples := []types.MetricSample{
		sample(catalog.MetricPoolTVL, tvl),
		sample(catalog.MetricSlippage100K, estimateSlippagePct(tradeSize100K, tvl)),
		sample(catalog.MetricSlippage500K, estimateSlippagePct(tradeSize500K, tvl)),
	}
	if len(balances) > 0 {
		samples = append(samples,
			sample(catalog.MetricHHI, hhiIndex(balances)),
			sample(catalog.MetricTop10Concentration, topNShare(balances, 10, totalLiquidity)),
		)
	}

	liquidityLogger.Debug().
		Str("asset", scope.Asset.Symbol).
		Str("pool", pool.PoolAddress).
		Float64("tvl", tvl).
		Int("lps", len(balances)).
		Msg("Pool depth fetched")
	return samples, nil
}

// estimateSlippagePct approximates execution slippage against a
// constant-product pool: one side of the pool absorbs the trade, so the
// marginal price moves by size/(depth+size).
func estimateSlippagePct(tradeSizeUSD, tvlUSD float64) float64 {
	if tvlUSD <= 0 {
		return 100
	}
	depth := tvlUSD / 2
	return tradeSizeUSD / (depth + tradeSizeUSD) * 100
}
