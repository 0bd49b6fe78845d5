package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"net/url"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/config"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var lendingLogger = logger.GetForComponent("lending_fetcher")

// riskyHealthFactor is the cutoff below which a borrow position counts toward
// cascade liquidation risk.
const riskyHealthFactor = 1.1

// LendingFetcher reads lending-market state: utilization from the protocol
// contracts, and position-level data from the market subgraph (or the Fluid
// REST API) for the cascade-liquidation and recursive-lending ratios.
type LendingFetcher struct {
	evm  *EVMClients
	http *httpClient
}

// NewLendingFetcher builds the lending fetcher.
func NewLendingFetcher(evm *EVMClients) *LendingFetcher {
	return &LendingFetcher{evm: evm, http: newHTTPClient()}
}

func (f *LendingFetcher) Kind() Kind {
	return KindLending
}

// lendingPosition is the normalized per-account view used for CLR/RLR.
type lendingPosition struct {
	SuppliedUSD  float64
	BorrowedUSD  float64
	HealthFactor float64
}

func (f *LendingFetcher) Fetch(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	market := scope.Lending
	if market == nil {
		return nil, nil
	}

	var (
		utilization float64
		positions   []lendingPosition
		supplyUSD   float64
		err         error
	)
	switch market.Protocol {
	case types.LendingAaveV3:
		utilization, err = f.aaveUtilization(ctx, market)
		if err == nil {
			positions, supplyUSD, err = f.subgraphPositions(ctx, market)
		}
	case types.LendingCompoundV3:
		utilization, err = f.compoundUtilization(ctx, market)
		if err == nil {
			positions, supplyUSD, err = f.subgraphPositions(ctx, market)
		}
	case types.LendingFluid:
		utilization, positions, supplyUSD, err = f.fluidMarket(ctx, market)
	default:
		return nil, terminal(KindLending, fmt.Errorf("unknown lending protocol %q", market.Protocol))
	}
	if err != nil {
		return nil, err
	}

	clr := cascadeLiquidationPct(positions)
	rlr := recursiveLendingPct(positions)

	now := time.Now().UTC()
	meta := map[string]any{
		"market":   market.Anchor(),
		"protocol": string(market.Protocol),
		"tvl_usd":  supplyUSD,
	}
	sample := func(metric string, value float64) types.MetricSample {
		return types.MetricSample{
			AssetSymbol: scope.Asset.Symbol,
			MetricName:  metric,
			Value:       value,
			Chain:       market.Chain,
			Metadata:    meta,
			RecordedAt:  now,
		}
	}

	lendingLogger.Debug().
		Str("asset", scope.Asset.Symbol).
		Str("market", market.Anchor()).
		Float64("utilization", utilization).
		Float64("clr", clr).
		Float64("rlr", rlr).
		Int("positions", len(positions)).
		Msg("Lending market fetched")

	return []types.MetricSample{
		sample(catalog.MetricUtilizationRate, utilization),
		sample(catalog.MetricCLR, clr),
		sample(catalog.MetricRLR, rlr),
	}, nil
}

// aaveUtilization reads totals from the Aave protocol data provider.
func (f *LendingFetcher) aaveUtilization(ctx context.Context, market *types.LendingConfig) (float64, error) {
	client, err := f.evm.Client(ctx, market.Chain)
	if err != nil {
		return 0, terminal(KindLending, err)
	}

	provider := market.DataProvider
	if provider == "" {
		provider = market.Pool
	}
	results, err := callContract(ctx, client, provider, aaveDataProviderABI, "getReserveData", common.HexToAddress(market.TokenAddress))
	if err != nil {
		return 0, retriable(KindLending, err)
	}
	if len(results) < 5 {
		return 0, terminal(KindLending, fmt.Errorf("getReserveData returned %d values", len(results)))
	}

	totalAToken, okA := results[2].(*big.Int)
	totalStable, okS := results[3].(*big.Int)
	totalVariable, okV := results[4].(*big.Int)
	if !okA || !okS || !okV {
		return 0, terminal(KindLending, fmt.Errorf("getReserveData returned unexpected types"))
	}

	supply := new(big.Float).SetInt(totalAToken)
	debt := new(big.Float).Add(new(big.Float).SetInt(totalStable), new(big.Float).SetInt(totalVariable))
	supplyF, _ := supply.Float64()
	debtF, _ := debt.Float64()
	if supplyF <= 0 {
		return 0, nil
	}
	return debtF / supplyF * 100, nil
}

// compoundUtilization reads totals from the Comet contract.
func (f *LendingFetcher) compoundUtilization(ctx context.Context, market *types.LendingConfig) (float64, error) {
	client, err := f.evm.Client(ctx, market.Chain)
	if err != nil {
		return 0, terminal(KindLending, err)
	}

	supplyRes, err := callContract(ctx, client, market.Comet, cometABI, "totalSupply")
	if err != nil {
		return 0, retriable(KindLending, err)
	}
	borrowRes, err := callContract(ctx, client, market.Comet, cometABI, "totalBorrow")
	if err != nil {
		return 0, retriable(KindLending, err)
	}

	supply, okS := supplyRes[0].(*big.Int)
	borrow, okB := borrowRes[0].(*big.Int)
	if !okS || !okB {
		return 0, terminal(KindLending, fmt.Errorf("comet totals returned unexpected types"))
	}
	supplyF, _ := new(big.Float).SetInt(supply).Float64()
	borrowF, _ := new(big.Float).SetInt(borrow).Float64()
	if supplyF <= 0 {
		return 0, nil
	}
	return borrowF / supplyF * 100, nil
}

const lendingPositionsQuery = `
query ($token: String!) {
  positions(first: 1000, where: {asset: $token}) {
    account { id }
    suppliedUSD
    borrowedUSD
    healthFactor
  }
}`

type lendingPositionsResponse struct {
	Positions []struct {
		Account struct {
			ID string `json:"id"`
		} `json:"account"`
		SuppliedUSD  string `json:"suppliedUSD"`
		BorrowedUSD  string `json:"borrowedUSD"`
		HealthFactor string `json:"healthFactor"`
	} `json:"positions"`
}

// subgraphPositions pulls per-account positions on the market's asset.
func (f *LendingFetcher) subgraphPositions(ctx context.Context, market *types.LendingConfig) ([]lendingPosition, float64, error) {
	endpoint := config.LendingSubgraphURL(market.Protocol, market.Chain)
	var resp lendingPositionsResponse
	if err := f.http.graphqlQuery(ctx, KindLending, endpoint, lendingPositionsQuery, map[string]any{"token": market.TokenAddress}, &resp); err != nil {
		return nil, 0, err
	}

	positions := make([]lendingPosition, 0, len(resp.Positions))
	var supplyUSD float64
	for _, p := range resp.Positions {
		pos := lendingPosition{
			SuppliedUSD:  parseFloatOrZero(p.SuppliedUSD),
			BorrowedUSD:  parseFloatOrZero(p.BorrowedUSD),
			HealthFactor: parseFloatOrZero(p.HealthFactor),
		}
		supplyUSD += pos.SuppliedUSD
		positions = append(positions, pos)
	}
	return positions, supplyUSD, nil
}

type fluidMarketResponse struct {
	SupplyUSD float64 `json:"supply_usd"`
	BorrowUSD float64 `json:"borrow_usd"`
	Positions []struct {
		SuppliedUSD  float64 `json:"supplied_usd"`
		BorrowedUSD  float64 `json:"borrowed_usd"`
		HealthFactor float64 `json:"health_factor"`
	} `json:"positions"`
}

// fluidMarket reads the Fluid REST API for one named market.
func (f *LendingFetcher) fluidMarket(ctx context.Context, market *types.LendingConfig) (float64, []lendingPosition, float64, error) {
	endpoint := fmt.Sprintf("%s/v1/markets/%s?chain=%s",
		config.FluidAPIBase(), url.PathEscape(market.MarketName), market.Chain)

	var resp fluidMarketResponse
	if err := f.http.getJSON(ctx, KindLending, endpoint, &resp); err != nil {
		return 0, nil, 0, err
	}

	positions := make([]lendingPosition, 0, len(resp.Positions))
	for _, p := range resp.Positions {
		positions = append(positions, lendingPosition{
			SuppliedUSD:  p.SuppliedUSD,
			BorrowedUSD:  p.BorrowedUSD,
			HealthFactor: p.HealthFactor,
		})
	}

	var utilization float64
	if resp.SupplyUSD > 0 {
		utilization = resp.BorrowUSD / resp.SupplyUSD * 100
	}
	return utilization, positions, resp.SupplyUSD, nil
}

// cascadeLiquidationPct is the fraction of borrowed value held by positions
// with health factor below the risk cutoff, times 100.
func cascadeLiquidationPct(positions []lendingPosition) float64 {
	var totalBorrowed, atRisk float64
	for _, p := range positions {
		if p.BorrowedUSD <= 0 {
			continue
		}
		totalBorrowed += p.BorrowedUSD
		if p.HealthFactor > 0 && p.HealthFactor < riskyHealthFactor {
			atRisk += p.BorrowedUSD
		}
	}
	if totalBorrowed <= 0 {
		return 0
	}
	return atRisk / totalBorrowed * 100
}

// recursiveLendingPct is the fraction of supply held by accounts that both
// supply and borrow the same asset (loop positions), times 100.
func recursiveLendingPct(positions []lendingPosition) float64 {
	var totalSupplied, looped float64
	for _, p := range positions {
		if p.SuppliedUSD <= 0 {
			continue
		}
		totalSupplied += p.SuppliedUSD
		if p.BorrowedUSD > 0 {
			looped += p.SuppliedUSD
		}
	}
	if totalSupplied <= 0 {
		return 0
	}
	return looped / totalSupplied * 100
}
