package fetcher

import (
	"context"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var reserveLogger = logger.GetForComponent("reserve_fetcher")

// ReserveFetcher computes the proof-of-reserve ratio. 1.0 denotes a fully
// backed supply; the computation depends on the configured PoR kind.
type ReserveFetcher struct {
	evm  *EVMClients
	http *httpClient
}

// NewReserveFetcher builds the reserve fetcher.
func NewReserveFetcher(evm *EVMClients) *ReserveFetcher {
	return &ReserveFetcher{evm: evm, http: newHTTPClient()}
}

func (f *ReserveFetcher) Kind() Kind {
	return KindReserve
}

func (f *ReserveFetcher) Fetch(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	por := scope.Asset.Config.ProofOfReserve
	if por == nil {
		return nil, nil
	}

	var (
		ratio float64
		meta  map[string]any
		err   error
	)
	switch por.Kind {
	case types.PoRChainlink:
		ratio, meta, err = f.chainlinkRatio(ctx, scope.Asset, por)
	case types.PoRLiquidStaking:
		ratio, meta, err = f.liquidStakingRatio(ctx, scope.Asset, por)
	case types.PoRFractional:
		ratio, meta, err = f.fractionalRatio(ctx, scope.Asset, por)
	case types.PoRNAVBased:
		ratio, meta, err = f.navRatio(ctx, por)
	case types.PoRScraper:
		ratio, meta, err = f.scraperRatio(ctx, por)
	default:
		return nil, terminal(KindReserve, fmt.Errorf("unknown proof_of_reserve kind %q", por.Kind))
	}
	if err != nil {
		return nil, err
	}

	reserveLogger.Debug().
		Str("asset", scope.Asset.Symbol).
		Str("kind", string(por.Kind)).
		Float64("ratio", ratio).
		Msg("Proof-of-reserve ratio computed")

	return []types.MetricSample{{
		AssetSymbol: scope.Asset.Symbol,
		MetricName:  catalog.MetricPoRRatio,
		Value:       ratio,
		Metadata:    meta,
		RecordedAt:  time.Now().UTC(),
	}}, nil
}

// chainlinkRatio reads the PoR aggregators (attested reserves) and divides by
// the on-chain token supply, both normalized by their own decimals.
func (f *ReserveFetcher) chainlinkRatio(ctx context.Context, asset types.Asset, por *types.ProofOfReserve) (float64, map[string]any, error) {
	var reserves, supply float64

	for _, agg := range por.Aggregators {
		client, err := f.evm.Client(ctx, agg.Chain)
		if err != nil {
			return 0, nil, terminal(KindReserve, err)
		}

		answer, decimals, err := f.readAggregator(ctx, client, agg.Address)
		if err != nil {
			return 0, nil, err
		}
		reserves += bigToFloat(answer, decimals)
	}

	tokens := por.TokenAddresses
	if len(tokens) == 0 {
		for _, ta := range asset.Config.TokenAddresses {
			tokens = append(tokens, types.ChainAddress{Chain: ta.Chain, Address: ta.Address})
		}
	}
	for _, token := range tokens {
		client, err := f.evm.Client(ctx, token.Chain)
		if err != nil {
			return 0, nil, terminal(KindReserve, err)
		}
		tokenSupply, err := f.readSupply(ctx, client, token.Address)
		if err != nil {
			return 0, nil, err
		}
		supply += tokenSupply
	}

	if supply <= 0 {
		return 0, nil, terminal(KindReserve, fmt.Errorf("total supply is zero for %s", asset.Symbol))
	}
	return reserves / supply, map[string]any{"reserves": reserves, "supply": supply, "source": "chainlink_por"}, nil
}

// liquidStakingRatio compares the staked-token balance held by the wrapper
// contract against the wrapped supply.
func (f *ReserveFetcher) liquidStakingRatio(ctx context.Context, asset types.Asset, por *types.ProofOfReserve) (float64, map[string]any, error) {
	chain := por.StakedTokenChain
	if chain == "" {
		chain = types.ChainEthereum
	}
	client, err := f.evm.Client(ctx, chain)
	if err != nil {
		return 0, nil, terminal(KindReserve, err)
	}

	var wrapper string
	for _, ta := range asset.Config.TokenAddresses {
		if ta.Chain == chain {
			wrapper = ta.Address
			break
		}
	}
	if wrapper == "" {
		return 0, nil, terminal(KindReserve, fmt.Errorf("no token address on chain %s for liquid_staking PoR", chain))
	}

	staked, err := f.readBalance(ctx, client, por.StakedToken, wrapper)
	if err != nil {
		return 0, nil, err
	}
	supply, err := f.readSupply(ctx, client, wrapper)
	if err != nil {
		return 0, nil, err
	}
	if supply <= 0 {
		return 0, nil, terminal(KindReserve, fmt.Errorf("wrapped supply is zero for %s", asset.Symbol))
	}
	return staked / supply, map[string]any{"staked": staked, "supply": supply, "source": "liquid_staking"}, nil
}

// fractionalRatio reads the configured backing source: a JSON endpoint
// reporting reserves and supply, or an on-chain aggregator quoting the ratio.
func (f *ReserveFetcher) fractionalRatio(ctx context.Context, asset types.Asset, por *types.ProofOfReserve) (float64, map[string]any, error) {
	if strings.HasPrefix(por.BackingSource, "http://") || strings.HasPrefix(por.BackingSource, "https://") {
		var payload struct {
			Reserves float64 `json:"reserves"`
			Supply   float64 `json:"supply"`
		}
		if err := f.http.getJSON(ctx, KindReserve, por.BackingSource, &payload); err != nil {
			return 0, nil, err
		}
		if payload.Supply <= 0 {
			return 0, nil, terminal(KindReserve, fmt.Errorf("backing source reported zero supply for %s", asset.Symbol))
		}
		return payload.Reserves / payload.Supply, map[string]any{
			"reserves": payload.Reserves, "supply": payload.Supply, "source": "fractional_api",
		}, nil
	}

	chain := por.BackingChain
	if chain == "" {
		chain = types.ChainEthereum
	}
	client, err := f.evm.Client(ctx, chain)
	if err != nil {
		return 0, nil, terminal(KindReserve, err)
	}
	answer, decimals, err := f.readAggregator(ctx, client, por.BackingSource)
	if err != nil {
		return 0, nil, err
	}
	return bigToFloat(answer, decimals), map[string]any{"source": "fractional_onchain"}, nil
}

// navRatio reads the NAV oracle; a NAV of 1.0 per token means fully backed.
func (f *ReserveFetcher) navRatio(ctx context.Context, por *types.ProofOfReserve) (float64, map[string]any, error) {
	oracle := por.NAVOracle
	client, err := f.evm.Client(ctx, oracle.Chain)
	if err != nil {
		return 0, nil, terminal(KindReserve, err)
	}
	answer, decimals, err := f.readAggregator(ctx, client, oracle.Address)
	if err != nil {
		return 0, nil, err
	}
	return bigToFloat(answer, decimals), map[string]any{"source": "nav_oracle", "oracle": oracle.Address}, nil
}

var percentPattern = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)\s*%`)

// scraperRatio pulls an HTML dashboard and extracts the backing percentage
// near the configured selector hint.
func (f *ReserveFetcher) scraperRatio(ctx context.Context, por *types.ProofOfReserve) (float64, map[string]any, error) {
	body, err := f.http.getBody(ctx, KindReserve, por.URL)
	if err != nil {
		return 0, nil, err
	}

	haystack := string(body)
	if por.Selector != "" {
		// Narrow to the region following the selector hint; the first
		// percentage after it is the collateralization figure.
		if idx := strings.Index(haystack, por.Selector); idx >= 0 {
			haystack = haystack[idx:]
		}
	}

	match := percentPattern.FindStringSubmatch(haystack)
	if match == nil {
		return 0, nil, terminal(KindReserve, fmt.Errorf("no percentage found at %s (selector %q)", por.URL, por.Selector))
	}
	pct, err := strconv.ParseFloat(match[1], 64)
	if err != nil {
		return 0, nil, terminal(KindReserve, fmt.Errorf("unparseable percentage %q: %w", match[1], err))
	}
	return pct / 100, map[string]any{"source": "scraper", "url": por.URL}, nil
}

func (f *ReserveFetcher) readAggregator(ctx context.Context, client *ethclient.Client, address string) (*big.Int, uint8, error) {
	results, err := callContract(ctx, client, address, aggregatorABI, "latestRoundData")
	if err != nil {
		return nil, 0, retriable(KindReserve, err)
	}
	if len(results) < 2 {
		return nil, 0, terminal(KindReserve, fmt.Errorf("latestRoundData returned %d values", len(results)))
	}
	answer, ok := results[1].(*big.Int)
	if !ok {
		return nil, 0, terminal(KindReserve, fmt.Errorf("aggregator answer has unexpected type %T", results[1]))
	}

	decResults, err := callContract(ctx, client, address, aggregatorABI, "decimals")
	if err != nil {
		return nil, 0, retriable(KindReserve, err)
	}
	decimals, ok := decResults[0].(uint8)
	if !ok {
		return nil, 0, terminal(KindReserve, fmt.Errorf("aggregator decimals has unexpected type %T", decResults[0]))
	}
	return answer, decimals, nil
}

func (f *ReserveFetcher) readSupply(ctx context.Context, client *ethclient.Client, token string) (float64, error) {
	supplyRes, err := callContract(ctx, client, token, erc20ABI, "totalSupply")
	if err != nil {
		return 0, retriable(KindReserve, err)
	}
	supply, ok := supplyRes[0].(*big.Int)
	if !ok {
		return 0, terminal(KindReserve, fmt.Errorf("totalSupply has unexpected type %T", supplyRes[0]))
	}

	decRes, err := callContract(ctx, client, token, erc20ABI, "decimals")
	if err != nil {
		return 0, retriable(KindReserve, err)
	}
	decimals, ok := decRes[0].(uint8)
	if !ok {
		return 0, terminal(KindReserve, fmt.Errorf("decimals has unexpected type %T", decRes[0]))
	}
	return bigToFloat(supply, decimals), nil
}

func (f *ReserveFetcher) readBalance(ctx context.Context, client *ethclient.Client, token, holder string) (float64, error) {
	balRes, err := callContract(ctx, client, token, erc20ABI, "balanceOf", common.HexToAddress(holder))
	if err != nil {
		return 0, retriable(KindReserve, err)
	}
	balance, ok := balRes[0].(*big.Int)
	if !ok {
		return 0, terminal(KindReserve, fmt.Errorf("balanceOf has unexpected type %T", balRes[0]))
	}

	decRes, err := callContract(ctx, client, token, erc20ABI, "decimals")
	if err != nil {
		return 0, retriable(KindReserve, err)
	}
	decimals, ok := decRes[0].(uint8)
	if !ok {
		return 0, terminal(KindReserve, fmt.Errorf("decimals has unexpected type %T", decRes[0]))
	}
	return bigToFloat(balance, decimals), nil
}
