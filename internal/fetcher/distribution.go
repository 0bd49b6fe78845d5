package fetcher

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/config"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var distributionLogger = logger.GetForComponent("distribution_fetcher")

// maxHolderPages bounds the explorer pagination; the tail of the holder list
// does not move the concentration metrics.
const (
	maxHolderPages = 5
	holdersPerPage = 100
)

// DistributionFetcher reads token-holder balances from the block-explorer
// API and derives holder concentration metrics per (chain, token address).
type DistributionFetcher struct {
	http    *httpClient
	limiter *rate.Limiter
}

// NewDistributionFetcher builds the distribution fetcher. Explorer APIs are
// aggressively rate limited, so calls share one limiter across all assets.
func NewDistributionFetcher() *DistributionFetcher {
	return &DistributionFetcher{
		http:    newHTTPClient(),
		limiter: rate.NewLimiter(rate.Every(250*time.Millisecond), 1),
	}
}

func (f *DistributionFetcher) Kind() Kind {
	return KindDistribution
}

type tokenInfoResponse struct {
	TotalSupply string `json:"total_supply"`
	Decimals    string `json:"decimals"`
}

type holdersResponse struct {
	Items []struct {
		Value string `json:"value"`
	} `json:"items"`
	NextPageParams map[string]any `json:"next_page_params"`
}

func (f *DistributionFetcher) Fetch(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	target := scope.TokenAddress
	if target == nil {
		return nil, nil
	}

	base := config.ExplorerAPIBase(target.Chain)
	if base == "" {
		// No explorer coverage for this chain; not an error.
		distributionLogger.Debug().
			Str("asset", scope.Asset.Symbol).
			Str("chain", string(target.Chain)).
			Msg("No explorer API for chain, skipping distribution metrics")
		return nil, nil
	}

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, retriable(KindDistribution, err)
	}

	var info tokenInfoResponse
	infoURL := fmt.Sprintf("%s/api/v2/tokens/%s", base, target.Address)
	if err := f.http.getJSON(ctx, KindDistribution, infoURL, &info); err != nil {
		return nil, err
	}

	decimals := scope.Asset.Decimals
	if d, err := strconv.Atoi(info.Decimals); err == nil && d > 0 {
		decimals = d
	}
	totalSupply, err := parseScaled(info.TotalSupply, decimals)
	if err != nil {
		return nil, terminal(KindDistribution, fmt.Errorf("unparseable total supply %q: %w", info.TotalSupply, err))
	}

	balances, err := f.fetchHolderBalances(ctx, base, target.Address, decimals)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	meta := map[string]any{
		"token":           target.Address,
		"holders_sampled": len(balances),
		"explorer":        base,
	}
	sample := func(metric string, value float64) types.MetricSample {
		return types.MetricSample{
			AssetSymbol: scope.Asset.Symbol,
			MetricName:  metric,
			Value:       value,
			Chain:       target.Chain,
			Metadata:    meta,
			RecordedAt:  now,
		}
	}

	samples := []types.MetricSample{sample(catalog.MetricTotalSupply, totalSupply)}
	if len(balances) > 0 {
		samples = append(samples,
			sample(catalog.MetricGini, giniCoefficient(balances)),
			sample(catalog.MetricHHI, hhiIndex(balances)),
			sample(catalog.MetricTop10Concentration, topNShare(balances, 10, totalSupply)),
		)
	}

	distributionLogger.Debug().
		Str("asset", scope.Asset.Symbol).
		Str("chain", string(target.Chain)).
		Int("holders", len(balances)).
		Msg("Holder distribution fetched")
	return samples, nil
}

// fetchHolderBalances pages through the explorer's holder list, largest
// first, up to the page cap.
func (f *DistributionFetcher) fetchHolderBalances(ctx context.Context, base, token string, decimals int) ([]float64, error) {
	var balances []float64
	pageQuery := ""

	for page := 0; page < maxHolderPages; page++ {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, retriable(KindDistribution, err)
		}

		url := fmt.Sprintf("%s/api/v2/tokens/%s/holders?limit=%d%s", base, token, holdersPerPage, pageQuery)
		var resp holdersResponse
		if err := f.http.getJSON(ctx, KindDistribution, url, &resp); err != nil {
			return nil, err
		}

		for _, item := range resp.Items {
			balance, err := parseScaled(item.Value, decimals)
			if err != nil {
				continue
			}
			balances = append(balances, balance)
		}

		if resp.NextPageParams == nil || len(resp.Items) < holdersPerPage {
			break
		}
		pageQuery = nextPageQuery(resp.NextPageParams)
	}
	return balances, nil
}

func nextPageQuery(params map[string]any) string {
	q := ""
	for k, v := range params {
		q += fmt.Sprintf("&%s=%v", k, v)
	}
	return q
}

// parseScaled converts a raw integer token amount string to a float using
// the token decimals.
func parseScaled(raw string, decimals int) (float64, error) {
	if raw == "" {
		return 0, fmt.Errorf("empty amount")
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return 0, fmt.Errorf("not an integer: %q", raw)
	}
	f, _ := new(big.Float).Quo(new(big.Float).SetInt(v), big.NewFloat(math.Pow10(decimals))).Float64()
	return f, nil
}
