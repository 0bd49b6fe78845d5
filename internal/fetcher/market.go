package fetcher

import (
	"context"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/config"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var marketLogger = logger.GetForComponent("market_fetcher")

const (
	// pegLookbackDays keeps critical-class peg checks cheap; the full price
	// risk metrics use a year of history.
	pegLookbackDays  = 30
	riskLookbackDays = 365

	// minPricePoints guards the statistics against thin series.
	minPricePoints = 30
)

// MarketFetcher reads historical prices from the off-chain quote source and
// derives peg deviation and the daily price-risk metrics.
type MarketFetcher struct {
	http *httpClient
}

// NewMarketFetcher builds the market fetcher.
func NewMarketFetcher() *MarketFetcher {
	return &MarketFetcher{http: newHTTPClient()}
}

func (f *MarketFetcher) Kind() Kind {
	return KindMarket
}

type marketChartResponse struct {
	Prices [][]float64 `json:"prices"`
}

func (f *MarketFetcher) Fetch(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	pr := scope.Asset.Config.PriceRisk
	if pr == nil || pr.TokenPriceID == "" {
		return nil, nil
	}

	if scope.Class == types.ClassCritical {
		return f.fetchPegDeviation(ctx, scope, pr)
	}
	return f.fetchPriceRisk(ctx, scope, pr)
}

// fetchPegDeviation emits the current peg deviation. When either side of the
// pair is missing no sample is emitted; absence is not zero.
func (f *MarketFetcher) fetchPegDeviation(ctx context.Context, scope Scope, pr *types.PriceRisk) ([]types.MetricSample, error) {
	if pr.UnderlyingPriceID == "" {
		return nil, nil
	}

	tokenPrices, err := f.fetchPrices(ctx, pr.TokenPriceID, pegLookbackDays)
	if err != nil {
		return nil, err
	}
	underPrices, err := f.fetchPrices(ctx, pr.UnderlyingPriceID, pegLookbackDays)
	if err != nil {
		return nil, err
	}
	if len(tokenPrices) == 0 || len(underPrices) == 0 {
		return nil, nil
	}

	tokenLast := tokenPrices[len(tokenPrices)-1]
	underLast := underPrices[len(underPrices)-1]
	if underLast == 0 {
		return nil, nil
	}

	deviation := (tokenLast/underLast - 1) * 100
	direction := "premium"
	if deviation < 0 {
		direction = "discount"
	}

	return []types.MetricSample{{
		AssetSymbol: scope.Asset.Symbol,
		MetricName:  catalog.MetricPegDeviation,
		Value:       math.Abs(deviation),
		Metadata: map[string]any{
			"underlying":    pr.UnderlyingPriceID,
			"direction":     direction,
			"raw_deviation": deviation,
		},
		RecordedAt: time.Now().UTC(),
	}}, nil
}

// fetchPriceRisk emits volatility, VaR, CVaR and the maximum historical peg
// deviation over the risk lookback window.
func (f *MarketFetcher) fetchPriceRisk(ctx context.Context, scope Scope, pr *types.PriceRisk) ([]types.MetricSample, error) {
	prices, err := f.fetchPrices(ctx, pr.TokenPriceID, riskLookbackDays)
	if err != nil {
		return nil, err
	}
	if len(prices) < minPricePoints {
		return nil, terminal(KindMarket, fmt.Errorf("insufficient price data for %s: %d points", pr.TokenPriceID, len(prices)))
	}

	returns := dailyReturns(prices)
	volatility := stddev(returns) * math.Sqrt(365) * 100
	p5 := percentile(returns, 5)
	var95 := -p5 * 100

	var tail []float64
	for _, r := range returns {
		if r <= p5 {
			tail = append(tail, r)
		}
	}
	cvar95 := -mean(tail) * 100

	now := time.Now().UTC()
	meta := map[string]any{
		"days_analyzed": riskLookbackDays,
		"data_points":   len(prices),
	}
	sample := func(metric string, value float64) types.MetricSample {
		return types.MetricSample{
			AssetSymbol: scope.Asset.Symbol,
			MetricName:  metric,
			Value:       value,
			Metadata:    meta,
			RecordedAt:  now,
		}
	}

	samples := []types.MetricSample{
		sample(catalog.MetricVolatilityAnnualized, volatility),
		sample(catalog.MetricVaR95, var95),
		sample(catalog.MetricCVaR95, cvar95),
	}

	if pr.UnderlyingPriceID != "" {
		underPrices, err := f.fetchPrices(ctx, pr.UnderlyingPriceID, riskLookbackDays)
		if err != nil {
			return nil, err
		}
		if maxDev, ok := maxAbsDeviation(prices, underPrices); ok {
			samples = append(samples, sample(catalog.MetricPriceDeviation365dMax, maxDev))
		}
	}

	marketLogger.Debug().
		Str("asset", scope.Asset.Symbol).
		Float64("volatility", volatility).
		Float64("var95", var95).
		Msg("Price risk metrics computed")
	return samples, nil
}

func (f *MarketFetcher) fetchPrices(ctx context.Context, priceID string, days int) ([]float64, error) {
	endpoint := fmt.Sprintf("%s/coins/%s/market_chart?vs_currency=usd&days=%d",
		config.QuoteAPIBase(), url.PathEscape(priceID), days)

	var chart marketChartResponse
	if err := f.http.getJSON(ctx, KindMarket, endpoint, &chart); err != nil {
		return nil, err
	}

	prices := make([]float64, 0, len(chart.Prices))
	for _, point := range chart.Prices {
		if len(point) >= 2 && point[1] > 0 {
			prices = append(prices, point[1])
		}
	}
	return prices, nil
}

// maxAbsDeviation aligns the two series on their common suffix length and
// returns the maximum absolute percentage deviation.
func maxAbsDeviation(tokenPrices, underPrices []float64) (float64, bool) {
	n := len(tokenPrices)
	if len(underPrices) < n {
		n = len(underPrices)
	}
	if n == 0 {
		return 0, false
	}

	maxDev := 0.0
	for i := 0; i < n; i++ {
		t := tokenPrices[len(tokenPrices)-n+i]
		u := underPrices[len(underPrices)-n+i]
		if u == 0 {
			continue
		}
		dev := math.Abs((t/u - 1) * 100)
		if dev > maxDev {
			maxDev = dev
		}
	}
	return maxDev, true
}
