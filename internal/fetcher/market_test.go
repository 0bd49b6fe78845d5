package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

// quoteServer serves market_chart responses per price ID.
func quoteServer(t *testing.T, series map[string][]float64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.URL.Path, "/")
		// /coins/{id}/market_chart
		require.GreaterOrEqual(t, len(parts), 3)
		id := parts[2]

		prices, ok := series[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		points := make([][]float64, len(prices))
		for i, p := range prices {
			points[i] = []float64{float64(i), p}
		}
		json.NewEncoder(w).Encode(map[string]any{"prices": points})
	}))
}

func marketScope(class types.FrequencyClass) Scope {
	return Scope{
		Class: class,
		Asset: types.Asset{
			Symbol: "WSTETH",
			Config: types.AssetConfig{
				PriceRisk: &types.PriceRisk{
					TokenPriceID:      "wrapped-steth",
					UnderlyingPriceID: "ethereum",
				},
			},
		},
	}
}

func TestMarketFetcherPegDeviation(t *testing.T) {
	server := quoteServer(t, map[string][]float64{
		"wrapped-steth": {3000, 3010, 3030},
		"ethereum":      {3000, 3000, 3000},
	})
	defer server.Close()
	t.Setenv("QUOTE_API_BASE", server.URL)

	f := NewMarketFetcher()
	samples, err := f.Fetch(context.Background(), marketScope(types.ClassCritical))
	require.NoError(t, err)
	require.Len(t, samples, 1)

	sample := samples[0]
	assert.Equal(t, catalog.MetricPegDeviation, sample.MetricName)
	assert.InDelta(t, 1.0, sample.Value, 1e-9)
	assert.Equal(t, "premium", sample.Metadata["direction"])
	assert.InDelta(t, 1.0, sample.Metadata["raw_deviation"].(float64), 1e-9)
}

func TestMarketFetcherPegMissingUnderlyingEmitsNothing(t *testing.T) {
	server := quoteServer(t, map[string][]float64{"wrapped-steth": {3000, 3010}})
	defer server.Close()
	t.Setenv("QUOTE_API_BASE", server.URL)

	scope := marketScope(types.ClassCritical)
	scope.Asset.Config.PriceRisk.UnderlyingPriceID = ""

	f := NewMarketFetcher()
	samples, err := f.Fetch(context.Background(), scope)
	require.NoError(t, err)
	assert.Empty(t, samples)
}

func TestMarketFetcherDailyRiskMetrics(t *testing.T) {
	// A year of prices cycling in a narrow band gives finite, positive risk numbers.
	prices := make([]float64, 365)
	for i := range prices {
		prices[i] = 3000 + float64(i%7)*10
	}
	server := quoteServer(t, map[string][]float64{
		"wrapped-steth": prices,
		"ethereum":      prices,
	})
	defer server.Close()
	t.Setenv("QUOTE_API_BASE", server.URL)

	f := NewMarketFetcher()
	samples, err := f.Fetch(context.Background(), marketScope(types.ClassDaily))
	require.NoError(t, err)

	byName := make(map[string]types.MetricSample)
	for _, s := range samples {
		byName[s.MetricName] = s
	}
	require.Contains(t, byName, catalog.MetricVolatilityAnnualized)
	require.Contains(t, byName, catalog.MetricVaR95)
	require.Contains(t, byName, catalog.MetricCVaR95)
	require.Contains(t, byName, catalog.MetricPriceDeviation365dMax)

	assert.Greater(t, byName[catalog.MetricVolatilityAnnualized].Value, 0.0)
	// Token and underlying are identical, so the peg never deviates.
	assert.InDelta(t, 0.0, byName[catalog.MetricPriceDeviation365dMax].Value, 1e-9)
}

func TestMarketFetcherInsufficientDataIsTerminal(t *testing.T) {
	server := quoteServer(t, map[string][]float64{
		"wrapped-steth": {3000, 3010},
		"ethereum":      {3000, 3000},
	})
	defer server.Close()
	t.Setenv("QUOTE_API_BASE", server.URL)

	f := NewMarketFetcher()
	_, err := f.Fetch(context.Background(), marketScope(types.ClassDaily))
	require.Error(t, err)
	assert.False(t, IsRetriable(err))
}
