package fetcher

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var oracleLogger = logger.GetForComponent("oracle_fetcher")

// maxOracleStalenessMinutes caps the freshness value for feeds that exist but
// cannot be read sensibly (zero updatedAt). One year keeps the value finite
// while still tripping every staleness threshold.
const maxOracleStalenessMinutes = 525600

// OracleFetcher reads price-feed freshness and cross-chain feed lag.
type OracleFetcher struct {
	evm *EVMClients
}

// NewOracleFetcher builds the oracle fetcher over a shared EVM client pool.
func NewOracleFetcher(evm *EVMClients) *OracleFetcher {
	return &OracleFetcher{evm: evm}
}

func (f *OracleFetcher) Kind() Kind {
	return KindOracle
}

// Fetch handles two scopes: a single feed (freshness) and the cross-chain
// pairing over the whole cross_chain_feeds section (lag).
func (f *OracleFetcher) Fetch(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	if scope.CrossChain {
		return f.fetchCrossChainLag(ctx, scope)
	}
	if scope.Feed == nil {
		return nil, nil
	}
	return f.fetchFeedFreshness(ctx, scope)
}

func (f *OracleFetcher) fetchFeedFreshness(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	feed := scope.Feed
	updatedAt, err := f.feedUpdatedAt(ctx, *feed)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	var freshness float64
	if updatedAt.IsZero() {
		// Feed is known-existent but unreadable: clamp instead of guessing.
		freshness = maxOracleStalenessMinutes
	} else {
		freshness = math.Max(0, now.Sub(updatedAt).Minutes())
		freshness = math.Min(freshness, maxOracleStalenessMinutes)
	}

	return []types.MetricSample{{
		AssetSymbol: scope.Asset.Symbol,
		MetricName:  catalog.MetricOracleFreshness,
		Value:       freshness,
		Chain:       feed.Chain,
		Metadata: map[string]any{
			"feed":    feed.Name,
			"address": feed.Address,
		},
		RecordedAt: now,
	}}, nil
}

// fetchCrossChainLag pairs cross_chain_feeds by name and emits the absolute
// timestamp difference for every matched pair.
func (f *OracleFetcher) fetchCrossChainLag(ctx context.Context, scope Scope) ([]types.MetricSample, error) {
	feeds := scope.Asset.Config.CrossChainFeeds
	if len(feeds) < 2 {
		return nil, nil
	}

	byName := make(map[string][]types.OracleFeed)
	for _, feed := range feeds {
		byName[feed.Name] = append(byName[feed.Name], feed)
	}

	now := time.Now().UTC()
	var samples []types.MetricSample
	for name, group := range byName {
		if len(group) < 2 {
			continue
		}

		timestamps := make([]time.Time, len(group))
		for i, feed := range group {
			ts, err := f.feedUpdatedAt(ctx, feed)
			if err != nil {
				return nil, err
			}
			timestamps[i] = ts
		}

		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if timestamps[i].IsZero() || timestamps[j].IsZero() {
					continue
				}
				lag := math.Abs(timestamps[i].Sub(timestamps[j]).Minutes())
				samples = append(samples, types.MetricSample{
					AssetSymbol: scope.Asset.Symbol,
					MetricName:  catalog.MetricCrossChainLag,
					Value:       lag,
					Chain:       group[j].Chain,
					Metadata: map[string]any{
						"feed":    name,
						"chain_a": string(group[i].Chain),
						"chain_b": string(group[j].Chain),
					},
					RecordedAt: now,
				})
			}
		}
	}

	oracleLogger.Debug().
		Str("asset", scope.Asset.Symbol).
		Int("pairs", len(samples)).
		Msg("Cross-chain oracle lag computed")
	return samples, nil
}

// feedUpdatedAt reads latestRoundData and returns the feed's update time.
// A zero time means the feed answered but reported no usable timestamp.
func (f *OracleFetcher) feedUpdatedAt(ctx context.Context, feed types.OracleFeed) (time.Time, error) {
	client, err := f.evm.Client(ctx, feed.Chain)
	if err != nil {
		return time.Time{}, terminal(KindOracle, err)
	}

	results, err := callContract(ctx, client, feed.Address, aggregatorABI, "latestRoundData")
	if err != nil {
		return time.Time{}, retriable(KindOracle, err)
	}
	if len(results) < 4 {
		return time.Time{}, terminal(KindOracle, fmt.Errorf("latestRoundData returned %d values", len(results)))
	}

	updatedAt, ok := results[3].(*big.Int)
	if !ok {
		return time.Time{}, terminal(KindOracle, fmt.Errorf("latestRoundData updatedAt has unexpected type %T", results[3]))
	}
	if updatedAt.Sign() <= 0 {
		return time.Time{}, nil
	}
	return time.Unix(updatedAt.Int64(), 0).UTC(), nil
}
