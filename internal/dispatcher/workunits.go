/*

This file contains work-unit expansion: mapping a (frequency class, registry
snapshot) pair to the set of scoped fetches the tick must run, intersected
with each asset's declared configuration.

*/

package dispatcher

import (
	"github.com/avantgarde-labs/riskmon/internal/fetcher"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

// WorkUnit is one scoped fetch plus the metric allowlist of the tick's
// frequency class. Samples outside the allowlist are dropped before
// persistence: a fetcher may compute more than the class asked for, but the
// tick only stores what the class owns.
type WorkUnit struct {
	Kind    fetcher.Kind
	Scope   fetcher.Scope
	Metrics map[string]bool
}

// ExpandWorkUnits computes the work units implied by a frequency class for
// one asset.
func ExpandWorkUnits(class types.FrequencyClass, asset types.Asset, classMetrics map[string]bool) []WorkUnit {
	cfg := asset.Config
	var units []WorkUnit

	add := func(kind fetcher.Kind, scope fetcher.Scope) {
		scope.Asset = asset
		scope.Class = class
		units = append(units, WorkUnit{Kind: kind, Scope: scope, Metrics: classMetrics})
	}

	switch class {
	case types.ClassCritical:
		for i := range cfg.PriceFeeds {
			add(fetcher.KindOracle, fetcher.Scope{Feed: &cfg.PriceFeeds[i]})
		}
		for i := range cfg.CrossChainFeeds {
			add(fetcher.KindOracle, fetcher.Scope{Feed: &cfg.CrossChainFeeds[i]})
		}
		if cfg.ProofOfReserve != nil {
			add(fetcher.KindReserve, fetcher.Scope{})
		}
		if cfg.PriceRisk != nil && cfg.PriceRisk.UnderlyingPriceID != "" {
			add(fetcher.KindMarket, fetcher.Scope{})
		}

	case types.ClassHigh:
		for i := range cfg.DexPools {
			add(fetcher.KindLiquidity, fetcher.Scope{Pool: &cfg.DexPools[i]})
		}
		for i := range cfg.LendingConfigs {
			add(fetcher.KindLending, fetcher.Scope{Lending: &cfg.LendingConfigs[i]})
		}

	case types.ClassMedium:
		for i := range cfg.TokenAddresses {
			add(fetcher.KindDistribution, fetcher.Scope{TokenAddress: &cfg.TokenAddresses[i]})
		}
		for i := range cfg.LendingConfigs {
			add(fetcher.KindLending, fetcher.Scope{Lending: &cfg.LendingConfigs[i]})
		}
		for i := range cfg.DexPools {
			add(fetcher.KindLiquidity, fetcher.Scope{Pool: &cfg.DexPools[i]})
		}
		if len(cfg.CrossChainFeeds) >= 2 {
			add(fetcher.KindOracle, fetcher.Scope{CrossChain: true})
		}

	case types.ClassDaily:
		if cfg.PriceRisk != nil {
			add(fetcher.KindMarket, fetcher.Scope{})
		}
	}

	return units
}
