/*

This file contains config-document validation and normalization. The registry
rejects documents that fail here with a ConfigInvalidError naming the
offending path; nothing invalid reaches the dispatcher or the scoring engine.

*/

package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrConfigInvalid is the sentinel joined into every ConfigInvalidError.
var ErrConfigInvalid = errors.New("asset config invalid")

// ConfigInvalidError is a structural config rejection. Path points at the
// offending document node.
type ConfigInvalidError struct {
	Path   string
	Reason string
}

func (e *ConfigInvalidError) Error() string {
	return fmt.Sprintf("config invalid at %s: %s", e.Path, e.Reason)
}

func (e *ConfigInvalidError) Is(target error) bool {
	return target == ErrConfigInvalid
}

func configInvalid(path, format string, args ...any) error {
	return &ConfigInvalidError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

var configValidator = validator.New(validator.WithRequiredStructEnabled())

// NormalizeConfigDocument parses a raw config document into the canonical
// AssetConfig shape. Legacy dict-form pool and market sections (chain ->
// entries) are flattened into the canonical list form.
func NormalizeConfigDocument(raw []byte) (AssetConfig, error) {
	var probe struct {
		DexPools       json.RawMessage `json:"dex_pools"`
		LendingConfigs json.RawMessage `json:"lending_configs"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return AssetConfig{}, configInvalid("$", "not a JSON object: %v", err)
	}

	var cfg AssetConfig
	if isDictForm(probe.DexPools) || isDictForm(probe.LendingConfigs) {
		// Strip the legacy sections, decode the rest, then flatten.
		var loose map[string]json.RawMessage
		if err := json.Unmarshal(raw, &loose); err != nil {
			return AssetConfig{}, configInvalid("$", "not a JSON object: %v", err)
		}
		delete(loose, "dex_pools")
		delete(loose, "lending_configs")
		rest, err := json.Marshal(loose)
		if err != nil {
			return AssetConfig{}, configInvalid("$", "re-encode failed: %v", err)
		}
		if err := json.Unmarshal(rest, &cfg); err != nil {
			return AssetConfig{}, configInvalid("$", "%v", err)
		}
		if isDictForm(probe.DexPools) {
			pools, err := flattenDexPools(probe.DexPools)
			if err != nil {
				return AssetConfig{}, err
			}
			cfg.DexPools = pools
		} else if len(probe.DexPools) > 0 {
			if err := json.Unmarshal(probe.DexPools, &cfg.DexPools); err != nil {
				return AssetConfig{}, configInvalid("dex_pools", "%v", err)
			}
		}
		if isDictForm(probe.LendingConfigs) {
			markets, err := flattenLendingConfigs(probe.LendingConfigs)
			if err != nil {
				return AssetConfig{}, err
			}
			cfg.LendingConfigs = markets
		} else if len(probe.LendingConfigs) > 0 {
			if err := json.Unmarshal(probe.LendingConfigs, &cfg.LendingConfigs); err != nil {
				return AssetConfig{}, configInvalid("lending_configs", "%v", err)
			}
		}
		return cfg, nil
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AssetConfig{}, configInvalid("$", "%v", err)
	}
	return cfg, nil
}

func isDictForm(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

func flattenDexPools(raw json.RawMessage) ([]DexPool, error) {
	var byChain map[Chain][]DexPool
	if err := json.Unmarshal(raw, &byChain); err != nil {
		return nil, configInvalid("dex_pools", "dict form: %v", err)
	}
	var pools []DexPool
	for chain, entries := range byChain {
		for _, p := range entries {
			if p.Chain == "" {
				p.Chain = chain
			}
			pools = append(pools, p)
		}
	}
	return pools, nil
}

func flattenLendingConfigs(raw json.RawMessage) ([]LendingConfig, error) {
	var byChain map[Chain][]LendingConfig
	if err := json.Unmarshal(raw, &byChain); err != nil {
		return nil, configInvalid("lending_configs", "dict form: %v", err)
	}
	var markets []LendingConfig
	for chain, entries := range byChain {
		for _, m := range entries {
			if m.Chain == "" {
				m.Chain = chain
			}
			markets = append(markets, m)
		}
	}
	return markets, nil
}

// ValidateAssetConfig enforces the config-document schema: struct-level
// constraints, chain enumeration, protocol anchors and the cross-section
// invariant that every lending and DEX chain also appears in token_addresses.
func ValidateAssetConfig(cfg AssetConfig) error {
	if err := configValidator.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			v := verrs[0]
			return configInvalid(v.Namespace(), "failed %q constraint", v.Tag())
		}
		return configInvalid("$", "%v", err)
	}

	for i, ta := range cfg.TokenAddresses {
		if !ta.Chain.Valid() {
			return configInvalid(fmt.Sprintf("token_addresses[%d].chain", i), "unsupported chain %q", ta.Chain)
		}
	}
	for i, lc := range cfg.LendingConfigs {
		path := fmt.Sprintf("lending_configs[%d]", i)
		if !lc.Chain.Valid() {
			return configInvalid(path+".chain", "unsupported chain %q", lc.Chain)
		}
		if !cfg.HasChain(lc.Chain) {
			return configInvalid(path+".chain", "chain %q has no entry in token_addresses", lc.Chain)
		}
		switch lc.Protocol {
		case LendingAaveV3:
			if lc.Pool == "" && lc.DataProvider == "" {
				return configInvalid(path, "aave_v3 market needs pool or data_provider")
			}
		case LendingCompoundV3:
			if lc.Comet == "" {
				return configInvalid(path+".comet", "compound_v3 market needs comet")
			}
		case LendingFluid:
			if lc.MarketName == "" {
				return configInvalid(path+".market_name", "fluid market needs market_name")
			}
		}
	}
	for i, pool := range cfg.DexPools {
		path := fmt.Sprintf("dex_pools[%d]", i)
		if !pool.Chain.Valid() {
			return configInvalid(path+".chain", "unsupported chain %q", pool.Chain)
		}
		if !cfg.HasChain(pool.Chain) {
			return configInvalid(path+".chain", "chain %q has no entry in token_addresses", pool.Chain)
		}
	}
	for i, feed := range cfg.PriceFeeds {
		if !feed.Chain.Valid() {
			return configInvalid(fmt.Sprintf("price_feeds[%d].chain", i), "unsupported chain %q", feed.Chain)
		}
	}
	for i, feed := range cfg.CrossChainFeeds {
		if !feed.Chain.Valid() {
			return configInvalid(fmt.Sprintf("cross_chain_feeds[%d].chain", i), "unsupported chain %q", feed.Chain)
		}
	}

	if por := cfg.ProofOfReserve; por != nil {
		switch por.Kind {
		case PoRChainlink:
			if len(por.Aggregators) == 0 {
				return configInvalid("proof_of_reserve.aggregators", "chainlink_por needs at least one aggregator")
			}
		case PoRLiquidStaking:
			if por.StakedToken == "" {
				return configInvalid("proof_of_reserve.staked_token", "liquid_staking needs staked_token")
			}
		case PoRFractional:
			if por.BackingSource == "" {
				return configInvalid("proof_of_reserve.backing_source", "fractional needs backing_source")
			}
		case PoRNAVBased:
			if por.NAVOracle == nil {
				return configInvalid("proof_of_reserve.nav_oracle", "nav_based needs nav_oracle")
			}
		case PoRScraper:
			if por.URL == "" {
				return configInvalid("proof_of_reserve.url", "scraper needs url")
			}
		}
	}

	if gov := cfg.Governance; gov != nil {
		for i, role := range gov.Roles {
			path := fmt.Sprintf("governance.roles[%d]", i)
			if role.AuthorityKind == AuthorityMultisig {
				if role.SignerCount <= 0 {
					return configInvalid(path+".signer_count", "multisig role needs signer_count")
				}
				if role.Threshold <= 0 || role.Threshold > role.SignerCount {
					return configInvalid(path+".threshold", "threshold %d out of range for %d signers", role.Threshold, role.SignerCount)
				}
			}
		}
	}

	return nil
}
