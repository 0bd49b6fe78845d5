/*

This file contains the per-asset configuration document. The document is
hierarchical: each present section activates the corresponding fetchers and
scoring sub-components; absent sections simply produce no samples.

The canonical shape is the list form for every repeated section. Legacy
dict-form inputs are normalized at registry ingestion before validation.

*/

package types

import (
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date carried in config documents. It accepts
// "2006-01-02" and "2006-01" on input and renders "2006-01-02".
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t.UTC()
			return nil
		}
	}
	return fmt.Errorf("invalid date %q (want YYYY-MM-DD or YYYY-MM)", s)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte(`null`), nil
	}
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// TokenAddress pins the asset's token contract on one chain.
type TokenAddress struct {
	Chain   Chain  `json:"chain" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// LendingProtocol identifies a supported lending market family.
type LendingProtocol string

const (
	LendingAaveV3     LendingProtocol = "aave_v3"
	LendingCompoundV3 LendingProtocol = "compound_v3"
	LendingFluid      LendingProtocol = "fluid"
)

// LendingConfig describes one lending-market deployment of the asset.
// Pool and DataProvider anchor Aave v3, Comet anchors Compound v3, and
// MarketName anchors Fluid.
type LendingConfig struct {
	Protocol     LendingProtocol `json:"protocol" validate:"required,oneof=aave_v3 compound_v3 fluid"`
	Chain        Chain           `json:"chain" validate:"required"`
	TokenAddress string          `json:"token_address" validate:"required"`
	Pool         string          `json:"pool,omitempty"`
	DataProvider string          `json:"data_provider,omitempty"`
	Comet        string          `json:"comet,omitempty"`
	MarketName   string          `json:"market_name,omitempty"`
}

// Anchor returns the protocol-specific market identifier used to tag
// per-market samples.
func (lc LendingConfig) Anchor() string {
	switch lc.Protocol {
	case LendingAaveV3:
		return lc.Pool
	case LendingCompoundV3:
		return lc.Comet
	case LendingFluid:
		return lc.MarketName
	}
	return lc.TokenAddress
}

// DexProtocol identifies a supported DEX family.
type DexProtocol string

const (
	DexUniswapV3     DexProtocol = "uniswap_v3"
	DexCurve         DexProtocol = "curve"
	DexPancakeswapV3 DexProtocol = "pancakeswap_v3"
)

// DexPool describes one liquidity pool holding the asset.
type DexPool struct {
	Protocol    DexProtocol       `json:"protocol" validate:"required,oneof=uniswap_v3 curve pancakeswap_v3"`
	Chain       Chain             `json:"chain" validate:"required"`
	PoolAddress string            `json:"pool_address" validate:"required"`
	PoolName    string            `json:"pool_name,omitempty"`
	Aux         map[string]string `json:"aux,omitempty"`
}

// OracleFeed is a price-feed endpoint (Chainlink-compatible aggregator).
type OracleFeed struct {
	Chain   Chain  `json:"chain" validate:"required"`
	Address string `json:"address" validate:"required"`
	Name    string `json:"name,omitempty"`
}

// PoRKind selects the proof-of-reserve computation.
type PoRKind string

const (
	PoRChainlink     PoRKind = "chainlink_por"
	PoRLiquidStaking PoRKind = "liquid_staking"
	PoRFractional    PoRKind = "fractional"
	PoRNAVBased      PoRKind = "nav_based"
	PoRScraper       PoRKind = "scraper"
)

// ChainAddress pairs an address with the chain it lives on.
type ChainAddress struct {
	Chain   Chain  `json:"chain" validate:"required"`
	Address string `json:"address" validate:"required"`
}

// ProofOfReserve configures the reserve fetcher. Exactly the fields relevant
// to Kind are populated; the rest stay empty.
type ProofOfReserve struct {
	Kind PoRKind `json:"kind" validate:"required,oneof=chainlink_por liquid_staking fractional nav_based scraper"`

	// chainlink_por: per-chain PoR aggregators and the token contracts whose
	// supply they attest.
	Aggregators    []ChainAddress `json:"aggregators,omitempty" validate:"omitempty,dive"`
	TokenAddresses []ChainAddress `json:"token_addresses,omitempty" validate:"omitempty,dive"`

	// liquid_staking: the staked token whose balance backs the wrapper.
	StakedToken      string `json:"staked_token,omitempty"`
	StakedTokenChain Chain  `json:"staked_token_chain,omitempty"`

	// fractional: address or URL of the backing source.
	BackingSource string `json:"backing_source,omitempty"`
	BackingChain  Chain  `json:"backing_chain,omitempty"`

	// nav_based: oracle quoting net asset value per token.
	NAVOracle *OracleFeed `json:"nav_oracle,omitempty"`

	// scraper: HTML dashboard and the parser hint locating the ratio.
	URL      string `json:"url,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// PriceRisk points at the off-chain quote source IDs used by the market fetcher.
type PriceRisk struct {
	TokenPriceID      string `json:"token_price_id" validate:"required"`
	UnderlyingPriceID string `json:"underlying_price_id,omitempty"`
}

// AuthorityKind classifies who holds a governance role.
type AuthorityKind string

const (
	AuthorityEOA             AuthorityKind = "eoa"
	AuthorityMultisig        AuthorityKind = "multisig"
	AuthorityDAOVoting       AuthorityKind = "dao_voting"
	AuthorityContractUnknown AuthorityKind = "contract_unknown"
)

// DAOSafeguards records governance-attack mitigations for dao_voting roles.
type DAOSafeguards struct {
	HasVetoPower      bool    `json:"has_veto_power"`
	HasDualGovernance bool    `json:"has_dual_governance"`
	QuorumPct         float64 `json:"quorum_pct"`
}

// GovernanceRole is one admin role on the asset's contracts.
// RoleWeight defaults to 3 when omitted.
type GovernanceRole struct {
	RoleName      string         `json:"role_name" validate:"required"`
	AuthorityKind AuthorityKind  `json:"authority_kind" validate:"required,oneof=eoa multisig dao_voting contract_unknown"`
	RoleWeight    float64        `json:"role_weight,omitempty" validate:"omitempty,gte=0"`
	Address       string         `json:"address,omitempty"`
	Threshold     int            `json:"threshold,omitempty" validate:"omitempty,gte=0"`
	SignerCount   int            `json:"signer_count,omitempty" validate:"omitempty,gte=0"`
	DAOSafeguards *DAOSafeguards `json:"dao_safeguards,omitempty"`
}

// DefaultRoleWeight applies when a role carries no explicit weight.
const DefaultRoleWeight = 3

// Weight returns the effective role weight.
func (r GovernanceRole) Weight() float64 {
	if r.RoleWeight > 0 {
		return r.RoleWeight
	}
	return DefaultRoleWeight
}

// CustodyModel classifies who holds the backing assets.
type CustodyModel string

const (
	CustodyDecentralized    CustodyModel = "decentralized"
	CustodyRegulatedInsured CustodyModel = "regulated_insured"
	CustodyRegulated        CustodyModel = "regulated"
	CustodyUnregulated      CustodyModel = "unregulated"
	CustodyUnknown          CustodyModel = "unknown"
)

// BlacklistControl classifies who can operate the token blacklist.
type BlacklistControl string

const (
	BlacklistNone         BlacklistControl = "none"
	BlacklistGovernance   BlacklistControl = "governance"
	BlacklistMultisig     BlacklistControl = "multisig"
	BlacklistSingleEntity BlacklistControl = "single_entity"
)

// Governance collects counterparty-risk inputs.
type Governance struct {
	Roles            []GovernanceRole `json:"roles,omitempty" validate:"omitempty,dive"`
	HasTimelock      bool             `json:"has_timelock"`
	TimelockHours    float64          `json:"timelock_hours,omitempty" validate:"omitempty,gte=0"`
	CustodyModel     CustodyModel     `json:"custody_model,omitempty" validate:"omitempty,oneof=decentralized regulated_insured regulated unregulated unknown"`
	HasBlacklist     bool             `json:"has_blacklist"`
	BlacklistControl BlacklistControl `json:"blacklist_control,omitempty" validate:"omitempty,oneof=none governance multisig single_entity"`
}

// Audit is one security audit of the asset's contracts.
type Audit struct {
	Auditor                  string `json:"auditor" validate:"required"`
	Date                     Date   `json:"date"`
	CriticalIssuesUnresolved int    `json:"critical_issues_unresolved" validate:"gte=0"`
	HighIssuesUnresolved     int    `json:"high_issues_unresolved" validate:"gte=0"`
}

// Incident is one recorded security incident.
type Incident struct {
	Date              Date    `json:"date"`
	FundsLostUSD      float64 `json:"funds_lost_usd" validate:"gte=0"`
	FundsLostPctOfTVL float64 `json:"funds_lost_pct_of_tvl" validate:"gte=0"`
	ResolvedAt        *Date   `json:"resolved_at,omitempty"`
}

// AssetConfig is the full per-asset configuration document. Presence of a
// section activates the corresponding collection and scoring paths.
type AssetConfig struct {
	TokenAddresses  []TokenAddress  `json:"token_addresses,omitempty" validate:"omitempty,dive"`
	LendingConfigs  []LendingConfig `json:"lending_configs,omitempty" validate:"omitempty,dive"`
	DexPools        []DexPool       `json:"dex_pools,omitempty" validate:"omitempty,dive"`
	PriceFeeds      []OracleFeed    `json:"price_feeds,omitempty" validate:"omitempty,dive"`
	CrossChainFeeds []OracleFeed    `json:"cross_chain_feeds,omitempty" validate:"omitempty,dive"`
	ProofOfReserve  *ProofOfReserve `json:"proof_of_reserve,omitempty"`
	PriceRisk       *PriceRisk      `json:"price_risk,omitempty"`
	Governance      *Governance     `json:"governance,omitempty"`
	AuditData       []Audit         `json:"audit_data,omitempty" validate:"omitempty,dive"`
	DeploymentDate  *Date           `json:"deployment_date,omitempty"`
	Incidents       []Incident      `json:"incidents,omitempty" validate:"omitempty,dive"`
}

// HasChain reports whether the asset declares a token contract on the chain.
func (c AssetConfig) HasChain(chain Chain) bool {
	for _, ta := range c.TokenAddresses {
		if ta.Chain == chain {
			return true
		}
	}
	return false
}
