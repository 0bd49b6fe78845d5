/*

This file contains the core asset types for the risk monitoring registry.

*/

package types

import "time"

// AssetType classifies the monitored asset.
type AssetType string

const (
	AssetWrapped       AssetType = "wrapped"
	AssetLiquidStaking AssetType = "liquid_staking"
	AssetStablecoin    AssetType = "stablecoin"
	AssetOther         AssetType = "other"
)

// Chain identifies a supported network.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainBase     Chain = "base"
	ChainArbitrum Chain = "arbitrum"
	ChainOptimism Chain = "optimism"
	ChainPolygon  Chain = "polygon"
	ChainSolana   Chain = "solana"
)

// SupportedChains lists every chain the collection pipeline knows how to reach.
var SupportedChains = []Chain{
	ChainEthereum, ChainBase, ChainArbitrum, ChainOptimism, ChainPolygon, ChainSolana,
}

// Valid reports whether the chain is one of the supported networks.
func (c Chain) Valid() bool {
	for _, s := range SupportedChains {
		if c == s {
			return true
		}
	}
	return false
}

// Asset is a registered asset with its collection configuration.
// Symbol is the unique uppercase identifier (e.g. "WBTC", "wstETH" is stored
// uppercased as "WSTETH" by the registry).
type Asset struct {
	Symbol     string      `json:"symbol"`
	Name       string      `json:"name"`
	Type       AssetType   `json:"type"`
	Underlying string      `json:"underlying,omitempty"`
	Decimals   int         `json:"decimals"`
	Enabled    bool        `json:"enabled"`
	Config     AssetConfig `json:"config"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}
