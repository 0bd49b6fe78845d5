package config

import (
	"os"
	"strings"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

// Upstream endpoints consumed by the fetchers. Every one of these is a
// substitutable dependency: RPC nodes, subgraph gateways, the off-chain quote
// source and the block-explorer API.

// Default public endpoints, overridable per chain via RPC_URL_<CHAIN>.
var defaultRPCURLs = map[types.Chain]string{
	types.ChainEthereum: "https://eth.llamarpc.com",
	types.ChainBase:     "https://mainnet.base.org",
	types.ChainArbitrum: "https://arb1.arbitrum.io/rpc",
	types.ChainOptimism: "https://mainnet.optimism.io",
	types.ChainPolygon:  "https://polygon-rpc.com",
}

// RPCURL returns the JSON-RPC endpoint for a chain, or "" when the chain has
// no EVM endpoint (solana distributions go through the explorer API only).
func RPCURL(chain types.Chain) string {
	key := "RPC_URL_" + strings.ToUpper(string(chain))
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultRPCURLs[chain]
}

// SubgraphURL returns the GraphQL endpoint used for a DEX protocol on a
// chain. Overridable via SUBGRAPH_URL_<PROTOCOL>_<CHAIN>.
func SubgraphURL(protocol types.DexProtocol, chain types.Chain) string {
	key := "SUBGRAPH_URL_" + strings.ToUpper(string(protocol)) + "_" + strings.ToUpper(string(chain))
	if v := os.Getenv(key); v != "" {
		return v
	}
	return "https://api.thegraph.com/subgraphs/name/" + string(protocol) + "-" + string(chain)
}

// LendingSubgraphURL returns the positions subgraph for a lending protocol.
func LendingSubgraphURL(protocol types.LendingProtocol, chain types.Chain) string {
	key := "SUBGRAPH_URL_" + strings.ToUpper(string(protocol)) + "_" + strings.ToUpper(string(chain))
	if v := os.Getenv(key); v != "" {
		return v
	}
	return "https://api.thegraph.com/subgraphs/name/" + string(protocol) + "-" + string(chain)
}

// QuoteAPIBase returns the historical price quote source base URL.
func QuoteAPIBase() string {
	return getEnvOrDefault("QUOTE_API_BASE", "https://api.coingecko.com/api/v3")
}

// ExplorerAPIBase returns the block-explorer API base for holder
// distributions on a chain. Overridable via EXPLORER_API_<CHAIN>.
func ExplorerAPIBase(chain types.Chain) string {
	key := "EXPLORER_API_" + strings.ToUpper(string(chain))
	if v := os.Getenv(key); v != "" {
		return v
	}
	switch chain {
	case types.ChainEthereum:
		return "https://eth.blockscout.com"
	case types.ChainBase:
		return "https://base.blockscout.com"
	case types.ChainArbitrum:
		return "https://arbitrum.blockscout.com"
	case types.ChainOptimism:
		return "https://optimism.blockscout.com"
	case types.ChainPolygon:
		return "https://polygon.blockscout.com"
	default:
		return ""
	}
}

// FluidAPIBase returns the Fluid protocol REST API base.
func FluidAPIBase() string {
	return getEnvOrDefault("FLUID_API_BASE", "https://api.fluid.instadapp.io")
}

// Notification transport settings. Empty values disable the transport.
func TelegramBotToken() string { return os.Getenv("TELEGRAM_BOT_TOKEN") }
func TelegramChatID() string   { return os.Getenv("TELEGRAM_CHAT_ID") }
func SlackWebhookURL() string  { return os.Getenv("SLACK_WEBHOOK_URL") }
