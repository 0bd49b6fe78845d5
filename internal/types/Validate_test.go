package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() AssetConfig {
	return AssetConfig{
		TokenAddresses: []TokenAddress{
			{Chain: ChainEthereum, Address: "0x2260fac5e5542a773aa44fbcfedf7c193bc2c599"},
			{Chain: ChainBase, Address: "0xcbb7c0000ab88b473b1f5afd9ef808440eed33bf"},
		},
		LendingConfigs: []LendingConfig{
			{Protocol: LendingAaveV3, Chain: ChainEthereum, TokenAddress: "0x2260", Pool: "0xpool"},
		},
		DexPools: []DexPool{
			{Protocol: DexUniswapV3, Chain: ChainBase, PoolAddress: "0xdead"},
		},
	}
}

func TestValidateAssetConfigAccepts(t *testing.T) {
	assert.NoError(t, ValidateAssetConfig(validConfig()))
}

func TestValidateAssetConfigRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AssetConfig)
		path   string
	}{
		{
			name: "lending chain missing from token_addresses",
			mutate: func(cfg *AssetConfig) {
				cfg.LendingConfigs[0].Chain = ChainArbitrum
			},
			path: "lending_configs[0].chain",
		},
		{
			name: "dex pool chain missing from token_addresses",
			mutate: func(cfg *AssetConfig) {
				cfg.DexPools[0].Chain = ChainPolygon
			},
			path: "dex_pools[0].chain",
		},
		{
			name: "unsupported chain",
			mutate: func(cfg *AssetConfig) {
				cfg.TokenAddresses[0].Chain = "dogechain"
			},
			path: "token_addresses[0].chain",
		},
		{
			name: "compound market without comet anchor",
			mutate: func(cfg *AssetConfig) {
				cfg.LendingConfigs[0] = LendingConfig{
					Protocol: LendingCompoundV3, Chain: ChainEthereum, TokenAddress: "0x2260",
				}
			},
			path: "lending_configs[0].comet",
		},
		{
			name: "multisig role with threshold above signers",
			mutate: func(cfg *AssetConfig) {
				cfg.Governance = &Governance{
					Roles: []GovernanceRole{
						{RoleName: "owner", AuthorityKind: AuthorityMultisig, Threshold: 9, SignerCount: 5},
					},
				}
			},
			path: "governance.roles[0].threshold",
		},
		{
			name: "scraper PoR without URL",
			mutate: func(cfg *AssetConfig) {
				cfg.ProofOfReserve = &ProofOfReserve{Kind: PoRScraper}
			},
			path: "proof_of_reserve.url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := ValidateAssetConfig(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrConfigInvalid))

			var cie *ConfigInvalidError
			require.True(t, errors.As(err, &cie))
			assert.Equal(t, tt.path, cie.Path)
		})
	}
}

func TestNormalizeConfigDocumentCanonicalList(t *testing.T) {
	raw := []byte(`{
		"token_addresses": [{"chain": "ethereum", "address": "0xabc"}],
		"dex_pools": [{"protocol": "uniswap_v3", "chain": "ethereum", "pool_address": "0xdef"}]
	}`)

	cfg, err := NormalizeConfigDocument(raw)
	require.NoError(t, err)
	require.Len(t, cfg.DexPools, 1)
	assert.Equal(t, ChainEthereum, cfg.DexPools[0].Chain)
}

func TestNormalizeConfigDocumentLegacyDictForm(t *testing.T) {
	raw := []byte(`{
		"token_addresses": [{"chain": "ethereum", "address": "0xabc"}],
		"dex_pools": {
			"ethereum": [{"protocol": "curve", "pool_address": "0x111"}]
		},
		"lending_configs": {
			"ethereum": [{"protocol": "aave_v3", "token_address": "0xabc", "pool": "0xpool"}]
		}
	}`)

	cfg, err := NormalizeConfigDocument(raw)
	require.NoError(t, err)

	require.Len(t, cfg.DexPools, 1)
	assert.Equal(t, ChainEthereum, cfg.DexPools[0].Chain)
	assert.Equal(t, DexCurve, cfg.DexPools[0].Protocol)

	require.Len(t, cfg.LendingConfigs, 1)
	assert.Equal(t, ChainEthereum, cfg.LendingConfigs[0].Chain)
	assert.Equal(t, LendingAaveV3, cfg.LendingConfigs[0].Protocol)
}

func TestDateUnmarshalFormats(t *testing.T) {
	var d Date
	require.NoError(t, d.UnmarshalJSON([]byte(`"2024-03-15"`)))
	assert.Equal(t, 2024, d.Year())

	require.NoError(t, d.UnmarshalJSON([]byte(`"2023-07"`)))
	assert.Equal(t, 7, int(d.Month()))

	assert.Error(t, d.UnmarshalJSON([]byte(`"last tuesday"`)))
}
