package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/avantgarde-labs/riskmon/internal/types"
	"github.com/rs/zerolog/log"
)

// Asset registry persistence. Upserts validate the config document before
// touching the database; concurrent upserts of the same symbol serialize on
// the primary-key row lock inside the ON CONFLICT statement.

// UpsertAsset registers or replaces an asset. Returns a ConfigInvalidError
// when the config document fails validation.
func UpsertAsset(asset types.Asset) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	if err := types.ValidateAssetConfig(asset.Config); err != nil {
		return err
	}

	configJSON, err := json.Marshal(asset.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal asset config: %w", err)
	}

	symbol := strings.ToUpper(asset.Symbol)
	query := `
		INSERT INTO morpho.rm_asset_registry (symbol, name, asset_type, underlying, decimals, config, enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (symbol) DO UPDATE SET
			name = EXCLUDED.name,
			asset_type = EXCLUDED.asset_type,
			underlying = EXCLUDED.underlying,
			decimals = EXCLUDED.decimals,
			config = EXCLUDED.config,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
	`
	if _, err := DB.Exec(query, symbol, asset.Name, asset.Type, asset.Underlying, asset.Decimals, configJSON, asset.Enabled); err != nil {
		return storageErr("upsert asset", err)
	}

	log.Info().Str("symbol", symbol).Bool("enabled", asset.Enabled).Msg("Asset registered")
	return nil
}

// UpsertAssetFromDocument registers an asset from a raw config document,
// normalizing legacy dict-form sections into the canonical shape first. The
// normalized shape is what persists.
func UpsertAssetFromDocument(asset types.Asset, rawConfig []byte) error {
	cfg, err := types.NormalizeConfigDocument(rawConfig)
	if err != nil {
		return err
	}
	asset.Config = cfg
	return UpsertAsset(asset)
}

// GetAsset returns the asset by symbol, or nil when not registered.
func GetAsset(symbol string) (*types.Asset, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT symbol, name, asset_type, COALESCE(underlying, ''), decimals, config, enabled, created_at, updated_at
		FROM morpho.rm_asset_registry
		WHERE symbol = $1
	`
	var asset types.Asset
	var configJSON []byte
	err := DB.QueryRow(query, strings.ToUpper(symbol)).Scan(
		&asset.Symbol, &asset.Name, &asset.Type, &asset.Underlying, &asset.Decimals,
		&configJSON, &asset.Enabled, &asset.CreatedAt, &asset.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get asset", err)
	}

	if err := json.Unmarshal(configJSON, &asset.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config for %s: %w", symbol, err)
	}
	return &asset, nil
}

// ListEnabledAssets returns every asset with monitoring enabled, ordered by
// symbol. The dispatcher captures this as its tick snapshot.
func ListEnabledAssets() ([]types.Asset, error) {
	return listAssets("WHERE enabled = TRUE")
}

// ListAllAssets returns every registered asset.
func ListAllAssets() ([]types.Asset, error) {
	return listAssets("")
}

func listAssets(where string) ([]types.Asset, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT symbol, name, asset_type, COALESCE(underlying, ''), decimals, config, enabled, created_at, updated_at
		FROM morpho.rm_asset_registry ` + where + `
		ORDER BY symbol
	`
	rows, err := DB.Query(query)
	if err != nil {
		return nil, storageErr("list assets", err)
	}
	defer rows.Close()

	var assets []types.Asset
	for rows.Next() {
		var asset types.Asset
		var configJSON []byte
		if err := rows.Scan(
			&asset.Symbol, &asset.Name, &asset.Type, &asset.Underlying, &asset.Decimals,
			&configJSON, &asset.Enabled, &asset.CreatedAt, &asset.UpdatedAt,
		); err != nil {
			log.Error().Err(err).Msg("Failed to scan asset row")
			continue
		}
		if err := json.Unmarshal(configJSON, &asset.Config); err != nil {
			log.Error().Err(err).Str("symbol", asset.Symbol).Msg("Failed to unmarshal asset config")
			continue
		}
		assets = append(assets, asset)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("list assets iteration", err)
	}
	return assets, nil
}

// SetAssetEnabled flips the monitoring flag for a symbol.
func SetAssetEnabled(symbol string, enabled bool) (bool, error) {
	if DB == nil {
		return false, fmt.Errorf("database not initialized")
	}

	res, err := DB.Exec(`
		UPDATE morpho.rm_asset_registry
		SET enabled = $2, updated_at = NOW()
		WHERE symbol = $1
	`, strings.ToUpper(symbol), enabled)
	if err != nil {
		return false, storageErr("set asset enabled", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DisableAsset disables monitoring for an asset.
func DisableAsset(symbol string) (bool, error) {
	return SetAssetEnabled(symbol, false)
}

// EnableAsset enables monitoring for an asset.
func EnableAsset(symbol string) (bool, error) {
	return SetAssetEnabled(symbol, true)
}

// DeleteAsset removes an asset from the registry.
func DeleteAsset(symbol string) (bool, error) {
	if DB == nil {
		return false, fmt.Errorf("database not initialized")
	}

	res, err := DB.Exec(`DELETE FROM morpho.rm_asset_registry WHERE symbol = $1`, strings.ToUpper(symbol))
	if err != nil {
		return false, storageErr("delete asset", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListAssetsWithSection returns enabled assets whose config document declares
// a top-level section, e.g. "proof_of_reserve" or "dex_pools".
func ListAssetsWithSection(section string) ([]types.Asset, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT symbol, name, asset_type, COALESCE(underlying, ''), decimals, config, enabled, created_at, updated_at
		FROM morpho.rm_asset_registry
		WHERE enabled = TRUE AND config ? $1
		ORDER BY symbol
	`
	rows, err := DB.Query(query, section)
	if err != nil {
		return nil, storageErr("list assets with section", err)
	}
	defer rows.Close()

	var assets []types.Asset
	for rows.Next() {
		var asset types.Asset
		var configJSON []byte
		if err := rows.Scan(
			&asset.Symbol, &asset.Name, &asset.Type, &asset.Underlying, &asset.Decimals,
			&configJSON, &asset.Enabled, &asset.CreatedAt, &asset.UpdatedAt,
		); err != nil {
			log.Error().Err(err).Msg("Failed to scan asset row")
			continue
		}
		if err := json.Unmarshal(configJSON, &asset.Config); err != nil {
			log.Error().Err(err).Str("symbol", asset.Symbol).Msg("Failed to unmarshal asset config")
			continue
		}
		assets = append(assets, asset)
	}
	return assets, rows.Err()
}
