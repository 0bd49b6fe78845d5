/*

This file contains the scoring orchestrator. Scoring is pure compute over an
immutable metric snapshot: the snapshot is built first (the only I/O), then
primary checks gate the weighted categories, then circuit breakers cap the
aggregate. Given the same configuration and snapshot the result is fully
deterministic.

*/

package scoring

import (
	"math"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/logger"
	"github.com/avantgarde-labs/riskmon/internal/state"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

var scoreLogger = logger.GetForComponent("risk_scorer")

// BuildSnapshot captures the latest sample per metric at the cutoff. The
// lending metrics are replaced by TVL-weighted averages across the asset's
// markets so a small market cannot dominate the collateral category.
func BuildSnapshot(asset types.Asset, cutoff time.Time) (types.MetricSnapshot, error) {
	latest, err := state.LatestAllBefore(asset.Symbol, cutoff)
	if err != nil {
		return types.MetricSnapshot{}, err
	}

	snapshot := types.MetricSnapshot{
		AssetSymbol: asset.Symbol,
		Cutoff:      cutoff,
		Samples:     latest,
	}

	if len(asset.Config.LendingConfigs) > 1 {
		for _, metric := range []string{catalog.MetricUtilizationRate, catalog.MetricCLR, catalog.MetricRLR} {
			perMarket, err := state.LatestPerTarget(asset.Symbol, metric, cutoff)
			if err != nil {
				return types.MetricSnapshot{}, err
			}
			if aggregated, ok := tvlWeightedAverage(perMarket); ok {
				sample := snapshot.Samples[metric]
				sample.AssetSymbol = asset.Symbol
				sample.MetricName = metric
				sample.Value = aggregated
				sample.Chain = ""
				sample.Metadata = map[string]any{"aggregation": "tvl_weighted", "markets": len(perMarket)}
				snapshot.Samples[metric] = sample
			}
		}
	}

	return snapshot, nil
}

// tvlWeightedAverage combines per-market samples using the tvl_usd metadata
// each lending sample carries; markets without TVL context fall back to
// equal weighting.
func tvlWeightedAverage(samples []types.MetricSample) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}

	var weightedSum, totalWeight float64
	allHaveTVL := true
	for _, s := range samples {
		tvl, ok := s.Metadata["tvl_usd"].(float64)
		if !ok || tvl <= 0 {
			allHaveTVL = false
			break
		}
		weightedSum += s.Value * tvl
		totalWeight += tvl
	}
	if allHaveTVL && totalWeight > 0 {
		return weightedSum / totalWeight, true
	}

	sum := 0.0
	for _, s := range samples {
		sum += s.Value
	}
	return sum / float64(len(samples)), true
}

// Score runs the two-stage evaluation for one asset against a snapshot.
// A disqualified asset gets no numeric score, only the failed check list.
func Score(asset types.Asset, snapshot types.MetricSnapshot, now time.Time) types.RiskScoreResult {
	result := types.RiskScoreResult{
		AssetSymbol: asset.Symbol,
		Cutoff:      snapshot.Cutoff,
		GeneratedAt: now,
	}

	result.PrimaryChecks = RunPrimaryChecks(asset.Config, now)
	result.Qualified = result.PrimaryChecks.Qualified
	if !result.Qualified {
		scoreLogger.Info().
			Str("asset", asset.Symbol).
			Strs("failed", result.PrimaryChecks.FailedChecks).
			Msg("Asset disqualified by primary checks")
		return result
	}

	// Only categories with at least one present input participate; absent
	// config sections deactivate their categories and the weights
	// renormalize over what remains.
	var categories []types.CategoryScore
	appendIf := func(cat types.CategoryScore, ok bool) {
		if ok {
			categories = append(categories, cat)
		}
	}
	appendIf(smartContractScore(asset.Config, now))
	appendIf(counterpartyScore(asset.Config.Governance))
	appendIf(marketScore(snapshot))
	appendIf(liquidityScore(snapshot))
	appendIf(collateralScore(snapshot))
	appendIf(reserveOracleScore(snapshot))
	result.Categories = categories

	var weightedSum, totalWeight float64
	for _, cat := range categories {
		weightedSum += cat.Score * cat.Weight
		totalWeight += cat.Weight
	}
	if totalWeight == 0 {
		scoreLogger.Warn().Str("asset", asset.Symbol).Msg("No scorable categories; returning checks only")
		return result
	}
	baseScore := weightedSum / totalWeight

	finalScore, breakers := applyCircuitBreakers(baseScore, asset.Config, snapshot, categories, result.PrimaryChecks)
	finalScore = math.Round(finalScore*10) / 10
	result.Breakers = breakers

	grade := ScoreToGrade(finalScore)
	info := GradeFor(grade)
	result.Overall = &types.OverallScore{
		Score:     finalScore,
		Grade:     grade,
		Label:     info.Label,
		RiskLevel: info.RiskLevel,
		BaseScore: math.Round(baseScore*10) / 10,
		BaseGrade: ScoreToGrade(baseScore),
	}

	scoreLogger.Info().
		Str("asset", asset.Symbol).
		Float64("score", finalScore).
		Str("grade", grade).
		Int("breakers", len(breakers)).
		Msg("Asset scored")
	return result
}

// ScoreAsset builds the snapshot at the cutoff and scores the asset. This is
// the entry point the web API uses.
func ScoreAsset(asset types.Asset, cutoff time.Time) (types.RiskScoreResult, error) {
	snapshot, err := BuildSnapshot(asset, cutoff)
	if err != nil {
		return types.RiskScoreResult{}, err
	}
	return Score(asset, snapshot, time.Now().UTC()), nil
}
