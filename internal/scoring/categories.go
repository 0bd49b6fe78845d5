/*

This file contains the six weighted scoring categories. Every sub-score maps
a raw input to [0,100]; metric-backed sub-scores that are absent from the
snapshot are marked missing and their weight redistributes proportionally
across the category's remaining sub-scores.

*/

package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

// Category weights. Reserve backing and counterparty custody dominate the
// profile for wrapped and backed assets.
var categoryWeights = map[string]float64{
	"smart_contract": 0.10,
	"counterparty":   0.25,
	"market":         0.15,
	"liquidity":      0.15,
	"collateral":     0.10,
	"reserve_oracle": 0.25,
}

// Top-tier auditor allowlist; any match earns the audit-score bonus.
var topTierAuditors = map[string]bool{
	"OpenZeppelin":        true,
	"Trail of Bits":       true,
	"Consensys Diligence": true,
	"Spearbit":            true,
	"ChainSecurity":       true,
}

// Custody model scores.
var custodyScores = map[types.CustodyModel]struct {
	score         float64
	justification string
}{
	types.CustodyDecentralized:    {100, "Smart contract custody - no counterparty risk"},
	types.CustodyRegulatedInsured: {85, "Regulated custodian with insurance coverage"},
	types.CustodyRegulated:        {70, "Regulated custodian without full insurance"},
	types.CustodyUnregulated:      {45, "Unregulated custodian - reputation-based trust only"},
	types.CustodyUnknown:          {20, "Unknown custody arrangement - highest risk"},
}

// Anchor tables for the piecewise-linear sub-scores.
var (
	maturityAnchors = []anchor{
		{0, 10}, {30, 30}, {90, 50}, {180, 70}, {365, 85}, {730, 100},
	}
	timelockAnchors = []anchor{
		{0, 30}, {6, 50}, {24, 70}, {48, 85}, {168, 100},
	}
	volatilityAnchors = []anchor{
		{20, 100}, {40, 80}, {60, 60}, {80, 40}, {100, 20},
	}
	var95Anchors = []anchor{
		{3, 100}, {5, 85}, {8, 65}, {12, 45}, {15, 25},
	}
	slippage100kAnchors = []anchor{
		{0.1, 100}, {0.3, 90}, {0.5, 80}, {1.0, 65}, {2.0, 45}, {5.0, 20},
	}
	slippage500kAnchors = []anchor{
		{0.5, 100}, {1.0, 85}, {2.0, 65}, {5.0, 40}, {10.0, 15},
	}
	hhiAnchors = []anchor{
		{1000, 100}, {1500, 85}, {2500, 65}, {4000, 45}, {6000, 25}, {10000, 5},
	}
	clrAnchors = []anchor{
		{2, 100}, {5, 85}, {10, 65}, {20, 40}, {30, 20},
	}
	rlrAnchors = []anchor{
		{5, 100}, {10, 80}, {20, 60}, {35, 40}, {50, 20},
	}
	utilizationAnchors = []anchor{
		{50, 100}, {70, 85}, {85, 65}, {95, 40}, {100, 15},
	}
	freshnessAnchors = []anchor{
		{5, 100}, {30, 90}, {60, 75}, {180, 50}, {360, 25}, {720, 10},
	}
	crossChainLagAnchors = []anchor{
		{5, 100}, {15, 85}, {30, 70}, {60, 50}, {120, 30},
	}
)

// finishCategory renormalizes sub-score weights over the present entries and
// computes the weighted total. Categories with no present sub-score return
// ok=false and are excluded from the aggregate.
func finishCategory(key, name string, weight float64, subs []types.SubScore) (types.CategoryScore, bool) {
	var weightPresent, total float64
	for _, s := range subs {
		if !s.Missing {
			weightPresent += s.Weight
		}
	}
	if weightPresent == 0 {
		return types.CategoryScore{Key: key, Category: name, Weight: weight, Breakdown: subs}, false
	}
	for _, s := range subs {
		if !s.Missing {
			total += s.Score * (s.Weight / weightPresent)
		}
	}
	total = clamp(total, 0, 100)
	return types.CategoryScore{
		Key:       key,
		Category:  name,
		Score:     math.Round(total*10) / 10,
		Grade:     ScoreToGrade(total),
		Weight:    weight,
		Breakdown: subs,
	}, true
}

func missingSub(name string, weight float64, metric string) types.SubScore {
	return types.SubScore{
		Name:          name,
		Weight:        weight,
		Missing:       true,
		Justification: fmt.Sprintf("no %s sample in snapshot; weight redistributed", metric),
	}
}

// smartContractScore combines audit quality, code maturity and incident
// history from static configuration.
func smartContractScore(cfg types.AssetConfig, now time.Time) (types.CategoryScore, bool) {
	// Audit sub-score: base 80 with an audit, 20 without, scaled by issue
	// severity, staleness and auditor quality.
	auditScore := 20.0
	auditJust := "No audit found - maximum smart contract risk"
	if len(cfg.AuditData) > 0 {
		auditScore = 80

		anyCritical, anyHigh := false, false
		var latest time.Time
		topTier := false
		for _, audit := range cfg.AuditData {
			if audit.CriticalIssuesUnresolved > 0 {
				anyCritical = true
			}
			if audit.HighIssuesUnresolved > 0 {
				anyHigh = true
			}
			if audit.Date.After(latest) {
				latest = audit.Date.Time
			}
			if topTierAuditors[audit.Auditor] {
				topTier = true
			}
		}

		if anyCritical {
			auditScore *= 0.3
		} else if anyHigh {
			auditScore *= 0.7
		}

		if !latest.IsZero() {
			monthsAgo := now.Sub(latest).Hours() / 24 / 30
			if monthsAgo > 24 {
				auditScore *= 0.6
			} else if monthsAgo > 12 {
				auditScore *= 0.8
			}
		}

		if topTier {
			auditScore *= 1.1
		}
		if len(cfg.AuditData) >= 3 {
			auditScore *= 1.05
		}
		auditScore = clamp(auditScore, 0, 100)
		auditJust = fmt.Sprintf("%d audit(s), top-tier=%v", len(cfg.AuditData), topTier)
	}

	// Maturity: unknown deployment is treated as brand new.
	daysDeployed := 0.0
	if cfg.DeploymentDate != nil && !cfg.DeploymentDate.IsZero() {
		daysDeployed = now.Sub(cfg.DeploymentDate.Time).Hours() / 24
	}
	maturityScore := interpolate(daysDeployed, maturityAnchors)

	// Incident history: fund-loss incidents cost 30 plus up to 30 more by
	// TVL share lost; non-loss incidents cost 15.
	incidentScore := 100.0
	for _, incident := range cfg.Incidents {
		if incident.FundsLostUSD > 0 {
			incidentScore -= 30 + math.Min(30, incident.FundsLostPctOfTVL)
		} else {
			incidentScore -= 15
		}
	}
	incidentScore = math.Max(0, incidentScore)

	subs := []types.SubScore{
		{Name: "audit_score", Score: auditScore, Weight: 0.40, Justification: auditJust},
		{Name: "code_maturity", Score: maturityScore, Weight: 0.30, Value: daysDeployed,
			Justification: fmt.Sprintf("deployed %.0f days ago", daysDeployed)},
		{Name: "incident_history", Score: incidentScore, Weight: 0.30, Value: float64(len(cfg.Incidents)),
			Justification: fmt.Sprintf("%d incident(s) on record", len(cfg.Incidents))},
	}
	return finishCategory("smart_contract", "Smart Contract Risk", categoryWeights["smart_contract"], subs)
}

// daoVotingScore rates a dao_voting authority. The base is 50, safeguards
// add up to 30, and the cap of 80 reflects that DAO voting never equals
// high-threshold multisig security.
func daoVotingScore(safeguards *types.DAOSafeguards) float64 {
	score := 50.0
	if safeguards != nil {
		if safeguards.HasVetoPower {
			score += 15
		}
		if safeguards.HasDualGovernance {
			score += 10
		}
		if safeguards.QuorumPct >= 10 {
			score += 5
		}
	}
	return math.Min(score, 80)
}

// counterpartyScore combines admin key control, custody, timelock and
// blacklist capability.
func counterpartyScore(gov *types.Governance) (types.CategoryScore, bool) {
	if gov == nil {
		return types.CategoryScore{}, false
	}

	// Admin key control: each role subtracts weight-scaled risk; missing
	// timelock shaves another 15%.
	akcScore := 100.0
	for _, role := range gov.Roles {
		weight := role.Weight()
		switch role.AuthorityKind {
		case types.AuthorityEOA:
			akcScore -= weight * 15
		case types.AuthorityMultisig:
			ratio := 0.0
			if role.SignerCount > 0 {
				ratio = float64(role.Threshold) / float64(role.SignerCount)
			}
			akcScore -= weight * (1 - ratio) * 10
		case types.AuthorityDAOVoting:
			dao := daoVotingScore(role.DAOSafeguards)
			akcScore -= weight * (100 - dao) / 100 * 10
		case types.AuthorityContractUnknown:
			akcScore -= weight * 7
		}
	}
	if !gov.HasTimelock {
		akcScore *= 0.85
	}
	akcScore = clamp(akcScore, 0, 100)

	custodyModel := gov.CustodyModel
	if custodyModel == "" {
		custodyModel = types.CustodyUnknown
	}
	custody, ok := custodyScores[custodyModel]
	if !ok {
		custody = custodyScores[types.CustodyUnknown]
	}

	var timelockScore float64
	var timelockJust string
	if gov.HasTimelock {
		timelockScore = interpolate(gov.TimelockHours, timelockAnchors)
		timelockJust = fmt.Sprintf("timelock present (%.0fh delay)", gov.TimelockHours)
	} else {
		timelockScore = 30
		timelockJust = "no timelock - actions are immediate"
	}

	var blacklistScore float64
	var blacklistJust string
	switch {
	case !gov.HasBlacklist:
		blacklistScore, blacklistJust = 100, "no blacklist function - censorship resistant"
	case gov.BlacklistControl == types.BlacklistGovernance:
		blacklistScore, blacklistJust = 75, "blacklist requires governance approval"
	case gov.BlacklistControl == types.BlacklistMultisig:
		blacklistScore, blacklistJust = 55, "blacklist controlled by multisig"
	default:
		blacklistScore, blacklistJust = 30, "blacklist controlled by single entity"
	}

	subs := []types.SubScore{
		{Name: "admin_key_control", Score: akcScore, Weight: 0.40,
			Justification: fmt.Sprintf("%d role(s) evaluated, timelock=%v", len(gov.Roles), gov.HasTimelock)},
		{Name: "custody_model", Score: custody.score, Weight: 0.30, Justification: custody.justification},
		{Name: "timelock_presence", Score: timelockScore, Weight: 0.15, Value: gov.TimelockHours, Justification: timelockJust},
		{Name: "blacklist", Score: blacklistScore, Weight: 0.15, Justification: blacklistJust},
	}
	return finishCategory("counterparty", "Counterparty Risk", categoryWeights["counterparty"], subs)
}

// pegDeviationScore is stepwise, not interpolated: band edges map straight to
// their band score.
func pegDeviationScore(absDeviationPct float64) float64 {
	switch {
	case absDeviationPct < 0.1:
		return 100
	case absDeviationPct < 0.5:
		return 90
	case absDeviationPct < 1:
		return 75
	case absDeviationPct < 2:
		return 55
	case absDeviationPct < 5:
		return 30
	default:
		return 10
	}
}

func marketScore(snap types.MetricSnapshot) (types.CategoryScore, bool) {
	subs := make([]types.SubScore, 0, 3)

	if peg, ok := snap.Value(catalog.MetricPegDeviation); ok {
		abs := math.Abs(peg)
		subs = append(subs, types.SubScore{Name: "peg_deviation", Score: pegDeviationScore(abs), Weight: 0.40, Value: peg,
			Justification: fmt.Sprintf("peg deviation %.4f%%", peg)})
	} else {
		subs = append(subs, missingSub("peg_deviation", 0.40, catalog.MetricPegDeviation))
	}

	if vol, ok := snap.Value(catalog.MetricVolatilityAnnualized); ok {
		subs = append(subs, types.SubScore{Name: "volatility", Score: interpolate(vol, volatilityAnchors), Weight: 0.30, Value: vol,
			Justification: fmt.Sprintf("annualized volatility %.1f%%", vol)})
	} else {
		subs = append(subs, missingSub("volatility", 0.30, catalog.MetricVolatilityAnnualized))
	}

	if v, ok := snap.Value(catalog.MetricVaR95); ok {
		subs = append(subs, types.SubScore{Name: "var95", Score: interpolate(v, var95Anchors), Weight: 0.30, Value: v,
			Justification: fmt.Sprintf("95%% VaR %.2f%% daily", v)})
	} else {
		subs = append(subs, missingSub("var95", 0.30, catalog.MetricVaR95))
	}

	return finishCategory("market", "Market Risk", categoryWeights["market"], subs)
}

func liquidityScore(snap types.MetricSnapshot) (types.CategoryScore, bool) {
	subs := make([]types.SubScore, 0, 3)

	if s, ok := snap.Value(catalog.MetricSlippage100K); ok {
		subs = append(subs, types.SubScore{Name: "slippage_100k", Score: interpolate(s, slippage100kAnchors), Weight: 0.40, Value: s,
			Justification: fmt.Sprintf("$100K trade slippage %.2f%%", s)})
	} else {
		subs = append(subs, missingSub("slippage_100k", 0.40, catalog.MetricSlippage100K))
	}

	if s, ok := snap.Value(catalog.MetricSlippage500K); ok {
		subs = append(subs, types.SubScore{Name: "slippage_500k", Score: interpolate(s, slippage500kAnchors), Weight: 0.30, Value: s,
			Justification: fmt.Sprintf("$500K trade slippage %.2f%%", s)})
	} else {
		subs = append(subs, missingSub("slippage_500k", 0.30, catalog.MetricSlippage500K))
	}

	if h, ok := snap.Value(catalog.MetricHHI); ok {
		subs = append(subs, types.SubScore{Name: "hhi", Score: interpolate(h, hhiAnchors), Weight: 0.30, Value: h,
			Justification: fmt.Sprintf("HHI %.0f", h)})
	} else {
		subs = append(subs, missingSub("hhi", 0.30, catalog.MetricHHI))
	}

	return finishCategory("liquidity", "Liquidity Risk", categoryWeights["liquidity"], subs)
}

func collateralScore(snap types.MetricSnapshot) (types.CategoryScore, bool) {
	subs := make([]types.SubScore, 0, 3)

	if v, ok := snap.Value(catalog.MetricCLR); ok {
		subs = append(subs, types.SubScore{Name: "cascade_liquidation", Score: interpolate(v, clrAnchors), Weight: 0.40, Value: v,
			Justification: fmt.Sprintf("CLR %.2f%% of borrowed value at risk", v)})
	} else {
		subs = append(subs, missingSub("cascade_liquidation", 0.40, catalog.MetricCLR))
	}

	if v, ok := snap.Value(catalog.MetricRLR); ok {
		subs = append(subs, types.SubScore{Name: "recursive_lending", Score: interpolate(v, rlrAnchors), Weight: 0.35, Value: v,
			Justification: fmt.Sprintf("RLR %.2f%% looped positions", v)})
	} else {
		subs = append(subs, missingSub("recursive_lending", 0.35, catalog.MetricRLR))
	}

	if v, ok := snap.Value(catalog.MetricUtilizationRate); ok {
		subs = append(subs, types.SubScore{Name: "utilization", Score: interpolate(v, utilizationAnchors), Weight: 0.25, Value: v,
			Justification: fmt.Sprintf("utilization %.2f%%", v)})
	} else {
		subs = append(subs, missingSub("utilization", 0.25, catalog.MetricUtilizationRate))
	}

	return finishCategory("collateral", "Collateral Risk", categoryWeights["collateral"], subs)
}

// porScore follows the reserve-backing curve: above par earns up to five
// bonus points, below par drops 5 points per 1% shortfall times the
// undercollateralization slope.
func porScore(ratio float64) float64 {
	if ratio >= 1.0 {
		return 95 + math.Min(5, (ratio-1.0)*100)
	}
	return math.Max(0, 95-(1.0-ratio)*500)
}

func reserveOracleScore(snap types.MetricSnapshot) (types.CategoryScore, bool) {
	subs := make([]types.SubScore, 0, 3)

	if ratio, ok := snap.Value(catalog.MetricPoRRatio); ok {
		just := fmt.Sprintf("reserve ratio %.2f%% - fully backed", ratio*100)
		if ratio < 1.0 {
			just = fmt.Sprintf("reserve ratio %.2f%% - UNDERCOLLATERALIZED", ratio*100)
		}
		subs = append(subs, types.SubScore{Name: "proof_of_reserves", Score: porScore(ratio), Weight: 0.50, Value: ratio, Justification: just})
	} else {
		subs = append(subs, missingSub("proof_of_reserves", 0.50, catalog.MetricPoRRatio))
	}

	if m, ok := snap.Value(catalog.MetricOracleFreshness); ok {
		subs = append(subs, types.SubScore{Name: "oracle_freshness", Score: interpolate(m, freshnessAnchors), Weight: 0.25, Value: m,
			Justification: fmt.Sprintf("last oracle update %.0f minutes ago", m)})
	} else {
		subs = append(subs, missingSub("oracle_freshness", 0.25, catalog.MetricOracleFreshness))
	}

	if m, ok := snap.Value(catalog.MetricCrossChainLag); ok {
		subs = append(subs, types.SubScore{Name: "cross_chain_lag", Score: interpolate(m, crossChainLagAnchors), Weight: 0.25, Value: m,
			Justification: fmt.Sprintf("cross-chain lag %.0f minutes", m)})
	} else {
		subs = append(subs, missingSub("cross_chain_lag", 0.25, catalog.MetricCrossChainLag))
	}

	return finishCategory("reserve_oracle", "Reserve & Oracle Risk", categoryWeights["reserve_oracle"], subs)
}
