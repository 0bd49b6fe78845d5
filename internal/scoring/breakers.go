/*

This file contains the circuit breakers: conditions that cap or shrink the
weighted score regardless of how strong the other categories are. Caps and
multipliers both apply; a capped score is then still subject to the category
multipliers and later caps, in the order listed.

*/

package scoring

import (
	"fmt"

	"github.com/avantgarde-labs/riskmon/internal/catalog"
	"github.com/avantgarde-labs/riskmon/internal/types"
)

// criticalRoleWeight is the role weight at which an EOA-held role trips the
// critical-admin breaker.
const criticalRoleWeight = 4

// Breaker caps and multipliers.
const (
	capUndercollateralized = 69 // grade <= C
	capCriticalAdminEOA    = 54 // grade <= D
	capActiveIncident      = 39 // grade <= F
	capNoAudit             = 54 // grade <= D

	multiplierCriticalCategory = 0.5 // any category < 25
	multiplierSevereCategory   = 0.7 // any category < 40
)

// applyCircuitBreakers adjusts the base score and returns the triggered
// breaker events in application order.
func applyCircuitBreakers(baseScore float64, cfg types.AssetConfig, snap types.MetricSnapshot,
	categories []types.CategoryScore, primary types.PrimaryCheckReport) (float64, []types.BreakerEvent) {

	score := baseScore
	var triggered []types.BreakerEvent

	capAt := func(cap float64, name, justification string) {
		if score > cap {
			score = cap
		}
		triggered = append(triggered, types.BreakerEvent{
			Name:          name,
			Effect:        fmt.Sprintf("score capped at %.0f (grade %s)", cap, ScoreToGrade(cap)),
			Justification: justification,
		})
	}

	if ratio, ok := snap.Value(catalog.MetricPoRRatio); ok && ratio < 1.0 {
		capAt(capUndercollateralized, "Reserve Undercollateralized",
			"Fundamental backing issue. Asset is not fully redeemable.")
	}

	if gov := cfg.Governance; gov != nil {
		for _, role := range gov.Roles {
			if role.AuthorityKind == types.AuthorityEOA && role.Weight() >= criticalRoleWeight {
				capAt(capCriticalAdminEOA, "Critical Admin EOA",
					fmt.Sprintf("Role %q is held by a single key.", role.RoleName))
				break
			}
		}
	}

	if failedCheck(primary, "no_active_security_incident") {
		capAt(capActiveIncident, "Active Security Incident",
			"Active risk to user funds. Users should not deposit until resolved.")
	}

	// Category weakness multipliers: the worst applicable multiplier wins,
	// they do not compound across categories.
	multiplier := 1.0
	for _, cat := range categories {
		switch {
		case cat.Score < 25:
			if multiplierCriticalCategory < multiplier {
				multiplier = multiplierCriticalCategory
			}
			triggered = append(triggered, types.BreakerEvent{
				Name:          "Critical Failure: " + cat.Category,
				Effect:        fmt.Sprintf("multiplier %.1f", multiplierCriticalCategory),
				Justification: fmt.Sprintf("%s score is %.1f (< 25)", cat.Category, cat.Score),
			})
		case cat.Score < 40:
			if multiplierSevereCategory < multiplier {
				multiplier = multiplierSevereCategory
			}
			triggered = append(triggered, types.BreakerEvent{
				Name:          "Severe Weakness: " + cat.Category,
				Effect:        fmt.Sprintf("multiplier %.1f", multiplierSevereCategory),
				Justification: fmt.Sprintf("%s score is %.1f (< 40)", cat.Category, cat.Score),
			})
		}
	}
	score *= multiplier

	if len(cfg.AuditData) == 0 {
		capAt(capNoAudit, "No Audit",
			"Unaudited code is the highest smart contract risk regardless of other factors.")
	}

	return score, triggered
}

func failedCheck(report types.PrimaryCheckReport, checkID string) bool {
	for _, id := range report.FailedChecks {
		if id == checkID {
			return true
		}
	}
	return false
}
