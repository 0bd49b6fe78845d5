/*

This file contains the primary checks: three binary qualification gates
evaluated in order against static configuration. Any failure disqualifies
the asset; no numeric score is computed for a disqualified asset.

*/

package scoring

import (
	"fmt"
	"time"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

// activeIncidentWindow bounds how long a funds-loss incident keeps an asset
// disqualified.
const activeIncidentWindow = 30 * 24 * time.Hour

// RunPrimaryChecks evaluates the three qualification gates at the given
// reference time.
func RunPrimaryChecks(cfg types.AssetConfig, now time.Time) types.PrimaryCheckReport {
	checks := []types.CheckResult{
		checkHasSecurityAudit(cfg),
		checkNoCriticalAuditIssues(cfg),
		checkNoActiveIncident(cfg, now),
	}

	var failed []string
	for _, c := range checks {
		if c.Status == types.CheckFail {
			failed = append(failed, c.ID)
		}
	}

	return types.PrimaryCheckReport{
		Qualified:    len(failed) == 0,
		Checks:       checks,
		FailedChecks: failed,
	}
}

func checkHasSecurityAudit(cfg types.AssetConfig) types.CheckResult {
	result := types.CheckResult{
		ID:        "has_security_audit",
		Name:      "Has Security Audit",
		Condition: "At least 1 security audit exists",
	}

	if len(cfg.AuditData) == 0 {
		result.Status = types.CheckFail
		result.Actual = "No audit"
		result.Reason = "No security audit found - unaudited code is unacceptable"
		return result
	}

	result.Status = types.CheckPass
	latest := cfg.AuditData[0]
	for _, audit := range cfg.AuditData[1:] {
		if audit.Date.After(latest.Date.Time) {
			latest = audit
		}
	}
	result.Actual = fmt.Sprintf("%d audit(s), most recent by %s", len(cfg.AuditData), latest.Auditor)
	result.Reason = "Audit exists"
	return result
}

func checkNoCriticalAuditIssues(cfg types.AssetConfig) types.CheckResult {
	result := types.CheckResult{
		ID:        "no_critical_audit_issues",
		Name:      "No Critical Audit Issues",
		Condition: "0 unresolved critical issues from audits",
	}

	critical := 0
	for _, audit := range cfg.AuditData {
		critical += audit.CriticalIssuesUnresolved
	}

	result.Actual = fmt.Sprintf("%d critical issues", critical)
	if critical > 0 {
		result.Status = types.CheckFail
		result.Reason = "Critical audit issues remain unresolved - immediate exploit risk"
		return result
	}
	result.Status = types.CheckPass
	result.Reason = "No critical issues"
	return result
}

func checkNoActiveIncident(cfg types.AssetConfig, now time.Time) types.CheckResult {
	result := types.CheckResult{
		ID:        "no_active_security_incident",
		Name:      "No Active Security Incident",
		Condition: "No security incident with fund loss in last 30 days",
	}

	active := 0
	for _, incident := range cfg.Incidents {
		if incident.FundsLostUSD <= 0 {
			continue
		}
		if now.Sub(incident.Date.Time) >= activeIncidentWindow {
			continue
		}
		// Recent funds-loss incident: still disqualifying whether unresolved
		// or resolved only within the window.
		if incident.ResolvedAt == nil || now.Sub(incident.ResolvedAt.Time) < activeIncidentWindow {
			active++
		}
	}

	if active > 0 {
		result.Status = types.CheckFail
		result.Actual = fmt.Sprintf("%d recent incident(s)", active)
		result.Reason = "Active or recent security incident - avoid until resolved"
		return result
	}
	result.Status = types.CheckPass
	result.Actual = "No recent incidents"
	result.Reason = "No active incidents"
	return result
}
