/*

This file contains the types for the two-stage risk scoring pipeline:
primary checks, weighted category scores, circuit breakers and the final
grade artifact. Score results are ephemeral; they are not persisted by the
core.

*/

package types

import "time"

// CheckStatus is the outcome of one binary primary check.
type CheckStatus string

const (
	CheckPass CheckStatus = "pass"
	CheckFail CheckStatus = "fail"
)

// CheckResult is the outcome of a single primary check.
type CheckResult struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Status    CheckStatus `json:"status"`
	Condition string      `json:"condition"`
	Actual    string      `json:"actual_value"`
	Reason    string      `json:"reason"`
}

// PrimaryCheckReport aggregates the three qualification gates.
type PrimaryCheckReport struct {
	Qualified    bool          `json:"qualified"`
	Checks       []CheckResult `json:"checks"`
	FailedChecks []string      `json:"failed_checks"`
}

// SubScore is one component of a category score. When the underlying metric
// is absent from the snapshot, Missing is set, the score is omitted and the
// sub-score's weight is redistributed proportionally within the category.
type SubScore struct {
	Name          string  `json:"name"`
	Score         float64 `json:"score"`
	Weight        float64 `json:"weight"`
	Value         float64 `json:"value,omitempty"`
	Missing       bool    `json:"missing,omitempty"`
	Justification string  `json:"justification,omitempty"`
}

// CategoryScore is one weighted category with its sub-score trace.
type CategoryScore struct {
	Key       string     `json:"key"`
	Category  string     `json:"category"`
	Score     float64    `json:"score"`
	Grade     string     `json:"grade"`
	Weight    float64    `json:"weight"`
	Breakdown []SubScore `json:"breakdown"`
}

// BreakerEvent records one triggered circuit breaker.
type BreakerEvent struct {
	Name          string `json:"name"`
	Effect        string `json:"effect"`
	Justification string `json:"justification,omitempty"`
}

// OverallScore is the final aggregate for a qualified asset.
type OverallScore struct {
	Score     float64 `json:"score"`
	Grade     string  `json:"grade"`
	Label     string  `json:"label"`
	RiskLevel string  `json:"risk_level"`
	BaseScore float64 `json:"base_score"`
	BaseGrade string  `json:"base_grade"`
}

// RiskScoreResult is the complete outcome of scoring one asset. Overall is
// nil when the asset is disqualified by a primary check; Breakers lists
// every circuit breaker that applied.
type RiskScoreResult struct {
	AssetSymbol   string             `json:"asset_symbol"`
	Qualified     bool               `json:"qualified"`
	PrimaryChecks PrimaryCheckReport `json:"primary_checks"`
	Overall       *OverallScore      `json:"overall,omitempty"`
	Categories    []CategoryScore    `json:"categories,omitempty"`
	Breakers      []BreakerEvent     `json:"circuit_breakers,omitempty"`
	Cutoff        time.Time          `json:"cutoff"`
	GeneratedAt   time.Time          `json:"generated_at"`
}
