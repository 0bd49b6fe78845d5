package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

func TestInterpolate(t *testing.T) {
	anchors := []anchor{{0, 10}, {30, 30}, {90, 50}, {180, 70}, {365, 85}, {730, 100}}

	tests := []struct {
		name     string
		value    float64
		expected float64
	}{
		{"below first anchor clamps", -5, 10},
		{"exact anchor", 90, 50},
		{"midpoint interpolates", 45, 35},
		{"above last anchor clamps", 2000, 100},
		{"between last two", 547.5, 92.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, interpolate(tt.value, anchors), 1e-9)
		})
	}
}

func TestPegDeviationScoreIsStepwise(t *testing.T) {
	tests := []struct {
		deviation float64
		expected  float64
	}{
		{0.05, 100},
		{0.1, 90},
		{0.3, 90},
		{0.7, 75},
		{1.5, 55},
		{3.0, 30},
		{7.0, 10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, pegDeviationScore(tt.deviation), "deviation %.2f", tt.deviation)
	}
}

func TestAdminKeyControlPenalties(t *testing.T) {
	tests := []struct {
		name     string
		gov      types.Governance
		expected float64
	}{
		{
			name: "single EOA default weight",
			gov: types.Governance{
				Roles:       []types.GovernanceRole{{RoleName: "owner", AuthorityKind: types.AuthorityEOA}},
				HasTimelock: true,
			},
			// 100 - 3*15 = 55
			expected: 55,
		},
		{
			name: "4/7 multisig with timelock",
			gov: types.Governance{
				Roles: []types.GovernanceRole{
					{RoleName: "owner", AuthorityKind: types.AuthorityMultisig, Threshold: 4, SignerCount: 7},
				},
				HasTimelock: true,
			},
			// 100 - 3*(1-4/7)*10 = 87.142857
			expected: 87.142857142857,
		},
		{
			name: "unknown contract without timelock",
			gov: types.Governance{
				Roles: []types.GovernanceRole{
					{RoleName: "admin", AuthorityKind: types.AuthorityContractUnknown},
				},
			},
			// (100 - 3*7) * 0.85 = 67.15
			expected: 67.15,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, ok := counterpartyScore(&tt.gov)
			require.True(t, ok)
			var akc *types.SubScore
			for i := range cat.Breakdown {
				if cat.Breakdown[i].Name == "admin_key_control" {
					akc = &cat.Breakdown[i]
				}
			}
			require.NotNil(t, akc)
			assert.InDelta(t, tt.expected, akc.Score, 1e-6)
		})
	}
}

func TestDAOVotingScore(t *testing.T) {
	assert.Equal(t, 50.0, daoVotingScore(nil))
	assert.Equal(t, 65.0, daoVotingScore(&types.DAOSafeguards{HasVetoPower: true}))
	assert.Equal(t, 75.0, daoVotingScore(&types.DAOSafeguards{HasVetoPower: true, HasDualGovernance: true}))
	// All safeguards sum to 80, which is also the cap.
	assert.Equal(t, 80.0, daoVotingScore(&types.DAOSafeguards{HasVetoPower: true, HasDualGovernance: true, QuorumPct: 12}))
	// Low quorum earns nothing.
	assert.Equal(t, 50.0, daoVotingScore(&types.DAOSafeguards{QuorumPct: 1}))
}

func TestAuditScoreMultipliers(t *testing.T) {
	now := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)

	auditSub := func(cfg types.AssetConfig) types.SubScore {
		cat, ok := smartContractScore(cfg, now)
		require.True(t, ok)
		return cat.Breakdown[0]
	}

	// Fresh audit by a top-tier firm: 80 * 1.1 = 88.
	cfg := types.AssetConfig{AuditData: []types.Audit{
		{Auditor: "Trail of Bits", Date: date(now.AddDate(0, -1, 0))},
	}}
	assert.InDelta(t, 88.0, auditSub(cfg).Score, 1e-9)

	// Unresolved high issues: 80 * 0.7 = 56.
	cfg = types.AssetConfig{AuditData: []types.Audit{
		{Auditor: "SomeFirm", Date: date(now.AddDate(0, -1, 0)), HighIssuesUnresolved: 2},
	}}
	assert.InDelta(t, 56.0, auditSub(cfg).Score, 1e-9)

	// Stale beyond two years: 80 * 0.6 = 48.
	cfg = types.AssetConfig{AuditData: []types.Audit{
		{Auditor: "SomeFirm", Date: date(now.AddDate(-3, 0, 0))},
	}}
	assert.InDelta(t, 48.0, auditSub(cfg).Score, 1e-9)

	// No audit at all: base 20.
	assert.InDelta(t, 20.0, auditSub(types.AssetConfig{}).Score, 1e-9)
}

func TestIncidentHistoryScore(t *testing.T) {
	now := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	cfg := types.AssetConfig{
		AuditData: []types.Audit{{Auditor: "SomeFirm", Date: date(now.AddDate(0, -1, 0))}},
		Incidents: []types.Incident{
			{Date: date(now.AddDate(-1, 0, 0)), FundsLostUSD: 1_000_000, FundsLostPctOfTVL: 45},
			{Date: date(now.AddDate(-2, 0, 0))},
		},
	}

	cat, ok := smartContractScore(cfg, now)
	require.True(t, ok)
	incident := cat.Breakdown[2]
	// 100 - (30 + min(30, 45)) - 15 = 25.
	assert.InDelta(t, 25.0, incident.Score, 1e-9)
}

func TestPorScoreCurve(t *testing.T) {
	assert.InDelta(t, 95.0, porScore(1.0), 1e-9)
	assert.InDelta(t, 95.1, porScore(1.001), 1e-9)
	assert.InDelta(t, 100.0, porScore(1.10), 1e-9)
	assert.InDelta(t, 70.0, porScore(0.95), 1e-9)
	assert.InDelta(t, 0.0, porScore(0.80), 1e-9)
}

func TestGradeScalePartitionsWithoutGaps(t *testing.T) {
	// Every score in [0,100] maps to exactly one grade, and the band edges
	// land where the scale says they do.
	for score := 0.0; score <= 100.0; score += 0.5 {
		grade := ScoreToGrade(score)
		require.NotEmpty(t, grade)
		info := GradeFor(grade)
		assert.GreaterOrEqual(t, score, info.Min, "score %.1f below band %s", score, grade)
	}

	assert.Equal(t, "A", ScoreToGrade(85))
	assert.Equal(t, "B", ScoreToGrade(84.9))
	assert.Equal(t, "B", ScoreToGrade(70))
	assert.Equal(t, "C", ScoreToGrade(69.9))
	assert.Equal(t, "C", ScoreToGrade(55))
	assert.Equal(t, "D", ScoreToGrade(54.9))
	assert.Equal(t, "D", ScoreToGrade(40))
	assert.Equal(t, "F", ScoreToGrade(39.9))
	assert.Equal(t, "F", ScoreToGrade(0))
}
