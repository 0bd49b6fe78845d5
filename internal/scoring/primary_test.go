package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

func TestPrimaryChecksAllPass(t *testing.T) {
	now := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	cfg := types.AssetConfig{
		AuditData: []types.Audit{{Auditor: "OpenZeppelin", Date: date(now.AddDate(0, -3, 0))}},
	}

	report := RunPrimaryChecks(cfg, now)
	assert.True(t, report.Qualified)
	assert.Empty(t, report.FailedChecks)
	assert.Len(t, report.Checks, 3)
	for _, check := range report.Checks {
		assert.Equal(t, types.CheckPass, check.Status)
	}
}

func TestPrimaryChecksNoAudit(t *testing.T) {
	now := time.Now().UTC()
	report := RunPrimaryChecks(types.AssetConfig{}, now)

	assert.False(t, report.Qualified)
	assert.Contains(t, report.FailedChecks, "has_security_audit")
}

func TestPrimaryChecksActiveIncident(t *testing.T) {
	now := time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC)
	base := types.AssetConfig{
		AuditData: []types.Audit{{Auditor: "OpenZeppelin", Date: date(now.AddDate(0, -3, 0))}},
	}

	tests := []struct {
		name      string
		incident  types.Incident
		qualified bool
	}{
		{
			name:      "recent unresolved fund loss disqualifies",
			incident:  types.Incident{Date: date(now.AddDate(0, 0, -10)), FundsLostUSD: 500000},
			qualified: false,
		},
		{
			name: "recent loss resolved within the window still disqualifies",
			incident: types.Incident{
				Date:         date(now.AddDate(0, 0, -20)),
				FundsLostUSD: 500000,
				ResolvedAt:   &types.Date{Time: now.AddDate(0, 0, -5)},
			},
			qualified: false,
		},
		{
			name:      "old fund loss passes",
			incident:  types.Incident{Date: date(now.AddDate(0, -6, 0)), FundsLostUSD: 500000},
			qualified: true,
		},
		{
			name:      "recent incident without fund loss passes",
			incident:  types.Incident{Date: date(now.AddDate(0, 0, -5))},
			qualified: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.Incidents = []types.Incident{tt.incident}
			report := RunPrimaryChecks(cfg, now)
			assert.Equal(t, tt.qualified, report.Qualified)
			if !tt.qualified {
				assert.Contains(t, report.FailedChecks, "no_active_security_incident")
			}
		})
	}
}
