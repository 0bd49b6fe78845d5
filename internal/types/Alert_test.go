package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOperatorCompare(t *testing.T) {
	tests := []struct {
		op        Operator
		value     float64
		threshold float64
		expected  bool
	}{
		{OpLT, 0.98, 1.0, true},
		{OpLT, 1.0, 1.0, false},
		{OpLE, 1.0, 1.0, true},
		{OpGT, 95, 90, true},
		{OpGT, 90, 90, false},
		{OpGE, 90, 90, true},
		{OpEQ, 4000, 4000, true},
		{OpEQ, 3999, 4000, false},
		{Operator("~"), 1, 1, false},
	}

	for _, tt := range tests {
		got := tt.op.Compare(tt.value, tt.threshold)
		assert.Equal(t, tt.expected, got, "%v %s %v", tt.value, tt.op, tt.threshold)
	}
}

func TestNotificationEnvelopeSummary(t *testing.T) {
	env := NotificationEnvelope{
		Severity:       SeverityCritical,
		AssetSymbol:    "WBTC",
		MetricName:     "por_ratio",
		Value:          0.97,
		ThresholdValue: 1.0,
		Operator:       OpLT,
		TriggeredAt:    time.Date(2026, 8, 5, 10, 0, 0, 0, time.UTC),
		Chain:          ChainEthereum,
	}

	summary := env.Summary()
	assert.Contains(t, summary, "WBTC por_ratio")
	assert.Contains(t, summary, "(ethereum)")
	assert.Contains(t, summary, "0.9700 < 1")
	assert.Contains(t, summary, "[critical]")
	assert.NotContains(t, summary, "suppressed")

	env.SuppressedCount = 3
	assert.Contains(t, env.Summary(), "(+3 suppressed)")
}
