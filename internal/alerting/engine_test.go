package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/avantgarde-labs/riskmon/internal/types"
)

func TestFormatAlertMessage(t *testing.T) {
	sample := types.MetricSample{
		AssetSymbol: "WBTC",
		MetricName:  "utilization_rate",
		Value:       96.1234,
		Chain:       types.ChainArbitrum,
	}
	rule := types.ThresholdRule{
		MetricName:     "utilization_rate",
		Operator:       types.OpGT,
		ThresholdValue: 95,
		Severity:       types.SeverityCritical,
	}

	msg := formatAlertMessage(sample, rule)
	assert.Equal(t, "WBTC utilization_rate (arbitrum): 96.1234 > 95 [critical]", msg)

	sample.Chain = ""
	msg = formatAlertMessage(sample, rule)
	assert.Equal(t, "WBTC utilization_rate: 96.1234 > 95 [critical]", msg)
}
