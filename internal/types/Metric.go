/*

This file contains the metric sample types shared by the fetchers, the metric
store and the scoring engine.

*/

package types

import "time"

// FrequencyClass buckets metrics by how often they are collected.
type FrequencyClass string

const (
	ClassCritical FrequencyClass = "critical" // <= 5 min
	ClassHigh     FrequencyClass = "high"     // <= 30 min
	ClassMedium   FrequencyClass = "medium"   // <= 6 h
	ClassDaily    FrequencyClass = "daily"    // <= 24 h
)

// AllFrequencyClasses in dispatch order.
var AllFrequencyClasses = []FrequencyClass{ClassCritical, ClassHigh, ClassMedium, ClassDaily}

// MetricSample is one immutable observation of a metric for an asset.
// Chain and Metadata are optional context; Metadata carries free-form
// structured detail such as the lending-market anchor or the feed name.
type MetricSample struct {
	ID          int64          `json:"id,omitempty"`
	AssetSymbol string         `json:"asset_symbol"`
	MetricName  string         `json:"metric_name"`
	Value       float64        `json:"value"`
	Chain       Chain          `json:"chain,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	RecordedAt  time.Time      `json:"recorded_at"`
}

// MetricSnapshot is a point-in-time capture of the latest sample per metric
// for one asset, consistent at Cutoff: every sample satisfies
// RecordedAt <= Cutoff and is the max-timestamp sample under that bound.
// The snapshot is immutable once built; scoring never observes later writes.
type MetricSnapshot struct {
	AssetSymbol string                  `json:"asset_symbol"`
	Cutoff      time.Time               `json:"cutoff"`
	Samples     map[string]MetricSample `json:"samples"`
}

// Value returns the snapshot value for a metric and whether it is present.
func (s MetricSnapshot) Value(metric string) (float64, bool) {
	sample, ok := s.Samples[metric]
	if !ok {
		return 0, false
	}
	return sample.Value, true
}
