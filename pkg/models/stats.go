package models

import (
	"time"
)

// UsageSample is a single serialization savings measurement: the token cost
// of the compact context rendering vs the JSON baseline for one answer.
type UsageSample struct {
	CompactTokens int       `json:"compact_tokens"`
	JSONTokens    int       `json:"json_tokens"`
	CreatedAt     time.Time `json:"created_at"`
}

type UsageSnapshot struct {
	SampleCount        int     `json:"sample_count"`
	TotalCompactTokens int     `json:"total_compact_tokens"`
	TotalJSONTokens    int     `json:"total_json_tokens"`
	TokensSaved        int     `json:"tokens_saved"`
	AvgSavingsPercent  float64 `json:"avg_savings_percent"`
	// EstimatedCostSaved is TokensSaved priced at the configured rate, USD.
	EstimatedCostSaved float64 `json:"estimated_cost_saved"`
}

// UsageTracker accumulates serialization savings samples. Implementations
// retain a bounded window of recent samples and evict oldest first.
type UsageTracker interface {
	Record(sample UsageSample)
	Snapshot() UsageSnapshot
	// Samples returns a copy of the retained samples, oldest first.
	Samples() []UsageSample
}
