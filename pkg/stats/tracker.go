package stats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ticobot/ticobot/pkg/models"
)

// MaxSamples is the number of serialization savings samples retained.
// Older samples are evicted FIFO.
const MaxSamples = 1000

var (
	compactTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticobot_context_compact_tokens_total",
			Help: "Total tokens consumed by the compact context serialization",
		},
	)
	jsonTokensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ticobot_context_json_tokens_total",
			Help: "Total tokens the JSON baseline serialization would have consumed",
		},
	)
)

// Tracker accumulates serialization savings samples for the /stats endpoint.
// Snapshot totals cover only the retained window; the prometheus counters
// are cumulative for the process lifetime.
type Tracker struct {
	costPer1KTokens float64

	mu      sync.Mutex
	samples []models.UsageSample
}

var _ models.UsageTracker = &Tracker{}

func NewTracker(costPer1KTokens float64) *Tracker {
	return &Tracker{
		costPer1KTokens: costPer1KTokens,
		samples:         make([]models.UsageSample, 0, MaxSamples),
	}
}

func (t *Tracker) Record(sample models.UsageSample) {
	if sample.CreatedAt.IsZero() {
		sample.CreatedAt = time.Now()
	}

	compactTokensTotal.Add(float64(sample.CompactTokens))
	jsonTokensTotal.Add(float64(sample.JSONTokens))

	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.samples) >= MaxSamples {
		t.samples = t.samples[1:]
	}
	t.samples = append(t.samples, sample)
}

func (t *Tracker) Snapshot() models.UsageSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snapshot := models.UsageSnapshot{
		SampleCount: len(t.samples),
	}
	var savingsPercentSum float64
	for _, sample := range t.samples {
		snapshot.TotalCompactTokens += sample.CompactTokens
		snapshot.TotalJSONTokens += sample.JSONTokens
		if sample.JSONTokens > 0 {
			saved := float64(sample.JSONTokens-sample.CompactTokens) / float64(sample.JSONTokens)
			savingsPercentSum += saved * 100
		}
	}
	snapshot.TokensSaved = snapshot.TotalJSONTokens - snapshot.TotalCompactTokens
	if snapshot.SampleCount > 0 {
		snapshot.AvgSavingsPercent = savingsPercentSum / float64(snapshot.SampleCount)
	}
	if snapshot.TokensSaved > 0 {
		snapshot.EstimatedCostSaved = float64(snapshot.TokensSaved) / 1000 * t.costPer1KTokens
	}

	return snapshot
}

func (t *Tracker) Samples() []models.UsageSample {
	t.mu.Lock()
	defer t.mu.Unlock()

	samples := make([]models.UsageSample, len(t.samples))
	copy(samples, t.samples)
	return samples
}
