package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collectMetric extracts the metric of c whose labels include labels.
func collectMetric(t *testing.T, c prometheus.Collector, labels map[string]string) *dto.Metric {
	t.Helper()
	ch := make(chan prometheus.Metric, 100)
	c.Collect(ch)
	close(ch)

	for m := range ch {
		d := &dto.Metric{}
		if err := m.Write(d); err != nil {
			continue
		}
		if hasLabels(d, labels) {
			return d
		}
	}
	return nil
}

func hasLabels(d *dto.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lp := range d.GetLabel() {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func counterValue(t *testing.T, c prometheus.Collector, labels map[string]string) float64 {
	t.Helper()
	m := collectMetric(t, c, labels)
	if m == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

func TestCacheResult(t *testing.T) {
	hits := counterValue(t, CacheRequests, map[string]string{"cache": "metrics-test", "result": "hit"})
	misses := counterValue(t, CacheRequests, map[string]string{"cache": "metrics-test", "result": "miss"})

	CacheResult("metrics-test", true)
	CacheResult("metrics-test", false)
	CacheResult("metrics-test", false)

	assert.Equal(t, hits+1, counterValue(t, CacheRequests, map[string]string{"cache": "metrics-test", "result": "hit"}))
	assert.Equal(t, misses+2, counterValue(t, CacheRequests, map[string]string{"cache": "metrics-test", "result": "miss"}))
}

func TestObserveStage(t *testing.T) {
	ObserveStage(StageFacets, time.Now().Add(-20*time.Millisecond))

	m := collectMetric(t, StageDuration, map[string]string{"stage": StageFacets})
	require.NotNil(t, m)
	h := m.GetHistogram()
	assert.GreaterOrEqual(t, h.GetSampleCount(), uint64(1))
	assert.GreaterOrEqual(t, h.GetSampleSum(), 0.02)
}
