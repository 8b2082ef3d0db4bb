package testsupport

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GetMetricValue reads a metric from the default registry.
// Counters and gauges return their value, histograms their sample count.
// A metric or label set that was never observed reads as 0.
func GetMetricValue(t *testing.T, metricName string, labelFilter map[string]string) float64 {
	t.Helper()

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err, "failed to gather metrics")

	for _, mf := range families {
		if mf.GetName() != metricName {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !hasLabels(m, labelFilter) {
				continue
			}
			switch {
			case m.GetCounter() != nil:
				return m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				return m.GetGauge().GetValue()
			case m.GetHistogram() != nil:
				return float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return 0
}

func hasLabels(m *dto.Metric, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	got := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// AssertMetricDelta asserts that fn moves the metric by exactly expectedDelta.
func AssertMetricDelta(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()
	after := GetMetricValue(t, metricName, labels)

	assert.Equal(t, expectedDelta, after-before, "metric %s%v delta mismatch", metricName, labels)
}

// AssertMetricDeltaAsync is AssertMetricDelta for background work: it waits
// up to two seconds for the delta to appear.
func AssertMetricDeltaAsync(t *testing.T, metricName string, labels map[string]string, expectedDelta float64, fn func()) {
	t.Helper()

	before := GetMetricValue(t, metricName, labels)
	fn()

	require.Eventually(t, func() bool {
		return GetMetricValue(t, metricName, labels) == before+expectedDelta
	}, 2*time.Second, 20*time.Millisecond, "metric %s%v never moved by %.0f", metricName, labels, expectedDelta)
}
