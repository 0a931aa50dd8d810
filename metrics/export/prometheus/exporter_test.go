package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	goSession "github.com/MrEthical07/goSession"
)

type fakeSource struct {
	snapshot goSession.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() goSession.MetricsSnapshot { return f.snapshot }
func (f fakeSource) NotifyDropped() uint64                      { return f.dropped }

func TestCollectorEmitsOnlyDroppedWhenDisabled(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters:   map[goSession.MetricID]uint64{},
			Histograms: map[goSession.MetricID][]uint64{},
		},
	})
	assert.Equal(t, 1, testutil.CollectAndCount(c))
}

func TestCollectorCountersAndHistogram(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{
				goSession.MetricSignInSuccess: 7,
				goSession.MetricRateLimited:   2,
			},
			Histograms: map[goSession.MetricID][]uint64{
				goSession.MetricOperationLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
			HistogramSums: map[goSession.MetricID]time.Duration{
				goSession.MetricOperationLatency: 3 * time.Second,
			},
		},
		dropped: 4,
	})

	expected := `
# HELP gosession_sign_in_success_total Successful password sign-ins.
# TYPE gosession_sign_in_success_total counter
gosession_sign_in_success_total 7
# HELP gosession_notify_dropped_total Notices dropped due to dispatcher backpressure.
# TYPE gosession_notify_dropped_total counter
gosession_notify_dropped_total 4
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"gosession_sign_in_success_total", "gosession_notify_dropped_total"))

	reg := prometheus.NewRegistry()
	require.NoError(t, c.Register(reg))
	families, err := reg.Gather()
	require.NoError(t, err)

	var hist bool
	for _, mf := range families {
		if mf.GetName() != "gosession_operation_latency_seconds" {
			continue
		}
		hist = true
		h := mf.GetMetric()[0].GetHistogram()
		assert.Equal(t, uint64(36), h.GetSampleCount())
		assert.InDelta(t, 3.0, h.GetSampleSum(), 1e-9)
		assert.Equal(t, uint64(1), h.GetBucket()[0].GetCumulativeCount())
	}
	assert.True(t, hist, "histogram not gathered")
}

func TestHandlerServesExposition(t *testing.T) {
	c := NewCollectorFromSource(fakeSource{
		snapshot: goSession.MetricsSnapshot{
			Counters: map[goSession.MetricID]uint64{goSession.MetricSignOut: 1},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, rec.Body.String(), "gosession_sign_out_total 1")
}
