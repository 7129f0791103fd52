package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_ObserveFetch(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveFetch("success", 3, 120*time.Millisecond)
	m.ObserveFetch("success", 0, 80*time.Millisecond)
	m.ObserveFetch("upstream_rejected", 0, 50*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImageFetches.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageFetches.WithLabelValues("upstream_rejected")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ImageFetches))
}

func TestMetrics_ObserveProxy(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveProxy(200)
	m.ObserveProxy(404)
	m.ObserveProxy(0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageProxyResponses.WithLabelValues("2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageProxyResponses.WithLabelValues("4xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ImageProxyResponses.WithLabelValues("error")))
}
