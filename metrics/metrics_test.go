package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.IncrementDecision("Accepted", true)
	m.IncrementDecision("Accepted", true)
	m.IncrementDecision("Blocked", false)
	m.ObserveLookup(SourceTag, time.Now(), nil)
	m.ObserveLookup(SourceSettings, time.Now(), errors.New("gone"))
	m.IncrementCacheFallback()

	require.Equal(t, 2.0, testutil.ToFloat64(m.Decisions.WithLabelValues("Accepted", "true")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Decisions.WithLabelValues("Blocked", "false")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.LookupErrors.WithLabelValues(SourceTag)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LookupErrors.WithLabelValues(SourceSettings)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.CacheFallbacks))
	require.Equal(t, 2, testutil.CollectAndCount(m.LookupDuration))
}

func TestMetricsDoubleRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	require.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.IncrementDecision("Accepted", true)
	m.ObserveLookup(SourceTag, time.Now(), nil)
	m.IncrementCacheFallback()
}
