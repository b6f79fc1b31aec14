package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.IncSuccess("checkout_sweep")
	m.IncSuccess("checkout_sweep")
	m.IncFailure("promo_expiry")
	m.ObserveDuration("checkout_sweep", 250*time.Millisecond)

	require.Equal(t, float64(2), testutil.ToFloat64(m.successes.WithLabelValues("checkout_sweep")))
	require.Equal(t, float64(1), testutil.ToFloat64(m.failures.WithLabelValues("promo_expiry")))
	require.Equal(t, 1, testutil.CollectAndCount(m.duration))
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.IncSuccess("checkout_sweep")
	m.IncFailure("promo_expiry")
	m.ObserveDuration("promo_expiry", time.Second)

	empty := NewCronJobMetrics(nil)
	empty.IncSuccess("checkout_sweep")
}
