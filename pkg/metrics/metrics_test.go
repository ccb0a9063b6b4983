package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	require.NotNil(t, m.Counter)
	return m.GetCounter().GetValue()
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, g.Write(&m))
	require.NotNil(t, m.Gauge)
	return m.GetGauge().GetValue()
}

func TestMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(WithRegistry(reg), WithNamespace("test"), WithConstLabels(prometheus.Labels{"session": "lobby"}))

	m.SetUsers(3)
	m.SetPending(1)
	m.RecordJoin(JoinAccepted)
	m.RecordJoin(JoinAccepted)
	m.RecordJoin(JoinDuplicateUser)
	m.RecordLeave()
	m.RecordEmpty()
	m.RecordHandshake("Success")
	m.RecordControlFailure()

	assert.Equal(t, 3.0, gaugeValue(t, m.users))
	assert.Equal(t, 1.0, gaugeValue(t, m.pending))
	assert.Equal(t, 2.0, counterValue(t, m.joins.WithLabelValues(JoinAccepted)))
	assert.Equal(t, 1.0, counterValue(t, m.joins.WithLabelValues(JoinDuplicateUser)))
	assert.Equal(t, 0.0, counterValue(t, m.joins.WithLabelValues(JoinInvalidUser)))
	assert.Equal(t, 1.0, counterValue(t, m.leaves))
	assert.Equal(t, 1.0, counterValue(t, m.empties))
	assert.Equal(t, 1.0, counterValue(t, m.handshakes.WithLabelValues("Success")))
	assert.Equal(t, 1.0, counterValue(t, m.controlFailures))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, family := range families {
		names = append(names, family.GetName())
	}
	assert.Contains(t, names, "test_session_users")
	assert.Contains(t, names, "test_session_joins_total")
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.SetUsers(1)
		m.SetPending(1)
		m.RecordJoin(JoinAccepted)
		m.RecordLeave()
		m.RecordEmpty()
		m.RecordHandshake("Failed")
		m.RecordControlFailure()
	})
}
