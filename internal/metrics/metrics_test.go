package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/paxgov/citizenry/internal/government"
)

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, g.Write(m))
	return m.GetGauge().GetValue()
}

func TestSetHeadAndTrailerUpdateGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test", government.ID("a"))

	m.SetHead(2, 5)
	require.Equal(t, float64(2), gaugeValue(t, m.headGovernment))
	require.Equal(t, float64(5), gaugeValue(t, m.headRound))

	m.SetTrailer(1, 3)
	require.Equal(t, float64(1), gaugeValue(t, m.trailerGovernment))
	require.Equal(t, float64(3), gaugeValue(t, m.trailerRound))
}

func TestSetReachableTracksPerPeerLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test", government.ID("a"))

	m.SetReachable("b", true)
	require.Equal(t, float64(1), gaugeValue(t, m.reachable.WithLabelValues("b")))

	m.SetReachable("b", false)
	require.Equal(t, float64(0), gaugeValue(t, m.reachable.WithLabelValues("b")))
}

func TestIncCollapseIncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg, "test", government.ID("a"))

	m.IncCollapse()
	m.IncCollapse()

	out := &dto.Metric{}
	require.NoError(t, m.collapses.Write(out))
	require.Equal(t, float64(2), out.GetCounter().GetValue())
}

func TestNilRegistryMethodsAreNoops(t *testing.T) {
	var m *Registry
	require.NotPanics(t, func() {
		m.SetHead(1, 1)
		m.SetTrailer(1, 1)
		m.SetReachable("x", true)
		m.IncCollapse()
	})
}
