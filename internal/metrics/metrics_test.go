package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.GateRejections.WithLabelValues("token_revoked").Inc()
	m.AuthOperations.WithLabelValues("login", "ok").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateRejections.WithLabelValues("token_revoked")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthOperations.WithLabelValues("login", "ok")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "deviceauth_gate_rejections_total")
	assert.Contains(t, names, "deviceauth_auth_operations_total")
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
