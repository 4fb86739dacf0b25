package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRegisterOnInjectedRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New("labcases", reg)

	m.CaseTransitions.WithLabelValues("draft", "sent").Inc()
	m.CaseTransitions.WithLabelValues("draft", "sent").Inc()
	m.BundleFiles.WithLabelValues("skipped").Inc()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CaseTransitions.WithLabelValues("draft", "sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BundleFiles.WithLabelValues("skipped")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "labcases_case_transitions_total")
}

func TestNewTwiceOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewNop()
		NewNop()
	})
}
