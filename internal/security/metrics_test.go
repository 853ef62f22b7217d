package security

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestParseMetricsLabels(t *testing.T) {
	t.Setenv("POD", "medb-0")

	labels, err := ParseMetricsLabels("service=medb,pod=${POD}")
	require.NoError(t, err)
	require.Equal(t, prometheus.Labels{"service": "medb", "pod": "medb-0"}, labels)

	labels, err = ParseMetricsLabels("")
	require.NoError(t, err)
	require.Nil(t, labels)

	_, err = ParseMetricsLabels("novalue")
	require.Error(t, err)

	_, err = ParseMetricsLabels("1bad=x")
	require.Error(t, err)
}

func TestCountersAreSafeBeforeInit(t *testing.T) {
	CountAllocation()
	CountReclaim()
	CountSessionLookup("cookie", "hit")
}
