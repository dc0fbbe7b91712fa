package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsRegistered(t *testing.T) {
	ProviderAttempts.WithLabelValues("proxy", "ok").Inc()
	SearchDuration.WithLabelValues("exact").Observe(0.01)

	families, err := Registry.Gather()
	require.NoError(t, err)
	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["nexus_provider_attempts_total"])
	assert.True(t, names["nexus_search_duration_seconds"])
}
