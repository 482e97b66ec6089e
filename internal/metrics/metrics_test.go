package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestSettersUpdateGauges(t *testing.T) {
	SetTokenCacheSize(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(tokenCacheSize))

	SetActiveSessions(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(activeSessions))

	SetEntityCount(12)
	assert.Equal(t, float64(12), testutil.ToFloat64(entityCount))
}

func TestCountersIncrement(t *testing.T) {
	before := testutil.ToFloat64(respawns)
	IncRespawn()
	assert.Equal(t, before+1, testutil.ToFloat64(respawns))

	beforeEvict := testutil.ToFloat64(tokenCacheEvictions)
	IncTokenCacheEvictions(4)
	assert.Equal(t, beforeEvict+4, testutil.ToFloat64(tokenCacheEvictions))

	IncHarvest("success")
	IncHarvest("too_far")
	assert.Equal(t, float64(1), testutil.ToFloat64(harvests.WithLabelValues("success")))
	assert.Equal(t, float64(1), testutil.ToFloat64(harvests.WithLabelValues("too_far")))

	IncFramesDropped("rate_limit")
	assert.Equal(t, float64(1), testutil.ToFloat64(framesDropped.WithLabelValues("rate_limit")))
}

func TestHandlerServesRegisteredMetrics(t *testing.T) {
	assert.NotNil(t, Handler())
}
