package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestDispatchTotal_Increment(t *testing.T) {
	before := testutil.ToFloat64(DispatchTotal.WithLabelValues("test-attack", "suppressed"))
	DispatchTotal.WithLabelValues("test-attack", "suppressed").Inc()
	after := testutil.ToFloat64(DispatchTotal.WithLabelValues("test-attack", "suppressed"))

	assert.Equal(t, before+1, after)
}

func TestHandlerFaultsTotal_Increment(t *testing.T) {
	before := testutil.ToFloat64(HandlerFaultsTotal.WithLabelValues("test-call"))
	HandlerFaultsTotal.WithLabelValues("test-call").Inc()

	assert.Equal(t, before+1, testutil.ToFloat64(HandlerFaultsTotal.WithLabelValues("test-call")))
}

func TestSetPhase_OneHot(t *testing.T) {
	all := []string{"t-waiting", "t-register", "t-voting", "t-running"}
	SetPhase("t-voting", all)

	assert.Equal(t, float64(1), testutil.ToFloat64(Phase.WithLabelValues("t-voting")))
	assert.Equal(t, float64(0), testutil.ToFloat64(Phase.WithLabelValues("t-waiting")))
	assert.Equal(t, float64(0), testutil.ToFloat64(Phase.WithLabelValues("t-running")))

	SetPhase("t-running", all)
	assert.Equal(t, float64(0), testutil.ToFloat64(Phase.WithLabelValues("t-voting")))
	assert.Equal(t, float64(1), testutil.ToFloat64(Phase.WithLabelValues("t-running")))
}

func TestRoundDuration_Observe(t *testing.T) {
	RoundDuration.WithLabelValues("test-kind").Observe(90)
	count := testutil.CollectAndCount(RoundDuration)

	assert.Greater(t, count, 0)
}
