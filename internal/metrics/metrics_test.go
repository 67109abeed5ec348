package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGateDecisionsCounts(t *testing.T) {
	before := testutil.ToFloat64(GateDecisions.WithLabelValues("chat", "allowed"))
	GateDecisions.WithLabelValues("chat", "allowed").Inc()
	if got := testutil.ToFloat64(GateDecisions.WithLabelValues("chat", "allowed")); got != before+1 {
		t.Fatalf("expected %v, got %v", before+1, got)
	}
}
