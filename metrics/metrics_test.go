package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsUpdate(t *testing.T) {
	before := testutil.ToFloat64(examplesCounter)
	AddExamples(5)
	if got := testutil.ToFloat64(examplesCounter) - before; got != 5 {
		t.Fatalf("counter mismatch: got=%v want=5", got)
	}
	SetTrainLoss(0.25)
	if got := testutil.ToFloat64(trainLossGauge); got != 0.25 {
		t.Fatalf("loss mismatch: got=%v want=0.25", got)
	}
	SetHits("10", 0.5)
	if got := testutil.ToFloat64(hitsGauge.WithLabelValues("10")); got != 0.5 {
		t.Fatalf("hits mismatch: got=%v want=0.5", got)
	}
}
