package computegraph

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := RegisterMetrics(reg); err != nil {
		t.Fatalf("RegisterMetrics: %v", err)
	}
	if err := RegisterMetrics(reg); err != nil {
		t.Errorf("second RegisterMetrics: %v", err)
	}
}

func TestCompileMetrics(t *testing.T) {
	c := newMockCompiler("metrics-mock")
	g, exec, _ := scenarioGraph(t, c)
	before := testutil.ToFloat64(kernelCompilesTotal.WithLabelValues("metrics-mock", resultSuccess))
	failures := testutil.ToFloat64(kernelCompilesTotal.WithLabelValues("metrics-mock", resultFailure))
	builds := testutil.ToFloat64(proxyBuildsTotal)

	mustUpdate(t, g)
	c.setFail("CSMain", errMockCompile)
	exec.hash = "exec-v2"
	mustUpdate(t, g)

	if got := testutil.ToFloat64(kernelCompilesTotal.WithLabelValues("metrics-mock", resultSuccess)) - before; got != 1 {
		t.Errorf("successful compiles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(kernelCompilesTotal.WithLabelValues("metrics-mock", resultFailure)) - failures; got != 1 {
		t.Errorf("failed compiles = %v, want 1", got)
	}
	if got := testutil.ToFloat64(proxyBuildsTotal) - builds; got != 2 {
		t.Errorf("proxy builds = %v, want 2", got)
	}
	if got := testutil.ToFloat64(pendingCompiles); got != 0 {
		t.Errorf("pending compiles = %v, want 0", got)
	}
}
