package smoothing

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/teslashibe/go-mimic/internal/log"
)

func TestNew_AlphaFallback(t *testing.T) {
	for _, alpha := range []float64{0, -1, 1.5, math.NaN()} {
		if got := New(alpha, nil).Alpha(); got != DefaultAlpha {
			t.Errorf("New(%v).Alpha() = %v, want %v", alpha, got, DefaultAlpha)
		}
	}
	if got := New(1, nil).Alpha(); got != 1 {
		t.Errorf("alpha 1 should be kept, got %v", got)
	}
}

func TestSmooth_FirstSampleSeeds(t *testing.T) {
	f := New(0.2, nil)
	if got := f.Smooth("head_z", 0.7); got != 0.7 {
		t.Errorf("first sample = %v, want 0.7", got)
	}
	if got := f.Smooth("head_z", 1.7); math.Abs(got-0.9) > 1e-12 {
		t.Errorf("second sample = %v, want 0.9", got)
	}
}

func TestSmooth_Convergence(t *testing.T) {
	f := New(0.2, nil)
	f.Seed("abs_y", 0)

	const target = 1.0
	steps := 0
	for v := 0.0; math.Abs(v-target) > 0.01*target; steps++ {
		if steps > 100 {
			t.Fatal("did not converge")
		}
		v = f.Smooth("abs_y", target)
	}
	if steps > 21 {
		t.Errorf("converged in %d steps, want <= 21", steps)
	}
}

func TestSmooth_NaN(t *testing.T) {
	f := New(0.5, map[string]float64{"r_elbow_y": -0.3})

	if got := f.Smooth("r_elbow_y", math.NaN()); got != -0.3 {
		t.Errorf("NaN without history = %v, want default -0.3", got)
	}
	if _, ok := f.Value("r_elbow_y"); ok {
		t.Error("NaN should not seed memory")
	}
	if got := f.Smooth("unknown", math.NaN()); got != 0 {
		t.Errorf("NaN without default = %v, want 0", got)
	}

	f.Smooth("r_elbow_y", 1)
	if got := f.Smooth("r_elbow_y", math.NaN()); got != 1 {
		t.Errorf("NaN with history = %v, want 1", got)
	}
	if got := f.Smooth("r_elbow_y", 0); got != 0.5 {
		t.Errorf("memory after NaN = %v, want 0.5", got)
	}
}

func TestSmooth_NonFiniteIsLogged(t *testing.T) {
	var buf bytes.Buffer
	log.Init(log.Options{Level: "debug", Format: "text", Output: &buf})
	defer log.Discard()

	f := New(0.2, nil)
	f.Smooth("head_y", math.NaN())
	f.Smooth("head_y", math.Inf(1))
	f.Smooth("head_z", math.NaN())

	if f.NonFinite() != 3 {
		t.Errorf("NonFinite = %d, want 3", f.NonFinite())
	}
	out := buf.String()
	if n := strings.Count(out, "non-finite sample ignored"); n != 3 {
		t.Errorf("debug lines = %d, want 3:\n%s", n, out)
	}
	if n := strings.Count(out, "level=WARN"); n != 1 {
		t.Errorf("warnings = %d, want 1 within the interval:\n%s", n, out)
	}
}

func TestReset(t *testing.T) {
	f := New(0.2, map[string]float64{"a": 1})
	f.Smooth("a", 5)
	f.Smooth("b", 5)

	f.Reset(nil)
	if v, _ := f.Value("a"); v != 1 {
		t.Errorf("a after reset = %v, want 1", v)
	}
	if _, ok := f.Value("b"); ok {
		t.Error("b should be forgotten after reset")
	}

	f.Reset(map[string]float64{"b": 2})
	if v, _ := f.Value("b"); v != 2 {
		t.Errorf("b after explicit reset = %v, want 2", v)
	}
	if _, ok := f.Value("a"); ok {
		t.Error("explicit reset should replace memory")
	}
}
