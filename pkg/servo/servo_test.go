package servo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hipsterbrown/feetech-servo/feetech"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/pipeline"
	"github.com/teslashibe/go-mimic/pkg/retarget"
)

func init() {
	log.Discard()
}

// mockGroup records what would have been sent to the bus
type mockGroup struct {
	writes   []feetech.PositionMap
	enabled  bool
	writeErr error
}

func (m *mockGroup) SetPositions(_ context.Context, p feetech.PositionMap) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	copied := make(feetech.PositionMap, len(p))
	for k, v := range p {
		copied[k] = v
	}
	m.writes = append(m.writes, copied)
	return nil
}

func (m *mockGroup) EnableAll(context.Context) error  { m.enabled = true; return nil }
func (m *mockGroup) DisableAll(context.Context) error { m.enabled = false; return nil }

var testCal = Calibration{
	retarget.HeadZ: {ID: 1, Lower: -1, Upper: 1, RangeMin: 1000, RangeMax: 3000},
	retarget.HeadY: {ID: 2, Lower: -1, Upper: 1, RangeMin: 1000, RangeMax: 3000, Invert: true},
}

func result(headZ, headY float64) pipeline.Result {
	return pipeline.Result{Frame: retarget.Frame{Commands: []retarget.Command{
		{Joint: retarget.HeadZ, Value: headZ},
		{Joint: retarget.HeadY, Value: headY},
		{Joint: retarget.AbsX, Value: 0.4}, // Not calibrated
	}}}
}

func TestJointCalibration_Raw(t *testing.T) {
	c := JointCalibration{Lower: -1, Upper: 1, RangeMin: 1000, RangeMax: 3000}

	tests := []struct {
		rad  float64
		want int
	}{
		{-1, 1000},
		{1, 3000},
		{0, 2000},
		{0.5, 2500},
		{5, 3000},  // Clamped high
		{-5, 1000}, // Clamped low
	}
	for _, tt := range tests {
		if got := c.Raw(tt.rad); got != tt.want {
			t.Errorf("Raw(%v) = %d, want %d", tt.rad, got, tt.want)
		}
	}

	c.Invert = true
	if got := c.Raw(-1); got != 3000 {
		t.Errorf("inverted Raw(-1) = %d, want 3000", got)
	}
}

func TestJointCalibration_RoundTrip(t *testing.T) {
	c := JointCalibration{Lower: -2.1, Upper: 1.3, RangeMin: 823, RangeMax: 3540, Invert: true}
	for raw := c.RangeMin; raw <= c.RangeMax; raw += 100 {
		back := c.Raw(c.Angle(raw))
		if back-raw > 1 || raw-back > 1 {
			t.Errorf("Round-trip failed: %d -> %d", raw, back)
		}
	}
}

func TestCalibration_IDsAndValidate(t *testing.T) {
	ids := testCal.IDs()
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Errorf("IDs = %v, want [1 2]", ids)
	}

	dup := Calibration{"a": {ID: 3}, "b": {ID: 3}}
	if err := dup.Validate(); err == nil {
		t.Error("duplicate IDs should fail validation")
	}
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cal.json")
	data := `{"head_z": {"id": 4, "lower": -1, "upper": 1, "range_min": 0, "range_max": 4095}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	if cal[retarget.HeadZ].ID != 4 || cal[retarget.HeadZ].RangeMax != 4095 {
		t.Errorf("calibration = %+v", cal)
	}
}

func TestOutput_WritesOnlyChanges(t *testing.T) {
	g := &mockGroup{}
	out := NewOutput(g, testCal)
	ctx := context.Background()

	if err := out.HandleFrame(ctx, result(0, 0)); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if len(g.writes) != 1 || g.writes[0][1] != 2000 || g.writes[0][2] != 2000 {
		t.Fatalf("first write = %v", g.writes)
	}
	if _, ok := g.writes[0][0]; ok {
		t.Error("uncalibrated joint should not be written")
	}

	// Same frame: nothing to send
	out.HandleFrame(ctx, result(0, 0))
	if len(g.writes) != 1 {
		t.Errorf("unchanged frame wrote to the bus: %v", g.writes)
	}

	// Only head_y moves; inverted so +0.5 lands below center
	out.HandleFrame(ctx, result(0, 0.5))
	if len(g.writes) != 2 {
		t.Fatalf("writes = %d, want 2", len(g.writes))
	}
	if len(g.writes[1]) != 1 || g.writes[1][2] != 1500 {
		t.Errorf("second write = %v, want map[2:1500]", g.writes[1])
	}
	if out.Writes() != 2 {
		t.Errorf("Writes = %d, want 2", out.Writes())
	}
}

func TestOutput_FailedWriteRetries(t *testing.T) {
	g := &mockGroup{writeErr: errors.New("bus timeout")}
	out := NewOutput(g, testCal)
	ctx := context.Background()

	if err := out.HandleFrame(ctx, result(0, 0)); err == nil {
		t.Fatal("bus error should surface")
	}

	g.writeErr = nil
	if err := out.HandleFrame(ctx, result(0, 0)); err != nil {
		t.Fatalf("HandleFrame: %v", err)
	}
	if len(g.writes) != 1 {
		t.Error("positions from a failed write should be resent")
	}
}

func TestOutput_CloseDisablesTorque(t *testing.T) {
	g := &mockGroup{}
	out := NewOutput(g, testCal)
	ctx := context.Background()

	if err := out.Enable(ctx); err != nil {
		t.Fatal(err)
	}
	if !g.enabled {
		t.Fatal("Enable should turn torque on")
	}
	if err := out.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if g.enabled {
		t.Error("Close should disable torque")
	}
}

func TestOpen_NeedsCalibration(t *testing.T) {
	if _, err := Open(Config{Port: "/dev/null"}); err == nil {
		t.Error("Open without calibration should fail")
	}
}
