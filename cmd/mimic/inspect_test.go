package main

import (
	"slices"
	"testing"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/retarget"
	"github.com/teslashibe/go-mimic/pkg/urdf"
)

func init() {
	log.Discard()
}

const neckURDF = `<robot name="bust">
  <link name="chest"/>
  <link name="head"/>
  <link name="jaw"/>
  <joint name="head_z" type="revolute">
    <parent link="chest"/><child link="head"/>
    <axis xyz="0 0 1"/><limit lower="-1.5" upper="1.5"/>
  </joint>
  <joint name="jaw_fixed" type="fixed"><parent link="head"/><child link="jaw"/></joint>
</robot>`

func TestBuildReport(t *testing.T) {
	res, err := urdf.Parse([]byte(neckURDF))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	r := buildReport(res, []retarget.Side{retarget.Left})
	if r.Robot != "bust" || r.Root != "chest" {
		t.Errorf("robot/root = %q/%q", r.Robot, r.Root)
	}
	if len(r.Links) != 3 || len(r.Joints) != 2 {
		t.Errorf("links=%d joints=%d, want 3 and 2", len(r.Links), len(r.Joints))
	}
	if !slices.Equal(r.Controlled, []string{"head_z"}) {
		t.Errorf("controlled = %v, want [head_z]", r.Controlled)
	}

	all := retarget.ControlledJoints([]retarget.Side{retarget.Left})
	if len(r.Missing) != len(all)-1 {
		t.Errorf("missing = %d, want %d", len(r.Missing), len(all)-1)
	}
	if slices.Contains(r.Missing, "head_z") {
		t.Error("head_z should not be missing")
	}
	if r.Joints[0].Lower != -1.5 || r.Joints[0].Upper != 1.5 {
		t.Errorf("head_z limits = [%v, %v]", r.Joints[0].Lower, r.Joints[0].Upper)
	}
}
