package urdf

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/kinematics"
)

func init() {
	log.Discard()
}

const armURDF = `<?xml version="1.0"?>
<robot name="arm">
  <link name="base">
    <visual><geometry><box size="0.1 0.1 0.02"/></geometry></visual>
  </link>
  <link name="upper">
    <visual>
      <origin xyz="0 0 0.05" rpy="0 0 0"/>
      <geometry><cylinder radius="0.01" length="0.1"/></geometry>
    </visual>
  </link>
  <link name="hand">
    <visual><geometry><mesh filename="hand.stl" scale="0.001 0.001 0.001"/></geometry></visual>
  </link>
  <joint name="shoulder" type="revolute">
    <parent link="base"/>
    <child link="upper"/>
    <origin xyz="0 0 0.1" rpy="0 0 0"/>
    <axis xyz="0 0 1"/>
    <limit lower="-1" upper="1"/>
  </joint>
  <joint name="wrist" type="continuous">
    <parent link="upper"/>
    <child link="hand"/>
    <origin xyz="0.2 0 0"/>
  </joint>
</robot>`

func hasWarning(ws []Warning, kind WarningKind) bool {
	for _, w := range ws {
		if w.Kind == kind {
			return true
		}
	}
	return false
}

func TestParse_Arm(t *testing.T) {
	res, err := Parse([]byte(armURDF))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", res.Warnings)
	}

	tree := res.Tree
	if tree.Name != "arm" {
		t.Errorf("Name = %q, want arm", tree.Name)
	}
	if root := tree.Root(); root == nil || root.Name != "base" {
		t.Fatalf("Root = %v, want base", root)
	}

	shoulder, ok := tree.Joint("shoulder")
	if !ok {
		t.Fatal("shoulder joint missing")
	}
	if shoulder.Lower != -1 || shoulder.Upper != 1 {
		t.Errorf("shoulder limits = [%v, %v], want [-1, 1]", shoulder.Lower, shoulder.Upper)
	}
	if shoulder.Axis != kinematics.UnitZ {
		t.Errorf("shoulder axis = %v, want z", shoulder.Axis)
	}

	wrist, _ := tree.Joint("wrist")
	if wrist.Axis != kinematics.UnitX {
		t.Errorf("missing axis should default to x, got %v", wrist.Axis)
	}
	if wrist.Lower != -2*math.Pi || wrist.Upper != 2*math.Pi {
		t.Errorf("continuous default limits = [%v, %v]", wrist.Lower, wrist.Upper)
	}

	hand, _ := tree.Link("hand")
	if len(hand.Visuals) != 1 || hand.Visuals[0].Geometry.Kind != kinematics.Mesh {
		t.Fatalf("hand visuals = %+v", hand.Visuals)
	}
	if hand.Visuals[0].Geometry.Filename != "hand.stl" {
		t.Errorf("mesh filename = %q", hand.Visuals[0].Geometry.Filename)
	}

	world, ok := tree.WorldTransform("hand")
	if !ok {
		t.Fatal("hand world transform missing")
	}
	if math.Abs(world.Position.X-0.2) > 1e-9 || math.Abs(world.Position.Z-0.1) > 1e-9 {
		t.Errorf("hand world position = %v, want (0.2, 0, 0.1)", world.Position)
	}
}

func TestParse_RootIsFirstNonChild(t *testing.T) {
	doc := `<robot name="chain">
  <link name="C"/><link name="A"/><link name="B"/>
  <joint name="ab" type="fixed"><parent link="A"/><child link="B"/></joint>
  <joint name="bc" type="fixed"><parent link="B"/><child link="C"/></joint>
</robot>`

	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := res.Tree.Root().Name; got != "A" {
		t.Errorf("root = %q, want A", got)
	}
	if hasWarning(res.Warnings, WarnAmbiguousRoot) {
		t.Error("single candidate should not warn")
	}
}

func TestParse_AmbiguousRoot(t *testing.T) {
	doc := `<robot name="two"><link name="a"/><link name="b"/></robot>`

	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if res.Tree.Root().Name != "a" {
		t.Errorf("root = %q, want a", res.Tree.Root().Name)
	}
	if !hasWarning(res.Warnings, WarnAmbiguousRoot) {
		t.Error("expected ambiguous root warning")
	}
}

func TestParse_FatalErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want error
	}{
		{"wrong root", `<model name="x"><link name="a"/></model>`, ErrNoRobot},
		{"no links", `<robot name="x"></robot>`, ErrNoLinks},
		{"cycle", `<robot name="x"><link name="a"/><link name="b"/>
			<joint name="ab" type="fixed"><parent link="a"/><child link="b"/></joint>
			<joint name="ba" type="fixed"><parent link="b"/><child link="a"/></joint></robot>`, ErrNoRoot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("err should be a *ParseError, got %T", err)
			}
		})
	}

	_, err := Parse([]byte("<robot"))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Errorf("malformed XML should be a *ParseError, got %v", err)
	}
}

func TestParse_Warnings(t *testing.T) {
	doc := `<robot name="odd">
  <link name="base">
    <visual><geometry><capsule radius="0.1" length="0.2"/></geometry></visual>
  </link>
  <link name="a"/>
  <link name="b"/>
  <joint name="orphan" type="revolute"><child link="a"/></joint>
  <joint name="weird" type="planar"><parent link="base"/><child link="a"/></joint>
  <joint name="bad" type="prismatic">
    <parent link="base"/><child link="b"/>
    <origin xyz="0 zero 0"/>
    <limit upper="0.2"/>
  </joint>
</robot>`

	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	for _, kind := range []WarningKind{WarnFallbackGeometry, WarnMissingLink, WarnUnknownJointType, WarnBadNumber} {
		if !hasWarning(res.Warnings, kind) {
			t.Errorf("expected %s warning in %v", kind, res.Warnings)
		}
	}

	base, _ := res.Tree.Link("base")
	g := base.Visuals[0].Geometry
	if g.Kind != kinematics.Box || g.Size.X != FallbackBoxSize {
		t.Errorf("fallback geometry = %+v", g)
	}

	if _, ok := res.Tree.Joint("orphan"); ok {
		t.Error("joint without parent should be skipped")
	}
	weird, _ := res.Tree.Joint("weird")
	if weird.Kind != kinematics.Fixed {
		t.Errorf("unknown type should be fixed, got %s", weird.Kind)
	}

	bad, _ := res.Tree.Joint("bad")
	if bad.Lower != -0.5 || bad.Upper != 0.2 {
		t.Errorf("partial limit = [%v, %v], want [-0.5, 0.2]", bad.Lower, bad.Upper)
	}
	if bad.Origin.XYZ.Y != 0 {
		t.Errorf("bad origin should fall back to zero, got %v", bad.Origin.XYZ)
	}
}

func TestParse_SecondParentWarns(t *testing.T) {
	doc := `<robot name="x"><link name="a"/><link name="b"/><link name="c"/>
  <joint name="ac" type="fixed"><parent link="a"/><child link="c"/></joint>
  <joint name="bc" type="fixed"><parent link="b"/><child link="c"/></joint></robot>`

	res, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !hasWarning(res.Warnings, WarnAttach) {
		t.Errorf("expected attach warning, got %v", res.Warnings)
	}
	c, _ := res.Tree.Link("c")
	if c.Parent == nil || c.Parent.Name != "ac" {
		t.Errorf("c should keep its first parent, got %v", c.Parent)
	}
}

func TestLoad_FileAndURL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "arm.urdf")
	if err := os.WriteFile(path, []byte(armURDF), 0o644); err != nil {
		t.Fatal(err)
	}

	res, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load(file): %v", err)
	}
	if len(res.Tree.Joints()) != 2 {
		t.Errorf("joints = %d, want 2", len(res.Tree.Joints()))
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(armURDF))
	}))
	defer srv.Close()

	res, err = Load(context.Background(), srv.URL+"/arm.urdf")
	if err != nil {
		t.Fatalf("Load(url): %v", err)
	}
	if res.Tree.Root().Name != "base" {
		t.Errorf("root = %q", res.Tree.Root().Name)
	}

	if _, err := Load(context.Background(), filepath.Join(t.TempDir(), "missing.urdf")); err == nil {
		t.Error("missing file should fail")
	}
}
