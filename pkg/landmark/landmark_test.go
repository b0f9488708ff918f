package landmark

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestIndex_String(t *testing.T) {
	tests := []struct {
		index Index
		want  string
	}{
		{Nose, "nose"},
		{LeftShoulder, "left_shoulder"},
		{RightFootIndex, "right_foot_index"},
		{Index(99), "landmark(99)"},
	}

	for _, tt := range tests {
		if got := tt.index.String(); got != tt.want {
			t.Errorf("Index(%d).String() = %q, want %q", int(tt.index), got, tt.want)
		}
	}

	if int(RightFootIndex) != Count-1 {
		t.Errorf("RightFootIndex = %d, want %d", RightFootIndex, Count-1)
	}
}

func TestPoint_Confident(t *testing.T) {
	tests := []struct {
		name  string
		point Point
		want  bool
	}{
		{"no visibility", Pt(0.5, 0.5), true},
		{"high visibility", Pt(0.5, 0.5).WithVisibility(0.9), true},
		{"exactly threshold", Pt(0.5, 0.5).WithVisibility(0.5), false},
		{"low visibility", Pt(0.5, 0.5).WithVisibility(0.1), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.point.Confident(); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSet_ValidAndPresence(t *testing.T) {
	s := FromMap(map[Index]Point{
		Nose:         Pt(0.5, 0.2),
		LeftShoulder: Pt(0.6, 0.4).WithVisibility(0.2),
	})

	if !s.Valid(Nose) {
		t.Error("nose should be valid")
	}
	if _, ok := s.Get(LeftShoulder); !ok {
		t.Error("left shoulder should be present")
	}
	if s.Valid(LeftShoulder) {
		t.Error("low-visibility shoulder should be invalid")
	}
	if s.Valid(RightShoulder) {
		t.Error("absent landmark should be invalid")
	}
	if s.AllValid(Nose, LeftShoulder) {
		t.Error("AllValid should fail when one landmark is invalid")
	}

	var empty *Set
	if !empty.Empty() || empty.Valid(Nose) {
		t.Error("nil set should be empty and invalid everywhere")
	}
}

func TestNewSet_Length(t *testing.T) {
	if s, err := NewSet(nil); err != nil || s != nil {
		t.Errorf("NewSet(nil) = %v, %v; want nil, nil", s, err)
	}
	if _, err := NewSet(make([]*Point, 5)); err == nil {
		t.Error("NewSet with 5 points should fail")
	}
}

func TestSet_JSON(t *testing.T) {
	raw := "[" + strings.Repeat("null,", Count-1) + `{"x":0.25,"y":0.75,"z":-0.1,"visibility":0.9}]`

	var s Set
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	p, ok := s.Get(RightFootIndex)
	if !ok {
		t.Fatal("right foot index should be present")
	}
	z, hasZ := p.Depth()
	if p.X != 0.25 || p.Y != 0.75 || !hasZ || z != -0.1 {
		t.Errorf("decoded point = %+v", p)
	}
	if _, ok := s.Get(Nose); ok {
		t.Error("null entry should be absent")
	}

	out, err := json.Marshal(&s)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.HasPrefix(string(out), "[null,") {
		t.Errorf("encoded set should keep nulls, got %s", out[:20])
	}
}

func TestMidpoint(t *testing.T) {
	m := Midpoint(Pt(0, 0).WithZ(1), Pt(1, 2).WithZ(3))
	z, ok := m.Depth()
	if m.X != 0.5 || m.Y != 1 || !ok || z != 2 {
		t.Errorf("Midpoint = %+v", m)
	}

	m = Midpoint(Pt(0, 0), Pt(1, 1).WithZ(3))
	if _, ok := m.Depth(); ok {
		t.Error("midpoint depth needs both depths")
	}
}
