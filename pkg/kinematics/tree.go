package kinematics

import (
	"fmt"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

// GeometryKind names a visual geometry primitive.
type GeometryKind string

const (
	Box      GeometryKind = "box"
	Cylinder GeometryKind = "cylinder"
	Sphere   GeometryKind = "sphere"
	Mesh     GeometryKind = "mesh"
)

// Geometry is a visual shape reference. The core never interprets it; it is
// forwarded to the renderer as-is.
type Geometry struct {
	Kind     GeometryKind `json:"kind"`
	Size     r3.Vec       `json:"size,omitempty"`     // Box edge lengths
	Radius   float64      `json:"radius,omitempty"`   // Cylinder, sphere
	Length   float64      `json:"length,omitempty"`   // Cylinder
	Filename string       `json:"filename,omitempty"` // Mesh path or URI
	Scale    r3.Vec       `json:"scale,omitempty"`    // Mesh scale
}

// Visual places a geometry in its link's frame.
type Visual struct {
	Name     string   `json:"name,omitempty"`
	Origin   Origin   `json:"origin"`
	Geometry Geometry `json:"geometry"`
}

// Link is a rigid body in the tree.
type Link struct {
	Name     string
	Visuals  []Visual
	Parent   *Joint   // nil for the root
	Children []*Joint // Joints whose parent is this link
	Local    Transform
}

// Joint connects a parent link to a child link.
type Joint struct {
	Name   string
	Kind   JointKind
	Parent string // Parent link name
	Child  string // Child link name
	Origin Origin // Rest pose of the child relative to the parent
	Axis   r3.Vec // Motion axis in the joint frame
	Lower  float64
	Upper  float64
	Value  float64 // Last value passed to UpdateJoint

	// Initial is the child's local transform right after attaching.
	Initial Transform
}

// UnitAxis returns the normalized motion axis (UnitX for a zero axis).
func (j *Joint) UnitAxis() r3.Vec {
	return unitOrX(j.Axis)
}

// Clamp limits v to the joint's range.
func (j *Joint) Clamp(v float64) float64 {
	return clamp(v, j.Lower, j.Upper)
}

// Tree is a robot's kinematic tree with O(1) lookup by link and joint name.
type Tree struct {
	Name string

	root       string
	links      map[string]*Link
	joints     map[string]*Joint
	linkOrder  []string
	jointOrder []string
}

// NewTree creates an empty tree.
func NewTree(name string) *Tree {
	return &Tree{
		Name:   name,
		links:  make(map[string]*Link),
		joints: make(map[string]*Joint),
	}
}

// AddLink registers a link. Its local transform starts at identity.
func (t *Tree) AddLink(l *Link) error {
	if _, exists := t.links[l.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateLink, l.Name)
	}
	l.Local = Identity()
	t.links[l.Name] = l
	t.linkOrder = append(t.linkOrder, l.Name)
	return nil
}

// AddJoint registers a joint without attaching it.
func (t *Tree) AddJoint(j *Joint) error {
	if _, exists := t.joints[j.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJoint, j.Name)
	}
	t.joints[j.Name] = j
	t.jointOrder = append(t.jointOrder, j.Name)
	return nil
}

// Attach hangs a registered joint's child link under its parent link,
// applies the joint's rest origin to the child and snapshots the result as
// the joint's initial transform.
func (t *Tree) Attach(jointName string) error {
	j, ok := t.joints[jointName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJoint, jointName)
	}
	parent, ok := t.links[j.Parent]
	if !ok {
		return fmt.Errorf("joint %s: %w: parent %s", j.Name, ErrUnknownLink, j.Parent)
	}
	child, ok := t.links[j.Child]
	if !ok {
		return fmt.Errorf("joint %s: %w: child %s", j.Name, ErrUnknownLink, j.Child)
	}
	if child.Parent != nil {
		return fmt.Errorf("joint %s: %w: %s (held by %s)", j.Name, ErrMultipleParents, child.Name, child.Parent.Name)
	}
	if t.isAncestor(child, parent) {
		return fmt.Errorf("joint %s: %w: %s -> %s", j.Name, ErrCycle, parent.Name, child.Name)
	}

	child.Parent = j
	parent.Children = append(parent.Children, j)
	child.Local = j.Origin.Transform()
	j.Initial = child.Local
	return nil
}

// isAncestor reports whether a is b or one of b's ancestors.
func (t *Tree) isAncestor(a, b *Link) bool {
	for l := b; l != nil; {
		if l == a {
			return true
		}
		if l.Parent == nil {
			return false
		}
		l = t.links[l.Parent.Parent]
	}
	return false
}

// SetRoot marks the named link as the tree's root.
func (t *Tree) SetRoot(name string) error {
	if _, ok := t.links[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLink, name)
	}
	t.root = name
	return nil
}

// Root returns the root link, or nil when none is set.
func (t *Tree) Root() *Link {
	return t.links[t.root]
}

// Link returns the named link.
func (t *Tree) Link(name string) (*Link, bool) {
	l, ok := t.links[name]
	return l, ok
}

// Joint returns the named joint.
func (t *Tree) Joint(name string) (*Joint, bool) {
	j, ok := t.joints[name]
	return j, ok
}

// Links returns all links in insertion order.
func (t *Tree) Links() []*Link {
	out := make([]*Link, 0, len(t.linkOrder))
	for _, name := range t.linkOrder {
		out = append(out, t.links[name])
	}
	return out
}

// Joints returns all joints in insertion order.
func (t *Tree) Joints() []*Joint {
	out := make([]*Joint, 0, len(t.jointOrder))
	for _, name := range t.jointOrder {
		out = append(out, t.joints[name])
	}
	return out
}

// Limits returns the named joint's range.
func (t *Tree) Limits(name string) (lower, upper float64, ok bool) {
	j, ok := t.joints[name]
	if !ok {
		return 0, 0, false
	}
	return j.Lower, j.Upper, true
}

// UpdateJoint applies value to the named joint's child link, starting from
// the joint's initial transform. Unknown joints, joints whose child is not
// attached, and fixed joints are ignored. The value is stored unclamped.
func (t *Tree) UpdateJoint(name string, value float64) {
	j, ok := t.joints[name]
	if !ok {
		return
	}
	child, ok := t.links[j.Child]
	if !ok || child.Parent != j {
		return
	}

	switch j.Kind {
	case Revolute, Continuous:
		child.Local = Transform{
			Position: j.Initial.Position,
			Rotation: normalizeQuat(quat.Mul(j.Initial.rotation(), AxisAngle(j.UnitAxis(), value))),
		}
	case Prismatic:
		child.Local = Transform{
			Position: r3.Add(j.Initial.Position, r3.Scale(value, j.UnitAxis())),
			Rotation: j.Initial.rotation(),
		}
	default:
		return
	}
	j.Value = value
}

// WorldTransform composes local transforms from the root down to the named link.
func (t *Tree) WorldTransform(name string) (Transform, bool) {
	l, ok := t.links[name]
	if !ok {
		return Transform{}, false
	}

	chain := []*Link{l}
	for l.Parent != nil {
		parent, ok := t.links[l.Parent.Parent]
		if !ok {
			break
		}
		chain = append(chain, parent)
		l = parent
	}

	world := Identity()
	for i := len(chain) - 1; i >= 0; i-- {
		world = world.Compose(chain[i].Local)
	}
	return world, true
}
