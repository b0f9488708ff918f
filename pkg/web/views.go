package web

import (
	"math"

	"github.com/agnivade/levenshtein"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-mimic/pkg/kinematics"
)

type vec3 [3]float64

func toVec3(v r3.Vec) vec3 {
	return vec3{v.X, v.Y, v.Z}
}

// LinkView is a link without its pointer graph.
type LinkView struct {
	Name     string              `json:"name"`
	Parent   string              `json:"parent,omitempty"` // Joint name
	Children []string            `json:"children"`         // Joint names
	Visuals  []kinematics.Visual `json:"visuals"`
}

// JointView is a joint's static description and current value.
type JointView struct {
	Name   string               `json:"name"`
	Kind   kinematics.JointKind `json:"kind"`
	Parent string               `json:"parent"`
	Child  string               `json:"child"`
	XYZ    vec3                 `json:"xyz"`
	RPY    vec3                 `json:"rpy"`
	Axis   vec3                 `json:"axis"`
	Lower  float64              `json:"lower"`
	Upper  float64              `json:"upper"`
	Value  float64              `json:"value"`
}

// TreeView is the whole tree as JSON.
type TreeView struct {
	Name   string      `json:"name"`
	Root   string      `json:"root"`
	Links  []LinkView  `json:"links"`
	Joints []JointView `json:"joints"`
}

// WorldView is a link's pose in the root frame.
type WorldView struct {
	Link     string     `json:"link"`
	Position vec3       `json:"position"`
	Rotation [4]float64 `json:"rotation"` // w, x, y, z
	RPY      vec3       `json:"rpy"`
}

func treeView(t *kinematics.Tree) TreeView {
	v := TreeView{Name: t.Name}
	if root := t.Root(); root != nil {
		v.Root = root.Name
	}
	for _, l := range t.Links() {
		lv := LinkView{Name: l.Name, Children: []string{}, Visuals: l.Visuals}
		if l.Parent != nil {
			lv.Parent = l.Parent.Name
		}
		for _, j := range l.Children {
			lv.Children = append(lv.Children, j.Name)
		}
		if lv.Visuals == nil {
			lv.Visuals = []kinematics.Visual{}
		}
		v.Links = append(v.Links, lv)
	}
	for _, j := range t.Joints() {
		v.Joints = append(v.Joints, jointView(j))
	}
	return v
}

func jointView(j *kinematics.Joint) JointView {
	return JointView{
		Name:   j.Name,
		Kind:   j.Kind,
		Parent: j.Parent,
		Child:  j.Child,
		XYZ:    toVec3(j.Origin.XYZ),
		RPY:    toVec3(j.Origin.RPY),
		Axis:   toVec3(j.UnitAxis()),
		Lower:  j.Lower,
		Upper:  j.Upper,
		Value:  j.Value,
	}
}

func worldView(name string, tf kinematics.Transform) WorldView {
	roll, pitch, yaw := tf.Euler()
	q := tf.Rotation
	if q.Real == 0 && q.Imag == 0 && q.Jmag == 0 && q.Kmag == 0 {
		q.Real = 1
	}
	return WorldView{
		Link:     name,
		Position: toVec3(tf.Position),
		Rotation: [4]float64{q.Real, q.Imag, q.Jmag, q.Kmag},
		RPY:      vec3{roll, pitch, yaw},
	}
}

// suggest returns the candidate closest to name, or "" when nothing is
// reasonably close.
func suggest(name string, candidates []string) string {
	best, bestDist := "", math.MaxInt
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	if best == "" || bestDist > max(2, len(name)/2) {
		return ""
	}
	return best
}
