// Package kinematics models an articulated robot as a tree of links connected
// by joints, and applies scalar joint values to the links' local transforms.
//
// Every link stores a transform relative to its parent. Joint updates always
// start from the child link's rest transform captured when the joint was
// attached, so applying the same value twice yields the same transform.
package kinematics

import (
	"errors"
	"math"
)

// JointKind identifies how a joint moves its child link.
type JointKind string

// Joint kinds as named in URDF documents.
const (
	Revolute   JointKind = "revolute"   // Rotation about the axis, bounded
	Continuous JointKind = "continuous" // Rotation about the axis, unbounded in the robot, bounded here by default limits
	Prismatic  JointKind = "prismatic"  // Translation along the axis
	Fixed      JointKind = "fixed"      // Rigid attachment
)

// Sentinel errors for tree construction.
var (
	// ErrUnknownLink is returned when a joint references a link that is not in the tree.
	ErrUnknownLink = errors.New("kinematics: unknown link")

	// ErrUnknownJoint is returned when attaching a joint that was never added.
	ErrUnknownJoint = errors.New("kinematics: unknown joint")

	// ErrDuplicateLink is returned when two links share a name.
	ErrDuplicateLink = errors.New("kinematics: duplicate link")

	// ErrDuplicateJoint is returned when two joints share a name.
	ErrDuplicateJoint = errors.New("kinematics: duplicate joint")

	// ErrMultipleParents is returned when a link would get a second parent joint.
	ErrMultipleParents = errors.New("kinematics: link already has a parent joint")

	// ErrCycle is returned when attaching a joint would close a loop.
	ErrCycle = errors.New("kinematics: joint would create a cycle")
)

// DefaultLimits returns the value range assigned to a joint whose description
// carries no limit block.
func DefaultLimits(kind JointKind) (lower, upper float64) {
	switch kind {
	case Revolute:
		return -math.Pi, math.Pi
	case Continuous:
		return -2 * math.Pi, 2 * math.Pi
	case Prismatic:
		return -0.5, 0.5
	default:
		return 0, 0
	}
}

// Movable reports whether joints of this kind accept values.
func (k JointKind) Movable() bool {
	return k == Revolute || k == Continuous || k == Prismatic
}

// clamp limits a value to a range
func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
