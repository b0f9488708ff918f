package kinematics

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// UnitX is the default joint axis.
	UnitX = r3.Vec{X: 1}
	UnitY = r3.Vec{Y: 1}
	UnitZ = r3.Vec{Z: 1}
)

// Transform is a rigid transform: rotate by Rotation, then translate by Position.
type Transform struct {
	Position r3.Vec
	Rotation quat.Number // Unit quaternion
}

// Identity returns the transform that leaves every point in place.
func Identity() Transform {
	return Transform{Rotation: quat.Number{Real: 1}}
}

// rotation returns the transform's rotation, treating the zero quaternion as identity.
func (t Transform) rotation() quat.Number {
	if t.Rotation == (quat.Number{}) {
		return quat.Number{Real: 1}
	}
	return t.Rotation
}

// Apply maps a point from the transform's local frame into its parent frame.
func (t Transform) Apply(p r3.Vec) r3.Vec {
	return r3.Add(r3.Rotation(t.rotation()).Rotate(p), t.Position)
}

// Compose returns the transform of a child frame whose local transform
// relative to t is local.
func (t Transform) Compose(local Transform) Transform {
	return Transform{
		Position: t.Apply(local.Position),
		Rotation: normalizeQuat(quat.Mul(t.rotation(), local.rotation())),
	}
}

// Euler returns the transform's orientation as fixed-axis roll, pitch, yaw.
func (t Transform) Euler() (roll, pitch, yaw float64) {
	return Euler(t.rotation())
}

// Origin is a rest pose offset as written in a robot description:
// translation xyz and fixed-axis roll-pitch-yaw rotation.
type Origin struct {
	XYZ r3.Vec
	RPY r3.Vec
}

// Transform converts the origin into a Transform.
func (o Origin) Transform() Transform {
	return Transform{
		Position: o.XYZ,
		Rotation: RotationFromRPY(o.RPY.X, o.RPY.Y, o.RPY.Z),
	}
}

// AxisAngle returns the rotation of angle radians about axis.
// A zero-length axis falls back to UnitX.
func AxisAngle(axis r3.Vec, angle float64) quat.Number {
	return quat.Number(r3.NewRotation(angle, unitOrX(axis)))
}

// RotationFromRPY builds a rotation from URDF roll-pitch-yaw angles.
// The result is Rz(yaw) * Ry(pitch) * Rx(roll).
func RotationFromRPY(roll, pitch, yaw float64) quat.Number {
	qx := AxisAngle(UnitX, roll)
	qy := AxisAngle(UnitY, pitch)
	qz := AxisAngle(UnitZ, yaw)
	return normalizeQuat(quat.Mul(qz, quat.Mul(qy, qx)))
}

// RotationMatrix expands a unit quaternion into a 3x3 rotation matrix.
func RotationMatrix(q quat.Number) [3][3]float64 {
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag
	return [3][3]float64{
		{1 - 2*(y*y+z*z), 2 * (x*y - w*z), 2 * (x*z + w*y)},
		{2 * (x*y + w*z), 1 - 2*(x*x+z*z), 2 * (y*z - w*x)},
		{2 * (x*z - w*y), 2 * (y*z + w*x), 1 - 2*(x*x+y*y)},
	}
}

// Euler extracts roll, pitch, yaw (in radians) from a rotation.
// Uses the ZYX convention, the inverse of RotationFromRPY.
func Euler(q quat.Number) (roll, pitch, yaw float64) {
	m := RotationMatrix(normalizeQuat(q))

	r00 := m[0][0]
	r10, r11, r12 := m[1][0], m[1][1], m[1][2]
	r20, r21, r22 := m[2][0], m[2][1], m[2][2]

	// Gimbal lock at pitch = ±90°
	sy := math.Sqrt(r00*r00 + r10*r10)

	if sy >= 1e-6 {
		roll = math.Atan2(r21, r22)
		pitch = math.Atan2(-r20, sy)
		yaw = math.Atan2(r10, r00)
	} else {
		roll = math.Atan2(-r12, r11)
		pitch = math.Atan2(-r20, sy)
		yaw = 0
	}

	return roll, pitch, yaw
}

func normalizeQuat(q quat.Number) quat.Number {
	n := quat.Abs(q)
	if n < 1e-12 {
		return quat.Number{Real: 1}
	}
	return quat.Scale(1/n, q)
}

func unitOrX(v r3.Vec) r3.Vec {
	if r3.Norm(v) < 1e-12 {
		return UnitX
	}
	return r3.Unit(v)
}
