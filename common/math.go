package common

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// Epsilon is the default tolerance used when comparing motion values.
const Epsilon float32 = 1.1920929e-7

// Gravity is the default downward acceleration applied by solver worlds.
const Gravity float32 = -9.8

func Lerp(a, b, t float32) float32 {
	return a + t*(b-a)
}

// EqualsEpsilon reports whether a and b differ by at most eps.
func EqualsEpsilon(a, b, eps float32) bool {
	return math32.Abs(a-b) <= eps
}

// VecEqualsEpsilon compares each component of a and b with EqualsEpsilon.
func VecEqualsEpsilon(a, b mgl32.Vec3, eps float32) bool {
	for i := 0; i < 3; i++ {
		if !EqualsEpsilon(a[i], b[i], eps) {
			return false
		}
	}
	return true
}

// IsFloatInvalid reports whether x is NaN or infinite.
func IsFloatInvalid(x float32) bool {
	return math32.IsNaN(x) || math32.IsInf(x, 0)
}

// IsVecInvalid reports whether any component of v is NaN or infinite.
func IsVecInvalid(v mgl32.Vec3) bool {
	for i := 0; i < 3; i++ {
		if IsFloatInvalid(v[i]) {
			return true
		}
	}
	return false
}

// IsQuatInvalid reports whether any component of q is NaN or infinite.
func IsQuatInvalid(q mgl32.Quat) bool {
	return IsFloatInvalid(q.W) || IsVecInvalid(q.V)
}

// IsMatInvalid reports whether any element of m is NaN or infinite.
func IsMatInvalid(m mgl32.Mat4) bool {
	for _, x := range m {
		if IsFloatInvalid(x) {
			return true
		}
	}
	return false
}

func Clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

func MaxVec(v mgl32.Vec3, min float32) mgl32.Vec3 {
	return mgl32.Vec3{math32.Max(v[0], min), math32.Max(v[1], min), math32.Max(v[2], min)}
}

// TransformFrom builds an affine transform from a position and a rotation.
func TransformFrom(pos mgl32.Vec3, rot mgl32.Quat) mgl32.Mat4 {
	m := rot.Normalize().Mat4()
	m.SetCol(3, mgl32.Vec4{pos[0], pos[1], pos[2], 1})
	return m
}

// Decompose splits an affine transform into position and rotation. Scale is
// assumed to be 1.
func Decompose(m mgl32.Mat4) (mgl32.Vec3, mgl32.Quat) {
	pos := m.Col(3).Vec3()
	rot := mgl32.Mat4ToQuat(m)
	return pos, rot.Normalize()
}
