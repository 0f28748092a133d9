package math

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// ApproxEqual reports whether a and b differ by at most tolerance.
func ApproxEqual[T constraints.Float](a, b, tolerance T) bool {
	return T(stdmath.Abs(float64(a-b))) <= tolerance
}

// Vec3ApproxEqual compares two vectors component-wise within tolerance.
func Vec3ApproxEqual(a, b mgl32.Vec3, tolerance float32) bool {
	return ApproxEqual(a.X(), b.X(), tolerance) &&
		ApproxEqual(a.Y(), b.Y(), tolerance) &&
		ApproxEqual(a.Z(), b.Z(), tolerance)
}

func DegToRad(degrees float32) float32 {
	return mgl32.DegToRad(degrees)
}
