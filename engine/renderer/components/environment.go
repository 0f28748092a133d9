package components

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
)

// SunState places the sun with spherical angles in radians: Theta around
// the vertical axis, Phi away from it.
type SunState struct {
	Theta float32
	Phi   float32
}

// Direction converts the angles to a unit vector. Angles are not range
// checked; values outside [0, 2π] wrap through sin/cos.
func (s SunState) Direction() mgl32.Vec3 {
	return SphericalToCartesian(s.Theta, s.Phi)
}

func SphericalToCartesian(theta, phi float32) mgl32.Vec3 {
	t, p := float64(theta), float64(phi)
	return mgl32.Vec3{
		float32(stdmath.Sin(p) * stdmath.Cos(t)),
		float32(stdmath.Cos(p)),
		float32(stdmath.Sin(p) * stdmath.Sin(t)),
	}
}

type EnvironmentSettings struct {
	Sun SunState
}
