package components

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Transform is the (position, rotation) pair pushed to the renderer for an instance.
type Transform struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
}

func NewTransform() Transform {
	return Transform{Rotation: mgl32.QuatIdent()}
}

func TransformFromPosition(position mgl32.Vec3) Transform {
	return Transform{Position: position, Rotation: mgl32.QuatIdent()}
}

func TransformFromPositionRotation(position mgl32.Vec3, rotation mgl32.Quat) Transform {
	return Transform{Position: position, Rotation: rotation}
}

func (t Transform) Translate(translation mgl32.Vec3) Transform {
	t.Position = t.Position.Add(translation)
	return t
}

func (t Transform) Rotate(rotation mgl32.Quat) Transform {
	t.Rotation = t.Rotation.Mul(rotation).Normalize()
	return t
}

// Forward is the world-space direction of the local -Z axis.
func (t Transform) Forward() mgl32.Vec3 {
	return t.Rotation.Rotate(mgl32.Vec3{0, 0, -1})
}

// WorldToView is the inverse of the placement described by the transform.
func (t Transform) WorldToView() mgl32.Mat4 {
	p := t.Position
	return t.Rotation.Conjugate().Mat4().Mul4(mgl32.Translate3D(-p.X(), -p.Y(), -p.Z()))
}

func (t Transform) ViewToWorld() mgl32.Mat4 {
	p := t.Position
	return mgl32.Translate3D(p.X(), p.Y(), p.Z()).Mul4(t.Rotation.Mat4())
}

func (t Transform) String() string {
	p, r := t.Position, t.Rotation
	return fmt.Sprintf("pos=[%.3f %.3f %.3f] rot=[%.3f %.3f %.3f %.3f]", p.X(), p.Y(), p.Z(), r.V.X(), r.V.Y(), r.V.Z(), r.W)
}
