package components

import (
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
)

const (
	DEFAULT_VERTICAL_FOV        float32 = 52.0
	DEFAULT_NEAR_PLANE_DISTANCE float32 = 0.01
	DEFAULT_ASPECT_RATIO        float32 = 1.0
)

/**
 * @brief The lens parameters of a camera. The vertical field of view
 * is expressed in degrees.
 */
type Camera struct {
	AspectRatio       float32
	VerticalFOV       float32
	NearPlaneDistance float32
}

func NewCamera() Camera {
	return Camera{
		AspectRatio:       DEFAULT_ASPECT_RATIO,
		VerticalFOV:       DEFAULT_VERTICAL_FOV,
		NearPlaneDistance: DEFAULT_NEAR_PLANE_DISTANCE,
	}
}

func (c Camera) Lens() CameraLens {
	return CameraLens{
		AspectRatio:       c.AspectRatio,
		VerticalFOV:       c.VerticalFOV,
		NearPlaneDistance: c.NearPlaneDistance,
	}
}

type CameraLens struct {
	AspectRatio       float32
	VerticalFOV       float32
	NearPlaneDistance float32
}

// ViewToClip builds a reverse-Z perspective projection with an infinite far
// plane: depth is 1 on the near plane and tends to 0 at infinity.
func (l CameraLens) ViewToClip() (viewToClip, clipToView mgl32.Mat4) {
	fov := float64(mgl32.DegToRad(l.VerticalFOV))
	h := float32(stdmath.Cos(0.5*fov) / stdmath.Sin(0.5*fov))
	w := h / l.AspectRatio
	near := l.NearPlaneDistance

	// mgl32 matrices are column-major.
	viewToClip = mgl32.Mat4{
		w, 0, 0, 0,
		0, h, 0, 0,
		0, 0, 0, -1,
		0, 0, near, 0,
	}
	clipToView = mgl32.Mat4{
		1 / w, 0, 0, 0,
		0, 1 / h, 0, 0,
		0, 0, 0, 1 / near,
		0, 0, -1, 0,
	}
	return viewToClip, clipToView
}

type CameraMatrices struct {
	ViewToClip  mgl32.Mat4
	ClipToView  mgl32.Mat4
	WorldToView mgl32.Mat4
	ViewToWorld mgl32.Mat4
}

// Through resolves the matrices of a camera placed at t looking through lens.
func (t Transform) Through(lens CameraLens) CameraMatrices {
	viewToClip, clipToView := lens.ViewToClip()
	return CameraMatrices{
		ViewToClip:  viewToClip,
		ClipToView:  clipToView,
		WorldToView: t.WorldToView(),
		ViewToWorld: t.ViewToWorld(),
	}
}

// ExtractedCamera is the per-frame snapshot of the live camera: pose, lens and environment.
type ExtractedCamera struct {
	Camera      Camera
	Transform   Transform
	Environment EnvironmentSettings
}

func NewExtractedCamera() ExtractedCamera {
	return ExtractedCamera{
		Camera:      NewCamera(),
		Transform:   NewTransform(),
		Environment: EnvironmentSettings{},
	}
}
