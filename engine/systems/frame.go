package systems

import (
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

// BuildFrame derives the renderer's frame description from the camera snapshot.
func BuildFrame(camera components.ExtractedCamera, extent [2]uint32) renderer.FrameDescription {
	return renderer.FrameDescription{
		CameraMatrices: camera.Transform.Through(camera.Camera.Lens()),
		RenderExtent:   extent,
		SunDirection:   camera.Environment.Sun.Direction(),
	}
}

// FrameBuilder holds the current frame description and the render extent it
// is built for.
type FrameBuilder struct {
	extent [2]uint32
	frame  renderer.FrameDescription
}

func NewFrameBuilder(width, height uint32) *FrameBuilder {
	return &FrameBuilder{extent: [2]uint32{width, height}}
}

func (fb *FrameBuilder) SetRenderExtent(width, height uint32) {
	fb.extent = [2]uint32{width, height}
}

func (fb *FrameBuilder) RenderExtent() [2]uint32 {
	return fb.extent
}

// AspectRatio of the render extent, or 1 when it is degenerate.
func (fb *FrameBuilder) AspectRatio() float32 {
	if fb.extent[0] == 0 || fb.extent[1] == 0 {
		return components.DEFAULT_ASPECT_RATIO
	}
	return float32(fb.extent[0]) / float32(fb.extent[1])
}

// Refresh recomputes the frame description. Call it once per frame after the
// camera pose for that frame is final.
func (fb *FrameBuilder) Refresh(camera components.ExtractedCamera) *renderer.FrameDescription {
	fb.frame = BuildFrame(camera, fb.extent)
	return &fb.frame
}

func (fb *FrameBuilder) Frame() renderer.FrameDescription {
	return fb.frame
}
