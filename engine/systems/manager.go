package systems

import (
	"fmt"

	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
	"github.com/spaghettifunk/kiln/engine/scene"
	"github.com/spaghettifunk/kiln/engine/world"
)

type SystemManagerConfig struct {
	// Render extent in pixels.
	Width  uint32
	Height uint32
	// Scale of the global illumination volume, applied when a scene is set up.
	GIScale    float32
	Reconciler ReconcilerConfig
	Observer   Observer
	// Initial camera. Its aspect ratio is replaced by the render extent's.
	Camera *components.ExtractedCamera
}

// SystemManager owns the scene view: the tracked world, the reconciler that
// mirrors it into the renderer and the frame description handed to the
// renderer every frame.
type SystemManager struct {
	store      *renderer.Store
	world      *world.World
	reconciler *Reconciler
	frames     *FrameBuilder
	camera     components.ExtractedCamera
	giScale    float32
	ready      bool
}

func NewSystemManager(store *renderer.Store, w *world.World, config SystemManagerConfig) (*SystemManager, error) {
	if store == nil {
		return nil, fmt.Errorf("func NewSystemManager - renderer store is nil")
	}
	if w == nil {
		w = world.New()
	}
	if config.GIScale <= 0 {
		config.GIScale = 1.0
	}
	camera := components.NewExtractedCamera()
	if config.Camera != nil {
		camera = *config.Camera
	}
	frames := NewFrameBuilder(config.Width, config.Height)
	camera.Camera.AspectRatio = frames.AspectRatio()

	return &SystemManager{
		store:      store,
		world:      w,
		reconciler: NewReconciler(config.Reconciler, config.Observer),
		frames:     frames,
		camera:     camera,
		giScale:    config.GIScale,
	}, nil
}

// SetupSceneView applies the scene configuration to the renderer, seeds one
// record per scene instance and computes the first frame description. The
// registry starts empty; instances are created by the first update.
func (sm *SystemManager) SetupSceneView(desc *scene.SceneDesc) error {
	if desc == nil {
		return fmt.Errorf("func SetupSceneView - scene description is nil")
	}
	return sm.store.With(func(wr renderer.WorldRenderer) error {
		wr.SetWorldGIScale(sm.giScale)
		sm.seed(desc)
		sm.camera.Camera.AspectRatio = sm.frames.AspectRatio()
		sm.frames.Refresh(sm.camera)
		sm.ready = true
		core.LogInfo("scene view set up with %d scene instances (gi scale %.2f)", len(desc.Instances), sm.giScale)
		return nil
	})
}

// ReloadScene replaces the scene-file records with the ones in desc. Bindings
// for instances that are gone are removed on the next update.
func (sm *SystemManager) ReloadScene(desc *scene.SceneDesc) error {
	if desc == nil {
		return fmt.Errorf("func ReloadScene - scene description is nil")
	}
	return sm.store.With(func(wr renderer.WorldRenderer) error {
		wr.SetWorldGIScale(sm.giScale)
		sm.seed(desc)
		core.LogInfo("scene reloaded with %d scene instances", len(desc.Instances))
		return nil
	})
}

func (sm *SystemManager) seed(desc *scene.SceneDesc) {
	sm.world.Clear(components.OriginScene)
	for i, inst := range desc.Instances {
		sm.world.SpawnSceneInstance(uint32(i), inst.Mesh, components.TransformFromPosition(inst.Vec3()))
	}
}

// UpdateSceneView runs one frame: reconcile every tracked record, then
// rebuild the frame description from the camera and submit it. Everything
// happens under a single renderer lock.
func (sm *SystemManager) UpdateSceneView() (Report, error) {
	if !sm.ready {
		return Report{}, core.ErrEngineNotReady
	}
	var report Report
	err := sm.store.With(func(wr renderer.WorldRenderer) error {
		var err error
		report, err = sm.reconciler.Reconcile(wr, sm.world)
		if err != nil {
			return err
		}
		frame := sm.frames.Refresh(sm.camera)
		return renderer.Submit(wr, frame)
	})
	return report, err
}

// OnResize updates the render extent and the camera aspect ratio.
func (sm *SystemManager) OnResize(width, height uint32) {
	sm.frames.SetRenderExtent(width, height)
	sm.camera.Camera.AspectRatio = sm.frames.AspectRatio()
}

// Camera returns the live camera snapshot. Only touch it from the frame loop.
func (sm *SystemManager) Camera() *components.ExtractedCamera {
	return &sm.camera
}

func (sm *SystemManager) Frame() renderer.FrameDescription {
	return sm.frames.Frame()
}

func (sm *SystemManager) World() *world.World {
	return sm.world
}

func (sm *SystemManager) Reconciler() *Reconciler {
	return sm.reconciler
}

func (sm *SystemManager) Store() *renderer.Store {
	return sm.store
}

// Shutdown removes every renderer instance created by the scene view.
func (sm *SystemManager) Shutdown() error {
	return sm.store.With(func(wr renderer.WorldRenderer) error {
		n := sm.reconciler.Reset(wr)
		sm.ready = false
		core.LogDebug("scene view shut down, released %d instances", n)
		return nil
	})
}
