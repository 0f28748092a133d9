package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/platform"
	"github.com/spaghettifunk/kiln/engine/renderer"
	"github.com/spaghettifunk/kiln/engine/scene"
	"github.com/spaghettifunk/kiln/engine/systems"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

func (s Stage) String() string {
	switch s {
	case EngineStageUninitialized:
		return "uninitialized"
	case EngineStageBooting:
		return "booting"
	case EngineStageInitialized:
		return "initialized"
	case EngineStageRunning:
		return "running"
	case EngineStageShuttingDown:
		return "shutting down"
	default:
		return "unknown"
	}
}

// Dependencies are the collaborators the engine drives but does not own the
// construction of.
type Dependencies struct {
	Platform platform.Platform
	Renderer renderer.WorldRenderer
	// Created when nil.
	Events *core.EventSystem
	// Optional. Without it scene files are not hot reloaded.
	Assets *assets.AssetManager
	// Receives reconciler events next to the logging observer.
	Observer systems.Observer
}

type Engine struct {
	currentStage  Stage
	sessionID     uuid.UUID
	gameInstance  *Game
	config        *ApplicationConfig
	isRunning     bool
	isSuspended   bool
	platform      platform.Platform
	events        *core.EventSystem
	assetManager  *assets.AssetManager
	systemManager *systems.SystemManager
	jobs          *systems.JobSystem
	width         uint32
	height        uint32
	clock         *core.Clock
	metrics       *core.FrameMetrics
	lastTime      float64
	frameCount    uint64
}

func New(g *Game, deps Dependencies) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("func New - game is nil")
	}
	if deps.Platform == nil {
		return nil, fmt.Errorf("func New - platform is nil")
	}
	if deps.Renderer == nil {
		return nil, fmt.Errorf("func New - renderer is nil")
	}
	if g.ApplicationConfig == nil {
		g.ApplicationConfig = DefaultApplicationConfig()
	}
	config := g.ApplicationConfig

	events := deps.Events
	if events == nil {
		events = core.NewEventSystem(core.DEFAULT_EVENT_QUEUE_SIZE)
	}

	logObserver := systems.LogObserver{Verbose: config.Scene.LogUpdates}
	var observer systems.Observer = logObserver
	if deps.Observer != nil {
		observer = systems.Observers{logObserver, deps.Observer}
	}
	camera := config.ExtractedCamera()
	sm, err := systems.NewSystemManager(renderer.NewStore(deps.Renderer), nil, systems.SystemManagerConfig{
		Width:      config.Width,
		Height:     config.Height,
		GIScale:    config.Scene.GIVolumeScale,
		Reconciler: config.ReconcilerConfig(),
		Observer:   observer,
		Camera:     &camera,
	})
	if err != nil {
		core.LogError(err.Error())
		return nil, err
	}
	g.SystemManager = sm

	// Resources load on a single worker to avoid disk thrashing.
	jobs, err := systems.NewJobSystem(1, 4)
	if err != nil {
		return nil, err
	}

	return &Engine{
		currentStage:  EngineStageUninitialized,
		sessionID:     uuid.New(),
		gameInstance:  g,
		config:        config,
		platform:      deps.Platform,
		events:        events,
		assetManager:  deps.Assets,
		systemManager: sm,
		jobs:          jobs,
		width:         config.Width,
		height:        config.Height,
		clock:         core.NewClock(),
		metrics:       core.NewFrameMetrics(),
	}, nil
}

// Setup brings the engine up: platform, asset watcher, the scene view seeded
// from the configured scene file, then the game. The renderer registry
// starts empty; instances are created by the first Update.
func (e *Engine) Setup() error {
	if e.currentStage != EngineStageUninitialized {
		return fmt.Errorf("engine setup called in stage %s", e.currentStage)
	}
	e.currentStage = EngineStageBooting
	core.SetLogLevel(e.config.Level())
	core.LogInfo("starting %s (session %s)", e.config.Name, e.sessionID)

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onQuit)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)
	e.events.Register(core.EVENT_CODE_SCENE_CHANGED, e, e.onSceneChanged)
	e.events.Register(core.EVENT_CODE_SCENE_LOADED, e, e.onSceneLoaded)
	e.events.Register(core.EVENT_CODE_MESH_BAKED, e, e.onAssetEvent)
	e.events.Register(core.EVENT_CODE_ASSET_REMOVED, e, e.onAssetEvent)

	if err := e.platform.Startup(e.config.Name, e.config.StartPosX, e.config.StartPosY, e.config.Width, e.config.Height); err != nil {
		return err
	}
	if w, h := e.platform.FramebufferSize(); w != 0 && h != 0 {
		e.width, e.height = w, h
	}
	e.systemManager.OnResize(e.width, e.height)

	if e.assetManager != nil && e.assetManager.Root() == "" {
		if err := e.assetManager.Initialize(e.config.AssetsDir); err != nil {
			return err
		}
	}

	desc, err := scene.Load(e.config.AssetsDir, e.config.Scene.Name)
	if err != nil {
		return err
	}
	if err := e.systemManager.SetupSceneView(desc); err != nil {
		return err
	}

	if e.gameInstance.FnInitialize != nil {
		if err := e.gameInstance.FnInitialize(); err != nil {
			return err
		}
	}
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
			return err
		}
	}

	e.isRunning = true
	e.currentStage = EngineStageInitialized
	return nil
}

// Update runs one frame: posted events are dispatched, the game updates its
// entities, then the scene view reconciles and submits the frame.
func (e *Engine) Update(deltaTime float64) error {
	if e.currentStage != EngineStageInitialized && e.currentStage != EngineStageRunning {
		return core.ErrEngineNotReady
	}
	e.events.Dispatch()
	if e.isSuspended || !e.isRunning {
		return nil
	}

	if e.gameInstance.FnUpdate != nil {
		if err := e.gameInstance.FnUpdate(deltaTime); err != nil {
			return err
		}
	}

	report, err := e.systemManager.UpdateSceneView()
	if err != nil {
		return err
	}
	if report.Created > 0 || report.Removed > 0 {
		core.LogDebug("frame %d: %d created, %d removed, %d unresolved", e.frameCount, report.Created, report.Removed, report.Unresolved)
	}
	e.frameCount++
	return nil
}

// Run drives Update at the target frame rate until ctx is done, the platform
// closes, a quit event arrives or MaxFrames frames have run.
func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrEngineNotReady
	}
	e.currentStage = EngineStageRunning

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	targetFrameSeconds := 1.0 / float64(e.config.TargetFPS)

	for e.isRunning {
		select {
		case <-ctx.Done():
			core.LogInfo("context done, stopping frame loop")
			e.isRunning = false
			continue
		default:
		}

		if !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}

		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		if err := e.Update(delta); err != nil {
			core.LogError("Game update failed, shutting down: %s", err)
			e.isRunning = false
			return err
		}

		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		e.metrics.Update(frameElapsedTime, delta)
		if e.frameCount > 0 && e.frameCount%uint64(e.config.TargetFPS) == 0 {
			fps, frameTime := e.metrics.Frame()
			core.LogDebug("FPS: %5.1f (%4.1fms) instances: %d", fps, frameTime, e.systemManager.Reconciler().Len())
		}

		// If there is time left, give it back to the OS.
		if remaining := targetFrameSeconds - frameElapsedTime; remaining > 0 {
			e.platform.Sleep(time.Duration(remaining * float64(time.Second)))
		}

		e.lastTime = currentTime

		if e.config.MaxFrames > 0 && e.frameCount >= e.config.MaxFrames {
			core.LogInfo("reached %d frames, stopping", e.frameCount)
			e.isRunning = false
		}
	}
	return nil
}

func (e *Engine) Shutdown() error {
	if e.currentStage == EngineStageShuttingDown {
		return nil
	}
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false

	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError(err.Error())
		}
	}
	if err := e.jobs.Shutdown(); err != nil {
		return err
	}
	if err := e.systemManager.Shutdown(); err != nil {
		return err
	}
	if e.assetManager != nil {
		if err := e.assetManager.Shutdown(); err != nil {
			return err
		}
	}
	if err := e.events.Shutdown(); err != nil {
		return err
	}
	return e.platform.Shutdown()
}

func (e *Engine) Stage() Stage {
	return e.currentStage
}

func (e *Engine) IsRunning() bool {
	return e.isRunning
}

func (e *Engine) FrameCount() uint64 {
	return e.frameCount
}

func (e *Engine) Events() *core.EventSystem {
	return e.events
}

func (e *Engine) SystemManager() *systems.SystemManager {
	return e.systemManager
}

// GetFramebufferSize returns the width and height (in this order)
// of the application framebuffer.
func (e *Engine) GetFramebufferSize() (uint32, uint32) {
	return e.width, e.height
}

func (e *Engine) onQuit(context core.EventContext) bool {
	core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
	e.isRunning = false
	return true
}

func (e *Engine) onResized(context core.EventContext) bool {
	re, ok := context.Data.(*core.ResizeEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	width, height := re.WindowWidth, re.WindowHeight
	if width == e.width && height == e.height {
		return false
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.systemManager.OnResize(width, height)
	if e.gameInstance.FnOnResize != nil {
		if err := e.gameInstance.FnOnResize(width, height); err != nil {
			core.LogError(err.Error())
		}
	}
	return false
}

// onSceneChanged reloads the configured scene when its file changes. The
// file is parsed on the job system; a file that fails to parse leaves the
// current scene in place.
func (e *Engine) onSceneChanged(context core.EventContext) bool {
	ae, ok := context.Data.(*core.AssetEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if !e.config.HotReload() || assets.SceneName(ae.Path) != e.config.Scene.Name {
		return false
	}
	assetsDir, name := e.config.AssetsDir, e.config.Scene.Name
	err := e.jobs.TrySubmit(systems.JobTask{
		Name: "scene reload " + name,
		Run: func() (interface{}, error) {
			return scene.Load(assetsDir, name)
		},
		OnComplete: func(result interface{}) {
			_ = e.events.Post(core.EventContext{Type: core.EVENT_CODE_SCENE_LOADED, Data: result})
		},
		OnFailure: func(err error) {
			core.LogError("scene reload failed, keeping the current scene: %s", err)
		},
	})
	if err != nil {
		core.LogWarn("scene reload of %s not scheduled: %s", name, err)
	}
	return true
}

func (e *Engine) onSceneLoaded(context core.EventContext) bool {
	desc, ok := context.Data.(*scene.SceneDesc)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	if err := e.systemManager.ReloadScene(desc); err != nil {
		core.LogError(err.Error())
	}
	return true
}

func (e *Engine) onAssetEvent(context core.EventContext) bool {
	ae, ok := context.Data.(*core.AssetEvent)
	if !ok {
		core.LogError("wrong event associated with the event type `%d`", context.Type)
		return false
	}
	switch context.Type {
	case core.EVENT_CODE_MESH_BAKED:
		core.LogInfo("baked mesh %s available", ae.Path)
	case core.EVENT_CODE_ASSET_REMOVED:
		core.LogWarn("asset %s removed from disk", ae.Path)
	}
	return false
}
