package engine

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/pelletier/go-toml/v2"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/math"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
	"github.com/spaghettifunk/kiln/engine/systems"
)

const (
	DEFAULT_CONFIG_FILE = "config.toml"
	DEFAULT_ASSETS_DIR  = "assets"
	DEFAULT_SCENE_NAME  = "car"
	DEFAULT_WIDTH       = 1280
	DEFAULT_HEIGHT      = 720
	DEFAULT_TARGET_FPS  = 60
	MAX_TARGET_FPS      = 1000

	MIN_VERTICAL_FOV        float32 = 1.0
	MAX_VERTICAL_FOV        float32 = 179.0
	MIN_NEAR_PLANE_DISTANCE float32 = 0.0001
)

const (
	WindowHeadless = "headless"
	WindowGLFW     = "glfw"
)

type ApplicationConfig struct {
	// The application name used in windowing, if applicable.
	Name string `toml:"name"`
	// Window starting width and height; the render extent of the first frame.
	Width  uint32 `toml:"width"`
	Height uint32 `toml:"height"`
	// Window starting position, if applicable.
	StartPosX uint32 `toml:"start_pos_x"`
	StartPosY uint32 `toml:"start_pos_y"`
	LogLevel  string `toml:"log_level"`
	AssetsDir string `toml:"assets_dir"`
	// "headless" or "glfw".
	Window    string `toml:"window"`
	TargetFPS uint32 `toml:"target_fps"`
	// Stop after this many frames. Zero runs until shutdown.
	MaxFrames uint64 `toml:"max_frames"`

	Scene  SceneConfig  `toml:"scene"`
	Camera CameraConfig `toml:"camera"`
}

type SceneConfig struct {
	Name          string  `toml:"name"`
	GIVolumeScale float32 `toml:"gi_volume_scale"`
	// "skip" or "fail".
	MissingMesh string `toml:"missing_mesh"`
	RetainStale bool   `toml:"retain_stale"`
	// Reload the scene when its file changes on disk.
	HotReload *bool `toml:"hot_reload"`
	// Log every transform update at debug level, i.e. one line per instance per frame.
	LogUpdates bool `toml:"log_updates"`
}

type CameraConfig struct {
	Position          [3]float32 `toml:"position"`
	VerticalFOV       float32    `toml:"vertical_fov"`
	NearPlaneDistance float32    `toml:"near_plane_distance"`
	SunTheta          float32    `toml:"sun_theta"`
	SunPhi            float32    `toml:"sun_phi"`
}

func DefaultApplicationConfig() *ApplicationConfig {
	c := &ApplicationConfig{}
	_ = c.normalize()
	return c
}

// LoadConfig reads an ApplicationConfig from a TOML file. A missing file
// yields the defaults.
func LoadConfig(path string) (*ApplicationConfig, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		core.LogDebug("config file %s not found, using defaults", path)
		return DefaultApplicationConfig(), nil
	}
	if err != nil {
		return nil, err
	}
	return ParseConfig(data)
}

func ParseConfig(data []byte) (*ApplicationConfig, error) {
	c := &ApplicationConfig{}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(c); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return nil, fmt.Errorf("config: %w (line %d, column %d)", err, row, col)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.normalize(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *ApplicationConfig) normalize() error {
	if c.Name == "" {
		c.Name = "Kiln"
	}
	if c.Width == 0 {
		c.Width = DEFAULT_WIDTH
	}
	if c.Height == 0 {
		c.Height = DEFAULT_HEIGHT
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.AssetsDir == "" {
		c.AssetsDir = DEFAULT_ASSETS_DIR
	}
	switch c.Window {
	case "":
		c.Window = WindowHeadless
	case WindowHeadless, WindowGLFW:
	default:
		return fmt.Errorf("config: unknown window %q (want %s or %s)", c.Window, WindowHeadless, WindowGLFW)
	}
	if c.TargetFPS == 0 {
		c.TargetFPS = DEFAULT_TARGET_FPS
	}
	c.TargetFPS = math.Clamp(c.TargetFPS, 1, MAX_TARGET_FPS)
	if c.Scene.Name == "" {
		c.Scene.Name = DEFAULT_SCENE_NAME
	}
	if c.Scene.GIVolumeScale <= 0 {
		c.Scene.GIVolumeScale = 1.0
	}
	if c.Scene.HotReload == nil {
		on := true
		c.Scene.HotReload = &on
	}
	if _, err := systems.ParseMissingMeshPolicy(c.Scene.MissingMesh); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Camera.VerticalFOV <= 0 {
		c.Camera.VerticalFOV = components.DEFAULT_VERTICAL_FOV
	}
	// The projection degenerates at 0 and 180 degrees.
	c.Camera.VerticalFOV = math.Clamp(c.Camera.VerticalFOV, MIN_VERTICAL_FOV, MAX_VERTICAL_FOV)
	if c.Camera.NearPlaneDistance <= 0 {
		c.Camera.NearPlaneDistance = components.DEFAULT_NEAR_PLANE_DISTANCE
	}
	if c.Camera.NearPlaneDistance < MIN_NEAR_PLANE_DISTANCE {
		c.Camera.NearPlaneDistance = MIN_NEAR_PLANE_DISTANCE
	}
	return nil
}

func (c *ApplicationConfig) Level() core.LogLevel {
	return core.ParseLogLevel(c.LogLevel)
}

// ReconcilerConfig translates the scene section. normalize has already
// validated the missing mesh policy.
func (c *ApplicationConfig) ReconcilerConfig() systems.ReconcilerConfig {
	policy, _ := systems.ParseMissingMeshPolicy(c.Scene.MissingMesh)
	return systems.ReconcilerConfig{
		MissingMesh: policy,
		RetainStale: c.Scene.RetainStale,
	}
}

// ExtractedCamera builds the initial camera snapshot from the camera section.
func (c *ApplicationConfig) ExtractedCamera() components.ExtractedCamera {
	camera := components.NewExtractedCamera()
	camera.Transform = components.TransformFromPosition(mgl32.Vec3(c.Camera.Position))
	camera.Camera.VerticalFOV = c.Camera.VerticalFOV
	camera.Camera.NearPlaneDistance = c.Camera.NearPlaneDistance
	camera.Environment.Sun = components.SunState{Theta: c.Camera.SunTheta, Phi: c.Camera.SunPhi}
	return camera
}

func (c *ApplicationConfig) HotReload() bool {
	return c.Scene.HotReload != nil && *c.Scene.HotReload
}
