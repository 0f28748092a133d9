package testbed

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/spaghettifunk/kiln/engine"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/renderer/components"
)

const (
	carCount    = 3
	orbitRadius = 6.0
	// Radians per second.
	orbitSpeed = 0.5
	sunSpeed   = 0.1
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	cars    []components.EntityID
	elapsed float64

	width  uint32
	height uint32
}

func NewTestGame(config *engine.ApplicationConfig) *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: config,
			State:             &gameState{},
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg
}

// Initialize spawns a ring of cars around the origin on top of the scene file instances.
func (g *TestGame) Initialize() error {
	core.LogDebug("TestGame Initialize fn....")

	if g.SystemManager == nil {
		return fmt.Errorf("the engine is not yet initialized with all the system managers")
	}

	state := g.State.(*gameState)
	world := g.SystemManager.World()
	for i := 0; i < carCount; i++ {
		state.cars = append(state.cars, world.Spawn("car", carTransform(i, 0)))
	}

	camera := g.SystemManager.Camera()
	if camera.Transform.Position == (mgl32.Vec3{}) {
		camera.Transform = components.TransformFromPosition(mgl32.Vec3{0, 4, 14})
	}
	return nil
}

// Update drives the cars around their orbit and moves the sun across the sky.
func (g *TestGame) Update(deltaTime float64) error {
	state := g.State.(*gameState)
	state.elapsed += deltaTime

	world := g.SystemManager.World()
	for i, id := range state.cars {
		world.SetTransform(components.EntityKey(id), carTransform(i, state.elapsed))
	}

	sun := &g.SystemManager.Camera().Environment.Sun
	sun.Theta = float32(math.Mod(state.elapsed*sunSpeed, 2*math.Pi))
	sun.Phi = float32(math.Pi / 4)
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	state := g.State.(*gameState)
	state.width = width
	state.height = height
	return nil
}

func (g *TestGame) Shutdown() error {
	state := g.State.(*gameState)
	world := g.SystemManager.World()
	for _, id := range state.cars {
		world.Despawn(id)
	}
	state.cars = nil
	return nil
}

// carTransform places car i on the orbit at time t, facing along its direction of travel.
func carTransform(i int, t float64) components.Transform {
	angle := t*orbitSpeed + float64(i)*2*math.Pi/carCount
	position := mgl32.Vec3{
		float32(orbitRadius * math.Cos(angle)),
		0,
		float32(orbitRadius * math.Sin(angle)),
	}
	rotation := mgl32.QuatRotate(float32(-angle), mgl32.Vec3{0, 1, 0})
	return components.TransformFromPositionRotation(position, rotation)
}
