/*
Runs the testbed game on the engine: the configured scene file is mirrored
into the renderer every frame and the testbed spawns a few extra cars.
*/
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spaghettifunk/kiln/engine"
	"github.com/spaghettifunk/kiln/engine/assets"
	"github.com/spaghettifunk/kiln/engine/core"
	"github.com/spaghettifunk/kiln/engine/platform"
	"github.com/spaghettifunk/kiln/engine/platform/window"
	"github.com/spaghettifunk/kiln/engine/renderer/headless"
	"github.com/spaghettifunk/kiln/testbed"
)

func main() {
	configPath := flag.String("config", filepath.Join(engine.DEFAULT_ASSETS_DIR, engine.DEFAULT_CONFIG_FILE), "path to the application config")
	sceneName := flag.String("scene", "", "scene to load, overrides the config")
	maxFrames := flag.Uint64("frames", 0, "stop after this many frames, overrides the config")
	flag.Parse()

	config, err := engine.LoadConfig(*configPath)
	if err != nil {
		core.LogFatal("failed to load config: %s", err)
	}
	if *sceneName != "" {
		config.Scene.Name = *sceneName
	}
	if *maxFrames > 0 {
		config.MaxFrames = *maxFrames
	}
	core.SetLogLevel(config.Level())

	events := core.NewEventSystem(core.DEFAULT_EVENT_QUEUE_SIZE)

	am, err := assets.NewAssetManager(events)
	if err != nil {
		core.LogFatal("failed to create the asset manager: %s", err)
	}
	if err := am.Initialize(config.AssetsDir); err != nil {
		core.LogFatal("failed to index assets: %s", err)
	}

	var p platform.Platform = platform.NewHeadless(events)
	if config.Window == engine.WindowGLFW {
		p = window.NewGLFW(events)
	}

	tb := testbed.NewTestGame(config)
	e, err := engine.New(tb.Game, engine.Dependencies{
		Platform: p,
		Renderer: headless.New(am),
		Events:   events,
		Assets:   am,
	})
	if err != nil {
		core.LogFatal(err.Error())
	}

	if err := e.Setup(); err != nil {
		_ = e.Shutdown()
		core.LogFatal("engine setup failed: %s", err)
	}

	// capture sigterm and other system calls
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	runErr := e.Run(ctx)
	if err := e.Shutdown(); err != nil {
		core.LogError("shutdown: %s", err)
	}
	if runErr != nil {
		core.LogError(runErr.Error())
		os.Exit(1)
	}
}
