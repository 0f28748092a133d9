package platform

import (
	"sync/atomic"
	"time"

	"github.com/spaghettifunk/kiln/engine/core"
)

// Platform is the host the frame loop runs on. It reports the render extent
// and posts EVENT_CODE_RESIZED and EVENT_CODE_APPLICATION_QUIT when the
// window changes.
type Platform interface {
	Startup(applicationName string, x, y, width, height uint32) error
	// PumpMessages processes pending window messages. It returns false once
	// the platform wants the application to stop.
	PumpMessages() bool
	FramebufferSize() (uint32, uint32)
	Sleep(d time.Duration)
	Shutdown() error
}

var startTime = time.Now()

// GetAbsoluteTime returns the seconds elapsed since the process started.
func GetAbsoluteTime() float64 {
	return time.Since(startTime).Seconds()
}

// Headless is a Platform without a window. The render extent is fixed at
// startup and changes only through Resize.
type Headless struct {
	events *core.EventSystem
	width  atomic.Uint32
	height atomic.Uint32
	closed atomic.Bool
}

func NewHeadless(events *core.EventSystem) *Headless {
	return &Headless{events: events}
}

func (p *Headless) Startup(applicationName string, x, y, width, height uint32) error {
	p.width.Store(width)
	p.height.Store(height)
	p.closed.Store(false)
	core.LogInfo("%s running headless at %dx%d", applicationName, width, height)
	return nil
}

func (p *Headless) PumpMessages() bool {
	return !p.closed.Load()
}

func (p *Headless) FramebufferSize() (uint32, uint32) {
	return p.width.Load(), p.height.Load()
}

// Resize changes the render extent as a window resize would.
func (p *Headless) Resize(width, height uint32) {
	p.width.Store(width)
	p.height.Store(height)
	if p.events != nil {
		_ = p.events.Post(core.EventContext{
			Type: core.EVENT_CODE_RESIZED,
			Data: &core.ResizeEvent{WindowWidth: width, WindowHeight: height},
		})
	}
}

// Close makes the next PumpMessages report that the application should stop.
func (p *Headless) Close() {
	p.closed.Store(true)
}

func (p *Headless) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func (p *Headless) Shutdown() error {
	p.closed.Store(true)
	return nil
}
