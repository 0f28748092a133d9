package window

import (
	"fmt"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/spaghettifunk/kiln/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

// GLFW is a platform.Platform backed by a GLFW window. The window carries no
// graphics context; the renderer owns the surface.
type GLFW struct {
	events *core.EventSystem
	window *glfw.Window
	width  uint32
	height uint32
}

func NewGLFW(events *core.EventSystem) *GLFW {
	return &GLFW{events: events}
}

func (p *GLFW) Startup(applicationName string, x, y, width, height uint32) error {
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("failed to initialize glfw: %w", err)
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)

	window, err := glfw.CreateWindow(int(width), int(height), applicationName, nil, nil)
	if err != nil {
		glfw.Terminate()
		return fmt.Errorf("failed to create window: %w", err)
	}
	p.window = window

	p.window.SetKeyCallback(p.keyCallback)
	p.window.SetFramebufferSizeCallback(p.framebufferSizeCallback)
	p.window.SetCloseCallback(p.closeCallback)
	p.window.SetPos(int(x), int(y))
	p.window.Show()

	// Framebuffer size differs from the requested size on high-DPI displays.
	fbWidth, fbHeight := window.GetFramebufferSize()
	p.width, p.height = uint32(fbWidth), uint32(fbHeight)
	return nil
}

func (p *GLFW) PumpMessages() bool {
	if p.window == nil {
		return false
	}
	glfw.PollEvents()
	return !p.window.ShouldClose()
}

func (p *GLFW) FramebufferSize() (uint32, uint32) {
	return p.width, p.height
}

func (p *GLFW) Sleep(d time.Duration) {
	if d > 0 {
		time.Sleep(d)
	}
}

func (p *GLFW) Shutdown() error {
	if p.window != nil {
		p.window.Destroy()
		p.window = nil
	}
	glfw.Terminate()
	return nil
}

func (p *GLFW) keyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		w.SetShouldClose(true)
		p.post(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
	}
}

func (p *GLFW) closeCallback(w *glfw.Window) {
	p.post(core.EventContext{Type: core.EVENT_CODE_APPLICATION_QUIT})
}

func (p *GLFW) framebufferSizeCallback(w *glfw.Window, width, height int) {
	p.width, p.height = uint32(width), uint32(height)
	p.post(core.EventContext{
		Type: core.EVENT_CODE_RESIZED,
		Data: &core.ResizeEvent{WindowWidth: p.width, WindowHeight: p.height},
	})
}

func (p *GLFW) post(context core.EventContext) {
	if p.events != nil {
		_ = p.events.Post(context)
	}
}
