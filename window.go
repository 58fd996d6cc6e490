package forge

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/forge3d/forge/graphics"
)

// WindowState wraps the single shared GLFW window and satisfies the
// renderer's graphics.Window contract. Create it on the main goroutine;
// GLFW requires all window calls to stay there.
type WindowState struct {
	window  *glfw.Window
	resized bool
}

func createWindowState(width, height int, title string) (*WindowState, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("initializing glfw: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Important: tell GLFW we don't want OpenGL
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("creating window: %w", err)
	}

	ws := &WindowState{window: win}
	win.SetFramebufferSizeCallback(func(*glfw.Window, int, int) {
		ws.resized = true
	})
	return ws, nil
}

// Handle exposes the raw GLFW window for surface creation.
func (ws *WindowState) Handle() *glfw.Window { return ws.window }

func (ws *WindowState) DrawableExtent() graphics.Extent2D {
	w, h := ws.window.GetFramebufferSize()
	return graphics.Extent2D{Width: uint32(w), Height: uint32(h)}
}

func (ws *WindowState) WasResized() bool  { return ws.resized }
func (ws *WindowState) ResetResizedFlag() { ws.resized = false }
func (ws *WindowState) WaitEvents()       { glfw.WaitEvents() }
func (ws *WindowState) PollEvents()       { glfw.PollEvents() }
func (ws *WindowState) ShouldClose() bool { return ws.window.ShouldClose() }

func (ws *WindowState) Destroy() {
	ws.window.Destroy()
	glfw.Terminate()
}
