// Package glfwwindow provides the native window collaborator on GLFW.
package glfwwindow

import (
	"runtime"

	"github.com/pkg/errors"
	"github.com/vulkan-go/glfw/v3.3/glfw"
	"github.com/vulkan-go/vulkan"

	"vkdisplay/src/render"
)

func init() {
	// GLFW event handling must run on the main thread.
	runtime.LockOSThread()
}

// Init starts GLFW and points the Vulkan loader at it. Call Terminate when
// done.
func Init() error {
	if err := glfw.Init(); err != nil {
		return errors.Wrap(err, "init glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return errors.New("glfw found no Vulkan loader")
	}
	vulkan.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())
	if err := vulkan.Init(); err != nil {
		glfw.Terminate()
		return errors.Wrap(err, "init vulkan")
	}
	return nil
}

func Terminate() {
	glfw.Terminate()
}

// PollEvents processes pending window events; resize callbacks run from
// here.
func PollEvents() {
	glfw.PollEvents()
}

// WaitEvents blocks until at least one event arrives.
func WaitEvents() {
	glfw.WaitEvents()
}

// Window is a GLFW window without a client API, ready for a Vulkan surface.
type Window struct {
	win *glfw.Window
}

// New creates the OS window described by props.
func New(props render.WindowProperties) (*Window, error) {
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	decorated := glfw.True
	if props.Undecorated {
		decorated = glfw.False
	}
	glfw.WindowHint(glfw.Decorated, decorated)

	width, height := props.Width, props.Height
	var monitor *glfw.Monitor
	if props.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
		if mode := monitor.GetVideoMode(); mode != nil && (width == 0 || height == 0) {
			width, height = mode.Width, mode.Height
		}
	}
	// GLFW refuses zero sizes; the window then starts minimized instead.
	minimized := width <= 0 || height <= 0
	if minimized {
		width, height = 1, 1
	}
	win, err := glfw.CreateWindow(width, height, props.Title, monitor, nil)
	if err != nil {
		return nil, errors.Wrap(err, "create glfw window")
	}
	if minimized {
		win.Iconify()
	}
	return &Window{win: win}, nil
}

// Bind forwards framebuffer size changes to target.
func (w *Window) Bind(target *render.Window) {
	w.win.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		target.Resize(width, height)
	})
}

func (w *Window) FramebufferSize() (int, int) {
	if w.win.GetAttrib(glfw.Iconified) == glfw.True {
		return 0, 0
	}
	return w.win.GetFramebufferSize()
}

// VulkanSurface creates a surface for the window on instance.
func (w *Window) VulkanSurface(instance vulkan.Instance) (vulkan.Surface, error) {
	ptr, err := w.win.CreateWindowSurface(instance, nil)
	if err != nil {
		return vulkan.NullSurface, errors.Wrap(err, "create window surface")
	}
	return vulkan.SurfaceFromPointer(ptr), nil
}

// RequiredExtensions lists the instance extensions surface creation needs.
func (w *Window) RequiredExtensions() []string {
	return w.win.GetRequiredInstanceExtensions()
}

func (w *Window) ShouldClose() bool {
	return w.win.ShouldClose()
}

func (w *Window) Destroy() {
	w.win.Destroy()
}
