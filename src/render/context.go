package render

import (
	"github.com/vulkan-go/vulkan"
)

// Context is what a renderer sees of a window while it records a frame.
// Call its accessors from the rendering thread or from a hook, never
// concurrently with Resize or the frame methods.
type Context interface {
	// SetOnPrepare runs after every swapchain generation is built.
	SetOnPrepare(onPrepare func() error)
	// SetOnCleanup runs before a swapchain generation is torn down.
	SetOnCleanup(onCleanup func() error)
	// SetOnInvalidate runs once per swap buffer of a fresh generation.
	SetOnInvalidate(onInvalidate func(imageIndex int) error)

	Device() Device
	CommandBuffer() CommandBuffer
	RenderPass() RenderPassHandle
	RenderPassDesc() *RenderPassDesc
	// Framebuffer is the framebuffer of the acquired image, nil outside a
	// frame.
	Framebuffer() FramebufferHandle
	// ImageIndex is the acquired image index, -1 outside a frame.
	ImageIndex() int
	SwapchainDimensions() *SwapchainDimensions
	SwapBufferCount() int
	ClearMask() ClearMask
	// SetFinalLayout tells the window which layout the renderer left the
	// acquired image in.
	SetFinalLayout(layout vulkan.ImageLayout)
}

var _ Context = (*Window)(nil)

// SwapchainDimensions describes the size and format of the swapchain.
type SwapchainDimensions struct {
	// Width of the swapchain.
	Width uint32
	// Height of the swapchain.
	Height uint32
	// Format is the pixel format of the swapchain.
	Format vulkan.Format
}

type hooks struct {
	onPrepare    func() error
	onCleanup    func() error
	onInvalidate func(imageIndex int) error
}

func (w *Window) SetOnPrepare(onPrepare func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks.onPrepare = onPrepare
}

func (w *Window) SetOnCleanup(onCleanup func() error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks.onCleanup = onCleanup
}

func (w *Window) SetOnInvalidate(onInvalidate func(imageIndex int) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.hooks.onInvalidate = onInvalidate
}

func (w *Window) Device() Device {
	return w.dev
}

func (w *Window) CommandBuffer() CommandBuffer {
	return w.cmd
}

func (w *Window) RenderPass() RenderPassHandle {
	if w.pass == nil {
		return nil
	}
	return w.pass.handle
}

func (w *Window) RenderPassDesc() *RenderPassDesc {
	if w.pass == nil {
		return nil
	}
	return w.pass.desc
}

func (w *Window) Framebuffer() FramebufferHandle {
	if w.frame.imageIndex < 0 || w.swapchain == nil {
		return nil
	}
	return w.swapchain.buffers[w.frame.imageIndex].framebuffer
}

func (w *Window) ImageIndex() int {
	return w.frame.imageIndex
}

func (w *Window) SwapchainDimensions() *SwapchainDimensions {
	if w.swapchain == nil {
		return nil
	}
	return &SwapchainDimensions{
		Width:  w.swapchain.extent.Width,
		Height: w.swapchain.extent.Height,
		Format: w.swapchain.format.Format,
	}
}

func (w *Window) SwapBufferCount() int {
	if w.swapchain == nil {
		return 0
	}
	return len(w.swapchain.buffers)
}

func (w *Window) ClearMask() ClearMask {
	return w.frame.clearMask
}

// prepareGeneration runs the renderer hooks for a freshly built generation.
func (w *Window) prepareGeneration() {
	if w.hooks.onPrepare != nil {
		if err := w.hooks.onPrepare(); err != nil {
			w.log.Warn("prepare hook failed", "err", err)
		}
	}
	if w.hooks.onInvalidate != nil {
		for i := range w.swapchain.buffers {
			if err := w.hooks.onInvalidate(i); err != nil {
				w.log.Warn("invalidate hook failed", "image", i, "err", err)
			}
		}
	}
}

func (w *Window) cleanupGeneration() {
	if w.hooks.onCleanup != nil {
		if err := w.hooks.onCleanup(); err != nil {
			w.log.Warn("cleanup hook failed", "err", err)
		}
	}
}
