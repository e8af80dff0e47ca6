package render

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// Window drives the presentation chain of one native window: surface,
// swapchain generations, render pass and the frame protocol. Lifecycle and
// frame methods are serialized by one mutex, so no caller sees a half-built
// generation. The Context accessors do not lock: they belong to the
// rendering thread between BeginFrame and EndFrame and to the generation
// hooks, which run with the mutex held.
type Window struct {
	mu sync.Mutex

	dev      Device
	native   NativeWindow
	fbProps  FrameBufferProperties
	winProps WindowProperties
	opts     options
	log      *slog.Logger
	hooks    hooks

	state State
	err   error

	surface   *Surface
	swapchain *Swapchain
	pass      *renderPass
	sync      *FrameSync
	cmd       CommandBuffer

	samples     vulkan.SampleCountFlagBits
	depthFormat vulkan.Format

	// size is the latest known client area.
	size         Extent
	needsRebuild bool
	frame        frameState
}

// NewWindow returns a closed window presenting native through dev.
func NewWindow(dev Device, native NativeWindow, fb FrameBufferProperties, win WindowProperties, opts ...Option) *Window {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	log := o.logger
	if log == nil {
		log = Logger()
	}
	w := &Window{
		dev:      dev,
		native:   native,
		fbProps:  fb,
		winProps: win,
		opts:     o,
		log:      log.With("window", win.Title),
		size:     extentOf(win.Width, win.Height),
	}
	w.frame.reset()
	return w
}

// OpenWindow binds the surface and builds the first generation. A window
// with no area opens suspended and still succeeds. On failure everything is
// released and the window stays closed.
func (w *Window) OpenWindow() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case StateClosed:
	case StateClosing:
		return false
	default:
		return true
	}
	w.err = nil
	w.setState(StateOpening)
	if err := w.open(); err != nil {
		w.err = err
		w.log.Error("open window failed", "err", err)
		w.teardown()
		w.setState(StateClosed)
		return false
	}
	return true
}

func (w *Window) open() (err error) {
	if w.surface, err = BindSurface(w.dev, w.native); err != nil {
		return err
	}

	w.samples = chooseSampleCount(w.fbProps.MultiSamples, w.dev.MaxSampleCount())
	depth, ok := chooseDepthStencilFormat(w.dev, &w.fbProps)
	if !ok {
		return errors.WithStack(fmt.Errorf("%w: no depth-stencil format for %d depth and %d stencil bits",
			ErrSwapchainCreationFailed, w.fbProps.DepthBits, w.fbProps.StencilBits))
	}
	w.depthFormat = depth

	if w.sync, err = NewFrameSync(w.dev); err != nil {
		return err
	}
	if w.cmd, err = w.dev.CreateCommandBuffer(); err != nil {
		return errors.Wrap(err, "create command buffer")
	}

	w.size = w.nativeSize()
	if w.size.IsZero() {
		w.log.Info("window has no area, rendering suspended")
		w.setState(StateSuspended)
		return nil
	}
	return w.buildGeneration(w.size)
}

// CloseWindow waits for the device to go idle and releases everything in
// reverse order. Closing a closed window does nothing.
func (w *Window) CloseWindow() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == StateClosed {
		return
	}
	w.setState(StateClosing)
	w.teardown()
	w.setState(StateClosed)
}

// Resize tells the window its client area changed. The rebuild happens now
// when no frame is in flight and at the next BeginFrame otherwise. A zero
// size suspends rendering.
func (w *Window) Resize(width, height int) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.size = extentOf(width, height)
	switch w.state {
	case StateReady, StateSuspended:
	default:
		return
	}
	if w.frame.phase != phaseIdle {
		w.log.Debug("resize deferred until the frame completes", "width", width, "height", height)
		w.needsRebuild = true
		return
	}
	if w.state == StateSuspended && w.size.IsZero() {
		return
	}
	if w.state == StateReady && !w.needsRebuild && w.swapchain.requested == w.size {
		return
	}
	w.rebuild(w.size)
}

func (w *Window) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Err returns the fatal error that last closed the window or failed to open
// it.
func (w *Window) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Properties reports the framebuffer the window actually obtained. Before
// the first generation is built it returns the requested properties.
func (w *Window) Properties() FrameBufferProperties {
	w.mu.Lock()
	defer w.mu.Unlock()

	fb := w.fbProps
	if w.swapchain == nil {
		return fb
	}
	fb.ColorBits, fb.AlphaBits = colorBits(w.swapchain.format.Format)
	fb.SRGBColor = isSRGB(w.swapchain.format.Format)
	fb.BackBuffers = len(w.swapchain.buffers) - 1
	fb.MultiSamples = 0
	if w.samples > vulkan.SampleCount1Bit {
		fb.MultiSamples = int(w.samples)
	}
	fb.DepthBits, fb.StencilBits = depthStencilBits(w.depthFormat)
	return fb
}

// rebuild replaces the current generation with one built for size. It
// returns false when the window could not be kept open.
func (w *Window) rebuild(size Extent) bool {
	w.setState(StateRebuilding)
	if err := w.dev.WaitIdle(); err != nil {
		w.fail(errors.Wrap(err, "wait for device idle"))
		return false
	}
	w.frame.reset()
	if w.swapchain != nil {
		w.cleanupGeneration()
	}
	if err := w.buildGeneration(size); err != nil {
		w.fail(err)
		return false
	}
	return true
}

// buildGeneration builds a swapchain for size, retiring the current one, and
// attaches framebuffers. The render pass survives when it is still
// compatible.
func (w *Window) buildGeneration(size Extent) error {
	sc, err := BuildSwapchain(w.dev, w.surface, size, w.swapchain, &SwapchainParams{
		FrameBuffer:      &w.fbProps,
		PreferredFormats: w.opts.preferredFormats,
		SyncVideo:        w.opts.syncVideo,
	})
	w.swapchain = nil
	if err != nil {
		if errors.Is(err, ErrZeroExtent) {
			w.log.Info("window has no area, rendering suspended")
			w.needsRebuild = false
			w.setState(StateSuspended)
			return nil
		}
		return err
	}
	w.swapchain = sc

	desc := BuildRenderPass(sc.format.Format, w.samples, w.depthFormat)
	if w.opts.preserveDepth {
		desc = desc.WithPreservedDepth()
	}
	if w.pass == nil || !w.pass.desc.Compatible(desc) {
		if w.pass != nil {
			w.pass.destroy()
			w.pass = nil
		}
		handle, err := w.dev.CreateRenderPass(desc)
		if err != nil {
			return errors.Wrap(err, "create render pass")
		}
		w.pass = &renderPass{desc: desc, handle: handle}
	}
	if err := sc.Attach(w.pass); err != nil {
		return err
	}

	w.needsRebuild = false
	w.log.Info("swapchain built",
		"width", sc.extent.Width, "height", sc.extent.Height,
		"images", len(sc.buffers), "format", sc.format.Format,
		"present_mode", sc.presentMode, "samples", w.samples)
	w.setState(StateReady)
	w.prepareGeneration()
	return nil
}

// teardown releases swap buffers, shared targets, render pass, swapchain,
// synchronization pair and finally the surface, after the device is idle.
func (w *Window) teardown() {
	if w.surface != nil {
		if err := w.dev.WaitIdle(); err != nil {
			w.log.Warn("wait for device idle", "err", err)
		}
	}
	if w.swapchain != nil {
		w.cleanupGeneration()
		w.swapchain.Release()
	}
	if w.pass != nil {
		w.pass.destroy()
		w.pass = nil
	}
	if w.swapchain != nil {
		w.swapchain.Destroy()
		w.swapchain = nil
	}
	if w.sync != nil {
		w.sync.Destroy()
		w.sync = nil
	}
	if w.cmd != nil {
		w.cmd.Destroy()
		w.cmd = nil
	}
	if w.surface != nil {
		w.surface.Close()
		w.surface = nil
	}
	w.frame.reset()
	w.needsRebuild = false
}

// fail records a fatal error and closes the window.
func (w *Window) fail(err error) {
	w.err = err
	w.log.Error("closing window", "err", err)
	w.setState(StateClosing)
	w.teardown()
	w.setState(StateClosed)
}

func (w *Window) setState(s State) {
	if w.state == s {
		return
	}
	w.log.Debug("window state", "from", w.state, "to", s)
	w.state = s
}

func (w *Window) nativeSize() Extent {
	return extentOf(w.native.FramebufferSize())
}

func extentOf(width, height int) Extent {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Extent{Width: uint32(width), Height: uint32(height)}
}

func colorBits(f vulkan.Format) (color, alpha int) {
	switch f {
	case vulkan.FormatB8g8r8a8Srgb, vulkan.FormatR8g8b8a8Srgb,
		vulkan.FormatB8g8r8a8Unorm, vulkan.FormatR8g8b8a8Unorm:
		return 24, 8
	case vulkan.FormatA2b10g10r10UnormPack32, vulkan.FormatA2r10g10b10UnormPack32:
		return 30, 2
	case vulkan.FormatR16g16b16a16Sfloat:
		return 48, 16
	case vulkan.FormatR5g6b5UnormPack16, vulkan.FormatB5g6r5UnormPack16:
		return 16, 0
	}
	return 0, 0
}

func isSRGB(f vulkan.Format) bool {
	return f == vulkan.FormatB8g8r8a8Srgb || f == vulkan.FormatR8g8b8a8Srgb
}

func depthStencilBits(f vulkan.Format) (depth, stencil int) {
	switch f {
	case vulkan.FormatD16Unorm:
		return 16, 0
	case vulkan.FormatD16UnormS8Uint:
		return 16, 8
	case vulkan.FormatX8D24UnormPack32:
		return 24, 0
	case vulkan.FormatD24UnormS8Uint:
		return 24, 8
	case vulkan.FormatD32Sfloat:
		return 32, 0
	case vulkan.FormatD32SfloatS8Uint:
		return 32, 8
	case vulkan.FormatS8Uint:
		return 0, 8
	}
	return 0, 0
}
