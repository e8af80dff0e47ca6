package render

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

type framePhase int

const (
	phaseIdle framePhase = iota
	// phaseAcquired: BeginFrame acquired an image and opened the command
	// buffer.
	phaseAcquired
	// phaseSubmitted: EndFrame submitted the frame.
	phaseSubmitted
	// phasePresented: BeginFlip queued the image for display.
	phasePresented
)

// frameState is only meaningful between BeginFrame and EndFlip.
type frameState struct {
	phase      framePhase
	imageIndex int
	clearMask  ClearMask
	// finalLayout is the layout the acquired image is in as far as the
	// window knows. EndFrame moves it to PresentSrc if it is not already.
	finalLayout vulkan.ImageLayout
	thread      Thread
}

func (f *frameState) reset() {
	*f = frameState{imageIndex: -1, finalLayout: vulkan.ImageLayoutUndefined}
}

func (f *frameState) begin(index uint32, thread Thread) {
	*f = frameState{
		phase:       phaseAcquired,
		imageIndex:  int(index),
		finalLayout: vulkan.ImageLayoutUndefined,
		thread:      thread,
	}
}

func threadName(t Thread) string {
	if t == nil {
		return ""
	}
	return t.Name()
}

// BeginFrame starts a frame. For FrameModeRender it acquires the next image,
// rebuilding the swapchain first when it is stale. It returns false when
// the frame should be skipped; that is not an error.
func (w *Window) BeginFrame(mode FrameMode, thread Thread) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if mode != FrameModeRender {
		return w.state == StateReady || w.state == StateSuspended
	}
	switch w.frame.phase {
	case phaseAcquired:
		w.log.Warn("begin frame while a frame is open", "thread", threadName(thread))
		return false
	case phaseSubmitted, phasePresented:
		if !w.finishFrame() {
			return false
		}
	}
	if w.state != StateReady && w.state != StateSuspended {
		return false
	}

	w.size = w.nativeSize()
	rebuilt := false
	if w.state == StateSuspended || w.needsRebuild || w.swapchain.requested != w.size {
		if w.state == StateSuspended && w.size.IsZero() {
			return false
		}
		if !w.rebuild(w.size) || w.state != StateReady {
			return false
		}
		rebuilt = true
	}

	for {
		index, suboptimal, err := w.sync.Acquire(w.swapchain, w.opts.acquireTimeout)
		if err == nil {
			if suboptimal {
				w.log.Debug("acquired image from a suboptimal swapchain", "image", index)
				w.needsRebuild = true
			}
			w.frame.begin(index, thread)
			if err := w.cmd.Begin(); err != nil {
				w.fail(errors.Wrap(err, "begin frame commands"))
				return false
			}
			w.log.Debug("frame begun", "image", index, "thread", threadName(thread))
			return true
		}
		if IsFatal(err) {
			w.fail(err)
			return false
		}
		if rebuilt {
			// One rebuild per call; try again next frame.
			w.log.Debug("swapchain still out of date, skipping frame", "err", err)
			w.needsRebuild = true
			return false
		}
		w.log.Debug("swapchain out of date, rebuilding", "err", err)
		if !w.rebuild(w.size) || w.state != StateReady {
			return false
		}
		rebuilt = true
	}
}

// EndFrame moves the acquired image to the presentable layout and submits
// the frame.
func (w *Window) EndFrame(mode FrameMode, thread Thread) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if mode != FrameModeRender {
		return
	}
	if w.frame.phase != phaseAcquired {
		w.log.Warn("end frame without an acquired image", "thread", threadName(thread))
		return
	}
	if w.frame.finalLayout != vulkan.ImageLayoutPresentSrc {
		w.cmd.TransitionImage(w.acquiredTexture(), w.frame.finalLayout, vulkan.ImageLayoutPresentSrc)
		w.frame.finalLayout = vulkan.ImageLayoutPresentSrc
	}
	if err := w.cmd.End(); err != nil {
		w.fail(errors.Wrap(err, "end frame commands"))
		return
	}
	if err := w.sync.Submit(w.cmd); err != nil {
		w.fail(errors.Wrap(err, "submit frame"))
		return
	}
	w.frame.phase = phaseSubmitted
}

// BeginFlip queues the submitted frame for display.
func (w *Window) BeginFlip() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.frame.phase == phaseSubmitted {
		w.present()
	}
}

// ReadyFlip reports without blocking whether EndFlip would return at once.
func (w *Window) ReadyFlip() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.frame.phase {
	case phaseSubmitted, phasePresented:
		return w.sync.Ready()
	}
	return true
}

// EndFlip waits, up to the flip timeout, for the frame to complete and frees
// the synchronization pair for the next frame.
func (w *Window) EndFlip() {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.frame.phase {
	case phaseSubmitted, phasePresented:
		w.finishFrame()
	}
}

// Clear applies the configured clear values to the acquired image outside
// the render pass.
func (w *Window) Clear(thread Thread) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.frame.phase != phaseAcquired {
		w.log.Warn("clear without an acquired image", "thread", threadName(thread))
		return
	}
	active := w.opts.clearActive
	if active.Has(ClearColor) {
		tex := w.acquiredTexture()
		w.cmd.TransitionImage(tex, w.frame.finalLayout, vulkan.ImageLayoutTransferDstOptimal)
		w.cmd.ClearColorImage(tex, w.opts.clearColor)
		w.frame.finalLayout = vulkan.ImageLayoutTransferDstOptimal
		w.frame.clearMask |= ClearColor
	}

	ds := w.swapchain.depthStencil
	if ds == nil || active&(ClearDepth|ClearStencil) == 0 {
		return
	}
	w.cmd.TransitionImage(ds, vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal)
	w.cmd.ClearDepthStencilImage(ds, w.opts.clearDepth, w.opts.clearStencil)
	w.cmd.TransitionImage(ds, vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutDepthStencilAttachmentOptimal)
	if hasDepth(ds.Format()) {
		w.frame.clearMask |= ClearDepth
	}
	if hasStencil(ds.Format()) {
		w.frame.clearMask |= ClearStencil
	}
}

// SetFinalLayout records the layout the renderer left the acquired image
// in, typically PresentSrc after running the window's render pass.
func (w *Window) SetFinalLayout(layout vulkan.ImageLayout) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.frame.phase == phaseAcquired {
		w.frame.finalLayout = layout
	}
}

func (w *Window) acquiredTexture() Texture {
	return w.swapchain.buffers[w.frame.imageIndex].texture
}

// present hands the image to the display. Stale swapchains are rebuilt at
// the next BeginFrame rather than mid-flip.
func (w *Window) present() {
	err := w.sync.Present(w.swapchain, uint32(w.frame.imageIndex))
	w.frame.phase = phasePresented
	switch {
	case err == nil:
	case errors.Is(err, ErrSwapchainSuboptimal), errors.Is(err, ErrSwapchainOutOfDate):
		w.log.Debug("present reported a stale swapchain", "err", err)
		w.needsRebuild = true
	default:
		w.fail(err)
	}
}

// finishFrame presents the frame if needed and waits for it. It returns
// false when the frame is still in flight after the flip timeout.
func (w *Window) finishFrame() bool {
	if w.frame.phase == phaseSubmitted {
		w.present()
		if w.state == StateClosed {
			return false
		}
	}
	done, err := w.sync.Wait(w.opts.flipTimeout)
	if err != nil {
		w.fail(err)
		return false
	}
	if !done {
		w.log.Warn("frame still in flight", "timeout", w.opts.flipTimeout)
		return false
	}
	w.frame.reset()
	return true
}
