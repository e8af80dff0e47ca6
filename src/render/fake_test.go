package render

import (
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"
)

// fakeDevice is an in-memory Device. It records every create and destroy so
// tests can check ordering and leaks.
type fakeDevice struct {
	support      SurfaceSupport
	maxSamples   vulkan.SampleCountFlagBits
	depthFormats map[vulkan.Format]bool
	extraImages  int

	failCreateSurface   error
	failCreateSwapchain error
	queryResult         vulkan.Result
	failSemaphoreAt     int
	failFenceCreate     error
	failAttachment      error
	failFramebufferAt   int

	acquireResults []vulkan.Result
	presentResults []vulkan.Result
	// completeSubmits signals the frame fence on submit. Turn it off to keep
	// a frame in flight.
	completeSubmits bool

	events      []string
	live        int
	doubleFrees int

	swapchains   []*fakeSwapchain
	renderPasses int
	attachments  []*fakeTexture
	framebuffers int
	semaphores   int
	fences       []*fakeFence
	cmds         []*fakeCommandBuffer
	imageCount   int
	nextImage    uint32

	acquires       int
	acquireTimeout time.Duration
	presents       int
	submits        int
	waitIdles      int
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{
		support: SurfaceSupport{
			CanPresent: true,
			Capabilities: SurfaceCapabilities{
				MinImageCount:           2,
				MaxImageCount:           8,
				CurrentExtent:           Extent{Width: undefinedExtent, Height: undefinedExtent},
				MinImageExtent:          Extent{Width: 1, Height: 1},
				MaxImageExtent:          Extent{Width: 4096, Height: 4096},
				CurrentTransform:        vulkan.SurfaceTransformIdentityBit,
				SupportedCompositeAlpha: vulkan.CompositeAlphaFlags(vulkan.CompositeAlphaOpaqueBit),
			},
			Formats: []vulkan.SurfaceFormat{
				{Format: vulkan.FormatB8g8r8a8Unorm, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
				{Format: vulkan.FormatB8g8r8a8Srgb, ColorSpace: vulkan.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vulkan.PresentMode{vulkan.PresentModeMailbox, vulkan.PresentModeFifo},
		},
		maxSamples: vulkan.SampleCount8Bit,
		depthFormats: map[vulkan.Format]bool{
			vulkan.FormatD24UnormS8Uint: true,
			vulkan.FormatD32Sfloat:      true,
		},
		failSemaphoreAt:   -1,
		failFramebufferAt: -1,
		completeSubmits:   true,
	}
}

type fakeResource struct {
	dev       *fakeDevice
	kind      string
	destroyed bool
}

func (d *fakeDevice) newResource(kind string) fakeResource {
	d.live++
	d.events = append(d.events, "create "+kind)
	return fakeResource{dev: d, kind: kind}
}

func (r *fakeResource) Destroy() {
	if r.destroyed {
		r.dev.doubleFrees++
		return
	}
	r.destroyed = true
	r.dev.live--
	r.dev.events = append(r.dev.events, "destroy "+r.kind)
}

type fakeSwapchain struct {
	fakeResource
	info SwapchainInfo
	old  SwapchainHandle
}

type fakeTexture struct {
	fakeResource
	info AttachmentInfo
}

func (t *fakeTexture) Format() vulkan.Format                { return t.info.Format }
func (t *fakeTexture) Samples() vulkan.SampleCountFlagBits { return t.info.Samples }
func (t *fakeTexture) Aspect() vulkan.ImageAspectFlags     { return t.info.Aspect }
func (t *fakeTexture) Width() uint32                       { return t.info.Extent.Width }
func (t *fakeTexture) Height() uint32                      { return t.info.Extent.Height }

type fakeFramebuffer struct {
	fakeResource
	pass        RenderPassHandle
	attachments []Texture
	extent      Extent
}

type fakeRenderPass struct {
	fakeResource
	desc RenderPassDesc
}

type fakeFence struct {
	fakeResource
	signaled bool
}

func (f *fakeFence) Signaled() bool { return f.signaled }

func (f *fakeFence) Wait(time.Duration) (bool, error) { return f.signaled, nil }

func (f *fakeFence) Reset() error {
	f.signaled = false
	return nil
}

type cmdOp struct {
	op       string
	tex      Texture
	from, to vulkan.ImageLayout
}

type fakeCommandBuffer struct {
	fakeResource
	recording bool
	ops       []cmdOp
}

func (c *fakeCommandBuffer) Begin() error {
	c.recording = true
	c.ops = nil
	return nil
}

func (c *fakeCommandBuffer) End() error {
	if !c.recording {
		return errors.New("command buffer not recording")
	}
	c.recording = false
	return nil
}

func (c *fakeCommandBuffer) TransitionImage(tex Texture, from, to vulkan.ImageLayout) {
	c.ops = append(c.ops, cmdOp{op: "transition", tex: tex, from: from, to: to})
}

func (c *fakeCommandBuffer) ClearColorImage(tex Texture, _ [4]float32) {
	c.ops = append(c.ops, cmdOp{op: "clear color", tex: tex})
}

func (c *fakeCommandBuffer) ClearDepthStencilImage(tex Texture, _ float32, _ uint32) {
	c.ops = append(c.ops, cmdOp{op: "clear depth", tex: tex})
}

func (d *fakeDevice) CreateSurface(NativeWindow) (SurfaceHandle, error) {
	if d.failCreateSurface != nil {
		return nil, d.failCreateSurface
	}
	r := d.newResource("surface")
	return &r, nil
}

func (d *fakeDevice) QuerySurface(SurfaceHandle) (*SurfaceSupport, error) {
	if err := NewError(d.queryResult); err != nil {
		return nil, err
	}
	s := d.support
	s.Formats = append([]vulkan.SurfaceFormat(nil), d.support.Formats...)
	s.PresentModes = append([]vulkan.PresentMode(nil), d.support.PresentModes...)
	return &s, nil
}

func (d *fakeDevice) CreateSwapchain(_ SurfaceHandle, info *SwapchainInfo, old SwapchainHandle) (SwapchainHandle, error) {
	if d.failCreateSwapchain != nil {
		return nil, d.failCreateSwapchain
	}
	sc := &fakeSwapchain{fakeResource: d.newResource("swapchain"), info: *info, old: old}
	d.swapchains = append(d.swapchains, sc)
	return sc, nil
}

func (d *fakeDevice) SwapchainImages(_ SwapchainHandle, info *SwapchainInfo) ([]Texture, error) {
	n := int(info.ImageCount) + d.extraImages
	images := make([]Texture, n)
	for i := range images {
		images[i] = &fakeTexture{
			fakeResource: d.newResource("image"),
			info: AttachmentInfo{
				Format:  info.Format,
				Samples: vulkan.SampleCount1Bit,
				Aspect:  vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
				Extent:  info.Extent,
			},
		}
	}
	d.imageCount = n
	d.nextImage = 0
	return images, nil
}

func (d *fakeDevice) DepthStencilSupported(format vulkan.Format) bool {
	return d.depthFormats[format]
}

func (d *fakeDevice) MaxSampleCount() vulkan.SampleCountFlagBits {
	return d.maxSamples
}

func (d *fakeDevice) CreateAttachment(info *AttachmentInfo) (Texture, error) {
	if d.failAttachment != nil {
		return nil, d.failAttachment
	}
	t := &fakeTexture{fakeResource: d.newResource("attachment"), info: *info}
	d.attachments = append(d.attachments, t)
	return t, nil
}

func (d *fakeDevice) CreateRenderPass(desc *RenderPassDesc) (RenderPassHandle, error) {
	d.renderPasses++
	return &fakeRenderPass{fakeResource: d.newResource("renderpass"), desc: *desc}, nil
}

func (d *fakeDevice) CreateFramebuffer(pass RenderPassHandle, attachments []Texture, extent Extent) (FramebufferHandle, error) {
	if d.failFramebufferAt >= 0 && d.framebuffers == d.failFramebufferAt {
		return nil, errors.New("framebuffer refused")
	}
	d.framebuffers++
	return &fakeFramebuffer{
		fakeResource: d.newResource("framebuffer"),
		pass:         pass,
		attachments:  append([]Texture(nil), attachments...),
		extent:       extent,
	}, nil
}

func (d *fakeDevice) CreateSemaphore() (SemaphoreHandle, error) {
	if d.failSemaphoreAt >= 0 && d.semaphores == d.failSemaphoreAt {
		return nil, errors.New("semaphore refused")
	}
	d.semaphores++
	r := d.newResource("semaphore")
	return &r, nil
}

func (d *fakeDevice) CreateFence(signaled bool) (FenceHandle, error) {
	if d.failFenceCreate != nil {
		return nil, d.failFenceCreate
	}
	f := &fakeFence{fakeResource: d.newResource("fence"), signaled: signaled}
	d.fences = append(d.fences, f)
	return f, nil
}

func (d *fakeDevice) CreateCommandBuffer() (CommandBuffer, error) {
	c := &fakeCommandBuffer{fakeResource: d.newResource("cmd")}
	d.cmds = append(d.cmds, c)
	return c, nil
}

func (d *fakeDevice) AcquireNextImage(_ SwapchainHandle, timeout time.Duration, _ SemaphoreHandle) (uint32, vulkan.Result) {
	d.acquires++
	d.acquireTimeout = timeout
	res := vulkan.Success
	if len(d.acquireResults) > 0 {
		res = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if res != vulkan.Success && res != vulkan.Suboptimal {
		return 0, res
	}
	idx := d.nextImage
	if d.imageCount > 0 {
		d.nextImage = (d.nextImage + 1) % uint32(d.imageCount)
	}
	return idx, res
}

func (d *fakeDevice) Submit(cmd CommandBuffer, _, _ SemaphoreHandle, fence FenceHandle) error {
	d.submits++
	if d.completeSubmits {
		fence.(*fakeFence).signaled = true
	}
	return nil
}

func (d *fakeDevice) Present(SwapchainHandle, uint32, SemaphoreHandle) vulkan.Result {
	d.presents++
	if len(d.presentResults) > 0 {
		res := d.presentResults[0]
		d.presentResults = d.presentResults[1:]
		return res
	}
	return vulkan.Success
}

func (d *fakeDevice) WaitIdle() error {
	d.waitIdles++
	d.events = append(d.events, "wait idle")
	return nil
}

// eventIndex returns the position of the first event equal to e, or -1.
func (d *fakeDevice) eventIndex(e string) int {
	for i, ev := range d.events {
		if ev == e {
			return i
		}
	}
	return -1
}

func (d *fakeDevice) lastEventIndex(e string) int {
	for i := len(d.events) - 1; i >= 0; i-- {
		if d.events[i] == e {
			return i
		}
	}
	return -1
}

type fakeNativeWindow struct {
	width, height int
}

func (w *fakeNativeWindow) FramebufferSize() (int, int) {
	return w.width, w.height
}

// resize changes the native size and notifies win the way a platform
// callback would.
func (w *fakeNativeWindow) resize(win *Window, width, height int) {
	w.width, w.height = width, height
	win.Resize(width, height)
}

type testThread string

func (t testThread) Name() string { return string(t) }

// noDepth is a framebuffer request without depth or stencil.
func noDepth() FrameBufferProperties {
	return FrameBufferProperties{ColorBits: 24, AlphaBits: 8, BackBuffers: 1}
}

func openTestWindow(t *testing.T, dev *fakeDevice, native *fakeNativeWindow, fb FrameBufferProperties, opts ...Option) *Window {
	t.Helper()
	w := NewWindow(dev, native, fb, WindowProperties{
		Title:  "test",
		Width:  native.width,
		Height: native.height,
	}, opts...)
	require.True(t, w.OpenWindow(), "open window: %+v", w.Err())
	return w
}

// runFrame drives one full frame and reports the image index used.
func runFrame(t *testing.T, w *Window) int {
	t.Helper()
	thread := testThread("render")
	require.True(t, w.BeginFrame(FrameModeRender, thread))
	idx := w.ImageIndex()
	w.EndFrame(FrameModeRender, thread)
	w.BeginFlip()
	w.EndFlip()
	return idx
}

func formatEvents(events []string) string {
	return fmt.Sprintf("%q", events)
}
