package vkdevice

import (
	"time"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkdisplay/src/render"
)

type surface struct {
	instance vulkan.Instance
	handle   vulkan.Surface
}

func (s *surface) Destroy() {
	vulkan.DestroySurface(s.instance, s.handle, nil)
}

type swapchain struct {
	dev    *Device
	handle vulkan.Swapchain
}

func (s *swapchain) Destroy() {
	vulkan.DestroySwapchain(s.dev.handle, s.handle, nil)
}

type renderPass struct {
	dev    *Device
	handle vulkan.RenderPass
}

func (p *renderPass) Destroy() {
	vulkan.DestroyRenderPass(p.dev.handle, p.handle, nil)
}

type framebuffer struct {
	dev    *Device
	handle vulkan.Framebuffer
}

func (f *framebuffer) Destroy() {
	vulkan.DestroyFramebuffer(f.dev.handle, f.handle, nil)
}

type semaphore struct {
	dev    *Device
	handle vulkan.Semaphore
}

func (s *semaphore) Destroy() {
	vulkan.DestroySemaphore(s.dev.handle, s.handle, nil)
}

type fence struct {
	dev    *Device
	handle vulkan.Fence
}

func (f *fence) Destroy() {
	vulkan.DestroyFence(f.dev.handle, f.handle, nil)
}

func (f *fence) Signaled() bool {
	return vulkan.GetFenceStatus(f.dev.handle, f.handle) == vulkan.Success
}

func (f *fence) Wait(timeout time.Duration) (bool, error) {
	res := vulkan.WaitForFences(f.dev.handle, 1, []vulkan.Fence{f.handle}, vulkan.True, uint64(timeout.Nanoseconds()))
	switch res {
	case vulkan.Success:
		return true, nil
	case vulkan.Timeout:
		return false, nil
	}
	return false, errors.Wrap(vulkan.Error(res), "wait for fence")
}

func (f *fence) Reset() error {
	if res := vulkan.ResetFences(f.dev.handle, 1, []vulkan.Fence{f.handle}); res != vulkan.Success {
		return errors.Wrap(vulkan.Error(res), "reset fence")
	}
	return nil
}

// texture is an image view. Swapchain images belong to the swapchain, so
// only attachments (owned) release image and memory.
type texture struct {
	dev     *Device
	image   vulkan.Image
	view    vulkan.ImageView
	memory  vulkan.DeviceMemory
	owned   bool
	format  vulkan.Format
	samples vulkan.SampleCountFlagBits
	aspect  vulkan.ImageAspectFlags
	extent  render.Extent
}

func (t *texture) Destroy() {
	if t.view != vulkan.NullImageView {
		vulkan.DestroyImageView(t.dev.handle, t.view, nil)
		t.view = vulkan.NullImageView
	}
	if !t.owned {
		return
	}
	if t.image != vulkan.NullImage {
		vulkan.DestroyImage(t.dev.handle, t.image, nil)
		t.image = vulkan.NullImage
	}
	if t.memory != vulkan.NullDeviceMemory {
		vulkan.FreeMemory(t.dev.handle, t.memory, nil)
		t.memory = vulkan.NullDeviceMemory
	}
}

func (t *texture) Format() vulkan.Format                { return t.format }
func (t *texture) Samples() vulkan.SampleCountFlagBits { return t.samples }
func (t *texture) Aspect() vulkan.ImageAspectFlags     { return t.aspect }
func (t *texture) Width() uint32                       { return t.extent.Width }
func (t *texture) Height() uint32                      { return t.extent.Height }
