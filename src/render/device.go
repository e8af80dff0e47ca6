package render

import (
	"time"

	"github.com/vulkan-go/vulkan"
)

// NativeWindow is the platform window a surface is bound to. Window creation
// and event pumping live behind it; the controller only asks for the drawable
// size.
type NativeWindow interface {
	// FramebufferSize returns the drawable client area in pixels.
	FramebufferSize() (width, height int)
}

// Resource is any device object released with Destroy.
type Resource interface {
	Destroy()
}

type SurfaceHandle interface{ Resource }

type SwapchainHandle interface{ Resource }

type RenderPassHandle interface{ Resource }

type FramebufferHandle interface{ Resource }

type SemaphoreHandle interface{ Resource }

// FenceHandle is a CPU-visible completion marker.
type FenceHandle interface {
	Resource
	// Signaled polls the fence without blocking.
	Signaled() bool
	// Wait blocks until the fence is signaled or timeout expires. It returns
	// false on timeout.
	Wait(timeout time.Duration) (bool, error)
	Reset() error
}

// Texture is the renderable view of one image: either a swapchain image
// (owned by the swapchain, only the view is released) or a standalone
// attachment with its own memory.
type Texture interface {
	Resource
	Format() vulkan.Format
	Samples() vulkan.SampleCountFlagBits
	Aspect() vulkan.ImageAspectFlags
	Width() uint32
	Height() uint32
}

// CommandBuffer records the commands the controller itself issues each frame.
// The renderer records its own draws into the same buffer between BeginFrame
// and EndFrame.
type CommandBuffer interface {
	Resource
	Begin() error
	End() error
	TransitionImage(tex Texture, from, to vulkan.ImageLayout)
	ClearColorImage(tex Texture, color [4]float32)
	ClearDepthStencilImage(tex Texture, depth float32, stencil uint32)
}

// SurfaceCapabilities is the subset of VkSurfaceCapabilitiesKHR the builder
// negotiates against.
type SurfaceCapabilities struct {
	MinImageCount           uint32
	MaxImageCount           uint32
	CurrentExtent           Extent
	MinImageExtent          Extent
	MaxImageExtent          Extent
	CurrentTransform        vulkan.SurfaceTransformFlagBits
	SupportedCompositeAlpha vulkan.CompositeAlphaFlags
}

// SurfaceSupport is what a device reports for a bound surface.
type SurfaceSupport struct {
	CanPresent   bool
	Capabilities SurfaceCapabilities
	Formats      []vulkan.SurfaceFormat
	PresentModes []vulkan.PresentMode
}

// SwapchainInfo is the negotiated configuration handed to the device.
type SwapchainInfo struct {
	ImageCount     uint32
	Format         vulkan.Format
	ColorSpace     vulkan.ColorSpace
	Extent         Extent
	PresentMode    vulkan.PresentMode
	Transform      vulkan.SurfaceTransformFlagBits
	CompositeAlpha vulkan.CompositeAlphaFlagBits
}

// AttachmentInfo describes a generation-wide attachment image.
type AttachmentInfo struct {
	Format  vulkan.Format
	Samples vulkan.SampleCountFlagBits
	Aspect  vulkan.ImageAspectFlags
	Extent  Extent
}

// Device is the GPU a window presents through. It is passed in explicitly so
// several windows can target different devices and tests can substitute a
// fake.
type Device interface {
	CreateSurface(win NativeWindow) (SurfaceHandle, error)
	QuerySurface(surface SurfaceHandle) (*SurfaceSupport, error)

	// CreateSwapchain passes old (possibly nil) as the retired swapchain.
	CreateSwapchain(surface SurfaceHandle, info *SwapchainInfo, old SwapchainHandle) (SwapchainHandle, error)
	// SwapchainImages creates one color view per swapchain image, in image
	// index order.
	SwapchainImages(swapchain SwapchainHandle, info *SwapchainInfo) ([]Texture, error)

	DepthStencilSupported(format vulkan.Format) bool
	MaxSampleCount() vulkan.SampleCountFlagBits
	CreateAttachment(info *AttachmentInfo) (Texture, error)

	CreateRenderPass(desc *RenderPassDesc) (RenderPassHandle, error)
	CreateFramebuffer(pass RenderPassHandle, attachments []Texture, extent Extent) (FramebufferHandle, error)

	CreateSemaphore() (SemaphoreHandle, error)
	CreateFence(signaled bool) (FenceHandle, error)
	CreateCommandBuffer() (CommandBuffer, error)

	AcquireNextImage(swapchain SwapchainHandle, timeout time.Duration, signal SemaphoreHandle) (uint32, vulkan.Result)
	Submit(cmd CommandBuffer, wait, signal SemaphoreHandle, fence FenceHandle) error
	Present(swapchain SwapchainHandle, imageIndex uint32, wait SemaphoreHandle) vulkan.Result

	WaitIdle() error
}

// Extent is a size in pixels.
type Extent struct {
	Width, Height uint32
}

// IsZero reports whether either dimension is zero.
func (e Extent) IsZero() bool {
	return e.Width == 0 || e.Height == 0
}
