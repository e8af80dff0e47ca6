package render

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

// SwapBuffer is one swapchain image: its renderable view and the framebuffer
// binding it to the render pass.
type SwapBuffer struct {
	texture     Texture
	framebuffer FramebufferHandle
}

func (b *SwapBuffer) Texture() Texture {
	return b.texture
}

func (b *SwapBuffer) Framebuffer() FramebufferHandle {
	return b.framebuffer
}

// Swapchain is one generation of presentable images together with the
// attachments shared by all of them.
type Swapchain struct {
	dev    Device
	handle SwapchainHandle
	info   SwapchainInfo

	// requested is the client size the generation was built for. It can
	// differ from extent when the surface clamps.
	requested   Extent
	extent      Extent
	format      vulkan.SurfaceFormat
	presentMode vulkan.PresentMode

	buffers      []SwapBuffer
	msColor      Texture
	depthStencil Texture
}

// SwapchainParams carries what the builder negotiates against besides the
// surface itself.
type SwapchainParams struct {
	FrameBuffer      *FrameBufferProperties
	PreferredFormats []vulkan.SurfaceFormat
	SyncVideo        bool
}

// NegotiateSwapchain picks image count, format, present mode and extent for a
// window of the requested size. It fails with ErrZeroExtent when the window
// or the surface has no area.
func NegotiateSwapchain(support *SurfaceSupport, requested Extent, params *SwapchainParams) (*SwapchainInfo, error) {
	caps := &support.Capabilities
	extent := chooseExtent(caps, requested)
	if extent.IsZero() {
		return nil, errors.WithStack(ErrZeroExtent)
	}
	format := chooseSurfaceFormat(support.Formats, formatPreferences(params.FrameBuffer, params.PreferredFormats))
	transform := caps.CurrentTransform
	if transform == 0 {
		transform = vulkan.SurfaceTransformIdentityBit
	}
	return &SwapchainInfo{
		ImageCount:     chooseImageCount(caps, params.FrameBuffer.BackBuffers),
		Format:         format.Format,
		ColorSpace:     format.ColorSpace,
		Extent:         extent,
		PresentMode:    choosePresentMode(support.PresentModes, params.SyncVideo),
		Transform:      transform,
		CompositeAlpha: chooseCompositeAlpha(caps),
	}, nil
}

// BuildSwapchain creates a swapchain generation on surface. When previous is
// set its per-image resources are released first, its handle is handed to the
// device as the retired swapchain and then destroyed, whether or not the new
// generation could be built.
func BuildSwapchain(dev Device, surface *Surface, requested Extent, previous *Swapchain, params *SwapchainParams) (*Swapchain, error) {
	var old SwapchainHandle
	if previous != nil {
		previous.Release()
		old = previous.handle
		defer previous.Destroy()
	}
	if requested.IsZero() {
		return nil, errors.WithStack(ErrZeroExtent)
	}
	if err := surface.Refresh(); err != nil {
		return nil, err
	}
	info, err := NegotiateSwapchain(surface.Support(), requested, params)
	if err != nil {
		return nil, err
	}

	handle, err := dev.CreateSwapchain(surface.Handle(), info, old)
	if err != nil {
		return nil, errors.WithStack(fmt.Errorf("%w: %w", ErrSwapchainCreationFailed, err))
	}
	images, err := dev.SwapchainImages(handle, info)
	if err != nil {
		handle.Destroy()
		return nil, errors.WithStack(fmt.Errorf("%w: swapchain images: %w", ErrSwapchainCreationFailed, err))
	}
	if len(images) == 0 {
		handle.Destroy()
		return nil, errors.Wrap(ErrSwapchainCreationFailed, "swapchain has no images")
	}
	// The device may hand out more images than asked for.
	info.ImageCount = uint32(len(images))

	s := &Swapchain{
		dev:         dev,
		handle:      handle,
		info:        *info,
		requested:   requested,
		extent:      info.Extent,
		format:      vulkan.SurfaceFormat{Format: info.Format, ColorSpace: info.ColorSpace},
		presentMode: info.PresentMode,
		buffers:     make([]SwapBuffer, len(images)),
	}
	for i, img := range images {
		s.buffers[i].texture = img
	}
	return s, nil
}

// Attach creates the shared multisample and depth-stencil targets the pass
// asks for and one framebuffer per image. On failure everything Attach
// created is released again.
func (s *Swapchain) Attach(pass *renderPass) (err error) {
	defer func() {
		if err != nil {
			s.releaseFramebuffers()
			s.releaseTargets()
		}
	}()

	desc := pass.desc
	if desc.HasResolve() {
		s.msColor, err = s.dev.CreateAttachment(&AttachmentInfo{
			Format:  s.format.Format,
			Samples: desc.Samples,
			Aspect:  vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			Extent:  s.extent,
		})
		if err != nil {
			return errors.Wrap(err, "create multisample color target")
		}
	}
	if desc.HasDepthStencil() {
		s.depthStencil, err = s.dev.CreateAttachment(&AttachmentInfo{
			Format:  desc.DepthStencilFormat,
			Samples: desc.Samples,
			Aspect:  depthStencilAspect(desc.DepthStencilFormat),
			Extent:  s.extent,
		})
		if err != nil {
			return errors.Wrap(err, "create depth-stencil target")
		}
	}
	for i := range s.buffers {
		b := &s.buffers[i]
		views := desc.FramebufferAttachments(b.texture, s.msColor, s.depthStencil)
		b.framebuffer, err = s.dev.CreateFramebuffer(pass.handle, views, s.extent)
		if err != nil {
			return errors.Wrapf(err, "create framebuffer %d", i)
		}
	}
	return nil
}

func (s *Swapchain) releaseFramebuffers() {
	for i := len(s.buffers) - 1; i >= 0; i-- {
		if fb := s.buffers[i].framebuffer; fb != nil {
			fb.Destroy()
			s.buffers[i].framebuffer = nil
		}
	}
}

func (s *Swapchain) releaseTargets() {
	if s.msColor != nil {
		s.msColor.Destroy()
		s.msColor = nil
	}
	if s.depthStencil != nil {
		s.depthStencil.Destroy()
		s.depthStencil = nil
	}
}

// Release destroys the swap buffers and then the shared targets. The
// swapchain handle stays valid, so it can still retire into a replacement.
func (s *Swapchain) Release() {
	s.releaseFramebuffers()
	for i := len(s.buffers) - 1; i >= 0; i-- {
		if tex := s.buffers[i].texture; tex != nil {
			tex.Destroy()
		}
	}
	s.buffers = nil
	s.releaseTargets()
}

// Destroy releases every per-image resource and then the swapchain handle.
func (s *Swapchain) Destroy() {
	s.Release()
	if s.handle != nil {
		s.handle.Destroy()
		s.handle = nil
	}
}

func (s *Swapchain) Handle() SwapchainHandle {
	return s.handle
}

func (s *Swapchain) Info() SwapchainInfo {
	return s.info
}

func (s *Swapchain) Extent() Extent {
	return s.extent
}

func (s *Swapchain) Format() vulkan.SurfaceFormat {
	return s.format
}

func (s *Swapchain) PresentMode() vulkan.PresentMode {
	return s.presentMode
}

func (s *Swapchain) Buffers() []SwapBuffer {
	return s.buffers
}

// MultisampleTarget is nil unless the pass resolves.
func (s *Swapchain) MultisampleTarget() Texture {
	return s.msColor
}

func (s *Swapchain) DepthStencilTarget() Texture {
	return s.depthStencil
}
