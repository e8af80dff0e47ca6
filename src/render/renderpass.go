package render

import (
	"github.com/vulkan-go/vulkan"
)

// RenderPassDesc is the immutable attachment layout of a window's render
// pass. Attachment order: color (multisampled when Samples > 1), then the
// optional depth-stencil, then the resolve target when multisampling.
type RenderPassDesc struct {
	ColorFormat        vulkan.Format
	Samples            vulkan.SampleCountFlagBits
	DepthStencilFormat vulkan.Format
	LoadColor          bool
	LoadDepth          bool
	PreserveDepth      bool
}

// BuildRenderPass describes a pass that clears color and depth-stencil every
// frame and discards depth after use. Pass FormatUndefined for no
// depth-stencil attachment.
func BuildRenderPass(colorFormat vulkan.Format, samples vulkan.SampleCountFlagBits, depthStencilFormat vulkan.Format) *RenderPassDesc {
	if samples < vulkan.SampleCount1Bit {
		samples = vulkan.SampleCount1Bit
	}
	return &RenderPassDesc{
		ColorFormat:        colorFormat,
		Samples:            samples,
		DepthStencilFormat: depthStencilFormat,
	}
}

// WithLoadedColor returns a copy that loads the previous color contents.
func (d RenderPassDesc) WithLoadedColor() *RenderPassDesc {
	d.LoadColor = true
	return &d
}

// WithLoadedDepth returns a copy that loads the previous depth-stencil
// contents.
func (d RenderPassDesc) WithLoadedDepth() *RenderPassDesc {
	d.LoadDepth = true
	return &d
}

// WithPreservedDepth returns a copy that stores depth-stencil at pass end.
func (d RenderPassDesc) WithPreservedDepth() *RenderPassDesc {
	d.PreserveDepth = true
	return &d
}

func (d *RenderPassDesc) HasResolve() bool {
	return d.Samples > vulkan.SampleCount1Bit
}

func (d *RenderPassDesc) HasDepthStencil() bool {
	return d.DepthStencilFormat != vulkan.FormatUndefined
}

// Compatible reports whether a pass built from d can serve other without
// being rebuilt.
func (d *RenderPassDesc) Compatible(other *RenderPassDesc) bool {
	return other != nil && *d == *other
}

func (d *RenderPassDesc) ColorAttachment() uint32 {
	return 0
}

func (d *RenderPassDesc) DepthStencilAttachment() (uint32, bool) {
	return 1, d.HasDepthStencil()
}

func (d *RenderPassDesc) ResolveAttachment() (uint32, bool) {
	if !d.HasResolve() {
		return 0, false
	}
	if d.HasDepthStencil() {
		return 2, true
	}
	return 1, true
}

func loadOp(load bool) vulkan.AttachmentLoadOp {
	if load {
		return vulkan.AttachmentLoadOpLoad
	}
	return vulkan.AttachmentLoadOpClear
}

// Attachments returns the attachment descriptions in framebuffer order.
func (d *RenderPassDesc) Attachments() []vulkan.AttachmentDescription {
	color := vulkan.AttachmentDescription{
		Format:         d.ColorFormat,
		Samples:        d.Samples,
		LoadOp:         loadOp(d.LoadColor),
		StoreOp:        vulkan.AttachmentStoreOpStore,
		StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
		StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
		InitialLayout:  vulkan.ImageLayoutUndefined,
		FinalLayout:    vulkan.ImageLayoutPresentSrc,
	}
	if d.LoadColor {
		color.InitialLayout = vulkan.ImageLayoutColorAttachmentOptimal
	}
	if d.HasResolve() {
		// The multisampled target is resolved into the swapchain image and
		// never read back.
		color.StoreOp = vulkan.AttachmentStoreOpDontCare
		color.FinalLayout = vulkan.ImageLayoutColorAttachmentOptimal
	}
	attachments := []vulkan.AttachmentDescription{color}

	if d.HasDepthStencil() {
		store := vulkan.AttachmentStoreOpDontCare
		if d.PreserveDepth {
			store = vulkan.AttachmentStoreOpStore
		}
		depth := vulkan.AttachmentDescription{
			Format:         d.DepthStencilFormat,
			Samples:        d.Samples,
			LoadOp:         loadOp(d.LoadDepth),
			StoreOp:        store,
			StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
			StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
			InitialLayout:  vulkan.ImageLayoutUndefined,
			FinalLayout:    vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		}
		if hasStencil(d.DepthStencilFormat) {
			depth.StencilLoadOp = depth.LoadOp
			depth.StencilStoreOp = store
		}
		if d.LoadDepth {
			depth.InitialLayout = vulkan.ImageLayoutDepthStencilAttachmentOptimal
		}
		attachments = append(attachments, depth)
	}

	if d.HasResolve() {
		attachments = append(attachments, vulkan.AttachmentDescription{
			Format:         d.ColorFormat,
			Samples:        vulkan.SampleCount1Bit,
			LoadOp:         vulkan.AttachmentLoadOpDontCare,
			StoreOp:        vulkan.AttachmentStoreOpStore,
			StencilLoadOp:  vulkan.AttachmentLoadOpDontCare,
			StencilStoreOp: vulkan.AttachmentStoreOpDontCare,
			InitialLayout:  vulkan.ImageLayoutUndefined,
			FinalLayout:    vulkan.ImageLayoutPresentSrc,
		})
	}
	return attachments
}

// Subpass returns the single graphics subpass of the pass.
func (d *RenderPassDesc) Subpass() vulkan.SubpassDescription {
	subpass := vulkan.SubpassDescription{
		PipelineBindPoint:    vulkan.PipelineBindPointGraphics,
		ColorAttachmentCount: 1,
		PColorAttachments: []vulkan.AttachmentReference{{
			Attachment: d.ColorAttachment(),
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}},
	}
	if idx, ok := d.DepthStencilAttachment(); ok {
		subpass.PDepthStencilAttachment = &vulkan.AttachmentReference{
			Attachment: idx,
			Layout:     vulkan.ImageLayoutDepthStencilAttachmentOptimal,
		}
	}
	if idx, ok := d.ResolveAttachment(); ok {
		subpass.PResolveAttachments = []vulkan.AttachmentReference{{
			Attachment: idx,
			Layout:     vulkan.ImageLayoutColorAttachmentOptimal,
		}}
	}
	return subpass
}

// Dependencies orders the pass after the presentation engine is done reading
// the image.
func (d *RenderPassDesc) Dependencies() []vulkan.SubpassDependency {
	stages := vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)
	access := vulkan.AccessFlags(vulkan.AccessColorAttachmentWriteBit)
	if d.HasDepthStencil() {
		stages |= vulkan.PipelineStageFlags(vulkan.PipelineStageEarlyFragmentTestsBit)
		access |= vulkan.AccessFlags(vulkan.AccessDepthStencilAttachmentWriteBit)
	}
	return []vulkan.SubpassDependency{{
		SrcSubpass:    vulkan.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  stages,
		DstStageMask:  stages,
		DstAccessMask: access,
	}}
}

// FramebufferAttachments orders the views of one swap buffer to match
// Attachments. msColor and depthStencil are the generation-wide targets and
// may be nil when the pass does not use them.
func (d *RenderPassDesc) FramebufferAttachments(image, msColor, depthStencil Texture) []Texture {
	views := make([]Texture, 0, 3)
	if d.HasResolve() {
		views = append(views, msColor)
	} else {
		views = append(views, image)
	}
	if d.HasDepthStencil() {
		views = append(views, depthStencil)
	}
	if d.HasResolve() {
		views = append(views, image)
	}
	return views
}

// renderPass pairs a description with the device object built from it.
type renderPass struct {
	desc   *RenderPassDesc
	handle RenderPassHandle
}

func (p *renderPass) destroy() {
	if p.handle != nil {
		p.handle.Destroy()
		p.handle = nil
	}
}
