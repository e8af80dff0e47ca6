package render

import (
	"github.com/vulkan-go/vulkan"
)

// undefinedExtent is the currentExtent value meaning the swapchain decides
// the size.
const undefinedExtent = ^uint32(0)

// chooseImageCount asks for one image more than the back buffers (the front
// buffer) and clamps to what the surface allows. MaxImageCount 0 means no
// upper bound.
func chooseImageCount(caps *SurfaceCapabilities, backBuffers int) uint32 {
	if backBuffers < 1 {
		backBuffers = 1
	}
	n := uint32(backBuffers) + 1
	if n < caps.MinImageCount {
		n = caps.MinImageCount
	}
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// formatPreferences is the ordered list of surface formats to try: the
// application's own list first, then defaults derived from fb.
func formatPreferences(fb *FrameBufferProperties, explicit []vulkan.SurfaceFormat) []vulkan.SurfaceFormat {
	prefs := append([]vulkan.SurfaceFormat(nil), explicit...)
	add := func(f vulkan.Format) {
		prefs = append(prefs, vulkan.SurfaceFormat{Format: f, ColorSpace: vulkan.ColorSpaceSrgbNonlinear})
	}
	if fb.SRGBColor {
		add(vulkan.FormatB8g8r8a8Srgb)
		add(vulkan.FormatR8g8b8a8Srgb)
	}
	if fb.ColorBits > 24 {
		add(vulkan.FormatA2b10g10r10UnormPack32)
	}
	add(vulkan.FormatB8g8r8a8Unorm)
	add(vulkan.FormatR8g8b8a8Unorm)
	return prefs
}

// chooseSurfaceFormat walks prefs in order and returns the first one the
// surface supports. A lone FormatUndefined entry means any format goes.
// Without a match it falls back to the first supported pair, preferring an
// sRGB-nonlinear color space.
func chooseSurfaceFormat(supported, prefs []vulkan.SurfaceFormat) vulkan.SurfaceFormat {
	if len(supported) == 1 && supported[0].Format == vulkan.FormatUndefined && len(prefs) > 0 {
		return vulkan.SurfaceFormat{Format: prefs[0].Format, ColorSpace: prefs[0].ColorSpace}
	}
	for _, p := range prefs {
		for _, s := range supported {
			if s.Format == p.Format && s.ColorSpace == p.ColorSpace {
				return vulkan.SurfaceFormat{Format: s.Format, ColorSpace: s.ColorSpace}
			}
		}
	}
	for _, s := range supported {
		if s.ColorSpace == vulkan.ColorSpaceSrgbNonlinear {
			return vulkan.SurfaceFormat{Format: s.Format, ColorSpace: s.ColorSpace}
		}
	}
	return vulkan.SurfaceFormat{Format: supported[0].Format, ColorSpace: supported[0].ColorSpace}
}

var (
	syncedPresentModes   = []vulkan.PresentMode{vulkan.PresentModeFifo, vulkan.PresentModeFifoRelaxed, vulkan.PresentModeMailbox}
	unsyncedPresentModes = []vulkan.PresentMode{vulkan.PresentModeMailbox, vulkan.PresentModeImmediate, vulkan.PresentModeFifoRelaxed, vulkan.PresentModeFifo}
)

// choosePresentMode prefers vertical-sync-aligned modes unless syncVideo is
// off. FIFO is the one mode every device must support.
func choosePresentMode(supported []vulkan.PresentMode, syncVideo bool) vulkan.PresentMode {
	order := syncedPresentModes
	if !syncVideo {
		order = unsyncedPresentModes
	}
	for _, want := range order {
		for _, m := range supported {
			if m == want {
				return m
			}
		}
	}
	if len(supported) > 0 {
		return supported[0]
	}
	return vulkan.PresentModeFifo
}

// chooseExtent returns the swapchain size for a window of the requested size.
// A zero result means the window has no area.
func chooseExtent(caps *SurfaceCapabilities, requested Extent) Extent {
	if requested.IsZero() || caps.MaxImageExtent.IsZero() {
		return Extent{}
	}
	if caps.CurrentExtent.Width != undefinedExtent {
		return caps.CurrentExtent
	}
	return Extent{
		Width:  clamp(requested.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(requested.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

var compositeAlphaOrder = []vulkan.CompositeAlphaFlagBits{
	vulkan.CompositeAlphaOpaqueBit,
	vulkan.CompositeAlphaInheritBit,
	vulkan.CompositeAlphaPreMultipliedBit,
	vulkan.CompositeAlphaPostMultipliedBit,
}

func chooseCompositeAlpha(caps *SurfaceCapabilities) vulkan.CompositeAlphaFlagBits {
	for _, a := range compositeAlphaOrder {
		if caps.SupportedCompositeAlpha&vulkan.CompositeAlphaFlags(a) != 0 {
			return a
		}
	}
	return vulkan.CompositeAlphaOpaqueBit
}

// depthStencilCandidates lists formats able to hold the requested depth and
// stencil bits, best fit first. It is empty when neither is requested.
func depthStencilCandidates(fb *FrameBufferProperties) []vulkan.Format {
	switch {
	case fb.DepthBits <= 0 && fb.StencilBits <= 0:
		return nil
	case fb.StencilBits > 0 && fb.DepthBits > 24:
		return []vulkan.Format{vulkan.FormatD32SfloatS8Uint, vulkan.FormatD24UnormS8Uint}
	case fb.StencilBits > 0:
		return []vulkan.Format{vulkan.FormatD24UnormS8Uint, vulkan.FormatD32SfloatS8Uint, vulkan.FormatD16UnormS8Uint}
	case fb.DepthBits > 24:
		return []vulkan.Format{vulkan.FormatD32Sfloat, vulkan.FormatD32SfloatS8Uint, vulkan.FormatD24UnormS8Uint}
	case fb.DepthBits > 16:
		return []vulkan.Format{vulkan.FormatD24UnormS8Uint, vulkan.FormatX8D24UnormPack32, vulkan.FormatD32Sfloat, vulkan.FormatD32SfloatS8Uint}
	default:
		return []vulkan.Format{vulkan.FormatD16Unorm, vulkan.FormatD24UnormS8Uint, vulkan.FormatD32Sfloat}
	}
}

// chooseDepthStencilFormat returns FormatUndefined when no depth or stencil
// is requested, and false when one is but the device supports none.
func chooseDepthStencilFormat(dev Device, fb *FrameBufferProperties) (vulkan.Format, bool) {
	candidates := depthStencilCandidates(fb)
	if len(candidates) == 0 {
		return vulkan.FormatUndefined, true
	}
	for _, f := range candidates {
		if dev.DepthStencilSupported(f) {
			return f, true
		}
	}
	return vulkan.FormatUndefined, false
}

func hasStencil(f vulkan.Format) bool {
	switch f {
	case vulkan.FormatD16UnormS8Uint, vulkan.FormatD24UnormS8Uint, vulkan.FormatD32SfloatS8Uint, vulkan.FormatS8Uint:
		return true
	}
	return false
}

func hasDepth(f vulkan.Format) bool {
	switch f {
	case vulkan.FormatD16Unorm, vulkan.FormatX8D24UnormPack32, vulkan.FormatD32Sfloat,
		vulkan.FormatD16UnormS8Uint, vulkan.FormatD24UnormS8Uint, vulkan.FormatD32SfloatS8Uint:
		return true
	}
	return false
}

func depthStencilAspect(f vulkan.Format) vulkan.ImageAspectFlags {
	var aspect vulkan.ImageAspectFlags
	if hasDepth(f) {
		aspect |= vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit)
	}
	if hasStencil(f) {
		aspect |= vulkan.ImageAspectFlags(vulkan.ImageAspectStencilBit)
	}
	return aspect
}

// chooseSampleCount rounds the requested sample count down to a power of two
// no larger than max.
func chooseSampleCount(requested int, max vulkan.SampleCountFlagBits) vulkan.SampleCountFlagBits {
	count := vulkan.SampleCount1Bit
	for next := vulkan.SampleCount2Bit; next <= vulkan.SampleCount64Bit; next <<= 1 {
		if int(next) > requested || next > max {
			break
		}
		count = next
	}
	return count
}
