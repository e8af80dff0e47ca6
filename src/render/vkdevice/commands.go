package vkdevice

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkdisplay/src/render"
)

type commandBuffer struct {
	dev    *Device
	handle vulkan.CommandBuffer
}

func (c *commandBuffer) Destroy() {
	vulkan.FreeCommandBuffers(c.dev.handle, c.dev.pool, 1, []vulkan.CommandBuffer{c.handle})
}

func (c *commandBuffer) Begin() error {
	if res := vulkan.ResetCommandBuffer(c.handle, 0); res != vulkan.Success {
		return errors.Wrap(vulkan.Error(res), "reset command buffer")
	}
	info := vulkan.CommandBufferBeginInfo{
		SType: vulkan.StructureTypeCommandBufferBeginInfo,
		Flags: vulkan.CommandBufferUsageFlags(vulkan.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vulkan.BeginCommandBuffer(c.handle, &info); res != vulkan.Success {
		return errors.Wrap(vulkan.Error(res), "begin command buffer")
	}
	return nil
}

func (c *commandBuffer) End() error {
	if res := vulkan.EndCommandBuffer(c.handle); res != vulkan.Success {
		return errors.Wrap(vulkan.Error(res), "end command buffer")
	}
	return nil
}

// layoutAccess returns the stage and access that last touch (as source) or
// first touch (as destination) an image in layout.
func layoutAccess(layout vulkan.ImageLayout) (vulkan.PipelineStageFlags, vulkan.AccessFlags) {
	switch layout {
	case vulkan.ImageLayoutTransferDstOptimal:
		return vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit),
			vulkan.AccessFlags(vulkan.AccessTransferWriteBit)
	case vulkan.ImageLayoutColorAttachmentOptimal:
		return vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit),
			vulkan.AccessFlags(vulkan.AccessColorAttachmentReadBit | vulkan.AccessColorAttachmentWriteBit)
	case vulkan.ImageLayoutDepthStencilAttachmentOptimal:
		return vulkan.PipelineStageFlags(vulkan.PipelineStageEarlyFragmentTestsBit | vulkan.PipelineStageLateFragmentTestsBit),
			vulkan.AccessFlags(vulkan.AccessDepthStencilAttachmentReadBit | vulkan.AccessDepthStencilAttachmentWriteBit)
	case vulkan.ImageLayoutPresentSrc:
		return vulkan.PipelineStageFlags(vulkan.PipelineStageBottomOfPipeBit), 0
	}
	return vulkan.PipelineStageFlags(vulkan.PipelineStageTopOfPipeBit), 0
}

// acquireWaitStages are the stages a frame submit waits on the
// image-available semaphore at.
var acquireWaitStages = vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit | vulkan.PipelineStageTransferBit)

// barrierScopes returns the stage and access masks of a layout transition.
// Leaving Undefined starts from the stage the acquire semaphore is waited at,
// so the transition runs after the display released the image.
func barrierScopes(from, to vulkan.ImageLayout) (srcStage vulkan.PipelineStageFlags, srcAccess vulkan.AccessFlags, dstStage vulkan.PipelineStageFlags, dstAccess vulkan.AccessFlags) {
	srcStage, srcAccess = layoutAccess(from)
	dstStage, dstAccess = layoutAccess(to)
	if from == vulkan.ImageLayoutUndefined {
		srcAccess = 0
		if to == vulkan.ImageLayoutTransferDstOptimal {
			srcStage = vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
		} else {
			srcStage = vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)
		}
	}
	return srcStage, srcAccess, dstStage, dstAccess
}

func (c *commandBuffer) TransitionImage(tex render.Texture, from, to vulkan.ImageLayout) {
	t := tex.(*texture)
	srcStage, srcAccess, dstStage, dstAccess := barrierScopes(from, to)
	barrier := vulkan.ImageMemoryBarrier{
		SType:               vulkan.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       srcAccess,
		DstAccessMask:       dstAccess,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		DstQueueFamilyIndex: vulkan.QueueFamilyIgnored,
		Image:               t.image,
		SubresourceRange:    subresource(t.aspect),
	}
	vulkan.CmdPipelineBarrier(c.handle, srcStage, dstStage, 0,
		0, nil,
		0, nil,
		1, []vulkan.ImageMemoryBarrier{barrier})
}

func (c *commandBuffer) ClearColorImage(tex render.Texture, color [4]float32) {
	t := tex.(*texture)
	var value vulkan.ClearColorValue
	*(*[4]float32)(unsafe.Pointer(&value)) = color
	vulkan.CmdClearColorImage(c.handle, t.image, vulkan.ImageLayoutTransferDstOptimal, &value,
		1, []vulkan.ImageSubresourceRange{subresource(t.aspect)})
}

func (c *commandBuffer) ClearDepthStencilImage(tex render.Texture, depth float32, stencil uint32) {
	t := tex.(*texture)
	value := vulkan.ClearDepthStencilValue{Depth: depth, Stencil: stencil}
	vulkan.CmdClearDepthStencilImage(c.handle, t.image, vulkan.ImageLayoutTransferDstOptimal, &value,
		1, []vulkan.ImageSubresourceRange{subresource(t.aspect)})
}
