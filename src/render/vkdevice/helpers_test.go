package vkdevice

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vulkan-go/vulkan"

	"vkdisplay/src/render"
)

func TestSafeStrings(t *testing.T) {
	for idx, tc := range []struct {
		in, want string
	}{
		{"", "\x00"},
		{"VK_KHR_surface", "VK_KHR_surface\x00"},
		{"VK_KHR_swapchain\x00", "VK_KHR_swapchain\x00"},
	} {
		t.Run(fmt.Sprintf("%d/%q", idx, tc.in), func(t *testing.T) {
			require.Equal(t, tc.want, safeString(tc.in))
		})
	}
	require.Equal(t, []string{"a\x00", "b\x00"}, safeStrings([]string{"a", "b"}))
	require.Empty(t, safeStrings(nil))
}

func TestLayoutAccess(t *testing.T) {
	for idx, tc := range []struct {
		layout vulkan.ImageLayout
		stage  vulkan.PipelineStageFlagBits
		access bool
	}{
		{vulkan.ImageLayoutUndefined, vulkan.PipelineStageTopOfPipeBit, false},
		{vulkan.ImageLayoutTransferDstOptimal, vulkan.PipelineStageTransferBit, true},
		{vulkan.ImageLayoutColorAttachmentOptimal, vulkan.PipelineStageColorAttachmentOutputBit, true},
		{vulkan.ImageLayoutPresentSrc, vulkan.PipelineStageBottomOfPipeBit, false},
	} {
		t.Run(fmt.Sprintf("%d", idx), func(t *testing.T) {
			stage, access := layoutAccess(tc.layout)
			require.Equal(t, vulkan.PipelineStageFlags(tc.stage), stage)
			require.Equal(t, tc.access, access != 0)
		})
	}
}

func TestSubresourceCoversOneImage(t *testing.T) {
	r := subresource(vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit))
	require.Equal(t, vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit), r.AspectMask)
	require.Equal(t, uint32(1), r.LevelCount)
	require.Equal(t, uint32(1), r.LayerCount)
}

func TestBarrierScopes(t *testing.T) {
	transfer := vulkan.PipelineStageFlags(vulkan.PipelineStageTransferBit)
	colorOutput := vulkan.PipelineStageFlags(vulkan.PipelineStageColorAttachmentOutputBit)
	for idx, tc := range []struct {
		from, to  vulkan.ImageLayout
		srcStage  vulkan.PipelineStageFlags
		srcAccess bool
	}{
		{vulkan.ImageLayoutUndefined, vulkan.ImageLayoutTransferDstOptimal, transfer, false},
		{vulkan.ImageLayoutUndefined, vulkan.ImageLayoutPresentSrc, colorOutput, false},
		{vulkan.ImageLayoutUndefined, vulkan.ImageLayoutColorAttachmentOptimal, colorOutput, false},
		{vulkan.ImageLayoutTransferDstOptimal, vulkan.ImageLayoutPresentSrc, transfer, true},
	} {
		t.Run(fmt.Sprintf("%d/%d->%d", idx, tc.from, tc.to), func(t *testing.T) {
			srcStage, srcAccess, dstStage, _ := barrierScopes(tc.from, tc.to)
			require.Equal(t, tc.srcStage, srcStage)
			require.Equal(t, tc.srcAccess, srcAccess != 0)
			wantDst, _ := layoutAccess(tc.to)
			require.Equal(t, wantDst, dstStage)
			if tc.from == vulkan.ImageLayoutUndefined {
				// The first use of an acquired image must chain after the
				// image-available wait.
				require.NotZero(t, srcStage&acquireWaitStages)
			}
		})
	}
}

func TestAttachmentUsage(t *testing.T) {
	color := vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit)
	depthStencil := vulkan.ImageAspectFlags(vulkan.ImageAspectDepthBit | vulkan.ImageAspectStencilBit)
	transient := vulkan.ImageUsageFlags(vulkan.ImageUsageTransientAttachmentBit)
	transferDst := vulkan.ImageUsageFlags(vulkan.ImageUsageTransferDstBit)
	for idx, tc := range []struct {
		name    string
		aspect  vulkan.ImageAspectFlags
		samples vulkan.SampleCountFlagBits
		want    vulkan.ImageUsageFlags
	}{
		{"multisampled color", color, vulkan.SampleCount4Bit,
			vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit) | transient},
		{"single-sampled color", color, vulkan.SampleCount1Bit,
			vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit)},
		{"multisampled depth-stencil", depthStencil, vulkan.SampleCount4Bit,
			vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit) | transferDst},
		{"depth-stencil", depthStencil, vulkan.SampleCount1Bit,
			vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit) | transferDst},
	} {
		t.Run(fmt.Sprintf("%d/%s", idx, tc.name), func(t *testing.T) {
			usage := attachmentUsage(&render.AttachmentInfo{Aspect: tc.aspect, Samples: tc.samples})
			require.Equal(t, tc.want, usage)
			if usage&transient != 0 {
				require.Zero(t, usage&transferDst, "transient images take attachment usage only")
			}
		})
	}
}
