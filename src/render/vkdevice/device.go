// Package vkdevice implements render.Device on top of the vulkan-go
// bindings.
package vkdevice

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"

	"vkdisplay/src/render"
)

// SurfaceSource is a native window able to create a Vulkan surface for
// itself.
type SurfaceSource interface {
	VulkanSurface(instance vulkan.Instance) (vulkan.Surface, error)
}

// Device is one logical device with a single graphics queue that is also
// used for presentation.
type Device struct {
	instance    vulkan.Instance
	gpu         vulkan.PhysicalDevice
	props       vulkan.PhysicalDeviceProperties
	memProps    vulkan.PhysicalDeviceMemoryProperties
	handle      vulkan.Device
	queueFamily uint32
	queue       vulkan.Queue
	pool        vulkan.CommandPool
	log         *slog.Logger
}

var _ render.Device = (*Device)(nil)

// Open picks the first physical device with a graphics queue and creates a
// logical device with the swapchain extension enabled.
func Open(instance vulkan.Instance, log *slog.Logger) (*Device, error) {
	if log == nil {
		log = render.Logger()
	}
	d := &Device{instance: instance, log: log}
	if err := d.pickGPU(); err != nil {
		return nil, err
	}
	if err := d.createDevice(); err != nil {
		return nil, err
	}
	poolInfo := vulkan.CommandPoolCreateInfo{
		SType:            vulkan.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: d.queueFamily,
		Flags:            vulkan.CommandPoolCreateFlags(vulkan.CommandPoolCreateResetCommandBufferBit),
	}
	if res := vulkan.CreateCommandPool(d.handle, &poolInfo, nil, &d.pool); res != vulkan.Success {
		vulkan.DestroyDevice(d.handle, nil)
		return nil, errors.Wrap(vulkan.Error(res), "create command pool")
	}
	return d, nil
}

func (d *Device) pickGPU() error {
	var count uint32
	if res := vulkan.EnumeratePhysicalDevices(d.instance, &count, nil); res != vulkan.Success {
		return errors.Wrap(vulkan.Error(res), "enumerate physical devices")
	}
	if count == 0 {
		return errors.New("no Vulkan-capable GPU found")
	}
	gpus := make([]vulkan.PhysicalDevice, count)
	if res := vulkan.EnumeratePhysicalDevices(d.instance, &count, gpus); res != vulkan.Success {
		return errors.Wrap(vulkan.Error(res), "enumerate physical devices")
	}

	for _, gpu := range gpus {
		var n uint32
		vulkan.GetPhysicalDeviceQueueFamilyProperties(gpu, &n, nil)
		families := make([]vulkan.QueueFamilyProperties, n)
		vulkan.GetPhysicalDeviceQueueFamilyProperties(gpu, &n, families)
		for i := range families {
			families[i].Deref()
			if families[i].QueueFlags&vulkan.QueueFlags(vulkan.QueueGraphicsBit) == 0 {
				continue
			}
			d.gpu = gpu
			d.queueFamily = uint32(i)
			vulkan.GetPhysicalDeviceProperties(gpu, &d.props)
			d.props.Deref()
			d.props.Limits.Deref()
			vulkan.GetPhysicalDeviceMemoryProperties(gpu, &d.memProps)
			d.memProps.Deref()
			d.log.Info("picked GPU", "name", vulkan.ToString(d.props.DeviceName[:]), "queue_family", i)
			return nil
		}
	}
	return errors.New("no GPU with a graphics queue found")
}

func (d *Device) createDevice() error {
	extensions := []string{"VK_KHR_swapchain"}
	queueInfo := vulkan.DeviceQueueCreateInfo{
		SType:            vulkan.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: d.queueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1},
	}
	info := vulkan.DeviceCreateInfo{
		SType:                   vulkan.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    1,
		PQueueCreateInfos:       []vulkan.DeviceQueueCreateInfo{queueInfo},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if res := vulkan.CreateDevice(d.gpu, &info, nil, &d.handle); res != vulkan.Success {
		return errors.Wrap(vulkan.Error(res), "create device")
	}
	vulkan.GetDeviceQueue(d.handle, d.queueFamily, 0, &d.queue)
	return nil
}

// Close destroys the logical device. Every object created through it must
// already be released.
func (d *Device) Close() {
	if d.handle == nil {
		return
	}
	vulkan.DeviceWaitIdle(d.handle)
	vulkan.DestroyCommandPool(d.handle, d.pool, nil)
	vulkan.DestroyDevice(d.handle, nil)
	d.handle = nil
}

func (d *Device) CreateSurface(win render.NativeWindow) (render.SurfaceHandle, error) {
	src, ok := win.(SurfaceSource)
	if !ok {
		return nil, errors.Errorf("%T cannot create a Vulkan surface", win)
	}
	s, err := src.VulkanSurface(d.instance)
	if err != nil {
		return nil, err
	}
	return &surface{instance: d.instance, handle: s}, nil
}

func (d *Device) QuerySurface(h render.SurfaceHandle) (*render.SurfaceSupport, error) {
	s := h.(*surface).handle

	var present vulkan.Bool32
	if res := vulkan.GetPhysicalDeviceSurfaceSupport(d.gpu, d.queueFamily, s, &present); res != vulkan.Success {
		return nil, render.NewError(res)
	}

	var caps vulkan.SurfaceCapabilities
	if res := vulkan.GetPhysicalDeviceSurfaceCapabilities(d.gpu, s, &caps); res != vulkan.Success {
		return nil, render.NewError(res)
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var n uint32
	if res := vulkan.GetPhysicalDeviceSurfaceFormats(d.gpu, s, &n, nil); res != vulkan.Success {
		return nil, render.NewError(res)
	}
	formats := make([]vulkan.SurfaceFormat, n)
	if res := vulkan.GetPhysicalDeviceSurfaceFormats(d.gpu, s, &n, formats); res != vulkan.Success {
		return nil, render.NewError(res)
	}
	formats = formats[:n]
	for i := range formats {
		formats[i].Deref()
	}

	if res := vulkan.GetPhysicalDeviceSurfacePresentModes(d.gpu, s, &n, nil); res != vulkan.Success {
		return nil, render.NewError(res)
	}
	modes := make([]vulkan.PresentMode, n)
	if res := vulkan.GetPhysicalDeviceSurfacePresentModes(d.gpu, s, &n, modes); res != vulkan.Success {
		return nil, render.NewError(res)
	}
	modes = modes[:n]

	return &render.SurfaceSupport{
		CanPresent: present == vulkan.True,
		Capabilities: render.SurfaceCapabilities{
			MinImageCount:           caps.MinImageCount,
			MaxImageCount:           caps.MaxImageCount,
			CurrentExtent:           extent(caps.CurrentExtent),
			MinImageExtent:          extent(caps.MinImageExtent),
			MaxImageExtent:          extent(caps.MaxImageExtent),
			CurrentTransform:        caps.CurrentTransform,
			SupportedCompositeAlpha: caps.SupportedCompositeAlpha,
		},
		Formats:      formats,
		PresentModes: modes,
	}, nil
}

func (d *Device) CreateSwapchain(s render.SurfaceHandle, info *render.SwapchainInfo, old render.SwapchainHandle) (render.SwapchainHandle, error) {
	oldHandle := vulkan.Swapchain(vulkan.NullHandle)
	if old != nil {
		oldHandle = old.(*swapchain).handle
	}
	createInfo := vulkan.SwapchainCreateInfo{
		SType:            vulkan.StructureTypeSwapchainCreateInfo,
		Surface:          s.(*surface).handle,
		MinImageCount:    info.ImageCount,
		ImageFormat:      info.Format,
		ImageColorSpace:  info.ColorSpace,
		ImageExtent:      vulkan.Extent2D{Width: info.Extent.Width, Height: info.Extent.Height},
		ImageArrayLayers: 1,
		ImageUsage:       vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit | vulkan.ImageUsageTransferDstBit),
		ImageSharingMode: vulkan.SharingModeExclusive,
		PreTransform:     info.Transform,
		CompositeAlpha:   info.CompositeAlpha,
		PresentMode:      info.PresentMode,
		Clipped:          vulkan.True,
		OldSwapchain:     oldHandle,
	}
	var handle vulkan.Swapchain
	if res := vulkan.CreateSwapchain(d.handle, &createInfo, nil, &handle); res != vulkan.Success {
		return nil, render.NewError(res)
	}
	return &swapchain{dev: d, handle: handle}, nil
}

func (d *Device) SwapchainImages(h render.SwapchainHandle, info *render.SwapchainInfo) (_ []render.Texture, err error) {
	sc := h.(*swapchain).handle
	var n uint32
	if res := vulkan.GetSwapchainImages(d.handle, sc, &n, nil); res != vulkan.Success {
		return nil, render.NewError(res)
	}
	images := make([]vulkan.Image, n)
	if res := vulkan.GetSwapchainImages(d.handle, sc, &n, images); res != vulkan.Success {
		return nil, render.NewError(res)
	}

	textures := make([]render.Texture, 0, len(images))
	defer func() {
		if err != nil {
			for i := len(textures) - 1; i >= 0; i-- {
				textures[i].Destroy()
			}
		}
	}()
	for i, img := range images {
		t := &texture{
			dev:     d,
			image:   img,
			format:  info.Format,
			samples: vulkan.SampleCount1Bit,
			aspect:  vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit),
			extent:  info.Extent,
		}
		if t.view, err = d.createView(img, info.Format, t.aspect); err != nil {
			return nil, errors.Wrapf(err, "swapchain image %d", i)
		}
		textures = append(textures, t)
	}
	return textures, nil
}

func (d *Device) DepthStencilSupported(format vulkan.Format) bool {
	var props vulkan.FormatProperties
	vulkan.GetPhysicalDeviceFormatProperties(d.gpu, format, &props)
	props.Deref()
	return props.OptimalTilingFeatures&vulkan.FormatFeatureFlags(vulkan.FormatFeatureDepthStencilAttachmentBit) != 0
}

// MaxSampleCount is the highest count usable for both color and depth
// attachments.
func (d *Device) MaxSampleCount() vulkan.SampleCountFlagBits {
	counts := d.props.Limits.FramebufferColorSampleCounts & d.props.Limits.FramebufferDepthSampleCounts
	for bit := vulkan.SampleCount64Bit; bit > vulkan.SampleCount1Bit; bit >>= 1 {
		if counts&vulkan.SampleCountFlags(bit) != 0 {
			return bit
		}
	}
	return vulkan.SampleCount1Bit
}

func (d *Device) CreateAttachment(info *render.AttachmentInfo) (render.Texture, error) {
	usage := attachmentUsage(info)
	imageInfo := vulkan.ImageCreateInfo{
		SType:     vulkan.StructureTypeImageCreateInfo,
		ImageType: vulkan.ImageType2d,
		Format:    info.Format,
		Extent: vulkan.Extent3D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Samples:       info.Samples,
		Tiling:        vulkan.ImageTilingOptimal,
		Usage:         usage,
		SharingMode:   vulkan.SharingModeExclusive,
		InitialLayout: vulkan.ImageLayoutUndefined,
	}
	t := &texture{
		dev:     d,
		owned:   true,
		format:  info.Format,
		samples: info.Samples,
		aspect:  info.Aspect,
		extent:  info.Extent,
	}
	if res := vulkan.CreateImage(d.handle, &imageInfo, nil, &t.image); res != vulkan.Success {
		return nil, errors.Wrap(vulkan.Error(res), "create attachment image")
	}

	var reqs vulkan.MemoryRequirements
	vulkan.GetImageMemoryRequirements(d.handle, t.image, &reqs)
	reqs.Deref()
	memType, ok := d.memoryType(reqs.MemoryTypeBits, vulkan.MemoryPropertyFlags(vulkan.MemoryPropertyDeviceLocalBit))
	if !ok {
		t.Destroy()
		return nil, errors.New("no device-local memory type for attachment")
	}
	allocInfo := vulkan.MemoryAllocateInfo{
		SType:           vulkan.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}
	if res := vulkan.AllocateMemory(d.handle, &allocInfo, nil, &t.memory); res != vulkan.Success {
		t.Destroy()
		return nil, errors.Wrap(vulkan.Error(res), "allocate attachment memory")
	}
	if res := vulkan.BindImageMemory(d.handle, t.image, t.memory, 0); res != vulkan.Success {
		t.Destroy()
		return nil, errors.Wrap(vulkan.Error(res), "bind attachment memory")
	}
	view, err := d.createView(t.image, info.Format, info.Aspect)
	if err != nil {
		t.Destroy()
		return nil, err
	}
	t.view = view
	return t, nil
}

// attachmentUsage picks image usage for a generation-wide target. The
// depth-stencil target is cleared with a transfer, and transient images may
// only carry attachment usage, so only the multisampled color target is
// transient.
func attachmentUsage(info *render.AttachmentInfo) vulkan.ImageUsageFlags {
	if info.Aspect&vulkan.ImageAspectFlags(vulkan.ImageAspectColorBit) == 0 {
		return vulkan.ImageUsageFlags(vulkan.ImageUsageDepthStencilAttachmentBit | vulkan.ImageUsageTransferDstBit)
	}
	usage := vulkan.ImageUsageFlags(vulkan.ImageUsageColorAttachmentBit)
	if info.Samples > vulkan.SampleCount1Bit {
		usage |= vulkan.ImageUsageFlags(vulkan.ImageUsageTransientAttachmentBit)
	}
	return usage
}

func (d *Device) memoryType(bits uint32, want vulkan.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		mt := d.memProps.MemoryTypes[i]
		mt.Deref()
		if bits&(1<<i) != 0 && mt.PropertyFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

func (d *Device) createView(image vulkan.Image, format vulkan.Format, aspect vulkan.ImageAspectFlags) (vulkan.ImageView, error) {
	info := vulkan.ImageViewCreateInfo{
		SType:    vulkan.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vulkan.ImageViewType2d,
		Format:   format,
		Components: vulkan.ComponentMapping{
			R: vulkan.ComponentSwizzleIdentity,
			G: vulkan.ComponentSwizzleIdentity,
			B: vulkan.ComponentSwizzleIdentity,
			A: vulkan.ComponentSwizzleIdentity,
		},
		SubresourceRange: subresource(aspect),
	}
	var view vulkan.ImageView
	if res := vulkan.CreateImageView(d.handle, &info, nil, &view); res != vulkan.Success {
		return view, errors.Wrap(vulkan.Error(res), "create image view")
	}
	return view, nil
}

func (d *Device) CreateRenderPass(desc *render.RenderPassDesc) (render.RenderPassHandle, error) {
	attachments := desc.Attachments()
	dependencies := desc.Dependencies()
	info := vulkan.RenderPassCreateInfo{
		SType:           vulkan.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vulkan.SubpassDescription{desc.Subpass()},
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var handle vulkan.RenderPass
	if res := vulkan.CreateRenderPass(d.handle, &info, nil, &handle); res != vulkan.Success {
		return nil, errors.Wrap(vulkan.Error(res), "create render pass")
	}
	return &renderPass{dev: d, handle: handle}, nil
}

func (d *Device) CreateFramebuffer(pass render.RenderPassHandle, attachments []render.Texture, size render.Extent) (render.FramebufferHandle, error) {
	views := make([]vulkan.ImageView, len(attachments))
	for i, a := range attachments {
		views[i] = a.(*texture).view
	}
	info := vulkan.FramebufferCreateInfo{
		SType:           vulkan.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass.(*renderPass).handle,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           size.Width,
		Height:          size.Height,
		Layers:          1,
	}
	var handle vulkan.Framebuffer
	if res := vulkan.CreateFramebuffer(d.handle, &info, nil, &handle); res != vulkan.Success {
		return nil, errors.Wrap(vulkan.Error(res), "create framebuffer")
	}
	return &framebuffer{dev: d, handle: handle}, nil
}

func (d *Device) CreateSemaphore() (render.SemaphoreHandle, error) {
	info := vulkan.SemaphoreCreateInfo{SType: vulkan.StructureTypeSemaphoreCreateInfo}
	var handle vulkan.Semaphore
	if res := vulkan.CreateSemaphore(d.handle, &info, nil, &handle); res != vulkan.Success {
		return nil, errors.Wrap(vulkan.Error(res), "create semaphore")
	}
	return &semaphore{dev: d, handle: handle}, nil
}

func (d *Device) CreateFence(signaled bool) (render.FenceHandle, error) {
	info := vulkan.FenceCreateInfo{SType: vulkan.StructureTypeFenceCreateInfo}
	if signaled {
		info.Flags = vulkan.FenceCreateFlags(vulkan.FenceCreateSignaledBit)
	}
	var handle vulkan.Fence
	if res := vulkan.CreateFence(d.handle, &info, nil, &handle); res != vulkan.Success {
		return nil, errors.Wrap(vulkan.Error(res), "create fence")
	}
	return &fence{dev: d, handle: handle}, nil
}

func (d *Device) CreateCommandBuffer() (render.CommandBuffer, error) {
	info := vulkan.CommandBufferAllocateInfo{
		SType:              vulkan.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.pool,
		Level:              vulkan.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	buffers := make([]vulkan.CommandBuffer, 1)
	if res := vulkan.AllocateCommandBuffers(d.handle, &info, buffers); res != vulkan.Success {
		return nil, errors.Wrap(vulkan.Error(res), "allocate command buffer")
	}
	return &commandBuffer{dev: d, handle: buffers[0]}, nil
}

func (d *Device) AcquireNextImage(h render.SwapchainHandle, timeout time.Duration, signal render.SemaphoreHandle) (uint32, vulkan.Result) {
	var index uint32
	res := vulkan.AcquireNextImage(d.handle, h.(*swapchain).handle, uint64(timeout.Nanoseconds()),
		signal.(*semaphore).handle, vulkan.Fence(vulkan.NullHandle), &index)
	return index, res
}

func (d *Device) Submit(cmd render.CommandBuffer, wait, signal render.SemaphoreHandle, f render.FenceHandle) error {
	info := vulkan.SubmitInfo{
		SType:                vulkan.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vulkan.Semaphore{wait.(*semaphore).handle},
		PWaitDstStageMask:    []vulkan.PipelineStageFlags{acquireWaitStages},
		CommandBufferCount:   1,
		PCommandBuffers:      []vulkan.CommandBuffer{cmd.(*commandBuffer).handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vulkan.Semaphore{signal.(*semaphore).handle},
	}
	if res := vulkan.QueueSubmit(d.queue, 1, []vulkan.SubmitInfo{info}, f.(*fence).handle); res != vulkan.Success {
		return render.NewError(res)
	}
	return nil
}

func (d *Device) Present(h render.SwapchainHandle, index uint32, wait render.SemaphoreHandle) vulkan.Result {
	info := vulkan.PresentInfo{
		SType:              vulkan.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vulkan.Semaphore{wait.(*semaphore).handle},
		SwapchainCount:     1,
		PSwapchains:        []vulkan.Swapchain{h.(*swapchain).handle},
		PImageIndices:      []uint32{index},
	}
	return vulkan.QueuePresent(d.queue, &info)
}

func (d *Device) WaitIdle() error {
	if res := vulkan.DeviceWaitIdle(d.handle); res != vulkan.Success {
		return render.NewError(res)
	}
	return nil
}

func extent(e vulkan.Extent2D) render.Extent {
	return render.Extent{Width: e.Width, Height: e.Height}
}

func subresource(aspect vulkan.ImageAspectFlags) vulkan.ImageSubresourceRange {
	return vulkan.ImageSubresourceRange{
		AspectMask:     aspect,
		BaseMipLevel:   0,
		LevelCount:     1,
		BaseArrayLayer: 0,
		LayerCount:     1,
	}
}
