package vkdevice

import (
	"github.com/pkg/errors"
	"github.com/vulkan-go/vulkan"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// InstanceConfig describes the Vulkan instance a window system needs. The
// loader must already be set up with vulkan.SetGetInstanceProcAddr and
// vulkan.Init.
type InstanceConfig struct {
	AppName string
	// Extensions are the instance extensions the platform requires for
	// surface creation.
	Extensions []string
	Validation bool
}

// NewInstance creates and initializes a Vulkan instance.
func NewInstance(cfg InstanceConfig) (vulkan.Instance, error) {
	appInfo := vulkan.ApplicationInfo{
		SType:              vulkan.StructureTypeApplicationInfo,
		PApplicationName:   safeString(cfg.AppName),
		ApplicationVersion: vulkan.MakeVersion(1, 0, 0),
		PEngineName:        safeString("vkdisplay"),
		EngineVersion:      vulkan.MakeVersion(1, 0, 0),
		ApiVersion:         vulkan.MakeVersion(1, 1, 0),
	}
	createInfo := vulkan.InstanceCreateInfo{
		SType:                   vulkan.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(cfg.Extensions)),
		PpEnabledExtensionNames: safeStrings(cfg.Extensions),
	}
	if cfg.Validation {
		layers := []string{validationLayer}
		createInfo.EnabledLayerCount = uint32(len(layers))
		createInfo.PpEnabledLayerNames = safeStrings(layers)
	}

	var instance vulkan.Instance
	if res := vulkan.CreateInstance(&createInfo, nil, &instance); res != vulkan.Success {
		return nil, errors.Wrap(vulkan.Error(res), "create instance")
	}
	if err := vulkan.InitInstance(instance); err != nil {
		vulkan.DestroyInstance(instance, nil)
		return nil, errors.Wrap(err, "init instance")
	}
	return instance, nil
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = safeString(s)
	}
	return out
}

func DestroyInstance(instance vulkan.Instance) {
	vulkan.DestroyInstance(instance, nil)
}
