//go:build vulkan && (linux || windows || darwin)

// Package vulkan probes for a usable Vulkan physical device. It does not
// perform inference itself — llama.cpp's own Vulkan backend does that once
// GGML_VULKAN is set before the native backend initializes. This package
// only answers "is a Vulkan-capable device present on this machine".
//
// Build Requirements:
//
//	Set CGO_CFLAGS and CGO_LDFLAGS before building, e.g. on Linux:
//	  export CGO_CFLAGS="-I$VULKAN_SDK/include"
//	  export CGO_LDFLAGS="-L$VULKAN_SDK/lib -lvulkan"
package vulkan

/*
#cgo linux LDFLAGS: -lvulkan
#cgo darwin LDFLAGS: -lvulkan
#cgo windows LDFLAGS: -lvulkan-1

#include <vulkan/vulkan.h>
#include <stdlib.h>

static int vulkan_device_present(void) {
    VkApplicationInfo appInfo = {0};
    appInfo.sType = VK_STRUCTURE_TYPE_APPLICATION_INFO;
    appInfo.pApplicationName = "shimmy-probe";
    appInfo.apiVersion = VK_API_VERSION_1_0;

    VkInstanceCreateInfo createInfo = {0};
    createInfo.sType = VK_STRUCTURE_TYPE_INSTANCE_CREATE_INFO;
    createInfo.pApplicationInfo = &appInfo;

    VkInstance instance;
    if (vkCreateInstance(&createInfo, NULL, &instance) != VK_SUCCESS) {
        return 0;
    }

    uint32_t count = 0;
    vkEnumeratePhysicalDevices(instance, &count, NULL);
    vkDestroyInstance(instance, NULL);
    return count > 0 ? 1 : 0;
}
*/
import "C"

// Available reports whether at least one Vulkan physical device is present.
func Available() bool {
	return C.vulkan_device_present() != 0
}
