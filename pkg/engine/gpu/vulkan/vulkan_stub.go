//go:build !vulkan || !(linux || windows || darwin)

package vulkan

// Available always reports false on builds without the vulkan tag.
func Available() bool { return false }
