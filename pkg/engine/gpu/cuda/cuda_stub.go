//go:build !cuda || !(linux || windows)

package cuda

// Available always reports false on builds without the cuda tag.
func Available() bool { return false }
