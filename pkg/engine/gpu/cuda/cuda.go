//go:build cuda && (linux || windows)

// Package cuda probes for an available NVIDIA GPU via the CUDA runtime.
// It does not perform inference itself — llama.cpp's own CUDA backend
// does that once GGML_CUDA is set before the native backend initializes.
// This package only answers "is a CUDA device present on this machine".
package cuda

/*
#cgo linux CFLAGS: -I/usr/local/cuda/include
#cgo linux LDFLAGS: -L/usr/local/cuda/lib64 -lcudart
#cgo windows CFLAGS: -I"C:/Program Files/NVIDIA GPU Computing Toolkit/CUDA/v13.0/include"
#cgo windows LDFLAGS: -L${SRCDIR}/../../../../lib/cuda -lcudart

#include <cuda_runtime_api.h>

static int cuda_device_count(void) {
    int count = 0;
    cudaError_t err = cudaGetDeviceCount(&count);
    if (err != cudaSuccess) {
        return -1;
    }
    return count;
}
*/
import "C"

// Available reports whether at least one CUDA device is present.
func Available() bool {
	return C.cuda_device_count() > 0
}
