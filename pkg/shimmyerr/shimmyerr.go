// Package shimmyerr defines the error taxonomy the inference core
// distinguishes and the HTTP status each maps to.
//
// Handlers in pkg/protocol never construct ad-hoc error bodies; they
// classify whatever the lower layers return through this package so the
// same model-not-found, load-failure, and generation-failure shapes come
// out regardless of which dialect made the request.
package shimmyerr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind identifies one of the error classes the core distinguishes.
type Kind int

const (
	// KindUnknown is the zero value; treated as an internal error.
	KindUnknown Kind = iota
	// KindNotFound means no model is registered under the requested name.
	KindNotFound
	// KindBadRequest means the dialect-level request body was malformed.
	KindBadRequest
	// KindLoadFailure means the backend failed to load a model file.
	KindLoadFailure
	// KindGenerationFailure means a runtime inference error occurred.
	KindGenerationFailure
	// KindUnsupportedAdapter means a LoRA adapter format cannot be used directly.
	KindUnsupportedAdapter
)

// Error wraps an underlying cause with a Kind so callers can map it to an
// HTTP status and a dialect-specific body without string-sniffing.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// NotFound builds a KindNotFound error enumerating the available models, per
// the model-not-found response shape.
func NotFound(name string, available []string) *Error {
	return &Error{
		Kind: KindNotFound,
		Msg:  fmt.Sprintf("Model '%s' not found. Available models: %s", name, quoteList(available)),
	}
}

// BadRequest builds a KindBadRequest error.
func BadRequest(format string, args ...any) *Error {
	return &Error{Kind: KindBadRequest, Msg: fmt.Sprintf(format, args...)}
}

// memAllocHints are substrings of native load errors that indicate the
// failure was an out-of-memory condition worth rewriting into actionable
// guidance, per the load-failure handling rule.
var memAllocHints = []string{"failed to allocate", "CPU_REPACK buffer"}

// LoadFailure builds a KindLoadFailure error from a native backend error. If
// the underlying message matches a known memory-allocation pattern, the
// message is rewritten to include the file size and a suggested RAM
// estimate rather than surfaced verbatim.
func LoadFailure(modelPath string, fileSizeBytes int64, cause error) *Error {
	if cause == nil {
		return &Error{Kind: KindLoadFailure, Msg: fmt.Sprintf("failed to load model %s", modelPath)}
	}
	causeMsg := cause.Error()
	for _, hint := range memAllocHints {
		if strings.Contains(causeMsg, hint) {
			estimateGB := float64(fileSizeBytes) / (1024 * 1024 * 1024) * 1.2
			return &Error{
				Kind: KindLoadFailure,
				Msg: fmt.Sprintf(
					"not enough memory to load %s (%.2f GB on disk, ~%.1f GB RAM needed): %s",
					modelPath, float64(fileSizeBytes)/(1024*1024*1024), estimateGB, causeMsg,
				),
				Err: cause,
			}
		}
	}
	return &Error{Kind: KindLoadFailure, Msg: fmt.Sprintf("failed to load model %s", modelPath), Err: cause}
}

// UnsupportedAdapter builds the error for a .safetensors LoRA adapter, with
// a conversion instruction. Its Kind is KindLoadFailure, not
// KindUnsupportedAdapter, so callers see it as a load failure.
func UnsupportedAdapter(adapterPath string) *Error {
	return &Error{
		Kind: KindLoadFailure,
		Msg: fmt.Sprintf(
			"adapter %s is a .safetensors LoRA; convert it to GGUF with llama.cpp's "+
				"convert_lora_to_gguf.py before use", adapterPath,
		),
	}
}

// GenerationFailure builds a KindGenerationFailure error.
func GenerationFailure(cause error) *Error {
	return &Error{Kind: KindGenerationFailure, Msg: "generation failed", Err: cause}
}

// HTTPStatus maps a Kind to the HTTP status code the protocol layer should
// respond with.
func HTTPStatus(err error) int {
	var se *Error
	if errors.As(err, &se) {
		switch se.Kind {
		case KindNotFound:
			return http.StatusNotFound
		case KindBadRequest:
			return http.StatusBadRequest
		case KindLoadFailure, KindGenerationFailure, KindUnsupportedAdapter:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = fmt.Sprintf("%q", n)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
