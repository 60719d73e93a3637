//go:build cgo && (darwin || linux || windows)

// Package llama provides the GGUF inference core: CGO bindings to
// llama.cpp driving a process-global native backend, a per-model context
// cache, and token-by-token generation with sampling, stop-sequence
// enforcement, and UTF-8-safe streaming.
//
// The underlying native library forbids more than one backend
// initialization per process, so the backend lives behind a once-latch
// shared by every model this process ever loads (see globalBackend). A
// native context borrows from its model and cannot outlive it, so the two
// are always stored together inside one Model. A loaded Model is never
// freed; it lives until the process exits.
package llama

/*
#cgo CFLAGS: -I${SRCDIR}/../../../lib/llama

#cgo linux,amd64,!cuda LDFLAGS: -L${SRCDIR}/../../../lib/llama -lllama_linux_amd64 -lm -lstdc++ -lpthread
#cgo linux,amd64,cuda  LDFLAGS: -L${SRCDIR}/../../../lib/llama -lllama_linux_amd64_cuda -lcudart -lcublas -lm -lstdc++ -lpthread
#cgo linux,arm64       LDFLAGS: -L${SRCDIR}/../../../lib/llama -lllama_linux_arm64 -lm -lstdc++ -lpthread
#cgo darwin,arm64      LDFLAGS: -L${SRCDIR}/../../../lib/llama -lllama_darwin_arm64 -lm -lc++ -framework Accelerate -framework Metal -framework MetalPerformanceShaders -framework Foundation
#cgo darwin,amd64      LDFLAGS: -L${SRCDIR}/../../../lib/llama -lllama_darwin_amd64 -lm -lc++ -framework Accelerate
#cgo windows,amd64     LDFLAGS: -L${SRCDIR}/../../../lib/llama -lllama_windows_amd64 -lm -lstdc++

#include <stdlib.h>
#include <string.h>
#include "llama.h"

static int g_initialized = 0;

void shimmy_init_backend(void) {
    if (!g_initialized) {
        llama_backend_init();
        g_initialized = 1;
    }
}

struct llama_model* shimmy_load_model(const char* path, int n_gpu_layers,
                                       int moe_all_cpu, int moe_first_n) {
    shimmy_init_backend();
    struct llama_model_params params = llama_model_default_params();
    params.use_mmap = 1;
    params.n_gpu_layers = n_gpu_layers;

    // Mixture-of-experts CPU offload: mutually exclusive options, applied
    // via the tensor-split/override-tensor mechanism exposed by newer
    // llama.cpp versions. Older headers without the field are tolerated by
    // the #ifdef guard so this file still compiles against them.
    #ifdef LLAMA_SUPPORTS_MOE_OVERRIDE
    if (moe_all_cpu) {
        params.n_expert_used_override_cpu = -1;
    } else if (moe_first_n > 0) {
        params.n_expert_used_override_cpu = moe_first_n;
    }
    #endif

    return llama_model_load_from_file(path, params);
}

struct llama_context* shimmy_create_context(struct llama_model* model, int n_ctx,
                                             int n_batch, int n_threads) {
    struct llama_context_params params = llama_context_default_params();
    params.n_ctx = n_ctx;
    params.n_batch = n_batch;
    params.n_ubatch = n_batch;
    params.n_threads = n_threads;
    params.n_threads_batch = n_threads;
    params.logits_all = 0;
    #ifdef LLAMA_SUPPORTS_FLASH_ATTN
    params.flash_attn = 1;
    #endif
    return llama_init_from_model(model, params);
}

int shimmy_n_layers(struct llama_model* model) { return llama_model_n_layer(model); }

int shimmy_tokenize(struct llama_model* model, const char* text, int text_len,
                     int32_t* tokens, int max_tokens, int add_bos) {
    const struct llama_vocab* vocab = llama_model_get_vocab(model);
    return llama_tokenize(vocab, text, text_len, tokens, max_tokens, add_bos, 1);
}

int shimmy_detokenize_piece(struct llama_model* model, int32_t token, char* out, int out_len) {
    const struct llama_vocab* vocab = llama_model_get_vocab(model);
    return llama_token_to_piece(vocab, token, out, out_len, 0, 0);
}

int shimmy_is_eog(struct llama_model* model, int32_t token) {
    const struct llama_vocab* vocab = llama_model_get_vocab(model);
    return llama_vocab_is_eog(vocab, token) ? 1 : 0;
}

// shimmy_decode_prompt submits the initial prompt, requesting logits only
// for the final token, and returns 0 on success.
int shimmy_decode_prompt(struct llama_context* ctx, int32_t* tokens, int n_tokens) {
    llama_kv_cache_clear(ctx);
    struct llama_batch batch = llama_batch_init(n_tokens, 0, 1);
    for (int i = 0; i < n_tokens; i++) {
        batch.token[i] = tokens[i];
        batch.pos[i] = i;
        batch.n_seq_id[i] = 1;
        batch.seq_id[i][0] = 0;
        batch.logits[i] = (i == n_tokens - 1) ? 1 : 0;
    }
    batch.n_tokens = n_tokens;
    int rc = llama_decode(ctx, batch);
    llama_batch_free(batch);
    return rc;
}

// shimmy_decode_one submits a single generated token at the given position,
// continuing the sequence started by shimmy_decode_prompt.
int shimmy_decode_one(struct llama_context* ctx, int32_t token, int pos) {
    struct llama_batch batch = llama_batch_init(1, 0, 1);
    batch.token[0] = token;
    batch.pos[0] = pos;
    batch.n_seq_id[0] = 1;
    batch.seq_id[0][0] = 0;
    batch.logits[0] = 1;
    batch.n_tokens = 1;
    int rc = llama_decode(ctx, batch);
    llama_batch_free(batch);
    return rc;
}

struct llama_sampler* shimmy_build_sampler(float temperature, float top_p, int top_k,
                                            float repeat_penalty) {
    struct llama_sampler_chain_params cparams = llama_sampler_chain_default_params();
    struct llama_sampler* chain = llama_sampler_chain_init(cparams);
    llama_sampler_chain_add(chain, llama_sampler_init_temp(temperature));
    llama_sampler_chain_add(chain, llama_sampler_init_top_p(top_p, 1));
    llama_sampler_chain_add(chain, llama_sampler_init_top_k(top_k));
    llama_sampler_chain_add(chain, llama_sampler_init_penalties(64, repeat_penalty, 0.0f, 0.0f));
    llama_sampler_chain_add(chain, llama_sampler_init_greedy());
    return chain;
}

int32_t shimmy_sample(struct llama_sampler* chain, struct llama_context* ctx) {
    int32_t token = llama_sampler_sample(chain, ctx, -1);
    llama_sampler_accept(chain, token);
    return token;
}

void shimmy_free_sampler(struct llama_sampler* chain) { if (chain) llama_sampler_free(chain); }
void shimmy_free_ctx(struct llama_context* ctx) { if (ctx) llama_free(ctx); }
void shimmy_free_model(struct llama_model* model) { if (model) llama_model_free(model); }

struct llama_adapter_lora* shimmy_load_lora(struct llama_model* model, const char* path) {
    return llama_adapter_lora_init(model, path);
}

int shimmy_attach_lora(struct llama_context* ctx, struct llama_adapter_lora* adapter, float scale) {
    return llama_set_adapter_lora(ctx, adapter, scale);
}
*/
import "C"

import (
	"context"
	"fmt"
	"os"
	"sync"
	"unsafe"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/engine/gpu"
	"github.com/localforge/shimmy/pkg/registry"
	"github.com/localforge/shimmy/pkg/shimmyerr"
)

// backendState holds the process-wide native backend singleton: at-most-one
// initialization, sticky error on failure, shared by every model load.
type backendState struct {
	once sync.Once
	err  error
}

var globalBackend backendState

func ensureBackend() error {
	globalBackend.once.Do(func() {
		C.shimmy_init_backend()
	})
	return globalBackend.err
}

// MoEConfig carries the two mutually-exclusive mixture-of-experts CPU
// offload options described in the design notes.
type MoEConfig struct {
	OffloadAllExperts bool
	OffloadFirstN     int
}

// Model owns one loaded llama.cpp model and its single context, together,
// so the native context never outlives the model it borrows from.
type Model struct {
	mu          sync.Mutex
	model       *C.struct_llama_model
	ctx         *C.struct_llama_context
	lora        *C.struct_llama_adapter_lora
	name        string
	nThreads    int
	projectorAt string
	hasVision   bool
}

// Kind reports this handle's backend, for observability.
func (m *Model) Kind() engine.EngineKind { return engine.EngineGGUF }

// modelCache is the per-model name to *Model map, shared process-wide and
// never evicted (see the design notes' open question on eviction).
var (
	modelCacheMu sync.Mutex
	modelCache   = map[string]*Model{}
)

// Engine implements engine.InferenceEngine for GGUF models via the native
// backend above.
type Engine struct {
	GPUBackend gpu.Backend
	MoE        MoEConfig
}

// NewEngine builds a GGUF Engine for the resolved GPU backend, setting the
// corresponding environment flag before any load occurs.
func NewEngine(backend gpu.Backend, moe MoEConfig) *Engine {
	gpu.SetEnv(backend)
	return &Engine{GPUBackend: backend, MoE: moe}
}

// Load returns the cached Model for spec.Name if present, otherwise loads
// it fresh: acquires the global backend, builds model params (GPU layers,
// MoE), loads the file, creates one context (adaptive batch size, resolved
// thread count), attaches a compatible LoRA adapter, records vision sidecar
// metadata, and inserts the result into the cache.
func (e *Engine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	modelCacheMu.Lock()
	if cached, ok := modelCache[spec.Name]; ok {
		modelCacheMu.Unlock()
		return cached, nil
	}
	modelCacheMu.Unlock()

	if err := ensureBackend(); err != nil {
		return nil, shimmyerr.LoadFailure(spec.BasePath, 0, err)
	}

	if spec.AdapterPath != "" && hasSafetensorsExt(spec.AdapterPath) {
		return nil, shimmyerr.UnsupportedAdapter(spec.AdapterPath)
	}

	cPath := C.CString(spec.BasePath)
	defer C.free(unsafe.Pointer(cPath))

	gpuLayers := gpu.Layers(e.GPUBackend)
	moeAllCPU, moeFirstN := 0, 0
	if e.MoE.OffloadAllExperts {
		moeAllCPU = 1
	} else if e.MoE.OffloadFirstN > 0 {
		moeFirstN = e.MoE.OffloadFirstN
	}

	cModel := C.shimmy_load_model(cPath, C.int(gpuLayers), C.int(moeAllCPU), C.int(moeFirstN))
	if cModel == nil {
		fileInfo := statSizeOrZero(spec.BasePath)
		return nil, shimmyerr.LoadFailure(spec.BasePath, fileInfo, fmt.Errorf("llama_model_load_from_file returned null"))
	}

	ctxLen := spec.ContextLength
	if ctxLen <= 0 {
		ctxLen = 4096
	}
	nBatch := AdaptiveBatchSize(ctxLen)
	nThreads := ThreadCount(spec.Threads)

	cCtx := C.shimmy_create_context(cModel, C.int(ctxLen), C.int(nBatch), C.int(nThreads))
	if cCtx == nil {
		C.shimmy_free_model(cModel)
		return nil, shimmyerr.LoadFailure(spec.BasePath, 0, fmt.Errorf("llama_init_from_model returned null"))
	}

	m := &Model{
		model:    cModel,
		ctx:      cCtx,
		name:     spec.Name,
		nThreads: nThreads,
	}

	if spec.AdapterPath != "" {
		cAdapterPath := C.CString(spec.AdapterPath)
		lora := C.shimmy_load_lora(cModel, cAdapterPath)
		C.free(unsafe.Pointer(cAdapterPath))
		if lora != nil {
			C.shimmy_attach_lora(cCtx, lora, C.float(1.0))
			m.lora = lora
		}
	}

	if needsVisionProjector(spec.Name) {
		if projector, ok := findProjectorPath(spec.BasePath); ok {
			m.hasVision = true
			m.projectorAt = projector
		}
	}

	modelCacheMu.Lock()
	// Best-effort insert: if another goroutine raced us to load the same
	// name, keep whichever arrived first and let this one be garbage
	// collected with its native resources intact but unreferenced.
	if existing, ok := modelCache[spec.Name]; ok {
		modelCacheMu.Unlock()
		return existing, nil
	}
	modelCache[spec.Name] = m
	modelCacheMu.Unlock()

	return m, nil
}

func hasSafetensorsExt(path string) bool {
	return len(path) > 12 && path[len(path)-12:] == ".safetensors"
}

// Generate runs generation to completion under the context mutex and
// returns the final text.
func (m *Model) Generate(ctx context.Context, prompt string, opts engine.GenOptions) (string, error) {
	var out string
	err := m.generate(ctx, prompt, opts, nil, &out)
	return out, err
}

// GenerateStream runs generation, invoking onToken for each detokenized
// piece as it is produced. onToken is called while m's context mutex is
// held; it must not re-enter this Model.
func (m *Model) GenerateStream(ctx context.Context, prompt string, opts engine.GenOptions, onToken func(string) error) error {
	var discard string
	return m.generate(ctx, prompt, opts, onToken, &discard)
}

// generate implements the tokenize / sampler-chain / per-token loop /
// stop-scan algorithm. buf accumulates the full output so the stop-token
// scan always sees the complete buffer, even when streaming.
func (m *Model) generate(ctx context.Context, prompt string, opts engine.GenOptions, onToken func(string) error, buf *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	cText := C.CString(prompt)
	defer C.free(unsafe.Pointer(cText))

	maxPromptTokens := 32768
	tokens := make([]C.int32_t, maxPromptTokens)
	n := C.shimmy_tokenize(m.model, cText, C.int(len(prompt)), &tokens[0], C.int(maxPromptTokens), 1)
	if n < 0 {
		return shimmyerr.GenerationFailure(fmt.Errorf("tokenization buffer too small for prompt of length %d", len(prompt)))
	}

	if rc := C.shimmy_decode_prompt(m.ctx, &tokens[0], n); rc != 0 {
		return shimmyerr.GenerationFailure(fmt.Errorf("prompt decode failed (code %d)", int(rc)))
	}

	sampler := C.shimmy_build_sampler(C.float(opts.Temperature), C.float(opts.TopP), C.int(opts.TopK), C.float(opts.RepeatPenalty))
	defer C.shimmy_free_sampler(sampler)

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 512
	}

	pos := int(n)
	pieceBuf := make([]byte, 256)
	*buf = ""

	for i := 0; i < maxTokens; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token := C.shimmy_sample(sampler, m.ctx)
		if C.shimmy_is_eog(m.model, token) != 0 {
			break
		}

		pieceLen := C.shimmy_detokenize_piece(m.model, token, (*C.char)(unsafe.Pointer(&pieceBuf[0])), C.int(len(pieceBuf)))
		if pieceLen < 0 {
			break
		}
		piece := C.GoStringN((*C.char)(unsafe.Pointer(&pieceBuf[0])), pieceLen)
		*buf += piece

		if cut, found := findStopTruncation(*buf, opts.StopTokens); found {
			*buf = (*buf)[:cut]
			break
		}

		if onToken != nil {
			if err := onToken(piece); err != nil {
				return err
			}
		}

		if rc := C.shimmy_decode_one(m.ctx, token, C.int(pos)); rc != 0 {
			return shimmyerr.GenerationFailure(fmt.Errorf("token decode failed (code %d)", int(rc)))
		}
		pos++
	}

	return nil
}

func statSizeOrZero(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
