package protocol

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/localforge/shimmy/pkg/cache"
	"github.com/localforge/shimmy/pkg/registry"
	"github.com/localforge/shimmy/pkg/shimmyerr"
	"github.com/localforge/shimmy/pkg/templates"
)

// Handler serves the OpenAI- and Anthropic-compatible HTTP surface,
// translating each dialect into the internal generation contract and back.
// It holds no per-request state; everything it needs is resolved fresh
// from the Registry on each call, per the read-mostly registry model in
// §5.
type Handler struct {
	Registry *registry.Registry
	Engines  *EngineSet
	Cache    *cache.ResponseCache // nil disables response caching entirely
	Usage    *UsageRecorder
}

// NewHandler builds a protocol Handler. cache and usage may be nil.
func NewHandler(reg *registry.Registry, engines *EngineSet, respCache *cache.ResponseCache, usage *UsageRecorder) *Handler {
	return &Handler{Registry: reg, Engines: engines, Cache: respCache, Usage: usage}
}

// ChatCompletions implements POST /v1/chat/completions.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	var req OpenAIChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, shimmyerr.BadRequest("invalid request body: %v", err))
		return
	}

	spec, ok := h.Registry.ToSpec(req.Model)
	if !ok {
		h.writeError(w, shimmyerr.NotFound(req.Model, h.Registry.ListAllAvailable()))
		return
	}

	msgs := make([]templates.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = templates.Message{Role: m.Role, Content: m.Content}
	}
	system, pairs, trailingUser := Normalize("", msgs)

	templateName := spec.Template
	if templateName == "" {
		templateName = templates.InferTemplateName(spec.Name)
	}
	prompt := templates.Render(templateName, system, pairs, trailingUser)

	opts := buildGenOptions(templateName, req.MaxTokens, req.Temperature, req.TopP, decodeStop(req.Stop), req.Stream)

	id := generateID()
	model := req.Model

	if req.Stream {
		h.streamOpenAI(w, r.Context(), spec, prompt, opts, id, model)
		return
	}
	h.respondOpenAI(w, r.Context(), spec, prompt, opts, id, model)
}

func (h *Handler) respondOpenAI(w http.ResponseWriter, ctx context.Context, spec registry.ModelSpec, prompt string, opts genOptionsBundle, id, model string) {
	text, err := h.generate(ctx, spec, prompt, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	finish := "stop"
	resp := ChatResponse{
		ID:      id,
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      &OpenAIMessage{Role: "assistant", Content: text},
			FinishReason: &finish,
		}},
		Usage: &ChatUsage{
			PromptTokens:     estimateTokens(prompt),
			CompletionTokens: estimateTokens(text),
			TotalTokens:      estimateTokens(prompt) + estimateTokens(text),
		},
	}
	h.recordUsage(model, prompt, text, false)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) streamOpenAI(w http.ResponseWriter, ctx context.Context, spec registry.ModelSpec, prompt string, opts genOptionsBundle, id, model string) {
	sse, err := newSSEWriter(w)
	if err != nil {
		h.writeError(w, err)
		return
	}

	loaded, _, err := h.Engines.Load(ctx, spec)
	if err != nil {
		return
	}

	var full string
	streamErr := loaded.GenerateStream(ctx, prompt, opts.engine, func(piece string) error {
		full += piece
		return sse.writeJSON(ChatResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: time.Now().Unix(),
			Model:   model,
			Choices: []ChatChoice{{Index: 0, Delta: &OpenAIMessage{Content: piece}}},
		})
	})
	if streamErr != nil {
		return
	}

	finish := "stop"
	sse.writeJSON(ChatResponse{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{Index: 0, Delta: &OpenAIMessage{}, FinishReason: &finish}},
	})
	sse.writeDone()
	h.recordUsage(model, prompt, full, false)
}

// Messages implements POST /v1/messages (Anthropic dialect).
func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	var req AnthropicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, shimmyerr.BadRequest("invalid request body: %v", err))
		return
	}
	if req.MaxTokens <= 0 {
		h.writeError(w, shimmyerr.BadRequest("max_tokens is required"))
		return
	}

	spec, ok := h.Registry.ToSpec(req.Model)
	if !ok {
		h.writeError(w, shimmyerr.NotFound(req.Model, h.Registry.ListAllAvailable()))
		return
	}

	msgs := make([]templates.Message, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = templates.Message{Role: m.Role, Content: decodeAnthropicContent(m.RawContent)}
	}
	system, pairs, trailingUser := Normalize(req.System, msgs)

	templateName := spec.Template
	if templateName == "" {
		templateName = templates.InferTemplateName(spec.Name)
	}
	prompt := templates.Render(templateName, system, pairs, trailingUser)

	maxTokens := req.MaxTokens
	opts := buildGenOptions(templateName, &maxTokens, req.Temperature, req.TopP, nil, req.Stream)
	if req.TopK != nil {
		opts.engine.TopK = *req.TopK
	}

	id := generateID()

	if req.Stream {
		h.streamAnthropic(w, r.Context(), spec, prompt, opts, id, req.Model)
		return
	}

	text, err := h.generate(r.Context(), spec, prompt, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.recordUsage(req.Model, prompt, text, false)
	writeJSON(w, http.StatusOK, AnthropicResponse{
		ID:         id,
		Type:       "message",
		Role:       "assistant",
		Model:      req.Model,
		Content:    []AnthropicContentResult{{Type: "text", Text: text}},
		StopReason: "end_turn",
		Usage: AnthropicUsage{
			InputTokens:  estimateTokens(prompt),
			OutputTokens: estimateTokens(text),
		},
	})
}

func (h *Handler) streamAnthropic(w http.ResponseWriter, ctx context.Context, spec registry.ModelSpec, prompt string, opts genOptionsBundle, id, model string) {
	sse, err := newSSEWriter(w)
	if err != nil {
		h.writeError(w, err)
		return
	}

	loaded, _, err := h.Engines.Load(ctx, spec)
	if err != nil {
		return
	}

	sse.writeJSON(map[string]any{
		"type":    "message_start",
		"message": map[string]any{"id": id, "type": "message", "role": "assistant", "model": model, "content": []any{}},
	})

	var full string
	streamErr := loaded.GenerateStream(ctx, prompt, opts.engine, func(piece string) error {
		full += piece
		return sse.writeJSON(map[string]any{
			"type":  "content_block_delta",
			"index": 0,
			"delta": map[string]any{"type": "text_delta", "text": piece},
		})
	})
	if streamErr != nil {
		return
	}

	sse.writeJSON(map[string]any{"type": "message_delta", "delta": map[string]any{"stop_reason": "end_turn"}})
	sse.writeJSON(map[string]any{"type": "message_stop"})
	// No data: [DONE] here, unlike streamOpenAI: real Anthropic SSE ends a
	// stream with message_stop and no sentinel frame, so this dialect
	// intentionally diverges from the OpenAI dialect's [DONE] terminator.
	h.recordUsage(model, prompt, full, false)
}

// ModelsList implements GET /v1/models.
func (h *Handler) ModelsList(w http.ResponseWriter, r *http.Request) {
	names := h.Registry.ListAllAvailable()
	now := time.Now().Unix()
	data := make([]ModelListItem, len(names))
	for i, name := range names {
		data[i] = ModelListItem{ID: name, Object: "model", Created: now, OwnedBy: "shimmy"}
	}
	writeJSON(w, http.StatusOK, ModelsResponse{Object: "list", Data: data})
}

// NativeGenerate implements POST /api/generate: a plain prompt with no
// chat-template rendering, for callers that build their own prompt.
func (h *Handler) NativeGenerate(w http.ResponseWriter, r *http.Request) {
	var req NativeGenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, shimmyerr.BadRequest("invalid request body: %v", err))
		return
	}

	spec, ok := h.Registry.ToSpec(req.Model)
	if !ok {
		h.writeError(w, shimmyerr.NotFound(req.Model, h.Registry.ListAllAvailable()))
		return
	}

	opts := buildGenOptions("", req.MaxTokens, req.Temperature, req.TopP, req.Stop, req.Stream)

	if req.Stream {
		sse, err := newSSEWriter(w)
		if err != nil {
			h.writeError(w, err)
			return
		}
		loaded, _, err := h.Engines.Load(r.Context(), spec)
		if err != nil {
			return
		}
		loaded.GenerateStream(r.Context(), req.Prompt, opts.engine, func(piece string) error {
			return sse.writeJSON(NativeGenerateResponse{Model: req.Model, Response: piece, Done: false})
		})
		sse.writeJSON(NativeGenerateResponse{Model: req.Model, Done: true})
		sse.writeDone()
		return
	}

	text, err := h.generate(r.Context(), spec, req.Prompt, opts)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, NativeGenerateResponse{Model: req.Model, Response: text, Done: true})
}

// generate resolves spec through the engine set and runs generation to
// completion, consulting the response cache first when one is configured.
func (h *Handler) generate(ctx context.Context, spec registry.ModelSpec, prompt string, opts genOptionsBundle) (string, error) {
	if h.Cache == nil {
		loaded, _, err := h.Engines.Load(ctx, spec)
		if err != nil {
			return "", err
		}
		return loaded.Generate(ctx, prompt, opts.engine)
	}

	key := cache.Key(spec.Name, prompt, opts.engine.Key())
	return h.Cache.GetOrCompute(ctx, key, func(ctx context.Context) (string, error) {
		loaded, _, err := h.Engines.Load(ctx, spec)
		if err != nil {
			return "", err
		}
		return loaded.Generate(ctx, prompt, opts.engine)
	})
}

func (h *Handler) recordUsage(model, prompt, completion string, cacheHit bool) {
	if h.Usage == nil {
		return
	}
	h.Usage.Record(UsageRecord{
		Model:            model,
		PromptTokens:     estimateTokens(prompt),
		CompletionTokens: estimateTokens(completion),
		TotalTokens:      estimateTokens(prompt) + estimateTokens(completion),
		CacheHit:         cacheHit,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := shimmyerr.HTTPStatus(err)
	body := ErrorResponse{Error: ErrorBody{
		Message: err.Error(),
		Type:    "invalid_request_error",
	}}
	if status == http.StatusNotFound {
		body.Error.Param = "model"
		body.Error.Code = "model_not_found"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
