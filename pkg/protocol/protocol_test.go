package protocol

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localforge/shimmy/pkg/cache"
	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/registry"
	"github.com/localforge/shimmy/pkg/templates"
)

// fakeEngine and fakeModel let handler tests drive generation without a
// real GGUF backend; fakeModel just echoes the prompt in upper case so
// assertions can check that the rendered template actually reached the
// engine.
type fakeEngine struct{}

func (fakeEngine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	return fakeModel{}, nil
}

type fakeModel struct{}

func (fakeModel) Generate(ctx context.Context, prompt string, opts engine.GenOptions) (string, error) {
	return strings.ToUpper(prompt), nil
}

func (fakeModel) GenerateStream(ctx context.Context, prompt string, opts engine.GenOptions, onToken func(string) error) error {
	for _, piece := range strings.Fields(strings.ToUpper(prompt)) {
		if err := onToken(piece + " "); err != nil {
			return err
		}
	}
	return nil
}

func (fakeModel) Kind() engine.EngineKind { return engine.EngineGGUF }

func newTestEngineSet() *EngineSet {
	es := NewEngineSet(fakeEngine{})
	es.safeTensors = fakeEngine{}
	es.mlxEngine = fakeEngine{}
	es.hfEngine = fakeEngine{}
	return es
}

func newTestRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register(registry.ModelEntry{Name: "llama3-test", BasePath: "/models/llama3.gguf"})
	return reg
}

func TestNormalizeSplitsSystemAndTrailingUser(t *testing.T) {
	msgs := []struct{ Role, Content string }{{"system", "be nice"}, {"user", "hi"}, {"assistant", "hello"}, {"user", "how are you"}}
	conv := make([]messageForTest, len(msgs))
	for i, m := range msgs {
		conv[i] = messageForTest{m.Role, m.Content}
	}
	system, pairs, trailing := Normalize("", toTemplateMessages(conv))

	assert.Equal(t, "be nice", system)
	assert.Equal(t, "how are you", trailing)
	require.Len(t, pairs, 2)
	assert.Equal(t, "user", pairs[0].Role)
	assert.Equal(t, "assistant", pairs[1].Role)
}

func TestNormalizeDialectSystemTakesPrecedence(t *testing.T) {
	system, _, _ := Normalize("dialect system", toTemplateMessages([]messageForTest{{"system", "ignored"}, {"user", "hi"}}))
	assert.Equal(t, "dialect system", system)
}

func TestMergeStopTokensUnionsTemplateAndCaller(t *testing.T) {
	merged := MergeStopTokens("llama3", []string{"STOP"})
	assert.Contains(t, merged, "<|eot_id|>")
	assert.Contains(t, merged, "<|end_of_text|>")
	assert.Contains(t, merged, "STOP")
}

func TestDecodeAnthropicContentCollapsesBlocks(t *testing.T) {
	raw := []any{
		map[string]any{"type": "text", "text": "first"},
		map[string]any{"type": "image"},
		map[string]any{"type": "text", "text": "second"},
	}
	got := decodeAnthropicContent(raw)
	assert.Equal(t, "first\n[image content]\nsecond", got)
}

func TestChatCompletionsNonStreamingRoundTrip(t *testing.T) {
	h := NewHandler(newTestRegistry(), newTestEngineSet(), nil, NewUsageRecorder(8))

	body := `{"model":"llama3-test","messages":[{"role":"user","content":"hello"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HELLO")
	assert.Contains(t, rec.Body.String(), `"object":"chat.completion"`)
}

func TestChatCompletionsModelNotFound(t *testing.T) {
	h := NewHandler(newTestRegistry(), newTestEngineSet(), nil, nil)

	body := `{"model":"nope","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "model_not_found")
}

func TestChatCompletionsStreamingEmitsSSEFrames(t *testing.T) {
	h := NewHandler(newTestRegistry(), newTestEngineSet(), nil, nil)

	body := `{"model":"llama3-test","messages":[{"role":"user","content":"hello there"}],"stream":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)

	out := rec.Body.String()
	assert.Contains(t, out, "data: ")
	assert.Contains(t, out, "data: [DONE]")
	assert.Contains(t, out, `"finish_reason":"stop"`)
}

func TestMessagesRequiresMaxTokens(t *testing.T) {
	h := NewHandler(newTestRegistry(), newTestEngineSet(), nil, nil)

	body := `{"model":"llama3-test","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Messages(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMessagesCollapsesContentBlockArray(t *testing.T) {
	h := NewHandler(newTestRegistry(), newTestEngineSet(), nil, nil)

	body := `{"model":"llama3-test","max_tokens":64,"messages":[{"role":"user","content":[{"type":"text","text":"hi there"}]}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.Messages(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "HI THERE")
}

func TestModelsListReturnsRegisteredNames(t *testing.T) {
	h := NewHandler(newTestRegistry(), newTestEngineSet(), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/v1/models", nil)
	rec := httptest.NewRecorder()
	h.ModelsList(rec, req)

	assert.Contains(t, rec.Body.String(), "llama3-test")
}

func TestGenerateUsesResponseCacheOnSecondCall(t *testing.T) {
	respCache := cache.NewResponseCache(10, 0, nil)
	h := NewHandler(newTestRegistry(), newTestEngineSet(), respCache, nil)
	spec, ok := h.Registry.ToSpec("llama3-test")
	require.True(t, ok)

	opts := buildGenOptions("", nil, nil, nil, nil, false)

	first, err := h.generate(context.Background(), spec, "hello", opts)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", first)
	assert.Equal(t, 1, respCache.Len())

	second, err := h.generate(context.Background(), spec, "hello", opts)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

// messageForTest is a terser literal than templates.Message for table-style
// test setup; toTemplateMessages adapts a slice of them into the real type.
type messageForTest struct{ Role, Content string }

func toTemplateMessages(in []messageForTest) []templates.Message {
	out := make([]templates.Message, len(in))
	for i, m := range in {
		out[i] = templates.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
