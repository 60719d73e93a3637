package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/protocol"
	"github.com/localforge/shimmy/pkg/registry"
)

// streamingFakeEngine/streamingFakeModel let the full-middleware-chain
// streaming test drive generation without a real GGUF backend, echoing the
// prompt word-by-word so the test can assert the SSE frames actually carry
// content through the wrapped ResponseWriter.
type streamingFakeEngine struct{}

func (streamingFakeEngine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	return streamingFakeModel{}, nil
}

type streamingFakeModel struct{}

func (streamingFakeModel) Generate(ctx context.Context, prompt string, opts engine.GenOptions) (string, error) {
	return strings.ToUpper(prompt), nil
}

func (streamingFakeModel) GenerateStream(ctx context.Context, prompt string, opts engine.GenOptions, onToken func(string) error) error {
	for _, piece := range strings.Fields(strings.ToUpper(prompt)) {
		if err := onToken(piece + " "); err != nil {
			return err
		}
	}
	return nil
}

func (streamingFakeModel) Kind() engine.EngineKind { return engine.EngineGGUF }

func newTestHandler() *protocol.Handler {
	reg := registry.New()
	reg.Register(registry.ModelEntry{Name: "test-model", BasePath: "/models/test.gguf"})
	return protocol.NewHandler(reg, protocol.NewEngineSet(nil), nil, protocol.NewUsageRecorder(16))
}

func TestHealthEndpointReportsModelCount(t *testing.T) {
	srv, err := New(newTestHandler(), DefaultConfig())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["models"])
	assert.Equal(t, "ok", body["status"])
}

func TestAdminRescanWithoutFuncReturns501(t *testing.T) {
	srv, err := New(newTestHandler(), DefaultConfig())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/admin/rescan", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestAdminRescanInvokesConfiguredFunc(t *testing.T) {
	srv, err := New(newTestHandler(), DefaultConfig())
	require.NoError(t, err)
	srv.SetRescanFunc(func() int { return 3 })

	req := httptest.NewRequest(http.MethodPost, "/admin/rescan", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(3), body["models_found"])
}

func TestChatCompletionsModelNotFoundReturns404(t *testing.T) {
	srv, err := New(newTestHandler(), DefaultConfig())
	require.NoError(t, err)

	body := `{"model":"nonexistent","messages":[{"role":"user","content":"hi"}]}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errBody map[string]any
	require.NoError(t, decodeJSON(rec.Body.Bytes(), &errBody))
	inner, ok := errBody["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "model_not_found", inner["code"])
}

func TestCORSPreflightReturnsNoContent(t *testing.T) {
	srv, err := New(newTestHandler(), DefaultConfig())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodOptions, "/v1/models", nil)
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStartStopBindsAndReleasesPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Port = 0
	cfg.Address = "127.0.0.1"
	srv, err := New(newTestHandler(), cfg)
	require.NoError(t, err)

	require.NoError(t, srv.Start())
	assert.NotEmpty(t, srv.Addr())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.NoError(t, srv.Stop(ctx))
}

// TestStreamingSurvivesFullMiddlewareChain exercises streaming through
// buildRouter().ServeHTTP rather than calling the handler method directly,
// so it actually runs through loggingMiddleware's responseWriter wrapper.
// Without a Flush method on that wrapper, pkg/protocol's http.Flusher
// type-assertion fails and every streaming endpoint degrades to a 500 in
// production even though handler-level tests (which use httptest.Recorder
// directly) never notice.
func TestStreamingSurvivesFullMiddlewareChain(t *testing.T) {
	reg := registry.New()
	reg.Register(registry.ModelEntry{Name: "stream-test", BasePath: "/models/stream.gguf"})
	handler := protocol.NewHandler(reg, protocol.NewEngineSet(streamingFakeEngine{}), nil, protocol.NewUsageRecorder(8))

	srv, err := New(handler, DefaultConfig())
	require.NoError(t, err)

	body := `{"model":"stream-test","messages":[{"role":"user","content":"hello there"}],"stream":true}`
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.buildRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	out := rec.Body.String()
	assert.NotContains(t, out, "streaming not supported")
	assert.Contains(t, out, "data: ")
	assert.Contains(t, out, "data: [DONE]")
	assert.Contains(t, out, `"finish_reason":"stop"`)
}

func decodeJSON(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
