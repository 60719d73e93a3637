//go:build hf

// Package huggingface bridges generation requests to the HuggingFace
// Inference API over HTTP, following the teacher's embed.Embedder shape
// (pkg/embed/embed.go): a small interface, a Config, and a constructor per
// provider — here a single remote provider reached over plain net/http.
//
// This engine only exists in binaries built with the "hf" tag; see
// huggingface_stub.go for the default, untagged build.
package huggingface

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/localforge/shimmy/pkg/engine"
	"github.com/localforge/shimmy/pkg/registry"
)

// Compiled reports whether this build links the HuggingFace bridge, for
// the backend adapter's rule 7 fallback.
const Compiled = true

const defaultAPIURL = "https://api-inference.huggingface.co/models"

// Engine implements engine.InferenceEngine by proxying generation to the
// hosted HuggingFace Inference API.
type Engine struct {
	APIURL string
	APIKey string
	Client *http.Client
}

// NewEngine returns a HuggingFace Engine reading apiKey from the caller;
// an empty key is allowed for models that don't require one.
func NewEngine(apiKey string) *Engine {
	return &Engine{
		APIURL: defaultAPIURL,
		APIKey: apiKey,
		Client: &http.Client{Timeout: 120 * time.Second},
	}
}

// Load returns a LoadedModel bound to spec's HuggingFace identifier. No
// weights are fetched locally; each Generate call is a remote HTTP request.
func (e *Engine) Load(ctx context.Context, spec registry.ModelSpec) (engine.LoadedModel, error) {
	return &remoteModel{engine: e, modelID: spec.Name}, nil
}

type remoteModel struct {
	engine  *Engine
	modelID string
}

func (m *remoteModel) Kind() engine.EngineKind { return engine.EngineHuggingFace }

type hfRequest struct {
	Inputs     string   `json:"inputs"`
	Parameters hfParams `json:"parameters"`
}

type hfParams struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float32 `json:"temperature"`
	TopP         float32 `json:"top_p"`
}

type hfResponseItem struct {
	GeneratedText string `json:"generated_text"`
}

func (m *remoteModel) Generate(ctx context.Context, prompt string, opts engine.GenOptions) (string, error) {
	body, err := json.Marshal(hfRequest{
		Inputs: prompt,
		Parameters: hfParams{
			MaxNewTokens: opts.MaxTokens,
			Temperature:  opts.Temperature,
			TopP:         opts.TopP,
		},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/%s", m.engine.APIURL, m.modelID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if m.engine.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.engine.APIKey)
	}

	resp, err := m.engine.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("huggingface: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("huggingface: API returned %d: %s", resp.StatusCode, string(data))
	}

	var items []hfResponseItem
	if err := json.Unmarshal(data, &items); err != nil || len(items) == 0 {
		return "", fmt.Errorf("huggingface: unexpected response shape: %s", string(data))
	}
	return items[0].GeneratedText, nil
}

// GenerateStream has no native streaming support in the hosted API; it
// generates to completion and delivers the result as one piece.
func (m *remoteModel) GenerateStream(ctx context.Context, prompt string, opts engine.GenOptions, onToken func(string) error) error {
	text, err := m.Generate(ctx, prompt, opts)
	if err != nil {
		return err
	}
	return onToken(text)
}
