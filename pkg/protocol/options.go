package protocol

import "github.com/localforge/shimmy/pkg/engine"

const (
	defaultMaxTokens     = 512
	defaultTemperature   = 0.8
	defaultTopP          = 0.9
	defaultTopK          = 40
	defaultRepeatPenalty = 1.1
)

// genOptionsBundle wraps the resolved engine.GenOptions; kept as a named
// type (rather than passing engine.GenOptions around bare) so future
// per-dialect metadata has a home without reshaping every call site.
type genOptionsBundle struct {
	engine engine.GenOptions
}

// buildGenOptions applies dialect defaults, then merges the resolved
// template's default stop tokens with the caller-supplied ones, per the
// mandatory stop-token merge rule.
func buildGenOptions(templateName string, maxTokens *int, temperature, topP *float32, callerStops []string, stream bool) genOptionsBundle {
	opts := engine.GenOptions{
		MaxTokens:     defaultMaxTokens,
		Temperature:   defaultTemperature,
		TopP:          defaultTopP,
		TopK:          defaultTopK,
		RepeatPenalty: defaultRepeatPenalty,
		Stream:        stream,
	}
	if maxTokens != nil && *maxTokens > 0 {
		opts.MaxTokens = *maxTokens
	}
	if temperature != nil {
		opts.Temperature = *temperature
	}
	if topP != nil {
		opts.TopP = *topP
	}
	opts.StopTokens = MergeStopTokens(templateName, callerStops)
	return genOptionsBundle{engine: opts}
}
