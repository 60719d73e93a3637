package protocol

import (
	"fmt"

	"github.com/localforge/shimmy/pkg/templates"
)

// Normalize folds an ordered message list plus an optional dialect-level
// system string into (system, completed pairs, trailing user turn), per
// §4.6's normalization rule: a role "system" in the first position
// overrides the dialect's explicit system field only when the latter is
// absent, and an unpaired final user turn is split out as the trailing
// turn rather than folded into pairs.
func Normalize(dialectSystem string, messages []templates.Message) (system string, pairs []templates.Message, trailingUser string) {
	system = dialectSystem
	rest := messages

	if len(rest) > 0 && rest[0].Role == "system" {
		if system == "" {
			system = rest[0].Content
		}
		rest = rest[1:]
	}

	if len(rest) > 0 && rest[len(rest)-1].Role == "user" {
		trailingUser = rest[len(rest)-1].Content
		rest = rest[:len(rest)-1]
	}

	return system, rest, trailingUser
}

// decodeStop normalizes the OpenAI "stop" field, which may be absent, a
// single string, or an array of strings.
func decodeStop(raw any) []string {
	switch v := raw.(type) {
	case nil:
		return nil
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// MergeStopTokens returns the union of a template's default stop tokens
// and the caller-supplied stops, duplicates preserved, per the mandatory
// stop-token merge rule in §4.6/§9: omitting it lets template delimiter
// tokens leak into user-visible output.
func MergeStopTokens(templateName string, callerStops []string) []string {
	merged := append([]string{}, templates.StopTokens(templateName)...)
	merged = append(merged, callerStops...)
	return merged
}

// decodeAnthropicContent resolves an Anthropic message's content field,
// which is either a plain string or an array of content blocks, into a
// single text string. Non-text blocks render as the literal placeholder
// "[<type> content]", except "image" blocks which are reserved for future
// handling and use the same placeholder for now.
func decodeAnthropicContent(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []any:
		texts := make([]string, 0, len(v))
		for _, item := range v {
			block, ok := item.(map[string]any)
			if !ok {
				continue
			}
			blockType, _ := block["type"].(string)
			if blockType == "text" {
				text, _ := block["text"].(string)
				texts = append(texts, text)
				continue
			}
			texts = append(texts, fmt.Sprintf("[%s content]", blockType))
		}
		return joinLines(texts)
	default:
		return ""
	}
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
