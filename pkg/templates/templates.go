// Package templates renders chat messages into the literal prompt strings
// each model family expects, and exposes each family's default stop tokens.
package templates

import "strings"

// Message is one turn in a conversation.
type Message struct {
	Role    string
	Content string
}

// Family names one of the supported prompt-template families.
type Family string

const (
	ChatML   Family = "chatml"
	Llama3   Family = "llama3"
	OpenChat Family = "openchat"
)

// InferTemplateName infers a template family from a model name: names
// containing "qwen" or "chatglm" use ChatML, names containing "llama" use
// Llama3, everything else uses OpenChat.
func InferTemplateName(modelName string) string {
	lower := strings.ToLower(modelName)
	switch {
	case strings.Contains(lower, "qwen"), strings.Contains(lower, "chatglm"):
		return string(ChatML)
	case strings.Contains(lower, "llama"):
		return string(Llama3)
	default:
		return string(OpenChat)
	}
}

// StopTokens returns the default stop-sequence set for a template family
// name, falling back to OpenChat's (empty) set for an unrecognized name.
func StopTokens(templateName string) []string {
	switch Family(templateName) {
	case ChatML:
		return []string{"<|im_end|>", "<|im_start|>"}
	case Llama3:
		return []string{"<|eot_id|>", "<|end_of_text|>"}
	default:
		return nil
	}
}

// Render builds the literal prompt string for a conversation under the
// named template family. system is optional; pairs are ordered
// (user, assistant) turns already completed; trailingUser is the final,
// not-yet-answered user turn, if any.
func Render(templateName string, system string, pairs []Message, trailingUser string) string {
	switch Family(templateName) {
	case ChatML:
		return renderChatML(system, pairs, trailingUser)
	case Llama3:
		return renderLlama3(system, pairs, trailingUser)
	default:
		return renderOpenChat(system, pairs, trailingUser)
	}
}

func renderChatML(system string, pairs []Message, trailingUser string) string {
	var b strings.Builder
	if system != "" {
		b.WriteString("<|im_start|>system\n")
		b.WriteString(system)
		b.WriteString("<|im_end|>\n")
	}
	for _, m := range pairs {
		b.WriteString("<|im_start|>")
		b.WriteString(m.Role)
		b.WriteString("\n")
		b.WriteString(m.Content)
		b.WriteString("<|im_end|>\n")
	}
	if trailingUser != "" {
		b.WriteString("<|im_start|>user\n")
		b.WriteString(trailingUser)
		b.WriteString("<|im_end|>\n<|im_start|>assistant\n")
	}
	return b.String()
}

func renderLlama3(system string, pairs []Message, trailingUser string) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>")
	if system != "" {
		b.WriteString("<|start_header_id|>system<|end_header_id|>\n")
		b.WriteString(system)
		b.WriteString("<|eot_id|>")
	}
	for _, m := range pairs {
		b.WriteString("<|start_header_id|>")
		b.WriteString(m.Role)
		b.WriteString("<|end_header_id|>\n")
		b.WriteString(m.Content)
		b.WriteString("<|eot_id|>")
	}
	if trailingUser != "" {
		b.WriteString("<|start_header_id|>user<|end_header_id|>\n")
		b.WriteString(trailingUser)
		b.WriteString("<|eot_id|><|start_header_id|>assistant<|end_header_id|>\n")
	}
	return b.String()
}

func renderOpenChat(system string, pairs []Message, trailingUser string) string {
	var b strings.Builder
	for _, m := range pairs {
		b.WriteString(m.Role)
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	if trailingUser != "" {
		b.WriteString("user: ")
		b.WriteString(trailingUser)
		b.WriteString("\nassistant: ")
	}
	return b.String()
}
