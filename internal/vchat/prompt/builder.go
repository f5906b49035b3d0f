package prompt

import (
	"strings"
	"unicode/utf16"

	"github.com/shl518/vchat/internal/vchat"
)

const (
	// Separator delimits turns in a vicuna v1 prompt and doubles as the stop string.
	Separator = "###"

	// EndOfSequence is the marker normalized to a space before measuring the echo.
	EndOfSequence = "</s>"

	assistantCue = "Assistant:"
)

// Options controls how a GenerationRequest is built.
type Options struct {
	// FilterBot drops assistant messages before formatting.
	FilterBot bool
}

// MakeRequestParam builds the request for messages using a snapshot of model.
func MakeRequestParam(messages []vchat.Message, model vchat.ModelConfig, opts Options) vchat.GenerationRequest {
	if opts.FilterBot {
		messages = FilterBot(messages)
	}

	return vchat.GenerationRequest{
		Prompt:       FormatPrompt(messages, Separator),
		Model:        model.Model,
		Temperature:  model.Temperature,
		MaxNewTokens: model.MaxTokens,
		Stop:         Separator,
	}
}

// FilterBot returns the messages whose role is not assistant, in order.
func FilterBot(messages []vchat.Message) []vchat.Message {
	filtered := make([]vchat.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role != vchat.RoleAssistant {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// FormatPrompt renders messages as a single vicuna prompt ending in the
// assistant cue.
func FormatPrompt(messages []vchat.Message, sep string) string {
	var b strings.Builder
	for _, m := range messages {
		label := roleLabel(m.Role)
		if m.Content != "" {
			b.WriteString(label + ": " + m.Content + sep)
		} else {
			b.WriteString(label + ":")
		}
	}
	b.WriteString(assistantCue)
	return b.String()
}

// roleLabel maps "user" to "Human"; every other role, known or not, is "Assistant".
func roleLabel(role string) string {
	if role == vchat.RoleUser {
		return "Human"
	}
	return "Assistant"
}

// SkipEchoLen returns how many leading UTF-16 code units of a streamed
// chunk echo the prompt.
func SkipEchoLen(prompt string) int {
	normalized := strings.Replace(prompt, EndOfSequence, " ", 1)
	return UTF16Len(normalized) + 1
}

// UTF16Len returns the length of s in UTF-16 code units.
func UTF16Len(s string) int {
	n := 0
	for _, r := range s {
		n += len(utf16.AppendRune(nil, r))
	}
	return n
}

// SliceUTF16 returns s without its first n UTF-16 code units. It returns
// "" when s is shorter than n.
func SliceUTF16(s string, n int) string {
	if n <= 0 {
		return s
	}
	units := utf16.Encode([]rune(s))
	if n >= len(units) {
		return ""
	}
	return string(utf16.Decode(units[n:]))
}
