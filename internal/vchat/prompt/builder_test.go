package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shl518/vchat/internal/vchat"
)

func msg(role, content string) vchat.Message {
	return vchat.Message{Role: role, Content: content, Date: "2024/1/1 00:00:00"}
}

func TestFormatPrompt(t *testing.T) {
	tests := []struct {
		name     string
		messages []vchat.Message
		want     string
	}{
		{
			name:     "empty conversation",
			messages: nil,
			want:     "Assistant:",
		},
		{
			name:     "single user message",
			messages: []vchat.Message{msg("user", "hi")},
			want:     "Human: hi###Assistant:",
		},
		{
			name: "multi turn",
			messages: []vchat.Message{
				msg("user", "hi"),
				msg("assistant", "hello"),
				msg("user", "how are you?"),
			},
			want: "Human: hi###Assistant: hello###Human: how are you?###Assistant:",
		},
		{
			name:     "empty content has no separator",
			messages: []vchat.Message{msg("user", "hi"), msg("assistant", "")},
			want:     "Human: hi###Assistant:Assistant:",
		},
		{
			name:     "system and unknown roles are labelled assistant",
			messages: []vchat.Message{msg("system", "be brief"), msg("tool", "x")},
			want:     "Assistant: be brief###Assistant: x###Assistant:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatPrompt(tt.messages, Separator)
			assert.Equal(t, tt.want, got)
			assert.True(t, strings.HasSuffix(got, "Assistant:"))
			// deterministic for the same input
			assert.Equal(t, got, FormatPrompt(tt.messages, Separator))
		})
	}
}

func TestFilterBot(t *testing.T) {
	messages := []vchat.Message{
		msg("system", "s"),
		msg("user", "a"),
		msg("assistant", "b"),
		msg("user", "c"),
		msg("assistant", "d"),
	}

	got := FilterBot(messages)

	require.Len(t, got, 3)
	assert.Equal(t, []string{"s", "a", "c"}, []string{got[0].Content, got[1].Content, got[2].Content})
	for _, m := range got {
		assert.NotEqual(t, vchat.RoleAssistant, m.Role)
	}
	// the input slice is untouched
	assert.Len(t, messages, 5)
}

func TestMakeRequestParam(t *testing.T) {
	maxTokens := 256
	model := vchat.ModelConfig{Model: "vicuna-13b", Temperature: 0.7, MaxTokens: &maxTokens}
	messages := []vchat.Message{msg("user", "hi"), msg("assistant", "hello"), msg("user", "bye")}

	t.Run("keeps assistant messages by default", func(t *testing.T) {
		req := MakeRequestParam(messages, model, Options{})
		assert.Equal(t, "Human: hi###Assistant: hello###Human: bye###Assistant:", req.Prompt)
		assert.Equal(t, "vicuna-13b", req.Model)
		assert.Equal(t, 0.7, req.Temperature)
		require.NotNil(t, req.MaxNewTokens)
		assert.Equal(t, 256, *req.MaxNewTokens)
		assert.Equal(t, Separator, req.Stop)
	})

	t.Run("filter bot", func(t *testing.T) {
		req := MakeRequestParam(messages, model, Options{FilterBot: true})
		assert.Equal(t, "Human: hi###Human: bye###Assistant:", req.Prompt)
	})

	t.Run("max tokens unset", func(t *testing.T) {
		req := MakeRequestParam(messages, vchat.ModelConfig{Model: "m"}, Options{})
		assert.Nil(t, req.MaxNewTokens)
	})
}

func TestSkipEchoLen(t *testing.T) {
	tests := []struct {
		name   string
		prompt string
		want   int
	}{
		{"plain", "Human: hi###Assistant:", 23},
		{"end of sequence marker becomes one space", "a</s>b", 4},
		{"only first marker is normalized", "</s></s>", 6},
		{"astral runes count as two units", "😀", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SkipEchoLen(tt.prompt))
		})
	}
}

func TestSliceUTF16(t *testing.T) {
	assert.Equal(t, "hello", SliceUTF16("Human: hi###Assistant: hello", SkipEchoLen("Human: hi###Assistant:")))
	assert.Equal(t, "", SliceUTF16("short", 10))
	assert.Equal(t, "abc", SliceUTF16("abc", 0))
	assert.Equal(t, "b", SliceUTF16("😀b", 2))
	assert.Equal(t, "é!", SliceUTF16("éé!", 1))
}
