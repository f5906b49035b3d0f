package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("VCHAT_TEST_TOKEN", "secret")

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "literal", input: "plain", want: "plain"},
		{name: "dollar", input: "$VCHAT_TEST_TOKEN", want: "secret"},
		{name: "braces", input: "${VCHAT_TEST_TOKEN}", want: "secret"},
		{name: "unset", input: "$VCHAT_TEST_UNSET", want: ""},
		{name: "empty name", input: "$", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandEnvVar(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestModelConfig(t *testing.T) {
	cfg := NewDefaultConfig("/tmp/prompts")
	mc := cfg.ModelConfig()
	assert.Equal(t, "vicuna-13b", mc.Model)
	assert.Equal(t, 0.7, mc.Temperature)
	require.NotNil(t, mc.MaxTokens)
	assert.Equal(t, 512, *mc.MaxTokens)

	// the snapshot does not follow later edits
	cfg.MaxTokens = 1
	assert.Equal(t, 512, *mc.MaxTokens)

	cfg.MaxTokens = 0
	assert.Nil(t, cfg.ModelConfig().MaxTokens)
}

func TestSetModelConfig(t *testing.T) {
	cfg := NewDefaultConfig("/tmp/prompts")
	mc := cfg.ModelConfig()
	mc.Model = "vicuna-7b"
	mc.Temperature = 0.1
	cfg.SetModelConfig(mc)

	assert.Equal(t, "vicuna-7b", cfg.Model)
	assert.Equal(t, 0.1, cfg.Temperature)
	assert.Equal(t, 512, cfg.MaxTokens)

	mc.MaxTokens = nil
	cfg.SetModelConfig(mc)
	assert.Equal(t, 0, cfg.MaxTokens)
	assert.Nil(t, cfg.ModelConfig().MaxTokens)
}

func TestAccess(t *testing.T) {
	cfg := &Config{EnableAccessControl: true, AccessCode: "code", Token: "tok"}
	assert.True(t, cfg.EnabledAccessControl())
	assert.Equal(t, "code", cfg.GetAccessCode())
	assert.Equal(t, "tok", cfg.GetToken())
}

func TestValidate(t *testing.T) {
	cfg := NewDefaultConfig("/tmp/prompts")
	assert.NoError(t, cfg.Validate())

	cfg.EnableAccessControl = true
	cfg.AccessCode = ""
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig("/tmp/prompts")
	cfg.WorkerURL = ""
	assert.Error(t, cfg.Validate())

	cfg = NewDefaultConfig("/tmp/prompts")
	cfg.WorkerDecoder = "strict"
	assert.NoError(t, cfg.Validate())
	cfg.WorkerDecoder = "lenient"
	assert.Error(t, cfg.Validate())
}

func TestLoadConfig(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("VCHAT_TEST_TOKEN", "from-env")

	viper.Set("model", "vicuna-7b")
	viper.Set("temperature", 0.3)
	viper.Set("token", "${VCHAT_TEST_TOKEN}")
	viper.Set("chunk_timeout", "5s")
	viper.Set("prompt_dirs", []string{"prompts"})

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "vicuna-7b", cfg.Model)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, "from-env", cfg.Token)
	assert.Equal(t, 5*time.Second, cfg.ChunkTimeout)
	require.Len(t, cfg.PromptDirs, 1)
	assert.True(t, filepath.IsAbs(cfg.PromptDirs[0]))
}
