package config

import (
	"fmt"
	"time"

	"github.com/shl518/vchat/internal/vchat"
	"github.com/spf13/viper"
)

// Config holds the configuration for the vchat client
type Config struct {
	Model                string        `toml:"model" mapstructure:"model"`
	Temperature          float64       `toml:"temperature" mapstructure:"temperature"`
	MaxTokens            int           `toml:"max_tokens" mapstructure:"max_tokens"` // 0 = let the worker decide
	WorkerURL            string        `toml:"worker_url" mapstructure:"worker_url"`
	ProxyURL             string        `toml:"proxy_url" mapstructure:"proxy_url"`
	EnableAccessControl  bool          `toml:"enable_access_control" mapstructure:"enable_access_control"`
	AccessCode           string        `toml:"access_code" mapstructure:"access_code"`
	Token                string        `toml:"token" mapstructure:"token"`
	RequestTimeout       time.Duration `toml:"request_timeout" mapstructure:"request_timeout"`
	ChunkTimeout         time.Duration `toml:"chunk_timeout" mapstructure:"chunk_timeout"`
	WorkerDecoder        string        `toml:"worker_decoder" mapstructure:"worker_decoder"` // repair or strict
	PromptDirs           []string      `toml:"prompt_dirs" mapstructure:"prompt_dirs"`
	SessionRetentionDays int           `toml:"session_retention_days" mapstructure:"session_retention_days"` // Number of days to retain sessions (default: 30)
}

// ModelConfig returns a snapshot of the model parameters.
func (c *Config) ModelConfig() vchat.ModelConfig {
	mc := vchat.ModelConfig{
		Model:       c.Model,
		Temperature: c.Temperature,
	}
	if c.MaxTokens > 0 {
		maxTokens := c.MaxTokens
		mc.MaxTokens = &maxTokens
	}
	return mc
}

// SetModelConfig copies the model parameters of mc into the config.
// A nil MaxTokens clears the limit.
func (c *Config) SetModelConfig(mc vchat.ModelConfig) {
	c.Model = mc.Model
	c.Temperature = mc.Temperature
	c.MaxTokens = 0
	if mc.MaxTokens != nil {
		c.MaxTokens = *mc.MaxTokens
	}
}

// EnabledAccessControl reports whether the proxy expects an access code.
func (c *Config) EnabledAccessControl() bool {
	return c.EnableAccessControl
}

// GetAccessCode returns the access code.
func (c *Config) GetAccessCode() string {
	return c.AccessCode
}

// GetToken returns the API token forwarded to the proxy.
func (c *Config) GetToken() string {
	return c.Token
}

// NewDefaultConfig returns a new Config with default values
func NewDefaultConfig(promptDir string) *Config {
	return &Config{
		Model:                "vicuna-13b",
		Temperature:          0.7,
		MaxTokens:            512,
		WorkerURL:            "http://192.168.1.101:21002",
		ProxyURL:             "http://localhost:3000",
		EnableAccessControl:  false,
		AccessCode:           "$VCHAT_ACCESS_CODE",
		Token:                "$OPENAI_API_KEY", // Default to env var
		RequestTimeout:       60 * time.Second,
		ChunkTimeout:         60 * time.Second,
		WorkerDecoder:        "repair",
		PromptDirs:           []string{promptDir},
		SessionRetentionDays: 30, // Default: delete sessions older than 30 days
	}
}

// LoadConfig loads configuration from viper
func LoadConfig() (*Config, error) {
	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %v", err)
	}

	var err error
	if config.Token, err = expandEnvVar(config.Token); err != nil {
		return nil, fmt.Errorf("error expanding token: %v", err)
	}
	if config.AccessCode, err = expandEnvVar(config.AccessCode); err != nil {
		return nil, fmt.Errorf("error expanding access code: %v", err)
	}

	// Convert prompt directories to absolute paths
	for i, promptDir := range config.PromptDirs {
		absPath, err := ResolvePath(promptDir)
		if err != nil {
			return nil, fmt.Errorf("error resolving prompt directory path '%s': %v", promptDir, err)
		}
		config.PromptDirs[i] = absPath
	}

	return config, nil
}
