package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/shl518/vchat/internal/vchat/config"
	"github.com/spf13/cobra"
)

// fileConfig is the layout written by init. Durations are written as
// strings such as "60s", which viper decodes back into time.Duration.
type fileConfig struct {
	Model                string   `toml:"model"`
	Temperature          float64  `toml:"temperature"`
	MaxTokens            int      `toml:"max_tokens"`
	WorkerURL            string   `toml:"worker_url"`
	ProxyURL             string   `toml:"proxy_url"`
	EnableAccessControl  bool     `toml:"enable_access_control"`
	AccessCode           string   `toml:"access_code"`
	Token                string   `toml:"token"`
	RequestTimeout       string   `toml:"request_timeout"`
	ChunkTimeout         string   `toml:"chunk_timeout"`
	WorkerDecoder        string   `toml:"worker_decoder"`
	PromptDirs           []string `toml:"prompt_dirs"`
	SessionRetentionDays int      `toml:"session_retention_days"`
}

func newFileConfig(cfg *config.Config) fileConfig {
	return fileConfig{
		Model:                cfg.Model,
		Temperature:          cfg.Temperature,
		MaxTokens:            cfg.MaxTokens,
		WorkerURL:            cfg.WorkerURL,
		ProxyURL:             cfg.ProxyURL,
		EnableAccessControl:  cfg.EnableAccessControl,
		AccessCode:           cfg.AccessCode,
		Token:                cfg.Token,
		RequestTimeout:       cfg.RequestTimeout.String(),
		ChunkTimeout:         cfg.ChunkTimeout.String(),
		WorkerDecoder:        cfg.WorkerDecoder,
		PromptDirs:           cfg.PromptDirs,
		SessionRetentionDays: cfg.SessionRetentionDays,
	}
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the configuration file",
	Long: `Initialize the configuration file with default settings.
The config file will be created at $HOME/.config/vchat/config.toml by default.
You can specify a different location using the --config option.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %v", err)
		}

		configFile := filepath.Join(home, ".config", "vchat", "config.toml")
		if cfgFile != "" {
			configFile = cfgFile
		}

		configDir := filepath.Dir(configFile)
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %v", err)
		}

		if _, err := os.Stat(configFile); err == nil {
			return fmt.Errorf("config file already exists at: %s", configFile)
		}

		promptsDir := filepath.Join(configDir, "prompts")
		cfg := config.NewDefaultConfig(promptsDir)

		f, err := os.Create(configFile)
		if err != nil {
			return fmt.Errorf("failed to create config file: %v", err)
		}
		defer f.Close()

		if err := toml.NewEncoder(f).Encode(newFileConfig(cfg)); err != nil {
			return fmt.Errorf("failed to encode config: %v", err)
		}

		if err := os.MkdirAll(promptsDir, 0755); err != nil {
			return fmt.Errorf("failed to create prompts directory: %v", err)
		}

		fmt.Printf("Configuration file created at: %s\n", configFile)
		fmt.Printf("Prompts directory created at: %s\n", promptsDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
