package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/shl518/vchat/internal/logging"
	"github.com/shl518/vchat/internal/vchat/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
	verbose bool
	logger  = slog.Default()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vchat",
	Short: "A CLI chat client for vicuna model workers",
	Long: `vchat is a command-line chat client for a vicuna (FastChat) model worker.
Replies are streamed from the worker; non-streaming chat, model listing and
billing usage go through an OpenAI-compatible proxy.
You can configure the tool using a TOML configuration file.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging, initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/vchat/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func initLogging() {
	logger = logging.Setup(logging.Config{Verbose: verbose})
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix("VCHAT")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	cobra.CheckErr(err)
	userConfigDir := filepath.Join(home, ".config", "vchat")

	// Later directories in the array take precedence over earlier ones
	defaultPromptDirs := []string{
		"/usr/share/vchat/prompts",
		"/usr/local/share/vchat/prompts",
		filepath.Join(userConfigDir, "prompts"),
	}
	defaultConfig := config.NewDefaultConfig(filepath.Join(userConfigDir, "prompts"))

	viper.SetDefault("model", defaultConfig.Model)
	viper.SetDefault("temperature", defaultConfig.Temperature)
	viper.SetDefault("max_tokens", defaultConfig.MaxTokens)
	viper.SetDefault("worker_url", defaultConfig.WorkerURL)
	viper.SetDefault("proxy_url", defaultConfig.ProxyURL)
	viper.SetDefault("enable_access_control", defaultConfig.EnableAccessControl)
	viper.SetDefault("access_code", defaultConfig.AccessCode)
	viper.SetDefault("token", defaultConfig.Token)
	viper.SetDefault("request_timeout", defaultConfig.RequestTimeout)
	viper.SetDefault("chunk_timeout", defaultConfig.ChunkTimeout)
	viper.SetDefault("worker_decoder", defaultConfig.WorkerDecoder)
	viper.SetDefault("prompt_dirs", defaultPromptDirs)
	viper.SetDefault("session_retention_days", defaultConfig.SessionRetentionDays)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
		}
	} else {
		// Load system-wide config first (lower priority)
		viper.AddConfigPath("/etc/vchat")
		viper.AddConfigPath("/usr/local/etc/vchat")
		viper.SetConfigType("toml")
		viper.SetConfigName("config")

		systemConfigLoaded := false
		if err := viper.ReadInConfig(); err == nil {
			systemConfigLoaded = true
			logger.Debug("loaded system-wide config", "file", viper.ConfigFileUsed())
		}

		// Load user config (higher priority) - merge with system config
		viper.AddConfigPath(userConfigDir)
		if systemConfigLoaded {
			if err := viper.MergeInConfig(); err != nil {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					fmt.Fprintf(os.Stderr, "Error merging user config file: %v\n", err)
				}
			} else {
				logger.Debug("merged user config", "file", viper.ConfigFileUsed())
			}
		} else if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				fmt.Fprintf(os.Stderr, "Error reading config file: %v\n", err)
			}
		}
	}

	logger.Debug("configuration",
		"file", viper.ConfigFileUsed(),
		"model", viper.GetString("model"),
		"worker_url", viper.GetString("worker_url"),
		"proxy_url", viper.GetString("proxy_url"),
		"prompt_dirs", viper.GetStringSlice("prompt_dirs"),
	)
}
