package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/shl518/vchat/internal/vchat/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const configFields = "configfile, model, temperature, max_tokens, worker_url, proxy_url, enable_access_control, access_code, token, request_timeout, chunk_timeout, worker_decoder, promptdirs, session_retention_days"

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config [field]",
	Short: "Display current configuration",
	Long: `Display the current configuration values.
This command shows all configuration values loaded from the config file and environment variables.
Secrets (access code and token) are masked.

If a field name is specified, only that field's value is displayed.
Available fields: ` + configFields + `

Examples:
  vchat config               # Show all configuration
  vchat config model         # Show only model
  vchat config worker_url    # Show only the worker URL
  vchat config token         # Show only the (masked) token`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		fields := configValues(cfg)

		if len(args) > 0 {
			field := strings.ToLower(args[0])
			for _, f := range fields {
				if f.key == field || f.alias == field {
					fmt.Println(f.value)
					return nil
				}
			}
			fmt.Fprintf(os.Stderr, "Available fields: %s\n", configFields)
			return fmt.Errorf("unknown field: %s", args[0])
		}

		for _, f := range fields {
			fmt.Printf("%s: %s\n", f.label, f.value)
		}
		return nil
	},
}

type configField struct {
	key   string
	alias string
	label string
	value string
}

func configValues(cfg *config.Config) []configField {
	return []configField{
		{"configfile", "", "ConfigFile", viper.ConfigFileUsed()},
		{"model", "", "Model", cfg.Model},
		{"temperature", "", "Temperature", fmt.Sprint(cfg.Temperature)},
		{"max_tokens", "maxtokens", "MaxTokens", fmt.Sprint(cfg.MaxTokens)},
		{"worker_url", "workerurl", "WorkerURL", cfg.WorkerURL},
		{"proxy_url", "proxyurl", "ProxyURL", cfg.ProxyURL},
		{"enable_access_control", "accesscontrol", "EnableAccessControl", fmt.Sprint(cfg.EnableAccessControl)},
		{"access_code", "accesscode", "AccessCode", maskToken(cfg.AccessCode)},
		{"token", "", "Token", maskToken(cfg.Token)},
		{"request_timeout", "requesttimeout", "RequestTimeout", cfg.RequestTimeout.String()},
		{"chunk_timeout", "chunktimeout", "ChunkTimeout", cfg.ChunkTimeout.String()},
		{"worker_decoder", "decoder", "WorkerDecoder", cfg.WorkerDecoder},
		// PromptDirs are already absolute paths
		{"promptdirs", "prompt_dirs", "PromptDirectories", strings.Join(cfg.PromptDirs, ",")},
		{"session_retention_days", "retentiondays", "SessionRetentionDays", fmt.Sprint(cfg.SessionRetentionDays)},
	}
}

// maskToken returns a masked version of the token for security
func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "********"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func init() {
	rootCmd.AddCommand(configCmd)
}
