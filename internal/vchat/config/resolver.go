package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// expandEnvVar expands environment variable references in the given value
// Supports both $VAR and ${VAR} syntax
// If the environment variable is not set, returns empty string.
func expandEnvVar(value string) (string, error) {
	if !strings.HasPrefix(value, "$") {
		return value, nil
	}

	var envVarName string
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVarName = value[2 : len(value)-1]
	} else {
		envVarName = strings.TrimPrefix(value, "$")
	}

	if envVarName == "" {
		return "", fmt.Errorf("empty environment variable reference: %q", value)
	}

	return os.Getenv(envVarName), nil
}

// Validate checks the settings needed to reach the backends.
func (c *Config) Validate() error {
	if c.WorkerURL == "" {
		return fmt.Errorf("worker URL is not configured. Set it in config file (worker_url) or environment variable (VCHAT_WORKER_URL)")
	}
	if c.ProxyURL == "" {
		return fmt.Errorf("proxy URL is not configured. Set it in config file (proxy_url) or environment variable (VCHAT_PROXY_URL)")
	}
	switch c.WorkerDecoder {
	case "", "repair", "strict":
	default:
		return fmt.Errorf("unknown worker_decoder %q: use \"repair\" or \"strict\"", c.WorkerDecoder)
	}
	if c.EnableAccessControl && c.AccessCode == "" {
		return fmt.Errorf("access control is enabled but no access code is configured. Set it in config file (access_code) or environment variable (VCHAT_ACCESS_CODE)")
	}
	return nil
}

// ResolvePath converts a relative path to absolute path if needed
func ResolvePath(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}

	// Get config file directory as base directory
	configFile := viper.ConfigFileUsed()
	if configFile == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %v", err)
		}
		return filepath.Join(cwd, path), nil
	}

	configDir := filepath.Dir(configFile)
	if !filepath.IsAbs(configDir) {
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("error getting current working directory: %v", err)
		}
		configDir = filepath.Join(cwd, configDir)
	}

	return filepath.Join(configDir, path), nil
}
