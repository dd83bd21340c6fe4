// Package config handles configuration loading for forgeline.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for forgeline.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	Models    ModelsConfig    `mapstructure:"models"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Server    ServerConfig    `mapstructure:"server"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
	// UseBedrock routes API calls through AWS Bedrock instead of the
	// Anthropic API.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSRegion is the Bedrock region; empty uses the AWS default chain.
	AWSRegion string `mapstructure:"aws_region"`
	// AWSProfile is an optional shared-config profile for Bedrock.
	AWSProfile string `mapstructure:"aws_profile"`
}

// ModelsConfig selects the models for the two pipeline roles.
type ModelsConfig struct {
	// Planner is the model used for plan acquisition.
	Planner string `mapstructure:"planner"`
	// Synthesizer is the model used for per-component synthesis.
	Synthesizer string `mapstructure:"synthesizer"`
}

// PipelineConfig holds scheduling and retry settings.
type PipelineConfig struct {
	// MaxConcurrency bounds in-flight synthesis calls.
	MaxConcurrency int `mapstructure:"max_concurrency"`
	// MaxAttempts is the per-component synthesis retry budget.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryBackoff is the base delay between synthesis retries.
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	// PlanAttempts is the corrective-retry budget for unparsable plans.
	PlanAttempts int `mapstructure:"plan_attempts"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// PathsConfig holds filesystem locations.
type PathsConfig struct {
	// ScaffoldDir seeds each generated project; empty disables seeding.
	ScaffoldDir string `mapstructure:"scaffold_dir"`
	// OutputDir is where generated projects are materialized.
	OutputDir string `mapstructure:"output_dir"`
	// DBPath is the run-history database; empty uses the XDG default.
	DBPath string `mapstructure:"db_path"`
}

// Load loads configuration with the following precedence (highest first):
// environment variables (ANTHROPIC_API_KEY), project config (.forgeline.yaml
// in the current directory or a parent), user config
// (~/.config/forgeline/config.yaml), built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// LoadFromPath loads configuration from a specific file (for testing).
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)
	return cfg, nil
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Models: ModelsConfig{
			Planner:     "claude-sonnet-4-5-20250929",
			Synthesizer: "claude-sonnet-4-5-20250929",
		},
		Pipeline: PipelineConfig{
			MaxConcurrency: 4,
			MaxAttempts:    3,
			RetryBackoff:   500 * time.Millisecond,
			PlanAttempts:   3,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Paths: PathsConfig{
			OutputDir: "out",
		},
	}
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	def := Default()
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.use_bedrock", false)
	v.SetDefault("anthropic.aws_region", "")
	v.SetDefault("anthropic.aws_profile", "")
	v.SetDefault("models.planner", def.Models.Planner)
	v.SetDefault("models.synthesizer", def.Models.Synthesizer)
	v.SetDefault("pipeline.max_concurrency", def.Pipeline.MaxConcurrency)
	v.SetDefault("pipeline.max_attempts", def.Pipeline.MaxAttempts)
	v.SetDefault("pipeline.retry_backoff", def.Pipeline.RetryBackoff.String())
	v.SetDefault("pipeline.plan_attempts", def.Pipeline.PlanAttempts)
	v.SetDefault("server.addr", def.Server.Addr)
	v.SetDefault("paths.scaffold_dir", "")
	v.SetDefault("paths.output_dir", def.Paths.OutputDir)
	v.SetDefault("paths.db_path", "")
}

// getUserConfigDir returns the XDG config directory for forgeline.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "forgeline")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "forgeline")
	}
	return filepath.Join(home, ".config", "forgeline")
}

// findProjectConfig searches for .forgeline.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".forgeline.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}
	return ""
}
