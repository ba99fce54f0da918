// File: internal/config/config.go
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Values come from the
// config file, environment variables (HEALCTL_ prefix) and CLI flags, in
// ascending order of precedence.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Analysis AnalysisConfig `mapstructure:"analysis" yaml:"analysis"`
	Healing  HealingConfig  `mapstructure:"healing" yaml:"healing"`
	Verify   VerifyConfig   `mapstructure:"verify" yaml:"verify"`
}

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AnalysisConfig configures the external text-generation service client.
type AnalysisConfig struct {
	APIKey             string        `mapstructure:"api_key" yaml:"-"`
	Model              string        `mapstructure:"model" yaml:"model"`
	Endpoint           string        `mapstructure:"endpoint" yaml:"endpoint"`
	APITimeout         time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	MaxRetries         int           `mapstructure:"max_retries" yaml:"max_retries"`
	RateLimitPerMinute int           `mapstructure:"rate_limit_per_minute" yaml:"rate_limit_per_minute"`
	Temperature        float64       `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens    int           `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	MaxPromptChars     int           `mapstructure:"max_prompt_chars" yaml:"max_prompt_chars"`
}

// HealingConfig configures file safety: where test files are allowed to live,
// where backups and the audit trail go, and how long backups are retained.
type HealingConfig struct {
	TestRoot            string `mapstructure:"test_root" yaml:"test_root"`
	MaxFileSizeBytes    int64  `mapstructure:"max_file_size_bytes" yaml:"max_file_size_bytes"`
	BackupDir           string `mapstructure:"backup_dir" yaml:"backup_dir"`
	AuditLogPath        string `mapstructure:"audit_log_path" yaml:"audit_log_path"`
	BackupRetentionDays int    `mapstructure:"backup_retention_days" yaml:"backup_retention_days"`
	MaxBackupsPerFile   int    `mapstructure:"max_backups_per_file" yaml:"max_backups_per_file"`
	ErrorReportPath     string `mapstructure:"error_report_path" yaml:"error_report_path"`
}

// VerifyConfig configures the external test runner used to confirm a fix.
type VerifyConfig struct {
	Command []string      `mapstructure:"command" yaml:"command"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()

	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "healctl")
	v.SetDefault("logger.log_file", filepath.Join(dataDir, "healctl.log"))
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Analysis --
	v.SetDefault("analysis.model", "gemini-2.5-pro")
	v.SetDefault("analysis.api_timeout", "90s")
	v.SetDefault("analysis.max_retries", 3)
	v.SetDefault("analysis.rate_limit_per_minute", 10)
	v.SetDefault("analysis.temperature", 0.1)
	v.SetDefault("analysis.max_output_tokens", 8192)
	v.SetDefault("analysis.max_prompt_chars", 12000)

	// -- Healing --
	v.SetDefault("healing.test_root", "tests")
	v.SetDefault("healing.max_file_size_bytes", 256*1024)
	v.SetDefault("healing.backup_dir", filepath.Join(dataDir, "backups"))
	v.SetDefault("healing.audit_log_path", filepath.Join(dataDir, "audit.jsonl"))
	v.SetDefault("healing.backup_retention_days", 7)
	v.SetDefault("healing.max_backups_per_file", 5)
	v.SetDefault("healing.error_report_path", "healing-errors.json")

	// -- Verify --
	v.SetDefault("verify.command", []string{"npx", "playwright", "test"})
	v.SetDefault("verify.timeout", "5m")
}

// defaultDataDir resolves ~/.healctl, falling back to the working directory
// when the home directory cannot be determined.
func defaultDataDir() string {
	home, err := homedir.Dir()
	if err != nil {
		return ".healctl"
	}
	return filepath.Join(home, ".healctl")
}

// NewConfigFromViper creates a configuration instance from a viper object.
// The API credential is bound to HEALCTL_ANALYSIS_API_KEY so it never has to
// live in the config file.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	_ = v.BindEnv("analysis.api_key", "HEALCTL_ANALYSIS_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// A validation error is fatal: it aborts the run before any test is processed.
func (c *Config) Validate() error {
	key := strings.TrimSpace(c.Analysis.APIKey)
	if key == "" {
		return fmt.Errorf("analysis.api_key is required; set HEALCTL_ANALYSIS_API_KEY")
	}
	if strings.ContainsAny(key, " \t\n") {
		return fmt.Errorf("analysis.api_key is malformed (contains whitespace)")
	}
	if c.Analysis.MaxRetries < 0 {
		return fmt.Errorf("analysis.max_retries must not be negative")
	}
	if c.Analysis.APITimeout <= 0 {
		return fmt.Errorf("analysis.api_timeout must be a positive duration")
	}
	if c.Analysis.RateLimitPerMinute <= 0 {
		return fmt.Errorf("analysis.rate_limit_per_minute must be a positive integer")
	}
	if c.Analysis.MaxPromptChars <= 0 {
		return fmt.Errorf("analysis.max_prompt_chars must be a positive integer")
	}
	if c.Healing.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("healing.max_file_size_bytes must be a positive integer")
	}
	if c.Healing.BackupRetentionDays <= 0 {
		return fmt.Errorf("healing.backup_retention_days must be a positive integer")
	}
	if c.Healing.MaxBackupsPerFile <= 0 {
		return fmt.Errorf("healing.max_backups_per_file must be a positive integer")
	}
	if c.Healing.TestRoot == "" {
		return fmt.Errorf("healing.test_root is required")
	}
	if len(c.Verify.Command) == 0 {
		return fmt.Errorf("verify.command must name the external test runner")
	}
	if c.Verify.Timeout <= 0 {
		return fmt.Errorf("verify.timeout must be a positive duration")
	}
	return nil
}

// global holds the process-wide configuration set during CLI bootstrap.
var global atomic.Pointer[Config]

// Set stores the process-wide configuration.
func Set(c *Config) { global.Store(c) }

// Get returns the process-wide configuration, or an empty config if Set was
// never called (tests construct their own).
func Get() *Config {
	if c := global.Load(); c != nil {
		return c
	}
	return &Config{}
}
