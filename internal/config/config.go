package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the orchestrator's runtime configuration: concurrency
// limits, scheduler scoring weights, and file locations. Values are layered
// defaults -> YAML file -> environment variables -> CLI flags, each
// overriding the previous.
type Config struct {
	// MaxWorkers caps concurrently running workers across the pool (0 = unlimited).
	MaxWorkers int `yaml:"max_workers"`

	// TickInterval is how often the scheduler wakes to re-evaluate the board.
	TickInterval time.Duration `yaml:"tick_interval"`

	// LogLevel sets logging verbosity (trace, debug, info, warn, error).
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory console/file logs are written under.
	LogDir string `yaml:"log_dir"`

	// BoardPath is the path to the markdown task board.
	BoardPath string `yaml:"board_path"`

	// PipelineConfigPath is the path to the pipeline definition JSON.
	PipelineConfigPath string `yaml:"pipeline_config_path"`

	// AgingFactor scales the aging bonus added to a ready task's score: the
	// bonus is AgingFactor times the minutes since the task was first
	// recorded ready. It counts wall-clock minutes, not scheduler ticks.
	AgingFactor float64 `yaml:"aging_factor"`

	// SiblingWIPPenalty is subtracted from a task's score per sibling task
	// already in progress under the same parent.
	SiblingWIPPenalty float64 `yaml:"sibling_wip_penalty"`

	// PlanBonus is added to tasks that have at least one dependency or at
	// least one dependent on the board. No plan document is looked up.
	PlanBonus float64 `yaml:"plan_bonus"`

	// DepBonusPerTask is added to a task's score per downstream dependent.
	DepBonusPerTask float64 `yaml:"dep_bonus_per_task"`

	// SkipBackoff is the minimum wait before a skipped task becomes eligible again.
	SkipBackoff time.Duration `yaml:"skip_backoff"`

	// DryRun disables worker spawning; the scheduler logs what it would do.
	DryRun bool `yaml:"dry_run"`

	// BaseBranch is the git ref each worker's worktree is pinned to when created.
	BaseBranch string `yaml:"base_branch"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		MaxWorkers:         4,
		TickInterval:       5 * time.Second,
		LogLevel:           "info",
		LogDir:             filepath.Join(".wiggum", "logs"),
		BoardPath:          "BOARD.md",
		PipelineConfigPath: filepath.Join(".wiggum", "pipeline.json"),
		AgingFactor:        1.0,
		SiblingWIPPenalty:  50.0,
		PlanBonus:          100.0,
		DepBonusPerTask:    25.0,
		SkipBackoff:        10 * time.Minute,
		DryRun:             false,
		BaseBranch:         "main",
	}
}

// LoadConfig loads configuration from the specified YAML file path. If the
// file doesn't exist, returns defaults without error. If it exists but is
// malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return applyEnvOverrides(cfg), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	type yamlConfig struct {
		MaxWorkers         int     `yaml:"max_workers"`
		TickInterval       string  `yaml:"tick_interval"`
		LogLevel           string  `yaml:"log_level"`
		LogDir             string  `yaml:"log_dir"`
		BoardPath          string  `yaml:"board_path"`
		PipelineConfigPath string  `yaml:"pipeline_config_path"`
		AgingFactor        float64 `yaml:"aging_factor"`
		SiblingWIPPenalty  float64 `yaml:"sibling_wip_penalty"`
		PlanBonus          float64 `yaml:"plan_bonus"`
		DepBonusPerTask    float64 `yaml:"dep_bonus_per_task"`
		SkipBackoff        string  `yaml:"skip_backoff"`
		DryRun             bool    `yaml:"dry_run"`
		BaseBranch         string  `yaml:"base_branch"`
	}

	var yamlCfg yamlConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlCfg.MaxWorkers != 0 {
		cfg.MaxWorkers = yamlCfg.MaxWorkers
	}
	if yamlCfg.TickInterval != "" {
		d, err := time.ParseDuration(yamlCfg.TickInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid tick_interval %q: %w", yamlCfg.TickInterval, err)
		}
		cfg.TickInterval = d
	}
	if yamlCfg.LogLevel != "" {
		cfg.LogLevel = yamlCfg.LogLevel
	}
	if yamlCfg.LogDir != "" {
		cfg.LogDir = yamlCfg.LogDir
	}
	if yamlCfg.BoardPath != "" {
		cfg.BoardPath = yamlCfg.BoardPath
	}
	if yamlCfg.PipelineConfigPath != "" {
		cfg.PipelineConfigPath = yamlCfg.PipelineConfigPath
	}
	if yamlCfg.AgingFactor != 0 {
		cfg.AgingFactor = yamlCfg.AgingFactor
	}
	if yamlCfg.SiblingWIPPenalty != 0 {
		cfg.SiblingWIPPenalty = yamlCfg.SiblingWIPPenalty
	}
	if yamlCfg.PlanBonus != 0 {
		cfg.PlanBonus = yamlCfg.PlanBonus
	}
	if yamlCfg.DepBonusPerTask != 0 {
		cfg.DepBonusPerTask = yamlCfg.DepBonusPerTask
	}
	if yamlCfg.SkipBackoff != "" {
		d, err := time.ParseDuration(yamlCfg.SkipBackoff)
		if err != nil {
			return nil, fmt.Errorf("invalid skip_backoff %q: %w", yamlCfg.SkipBackoff, err)
		}
		cfg.SkipBackoff = d
	}
	if yamlCfg.DryRun {
		cfg.DryRun = yamlCfg.DryRun
	}
	if yamlCfg.BaseBranch != "" {
		cfg.BaseBranch = yamlCfg.BaseBranch
	}

	return applyEnvOverrides(cfg), nil
}

// LoadConfigFromDir loads configuration from .wiggum/config.yaml under dir.
func LoadConfigFromDir(dir string) (*Config, error) {
	configPath := filepath.Join(dir, ".wiggum", "config.yaml")
	return LoadConfig(configPath)
}

// applyEnvOverrides layers WIGGUM_* environment variables over cfg, the
// highest-precedence layer after CLI flags.
func applyEnvOverrides(cfg *Config) *Config {
	if v := os.Getenv("WIGGUM_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv("WIGGUM_AGING_FACTOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.AgingFactor = f
		}
	}
	if v := os.Getenv("WIGGUM_SIBLING_WIP_PENALTY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SiblingWIPPenalty = f
		}
	}
	if v := os.Getenv("WIGGUM_PLAN_BONUS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.PlanBonus = f
		}
	}
	if v := os.Getenv("WIGGUM_DEP_BONUS_PER_TASK"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.DepBonusPerTask = f
		}
	}
	if v := os.Getenv("WIGGUM_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("WIGGUM_BOARD_PATH"); v != "" {
		cfg.BoardPath = v
	}
	if v := os.Getenv("WIGGUM_BASE_BRANCH"); v != "" {
		cfg.BaseBranch = v
	}
	return cfg
}

// MergeWithFlags merges CLI flag values into the configuration. Non-nil
// pointers override whatever was set by file or environment.
func (c *Config) MergeWithFlags(maxWorkers *int, tickInterval *time.Duration, logDir *string, dryRun *bool) {
	if maxWorkers != nil {
		c.MaxWorkers = *maxWorkers
	}
	if tickInterval != nil {
		c.TickInterval = *tickInterval
	}
	if logDir != nil {
		c.LogDir = *logDir
	}
	if dryRun != nil {
		c.DryRun = *dryRun
	}
}

// Validate checks the configuration for internally inconsistent values.
func (c *Config) Validate() error {
	if c.MaxWorkers < 0 {
		return fmt.Errorf("max_workers must be >= 0, got %d", c.MaxWorkers)
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.TickInterval <= 0 {
		return fmt.Errorf("tick_interval must be > 0, got %v", c.TickInterval)
	}
	if c.SkipBackoff < 0 {
		return fmt.Errorf("skip_backoff must be >= 0, got %v", c.SkipBackoff)
	}
	if c.BoardPath == "" {
		return fmt.Errorf("board_path cannot be empty")
	}

	return nil
}
