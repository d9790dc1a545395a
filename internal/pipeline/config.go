// Package pipeline runs a task's ordered sequence of sub-agent steps: one
// step config per invocation, one gated result per completion, resumable
// across orchestrator restarts by replaying the worker's results directory.
package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/harrison/wiggum/internal/apperrors"
)

// StepConfig describes one step of a pipeline: the sub-agent to invoke,
// its prompt template, and the steps it depends on.
type StepConfig struct {
	ID             string   `json:"id"`
	Agent          string   `json:"agent"`
	Prompt         string   `json:"prompt"`
	DependsOn      []string `json:"depends_on,omitempty"`
	ReadOnly       bool     `json:"readonly,omitempty"`
	TimeoutSeconds int      `json:"timeout_seconds,omitempty"`
}

// Config is the full ordered pipeline definition, loaded from
// .wiggum/pipeline.json.
type Config struct {
	Steps []StepConfig `json:"steps"`
}

// LoadConfig reads and validates a pipeline definition.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks that every step has a unique ID and that DependsOn only
// names steps that precede it.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Steps))
	for _, step := range c.Steps {
		if step.ID == "" {
			return fmt.Errorf("pipeline step missing id")
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate pipeline step id %q", step.ID)
		}
		for _, dep := range step.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("step %q depends on %q, which is not defined earlier in the pipeline: %w",
					step.ID, dep, apperrors.ErrNotFound)
			}
		}
		seen[step.ID] = true
	}
	return nil
}

// StepByID returns the step with the given ID.
func (c *Config) StepByID(id string) (StepConfig, bool) {
	for _, s := range c.Steps {
		if s.ID == id {
			return s, true
		}
	}
	return StepConfig{}, false
}
