package operations

import (
	"time"

	"pvinsight/internal/config"
)

// Config represents the pipeline execution configuration
type Config struct {
	// Step-specific timeouts
	StageTimeouts map[string]time.Duration `json:"stage_timeouts"`

	// Default step timeout
	StepTimeout time.Duration `json:"step_timeout"`

	// Timeout of a whole run
	RunTimeout time.Duration `json:"run_timeout"`

	// Retry configuration for steps
	RetryConfig RetryConfig `json:"retry_config"`

	// Whether to continue on Step failures
	ContinueOnError bool `json:"continue_on_error"`
}

// NewConfig returns the default pipeline configuration
func NewConfig() *Config {
	return &Config{
		StageTimeouts: map[string]time.Duration{
			StepIDLoad: DefaultLoadTimeout,
		},
		StepTimeout:     DefaultStageTimeout,
		RunTimeout:      4 * DefaultStageTimeout,
		RetryConfig:     NewRetryConfig(),
		ContinueOnError: false,
	}
}

// ConfigFromJobs builds the pipeline configuration from the jobs section.
func ConfigFromJobs(jobs config.JobsConfig) *Config {
	b := NewConfigBuilder()
	if jobs.StepTimeout > 0 {
		b.config.StepTimeout = jobs.StepTimeout
	}
	if jobs.JobTimeout > 0 {
		b.config.RunTimeout = jobs.JobTimeout
	}
	if jobs.MaxAttempts > 0 {
		retry := NewRetryConfig()
		retry.MaxAttempts = jobs.MaxAttempts
		b.WithRetryConfig(retry)
	}
	return b.Build()
}

// GetStageTimeout returns the timeout for a specific Step
func (c *Config) GetStageTimeout(stepID string) time.Duration {
	if timeout, ok := c.StageTimeouts[stepID]; ok {
		return timeout
	}
	if c.StepTimeout > 0 {
		return c.StepTimeout
	}
	return DefaultStageTimeout
}

// SetStageTimeout sets the timeout for a specific Step
func (c *Config) SetStageTimeout(stepID string, timeout time.Duration) {
	if c.StageTimeouts == nil {
		c.StageTimeouts = make(map[string]time.Duration)
	}
	c.StageTimeouts[stepID] = timeout
}

// ConfigBuilder provides a fluent interface for building configurations
type ConfigBuilder struct {
	config *Config
}

// NewConfigBuilder creates a new configuration builder
func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: NewConfig(),
	}
}

// WithStageTimeout sets the timeout for a Step
func (b *ConfigBuilder) WithStageTimeout(stepID string, timeout time.Duration) *ConfigBuilder {
	b.config.SetStageTimeout(stepID, timeout)
	return b
}

// WithRetryConfig sets the retry configuration
func (b *ConfigBuilder) WithRetryConfig(retry RetryConfig) *ConfigBuilder {
	b.config.RetryConfig = retry
	return b
}

// WithContinueOnError sets whether to continue on errors
func (b *ConfigBuilder) WithContinueOnError(continueOnError bool) *ConfigBuilder {
	b.config.ContinueOnError = continueOnError
	return b
}

// Build returns the built configuration
func (b *ConfigBuilder) Build() *Config {
	return b.config
}
