// Package config resolves pipeline settings from defaults, the optional
// workspace config file, and STORYRUNNER_* environment overrides, in that
// order of precedence (lowest first).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Defaults for all tunable budgets.
const (
	DefaultIterTimeout    = 480 * time.Second
	DefaultStallTimeout   = 180 * time.Second
	DefaultStoryTimeout   = 3600 * time.Second
	DefaultPollInterval   = 5 * time.Second
	DefaultGracePeriod    = 60 * time.Second
	DefaultRetryDelay     = 2 * time.Second
	DefaultMaxRetries     = 3
	DefaultMaxReviewIters = 3
	DefaultFailureCap     = 5
	DefaultWorker         = "claude"
)

// Config holds every tunable the pipeline reads.
type Config struct {
	// Worker is the CLI binary driven for attempts, reviews, learning, and
	// generation.
	Worker string

	// BuildCommand and TestCommand are the whole-project commands run by
	// the validation and epic gates. Empty commands are skipped.
	BuildCommand string
	TestCommand  string

	// Attempt supervision budgets.
	IterTimeout  time.Duration
	StallTimeout time.Duration
	PollInterval time.Duration
	GracePeriod  time.Duration

	// StoryTimeout is the per-story wall-clock budget, reset at each story
	// start.
	StoryTimeout time.Duration

	// Retry budgets.
	MaxRetries     int
	MaxReviewIters int
	RetryDelay     time.Duration
	FailureCap     int

	// Mode toggles.
	Chain          bool
	SkipValidation bool
	SkipGeneration bool

	LogLevel string
}

// Load reads configuration. configPath may point at a file that does not
// exist; defaults and environment still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("worker", DefaultWorker)
	v.SetDefault("build_command", "")
	v.SetDefault("test_command", "")
	v.SetDefault("iter_timeout", DefaultIterTimeout)
	v.SetDefault("stall_timeout", DefaultStallTimeout)
	v.SetDefault("story_timeout", DefaultStoryTimeout)
	v.SetDefault("poll_interval", DefaultPollInterval)
	v.SetDefault("grace_period", DefaultGracePeriod)
	v.SetDefault("retry_delay", DefaultRetryDelay)
	v.SetDefault("max_retries", DefaultMaxRetries)
	v.SetDefault("max_review_iters", DefaultMaxReviewIters)
	v.SetDefault("failure_cap", DefaultFailureCap)
	v.SetDefault("chain", true)
	v.SetDefault("skip_validation", false)
	v.SetDefault("skip_generation", false)
	v.SetDefault("log_level", "info")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
		}
	}

	v.SetEnvPrefix("STORYRUNNER")
	v.AutomaticEnv()

	cfg := &Config{
		Worker:         v.GetString("worker"),
		BuildCommand:   v.GetString("build_command"),
		TestCommand:    v.GetString("test_command"),
		IterTimeout:    v.GetDuration("iter_timeout"),
		StallTimeout:   v.GetDuration("stall_timeout"),
		StoryTimeout:   v.GetDuration("story_timeout"),
		PollInterval:   v.GetDuration("poll_interval"),
		GracePeriod:    v.GetDuration("grace_period"),
		RetryDelay:     v.GetDuration("retry_delay"),
		MaxRetries:     v.GetInt("max_retries"),
		MaxReviewIters: v.GetInt("max_review_iters"),
		FailureCap:     v.GetInt("failure_cap"),
		Chain:          v.GetBool("chain"),
		SkipValidation: v.GetBool("skip_validation"),
		SkipGeneration: v.GetBool("skip_generation"),
		LogLevel:       v.GetString("log_level"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Worker == "" {
		return fmt.Errorf("worker binary must not be empty")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1, got %d", c.MaxRetries)
	}
	if c.MaxReviewIters < 1 {
		return fmt.Errorf("max_review_iters must be at least 1, got %d", c.MaxReviewIters)
	}
	for name, d := range map[string]time.Duration{
		"iter_timeout":  c.IterTimeout,
		"stall_timeout": c.StallTimeout,
		"story_timeout": c.StoryTimeout,
		"poll_interval": c.PollInterval,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}
