package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Pipeline job names. The yaml config and the scheduler agree on these.
const (
	JobOddsSnapshot    = "odds_snapshot"
	JobScheduleRefresh = "schedule_refresh"
	JobInjuryUpdate    = "injury_update"
	JobSocialSentiment = "social_sentiment"
	JobFeatureBuild    = "feature_build"
	JobModelScore      = "model_score"
	JobAlertProcess    = "alert_process"
)

// JobConfig holds the per-job schedule settings. Exactly one of Interval or
// Cron should be set; Cron wins when both are present.
type JobConfig struct {
	Enabled      *bool         `mapstructure:"enabled"`
	Interval     time.Duration `mapstructure:"interval"`
	Cron         string        `mapstructure:"cron"`
	MisfireGrace time.Duration `mapstructure:"misfire_grace"`
}

// IsEnabled treats a missing flag as enabled.
func (j JobConfig) IsEnabled() bool {
	return j.Enabled == nil || *j.Enabled
}

// PipelineConfig is the trigger/cadence surface for all pipeline jobs plus a
// few batch knobs. Cadence is configuration, not code.
type PipelineConfig struct {
	Sports         []string             `mapstructure:"sports"`
	AlertBatchSize int                  `mapstructure:"alert_batch_size"`
	Jobs           map[string]JobConfig `mapstructure:"jobs"`
}

// DefaultPipelineConfig mirrors the cadences the pipeline was designed
// around; pipeline.yaml overrides any of it.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Sports:         []string{"NFL", "NBA", "MLB", "NHL"},
		AlertBatchSize: 100,
		Jobs: map[string]JobConfig{
			JobOddsSnapshot:    {Interval: 15 * time.Minute, MisfireGrace: time.Minute},
			JobScheduleRefresh: {Cron: "0 6 * * *", MisfireGrace: time.Minute},
			JobInjuryUpdate:    {Interval: 6 * time.Hour, MisfireGrace: time.Minute},
			JobSocialSentiment: {Interval: 2 * time.Hour, MisfireGrace: time.Minute},
			JobFeatureBuild:    {Interval: 20 * time.Minute, MisfireGrace: time.Minute},
			JobModelScore:      {Interval: 25 * time.Minute, MisfireGrace: time.Minute},
			JobAlertProcess:    {Interval: 5 * time.Minute, MisfireGrace: time.Minute},
		},
	}
}

// JobOrDefault returns the configured settings for a job, falling back to
// the compiled defaults for anything unset.
func (c *PipelineConfig) JobOrDefault(name string) JobConfig {
	def := DefaultPipelineConfig().Jobs[name]
	jc, ok := c.Jobs[name]
	if !ok {
		return def
	}
	if jc.Interval == 0 && jc.Cron == "" {
		jc.Interval = def.Interval
		jc.Cron = def.Cron
	}
	if jc.MisfireGrace == 0 {
		jc.MisfireGrace = def.MisfireGrace
	}
	return jc
}

// LoadPipelineConfig reads config/pipeline.yaml. A missing file is fine (the
// defaults apply); a malformed one is an error.
func LoadPipelineConfig() (*PipelineConfig, error) {
	viper.SetConfigName("pipeline")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")

	cfg := DefaultPipelineConfig()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read pipeline config: %w", err)
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline config: %w", err)
	}
	if cfg.AlertBatchSize <= 0 {
		cfg.AlertBatchSize = DefaultPipelineConfig().AlertBatchSize
	}
	if len(cfg.Sports) == 0 {
		cfg.Sports = DefaultPipelineConfig().Sports
	}
	return cfg, nil
}
