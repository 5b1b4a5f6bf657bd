// Package pipeline wires the pipeline jobs to the scheduler. The API server
// and the one-shot CLI runner both build their job set here so the two stay
// in agreement on names, types and cadences.
package pipeline

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"upset-radar-api/config"
	"upset-radar-api/scheduler"
	"upset-radar-api/services"
)

// Job is one runnable pipeline job with its ledger classification.
type Job struct {
	Name string
	Type string
	Run  services.JobFunc
}

// jobOrder is the registration order, upstream sources before the derived
// stages that read from them.
var jobOrder = []string{
	config.JobOddsSnapshot,
	config.JobScheduleRefresh,
	config.JobInjuryUpdate,
	config.JobSocialSentiment,
	config.JobFeatureBuild,
	config.JobModelScore,
	config.JobAlertProcess,
}

// BuildJobs constructs every pipeline job against the shared source cache.
// scores may be nil when no streaming hub is running.
func BuildJobs(db *gorm.DB, cfg *config.PipelineConfig, cache *services.SourceCache, engine *services.AlertEngine, scores services.ScorePublisher) map[string]Job {
	odds := services.NewOddsAPIService(cache)
	sportsData := services.NewSportsDataService(cache)
	social := services.NewSocialFeedService(cache)

	scoreJob := services.NewModelScoreJob(db)
	scoreJob.Publisher = scores

	return map[string]Job{
		config.JobOddsSnapshot: {
			Name: config.JobOddsSnapshot,
			Type: "ingestion",
			Run:  services.NewOddsSnapshotJob(db, odds, cfg.Sports).Run,
		},
		config.JobScheduleRefresh: {
			Name: config.JobScheduleRefresh,
			Type: "ingestion",
			Run:  services.NewScheduleRefreshJob(db, sportsData).Run,
		},
		config.JobInjuryUpdate: {
			Name: config.JobInjuryUpdate,
			Type: "ingestion",
			Run:  services.NewInjuryUpdateJob(db, sportsData).Run,
		},
		config.JobSocialSentiment: {
			Name: config.JobSocialSentiment,
			Type: "ingestion",
			Run:  services.NewSentimentJob(db, social).Run,
		},
		config.JobFeatureBuild: {
			Name: config.JobFeatureBuild,
			Type: "processing",
			Run:  services.NewFeatureBuilderJob(db).Run,
		},
		config.JobModelScore: {
			Name: config.JobModelScore,
			Type: "scoring",
			Run:  scoreJob.Run,
		},
		config.JobAlertProcess: {
			Name: config.JobAlertProcess,
			Type: "delivery",
			Run:  engine.Run,
		},
	}
}

// BuildScheduler registers every job on a new scheduler with the configured
// trigger. Each handler runs under the run ledger so every firing leaves a
// pipeline_runs row (or none, for skipped runs).
func BuildScheduler(db *gorm.DB, cfg *config.PipelineConfig, cache *services.SourceCache, runs *services.PipelineRunService, engine *services.AlertEngine, scores services.ScorePublisher) (*scheduler.Scheduler, error) {
	jobs := BuildJobs(db, cfg, cache, engine, scores)
	sched := scheduler.New(config.Log)

	for _, name := range jobOrder {
		job := jobs[name]
		jc := cfg.JobOrDefault(name)

		var trigger scheduler.Trigger
		if jc.Cron != "" {
			ct, err := scheduler.NewCronTrigger(jc.Cron)
			if err != nil {
				return nil, fmt.Errorf("job %s: %w", name, err)
			}
			trigger = ct
		} else {
			trigger = scheduler.IntervalTrigger{Every: jc.Interval}
		}

		handler := func(ctx context.Context) error {
			return runs.Track(ctx, job.Name, job.Type, job.Run)
		}
		err := sched.Register(scheduler.JobDefinition{
			ID:             name,
			Trigger:        trigger,
			Handler:        handler,
			Enabled:        jc.IsEnabled(),
			SingleInstance: true,
			MisfireGrace:   jc.MisfireGrace,
		})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return sched, nil
}
