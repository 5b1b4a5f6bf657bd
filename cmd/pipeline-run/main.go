package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"upset-radar-api/config"
	"upset-radar-api/models"
	"upset-radar-api/pipeline"
	"upset-radar-api/services"
)

// Runs a single pipeline job once, outside the scheduler. Useful for
// backfills and for cron-style deployments that do not run the API server.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config.ReloadMailerConfig()
	config.InitDB()
	if err := config.Migrate(config.DB); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	cfg, err := config.LoadPipelineConfig()
	if err != nil {
		log.Fatalf("failed to load pipeline config: %v", err)
	}

	var (
		jobName string
		timeout time.Duration
	)
	flag.StringVar(&jobName, "job", "", "pipeline job to run")
	flag.DurationVar(&timeout, "timeout", 10*time.Minute, "maximum run duration")
	flag.Parse()

	engine := services.NewAlertEngine(config.DB, nil, services.NewPushService(), func(to, subject, html string) error {
		return config.SendMail([]string{to}, subject, html)
	})
	engine.BatchSize = cfg.AlertBatchSize

	jobs := pipeline.BuildJobs(config.DB, cfg, services.NewSourceCache(), engine, nil)
	job, ok := jobs[jobName]
	if !ok {
		names := make([]string, 0, len(jobs))
		for name := range jobs {
			names = append(names, name)
		}
		sort.Strings(names)
		log.Fatalf("unknown job %q, valid jobs: %s", jobName, strings.Join(names, ", "))
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	runs := services.NewPipelineRunService(config.DB)
	// A live API server may hold a genuine running row, so only reap rows
	// old enough to be orphans of a crashed process.
	if _, err := runs.ReapInterrupted(2 * time.Hour); err != nil {
		log.Printf("failed to reap interrupted runs: %v", err)
	}

	if err := runs.Track(ctx, job.Name, job.Type, job.Run); err != nil {
		if errors.Is(err, services.ErrJobAlreadyRunning) {
			log.Fatalf("job %s is already running", job.Name)
		}
		log.Printf("job %s failed: %v", job.Name, err)
		os.Exit(2)
	}

	latest, err := runs.Recent(job.Name, 1)
	if err == nil && len(latest) > 0 {
		run := latest[0]
		fmt.Printf("Job %s finished with status %s\n", run.JobName, run.Status)
		fmt.Printf("Processed: %d, created: %d, updated: %d\n",
			run.RecordsProcessed, run.RecordsCreated, run.RecordsUpdated)
		if run.Status == models.PipelineRunStatusCompletedWithErrors {
			os.Exit(2)
		}
	} else {
		fmt.Printf("Job %s finished (run skipped, no ledger row)\n", job.Name)
	}
}
