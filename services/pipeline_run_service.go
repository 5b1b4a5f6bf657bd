package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"upset-radar-api/config"
	"upset-radar-api/metrics"
	"upset-radar-api/models"
)

// ErrJobAlreadyRunning means a run row in status running exists for the job,
// so a second concurrent run was refused.
var ErrJobAlreadyRunning = errors.New("job already running")

// JobResult is what a job handler reports back to the run ledger.
type JobResult struct {
	Processed int
	Created   int
	Updated   int
	Errors    []string

	// Skipped marks a run that never happened because its source is not
	// configured. No run row is recorded for skips.
	Skipped    bool
	SkipReason string

	// Extra lands in the run row's metadata JSON.
	Extra map[string]interface{}
}

func (r *JobResult) AddError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// PipelineRunService is the run ledger: one row per job execution, created
// at start and finalized exactly once.
type PipelineRunService struct {
	DB  *gorm.DB
	now func() time.Time
}

func NewPipelineRunService(db *gorm.DB) *PipelineRunService {
	return &PipelineRunService{DB: db, now: time.Now}
}

// Begin creates the running row, refusing a second concurrent run of the
// same job.
func (s *PipelineRunService) Begin(jobName, jobType string) (*models.PipelineRun, error) {
	var active int64
	if err := s.DB.Model(&models.PipelineRun{}).
		Where("job_name = ? AND status = ?", jobName, models.PipelineRunStatusRunning).
		Count(&active).Error; err != nil {
		return nil, err
	}
	if active > 0 {
		return nil, fmt.Errorf("%w: %s", ErrJobAlreadyRunning, jobName)
	}

	run := &models.PipelineRun{
		JobName:   jobName,
		JobType:   jobType,
		Status:    models.PipelineRunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.DB.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// Finish moves the run to its terminal status based on the result. Partial
// failures (some records written, some errors) finish as
// completed_with_errors; runErr forces failed.
func (s *PipelineRunService) Finish(run *models.PipelineRun, result *JobResult, runErr error) error {
	now := s.now().UTC()
	duration := now.Sub(run.StartedAt).Seconds()

	run.CompletedAt = &now
	run.DurationSeconds = &duration

	if result != nil {
		run.RecordsProcessed = result.Processed
		run.RecordsCreated = result.Created
		run.RecordsUpdated = result.Updated
		if len(result.Extra) > 0 {
			if raw, err := json.Marshal(result.Extra); err == nil {
				meta := string(raw)
				run.Metadata = &meta
			}
		}
	}

	switch {
	case runErr != nil:
		run.Status = models.PipelineRunStatusFailed
		msg := runErr.Error()
		run.ErrorMessage = &msg
	case result != nil && len(result.Errors) > 0:
		run.Status = models.PipelineRunStatusCompletedWithErrors
		if raw, err := json.Marshal(result.Errors); err == nil {
			msg := string(raw)
			run.ErrorMessage = &msg
		}
	default:
		run.Status = models.PipelineRunStatusCompleted
	}

	metrics.JobRuns.WithLabelValues(run.JobName, run.Status).Inc()
	metrics.JobDuration.WithLabelValues(run.JobName).Observe(duration)

	return s.DB.Save(run).Error
}

// JobFunc is one ingestion or processing job body.
type JobFunc func(ctx context.Context) (*JobResult, error)

// Track wraps a job body with the full ledger lifecycle: begin, run, finish.
// A panic inside fn finishes the run as failed and is re-raised. Skipped
// results leave no row behind.
func (s *PipelineRunService) Track(ctx context.Context, jobName, jobType string, fn JobFunc) error {
	run, err := s.Begin(jobName, jobType)
	if err != nil {
		return err
	}

	var result *JobResult
	var runErr error

	defer func() {
		if r := recover(); r != nil {
			panicErr := fmt.Errorf("panic: %v", r)
			if err := s.Finish(run, result, panicErr); err != nil {
				config.Log.Errorf("Failed to finalize run %d after panic: %v", run.ID, err)
			}
			panic(r)
		}
	}()

	result, runErr = fn(ctx)

	if result != nil && result.Skipped {
		// The job never ran; drop the placeholder row instead of recording
		// a no-op execution.
		if err := s.DB.Delete(run).Error; err != nil {
			config.Log.Errorf("Failed to drop skipped run %d: %v", run.ID, err)
		}
		config.Log.Infof("Job %s skipped: %s", jobName, result.SkipReason)
		metrics.JobRuns.WithLabelValues(jobName, "skipped").Inc()
		return nil
	}

	if err := s.Finish(run, result, runErr); err != nil {
		config.Log.Errorf("Failed to finalize run %d: %v", run.ID, err)
	}
	return runErr
}

// ReapInterrupted fails runs left in status running by a dead process so
// they stop blocking their job. With maxAge 0 every running row is reaped,
// which is only safe at startup before any job fires; a positive maxAge
// reaps just the rows started at least that long ago, for entrypoints that
// share the ledger with a live server process.
func (s *PipelineRunService) ReapInterrupted(maxAge time.Duration) (int64, error) {
	now := s.now().UTC()
	query := s.DB.Model(&models.PipelineRun{}).
		Where("status = ?", models.PipelineRunStatusRunning)
	if maxAge > 0 {
		query = query.Where("started_at <= ?", now.Add(-maxAge))
	}

	res := query.Updates(map[string]interface{}{
		"status":        models.PipelineRunStatusFailed,
		"completed_at":  now,
		"error_message": "interrupted: process exited mid-run",
	})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		config.Log.Warnf("Reaped %d interrupted pipeline run(s)", res.RowsAffected)
	}
	return res.RowsAffected, nil
}

// Recent returns the newest runs, optionally filtered by job name.
func (s *PipelineRunService) Recent(jobName string, limit int) ([]models.PipelineRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := s.DB.Order("started_at DESC").Limit(limit)
	if jobName != "" {
		query = query.Where("job_name = ?", jobName)
	}
	var runs []models.PipelineRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

// LastByJob returns the most recent run per job name, for the status surface.
func (s *PipelineRunService) LastByJob() (map[string]models.PipelineRun, error) {
	var runs []models.PipelineRun
	if err := s.DB.Order("started_at DESC").Limit(500).Find(&runs).Error; err != nil {
		return nil, err
	}
	latest := make(map[string]models.PipelineRun)
	for _, run := range runs {
		if _, seen := latest[run.JobName]; !seen {
			latest[run.JobName] = run
		}
	}
	return latest, nil
}
