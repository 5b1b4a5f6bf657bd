package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"upset-radar-api/scheduler"
	"upset-radar-api/services"
)

// PipelineController exposes the scheduler and run ledger as the operational
// surface. All mutations of run control go through here.
type PipelineController struct {
	Scheduler *scheduler.Scheduler
	Runs      *services.PipelineRunService
	Cache     *services.SourceCache
}

func NewPipelineController(sched *scheduler.Scheduler, runs *services.PipelineRunService, cache *services.SourceCache) *PipelineController {
	return &PipelineController{Scheduler: sched, Runs: runs, Cache: cache}
}

// GetStatus reports every registered job with its schedule and counters.
func (pc *PipelineController) GetStatus(c *gin.Context) {
	jobs := pc.Scheduler.Status()

	latest, err := pc.Runs.LastByJob()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load run history"})
		return
	}

	type jobView struct {
		scheduler.JobStatus
		LastRun interface{} `json:"last_run,omitempty"`
	}
	views := make([]jobView, 0, len(jobs))
	for _, job := range jobs {
		view := jobView{JobStatus: job}
		if run, ok := latest[job.ID]; ok {
			view.LastRun = run
		}
		views = append(views, view)
	}

	c.JSON(http.StatusOK, gin.H{"jobs": views})
}

// TriggerJob runs a job immediately, outside its schedule.
func (pc *PipelineController) TriggerJob(c *gin.Context) {
	id := c.Param("id")
	if !pc.Scheduler.TriggerNow(id) {
		c.JSON(http.StatusConflict, gin.H{"error": "Job unknown, already running, or scheduler stopped"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "Job triggered", "job": id})
}

// PauseJob stops a job firing until resumed.
func (pc *PipelineController) PauseJob(c *gin.Context) {
	id := c.Param("id")
	if err := pc.Scheduler.Pause(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job paused", "job": id})
}

// ResumeJob re-enables a paused job.
func (pc *PipelineController) ResumeJob(c *gin.Context) {
	id := c.Param("id")
	if err := pc.Scheduler.Resume(id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Job resumed", "job": id})
}

// GetRuns lists recent pipeline runs, optionally for one job.
func (pc *PipelineController) GetRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := pc.Runs.Recent(c.Query("job_name"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "total": len(runs)})
}

// GetCacheStats reports the source cache's hit/miss and freshness counts.
func (pc *PipelineController) GetCacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, pc.Cache.Stats())
}

// ClearCache drops every cached source payload.
func (pc *PipelineController) ClearCache(c *gin.Context) {
	pc.Cache.Clear()
	c.JSON(http.StatusOK, gin.H{"message": "Cache cleared"})
}
