package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"upset-radar-api/metrics"
	"upset-radar-api/models"
	"upset-radar-api/utils"
)

// ScheduleRefreshJob upserts the season schedule and current standings from
// the sportsdata feed. Games are keyed by the feed's game key so a refresh
// updates in place.
type ScheduleRefreshJob struct {
	DB         *gorm.DB
	SportsData *SportsDataService
}

func NewScheduleRefreshJob(db *gorm.DB, sd *SportsDataService) *ScheduleRefreshJob {
	return &ScheduleRefreshJob{DB: db, SportsData: sd}
}

func (j *ScheduleRefreshJob) Run(ctx context.Context) (*JobResult, error) {
	result := &JobResult{Extra: map[string]interface{}{}}
	season := j.SportsData.CurrentSeason()
	result.Extra["season"] = season

	items, err := j.SportsData.FetchSchedules(ctx, season)
	if err != nil {
		if errors.Is(err, ErrSourceNotConfigured) {
			result.Skipped = true
			result.SkipReason = err.Error()
			return result, nil
		}
		metrics.SourceRequests.WithLabelValues("sportsdata_io", "error").Inc()
		return result, err
	}
	metrics.SourceRequests.WithLabelValues("sportsdata_io", "ok").Inc()
	result.Extra["current_week"] = CurrentWeek(items, time.Now().UTC())

	existing, err := j.existingGameIDs()
	if err != nil {
		return result, err
	}

	for _, item := range items {
		if item.GameKey == "" {
			continue
		}
		result.Processed++

		game := scheduleItemToGame(item)
		if err := j.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(game).Error; err != nil {
			result.AddError("game %s: %v", item.GameKey, err)
			continue
		}
		if existing[item.GameKey] {
			result.Updated++
			metrics.RecordsWritten.WithLabelValues("schedule_refresh", "update").Inc()
		} else {
			result.Created++
			metrics.RecordsWritten.WithLabelValues("schedule_refresh", "create").Inc()
		}
	}

	if err := j.refreshStandings(ctx, season, result); err != nil {
		result.AddError("standings: %v", err)
	}
	return result, nil
}

func (j *ScheduleRefreshJob) existingGameIDs() (map[string]bool, error) {
	var ids []string
	if err := j.DB.Model(&models.Game{}).Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	existing := make(map[string]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}

func (j *ScheduleRefreshJob) refreshStandings(ctx context.Context, season int, result *JobResult) error {
	items, err := j.SportsData.FetchStandings(ctx, season)
	if err != nil {
		// Standings are a best-effort enrichment on top of the schedule.
		if errors.Is(err, ErrSourceNotConfigured) {
			return nil
		}
		return err
	}

	count := 0
	for _, item := range items {
		if item.Team == "" {
			continue
		}
		standing := &models.Standing{
			Team:          item.Team,
			Name:          item.Name,
			Sport:         "NFL",
			Season:        item.Season,
			Wins:          item.Wins,
			Losses:        item.Losses,
			Ties:          item.Ties,
			WinPercentage: item.Percentage,
			Streak:        item.Streak,
		}
		if err := j.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(standing).Error; err != nil {
			result.AddError("standing %s: %v", item.Team, err)
			continue
		}
		count++
	}
	result.Extra["standings_updated"] = count
	return nil
}

func scheduleItemToGame(item ScheduleItem) *models.Game {
	status := models.GameStatusUpcoming
	if item.Status != nil {
		status = utils.NormalizeGameStatus(*item.Status)
	}
	if item.Canceled {
		status = models.GameStatusCancelled
	}

	game := &models.Game{
		ID:            item.GameKey,
		Sport:         "NFL",
		HomeTeam:      item.HomeTeam,
		AwayTeam:      item.AwayTeam,
		Status:        status,
		Season:        item.Season,
		Week:          item.Week,
		SeasonType:    item.SeasonType,
		Channel:       item.Channel,
		PointSpread:   item.PointSpread,
		OverUnder:     item.OverUnder,
		HomeMoneyline: item.HomeTeamMoneyLine,
		AwayMoneyline: item.AwayTeamMoneyLine,
	}
	if item.Date != nil {
		if start, ok := ParseFeedTime(*item.Date); ok {
			game.StartTime = &start
		}
	}
	if item.StadiumDetails != nil && item.StadiumDetails.Name != "" {
		name := item.StadiumDetails.Name
		game.Stadium = &name
	}
	return game
}
