package services

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"upset-radar-api/metrics"
	"upset-radar-api/models"
	"upset-radar-api/utils"
)

// InjuryUpdateJob replaces each player's latest injury report, keyed by
// player id. No history is kept; the feed is the source of truth.
type InjuryUpdateJob struct {
	DB         *gorm.DB
	SportsData *SportsDataService
}

func NewInjuryUpdateJob(db *gorm.DB, sd *SportsDataService) *InjuryUpdateJob {
	return &InjuryUpdateJob{DB: db, SportsData: sd}
}

func (j *InjuryUpdateJob) Run(ctx context.Context) (*JobResult, error) {
	result := &JobResult{Extra: map[string]interface{}{}}

	items, err := j.SportsData.FetchInjuries(ctx)
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

	existing, err := j.existingPlayerIDs()
	if err != nil {
		return result, err
	}

	teamOut := map[string]int{}
	for _, item := range items {
		if item.PlayerID == 0 {
			continue
		}
		result.Processed++

		injury := injuryItemToModel(item)
		if err := j.DB.Clauses(clause.OnConflict{UpdateAll: true}).Create(injury).Error; err != nil {
			result.AddError("player %d: %v", item.PlayerID, err)
			continue
		}
		if existing[item.PlayerID] {
			result.Updated++
			metrics.RecordsWritten.WithLabelValues("injury_update", "update").Inc()
		} else {
			result.Created++
			metrics.RecordsWritten.WithLabelValues("injury_update", "create").Inc()
		}
		if injury.Status == models.InjuryStatusOut || injury.Status == models.InjuryStatusIR {
			teamOut[injury.Team]++
		}
	}

	result.Extra["teams_with_players_out"] = len(teamOut)
	return result, nil
}

func (j *InjuryUpdateJob) existingPlayerIDs() (map[int]bool, error) {
	var ids []int
	if err := j.DB.Model(&models.Injury{}).Pluck("player_id", &ids).Error; err != nil {
		return nil, err
	}
	existing := make(map[int]bool, len(ids))
	for _, id := range ids {
		existing[id] = true
	}
	return existing, nil
}

func injuryItemToModel(item InjuryItem) *models.Injury {
	status := ""
	if item.Status != nil {
		status = *item.Status
	}
	injury := &models.Injury{
		PlayerID:         item.PlayerID,
		PlayerName:       item.Name,
		Team:             item.Team,
		Position:         item.Position,
		Status:           utils.NormalizeInjuryStatus(status),
		BodyPart:         "Undisclosed",
		PracticeStatus:   item.Practice,
		DeclaredInactive: item.DeclaredInactive,
		Source:           "sportsdata_io",
	}
	if item.BodyPart != nil && *item.BodyPart != "" {
		injury.BodyPart = *item.BodyPart
	}
	if item.Updated != nil {
		if t, ok := ParseFeedTime(*item.Updated); ok {
			injury.InjuryStartDate = &t
		}
	}
	return injury
}
