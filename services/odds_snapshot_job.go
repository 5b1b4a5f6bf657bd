package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"upset-radar-api/metrics"
	"upset-radar-api/models"
)

// OddsSnapshotJob captures the current market odds for every configured
// sport, one row per game per bookmaker. Rows are append-only; re-ingesting
// an unchanged payload is a no-op through the natural unique key.
type OddsSnapshotJob struct {
	DB     *gorm.DB
	Odds   *OddsAPIService
	Sports []string
	now    func() time.Time
}

func NewOddsSnapshotJob(db *gorm.DB, odds *OddsAPIService, sports []string) *OddsSnapshotJob {
	return &OddsSnapshotJob{DB: db, Odds: odds, Sports: sports, now: time.Now}
}

func (j *OddsSnapshotJob) Run(ctx context.Context) (*JobResult, error) {
	result := &JobResult{Extra: map[string]interface{}{}}

	for _, sport := range j.Sports {
		if err := j.runSport(ctx, sport, result); err != nil {
			if errors.Is(err, ErrSourceNotConfigured) {
				result.Skipped = true
				result.SkipReason = err.Error()
				return result, nil
			}
			return result, err
		}
	}
	return result, nil
}

func (j *OddsSnapshotJob) runSport(ctx context.Context, sport string, result *JobResult) error {
	res, err := j.Odds.FetchOdds(ctx, sport)
	if err != nil {
		metrics.SourceRequests.WithLabelValues("odds_api", "error").Inc()
		return err
	}
	switch {
	case res.Stale:
		metrics.SourceRequests.WithLabelValues("odds_api", "stale").Inc()
		result.Extra["stale_"+sport] = res.StaleAge.String()
	case res.FromCache:
		metrics.SourceRequests.WithLabelValues("odds_api", "cache_hit").Inc()
	default:
		metrics.SourceRequests.WithLabelValues("odds_api", "ok").Inc()
	}

	capturedAt := j.now().UTC().Truncate(time.Minute)

	for _, event := range res.Events {
		for _, book := range event.Bookmakers {
			snapshot := buildSnapshot(sport, event, book, capturedAt)
			if snapshot == nil {
				continue
			}
			result.Processed++

			outcome := j.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(snapshot)
			if outcome.Error != nil {
				result.AddError("snapshot %s/%s: %v", event.ID, book.Key, outcome.Error)
				continue
			}
			if outcome.RowsAffected > 0 {
				result.Created++
				metrics.RecordsWritten.WithLabelValues("odds_snapshot", "create").Inc()
			}
		}
	}
	return nil
}

// buildSnapshot flattens one bookmaker's markets into a snapshot row.
// Returns nil when the book carries no usable moneyline.
func buildSnapshot(sport string, event OddsEvent, book OddsBookmaker, capturedAt time.Time) *models.OddsSnapshot {
	homeML, awayML, ok := book.Moneyline(event.HomeTeam, event.AwayTeam)
	if !ok {
		return nil
	}

	start := event.CommenceTime
	snapshot := &models.OddsSnapshot{
		ID:            uuid.NewString(),
		GameID:        event.ID,
		Sport:         sport,
		HomeTeam:      event.HomeTeam,
		AwayTeam:      event.AwayTeam,
		Bookmaker:     book.Key,
		Source:        "odds_api",
		CapturedAt:    capturedAt,
		GameStartTime: &start,
		HomeMoneyline: &homeML,
		AwayMoneyline: &awayML,
	}

	// The favorite is whoever the moneyline likes; a pick'em defaults to
	// the home side.
	if awayML < homeML {
		snapshot.Favorite, snapshot.Underdog = event.AwayTeam, event.HomeTeam
		snapshot.FavoriteOdds, snapshot.UnderdogOdds = &awayML, &homeML
	} else {
		snapshot.Favorite, snapshot.Underdog = event.HomeTeam, event.AwayTeam
		snapshot.FavoriteOdds, snapshot.UnderdogOdds = &homeML, &awayML
	}

	if spread, homeOdds, awayOdds, ok := book.Spread(event.HomeTeam); ok {
		snapshot.Spread = &spread
		snapshot.SpreadOddsHome = &homeOdds
		snapshot.SpreadOddsAway = &awayOdds
	}
	if total, overOdds, underOdds, ok := book.Total(); ok {
		snapshot.Total = &total
		snapshot.OverOdds = &overOdds
		snapshot.UnderOdds = &underOdds
	}
	return snapshot
}
