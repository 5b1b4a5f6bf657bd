package services

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"upset-radar-api/metrics"
	"upset-radar-api/models"
)

// sentimentWindow is the lookback each aggregation covers. Windows align to
// the hour so repeated runs inside one window collapse onto the same row.
const sentimentWindow = 2 * time.Hour

// SentimentJob aggregates social posts into per-team sentiment windows for
// every team with an upcoming game in the next week.
type SentimentJob struct {
	DB     *gorm.DB
	Social *SocialFeedService
	now    func() time.Time
}

func NewSentimentJob(db *gorm.DB, social *SocialFeedService) *SentimentJob {
	return &SentimentJob{DB: db, Social: social, now: time.Now}
}

func (j *SentimentJob) Run(ctx context.Context) (*JobResult, error) {
	result := &JobResult{Extra: map[string]interface{}{}}

	if !j.Social.Configured() {
		result.Skipped = true
		result.SkipReason = "social_feed not configured (set SOCIAL_FEED_URL)"
		return result, nil
	}

	teams, err := j.upcomingTeams()
	if err != nil {
		return result, err
	}
	result.Extra["teams"] = len(teams)

	windowEnd := j.now().UTC().Truncate(time.Hour)
	windowStart := windowEnd.Add(-sentimentWindow)

	for _, team := range teams {
		posts, err := j.Social.FetchPosts(ctx, team)
		if err != nil {
			if errors.Is(err, ErrSourceNotConfigured) {
				result.Skipped = true
				result.SkipReason = err.Error()
				return result, nil
			}
			metrics.SourceRequests.WithLabelValues("social_feed", "error").Inc()
			result.AddError("team %s: %v", team, err)
			continue
		}
		metrics.SourceRequests.WithLabelValues("social_feed", "ok").Inc()
		result.Processed++

		agg := j.Social.Aggregate(team, posts)
		score := &models.SentimentScore{
			TargetType:    "team",
			TargetID:      team,
			Sport:         "NFL",
			Source:        "social_feed",
			WindowStart:   windowStart,
			WindowEnd:     windowEnd,
			Score:         agg.Score,
			WeightedScore: agg.WeightedScore,
			PositiveCount: agg.PositiveCount,
			NegativeCount: agg.NegativeCount,
			NeutralCount:  agg.NeutralCount,
			TotalPosts:    agg.TotalPosts,
		}

		outcome := j.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(score)
		if outcome.Error != nil {
			result.AddError("score %s: %v", team, outcome.Error)
			continue
		}
		if outcome.RowsAffected > 0 {
			result.Created++
			metrics.RecordsWritten.WithLabelValues("social_sentiment", "create").Inc()
		}
	}
	return result, nil
}

// upcomingTeams lists every team playing within the next seven days.
func (j *SentimentJob) upcomingTeams() ([]string, error) {
	now := j.now().UTC()
	horizon := now.Add(7 * 24 * time.Hour)

	var games []models.Game
	err := j.DB.
		Where("status = ? AND start_time BETWEEN ? AND ?", models.GameStatusUpcoming, now, horizon).
		Find(&games).Error
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var teams []string
	for _, game := range games {
		for _, team := range []string{game.HomeTeam, game.AwayTeam} {
			if team != "" && !seen[team] {
				seen[team] = true
				teams = append(teams, team)
			}
		}
	}
	return teams, nil
}
