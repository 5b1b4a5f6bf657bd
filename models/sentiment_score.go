package models

import "time"

// SentimentScore is an aggregated public-sentiment window for one target
// (team or game) from one source. Append-only per (target, source, window).
type SentimentScore struct {
	ID uint `json:"id" gorm:"primaryKey;autoIncrement"`

	TargetType string `json:"target_type" gorm:"column:target_type;type:varchar(16);not null;uniqueIndex:uq_sentiment_window,priority:1"`
	TargetID   string `json:"target_id" gorm:"column:target_id;type:varchar(64);not null;uniqueIndex:uq_sentiment_window,priority:2"`
	Sport      string `json:"sport" gorm:"column:sport;type:varchar(16);not null;default:'NFL'"`
	Source     string `json:"source" gorm:"column:source;type:varchar(32);not null;uniqueIndex:uq_sentiment_window,priority:3"`

	WindowStart time.Time `json:"window_start" gorm:"column:window_start;not null;uniqueIndex:uq_sentiment_window,priority:4"`
	WindowEnd   time.Time `json:"window_end" gorm:"column:window_end;not null;uniqueIndex:uq_sentiment_window,priority:5;index"`

	// Score is the plain average compound score; WeightedScore weights each
	// post by its engagement.
	Score         float64 `json:"score" gorm:"column:score;not null;default:0"`
	WeightedScore float64 `json:"weighted_score" gorm:"column:weighted_score;not null;default:0"`
	PositiveCount int     `json:"positive_count" gorm:"column:positive_count;not null;default:0"`
	NegativeCount int     `json:"negative_count" gorm:"column:negative_count;not null;default:0"`
	NeutralCount  int     `json:"neutral_count" gorm:"column:neutral_count;not null;default:0"`
	TotalPosts    int     `json:"total_posts" gorm:"column:total_posts;not null;default:0"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (SentimentScore) TableName() string { return "sentiment_scores" }
