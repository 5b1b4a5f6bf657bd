package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// SocialPost is one public post about a team, as returned by the social
// feed aggregator.
type SocialPost struct {
	ID       string    `json:"id"`
	Text     string    `json:"text"`
	Author   string    `json:"author"`
	PostedAt time.Time `json:"posted_at"`
	Likes    int       `json:"likes"`
	Reposts  int       `json:"reposts"`
	Replies  int       `json:"replies"`
}

// Engagement weights replies above reposts above likes; a floor of 1 keeps
// zero-engagement posts from vanishing out of the weighted average.
func (p SocialPost) Engagement() float64 {
	score := float64(p.Likes) + 2*float64(p.Reposts) + 3*float64(p.Replies)
	if score < 1 {
		return 1
	}
	return score
}

// SentimentAnalyzer scores one text in [-1, 1].
type SentimentAnalyzer interface {
	Score(text string) float64
}

// LexiconAnalyzer is a deterministic wordlist scorer. Fancy NLP lives
// upstream; this exists so the pipeline produces stable, testable numbers
// without an external model.
type LexiconAnalyzer struct{}

var positiveWords = map[string]struct{}{
	"win": {}, "wins": {}, "won": {}, "great": {}, "best": {}, "dominant": {},
	"clutch": {}, "unstoppable": {}, "confident": {}, "healthy": {}, "hot": {},
	"rolling": {}, "elite": {}, "upset": {}, "steal": {}, "value": {}, "love": {},
}

var negativeWords = map[string]struct{}{
	"lose": {}, "loses": {}, "lost": {}, "bad": {}, "worst": {}, "injured": {},
	"struggling": {}, "terrible": {}, "awful": {}, "doubt": {}, "benched": {},
	"cold": {}, "fade": {}, "avoid": {}, "trap": {}, "hate": {}, "collapse": {},
}

func (LexiconAnalyzer) Score(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}
	var pos, neg int
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:'\"()#@")
		if _, ok := positiveWords[w]; ok {
			pos++
		} else if _, ok := negativeWords[w]; ok {
			neg++
		}
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// TeamSentiment is the aggregated window for one team.
type TeamSentiment struct {
	Team          string
	Score         float64
	WeightedScore float64
	PositiveCount int
	NegativeCount int
	NeutralCount  int
	TotalPosts    int
}

// SocialFeedService pulls recent posts per team from a configured aggregator
// and reduces them to windowed sentiment scores.
type SocialFeedService struct {
	client   *sourceClient
	cache    *SourceCache
	analyzer SentimentAnalyzer
	feedURL  string
	token    string
}

func NewSocialFeedService(cache *SourceCache) *SocialFeedService {
	return &SocialFeedService{
		client:   newSourceClient("social_feed", 2),
		cache:    cache,
		analyzer: LexiconAnalyzer{},
		feedURL:  os.Getenv("SOCIAL_FEED_URL"),
		token:    os.Getenv("SOCIAL_FEED_TOKEN"),
	}
}

func (s *SocialFeedService) Configured() bool { return s.feedURL != "" }

// FetchPosts returns recent posts mentioning the team.
func (s *SocialFeedService) FetchPosts(ctx context.Context, team string) ([]SocialPost, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("%w: social_feed (set SOCIAL_FEED_URL)", ErrSourceNotConfigured)
	}

	cacheKey := "news:social:" + team
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]SocialPost), nil
	}

	query := url.Values{}
	query.Set("q", team)
	query.Set("limit", "100")
	endpoint := strings.TrimSuffix(s.feedURL, "/") + "/posts?" + query.Encode()

	headers := map[string]string{}
	if s.token != "" {
		headers["Authorization"] = "Bearer " + s.token
	}

	var posts []SocialPost
	if err := s.client.getJSON(ctx, endpoint, headers, &posts); err != nil {
		if stale, _, ok := s.cache.GetStale(cacheKey); ok && !isAuthError(err) {
			return stale.([]SocialPost), nil
		}
		return nil, err
	}

	s.cache.Set(cacheKey, posts)
	return posts, nil
}

// Aggregate reduces a post set to one sentiment window. Neutral band is
// |score| < 0.05 so near-zero lexicon hits do not sway the counts.
func (s *SocialFeedService) Aggregate(team string, posts []SocialPost) TeamSentiment {
	agg := TeamSentiment{Team: team, TotalPosts: len(posts)}
	if len(posts) == 0 {
		return agg
	}

	var sum, weightedSum, weightTotal float64
	for _, post := range posts {
		score := s.analyzer.Score(post.Text)
		weight := post.Engagement()
		sum += score
		weightedSum += score * weight
		weightTotal += weight

		switch {
		case score > 0.05:
			agg.PositiveCount++
		case score < -0.05:
			agg.NegativeCount++
		default:
			agg.NeutralCount++
		}
	}

	agg.Score = sum / float64(len(posts))
	if weightTotal > 0 {
		agg.WeightedScore = weightedSum / weightTotal
	}
	return agg
}
