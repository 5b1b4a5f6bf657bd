package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"upset-radar-api/config"
)

const sportsDataBaseURL = "https://api.sportsdata.io/v3/nfl"

// ScheduleItem is one game row from the SportsData schedule feed.
type ScheduleItem struct {
	GameKey           string   `json:"GameKey"`
	Season            int      `json:"Season"`
	SeasonType        int      `json:"SeasonType"`
	Week              int      `json:"Week"`
	Date              *string  `json:"Date"`
	AwayTeam          string   `json:"AwayTeam"`
	HomeTeam          string   `json:"HomeTeam"`
	Channel           *string  `json:"Channel"`
	Status            *string  `json:"Status"`
	Canceled          bool     `json:"Canceled"`
	PointSpread       *float64 `json:"PointSpread"`
	OverUnder         *float64 `json:"OverUnder"`
	AwayTeamMoneyLine *int     `json:"AwayTeamMoneyLine"`
	HomeTeamMoneyLine *int     `json:"HomeTeamMoneyLine"`
	StadiumDetails    *struct {
		Name string `json:"Name"`
	} `json:"StadiumDetails"`
}

// InjuryItem is one player row from the injury feed.
type InjuryItem struct {
	PlayerID         int     `json:"PlayerID"`
	Name             string  `json:"Name"`
	Team             string  `json:"Team"`
	Position         string  `json:"Position"`
	Status           *string `json:"Status"`
	BodyPart         *string `json:"BodyPart"`
	Practice         *string `json:"Practice"`
	DeclaredInactive bool    `json:"DeclaredInactive"`
	Updated          *string `json:"Updated"`
}

// StandingItem is one team row from the standings feed.
type StandingItem struct {
	Team       string  `json:"Team"`
	Name       string  `json:"Name"`
	Season     int     `json:"Season"`
	Wins       int     `json:"Wins"`
	Losses     int     `json:"Losses"`
	Ties       int     `json:"Ties"`
	Percentage float64 `json:"Percentage"`
	// Streak is negative when the team is on a losing run.
	Streak int `json:"Streak"`
}

// SportsDataService fetches schedules, injuries and standings from
// sportsdata.io. Responses cache under the class TTLs keyed per endpoint,
// with stale fallback on transient upstream failure.
type SportsDataService struct {
	client *sourceClient
	cache  *SourceCache
	apiKey string
	base   string
	now    func() time.Time
}

func NewSportsDataService(cache *SourceCache) *SportsDataService {
	return &SportsDataService{
		client: newSourceClient("sportsdata_io", 1),
		cache:  cache,
		apiKey: os.Getenv("SPORTSDATA_API_KEY"),
		base:   sportsDataBaseURL,
		now:    time.Now,
	}
}

func (s *SportsDataService) Configured() bool { return s.apiKey != "" }

func (s *SportsDataService) headers() map[string]string {
	return map[string]string{"Ocp-Apim-Subscription-Key": s.apiKey}
}

// CurrentSeason is the season whose schedule we ingest; NFL seasons are
// labeled by their starting year, with the new league year opening in March.
func (s *SportsDataService) CurrentSeason() int {
	now := s.now().UTC()
	if now.Month() < time.March {
		return now.Year() - 1
	}
	return now.Year()
}

// CurrentWeek estimates the week in progress from a fetched schedule: the
// week of the first game still in the future, or 1 when the schedule is
// empty or entirely played out.
func CurrentWeek(items []ScheduleItem, now time.Time) int {
	for _, item := range items {
		if item.Date == nil {
			continue
		}
		if t, ok := ParseFeedTime(*item.Date); ok && t.After(now) {
			return item.Week
		}
	}
	return 1
}

// fetchFeed runs the shared cache-then-request-then-stale-fallback flow for
// one list endpoint.
func fetchFeed[T any](ctx context.Context, s *SportsDataService, cacheKey, path string) ([]T, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("%w: sportsdata_io (set SPORTSDATA_API_KEY)", ErrSourceNotConfigured)
	}
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]T), nil
	}

	var items []T
	if err := s.client.getJSON(ctx, s.base+path, s.headers(), &items); err != nil {
		if stale, age, ok := s.cache.GetStale(cacheKey); ok && !isAuthError(err) {
			config.Log.Warnf("sportsdata_io unavailable, serving %s cache aged %s", cacheKey, age.Round(time.Second))
			return stale.([]T), nil
		}
		return nil, err
	}

	s.cache.Set(cacheKey, items)
	return items, nil
}

// FetchSchedules returns the full schedule for a season.
func (s *SportsDataService) FetchSchedules(ctx context.Context, season int) ([]ScheduleItem, error) {
	cacheKey := fmt.Sprintf("schedules:nfl:%d", season)
	return fetchFeed[ScheduleItem](ctx, s, cacheKey, fmt.Sprintf("/scores/json/Schedules/%d", season))
}

// FetchInjuries returns the current league-wide injury report.
func (s *SportsDataService) FetchInjuries(ctx context.Context) ([]InjuryItem, error) {
	return fetchFeed[InjuryItem](ctx, s, "injuries:nfl", "/scores/json/Injuries")
}

// FetchStandings returns standings for a season.
func (s *SportsDataService) FetchStandings(ctx context.Context, season int) ([]StandingItem, error) {
	cacheKey := fmt.Sprintf("standings:nfl:%d", season)
	return fetchFeed[StandingItem](ctx, s, cacheKey, fmt.Sprintf("/scores/json/Standings/%d", season))
}

// ParseFeedTime parses the feed's local timestamps, which arrive without a
// zone and mean US Eastern.
func ParseFeedTime(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", strings.TrimSuffix(value, "Z"), loc); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}
