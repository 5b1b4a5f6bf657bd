package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

const oddsAPIBaseURL = "https://api.the-odds-api.com/v4"

// Sport identifiers mapped to The Odds API sport keys.
var oddsSportKeys = map[string]string{
	"NFL": "americanfootball_nfl",
	"NBA": "basketball_nba",
	"MLB": "baseball_mlb",
	"NHL": "icehockey_nhl",
}

// OddsOutcome is one side of a market.
type OddsOutcome struct {
	Name  string   `json:"name"`
	Price float64  `json:"price"`
	Point *float64 `json:"point,omitempty"`
}

// OddsMarket is one market (h2h, spreads, totals) from one bookmaker.
type OddsMarket struct {
	Key      string        `json:"key"`
	Outcomes []OddsOutcome `json:"outcomes"`
}

// OddsBookmaker is one book's quote set for a game.
type OddsBookmaker struct {
	Key        string       `json:"key"`
	Title      string       `json:"title"`
	LastUpdate time.Time    `json:"last_update"`
	Markets    []OddsMarket `json:"markets"`
}

// OddsEvent is one upcoming game with quotes from every returned bookmaker.
type OddsEvent struct {
	ID           string          `json:"id"`
	SportKey     string          `json:"sport_key"`
	CommenceTime time.Time       `json:"commence_time"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	Bookmakers   []OddsBookmaker `json:"bookmakers"`
}

// OddsResult carries the fetched events plus cache provenance so callers can
// record whether data came from the live API, a fresh cache hit, or a stale
// fallback.
type OddsResult struct {
	Events    []OddsEvent
	FromCache bool
	Stale     bool
	StaleAge  time.Duration
}

// OddsAPIService fetches betting lines from The Odds API.
type OddsAPIService struct {
	client *sourceClient
	cache  *SourceCache
	apiKey string
	base   string
}

func NewOddsAPIService(cache *SourceCache) *OddsAPIService {
	return &OddsAPIService{
		client: newSourceClient("odds_api", 1),
		cache:  cache,
		apiKey: os.Getenv("ODDS_API_KEY"),
		base:   oddsAPIBaseURL,
	}
}

// Configured reports whether an API key is present.
func (s *OddsAPIService) Configured() bool { return s.apiKey != "" }

// FetchOdds returns current moneyline, spread and total quotes for the sport.
// Fresh cache entries short-circuit the request; on transient upstream
// failure the last stale payload is served instead. Auth failures are
// returned as-is and never masked by cache.
func (s *OddsAPIService) FetchOdds(ctx context.Context, sport string) (*OddsResult, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("%w: odds_api (set ODDS_API_KEY)", ErrSourceNotConfigured)
	}
	sportKey, ok := oddsSportKeys[strings.ToUpper(sport)]
	if !ok {
		return nil, fmt.Errorf("unsupported sport %q", sport)
	}

	cacheKey := "odds:" + sportKey
	if cached, ok := s.cache.Get(cacheKey); ok {
		return &OddsResult{Events: cached.([]OddsEvent), FromCache: true}, nil
	}

	query := url.Values{}
	query.Set("apiKey", s.apiKey)
	query.Set("regions", "us")
	query.Set("markets", "h2h,spreads,totals")
	query.Set("oddsFormat", "american")
	endpoint := fmt.Sprintf("%s/sports/%s/odds?%s", s.base, sportKey, query.Encode())

	var events []OddsEvent
	if err := s.client.getJSON(ctx, endpoint, nil, &events); err != nil {
		if stale, age, ok := s.cache.GetStale(cacheKey); ok && !isAuthError(err) {
			return &OddsResult{Events: stale.([]OddsEvent), FromCache: true, Stale: true, StaleAge: age}, nil
		}
		return nil, err
	}

	s.cache.Set(cacheKey, events)
	return &OddsResult{Events: events}, nil
}

// Moneyline extracts both teams' h2h prices from a bookmaker, in American
// odds. ok is false when the book carries no h2h market for the game.
func (b OddsBookmaker) Moneyline(homeTeam, awayTeam string) (home, away int, ok bool) {
	for _, m := range b.Markets {
		if m.Key != "h2h" {
			continue
		}
		var haveHome, haveAway bool
		for _, o := range m.Outcomes {
			switch o.Name {
			case homeTeam:
				home, haveHome = int(o.Price), true
			case awayTeam:
				away, haveAway = int(o.Price), true
			}
		}
		return home, away, haveHome && haveAway
	}
	return 0, 0, false
}

// Spread extracts the home team's point spread and both sides' prices.
func (b OddsBookmaker) Spread(homeTeam string) (spread float64, homeOdds, awayOdds int, ok bool) {
	for _, m := range b.Markets {
		if m.Key != "spreads" {
			continue
		}
		for _, o := range m.Outcomes {
			if o.Name == homeTeam {
				if o.Point == nil {
					return 0, 0, 0, false
				}
				spread = *o.Point
				homeOdds = int(o.Price)
				ok = true
			} else {
				awayOdds = int(o.Price)
			}
		}
		return spread, homeOdds, awayOdds, ok
	}
	return 0, 0, 0, false
}

// Total extracts the over/under line and both prices.
func (b OddsBookmaker) Total() (total float64, overOdds, underOdds int, ok bool) {
	for _, m := range b.Markets {
		if m.Key != "totals" {
			continue
		}
		for _, o := range m.Outcomes {
			switch o.Name {
			case "Over":
				if o.Point != nil {
					total = *o.Point
					ok = true
				}
				overOdds = int(o.Price)
			case "Under":
				underOdds = int(o.Price)
			}
		}
		return total, overOdds, underOdds, ok
	}
	return 0, 0, 0, false
}
