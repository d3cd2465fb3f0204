package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/odds"
)

// ErrNoAPIKey means the odds fetch was invoked without credentials; the
// caller skips the stage instead of failing the run.
var ErrNoAPIKey = errors.New("no odds api key configured")

const oddsSport = "baseball_mlb"

// playerPropMarkets are requested per event; game markets come cheaper
// in the bulk odds endpoint.
var playerPropMarkets = []string{
	"batter_home_runs",
	"batter_hits",
	"batter_first_hit",
	"batter_total_bases",
	"pitcher_strikeouts",
	"pitcher_outs",
}

var gameMarkets = []string{
	"h2h",
	"totals",
	"team_totals",
	"h2h_1st_5_innings",
	"totals_1st_5_innings",
}

// OddsAPIClient reads The Odds API. The free tier is 500 requests per
// month, so calls run through a deliberately slow rate limiter and the
// pipeline batches per-event prop pulls.
type OddsAPIClient struct {
	c      *client
	apiKey string
}

func NewOddsAPI(cfg config.Fetch, logger zerolog.Logger) *OddsAPIClient {
	perMin := cfg.OddsRatePerMin
	if perMin <= 0 {
		perMin = 10
	}
	limiter := rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1)
	return &OddsAPIClient{
		c:      newClient("oddsapi", cfg.OddsAPIBase, cfg.Timeout, cfg.MaxRetries, limiter, logger),
		apiKey: cfg.OddsAPIKey,
	}
}

// Event is one upstream game listing.
type Event struct {
	ID           string `json:"id"`
	CommenceTime string `json:"commence_time"`
	HomeTeam     string `json:"home_team"`
	AwayTeam     string `json:"away_team"`
}

// Events lists upcoming games with odds coverage.
func (o *OddsAPIClient) Events(ctx context.Context) ([]Event, error) {
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	q := url.Values{
		"apiKey":     {o.apiKey},
		"dateFormat": {"iso"},
	}
	body, err := o.c.get(ctx, "/sports/"+oddsSport+"/events", q)
	if err != nil {
		return nil, err
	}
	var events []Event
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("parse events: %w", err)
	}
	return events, nil
}

// RawPrice is one book outcome before player-id resolution and
// normalization.
type RawPrice struct {
	EventID    string
	Sportsbook string
	Market     string // internal market code
	PlayerName string // player props only
	Side       string
	Line       *float64
	Price      int
}

type eventOddsResponse struct {
	Bookmakers []struct {
		Key     string `json:"key"`
		Markets []struct {
			Key      string `json:"key"`
			Outcomes []struct {
				Name        string   `json:"name"`
				Description string   `json:"description"`
				Price       float64  `json:"price"`
				Point       *float64 `json:"point"`
			} `json:"outcomes"`
		} `json:"markets"`
	} `json:"bookmakers"`
}

// EventOdds pulls the requested source markets for one event and maps
// them onto internal market codes. Unknown market keys are dropped.
func (o *OddsAPIClient) EventOdds(ctx context.Context, eventID string, sourceMarkets []string) ([]RawPrice, error) {
	if o.apiKey == "" {
		return nil, ErrNoAPIKey
	}
	q := url.Values{
		"apiKey":     {o.apiKey},
		"regions":    {"us"},
		"markets":    {strings.Join(sourceMarkets, ",")},
		"dateFormat": {"iso"},
		"oddsFormat": {"american"},
	}
	body, err := o.c.get(ctx, "/sports/"+oddsSport+"/events/"+eventID+"/odds", q)
	if err != nil {
		return nil, err
	}
	var resp eventOddsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse event odds %s: %w", eventID, err)
	}

	var prices []RawPrice
	for _, book := range resp.Bookmakers {
		for _, market := range book.Markets {
			internal, ok := odds.InternalMarket(market.Key)
			if !ok {
				continue
			}
			for _, out := range market.Outcomes {
				p := RawPrice{
					EventID:    eventID,
					Sportsbook: book.Key,
					Market:     internal,
					Side:       out.Name,
					Line:       out.Point,
					Price:      int(out.Price),
				}
				// Player props carry the player in description and the side
				// in name; moneylines carry the club name instead.
				if out.Description != "" {
					p.PlayerName = out.Description
				}
				prices = append(prices, p)
			}
		}
	}
	return prices, nil
}

// PlayerPropMarkets is the per-event prop request set.
func PlayerPropMarkets() []string { return append([]string(nil), playerPropMarkets...) }

// GameMarkets is the game-level request set.
func GameMarkets() []string { return append([]string(nil), gameMarkets...) }
