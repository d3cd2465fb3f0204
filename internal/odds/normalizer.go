// Package odds normalizes heterogeneous sportsbook price rows into the
// internal (market, entity, side, line, selection_key) shape shared by
// market_odds, model_scores, market_outcomes, bets and closing_lines.
package odds

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Market codes recognized by the pipeline.
const (
	MarketHR           = "HR"
	MarketK            = "K"
	MarketHits1Plus    = "HITS_1P"
	MarketHitsLine     = "HITS_LINE"
	MarketTBLine       = "TB_LINE"
	MarketOutsRecorded = "OUTS_RECORDED"
	MarketML           = "ML"
	MarketTotal        = "TOTAL"
	MarketF5ML         = "F5_ML"
	MarketF5Total      = "F5_TOTAL"
	MarketTeamTotal    = "TEAM_TOTAL"
)

// sourceMarketMap maps Odds API market keys to internal market codes.
// Unknown keys are skipped by the caller.
var sourceMarketMap = map[string]string{
	"batter_home_runs":           MarketHR,
	"pitcher_strikeouts":         MarketK,
	"batter_hits":                MarketHitsLine,
	"batter_first_hit":           MarketHits1Plus,
	"batter_hits_over_under":     MarketHitsLine,
	"batter_total_bases":         MarketTBLine,
	"pitcher_outs":               MarketOutsRecorded,
	"h2h":                        MarketML,
	"totals":                     MarketTotal,
	"h2h_1st_5_innings":          MarketF5ML,
	"totals_1st_5_innings":       MarketF5Total,
	"team_totals":                MarketTeamTotal,
	"alternate_team_totals":      MarketTeamTotal,
	"alternate_totals":           MarketTotal,
	"batter_home_runs_alternate": MarketHR,
}

// InternalMarket resolves a source-book market key to an internal code.
func InternalMarket(sourceKey string) (string, bool) {
	m, ok := sourceMarketMap[strings.ToLower(strings.TrimSpace(sourceKey))]
	return m, ok
}

// AmericanToDecimal converts an American price to decimal odds.
func AmericanToDecimal(price int) float64 {
	if price > 0 {
		return 1.0 + float64(price)/100.0
	}
	return 1.0 + 100.0/math.Abs(float64(price))
}

// AmericanToImplied converts an American price to implied probability.
func AmericanToImplied(price int) float64 {
	if price > 0 {
		return 100.0 / (float64(price) + 100.0)
	}
	a := math.Abs(float64(price))
	return a / (a + 100.0)
}

// DecimalToAmerican converts decimal odds back to an American price.
// Inverse of AmericanToDecimal on integer prices.
func DecimalToAmerican(dec float64) int {
	if dec >= 2.0 {
		return int(math.Round((dec - 1.0) * 100.0))
	}
	return int(math.Round(-100.0 / (dec - 1.0)))
}

// markets that carry no line token in their selection keys. Moneylines
// have no line; yes/no props are implicitly 0.5 so the token is noise.
var noLineMarkets = map[string]bool{
	MarketML:        true,
	MarketF5ML:      true,
	MarketHR:        true,
	MarketHits1Plus: true,
}

// NormalizeSide maps book outcome names onto canonical sides. HR yes/no
// props arrive as OVER/UNDER 0.5 and are normalized to YES/NO.
func NormalizeSide(market, side string) string {
	s := strings.ToUpper(strings.TrimSpace(side))
	if market == MarketHR || market == MarketHits1Plus {
		switch s {
		case "OVER":
			return "YES"
		case "UNDER":
			return "NO"
		}
	}
	return s
}

// FormatLine renders a line for a selection key with trailing zeros
// dropped: 6.50 -> "6.5", 7.00 -> "7".
func FormatLine(line float64) string {
	s := strconv.FormatFloat(line, 'f', -1, 64)
	return s
}

// SelectionKey builds the stable join key for one bettable side.
//
//	HR|player:12345|YES
//	K|player:678|line:6.5|OVER
//	ML|game:9|HOME
//
// entity is "player:<id>", "team:<abbr>" or "game:<id>". Moneyline
// markets omit the line token.
func SelectionKey(market, entity, side string, line *float64) string {
	side = NormalizeSide(market, side)
	if noLineMarkets[market] || line == nil {
		return fmt.Sprintf("%s|%s|%s", market, entity, side)
	}
	return fmt.Sprintf("%s|%s|line:%s|%s", market, entity, FormatLine(*line), side)
}

// Selection is a parsed selection key.
type Selection struct {
	Market string
	Entity string
	Side   string
	Line   *float64
}

// ParseSelectionKey splits a selection key back into its tokens. The
// inverse of SelectionKey.
func ParseSelectionKey(key string) (Selection, error) {
	parts := strings.Split(key, "|")
	if len(parts) < 3 || len(parts) > 4 {
		return Selection{}, fmt.Errorf("malformed selection key: %q", key)
	}
	sel := Selection{Market: parts[0], Entity: parts[1], Side: parts[len(parts)-1]}
	if len(parts) == 4 {
		raw, ok := strings.CutPrefix(parts[2], "line:")
		if !ok {
			return Selection{}, fmt.Errorf("malformed line token in key: %q", key)
		}
		line, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Selection{}, fmt.Errorf("malformed line in key %q: %w", key, err)
		}
		sel.Line = &line
	}
	return sel, nil
}

// PlayerID extracts the player id from a "player:<id>" entity token.
func (s Selection) PlayerID() (int64, bool) {
	raw, ok := strings.CutPrefix(s.Entity, "player:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

// TeamAbbr extracts the team from a "team:<abbr>" entity token.
func (s Selection) TeamAbbr() (string, bool) {
	return strings.CutPrefix(s.Entity, "team:")
}

// GameID extracts the game id from a "game:<id>" entity token.
func (s Selection) GameID() (int64, bool) {
	raw, ok := strings.CutPrefix(s.Entity, "game:")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	return id, err == nil
}

// PlayerEntity renders the entity token for a player-keyed market.
func PlayerEntity(playerID int64) string { return fmt.Sprintf("player:%d", playerID) }

// GameEntity renders the entity token for a game-keyed market.
func GameEntity(gameID int64) string { return fmt.Sprintf("game:%d", gameID) }

// TeamEntity renders the entity token for a team-keyed market.
func TeamEntity(teamAbbr string) string { return "team:" + teamAbbr }

// Row is a normalized odds row ready for persistence.
type Row struct {
	GameDate      string
	GameID        int64
	EventID       string
	Market        string
	EntityType    string
	PlayerID      *int64
	PlayerName    string
	TeamAbbr      string
	BetType       string
	Side          string
	Line          *float64
	PriceAmerican int
	DecimalOdds   float64
	ImpliedProb   float64
	SelectionKey  string
	Sportsbook    string
	FetchedAt     string
}

// Normalize fills the derived fields of a raw row: canonical side,
// decimal odds, implied probability and the selection key.
func Normalize(r Row) Row {
	r.Side = NormalizeSide(r.Market, r.Side)
	r.DecimalOdds = AmericanToDecimal(r.PriceAmerican)
	r.ImpliedProb = AmericanToImplied(r.PriceAmerican)

	var entity string
	switch {
	case r.PlayerID != nil:
		entity = PlayerEntity(*r.PlayerID)
	case r.EntityType == "team" && r.TeamAbbr != "":
		entity = TeamEntity(r.TeamAbbr)
	default:
		entity = GameEntity(r.GameID)
	}
	r.SelectionKey = SelectionKey(r.Market, entity, r.Side, r.Line)
	if r.BetType == "" {
		r.BetType = r.Market + "_" + r.Side
	}
	return r
}

// MarkBestAvailable flags, per selection key, the row with the highest
// payoff (lowest implied probability for the offered side). Ties keep the
// first seen. Returns the index set of best rows.
func MarkBestAvailable(rows []Row) map[int]bool {
	best := make(map[string]int)
	for i, r := range rows {
		j, ok := best[r.SelectionKey]
		if !ok || r.ImpliedProb < rows[j].ImpliedProb {
			best[r.SelectionKey] = i
		}
	}
	out := make(map[int]bool, len(best))
	for _, i := range best {
		out[i] = true
	}
	return out
}
