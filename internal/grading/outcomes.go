package grading

import (
	"context"
	"fmt"
	"time"

	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// statKey addresses one player's line in one game.
type statKey struct {
	gameID   int64
	playerID int64
}

// statLines is the realized box line per player, rebuilt from the pitch
// event stream for the date.
type statLines struct {
	batterHR   map[statKey]int
	batterHits map[statKey]int
	batterTB   map[statKey]int
	pitcherK   map[statKey]int
	pitcherOut map[statKey]int
}

var hitBasesByEvent = map[string]int{
	"single": 1, "double": 2, "triple": 3, "home_run": 4,
}

var outsByEvent = map[string]int{
	"field_out": 1, "strikeout": 1, "force_out": 1, "sac_fly": 1,
	"sac_bunt": 1, "fielders_choice_out": 1, "caught_stealing_2b": 1,
	"other_out":                 1,
	"grounded_into_double_play": 2, "double_play": 2,
	"strikeout_double_play": 2, "sac_fly_double_play": 2,
	"triple_play": 3,
}

func (g *Grader) statLines(ctx context.Context, gameDate string) (*statLines, error) {
	next, err := nextDay(gameDate)
	if err != nil {
		return nil, err
	}
	events, err := g.s.Events.EventsInRange(ctx, gameDate, next)
	if err != nil {
		return nil, fmt.Errorf("load events: %w", err)
	}

	lines := &statLines{
		batterHR:   make(map[statKey]int),
		batterHits: make(map[statKey]int),
		batterTB:   make(map[statKey]int),
		pitcherK:   make(map[statKey]int),
		pitcherOut: make(map[statKey]int),
	}
	for _, ev := range events {
		if ev.Events == nil || *ev.Events == "" {
			continue
		}
		bk := statKey{ev.GameID, ev.BatterID}
		pk := statKey{ev.GameID, ev.PitcherID}

		if bases, ok := hitBasesByEvent[*ev.Events]; ok {
			lines.batterHits[bk]++
			lines.batterTB[bk] += bases
			if bases == 4 {
				lines.batterHR[bk]++
			}
		}
		if outs, ok := outsByEvent[*ev.Events]; ok {
			lines.pitcherOut[pk] += outs
		}
		if *ev.Events == "strikeout" || *ev.Events == "strikeout_double_play" {
			lines.pitcherK[pk]++
		}
	}
	return lines, nil
}

// outcomeFor computes the realized value for one selection. A nil
// result with nil error means the selection cannot be graded yet, e.g.
// a first-five market with no linescore source configured.
func (g *Grader) outcomeFor(ctx context.Context, key string, gm store.Game, lines *statLines) (*store.MarketOutcome, error) {
	sel, err := parseKey(key)
	if err != nil {
		return nil, err
	}

	switch sel.Market {
	case "HR":
		return playerOutcome(sel, gm, lines.batterHR, "home runs")
	case "HITS_1P", "HITS_LINE":
		return playerOutcome(sel, gm, lines.batterHits, "hits")
	case "TB_LINE":
		return playerOutcome(sel, gm, lines.batterTB, "total bases")
	case "K":
		return playerOutcome(sel, gm, lines.pitcherK, "strikeouts")
	case "OUTS_RECORDED":
		return playerOutcome(sel, gm, lines.pitcherOut, "outs")
	case "ML":
		return marginOutcome(sel, gm)
	case "TOTAL":
		if gm.HomeScore == nil || gm.AwayScore == nil {
			return nil, fmt.Errorf("final game %d missing scores", gm.GameID)
		}
		total := float64(*gm.HomeScore + *gm.AwayScore)
		return &store.MarketOutcome{Market: sel.Market, OutcomeValue: total}, nil
	case "TEAM_TOTAL":
		return teamTotalOutcome(sel, gm)
	case "F5_ML", "F5_TOTAL":
		return g.firstFiveOutcome(ctx, sel, gm)
	}
	return nil, fmt.Errorf("ungradeable market %s", sel.Market)
}

func playerOutcome(sel oddskit.Selection, gm store.Game, counts map[statKey]int, what string) (*store.MarketOutcome, error) {
	pid, ok := sel.PlayerID()
	if !ok {
		return nil, fmt.Errorf("player market without player entity")
	}
	// Absent from the event stream means a zero line, not missing data:
	// a scratched player simply recorded nothing.
	value := float64(counts[statKey{gm.GameID, pid}])
	text := fmt.Sprintf("%.0f %s", value, what)
	return &store.MarketOutcome{Market: sel.Market, OutcomeValue: value, OutcomeText: &text}, nil
}

func marginOutcome(sel oddskit.Selection, gm store.Game) (*store.MarketOutcome, error) {
	if gm.HomeScore == nil || gm.AwayScore == nil {
		return nil, fmt.Errorf("final game %d missing scores", gm.GameID)
	}
	margin := float64(*gm.HomeScore - *gm.AwayScore)
	text := gm.AwayTeam
	if margin > 0 {
		text = gm.HomeTeam
	}
	return &store.MarketOutcome{Market: sel.Market, OutcomeValue: margin, OutcomeText: &text}, nil
}

func teamTotalOutcome(sel oddskit.Selection, gm store.Game) (*store.MarketOutcome, error) {
	team, ok := sel.TeamAbbr()
	if !ok {
		return nil, fmt.Errorf("team market without team entity")
	}
	if gm.HomeScore == nil || gm.AwayScore == nil {
		return nil, fmt.Errorf("final game %d missing scores", gm.GameID)
	}
	var runs float64
	switch team {
	case gm.HomeTeam:
		runs = float64(*gm.HomeScore)
	case gm.AwayTeam:
		runs = float64(*gm.AwayScore)
	default:
		return nil, fmt.Errorf("team %s not in game %d", team, gm.GameID)
	}
	return &store.MarketOutcome{Market: sel.Market, OutcomeValue: runs}, nil
}

// firstFiveOutcome resolves F5 markets from per-inning scoring. The F5
// margin and total only count innings one through five.
func (g *Grader) firstFiveOutcome(ctx context.Context, sel oddskit.Selection, gm store.Game) (*store.MarketOutcome, error) {
	if g.linescores == nil {
		return nil, nil
	}
	ls, err := g.linescores.Linescore(ctx, gm.GameID)
	if err != nil {
		return nil, fmt.Errorf("linescore game %d: %w", gm.GameID, err)
	}
	if ls == nil || len(ls.HomeByInning) < 5 || len(ls.AwayByInning) < 5 {
		return nil, nil
	}
	home, away := 0, 0
	for i := 0; i < 5; i++ {
		home += ls.HomeByInning[i]
		away += ls.AwayByInning[i]
	}

	if sel.Market == "F5_TOTAL" {
		return &store.MarketOutcome{Market: sel.Market, OutcomeValue: float64(home + away)}, nil
	}
	margin := float64(home - away)
	text := gm.AwayTeam
	switch {
	case margin > 0:
		text = gm.HomeTeam
	case margin == 0:
		text = "TIE"
	}
	return &store.MarketOutcome{Market: sel.Market, OutcomeValue: margin, OutcomeText: &text}, nil
}

func nextDay(gameDate string) (string, error) {
	t, err := time.Parse("2006-01-02", gameDate)
	if err != nil {
		return "", fmt.Errorf("bad date %q: %w", gameDate, err)
	}
	return t.AddDate(0, 0, 1).Format("2006-01-02"), nil
}
