package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ballparklabs/mlbedge/internal/fetch"
	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
	"github.com/ballparklabs/mlbedge/internal/scoring"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// RefreshOdds pulls the book surface for the date's slate, normalizes
// it and recomputes best-available flags. Without an API key the stage
// is a no-op so unfunded environments still run end to end.
func (p *Pipeline) RefreshOdds(ctx context.Context, gameDate string) (int64, error) {
	games, err := p.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return 0, fmt.Errorf("load games: %w", err)
	}
	if len(games) == 0 {
		return 0, nil
	}

	events, err := p.oddsAPI.Events(ctx)
	if err != nil {
		if errors.Is(err, fetch.ErrNoAPIKey) {
			p.log.Warn().Msg("no odds api key, skipping odds refresh")
			return 0, nil
		}
		return 0, fmt.Errorf("list odds events: %w", err)
	}

	byMatchup := make(map[string]store.Game, len(games))
	for _, g := range games {
		byMatchup[g.HomeTeam+"@"+g.AwayTeam] = g
	}

	names, err := p.playerIndex(ctx, gameDate, games)
	if err != nil {
		return 0, err
	}

	markets := append(fetch.GameMarkets(), fetch.PlayerPropMarkets()...)
	fetchedAt := store.UTCNow()
	var norms []oddskit.Row
	unresolved := 0
	for _, ev := range events {
		g, ok := byMatchup[fetch.TeamAbbr(ev.HomeTeam)+"@"+fetch.TeamAbbr(ev.AwayTeam)]
		if !ok {
			continue
		}
		prices, err := p.oddsAPI.EventOdds(ctx, ev.ID, markets)
		if err != nil {
			p.log.Warn().Err(err).Str("event_id", ev.ID).Msg("event odds failed")
			continue
		}
		for _, price := range prices {
			norm, ok := p.normalizePrice(price, g, ev, names, fetchedAt)
			if !ok {
				unresolved++
				continue
			}
			norms = append(norms, norm)
		}
	}
	if unresolved > 0 {
		p.log.Warn().Int("count", unresolved).Str("date", gameDate).Msg("odds outcomes unresolved")
	}
	if len(norms) == 0 {
		return 0, nil
	}

	// Rows carry a batch-local best flag into the insert so readers see
	// a usable flag immediately; the recompute below is authoritative
	// once earlier snapshots compete.
	rows := storeRows(norms)

	n, err := p.s.Odds.Insert(ctx, rows)
	if err != nil {
		return n, fmt.Errorf("insert odds: %w", err)
	}
	if err := p.s.Odds.RecomputeBestAvailable(ctx, gameDate); err != nil {
		return n, fmt.Errorf("recompute best available: %w", err)
	}
	return n, nil
}

// normalizePrice maps one raw book outcome onto a normalized odds row.
// Player props need a resolved player id; game markets need a side.
func (p *Pipeline) normalizePrice(price fetch.RawPrice, g store.Game, ev fetch.Event, names map[string]int64, fetchedAt string) (oddskit.Row, bool) {
	spec, err := scoring.SpecFor(price.Market)
	if err != nil {
		return oddskit.Row{}, false
	}

	raw := oddskit.Row{
		GameDate:      g.GameDate,
		GameID:        g.GameID,
		EventID:       ev.ID,
		Market:        price.Market,
		EntityType:    string(spec.Entity),
		Side:          price.Side,
		Line:          price.Line,
		PriceAmerican: price.Price,
		Sportsbook:    price.Sportsbook,
		FetchedAt:     fetchedAt,
	}

	switch spec.Entity {
	case scoring.EntityBatter, scoring.EntityPitcher:
		id, ok := names[normalizeName(price.PlayerName)]
		if !ok {
			return oddskit.Row{}, false
		}
		raw.PlayerID = &id
		raw.PlayerName = price.PlayerName
	case scoring.EntityTeam:
		// team_totals carry the club in the description field.
		abbr := fetch.TeamAbbr(price.PlayerName)
		if abbr != g.HomeTeam && abbr != g.AwayTeam {
			return oddskit.Row{}, false
		}
		raw.TeamAbbr = abbr
	case scoring.EntityGame:
		side, ok := gameSide(price, g)
		if !ok {
			return oddskit.Row{}, false
		}
		raw.Side = side
	}

	return oddskit.Normalize(raw), true
}

// storeRows converts normalized rows for persistence, flagging the best
// price per selection within the batch.
func storeRows(norms []oddskit.Row) []store.MarketOdds {
	best := oddskit.MarkBestAvailable(norms)
	rows := make([]store.MarketOdds, len(norms))
	for i, norm := range norms {
		row := store.MarketOdds{
			GameDate:      norm.GameDate,
			GameID:        &norm.GameID,
			EventID:       &norm.EventID,
			Market:        norm.Market,
			EntityType:    norm.EntityType,
			PlayerID:      norm.PlayerID,
			BetType:       norm.BetType,
			Side:          norm.Side,
			Line:          norm.Line,
			PriceAmerican: norm.PriceAmerican,
			DecimalOdds:   norm.DecimalOdds,
			ImpliedProb:   norm.ImpliedProb,
			SelectionKey:  norm.SelectionKey,
			Sportsbook:    norm.Sportsbook,
			FetchedAt:     norm.FetchedAt,
		}
		if norm.PlayerName != "" {
			row.PlayerName = &norm.PlayerName
		}
		if norm.TeamAbbr != "" {
			row.TeamAbbr = &norm.TeamAbbr
		}
		if best[i] {
			row.IsBestAvailable = 1
		}
		rows[i] = row
	}
	return rows
}

// gameSide maps moneyline club outcomes to HOME/AWAY and passes totals
// sides through.
func gameSide(price fetch.RawPrice, g store.Game) (string, bool) {
	switch strings.ToUpper(price.Side) {
	case "OVER", "UNDER":
		return strings.ToUpper(price.Side), true
	}
	switch fetch.TeamAbbr(price.Side) {
	case g.HomeTeam:
		return "HOME", true
	case g.AwayTeam:
		return "AWAY", true
	}
	return "", false
}

// playerIndex maps normalized player names to ids: batters and pitchers
// from the latest stat windows plus the slate's probable starters.
func (p *Pipeline) playerIndex(ctx context.Context, gameDate string, games []store.Game) (map[string]int64, error) {
	cutoff, err := nextDay(gameDate)
	if err != nil {
		return nil, err
	}
	names := make(map[string]int64)

	batters, err := p.s.Events.LatestBatterWindows(ctx, cutoff, []int{14, 30})
	if err != nil {
		return nil, fmt.Errorf("batter names: %w", err)
	}
	for _, b := range batters {
		if b.PlayerName != nil {
			names[normalizeName(*b.PlayerName)] = b.PlayerID
		}
	}

	pitchers, err := p.s.Events.LatestPitcherWindows(ctx, cutoff, []int{14, 30})
	if err != nil {
		return nil, fmt.Errorf("pitcher names: %w", err)
	}
	for _, pr := range pitchers {
		if pr.PlayerName != nil {
			names[normalizeName(*pr.PlayerName)] = pr.PlayerID
		}
	}

	for _, g := range games {
		if g.HomePitcherID != nil && g.HomePitcherName != nil {
			names[normalizeName(*g.HomePitcherName)] = *g.HomePitcherID
		}
		if g.AwayPitcherID != nil && g.AwayPitcherName != nil {
			names[normalizeName(*g.AwayPitcherName)] = *g.AwayPitcherID
		}
	}
	return names, nil
}

// normalizeName canonicalizes "Judge, Aaron" and "Aaron Judge" onto the
// same key: lowercased, punctuation stripped, first-last order.
func normalizeName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, ".", "")
	if last, first, ok := strings.Cut(s, ","); ok {
		s = strings.TrimSpace(first) + " " + strings.TrimSpace(last)
	}
	return strings.Join(strings.Fields(s), " ")
}
