package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/ballparklabs/mlbedge/internal/store"
)

const dateLayout = "2006-01-02"

func nextDay(gameDate string) (string, error) {
	t, err := time.Parse(dateLayout, gameDate)
	if err != nil {
		return "", fmt.Errorf("bad date %q: %w", gameDate, err)
	}
	return t.AddDate(0, 0, 1).Format(dateLayout), nil
}

// SyncSchedule upserts the slate: games, probable pitchers with
// handedness, stadium ids and home plate umpires.
func (p *Pipeline) SyncSchedule(ctx context.Context, gameDate string) (int64, error) {
	games, err := p.mlb.Schedule(ctx, gameDate)
	if err != nil {
		return 0, fmt.Errorf("fetch schedule: %w", err)
	}
	if len(games) == 0 {
		return 0, nil
	}

	umpires, err := p.mlb.Umpires(ctx, gameDate)
	if err != nil {
		// Umpire context degrades to neutral; the slate is still usable.
		p.log.Warn().Err(err).Str("date", gameDate).Msg("umpire assignments unavailable")
		umpires = nil
	}

	for i := range games {
		stadium, err := p.s.Ref.StadiumForTeam(ctx, games[i].HomeTeam)
		if err != nil {
			return 0, fmt.Errorf("stadium lookup %s: %w", games[i].HomeTeam, err)
		}
		if stadium != nil {
			id := stadium.StadiumID
			games[i].StadiumID = &id
		}
		if name, ok := umpires[games[i].GameID]; ok {
			n := name
			games[i].UmpireName = &n
		}
	}

	if _, err := p.s.Games.Upsert(ctx, games); err != nil {
		return 0, fmt.Errorf("upsert games: %w", err)
	}
	return int64(len(games)), nil
}

// SyncEvents replaces the date's pitch events with a fresh pull.
func (p *Pipeline) SyncEvents(ctx context.Context, gameDate string) (int64, error) {
	events, err := p.savant.EventsForDay(ctx, gameDate)
	if err != nil {
		return 0, fmt.Errorf("fetch events: %w", err)
	}
	return p.replaceEvents(ctx, []string{gameDate}, events)
}

func (p *Pipeline) replaceEvents(ctx context.Context, dates []string, events []store.PitchEvent) (int64, error) {
	if err := p.s.Events.DeleteEventsForDates(ctx, dates); err != nil {
		return 0, fmt.Errorf("clear events: %w", err)
	}
	n, err := p.s.Events.InsertEvents(ctx, events)
	if err != nil {
		return n, fmt.Errorf("insert events: %w", err)
	}
	return n, nil
}

// SyncWeather fetches a point forecast at each home stadium for first
// pitch. Games without stadium coordinates are skipped; the context
// builder flags the gap.
func (p *Pipeline) SyncWeather(ctx context.Context, gameDate string) (int64, error) {
	games, err := p.s.Games.ForDate(ctx, gameDate)
	if err != nil {
		return 0, fmt.Errorf("load games: %w", err)
	}

	var rows []store.Weather
	fetchedAt := store.UTCNow()
	for _, g := range games {
		if g.StadiumID == nil {
			continue
		}
		stadium, err := p.s.Ref.StadiumByID(ctx, *g.StadiumID)
		if err != nil {
			return 0, err
		}
		if stadium == nil {
			continue
		}
		obs, err := p.weather.At(ctx, stadium.Latitude, stadium.Longitude, g.GameTime)
		if err != nil {
			p.log.Warn().Err(err).Int64("game_id", g.GameID).Msg("weather unavailable")
			continue
		}
		temp, wind, dir := obs.TempF, obs.WindSpeedMPH, obs.WindDir
		rows = append(rows, store.Weather{
			GameDate:     gameDate,
			GameID:       g.GameID,
			StadiumID:    g.StadiumID,
			TempF:        &temp,
			WindSpeedMPH: &wind,
			WindDir:      &dir,
			FetchedAt:    fetchedAt,
		})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := p.s.Ref.UpsertWeather(ctx, rows)
	if err != nil {
		return n, fmt.Errorf("upsert weather: %w", err)
	}
	return n, nil
}
