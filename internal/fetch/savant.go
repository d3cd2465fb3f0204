package fetch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// SavantClient pulls pitch-level Statcast data from the Baseball Savant
// CSV export. Two modes: one day for the live path, a date range for
// bulk backfill chunks.
type SavantClient struct {
	c *client
}

func NewSavant(cfg config.Fetch, logger zerolog.Logger) *SavantClient {
	return &SavantClient{
		c: newClient("savant", cfg.SavantBase, cfg.Timeout, cfg.MaxRetries, nil, logger),
	}
}

// EventsForDay is the live-path fetch for a single date.
func (s *SavantClient) EventsForDay(ctx context.Context, gameDate string) ([]store.PitchEvent, error) {
	return s.Events(ctx, gameDate, gameDate)
}

// Events pulls [start, end] inclusive in one request. Backfill bounds
// the range to its chunk size so the response stays in memory.
func (s *SavantClient) Events(ctx context.Context, start, end string) ([]store.PitchEvent, error) {
	q := url.Values{
		"all":          {"true"},
		"type":         {"details"},
		"player_type":  {"batter"},
		"game_date_gt": {start},
		"game_date_lt": {end},
	}
	body, err := s.c.get(ctx, "/statcast_search/csv", q)
	if err != nil {
		return nil, err
	}
	events, err := parseSavantCSV(body)
	if err != nil {
		return nil, fmt.Errorf("savant csv %s..%s: %w", start, end, err)
	}
	s.c.log.Debug().Str("start", start).Str("end", end).Int("pitches", len(events)).Msg("statcast fetched")
	return events, nil
}

func parseSavantCSV(body []byte) ([]store.PitchEvent, error) {
	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[name] = i
	}
	for _, required := range []string{"game_date", "game_pk", "batter", "pitcher"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing column %q", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}
	strp := func(rec []string, name string) *string {
		v := field(rec, name)
		if v == "" || v == "null" {
			return nil
		}
		s := v
		return &s
	}
	floatp := func(rec []string, name string) *float64 {
		v := field(rec, name)
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil
		}
		return &f
	}
	intp := func(rec []string, name string) *int64 {
		v := field(rec, name)
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			// Savant renders some integer columns as floats.
			f, ferr := strconv.ParseFloat(v, 64)
			if ferr != nil {
				return nil
			}
			n = int64(f)
		}
		return &n
	}

	var events []store.PitchEvent
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		gameID, err := strconv.ParseInt(field(rec, "game_pk"), 10, 64)
		if err != nil {
			continue
		}
		batterID, err := strconv.ParseInt(field(rec, "batter"), 10, 64)
		if err != nil {
			continue
		}
		pitcherID, err := strconv.ParseInt(field(rec, "pitcher"), 10, 64)
		if err != nil {
			continue
		}

		ev := store.PitchEvent{
			GameDate:         field(rec, "game_date"),
			GameID:           gameID,
			BatterID:         batterID,
			PitcherID:        pitcherID,
			BatterName:       strp(rec, "player_name"),
			Stand:            strp(rec, "stand"),
			PThrows:          strp(rec, "p_throws"),
			Events:           strp(rec, "events"),
			Description:      strp(rec, "description"),
			PitchType:        strp(rec, "pitch_type"),
			ReleaseSpeed:     floatp(rec, "release_speed"),
			LaunchSpeed:      floatp(rec, "launch_speed"),
			LaunchAngle:      floatp(rec, "launch_angle"),
			LaunchSpeedAngle: intp(rec, "launch_speed_angle"),
			HcX:              floatp(rec, "hc_x"),
			Zone:             floatp(rec, "zone"),
			Inning:           intp(rec, "inning"),
			AtBatNumber:      intp(rec, "at_bat_number"),
			PitchNumber:      intp(rec, "pitch_number"),
		}

		// The export carries home/away clubs; the batting side follows the
		// inning half.
		home, away := field(rec, "home_team"), field(rec, "away_team")
		if home != "" && away != "" {
			bat, fld := home, away
			if field(rec, "inning_topbot") == "Top" {
				bat, fld = away, home
			}
			ev.BatTeam, ev.FldTeam = &bat, &fld
		}
		events = append(events, ev)
	}
	return events, nil
}

// PartitionByDate splits a bulk pull into per-date slices, preserving
// input order within each date.
func PartitionByDate(events []store.PitchEvent) map[string][]store.PitchEvent {
	out := make(map[string][]store.PitchEvent)
	for _, ev := range events {
		out[ev.GameDate] = append(out[ev.GameDate], ev)
	}
	return out
}
