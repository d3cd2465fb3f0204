package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// EventsRepo persists raw pitch-level events and the rolling-window
// aggregates derived from them.
type EventsRepo struct {
	s *Store
}

const insertPitchEventSQL = `
INSERT INTO pitch_events (
    game_date, game_id, batter_id, pitcher_id, batter_name, pitcher_name,
    stand, p_throws, events, description, pitch_type, release_speed,
    launch_speed, launch_angle, launch_speed_angle, hc_x, zone,
    bat_team, fld_team, inning, at_bat_number, pitch_number
) VALUES (
    :game_date, :game_id, :batter_id, :pitcher_id, :batter_name, :pitcher_name,
    :stand, :p_throws, :events, :description, :pitch_type, :release_speed,
    :launch_speed, :launch_angle, :launch_speed_angle, :hc_x, :zone,
    :bat_team, :fld_team, :inning, :at_bat_number, :pitch_number
)`

// InsertEvents appends raw events. The backfill deletes a date's events
// before re-inserting so retries stay idempotent.
func (r *EventsRepo) InsertEvents(ctx context.Context, rows []PitchEvent) (int64, error) {
	return namedBatch(ctx, r.s, insertPitchEventSQL, rows)
}

// DeleteEventsForDates clears raw events for the given dates.
func (r *EventsRepo) DeleteEventsForDates(ctx context.Context, dates []string) error {
	for _, d := range dates {
		if _, err := r.s.execCtx(ctx, `DELETE FROM pitch_events WHERE game_date = ?`, d); err != nil {
			return err
		}
	}
	return nil
}

// EventsInRange loads events with game_date in [start, end). The open
// right endpoint is the no-lookahead anchor: callers pass the target
// date as end so nothing from that day leaks in.
func (r *EventsRepo) EventsInRange(ctx context.Context, start, end string) ([]PitchEvent, error) {
	var out []PitchEvent
	err := r.s.selectCtx(ctx, &out,
		`SELECT game_date, game_id, batter_id, pitcher_id, batter_name, pitcher_name, stand, p_throws, events, description, pitch_type, release_speed, launch_speed, launch_angle, launch_speed_angle, hc_x, zone, bat_team, fld_team, inning, at_bat_number, pitch_number FROM pitch_events WHERE game_date >= ? AND game_date < ? ORDER BY game_date, game_id, at_bat_number, pitch_number`,
		start, end)
	return out, err
}

const upsertBatterStatsSQL = `
INSERT INTO batter_stats (
    player_id, stat_date, window_days, player_name, team, bat_hand,
    pa, ab, hrs, k_pct, bb_pct, barrel_pct,
    hard_hit_pct, avg_exit_velo, sweet_spot_pct, fb_pct, ld_pct, gb_pct,
    pull_pct, iso, slg, tb_per_pa, ba, hit_rate, hr_rate,
    singles_rate, doubles_rate, triples_rate, walk_rate, iso_vs_lhp, iso_vs_rhp
) VALUES (
    :player_id, :stat_date, :window_days, :player_name, :team, :bat_hand,
    :pa, :ab, :hrs, :k_pct, :bb_pct, :barrel_pct,
    :hard_hit_pct, :avg_exit_velo, :sweet_spot_pct, :fb_pct, :ld_pct, :gb_pct,
    :pull_pct, :iso, :slg, :tb_per_pa, :ba, :hit_rate, :hr_rate,
    :singles_rate, :doubles_rate, :triples_rate, :walk_rate, :iso_vs_lhp, :iso_vs_rhp
)
ON CONFLICT (player_id, stat_date, window_days) DO UPDATE SET
    player_name = excluded.player_name, team = excluded.team,
    bat_hand = excluded.bat_hand, ab = excluded.ab, hrs = excluded.hrs,
    iso_vs_lhp = excluded.iso_vs_lhp, iso_vs_rhp = excluded.iso_vs_rhp,
    pa = excluded.pa, k_pct = excluded.k_pct, bb_pct = excluded.bb_pct,
    barrel_pct = excluded.barrel_pct, hard_hit_pct = excluded.hard_hit_pct,
    avg_exit_velo = excluded.avg_exit_velo, sweet_spot_pct = excluded.sweet_spot_pct,
    fb_pct = excluded.fb_pct, ld_pct = excluded.ld_pct, gb_pct = excluded.gb_pct,
    pull_pct = excluded.pull_pct, iso = excluded.iso, slg = excluded.slg,
    tb_per_pa = excluded.tb_per_pa, ba = excluded.ba, hit_rate = excluded.hit_rate,
    hr_rate = excluded.hr_rate, singles_rate = excluded.singles_rate,
    doubles_rate = excluded.doubles_rate, triples_rate = excluded.triples_rate,
    walk_rate = excluded.walk_rate`

// UpsertBatterStats writes window aggregate rows.
func (r *EventsRepo) UpsertBatterStats(ctx context.Context, rows []BatterStats) (int64, error) {
	return namedBatch(ctx, r.s, upsertBatterStatsSQL, rows)
}

const upsertPitcherStatsSQL = `
INSERT INTO pitcher_stats (
    player_id, stat_date, window_days, player_name, team, pitch_hand,
    bf, k_pct, bb_pct, hr_per_9,
    hr_per_fb, hard_hit_pct_allowed, barrel_pct_allowed,
    avg_exit_velo_allowed, fb_pct_allowed, whiff_rate, chase_rate,
    fastball_velo, fastball_velo_trend
) VALUES (
    :player_id, :stat_date, :window_days, :player_name, :team, :pitch_hand,
    :bf, :k_pct, :bb_pct, :hr_per_9,
    :hr_per_fb, :hard_hit_pct_allowed, :barrel_pct_allowed,
    :avg_exit_velo_allowed, :fb_pct_allowed, :whiff_rate, :chase_rate,
    :fastball_velo, :fastball_velo_trend
)
ON CONFLICT (player_id, stat_date, window_days) DO UPDATE SET
    player_name = excluded.player_name, team = excluded.team,
    pitch_hand = excluded.pitch_hand,
    fastball_velo_trend = excluded.fastball_velo_trend,
    bf = excluded.bf, k_pct = excluded.k_pct, bb_pct = excluded.bb_pct,
    hr_per_9 = excluded.hr_per_9, hr_per_fb = excluded.hr_per_fb,
    hard_hit_pct_allowed = excluded.hard_hit_pct_allowed,
    barrel_pct_allowed = excluded.barrel_pct_allowed,
    avg_exit_velo_allowed = excluded.avg_exit_velo_allowed,
    fb_pct_allowed = excluded.fb_pct_allowed,
    whiff_rate = excluded.whiff_rate, chase_rate = excluded.chase_rate,
    fastball_velo = excluded.fastball_velo`

// UpsertPitcherStats writes window aggregate rows.
func (r *EventsRepo) UpsertPitcherStats(ctx context.Context, rows []PitcherStats) (int64, error) {
	return namedBatch(ctx, r.s, upsertPitcherStatsSQL, rows)
}

// LatestBatterWindows returns, per (player, window), the most recent
// batter_stats row with stat_date strictly before the given date.
func (r *EventsRepo) LatestBatterWindows(ctx context.Context, before string, windows []int) ([]BatterStats, error) {
	if len(windows) == 0 {
		windows = []int{7, 14, 30}
	}
	q, args, err := sqlx.In(`
SELECT * FROM (
    SELECT bs.*, ROW_NUMBER() OVER (
        PARTITION BY bs.player_id, bs.window_days
        ORDER BY bs.stat_date DESC
    ) AS rnk
    FROM batter_stats bs
    WHERE bs.stat_date < ? AND bs.window_days IN (?)
) ranked WHERE ranked.rnk = 1`, before, windows)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		BatterStats
		Rnk int `db:"rnk"`
	}
	if err := r.s.selectCtx(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]BatterStats, len(rows))
	for i, row := range rows {
		out[i] = row.BatterStats
	}
	return out, nil
}

// LatestPitcherWindows mirrors LatestBatterWindows for pitcher_stats.
func (r *EventsRepo) LatestPitcherWindows(ctx context.Context, before string, windows []int) ([]PitcherStats, error) {
	if len(windows) == 0 {
		windows = []int{14, 30}
	}
	q, args, err := sqlx.In(`
SELECT * FROM (
    SELECT ps.*, ROW_NUMBER() OVER (
        PARTITION BY ps.player_id, ps.window_days
        ORDER BY ps.stat_date DESC
    ) AS rnk
    FROM pitcher_stats ps
    WHERE ps.stat_date < ? AND ps.window_days IN (?)
) ranked WHERE ranked.rnk = 1`, before, windows)
	if err != nil {
		return nil, err
	}

	var rows []struct {
		PitcherStats
		Rnk int `db:"rnk"`
	}
	if err := r.s.selectCtx(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]PitcherStats, len(rows))
	for i, row := range rows {
		out[i] = row.PitcherStats
	}
	return out, nil
}
