package store

import (
	"context"
	"database/sql"
	"errors"
)

// FeaturesRepo persists the per-date feature store.
type FeaturesRepo struct {
	s *Store
}

const upsertBatterFeaturesSQL = `
INSERT INTO batter_daily_features (
    game_date, player_id, player_name, team_id, bats,
    pa_7, pa_14, pa_30, k_pct_14, k_pct_30, bb_pct_14,
    barrel_pct_14, barrel_pct_30, hard_hit_pct_14, avg_exit_velo_14,
    sweet_spot_pct_14, fb_pct_14, pull_pct_14,
    iso_7, iso_14, iso_30, slg_14, tb_per_pa_14, tb_per_pa_30,
    hit_rate_7, hit_rate_14, hit_rate_30, hr_rate_14, hr_rate_30,
    doubles_rate_14, triples_rate_14,
    hit_rate_vs_lhp, hit_rate_vs_rhp, iso_vs_lhp, iso_vs_rhp,
    k_pct_vs_lhp, k_pct_vs_rhp,
    hot_cold_delta_iso, hot_cold_delta_hit_rate, recent_lineup_slot
) VALUES (
    :game_date, :player_id, :player_name, :team_id, :bats,
    :pa_7, :pa_14, :pa_30, :k_pct_14, :k_pct_30, :bb_pct_14,
    :barrel_pct_14, :barrel_pct_30, :hard_hit_pct_14, :avg_exit_velo_14,
    :sweet_spot_pct_14, :fb_pct_14, :pull_pct_14,
    :iso_7, :iso_14, :iso_30, :slg_14, :tb_per_pa_14, :tb_per_pa_30,
    :hit_rate_7, :hit_rate_14, :hit_rate_30, :hr_rate_14, :hr_rate_30,
    :doubles_rate_14, :triples_rate_14,
    :hit_rate_vs_lhp, :hit_rate_vs_rhp, :iso_vs_lhp, :iso_vs_rhp,
    :k_pct_vs_lhp, :k_pct_vs_rhp,
    :hot_cold_delta_iso, :hot_cold_delta_hit_rate, :recent_lineup_slot
)
ON CONFLICT (game_date, player_id) DO UPDATE SET
    player_name = excluded.player_name, team_id = excluded.team_id,
    bats = excluded.bats,
    pa_7 = excluded.pa_7, pa_14 = excluded.pa_14, pa_30 = excluded.pa_30,
    k_pct_14 = excluded.k_pct_14, k_pct_30 = excluded.k_pct_30,
    bb_pct_14 = excluded.bb_pct_14,
    barrel_pct_14 = excluded.barrel_pct_14, barrel_pct_30 = excluded.barrel_pct_30,
    hard_hit_pct_14 = excluded.hard_hit_pct_14,
    avg_exit_velo_14 = excluded.avg_exit_velo_14,
    sweet_spot_pct_14 = excluded.sweet_spot_pct_14,
    fb_pct_14 = excluded.fb_pct_14, pull_pct_14 = excluded.pull_pct_14,
    iso_7 = excluded.iso_7, iso_14 = excluded.iso_14, iso_30 = excluded.iso_30,
    slg_14 = excluded.slg_14, tb_per_pa_14 = excluded.tb_per_pa_14,
    tb_per_pa_30 = excluded.tb_per_pa_30,
    hit_rate_7 = excluded.hit_rate_7, hit_rate_14 = excluded.hit_rate_14,
    hit_rate_30 = excluded.hit_rate_30,
    hr_rate_14 = excluded.hr_rate_14, hr_rate_30 = excluded.hr_rate_30,
    doubles_rate_14 = excluded.doubles_rate_14,
    triples_rate_14 = excluded.triples_rate_14,
    hit_rate_vs_lhp = excluded.hit_rate_vs_lhp,
    hit_rate_vs_rhp = excluded.hit_rate_vs_rhp,
    iso_vs_lhp = excluded.iso_vs_lhp, iso_vs_rhp = excluded.iso_vs_rhp,
    k_pct_vs_lhp = excluded.k_pct_vs_lhp, k_pct_vs_rhp = excluded.k_pct_vs_rhp,
    hot_cold_delta_iso = excluded.hot_cold_delta_iso,
    hot_cold_delta_hit_rate = excluded.hot_cold_delta_hit_rate,
    recent_lineup_slot = excluded.recent_lineup_slot`

// UpsertBatterFeatures writes batter feature rows for one date.
func (r *FeaturesRepo) UpsertBatterFeatures(ctx context.Context, rows []BatterFeatures) (int64, error) {
	return namedBatch(ctx, r.s, upsertBatterFeaturesSQL, rows)
}

const upsertPitcherFeaturesSQL = `
INSERT INTO pitcher_daily_features (
    game_date, pitcher_id, player_name, team_id, throws,
    bf_14, bf_30, k_pct_14, k_pct_30, bb_pct_14, bb_pct_30,
    hr_per_9_14, hr_per_9_30, hr_per_fb_30,
    hard_hit_pct_allowed_14, hard_hit_pct_allowed_30,
    barrel_pct_allowed_14, avg_exit_velo_allowed_14, fb_pct_allowed_14,
    whiff_rate_14, chase_rate_14, fastball_velo_14, fastball_velo_delta,
    outs_recorded_avg_last_5, pitches_avg_last_5, starter_role_confidence,
    k_pct_vs_lhb, k_pct_vs_rhb,
    tto_k_decay_pct, tto_hr_increase_pct, tto_endurance_score
) VALUES (
    :game_date, :pitcher_id, :player_name, :team_id, :throws,
    :bf_14, :bf_30, :k_pct_14, :k_pct_30, :bb_pct_14, :bb_pct_30,
    :hr_per_9_14, :hr_per_9_30, :hr_per_fb_30,
    :hard_hit_pct_allowed_14, :hard_hit_pct_allowed_30,
    :barrel_pct_allowed_14, :avg_exit_velo_allowed_14, :fb_pct_allowed_14,
    :whiff_rate_14, :chase_rate_14, :fastball_velo_14, :fastball_velo_delta,
    :outs_recorded_avg_last_5, :pitches_avg_last_5, :starter_role_confidence,
    :k_pct_vs_lhb, :k_pct_vs_rhb,
    :tto_k_decay_pct, :tto_hr_increase_pct, :tto_endurance_score
)
ON CONFLICT (game_date, pitcher_id) DO UPDATE SET
    player_name = excluded.player_name, team_id = excluded.team_id,
    throws = excluded.throws,
    bf_14 = excluded.bf_14, bf_30 = excluded.bf_30,
    k_pct_14 = excluded.k_pct_14, k_pct_30 = excluded.k_pct_30,
    bb_pct_14 = excluded.bb_pct_14, bb_pct_30 = excluded.bb_pct_30,
    hr_per_9_14 = excluded.hr_per_9_14, hr_per_9_30 = excluded.hr_per_9_30,
    hr_per_fb_30 = excluded.hr_per_fb_30,
    hard_hit_pct_allowed_14 = excluded.hard_hit_pct_allowed_14,
    hard_hit_pct_allowed_30 = excluded.hard_hit_pct_allowed_30,
    barrel_pct_allowed_14 = excluded.barrel_pct_allowed_14,
    avg_exit_velo_allowed_14 = excluded.avg_exit_velo_allowed_14,
    fb_pct_allowed_14 = excluded.fb_pct_allowed_14,
    whiff_rate_14 = excluded.whiff_rate_14, chase_rate_14 = excluded.chase_rate_14,
    fastball_velo_14 = excluded.fastball_velo_14,
    fastball_velo_delta = excluded.fastball_velo_delta,
    outs_recorded_avg_last_5 = excluded.outs_recorded_avg_last_5,
    pitches_avg_last_5 = excluded.pitches_avg_last_5,
    starter_role_confidence = excluded.starter_role_confidence,
    k_pct_vs_lhb = excluded.k_pct_vs_lhb, k_pct_vs_rhb = excluded.k_pct_vs_rhb,
    tto_k_decay_pct = excluded.tto_k_decay_pct,
    tto_hr_increase_pct = excluded.tto_hr_increase_pct,
    tto_endurance_score = excluded.tto_endurance_score`

// UpsertPitcherFeatures writes pitcher feature rows for one date.
func (r *FeaturesRepo) UpsertPitcherFeatures(ctx context.Context, rows []PitcherFeatures) (int64, error) {
	return namedBatch(ctx, r.s, upsertPitcherFeaturesSQL, rows)
}

const upsertTeamFeaturesSQL = `
INSERT INTO team_daily_features (
    game_date, team_id,
    offense_k_pct_14, offense_bb_pct_14, offense_ba_14,
    offense_obp_14, offense_obp_30, offense_slg_14, offense_slg_30,
    offense_iso_14, offense_iso_30, offense_hit_rate_14, offense_tb_per_pa_14,
    runs_per_game_14, runs_per_game_30, hr_rate_14, hr_rate_30,
    bullpen_era_proxy_14, bullpen_whip_proxy_14, bullpen_k_pct_14,
    bullpen_hr9_14, bullpen_high_lev_era_14
) VALUES (
    :game_date, :team_id,
    :offense_k_pct_14, :offense_bb_pct_14, :offense_ba_14,
    :offense_obp_14, :offense_obp_30, :offense_slg_14, :offense_slg_30,
    :offense_iso_14, :offense_iso_30, :offense_hit_rate_14, :offense_tb_per_pa_14,
    :runs_per_game_14, :runs_per_game_30, :hr_rate_14, :hr_rate_30,
    :bullpen_era_proxy_14, :bullpen_whip_proxy_14, :bullpen_k_pct_14,
    :bullpen_hr9_14, :bullpen_high_lev_era_14
)
ON CONFLICT (game_date, team_id) DO UPDATE SET
    offense_k_pct_14 = excluded.offense_k_pct_14,
    offense_bb_pct_14 = excluded.offense_bb_pct_14,
    offense_ba_14 = excluded.offense_ba_14,
    offense_obp_14 = excluded.offense_obp_14,
    offense_obp_30 = excluded.offense_obp_30,
    offense_slg_14 = excluded.offense_slg_14,
    offense_slg_30 = excluded.offense_slg_30,
    offense_iso_14 = excluded.offense_iso_14,
    offense_iso_30 = excluded.offense_iso_30,
    offense_hit_rate_14 = excluded.offense_hit_rate_14,
    offense_tb_per_pa_14 = excluded.offense_tb_per_pa_14,
    runs_per_game_14 = excluded.runs_per_game_14,
    runs_per_game_30 = excluded.runs_per_game_30,
    hr_rate_14 = excluded.hr_rate_14, hr_rate_30 = excluded.hr_rate_30,
    bullpen_era_proxy_14 = excluded.bullpen_era_proxy_14,
    bullpen_whip_proxy_14 = excluded.bullpen_whip_proxy_14,
    bullpen_k_pct_14 = excluded.bullpen_k_pct_14,
    bullpen_hr9_14 = excluded.bullpen_hr9_14,
    bullpen_high_lev_era_14 = excluded.bullpen_high_lev_era_14`

// UpsertTeamFeatures writes team feature rows for one date.
func (r *FeaturesRepo) UpsertTeamFeatures(ctx context.Context, rows []TeamFeatures) (int64, error) {
	return namedBatch(ctx, r.s, upsertTeamFeaturesSQL, rows)
}

const upsertGameContextSQL = `
INSERT INTO game_context_features (
    game_date, game_id, stadium_id,
    park_hr_factor, park_runs_factor, park_hits_factor,
    weather_temp_f, weather_wind_speed_mph, weather_wind_dir,
    weather_temp_multiplier, weather_hr_multiplier, weather_run_multiplier,
    umpire_name, umpire_k_boost, umpire_run_env,
    lineups_confirmed_home, lineups_confirmed_away,
    is_day_game, probable_pitchers_set, is_final_context
) VALUES (
    :game_date, :game_id, :stadium_id,
    :park_hr_factor, :park_runs_factor, :park_hits_factor,
    :weather_temp_f, :weather_wind_speed_mph, :weather_wind_dir,
    :weather_temp_multiplier, :weather_hr_multiplier, :weather_run_multiplier,
    :umpire_name, :umpire_k_boost, :umpire_run_env,
    :lineups_confirmed_home, :lineups_confirmed_away,
    :is_day_game, :probable_pitchers_set, :is_final_context
)
ON CONFLICT (game_date, game_id) DO UPDATE SET
    stadium_id = excluded.stadium_id,
    park_hr_factor = excluded.park_hr_factor,
    park_runs_factor = excluded.park_runs_factor,
    park_hits_factor = excluded.park_hits_factor,
    weather_temp_f = excluded.weather_temp_f,
    weather_wind_speed_mph = excluded.weather_wind_speed_mph,
    weather_wind_dir = excluded.weather_wind_dir,
    weather_temp_multiplier = excluded.weather_temp_multiplier,
    weather_hr_multiplier = excluded.weather_hr_multiplier,
    weather_run_multiplier = excluded.weather_run_multiplier,
    umpire_name = excluded.umpire_name,
    umpire_k_boost = excluded.umpire_k_boost,
    umpire_run_env = excluded.umpire_run_env,
    lineups_confirmed_home = excluded.lineups_confirmed_home,
    lineups_confirmed_away = excluded.lineups_confirmed_away,
    is_day_game = excluded.is_day_game,
    probable_pitchers_set = excluded.probable_pitchers_set,
    is_final_context = excluded.is_final_context`

// UpsertGameContext writes game context rows for one date.
func (r *FeaturesRepo) UpsertGameContext(ctx context.Context, rows []GameContextFeatures) (int64, error) {
	return namedBatch(ctx, r.s, upsertGameContextSQL, rows)
}

// BatterForDate loads all batter feature rows for one date.
func (r *FeaturesRepo) BatterForDate(ctx context.Context, gameDate string) ([]BatterFeatures, error) {
	var out []BatterFeatures
	err := r.s.selectCtx(ctx, &out,
		`SELECT * FROM batter_daily_features WHERE game_date = ?`, gameDate)
	return out, err
}

// BatterFor loads one batter's feature row, nil when absent.
func (r *FeaturesRepo) BatterFor(ctx context.Context, gameDate string, playerID int64) (*BatterFeatures, error) {
	var row BatterFeatures
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM batter_daily_features WHERE game_date = ? AND player_id = ?`, gameDate, playerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// PitcherFor loads one pitcher's feature row, nil when absent.
func (r *FeaturesRepo) PitcherFor(ctx context.Context, gameDate string, pitcherID int64) (*PitcherFeatures, error) {
	var row PitcherFeatures
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM pitcher_daily_features WHERE game_date = ? AND pitcher_id = ?`, gameDate, pitcherID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// TeamFor loads one team's feature row, nil when absent.
func (r *FeaturesRepo) TeamFor(ctx context.Context, gameDate, teamID string) (*TeamFeatures, error) {
	var row TeamFeatures
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM team_daily_features WHERE game_date = ? AND team_id = ?`, gameDate, teamID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ContextFor loads the game context row, nil when absent.
func (r *FeaturesRepo) ContextFor(ctx context.Context, gameDate string, gameID int64) (*GameContextFeatures, error) {
	var row GameContextFeatures
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM game_context_features WHERE game_date = ? AND game_id = ?`, gameDate, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// CountsForDate reports feature-table row counts for one date; market
// specs use it to check required tables are non-empty.
func (r *FeaturesRepo) CountsForDate(ctx context.Context, gameDate string) (map[string]int64, error) {
	counts := map[string]int64{}
	tables := map[string]string{
		"batter_daily_features":  `SELECT COUNT(*) FROM batter_daily_features WHERE game_date = ?`,
		"pitcher_daily_features": `SELECT COUNT(*) FROM pitcher_daily_features WHERE game_date = ?`,
		"team_daily_features":    `SELECT COUNT(*) FROM team_daily_features WHERE game_date = ?`,
		"game_context_features":  `SELECT COUNT(*) FROM game_context_features WHERE game_date = ?`,
	}
	for name, q := range tables {
		var n int64
		if err := r.s.getCtx(ctx, &n, q, gameDate); err != nil {
			return nil, err
		}
		counts[name] = n
	}
	return counts, nil
}
