package store

import (
	"context"
	"database/sql"
	"errors"
)

// RefRepo persists static reference data: stadiums, umpires, weather.
type RefRepo struct {
	s *Store
}

const upsertStadiumSQL = `
INSERT INTO stadiums (
    stadium_id, team_abbr, name, latitude, longitude, altitude_ft,
    park_hr_factor, park_runs_factor, park_hits_factor
) VALUES (
    :stadium_id, :team_abbr, :name, :latitude, :longitude, :altitude_ft,
    :park_hr_factor, :park_runs_factor, :park_hits_factor
)
ON CONFLICT (stadium_id) DO UPDATE SET
    team_abbr = excluded.team_abbr,
    name = excluded.name,
    latitude = excluded.latitude,
    longitude = excluded.longitude,
    altitude_ft = excluded.altitude_ft,
    park_hr_factor = excluded.park_hr_factor,
    park_runs_factor = excluded.park_runs_factor,
    park_hits_factor = excluded.park_hits_factor`

// UpsertStadiums writes park reference rows keyed by stadium_id.
func (r *RefRepo) UpsertStadiums(ctx context.Context, rows []Stadium) (int64, error) {
	return namedBatch(ctx, r.s, upsertStadiumSQL, rows)
}

// SeedStadiums loads the built-in 30-park table. The init command calls
// it so park factors are available before any fetch runs.
func (r *RefRepo) SeedStadiums(ctx context.Context) (int64, error) {
	return r.UpsertStadiums(ctx, stadiumSeed)
}

// StadiumByID loads one park row, nil when unknown.
func (r *RefRepo) StadiumByID(ctx context.Context, stadiumID int64) (*Stadium, error) {
	var row Stadium
	err := r.s.getCtx(ctx, &row, `SELECT * FROM stadiums WHERE stadium_id = ?`, stadiumID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// StadiumForTeam looks up the home park by team abbreviation.
func (r *RefRepo) StadiumForTeam(ctx context.Context, teamAbbr string) (*Stadium, error) {
	var row Stadium
	err := r.s.getCtx(ctx, &row, `SELECT * FROM stadiums WHERE team_abbr = ?`, teamAbbr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// ParkFactors returns (hr, runs, hits) multipliers for a park, all 1.0
// when the park is unknown.
func (r *RefRepo) ParkFactors(ctx context.Context, stadiumID *int64) (float64, float64, float64, error) {
	if stadiumID == nil {
		return 1.0, 1.0, 1.0, nil
	}
	st, err := r.StadiumByID(ctx, *stadiumID)
	if err != nil {
		return 1.0, 1.0, 1.0, err
	}
	if st == nil {
		return 1.0, 1.0, 1.0, nil
	}
	return st.ParkHRFactor, st.ParkRunsFactor, st.ParkHitsFactor, nil
}

const upsertUmpireSQL = `
INSERT INTO umpires (name, season, k_boost, run_env)
VALUES (:name, :season, :k_boost, :run_env)
ON CONFLICT (name, season) DO UPDATE SET
    k_boost = excluded.k_boost,
    run_env = excluded.run_env`

// UpsertUmpires writes per-season umpire tendency rows.
func (r *RefRepo) UpsertUmpires(ctx context.Context, rows []Umpire) (int64, error) {
	return namedBatch(ctx, r.s, upsertUmpireSQL, rows)
}

// UmpireFor loads one umpire's season row, nil when untracked.
func (r *RefRepo) UmpireFor(ctx context.Context, name string, season int) (*Umpire, error) {
	var row Umpire
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM umpires WHERE name = ? AND season = ?`, name, season)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

const upsertWeatherSQL = `
INSERT INTO weather (
    game_date, game_id, stadium_id, temp_f, wind_speed_mph,
    wind_dir, conditions, fetched_at
) VALUES (
    :game_date, :game_id, :stadium_id, :temp_f, :wind_speed_mph,
    :wind_dir, :conditions, :fetched_at
)
ON CONFLICT (game_date, game_id) DO UPDATE SET
    stadium_id = excluded.stadium_id,
    temp_f = excluded.temp_f,
    wind_speed_mph = excluded.wind_speed_mph,
    wind_dir = excluded.wind_dir,
    conditions = excluded.conditions,
    fetched_at = excluded.fetched_at`

// UpsertWeather writes the latest forecast per game.
func (r *RefRepo) UpsertWeather(ctx context.Context, rows []Weather) (int64, error) {
	return namedBatch(ctx, r.s, upsertWeatherSQL, rows)
}

// WeatherFor loads the forecast for one game, nil when none fetched.
func (r *RefRepo) WeatherFor(ctx context.Context, gameDate string, gameID int64) (*Weather, error) {
	var row Weather
	err := r.s.getCtx(ctx, &row,
		`SELECT * FROM weather WHERE game_date = ? AND game_id = ?`, gameDate, gameID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// stadiumSeed is the 30-park reference table. Stadium ids follow the
// MLB venue registry; factors are season-neutral park indexes.
var stadiumSeed = []Stadium{
	{StadiumID: 15, TeamAbbr: "ARI", Name: "Chase Field", Latitude: 33.4455, Longitude: -112.0667, AltitudeFt: 1082, ParkHRFactor: 1.02, ParkRunsFactor: 1.01, ParkHitsFactor: 1.00},
	{StadiumID: 4705, TeamAbbr: "ATL", Name: "Truist Park", Latitude: 33.8907, Longitude: -84.4677, AltitudeFt: 1057, ParkHRFactor: 1.06, ParkRunsFactor: 1.02, ParkHitsFactor: 1.00},
	{StadiumID: 2, TeamAbbr: "BAL", Name: "Oriole Park at Camden Yards", Latitude: 39.2839, Longitude: -76.6217, AltitudeFt: 36, ParkHRFactor: 0.94, ParkRunsFactor: 0.97, ParkHitsFactor: 0.98},
	{StadiumID: 3, TeamAbbr: "BOS", Name: "Fenway Park", Latitude: 42.3467, Longitude: -71.0972, AltitudeFt: 20, ParkHRFactor: 0.93, ParkRunsFactor: 1.05, ParkHitsFactor: 1.06},
	{StadiumID: 17, TeamAbbr: "CHC", Name: "Wrigley Field", Latitude: 41.9484, Longitude: -87.6553, AltitudeFt: 594, ParkHRFactor: 1.03, ParkRunsFactor: 1.00, ParkHitsFactor: 0.99},
	{StadiumID: 4, TeamAbbr: "CWS", Name: "Rate Field", Latitude: 41.8300, Longitude: -87.6338, AltitudeFt: 594, ParkHRFactor: 1.10, ParkRunsFactor: 1.01, ParkHitsFactor: 0.99},
	{StadiumID: 2602, TeamAbbr: "CIN", Name: "Great American Ball Park", Latitude: 39.0975, Longitude: -84.5066, AltitudeFt: 489, ParkHRFactor: 1.16, ParkRunsFactor: 1.04, ParkHitsFactor: 1.00},
	{StadiumID: 5, TeamAbbr: "CLE", Name: "Progressive Field", Latitude: 41.4962, Longitude: -81.6852, AltitudeFt: 653, ParkHRFactor: 0.97, ParkRunsFactor: 0.99, ParkHitsFactor: 1.00},
	{StadiumID: 19, TeamAbbr: "COL", Name: "Coors Field", Latitude: 39.7559, Longitude: -104.9942, AltitudeFt: 5190, ParkHRFactor: 1.12, ParkRunsFactor: 1.28, ParkHitsFactor: 1.13},
	{StadiumID: 2394, TeamAbbr: "DET", Name: "Comerica Park", Latitude: 42.3390, Longitude: -83.0485, AltitudeFt: 585, ParkHRFactor: 0.92, ParkRunsFactor: 0.96, ParkHitsFactor: 0.99},
	{StadiumID: 2392, TeamAbbr: "HOU", Name: "Daikin Park", Latitude: 29.7573, Longitude: -95.3555, AltitudeFt: 45, ParkHRFactor: 1.05, ParkRunsFactor: 1.00, ParkHitsFactor: 0.99},
	{StadiumID: 7, TeamAbbr: "KC", Name: "Kauffman Stadium", Latitude: 39.0517, Longitude: -94.4803, AltitudeFt: 886, ParkHRFactor: 0.87, ParkRunsFactor: 1.01, ParkHitsFactor: 1.03},
	{StadiumID: 1, TeamAbbr: "LAA", Name: "Angel Stadium", Latitude: 33.8003, Longitude: -117.8827, AltitudeFt: 153, ParkHRFactor: 1.01, ParkRunsFactor: 0.98, ParkHitsFactor: 0.99},
	{StadiumID: 22, TeamAbbr: "LAD", Name: "Dodger Stadium", Latitude: 34.0739, Longitude: -118.2400, AltitudeFt: 512, ParkHRFactor: 1.09, ParkRunsFactor: 0.98, ParkHitsFactor: 0.96},
	{StadiumID: 4169, TeamAbbr: "MIA", Name: "loanDepot park", Latitude: 25.7781, Longitude: -80.2196, AltitudeFt: 10, ParkHRFactor: 0.90, ParkRunsFactor: 0.97, ParkHitsFactor: 1.00},
	{StadiumID: 32, TeamAbbr: "MIL", Name: "American Family Field", Latitude: 43.0280, Longitude: -87.9712, AltitudeFt: 633, ParkHRFactor: 1.08, ParkRunsFactor: 1.00, ParkHitsFactor: 0.98},
	{StadiumID: 3312, TeamAbbr: "MIN", Name: "Target Field", Latitude: 44.9817, Longitude: -93.2776, AltitudeFt: 815, ParkHRFactor: 0.98, ParkRunsFactor: 0.98, ParkHitsFactor: 0.99},
	{StadiumID: 3289, TeamAbbr: "NYM", Name: "Citi Field", Latitude: 40.7571, Longitude: -73.8458, AltitudeFt: 10, ParkHRFactor: 0.99, ParkRunsFactor: 0.95, ParkHitsFactor: 0.96},
	{StadiumID: 3313, TeamAbbr: "NYY", Name: "Yankee Stadium", Latitude: 40.8296, Longitude: -73.9262, AltitudeFt: 54, ParkHRFactor: 1.13, ParkRunsFactor: 1.02, ParkHitsFactor: 0.98},
	{StadiumID: 10, TeamAbbr: "OAK", Name: "Sutter Health Park", Latitude: 38.5802, Longitude: -121.5133, AltitudeFt: 25, ParkHRFactor: 0.98, ParkRunsFactor: 1.00, ParkHitsFactor: 1.01},
	{StadiumID: 2681, TeamAbbr: "PHI", Name: "Citizens Bank Park", Latitude: 39.9061, Longitude: -75.1665, AltitudeFt: 30, ParkHRFactor: 1.12, ParkRunsFactor: 1.02, ParkHitsFactor: 0.99},
	{StadiumID: 31, TeamAbbr: "PIT", Name: "PNC Park", Latitude: 40.4469, Longitude: -80.0057, AltitudeFt: 726, ParkHRFactor: 0.89, ParkRunsFactor: 0.97, ParkHitsFactor: 1.00},
	{StadiumID: 2680, TeamAbbr: "SD", Name: "Petco Park", Latitude: 32.7073, Longitude: -117.1566, AltitudeFt: 16, ParkHRFactor: 0.96, ParkRunsFactor: 0.95, ParkHitsFactor: 0.97},
	{StadiumID: 2395, TeamAbbr: "SF", Name: "Oracle Park", Latitude: 37.7786, Longitude: -122.3893, AltitudeFt: 10, ParkHRFactor: 0.85, ParkRunsFactor: 0.93, ParkHitsFactor: 0.98},
	{StadiumID: 680, TeamAbbr: "SEA", Name: "T-Mobile Park", Latitude: 47.5914, Longitude: -122.3325, AltitudeFt: 17, ParkHRFactor: 0.95, ParkRunsFactor: 0.92, ParkHitsFactor: 0.95},
	{StadiumID: 2889, TeamAbbr: "STL", Name: "Busch Stadium", Latitude: 38.6226, Longitude: -90.1928, AltitudeFt: 466, ParkHRFactor: 0.92, ParkRunsFactor: 0.97, ParkHitsFactor: 1.00},
	{StadiumID: 12, TeamAbbr: "TB", Name: "George M. Steinbrenner Field", Latitude: 27.9803, Longitude: -82.5067, AltitudeFt: 10, ParkHRFactor: 1.02, ParkRunsFactor: 0.99, ParkHitsFactor: 0.99},
	{StadiumID: 5325, TeamAbbr: "TEX", Name: "Globe Life Field", Latitude: 32.7473, Longitude: -97.0832, AltitudeFt: 551, ParkHRFactor: 1.00, ParkRunsFactor: 0.99, ParkHitsFactor: 0.99},
	{StadiumID: 14, TeamAbbr: "TOR", Name: "Rogers Centre", Latitude: 43.6414, Longitude: -79.3894, AltitudeFt: 266, ParkHRFactor: 1.04, ParkRunsFactor: 1.01, ParkHitsFactor: 1.00},
	{StadiumID: 3309, TeamAbbr: "WSH", Name: "Nationals Park", Latitude: 38.8730, Longitude: -77.0074, AltitudeFt: 25, ParkHRFactor: 1.01, ParkRunsFactor: 0.99, ParkHitsFactor: 1.00},
}
