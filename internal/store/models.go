package store

// Game is one scheduled MLB game. game_id is the MLB-assigned gamePk and
// stable across re-fetches.
type Game struct {
	GameID          int64   `db:"game_id"`
	GameDate        string  `db:"game_date"`
	GameTime        string  `db:"game_time"`
	HomeTeam        string  `db:"home_team"`
	AwayTeam        string  `db:"away_team"`
	HomePitcherID   *int64  `db:"home_pitcher_id"`
	AwayPitcherID   *int64  `db:"away_pitcher_id"`
	HomePitcherName *string `db:"home_pitcher_name"`
	AwayPitcherName *string `db:"away_pitcher_name"`
	HomePitcherHand *string `db:"home_pitcher_hand"`
	AwayPitcherHand *string `db:"away_pitcher_hand"`
	StadiumID       *int64  `db:"stadium_id"`
	UmpireName      *string `db:"umpire_name"`
	Status          string  `db:"status"`
	HomeScore       *int64  `db:"home_score"`
	AwayScore       *int64  `db:"away_score"`
}

// PitchEvent is one pitch-level record from the event provider. Only the
// columns the window aggregators consume are retained.
type PitchEvent struct {
	GameDate         string   `db:"game_date"`
	GameID           int64    `db:"game_id"`
	BatterID         int64    `db:"batter_id"`
	PitcherID        int64    `db:"pitcher_id"`
	BatterName       *string  `db:"batter_name"`
	PitcherName      *string  `db:"pitcher_name"`
	Stand            *string  `db:"stand"`
	PThrows          *string  `db:"p_throws"`
	Events           *string  `db:"events"`
	Description      *string  `db:"description"`
	PitchType        *string  `db:"pitch_type"`
	ReleaseSpeed     *float64 `db:"release_speed"`
	LaunchSpeed      *float64 `db:"launch_speed"`
	LaunchAngle      *float64 `db:"launch_angle"`
	LaunchSpeedAngle *int64   `db:"launch_speed_angle"`
	HcX              *float64 `db:"hc_x"`
	Zone             *float64 `db:"zone"`
	BatTeam          *string  `db:"bat_team"`
	FldTeam          *string  `db:"fld_team"`
	Inning           *int64   `db:"inning"`
	AtBatNumber      *int64   `db:"at_bat_number"`
	PitchNumber      *int64   `db:"pitch_number"`
}

// BatterStats is one rolling-window aggregate row, unique per
// (player_id, stat_date, window_days). A row at stat_date D covers
// events in [D-window, D), right endpoint open.
type BatterStats struct {
	PlayerID     int64    `db:"player_id"`
	StatDate     string   `db:"stat_date"`
	WindowDays   int      `db:"window_days"`
	PlayerName   *string  `db:"player_name"`
	Team         *string  `db:"team"`
	BatHand      *string  `db:"bat_hand"`
	PA           int      `db:"pa"`
	AB           int      `db:"ab"`
	HRs          int      `db:"hrs"`
	KPct         *float64 `db:"k_pct"`
	BBPct        *float64 `db:"bb_pct"`
	BarrelPct    *float64 `db:"barrel_pct"`
	HardHitPct   *float64 `db:"hard_hit_pct"`
	AvgExitVelo  *float64 `db:"avg_exit_velo"`
	SweetSpotPct *float64 `db:"sweet_spot_pct"`
	FBPct        *float64 `db:"fb_pct"`
	LDPct        *float64 `db:"ld_pct"`
	GBPct        *float64 `db:"gb_pct"`
	PullPct      *float64 `db:"pull_pct"`
	ISO          *float64 `db:"iso"`
	SLG          *float64 `db:"slg"`
	TBPerPA      *float64 `db:"tb_per_pa"`
	BA           *float64 `db:"ba"`
	HitRate      *float64 `db:"hit_rate"`
	HRRate       *float64 `db:"hr_rate"`
	SinglesRate  *float64 `db:"singles_rate"`
	DoublesRate  *float64 `db:"doubles_rate"`
	TriplesRate  *float64 `db:"triples_rate"`
	WalkRate     *float64 `db:"walk_rate"`
	ISOVsLHP     *float64 `db:"iso_vs_lhp"`
	ISOVsRHP     *float64 `db:"iso_vs_rhp"`
}

// PitcherStats mirrors BatterStats for pitchers, keyed the same way.
type PitcherStats struct {
	PlayerID           int64    `db:"player_id"`
	StatDate           string   `db:"stat_date"`
	WindowDays         int      `db:"window_days"`
	PlayerName         *string  `db:"player_name"`
	Team               *string  `db:"team"`
	PitchHand          *string  `db:"pitch_hand"`
	BF                 int      `db:"bf"`
	KPct               *float64 `db:"k_pct"`
	BBPct              *float64 `db:"bb_pct"`
	HRPer9             *float64 `db:"hr_per_9"`
	HRPerFB            *float64 `db:"hr_per_fb"`
	HardHitPctAllowed  *float64 `db:"hard_hit_pct_allowed"`
	BarrelPctAllowed   *float64 `db:"barrel_pct_allowed"`
	AvgExitVeloAllowed *float64 `db:"avg_exit_velo_allowed"`
	FBPctAllowed       *float64 `db:"fb_pct_allowed"`
	WhiffRate          *float64 `db:"whiff_rate"`
	ChaseRate          *float64 `db:"chase_rate"`
	FastballVelo       *float64 `db:"fastball_velo"`
	FastballVeloTrend  *float64 `db:"fastball_velo_trend"`
}

// BatterFeatures is the per-date feature row consumed by batter models.
type BatterFeatures struct {
	GameDate   string  `db:"game_date"`
	PlayerID   int64   `db:"player_id"`
	PlayerName *string `db:"player_name"`
	TeamID     *string `db:"team_id"`
	Bats       *string `db:"bats"`

	PA7  *int `db:"pa_7"`
	PA14 *int `db:"pa_14"`
	PA30 *int `db:"pa_30"`

	KPct14         *float64 `db:"k_pct_14"`
	KPct30         *float64 `db:"k_pct_30"`
	BBPct14        *float64 `db:"bb_pct_14"`
	BarrelPct14    *float64 `db:"barrel_pct_14"`
	BarrelPct30    *float64 `db:"barrel_pct_30"`
	HardHitPct14   *float64 `db:"hard_hit_pct_14"`
	AvgExitVelo14  *float64 `db:"avg_exit_velo_14"`
	SweetSpotPct14 *float64 `db:"sweet_spot_pct_14"`
	FBPct14        *float64 `db:"fb_pct_14"`
	PullPct14      *float64 `db:"pull_pct_14"`

	ISO7      *float64 `db:"iso_7"`
	ISO14     *float64 `db:"iso_14"`
	ISO30     *float64 `db:"iso_30"`
	SLG14     *float64 `db:"slg_14"`
	TBPerPA14 *float64 `db:"tb_per_pa_14"`
	TBPerPA30 *float64 `db:"tb_per_pa_30"`

	HitRate7      *float64 `db:"hit_rate_7"`
	HitRate14     *float64 `db:"hit_rate_14"`
	HitRate30     *float64 `db:"hit_rate_30"`
	HRRate14      *float64 `db:"hr_rate_14"`
	HRRate30      *float64 `db:"hr_rate_30"`
	DoublesRate14 *float64 `db:"doubles_rate_14"`
	TriplesRate14 *float64 `db:"triples_rate_14"`

	HitRateVsLHP *float64 `db:"hit_rate_vs_lhp"`
	HitRateVsRHP *float64 `db:"hit_rate_vs_rhp"`
	ISOVsLHP     *float64 `db:"iso_vs_lhp"`
	ISOVsRHP     *float64 `db:"iso_vs_rhp"`
	KPctVsLHP    *float64 `db:"k_pct_vs_lhp"`
	KPctVsRHP    *float64 `db:"k_pct_vs_rhp"`

	HotColdDeltaISO     *float64 `db:"hot_cold_delta_iso"`
	HotColdDeltaHitRate *float64 `db:"hot_cold_delta_hit_rate"`
	RecentLineupSlot    *int     `db:"recent_lineup_slot"`
}

// PitcherFeatures is the per-date feature row consumed by pitcher and
// game models.
type PitcherFeatures struct {
	GameDate   string  `db:"game_date"`
	PitcherID  int64   `db:"pitcher_id"`
	PlayerName *string `db:"player_name"`
	TeamID     *string `db:"team_id"`
	Throws     *string `db:"throws"`

	BF14 *int `db:"bf_14"`
	BF30 *int `db:"bf_30"`

	KPct14  *float64 `db:"k_pct_14"`
	KPct30  *float64 `db:"k_pct_30"`
	BBPct14 *float64 `db:"bb_pct_14"`
	BBPct30 *float64 `db:"bb_pct_30"`

	HRPer914  *float64 `db:"hr_per_9_14"`
	HRPer930  *float64 `db:"hr_per_9_30"`
	HRPerFB30 *float64 `db:"hr_per_fb_30"`

	HardHitPctAllowed14  *float64 `db:"hard_hit_pct_allowed_14"`
	HardHitPctAllowed30  *float64 `db:"hard_hit_pct_allowed_30"`
	BarrelPctAllowed14   *float64 `db:"barrel_pct_allowed_14"`
	AvgExitVeloAllowed14 *float64 `db:"avg_exit_velo_allowed_14"`
	FBPctAllowed14       *float64 `db:"fb_pct_allowed_14"`

	WhiffRate14 *float64 `db:"whiff_rate_14"`
	ChaseRate14 *float64 `db:"chase_rate_14"`

	FastballVelo14    *float64 `db:"fastball_velo_14"`
	FastballVeloDelta *float64 `db:"fastball_velo_delta"`

	OutsRecordedAvgLast5  *float64 `db:"outs_recorded_avg_last_5"`
	PitchesAvgLast5       *float64 `db:"pitches_avg_last_5"`
	StarterRoleConfidence *float64 `db:"starter_role_confidence"`

	KPctVsLHB *float64 `db:"k_pct_vs_lhb"`
	KPctVsRHB *float64 `db:"k_pct_vs_rhb"`

	TTOKDecayPct      *float64 `db:"tto_k_decay_pct"`
	TTOHRIncreasePct  *float64 `db:"tto_hr_increase_pct"`
	TTOEnduranceScore *float64 `db:"tto_endurance_score"`
}

// TeamFeatures is the per-date team aggregate row.
type TeamFeatures struct {
	GameDate string `db:"game_date"`
	TeamID   string `db:"team_id"`

	OffenseKPct14    *float64 `db:"offense_k_pct_14"`
	OffenseBBPct14   *float64 `db:"offense_bb_pct_14"`
	OffenseBA14      *float64 `db:"offense_ba_14"`
	OffenseOBP14     *float64 `db:"offense_obp_14"`
	OffenseOBP30     *float64 `db:"offense_obp_30"`
	OffenseSLG14     *float64 `db:"offense_slg_14"`
	OffenseSLG30     *float64 `db:"offense_slg_30"`
	OffenseISO14     *float64 `db:"offense_iso_14"`
	OffenseISO30     *float64 `db:"offense_iso_30"`
	OffenseHitRate14 *float64 `db:"offense_hit_rate_14"`
	OffenseTBPerPA14 *float64 `db:"offense_tb_per_pa_14"`

	RunsPerGame14 *float64 `db:"runs_per_game_14"`
	RunsPerGame30 *float64 `db:"runs_per_game_30"`
	HRRate14      *float64 `db:"hr_rate_14"`
	HRRate30      *float64 `db:"hr_rate_30"`

	BullpenERAProxy14   *float64 `db:"bullpen_era_proxy_14"`
	BullpenWHIPProxy14  *float64 `db:"bullpen_whip_proxy_14"`
	BullpenKPct14       *float64 `db:"bullpen_k_pct_14"`
	BullpenHR914        *float64 `db:"bullpen_hr9_14"`
	BullpenHighLevERA14 *float64 `db:"bullpen_high_lev_era_14"`
}

// GameContextFeatures folds park, weather, umpire and lineup state into
// one row per game per date.
type GameContextFeatures struct {
	GameDate  string `db:"game_date"`
	GameID    int64  `db:"game_id"`
	StadiumID *int64 `db:"stadium_id"`

	ParkHRFactor   *float64 `db:"park_hr_factor"`
	ParkRunsFactor *float64 `db:"park_runs_factor"`
	ParkHitsFactor *float64 `db:"park_hits_factor"`

	WeatherTempF          *float64 `db:"weather_temp_f"`
	WeatherWindSpeedMPH   *float64 `db:"weather_wind_speed_mph"`
	WeatherWindDir        *string  `db:"weather_wind_dir"`
	WeatherTempMultiplier *float64 `db:"weather_temp_multiplier"`
	WeatherHRMultiplier   *float64 `db:"weather_hr_multiplier"`
	WeatherRunMultiplier  *float64 `db:"weather_run_multiplier"`

	UmpireName   *string  `db:"umpire_name"`
	UmpireKBoost *float64 `db:"umpire_k_boost"`
	UmpireRunEnv *float64 `db:"umpire_run_env"`

	LineupsConfirmedHome int  `db:"lineups_confirmed_home"`
	LineupsConfirmedAway int  `db:"lineups_confirmed_away"`
	IsDayGame            *int `db:"is_day_game"`
	ProbablePitchersSet  int  `db:"probable_pitchers_set"`
	IsFinalContext       int  `db:"is_final_context"`
}

// MarketOdds is one normalized sportsbook price row.
type MarketOdds struct {
	ID              int64    `db:"id"`
	GameDate        string   `db:"game_date"`
	GameID          *int64   `db:"game_id"`
	EventID         *string  `db:"event_id"`
	Market          string   `db:"market"`
	EntityType      string   `db:"entity_type"`
	PlayerID        *int64   `db:"player_id"`
	PlayerName      *string  `db:"player_name"`
	TeamAbbr        *string  `db:"team_abbr"`
	BetType         string   `db:"bet_type"`
	Side            string   `db:"side"`
	Line            *float64 `db:"line"`
	PriceAmerican   int      `db:"price_american"`
	DecimalOdds     float64  `db:"decimal_odds"`
	ImpliedProb     float64  `db:"implied_probability"`
	SelectionKey    string   `db:"selection_key"`
	Sportsbook      string   `db:"sportsbook"`
	IsBestAvailable int      `db:"is_best_available"`
	FetchedAt       string   `db:"fetched_at"`
}

// ScoreRun is one audit row per scoring or job pass.
type ScoreRun struct {
	ID           int64   `db:"id"`
	RunUID       string  `db:"run_uid"`
	RunType      string  `db:"run_type"`
	GameDate     *string `db:"game_date"`
	Market       *string `db:"market"`
	TriggeredBy  string  `db:"triggered_by"`
	Status       string  `db:"status"`
	RowsScored   int64   `db:"rows_scored"`
	ErrorMessage *string `db:"error_message"`
	MetadataJSON *string `db:"metadata_json"`
	StartedAt    string  `db:"started_at"`
	FinishedAt   *string `db:"finished_at"`
}

// ModelScore is one scored selection row. Natural key for supersede:
// (market, game_id, entity, bet_type, line).
type ModelScore struct {
	ID               int64    `db:"id"`
	GameDate         string   `db:"game_date"`
	GameID           int64    `db:"game_id"`
	EventID          *string  `db:"event_id"`
	Market           string   `db:"market"`
	EntityType       string   `db:"entity_type"`
	PlayerID         *int64   `db:"player_id"`
	PlayerName       *string  `db:"player_name"`
	TeamID           *string  `db:"team_id"`
	OpponentTeamID   *string  `db:"opponent_team_id"`
	TeamAbbr         *string  `db:"team_abbr"`
	OpponentTeamAbbr *string  `db:"opponent_team_abbr"`
	SelectionKey     *string  `db:"selection_key"`
	Side             string   `db:"side"`
	BetType          string   `db:"bet_type"`
	Line             *float64 `db:"line"`
	ModelScore       float64  `db:"model_score"`
	ModelProb        *float64 `db:"model_prob"`
	ModelProjection  *float64 `db:"model_projection"`
	BookImpliedProb  *float64 `db:"book_implied_prob"`
	Edge             *float64 `db:"edge"`
	Signal           string   `db:"signal"`
	ConfidenceBand   string   `db:"confidence_band"`
	VisibilityTier   string   `db:"visibility_tier"`
	Sportsbook       *string  `db:"sportsbook"`
	FactorsJSON      string   `db:"factors_json"`
	ReasonsJSON      string   `db:"reasons_json"`
	RiskFlagsJSON    string   `db:"risk_flags_json"`
	LineupConfirmed  int      `db:"lineup_confirmed"`
	WeatherFinal     int      `db:"weather_final"`
	IsActive         int      `db:"is_active"`
	ScoreRunID       int64    `db:"score_run_id"`
	CreatedAt        string   `db:"created_at"`
}

// MarketOutcome is the realized result for one selection.
type MarketOutcome struct {
	ID           int64   `db:"id"`
	GameDate     string  `db:"game_date"`
	GameID       int64   `db:"game_id"`
	Market       string  `db:"market"`
	SelectionKey string  `db:"selection_key"`
	OutcomeValue float64 `db:"outcome_value"`
	OutcomeText  *string `db:"outcome_text"`
	SettledAt    string  `db:"settled_at"`
}

// Bet is a logged wager tracked through settlement and CLV capture.
type Bet struct {
	ID               int64    `db:"id"`
	GameDate         string   `db:"game_date"`
	GameID           int64    `db:"game_id"`
	Market           string   `db:"market"`
	SelectionKey     string   `db:"selection_key"`
	Side             string   `db:"side"`
	Line             *float64 `db:"line"`
	OddsAmerican     int      `db:"odds_american"`
	ImpliedProbOpen  float64  `db:"implied_prob_open"`
	ImpliedProbClose *float64 `db:"implied_prob_close"`
	ClvOpenToClose   *float64 `db:"clv_open_to_close"`
	LineDelta        *float64 `db:"line_delta"`
	StakeUnits       float64  `db:"stake_units"`
	Status           string   `db:"status"`
	ProfitUnits      *float64 `db:"profit_units"`
	PlacedAt         string   `db:"placed_at"`
	SettledAt        *string  `db:"settled_at"`
}

// ClosingLine is the chosen closing snapshot for one selection per date.
type ClosingLine struct {
	ID            int64    `db:"id"`
	GameDate      string   `db:"game_date"`
	SelectionKey  string   `db:"selection_key"`
	Sportsbook    string   `db:"sportsbook"`
	PriceAmerican int      `db:"price_american"`
	ImpliedProb   float64  `db:"implied_probability"`
	Line          *float64 `db:"line"`
	CapturedAt    string   `db:"captured_at"`
}

// Lineup is one player row of one lineup snapshot.
type Lineup struct {
	ID            int64   `db:"id"`
	GameDate      string  `db:"game_date"`
	GameID        int64   `db:"game_id"`
	TeamID        string  `db:"team_id"`
	PlayerID      int64   `db:"player_id"`
	BattingOrder  *int    `db:"batting_order"`
	Position      *string `db:"position"`
	IsStarter     int     `db:"is_starter"`
	Confirmed     int     `db:"confirmed"`
	Source        string  `db:"source"`
	FetchedAt     string  `db:"fetched_at"`
	ActiveVersion int     `db:"active_version"`
}

// Stadium is static park reference data.
type Stadium struct {
	StadiumID      int64   `db:"stadium_id"`
	TeamAbbr       string  `db:"team_abbr"`
	Name           string  `db:"name"`
	Latitude       float64 `db:"latitude"`
	Longitude      float64 `db:"longitude"`
	AltitudeFt     float64 `db:"altitude_ft"`
	ParkHRFactor   float64 `db:"park_hr_factor"`
	ParkRunsFactor float64 `db:"park_runs_factor"`
	ParkHitsFactor float64 `db:"park_hits_factor"`
}

// Umpire is per-umpire run environment reference data.
type Umpire struct {
	Name   string   `db:"name"`
	KBoost *float64 `db:"k_boost"`
	RunEnv *float64 `db:"run_env"`
	Season int      `db:"season"`
}

// Weather is the point-in-time forecast at a stadium for a game.
type Weather struct {
	GameDate     string   `db:"game_date"`
	GameID       int64    `db:"game_id"`
	StadiumID    *int64   `db:"stadium_id"`
	TempF        *float64 `db:"temp_f"`
	WindSpeedMPH *float64 `db:"wind_speed_mph"`
	WindDir      *string  `db:"wind_dir"`
	Conditions   *string  `db:"conditions"`
	FetchedAt    string   `db:"fetched_at"`
}
