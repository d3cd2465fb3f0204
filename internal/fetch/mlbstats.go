package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/grading"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// MLBStatsClient reads the free MLB Stats API: schedule with probable
// pitchers, boxscore lineups, home plate umpires and linescores.
type MLBStatsClient struct {
	c *client
}

func NewMLBStats(cfg config.Fetch, logger zerolog.Logger) *MLBStatsClient {
	return &MLBStatsClient{
		c: newClient("mlbstats", cfg.MLBStatsBase, cfg.Timeout, cfg.MaxRetries, nil, logger),
	}
}

type scheduleResponse struct {
	Dates []struct {
		Games []scheduleGame `json:"games"`
	} `json:"dates"`
}

type scheduleGame struct {
	GamePk   int64  `json:"gamePk"`
	GameDate string `json:"gameDate"`
	Status   struct {
		DetailedState string `json:"detailedState"`
	} `json:"status"`
	Teams struct {
		Home scheduleSide `json:"home"`
		Away scheduleSide `json:"away"`
	} `json:"teams"`
	Officials []struct {
		OfficialType string `json:"officialType"`
		Official     struct {
			FullName string `json:"fullName"`
		} `json:"official"`
	} `json:"officials"`
}

type scheduleSide struct {
	Team struct {
		Name string `json:"name"`
	} `json:"team"`
	Score           *int64 `json:"score"`
	ProbablePitcher struct {
		ID       int64  `json:"id"`
		FullName string `json:"fullName"`
	} `json:"probablePitcher"`
}

// Schedule returns one game row per scheduled game with probable
// pitchers and handedness resolved. Statuses collapse onto the
// scheduled/live/final vocabulary; anything else passes through.
func (m *MLBStatsClient) Schedule(ctx context.Context, gameDate string) ([]store.Game, error) {
	q := url.Values{
		"date":    {gameDate},
		"sportId": {"1"},
		"hydrate": {"probablePitcher,team"},
	}
	body, err := m.c.get(ctx, "/schedule", q)
	if err != nil {
		return nil, err
	}
	var resp scheduleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}

	var games []store.Game
	var pitcherIDs []int64
	for _, d := range resp.Dates {
		for _, g := range d.Games {
			row := store.Game{
				GameID:   g.GamePk,
				GameDate: gameDate,
				GameTime: g.GameDate,
				HomeTeam: TeamAbbr(g.Teams.Home.Team.Name),
				AwayTeam: TeamAbbr(g.Teams.Away.Team.Name),
				Status:   normalizeStatus(g.Status.DetailedState),
			}
			if hp := g.Teams.Home.ProbablePitcher; hp.ID != 0 {
				id, name := hp.ID, hp.FullName
				row.HomePitcherID, row.HomePitcherName = &id, &name
				pitcherIDs = append(pitcherIDs, id)
			}
			if ap := g.Teams.Away.ProbablePitcher; ap.ID != 0 {
				id, name := ap.ID, ap.FullName
				row.AwayPitcherID, row.AwayPitcherName = &id, &name
				pitcherIDs = append(pitcherIDs, id)
			}
			row.HomeScore = g.Teams.Home.Score
			row.AwayScore = g.Teams.Away.Score
			games = append(games, row)
		}
	}

	hands, err := m.PitcherHands(ctx, pitcherIDs)
	if err != nil {
		// Handedness feeds platoon splits only; the schedule is still good.
		m.c.log.Warn().Err(err).Msg("pitcher hands unresolved")
		hands = nil
	}
	for i := range games {
		if games[i].HomePitcherID != nil {
			if h, ok := hands[*games[i].HomePitcherID]; ok {
				games[i].HomePitcherHand = &h
			}
		}
		if games[i].AwayPitcherID != nil {
			if h, ok := hands[*games[i].AwayPitcherID]; ok {
				games[i].AwayPitcherHand = &h
			}
		}
	}
	return games, nil
}

func normalizeStatus(detailed string) string {
	s := strings.ToLower(detailed)
	switch {
	case strings.Contains(s, "scheduled") || strings.Contains(s, "pre"):
		return "scheduled"
	case strings.Contains(s, "in progress"):
		return "live"
	case strings.Contains(s, "final"):
		return "final"
	}
	return s
}

// PitcherHands batch-resolves throwing hands through /people.
func (m *MLBStatsClient) PitcherHands(ctx context.Context, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return map[int64]string{}, nil
	}
	seen := make(map[int64]bool, len(ids))
	var distinct []string
	for _, id := range ids {
		if id != 0 && !seen[id] {
			seen[id] = true
			distinct = append(distinct, strconv.FormatInt(id, 10))
		}
	}
	sort.Strings(distinct)

	q := url.Values{"personIds": {strings.Join(distinct, ",")}}
	body, err := m.c.get(ctx, "/people", q)
	if err != nil {
		return nil, err
	}
	var resp struct {
		People []struct {
			ID        int64 `json:"id"`
			PitchHand struct {
				Code string `json:"code"`
			} `json:"pitchHand"`
		} `json:"people"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse people: %w", err)
	}
	hands := make(map[int64]string, len(resp.People))
	for _, p := range resp.People {
		if p.PitchHand.Code != "" {
			hands[p.ID] = p.PitchHand.Code
		}
	}
	return hands, nil
}

// Umpires returns the home plate assignment per game for a date.
func (m *MLBStatsClient) Umpires(ctx context.Context, gameDate string) (map[int64]string, error) {
	q := url.Values{
		"date":    {gameDate},
		"sportId": {"1"},
		"hydrate": {"officials"},
	}
	body, err := m.c.get(ctx, "/schedule", q)
	if err != nil {
		return nil, err
	}
	var resp scheduleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse officials: %w", err)
	}
	assignments := make(map[int64]string)
	for _, d := range resp.Dates {
		for _, g := range d.Games {
			for _, o := range g.Officials {
				if o.OfficialType == "Home Plate" && o.Official.FullName != "" {
					assignments[g.GamePk] = o.Official.FullName
					break
				}
			}
		}
	}
	return assignments, nil
}

// LineupSnapshot is one team's batting order as posted at fetch time.
type LineupSnapshot struct {
	TeamID    string
	Confirmed bool
	Rows      []store.Lineup
}

type boxscoreResponse struct {
	Teams struct {
		Home boxscoreTeam `json:"home"`
		Away boxscoreTeam `json:"away"`
	} `json:"teams"`
}

type boxscoreTeam struct {
	Team struct {
		Name         string `json:"name"`
		Abbreviation string `json:"abbreviation"`
	} `json:"team"`
	BattingOrder []int64                   `json:"battingOrder"`
	Players      map[string]boxscorePlayer `json:"players"`
}

type boxscorePlayer struct {
	Person struct {
		ID int64 `json:"id"`
	} `json:"person"`
	BattingOrder string `json:"battingOrder"`
	Position     struct {
		Abbreviation string `json:"abbreviation"`
	} `json:"position"`
}

// Lineups pulls both batting orders from the boxscore. A snapshot is
// confirmed once nine or more slots are posted, or unconditionally when
// the game is past pregame. Pregame payloads often omit the
// battingOrder list; per-player battingOrder codes fill the gap.
func (m *MLBStatsClient) Lineups(ctx context.Context, gameID int64, gameStatus string) ([]LineupSnapshot, error) {
	body, err := m.c.get(ctx, fmt.Sprintf("/game/%d/boxscore", gameID), nil)
	if err != nil {
		return nil, err
	}
	var resp boxscoreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse boxscore game %d: %w", gameID, err)
	}

	var snaps []LineupSnapshot
	for _, team := range []boxscoreTeam{resp.Teams.Home, resp.Teams.Away} {
		rows := lineupRows(team)
		if len(rows) == 0 {
			continue
		}
		confirmed := len(rows) >= 9
		switch gameStatus {
		case "live", "final", "warmup":
			confirmed = true
		}
		snaps = append(snaps, LineupSnapshot{
			TeamID:    rows[0].TeamID,
			Confirmed: confirmed,
			Rows:      rows,
		})
	}
	return snaps, nil
}

func lineupRows(team boxscoreTeam) []store.Lineup {
	teamID := TeamAbbr(team.Team.Name)
	if teamID == "" {
		teamID = team.Team.Abbreviation
	}

	seen := make(map[int64]bool)
	var rows []store.Lineup
	if len(team.BattingOrder) > 0 {
		for idx, pid := range team.BattingOrder {
			if pid == 0 || seen[pid] {
				continue
			}
			seen[pid] = true
			order := idx + 1
			row := store.Lineup{TeamID: teamID, PlayerID: pid, BattingOrder: &order, IsStarter: 1}
			if p, ok := team.Players[fmt.Sprintf("ID%d", pid)]; ok && p.Position.Abbreviation != "" {
				pos := p.Position.Abbreviation
				row.Position = &pos
			}
			rows = append(rows, row)
		}
		return rows
	}

	for _, p := range team.Players {
		if p.Person.ID == 0 || seen[p.Person.ID] {
			continue
		}
		order, ok := battingOrderSlot(p.BattingOrder)
		if !ok {
			continue
		}
		seen[p.Person.ID] = true
		row := store.Lineup{TeamID: teamID, PlayerID: p.Person.ID, BattingOrder: &order, IsStarter: 1}
		if p.Position.Abbreviation != "" {
			pos := p.Position.Abbreviation
			row.Position = &pos
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if *rows[i].BattingOrder != *rows[j].BattingOrder {
			return *rows[i].BattingOrder < *rows[j].BattingOrder
		}
		return rows[i].PlayerID < rows[j].PlayerID
	})
	return rows
}

// battingOrderSlot decodes the boxscore battingOrder code: "300" means
// slot three, "301" a substitute in that slot.
func battingOrderSlot(raw string) (int, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	if v >= 100 {
		v /= 100
	}
	if v < 1 || v > 9 {
		return 0, false
	}
	return v, true
}

// Linescore returns per-inning scoring for first-five grading.
func (m *MLBStatsClient) Linescore(ctx context.Context, gameID int64) (*grading.Linescore, error) {
	body, err := m.c.get(ctx, fmt.Sprintf("/game/%d/linescore", gameID), nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Innings []struct {
			Home struct {
				Runs *int `json:"runs"`
			} `json:"home"`
			Away struct {
				Runs *int `json:"runs"`
			} `json:"away"`
		} `json:"innings"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse linescore game %d: %w", gameID, err)
	}
	ls := &grading.Linescore{}
	for _, inn := range resp.Innings {
		home, away := 0, 0
		if inn.Home.Runs != nil {
			home = *inn.Home.Runs
		}
		if inn.Away.Runs != nil {
			away = *inn.Away.Runs
		}
		ls.HomeByInning = append(ls.HomeByInning, home)
		ls.AwayByInning = append(ls.AwayByInning, away)
	}
	return ls, nil
}
