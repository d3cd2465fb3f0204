package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ballparklabs/mlbedge/internal/config"
	"github.com/ballparklabs/mlbedge/internal/metrics"
	"github.com/ballparklabs/mlbedge/internal/store"
)

// Discord rejects message content over 2000 characters; leave headroom.
const alertContentMax = 1900

// AlertThreshold gates which rows a market alert includes.
type AlertThreshold struct {
	Signals  []string `json:"signals"`
	MinScore float64  `json:"min_score"`
	MaxRows  int      `json:"max_rows"`
}

func defaultThresholds() map[string]AlertThreshold {
	return map[string]AlertThreshold{
		"*":  {Signals: []string{"BET", "LEAN"}, MinScore: 70, MaxRows: 5},
		"HR": {Signals: []string{"BET", "LEAN"}, MinScore: 72, MaxRows: 5},
		"K":  {Signals: []string{"BET", "LEAN"}, MinScore: 70, MaxRows: 5},
	}
}

// Alerter posts top active scores for a market to a Discord webhook.
// Without a webhook URL it is a silent no-op.
type Alerter struct {
	cfg        config.Alerts
	s          *store.Store
	log        zerolog.Logger
	http       *http.Client
	thresholds map[string]AlertThreshold
}

func NewAlerter(cfg config.Alerts, s *store.Store, logger zerolog.Logger) *Alerter {
	log := logger.With().Str("component", "alerter").Logger()
	thresholds := defaultThresholds()
	if cfg.ThresholdsJSON != "" {
		var override map[string]AlertThreshold
		if err := json.Unmarshal([]byte(cfg.ThresholdsJSON), &override); err != nil {
			log.Warn().Err(err).Msg("bad alert thresholds json, using defaults")
		} else {
			for market, th := range override {
				thresholds[market] = th
			}
		}
	}
	return &Alerter{
		cfg:        cfg,
		s:          s,
		log:        log,
		http:       &http.Client{Timeout: 10 * time.Second},
		thresholds: thresholds,
	}
}

func (a *Alerter) thresholdFor(market string) AlertThreshold {
	if th, ok := a.thresholds[market]; ok {
		return th
	}
	return a.thresholds["*"]
}

// SendMarketAlerts posts the market's qualifying rows. No rows or no
// webhook means no post.
func (a *Alerter) SendMarketAlerts(ctx context.Context, gameDate, market string) error {
	th := a.thresholdFor(market)
	rows, err := a.s.Scores.TopAlertRows(ctx, gameDate, market, th.Signals, th.MinScore, th.MaxRows)
	if err != nil {
		return fmt.Errorf("alert rows %s: %w", market, err)
	}
	if len(rows) == 0 {
		return nil
	}
	if a.cfg.WebhookURL == "" {
		a.log.Debug().Str("market", market).Int("rows", len(rows)).Msg("no webhook configured")
		return nil
	}

	content := a.buildPayload(gameDate, market, rows)
	if err := a.post(ctx, content); err != nil {
		return fmt.Errorf("post alert %s: %w", market, err)
	}
	metrics.AlertsSent.WithLabelValues(market).Inc()
	a.log.Info().Str("market", market).Int("rows", len(rows)).Msg("alert sent")
	return nil
}

// buildPayload renders one alert message: a title line then a bullet
// per row with the score, edge and the top reasons and risk flags.
func (a *Alerter) buildPayload(gameDate, market string, rows []store.ModelScore) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**Model Alerts — %s %s**\n", gameDate, market)
	for _, row := range rows {
		fmt.Fprintf(&b, "- `%s` %s %s", row.Signal, alertSubject(row), row.Side)
		if row.Line != nil {
			fmt.Fprintf(&b, " %.1f", *row.Line)
		}
		fmt.Fprintf(&b, " | score %.1f", row.ModelScore)
		if row.Edge != nil {
			fmt.Fprintf(&b, " | edge %.2f", *row.Edge)
		}
		if row.LineupConfirmed == 1 {
			b.WriteString(" | lineup Y")
		} else {
			b.WriteString(" | lineup N")
		}
		if tags := topTags(row.ReasonsJSON, 2); tags != "" {
			fmt.Fprintf(&b, " | %s", tags)
		}
		if tags := topTags(row.RiskFlagsJSON, 2); tags != "" {
			fmt.Fprintf(&b, " | risks: %s", tags)
		}
		b.WriteString("\n")
	}
	if a.cfg.DashboardURL != "" {
		fmt.Fprintf(&b, "%s\n", a.cfg.DashboardURL)
	}
	content := b.String()
	if len(content) > alertContentMax {
		content = content[:alertContentMax]
	}
	return content
}

func alertSubject(row store.ModelScore) string {
	if row.PlayerName != nil && *row.PlayerName != "" {
		return *row.PlayerName
	}
	if row.TeamAbbr != nil && *row.TeamAbbr != "" {
		return *row.TeamAbbr
	}
	if row.SelectionKey != nil {
		return *row.SelectionKey
	}
	return fmt.Sprintf("game %d", row.GameID)
}

// topTags takes the first n entries of a JSON string array. Unparseable
// input renders as nothing rather than breaking the alert.
func topTags(raw string, n int) string {
	var tags []string
	if err := json.Unmarshal([]byte(raw), &tags); err != nil || len(tags) == 0 {
		return ""
	}
	if len(tags) > n {
		tags = tags[:n]
	}
	return strings.Join(tags, ", ")
}

func (a *Alerter) post(ctx context.Context, content string) error {
	body, err := json.Marshal(map[string]string{"content": content})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook status %d", resp.StatusCode)
	}
	return nil
}
