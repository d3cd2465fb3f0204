package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/ballparklabs/mlbedge/internal/config"
)

// WeatherClient reads Open-Meteo hourly forecasts at stadium
// coordinates. No API key required.
type WeatherClient struct {
	c *client
}

func NewWeather(cfg config.Fetch, logger zerolog.Logger) *WeatherClient {
	return &WeatherClient{
		c: newClient("weather", cfg.WeatherAPIBase, cfg.Timeout, cfg.MaxRetries, nil, logger),
	}
}

// Observation is the point-in-time forecast nearest first pitch.
type Observation struct {
	TempF        float64
	WindSpeedMPH float64
	WindDir      string
}

type forecastResponse struct {
	Hourly struct {
		Time          []string  `json:"time"`
		Temperature   []float64 `json:"temperature_2m"`
		WindSpeed     []float64 `json:"wind_speed_10m"`
		WindDirection []float64 `json:"wind_direction_10m"`
	} `json:"hourly"`
}

// At returns the forecast hour closest to gameTime (RFC3339 UTC) at the
// given coordinates.
func (w *WeatherClient) At(ctx context.Context, lat, lon float64, gameTime string) (*Observation, error) {
	target, err := time.Parse(time.RFC3339, gameTime)
	if err != nil {
		return nil, fmt.Errorf("bad game time %q: %w", gameTime, err)
	}

	q := url.Values{
		"latitude":         {formatCoord(lat)},
		"longitude":        {formatCoord(lon)},
		"hourly":           {"temperature_2m,wind_speed_10m,wind_direction_10m"},
		"temperature_unit": {"fahrenheit"},
		"wind_speed_unit":  {"mph"},
		"timezone":         {"UTC"},
		"start_date":       {target.UTC().Format("2006-01-02")},
		"end_date":         {target.UTC().AddDate(0, 0, 1).Format("2006-01-02")},
	}
	body, err := w.c.get(ctx, "/forecast", q)
	if err != nil {
		return nil, err
	}
	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse forecast: %w", err)
	}

	best := -1
	var bestDiff time.Duration
	for i, ts := range resp.Hourly.Time {
		// Open-Meteo hourly timestamps omit the zone suffix.
		t, err := time.Parse("2006-01-02T15:04", ts)
		if err != nil {
			continue
		}
		diff := target.UTC().Sub(t)
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 || best >= len(resp.Hourly.Temperature) ||
		best >= len(resp.Hourly.WindSpeed) || best >= len(resp.Hourly.WindDirection) {
		return nil, fmt.Errorf("forecast has no usable hours")
	}

	return &Observation{
		TempF:        resp.Hourly.Temperature[best],
		WindSpeedMPH: resp.Hourly.WindSpeed[best],
		WindDir:      compassDir(resp.Hourly.WindDirection[best]),
	}, nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// compassDir buckets meteorological degrees into eight points.
func compassDir(deg float64) string {
	idx := int(math.Round(math.Mod(deg, 360)/45.0)) % len(compassPoints)
	if idx < 0 {
		idx += len(compassPoints)
	}
	return compassPoints[idx]
}
