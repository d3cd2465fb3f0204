package grading

import (
	oddskit "github.com/ballparklabs/mlbedge/internal/odds"
)

// Settle resolves one side against the realized outcome value. Integer
// lines push on an exact match; half lines cannot.
func Settle(side string, line *float64, value float64) string {
	switch side {
	case "OVER":
		return overUnder(value, line, true)
	case "UNDER":
		return overUnder(value, line, false)
	case "YES":
		if value > 0 {
			return "win"
		}
		return "loss"
	case "NO":
		if value > 0 {
			return "loss"
		}
		return "win"
	case "HOME":
		return moneyline(value, true)
	case "AWAY":
		return moneyline(value, false)
	}
	return "void"
}

func overUnder(value float64, line *float64, over bool) string {
	if line == nil {
		return "void"
	}
	switch {
	case value == *line:
		return "push"
	case (value > *line) == over:
		return "win"
	}
	return "loss"
}

// moneyline settles against a signed margin. A zero margin, possible
// only in first-five scoring, pushes.
func moneyline(margin float64, home bool) string {
	switch {
	case margin == 0:
		return "push"
	case (margin > 0) == home:
		return "win"
	}
	return "loss"
}

// Profit is the settled return in units for a given stake: decimal
// payout minus stake on a win, the stake lost on a loss, flat on a
// push or void.
func Profit(result string, priceAmerican int, stakeUnits float64) float64 {
	switch result {
	case "win":
		return stakeUnits * (oddskit.AmericanToDecimal(priceAmerican) - 1)
	case "loss":
		return -stakeUnits
	}
	return 0
}
