package scoring

import (
	"context"

	"github.com/ballparklabs/mlbedge/internal/store"
)

// population is the same-date reference set the percentile factors rank
// against: every batter with a feature row and every probable starter
// on the slate.
type population struct {
	batterBarrel []float64

	pitcherKPct          []float64
	pitcherWhiff         []float64
	pitcherChase         []float64
	pitcherHR9           []float64
	pitcherBarrelAllowed []float64

	starters map[int64]*store.PitcherFeatures
}

func (e *Engine) buildPopulation(ctx context.Context, gameDate string, games []store.Game, dateBatters []store.BatterFeatures) (*population, error) {
	pop := &population{starters: make(map[int64]*store.PitcherFeatures)}

	for _, bf := range dateBatters {
		if bf.BarrelPct14 != nil {
			pop.batterBarrel = append(pop.batterBarrel, *bf.BarrelPct14)
		}
	}

	for _, g := range games {
		for _, pid := range []*int64{g.HomePitcherID, g.AwayPitcherID} {
			if pid == nil {
				continue
			}
			if _, seen := pop.starters[*pid]; seen {
				continue
			}
			pf, err := e.s.Features.PitcherFor(ctx, gameDate, *pid)
			if err != nil {
				return nil, err
			}
			pop.starters[*pid] = pf
			if pf == nil {
				continue
			}
			if pf.KPct14 != nil {
				pop.pitcherKPct = append(pop.pitcherKPct, *pf.KPct14)
			}
			if pf.WhiffRate14 != nil {
				pop.pitcherWhiff = append(pop.pitcherWhiff, *pf.WhiffRate14)
			}
			if pf.ChaseRate14 != nil {
				pop.pitcherChase = append(pop.pitcherChase, *pf.ChaseRate14)
			}
			if pf.HRPer914 != nil {
				pop.pitcherHR9 = append(pop.pitcherHR9, *pf.HRPer914)
			}
			if pf.BarrelPctAllowed14 != nil {
				pop.pitcherBarrelAllowed = append(pop.pitcherBarrelAllowed, *pf.BarrelPctAllowed14)
			}
		}
	}
	return pop, nil
}
