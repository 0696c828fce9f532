package matching

import (
	"context"
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"fleetmatch/internal/modules/cargo"
	"fleetmatch/internal/modules/fleet"
	"fleetmatch/internal/types"
)

func TestProperty_HardFiltersNeverViolated(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("no match exceeds capacity or max pickup distance", prop.ForAll(
		func(weights, capacities []float64) bool {
			cfg := testConfig()
			cfg.MinScore = 0
			cfg.ExcludeHighRisk = false

			jobs := make([]cargo.Job, len(weights))
			for i, w := range weights {
				jobs[i] = job(types.ID(fmt.Sprintf("j%d", i)), w, cargo.UrgencyHigh)
			}
			vehicles := make([]fleet.Vehicle, len(capacities))
			capacity := make(map[types.ID]float64, len(capacities))
			for i, c := range capacities {
				id := types.ID(fmt.Sprintf("v%d", i))
				vehicles[i] = truck(id, c)
				capacity[id] = c
			}
			weight := make(map[types.ID]float64, len(jobs))
			for _, j := range jobs {
				weight[j.ID] = j.WeightKg
			}

			f := newFixture(t, cfg, jobs, vehicles)
			res, err := f.svc.FindBestMatches(context.Background(), cfg.MaxLimit, Filters{})
			if err != nil {
				return false
			}
			for _, m := range res.Matches {
				if weight[m.JobID] > capacity[m.VehicleID] || m.PickupKm > cfg.MaxDistanceKm {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(5, gen.Float64Range(100, 10000)),
		gen.SliceOfN(4, gen.Float64Range(500, 12000)),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}
