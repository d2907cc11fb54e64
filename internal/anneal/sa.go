// Package anneal implements the simulated-annealing refiner: a
// cooling-schedule optimizer that improves on the greedy seed with
// swap and relocate moves, Metropolis acceptance, and a deterministic
// RNG.
package anneal

import (
	"math"
	"time"

	"structplace/internal/cost"
	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/numeric"
	"structplace/internal/placement"
)

// relocateProb is the probability an explore move picks an unbound
// free slot and relocates into it instead of swapping with another
// bound instance. 0.1 keeps relocation a rare alternate move relative
// to swapping, just enough to let occupancy drift toward a better
// slot rather than only ever trading places with another instance.
const relocateProb = 0.1

// refineRedraws bounds how many times a refine move redraws a window
// candidate before falling through to an explore move.
const refineRedraws = 8

// Params are the SA knobs, all overridable at run time.
type Params struct {
	Seed          uint64
	T0            float64
	Alpha         float64
	MovesPerTemp  int
	ProbRefine    float64
	TMin          float64
	MaxStallTemps int
}

// DefaultParams is the baseline SA preset: T0=100, alpha=0.92,
// moves_per_temp=200, prob_refine=0.50. internal/config exposes a
// second, more aggressive preset (alpha=0.97, prob_refine=0.70) found
// in an older run configuration, for callers that prefer it.
func DefaultParams(seed uint64) Params {
	return Params{
		Seed:          seed,
		T0:            100.0,
		Alpha:         0.92,
		MovesPerTemp:  200,
		ProbRefine:    0.50,
		TMin:          1e-3,
		MaxStallTemps: 5,
	}
}

// Sample is one per-temperature report.
type Sample struct {
	T         float64
	Attempts  int
	Accepts   int
	Cost      int
	ElapsedMS int64
}

// Reporter receives one Sample at each temperature boundary. A nil
// Reporter is a no-op.
type Reporter func(Sample)

// Cancel is polled at each temperature boundary; returning true stops
// the run cleanly with the current, fully-feasible placement. A nil
// Cancel never stops the run early.
type Cancel func() bool

// Refiner owns the mutable state a single SA run is allowed to touch:
// the placement, the running cost, the temperature, and the RNG. One
// owned value in place of package-level variables, so two runs never
// share state.
type Refiner struct {
	fab    *fabric.Fabric
	nl     *netlist.Netlist
	st     *placement.State
	cm     *cost.Model
	rng    *RNG
	params Params

	currentCost int
	byClass     map[fabric.SlotKind][]int // instance indices grouped by their compatible SlotKind, computed once
}

// New builds a Refiner over an already-seeded placement. currentCost
// is computed from scratch once; after that it is maintained
// incrementally.
func New(fab *fabric.Fabric, nl *netlist.Netlist, st *placement.State, params Params) *Refiner {
	cm := cost.New(fab, nl)
	byClass := make(map[fabric.SlotKind][]int)
	for i, inst := range nl.Instances {
		k := placement.CompatibleSlotKind(inst.Kind)
		byClass[k] = append(byClass[k], i)
	}
	return &Refiner{
		fab:         fab,
		nl:          nl,
		st:          st,
		cm:          cm,
		rng:         NewRNG(params.Seed),
		params:      params,
		currentCost: cm.Total(st),
		byClass:     byClass,
	}
}

// Cost returns the current running total cost.
func (r *Refiner) Cost() int { return r.currentCost }

// Run executes the cooling schedule until T drops below TMin or the
// stall counter reaches MaxStallTemps, reporting one Sample per
// temperature boundary and polling cancel between temperatures.
// MovesPerTemp == 0 exits immediately with the placement unchanged.
func (r *Refiner) Run(reporter Reporter, cancel Cancel) (int, error) {
	if r.params.MovesPerTemp <= 0 {
		return r.currentCost, nil
	}

	start := time.Now()
	T := r.params.T0
	stall := 0

	for {
		attempts, accepts := 0, 0
		for attempts < r.params.MovesPerTemp {
			attempts++
			insts, slots, ok := r.generateMove(T)
			if !ok {
				continue
			}
			delta := r.cm.Delta(r.st, insts, slots)
			if r.shouldAccept(delta, T) {
				if err := r.commit(insts, slots); err != nil {
					return r.currentCost, err
				}
				r.currentCost += delta
				accepts++
			}
		}

		if reporter != nil {
			reporter(Sample{
				T:         T,
				Attempts:  attempts,
				Accepts:   accepts,
				Cost:      r.currentCost,
				ElapsedMS: time.Since(start).Milliseconds(),
			})
		}

		if accepts > 0 {
			stall = 0
		} else {
			stall++
		}
		T *= r.params.Alpha

		if T < r.params.TMin || stall >= r.params.MaxStallTemps {
			break
		}
		if cancel != nil && cancel() {
			break
		}
	}

	return r.currentCost, nil
}

// shouldAccept implements the Metropolis acceptance criterion, with
// two numeric clamps: Δ/T > 40 is rejected outright rather than
// computing an exponential that underflows to zero anyway, and
// T < 1e-12 degenerates to greedy descent rather than dividing by a
// near-zero temperature.
func (r *Refiner) shouldAccept(delta int, T float64) bool {
	if delta <= 0 {
		return true
	}
	if T < 1e-12 {
		return false
	}
	ratio := float64(delta) / T
	if ratio > 40 {
		return false
	}
	p := math.Exp(-ratio)
	return r.rng.Float64() < p
}

// commit applies an accepted move to the placement. A relocate is
// encoded as a single-element insts/slots pair; a swap as a two-
// element pair where each instance's slot becomes the other's.
func (r *Refiner) commit(insts, slots []int) error {
	if len(insts) == 1 {
		return r.st.Relocate(insts[0], slots[0])
	}
	return r.st.Swap(insts[0], insts[1])
}

// generateMove draws one candidate move — a refine swap, a relocate,
// or an explore swap, in that priority order — returning the
// instances involved and their tentative new slots (in the
// Model.Delta / commit convention) along with whether a candidate
// could be generated at all.
func (r *Refiner) generateMove(T float64) (insts, slots []int, ok bool) {
	bound := r.st.BoundInstances()
	if len(bound) == 0 {
		return nil, nil, false
	}
	i := bound[r.rng.IntN(len(bound))]
	class := placement.CompatibleSlotKind(r.nl.Instances[i].Kind)
	members := r.byClass[class]

	if r.rng.Float64() < r.params.ProbRefine {
		if j, found := r.pickRefinePartner(i, T, class, members); found {
			return []int{i, j}, []int{r.st.SlotOf(j), r.st.SlotOf(i)}, true
		}
		// falls through to explore if no in-window partner was found
	}

	if r.rng.Float64() < relocateProb {
		if slot, found := r.pickFreeSlot(class); found {
			return []int{i}, []int{slot}, true
		}
	}

	if j, found := r.pickExplorePartner(i, members); found {
		return []int{i, j}, []int{r.st.SlotOf(j), r.st.SlotOf(i)}, true
	}
	return nil, nil, false
}

// pickRefinePartner chooses a random same-class bound instance whose
// slot lies within a temperature-scaled window of i's slot, redrawing
// up to refineRedraws times.
func (r *Refiner) pickRefinePartner(i int, T float64, class fabric.SlotKind, members []int) (int, bool) {
	if len(members) < 2 {
		return 0, false
	}
	radius := r.windowRadius(T)
	ix, iy, iok := r.st.Coord(i)
	if !iok {
		return 0, false
	}
	for attempt := 0; attempt < refineRedraws; attempt++ {
		j := members[r.rng.IntN(len(members))]
		if j == i {
			continue
		}
		jx, jy, jok := r.st.Coord(j)
		if !jok {
			continue
		}
		if numeric.AbsInt(jx-ix) <= radius && numeric.AbsInt(jy-iy) <= radius {
			return j, true
		}
	}
	return 0, false
}

// pickExplorePartner chooses uniformly among all same-class bound
// instances other than i.
func (r *Refiner) pickExplorePartner(i int, members []int) (int, bool) {
	candidates := make([]int, 0, len(members))
	for _, m := range members {
		if m != i {
			if _, _, ok := r.st.Coord(m); ok {
				candidates = append(candidates, m)
			}
		}
	}
	if len(candidates) == 0 {
		return 0, false
	}
	return candidates[r.rng.IntN(len(candidates))], true
}

// pickFreeSlot returns a uniformly-chosen free slot of the given kind,
// or false if none is free.
func (r *Refiner) pickFreeSlot(class fabric.SlotKind) (int, bool) {
	all := r.fab.SlotsOfKind(class)
	free := make([]int, 0, len(all))
	for _, s := range all {
		if r.st.InstOf(s) == placement.None {
			free = append(free, s)
		}
	}
	if len(free) == 0 {
		return 0, false
	}
	return free[r.rng.IntN(len(free))], true
}

// windowRadius shrinks with temperature, clamped to at least 1
// coordinate unit (um, the unit of the fabric's coordinates).
// A zero T0 has no meaningful T/T0 ratio; the window collapses to its
// minimum, which only matters for the one temperature that runs
// before termination.
func (r *Refiner) windowRadius(T float64) int {
	if r.params.T0 <= 0 {
		return 1
	}
	diameter := float64(r.fab.ManhattanDiameter())
	radius := int(math.Round(diameter * T / r.params.T0))
	if radius < 1 {
		radius = 1
	}
	return radius
}
