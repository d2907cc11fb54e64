// Package cost implements the half-perimeter-wirelength cost model:
// the objective the greedy seeder and SA refiner both optimize, with
// incremental hypothetical evaluation so a rejected move never needs
// a rollback.
package cost

import (
	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/placement"
)

// Model ties a fabric and netlist together for HPWL evaluation. It
// holds no mutable state of its own.
type Model struct {
	Fab *fabric.Fabric
	NL  *netlist.Netlist
}

// New builds a cost Model.
func New(fab *fabric.Fabric, nl *netlist.Netlist) *Model {
	return &Model{Fab: fab, NL: nl}
}

// lookup abstracts "where is this instance currently placed", so the
// same net-HPWL code serves both the real placement and a hypothetical
// overlay without mutating anything.
type lookup interface {
	coord(instIdx int) (x, y int, ok bool)
}

type stateLookup struct{ st *placement.State }

func (l stateLookup) coord(instIdx int) (int, int, bool) { return l.st.Coord(instIdx) }

// overlay substitutes coordinates for a small set of instances while
// delegating everything else to a backing lookup, so a hypothetical
// move can be evaluated without mutating the real placement or
// needing an explicit rollback if it's rejected.
type overlay struct {
	base    lookup
	instIdx []int
	slotIdx []int // placement.None means "now unbound"
	fab     *fabric.Fabric
}

func (o overlay) coord(instIdx int) (int, int, bool) {
	for k, i := range o.instIdx {
		if i == instIdx {
			if o.slotIdx[k] == placement.None {
				return 0, 0, false
			}
			s := o.fab.Slot(o.slotIdx[k])
			return s.X, s.Y, true
		}
	}
	return o.base.coord(instIdx)
}

// netHPWL computes one net's current half-perimeter wirelength under
// l. A net with fewer than two placed pins contributes 0.
func (m *Model) netHPWL(l lookup, netIdx int) int {
	net := m.NL.Nets[netIdx]
	if net.IsClock {
		return 0
	}
	var minX, minY, maxX, maxY int
	placed := 0
	seen := make(map[int]bool, len(net.PinIdx))
	for _, pinIdx := range net.PinIdx {
		inst := m.NL.Pins[pinIdx].InstIdx
		if seen[inst] {
			continue
		}
		x, y, ok := l.coord(inst)
		if !ok {
			continue
		}
		seen[inst] = true
		if placed == 0 {
			minX, maxX, minY, maxY = x, x, y, y
		} else {
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		placed++
	}
	if placed < 2 {
		return 0
	}
	return (maxX - minX) + (maxY - minY)
}

// NetHPWL returns net netIdx's current HPWL under the real placement.
func (m *Model) NetHPWL(st *placement.State, netIdx int) int {
	return m.netHPWL(stateLookup{st}, netIdx)
}

// Total sums HPWL over every non-clock net — the from-scratch cost
// used to seed SA's running total; tests also compare it against
// SA's incrementally-maintained total.
func (m *Model) Total(st *placement.State) int {
	total := 0
	for i := range m.NL.Nets {
		total += m.netHPWL(stateLookup{st}, i)
	}
	return total
}

// AffectedNets returns the deduplicated net indices touching any of
// insts — the set a move over those instances can change.
func (m *Model) AffectedNets(insts ...int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, i := range insts {
		for _, n := range m.NL.NetsOf(i) {
			if !seen[n] {
				seen[n] = true
				out = append(out, n)
			}
		}
	}
	return out
}

// Delta evaluates the cost change of tentatively moving each
// insts[k] to slots[k] (placement.None meaning "becomes unbound"),
// without mutating st: collect the nets the move touches, sum their
// HPWL before, apply the move hypothetically, sum again, and return
// after-before. A Δ of exactly 0 is a valid, acceptable result — the
// caller decides how to treat a tie, not this package.
func (m *Model) Delta(st *placement.State, insts []int, slots []int) int {
	affected := m.AffectedNets(insts...)
	before := 0
	for _, n := range affected {
		before += m.netHPWL(stateLookup{st}, n)
	}
	ov := overlay{base: stateLookup{st}, instIdx: insts, slotIdx: slots, fab: m.Fab}
	after := 0
	for _, n := range affected {
		after += m.netHPWL(ov, n)
	}
	return after - before
}

// DeltaSwap is a convenience wrapper for the swap move: instances i
// and j hypothetically exchange their current slots.
func (m *Model) DeltaSwap(st *placement.State, i, j int) int {
	si, sj := st.SlotOf(i), st.SlotOf(j)
	return m.Delta(st, []int{i, j}, []int{sj, si})
}

// DeltaRelocate is a convenience wrapper for the relocate move:
// instance i hypothetically moves to slotIdx.
func (m *Model) DeltaRelocate(st *placement.State, i, slotIdx int) int {
	return m.Delta(st, []int{i}, []int{slotIdx})
}
