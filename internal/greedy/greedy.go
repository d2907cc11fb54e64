// Package greedy implements the fanout-weighted initial placer: a
// feasible, HPWL-biased seed that the SA refiner then improves on.
package greedy

import (
	"sort"

	"github.com/pkg/errors"

	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/numeric"
	"structplace/internal/placement"
)

// ErrUnplaceableInstance is fatal: no kind-compatible free slot
// exists for a required instance.
var ErrUnplaceableInstance = errors.New("unplaceable instance")

// Seed fills an empty placement.State in place:
//
//  1. rank instances by fanout descending, ties broken by name;
//  2. for each instance, compute a reference point from its already-
//     placed neighbours (or the die centre if it has none);
//  3. bind it to the nearest free, kind-compatible slot, Manhattan
//     distance, ties broken by the fabric's stable per-kind slot
//     order.
//
// st must be freshly constructed (every instance unbound); Seed does
// not unbind anything itself.
func Seed(fab *fabric.Fabric, nl *netlist.Netlist, st *placement.State) error {
	order := rankByFanoutDesc(nl)

	for _, instIdx := range order {
		kind := placement.CompatibleSlotKind(nl.Instances[instIdx].Kind)
		candidates := fab.SlotsOfKind(kind)

		refX, refY := referencePoint(fab, nl, st, instIdx)

		best := -1
		bestDist := 0
		for _, slotIdx := range candidates {
			if st.InstOf(slotIdx) != placement.None {
				continue
			}
			s := fab.Slot(slotIdx)
			d := numeric.Manhattan(s.X, s.Y, refX, refY)
			if best == -1 || d < bestDist {
				best = slotIdx
				bestDist = d
			}
		}

		if best == -1 {
			return errors.Wrapf(ErrUnplaceableInstance, "instance %q (kind %s) has no free compatible slot", nl.Instances[instIdx].Name, kind)
		}
		if err := st.Bind(instIdx, best); err != nil {
			return errors.Wrapf(err, "binding instance %q", nl.Instances[instIdx].Name)
		}
	}
	return nil
}

// rankByFanoutDesc returns instance indices ordered by fanout
// descending, ties broken by instance name ascending, so the seed
// order is fully deterministic.
func rankByFanoutDesc(nl *netlist.Netlist) []int {
	order := make([]int, len(nl.Instances))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ia, ib := order[a], order[b]
		fa, fb := nl.Fanout(ia), nl.Fanout(ib)
		if fa != fb {
			return fa > fb
		}
		return nl.Instances[ia].Name < nl.Instances[ib].Name
	})
	return order
}

// referencePoint computes the reference coordinate for instIdx: the
// centroid of its already-placed neighbours (drivers of its input
// nets, sinks of its output nets), or the die centre if none of its
// neighbours are placed yet.
func referencePoint(fab *fabric.Fabric, nl *netlist.Netlist, st *placement.State, instIdx int) (x, y int) {
	sumX, sumY, n := 0, 0, 0
	for _, netIdx := range nl.NetsOf(instIdx) {
		net := nl.Nets[netIdx]
		drives := false
		for _, pinIdx := range net.PinIdx {
			if p := nl.Pins[pinIdx]; p.InstIdx == instIdx && p.Role == netlist.RoleDriver {
				drives = true
				break
			}
		}
		for _, pinIdx := range net.PinIdx {
			neighbor := nl.Pins[pinIdx].InstIdx
			if neighbor == instIdx {
				continue
			}
			// On a net it drives, count the sinks; otherwise only the driver.
			if drives != (nl.Pins[pinIdx].Role == netlist.RoleSink) {
				continue
			}
			nx, ny, ok := st.Coord(neighbor)
			if !ok {
				continue
			}
			sumX += nx
			sumY += ny
			n++
		}
	}
	if n == 0 {
		w, h := fab.DieBox()
		return w / 2, h / 2
	}
	return sumX / n, sumY / n
}
