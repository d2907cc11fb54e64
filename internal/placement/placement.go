// Package placement holds the sole source of truth for the
// instance-to-slot bijection: the structured-ASIC fabric's only
// mutable state. No other package caches an instance's slot.
package placement

import (
	"github.com/pkg/errors"

	"structplace/internal/fabric"
	"structplace/internal/netlist"
)

// None is the sentinel for "unbound" in both the slotOf and instOf
// arrays.
const None = -1

// ErrKindMismatch is raised by Bind/Swap/Relocate when the instance's
// CellKind is not compatible with the slot's SlotKind. Callers are
// expected to check compatibility before attempting a bind; this is
// a normal Go error rather than a panic so tests can assert on it
// directly.
var ErrKindMismatch = errors.New("kind mismatch")

// ErrSlotOccupied is raised by Bind/Relocate when the target slot
// already holds an instance (for Relocate, even the moving instance
// itself).
var ErrSlotOccupied = errors.New("slot already occupied")

// ErrInstanceBound is raised by Bind when the instance already holds
// a slot.
var ErrInstanceBound = errors.New("instance already bound")

// ErrUnbound is raised by Unbind when the instance holds no slot.
var ErrUnbound = errors.New("instance not bound")

// classOf maps a CellKind to the single SlotKind it is compatible
// with: DFF<->DFF, IO<->IO, everything else<->LOGIC.
func classOf(k netlist.CellKind) fabric.SlotKind {
	switch k {
	case netlist.Sequential:
		return fabric.DFF
	case netlist.IOCell:
		return fabric.IO
	default: // Combinational, Tie
		return fabric.LOGIC
	}
}

// Compatible reports whether a CellKind may bind to a SlotKind.
func Compatible(cell netlist.CellKind, slot fabric.SlotKind) bool {
	return classOf(cell) == slot
}

// CompatibleSlotKind returns the single SlotKind a CellKind may bind
// to — exported so the seeder and SA refiner can restrict their slot
// search without duplicating the compatibility table.
func CompatibleSlotKind(cell netlist.CellKind) fabric.SlotKind {
	return classOf(cell)
}

// State is the bidirectional instance<->slot bijection. Bind, Unbind,
// Relocate, Swap, and the lookups are O(1); BoundInstances and Verify
// scan every instance.
type State struct {
	fab *fabric.Fabric
	nl  *netlist.Netlist

	slotOf []int // instIdx -> slotIdx, or None
	instOf []int // slotIdx -> instIdx, or None
}

// New builds an empty placement over fab and nl.
func New(fab *fabric.Fabric, nl *netlist.Netlist) *State {
	st := &State{
		fab:    fab,
		nl:     nl,
		slotOf: make([]int, len(nl.Instances)),
		instOf: make([]int, fab.NumSlots()),
	}
	for i := range st.slotOf {
		st.slotOf[i] = None
	}
	for i := range st.instOf {
		st.instOf[i] = None
	}
	return st
}

// SlotOf returns the slot index bound to instIdx, or None.
func (st *State) SlotOf(instIdx int) int { return st.slotOf[instIdx] }

// InstOf returns the instance index bound to slotIdx, or None.
func (st *State) InstOf(slotIdx int) int { return st.instOf[slotIdx] }

// NumInstances is the size of the instance domain.
func (st *State) NumInstances() int { return len(st.slotOf) }

// Bind assigns instIdx to slotIdx. Both sides must be free and kind-
// compatible.
func (st *State) Bind(instIdx, slotIdx int) error {
	if st.slotOf[instIdx] != None {
		return errors.Wrapf(ErrInstanceBound, "instance %q", st.nl.Instances[instIdx].Name)
	}
	if st.instOf[slotIdx] != None {
		return errors.Wrapf(ErrSlotOccupied, "slot %q", st.fab.Slot(slotIdx).ID)
	}
	if !Compatible(st.nl.Instances[instIdx].Kind, st.fab.Slot(slotIdx).Kind) {
		return errors.Wrapf(ErrKindMismatch, "instance %q (%s) vs slot %q (%s)",
			st.nl.Instances[instIdx].Name, st.nl.Instances[instIdx].Kind,
			st.fab.Slot(slotIdx).ID, st.fab.Slot(slotIdx).Kind)
	}
	st.slotOf[instIdx] = slotIdx
	st.instOf[slotIdx] = instIdx
	return nil
}

// Unbind frees instIdx's slot.
func (st *State) Unbind(instIdx int) error {
	slotIdx := st.slotOf[instIdx]
	if slotIdx == None {
		return errors.Wrapf(ErrUnbound, "instance %q", st.nl.Instances[instIdx].Name)
	}
	st.slotOf[instIdx] = None
	st.instOf[slotIdx] = None
	return nil
}

// Relocate moves instIdx to a specific free, compatible slot,
// unbinding its previous slot (if any) first.
func (st *State) Relocate(instIdx, slotIdx int) error {
	if st.instOf[slotIdx] != None {
		return errors.Wrapf(ErrSlotOccupied, "slot %q", st.fab.Slot(slotIdx).ID)
	}
	if !Compatible(st.nl.Instances[instIdx].Kind, st.fab.Slot(slotIdx).Kind) {
		return errors.Wrapf(ErrKindMismatch, "instance %q (%s) vs slot %q (%s)",
			st.nl.Instances[instIdx].Name, st.nl.Instances[instIdx].Kind,
			st.fab.Slot(slotIdx).ID, st.fab.Slot(slotIdx).Kind)
	}
	if old := st.slotOf[instIdx]; old != None {
		st.instOf[old] = None
	}
	st.slotOf[instIdx] = slotIdx
	st.instOf[slotIdx] = instIdx
	return nil
}

// Swap exchanges whatever bindings i and j currently hold. If one is
// unbound, this degenerates to a move: the bound instance's slot
// passes to the other, and the formerly-bound instance becomes
// unbound.
func (st *State) Swap(i, j int) error {
	if i == j {
		return nil
	}
	si, sj := st.slotOf[i], st.slotOf[j]
	if si == sj { // both None
		return nil
	}
	if sj != None && !Compatible(st.nl.Instances[i].Kind, st.fab.Slot(sj).Kind) {
		return errors.Wrapf(ErrKindMismatch, "instance %q (%s) vs slot %q (%s)",
			st.nl.Instances[i].Name, st.nl.Instances[i].Kind,
			st.fab.Slot(sj).ID, st.fab.Slot(sj).Kind)
	}
	if si != None && !Compatible(st.nl.Instances[j].Kind, st.fab.Slot(si).Kind) {
		return errors.Wrapf(ErrKindMismatch, "instance %q (%s) vs slot %q (%s)",
			st.nl.Instances[j].Name, st.nl.Instances[j].Kind,
			st.fab.Slot(si).ID, st.fab.Slot(si).Kind)
	}
	st.slotOf[i], st.slotOf[j] = sj, si
	if sj != None {
		st.instOf[sj] = i
	}
	if si != None {
		st.instOf[si] = j
	}
	return nil
}

// Coord returns the (x, y) of instIdx's current slot, and false if
// the instance is unbound.
func (st *State) Coord(instIdx int) (x, y int, ok bool) {
	slotIdx := st.slotOf[instIdx]
	if slotIdx == None {
		return 0, 0, false
	}
	s := st.fab.Slot(slotIdx)
	return s.X, s.Y, true
}

// BoundInstances returns, in instance order, the indices of every
// currently-bound instance.
func (st *State) BoundInstances() []int {
	out := make([]int, 0, len(st.slotOf))
	for i, s := range st.slotOf {
		if s != None {
			out = append(out, i)
		}
	}
	return out
}

// Verify checks the bijection invariant holds: every bound instance's
// slot maps back to it, and vice versa.
func (st *State) Verify() error {
	for i, s := range st.slotOf {
		if s == None {
			continue
		}
		if st.instOf[s] != i {
			return errors.Errorf("bijection broken: slotOf[%d]=%d but instOf[%d]=%d", i, s, s, st.instOf[s])
		}
		if !Compatible(st.nl.Instances[i].Kind, st.fab.Slot(s).Kind) {
			return errors.Wrapf(ErrKindMismatch, "instance %q bound to incompatible slot %q", st.nl.Instances[i].Name, st.fab.Slot(s).ID)
		}
	}
	return nil
}
