// Package fabric models the pre-fabricated, immutable slot grid of a
// structured-ASIC die: every logic, flip-flop, I/O, and tie site the
// silicon actually offers, fixed before any netlist is ever placed.
package fabric

import (
	"sort"

	"github.com/pkg/errors"
)

// SlotKind is the physical kind of a fabric slot. The tag set is
// closed and small, so it is modeled as an enum rather than an
// interface hierarchy.
type SlotKind int

const (
	LOGIC SlotKind = iota
	DFF
	IO
	TIE
)

func (k SlotKind) String() string {
	switch k {
	case LOGIC:
		return "LOGIC"
	case DFF:
		return "DFF"
	case IO:
		return "IO"
	case TIE:
		return "TIE"
	default:
		return "UNKNOWN"
	}
}

// Slot is one physical site on the die.
type Slot struct {
	ID   string
	Name string // canonical fabric name, e.g. "SLOT_R3C7"; optional
	X, Y int
	Kind SlotKind
}

// SlotSpec is the row shape a fabric loader hands to New.
type SlotSpec struct {
	ID   string
	Name string
	X, Y int
	Kind SlotKind
}

// Spec is the fully-described fabric an external loader constructs
// from a fabric specification file.
type Spec struct {
	DieW, DieH int
	Slots      []SlotSpec
}

// ErrInvalidFabric is the sentinel for every fabric construction
// failure: duplicate slot id, out-of-bounds coordinate, or an empty
// fabric.
var ErrInvalidFabric = errors.New("invalid fabric")

// Fabric is the immutable slot grid. Once built it is never mutated;
// many placement runs may share one Fabric value.
type Fabric struct {
	slots    []Slot              // in construction order
	byID     map[string]int      // slot id -> index into slots
	byKind   map[SlotKind][]int  // stable, insertion-order slot indices per kind
	rowMajor []int               // indices into slots, sorted row-major (y then x)
	dieW     int
	dieH     int
}

// New validates and builds a Fabric from spec. Coordinates must be
// non-negative and inside the die box; slot ids must be distinct; the
// fabric must not be empty.
func New(spec Spec) (*Fabric, error) {
	if len(spec.Slots) == 0 {
		return nil, errors.Wrap(ErrInvalidFabric, "empty fabric")
	}
	if spec.DieW < 0 || spec.DieH < 0 {
		return nil, errors.Wrapf(ErrInvalidFabric, "negative die box %dx%d", spec.DieW, spec.DieH)
	}

	f := &Fabric{
		byID:   make(map[string]int, len(spec.Slots)),
		byKind: make(map[SlotKind][]int),
		dieW:   spec.DieW,
		dieH:   spec.DieH,
	}

	for _, s := range spec.Slots {
		if _, dup := f.byID[s.ID]; dup {
			return nil, errors.Wrapf(ErrInvalidFabric, "duplicate slot id %q", s.ID)
		}
		if s.X < 0 || s.Y < 0 || s.X > spec.DieW || s.Y > spec.DieH {
			return nil, errors.Wrapf(ErrInvalidFabric, "slot %q coordinate (%d,%d) outside die box %dx%d", s.ID, s.X, s.Y, spec.DieW, spec.DieH)
		}
		idx := len(f.slots)
		f.slots = append(f.slots, Slot{ID: s.ID, Name: s.Name, X: s.X, Y: s.Y, Kind: s.Kind})
		f.byID[s.ID] = idx
		f.byKind[s.Kind] = append(f.byKind[s.Kind], idx)
	}

	f.rowMajor = make([]int, len(f.slots))
	for i := range f.rowMajor {
		f.rowMajor[i] = i
	}
	sort.SliceStable(f.rowMajor, func(a, b int) bool {
		sa, sb := f.slots[f.rowMajor[a]], f.slots[f.rowMajor[b]]
		if sa.Y != sb.Y {
			return sa.Y < sb.Y
		}
		return sa.X < sb.X
	})

	return f, nil
}

// NumSlots returns the total slot count.
func (f *Fabric) NumSlots() int { return len(f.slots) }

// DieBox returns the die bounding box width and height.
func (f *Fabric) DieBox() (w, h int) { return f.dieW, f.dieH }

// Slot returns the slot at index idx. Callers index slots by the
// integer position returned from lookups below, never by ID, once
// construction is complete.
func (f *Fabric) Slot(idx int) Slot { return f.slots[idx] }

// IndexOf resolves a slot's external id to its internal index.
func (f *Fabric) IndexOf(id string) (int, bool) {
	idx, ok := f.byID[id]
	return idx, ok
}

// SlotsOfKind returns the stable, insertion-order indices of every
// slot of the given kind. The seeder and the SA refiner both rely on
// this order-preserving view to keep nearest-slot tie-breaks
// deterministic.
func (f *Fabric) SlotsOfKind(kind SlotKind) []int {
	return f.byKind[kind]
}

// RowMajor returns every slot index in row-major order (y ascending,
// then x ascending).
func (f *Fabric) RowMajor() []int { return f.rowMajor }

// ManhattanDiameter is the sum of the die box's width and height, used
// by the SA refiner to size its refine-move window relative to
// temperature.
func (f *Fabric) ManhattanDiameter() int { return f.dieW + f.dieH }
