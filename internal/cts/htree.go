// Package cts implements an H-tree clock tree synthesizer: recursive
// geometric bisection over flip-flop sink coordinates producing a
// balanced buffer tree, each buffer bound to a fabric slot of its
// own.
package cts

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/numeric"
	"structplace/internal/placement"
)

// ErrNoBufferSlot is fatal: CTS ran out of fabric slots for an
// inserted buffer.
var ErrNoBufferSlot = errors.New("no buffer slot available")

// Buffer is one synthesized clock-tree node. A buffer with ChildDFFs
// set is a leaf-level buffer driving DFF sink pins directly; one with
// ChildBuffers set is an internal node.
type Buffer struct {
	ID           string
	X, Y         int
	SlotIdx      int
	Cell         string
	ChildBuffers []int // indices into Tree.Buffers
	ChildDFFs    []int // instance indices into the netlist
}

// Tree is the complete synthesized clock tree.
type Tree struct {
	Buffers []Buffer
	Root    int // index into Buffers
}

// Params configures H-tree synthesis.
type Params struct {
	MaxFanout  int    // default 4
	BufferCell string // designated buffer cell name, default "CLKBUF_X1"
}

// DefaultParams returns the default max fanout of 4 per leaf buffer.
func DefaultParams() Params {
	return Params{MaxFanout: 4, BufferCell: "CLKBUF_X1"}
}

// builder carries the mutable state of one Build call: the growing
// buffer list and the set of fabric slots it has claimed so two
// buffers never collide, even though the underlying placement.State
// only tracks the original netlist's instances.
type builder struct {
	fab     *fabric.Fabric
	st      *placement.State
	nl      *netlist.Netlist
	params  Params
	buffers []Buffer
	claimed map[int]bool
	nextID  int
}

// Build synthesizes an H-tree over every DFF instance's current
// placement. st must already have every DFF bound to a slot.
func Build(fab *fabric.Fabric, nl *netlist.Netlist, st *placement.State, params Params) (*Tree, error) {
	dffs := nl.DFFs()
	if len(dffs) == 0 {
		return &Tree{Root: -1}, nil
	}
	if params.MaxFanout < 2 {
		params.MaxFanout = 2
	}

	b := &builder{fab: fab, st: st, nl: nl, params: params, claimed: make(map[int]bool)}

	for _, d := range dffs {
		if _, _, ok := st.Coord(d); !ok {
			return nil, errors.Errorf("cts: DFF %q has no placement", nl.Instances[d].Name)
		}
	}

	sortByName(nl, dffs)
	root, err := b.build(dffs)
	if err != nil {
		return nil, err
	}
	return &Tree{Buffers: b.buffers, Root: root}, nil
}

func (b *builder) build(sinks []int) (int, error) {
	if len(sinks) <= b.params.MaxFanout {
		cx, cy := b.centroid(sinks)
		slot, err := b.allocate(cx, cy)
		if err != nil {
			return -1, err
		}
		buf := Buffer{
			ID:        b.newID(),
			X:         cx,
			Y:         cy,
			SlotIdx:   slot,
			Cell:      b.params.BufferCell,
			ChildDFFs: append([]int(nil), sinks...),
		}
		b.buffers = append(b.buffers, buf)
		return len(b.buffers) - 1, nil
	}

	axis := b.widerAxis(sinks)
	sorted := append([]int(nil), sinks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		xi, yi, _ := b.st.Coord(sorted[i])
		xj, yj, _ := b.st.Coord(sorted[j])
		var ci, cj int
		if axis == 0 {
			ci, cj = xi, xj
		} else {
			ci, cj = yi, yj
		}
		if ci != cj {
			return ci < cj
		}
		return b.nl.Instances[sorted[i]].Name < b.nl.Instances[sorted[j]].Name
	})

	mid := len(sorted) / 2
	leftIdx, err := b.build(sorted[:mid])
	if err != nil {
		return -1, err
	}
	rightIdx, err := b.build(sorted[mid:])
	if err != nil {
		return -1, err
	}

	left, right := b.buffers[leftIdx], b.buffers[rightIdx]
	mx, my := (left.X+right.X)/2, (left.Y+right.Y)/2
	slot, err := b.allocate(mx, my)
	if err != nil {
		return -1, err
	}
	buf := Buffer{
		ID:           b.newID(),
		X:            mx,
		Y:            my,
		SlotIdx:      slot,
		Cell:         b.params.BufferCell,
		ChildBuffers: []int{leftIdx, rightIdx},
	}
	b.buffers = append(b.buffers, buf)
	return len(b.buffers) - 1, nil
}

// widerAxis reports which coordinate axis has the larger extent among
// sinks: 0 for x, 1 for y. Bisecting along the wider axis keeps the
// two halves roughly square instead of slicing a long thin strip.
func (b *builder) widerAxis(sinks []int) int {
	minX, maxX, minY, maxY := 0, 0, 0, 0
	for i, s := range sinks {
		x, y, _ := b.st.Coord(s)
		if i == 0 {
			minX, maxX, minY, maxY = x, x, y, y
			continue
		}
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
	if (maxX - minX) >= (maxY - minY) {
		return 0
	}
	return 1
}

func (b *builder) centroid(sinks []int) (int, int) {
	sumX, sumY := 0, 0
	for _, s := range sinks {
		x, y, _ := b.st.Coord(s)
		sumX += x
		sumY += y
	}
	return sumX / len(sinks), sumY / len(sinks)
}

// allocate claims the nearest free slot to (x, y), trying LOGIC first
// and falling back to DFF then IO if LOGIC is exhausted.
func (b *builder) allocate(x, y int) (int, error) {
	for _, kind := range []fabric.SlotKind{fabric.LOGIC, fabric.DFF, fabric.IO} {
		if slot, ok := b.nearestFree(kind, x, y); ok {
			b.claimed[slot] = true
			return slot, nil
		}
	}
	return -1, errors.Wrapf(ErrNoBufferSlot, "no free slot near (%d,%d)", x, y)
}

func (b *builder) nearestFree(kind fabric.SlotKind, x, y int) (int, bool) {
	best, bestDist := -1, 0
	for _, slot := range b.fab.SlotsOfKind(kind) {
		if b.st.InstOf(slot) != placement.None || b.claimed[slot] {
			continue
		}
		s := b.fab.Slot(slot)
		d := numeric.Manhattan(s.X, s.Y, x, y)
		if best == -1 || d < bestDist {
			best, bestDist = slot, d
		}
	}
	return best, best != -1
}

func (b *builder) newID() string {
	id := fmt.Sprintf("cts_buf_%d", b.nextID)
	b.nextID++
	return id
}

func sortByName(nl *netlist.Netlist, insts []int) {
	sort.SliceStable(insts, func(i, j int) bool {
		return nl.Instances[insts[i]].Name < nl.Instances[insts[j]].Name
	})
}
