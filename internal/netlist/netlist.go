// Package netlist models the gate-level netlist produced by synthesis:
// instances, the hyperedge nets that connect their pins, and the
// fanout/adjacency views the cost model and seeder need.
//
// Net and Instance are mutually referential, so this is modeled as
// two flat slices plus a Pin table, never owning back-pointers —
// adjacency is always an index lookup.
package netlist

import (
	"strings"

	"github.com/pkg/errors"
)

// CellKind is the logical kind of an instance.
type CellKind int

const (
	Combinational CellKind = iota
	Sequential
	IOCell
	Tie
)

func (k CellKind) String() string {
	switch k {
	case Combinational:
		return "COMB"
	case Sequential:
		return "SEQ"
	case IOCell:
		return "IO"
	case Tie:
		return "TIE"
	default:
		return "UNKNOWN"
	}
}

// PinRole distinguishes the single driver of a net from its sinks.
type PinRole int

const (
	RoleDriver PinRole = iota
	RoleSink
)

// Pin is a flat occurrence of an instance's pin on a net, shared by
// the netlist and the cost model. Neither Instance nor Net stores
// owning Pin pointers; everything is an index into Pins.
type Pin struct {
	InstIdx int
	NetIdx  int
	Role    PinRole
}

// Instance is one logical gate awaiting a slot assignment. It is
// immutable except for the slot binding tracked by the placement
// package.
type Instance struct {
	Name   string
	Kind   CellKind
	Cell   string // mapped library cell, pass-through for the ECO rewriter
	PinIdx []int  // indices into Netlist.Pins belonging to this instance
}

// Net is a hyperedge: one driver pin plus one or more sink pins.
type Net struct {
	Name    string
	PinIdx  []int // indices into Netlist.Pins, driver first
	IsClock bool
}

// InstanceSpec and NetSpec are the rows an external design loader
// builds from the mapped-design file.
type InstanceSpec struct {
	Name string
	Kind CellKind
	Cell string
}

// NetSpec names its driver and sinks as "instance.pin" references.
// Only the instance side is tracked here — the netlist does not model
// named pins beyond role and instance, matching the flat
// (inst_idx, net_idx, role) Pin table above.
type NetSpec struct {
	Name   string
	Driver string // "instance.pin"; may be empty only for the clock net
	Sinks  []string
}

// Spec is the fully-described design an external loader constructs
// from a mapped design file.
type Spec struct {
	Instances []InstanceSpec
	Nets      []NetSpec
}

// ErrInvalidNetlist is the sentinel for dangling pin references,
// duplicate instance names, or a net with no driver.
var ErrInvalidNetlist = errors.New("invalid netlist")

// Netlist is the immutable set of instances, nets, and pins built
// from a design spec.
type Netlist struct {
	Instances []Instance
	Nets      []Net
	Pins      []Pin

	instByName map[string]int
	netByName  map[string]int
	adjacency  [][]int // instIdx -> deduplicated net indices touching it
	clockNet   int     // index into Nets, or -1 if none
}

func instPinRef(ref string) (inst string) {
	i := strings.LastIndexByte(ref, '.')
	if i < 0 {
		return ref
	}
	return ref[:i]
}

// New validates and builds a Netlist from spec.
func New(spec Spec) (*Netlist, error) {
	nl := &Netlist{
		instByName: make(map[string]int, len(spec.Instances)),
		netByName:  make(map[string]int, len(spec.Nets)),
		clockNet:   -1,
	}

	nl.Instances = make([]Instance, len(spec.Instances))
	for i, is := range spec.Instances {
		if _, dup := nl.instByName[is.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidNetlist, "duplicate instance name %q", is.Name)
		}
		nl.Instances[i] = Instance{Name: is.Name, Kind: is.Kind, Cell: is.Cell}
		nl.instByName[is.Name] = i
	}

	nl.Nets = make([]Net, len(spec.Nets))
	for i, ns := range spec.Nets {
		if _, dup := nl.netByName[ns.Name]; dup {
			return nil, errors.Wrapf(ErrInvalidNetlist, "duplicate net name %q", ns.Name)
		}
		isClock := strings.EqualFold(ns.Name, "clk")
		nl.Nets[i] = Net{Name: ns.Name, IsClock: isClock}
		nl.netByName[ns.Name] = i
		if isClock {
			nl.clockNet = i
		}
	}

	nl.adjacency = make([][]int, len(nl.Instances))
	seenPerInst := make([]map[int]bool, len(nl.Instances))
	for i := range seenPerInst {
		seenPerInst[i] = make(map[int]bool)
	}

	addPin := func(ref string, netIdx int, role PinRole) error {
		if ref == "" {
			if role == RoleDriver {
				return nil // undriven net is validated separately
			}
			return errors.Wrapf(ErrInvalidNetlist, "net %q has an empty sink reference", spec.Nets[netIdx].Name)
		}
		instName := instPinRef(ref)
		instIdx, ok := nl.instByName[instName]
		if !ok {
			return errors.Wrapf(ErrInvalidNetlist, "net %q references unknown instance %q", spec.Nets[netIdx].Name, instName)
		}
		pinIdx := len(nl.Pins)
		nl.Pins = append(nl.Pins, Pin{InstIdx: instIdx, NetIdx: netIdx, Role: role})
		nl.Nets[netIdx].PinIdx = append(nl.Nets[netIdx].PinIdx, pinIdx)
		nl.Instances[instIdx].PinIdx = append(nl.Instances[instIdx].PinIdx, pinIdx)
		if !seenPerInst[instIdx][netIdx] {
			seenPerInst[instIdx][netIdx] = true
			nl.adjacency[instIdx] = append(nl.adjacency[instIdx], netIdx)
		}
		return nil
	}

	for i, ns := range spec.Nets {
		if ns.Driver == "" && !strings.EqualFold(ns.Name, "clk") {
			return nil, errors.Wrapf(ErrInvalidNetlist, "net %q has no driver", ns.Name)
		}
		if err := addPin(ns.Driver, i, RoleDriver); err != nil {
			return nil, err
		}
		if len(ns.Sinks) == 0 {
			return nil, errors.Wrapf(ErrInvalidNetlist, "net %q has no sinks", ns.Name)
		}
		for _, s := range ns.Sinks {
			if err := addPin(s, i, RoleSink); err != nil {
				return nil, err
			}
		}
	}

	return nl, nil
}

// Instance looks up an instance by name.
func (nl *Netlist) Instance(name string) (int, bool) {
	idx, ok := nl.instByName[name]
	return idx, ok
}

// Net looks up a net by name.
func (nl *Netlist) Net(name string) (int, bool) {
	idx, ok := nl.netByName[name]
	return idx, ok
}

// ClockNet returns the index of the distinguished clock net, or -1 if
// the design has none.
func (nl *Netlist) ClockNet() int { return nl.clockNet }

// NetsOf returns the deduplicated net indices touching instIdx's pins.
func (nl *Netlist) NetsOf(instIdx int) []int {
	return nl.adjacency[instIdx]
}

// Fanout is the number of sink pins on the nets instIdx drives.
func (nl *Netlist) Fanout(instIdx int) int {
	total := 0
	for _, netIdx := range nl.adjacency[instIdx] {
		net := nl.Nets[netIdx]
		for _, pinIdx := range net.PinIdx {
			if nl.Pins[pinIdx].InstIdx == instIdx && nl.Pins[pinIdx].Role == RoleDriver {
				for _, p2 := range net.PinIdx {
					if nl.Pins[p2].Role == RoleSink {
						total++
					}
				}
			}
		}
	}
	return total
}

// Sinks returns the instance indices of every sink pin on netIdx.
func (nl *Netlist) Sinks(netIdx int) []int {
	net := nl.Nets[netIdx]
	var out []int
	for _, pinIdx := range net.PinIdx {
		if nl.Pins[pinIdx].Role == RoleSink {
			out = append(out, nl.Pins[pinIdx].InstIdx)
		}
	}
	return out
}

// Driver returns the driving instance index of netIdx, and false if
// the net is undriven (only possible for the clock net).
func (nl *Netlist) Driver(netIdx int) (int, bool) {
	net := nl.Nets[netIdx]
	for _, pinIdx := range net.PinIdx {
		if nl.Pins[pinIdx].Role == RoleDriver {
			return nl.Pins[pinIdx].InstIdx, true
		}
	}
	return 0, false
}

// DFFs returns the instance indices of every sequential instance, in
// instance order — these are the CTS sinks.
func (nl *Netlist) DFFs() []int {
	var out []int
	for i, inst := range nl.Instances {
		if inst.Kind == Sequential {
			out = append(out, i)
		}
	}
	return out
}
