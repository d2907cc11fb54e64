// Package eco implements the ECO rewriter: a pure function from
// (Netlist, Placement, ClockTree) to a final gate-level netlist. It
// inserts the synthesized clock buffers, rewires DFF clock pins off
// the flat clk net and onto their leaf buffer, and renames every
// instance to its bound fabric slot name.
package eco

import (
	"fmt"

	"github.com/pkg/errors"

	"structplace/internal/cts"
	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/placement"
)

// ErrEcoConflict is fatal: an instance lacks a slot binding, or two
// instances/buffers rename to the same slot name.
var ErrEcoConflict = errors.New("eco conflict")

// PinRef names one endpoint of a net in the rewritten netlist. An
// empty Instance denotes a top-level port (only the clk driver uses
// this).
type PinRef struct {
	Instance string
	Pin      string
}

// Instance is one cell in the rewritten netlist, named by its fabric
// slot rather than its original logical name.
type Instance struct {
	Name string
	Cell string
}

// Net is one net in the rewritten netlist.
type Net struct {
	Name    string
	Driver  PinRef
	Sinks   []PinRef
	IsClock bool
}

// Result is the complete rewritten, gate-level netlist: a
// tool-agnostic intermediate of cells, pins, and nets.
type Result struct {
	Instances []Instance
	Nets      []Net
}

// slotName renders a slot's final instance name: its canonical
// fabric name if one was given, otherwise "slot_<id>".
func slotName(fab *fabric.Fabric, slotIdx int) string {
	s := fab.Slot(slotIdx)
	if s.Name != "" {
		return s.Name
	}
	return fmt.Sprintf("slot_%s", s.ID)
}

// Rewrite produces the final netlist. It does not mutate nl, st, or
// tree.
func Rewrite(fab *fabric.Fabric, nl *netlist.Netlist, st *placement.State, tree *cts.Tree) (*Result, error) {
	used := make(map[string]bool)

	instName := make([]string, len(nl.Instances))
	for i := range nl.Instances {
		slotIdx := st.SlotOf(i)
		if slotIdx == placement.None {
			return nil, errors.Wrapf(ErrEcoConflict, "instance %q has no slot binding", nl.Instances[i].Name)
		}
		name := slotName(fab, slotIdx)
		if used[name] {
			return nil, errors.Wrapf(ErrEcoConflict, "rename collision: slot %q claimed by more than one instance", name)
		}
		used[name] = true
		instName[i] = name
	}

	var bufName []string
	if tree != nil {
		bufName = make([]string, len(tree.Buffers))
		for bi, buf := range tree.Buffers {
			name := slotName(fab, buf.SlotIdx)
			if used[name] {
				return nil, errors.Wrapf(ErrEcoConflict, "rename collision: slot %q claimed by a clock buffer and another instance", name)
			}
			used[name] = true
			bufName[bi] = name
		}
	}

	res := &Result{}
	for i, inst := range nl.Instances {
		res.Instances = append(res.Instances, Instance{Name: instName[i], Cell: inst.Cell})
	}
	if tree != nil {
		for bi, buf := range tree.Buffers {
			res.Instances = append(res.Instances, Instance{Name: bufName[bi], Cell: buf.Cell})
		}
	}

	for ni, net := range nl.Nets {
		if net.IsClock {
			continue // replaced below by the synthesized clock-tree nets
		}
		driverIdx, ok := nl.Driver(ni)
		if !ok {
			return nil, errors.Wrapf(ErrEcoConflict, "net %q has no driver", net.Name)
		}
		var sinks []PinRef
		for _, s := range nl.Sinks(ni) {
			sinks = append(sinks, PinRef{Instance: instName[s], Pin: "in"})
		}
		res.Nets = append(res.Nets, Net{
			Name:   net.Name,
			Driver: PinRef{Instance: instName[driverIdx], Pin: "out"},
			Sinks:  sinks,
		})
	}

	if tree != nil && tree.Root >= 0 {
		res.Nets = append(res.Nets, Net{
			Name:    "clk",
			Driver:  PinRef{Instance: "", Pin: "clk"}, // top-level port
			Sinks:   []PinRef{{Instance: bufName[tree.Root], Pin: "in"}},
			IsClock: true,
		})
		for bi, buf := range tree.Buffers {
			var sinks []PinRef
			for _, c := range buf.ChildBuffers {
				sinks = append(sinks, PinRef{Instance: bufName[c], Pin: "in"})
			}
			for _, d := range buf.ChildDFFs {
				sinks = append(sinks, PinRef{Instance: instName[d], Pin: "clk"})
			}
			if len(sinks) == 0 {
				continue
			}
			res.Nets = append(res.Nets, Net{
				Name:    fmt.Sprintf("clk_net_%s", bufName[bi]),
				Driver:  PinRef{Instance: bufName[bi], Pin: "out"},
				Sinks:   sinks,
				IsClock: true,
			})
		}
	} else if idx := nl.ClockNet(); idx >= 0 {
		// No clock tree was synthesized (e.g. a design with no DFFs);
		// carry the original clk net through unchanged, renamed.
		net := nl.Nets[idx]
		var sinks []PinRef
		for _, s := range nl.Sinks(idx) {
			sinks = append(sinks, PinRef{Instance: instName[s], Pin: "clk"})
		}
		res.Nets = append(res.Nets, Net{Name: net.Name, Driver: PinRef{Pin: "clk"}, Sinks: sinks, IsClock: true})
	}

	return res, nil
}
