// Package ioload is the external boundary of the placement engine:
// JSON readers for the fabric specification and mapped design, and
// writers for the placement map, clock tree record, ECO netlist, and
// SA trace. Format is this package's concern alone — the core
// packages never see a file path or an encoding.
package ioload

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"structplace/internal/anneal"
	"structplace/internal/cts"
	"structplace/internal/eco"
	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/placement"
)

// FabricJSON is the on-disk shape of a fabric specification: a die
// bounding box and a flat slot list.
type FabricJSON struct {
	DieW  int        `json:"die_w"`
	DieH  int        `json:"die_h"`
	Slots []SlotJSON `json:"slots"`
}

// SlotJSON is one row of a fabric specification.
type SlotJSON struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	X    int    `json:"x_um"`
	Y    int    `json:"y_um"`
	Kind string `json:"kind"`
}

func parseSlotKind(s string) (fabric.SlotKind, error) {
	switch s {
	case "LOGIC":
		return fabric.LOGIC, nil
	case "DFF":
		return fabric.DFF, nil
	case "IO":
		return fabric.IO, nil
	case "TIE":
		return fabric.TIE, nil
	default:
		return 0, fmt.Errorf("unknown slot kind %q", s)
	}
}

// ReadFabric loads and validates a fabric specification file.
func ReadFabric(path string) (*fabric.Fabric, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fabric spec: %w", err)
	}
	var fj FabricJSON
	if err := json.Unmarshal(data, &fj); err != nil {
		return nil, fmt.Errorf("parsing fabric spec JSON: %w", err)
	}

	spec := fabric.Spec{DieW: fj.DieW, DieH: fj.DieH, Slots: make([]fabric.SlotSpec, len(fj.Slots))}
	for i, s := range fj.Slots {
		kind, err := parseSlotKind(s.Kind)
		if err != nil {
			return nil, fmt.Errorf("fabric spec slot %q: %w", s.ID, err)
		}
		spec.Slots[i] = fabric.SlotSpec{ID: s.ID, Name: s.Name, X: s.X, Y: s.Y, Kind: kind}
	}
	fab, err := fabric.New(spec)
	if err != nil {
		return nil, err
	}
	return fab, nil
}

// DesignJSON is the on-disk shape of a mapped design: instances plus
// nets naming their driver and sinks as "instance.pin" references.
type DesignJSON struct {
	Instances []InstanceJSON `json:"instances"`
	Nets      []NetJSON      `json:"nets"`
}

// InstanceJSON is one instance row.
type InstanceJSON struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
	Cell string `json:"cell,omitempty"`
}

// NetJSON is one net row.
type NetJSON struct {
	Name   string   `json:"name"`
	Driver string   `json:"driver,omitempty"`
	Sinks  []string `json:"sinks"`
}

func parseCellKind(s string) (netlist.CellKind, error) {
	switch s {
	case "COMB":
		return netlist.Combinational, nil
	case "SEQ":
		return netlist.Sequential, nil
	case "IO":
		return netlist.IOCell, nil
	case "TIE":
		return netlist.Tie, nil
	default:
		return 0, fmt.Errorf("unknown cell kind %q", s)
	}
}

// ReadDesign loads and validates a mapped design file.
func ReadDesign(path string) (*netlist.Netlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading design: %w", err)
	}
	var dj DesignJSON
	if err := json.Unmarshal(data, &dj); err != nil {
		return nil, fmt.Errorf("parsing design JSON: %w", err)
	}

	spec := netlist.Spec{
		Instances: make([]netlist.InstanceSpec, len(dj.Instances)),
		Nets:      make([]netlist.NetSpec, len(dj.Nets)),
	}
	for i, is := range dj.Instances {
		kind, err := parseCellKind(is.Kind)
		if err != nil {
			return nil, fmt.Errorf("design instance %q: %w", is.Name, err)
		}
		spec.Instances[i] = netlist.InstanceSpec{Name: is.Name, Kind: kind, Cell: is.Cell}
	}
	for i, ns := range dj.Nets {
		spec.Nets[i] = netlist.NetSpec{Name: ns.Name, Driver: ns.Driver, Sinks: ns.Sinks}
	}
	nl, err := netlist.New(spec)
	if err != nil {
		return nil, err
	}
	return nl, nil
}

// WritePlacement writes the deterministic text placement map:
// "instance_name slot_id x_um y_um" sorted by instance name, one per
// line.
func WritePlacement(path string, fab *fabric.Fabric, nl *netlist.Netlist, st *placement.State) error {
	type row struct {
		name   string
		slotID string
		x, y   int
	}
	var rows []row
	for i, inst := range nl.Instances {
		slotIdx := st.SlotOf(i)
		if slotIdx == placement.None {
			continue
		}
		s := fab.Slot(slotIdx)
		rows = append(rows, row{name: inst.Name, slotID: s.ID, x: s.X, y: s.Y})
	}
	sort.Slice(rows, func(a, b int) bool { return rows[a].name < rows[b].name })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating placement map: %w", err)
	}
	defer f.Close()
	for _, r := range rows {
		if _, err := fmt.Fprintf(f, "%s %s %d %d\n", r.name, r.slotID, r.x, r.y); err != nil {
			return fmt.Errorf("writing placement map: %w", err)
		}
	}
	return nil
}

// ReadPlacement parses a previously-written placement map back into a
// placement.State, so the cts and eco subcommands can run over an
// externally-produced or previously-computed placement without
// re-running the seeder and SA.
func ReadPlacement(path string, fab *fabric.Fabric, nl *netlist.Netlist) (*placement.State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading placement map: %w", err)
	}
	st := placement.New(fab, nl)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 4 {
			return nil, fmt.Errorf("parsing placement map: malformed line %q", line)
		}
		instIdx, ok := nl.Instance(fields[0])
		if !ok {
			return nil, fmt.Errorf("parsing placement map: unknown instance %q", fields[0])
		}
		slotIdx, ok := fab.IndexOf(fields[1])
		if !ok {
			return nil, fmt.Errorf("parsing placement map: unknown slot %q", fields[1])
		}
		if err := st.Bind(instIdx, slotIdx); err != nil {
			return nil, fmt.Errorf("parsing placement map: %w", err)
		}
	}
	return st, nil
}

// ClockTreeJSON is the nested record shape of the clock tree: for
// every node, its id, coordinates, and the ids of its children.
type ClockTreeJSON struct {
	Root  string              `json:"root,omitempty"`
	Nodes []ClockTreeNodeJSON `json:"nodes"`
}

// ClockTreeNodeJSON is one clock-tree node row. Children is the list
// of child node or DFF ids, whichever this node actually drives.
type ClockTreeNodeJSON struct {
	ID       string   `json:"id"`
	SlotID   string   `json:"slot_id"`
	Cell     string   `json:"cell"`
	X        int      `json:"x_um"`
	Y        int      `json:"y_um"`
	Children []string `json:"children"`
}

// WriteClockTree writes the synthesized clock tree as the nested
// ClockTreeJSON record.
func WriteClockTree(path string, fab *fabric.Fabric, nl *netlist.Netlist, tree *cts.Tree) error {
	tj := ClockTreeJSON{}
	if tree.Root >= 0 {
		tj.Root = tree.Buffers[tree.Root].ID
	}
	for _, buf := range tree.Buffers {
		var children []string
		for _, c := range buf.ChildBuffers {
			children = append(children, tree.Buffers[c].ID)
		}
		for _, d := range buf.ChildDFFs {
			children = append(children, nl.Instances[d].Name)
		}
		tj.Nodes = append(tj.Nodes, ClockTreeNodeJSON{
			ID: buf.ID, SlotID: fab.Slot(buf.SlotIdx).ID, Cell: buf.Cell,
			X: buf.X, Y: buf.Y, Children: children,
		})
	}

	data, err := json.MarshalIndent(tj, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling clock tree: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing clock tree: %w", err)
	}
	return nil
}

// ReadClockTree parses a previously-written clock tree record back
// into a cts.Tree, so the eco subcommand can run over a separately
// computed CTS result.
func ReadClockTree(path string, fab *fabric.Fabric, nl *netlist.Netlist) (*cts.Tree, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading clock tree: %w", err)
	}
	var tj ClockTreeJSON
	if err := json.Unmarshal(data, &tj); err != nil {
		return nil, fmt.Errorf("parsing clock tree JSON: %w", err)
	}
	if len(tj.Nodes) == 0 {
		return &cts.Tree{Root: -1}, nil
	}

	isBuffer := make(map[string]bool, len(tj.Nodes))
	for _, n := range tj.Nodes {
		isBuffer[n.ID] = true
	}
	indexByID := make(map[string]int, len(tj.Nodes))
	for i, n := range tj.Nodes {
		indexByID[n.ID] = i
	}

	buffers := make([]cts.Buffer, len(tj.Nodes))
	for i, n := range tj.Nodes {
		slotIdx, ok := fab.IndexOf(n.SlotID)
		if !ok {
			return nil, fmt.Errorf("parsing clock tree: unknown slot %q for buffer %q", n.SlotID, n.ID)
		}
		buf := cts.Buffer{ID: n.ID, X: n.X, Y: n.Y, SlotIdx: slotIdx, Cell: n.Cell}
		for _, childID := range n.Children {
			if isBuffer[childID] {
				buf.ChildBuffers = append(buf.ChildBuffers, indexByID[childID])
				continue
			}
			instIdx, ok := nl.Instance(childID)
			if !ok {
				return nil, fmt.Errorf("parsing clock tree: unknown DFF %q", childID)
			}
			buf.ChildDFFs = append(buf.ChildDFFs, instIdx)
		}
		buffers[i] = buf
	}

	root, ok := indexByID[tj.Root]
	if !ok {
		return nil, fmt.Errorf("parsing clock tree: unknown root %q", tj.Root)
	}
	return &cts.Tree{Buffers: buffers, Root: root}, nil
}

// EcoJSON is the tool-agnostic gate-level intermediate form of the
// final netlist: cells, pins, and nets.
type EcoJSON struct {
	Instances []EcoInstanceJSON `json:"instances"`
	Nets      []EcoNetJSON      `json:"nets"`
}

// EcoInstanceJSON is one final, renamed cell.
type EcoInstanceJSON struct {
	Name string `json:"name"`
	Cell string `json:"cell"`
}

// EcoNetJSON is one final net, naming its driver and sinks as
// "instance.pin" references. A blank instance denotes a top-level
// port.
type EcoNetJSON struct {
	Name    string   `json:"name"`
	Driver  string   `json:"driver"`
	Sinks   []string `json:"sinks"`
	IsClock bool     `json:"is_clock,omitempty"`
}

func pinRef(p eco.PinRef) string {
	if p.Instance == "" {
		return p.Pin
	}
	return p.Instance + "." + p.Pin
}

// WriteEco writes the final ECO-rewritten netlist.
func WriteEco(path string, res *eco.Result) error {
	ej := EcoJSON{}
	for _, inst := range res.Instances {
		ej.Instances = append(ej.Instances, EcoInstanceJSON{Name: inst.Name, Cell: inst.Cell})
	}
	for _, n := range res.Nets {
		var sinks []string
		for _, s := range n.Sinks {
			sinks = append(sinks, pinRef(s))
		}
		ej.Nets = append(ej.Nets, EcoNetJSON{Name: n.Name, Driver: pinRef(n.Driver), Sinks: sinks, IsClock: n.IsClock})
	}

	data, err := json.MarshalIndent(ej, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling eco netlist: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing eco netlist: %w", err)
	}
	return nil
}

// WriteTrace writes one anneal.Sample per temperature boundary as a
// CSV trace, suitable for plotting cooling curves offline.
func WriteTrace(path string, samples []anneal.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating SA trace: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"t", "attempts", "accepts", "current_cost", "elapsed_ms"}); err != nil {
		return fmt.Errorf("writing SA trace header: %w", err)
	}
	for _, s := range samples {
		row := []string{
			strconv.FormatFloat(s.T, 'f', -1, 64),
			strconv.Itoa(s.Attempts),
			strconv.Itoa(s.Accepts),
			strconv.Itoa(s.Cost),
			strconv.FormatInt(s.ElapsedMS, 10),
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing SA trace row: %w", err)
		}
	}
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing SA trace: %w", err)
	}
	return nil
}
