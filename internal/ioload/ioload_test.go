package ioload

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"structplace/internal/anneal"
	"structplace/internal/cts"
	"structplace/internal/eco"
	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/placement"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing fixture %s: %v", name, err)
	}
	return path
}

func TestReadFabricRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fabric.json", `{
		"die_w": 10, "die_h": 10,
		"slots": [
			{"id": "s0", "x_um": 0, "y_um": 0, "kind": "LOGIC"},
			{"id": "d0", "name": "SLOT_D0", "x_um": 10, "y_um": 10, "kind": "DFF"}
		]
	}`)
	fab, err := ReadFabric(path)
	if err != nil {
		t.Fatalf("ReadFabric: %v", err)
	}
	if fab.NumSlots() != 2 {
		t.Fatalf("NumSlots = %d, want 2", fab.NumSlots())
	}
	idx, ok := fab.IndexOf("d0")
	if !ok {
		t.Fatal("slot d0 missing")
	}
	if fab.Slot(idx).Name != "SLOT_D0" {
		t.Errorf("slot name = %q, want SLOT_D0", fab.Slot(idx).Name)
	}
}

func TestReadFabricRejectsUnknownKind(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "fabric.json", `{"die_w":1,"die_h":1,"slots":[{"id":"s0","x_um":0,"y_um":0,"kind":"BOGUS"}]}`)
	if _, err := ReadFabric(path); err == nil {
		t.Fatal("expected error for unknown slot kind")
	}
}

func TestReadDesignRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "design.json", `{
		"instances": [
			{"name": "a", "kind": "COMB", "cell": "AND2"},
			{"name": "b", "kind": "COMB", "cell": "OR2"}
		],
		"nets": [
			{"name": "n1", "driver": "a.o", "sinks": ["b.i"]}
		]
	}`)
	nl, err := ReadDesign(path)
	if err != nil {
		t.Fatalf("ReadDesign: %v", err)
	}
	if len(nl.Instances) != 2 || len(nl.Nets) != 1 {
		t.Fatalf("got %d instances, %d nets", len(nl.Instances), len(nl.Nets))
	}
}

func TestWritePlacementSortedByName(t *testing.T) {
	dir := t.TempDir()
	fab, err := fabric.New(fabric.Spec{
		DieW: 10, DieH: 10,
		Slots: []fabric.SlotSpec{
			{ID: "s0", X: 0, Y: 0, Kind: fabric.LOGIC},
			{ID: "s1", X: 10, Y: 0, Kind: fabric.LOGIC},
		},
	})
	if err != nil {
		t.Fatalf("fabric.New: %v", err)
	}
	nl, err := netlist.New(netlist.Spec{
		Instances: []netlist.InstanceSpec{
			{Name: "zed", Kind: netlist.Combinational},
			{Name: "alpha", Kind: netlist.Combinational},
		},
		Nets: []netlist.NetSpec{{Name: "n1", Driver: "zed.o", Sinks: []string{"alpha.i"}}},
	})
	if err != nil {
		t.Fatalf("netlist.New: %v", err)
	}
	st := placement.New(fab, nl)
	_ = st.Bind(0, 0) // zed
	_ = st.Bind(1, 1) // alpha

	path := filepath.Join(dir, "placement.txt")
	if err := WritePlacement(path, fab, nl, st); err != nil {
		t.Fatalf("WritePlacement: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "alpha ") {
		t.Errorf("first line = %q, want alpha first (sorted by name)", lines[0])
	}
	if !strings.HasPrefix(lines[1], "zed ") {
		t.Errorf("second line = %q, want zed second", lines[1])
	}

	roundTripped, err := ReadPlacement(path, fab, nl)
	if err != nil {
		t.Fatalf("ReadPlacement: %v", err)
	}
	if roundTripped.SlotOf(0) != st.SlotOf(0) || roundTripped.SlotOf(1) != st.SlotOf(1) {
		t.Errorf("round-tripped placement diverged: zed=%d alpha=%d", roundTripped.SlotOf(0), roundTripped.SlotOf(1))
	}
}

func TestWriteClockTreeAndEcoAndTrace(t *testing.T) {
	dir := t.TempDir()

	fab, err := fabric.New(fabric.Spec{
		DieW: 10, DieH: 10,
		Slots: []fabric.SlotSpec{
			{ID: "d0", X: 0, Y: 0, Kind: fabric.DFF},
			{ID: "d1", X: 10, Y: 0, Kind: fabric.DFF},
			{ID: "buf_slot", X: 5, Y: 5, Kind: fabric.LOGIC},
		},
	})
	if err != nil {
		t.Fatalf("fabric.New: %v", err)
	}
	tree := &cts.Tree{
		Root: 0,
		Buffers: []cts.Buffer{
			{ID: "buf0", X: 5, Y: 5, SlotIdx: 2, Cell: "CLKBUF_X1", ChildDFFs: []int{0, 1}},
		},
	}
	nl, err := netlist.New(netlist.Spec{
		Instances: []netlist.InstanceSpec{
			{Name: "ff0", Kind: netlist.Sequential},
			{Name: "ff1", Kind: netlist.Sequential},
		},
		Nets: []netlist.NetSpec{{Name: "clk", Sinks: []string{"ff0.clk", "ff1.clk"}}},
	})
	if err != nil {
		t.Fatalf("netlist.New: %v", err)
	}
	treePath := filepath.Join(dir, "tree.json")
	if err := WriteClockTree(treePath, fab, nl, tree); err != nil {
		t.Fatalf("WriteClockTree: %v", err)
	}
	if data, err := os.ReadFile(treePath); err != nil || !strings.Contains(string(data), "ff0") {
		t.Fatalf("clock tree output missing ff0: err=%v data=%s", err, data)
	}

	roundTripped, err := ReadClockTree(treePath, fab, nl)
	if err != nil {
		t.Fatalf("ReadClockTree: %v", err)
	}
	if len(roundTripped.Buffers) != 1 || len(roundTripped.Buffers[0].ChildDFFs) != 2 {
		t.Fatalf("round-tripped tree = %+v, want 1 buffer with 2 DFF children", roundTripped)
	}

	ecoRes := &eco.Result{
		Instances: []eco.Instance{{Name: "slot_0", Cell: "AND2"}},
		Nets: []eco.Net{
			{Name: "n1", Driver: eco.PinRef{Instance: "slot_0", Pin: "out"}, Sinks: []eco.PinRef{{Instance: "slot_1", Pin: "in"}}},
		},
	}
	ecoPath := filepath.Join(dir, "eco.json")
	if err := WriteEco(ecoPath, ecoRes); err != nil {
		t.Fatalf("WriteEco: %v", err)
	}

	tracePath := filepath.Join(dir, "trace.csv")
	samples := []anneal.Sample{{T: 100, Attempts: 10, Accepts: 3, Cost: 42, ElapsedMS: 5}}
	if err := WriteTrace(tracePath, samples); err != nil {
		t.Fatalf("WriteTrace: %v", err)
	}
	data, err := os.ReadFile(tracePath)
	if err != nil {
		t.Fatalf("reading trace: %v", err)
	}
	if !strings.Contains(string(data), "current_cost") || !strings.Contains(string(data), "42") {
		t.Errorf("trace csv missing expected content: %s", data)
	}
}
