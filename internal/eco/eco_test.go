package eco

import (
	"reflect"
	"testing"

	"structplace/internal/cts"
	"structplace/internal/fabric"
	"structplace/internal/netlist"
	"structplace/internal/placement"
)

func smallFixture(t *testing.T) (*fabric.Fabric, *netlist.Netlist, *placement.State) {
	t.Helper()
	fab, err := fabric.New(fabric.Spec{
		DieW: 20, DieH: 20,
		Slots: []fabric.SlotSpec{
			{ID: "l0", X: 0, Y: 0, Kind: fabric.LOGIC},
			{ID: "l1", X: 10, Y: 0, Kind: fabric.LOGIC},
			{ID: "d0", X: 0, Y: 10, Kind: fabric.DFF},
			{ID: "d1", X: 10, Y: 10, Kind: fabric.DFF},
			{ID: "spare", X: 20, Y: 20, Kind: fabric.LOGIC},
		},
	})
	if err != nil {
		t.Fatalf("fabric.New: %v", err)
	}
	nl, err := netlist.New(netlist.Spec{
		Instances: []netlist.InstanceSpec{
			{Name: "a", Kind: netlist.Combinational, Cell: "AND2"},
			{Name: "b", Kind: netlist.Combinational, Cell: "OR2"},
			{Name: "ff0", Kind: netlist.Sequential, Cell: "DFF"},
			{Name: "ff1", Kind: netlist.Sequential, Cell: "DFF"},
		},
		Nets: []netlist.NetSpec{
			{Name: "n1", Driver: "a.o", Sinks: []string{"b.i"}},
			{Name: "clk", Sinks: []string{"ff0.clk", "ff1.clk"}},
		},
	})
	if err != nil {
		t.Fatalf("netlist.New: %v", err)
	}
	st := placement.New(fab, nl)
	for i, slotID := range []string{"l0", "l1", "d0", "d1"} {
		idx, ok := fab.IndexOf(slotID)
		if !ok {
			t.Fatalf("missing slot %q", slotID)
		}
		if err := st.Bind(i, idx); err != nil {
			t.Fatalf("Bind(%d,%d): %v", i, idx, err)
		}
	}
	return fab, nl, st
}

func buildTree(t *testing.T, fab *fabric.Fabric, nl *netlist.Netlist, st *placement.State) *cts.Tree {
	t.Helper()
	tree, err := cts.Build(fab, nl, st, cts.Params{MaxFanout: 4, BufferCell: "CLKBUF_X1"})
	if err != nil {
		t.Fatalf("cts.Build: %v", err)
	}
	return tree
}

func TestRewriteRenamesEveryInstanceToItsSlot(t *testing.T) {
	fab, nl, st := smallFixture(t)
	tree := buildTree(t, fab, nl, st)

	res, err := Rewrite(fab, nl, st, tree)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	want := map[string]bool{"slot_l0": true, "slot_l1": true, "slot_d0": true, "slot_d1": true}
	got := make(map[string]bool)
	for _, inst := range res.Instances {
		if inst.Name == "" {
			continue
		}
		got[inst.Name] = true
	}
	for name := range want {
		if !got[name] {
			t.Errorf("expected renamed instance %q in output, got %v", name, got)
		}
	}
}

func TestRewriteDisconnectsDFFsFromFlatClock(t *testing.T) {
	fab, nl, st := smallFixture(t)
	tree := buildTree(t, fab, nl, st)

	res, err := Rewrite(fab, nl, st, tree)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}

	for _, net := range res.Nets {
		if net.Name != "clk" {
			continue
		}
		for _, s := range net.Sinks {
			if s.Instance == "slot_d0" || s.Instance == "slot_d1" {
				t.Fatalf("DFF %q still directly sinks the top-level clk net", s.Instance)
			}
		}
	}

	// Each DFF clock pin must instead be driven by some clk_net_* buffer net.
	driven := map[string]bool{}
	for _, net := range res.Nets {
		if net.Name == "clk" {
			continue
		}
		if !net.IsClock {
			continue
		}
		for _, s := range net.Sinks {
			if s.Pin == "clk" {
				driven[s.Instance] = true
			}
		}
	}
	if !driven["slot_d0"] || !driven["slot_d1"] {
		t.Fatalf("DFFs not rewired to a buffer net: %v", driven)
	}
}

func TestRewritePreservesNonClockConnectivity(t *testing.T) {
	fab, nl, st := smallFixture(t)
	tree := buildTree(t, fab, nl, st)

	res, err := Rewrite(fab, nl, st, tree)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	var found bool
	for _, net := range res.Nets {
		if net.Name != "n1" {
			continue
		}
		found = true
		if net.Driver.Instance != "l0" {
			t.Errorf("n1 driver = %q, want l0 (a's slot)", net.Driver.Instance)
		}
		if len(net.Sinks) != 1 || net.Sinks[0].Instance != "l1" {
			t.Errorf("n1 sinks = %v, want [l1]", net.Sinks)
		}
	}
	if !found {
		t.Fatal("net n1 missing from rewritten netlist")
	}
}

// Re-applying ECO over the same placement and clock tree must
// reproduce the same result (idempotent rename).
func TestRewriteIsIdempotent(t *testing.T) {
	fab, nl, st := smallFixture(t)
	tree := buildTree(t, fab, nl, st)

	first, err := Rewrite(fab, nl, st, tree)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	second, err := Rewrite(fab, nl, st, tree)
	if err != nil {
		t.Fatalf("Rewrite: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("ECO rewrite is not idempotent:\nfirst=%+v\nsecond=%+v", first, second)
	}
}

func TestRewriteRejectsUnboundInstance(t *testing.T) {
	fab, nl, st := smallFixture(t)
	_ = st.Unbind(0)
	tree := buildTree(t, fab, nl, st)

	if _, err := Rewrite(fab, nl, st, tree); err == nil {
		t.Fatal("expected EcoConflict for unbound instance")
	}
}

func TestRewriteRejectsRenameCollision(t *testing.T) {
	fab, err := fabric.New(fabric.Spec{
		DieW: 10, DieH: 10,
		Slots: []fabric.SlotSpec{
			{ID: "dup", X: 0, Y: 0, Kind: fabric.LOGIC},
		},
	})
	if err != nil {
		t.Fatalf("fabric.New: %v", err)
	}
	nl, err := netlist.New(netlist.Spec{
		Instances: []netlist.InstanceSpec{
			{Name: "only", Kind: netlist.Combinational},
		},
		Nets: []netlist.NetSpec{
			{Name: "n1", Driver: "only.o", Sinks: []string{"only.i"}},
		},
	})
	if err != nil {
		t.Fatalf("netlist.New: %v", err)
	}
	st := placement.New(fab, nl)
	if err := st.Bind(0, 0); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	// A fabricated clock buffer claiming the exact same slot name
	// forces a collision without needing a second real slot.
	fakeTree := &cts.Tree{Root: 0, Buffers: []cts.Buffer{{ID: "cts_buf_0", SlotIdx: 0, Cell: "CLKBUF_X1"}}}

	if _, err := Rewrite(fab, nl, st, fakeTree); err == nil {
		t.Fatal("expected EcoConflict for rename collision")
	}
}
