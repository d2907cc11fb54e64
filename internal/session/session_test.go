package session

import (
	"testing"

	"structplace/internal/anneal"
	"structplace/internal/cts"
	"structplace/internal/fabric"
	"structplace/internal/netlist"
)

func fixture(t *testing.T) (*fabric.Fabric, *netlist.Netlist) {
	t.Helper()
	fab, err := fabric.New(fabric.Spec{
		DieW: 10, DieH: 10,
		Slots: []fabric.SlotSpec{
			{ID: "l0", X: 0, Y: 0, Kind: fabric.LOGIC},
			{ID: "l1", X: 10, Y: 0, Kind: fabric.LOGIC},
			{ID: "d0", X: 0, Y: 10, Kind: fabric.DFF},
			{ID: "spare", X: 10, Y: 10, Kind: fabric.LOGIC}, // free slot for the clock buffer
		},
	})
	if err != nil {
		t.Fatalf("fabric.New: %v", err)
	}
	nl, err := netlist.New(netlist.Spec{
		Instances: []netlist.InstanceSpec{
			{Name: "a", Kind: netlist.Combinational},
			{Name: "b", Kind: netlist.Combinational},
			{Name: "ff0", Kind: netlist.Sequential},
		},
		Nets: []netlist.NetSpec{
			{Name: "n1", Driver: "a.o", Sinks: []string{"b.i"}},
			{Name: "clk", Sinks: []string{"ff0.clk"}},
		},
	})
	if err != nil {
		t.Fatalf("netlist.New: %v", err)
	}
	return fab, nl
}

func TestSeedThenRefineUpdatesReport(t *testing.T) {
	fab, nl := fixture(t)
	s := New(fab, nl, anneal.DefaultParams(1))

	before := s.Report()
	for _, kc := range before.Counts {
		if kc.Bound != 0 {
			t.Fatalf("expected empty placement before Seed, got %+v", kc)
		}
	}

	if err := s.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, err := s.Refine(nil, nil); err != nil {
		t.Fatalf("Refine: %v", err)
	}

	after := s.Report()
	var totalBound int
	for _, kc := range after.Counts {
		totalBound += kc.Bound
	}
	if totalBound != 3 {
		t.Errorf("bound count = %d, want 3 (every instance placed)", totalBound)
	}
}

func TestFullPipelineProducesEcoResult(t *testing.T) {
	fab, nl := fixture(t)
	s := New(fab, nl, anneal.DefaultParams(1))

	if err := s.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if _, err := s.Refine(nil, nil); err != nil {
		t.Fatalf("Refine: %v", err)
	}
	if err := s.SynthesizeClockTree(cts.DefaultParams()); err != nil {
		t.Fatalf("SynthesizeClockTree: %v", err)
	}
	if err := s.RewriteECO(); err != nil {
		t.Fatalf("RewriteECO: %v", err)
	}
	if s.Eco == nil || len(s.Eco.Instances) == 0 {
		t.Fatal("expected a non-empty ECO result")
	}
}
