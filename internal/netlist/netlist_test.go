package netlist

import "testing"

func threeInst() Spec {
	return Spec{
		Instances: []InstanceSpec{
			{Name: "a", Kind: Combinational, Cell: "BUF"},
			{Name: "b", Kind: Combinational, Cell: "BUF"},
			{Name: "c", Kind: Combinational, Cell: "BUF"},
		},
		Nets: []NetSpec{
			{Name: "n1", Driver: "a.o", Sinks: []string{"b.i"}},
			{Name: "n2", Driver: "a.o", Sinks: []string{"c.i"}},
		},
	}
}

func TestNewBuildsAdjacency(t *testing.T) {
	nl, err := New(threeInst())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	a, _ := nl.Instance("a")
	if got := nl.Fanout(a); got != 2 {
		t.Errorf("Fanout(a) = %d, want 2", got)
	}
	if len(nl.NetsOf(a)) != 2 {
		t.Errorf("NetsOf(a) = %v, want 2 nets", nl.NetsOf(a))
	}
	b, _ := nl.Instance("b")
	if len(nl.NetsOf(b)) != 1 {
		t.Errorf("NetsOf(b) = %v, want 1 net", nl.NetsOf(b))
	}
}

func TestNewRejectsDanglingReference(t *testing.T) {
	spec := threeInst()
	spec.Nets = append(spec.Nets, NetSpec{Name: "n3", Driver: "a.o", Sinks: []string{"ghost.i"}})
	if _, err := New(spec); err == nil {
		t.Fatal("expected error for dangling pin reference")
	}
}

func TestNewRejectsDuplicateInstanceName(t *testing.T) {
	spec := threeInst()
	spec.Instances = append(spec.Instances, InstanceSpec{Name: "a", Kind: Combinational})
	if _, err := New(spec); err == nil {
		t.Fatal("expected error for duplicate instance name")
	}
}

func TestNewRejectsUndrivenNet(t *testing.T) {
	spec := threeInst()
	spec.Nets = append(spec.Nets, NetSpec{Name: "n3", Sinks: []string{"b.i"}})
	if _, err := New(spec); err == nil {
		t.Fatal("expected error for net with no driver")
	}
}

func TestClockNetExcludedByConvention(t *testing.T) {
	spec := threeInst()
	spec.Instances = append(spec.Instances, InstanceSpec{Name: "ff1", Kind: Sequential})
	spec.Nets = append(spec.Nets, NetSpec{Name: "clk", Sinks: []string{"ff1.clk"}})
	nl, err := New(spec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if nl.ClockNet() < 0 {
		t.Fatal("expected a clock net")
	}
	if !nl.Nets[nl.ClockNet()].IsClock {
		t.Fatal("clock net not marked IsClock")
	}
}

func TestDFFs(t *testing.T) {
	spec := threeInst()
	spec.Instances = append(spec.Instances, InstanceSpec{Name: "ff1", Kind: Sequential})
	nl, err := New(spec)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dffs := nl.DFFs()
	if len(dffs) != 1 || nl.Instances[dffs[0]].Name != "ff1" {
		t.Fatalf("DFFs() = %v, want [ff1]", dffs)
	}
}
