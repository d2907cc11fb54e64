// Package session is the single owned, mutable-state value the
// pipeline runs against, in place of package-level variables: one
// value owning the fabric, netlist, placement, parameters, and the
// derived clock tree and ECO result as each stage produces them.
package session

import (
	"structplace/internal/anneal"
	"structplace/internal/cost"
	"structplace/internal/cts"
	"structplace/internal/eco"
	"structplace/internal/fabric"
	"structplace/internal/greedy"
	"structplace/internal/netlist"
	"structplace/internal/placement"
)

// Session owns everything one end-to-end run (seed -> refine ->
// synthesize clock tree -> rewrite ECO) touches. Fabric and Netlist
// are treated as read-only once set; Placement, Tree, and Eco are
// filled in as each stage runs.
type Session struct {
	Fab    *fabric.Fabric
	NL     *netlist.Netlist
	Params anneal.Params

	St   *placement.State
	Tree *cts.Tree
	Eco  *eco.Result

	cm *cost.Model
}

// New builds a Session over an immutable fabric and netlist with an
// empty placement, ready for Seed.
func New(fab *fabric.Fabric, nl *netlist.Netlist, params anneal.Params) *Session {
	return &Session{
		Fab:    fab,
		NL:     nl,
		Params: params,
		St:     placement.New(fab, nl),
		cm:     cost.New(fab, nl),
	}
}

// Seed runs the greedy seeder over the session's placement.
func (s *Session) Seed() error {
	return greedy.Seed(s.Fab, s.NL, s.St)
}

// Refine runs the SA refiner over the session's placement, using the
// session's resolved parameters.
func (s *Session) Refine(reporter anneal.Reporter, cancel anneal.Cancel) (int, error) {
	r := anneal.New(s.Fab, s.NL, s.St, s.Params)
	return r.Run(reporter, cancel)
}

// SynthesizeClockTree runs H-tree CTS over the session's current
// placement and stores the result.
func (s *Session) SynthesizeClockTree(params cts.Params) error {
	tree, err := cts.Build(s.Fab, s.NL, s.St, params)
	if err != nil {
		return err
	}
	s.Tree = tree
	return nil
}

// RewriteECO runs the ECO rewriter over the session's placement and
// clock tree and stores the result. SynthesizeClockTree must have run
// first.
func (s *Session) RewriteECO() error {
	res, err := eco.Rewrite(s.Fab, s.NL, s.St, s.Tree)
	if err != nil {
		return err
	}
	s.Eco = res
	return nil
}

// KindCount is the occupancy count for one SlotKind.
type KindCount struct {
	Kind  fabric.SlotKind
	Bound int
	Free  int
}

// Summary is the post-run occupancy/cost report.
type Summary struct {
	Counts    []KindCount
	TotalHPWL int
}

// Report computes the current occupancy and cost summary. It may be
// called at any point after New — an empty placement simply reports
// every slot as free and a total HPWL of 0.
func (s *Session) Report() Summary {
	var counts []KindCount
	for _, kind := range []fabric.SlotKind{fabric.LOGIC, fabric.DFF, fabric.IO, fabric.TIE} {
		slots := s.Fab.SlotsOfKind(kind)
		if len(slots) == 0 {
			continue
		}
		kc := KindCount{Kind: kind}
		for _, slotIdx := range slots {
			if s.St.InstOf(slotIdx) == placement.None {
				kc.Free++
			} else {
				kc.Bound++
			}
		}
		counts = append(counts, kc)
	}
	return Summary{Counts: counts, TotalHPWL: s.cm.Total(s.St)}
}
