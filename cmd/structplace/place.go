package main

import (
	"time"

	"github.com/spf13/cobra"

	"structplace/internal/anneal"
	"structplace/internal/ioload"
	"structplace/internal/session"
)

func newPlaceCmd() *cobra.Command {
	var designPath, fabricPath, outPath, tracePath string

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Run greedy seeding and SA refinement, writing the placement map",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			fab, err := ioload.ReadFabric(fabricPath)
			if err != nil {
				return err
			}
			nl, err := ioload.ReadDesign(designPath)
			if err != nil {
				return err
			}
			params, err := resolveParams(cmd)
			if err != nil {
				return err
			}

			s := session.New(fab, nl, params)
			if err := s.Seed(); err != nil {
				return err
			}

			var trace []anneal.Sample
			reporter := traceReporter(cmd)
			if tracePath != "" {
				reporter = chainReporters(reporter, func(smp anneal.Sample) { trace = append(trace, smp) })
			}

			finalCost, err := s.Refine(reporter, nil)
			if err != nil {
				return err
			}

			if err := ioload.WritePlacement(outPath, fab, nl, s.St); err != nil {
				return err
			}
			if tracePath != "" {
				if err := ioload.WriteTrace(tracePath, trace); err != nil {
					return err
				}
			}

			summary := s.Report()
			logger.Info("place complete",
				"final_cost", finalCost, "elapsed_ms", time.Since(start).Milliseconds())
			for _, kc := range summary.Counts {
				logger.Info("slot occupancy", "kind", kc.Kind.String(), "bound", kc.Bound, "free", kc.Free)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&designPath, "design", "", "mapped design JSON file (required)")
	cmd.Flags().StringVar(&fabricPath, "fabric", "", "fabric specification JSON file (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "output placement map path (required)")
	cmd.Flags().StringVar(&tracePath, "sa-trace", "", "optional SA trace CSV output path")
	_ = cmd.MarkFlagRequired("design")
	_ = cmd.MarkFlagRequired("fabric")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// chainReporters composes two anneal.Reporter callbacks into one,
// tolerating either being nil.
func chainReporters(a, b anneal.Reporter) anneal.Reporter {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(s anneal.Sample) {
		a(s)
		b(s)
	}
}
