package main

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"structplace/internal/anneal"
	"structplace/internal/cts"
	"structplace/internal/ioload"
	"structplace/internal/session"
)

func newRunCmd() *cobra.Command {
	var designPath, fabricPath, outDir string
	var maxFanout int
	var bufferCell string
	var withTrace bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the full pipeline end to end: seed, refine, CTS, ECO",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

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
			if withTrace {
				reporter = chainReporters(reporter, func(smp anneal.Sample) { trace = append(trace, smp) })
			}
			finalCost, err := s.Refine(reporter, nil)
			if err != nil {
				return err
			}

			if err := s.SynthesizeClockTree(cts.Params{MaxFanout: maxFanout, BufferCell: bufferCell}); err != nil {
				return err
			}
			if err := s.RewriteECO(); err != nil {
				return err
			}

			if err := ioload.WritePlacement(filepath.Join(outDir, "placement.txt"), fab, nl, s.St); err != nil {
				return err
			}
			if err := ioload.WriteClockTree(filepath.Join(outDir, "tree.json"), fab, nl, s.Tree); err != nil {
				return err
			}
			if err := ioload.WriteEco(filepath.Join(outDir, "eco.json"), s.Eco); err != nil {
				return err
			}
			if withTrace {
				if err := ioload.WriteTrace(filepath.Join(outDir, "trace.csv"), trace); err != nil {
					return err
				}
			}

			summary := s.Report()
			logger.Info("run complete",
				"final_cost", finalCost, "buffers", len(s.Tree.Buffers),
				"elapsed_ms", time.Since(start).Milliseconds())
			for _, kc := range summary.Counts {
				logger.Info("slot occupancy", "kind", kc.Kind.String(), "bound", kc.Bound, "free", kc.Free)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&designPath, "design", "", "mapped design JSON file (required)")
	cmd.Flags().StringVar(&fabricPath, "fabric", "", "fabric specification JSON file (required)")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "output directory for placement.txt, tree.json, eco.json (required)")
	cmd.Flags().IntVar(&maxFanout, "max-fanout", cts.DefaultParams().MaxFanout, "maximum children per clock buffer")
	cmd.Flags().StringVar(&bufferCell, "buffer-cell", cts.DefaultParams().BufferCell, "library cell used for synthesized buffers")
	cmd.Flags().BoolVar(&withTrace, "sa-trace", false, "also write trace.csv with one row per SA temperature boundary")
	_ = cmd.MarkFlagRequired("design")
	_ = cmd.MarkFlagRequired("fabric")
	_ = cmd.MarkFlagRequired("out-dir")
	return cmd
}
