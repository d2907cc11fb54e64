package main

import (
	"time"

	"github.com/spf13/cobra"

	"structplace/internal/cts"
	"structplace/internal/ioload"
)

func newCTSCmd() *cobra.Command {
	var designPath, fabricPath, placementPath, outPath string
	var maxFanout int
	var bufferCell string

	cmd := &cobra.Command{
		Use:   "cts",
		Short: "Run H-tree clock tree synthesis over a previously computed placement",
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
			st, err := ioload.ReadPlacement(placementPath, fab, nl)
			if err != nil {
				return err
			}

			tree, err := cts.Build(fab, nl, st, cts.Params{MaxFanout: maxFanout, BufferCell: bufferCell})
			if err != nil {
				return err
			}
			if err := ioload.WriteClockTree(outPath, fab, nl, tree); err != nil {
				return err
			}

			logger.Info("cts complete", "buffers", len(tree.Buffers), "elapsed_ms", time.Since(start).Milliseconds())
			return nil
		},
	}

	cmd.Flags().StringVar(&designPath, "design", "", "mapped design JSON file (required)")
	cmd.Flags().StringVar(&fabricPath, "fabric", "", "fabric specification JSON file (required)")
	cmd.Flags().StringVar(&placementPath, "placement", "", "placement map file (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "output clock tree JSON path (required)")
	cmd.Flags().IntVar(&maxFanout, "max-fanout", cts.DefaultParams().MaxFanout, "maximum children per buffer")
	cmd.Flags().StringVar(&bufferCell, "buffer-cell", cts.DefaultParams().BufferCell, "library cell used for synthesized buffers")
	_ = cmd.MarkFlagRequired("design")
	_ = cmd.MarkFlagRequired("fabric")
	_ = cmd.MarkFlagRequired("placement")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
