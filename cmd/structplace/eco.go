package main

import (
	"time"

	"github.com/spf13/cobra"

	"structplace/internal/eco"
	"structplace/internal/ioload"
)

func newEcoCmd() *cobra.Command {
	var designPath, fabricPath, placementPath, treePath, outPath string

	cmd := &cobra.Command{
		Use:   "eco",
		Short: "Run the ECO rewriter, emitting the final gate-level netlist",
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
			tree, err := ioload.ReadClockTree(treePath, fab, nl)
			if err != nil {
				return err
			}

			res, err := eco.Rewrite(fab, nl, st, tree)
			if err != nil {
				return err
			}
			if err := ioload.WriteEco(outPath, res); err != nil {
				return err
			}

			logger.Info("eco complete", "instances", len(res.Instances), "nets", len(res.Nets), "elapsed_ms", time.Since(start).Milliseconds())
			return nil
		},
	}

	cmd.Flags().StringVar(&designPath, "design", "", "mapped design JSON file (required)")
	cmd.Flags().StringVar(&fabricPath, "fabric", "", "fabric specification JSON file (required)")
	cmd.Flags().StringVar(&placementPath, "placement", "", "placement map file (required)")
	cmd.Flags().StringVar(&treePath, "tree", "", "clock tree JSON file (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "output ECO netlist JSON path (required)")
	_ = cmd.MarkFlagRequired("design")
	_ = cmd.MarkFlagRequired("fabric")
	_ = cmd.MarkFlagRequired("placement")
	_ = cmd.MarkFlagRequired("tree")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}
