package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"structplace/internal/anneal"
	"structplace/internal/config"
)

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "structplace",
		Short:         "Structured-ASIC placement, CTS, and ECO rewriting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "optional SA parameter config file (YAML or JSON)")
	root.PersistentFlags().String("preset", config.IspdDefault, "named SA preset: "+config.IspdDefault+" or "+config.LegacyAggressive)
	root.PersistentFlags().Uint64("seed", 1, "SA RNG seed")
	root.PersistentFlags().Float64("t0", 0, "SA initial temperature (unset keeps the preset value)")
	root.PersistentFlags().Float64("alpha", 0, "SA cooling rate (unset keeps the preset value)")
	root.PersistentFlags().Int("moves-per-temp", 0, "SA moves attempted per temperature (unset keeps the preset value)")
	root.PersistentFlags().Float64("prob-refine", 0, "SA probability of a windowed refine move (unset keeps the preset value)")
	root.PersistentFlags().Float64("t-min", 0, "SA minimum temperature before stopping (unset keeps the preset value)")
	root.PersistentFlags().Int("max-stall", 0, "SA consecutive zero-accept temperatures before stopping (unset keeps the preset value)")
	root.PersistentFlags().Bool("trace", false, "log one line per SA temperature boundary")

	root.AddCommand(newPlaceCmd(), newCTSCmd(), newEcoCmd(), newRunCmd())
	return root
}

// resolveParams layers the CLI flags over an optional config file over
// the named preset. Flags left at their zero value are treated as
// "not explicitly set" only through Cobra's Changed tracking —
// resolveParams re-derives the bound set from cmd.Flags() directly so
// an explicit "--alpha 0" still wins.
func resolveParams(cmd *cobra.Command) (anneal.Params, error) {
	preset, _ := cmd.Flags().GetString("preset")
	cfgPath, _ := cmd.Flags().GetString("config")

	c := config.New(preset)
	if err := c.MergeFile(cfgPath); err != nil {
		return anneal.Params{}, err
	}
	if err := c.BindFlags(cmd.Flags()); err != nil {
		return anneal.Params{}, err
	}
	return c.Params(), nil
}

func traceReporter(cmd *cobra.Command) anneal.Reporter {
	trace, _ := cmd.Flags().GetBool("trace")
	if !trace {
		return nil
	}
	return func(s anneal.Sample) {
		logger.Info("sa temperature",
			"t", s.T, "attempts", s.Attempts, "accepts", s.Accepts,
			"cost", s.Cost, "elapsed_ms", s.ElapsedMS)
	}
}
