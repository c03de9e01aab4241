package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/KaramelBytes/ndviloom-cli/internal/export"
	"github.com/KaramelBytes/ndviloom-cli/internal/pipeline"
	"github.com/KaramelBytes/ndviloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	runPlotsDir   string
	runNoPlots    bool
	runOutput     string
	runXLSX       string
	runTestSize   float64
	runSeed       int64
	runStrictKeys bool
	runQuiet      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Load, join, fit and report the NDVI regression",
	Long: `Run the whole pipeline once: load the six exports, join them, drop incomplete rows,
one-hot encode land cover, fit ordinary least squares on a seeded train/test split,
print the report and write the diagnostic plots.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		f := cmd.Flags()
		if f.Changed("plots-dir") {
			c.PlotsDir = runPlotsDir
		}
		if f.Changed("test-size") {
			c.TestSize = runTestSize
		}
		if f.Changed("seed") {
			c.Seed = runSeed
		}
		if f.Changed("strict-keys") {
			c.StrictKeys = runStrictKeys
		}
		if err := c.Validate(); err != nil {
			return err
		}

		var progress io.Writer
		if !runQuiet {
			progress = os.Stderr
		}
		res, err := pipeline.Run(c, pipeline.Options{NoPlots: runNoPlots, Progress: progress})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		md := res.Report.Markdown()
		if runOutput != "" {
			if err := utils.SafeWriteFile(runOutput, []byte(md)); err != nil {
				return fmt.Errorf("write report: %w", err)
			}
			if !runQuiet {
				fmt.Fprintf(out, "✓ Report written to %s\n", runOutput)
			}
		} else {
			fmt.Fprint(out, md)
		}

		if runXLSX != "" {
			if err := utils.EnsureParentDir(runXLSX); err != nil {
				return err
			}
			if err := export.WriteWorkbook(runXLSX, res.Results()); err != nil {
				return err
			}
			if !runQuiet {
				fmt.Fprintf(out, "✓ Workbook written to %s\n", runXLSX)
			}
		}
		if !runQuiet {
			for _, p := range res.Plots {
				fmt.Fprintf(out, "✓ Plot %s\n", p)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runPlotsDir, "plots-dir", "", "directory for PNG plots (overrides config)")
	runCmd.Flags().BoolVar(&runNoPlots, "no-plots", false, "skip plot rendering")
	runCmd.Flags().StringVarP(&runOutput, "output", "o", "", "write the report to a file instead of stdout")
	runCmd.Flags().StringVar(&runXLSX, "xlsx", "", "also write results to an .xlsx workbook")
	runCmd.Flags().Float64Var(&runTestSize, "test-size", 0.2, "held-out fraction in (0, 1)")
	runCmd.Flags().Int64Var(&runSeed, "seed", 42, "random seed for the train/test split")
	runCmd.Flags().BoolVar(&runStrictKeys, "strict-keys", false, "fail on duplicate join keys instead of warning")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "suppress progress output")
}
