package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/KaramelBytes/ndviloom-cli/internal/export"
	"github.com/KaramelBytes/ndviloom-cli/internal/pipeline"
	"github.com/KaramelBytes/ndviloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	joinOut      string
	joinDescribe bool
	joinQuiet    bool
)

var joinCmd = &cobra.Command{
	Use:   "join",
	Short: "Build the merged table without fitting a model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		var progress io.Writer
		if !joinQuiet {
			progress = os.Stderr
		}
		_, tbl, err := pipeline.LoadAndJoin(c, progress)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, s := range tbl.Steps {
			fmt.Fprintf(out, "%-22s %6d x %-6d -> %6d (unmatched %d)\n", s.Name, s.Left, s.Right, s.Out, s.Unmatched)
		}
		fmt.Fprintf(out, "✓ Merged %d rows\n", tbl.Len())
		for _, m := range tbl.MissingCounts() {
			if m.Count > 0 {
				fmt.Fprintf(out, "⚠ %s: %d missing\n", m.Name, m.Count)
			}
		}

		if joinDescribe {
			desc, err := export.Describe(tbl.Rows)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, desc.String())
		}

		if joinOut != "" {
			var buf bytes.Buffer
			if err := export.WriteMergedCSV(&buf, tbl.Rows); err != nil {
				return err
			}
			if err := utils.SafeWriteFile(joinOut, buf.Bytes()); err != nil {
				return fmt.Errorf("write merged table: %w", err)
			}
			fmt.Fprintf(out, "✓ Merged table written to %s\n", joinOut)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(joinCmd)
	joinCmd.Flags().StringVar(&joinOut, "out", "", "write the merged table as CSV")
	joinCmd.Flags().BoolVar(&joinDescribe, "describe", false, "print summary statistics of the numeric columns")
	joinCmd.Flags().BoolVarP(&joinQuiet, "quiet", "q", false, "suppress progress output")
}
