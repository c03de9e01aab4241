package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/KaramelBytes/ndviloom-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/ndviloom-cli/internal/config"
	"github.com/KaramelBytes/ndviloom-cli/internal/pipeline"
	"github.com/KaramelBytes/ndviloom-cli/internal/utils"
	"github.com/spf13/cobra"
)

var (
	prSampleRows int
	prOutlierThr float64
	prSheetName  string
	prOutDir     string
	prQuiet      bool
)

var profileCmd = &cobra.Command{
	Use:   "profile [files...]",
	Short: "Profile the input exports (schema, missing values, outliers)",
	Long: `Profile each input table before running the pipeline. Without arguments the six
configured exports are profiled; otherwise the given CSV/XLSX files or globs are.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		files, err := profileInputs(c, args)
		if err != nil {
			return err
		}

		opt := analysis.DefaultProfileOptions()
		opt.GeoColumnSubstring = c.GeoColumnSubstring
		opt.SampleRows = prSampleRows
		opt.OutlierThreshold = prOutlierThr
		opt.Sheet = prSheetName

		out := cmd.OutOrStdout()
		total := len(files)
		failed := 0
		for i, path := range files {
			if !prQuiet {
				fmt.Fprintf(out, "[%d/%d] Profiling %s...\n", i+1, total, filepath.Base(path))
			}
			if missing := utils.MissingFiles(path); len(missing) > 0 {
				fmt.Fprintf(out, "⚠ %s not found\n", path)
				failed++
				continue
			}
			prof, err := analysis.ProfileFile(path, opt)
			if err != nil {
				return err
			}
			md := prof.Markdown()
			if prOutDir == "" {
				fmt.Fprintln(out, md)
				continue
			}
			dest := uniquePath(prOutDir, strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
			if err := utils.SafeWriteFile(dest, []byte(md)); err != nil {
				return fmt.Errorf("write profile: %w", err)
			}
			if !prQuiet {
				fmt.Fprintf(out, "✓ Wrote %s\n", dest)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d input file(s) missing", failed, total)
		}
		return nil
	},
}

func profileInputs(c *cfgpkg.Global, args []string) ([]string, error) {
	if len(args) == 0 {
		p := pipeline.Paths(c)
		return []string{p.NDVI, p.Temperature, p.VV, p.Precipitation, p.SoilHumidity, p.LandCover}, nil
	}
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			// keep literal paths so a missing file is reported, not skipped
			matches = []string{arg}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	sort.Strings(files)
	return files, nil
}

// uniquePath returns dir/base.profile.md, suffixing __2, __3... when taken.
func uniquePath(dir, base string) string {
	p := filepath.Join(dir, base+".profile.md")
	for i := 2; ; i++ {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return p
		}
		p = filepath.Join(dir, fmt.Sprintf("%s__%d.profile.md", base, i))
	}
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().IntVar(&prSampleRows, "sample-rows", 5, "number of sample rows to include (0 disables samples)")
	profileCmd.Flags().Float64Var(&prOutlierThr, "outlier-threshold", 3.5, "robust |z| threshold for outliers (0 disables)")
	profileCmd.Flags().StringVar(&prSheetName, "sheet-name", "", "XLSX: sheet name to profile (default first sheet)")
	profileCmd.Flags().StringVar(&prOutDir, "out-dir", "", "write one <table>.profile.md per input instead of printing")
	profileCmd.Flags().BoolVar(&prQuiet, "quiet", false, "suppress progress and non-essential output")
}
