package cmd

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cfgpkg "github.com/KaramelBytes/ndviloom-cli/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// resetFlags restores every flag to its default so bound variables and
// Changed state do not leak between invocations.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args and returns stdout and the error.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

// mustRun is a helper to execute the root command with args.
func mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v", args, err)
	}
	return out
}

func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	oldHome := os.Getenv("HOME")
	t.Cleanup(func() { os.Setenv("HOME", oldHome) })
	os.Setenv("HOME", home)
	return home
}

// writeExports writes the six default-named exports into dir.
func writeExports(t *testing.T, dir string) {
	t.Helper()
	files := cfgpkg.DefaultFiles()
	ndvi := []string{"system:index,date,mean_NDVI,.geo"}
	temp := []string{"system:index,date,mean_temp_K"}
	vv := []string{"system:index,date,mean_VV_backscatter"}
	precip := []string{"system:index,date,mean_precip_mm"}
	soil := []string{"system:index,date,mean_soil_moisture,mean_specific_humidity"}
	i := 0
	for _, d := range []string{"2016-01", "2016-02", "2017-01", "2017-02"} {
		for u := 0; u < 5; u++ {
			tk, v, p := 270+float64(i), -10-float64(i%3), float64((i*7)%11)
			s, h := 20+float64((i*3)%5), 0.004+0.0001*float64(i%4)
			y := 0.2 + 0.01*(tk-270) + 0.02*v + 0.003*p - 0.004*s + 10*h
			unit := fmt.Sprintf("u%d", u)
			ndvi = append(ndvi, fmt.Sprintf("%s,%s,%g,{}", unit, d, y))
			temp = append(temp, fmt.Sprintf("%s,%s,%g", unit, d, tk))
			vv = append(vv, fmt.Sprintf("%s,%s,%g", unit, d, v))
			precip = append(precip, fmt.Sprintf("%s,%s,%g", unit, d, p))
			soil = append(soil, fmt.Sprintf("%s,%s,%g,%g", unit, d, s, h))
			i++
		}
	}
	write := func(name string, lines []string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write(files.NDVI, ndvi)
	write(files.Temperature, temp)
	write(files.VV, vv)
	write(files.Precipitation, precip)
	write(files.SoilHumidity, soil)
	write(files.LandCover, []string{"year,dominant_land_cover", "2016,Grassland", "2017,Cropland"})
}

func TestCLI_RunWritesReportPlotsAndWorkbook(t *testing.T) {
	home := isolateHome(t)
	data := filepath.Join(home, "data")
	if err := os.MkdirAll(data, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeExports(t, data)

	report := filepath.Join(home, "out", "report.md")
	wb := filepath.Join(home, "out", "results.xlsx")
	plotsDir := filepath.Join(home, "plots")
	mustRun(t, "run", "--data-dir", data, "--plots-dir", plotsDir, "--output", report, "--xlsx", wb, "--quiet")

	body, err := os.ReadFile(report)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	for _, s := range []string{"[MISSING VALUES]", "[MODEL PERFORMANCE]", "[MODEL COEFFICIENTS]", "[COEFFICIENTS BY MAGNITUDE]"} {
		if !strings.Contains(string(body), s) {
			t.Fatalf("report missing %s", s)
		}
	}
	if _, err := os.Stat(wb); err != nil {
		t.Fatalf("workbook not written: %v", err)
	}
	entries, err := os.ReadDir(plotsDir)
	if err != nil || len(entries) != 4 {
		t.Fatalf("plots dir: %v entries, err %v", len(entries), err)
	}
}

func TestCLI_RunPrintsReportWithoutPlots(t *testing.T) {
	home := isolateHome(t)
	writeExports(t, home)
	out := mustRun(t, "run", "--data-dir", home, "--no-plots", "--quiet", "--seed", "7")
	if !strings.Contains(out, "Mean Squared Error:") || !strings.Contains(out, "R² Score:") {
		t.Fatalf("stdout missing metrics:\n%s", out)
	}
	if strings.Contains(out, "✓ Plot") {
		t.Fatalf("plots listed despite --no-plots:\n%s", out)
	}
}

func TestCLI_RunRejectsBadTestSize(t *testing.T) {
	home := isolateHome(t)
	writeExports(t, home)
	if _, err := execCmd(t, "run", "--data-dir", home, "--no-plots", "--quiet", "--test-size", "1.5"); err == nil {
		t.Fatalf("expected error for --test-size 1.5")
	}
}

func TestCLI_RunMissingExportFails(t *testing.T) {
	home := isolateHome(t)
	writeExports(t, home)
	if err := os.Remove(filepath.Join(home, cfgpkg.DefaultFiles().VV)); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := execCmd(t, "run", "--data-dir", home, "--no-plots", "--quiet"); err == nil {
		t.Fatalf("expected error for missing VV export")
	}
}

func TestCLI_JoinWritesMergedCSV(t *testing.T) {
	home := isolateHome(t)
	writeExports(t, home)
	merged := filepath.Join(home, "merged.csv")
	out := mustRun(t, "join", "--data-dir", home, "--out", merged, "--describe", "--quiet")
	if !strings.Contains(out, "✓ Merged 20 rows") {
		t.Fatalf("unexpected join output:\n%s", out)
	}
	body, err := os.ReadFile(merged)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 21 || !strings.HasPrefix(lines[0], "system:index,date,mean_NDVI") {
		t.Fatalf("merged csv: %d lines, header %q", len(lines), lines[0])
	}
}

func TestCLI_ProfileConfiguredTables(t *testing.T) {
	home := isolateHome(t)
	writeExports(t, home)
	outDir := filepath.Join(home, "profiles")
	mustRun(t, "profile", "--data-dir", home, "--out-dir", outDir, "--quiet")
	entries, err := os.ReadDir(outDir)
	if err != nil || len(entries) != 6 {
		t.Fatalf("profiles: %d entries, err %v", len(entries), err)
	}
	body, err := os.ReadFile(filepath.Join(outDir, strings.TrimSuffix(cfgpkg.DefaultFiles().NDVI, ".csv")+".profile.md"))
	if err != nil {
		t.Fatalf("read ndvi profile: %v", err)
	}
	if !strings.Contains(string(body), "Skipped geometry columns: .geo") {
		t.Fatalf("ndvi profile should note the dropped geo column:\n%s", body)
	}
}

func TestCLI_ProfileReportsMissingFile(t *testing.T) {
	home := isolateHome(t)
	out, err := execCmd(t, "profile", filepath.Join(home, "absent.csv"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
	if !strings.Contains(out, "⚠") {
		t.Fatalf("expected warning line, got:\n%s", out)
	}
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home := isolateHome(t)
	mustRun(t, "config", "set", "seed", "7")
	mustRun(t, "config", "set", "files.vv", "vv.csv")
	if _, err := os.Stat(filepath.Join(home, ".ndviloom", "config.yaml")); err != nil {
		t.Fatalf("config not saved: %v", err)
	}
	out := mustRun(t, "config", "show")
	if !strings.Contains(out, "seed: 7") || !strings.Contains(out, "files.vv: vv.csv") {
		t.Fatalf("config show:\n%s", out)
	}
	if _, err := execCmd(t, "config", "set", "test_size", "2"); err == nil {
		t.Fatalf("expected validation error for test_size 2")
	}
	if _, err := execCmd(t, "config", "set", "nope", "1"); err == nil {
		t.Fatalf("expected unknown key error")
	}
}

func TestCLI_ConfigSetKeepsOverridesOutOfFile(t *testing.T) {
	home := isolateHome(t)
	t.Setenv("NDVILOOM_SEED", "99")
	mustRun(t, "config", "set", "test_size", "0.3", "--data-dir", filepath.Join(home, "elsewhere"))

	b, err := os.ReadFile(filepath.Join(home, ".ndviloom", "config.yaml"))
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	var saved cfgpkg.Global
	if err := yaml.Unmarshal(b, &saved); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if saved.TestSize != 0.3 {
		t.Fatalf("test_size = %v, want 0.3", saved.TestSize)
	}
	if saved.Seed != 42 || saved.DataDir != "." {
		t.Fatalf("one-off overrides persisted: seed=%d data_dir=%q", saved.Seed, saved.DataDir)
	}
}
