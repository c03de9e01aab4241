package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/KaramelBytes/ndviloom-cli/internal/config"
	"github.com/KaramelBytes/ndviloom-cli/internal/export"
	"github.com/KaramelBytes/ndviloom-cli/internal/features"
	"github.com/KaramelBytes/ndviloom-cli/internal/plots"
)

// writeFixture writes five units x four months where NDVI is an exact linear
// function of the covariates plus a land-cover offset. Unit u4 in 2017-02 has
// a null precipitation cell.
func writeFixture(t *testing.T) *config.Global {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.DataDir = dir
	cfg.PlotsDir = filepath.Join(dir, "plots")

	var ndvi, temp, vv, precip, soil []string
	ndvi = append(ndvi, "system:index,date,mean_NDVI,.geo")
	temp = append(temp, "system:index,date,mean_temp_K")
	vv = append(vv, "system:index,date,mean_VV_backscatter,.geo")
	precip = append(precip, "system:index,date,mean_precip_mm")
	soil = append(soil, "system:index,date,mean_soil_moisture,mean_specific_humidity")

	dates := []string{"2016-01", "2016-02", "2017-01", "2017-02"}
	i := 0
	for _, d := range dates {
		for u := 0; u < 5; u++ {
			tk := 270 + float64(i)
			v := -10 - float64(i%3)
			p := float64((i * 7) % 11)
			s := 20 + float64((i*3)%5)
			h := 0.004 + 0.0001*float64(i%4)
			offset := 0.0
			if strings.HasPrefix(d, "2017") {
				offset = 0.05
			}
			y := 0.2 + 0.01*(tk-270) + 0.02*v + 0.003*p - 0.004*s + 10*h + offset
			unit := fmt.Sprintf("u%d", u)
			ndvi = append(ndvi, fmt.Sprintf("%s,%s,%g,{}", unit, d, y))
			temp = append(temp, fmt.Sprintf("%s,%s,%g", unit, d, tk))
			vv = append(vv, fmt.Sprintf("%s,%s,%g,{}", unit, d, v))
			if unit == "u4" && d == "2017-02" {
				precip = append(precip, fmt.Sprintf("%s,%s,", unit, d))
			} else {
				precip = append(precip, fmt.Sprintf("%s,%s,%g", unit, d, p))
			}
			soil = append(soil, fmt.Sprintf("%s,%s,%g,%g", unit, d, s, h))
			i++
		}
	}
	write := func(name string, lines []string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write(cfg.Files.NDVI, ndvi)
	write(cfg.Files.Temperature, temp)
	write(cfg.Files.VV, vv)
	write(cfg.Files.Precipitation, precip)
	write(cfg.Files.SoilHumidity, soil)
	write(cfg.Files.LandCover, []string{"year,dominant_land_cover", "2016,Grassland", "2017,Cropland"})
	return cfg
}

func TestRunFitsExactLinearData(t *testing.T) {
	cfg := writeFixture(t)
	res, err := Run(cfg, Options{NoPlots: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	rep := res.Report
	if rep.Rows != 20 || rep.Dropped != 1 || res.Clean.Len() != 19 {
		t.Fatalf("rows=%d dropped=%d clean=%d", rep.Rows, rep.Dropped, res.Clean.Len())
	}
	if rep.TestRows != 4 || rep.TrainRows != 15 {
		t.Fatalf("split = %d/%d, want 15/4", rep.TrainRows, rep.TestRows)
	}
	if rep.MSE > 1e-10 {
		t.Fatalf("mse = %g, want ~0", rep.MSE)
	}
	if rep.R2 < 0.999 || rep.R2 > 1 {
		t.Fatalf("r2 = %g", rep.R2)
	}
	if len(rep.Samples) != 4 || len(res.Predictions) != 4 {
		t.Fatalf("samples = %d, predictions = %d", len(rep.Samples), len(res.Predictions))
	}
	if len(res.Residuals) != 19 {
		t.Fatalf("residuals = %d, want one per clean row", len(res.Residuals))
	}
	if len(rep.Coefficients) != len(features.Covariates)+2 {
		t.Fatalf("coefficients = %v", rep.Coefficients)
	}
	if res.Plots != nil {
		t.Fatalf("plots rendered with NoPlots: %v", res.Plots)
	}
	if rep.Corr == nil || rep.Corr.Columns[0] != "mean_NDVI" {
		t.Fatalf("corr = %+v", rep.Corr)
	}
	md := rep.Markdown()
	for _, s := range []string{"Run: " + res.RunID, "1 row(s) with a null value were dropped", "rank"} {
		if !strings.Contains(md, s) {
			t.Fatalf("report missing %q:\n%s", s, md)
		}
	}
}

func TestRunIsDeterministicForSeed(t *testing.T) {
	cfg := writeFixture(t)
	a, err := Run(cfg, Options{NoPlots: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := Run(cfg, Options{NoPlots: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fmt.Sprint(a.Test) != fmt.Sprint(b.Test) {
		t.Fatalf("test partitions differ: %v vs %v", a.Test, b.Test)
	}
	if a.RunID == b.RunID {
		t.Fatalf("run ids should be unique")
	}
}

func TestRunRendersPlotsAndWorkbook(t *testing.T) {
	cfg := writeFixture(t)
	cfg.PlotWidthIn, cfg.PlotHeightIn = 4, 3
	res, err := Run(cfg, Options{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Plots) != 4 {
		t.Fatalf("plots = %v", res.Plots)
	}
	for _, name := range []string{plots.CoefficientsFile, plots.CorrelationFile, plots.TimeSeriesFile, plots.ActualVsPredictedFile} {
		if _, err := os.Stat(filepath.Join(cfg.PlotsDir, name)); err != nil {
			t.Fatalf("missing %s: %v", name, err)
		}
	}
	out := res.Results()
	if len(out.Residuals) != 19 || out.Residuals[0].Partition == "" {
		t.Fatalf("workbook residuals = %d", len(out.Residuals))
	}
	if err := export.WriteWorkbook(filepath.Join(t.TempDir(), "r.xlsx"), out); err != nil {
		t.Fatalf("WriteWorkbook: %v", err)
	}
}

func TestRunMissingInputFile(t *testing.T) {
	cfg := writeFixture(t)
	cfg.Files.VV = "nope.csv"
	if _, err := Run(cfg, Options{NoPlots: true}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestRunTooFewRows(t *testing.T) {
	cfg := writeFixture(t)
	if err := os.WriteFile(filepath.Join(cfg.DataDir, cfg.Files.NDVI), []byte("system:index,date,mean_NDVI\nu0,2016-01,0.3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Run(cfg, Options{NoPlots: true}); err == nil {
		t.Fatalf("expected split error for a single row")
	}
}
