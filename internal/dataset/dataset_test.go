package dataset

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

// writeSources writes a small consistent set of exports. Unit "c" has no VV
// row for 2017-01 and 2018 has no land-cover record.
func writeSources(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		NDVI: writeFile(t, dir, "ndvi.csv",
			"system:index,date,mean_NDVI,.geo",
			`a,2016-01,0.30,"{""type"":""MultiPoint"",""coordinates"":[]}"`,
			`b,2016-02,0.50,"{""type"":""MultiPoint"",""coordinates"":[]}"`,
			`c,2017-01,0.40,"{""type"":""MultiPoint"",""coordinates"":[]}"`,
			`d,2018-03,,"{""type"":""MultiPoint"",""coordinates"":[]}"`,
		),
		Temperature: writeFile(t, dir, "temp.csv",
			"system:index,date,mean_temp_K",
			"a,2016-01,280.1", "b,2016-02,281.5", "c,2017-01,279.0", "d,2018-03,285.0",
		),
		VV: writeFile(t, dir, "vv.csv",
			"system:index,date,mean_VV_backscatter,.geo",
			"a,2016-01,-11.2,{}", "b,2016-02,-10.9,{}", "d,2018-03,-12.0,{}",
		),
		Precipitation: writeFile(t, dir, "precip.csv",
			"system:index,date,mean_precip_mm",
			"a,2016-01,40.2", "b,2016-02,NaN", "c,2017-01,22.0", "d,2018-03,10.0",
		),
		SoilHumidity: writeFile(t, dir, "soil.csv",
			"system:index,date,mean_soil_moisture,mean_specific_humidity,extra",
			"a,2016-01,30.5,0.004,x", "b,2016-02,28.1,0.005,y", "c,2017-01,25.0,0.006,z", "d,2018-03,20.0,0.007,w",
		),
		LandCover: writeFile(t, dir, "landcover.csv",
			"year,dominant_land_cover",
			"2016,Grassland", "2017,Cropland",
		),
	}
}

func TestLoadDropsGeoColumnsAndParsesNulls(t *testing.T) {
	src, err := Load(writeSources(t), LoadOptions{GeoColumnSubstring: ".geo"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(src.Audits) != 6 {
		t.Fatalf("audits = %d, want 6", len(src.Audits))
	}
	ndvi := src.Audits[0]
	if ndvi.Rows != 4 || len(ndvi.DroppedGeo) != 1 || ndvi.DroppedGeo[0] != ".geo" {
		t.Fatalf("ndvi audit = %+v", ndvi)
	}
	for _, c := range ndvi.Columns {
		if strings.Contains(c, ".geo") {
			t.Fatalf("geo column kept: %v", ndvi.Columns)
		}
	}
	if src.Audits[3].DroppedGeo != nil {
		t.Fatalf("precip has no geo column, got %v", src.Audits[3].DroppedGeo)
	}
	if src.NDVI[3].NDVI.Valid {
		t.Fatalf("empty NDVI cell should be null")
	}
	if src.Precipitation[1].PrecipMM.Valid {
		t.Fatalf("NaN precip cell should be null")
	}
	if v := src.NDVI[0].NDVI; !v.Valid || v.Value != 0.30 {
		t.Fatalf("ndvi[0] = %+v", v)
	}
}

func TestLoadMissingColumn(t *testing.T) {
	p := writeSources(t)
	p.VV = writeFile(t, t.TempDir(), "vv.csv", "system:index,date,VV", "a,2016-01,-11")
	_, err := Load(p, LoadOptions{})
	var mc *MissingColumnError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MissingColumnError, got %v", err)
	}
	if mc.Table != TableVV || len(mc.Columns) != 1 || mc.Columns[0] != "mean_VV_backscatter" {
		t.Fatalf("error = %+v", mc)
	}
}

func TestLoadMissingFile(t *testing.T) {
	p := writeSources(t)
	p.LandCover = filepath.Join(t.TempDir(), "nope.csv")
	if _, err := Load(p, LoadOptions{}); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestLoadStrictKeysRejectsDuplicates(t *testing.T) {
	p := writeSources(t)
	p.Temperature = writeFile(t, t.TempDir(), "temp.csv",
		"system:index,date,mean_temp_K", "a,2016-01,280", "a,2016-01,281")

	src, err := Load(p, LoadOptions{})
	if err != nil {
		t.Fatalf("non-strict Load: %v", err)
	}
	if src.Audits[1].DuplicateKeys != 1 || src.Audits[1].FirstDup != "a@2016-01" {
		t.Fatalf("temperature audit = %+v", src.Audits[1])
	}

	_, err = Load(p, LoadOptions{StrictKeys: true})
	var dk *DuplicateKeyError
	if !errors.As(err, &dk) || dk.Table != TableTemperature {
		t.Fatalf("expected DuplicateKeyError for temperature, got %v", err)
	}
}

func TestJoinInnerAndLeft(t *testing.T) {
	src, err := Load(writeSources(t), LoadOptions{GeoColumnSubstring: ".geo"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tbl, err := Join(src)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	// c drops (no VV row); a, b, d survive in NDVI order
	if tbl.Len() != 3 {
		t.Fatalf("rows = %d, want 3", tbl.Len())
	}
	units := []string{tbl.Rows[0].Unit, tbl.Rows[1].Unit, tbl.Rows[2].Unit}
	if strings.Join(units, "") != "abd" {
		t.Fatalf("units = %v", units)
	}
	minRows := len(src.NDVI)
	for _, n := range []int{len(src.Temperature), len(src.VV), len(src.Precipitation), len(src.SoilHumidity)} {
		if n < minRows {
			minRows = n
		}
	}
	if tbl.Len() > minRows {
		t.Fatalf("merged %d rows exceeds min input %d", tbl.Len(), minRows)
	}
	a := tbl.Rows[0]
	if a.Year != 2016 || a.LandCover != "Grassland" || a.TempK.Value != 280.1 || a.VV.Value != -11.2 {
		t.Fatalf("row a = %+v", a)
	}
	if d := tbl.Rows[2]; d.Year != 2018 || d.HasLandCover() {
		t.Fatalf("row d should have no land cover: %+v", d)
	}
	last := tbl.Steps[len(tbl.Steps)-1]
	if last.Unmatched != 1 || last.Out != 3 {
		t.Fatalf("land cover step = %+v", last)
	}
	if tbl.Steps[0].Unmatched != 1 {
		t.Fatalf("temperature+vv unmatched = %d, want 1", tbl.Steps[0].Unmatched)
	}
}

func TestJoinFansOutOnDuplicateKeys(t *testing.T) {
	src := &Sources{
		NDVI:          []NDVIRow{{"a", "2016-01", Some(0.3)}},
		Temperature:   []TemperatureRow{{"a", "2016-01", Some(280)}, {"a", "2016-01", Some(281)}},
		VV:            []VVRow{{"a", "2016-01", Some(-11)}},
		Precipitation: []PrecipitationRow{{"a", "2016-01", Some(10)}},
		SoilHumidity:  []SoilHumidityRow{{"a", "2016-01", Some(20), Some(0.004)}},
	}
	tbl, err := Join(src)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if tbl.Len() != 2 {
		t.Fatalf("rows = %d, want fan-out to 2", tbl.Len())
	}
}

func TestJoinRejectsBadDate(t *testing.T) {
	src := &Sources{
		NDVI:          []NDVIRow{{"a", "16", Some(0.3)}},
		Temperature:   []TemperatureRow{{"a", "16", Some(280)}},
		VV:            []VVRow{{"a", "16", Some(-11)}},
		Precipitation: []PrecipitationRow{{"a", "16", Some(10)}},
		SoilHumidity:  []SoilHumidityRow{{"a", "16", Some(20), Some(0.004)}},
	}
	if _, err := Join(src); err == nil {
		t.Fatalf("expected error for short date")
	}
}

func TestMissingCountsAndDropIncomplete(t *testing.T) {
	src, err := Load(writeSources(t), LoadOptions{GeoColumnSubstring: ".geo"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	tbl, err := Join(src)
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	counts := map[string]int{}
	for _, c := range tbl.MissingCounts() {
		counts[c.Name] = c.Count
	}
	if counts[ColNDVI] != 1 || counts[ColPrecip] != 1 || counts[ColLandCover] != 1 || counts[ColTempK] != 0 {
		t.Fatalf("missing counts = %v", counts)
	}

	clean, dropped := tbl.DropIncomplete()
	if clean.Len() > tbl.Len() {
		t.Fatalf("dropping nulls increased rows: %d > %d", clean.Len(), tbl.Len())
	}
	// b has NaN precip, d has empty NDVI
	if clean.Len() != 1 || dropped != 2 || clean.Rows[0].Unit != "a" {
		t.Fatalf("clean = %d rows (dropped %d)", clean.Len(), dropped)
	}
}

func TestParseDate(t *testing.T) {
	if d, err := ParseDate("2019-07"); err != nil || d.Month() != 7 || d.Year() != 2019 {
		t.Fatalf("ParseDate month layout: %v %v", d, err)
	}
	if _, err := ParseDate("2019-07-15"); err != nil {
		t.Fatalf("ParseDate day layout: %v", err)
	}
	if _, err := ParseDate("July 2019"); err == nil {
		t.Fatalf("expected error")
	}
}
