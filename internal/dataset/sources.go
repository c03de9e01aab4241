package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/schollz/progressbar/v3"
	log "github.com/sirupsen/logrus"
)

// Key is the composite join key shared by the monthly tables.
type Key struct {
	Unit string
	Date string
}

func (k Key) String() string { return k.Unit + "@" + k.Date }

// NDVIRow is one row of the Sentinel-2 NDVI export.
type NDVIRow struct {
	Index string `csv:"system:index"`
	Date  string `csv:"date"`
	NDVI  Float  `csv:"mean_NDVI"`
}

// TemperatureRow is one row of the MODIS temperature export.
type TemperatureRow struct {
	Index string `csv:"system:index"`
	Date  string `csv:"date"`
	TempK Float  `csv:"mean_temp_K"`
}

// VVRow is one row of the Sentinel-1 VV backscatter export.
type VVRow struct {
	Index string `csv:"system:index"`
	Date  string `csv:"date"`
	VV    Float  `csv:"mean_VV_backscatter"`
}

// PrecipitationRow is one row of the CHIRPS precipitation export.
type PrecipitationRow struct {
	Index    string `csv:"system:index"`
	Date     string `csv:"date"`
	PrecipMM Float  `csv:"mean_precip_mm"`
}

// SoilHumidityRow is one row of the GLDAS soil moisture / humidity export.
// Other columns in that file are ignored.
type SoilHumidityRow struct {
	Index            string `csv:"system:index"`
	Date             string `csv:"date"`
	SoilMoisture     Float  `csv:"mean_soil_moisture"`
	SpecificHumidity Float  `csv:"mean_specific_humidity"`
}

// LandCoverRow is one row of the yearly land-cover table.
type LandCoverRow struct {
	Year  int    `csv:"year"`
	Class string `csv:"dominant_land_cover"`
}

func (r NDVIRow) key() Key          { return Key{r.Index, r.Date} }
func (r TemperatureRow) key() Key   { return Key{r.Index, r.Date} }
func (r VVRow) key() Key            { return Key{r.Index, r.Date} }
func (r PrecipitationRow) key() Key { return Key{r.Index, r.Date} }
func (r SoilHumidityRow) key() Key  { return Key{r.Index, r.Date} }

// Paths locates the six source tables.
type Paths struct {
	NDVI          string
	Temperature   string
	VV            string
	Precipitation string
	SoilHumidity  string
	LandCover     string
}

// LoadOptions controls source loading.
type LoadOptions struct {
	// GeoColumnSubstring marks geometry metadata columns to drop (e.g. ".geo").
	GeoColumnSubstring string
	// StrictKeys turns duplicate join keys into an error instead of a warning.
	StrictKeys bool
	// Progress receives a progress bar when non-nil.
	Progress io.Writer
}

// TableAudit describes one loaded table.
type TableAudit struct {
	Name          string
	Path          string
	Rows          int
	Columns       []string
	DroppedGeo    []string
	DuplicateKeys int
	FirstDup      string
}

// Sources holds every loaded table plus its audit.
type Sources struct {
	NDVI          []NDVIRow
	Temperature   []TemperatureRow
	VV            []VVRow
	Precipitation []PrecipitationRow
	SoilHumidity  []SoilHumidityRow
	LandCover     []LandCoverRow
	Audits        []TableAudit
}

// Table names used in audits, errors and reports.
const (
	TableNDVI          = "ndvi"
	TableTemperature   = "temperature"
	TableVV            = "vv"
	TablePrecipitation = "precipitation"
	TableSoilHumidity  = "soil_humidity"
	TableLandCover     = "land_cover"
)

// Load reads all source tables. A missing file or required column aborts the load.
func Load(p Paths, opt LoadOptions) (*Sources, error) {
	src := &Sources{}
	var bar *progressbar.ProgressBar
	if opt.Progress != nil {
		bar = progressbar.NewOptions(6,
			progressbar.OptionSetWriter(opt.Progress),
			progressbar.OptionSetDescription("Loading tables"),
			progressbar.OptionClearOnFinish(),
		)
	}
	step := func(a TableAudit) error {
		if a.DuplicateKeys > 0 {
			if opt.StrictKeys {
				return &DuplicateKeyError{Table: a.Name, Count: a.DuplicateKeys, First: a.FirstDup}
			}
			log.WithFields(log.Fields{"table": a.Name, "duplicates": a.DuplicateKeys}).Warn("duplicate join keys; joins will fan out")
		}
		log.WithFields(log.Fields{"table": a.Name, "rows": a.Rows, "dropped_geo": len(a.DroppedGeo)}).Debug("loaded table")
		src.Audits = append(src.Audits, a)
		if bar != nil {
			_ = bar.Add(1)
		}
		return nil
	}

	var err error
	var a TableAudit
	if src.NDVI, a, err = loadKeyed[NDVIRow](TableNDVI, p.NDVI, []string{"mean_NDVI"}, opt); err != nil {
		return nil, err
	}
	if err := step(a); err != nil {
		return nil, err
	}
	if src.Temperature, a, err = loadKeyed[TemperatureRow](TableTemperature, p.Temperature, []string{"mean_temp_K"}, opt); err != nil {
		return nil, err
	}
	if err := step(a); err != nil {
		return nil, err
	}
	if src.VV, a, err = loadKeyed[VVRow](TableVV, p.VV, []string{"mean_VV_backscatter"}, opt); err != nil {
		return nil, err
	}
	if err := step(a); err != nil {
		return nil, err
	}
	if src.Precipitation, a, err = loadKeyed[PrecipitationRow](TablePrecipitation, p.Precipitation, []string{"mean_precip_mm"}, opt); err != nil {
		return nil, err
	}
	if err := step(a); err != nil {
		return nil, err
	}
	if src.SoilHumidity, a, err = loadKeyed[SoilHumidityRow](TableSoilHumidity, p.SoilHumidity, []string{"mean_soil_moisture", "mean_specific_humidity"}, opt); err != nil {
		return nil, err
	}
	if err := step(a); err != nil {
		return nil, err
	}

	// land cover is keyed by year only
	var lc []LandCoverRow
	if lc, a, err = loadRows[LandCoverRow](TableLandCover, p.LandCover, []string{"year", "dominant_land_cover"}, opt); err != nil {
		return nil, err
	}
	seen := map[int]struct{}{}
	for _, r := range lc {
		if _, ok := seen[r.Year]; ok {
			if a.DuplicateKeys == 0 {
				a.FirstDup = fmt.Sprintf("year=%d", r.Year)
			}
			a.DuplicateKeys++
			continue
		}
		seen[r.Year] = struct{}{}
	}
	src.LandCover = lc
	if err := step(a); err != nil {
		return nil, err
	}
	if bar != nil {
		_ = bar.Finish()
	}
	return src, nil
}

type keyed interface {
	key() Key
}

func loadKeyed[T keyed](name, path string, value []string, opt LoadOptions) ([]T, TableAudit, error) {
	required := append([]string{"system:index", "date"}, value...)
	rows, a, err := loadRows[T](name, path, required, opt)
	if err != nil {
		return nil, a, err
	}
	seen := make(map[Key]struct{}, len(rows))
	for _, r := range rows {
		k := r.key()
		if _, ok := seen[k]; ok {
			if a.DuplicateKeys == 0 {
				a.FirstDup = k.String()
			}
			a.DuplicateKeys++
			continue
		}
		seen[k] = struct{}{}
	}
	return rows, a, nil
}

func loadRows[T any](name, path string, required []string, opt LoadOptions) ([]T, TableAudit, error) {
	a := TableAudit{Name: name, Path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, a, fmt.Errorf("read %s table: %w", name, err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	header, err := readHeader(data)
	if err != nil {
		return nil, a, fmt.Errorf("read %s header (%s): %w", name, filepath.Base(path), err)
	}
	a.Columns, a.DroppedGeo = splitGeoColumns(header, opt.GeoColumnSubstring)
	if missing := missingColumns(a.Columns, required); len(missing) > 0 {
		return nil, a, &MissingColumnError{Table: name, Path: path, Columns: missing}
	}
	var rows []T
	if err := gocsv.UnmarshalBytes(data, &rows); err != nil {
		return nil, a, fmt.Errorf("decode %s table: %w", name, err)
	}
	a.Rows = len(rows)
	return rows, a, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readHeader(data []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyTable
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	return header, nil
}

// splitGeoColumns separates geometry metadata columns from the rest.
// An empty substring keeps every column.
func splitGeoColumns(header []string, substr string) (kept, dropped []string) {
	for _, h := range header {
		if substr != "" && strings.Contains(h, substr) {
			dropped = append(dropped, h)
			continue
		}
		kept = append(kept, h)
	}
	return kept, dropped
}

func missingColumns(have, want []string) []string {
	set := make(map[string]struct{}, len(have))
	for _, h := range have {
		set[h] = struct{}{}
	}
	var out []string
	for _, w := range want {
		if _, ok := set[w]; !ok {
			out = append(out, w)
		}
	}
	return out
}
