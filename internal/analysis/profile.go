package analysis

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/KaramelBytes/ndviloom-cli/internal/dataset"
	"github.com/xuri/excelize/v2"
	"gonum.org/v1/gonum/stat"
)

// ProfileOptions controls table profiling.
type ProfileOptions struct {
	// SampleRows is how many leading rows to keep for display.
	SampleRows int
	// GeoColumnSubstring marks geometry columns to skip; empty keeps all.
	GeoColumnSubstring string
	// OutlierThreshold is the robust |z| cutoff; 0 disables outlier counts.
	OutlierThreshold float64
	// Sheet selects an xlsx sheet by name; empty means the first sheet.
	Sheet string
}

// DefaultProfileOptions returns the settings used by the profile command.
func DefaultProfileOptions() ProfileOptions {
	return ProfileOptions{SampleRows: 5, GeoColumnSubstring: ".geo", OutlierThreshold: 3.5}
}

// Column kinds.
const (
	KindNumeric     = "numeric"
	KindDate        = "date"
	KindCategorical = "categorical"
	KindEmpty       = "empty"
)

// ColumnProfile summarizes one column of an export.
type ColumnProfile struct {
	Name    string
	Kind    string
	NonNull int
	Missing int
	Unique  int

	Min, Max, Mean, Std float64

	Outliers  int
	MaxAbsZ   float64
	FirstDate string
	LastDate  string
	TopValues []CategoryCount
}

// CategoryCount is one value frequency.
type CategoryCount struct {
	Value string
	Count int
}

// Profile is the audit of one input table.
type Profile struct {
	Name       string
	Rows       int
	Cols       []ColumnProfile
	DroppedGeo []string
	Samples    [][]string
	Warnings   []string

	threshold float64
}

// Column returns the named column profile.
func (p *Profile) Column(name string) (ColumnProfile, bool) {
	for _, c := range p.Cols {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnProfile{}, false
}

// ProfileFile profiles a .csv or .xlsx export.
func ProfileFile(path string, opt ProfileOptions) (*Profile, error) {
	var (
		records [][]string
		err     error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		records, err = readXLSX(path, opt.Sheet)
	default:
		records, err = readCSV(path)
	}
	if err != nil {
		return nil, err
	}
	return profileRecords(filepath.Base(path), records, opt), nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	var out [][]string
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	if len(out) > 0 && len(out[0]) > 0 {
		out[0][0] = strings.TrimPrefix(out[0][0], "\uFEFF")
	}
	return out, nil
}

func readXLSX(path, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("open xlsx: no sheets in %s", filepath.Base(path))
		}
		sheet = sheets[0]
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

func profileRecords(name string, records [][]string, opt ProfileOptions) *Profile {
	p := &Profile{Name: name, threshold: opt.OutlierThreshold}
	if len(records) == 0 {
		p.Warnings = append(p.Warnings, "table is empty")
		return p
	}
	header := records[0]
	var keep []int
	for i, h := range header {
		h = strings.TrimSpace(h)
		if opt.GeoColumnSubstring != "" && strings.Contains(h, opt.GeoColumnSubstring) {
			p.DroppedGeo = append(p.DroppedGeo, h)
			continue
		}
		keep = append(keep, i)
	}
	body := records[1:]
	p.Rows = len(body)

	for _, i := range keep {
		col := make([]string, len(body))
		for r, rec := range body {
			if i < len(rec) {
				col[r] = strings.TrimSpace(rec[i])
			}
		}
		p.Cols = append(p.Cols, profileColumn(strings.TrimSpace(header[i]), col, opt.OutlierThreshold))
	}

	for r := 0; r < len(body) && r < opt.SampleRows; r++ {
		row := make([]string, len(keep))
		for j, i := range keep {
			if i < len(body[r]) {
				row[j] = body[r][i]
			}
		}
		p.Samples = append(p.Samples, row)
	}
	if p.Rows == 0 {
		p.Warnings = append(p.Warnings, "table has a header but no rows")
	}
	return p
}

func isNull(v string) bool {
	switch strings.ToLower(v) {
	case "", "nan", "null", "na", "none":
		return true
	}
	return false
}

func profileColumn(name string, vals []string, threshold float64) ColumnProfile {
	c := ColumnProfile{Name: name}
	var nums []float64
	var dates []string
	cats := map[string]int{}
	for _, v := range vals {
		if isNull(v) {
			c.Missing++
			continue
		}
		c.NonNull++
		cats[v]++
		if x, err := strconv.ParseFloat(v, 64); err == nil {
			nums = append(nums, x)
			continue
		}
		if _, err := dataset.ParseDate(v); err == nil {
			dates = append(dates, v)
		}
	}
	c.Unique = len(cats)

	switch {
	case c.NonNull == 0:
		c.Kind = KindEmpty
	case len(nums) == c.NonNull && name != dataset.ColIndex:
		c.Kind = KindNumeric
		c.Mean, c.Std = stat.MeanStdDev(nums, nil)
		if len(nums) < 2 {
			c.Std = 0
		}
		c.Min, c.Max = math.Inf(1), math.Inf(-1)
		for _, x := range nums {
			c.Min = math.Min(c.Min, x)
			c.Max = math.Max(c.Max, x)
		}
		if threshold > 0 && len(nums) >= 8 {
			c.Outliers, c.MaxAbsZ = robustOutliers(nums, threshold)
		}
	case len(dates) == c.NonNull:
		c.Kind = KindDate
		sort.Strings(dates)
		c.FirstDate, c.LastDate = dates[0], dates[len(dates)-1]
	default:
		c.Kind = KindCategorical
		tops := make([]CategoryCount, 0, len(cats))
		for k, n := range cats {
			tops = append(tops, CategoryCount{Value: k, Count: n})
		}
		sort.Slice(tops, func(i, j int) bool {
			if tops[i].Count == tops[j].Count {
				return tops[i].Value < tops[j].Value
			}
			return tops[i].Count > tops[j].Count
		})
		if len(tops) > 8 {
			tops = tops[:8]
		}
		c.TopValues = tops
	}
	return c
}

// robustOutliers counts values whose modified z-score (0.6745·(x-median)/MAD)
// exceeds threshold.
func robustOutliers(vals []float64, threshold float64) (int, float64) {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
	dev := make([]float64, len(sorted))
	for i, v := range sorted {
		dev[i] = math.Abs(v - median)
	}
	sort.Float64s(dev)
	mad := stat.Quantile(0.5, stat.Empirical, dev, nil)
	if mad == 0 {
		return 0, 0
	}
	var n int
	var maxZ float64
	for _, v := range vals {
		z := math.Abs(0.6745 * (v - median) / mad)
		if z > threshold {
			n++
		}
		maxZ = math.Max(maxZ, z)
	}
	return n, maxZ
}

// Markdown renders the profile in the same sectioned layout as the run report.
func (p *Profile) Markdown() string {
	var b strings.Builder
	b.WriteString("[TABLE PROFILE]\n")
	b.WriteString(fmt.Sprintf("File: %s\n", p.Name))
	b.WriteString(fmt.Sprintf("Rows: %d\n", p.Rows))
	b.WriteString(fmt.Sprintf("Columns: %d\n", len(p.Cols)))
	if len(p.DroppedGeo) > 0 {
		b.WriteString(fmt.Sprintf("Skipped geometry columns: %s\n", strings.Join(p.DroppedGeo, ", ")))
	}

	b.WriteString("\n[SCHEMA]\n")
	for _, c := range p.Cols {
		total := c.NonNull + c.Missing
		missPct := 0.0
		if total > 0 {
			missPct = float64(c.Missing) * 100 / float64(total)
		}
		b.WriteString(fmt.Sprintf("- %s: %s (non-null %d, missing %.1f%%)", c.Name, c.Kind, c.NonNull, missPct))
		switch c.Kind {
		case KindNumeric:
			b.WriteString(fmt.Sprintf("; min %.4g, max %.4g, mean %.4g, std %.4g", c.Min, c.Max, c.Mean, c.Std))
			if p.threshold > 0 && c.Outliers > 0 {
				b.WriteString(fmt.Sprintf("; outliers: %d above |z|>%.1f (max |z|≈%.2f)", c.Outliers, p.threshold, c.MaxAbsZ))
			}
		case KindDate:
			b.WriteString(fmt.Sprintf("; %s .. %s", c.FirstDate, c.LastDate))
		case KindCategorical:
			b.WriteString("; top: ")
			for i, kv := range c.TopValues {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(fmt.Sprintf("%s(%d)", safeVal(kv.Value), kv.Count))
			}
			if c.Unique > len(c.TopValues) {
				b.WriteString(fmt.Sprintf("; unique=%d", c.Unique))
			}
		}
		b.WriteString("\n")
	}

	if len(p.Samples) > 0 {
		b.WriteString("\n[HEAD AND SAMPLE ROWS]\n|")
		for _, c := range p.Cols {
			b.WriteString(" " + c.Name + " |")
		}
		b.WriteString("\n|")
		for range p.Cols {
			b.WriteString(" --- |")
		}
		b.WriteString("\n")
		for _, row := range p.Samples {
			b.WriteString("|")
			for _, v := range row {
				if len(v) > 80 {
					v = v[:77] + "..."
				}
				b.WriteString(" " + safeVal(v) + " |")
			}
			b.WriteString("\n")
		}
	}

	if len(p.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range p.Warnings {
			b.WriteString("- " + w + "\n")
		}
	}
	return b.String()
}
