package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Observation is one merged (unit, month) record.
type Observation struct {
	Unit             string
	Date             string
	Year             int
	NDVI             Float
	TempK            Float
	VV               Float
	PrecipMM         Float
	SoilMoisture     Float
	SpecificHumidity Float
	// LandCover is empty when no land-cover record exists for Year.
	LandCover string
}

// HasLandCover reports whether the left join found a land-cover class.
func (o Observation) HasLandCover() bool { return o.LandCover != "" }

// Numeric returns the nullable numeric fields in Columns order (after the key columns).
func (o Observation) Numeric() []Float {
	return []Float{o.NDVI, o.TempK, o.VV, o.PrecipMM, o.SoilMoisture, o.SpecificHumidity}
}

// Complete reports whether every numeric field is present.
func (o Observation) Complete() bool {
	for _, f := range o.Numeric() {
		if !f.Valid {
			return false
		}
	}
	return true
}

// ParseDate accepts the month and day layouts found in the exports.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, l := range []string{"2006-01", "2006-01-02", time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(l, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// Column names of the merged table, in report order.
const (
	ColIndex            = "system:index"
	ColDate             = "date"
	ColNDVI             = "mean_NDVI"
	ColTempK            = "mean_temp_K"
	ColVV               = "mean_VV_backscatter"
	ColPrecip           = "mean_precip_mm"
	ColSoilMoisture     = "mean_soil_moisture"
	ColSpecificHumidity = "mean_specific_humidity"
	ColYear             = "year"
	ColLandCover        = "dominant_land_cover"
)

// Columns lists the merged table's columns.
var Columns = []string{ColIndex, ColDate, ColNDVI, ColTempK, ColVV, ColPrecip, ColSoilMoisture, ColSpecificHumidity, ColYear, ColLandCover}

// JoinStep records the cardinalities of one join.
type JoinStep struct {
	Name      string
	Left      int
	Right     int
	Out       int
	Unmatched int // left rows with no partner
}

// Table is the merged dataset.
type Table struct {
	Rows  []Observation
	Steps []JoinStep
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// climate accumulates the inner-joined monthly covariates.
type climate struct {
	key              Key
	tempK            Float
	vv               Float
	precip           Float
	soilMoisture     Float
	specificHumidity Float
}

// Join merges the sources: temperature ⋈ VV ⋈ precipitation ⋈ soil/humidity,
// then NDVI ⋈ that on (unit, date), then a left join of land cover on year.
// Inner joins drop unmatched rows silently; duplicate keys fan out.
func Join(src *Sources) (*Table, error) {
	t := &Table{}
	record := func(name string, left, right, out, unmatched int) {
		t.Steps = append(t.Steps, JoinStep{Name: name, Left: left, Right: right, Out: out, Unmatched: unmatched})
		log.WithFields(log.Fields{"join": name, "left": left, "right": right, "out": out}).Debug("joined")
	}

	c, un := innerJoin(src.Temperature, src.VV,
		func(r TemperatureRow) Key { return r.key() },
		func(r VVRow) Key { return r.key() },
		func(l TemperatureRow, r VVRow) climate {
			return climate{key: l.key(), tempK: l.TempK, vv: r.VV}
		})
	record("temperature+vv", len(src.Temperature), len(src.VV), len(c), un)

	n := len(c)
	c, un = innerJoin(c, src.Precipitation,
		func(l climate) Key { return l.key },
		func(r PrecipitationRow) Key { return r.key() },
		func(l climate, r PrecipitationRow) climate {
			l.precip = r.PrecipMM
			return l
		})
	record("+precipitation", n, len(src.Precipitation), len(c), un)

	n = len(c)
	c, un = innerJoin(c, src.SoilHumidity,
		func(l climate) Key { return l.key },
		func(r SoilHumidityRow) Key { return r.key() },
		func(l climate, r SoilHumidityRow) climate {
			l.soilMoisture = r.SoilMoisture
			l.specificHumidity = r.SpecificHumidity
			return l
		})
	record("+soil_humidity", n, len(src.SoilHumidity), len(c), un)

	obs, un := innerJoin(src.NDVI, c,
		func(r NDVIRow) Key { return r.key() },
		func(r climate) Key { return r.key },
		func(l NDVIRow, r climate) Observation {
			return Observation{
				Unit:             l.Index,
				Date:             l.Date,
				NDVI:             l.NDVI,
				TempK:            r.tempK,
				VV:               r.vv,
				PrecipMM:         r.precip,
				SoilMoisture:     r.soilMoisture,
				SpecificHumidity: r.specificHumidity,
			}
		})
	record("ndvi+climate", len(src.NDVI), len(c), len(obs), un)

	for i := range obs {
		y, err := yearOf(obs[i].Date)
		if err != nil {
			return nil, fmt.Errorf("derive year for %s: %w", Key{obs[i].Unit, obs[i].Date}, err)
		}
		obs[i].Year = y
	}

	byYear := make(map[int][]string, len(src.LandCover))
	for _, r := range src.LandCover {
		byYear[r.Year] = append(byYear[r.Year], strings.TrimSpace(r.Class))
	}
	out := make([]Observation, 0, len(obs))
	missing := 0
	for _, o := range obs {
		classes, ok := byYear[o.Year]
		if !ok {
			missing++
			out = append(out, o)
			continue
		}
		for _, cl := range classes {
			o.LandCover = cl
			out = append(out, o)
		}
	}
	record("+land_cover (left)", len(obs), len(src.LandCover), len(out), missing)

	t.Rows = out
	return t, nil
}

// innerJoin emits merge(l, r) for every matching pair, in left order and then
// right order, and counts left rows without a partner.
func innerJoin[L, R, O any](left []L, right []R, lk func(L) Key, rk func(R) Key, merge func(L, R) O) ([]O, int) {
	idx := make(map[Key][]int, len(right))
	for i, r := range right {
		k := rk(r)
		idx[k] = append(idx[k], i)
	}
	out := make([]O, 0, len(left))
	unmatched := 0
	for _, l := range left {
		m, ok := idx[lk(l)]
		if !ok {
			unmatched++
			continue
		}
		for _, j := range m {
			out = append(out, merge(l, right[j]))
		}
	}
	return out, unmatched
}

func yearOf(date string) (int, error) {
	d := strings.TrimSpace(date)
	if len(d) < 4 {
		return 0, fmt.Errorf("date %q too short", date)
	}
	return strconv.Atoi(d[:4])
}

// ColumnCount is a per-column tally.
type ColumnCount struct {
	Name  string
	Count int
}

// MissingCounts tallies nulls per column of the merged table.
func (t *Table) MissingCounts() []ColumnCount {
	counts := make([]ColumnCount, len(Columns))
	for i, c := range Columns {
		counts[i].Name = c
	}
	for _, o := range t.Rows {
		if strings.TrimSpace(o.Unit) == "" {
			counts[0].Count++
		}
		if strings.TrimSpace(o.Date) == "" {
			counts[1].Count++
		}
		for j, f := range o.Numeric() {
			if !f.Valid {
				counts[2+j].Count++
			}
		}
		if !o.HasLandCover() {
			counts[9].Count++
		}
	}
	return counts
}

// DropIncomplete returns a new table without rows that have a null numeric field.
// A missing land-cover class does not drop the row; it encodes as all-zero indicators.
func (t *Table) DropIncomplete() (*Table, int) {
	kept := make([]Observation, 0, len(t.Rows))
	for _, o := range t.Rows {
		if o.Complete() {
			kept = append(kept, o)
		}
	}
	return &Table{Rows: kept, Steps: t.Steps}, len(t.Rows) - len(kept)
}

// LandCoverValues returns the land-cover column, "" for nulls.
func (t *Table) LandCoverValues() []string {
	out := make([]string, len(t.Rows))
	for i, o := range t.Rows {
		out[i] = o.LandCover
	}
	return out
}
