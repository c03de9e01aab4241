// Package export writes run artifacts: the merged table as CSV and a results workbook.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/KaramelBytes/ndviloom-cli/internal/dataset"
	"github.com/go-gota/gota/dataframe"
)

// mergedRecord is one row of the merged table as a dataframe record.
// Null numeric cells are NaN.
type mergedRecord struct {
	Index            string  `dataframe:"system:index,string"`
	Date             string  `dataframe:"date,string"`
	NDVI             float64 `dataframe:"mean_NDVI,float"`
	TempK            float64 `dataframe:"mean_temp_K,float"`
	VV               float64 `dataframe:"mean_VV_backscatter,float"`
	PrecipMM         float64 `dataframe:"mean_precip_mm,float"`
	SoilMoisture     float64 `dataframe:"mean_soil_moisture,float"`
	SpecificHumidity float64 `dataframe:"mean_specific_humidity,float"`
	Year             int     `dataframe:"year,int"`
	LandCover        string  `dataframe:"dominant_land_cover,string"`
}

// Frame converts merged observations into a dataframe with the merged
// table's column order.
func Frame(rows []dataset.Observation) (dataframe.DataFrame, error) {
	recs := make([]mergedRecord, len(rows))
	for i, o := range rows {
		recs[i] = mergedRecord{
			Index:            o.Unit,
			Date:             o.Date,
			NDVI:             o.NDVI.OrNaN(),
			TempK:            o.TempK.OrNaN(),
			VV:               o.VV.OrNaN(),
			PrecipMM:         o.PrecipMM.OrNaN(),
			SoilMoisture:     o.SoilMoisture.OrNaN(),
			SpecificHumidity: o.SpecificHumidity.OrNaN(),
			Year:             o.Year,
			LandCover:        o.LandCover,
		}
	}
	df := dataframe.LoadStructs(recs)
	if df.Err != nil {
		return df, fmt.Errorf("build frame: %w", df.Err)
	}
	return df, nil
}

// WriteMergedCSV writes the merged table with a header row.
func WriteMergedCSV(w io.Writer, rows []dataset.Observation) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, strings.Join(dataset.Columns, ","))
		return err
	}
	df, err := Frame(rows)
	if err != nil {
		return err
	}
	if err := df.WriteCSV(w); err != nil {
		return fmt.Errorf("write merged csv: %w", err)
	}
	return nil
}

// Describe returns summary statistics of the numeric columns.
func Describe(rows []dataset.Observation) (dataframe.DataFrame, error) {
	df, err := Frame(rows)
	if err != nil {
		return df, err
	}
	num := df.Select([]string{
		dataset.ColNDVI, dataset.ColTempK, dataset.ColVV, dataset.ColPrecip,
		dataset.ColSoilMoisture, dataset.ColSpecificHumidity,
	})
	if num.Err != nil {
		return num, fmt.Errorf("describe: %w", num.Err)
	}
	return num.Describe(), nil
}
