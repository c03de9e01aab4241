package features

import (
	"errors"
	"fmt"

	"github.com/KaramelBytes/ndviloom-cli/internal/dataset"
	"gonum.org/v1/gonum/mat"
)

// Covariates are the numeric model inputs, in column order.
var Covariates = []string{
	dataset.ColTempK,
	dataset.ColVV,
	dataset.ColPrecip,
	dataset.ColSoilMoisture,
	dataset.ColSpecificHumidity,
}

// Target is the predicted column.
const Target = dataset.ColNDVI

var (
	// ErrNoRows indicates an empty input table.
	ErrNoRows = errors.New("no rows to encode")
	// ErrNullValue indicates a row with a null covariate or target; drop incomplete rows first.
	ErrNullValue = errors.New("null value in model input")
)

// Design is the model input: X (rows × features), target y and column names.
type Design struct {
	X     *mat.Dense
	Y     []float64
	Names []string
}

// Rows returns the number of observations.
func (d *Design) Rows() int { return len(d.Y) }

// Subset returns the design restricted to the given row indices, in that order.
func (d *Design) Subset(rows []int) *Design {
	y := make([]float64, len(rows))
	if len(rows) == 0 {
		return &Design{X: &mat.Dense{}, Y: y, Names: d.Names}
	}
	_, c := d.X.Dims()
	x := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		x.SetRow(i, d.X.RawRowView(r))
		y[i] = d.Y[r]
	}
	return &Design{X: x, Y: y, Names: d.Names}
}

// Build encodes observations as covariates followed by land-cover indicators.
// The encoder must already be fitted.
func Build(rows []dataset.Observation, enc *OneHotEncoder) (*Design, error) {
	if len(rows) == 0 {
		return nil, ErrNoRows
	}
	if !enc.Fitted() {
		return nil, ErrNotFitted
	}
	names := append(append([]string{}, Covariates...), enc.FeatureNames()...)
	x := mat.NewDense(len(rows), len(names), nil)
	y := make([]float64, len(rows))
	for i, o := range rows {
		if !o.NDVI.Valid {
			return nil, fmt.Errorf("row %d (%s %s) %s: %w", i, o.Unit, o.Date, Target, ErrNullValue)
		}
		y[i] = o.NDVI.Value
		cov := []dataset.Float{o.TempK, o.VV, o.PrecipMM, o.SoilMoisture, o.SpecificHumidity}
		for j, f := range cov {
			if !f.Valid {
				return nil, fmt.Errorf("row %d (%s %s) %s: %w", i, o.Unit, o.Date, Covariates[j], ErrNullValue)
			}
			x.Set(i, j, f.Value)
		}
		ind, err := enc.Transform(o.LandCover)
		if err != nil {
			return nil, err
		}
		for j, v := range ind {
			x.Set(i, len(cov)+j, v)
		}
	}
	return &Design{X: x, Y: y, Names: names}, nil
}
