package analysis

import (
	"math"
	"sort"

	"github.com/KaramelBytes/ndviloom-cli/internal/dataset"
	"github.com/KaramelBytes/ndviloom-cli/internal/features"
	"github.com/KaramelBytes/ndviloom-cli/internal/regression"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// CorrMatrix holds a symmetric Pearson correlation matrix across numeric columns.
// Entries for constant columns are NaN.
type CorrMatrix struct {
	Columns []string
	Values  [][]float64 // row-major, Values[i][j]
}

// PairCorr is a simple correlation pair summary.
type PairCorr struct {
	A, B string
	R    float64
}

// Correlations computes the correlation matrix of the columns of data.
func Correlations(columns []string, data mat.Matrix) *CorrMatrix {
	var sym mat.SymDense
	stat.CorrelationMatrix(&sym, data, nil)
	n := sym.SymmetricDim()
	vals := make([][]float64, n)
	for i := range vals {
		vals[i] = make([]float64, n)
		for j := range vals[i] {
			r := sym.At(i, j)
			if r > 1 {
				r = 1
			} else if r < -1 {
				r = -1
			}
			vals[i][j] = r
		}
	}
	return &CorrMatrix{Columns: append([]string(nil), columns...), Values: vals}
}

// TopPairs lists up to n off-diagonal pairs by descending |r|, skipping NaN.
func (c *CorrMatrix) TopPairs(n int) []PairCorr {
	var pairs []PairCorr
	for i := range c.Columns {
		for j := i + 1; j < len(c.Columns); j++ {
			r := c.Values[i][j]
			if math.IsNaN(r) {
				continue
			}
			pairs = append(pairs, PairCorr{A: c.Columns[i], B: c.Columns[j], R: r})
		}
	}
	sort.SliceStable(pairs, func(i, j int) bool {
		ai, aj := math.Abs(pairs[i].R), math.Abs(pairs[j].R)
		if ai == aj {
			return pairs[i].A+pairs[i].B < pairs[j].A+pairs[j].B
		}
		return ai > aj
	})
	if n > 0 && len(pairs) > n {
		pairs = pairs[:n]
	}
	return pairs
}

// NumericFrame assembles the numeric columns of the cleaned table in merge
// order: target, covariates, year, indicators, then the residual columns.
func NumericFrame(rows []dataset.Observation, d *features.Design, res []regression.Residual) ([]string, *mat.Dense) {
	_, nx := d.X.Dims()
	names := []string{dataset.ColNDVI}
	names = append(names, features.Covariates...)
	names = append(names, dataset.ColYear)
	names = append(names, d.Names[len(features.Covariates):]...)
	names = append(names, "error", "squared_error")

	data := mat.NewDense(len(rows), len(names), nil)
	for i, o := range rows {
		row := data.RawRowView(i)
		row[0] = d.Y[i]
		k := 1
		for j := 0; j < len(features.Covariates); j++ {
			row[k] = d.X.At(i, j)
			k++
		}
		row[k] = float64(o.Year)
		k++
		for j := len(features.Covariates); j < nx; j++ {
			row[k] = d.X.At(i, j)
			k++
		}
		row[k] = res[i].AbsError
		row[k+1] = res[i].SquaredError
	}
	return names, data
}
