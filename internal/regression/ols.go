package regression

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrInsufficientData indicates too few rows to fit or split.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrDimensionMismatch indicates inconsistent matrix/vector sizes.
	ErrDimensionMismatch = errors.New("dimension mismatch")
	// ErrSingular indicates the SVD of the design matrix failed.
	ErrSingular = errors.New("design matrix factorization failed")
)

// Model is a fitted linear model. It is not modified after Fit.
type Model struct {
	names     []string
	weights   []float64
	intercept float64
	rank      int
}

// Coefficient pairs a feature name with its weight.
type Coefficient struct {
	Name  string
	Value float64
}

// Fit estimates weights and intercept minimizing the sum of squared residuals.
// names labels the columns of x and may be nil.
func Fit(x mat.Matrix, y []float64, names []string) (*Model, error) {
	r, c := x.Dims()
	if r != len(y) {
		return nil, fmt.Errorf("x has %d rows, y has %d: %w", r, len(y), ErrDimensionMismatch)
	}
	if names != nil && len(names) != c {
		return nil, fmt.Errorf("x has %d columns, %d names: %w", c, len(names), ErrDimensionMismatch)
	}
	if r < 2 {
		return nil, fmt.Errorf("fit needs at least 2 rows, got %d: %w", r, ErrInsufficientData)
	}
	if names == nil {
		names = make([]string, c)
		for j := range names {
			names[j] = fmt.Sprintf("x%d", j)
		}
	}

	xMean := make([]float64, c)
	xc := mat.NewDense(r, c, nil)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, x)
		m := stat.Mean(col, nil)
		xMean[j] = m
		for i, v := range col {
			xc.Set(i, j, v-m)
		}
	}
	yMean := stat.Mean(y, nil)
	yc := make([]float64, r)
	for i, v := range y {
		yc[i] = v - yMean
	}

	var svd mat.SVD
	if ok := svd.Factorize(xc, mat.SVDThin); !ok {
		return nil, ErrSingular
	}
	// singular values below rcondRatio*σmax count as zero
	rank := svd.Rank(rcondRatio)
	w := make([]float64, c)
	if rank > 0 {
		var sol mat.VecDense
		svd.SolveVecTo(&sol, mat.NewVecDense(r, yc), rank)
		for j := range w {
			w[j] = sol.AtVec(j)
		}
	}
	intercept := yMean
	for j := range w {
		intercept -= w[j] * xMean[j]
	}
	return &Model{names: append([]string(nil), names...), weights: w, intercept: intercept, rank: rank}, nil
}

const rcondRatio = 1e-12

// Intercept returns the fitted intercept.
func (m *Model) Intercept() float64 { return m.intercept }

// Weights returns a copy of the weights in column order.
func (m *Model) Weights() []float64 { return append([]float64(nil), m.weights...) }

// Names returns the feature names in column order.
func (m *Model) Names() []string { return append([]string(nil), m.names...) }

// Rank is the numerical rank of the centered design matrix.
func (m *Model) Rank() int { return m.rank }

// Predict scores every row of x.
func (m *Model) Predict(x mat.Matrix) ([]float64, error) {
	r, c := x.Dims()
	if r == 0 {
		return nil, nil
	}
	if c != len(m.weights) {
		return nil, fmt.Errorf("model has %d weights, x has %d columns: %w", len(m.weights), c, ErrDimensionMismatch)
	}
	var out mat.VecDense
	out.MulVec(x, mat.NewVecDense(c, m.Weights()))
	pred := make([]float64, r)
	for i := range pred {
		pred[i] = out.AtVec(i) + m.intercept
	}
	return pred, nil
}

// Coefficients returns name/weight pairs in column order.
func (m *Model) Coefficients() []Coefficient {
	out := make([]Coefficient, len(m.weights))
	for j, w := range m.weights {
		out[j] = Coefficient{Name: m.names[j], Value: w}
	}
	return out
}

// RankedCoefficients returns coefficients sorted by descending |weight|.
func (m *Model) RankedCoefficients() []Coefficient {
	return ByMagnitude(m.Coefficients())
}

// ByMagnitude returns a copy of coefs sorted by descending |value|, ties by name.
func ByMagnitude(coefs []Coefficient) []Coefficient {
	out := append([]Coefficient(nil), coefs...)
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Value), math.Abs(out[j].Value)
		if ai == aj {
			return out[i].Name < out[j].Name
		}
		return ai > aj
	})
	return out
}
