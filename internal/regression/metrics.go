package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// MeanSquaredError returns the mean of squared differences.
func MeanSquaredError(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("mse: %d actual vs %d predicted: %w", len(actual), len(predicted), ErrDimensionMismatch)
	}
	if len(actual) == 0 {
		return 0, fmt.Errorf("mse: %w", ErrInsufficientData)
	}
	d := floats.Distance(actual, predicted, 2)
	return d * d / float64(len(actual)), nil
}

// R2Score is the coefficient of determination, at most 1. For a constant
// target it is 1 when predictions are exact and 0 otherwise.
func R2Score(actual, predicted []float64) (float64, error) {
	if len(actual) != len(predicted) {
		return 0, fmt.Errorf("r2: %d actual vs %d predicted: %w", len(actual), len(predicted), ErrDimensionMismatch)
	}
	if len(actual) == 0 {
		return 0, fmt.Errorf("r2: %w", ErrInsufficientData)
	}
	mean := stat.Mean(actual, nil)
	var ssRes, ssTot float64
	for i, a := range actual {
		ssRes += (a - predicted[i]) * (a - predicted[i])
		ssTot += (a - mean) * (a - mean)
	}
	if ssTot == 0 {
		if ssRes == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - ssRes/ssTot, nil
}

// Residual is the error of one scored row.
type Residual struct {
	Row          int
	Actual       float64
	Predicted    float64
	AbsError     float64
	SquaredError float64
	Partition    Partition
}

// Residuals pairs actual and predicted values row by row. parts may be nil.
func Residuals(actual, predicted []float64, parts []Partition) ([]Residual, error) {
	if len(actual) != len(predicted) || (parts != nil && len(parts) != len(actual)) {
		return nil, fmt.Errorf("residuals: %w", ErrDimensionMismatch)
	}
	out := make([]Residual, len(actual))
	for i, a := range actual {
		e := a - predicted[i]
		out[i] = Residual{Row: i, Actual: a, Predicted: predicted[i], AbsError: math.Abs(e), SquaredError: e * e}
		if parts != nil {
			out[i].Partition = parts[i]
		}
	}
	return out, nil
}

// ResidualSummary aggregates residuals per partition.
type ResidualSummary struct {
	Partition Partition
	Count     int
	MeanAbs   float64
	MeanSq    float64
}

// Summarize returns train and test summaries, in that order.
func Summarize(res []Residual) []ResidualSummary {
	out := []ResidualSummary{{Partition: Train}, {Partition: Test}}
	for _, r := range res {
		s := &out[r.Partition]
		s.Count++
		s.MeanAbs += r.AbsError
		s.MeanSq += r.SquaredError
	}
	for i := range out {
		if out[i].Count > 0 {
			out[i].MeanAbs /= float64(out[i].Count)
			out[i].MeanSq /= float64(out[i].Count)
		}
	}
	return out
}
