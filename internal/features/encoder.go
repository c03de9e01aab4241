// Package features turns merged observations into a numeric design matrix.
package features

import (
	"errors"
	"sort"
	"strings"
)

// ErrNotFitted is returned when an encoder is used before Fit.
var ErrNotFitted = errors.New("encoder not fitted")

// OneHotEncoder maps a categorical column to fixed-order 0/1 indicator columns.
// Categories are learned once by Fit; values not seen then encode as all zeros.
type OneHotEncoder struct {
	Prefix     string
	categories []string
	index      map[string]int
}

// NewOneHotEncoder returns an encoder whose feature names are "<prefix>_<class>".
func NewOneHotEncoder(prefix string) *OneHotEncoder {
	return &OneHotEncoder{Prefix: prefix}
}

// Fit learns the distinct non-empty values in sorted order.
func (e *OneHotEncoder) Fit(values []string) *OneHotEncoder {
	set := map[string]struct{}{}
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		set[v] = struct{}{}
	}
	e.categories = make([]string, 0, len(set))
	for v := range set {
		e.categories = append(e.categories, v)
	}
	sort.Strings(e.categories)
	e.index = make(map[string]int, len(e.categories))
	for i, c := range e.categories {
		e.index[c] = i
	}
	return e
}

// Fitted reports whether Fit has run.
func (e *OneHotEncoder) Fitted() bool { return e.index != nil }

// Categories returns the learned classes in column order.
func (e *OneHotEncoder) Categories() []string {
	out := make([]string, len(e.categories))
	copy(out, e.categories)
	return out
}

// FeatureNames returns one column name per category.
func (e *OneHotEncoder) FeatureNames() []string {
	out := make([]string, len(e.categories))
	for i, c := range e.categories {
		out[i] = e.Prefix + "_" + c
	}
	return out
}

// Transform encodes one value. Unknown and empty values yield all zeros.
func (e *OneHotEncoder) Transform(v string) ([]float64, error) {
	if !e.Fitted() {
		return nil, ErrNotFitted
	}
	row := make([]float64, len(e.categories))
	if i, ok := e.index[strings.TrimSpace(v)]; ok {
		row[i] = 1
	}
	return row, nil
}
