package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Float is a nullable float64 cell. Empty, NaN and null-like cells decode as invalid.
type Float struct {
	Value float64
	Valid bool
}

// Some returns a valid Float.
func Some(v float64) Float { return Float{Value: v, Valid: true} }

// Null is the invalid Float.
var Null = Float{}

// UnmarshalCSV implements gocsv.TypeUnmarshaller.
func (f *Float) UnmarshalCSV(s string) error {
	raw := strings.TrimSpace(s)
	switch strings.ToLower(raw) {
	case "", "nan", "null", "na", "none":
		*f = Null
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("parse number %q: %w", raw, err)
	}
	if math.IsNaN(v) {
		*f = Null
		return nil
	}
	*f = Some(v)
	return nil
}

// MarshalCSV implements gocsv.TypeMarshaller.
func (f Float) MarshalCSV() (string, error) {
	if !f.Valid {
		return "", nil
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64), nil
}

// OrNaN returns the value, or NaN when null.
func (f Float) OrNaN() float64 {
	if !f.Valid {
		return math.NaN()
	}
	return f.Value
}
