package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/KaramelBytes/ndviloom-cli/internal/dataset"
	"github.com/KaramelBytes/ndviloom-cli/internal/regression"
)

// Report is a text-friendly summary of one pipeline run.
type Report struct {
	RunID     string
	Generated time.Time

	Audits  []dataset.TableAudit
	Joins   []dataset.JoinStep
	Rows    int // merged rows
	Missing []dataset.ColumnCount
	Dropped int // rows removed for null values

	TrainRows int
	TestRows  int
	MSE       float64
	R2        float64
	Samples   []Prediction

	Coefficients []regression.Coefficient // column order
	Intercept    float64
	Residuals    []regression.ResidualSummary
	Corr         *CorrMatrix

	Warnings []string
}

// Prediction is one held-out actual/predicted pair.
type Prediction struct {
	Unit      string
	Date      string
	Actual    float64
	Predicted float64
}

// Ranked returns the coefficients sorted by descending magnitude.
func (r *Report) Ranked() []regression.Coefficient {
	return regression.ByMagnitude(r.Coefficients)
}

// Warn appends a note to the report.
func (r *Report) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Markdown renders the report for the console or a standalone doc.
func (r *Report) Markdown() string {
	var b strings.Builder
	b.WriteString("[NDVI REGRESSION]\n")
	if r.RunID != "" {
		b.WriteString(fmt.Sprintf("Run: %s\n", r.RunID))
	}
	if !r.Generated.IsZero() {
		b.WriteString(fmt.Sprintf("Generated: %s\n", r.Generated.Format(time.RFC3339)))
	}
	b.WriteString(fmt.Sprintf("Rows: %d merged, %d used (train %d, test %d)\n", r.Rows, r.Rows-r.Dropped, r.TrainRows, r.TestRows))

	if len(r.Audits) > 0 {
		b.WriteString("\n[INPUT TABLES]\n")
		for _, a := range r.Audits {
			b.WriteString(fmt.Sprintf("- %s: %d rows, %d columns", a.Name, a.Rows, len(a.Columns)))
			if len(a.DroppedGeo) > 0 {
				b.WriteString(fmt.Sprintf("; dropped %s", strings.Join(a.DroppedGeo, ", ")))
			}
			if a.DuplicateKeys > 0 {
				b.WriteString(fmt.Sprintf("; %d duplicate key(s)", a.DuplicateKeys))
			}
			b.WriteString("\n")
		}
	}
	if len(r.Joins) > 0 {
		b.WriteString("\n[JOINS]\n")
		for _, j := range r.Joins {
			b.WriteString(fmt.Sprintf("- %s: %d x %d -> %d (unmatched %d)\n", j.Name, j.Left, j.Right, j.Out, j.Unmatched))
		}
	}

	b.WriteString("\n[MISSING VALUES]\n")
	for _, m := range r.Missing {
		b.WriteString(fmt.Sprintf("%-24s %d\n", m.Name, m.Count))
	}

	b.WriteString("\n[MODEL PERFORMANCE]\n")
	b.WriteString(strings.Repeat("-", 50) + "\n")
	b.WriteString(fmt.Sprintf("Mean Squared Error: %.6f\n", r.MSE))
	b.WriteString(fmt.Sprintf("R² Score: %.6f\n", r.R2))
	b.WriteString(strings.Repeat("-", 50) + "\n")

	if len(r.Samples) > 0 {
		b.WriteString("\n[ACTUAL VS PREDICTED]\n")
		b.WriteString("| unit | date | Actual_NDVI | Predicted_NDVI |\n")
		b.WriteString("| --- | --- | --- | --- |\n")
		for _, s := range r.Samples {
			b.WriteString(fmt.Sprintf("| %s | %s | %.6f | %.6f |\n", safeVal(s.Unit), safeVal(s.Date), s.Actual, s.Predicted))
		}
	}

	if len(r.Coefficients) > 0 {
		b.WriteString("\n[MODEL COEFFICIENTS]\n")
		for _, c := range r.Coefficients {
			b.WriteString(fmt.Sprintf("%s: %.4f\n", c.Name, c.Value))
		}
		b.WriteString(fmt.Sprintf("Intercept: %.4f\n", r.Intercept))

		b.WriteString("\n[COEFFICIENTS BY MAGNITUDE]\n")
		for i, c := range r.Ranked() {
			b.WriteString(fmt.Sprintf("%2d. %-40s %+.6g\n", i+1, c.Name, c.Value))
		}
	}

	if len(r.Residuals) > 0 {
		b.WriteString("\n[RESIDUALS]\n")
		for _, s := range r.Residuals {
			if s.Count == 0 {
				continue
			}
			b.WriteString(fmt.Sprintf("- %s (n=%d): mean |error| %.6f, mean squared error %.6f\n", s.Partition, s.Count, s.MeanAbs, s.MeanSq))
		}
	}

	if r.Corr != nil && len(r.Corr.Columns) >= 2 {
		b.WriteString("\n[CORRELATIONS]\n")
		for _, p := range r.Corr.TopPairs(10) {
			b.WriteString(fmt.Sprintf("- %s ~ %s: r=%.3f\n", p.A, p.B, p.R))
		}
	}

	if len(r.Warnings) > 0 {
		b.WriteString("\n[NOTES]\n")
		for _, w := range r.Warnings {
			b.WriteString("- ")
			b.WriteString(w)
			b.WriteString("\n")
		}
	}
	return b.String()
}

func safeVal(s string) string { return strings.ReplaceAll(strings.ReplaceAll(s, "\n", " "), "|", "/") }
