package export

import (
	"fmt"
	"time"

	"github.com/KaramelBytes/ndviloom-cli/internal/analysis"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the results workbook.
const (
	SheetCoefficients = "Coefficients"
	SheetPredictions  = "Predictions"
	SheetResiduals    = "Residuals"
	SheetMetrics      = "Metrics"
)

// ResidualRow is one scored row of the cleaned dataset.
type ResidualRow struct {
	Unit         string
	Date         string
	Partition    string
	Actual       float64
	Predicted    float64
	AbsError     float64
	SquaredError float64
}

// Results is what a workbook holds.
type Results struct {
	Report      *analysis.Report
	Predictions []analysis.Prediction // every test row
	Residuals   []ResidualRow
}

// WriteWorkbook saves the results as an xlsx file at path.
func WriteWorkbook(path string, res Results) error {
	if res.Report == nil {
		return fmt.Errorf("write workbook: no report")
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetMetrics); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for _, s := range []string{SheetCoefficients, SheetPredictions, SheetResiduals} {
		if _, err := f.NewSheet(s); err != nil {
			return fmt.Errorf("new sheet %s: %w", s, err)
		}
	}

	rep := res.Report
	generated := rep.Generated
	if generated.IsZero() {
		generated = time.Now()
	}
	metrics := [][]any{
		{"Metric", "Value"},
		{"Run", rep.RunID},
		{"Generated", generated.Format(time.RFC3339)},
		{"Merged rows", rep.Rows},
		{"Dropped rows", rep.Dropped},
		{"Train rows", rep.TrainRows},
		{"Test rows", rep.TestRows},
		{"Mean Squared Error", rep.MSE},
		{"R2 Score", rep.R2},
	}
	if err := writeRows(f, SheetMetrics, metrics, 20); err != nil {
		return err
	}

	coefs := [][]any{{"Variable", "Coefficient"}}
	for _, c := range rep.Ranked() {
		coefs = append(coefs, []any{c.Name, c.Value})
	}
	coefs = append(coefs, []any{"Intercept", rep.Intercept})
	if err := writeRows(f, SheetCoefficients, coefs, 36); err != nil {
		return err
	}

	preds := [][]any{{"system:index", "date", "Actual_NDVI", "Predicted_NDVI"}}
	for _, p := range res.Predictions {
		preds = append(preds, []any{p.Unit, p.Date, p.Actual, p.Predicted})
	}
	if err := writeRows(f, SheetPredictions, preds, 18); err != nil {
		return err
	}

	resid := [][]any{{"system:index", "date", "partition", "mean_NDVI", "predicted", "error", "squared_error"}}
	for _, r := range res.Residuals {
		resid = append(resid, []any{r.Unit, r.Date, r.Partition, r.Actual, r.Predicted, r.AbsError, r.SquaredError})
	}
	if err := writeRows(f, SheetResiduals, resid, 16); err != nil {
		return err
	}

	if idx, err := f.GetSheetIndex(SheetMetrics); err == nil {
		f.SetActiveSheet(idx)
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// writeRows writes rows starting at A1, bolds the header and sets column widths.
func writeRows(f *excelize.File, sheet string, rows [][]any, width float64) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}
	last, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, width); err != nil {
		return fmt.Errorf("set %s widths: %w", sheet, err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}
	return f.SetCellStyle(sheet, "A1", last+"1", bold)
}
