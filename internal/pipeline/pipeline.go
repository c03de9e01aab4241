// Package pipeline runs load, join, encode, fit and report end to end.
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/KaramelBytes/ndviloom-cli/internal/analysis"
	"github.com/KaramelBytes/ndviloom-cli/internal/config"
	"github.com/KaramelBytes/ndviloom-cli/internal/dataset"
	"github.com/KaramelBytes/ndviloom-cli/internal/export"
	"github.com/KaramelBytes/ndviloom-cli/internal/features"
	"github.com/KaramelBytes/ndviloom-cli/internal/plots"
	"github.com/KaramelBytes/ndviloom-cli/internal/regression"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Options tweaks a single run.
type Options struct {
	// NoPlots skips chart rendering.
	NoPlots bool
	// Progress receives the table-loading progress bar when non-nil.
	Progress io.Writer
}

// Result holds every intermediate of a run.
type Result struct {
	RunID  string
	Report *analysis.Report

	Merged *dataset.Table
	Clean  *dataset.Table
	Design *features.Design
	Model  *regression.Model

	Train, Test []int
	// Predictions covers every test row, in test order.
	Predictions []analysis.Prediction
	// Residuals covers every row of Clean.
	Residuals []regression.Residual
	Plots     []string
}

// Paths resolves the configured input files.
func Paths(cfg *config.Global) dataset.Paths {
	return dataset.Paths{
		NDVI:          cfg.Path(cfg.Files.NDVI),
		Temperature:   cfg.Path(cfg.Files.Temperature),
		VV:            cfg.Path(cfg.Files.VV),
		Precipitation: cfg.Path(cfg.Files.Precipitation),
		SoilHumidity:  cfg.Path(cfg.Files.SoilHumidity),
		LandCover:     cfg.Path(cfg.Files.LandCover),
	}
}

// LoadAndJoin loads the source tables and merges them.
func LoadAndJoin(cfg *config.Global, progress io.Writer) (*dataset.Sources, *dataset.Table, error) {
	src, err := dataset.Load(Paths(cfg), dataset.LoadOptions{
		GeoColumnSubstring: cfg.GeoColumnSubstring,
		StrictKeys:         cfg.StrictKeys,
		Progress:           progress,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load sources: %w", err)
	}
	tbl, err := dataset.Join(src)
	if err != nil {
		return nil, nil, fmt.Errorf("join sources: %w", err)
	}
	log.WithField("rows", tbl.Len()).Debug("merged table ready")
	return src, tbl, nil
}

// Run executes the whole pipeline once.
func Run(cfg *config.Global, opt Options) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	logger := log.WithField("run", res.RunID)
	rep := &analysis.Report{RunID: res.RunID, Generated: time.Now()}
	res.Report = rep

	src, merged, err := LoadAndJoin(cfg, opt.Progress)
	if err != nil {
		return nil, err
	}
	res.Merged = merged
	rep.Audits = src.Audits
	rep.Joins = merged.Steps
	rep.Rows = merged.Len()
	rep.Missing = merged.MissingCounts()
	noteJoins(rep, merged.Steps)
	for _, a := range src.Audits {
		if a.DuplicateKeys > 0 {
			rep.Warn("%s has %d duplicate key(s) (first %s); joins fanned out", a.Name, a.DuplicateKeys, a.FirstDup)
		}
	}

	clean, dropped := merged.DropIncomplete()
	res.Clean = clean
	rep.Dropped = dropped
	logger.WithFields(log.Fields{"rows": clean.Len(), "dropped": dropped}).Debug("dropped incomplete rows")
	if dropped > 0 {
		rep.Warn("%d row(s) with a null value were dropped before fitting", dropped)
	}
	if clean.Len() == 0 {
		return nil, fmt.Errorf("no complete rows after dropping nulls: %w", features.ErrNoRows)
	}

	enc := features.NewOneHotEncoder(dataset.ColLandCover).Fit(clean.LandCoverValues())
	d, err := features.Build(clean.Rows, enc)
	if err != nil {
		return nil, fmt.Errorf("build design: %w", err)
	}
	res.Design = d

	train, test, err := regression.Split(d.Rows(), cfg.TestSize, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("split: %w", err)
	}
	res.Train, res.Test = train, test
	rep.TrainRows, rep.TestRows = len(train), len(test)

	trainD, testD := d.Subset(train), d.Subset(test)
	model, err := regression.Fit(trainD.X, trainD.Y, d.Names)
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	res.Model = model
	rep.Coefficients = model.Coefficients()
	rep.Intercept = model.Intercept()
	if cols := len(d.Names); model.Rank() < cols {
		rep.Warn("design matrix has rank %d of %d columns; minimum-norm coefficients are reported", model.Rank(), cols)
	}

	predTest, err := model.Predict(testD.X)
	if err != nil {
		return nil, fmt.Errorf("predict test rows: %w", err)
	}
	if rep.MSE, err = regression.MeanSquaredError(testD.Y, predTest); err != nil {
		return nil, err
	}
	if rep.R2, err = regression.R2Score(testD.Y, predTest); err != nil {
		return nil, err
	}
	res.Predictions = make([]analysis.Prediction, len(test))
	for i, row := range test {
		o := clean.Rows[row]
		res.Predictions[i] = analysis.Prediction{Unit: o.Unit, Date: o.Date, Actual: testD.Y[i], Predicted: predTest[i]}
	}
	n := cfg.SamplePredictions
	if n < 0 || n > len(res.Predictions) {
		n = len(res.Predictions)
	}
	rep.Samples = res.Predictions[:n]
	logger.WithFields(log.Fields{"mse": rep.MSE, "r2": rep.R2}).Info("model fitted")

	predAll, err := model.Predict(d.X)
	if err != nil {
		return nil, fmt.Errorf("predict all rows: %w", err)
	}
	res.Residuals, err = regression.Residuals(d.Y, predAll, regression.Partitions(d.Rows(), test))
	if err != nil {
		return nil, err
	}
	rep.Residuals = regression.Summarize(res.Residuals)
	rep.Warn("residual columns cover train and test rows; train residuals are in-sample")

	names, frame := analysis.NumericFrame(clean.Rows, d, res.Residuals)
	rep.Corr = analysis.Correlations(names, frame)

	if !opt.NoPlots {
		in := plots.Input{Coefficients: model.RankedCoefficients(), Corr: rep.Corr}
		in.Points = make([]plots.DatePoint, clean.Len())
		for i, o := range clean.Rows {
			in.Points[i] = plots.DatePoint{Date: o.Date, Actual: d.Y[i], Predicted: predAll[i]}
		}
		res.Plots, err = plots.RenderAll(cfg.PlotsDir, in, plots.Options{WidthIn: cfg.PlotWidthIn, HeightIn: cfg.PlotHeightIn})
		if err != nil {
			return nil, fmt.Errorf("render plots: %w", err)
		}
		logger.WithField("count", len(res.Plots)).Debug("plots rendered")
	}
	return res, nil
}

func noteJoins(rep *analysis.Report, steps []dataset.JoinStep) {
	for i, s := range steps {
		if s.Unmatched == 0 {
			continue
		}
		if i == len(steps)-1 {
			rep.Warn("%d row(s) have no land-cover record for their year; their indicators are all zero", s.Unmatched)
			continue
		}
		rep.Warn("%s: %d row(s) had no match and were dropped", s.Name, s.Unmatched)
	}
}

// Results packages the run for the workbook writer.
func (r *Result) Results() export.Results {
	rows := make([]export.ResidualRow, len(r.Residuals))
	for i, e := range r.Residuals {
		o := r.Clean.Rows[e.Row]
		rows[i] = export.ResidualRow{
			Unit:         o.Unit,
			Date:         o.Date,
			Partition:    e.Partition.String(),
			Actual:       e.Actual,
			Predicted:    e.Predicted,
			AbsError:     e.AbsError,
			SquaredError: e.SquaredError,
		}
	}
	return export.Results{Report: r.Report, Predictions: r.Predictions, Residuals: rows}
}
