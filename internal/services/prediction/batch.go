package prediction

import (
	"context"
	"encoding/csv"
	"io"
	"strconv"

	"phishguard/internal/domain/phishing"
	"phishguard/internal/ml"
	"phishguard/pkg/errors"
)

// Columns appended to every row of a batch output
const (
	ColumnPredictedClass        = "predicted_class"
	ColumnPredictionProbability = "prediction_probability"
	ColumnPredictionConfidence  = "prediction_confidence"
)

// BatchSummary describes a finished batch run
type BatchSummary struct {
	Total             int
	Phishing          int
	Legitimate        int
	AverageConfidence float64

	// Evaluation is set when the input carries a CLASS_LABEL column
	Evaluation *Evaluation
}

// RunBatch classifies every row of a dataset CSV read from in and writes the
// rows, with the prediction columns appended, to out. Model inputs are all
// columns except id and CLASS_LABEL, in header order, so clf must have been
// fitted on the same table layout. When CLASS_LABEL is present the predictions
// are also scored against it.
func RunBatch(ctx context.Context, clf ml.Classifier, in io.Reader, out io.Writer) (*BatchSummary, error) {
	r := csv.NewReader(in)
	r.ReuseRecord = true

	header, err := r.Read()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}
	header = append([]string(nil), header...)

	engine, err := NewEngine(clf, phishing.DatasetSchema(header))
	if err != nil {
		return nil, err
	}

	w := csv.NewWriter(out)
	if err := w.Write(append(append([]string(nil), header...),
		ColumnPredictedClass, ColumnPredictionProbability, ColumnPredictionConfidence)); err != nil {
		return nil, errors.Wrap(err, "failed to write header")
	}

	labelIdx := -1
	for i, col := range header {
		if col == phishing.ColumnLabel {
			labelIdx = i
		}
	}
	var ev *evaluator
	if labelIdx >= 0 {
		ev = &evaluator{}
	}

	summary := &BatchSummary{}
	confidenceSum := 0.0
	record := make(phishing.FeatureRecord, len(header))

	for line := 2; ; line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		for i, col := range header {
			record[col] = row[i]
		}

		p, _, err := engine.Predict(record)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}

		if ev != nil {
			label, err := parseLabel(row[labelIdx])
			if err != nil {
				return nil, errors.Wrapf(err, "line %d", line)
			}
			ev.add(label, p)
		}

		summary.Total++
		if p.IsPhishing {
			summary.Phishing++
		} else {
			summary.Legitimate++
		}
		confidenceSum += p.Confidence

		outRow := append(append(make([]string, 0, len(row)+3), row...),
			strconv.Itoa(p.PredictedClass),
			strconv.FormatFloat(p.PhishingProbability, 'f', -1, 64),
			strconv.FormatFloat(p.Confidence, 'f', -1, 64),
		)
		if err := w.Write(outRow); err != nil {
			return nil, errors.Wrapf(err, "failed to write line %d", line)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, errors.Wrap(err, "failed to flush output")
	}

	if summary.Total > 0 {
		summary.AverageConfidence = confidenceSum / float64(summary.Total)
	}
	if ev != nil {
		summary.Evaluation = ev.finish()
	}
	return summary, nil
}
