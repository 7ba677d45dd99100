package prediction

import (
	"math"

	"phishguard/internal/domain/phishing"
	"phishguard/internal/ml"
	"phishguard/pkg/errors"
)

const probabilityTolerance = 1e-6

// Engine owns a loaded classifier and the schema its vectors are built from.
// It is either loaded or unavailable for its whole lifetime.
type Engine struct {
	clf    ml.Classifier
	schema phishing.Schema
	width  int
	cause  error
}

// NewEngine binds clf to schema. A classifier that declares a different input
// width than the schema is rejected here rather than on the first request.
func NewEngine(clf ml.Classifier, schema phishing.Schema) (*Engine, error) {
	if clf == nil {
		return nil, errors.Wrap(errors.ErrModelUnavailable, "nil classifier")
	}

	width := schema.Len()
	if n := clf.NumFeatures(); n > 0 && n != width {
		return nil, errors.Wrapf(errors.ErrInvalidVectorShape,
			"model expects %d features, schema provides %d", n, width)
	}

	return &Engine{clf: clf, schema: schema, width: width}, nil
}

// NewUnavailableEngine returns an engine that fails every prediction with ErrModelUnavailable
func NewUnavailableEngine(schema phishing.Schema, cause error) *Engine {
	if cause == nil {
		cause = errors.ErrModelUnavailable
	}
	return &Engine{schema: schema, cause: cause}
}

// Loaded reports whether a classifier is available
func (e *Engine) Loaded() bool {
	return e.clf != nil
}

// Cause returns why the engine is unavailable, nil when loaded
func (e *Engine) Cause() error {
	return e.cause
}

// Schema returns the schema vectors are assembled against
func (e *Engine) Schema() phishing.Schema {
	return e.schema
}

// Version identifies the loaded model artifact
func (e *Engine) Version() string {
	if insp, ok := e.clf.(ml.Inspector); ok {
		return insp.Version()
	}
	return "unknown"
}

// Predict assembles record and classifies it. Unavailability is checked before
// any assembly happens.
func (e *Engine) Predict(record phishing.FeatureRecord) (*phishing.Prediction, phishing.FeatureVector, error) {
	if !e.Loaded() {
		return nil, nil, e.unavailable()
	}
	vec := phishing.Assemble(record, e.schema)
	p, err := e.PredictOne(vec)
	return p, vec, err
}

// PredictOne classifies an already assembled vector
func (e *Engine) PredictOne(vec phishing.FeatureVector) (*phishing.Prediction, error) {
	if !e.Loaded() {
		return nil, e.unavailable()
	}
	if len(vec) != e.width {
		return nil, errors.Wrapf(errors.ErrInvalidVectorShape, "got %d features, expected %d", len(vec), e.width)
	}

	class, probs, err := e.infer(vec)
	if err != nil {
		return nil, err
	}
	if class != phishing.ClassLegitimate && class != phishing.ClassPhishing {
		return nil, errors.Wrapf(errors.ErrInternal, "classifier returned class %d", class)
	}
	if err := checkProbabilities(probs); err != nil {
		return nil, err
	}

	pLegit, pPhish := probs[0], probs[1]
	return &phishing.Prediction{
		PredictedClass:        class,
		IsPhishing:            class == phishing.ClassPhishing,
		PhishingProbability:   pPhish,
		LegitimateProbability: pLegit,
		Confidence:            math.Max(pLegit, pPhish),
	}, nil
}

// infer runs the classifier once when it can return both outputs together
func (e *Engine) infer(vec []float64) (int, []float64, error) {
	if jp, ok := e.clf.(ml.JointPredictor); ok {
		class, probs, err := jp.PredictWithProba(vec)
		if err != nil {
			return 0, nil, errors.Wrap(err, "predict failed")
		}
		return class, probs, nil
	}

	class, err := e.clf.Predict(vec)
	if err != nil {
		return 0, nil, errors.Wrap(err, "predict failed")
	}
	probs, err := e.clf.PredictProba(vec)
	if err != nil {
		return 0, nil, errors.Wrap(err, "predict_proba failed")
	}
	return class, probs, nil
}

func checkProbabilities(probs []float64) error {
	if len(probs) != 2 {
		return errors.Wrapf(errors.ErrInternal, "expected 2 class probabilities, got %d", len(probs))
	}
	for _, p := range probs {
		if math.IsNaN(p) || p < 0 || p > 1 {
			return errors.Wrapf(errors.ErrInternal, "probability out of range: %v", p)
		}
	}
	if math.Abs(probs[0]+probs[1]-1) > probabilityTolerance {
		return errors.Wrapf(errors.ErrInternal, "probabilities sum to %v", probs[0]+probs[1])
	}
	return nil
}

func (e *Engine) unavailable() error {
	if errors.Is(e.cause, errors.ErrModelUnavailable) {
		return e.cause
	}
	return errors.Wrapf(errors.ErrModelUnavailable, "%v", e.cause)
}

// ModelInfo describes the loaded model. Error is set instead of the counts
// when feature importances could not be computed.
type ModelInfo struct {
	ModelType   string                 `json:"model_type"`
	Version     string                 `json:"version,omitempty"`
	NEstimators int                    `json:"n_estimators,omitempty"`
	NFeatures   int                    `json:"n_features,omitempty"`
	TopFeatures []ml.FeatureImportance `json:"top_features,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// Info reports model metadata with the topN most important features. A failure
// to compute importances yields a degraded ModelInfo, not an error.
func (e *Engine) Info(topN int) (*ModelInfo, error) {
	if !e.Loaded() {
		return nil, e.unavailable()
	}

	insp, ok := e.clf.(ml.Inspector)
	if !ok {
		return &ModelInfo{
			ModelType: "unknown",
			Error:     "model does not expose metadata",
		}, nil
	}

	importances, err := insp.FeatureImportances()
	if err != nil {
		return &ModelInfo{ModelType: insp.ModelType(), Error: err.Error()}, nil
	}

	names := insp.FeatureNames()
	if len(names) != len(importances) && len(importances) == e.schema.Len() {
		names = e.schema.Names()
	}

	return &ModelInfo{
		ModelType:   insp.ModelType(),
		Version:     insp.Version(),
		NEstimators: insp.NumEstimators(),
		NFeatures:   e.width,
		TopFeatures: ml.TopFeatures(importances, names, topN),
	}, nil
}

// Close releases the classifier
func (e *Engine) Close() {
	if e.clf != nil {
		e.clf.Close()
	}
}
