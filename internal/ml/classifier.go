package ml

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"phishguard/pkg/errors"
)

// Classifier is a fitted binary classifier. Implementations are read-only after
// loading and safe for concurrent use.
type Classifier interface {
	// Predict returns the class label (0 legitimate, 1 phishing)
	Predict(vec []float64) (int, error)

	// PredictProba returns [p_legitimate, p_phishing]
	PredictProba(vec []float64) ([]float64, error)

	// NumFeatures is the input dimensionality, or 0 if the artifact does not declare it
	NumFeatures() int

	// Close releases runtime resources
	Close()
}

// JointPredictor is implemented by classifiers that produce the label and the
// probabilities in one inference call
type JointPredictor interface {
	PredictWithProba(vec []float64) (int, []float64, error)
}

// Inspector exposes model metadata for /model/info
type Inspector interface {
	ModelType() string
	// Version is the declared artifact version, or a content digest when none is declared
	Version() string
	NumEstimators() int
	FeatureNames() []string
	FeatureImportances() ([]float64, error)
}

// FeatureImportance is one entry of a ranked importance list
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TopFeatures ranks importances descending, ties broken by original index, and
// returns at most n entries. Names falling outside names are reported as feature_<i>.
func TopFeatures(importances []float64, names []string, n int) []FeatureImportance {
	idx := make([]int, len(importances))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return importances[idx[a]] > importances[idx[b]]
	})

	if n > len(idx) || n < 0 {
		n = len(idx)
	}

	out := make([]FeatureImportance, 0, n)
	for _, i := range idx[:n] {
		name := "feature_" + strconv.Itoa(i)
		if len(names) == len(importances) {
			name = names[i]
		}
		out = append(out, FeatureImportance{Feature: name, Importance: importances[i]})
	}
	return out
}

// Metadata is the sidecar document written next to an exported model
type Metadata struct {
	ModelName          string              `json:"model_name"`
	ModelType          string              `json:"model_type"`
	Timestamp          string              `json:"timestamp"`
	Metrics            map[string]float64  `json:"metrics"`
	FeatureCount       int                 `json:"feature_count"`
	FeatureNames       []string            `json:"feature_names"`
	NEstimators        int                 `json:"n_estimators"`
	FeatureImportances []float64           `json:"feature_importances"`
	TopFeatures        []FeatureImportance `json:"top_features"`
}

// LoadMetadata reads a sidecar metadata file
func LoadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read model metadata")
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.Wrap(err, "failed to decode model metadata")
	}
	return &meta, nil
}

// MetadataPath derives the sidecar path for a model file: model.onnx -> model.metadata.json
func MetadataPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, filepath.Ext(modelPath)) + ".metadata.json"
}

// Options configures Open
type Options struct {
	MetadataPath string
	ONNX         ONNXOptions
}

// Open loads a classifier, choosing the backend by file extension:
// .onnx uses ONNX Runtime, .json the tree-ensemble artifact.
func Open(path string, opts Options) (Classifier, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "model not found at %s", path)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		metaPath := opts.MetadataPath
		if metaPath == "" {
			metaPath = MetadataPath(path)
		}
		var meta *Metadata
		if _, err := os.Stat(metaPath); err == nil {
			m, err := LoadMetadata(metaPath)
			if err != nil {
				return nil, err
			}
			meta = m
		}
		return LoadONNXModel(path, opts.ONNX, meta)
	case ".json":
		return LoadForest(path)
	default:
		return nil, errors.Wrapf(errors.ErrUnsupportedModel, "extension %q", filepath.Ext(path))
	}
}
