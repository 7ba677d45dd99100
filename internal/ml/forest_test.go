package ml

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phishguard/pkg/errors"
)

// stump splits on one feature: x <= threshold -> left leaf
func stump(feature int, threshold float64, left, right []float64) TreeSpec {
	return TreeSpec{
		ChildrenLeft:  []int{1, leaf, leaf},
		ChildrenRight: []int{2, leaf, leaf},
		Feature:       []int{feature, -2, -2},
		Threshold:     []float64{threshold, -2, -2},
		Value:         [][]float64{{10, 10}, left, right},
	}
}

func testForestSpec() ForestSpec {
	return ForestSpec{
		Version:   "test-1",
		NFeatures: 3,
		Trees: []TreeSpec{
			stump(0, 0.5, []float64{9, 1}, []float64{1, 9}),
			stump(2, 0.5, []float64{8, 2}, []float64{0, 10}),
		},
	}
}

func TestForest_PredictProba(t *testing.T) {
	f, err := NewForest(testForestSpec())
	require.NoError(t, err)

	probs, err := f.PredictProba([]float64{0, 0, 0})
	require.NoError(t, err)
	require.Len(t, probs, 2)
	assert.InDelta(t, (0.9+0.8)/2, probs[0], 1e-9)
	assert.InDelta(t, 1.0, probs[0]+probs[1], 1e-9)

	label, err := f.Predict([]float64{0, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 0, label)

	label, err = f.Predict([]float64{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
}

func TestForest_ThresholdGoesLeft(t *testing.T) {
	f, err := NewForest(testForestSpec())
	require.NoError(t, err)

	probs, err := f.PredictProba([]float64{0.5, 0, 0.5})
	require.NoError(t, err)
	assert.Greater(t, probs[0], probs[1])
}

func TestForest_TieGoesToFirstClass(t *testing.T) {
	spec := ForestSpec{NFeatures: 1, Trees: []TreeSpec{stump(0, 0, []float64{5, 5}, []float64{5, 5})}}
	f, err := NewForest(spec)
	require.NoError(t, err)

	label, err := f.Predict([]float64{3})
	require.NoError(t, err)
	assert.Equal(t, 0, label)
}

func TestForest_InvalidVectorShape(t *testing.T) {
	f, err := NewForest(testForestSpec())
	require.NoError(t, err)

	_, err = f.PredictProba([]float64{1, 2})
	assert.True(t, errors.Is(err, errors.ErrInvalidVectorShape))

	_, err = f.Predict(make([]float64, 18))
	assert.True(t, errors.Is(err, errors.ErrInvalidVectorShape))
}

func TestNewForest_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ForestSpec)
	}{
		{"no features", func(s *ForestSpec) { s.NFeatures = 0 }},
		{"no trees", func(s *ForestSpec) { s.Trees = nil }},
		{"three classes", func(s *ForestSpec) { s.Classes = []int{0, 1, 2} }},
		{"feature out of range", func(s *ForestSpec) { s.Trees[0].Feature[0] = 7 }},
		{"backward child", func(s *ForestSpec) { s.Trees[0].ChildrenLeft[0] = 0 }},
		{"ragged arrays", func(s *ForestSpec) { s.Trees[1].Threshold = s.Trees[1].Threshold[:2] }},
		{"bad class weights", func(s *ForestSpec) { s.Trees[0].Value[1] = []float64{1} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := testForestSpec()
			tt.mutate(&spec)
			_, err := NewForest(spec)
			assert.Error(t, err)
		})
	}
}

func TestForest_Metadata(t *testing.T) {
	f, err := NewForest(testForestSpec())
	require.NoError(t, err)

	assert.Equal(t, "RandomForestClassifier", f.ModelType())
	assert.Equal(t, "test-1", f.Version())
	assert.Equal(t, 2, f.NumEstimators())
	assert.Equal(t, 3, f.NumFeatures())

	// Derived from split counts: feature 0 and 2 split once each
	imp, err := f.FeatureImportances()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 0, 0.5}, imp)
}

func TestForest_FeatureImportancesMismatch(t *testing.T) {
	spec := testForestSpec()
	spec.FeatureImportances = []float64{0.5, 0.5}
	f, err := NewForest(spec)
	require.NoError(t, err)

	_, err = f.FeatureImportances()
	assert.Error(t, err)
}

func TestForest_NoSplits(t *testing.T) {
	spec := ForestSpec{NFeatures: 2, Trees: []TreeSpec{{
		ChildrenLeft:  []int{leaf},
		ChildrenRight: []int{leaf},
		Feature:       []int{-2},
		Threshold:     []float64{-2},
		Value:         [][]float64{{3, 1}},
	}}}
	f, err := NewForest(spec)
	require.NoError(t, err)

	probs, err := f.PredictProba([]float64{0, 0})
	require.NoError(t, err)
	assert.InDelta(t, 0.75, probs[0], 1e-9)

	_, err = f.FeatureImportances()
	assert.Error(t, err)
}

func TestTopFeatures(t *testing.T) {
	imp := []float64{0.1, 0.3, 0.3, 0.05, 0.25}
	names := []string{"a", "b", "c", "d", "e"}

	top := TopFeatures(imp, names, 3)
	require.Len(t, top, 3)
	// ties broken by original index
	assert.Equal(t, "b", top[0].Feature)
	assert.Equal(t, "c", top[1].Feature)
	assert.Equal(t, "e", top[2].Feature)

	all := TopFeatures(imp, nil, 10)
	require.Len(t, all, 5)
	assert.Equal(t, "feature_1", all[0].Feature)
	assert.Equal(t, "feature_3", all[4].Feature)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].Importance, all[i].Importance)
	}
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	data, err := json.Marshal(testForestSpec())
	require.NoError(t, err)
	forestPath := filepath.Join(dir, "model.json")
	require.NoError(t, os.WriteFile(forestPath, data, 0o644))

	clf, err := Open(forestPath, Options{})
	require.NoError(t, err)
	defer clf.Close()
	assert.Equal(t, 3, clf.NumFeatures())

	_, err = Open(filepath.Join(dir, "missing.json"), Options{})
	assert.Error(t, err)

	pklPath := filepath.Join(dir, "model.pkl")
	require.NoError(t, os.WriteFile(pklPath, []byte("x"), 0o644))
	_, err = Open(pklPath, Options{})
	assert.True(t, errors.Is(err, errors.ErrUnsupportedModel))

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte("{"), 0o644))
	_, err = Open(badPath, Options{})
	assert.Error(t, err)
}

func TestMetadataPath(t *testing.T) {
	assert.Equal(t, "models/m_latest.metadata.json", MetadataPath("models/m_latest.onnx"))
}

func TestLoadMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.metadata.json")
	doc := `{"model_name":"phishing_detection_model","timestamp":"20240101_000000",
		"feature_count":2,"n_estimators":100,"feature_importances":[0.7,0.3],
		"metrics":{"accuracy":0.98}}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	meta, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, 100, meta.NEstimators)
	assert.Equal(t, 2, meta.FeatureCount)
	assert.False(t, math.IsNaN(meta.Metrics["accuracy"]))
}

func TestForest_VersionFallsBackToContentDigest(t *testing.T) {
	declared, err := NewForest(testForestSpec())
	require.NoError(t, err)
	assert.Equal(t, "test-1", declared.Version())

	oldSpec := testForestSpec()
	oldSpec.Version = ""
	newSpec := testForestSpec()
	newSpec.Version = ""
	newSpec.Trees[0] = stump(0, 0.5, []float64{5, 95}, []float64{1, 9})

	oldModel, err := NewForest(oldSpec)
	require.NoError(t, err)
	again, err := NewForest(oldSpec)
	require.NoError(t, err)
	newModel, err := NewForest(newSpec)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(oldModel.Version(), "xxh64:"))
	assert.Equal(t, oldModel.Version(), again.Version())
	assert.NotEqual(t, oldModel.Version(), newModel.Version())
}

func TestForest_PredictWithProba(t *testing.T) {
	f, err := NewForest(testForestSpec())
	require.NoError(t, err)

	label, probs, err := f.PredictWithProba([]float64{1, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, 1, label)
	assert.InDelta(t, (0.9+1.0)/2, probs[1], 1e-9)
}
