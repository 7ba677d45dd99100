package ml

import (
	"encoding/json"
	"os"

	"phishguard/pkg/errors"
)

const leaf = -1

// ForestSpec is the JSON export of a fitted random forest. Tree arrays follow the
// layout of sklearn's tree_ attribute: node i splits on feature[i] at threshold[i],
// samples with x <= threshold go to children_left[i]; leaves have children -1.
type ForestSpec struct {
	ModelType          string     `json:"model_type"`
	Version            string     `json:"version"`
	NFeatures          int        `json:"n_features"`
	Classes            []int      `json:"classes"`
	FeatureNames       []string   `json:"feature_names"`
	FeatureImportances []float64  `json:"feature_importances"`
	Trees              []TreeSpec `json:"trees"`
}

// TreeSpec is one decision tree. Value holds per-node class weights.
type TreeSpec struct {
	ChildrenLeft  []int       `json:"children_left"`
	ChildrenRight []int       `json:"children_right"`
	Feature       []int       `json:"feature"`
	Threshold     []float64   `json:"threshold"`
	Value         [][]float64 `json:"value"`
}

// Forest evaluates a ForestSpec in process. Probabilities average the normalized
// leaf distributions of all trees; the label is the most probable class.
type Forest struct {
	spec    ForestSpec
	version string
}

// LoadForest reads and validates a forest artifact
func LoadForest(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read forest artifact")
	}

	var spec ForestSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, errors.Wrap(err, "failed to decode forest artifact")
	}

	return NewForest(spec)
}

// NewForest validates spec and returns a ready classifier
func NewForest(spec ForestSpec) (*Forest, error) {
	if spec.NFeatures <= 0 {
		return nil, errors.Newf("forest declares %d features", spec.NFeatures)
	}
	if len(spec.Classes) == 0 {
		spec.Classes = []int{0, 1}
	}
	if len(spec.Classes) != binaryClasses {
		return nil, errors.Newf("forest has %d classes, binary classifier required", len(spec.Classes))
	}
	if len(spec.Trees) == 0 {
		return nil, errors.New("forest has no trees")
	}
	for i, tree := range spec.Trees {
		if err := tree.validate(spec.NFeatures, len(spec.Classes)); err != nil {
			return nil, errors.Wrapf(err, "tree %d", i)
		}
	}
	if spec.ModelType == "" {
		spec.ModelType = "RandomForestClassifier"
	}

	version := spec.Version
	if version == "" {
		data, err := json.Marshal(spec)
		if err != nil {
			return nil, errors.Wrap(err, "failed to fingerprint forest")
		}
		version = contentVersion(data)
	}
	return &Forest{spec: spec, version: version}, nil
}

func (t TreeSpec) validate(nFeatures, nClasses int) error {
	n := len(t.ChildrenLeft)
	if n == 0 {
		return errors.New("empty tree")
	}
	if len(t.ChildrenRight) != n || len(t.Feature) != n || len(t.Threshold) != n || len(t.Value) != n {
		return errors.New("node arrays differ in length")
	}
	for i := 0; i < n; i++ {
		if len(t.Value[i]) != nClasses {
			return errors.Newf("node %d has %d class weights", i, len(t.Value[i]))
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		if l == leaf && r == leaf {
			continue
		}
		if l <= i || r <= i || l >= n || r >= n {
			return errors.Newf("node %d has invalid children %d/%d", i, l, r)
		}
		if t.Feature[i] < 0 || t.Feature[i] >= nFeatures {
			return errors.Newf("node %d splits on feature %d", i, t.Feature[i])
		}
	}
	return nil
}

// leafValue walks the tree for vec. Children always point forward (checked in
// validate), so the walk terminates.
func (t TreeSpec) leafValue(vec []float64) []float64 {
	node := 0
	for t.ChildrenLeft[node] != leaf {
		if vec[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return t.Value[node]
}

// PredictProba returns the averaged class distribution
func (f *Forest) PredictProba(vec []float64) ([]float64, error) {
	if len(vec) != f.spec.NFeatures {
		return nil, errors.Wrapf(errors.ErrInvalidVectorShape, "got %d features, model expects %d", len(vec), f.spec.NFeatures)
	}

	probs := make([]float64, len(f.spec.Classes))
	for _, tree := range f.spec.Trees {
		value := tree.leafValue(vec)
		total := 0.0
		for _, w := range value {
			total += w
		}
		if total <= 0 {
			continue
		}
		for c, w := range value {
			probs[c] += w / total
		}
	}

	n := float64(len(f.spec.Trees))
	for c := range probs {
		probs[c] /= n
	}
	return probs, nil
}

// Predict returns the class with the highest probability; ties go to the first class
func (f *Forest) Predict(vec []float64) (int, error) {
	label, _, err := f.PredictWithProba(vec)
	return label, err
}

// PredictWithProba walks the trees once for both outputs
func (f *Forest) PredictWithProba(vec []float64) (int, []float64, error) {
	probs, err := f.PredictProba(vec)
	if err != nil {
		return 0, nil, err
	}
	best := 0
	for c := 1; c < len(probs); c++ {
		if probs[c] > probs[best] {
			best = c
		}
	}
	return f.spec.Classes[best], probs, nil
}

func (f *Forest) NumFeatures() int       { return f.spec.NFeatures }
func (f *Forest) ModelType() string      { return f.spec.ModelType }
func (f *Forest) NumEstimators() int     { return len(f.spec.Trees) }
func (f *Forest) FeatureNames() []string { return f.spec.FeatureNames }
func (f *Forest) Close()                 {}

// Version returns the declared version, or a digest of the forest when the
// artifact declares none
func (f *Forest) Version() string {
	return f.version
}

// FeatureImportances returns the exported importances. Artifacts without them
// fall back to split counts normalized to sum 1.
func (f *Forest) FeatureImportances() ([]float64, error) {
	if len(f.spec.FeatureImportances) > 0 {
		if len(f.spec.FeatureImportances) != f.spec.NFeatures {
			return nil, errors.Newf("artifact has %d importances for %d features",
				len(f.spec.FeatureImportances), f.spec.NFeatures)
		}
		return f.spec.FeatureImportances, nil
	}

	counts := make([]float64, f.spec.NFeatures)
	total := 0.0
	for _, tree := range f.spec.Trees {
		for i, l := range tree.ChildrenLeft {
			if l == leaf {
				continue
			}
			counts[tree.Feature[i]]++
			total++
		}
	}
	if total == 0 {
		return nil, errors.New("forest has no splits to derive importances from")
	}
	for i := range counts {
		counts[i] /= total
	}
	return counts, nil
}
