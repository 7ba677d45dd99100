package ml

import (
	"sync"

	onnxruntime "github.com/yalue/onnxruntime_go"

	"phishguard/pkg/errors"
)

const binaryClasses = 2

// ONNXOptions names the graph inputs and outputs of an skl2onnx export.
// The export must use zipmap=False so probabilities come back as a tensor.
type ONNXOptions struct {
	LibraryPath     string
	InputName       string
	LabelName       string
	ProbabilityName string
}

func (o ONNXOptions) withDefaults() ONNXOptions {
	if o.InputName == "" {
		o.InputName = "float_input"
	}
	if o.LabelName == "" {
		o.LabelName = "output_label"
	}
	if o.ProbabilityName == "" {
		o.ProbabilityName = "output_probability"
	}
	return o
}

var (
	envOnce sync.Once
	envErr  error
)

// initEnvironment initializes the process-wide ONNX Runtime environment once
func initEnvironment(libraryPath string) error {
	envOnce.Do(func() {
		if libraryPath != "" {
			onnxruntime.SetSharedLibraryPath(libraryPath)
		}
		if onnxruntime.IsInitialized() {
			return
		}
		envErr = onnxruntime.InitializeEnvironment()
	})
	return envErr
}

// ONNXModel wraps an ONNX Runtime session of a binary classifier
type ONNXModel struct {
	session     *onnxruntime.DynamicAdvancedSession
	numFeatures int
	meta        *Metadata
	digest      string
	closeOnce   sync.Once
}

// LoadONNXModel opens modelPath and reads its input dimensionality. meta may be nil.
func LoadONNXModel(modelPath string, opts ONNXOptions, meta *Metadata) (*ONNXModel, error) {
	opts = opts.withDefaults()

	if err := initEnvironment(opts.LibraryPath); err != nil {
		return nil, errors.Wrap(err, "failed to initialize ONNX runtime")
	}

	inputs, _, err := onnxruntime.GetInputOutputInfo(modelPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read ONNX model signature")
	}

	numFeatures := 0
	found := false
	for _, in := range inputs {
		if in.Name != opts.InputName {
			continue
		}
		found = true
		// [batch, n_features]; the batch axis is usually dynamic (-1)
		if len(in.Dimensions) == 2 && in.Dimensions[1] > 0 {
			numFeatures = int(in.Dimensions[1])
		}
	}
	if !found {
		return nil, errors.Newf("ONNX model has no input named %q", opts.InputName)
	}
	if numFeatures == 0 && meta != nil {
		numFeatures = meta.FeatureCount
	}

	digest, err := fileVersion(modelPath)
	if err != nil {
		return nil, err
	}

	options, err := onnxruntime.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session options")
	}
	defer options.Destroy()

	session, err := onnxruntime.NewDynamicAdvancedSession(modelPath,
		[]string{opts.InputName}, []string{opts.LabelName, opts.ProbabilityName}, options)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load ONNX model")
	}

	return &ONNXModel{
		session:     session,
		numFeatures: numFeatures,
		meta:        meta,
		digest:      digest,
	}, nil
}

// Predict returns the label output of the graph
func (m *ONNXModel) Predict(vec []float64) (int, error) {
	label, _, err := m.run(vec)
	return label, err
}

// PredictWithProba returns both graph outputs from a single run
func (m *ONNXModel) PredictWithProba(vec []float64) (int, []float64, error) {
	return m.run(vec)
}

// PredictProba returns the probability output of the graph
func (m *ONNXModel) PredictProba(vec []float64) ([]float64, error) {
	_, probs, err := m.run(vec)
	return probs, err
}

// NumFeatures returns the declared input width
func (m *ONNXModel) NumFeatures() int {
	return m.numFeatures
}

func (m *ONNXModel) run(vec []float64) (int, []float64, error) {
	if m.session == nil {
		return 0, nil, errors.ErrModelUnavailable
	}
	if m.numFeatures > 0 && len(vec) != m.numFeatures {
		return 0, nil, errors.Wrapf(errors.ErrInvalidVectorShape, "got %d features, model expects %d", len(vec), m.numFeatures)
	}

	input := make([]float32, len(vec))
	for i, v := range vec {
		input[i] = float32(v)
	}

	inputTensor, err := onnxruntime.NewTensor(onnxruntime.NewShape(1, int64(len(input))), input)
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create input tensor")
	}
	defer inputTensor.Destroy()

	labelTensor, err := onnxruntime.NewEmptyTensor[int64](onnxruntime.NewShape(1))
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create label output tensor")
	}
	defer labelTensor.Destroy()

	probTensor, err := onnxruntime.NewEmptyTensor[float32](onnxruntime.NewShape(1, binaryClasses))
	if err != nil {
		return 0, nil, errors.Wrap(err, "failed to create probability output tensor")
	}
	defer probTensor.Destroy()

	err = m.session.Run([]onnxruntime.Value{inputTensor}, []onnxruntime.Value{labelTensor, probTensor})
	if err != nil {
		return 0, nil, errors.Wrap(err, "inference failed")
	}

	label := int(labelTensor.GetData()[0])
	raw := probTensor.GetData()
	probs := make([]float64, len(raw))
	for i, p := range raw {
		probs[i] = float64(p)
	}

	return label, probs, nil
}

// ModelType reports the estimator family recorded at export time
func (m *ONNXModel) ModelType() string {
	if m.meta != nil && m.meta.ModelType != "" {
		return m.meta.ModelType
	}
	return "RandomForestClassifier"
}

// Version identifies the artifact by the metadata timestamp. Without a sidecar
// timestamp it is a digest of the model file.
func (m *ONNXModel) Version() string {
	if m.meta != nil && m.meta.Timestamp != "" {
		return m.meta.ModelName + "_" + m.meta.Timestamp
	}
	if m.digest != "" {
		return m.digest
	}
	return "unknown"
}

// NumEstimators returns the tree count from metadata, 0 when unknown
func (m *ONNXModel) NumEstimators() int {
	if m.meta == nil {
		return 0
	}
	return m.meta.NEstimators
}

// FeatureNames returns the training column names from metadata
func (m *ONNXModel) FeatureNames() []string {
	if m.meta == nil {
		return nil
	}
	return m.meta.FeatureNames
}

// FeatureImportances needs the metadata sidecar; the ONNX graph does not carry them
func (m *ONNXModel) FeatureImportances() ([]float64, error) {
	if m.meta == nil || len(m.meta.FeatureImportances) == 0 {
		return nil, errors.New("feature importances not available: no model metadata")
	}
	if m.numFeatures > 0 && len(m.meta.FeatureImportances) != m.numFeatures {
		return nil, errors.Newf("metadata has %d importances for %d features",
			len(m.meta.FeatureImportances), m.numFeatures)
	}
	return m.meta.FeatureImportances, nil
}

// Close destroys the session. Safe to call more than once.
func (m *ONNXModel) Close() {
	m.closeOnce.Do(func() {
		if m.session != nil {
			m.session.Destroy()
			m.session = nil
		}
	})
}
