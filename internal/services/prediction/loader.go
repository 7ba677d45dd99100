package prediction

import (
	"context"
	"os"
	"path"

	"phishguard/internal/adapters/config"
	"phishguard/internal/domain/phishing"
	"phishguard/internal/metrics"
	"phishguard/internal/ml"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

// ArtifactFetcher downloads a model artifact from object storage
type ArtifactFetcher interface {
	Download(ctx context.Context, bucket, key, dest string) (int64, error)
}

// LoaderConfig locates the model
type LoaderConfig struct {
	Model  config.ModelConfig
	Bucket string
}

// LoadEngine loads the classifier configured in cfg and binds it to the serving
// schema. fetcher may be nil; it is only used when a model key is configured.
//
// A load failure yields an unavailable engine and a nil error, unless
// MODEL_FAIL_FAST is set, in which case the failure is returned.
func LoadEngine(ctx context.Context, cfg LoaderConfig, fetcher ArtifactFetcher, log *logger.Logger) (*Engine, error) {
	log = log.With("component", "model_loader", "model_path", cfg.Model.Path)

	engine, err := loadEngine(ctx, cfg, fetcher, log)
	if err != nil {
		metrics.SetModelLoaded(false)
		if cfg.Model.FailFast {
			return nil, err
		}
		log.Errorw("Model failed to load, serving without a model", "error", err)
		return NewUnavailableEngine(phishing.ServingSchema(), err), nil
	}

	metrics.SetModelLoaded(true)
	log.Infow("Model loaded", "version", engine.Version(), "features", engine.Schema().Len())
	return engine, nil
}

func loadEngine(ctx context.Context, cfg LoaderConfig, fetcher ArtifactFetcher, log *logger.Logger) (*Engine, error) {
	if cfg.Model.S3Key != "" {
		if err := fetchArtifact(ctx, cfg, fetcher, log); err != nil {
			return nil, err
		}
	}

	clf, err := ml.Open(cfg.Model.Path, ml.Options{
		MetadataPath: cfg.Model.MetadataPath,
		ONNX: ml.ONNXOptions{
			LibraryPath:     cfg.Model.ONNXLibraryPath,
			InputName:       cfg.Model.ONNXInputName,
			LabelName:       cfg.Model.ONNXLabelName,
			ProbabilityName: cfg.Model.ONNXProbasName,
		},
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrModelUnavailable, err.Error())
	}

	engine, err := NewEngine(clf, phishing.ServingSchema())
	if err != nil {
		clf.Close()
		return nil, err
	}
	return engine, nil
}

// fetchArtifact downloads the model and, best effort, its metadata sidecar
func fetchArtifact(ctx context.Context, cfg LoaderConfig, fetcher ArtifactFetcher, log *logger.Logger) error {
	if fetcher == nil {
		return errors.Wrapf(errors.ErrStorageDisabled, "MODEL_S3_KEY=%s but no object storage client", cfg.Model.S3Key)
	}

	n, err := fetcher.Download(ctx, cfg.Bucket, cfg.Model.S3Key, cfg.Model.Path)
	if err != nil {
		return errors.Wrap(errors.ErrModelUnavailable, err.Error())
	}
	log.Infow("Fetched model artifact", "bucket", cfg.Bucket, "key", cfg.Model.S3Key, "bytes", n)

	metaDest := cfg.Model.MetadataPath
	if metaDest == "" {
		metaDest = ml.MetadataPath(cfg.Model.Path)
	}
	metaKey := ml.MetadataPath(cfg.Model.S3Key)
	if metaKey == cfg.Model.S3Key || path.Ext(cfg.Model.S3Key) == ".json" {
		return nil
	}
	if _, err := fetcher.Download(ctx, cfg.Bucket, metaKey, metaDest); err != nil {
		if _, statErr := os.Stat(metaDest); statErr != nil {
			log.Warnw("No metadata sidecar for model, /model/info will be degraded", "key", metaKey, "error", err)
		}
	}
	return nil
}
