package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"phishguard/internal/adapters/config"
	"phishguard/internal/domain/phishing"
	"phishguard/internal/ml"
	"phishguard/internal/services/prediction"
	"phishguard/pkg/errors"
	"phishguard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	modelPath := flag.String("model", cfg.Model.Path, "Path to the model artifact (.onnx or .json)")
	flag.Usage = func() {
		_, _ = os.Stderr.WriteString("usage: batchpredict [-model path] <input.csv> [output.csv]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	defer logger.Sync()

	log := logger.Get()

	input := flag.Arg(0)
	output := flag.Arg(1)
	if output == "" {
		output = filepath.Join("predictions", "predictions_"+time.Now().Format("20060102_150405")+".csv")
	}

	if err := run(context.Background(), cfg.Model, *modelPath, input, output, log); err != nil {
		log.Errorf("Batch prediction failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, model config.ModelConfig, modelPath, input, output string, log *logger.Logger) error {
	clf, err := ml.Open(modelPath, ml.Options{
		MetadataPath: model.MetadataPath,
		ONNX: ml.ONNXOptions{
			LibraryPath:     model.ONNXLibraryPath,
			InputName:       model.ONNXInputName,
			LabelName:       model.ONNXLabelName,
			ProbabilityName: model.ONNXProbasName,
		},
	})
	if err != nil {
		return err
	}
	defer clf.Close()

	in, err := os.Open(input)
	if err != nil {
		return errors.Wrap(err, "failed to open input")
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		return errors.Wrap(err, "failed to create output directory")
	}
	out, err := os.Create(output)
	if err != nil {
		return errors.Wrap(err, "failed to create output")
	}
	defer out.Close()

	log.Infow("Running batch prediction", "model", modelPath, "input", input, "output", output)
	start := time.Now()

	summary, err := prediction.RunBatch(ctx, clf, in, out)
	if err != nil {
		return err
	}

	log.Infof("✓ Scored %s rows in %s: %s phishing, %s legitimate, average confidence %.2f%%",
		humanize.Comma(int64(summary.Total)),
		time.Since(start).Round(time.Millisecond),
		humanize.Comma(int64(summary.Phishing)),
		humanize.Comma(int64(summary.Legitimate)),
		summary.AverageConfidence*100,
	)
	if ev := summary.Evaluation; ev != nil {
		auc := "n/a"
		if !math.IsNaN(ev.ROCAUC) {
			auc = fmt.Sprintf("%.4f", ev.ROCAUC)
		}
		log.Infof("Evaluation against %s: accuracy %.4f, precision %.4f, recall %.4f, f1 %.4f, roc_auc %s",
			phishing.ColumnLabel, ev.Accuracy, ev.Precision, ev.Recall, ev.F1, auc)
		log.Infof("Confusion matrix: TP %s, FP %s, TN %s, FN %s",
			humanize.Comma(int64(ev.TruePositives)),
			humanize.Comma(int64(ev.FalsePositives)),
			humanize.Comma(int64(ev.TrueNegatives)),
			humanize.Comma(int64(ev.FalseNegatives)),
		)
	}
	log.Infof("Predictions saved to %s", output)
	return nil
}
