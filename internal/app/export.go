package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/ecoaudit/internal/domain/artifact"
	"github.com/okian/ecoaudit/internal/domain/audit"
	"github.com/okian/ecoaudit/internal/domain/dataset"
	"github.com/okian/ecoaudit/internal/domain/forest"
	"github.com/okian/ecoaudit/internal/domain/model"
	"github.com/okian/ecoaudit/pkg/logger"
)

// saveModel is swapped in tests to simulate encoder failures.
var saveModel = model.Save

// writeModel encodes clf next to outPath and renames it into place, so a
// failed encode never leaves a partial artifact behind.
func writeModel(outPath string, clf *forest.Classifier) (err error) {
	f, err := os.CreateTemp(filepath.Dir(outPath), ".export-*"+artifact.ExtGob)
	if err != nil {
		return fmt.Errorf("create %s: %w", outPath, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if err = saveModel(f, forest.TypeName, clf); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", outPath, err)
	}
	if err = os.Rename(tmp, outPath); err != nil {
		return fmt.Errorf("rename %s: %w", outPath, err)
	}
	return nil
}

// ExportSummary describes a model written by ExportModel.
type ExportSummary struct {
	Path     string
	Samples  int
	Features int
	Accuracy float64
}

// ExportModel fits the baseline forest once on a dataset file, without metering,
// and writes it as a .gob model artifact for inference audits.
func (s *Service) ExportModel(ctx context.Context, datasetPath, outPath string) (*ExportSummary, error) {
	ext, err := artifact.CheckExtension(datasetPath)
	if err != nil {
		return nil, err
	}
	if ext2, err := artifact.CheckExtension(outPath); err != nil || ext2 != artifact.ExtGob {
		return nil, fmt.Errorf("%w: output must end in %s", artifact.ErrUnsupportedFileType, artifact.ExtGob)
	}

	a, err := artifact.Classify(ctx, datasetPath, ext)
	if err != nil {
		return nil, err
	}
	if a.Kind != artifact.KindDataset {
		return nil, fmt.Errorf("%w: %s is a %s", audit.ErrInvalidDataset, datasetPath, a.Kind)
	}
	prep, err := a.Table.Prepare()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audit.ErrInvalidDataset, err)
	}
	split, err := dataset.SplitRows(prep, dataset.DefaultTestFraction, s.seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", audit.ErrInvalidDataset, err)
	}

	clf := forest.New(forest.WithTrees(s.treeCount), forest.WithSeed(s.seed))
	if err := clf.Fit(split.TrainX, split.TrainY); err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}
	acc, err := clf.Score(split.TestX, split.TestY)
	if err != nil {
		return nil, fmt.Errorf("score forest: %w", err)
	}

	if dir := filepath.Dir(outPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := writeModel(outPath, clf); err != nil {
		return nil, err
	}

	summary := &ExportSummary{
		Path:     outPath,
		Samples:  prep.Samples(),
		Features: prep.FeatureCount(),
		Accuracy: acc,
	}
	s.getLogger().Info(ctx, "model exported",
		logger.String("path", outPath),
		logger.Int("features", summary.Features),
		logger.Float64("accuracy", acc))
	return summary, nil
}
