// Package artifact decides whether an uploaded file is a dataset or a trained model.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/okian/ecoaudit/internal/domain/dataset"
	"github.com/okian/ecoaudit/internal/domain/model"

	// Linked so forest artifacts resolve.
	_ "github.com/okian/ecoaudit/internal/domain/forest"
)

// Kind is the resolved category of an artifact.
type Kind string

const (
	KindDataset  Kind = "dataset"
	KindModel    Kind = "model"
	KindUnusable Kind = "unusable"
	KindUnknown  Kind = "unknown"
)

// Supported extensions.
const (
	ExtCSV = ".csv"
	ExtTSV = ".tsv"
	ExtGob = ".gob"
)

// Artifact is a classified upload.
type Artifact struct {
	Path string
	Ext  string
	Kind Kind

	Table *dataset.Table
	Model model.Predictor

	// MissingDependency names the unlinked type of an unusable artifact.
	MissingDependency string
	// TypeName is the decoded Go type of a .gob artifact.
	TypeName string
}

// validator is implemented by decoded artifacts that can check their own structure.
type validator interface {
	Validate() error
}

// Extensions lists the accepted extensions.
func Extensions() []string {
	return []string{ExtCSV, ExtTSV, ExtGob}
}

// CheckExtension validates the file name and returns its lower-cased extension.
func CheckExtension(name string) (string, error) {
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ExtCSV, ExtTSV, ExtGob:
		return ext, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}

// Classify reads path and resolves its kind. ext must come from CheckExtension.
func Classify(ctx context.Context, path, ext string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	a := &Artifact{Path: path, Ext: ext}
	switch ext {
	case ExtCSV, ExtTSV:
		comma := ','
		if ext == ExtTSV {
			comma = '\t'
		}
		t, err := dataset.Parse(f, comma)
		if err != nil {
			return nil, &MalformedInputError{Path: path, Err: err}
		}
		a.Kind, a.Table = KindDataset, t
		return a, nil

	case ExtGob:
		v, err := model.Load(f)
		var missing *model.MissingDependencyError
		switch {
		case errors.As(err, &missing):
			a.Kind, a.MissingDependency = KindUnusable, missing.Name
			return a, nil
		case err != nil:
			return nil, &MalformedInputError{Path: path, Err: err}
		}
		if vv, ok := v.(validator); ok {
			if err := vv.Validate(); err != nil {
				return nil, &MalformedInputError{Path: path, Err: err}
			}
		}
		a.TypeName = model.TypeName(v)
		switch obj := v.(type) {
		case model.Predictor:
			a.Kind, a.Model = KindModel, obj
		case *dataset.Table:
			a.Kind, a.Table = KindDataset, obj
		default:
			a.Kind = KindUnknown
		}
		return a, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
	}
}
