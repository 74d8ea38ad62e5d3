package artifact_test

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/ecoaudit/internal/domain/artifact"
	"github.com/okian/ecoaudit/internal/domain/dataset"
	"github.com/okian/ecoaudit/internal/domain/forest"
	"github.com/okian/ecoaudit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
	"gonum.org/v1/gonum/mat"
)

func writeFile(dir, name string, data []byte) string {
	p := filepath.Join(dir, name)
	So(os.WriteFile(p, data, 0o600), ShouldBeNil)
	return p
}

func saved(name string, v any) []byte {
	var buf bytes.Buffer
	So(model.Save(&buf, name, v), ShouldBeNil)
	return buf.Bytes()
}

func TestCheckExtension(t *testing.T) {
	Convey("Given upload file names", t, func() {
		cases := []struct {
			name string
			ext  string
		}{
			{"data.csv", ".csv"},
			{"x.tsv", ".tsv"},
			{"m.gob", ".gob"},
		}
		for _, tc := range cases {
			ext, err := artifact.CheckExtension(tc.name)
			So(err, ShouldBeNil)
			So(ext, ShouldEqual, tc.ext)
		}

		Convey("When the extension is not supported", func() {
			for _, name := range []string{"notes.txt", "model.pkl", "noext", ""} {
				_, err := artifact.CheckExtension(name)
				So(errors.Is(err, artifact.ErrUnsupportedFileType), ShouldBeTrue)
			}
		})

		Convey("When the extension is upper case", func() {
			ext, err := artifact.CheckExtension("DATA.CSV")
			So(err, ShouldBeNil)
			So(ext, ShouldEqual, ".csv")
		})
	})
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	Convey("Given a temporary directory", t, func() {
		dir := t.TempDir()

		Convey("When a valid csv is classified", func() {
			p := writeFile(dir, "d.csv", []byte("a,b,label\n1,2,x\n3,4,y\n"))
			a, err := artifact.Classify(ctx, p, artifact.ExtCSV)
			So(err, ShouldBeNil)
			So(a.Kind, ShouldEqual, artifact.KindDataset)
			So(a.Table.Rows, ShouldHaveLength, 2)
		})

		Convey("When a tsv is classified", func() {
			p := writeFile(dir, "d.tsv", []byte("a\tlabel\n1\tx\n"))
			a, err := artifact.Classify(ctx, p, artifact.ExtTSV)
			So(err, ShouldBeNil)
			So(a.Kind, ShouldEqual, artifact.KindDataset)
		})

		Convey("When a csv is malformed", func() {
			p := writeFile(dir, "bad.csv", []byte("only_one_column\n1\n"))
			_, err := artifact.Classify(ctx, p, artifact.ExtCSV)
			var malformed *artifact.MalformedInputError
			So(errors.As(err, &malformed), ShouldBeTrue)
			So(malformed.Path, ShouldEqual, p)
		})

		Convey("When a fitted forest artifact is classified", func() {
			c := forest.New(forest.WithTrees(2))
			So(c.Fit(mat.NewDense(4, 2, []float64{0, 1, 1, 0, 2, 1, 3, 0}), []int{0, 0, 1, 1}), ShouldBeNil)
			p := writeFile(dir, "m.gob", saved(forest.TypeName, c))

			a, err := artifact.Classify(ctx, p, artifact.ExtGob)
			So(err, ShouldBeNil)
			So(a.Kind, ShouldEqual, artifact.KindModel)
			So(a.TypeName, ShouldEqual, "forest.Classifier")
			So(a.Model, ShouldNotBeNil)
		})

		Convey("When a forest artifact has a node pointing back at itself", func() {
			c := &forest.Classifier{
				Trees:    []forest.Tree{{Nodes: []forest.Node{{Left: 0, Right: 0}}}},
				Features: 1,
				Classes:  1,
			}
			p := writeFile(dir, "loop.gob", saved(forest.TypeName, c))

			_, err := artifact.Classify(ctx, p, artifact.ExtGob)
			var malformed *artifact.MalformedInputError
			So(errors.As(err, &malformed), ShouldBeTrue)
			So(errors.Is(err, forest.ErrMalformed), ShouldBeTrue)
		})

		Convey("When a serialized table is classified", func() {
			tbl := &dataset.Table{Header: []string{"a", "label"}, Rows: [][]string{{"1", "x"}}}
			p := writeFile(dir, "t.gob", saved(dataset.TypeName, tbl))

			a, err := artifact.Classify(ctx, p, artifact.ExtGob)
			So(err, ShouldBeNil)
			So(a.Kind, ShouldEqual, artifact.KindDataset)
			So(a.Table.Header, ShouldResemble, []string{"a", "label"})
		})

		Convey("When a mapping artifact is classified", func() {
			p := writeFile(dir, "map.gob", saved(model.MappingTypeName, model.Mapping{"k": "v"}))

			a, err := artifact.Classify(ctx, p, artifact.ExtGob)
			So(err, ShouldBeNil)
			So(a.Kind, ShouldEqual, artifact.KindUnknown)
			So(a.MissingDependency, ShouldBeEmpty)
		})

		Convey("When the artifact names an unlinked type", func() {
			var buf bytes.Buffer
			So(gob.NewEncoder(&buf).Encode(model.Envelope{Type: "xgboost.Booster", Version: 1}), ShouldBeNil)
			p := writeFile(dir, "x.gob", buf.Bytes())

			a, err := artifact.Classify(ctx, p, artifact.ExtGob)
			So(err, ShouldBeNil)
			So(a.Kind, ShouldEqual, artifact.KindUnusable)
			So(a.MissingDependency, ShouldEqual, "xgboost.Booster")
		})

		Convey("When the gob bytes are corrupt", func() {
			p := writeFile(dir, "c.gob", []byte("garbage"))
			_, err := artifact.Classify(ctx, p, artifact.ExtGob)
			var malformed *artifact.MalformedInputError
			So(errors.As(err, &malformed), ShouldBeTrue)
			So(errors.Is(err, model.ErrCorruptArtifact), ShouldBeTrue)
		})

		Convey("When the file does not exist", func() {
			_, err := artifact.Classify(ctx, filepath.Join(dir, "missing.csv"), artifact.ExtCSV)
			So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
		})
	})
}
