package auditclient_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/okian/ecoaudit/internal/auditclient"
	. "github.com/smartystreets/goconvey/convey"
)

func writeTemp(dir, name, content string) string {
	path := filepath.Join(dir, name)
	So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)
	return path
}

func TestNew(t *testing.T) {
	Convey("Given an empty base URL", t, func() {
		_, err := auditclient.New("  ")

		Convey("Then construction should fail", func() {
			So(errors.Is(err, auditclient.ErrEmptyBaseURL), ShouldBeTrue)
		})
	})
}

func TestClient_Submit(t *testing.T) {
	Convey("Given a server that echoes the upload into a report", t, func() {
		var (
			mu                          sync.Mutex
			gotName, gotEpochs, gotBody string
		)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/audit" {
				http.NotFound(w, r)
				return
			}
			file, header, err := r.FormFile("file")
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			defer file.Close()
			buf := make([]byte, 64)
			n, _ := file.Read(buf)
			mu.Lock()
			gotName, gotEpochs, gotBody = header.Filename, r.FormValue("epochs"), string(buf[:n])
			mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"experiment":{"type":"dataset_training","epochs":2,"timestamp":""},` +
				`"metrics":{"total_energy_kwh":0.5,"total_carbon_kg":0.2,"energy_per_epoch":[0.25,0.25]},` +
				`"dataset":{"samples":4,"features":2},"model":{"name":"RandomForest"},` +
				`"system":{"platform":"Linux","python_version":"go1.25","cpu_count":8},"recommendations":[]}`))
		}))
		defer srv.Close()

		client, err := auditclient.New(srv.URL + "/")
		So(err, ShouldBeNil)
		path := writeTemp(t.TempDir(), "train.csv", "a,b,y\n1,2,x\n")

		Convey("When submitting with explicit epochs", func() {
			rep, err := client.Submit(context.Background(), path, 2)

			Convey("Then the upload and decoded report should match", func() {
				So(err, ShouldBeNil)
				mu.Lock()
				defer mu.Unlock()
				So(gotName, ShouldEqual, "train.csv")
				So(gotEpochs, ShouldEqual, "2")
				So(gotBody, ShouldStartWith, "a,b,y")
				So(rep.Experiment.Epochs, ShouldEqual, 2)
				So(rep.Dataset, ShouldNotBeNil)
				So(rep.Dataset.Samples, ShouldEqual, 4)
				So(rep.Metrics.EnergyPerEpoch, ShouldHaveLength, 2)
			})
		})

		Convey("When submitting without epochs", func() {
			_, err := client.Submit(context.Background(), path, 0)

			Convey("Then the epochs field should be omitted", func() {
				So(err, ShouldBeNil)
				mu.Lock()
				defer mu.Unlock()
				So(gotEpochs, ShouldBeEmpty)
			})
		})

		Convey("When the file does not exist", func() {
			_, err := client.Submit(context.Background(), filepath.Join(t.TempDir(), "nope.csv"), 1)

			Convey("Then it should fail before contacting the server", func() {
				So(errors.Is(err, os.ErrNotExist), ShouldBeTrue)
			})
		})
	})

	Convey("Given a server that rejects the model", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":"Audit failed. Check file format.","code":"missing_dependency","missing_dependency":"xgboost.Booster"}`))
		}))
		defer srv.Close()

		client, err := auditclient.New(srv.URL)
		So(err, ShouldBeNil)
		path := writeTemp(t.TempDir(), "model.gob", "not really gob")

		Convey("When submitting", func() {
			_, err := client.Submit(context.Background(), path, 1)

			Convey("Then an APIError should carry the server's details", func() {
				var apiErr *auditclient.APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.StatusCode, ShouldEqual, http.StatusInternalServerError)
				So(apiErr.Code, ShouldEqual, "missing_dependency")
				So(apiErr.MissingDependency, ShouldEqual, "xgboost.Booster")
				So(apiErr.Error(), ShouldContainSubstring, "xgboost.Booster")
			})
		})
	})

	Convey("Given a server replying with plain text", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		client, err := auditclient.New(srv.URL)
		So(err, ShouldBeNil)
		path := writeTemp(t.TempDir(), "d.csv", "a,y\n1,x\n")

		Convey("Then the body should become the error message", func() {
			_, err := client.Submit(context.Background(), path, 1)
			var apiErr *auditclient.APIError
			So(errors.As(err, &apiErr), ShouldBeTrue)
			So(apiErr.StatusCode, ShouldEqual, http.StatusTooManyRequests)
			So(apiErr.Message, ShouldEqual, "rate limited")
		})
	})
}

func TestClient_Health(t *testing.T) {
	Convey("Given a healthy and an unhealthy server", t, func() {
		ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		}))
		defer ok.Close()
		down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer down.Close()

		Convey("Then only the healthy one should pass", func() {
			c, err := auditclient.New(ok.URL)
			So(err, ShouldBeNil)
			So(c.Health(context.Background()), ShouldBeNil)

			c, err = auditclient.New(down.URL)
			So(err, ShouldBeNil)
			So(errors.Is(c.Health(context.Background()), auditclient.ErrBadResponse), ShouldBeTrue)
		})
	})
}
