package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

// counterValue sums a gathered counter family across label sets matching want.
func counterValue(reg *prometheus.Registry, name string, want map[string]string) float64 {
	families, err := reg.Gather()
	So(err, ShouldBeNil)
	total := 0.0
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			match := true
			for _, lp := range m.GetLabel() {
				if v, ok := want[lp.GetName()]; ok && v != lp.GetValue() {
					match = false
				}
			}
			if match {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			opts := []Option{
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithAuditBuckets([]float64{1, 10}),
				WithMetricsEnabled(true),
				WithCustomLabels(map[string]string{"env": "test"}),
			}

			Convey("Then they should be valid functions", func() {
				for _, opt := range opts {
					So(opt, ShouldNotBeNil)
				}
			})
		})

		Convey("When empty values are passed", func() {
			m := &Manager{namespace: "keep", subsystem: "keep"}
			WithNamespace("")(m)
			WithSubsystem("")(m)
			WithHistogramBuckets(nil)(m)

			Convey("Then defaults are kept", func() {
				So(m.namespace, ShouldEqual, "keep")
				So(m.subsystem, ShouldEqual, "keep")
				So(m.histogramBuckets, ShouldBeNil)
			})
		})
	})
}

func TestManagerRecording(t *testing.T) {
	Convey("Given a manager on its own registry", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(
			WithPrometheusRegistry(reg),
			WithNamespace("t"),
			WithSubsystem("s"),
			WithCustomLabels(map[string]string{"env": "test"}),
		)

		Convey("When audits are recorded", func() {
			m.RecordAudit("dataset_training", OutcomeSuccess, 1.5)
			m.RecordAudit("dataset_training", OutcomeFailure, 0)
			m.RecordAudit("model_inference", OutcomeSuccess, 0.2)

			Convey("Then counts are kept per kind and outcome", func() {
				So(counterValue(reg, "t_s_audits_total", map[string]string{"kind": "dataset_training"}), ShouldEqual, 2)
				So(counterValue(reg, "t_s_audits_total", map[string]string{"outcome": OutcomeSuccess}), ShouldEqual, 2)
				So(counterValue(reg, "t_s_audits_total", map[string]string{"env": "test"}), ShouldEqual, 3)
			})
		})

		Convey("When footprint is recorded", func() {
			m.RecordFootprint("model_inference", 0.25, 0.1)
			m.RecordFootprint("model_inference", -1, 0)

			Convey("Then negative values are ignored", func() {
				So(counterValue(reg, "t_s_energy_kwh_total", nil), ShouldEqual, 0.25)
				So(counterValue(reg, "t_s_carbon_kg_total", nil), ShouldEqual, 0.1)
			})
		})

		Convey("When fallbacks, classifications and rejections are recorded", func() {
			m.RecordMeterFallback("log")
			m.RecordMeterFallback("zero")
			m.RecordClassification("dataset")
			m.RecordUploadRejected("extension")

			Convey("Then each counter moves", func() {
				So(counterValue(reg, "t_s_meter_fallback_total", map[string]string{"source": "log"}), ShouldEqual, 1)
				So(counterValue(reg, "t_s_meter_fallback_total", nil), ShouldEqual, 2)
				So(counterValue(reg, "t_s_artifacts_classified_total", nil), ShouldEqual, 1)
				So(counterValue(reg, "t_s_uploads_rejected_total", nil), ShouldEqual, 1)
			})
		})

		Convey("When HTTP metrics are recorded", func() {
			m.RecordHTTPRequest("audit", "POST", "200")
			m.RecordHTTPRequestDuration("audit", "POST", "200", 12.5)
			m.RecordErrorByEndpoint("audit", "POST", "bad_request")

			Convey("Then the request and error counters move", func() {
				So(counterValue(reg, "t_s_http_requests_total", nil), ShouldEqual, 1)
				So(counterValue(reg, "t_s_errors_by_endpoint_total", nil), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a disabled manager", t, func() {
		reg := prometheus.NewRegistry()
		m := NewManager(WithPrometheusRegistry(reg), WithMetricsEnabled(false))
		m.RecordAudit("dataset_training", OutcomeSuccess, 1)
		m.RecordMeterFallback("zero")

		Convey("Then nothing is recorded", func() {
			So(counterValue(reg, "ecoaudit_engine_audits_total", nil), ShouldEqual, 0)
			So(counterValue(reg, "ecoaudit_engine_meter_fallback_total", nil), ShouldEqual, 0)
		})
	})
}

func TestGlobalRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("Then package level recorders do not panic", func() {
			So(func() {
				RecordAudit("dataset_training", OutcomeSuccess, 0.1)
				RecordFootprint("dataset_training", 0.01, 0.005)
				RecordMeterFallback("zero")
				RecordClassification("model")
				RecordUploadRejected("missing_file")
				RecordHTTPRequest("healthz", "GET", "200")
				RecordHTTPRequestDuration("healthz", "GET", "200", 1)
				RecordErrorByEndpoint("audit", "POST", "internal_error")
			}, ShouldNotPanic)
		})

		Convey("Then the custom registry exposes audit metrics", func() {
			RecordAudit("model_inference", OutcomeSuccess, 0.1)
			So(GetRegistry(), ShouldNotBeNil)
			So(counterValue(GetRegistry(), "ecoaudit_engine_audits_total", map[string]string{"kind": "model_inference"}), ShouldBeGreaterThan, 0)
		})
	})
}
