package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			metricPrefixOpt := WithMetricPrefix("test-prefix")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			metricsEnabledOpt := WithMetricsEnabled(true)
			refreshIntervalOpt := WithRefreshInterval(5 * time.Second)
			customLabelsOpt := WithCustomLabels(map[string]string{"env": "test"})

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(metricPrefixOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(metricsEnabledOpt, ShouldNotBeNil)
				So(refreshIntervalOpt, ShouldNotBeNil)
				So(customLabelsOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(WithPrometheusRegistry(registry))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithMetricPrefix("test-prefix"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithMetricsEnabled(true),
				WithRefreshInterval(10*time.Second),
				WithCustomLabels(map[string]string{"env": "test", "version": "1.0"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording match pipeline metrics", func() {
			Convey("Then recording should not panic", func() {
				So(func() { RecordMatchProcessed("1v1", "ok") }, ShouldNotPanic)
				So(func() { RecordMatchProcessed("2v2", "error") }, ShouldNotPanic)
				So(func() { RecordMatchDuplicate() }, ShouldNotPanic)
				So(func() { RecordMatchProcessingLatency(0.015) }, ShouldNotPanic)
			})
		})

		Convey("When recording rating metrics", func() {
			Convey("Then recording should not panic", func() {
				So(func() { RecordRatingChange(42.5) }, ShouldNotPanic)
				So(func() { RecordCatchUpBonusApplied() }, ShouldNotPanic)
				So(func() { RecordGapScalingApplied() }, ShouldNotPanic)
			})
		})

		Convey("When recording proven potential metrics", func() {
			Convey("Then recording should not panic", func() {
				So(func() { RecordProvenPotentialOpened() }, ShouldNotPanic)
				So(func() { RecordProvenPotentialCompleted() }, ShouldNotPanic)
				So(func() { RecordProvenPotentialAdjustment(3.25) }, ShouldNotPanic)
			})
		})

		Convey("When updating operational gauges", func() {
			Convey("Then updates should not panic", func() {
				So(func() { UpdateQueueSize(128) }, ShouldNotPanic)
				So(func() { UpdateWorkerCount(8) }, ShouldNotPanic)
				So(func() { UpdateTotalTeams(5000) }, ShouldNotPanic)
				So(func() { UpdateQueueCapacity(100000) }, ShouldNotPanic)
			})
		})

		Convey("When recording HTTP metrics", func() {
			Convey("Then recording should not panic", func() {
				So(func() { RecordHTTPRequest("matches", "POST", "202") }, ShouldNotPanic)
				So(func() { RecordHTTPRequestDuration("matches", "POST", "202", 1.5) }, ShouldNotPanic)
			})
		})

		Convey("When recording repository metrics", func() {
			Convey("Then recording should not panic", func() {
				So(func() { UpdateRepositoryShardCount(8) }, ShouldNotPanic)
				So(func() { RecordTeamRegistered() }, ShouldNotPanic)
				So(func() { RecordRepositoryUpdateLatency(0.8) }, ShouldNotPanic)
				So(func() { RecordRepositoryQueryLatency(0.4) }, ShouldNotPanic)
			})
		})

		Convey("When recording queue and error metrics", func() {
			Convey("Then recording should not panic", func() {
				So(func() { RecordQueueEnqueueError("queue_full") }, ShouldNotPanic)
				So(func() { RecordErrorByEndpoint("matches", "POST", "client_error") }, ShouldNotPanic)
				So(func() { RecordErrorByType("client_error", "medium") }, ShouldNotPanic)
				So(func() { RecordErrorLatency("http", "client_error", 2.0) }, ShouldNotPanic)
			})
		})
	})
}

func TestRegistryExposition(t *testing.T) {
	Convey("Given the custom registry", t, func() {
		registry := GetRegistry()

		Convey("When metrics have been recorded", func() {
			RecordMatchProcessed("1v1", "ok")
			UpdateQueueSize(7)

			families, err := registry.Gather()

			Convey("Then the ladder metric families gather cleanly", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)

				names := make(map[string]bool, len(families))
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["ladder_rating_matches_processed_total"], ShouldBeTrue)
				So(names["ladder_rating_queue_size"], ShouldBeTrue)
			})
		})
	})
}
