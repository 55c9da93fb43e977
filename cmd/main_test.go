package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/adapters/http/api"
	"github.com/okian/ladder/internal/adapters/http/swagger"
	app "github.com/okian/ladder/internal/app"
	"github.com/okian/ladder/internal/config"
	"github.com/okian/ladder/pkg/logger"
)

func init() {
	_ = logger.Init()
}

func TestApplicationSetup(t *testing.T) {
	convey.Convey("Given the main application wiring", t, func() {
		t.Setenv("LADDER_ADDR", ":8080")
		t.Setenv("LADDER_QUEUE_SIZE", "1000")
		t.Setenv("LADDER_WORKER_COUNT", "2")

		convey.Convey("When configuration is loaded from the environment", func() {
			cfg, err := config.Load()

			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg, convey.ShouldNotBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 2)
		})

		convey.Convey("When the components are assembled as main does", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			cfg, err := config.Load()
			convey.So(err, convey.ShouldBeNil)

			svc := app.New(
				app.WithWorkerCount(cfg.WorkerCount),
				app.WithQueueSize(cfg.QueueSize),
				app.WithDedupeSize(cfg.DedupeSize),
				app.WithRatingConfig(cfg.RatingEngineConfig()),
				app.WithPotentialConfig(cfg.TrackerConfig()),
			)
			convey.So(svc, convey.ShouldNotBeNil)

			mux := http.NewServeMux()
			swagger.Register(ctx, mux)
			api.NewServer(svc, svc, cfg.MaxLeaderboardLimit).Register(ctx, mux)

			svc.Stop()
		})
	})
}

func TestServiceMetricsUpdater(t *testing.T) {
	convey.Convey("Given a service and the metrics updater", t, func() {
		svc := app.New()
		convey.So(svc, convey.ShouldNotBeNil)

		convey.Convey("When a single update runs", func() {
			convey.So(func() { updateServiceMetrics(svc) }, convey.ShouldNotPanic)
		})

		convey.Convey("When the updater loop runs until its context expires", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			convey.So(func() { startServiceMetricsUpdater(ctx, svc) }, convey.ShouldNotPanic)
		})
	})
}
