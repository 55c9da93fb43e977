package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/ladder/internal/config"
)

func setenv(t *testing.T, pairs map[string]string) {
	t.Helper()
	for k, v := range pairs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	convey.Convey("Given no overrides in the environment", t, func() {
		cfg, err := config.Load()

		convey.Convey("Then defaults load and validate", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg, convey.ShouldNotBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Storage, convey.ShouldEqual, "memory")
		})
	})
}

func TestLoad_EnvOverrides(t *testing.T) {
	convey.Convey("Given environment overrides", t, func() {
		setenv(t, map[string]string{
			"LADDER_ADDR":         ":8081",
			"LADDER_QUEUE_SIZE":   "1234",
			"LADDER_WORKER_COUNT": "4",
			"LADDER_LOG_LEVEL":    "debug",
		})

		cfg, err := config.Load()

		convey.Convey("Then top-level fields are overridden", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Addr, convey.ShouldEqual, ":8081")
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1234)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, 4)
			convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
		})
	})
}

func TestLoad_NestedEnvOverrides(t *testing.T) {
	convey.Convey("Given nested tuning overrides with double underscores", t, func() {
		setenv(t, map[string]string{
			"LADDER_RATING__K_FACTOR":            "32",
			"LADDER_RATING__CONFIDENCE_GAMES":    "10",
			"LADDER_POTENTIAL__TRACKING_MATCHES": "8",
		})

		cfg, err := config.Load()

		convey.Convey("Then section fields are overridden and the rest keep defaults", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.Rating.KFactor, convey.ShouldEqual, 32.0)
			convey.So(cfg.Rating.ConfidenceGames, convey.ShouldEqual, 10)
			convey.So(cfg.Rating.EloDivisor, convey.ShouldEqual, 400.0)
			convey.So(cfg.Potential.TrackingMatches, convey.ShouldEqual, 8)
			convey.So(cfg.Potential.StepFraction, convey.ShouldEqual, 0.1)
		})
	})
}

func TestLoad_File(t *testing.T) {
	convey.Convey("Given a YAML config file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "ladder.yaml")
		content := []byte("addr: \":7070\"\nqueue_size: 42\nrating:\n  k_factor: 24\n")
		convey.So(os.WriteFile(path, content, 0o600), convey.ShouldBeNil)
		t.Setenv("LADDER_CONFIG", path)

		convey.Convey("When the file is the only source", func() {
			cfg, err := config.Load()

			convey.Convey("Then file values layer over the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 42)
				convey.So(cfg.Rating.KFactor, convey.ShouldEqual, 24.0)
				convey.So(cfg.Storage, convey.ShouldEqual, "memory")
			})
		})

		convey.Convey("When the environment also overrides a field", func() {
			t.Setenv("LADDER_ADDR", ":6060")
			cfg, err := config.Load()

			convey.Convey("Then the environment wins over the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 42)
			})
		})
	})
}

func TestLoad_MissingFile(t *testing.T) {
	convey.Convey("Given a config file path that does not exist", t, func() {
		t.Setenv("LADDER_CONFIG", "/nonexistent/ladder.yaml")

		_, err := config.Load()

		convey.Convey("Then loading fails with the load sentinel", func() {
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})
	})
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		envs map[string]string
	}{
		{"an unknown storage backend", map[string]string{"LADDER_STORAGE": "etcd"}},
		{"postgres storage without a DSN", map[string]string{"LADDER_STORAGE": "postgres"}},
		{"a non-positive K factor", map[string]string{"LADDER_RATING__K_FACTOR": "0"}},
		{"a floor above the starting rating", map[string]string{"LADDER_RATING__MINIMUM_RATING": "1800"}},
		{"a non-positive tracking window", map[string]string{"LADDER_POTENTIAL__TRACKING_MATCHES": "0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			convey.Convey("Given "+tc.name, t, func() {
				setenv(t, tc.envs)
				_, err := config.Load()

				convey.Convey("Then validation rejects it", func() {
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		})
	}
}
