package logger

import (
	"context"
	"log/slog"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	// Re-initialization must be safe.
	if err := Init(); err != nil {
		t.Fatalf("failed to re-initialize logger: %v", err)
	}
	if Get() == nil {
		t.Fatal("logger is nil after re-initialization")
	}
}

func TestLoggerBasic(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	ctx := context.Background()
	log := Get()
	log.Info(ctx, "test message", String("k", "v"))
	log.Warn(ctx, "test warning", Int("count", 3))
	log.Error(ctx, "test error", Float64("value", 1.5), Bool("flag", true))
	log.Debug(ctx, "test debug", Any("payload", map[string]int{"a": 1}))
}

func TestLoggerNamed(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	named := Named("test")
	if named == nil {
		t.Fatal("named logger is nil")
	}
	named.Info(context.Background(), "test message")

	nested := named.Named("inner")
	if nested == nil {
		t.Fatal("nested named logger is nil")
	}
}

func TestSetLevelString(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}

	for _, level := range []string{"debug", "info", "warn", "warning", "error", "", "DEBUG", " Info "} {
		if err := SetLevelString(level); err != nil {
			t.Errorf("SetLevelString(%q) returned error: %v", level, err)
		}
	}

	if err := SetLevelString("verbose"); err == nil {
		t.Error("SetLevelString with unknown level should fail")
	}

	// Restore the default for other tests.
	SetLevel(slog.LevelInfo)
}
