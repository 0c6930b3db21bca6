package observability

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogContextAccumulates(t *testing.T) {
	ctx := WithBuildID(context.Background(), "b-1")
	ctx = WithUnit(ctx, "frontend")
	ctx = WithProfile(ctx, "release")
	ctx = WithStage(ctx, "optimize")

	lc := GetContext(ctx)
	assert.Equal(t, LogContext{BuildID: "b-1", Profile: "release", Stage: "optimize", Unit: "frontend"}, lc)
}

func TestInfoContextEmitsAttrs(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	ctx := WithStage(WithBuildID(context.Background(), "b-2"), "compile")
	InfoContext(ctx, "stage started", slog.String("extra", "x"))

	out := buf.String()
	assert.Contains(t, out, "build_id=b-2")
	assert.Contains(t, out, "stage=compile")
	assert.Contains(t, out, "extra=x")
}
