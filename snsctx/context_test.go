package snsctx

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerbose(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsVerbose(ctx))
	assert.True(t, IsVerbose(SetVerbose(ctx, true)))
}

func TestLogger(t *testing.T) {
	ctx := context.Background()
	assert.Same(t, slog.Default(), Logger(ctx))
	l := slog.Default().With("cmd", "thermo read")
	assert.Same(t, l, Logger(WithLogger(ctx, l)))
	assert.Same(t, slog.Default(), Logger(WithLogger(ctx, nil)))
}
