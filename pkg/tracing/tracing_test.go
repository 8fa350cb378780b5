package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitTracer_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := InitTracer(Config{ServiceName: "pollreminder-api"})

	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}

func TestStartSpan_NoopBeforeInit(t *testing.T) {
	ctx := context.Background()

	spanCtx, span := StartSpan(ctx, "poll_api.lookup")

	assert.Equal(t, ctx, spanCtx)
	assert.False(t, span.SpanContext().IsValid())
	assert.NotPanics(t, func() { EndSpan(span, errors.New("boom")) })
}
