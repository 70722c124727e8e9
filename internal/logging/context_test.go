package logging

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestValidRequestID(t *testing.T) {
	tests := []struct {
		name string
		id   string
		want bool
	}{
		{"uuid", uuid.NewString(), true},
		{"client supplied", "req_abc-123", true},
		{"empty", "", false},
		{"space", "req 1", false},
		{"newline injection", "req\n{\"level\":\"error\"}", false},
		{"non ascii", "réq", false},
		{"max length", strings.Repeat("a", maxRequestIDLen), true},
		{"too long", strings.Repeat("a", maxRequestIDLen+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ValidRequestID(tt.id))
		})
	}
}

func TestWithRequestID(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))

	t.Run("invalid id keeps the existing one", func(t *testing.T) {
		got := WithRequestID(ctx, "bad id")
		assert.Equal(t, "req-1", RequestID(got))
	})

	t.Run("missing id is empty", func(t *testing.T) {
		assert.Empty(t, RequestID(context.Background()))
	})
}

func TestContextFields(t *testing.T) {
	t.Run("empty context", func(t *testing.T) {
		assert.Empty(t, ContextFields(context.Background()))
	})

	t.Run("request id and active span", func(t *testing.T) {
		tp := sdktrace.NewTracerProvider()
		t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

		ctx, span := tp.Tracer("test").Start(WithRequestID(context.Background(), "req-9"), "semantic.search")
		defer span.End()

		fields := map[string]string{}
		for _, f := range ContextFields(ctx) {
			fields[f.Key] = f.String
		}
		require.Len(t, fields, 3)
		assert.Equal(t, "req-9", fields["request.id"])
		assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
		assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
	})
}
