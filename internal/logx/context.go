package logx

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type operationIDContextKey struct{}

func IsUUIDv4(value string) bool {
	parsed, err := uuid.Parse(value)
	if err != nil {
		return false
	}
	return parsed.Version() == 4
}

func NormalizeRequestID(value string) string {
	if IsUUIDv4(value) {
		return value
	}
	return uuid.NewString()
}

// NewOperationID returns a fresh id for one sweep, retry or probe.
func NewOperationID() string {
	return uuid.NewString()
}

func WithOperationID(ctx context.Context, operationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, operationIDContextKey{}, operationID)
}

func OperationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	operationID, _ := ctx.Value(operationIDContextKey{}).(string)
	return operationID
}

func RequestIDFromGin(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if requestID := c.GetString("request_id"); requestID != "" {
		return requestID
	}
	return OperationIDFromContext(c.Request.Context())
}

// FromContext returns the default logger tagged with the context's operation id.
func FromContext(ctx context.Context) *slog.Logger {
	operationID := OperationIDFromContext(ctx)
	if operationID == "" {
		return slog.Default()
	}
	return slog.Default().With("operation_id", operationID)
}

// WithComponent is FromContext plus a component attribute.
func WithComponent(ctx context.Context, component string) *slog.Logger {
	return FromContext(ctx).With("component", component)
}
