package resilience

import (
	"context"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/log"
)

type contextKey string

const (
	loggerContextKey      contextKey = "resilience_logger"
	operationIDContextKey contextKey = "resilience_operation_id"
)

// ContextWithLogger attaches a request-scoped logger. The Manager prefers it
// over its own logger when recording outcomes.
func ContextWithLogger(ctx context.Context, logger log.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// LoggerFromContext returns the logger attached by ContextWithLogger, or a
// nop logger when none is set.
//
//nolint:ireturn
func LoggerFromContext(ctx context.Context) log.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(log.Logger); ok && logger != nil {
		return logger
	}

	return &log.NopLogger{}
}

// ContextWithOperationID tags the context with the id assigned to the
// current operation. The Manager sets it before running an operation so
// downstream code and fallbacks can correlate their own logs.
func ContextWithOperationID(ctx context.Context, operationID string) context.Context {
	return context.WithValue(ctx, operationIDContextKey, operationID)
}

// OperationIDFromContext returns the current operation id, or "" when the
// call did not come through a Manager.
func OperationIDFromContext(ctx context.Context) string {
	operationID, _ := ctx.Value(operationIDContextKey).(string)

	return operationID
}
