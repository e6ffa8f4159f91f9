package resilience

import (
	"context"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/circuitbreaker"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/degradation"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/retry"
)

// Executor applies one resilience policy to a unit of work. Policies are
// composed by wrapping executors around each other rather than nesting
// closures at the call site.
type Executor interface {
	Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error)
}

// retryExecutor runs fn under bounded retry and unwraps the retry result.
type retryExecutor struct {
	manager *retry.Manager
	name    string
	config  retry.Config
}

func (e *retryExecutor) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	result := e.manager.Execute(ctx, e.name, retry.Operation(fn), e.config)
	if !result.Success {
		return nil, result.Err
	}

	return result.Data, nil
}

// circuitExecutor guards an inner executor with a named circuit. The
// circuit's timeout threshold covers the inner executor's whole run,
// retries included.
type circuitExecutor struct {
	registry *circuitbreaker.Registry
	name     string
	inner    Executor
}

func (e *circuitExecutor) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return e.registry.Execute(ctx, e.name, func(innerCtx context.Context) (any, error) {
		return e.inner.Execute(innerCtx, fn)
	})
}

// degradationExecutor runs fn as the primary operation of a service, with
// the degrader deciding on fallbacks.
type degradationExecutor struct {
	degrader *degradation.Degrader
	service  string
}

func (e *degradationExecutor) Execute(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	return e.degrader.Execute(ctx, e.service, degradation.Operation(fn))
}
