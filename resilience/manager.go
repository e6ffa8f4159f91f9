package resilience

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/circuitbreaker"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/consistency"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/degradation"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/log"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/retry"
)

// ManagerConfig carries the default policy for each resilience component.
// Zero-valued sections fall back to the component's DefaultConfig.
type ManagerConfig struct {
	Retry       retry.Config
	Circuit     circuitbreaker.Config
	Degradation degradation.Config
	Consistency consistency.Config
	Logger      log.Logger
}

// Manager composes circuit breaking, retry, graceful degradation and data
// consistency checking behind a single Execute entry point. An operation's
// Options pick exactly one execution path; consistency validation brackets
// whichever path runs.
type Manager struct {
	config   ManagerConfig
	circuits *circuitbreaker.Registry
	retries  *retry.Manager
	degrader *degradation.Degrader
	checker  *consistency.Checker
	history  *historyLog
	logger   log.Logger

	// observer is atomic because circuit state change listeners fire on
	// their own goroutines.
	observer atomic.Pointer[PromObserver]
}

// NewManager builds a Manager from cfg. The degrader's background sweeper is
// not running until Start is called.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.DefaultConfig()
	}

	if cfg.Circuit.FailureThreshold == 0 {
		cfg.Circuit = circuitbreaker.DefaultConfig()
	}

	if cfg.Degradation.DegradationThreshold == 0 {
		cfg.Degradation = degradation.DefaultConfig()
	}

	if cfg.Consistency.MaxRepairAttempts == 0 {
		cfg.Consistency = consistency.DefaultConfig()
	}

	logger := log.OrNop(cfg.Logger)

	m := &Manager{
		config:   cfg,
		circuits: circuitbreaker.NewRegistry(logger),
		retries:  retry.NewManager(logger),
		degrader: degradation.NewDegrader(cfg.Degradation, logger),
		checker:  consistency.NewChecker(cfg.Consistency, logger),
		history:  newHistoryLog(),
		logger:   logger,
	}

	m.circuits.RegisterStateChangeListener(&observerListener{manager: m})

	return m
}

// Start launches the degrader's background sweeper.
func (m *Manager) Start() {
	m.degrader.Start()
}

// Close stops background work. The Manager remains usable for synchronous
// calls afterwards.
func (m *Manager) Close() {
	m.degrader.Stop()
}

// SetObserver wires Prometheus metric export. Passing nil disables it. Safe
// to call while operations are in flight.
func (m *Manager) SetObserver(observer *PromObserver) {
	m.observer.Store(observer)
}

// Execute runs op through the path selected by its Options.
//
// When Options.ValidateData is set, op.Data is validated before execution
// and a critical failure aborts the call with ErrValidationFailed. The
// result is validated the same way after a successful run; repaired values
// replace the result. Every call, aborted or not, lands in the operation
// history.
func (m *Manager) Execute(ctx context.Context, op Operation) (any, error) {
	if err := op.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	operationID := uuid.New().String()
	ctx = ContextWithOperationID(ctx, operationID)

	if op.Options.ValidateData && op.Data != nil {
		report := m.runValidation(ctx, op.Data, op.Options.Rules)
		if report.Status == consistency.StatusCritical {
			err := fmt.Errorf("%w: pre-execution check for %q", ErrValidationFailed, op.Name)
			m.record(ctx, op, operationID, start, err)

			return nil, err
		}

		// Repairs made during pre-validation flow into the run.
		op.Data = report.Data
	}

	result, err := m.buildExecutor(op).Execute(ctx, op.Run)

	if err == nil && op.Options.ValidateData && result != nil {
		report := m.runValidation(ctx, result, op.Options.Rules)
		if report.Status == consistency.StatusCritical {
			result = nil
			err = fmt.Errorf("%w: post-execution check for %q", ErrValidationFailed, op.Name)
		} else {
			result = report.Data
		}
	}

	m.record(ctx, op, operationID, start, err)

	return result, err
}

// RegisterFallback adds a degradation strategy for a service.
func (m *Manager) RegisterFallback(service string, strategy degradation.Strategy) error {
	return m.degrader.RegisterFallback(service, strategy)
}

// RegisterConsistencyRule adds a rule to the checker's registered set.
func (m *Manager) RegisterConsistencyRule(rule consistency.Rule) error {
	return m.checker.RegisterRule(rule)
}

// RepairData runs a named rule's repair against data, outside any budget.
func (m *Manager) RepairData(ctx context.Context, ruleName string, data any) (any, error) {
	return m.checker.RepairData(ctx, ruleName, data)
}

// ResetCircuit closes the named circuit and clears its counters.
func (m *Manager) ResetCircuit(name string) {
	m.circuits.Reset(name)
}

// ResetService clears a service's degradation counters.
func (m *Manager) ResetService(service string) {
	m.degrader.ResetService(service)
}

// GetOperationHistory returns the service's recorded outcomes, oldest first.
// A positive limit keeps only the most recent entries.
func (m *Manager) GetOperationHistory(service string, limit int) []HistoryEntry {
	return m.history.entries(service, limit)
}

// Metrics is a point-in-time view over every resilience component.
type Metrics struct {
	Circuits      map[string]circuitbreaker.Metrics
	Retry         map[string]retry.Stats
	ServiceLevel  degradation.Level
	Services      map[string]degradation.ServiceHealth
	Consistency   consistency.Tallies
	OverallHealth string
}

// GetMetrics snapshots all components and derives an overall health rating.
// Health is critical when any circuit is open or the service level is
// emergency, degraded when any circuit is half-open, any service is
// unhealthy or the level is below full, and healthy otherwise.
func (m *Manager) GetMetrics() Metrics {
	snapshot := m.degrader.Snapshot()

	metrics := Metrics{
		Circuits:     m.circuits.Snapshot(),
		Retry:        m.retries.StatsSnapshot(),
		ServiceLevel: snapshot.Level,
		Services:     snapshot.Services,
		Consistency:  m.checker.Tallies(),
	}

	metrics.OverallHealth = overallHealth(metrics)

	return metrics
}

func overallHealth(metrics Metrics) string {
	if metrics.ServiceLevel == degradation.LevelEmergency {
		return "critical"
	}

	degraded := metrics.ServiceLevel < degradation.LevelFull

	for _, circuit := range metrics.Circuits {
		switch circuit.State {
		case circuitbreaker.StateOpen:
			return "critical"
		case circuitbreaker.StateHalfOpen:
			degraded = true
		}
	}

	for _, service := range metrics.Services {
		if !service.Healthy {
			degraded = true
		}
	}

	if degraded {
		return "degraded"
	}

	return "healthy"
}

// buildExecutor assembles the decorator chain for one operation. Circuit
// breaking takes precedence over plain retry; both wrap the retry manager.
// Operations requesting neither run under the degrader so registered
// fallbacks apply.
func (m *Manager) buildExecutor(op Operation) Executor {
	retryConfig := m.config.Retry
	if op.Options.Retry != nil {
		retryConfig = *op.Options.Retry
	}

	switch {
	case op.Options.UseCircuitBreaker:
		name := op.circuitName()

		circuitConfig := m.config.Circuit
		if op.Options.Circuit != nil {
			circuitConfig = *op.Options.Circuit
		}

		m.circuits.Configure(name, circuitConfig)

		return &circuitExecutor{
			registry: m.circuits,
			name:     name,
			inner:    &retryExecutor{manager: m.retries, name: op.Name, config: retryConfig},
		}
	case op.Options.UseRetry:
		return &retryExecutor{manager: m.retries, name: op.Name, config: retryConfig}
	default:
		// Both explicit UseFallbacks and the unadorned default land here.
		return &degradationExecutor{degrader: m.degrader, service: op.Service}
	}
}

func (m *Manager) runValidation(ctx context.Context, data any, rules []consistency.Rule) *consistency.Report {
	if len(rules) > 0 {
		return m.checker.ValidateRules(ctx, data, rules)
	}

	return m.checker.ValidateData(ctx, data)
}

// loggerFor prefers a request-scoped logger attached via ContextWithLogger.
func (m *Manager) loggerFor(ctx context.Context) log.Logger {
	if logger, ok := ctx.Value(loggerContextKey).(log.Logger); ok && logger != nil {
		return logger
	}

	return m.logger
}

func (m *Manager) record(ctx context.Context, op Operation, operationID string, start time.Time, err error) {
	duration := time.Since(start)

	entry := HistoryEntry{
		OperationID: operationID,
		Name:        op.Name,
		Service:     op.Service,
		Status:      "success",
		Duration:    duration,
		Timestamp:   start,
	}

	if err != nil {
		entry.Status = "failure"
		entry.Error = err.Error()
	}

	m.history.append(entry)

	observer := m.observer.Load()
	observer.observeOperation(op.Service, op.Name, entry.Status, duration)
	observer.observeLevel(m.degrader.Level())

	logger := m.loggerFor(ctx)

	if err != nil {
		logger.Log(ctx, log.LevelWarn, "operation failed",
			log.String("operation", op.Name),
			log.String("service", op.Service),
			log.String("operation_id", operationID),
			log.Duration("duration", duration),
			log.Err(err),
		)

		return
	}

	logger.Log(ctx, log.LevelDebug, "operation succeeded",
		log.String("operation", op.Name),
		log.String("service", op.Service),
		log.String("operation_id", operationID),
		log.Duration("duration", duration),
	)
}

// observerListener forwards circuit state changes to the manager's observer.
type observerListener struct {
	manager *Manager
}

func (l *observerListener) OnStateChange(circuitName string, _ circuitbreaker.State, to circuitbreaker.State) {
	l.manager.observer.Load().observeCircuit(circuitName, to)
}
