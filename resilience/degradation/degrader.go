package degradation

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/internal/nilcheck"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/log"
)

// Degrader executes primary operations with graceful degradation. It owns
// the process-wide service level and the per-service health records.
type Degrader struct {
	config    Config
	level     Level
	services  map[string]*ServiceHealth
	fallbacks map[string][]Strategy
	mu        sync.Mutex
	logger    log.Logger

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewDegrader creates a degrader at the full service level. The stale-health
// sweeper is not running until Start is called.
func NewDegrader(config Config, logger log.Logger) *Degrader {
	return &Degrader{
		config:    config.normalize(),
		level:     LevelFull,
		services:  make(map[string]*ServiceHealth),
		fallbacks: make(map[string][]Strategy),
		logger:    log.OrNop(logger),
		stopChan:  make(chan struct{}),
	}
}

// RegisterFallback registers a fallback strategy for a service. Strategies
// are kept sorted ascending by priority.
func (d *Degrader) RegisterFallback(service string, strategy Strategy) error {
	if service == "" {
		return fmt.Errorf("service name is required")
	}

	if nilcheck.Interface(strategy.Run) {
		return fmt.Errorf("fallback %q for service %q has no Run function", strategy.Name, service)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	strategies := append(d.fallbacks[service], strategy)
	sort.SliceStable(strategies, func(i, j int) bool {
		return strategies[i].Priority < strategies[j].Priority
	})
	d.fallbacks[service] = strategies

	d.logger.Log(context.Background(), log.LevelInfo, "registered fallback",
		log.String("service", service),
		log.String("fallback", strategy.Name),
		log.String("level", strategy.Level.String()),
		log.Int("priority", strategy.Priority),
	)

	return nil
}

// Execute runs the primary operation for a service. On success the service
// recovers toward the full level; on failure the level may drop and the
// registered fallbacks are tried in ascending priority order. When no
// fallback succeeds the primary error is re-raised wrapped in
// ErrFallbackExhausted.
func (d *Degrader) Execute(ctx context.Context, service string, primary Operation) (any, error) {
	d.ensureService(service)

	data, err := primary(ctx)
	if err == nil {
		d.recordSuccess(ctx, service)

		return data, nil
	}

	d.recordFailure(ctx, service, err)

	return d.runFallbacks(ctx, service, err)
}

// Level returns the current process-wide service level.
func (d *Degrader) Level() Level {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.level
}

// ServiceHealth returns a copy of one service's health record.
func (d *Degrader) ServiceHealth(service string) (ServiceHealth, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	health, ok := d.services[service]
	if !ok {
		return ServiceHealth{}, false
	}

	return *health, true
}

// Snapshot returns a copy of the degrader state.
func (d *Degrader) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()

	services := make(map[string]ServiceHealth, len(d.services))
	for name, health := range d.services {
		services[name] = *health
	}

	return Snapshot{Level: d.level, Services: services}
}

// ResetService clears one service's counters and marks it healthy.
func (d *Degrader) ResetService(service string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	health, ok := d.services[service]
	if !ok {
		return
	}

	health.Healthy = true
	health.FailureCount = 0
	health.SuccessCount = 0
	health.FallbackActive = false
	health.LastCheck = time.Now()

	d.logger.Log(context.Background(), log.LevelInfo, "service health reset",
		log.String("service", service))
}

// Start launches the stale-health sweeper.
func (d *Degrader) Start() {
	d.wg.Add(1)

	go d.sweepLoop()

	d.logger.Log(context.Background(), log.LevelInfo, "degradation sweeper started",
		log.Duration("interval", d.config.SweepInterval),
		log.Duration("window", d.config.MonitoringWindow),
	)
}

// Stop gracefully stops the sweeper. Safe to call more than once; a no-op
// when Start was never called.
func (d *Degrader) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopChan)
	})
	d.wg.Wait()
}

func (d *Degrader) sweepLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			d.sweepStale(time.Now())
		case <-d.stopChan:
			return
		}
	}
}

// sweepStale resets counters for services whose last outcome is older than
// the monitoring window, so a long-gone outage cannot pin a degraded level.
func (d *Degrader) sweepStale(now time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for name, health := range d.services {
		if now.Sub(health.LastCheck) <= d.config.MonitoringWindow {
			continue
		}

		if health.FailureCount == 0 && health.SuccessCount == 0 {
			continue
		}

		health.FailureCount = 0
		health.SuccessCount = 0
		health.Healthy = true

		d.logger.Log(context.Background(), log.LevelDebug, "swept stale health counters",
			log.String("service", name))
	}
}

func (d *Degrader) ensureService(service string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.services[service]; ok {
		return
	}

	d.services[service] = &ServiceHealth{
		Healthy:      true,
		CurrentLevel: d.level,
		LastCheck:    time.Now(),
	}
}

func (d *Degrader) recordSuccess(ctx context.Context, service string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	health := d.services[service]
	health.SuccessCount++
	health.LastCheck = time.Now()

	if health.SuccessCount < d.config.RecoveryThreshold {
		return
	}

	wasClean := health.FailureCount == 0
	health.FailureCount = 0
	health.Healthy = true

	if wasClean && d.level < LevelFull {
		d.level = d.level.next()
		health.SuccessCount = 0
		health.FallbackActive = false

		d.logger.Log(ctx, log.LevelInfo, "service level raised",
			log.String("service", service),
			log.String("level", d.level.String()),
		)
	} else if wasClean {
		health.SuccessCount = 0
	}

	health.CurrentLevel = d.level
}

func (d *Degrader) recordFailure(ctx context.Context, service string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	health := d.services[service]
	health.FailureCount++
	health.SuccessCount = 0
	health.LastCheck = time.Now()

	if health.FailureCount < d.config.DegradationThreshold {
		return
	}

	health.Healthy = false

	newLevel := d.bestSupportedLevel(service)
	if newLevel != d.level {
		d.logger.Log(ctx, log.LevelWarn, "service level lowered",
			log.String("service", service),
			log.String("from", d.level.String()),
			log.String("to", newLevel.String()),
			log.Int("failures", health.FailureCount),
			log.Err(err),
		)

		d.level = newLevel
	}

	health.CurrentLevel = d.level
}

// bestSupportedLevel returns the highest level not above the current one for
// which the service has at least one registered fallback, or emergency when
// it has none. Callers must hold d.mu.
func (d *Degrader) bestSupportedLevel(service string) Level {
	best := LevelEmergency

	for _, strategy := range d.fallbacks[service] {
		if strategy.Level <= d.level && strategy.Level > best {
			best = strategy.Level
		}
	}

	return best
}

func (d *Degrader) runFallbacks(ctx context.Context, service string, primaryErr error) (any, error) {
	d.mu.Lock()
	strategies := make([]Strategy, len(d.fallbacks[service]))
	copy(strategies, d.fallbacks[service])
	currentLevel := d.level
	d.mu.Unlock()

	for _, strategy := range strategies {
		if strategy.Available != nil && !strategy.Available(ctx) {
			d.logger.Log(ctx, log.LevelDebug, "fallback unavailable",
				log.String("service", service), log.String("fallback", strategy.Name))

			continue
		}

		if strategy.Level > currentLevel {
			d.logger.Log(ctx, log.LevelDebug, "fallback above current level",
				log.String("service", service),
				log.String("fallback", strategy.Name),
				log.String("level", strategy.Level.String()),
			)

			continue
		}

		data, err := strategy.Run(ctx)
		if err != nil {
			d.logger.Log(ctx, log.LevelWarn, "fallback failed",
				log.String("service", service),
				log.String("fallback", strategy.Name),
				log.Err(err),
			)

			continue
		}

		d.mu.Lock()
		d.services[service].FallbackActive = true
		d.mu.Unlock()

		d.logger.Log(ctx, log.LevelInfo, "fallback succeeded",
			log.String("service", service), log.String("fallback", strategy.Name))

		return data, nil
	}

	return nil, fmt.Errorf("%w for service %q: %w", ErrFallbackExhausted, service, primaryErr)
}
