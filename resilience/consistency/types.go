package consistency

import "context"

// Severity classifies how serious a failing rule is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Status is the aggregate outcome of one validation pass.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Rule is an immutable validation descriptor. Validate returns nil when data
// passes. Repair, when present and AutoRepair is set, produces a repaired
// value that is re-validated before being accepted.
type Rule struct {
	Name       string
	Severity   Severity
	AutoRepair bool
	Validate   func(ctx context.Context, data any) error
	Repair     func(ctx context.Context, data any) (any, error)
}

// Snapshotter is the clone/restore capability used around in-place repairs.
// Types that mutate under Repair should implement it so a failed repair can
// be rolled back without deep-serializing the value.
type Snapshotter interface {
	Snapshot() any
	Restore(snapshot any)
}

// Check is the per-rule outcome inside a Report.
type Check struct {
	Rule     string
	Severity Severity
	Passed   bool
	Repaired bool
	Message  string
}

// Totals counts outcomes for one validation pass.
type Totals struct {
	Checks   int
	Passed   int
	Failed   int
	Critical int
	Repaired int
}

// Report is the ephemeral aggregate returned by a validation pass. Data
// carries the possibly-repaired value.
type Report struct {
	Status Status
	Checks []Check
	Totals Totals
	Data   any
}

// Tallies aggregates checker activity across validation passes.
type Tallies struct {
	Validations int64
	RulesRun    int64
	Failures    int64
	Repairs     int64
}

// Config holds repair policy.
type Config struct {
	MaxRepairAttempts  int  // automatic repairs allowed per rule
	BackupBeforeRepair bool // snapshot Snapshotter data before repairing
}

// DefaultConfig provides balanced settings.
func DefaultConfig() Config {
	return Config{
		MaxRepairAttempts:  3,
		BackupBeforeRepair: true,
	}
}

// normalize fills zero values with the defaults.
func (c Config) normalize() Config {
	if c.MaxRepairAttempts <= 0 {
		c.MaxRepairAttempts = DefaultConfig().MaxRepairAttempts
	}

	return c
}
