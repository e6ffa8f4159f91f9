//go:build unit

package consistency

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passRule(name string) Rule {
	return Rule{
		Name:     name,
		Severity: SeverityInfo,
		Validate: func(context.Context, any) error { return nil },
	}
}

func failRule(name string, severity Severity) Rule {
	return Rule{
		Name:     name,
		Severity: severity,
		Validate: func(context.Context, any) error { return errors.New(name + " failed") },
	}
}

func TestValidateDataHealthy(t *testing.T) {
	t.Parallel()

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(passRule("a")))
	require.NoError(t, checker.RegisterRule(passRule("b")))

	report := checker.ValidateData(context.Background(), map[string]any{})

	assert.Equal(t, StatusHealthy, report.Status)
	assert.Len(t, report.Checks, 2)
	assert.Equal(t, 2, report.Totals.Passed)
	assert.Zero(t, report.Totals.Failed)
}

func TestValidateDataDegradedAndCritical(t *testing.T) {
	t.Parallel()

	t.Run("warning failure degrades", func(t *testing.T) {
		t.Parallel()

		checker := NewChecker(DefaultConfig(), nil)
		require.NoError(t, checker.RegisterRule(failRule("soft", SeverityWarning)))

		report := checker.ValidateData(context.Background(), nil)
		assert.Equal(t, StatusDegraded, report.Status)
		assert.Equal(t, 1, report.Totals.Failed)
		assert.Zero(t, report.Totals.Critical)
	})

	t.Run("critical failure dominates", func(t *testing.T) {
		t.Parallel()

		checker := NewChecker(DefaultConfig(), nil)
		require.NoError(t, checker.RegisterRule(failRule("soft", SeverityWarning)))
		require.NoError(t, checker.RegisterRule(failRule("hard", SeverityCritical)))

		report := checker.ValidateData(context.Background(), nil)
		assert.Equal(t, StatusCritical, report.Status)
		assert.Equal(t, 2, report.Totals.Failed)
		assert.Equal(t, 1, report.Totals.Critical)
	})
}

func TestAutoRepairSuccess(t *testing.T) {
	t.Parallel()

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(NumericRange("balance-range", 0, 100)))

	report := checker.ValidateData(context.Background(), 150)

	require.Len(t, report.Checks, 1)
	assert.True(t, report.Checks[0].Passed)
	assert.True(t, report.Checks[0].Repaired)
	assert.Equal(t, StatusHealthy, report.Status)
	assert.Equal(t, 100, report.Data)
	assert.Equal(t, 1, checker.RepairAttempts("balance-range"))
}

func TestValidateIdempotentOnRepairedData(t *testing.T) {
	t.Parallel()

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(NumericRange("range", 0, 100)))

	first := checker.ValidateData(context.Background(), 150)
	require.Equal(t, StatusHealthy, first.Status)

	// Re-running on the repaired value passes without consuming more budget.
	second := checker.ValidateData(context.Background(), first.Data)
	assert.Equal(t, StatusHealthy, second.Status)
	assert.True(t, second.Checks[0].Passed)
	assert.False(t, second.Checks[0].Repaired)
	assert.Equal(t, 1, checker.RepairAttempts("range"))
}

func TestRepairBudgetExhaustion(t *testing.T) {
	t.Parallel()

	checker := NewChecker(Config{MaxRepairAttempts: 2}, nil)
	require.NoError(t, checker.RegisterRule(NumericRange("range", 0, 100)))

	ctx := context.Background()

	for range 2 {
		report := checker.ValidateData(ctx, 150)
		require.Equal(t, StatusHealthy, report.Status)
	}

	require.Equal(t, 2, checker.RepairAttempts("range"))

	// Budget exhausted: the failure now stands.
	report := checker.ValidateData(ctx, 150)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.False(t, report.Checks[0].Passed)
	assert.Equal(t, 150, report.Data, "data must not be mutated once the budget is gone")
}

func TestRepairNotAttemptedWithoutOptIn(t *testing.T) {
	t.Parallel()

	repairCalled := false
	rule := Rule{
		Name:     "no-auto",
		Severity: SeverityWarning,
		Validate: func(context.Context, any) error { return errors.New("bad") },
		Repair: func(_ context.Context, data any) (any, error) {
			repairCalled = true
			return data, nil
		},
	}

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(rule))

	report := checker.ValidateData(context.Background(), nil)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.False(t, repairCalled)
}

type ledger struct {
	Balance int
}

func (l *ledger) Snapshot() any { return l.Balance }

func (l *ledger) Restore(snapshot any) { l.Balance = snapshot.(int) }

func TestFailedRepairRestoresSnapshot(t *testing.T) {
	t.Parallel()

	rule := Rule{
		Name:       "ledger-balance",
		Severity:   SeverityCritical,
		AutoRepair: true,
		Validate: func(_ context.Context, data any) error {
			if data.(*ledger).Balance < 0 {
				return errors.New("negative balance")
			}

			return nil
		},
		Repair: func(_ context.Context, data any) (any, error) {
			// A bad repair that makes things worse instead of fixing them.
			l := data.(*ledger)
			l.Balance = -999

			return l, nil
		},
	}

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(rule))

	subject := &ledger{Balance: -5}
	report := checker.ValidateData(context.Background(), subject)

	assert.Equal(t, StatusCritical, report.Status)
	assert.Equal(t, -5, subject.Balance, "failed repair must restore the snapshot")
	assert.Zero(t, checker.RepairAttempts("ledger-balance"))
}

func TestRepairErrorKeepsFailure(t *testing.T) {
	t.Parallel()

	rule := Rule{
		Name:       "broken-repair",
		Severity:   SeverityWarning,
		AutoRepair: true,
		Validate:   func(context.Context, any) error { return errors.New("bad") },
		Repair: func(context.Context, any) (any, error) {
			return nil, errors.New("repair exploded")
		},
	}

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(rule))

	report := checker.ValidateData(context.Background(), nil)
	assert.Equal(t, StatusDegraded, report.Status)
	assert.False(t, report.Checks[0].Passed)
}

func TestRepairDataManual(t *testing.T) {
	t.Parallel()

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(NumericRange("range", 0, 100)))

	repaired, err := checker.RepairData(context.Background(), "range", 250)
	require.NoError(t, err)
	assert.Equal(t, 100, repaired)
	assert.Zero(t, checker.RepairAttempts("range"), "manual repairs are not budgeted")

	_, err = checker.RepairData(context.Background(), "unknown", 1)
	require.Error(t, err)

	require.NoError(t, checker.RegisterRule(failRule("no-repair", SeverityInfo)))
	_, err = checker.RepairData(context.Background(), "no-repair", 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no repair function")
}

func TestRegisterRuleValidation(t *testing.T) {
	t.Parallel()

	checker := NewChecker(DefaultConfig(), nil)

	require.Error(t, checker.RegisterRule(Rule{}))
	require.Error(t, checker.RegisterRule(Rule{Name: "no-validate"}))

	require.NoError(t, checker.RegisterRule(passRule("dup")))
	err := checker.RegisterRule(passRule("dup"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	assert.Equal(t, []string{"dup"}, checker.RuleNames())
}

func TestTallies(t *testing.T) {
	t.Parallel()

	checker := NewChecker(DefaultConfig(), nil)
	require.NoError(t, checker.RegisterRule(passRule("ok")))
	require.NoError(t, checker.RegisterRule(NumericRange("range", 0, 100)))

	ctx := context.Background()

	checker.ValidateData(ctx, 150) // one failure, one repair
	checker.ValidateData(ctx, 50)  // clean pass

	tallies := checker.Tallies()
	assert.Equal(t, int64(2), tallies.Validations)
	assert.Equal(t, int64(4), tallies.RulesRun)
	assert.Equal(t, int64(1), tallies.Failures)
	assert.Equal(t, int64(1), tallies.Repairs)
}
