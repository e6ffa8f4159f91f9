package consistency

import (
	"context"
	"fmt"
	"sync"

	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/internal/nilcheck"
	"github.com/huangherry2007/cipherpay-sdk-sub000/resilience/log"
)

// Checker validates data against registered rules with budgeted auto-repair.
type Checker struct {
	config         Config
	rules          []Rule
	repairAttempts map[string]int
	tallies        Tallies
	mu             sync.Mutex
	logger         log.Logger
}

// NewChecker creates a checker with no rules registered.
func NewChecker(config Config, logger log.Logger) *Checker {
	return &Checker{
		config:         config.normalize(),
		repairAttempts: make(map[string]int),
		logger:         log.OrNop(logger),
	}
}

// RegisterRule adds a rule. Rules run in registration order.
func (c *Checker) RegisterRule(rule Rule) error {
	if rule.Name == "" {
		return fmt.Errorf("rule name is required")
	}

	if nilcheck.Interface(rule.Validate) {
		return fmt.Errorf("rule %q has no Validate function", rule.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.rules {
		if existing.Name == rule.Name {
			return fmt.Errorf("rule %q already registered", rule.Name)
		}
	}

	c.rules = append(c.rules, rule)

	c.logger.Log(context.Background(), log.LevelInfo, "registered consistency rule",
		log.String("rule", rule.Name),
		log.String("severity", string(rule.Severity)),
		log.Bool("auto_repair", rule.AutoRepair),
	)

	return nil
}

// RuleNames returns the registered rule names in registration order.
func (c *Checker) RuleNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, len(c.rules))
	for i, rule := range c.rules {
		names[i] = rule.Name
	}

	return names
}

// ValidateData runs every registered rule against data.
func (c *Checker) ValidateData(ctx context.Context, data any) *Report {
	c.mu.Lock()
	rules := make([]Rule, len(c.rules))
	copy(rules, c.rules)
	c.mu.Unlock()

	return c.ValidateRules(ctx, data, rules)
}

// ValidateRules runs the given rules against data, sharing the checker's
// per-rule repair budgets. Repaired values flow into subsequent rules and
// are surfaced via Report.Data.
func (c *Checker) ValidateRules(ctx context.Context, data any, rules []Rule) *Report {
	report := &Report{Status: StatusHealthy, Data: data}

	c.mu.Lock()
	c.tallies.Validations++
	c.mu.Unlock()

	current := data

	for _, rule := range rules {
		check, repaired := c.runRule(ctx, rule, current)
		if check.Repaired {
			current = repaired
		}

		report.Checks = append(report.Checks, check)
		report.Totals.Checks++

		if check.Passed {
			report.Totals.Passed++

			if check.Repaired {
				report.Totals.Repaired++
			}

			continue
		}

		report.Totals.Failed++

		if check.Severity == SeverityCritical {
			report.Totals.Critical++
		}
	}

	if report.Totals.Critical > 0 {
		report.Status = StatusCritical
	} else if report.Totals.Failed > 0 {
		report.Status = StatusDegraded
	}

	report.Data = current

	return report
}

// runRule validates data against one rule, attempting a budgeted auto-repair
// on failure. It returns the check outcome and, when repaired, the value to
// carry forward.
func (c *Checker) runRule(ctx context.Context, rule Rule, data any) (Check, any) {
	check := Check{Rule: rule.Name, Severity: rule.Severity}

	c.mu.Lock()
	c.tallies.RulesRun++
	c.mu.Unlock()

	err := rule.Validate(ctx, data)
	if err == nil {
		check.Passed = true

		return check, nil
	}

	check.Message = err.Error()

	c.mu.Lock()
	c.tallies.Failures++
	attempts := c.repairAttempts[rule.Name]
	budgetLeft := attempts < c.config.MaxRepairAttempts
	c.mu.Unlock()

	if !rule.AutoRepair || rule.Repair == nil || !budgetLeft {
		if rule.AutoRepair && rule.Repair != nil {
			c.logger.Log(ctx, log.LevelWarn, "repair budget exhausted, failure stands",
				log.String("rule", rule.Name))
		}

		return check, nil
	}

	var snapshot any

	snapshotter, restorable := data.(Snapshotter)
	if c.config.BackupBeforeRepair && restorable {
		snapshot = snapshotter.Snapshot()
	}

	repaired, repairErr := rule.Repair(ctx, data)
	if repairErr != nil {
		c.logger.Log(ctx, log.LevelWarn, "repair failed",
			log.String("rule", rule.Name), log.Err(repairErr))

		if restorable && snapshot != nil {
			snapshotter.Restore(snapshot)
		}

		return check, nil
	}

	if revalidateErr := rule.Validate(ctx, repaired); revalidateErr != nil {
		c.logger.Log(ctx, log.LevelWarn, "repaired value still failing, restoring",
			log.String("rule", rule.Name), log.Err(revalidateErr))

		if restorable && snapshot != nil {
			snapshotter.Restore(snapshot)
		}

		return check, nil
	}

	c.mu.Lock()
	c.repairAttempts[rule.Name]++
	c.tallies.Repairs++
	c.mu.Unlock()

	c.logger.Log(ctx, log.LevelInfo, "rule auto-repaired",
		log.String("rule", rule.Name))

	check.Passed = true
	check.Repaired = true

	return check, repaired
}

// RepairData runs one registered rule's repair manually. Manual repairs do
// not consume the automatic per-rule budget. The repaired value is returned
// after passing re-validation.
func (c *Checker) RepairData(ctx context.Context, ruleName string, data any) (any, error) {
	c.mu.Lock()

	var rule *Rule

	for i := range c.rules {
		if c.rules[i].Name == ruleName {
			rule = &c.rules[i]

			break
		}
	}
	c.mu.Unlock()

	if rule == nil {
		return nil, fmt.Errorf("rule %q is not registered", ruleName)
	}

	if rule.Repair == nil {
		return nil, fmt.Errorf("rule %q has no repair function", ruleName)
	}

	repaired, err := rule.Repair(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("repair %q: %w", ruleName, err)
	}

	if err := rule.Validate(ctx, repaired); err != nil {
		return nil, fmt.Errorf("repair %q did not converge: %w", ruleName, err)
	}

	return repaired, nil
}

// RepairAttempts returns how much of the automatic budget a rule has used.
func (c *Checker) RepairAttempts(ruleName string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.repairAttempts[ruleName]
}

// Tallies returns aggregate checker activity.
func (c *Checker) Tallies() Tallies {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.tallies
}
