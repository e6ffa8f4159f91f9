package consistency

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// NumericRange builds an auto-repairing rule that requires a numeric value
// within [min, max] and clamps out-of-range values on repair. The value may
// be any integer or float kind, a decimal, or a decimal string.
func NumericRange(name string, min, max float64) Rule {
	lo := decimal.NewFromFloat(min)
	hi := decimal.NewFromFloat(max)

	return Rule{
		Name:       name,
		Severity:   SeverityWarning,
		AutoRepair: true,
		Validate: func(_ context.Context, data any) error {
			d, ok := toDecimal(data)
			if !ok {
				return fmt.Errorf("%s: value %v is not numeric", name, data)
			}

			if d.LessThan(lo) || d.GreaterThan(hi) {
				return fmt.Errorf("%s: value %s outside [%s, %s]", name, d, lo, hi)
			}

			return nil
		},
		Repair: func(_ context.Context, data any) (any, error) {
			d, ok := toDecimal(data)
			if !ok {
				return nil, fmt.Errorf("%s: cannot repair non-numeric value %v", name, data)
			}

			clamped := decimal.Min(decimal.Max(d, lo), hi)

			return fromDecimal(clamped, data), nil
		},
	}
}

// RequiredFields builds a critical rule that requires every listed field to
// be present and non-nil in a map payload. Missing fields are not
// repairable.
func RequiredFields(name string, fields ...string) Rule {
	return Rule{
		Name:     name,
		Severity: SeverityCritical,
		Validate: func(_ context.Context, data any) error {
			payload, ok := data.(map[string]any)
			if !ok {
				return fmt.Errorf("%s: expected map payload, got %T", name, data)
			}

			for _, field := range fields {
				if value, present := payload[field]; !present || value == nil {
					return fmt.Errorf("%s: missing required field %q", name, field)
				}
			}

			return nil
		},
	}
}

// NonNegativeAmount builds a critical auto-repairing rule that requires the
// named map field to be a non-negative amount; repair clamps it to zero.
func NonNegativeAmount(name, field string) Rule {
	return Rule{
		Name:       name,
		Severity:   SeverityCritical,
		AutoRepair: true,
		Validate: func(_ context.Context, data any) error {
			payload, ok := data.(map[string]any)
			if !ok {
				return fmt.Errorf("%s: expected map payload, got %T", name, data)
			}

			amount, ok := toDecimal(payload[field])
			if !ok {
				return fmt.Errorf("%s: field %q is not numeric", name, field)
			}

			if amount.IsNegative() {
				return fmt.Errorf("%s: field %q is negative (%s)", name, field, amount)
			}

			return nil
		},
		Repair: func(_ context.Context, data any) (any, error) {
			payload, ok := data.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%s: expected map payload, got %T", name, data)
			}

			amount, ok := toDecimal(payload[field])
			if !ok {
				return nil, fmt.Errorf("%s: field %q is not numeric", name, field)
			}

			if amount.IsNegative() {
				payload[field] = fromDecimal(decimal.Zero, payload[field])
			}

			return payload, nil
		},
	}
}

// PositiveAmount builds a critical rule that requires the named map field to
// be strictly positive. There is no sensible repair for a zero or negative
// amount, so the rule only validates.
func PositiveAmount(name, field string) Rule {
	return Rule{
		Name:     name,
		Severity: SeverityCritical,
		Validate: func(_ context.Context, data any) error {
			payload, ok := data.(map[string]any)
			if !ok {
				return fmt.Errorf("%s: expected map payload, got %T", name, data)
			}

			amount, ok := toDecimal(payload[field])
			if !ok {
				return fmt.Errorf("%s: field %q is not numeric", name, field)
			}

			if !amount.IsPositive() {
				return fmt.Errorf("%s: field %q must be positive (%s)", name, field, amount)
			}

			return nil
		},
	}
}

// toDecimal coerces the numeric kinds accepted by the builtin rules.
func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int64:
		return decimal.NewFromInt(v), true
	case uint32:
		return decimal.NewFromInt(int64(v)), true
	case uint64:
		return decimal.NewFromUint64(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case float64:
		return decimal.NewFromFloat(v), true
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return decimal.Decimal{}, false
		}

		return d, true
	default:
		return decimal.Decimal{}, false
	}
}

// fromDecimal converts a decimal back to the kind of the original value so
// repairs preserve the caller's representation.
func fromDecimal(d decimal.Decimal, like any) any {
	switch like.(type) {
	case decimal.Decimal:
		return d
	case int:
		return int(d.IntPart())
	case int32:
		return int32(d.IntPart())
	case int64:
		return d.IntPart()
	case uint32:
		return uint32(d.IntPart()) // #nosec G115 -- repaired values are clamped into range
	case uint64:
		return uint64(d.IntPart()) // #nosec G115 -- repaired values are clamped into range
	case float32:
		return float32(d.InexactFloat64())
	case float64:
		return d.InexactFloat64()
	case string:
		return d.String()
	default:
		return d
	}
}
