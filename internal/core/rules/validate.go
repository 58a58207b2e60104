package rules

import (
	"errors"
	"fmt"

	"github.com/kirillkom/docflow/internal/core/domain"
)

var knownOps = map[domain.ConditionOp]bool{
	domain.OpGreaterThan:    true,
	domain.OpGreaterOrEqual: true,
	domain.OpLessThan:       true,
	domain.OpLessOrEqual:    true,
	domain.OpEqual:          true,
	domain.OpNotEqual:       true,
	domain.OpIn:             true,
	domain.OpNotIn:          true,
	domain.OpPresent:        true,
	domain.OpMissing:        true,
	domain.OpMissingAny:     true,
	domain.OpBeforeNow:      true,
	domain.OpWithinDays:     true,
}

// Validate checks a rule set for structural mistakes and reports all of them.
func Validate(rules []domain.Rule) error {
	var errs []error
	seen := make(map[string]bool, len(rules))
	for i, rule := range rules {
		label := rule.ID
		if label == "" {
			label = fmt.Sprintf("#%d", i)
			errs = append(errs, fmt.Errorf("rule %s: id is required", label))
		} else if seen[rule.ID] {
			errs = append(errs, fmt.Errorf("rule %s: duplicate id", label))
		}
		seen[rule.ID] = true

		if rule.Action == "" {
			errs = append(errs, fmt.Errorf("rule %s: action is required", label))
		}
		if rule.Priority < 1 {
			errs = append(errs, fmt.Errorf("rule %s: priority must be >= 1", label))
		}
		for _, err := range validateCondition(rule.When) {
			errs = append(errs, fmt.Errorf("rule %s: %w", label, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrInvalidInput, "validate rules", errors.Join(errs...))
}

func validateCondition(c domain.Condition) []error {
	if len(c.All) > 0 && len(c.Any) > 0 {
		return []error{errors.New("condition cannot combine all and any")}
	}
	if len(c.All)+len(c.Any) > 0 {
		var errs []error
		for _, sub := range append(append([]domain.Condition{}, c.All...), c.Any...) {
			errs = append(errs, validateCondition(sub)...)
		}
		return errs
	}

	if !knownOps[c.Op] {
		return []error{fmt.Errorf("unknown op %q", c.Op)}
	}
	switch c.Op {
	case domain.OpMissingAny:
		if len(c.Fields) == 0 {
			return []error{errors.New("missing_any needs fields")}
		}
		return nil
	case domain.OpIn, domain.OpNotIn:
		if len(c.Values) == 0 {
			return []error{fmt.Errorf("%s needs values", c.Op)}
		}
	case domain.OpGreaterThan, domain.OpGreaterOrEqual, domain.OpLessThan, domain.OpLessOrEqual:
		if _, ok := domain.ToFloat(c.Value); !ok {
			return []error{fmt.Errorf("%s needs a numeric value", c.Op)}
		}
	case domain.OpWithinDays:
		if c.Days <= 0 {
			return []error{errors.New("within_days needs days > 0")}
		}
	}
	if c.Field == "" {
		return []error{fmt.Errorf("%s needs a field", c.Op)}
	}
	return nil
}
