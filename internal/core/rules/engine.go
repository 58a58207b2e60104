package rules

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// Engine evaluates a fixed rule set.
type Engine struct {
	rules []domain.Rule
}

func NewEngine(rules []domain.Rule) *Engine {
	return &Engine{rules: append([]domain.Rule(nil), rules...)}
}

func (e *Engine) Rules() []domain.Rule {
	return append([]domain.Rule(nil), e.rules...)
}

func (e *Engine) Evaluate(state *domain.DocumentState, now time.Time) []domain.RuleOutcome {
	return Evaluate(state, e.rules, now)
}

// Evaluate runs every applicable rule against state. Rules never see each
// other's outcomes; the result is ordered by priority then rule id.
func Evaluate(state *domain.DocumentState, rules []domain.Rule, now time.Time) []domain.RuleOutcome {
	outcomes := make([]domain.RuleOutcome, 0)
	for _, rule := range rules {
		if rule.Disabled || !rule.AppliesTo(state.DocumentType) {
			continue
		}
		matched, details := match(state, rule.When, now)
		if !matched {
			continue
		}
		outcomes = append(outcomes, domain.RuleOutcome{
			RuleID:    rule.ID,
			Name:      rule.Name,
			Condition: rule.When.String(),
			Action:    rule.Action,
			Priority:  rule.Priority,
			Details:   details,
		})
	}
	sort.SliceStable(outcomes, func(i, j int) bool {
		if outcomes[i].Priority != outcomes[j].Priority {
			return outcomes[i].Priority < outcomes[j].Priority
		}
		return outcomes[i].RuleID < outcomes[j].RuleID
	})
	return outcomes
}

func match(state *domain.DocumentState, c domain.Condition, now time.Time) (bool, string) {
	if len(c.All) > 0 {
		var details []string
		for _, sub := range c.All {
			ok, d := match(state, sub, now)
			if !ok {
				return false, ""
			}
			if d != "" {
				details = append(details, d)
			}
		}
		return true, strings.Join(details, "; ")
	}
	if len(c.Any) > 0 {
		for _, sub := range c.Any {
			if ok, d := match(state, sub, now); ok {
				return true, d
			}
		}
		return false, ""
	}
	return matchLeaf(state, c, now)
}

func matchLeaf(state *domain.DocumentState, c domain.Condition, now time.Time) (bool, string) {
	if c.Op == domain.OpMissingAny {
		var missing []string
		for _, field := range c.Fields {
			if v, ok := lookup(state, field); !ok || domain.IsEmptyValue(v) {
				missing = append(missing, field)
			}
		}
		if len(missing) == 0 {
			return false, ""
		}
		return true, "missing: " + strings.Join(missing, ", ")
	}

	value, present := lookup(state, c.Field)
	if present && domain.IsEmptyValue(value) {
		present = false
	}

	switch c.Op {
	case domain.OpPresent:
		return present, ""
	case domain.OpMissing:
		return !present, ""
	}
	if !present {
		return false, ""
	}
	detail := fmt.Sprintf("%s=%v", c.Field, value)

	switch c.Op {
	case domain.OpGreaterThan, domain.OpGreaterOrEqual, domain.OpLessThan, domain.OpLessOrEqual:
		left, lok := domain.ToFloat(value)
		right, rok := domain.ToFloat(c.Value)
		if !lok || !rok {
			return false, ""
		}
		return compareNumbers(c.Op, left, right), detail
	case domain.OpEqual:
		return equalValues(value, c.Value), detail
	case domain.OpNotEqual:
		return !equalValues(value, c.Value), detail
	case domain.OpIn:
		return containsValue(c.Values, value), detail
	case domain.OpNotIn:
		return !containsValue(c.Values, value), detail
	case domain.OpBeforeNow:
		t, ok := domain.ParseDate(value)
		if !ok {
			return false, ""
		}
		days := int(domain.StartOfDay(now).Sub(domain.StartOfDay(t)).Hours() / 24)
		return days > 0, fmt.Sprintf("%s is %d days in the past", c.Field, days)
	case domain.OpWithinDays:
		t, ok := domain.ParseDate(value)
		if !ok {
			return false, ""
		}
		days := int(domain.StartOfDay(t).Sub(domain.StartOfDay(now)).Hours() / 24)
		return days >= 0 && days <= c.Days, fmt.Sprintf("%s in %d days", c.Field, days)
	default:
		return false, ""
	}
}

// lookup resolves a rule field against the document data and state pseudo-fields.
func lookup(state *domain.DocumentState, field string) (any, bool) {
	switch {
	case field == "document_type":
		return state.DocumentType, state.DocumentType != ""
	case field == "classification_confidence":
		return state.ClassificationConfidence, true
	case strings.HasPrefix(field, "confidence."):
		v, ok := state.ConfidenceScores[domain.Stage(strings.TrimPrefix(field, "confidence."))]
		return v, ok
	}
	return state.Value(field)
}

func compareNumbers(op domain.ConditionOp, left, right float64) bool {
	switch op {
	case domain.OpGreaterThan:
		return left > right
	case domain.OpGreaterOrEqual:
		return left >= right
	case domain.OpLessThan:
		return left < right
	case domain.OpLessOrEqual:
		return left <= right
	default:
		return false
	}
}

func equalValues(a, b any) bool {
	if af, ok := domain.ToFloat(a); ok {
		if bf, ok := domain.ToFloat(b); ok {
			if _, isString := a.(string); !isString {
				return af == bf
			}
		}
	}
	return strings.EqualFold(strings.TrimSpace(fmt.Sprint(a)), strings.TrimSpace(fmt.Sprint(b)))
}

func containsValue(values []any, v any) bool {
	for _, candidate := range values {
		if equalValues(v, candidate) {
			return true
		}
	}
	return false
}
