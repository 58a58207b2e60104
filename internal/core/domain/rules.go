package domain

import (
	"fmt"
	"strings"
)

type ConditionOp string

const (
	OpGreaterThan    ConditionOp = "gt"
	OpGreaterOrEqual ConditionOp = "gte"
	OpLessThan       ConditionOp = "lt"
	OpLessOrEqual    ConditionOp = "lte"
	OpEqual          ConditionOp = "eq"
	OpNotEqual       ConditionOp = "ne"
	OpIn             ConditionOp = "in"
	OpNotIn          ConditionOp = "not_in"
	OpPresent        ConditionOp = "present"
	OpMissing        ConditionOp = "missing"
	OpMissingAny     ConditionOp = "missing_any"
	OpBeforeNow      ConditionOp = "before_now"
	OpWithinDays     ConditionOp = "within_days"
)

// Rule actions with routing meaning.
const (
	RuleActionFlagForReview            = "flag_for_review"
	RuleActionRequireApproval          = "require_approval"
	RuleActionRequireExecutiveApproval = "require_executive_approval"
)

// Condition is either a leaf comparison or an all/any composite.
type Condition struct {
	Field  string      `json:"field,omitempty" yaml:"field,omitempty"`
	Op     ConditionOp `json:"op,omitempty" yaml:"op,omitempty"`
	Value  any         `json:"value,omitempty" yaml:"value,omitempty"`
	Values []any       `json:"values,omitempty" yaml:"values,omitempty"`
	Fields []string    `json:"fields,omitempty" yaml:"fields,omitempty"`
	Days   int         `json:"days,omitempty" yaml:"days,omitempty"`

	All []Condition `json:"all,omitempty" yaml:"all,omitempty"`
	Any []Condition `json:"any,omitempty" yaml:"any,omitempty"`
}

func (c Condition) String() string {
	switch {
	case len(c.All) > 0:
		return joinConditions(c.All, " and ")
	case len(c.Any) > 0:
		return joinConditions(c.Any, " or ")
	}

	switch c.Op {
	case OpGreaterThan:
		return fmt.Sprintf("%s > %v", c.Field, c.Value)
	case OpGreaterOrEqual:
		return fmt.Sprintf("%s >= %v", c.Field, c.Value)
	case OpLessThan:
		return fmt.Sprintf("%s < %v", c.Field, c.Value)
	case OpLessOrEqual:
		return fmt.Sprintf("%s <= %v", c.Field, c.Value)
	case OpEqual:
		return fmt.Sprintf("%s == %v", c.Field, c.Value)
	case OpNotEqual:
		return fmt.Sprintf("%s != %v", c.Field, c.Value)
	case OpIn:
		return fmt.Sprintf("%s in %v", c.Field, c.Values)
	case OpNotIn:
		return fmt.Sprintf("%s not in %v", c.Field, c.Values)
	case OpPresent:
		return fmt.Sprintf("%s is present", c.Field)
	case OpMissing:
		return fmt.Sprintf("%s is missing", c.Field)
	case OpMissingAny:
		return fmt.Sprintf("any of [%s] is missing", strings.Join(c.Fields, ", "))
	case OpBeforeNow:
		return fmt.Sprintf("%s is in the past", c.Field)
	case OpWithinDays:
		return fmt.Sprintf("%s within %d days", c.Field, c.Days)
	default:
		return fmt.Sprintf("%s %s %v", c.Field, c.Op, c.Value)
	}
}

func joinConditions(conds []Condition, sep string) string {
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		s := c.String()
		if len(c.All)+len(c.Any) > 0 {
			s = "(" + s + ")"
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, sep)
}

// Rule is a declarative condition/action pair. Priority 1 is the most urgent.
type Rule struct {
	ID            string    `json:"id" yaml:"id"`
	Name          string    `json:"name" yaml:"name"`
	DocumentTypes []string  `json:"document_types,omitempty" yaml:"document_types,omitempty"`
	When          Condition `json:"when" yaml:"when"`
	Action        string    `json:"action" yaml:"action"`
	Priority      int       `json:"priority" yaml:"priority"`
	Disabled      bool      `json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

func (r Rule) AppliesTo(documentType string) bool {
	if len(r.DocumentTypes) == 0 {
		return true
	}
	for _, t := range r.DocumentTypes {
		if strings.EqualFold(t, documentType) {
			return true
		}
	}
	return false
}

// RuleOutcome records one triggered rule.
type RuleOutcome struct {
	RuleID    string `json:"rule_id"`
	Name      string `json:"name"`
	Condition string `json:"condition"`
	Action    string `json:"action"`
	Priority  int    `json:"priority"`
	Details   string `json:"details,omitempty"`
}
