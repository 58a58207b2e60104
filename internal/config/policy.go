package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/docflow/internal/core/anomaly"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/rules"
	"github.com/kirillkom/docflow/internal/core/stages"
	"github.com/kirillkom/docflow/internal/core/workflow"
)

// Policy is the business configuration of the workflow, loaded from YAML.
// Zero values fall back to the built-in defaults.
type Policy struct {
	ReviewThreshold float64                 `yaml:"review_threshold"`
	ReviewActions   []string                `yaml:"review_actions"`
	ReviewSeverity  domain.Severity         `yaml:"review_severity"`
	Validation      stages.ValidationLimits `yaml:"validation"`
	Anomaly         anomaly.Config          `yaml:"anomaly"`
	ApprovedVendors []string                `yaml:"approved_vendors"`
	Rules           []domain.Rule           `yaml:"rules"`
}

func DefaultPolicy() Policy {
	wf := workflow.DefaultPolicy()
	return Policy{
		ReviewThreshold: wf.ConfidenceThreshold,
		ReviewActions:   append([]string(nil), wf.ReviewActions...),
		ReviewSeverity:  wf.ReviewSeverity,
		Anomaly:         anomaly.DefaultConfig(),
		ApprovedVendors: append([]string(nil), rules.DefaultApprovedVendors...),
	}
}

// LoadPolicy reads path over the defaults. An empty path yields the defaults.
func LoadPolicy(path string) (Policy, error) {
	policy := DefaultPolicy()
	if path == "" {
		return policy, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParsePolicy(raw)
}

func ParsePolicy(raw []byte) (Policy, error) {
	policy := DefaultPolicy()
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return Policy{}, domain.WrapError(domain.ErrInvalidInput, "parse policy", err)
	}
	if err := policy.Validate(); err != nil {
		return Policy{}, err
	}
	return policy, nil
}

func (p Policy) Validate() error {
	var errs []error
	if err := p.Workflow().Validate(); err != nil {
		errs = append(errs, err)
	}
	if p.Validation.MaxInvoiceAmount < 0 {
		errs = append(errs, fmt.Errorf("validation.max_invoice_amount must not be negative"))
	}
	for docType, fields := range p.Anomaly.Ranges {
		for field, r := range fields {
			if r.Max < r.Min {
				errs = append(errs, fmt.Errorf("anomaly range %s.%s has max below min", docType, field))
			}
		}
	}
	if len(p.Rules) > 0 {
		if err := rules.Validate(p.Rules); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return domain.WrapError(domain.ErrInvalidInput, "validate policy", errors.Join(errs...))
}

// WithThreshold overrides the review threshold when t is in (0,1].
func (p Policy) WithThreshold(t float64) Policy {
	if t > 0 && t <= 1 {
		p.ReviewThreshold = t
	}
	return p
}

func (p Policy) Workflow() workflow.Policy {
	return workflow.Policy{
		ConfidenceThreshold: p.ReviewThreshold,
		ReviewActions:       p.ReviewActions,
		ReviewSeverity:      p.ReviewSeverity,
	}
}

// RuleSet returns the configured rules, or the defaults built from the
// approved vendors and review threshold.
func (p Policy) RuleSet() []domain.Rule {
	if len(p.Rules) > 0 {
		return p.Rules
	}
	return rules.DefaultRules(p.ApprovedVendors, p.ReviewThreshold)
}
