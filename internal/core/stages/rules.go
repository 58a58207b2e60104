package stages

import (
	"context"
	"fmt"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/rules"
)

type RuleEvaluation struct {
	engine *rules.Engine
	now    Clock
}

func NewRuleEvaluation(engine *rules.Engine, clock Clock) *RuleEvaluation {
	return &RuleEvaluation{engine: engine, now: clockOrDefault(clock)}
}

func (s *RuleEvaluation) Stage() domain.Stage { return domain.StageRuleEvaluation }

func (s *RuleEvaluation) Execute(_ context.Context, state *domain.DocumentState) (domain.StageResult, error) {
	outcomes := s.engine.Evaluate(state, s.now())
	return domain.StageResult{
		Stage:          s.Stage(),
		Signal:         domain.SignalOK,
		TriggeredRules: outcomes,
		Detail:         fmt.Sprintf("%d rule(s) triggered", len(outcomes)),
	}, nil
}
