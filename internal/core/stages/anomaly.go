package stages

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/kirillkom/docflow/internal/core/anomaly"
	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type AnomalyDetection struct {
	detector *anomaly.Detector
	history  ports.HistoryReader
}

// NewAnomalyDetection builds the anomaly stage. history may be nil, in which
// case checks run against an empty snapshot.
func NewAnomalyDetection(detector *anomaly.Detector, history ports.HistoryReader) *AnomalyDetection {
	return &AnomalyDetection{detector: detector, history: history}
}

func (s *AnomalyDetection) Stage() domain.Stage { return domain.StageAnomalyDetection }

func (s *AnomalyDetection) Execute(ctx context.Context, state *domain.DocumentState) (domain.StageResult, error) {
	signal := domain.SignalOK
	var errText string

	snapshot := domain.HistorySnapshot{DocumentType: state.DocumentType}
	if s.history != nil {
		got, err := s.history.Snapshot(ctx, historyQuery(state))
		if err != nil {
			if ctx.Err() != nil {
				return domain.StageResult{}, fmt.Errorf("load history snapshot: %w", err)
			}
			signal = domain.SignalDegraded
			errText = "history unavailable: " + err.Error()
		} else {
			snapshot = got
		}
	}

	found := s.detector.Detect(state, snapshot)
	return domain.StageResult{
		Stage:     s.Stage(),
		Signal:    signal,
		Anomalies: found,
		Error:     errText,
		Detail:    fmt.Sprintf("%d anomaly(ies) detected", len(found)),
	}.WithConfidence(math.Max(0.1, 1-0.1*float64(len(found)))), nil
}

func historyQuery(state *domain.DocumentState) domain.HistoryQuery {
	data := state.Data()
	var numeric []string
	for field, v := range data {
		switch v.(type) {
		case float64, float32, int, int64, int32:
			numeric = append(numeric, field)
		}
	}
	sort.Strings(numeric)
	return domain.HistoryQuery{
		DocumentType: state.DocumentType,
		Fields:       numeric,
		Fingerprint:  anomaly.Fingerprint(state),
		DocumentID:   state.DocumentID,
	}
}
