package domain

import "time"

// TransitionEvent is pushed to subscribers after every persisted transition.
// Delivery is best-effort; the state store stays authoritative.
type TransitionEvent struct {
	DocumentID string         `json:"document_id"`
	NewStatus  DocumentStatus `json:"new_status"`
	Stage      Stage          `json:"stage,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Reason     string         `json:"reason,omitempty"`
}

func NewTransitionEvent(state *DocumentState, now time.Time) TransitionEvent {
	event := TransitionEvent{
		DocumentID: state.DocumentID,
		NewStatus:  state.Status,
		Stage:      state.CurrentStage,
		Timestamp:  now.UTC(),
	}
	switch state.Status {
	case StatusFailed:
		event.Reason = state.FailureReason
	case StatusHumanReviewRequired:
		if state.HumanReview != nil {
			event.Reason = state.HumanReview.Reason
		}
	}
	return event
}
