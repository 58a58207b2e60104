// Package stages holds the pipeline stage executors. Executors read a state
// snapshot and return a StageResult; they never write the state themselves.
package stages

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

// Clock returns the current time. Executors take it as a dependency so tests
// can pin dates used by rules and validation.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

// ContentKey is the object-storage key of the decoded text of a document.
func ContentKey(documentID string) string {
	return fmt.Sprintf("content/%s.txt", documentID)
}

// ArchiveKey is the object-storage key of the final state archive.
func ArchiveKey(state *domain.DocumentState) string {
	return fmt.Sprintf("audit/%s/%s.json", state.DocumentID, state.WorkflowID)
}

func loadContent(ctx context.Context, storage ports.ObjectStorage, state *domain.DocumentState) (string, error) {
	if state.RawContent == nil || state.RawContent.Key == "" {
		return "", domain.WrapError(domain.ErrFatal, "load content", errors.New("document has no decoded content"))
	}
	rc, err := storage.Open(ctx, state.RawContent.Key)
	if err != nil {
		return "", fmt.Errorf("open decoded content: %w", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read decoded content: %w", err)
	}
	return string(raw), nil
}
