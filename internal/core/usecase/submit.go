package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type SubmitDocumentUseCase struct {
	store   ports.StateStore
	storage ports.ObjectStorage
	queue   ports.WorkQueue
	now     func() time.Time
}

func NewSubmitDocumentUseCase(
	store ports.StateStore,
	storage ports.ObjectStorage,
	queue ports.WorkQueue,
) *SubmitDocumentUseCase {
	return &SubmitDocumentUseCase{
		store:   store,
		storage: storage,
		queue:   queue,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the source document, creates its pending state and hands it
// to the driving loop.
func (uc *SubmitDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.DocumentState, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("filename is required"))
	}

	id := uuid.NewString()
	storageKey := fmt.Sprintf("uploads/%s_%s", id, sanitizeFilename(filename))
	counter := &countingReader{r: body}
	if err := uc.storage.Save(ctx, storageKey, counter); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	state := domain.NewDocumentState(id, domain.SourceInfo{
		Filename:   filename,
		MimeType:   mimeType,
		FileType:   domain.FileTypeOf(filename, mimeType),
		SizeBytes:  counter.n,
		StorageKey: storageKey,
	}, uc.now())

	if err := uc.store.Create(ctx, state); err != nil {
		return nil, fmt.Errorf("create document state: %w", err)
	}
	if err := uc.queue.Enqueue(ctx, state.DocumentID); err != nil {
		return nil, fmt.Errorf("enqueue document: %w", err)
	}
	return state, nil
}

// SubmitText accepts raw text as a txt upload.
func (uc *SubmitDocumentUseCase) SubmitText(ctx context.Context, title, content string) (*domain.DocumentState, error) {
	if strings.TrimSpace(content) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit text", errors.New("content is required"))
	}
	name := strings.TrimSpace(title)
	if name == "" {
		name = "document"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".txt") {
		name += ".txt"
	}
	return uc.Upload(ctx, name, "text/plain", strings.NewReader(content))
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." {
		return "document.bin"
	}
	return base
}
