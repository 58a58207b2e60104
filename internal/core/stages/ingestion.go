package stages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

type Ingestion struct {
	decoder ports.ContentDecoder
	storage ports.ObjectStorage
}

func NewIngestion(decoder ports.ContentDecoder, storage ports.ObjectStorage) *Ingestion {
	return &Ingestion{decoder: decoder, storage: storage}
}

func (s *Ingestion) Stage() domain.Stage { return domain.StageIngestion }

func (s *Ingestion) Execute(ctx context.Context, state *domain.DocumentState) (domain.StageResult, error) {
	src := state.Source
	fileType := src.FileType
	if fileType == "" {
		fileType = domain.FileTypeOf(src.Filename, src.MimeType)
	}
	if !slices.Contains(domain.SupportedFileTypes, fileType) {
		return domain.FatalResult(s.Stage(), fmt.Errorf("unsupported file type %q", fileType)), nil
	}

	decoded, err := s.decoder.Decode(ctx, domain.Upload{
		DocumentID: state.DocumentID,
		Filename:   src.Filename,
		MimeType:   src.MimeType,
		FileType:   fileType,
		StorageKey: src.StorageKey,
	})
	if err != nil {
		if ctx.Err() != nil {
			return domain.StageResult{}, err
		}
		return domain.FatalResult(s.Stage(), fmt.Errorf("decode %s: %w", fileType, err)), nil
	}

	text := strings.TrimSpace(decoded.Text)
	if text == "" {
		return domain.FatalResult(s.Stage(), errors.New("document contains no text content")), nil
	}

	key := ContentKey(state.DocumentID)
	if err := s.storage.Save(ctx, key, strings.NewReader(text)); err != nil {
		return domain.StageResult{}, fmt.Errorf("save decoded content: %w", err)
	}

	sum := sha256.Sum256([]byte(text))
	ref := &domain.ContentRef{
		Key:      key,
		FileType: fileType,
		Chars:    utf8.RuneCountInString(text),
		Pages:    decoded.Pages,
		Digest:   hex.EncodeToString(sum[:]),
	}
	result := domain.StageResult{
		Stage:      s.Stage(),
		Signal:     domain.SignalOK,
		RawContent: ref,
		Detail:     fmt.Sprintf("decoded %d characters from %s", ref.Chars, fileType),
	}
	return result.WithConfidence(1), nil
}
