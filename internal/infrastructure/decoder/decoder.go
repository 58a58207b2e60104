// Package decoder turns stored uploads into plain text.
package decoder

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/docflow/internal/core/domain"
	"github.com/kirillkom/docflow/internal/core/ports"
)

const defaultMaxBytes = 64 << 20

// Format decodes the raw bytes of one file type.
type Format interface {
	Decode(ctx context.Context, raw []byte, upload domain.Upload) (domain.Decoded, error)
}

type FormatFunc func(ctx context.Context, raw []byte, upload domain.Upload) (domain.Decoded, error)

func (f FormatFunc) Decode(ctx context.Context, raw []byte, upload domain.Upload) (domain.Decoded, error) {
	return f(ctx, raw, upload)
}

// Registry dispatches uploads to the Format registered for their file type.
type Registry struct {
	storage  ports.ObjectStorage
	formats  map[string]Format
	maxBytes int64
}

func NewRegistry(storage ports.ObjectStorage, maxBytes int64) *Registry {
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	return &Registry{storage: storage, formats: map[string]Format{}, maxBytes: maxBytes}
}

// NewDefault registers every supported file type.
func NewDefault(storage ports.ObjectStorage, maxBytes int64) *Registry {
	r := NewRegistry(storage, maxBytes)
	text := FormatFunc(decodeText)
	for _, fileType := range []string{"txt", "md", "csv", "json"} {
		r.Register(fileType, text)
	}
	r.Register("html", FormatFunc(decodeHTML))
	r.Register("pdf", FormatFunc(decodePDF))
	r.Register("xlsx", FormatFunc(decodeXLSX))
	return r
}

func (r *Registry) Register(fileType string, format Format) {
	r.formats[fileType] = format
}

func (r *Registry) Decode(ctx context.Context, upload domain.Upload) (domain.Decoded, error) {
	format, ok := r.formats[upload.FileType]
	if !ok {
		return domain.Decoded{}, domain.WrapError(domain.ErrInvalidInput, "decode upload", fmt.Errorf("unsupported file type %q", upload.FileType))
	}

	reader, err := r.storage.Open(ctx, upload.StorageKey)
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, r.maxBytes+1))
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("read source document: %w", err)
	}
	if int64(len(raw)) > r.maxBytes {
		return domain.Decoded{}, domain.WrapError(domain.ErrInvalidInput, "decode upload", fmt.Errorf("document exceeds %d bytes", r.maxBytes))
	}
	if err := ctx.Err(); err != nil {
		return domain.Decoded{}, err
	}
	return format.Decode(ctx, raw, upload)
}
