package decoder

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// decodePDF validates the file with pdfcpu, which also yields the page
// count, and extracts the text layer with ledongthuc/pdf.
func decodePDF(ctx context.Context, raw []byte, _ domain.Upload) (domain.Decoded, error) {
	pages, err := api.PageCount(bytes.NewReader(raw), nil)
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("read pdf structure: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return domain.Decoded{}, err
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("open pdf: %w", err)
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("extract pdf text: %w", err)
	}
	text, err := io.ReadAll(plain)
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("read pdf text: %w", err)
	}
	return domain.Decoded{Text: strings.TrimSpace(string(text)), Pages: pages}, nil
}
