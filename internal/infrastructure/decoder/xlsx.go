package decoder

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docflow/internal/core/domain"
)

// decodeXLSX renders every sheet as "## <sheet>" followed by tab-separated rows.
func decodeXLSX(ctx context.Context, raw []byte, _ domain.Upload) (domain.Decoded, error) {
	book, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return domain.Decoded{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	var b strings.Builder
	sheets := book.GetSheetList()
	for _, sheet := range sheets {
		if err := ctx.Err(); err != nil {
			return domain.Decoded{}, err
		}
		rows, err := book.GetRows(sheet)
		if err != nil {
			return domain.Decoded{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		b.WriteString("## ")
		b.WriteString(sheet)
		b.WriteByte('\n')
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t ")
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return domain.Decoded{Text: strings.TrimSpace(b.String()), Pages: len(sheets)}, nil
}
