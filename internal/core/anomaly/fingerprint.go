package anomaly

import (
	"github.com/kirillkom/docflow/internal/core/domain"
)

// Fingerprint identifies the document content for duplicate detection. The
// decoded-text digest is used when ingestion recorded one; otherwise the
// typed data stands in for it.
func Fingerprint(state *domain.DocumentState) string {
	if state.RawContent != nil && state.RawContent.Digest != "" {
		return state.DocumentType + ":" + state.RawContent.Digest
	}
	data := state.Data().Clone()
	for _, key := range []string{domain.FieldMetadata, domain.FieldSummary, domain.FieldKeyPoints} {
		delete(data, key)
	}
	return state.DocumentType + ":" + domain.Digest(data)
}
