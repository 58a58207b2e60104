package domain

import (
	"path/filepath"
	"strings"
)

// Upload is a stored source document awaiting decoding.
type Upload struct {
	DocumentID string
	Filename   string
	MimeType   string
	FileType   string
	StorageKey string
}

// Decoded is plain text produced from an upload.
type Decoded struct {
	Text  string
	Pages int
}

var SupportedFileTypes = []string{"txt", "md", "csv", "json", "html", "pdf", "xlsx"}

// FileTypeOf derives the file type from the filename extension, then the mime type.
func FileTypeOf(filename, mimeType string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	switch ext {
	case "htm":
		return "html"
	case "text", "log":
		return "txt"
	case "":
	default:
		return ext
	}

	mime := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	switch mime {
	case "application/pdf":
		return "pdf"
	case "text/html":
		return "html"
	case "text/csv":
		return "csv"
	case "application/json":
		return "json"
	case "text/markdown":
		return "md"
	case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return "xlsx"
	case "text/plain", "":
		return "txt"
	default:
		return "bin"
	}
}
