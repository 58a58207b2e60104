package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/docflow/internal/core/domain"
)

const (
	maxClassificationSnippet = 3000
	maxExtractionSnippet     = 4000

	extractionWindow     = 3500
	extractionOverlap    = 200
	maxExtractionWindows = 3
)

func buildClassificationPrompt(text string) string {
	var types strings.Builder
	for _, t := range domain.DocumentTypes {
		types.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}

	return `You are a document classifier.
Classify the document into exactly one of these types:
` + types.String() + `
Return strict JSON object with keys:
document_type (string, one of the types above), confidence (number from 0 to 1), reasoning (string).
No markdown, no extra keys.

Document:
` + truncate(text, maxClassificationSnippet)
}

func buildExtractionPrompt(text, documentType string) string {
	return fmt.Sprintf(`You extract structured data from a %s document.
Return strict JSON object with keys:
fields (object), metadata (object), confidence (number from 0 to 1).

fields must always contain these keys, with null when the document has no analog:
%s
Add every other field present in the document using snake_case names
(for example invoice_number, vendor_name, total_amount, due_date).
Dates use YYYY-MM-DD. Amounts are numbers without currency symbols.
Put anything that has no natural field name into metadata.
No markdown.

Document:
%s`, documentType, strings.Join(domain.UniversalFields, ", "), truncate(text, maxExtractionSnippet))
}

func truncate(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	cut := limit
	for cut > 0 && !utf8Start(text[cut]) {
		cut--
	}
	return text[:cut] + "... [truncated]"
}

func utf8Start(b byte) bool {
	return b&0xC0 != 0x80
}
