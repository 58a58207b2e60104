package domain

// DocumentTypes is the closed set of classification labels, with the
// description handed to analysis backends.
var DocumentTypes = []DocumentType{
	{Name: "invoice", Description: "Commercial invoice for goods or services"},
	{Name: "contract", Description: "Legal agreement between parties"},
	{Name: "resume", Description: "Professional resume or CV"},
	{Name: "financial_statement", Description: "Financial report or statement"},
	{Name: "legal_document", Description: "Legal document or court filing"},
	{Name: "medical_record", Description: "Medical document or health record"},
	{Name: "research_paper", Description: "Academic or research paper"},
	{Name: "technical_manual", Description: "Technical documentation or manual"},
	{Name: "email", Description: "Email correspondence"},
	{Name: "report", Description: "Business or analytical report"},
	{Name: "other", Description: "Document that doesn't fit standard categories"},
}

type DocumentType struct {
	Name        string
	Description string
}

func IsKnownDocumentType(name string) bool {
	for _, t := range DocumentTypes {
		if t.Name == name {
			return true
		}
	}
	return false
}
