// Package checklist derives document checklists from request titles and
// tracks uploads against them.
package checklist

import (
	"strings"

	"github.com/filo-ai/portal/internal/model"
)

// AcceptedFiles is the advisory accept list handed to the file picker.
const AcceptedFiles = ".pdf,.doc,.docx,.xls,.xlsx,.jpg,.jpeg,.png,.gif"

var gstKeywords = []string{"gstr", "gst"}

var gstSlots = []model.DocumentRequirement{
	{
		ID:          "sales-register",
		Name:        "Sales Register",
		Description: "Should include all B2B and B2C invoices. Invoice date must fall between 01 Apr 2025 – 30 Apr 2025",
		Format:      "Excel or PDF",
		Required:    true,
	},
	{
		ID:          "purchase-register",
		Name:        "Purchase Register",
		Description: "Include GST details of vendors",
		Format:      "Excel or PDF",
		Required:    true,
	},
	{
		ID:          "expense-bills",
		Name:        "Expense Bills",
		Description: "Purchase invoices, rent, electricity, freight, etc. Clear and readable images or PDFs",
		Format:      "Images or PDFs",
		Required:    true,
	},
	{
		ID:          "bank-statement",
		Name:        "Bank Statement",
		Description: "April 2025 only. All pages required",
		Format:      "PDF preferred",
		Required:    true,
	},
	{
		ID:          "credit-debit-notes",
		Name:        "Credit/Debit Note",
		Description: "Credit or debit notes issued or received in April 2025",
		Format:      "PDF or Images",
		Required:    false,
	},
}

var genericSlots = []model.DocumentRequirement{
	{
		ID:       "document-1",
		Name:     "Document 1",
		Required: true,
	},
}

// IsGST reports whether title names a GST filing.
func IsGST(title string) bool {
	lower := strings.ToLower(title)
	for _, kw := range gstKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Derive returns the document slots required for a request title. Every call
// returns a fresh slice with nothing uploaded.
func Derive(title string) []model.DocumentRequirement {
	src := genericSlots
	if IsGST(title) {
		src = gstSlots
	}
	out := make([]model.DocumentRequirement, len(src))
	copy(out, src)
	return out
}
