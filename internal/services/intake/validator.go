package intake

import (
	"fmt"
	"strings"

	"rental-application-engine/internal/models"
)

// RequiredDocumentKeys lists the bundle keys a complete application must carry.
var RequiredDocumentKeys = []string{
	string(models.DocumentTypeIdentity),
	models.DocumentKey(models.DocumentTypePayslip, 0),
	models.DocumentKey(models.DocumentTypePayslip, 1),
	models.DocumentKey(models.DocumentTypePayslip, 2),
	string(models.DocumentTypeEmploymentContract),
	string(models.DocumentTypeProofOfAddress),
}

// Issue messages produced by ValidateSet.
const (
	issueMissingDocument = "Document manquant : %s"
	issueInvalidDocument = "Document invalide : %s"
	IssueNameMismatch    = "Le nom sur les documents ne correspond pas"
)

// ValidationResult is the outcome of a document set validation.
type ValidationResult struct {
	IsValid bool     `json:"isValid"`
	Issues  []string `json:"issues"`
}

// ValidateSet checks a flattened bundle for completeness, per-document validity
// and identity/payslip name consistency. Every rule runs and issues accumulate.
func ValidateSet(bundle models.ApplicationBundle) ValidationResult {
	issues := []string{}

	for _, key := range RequiredDocumentKeys {
		if _, ok := bundle[key]; !ok {
			issues = append(issues, fmt.Sprintf(issueMissingDocument, keyLabel(key)))
		}
	}

	for _, key := range bundle.Keys() {
		if !bundle[key].IsValid {
			issues = append(issues, fmt.Sprintf(issueInvalidDocument, keyLabel(key)))
		}
	}

	if !namesMatch(bundle) {
		issues = append(issues, IssueNameMismatch)
	}

	return ValidationResult{IsValid: len(issues) == 0, Issues: issues}
}

// namesMatch compares the identity name with the first payslip's employee name.
// Only that pair is checked. A missing side or an empty name passes.
func namesMatch(bundle models.ApplicationBundle) bool {
	identity, ok := bundle.Identity()
	if !ok {
		return true
	}
	first, ok := bundle[models.DocumentKey(models.DocumentTypePayslip, 0)]
	if !ok {
		return true
	}
	payslip, ok := first.ExtractedData.(*models.PayslipData)
	if !ok || payslip == nil {
		return true
	}

	want := strings.ToLower(identity.MatchName())
	got := strings.ToLower(strings.TrimSpace(payslip.EmployeeName))
	if want == "" || got == "" {
		return true
	}
	return strings.Contains(got, want)
}

// keyLabel names a bundle key for display: "bulletin de salaire 2" for payslip_2.
func keyLabel(key string) string {
	docType := models.DocumentTypeFromKey(key)
	if string(docType) == key {
		return docType.Label()
	}
	return docType.Label() + " " + strings.TrimPrefix(key, string(docType)+"_")
}
