// Package models defines the data structures for the rental application engine.
package models

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DocumentType identifies a category of applicant document.
type DocumentType string

const (
	DocumentTypeIdentity           DocumentType = "identity"
	DocumentTypePayslip            DocumentType = "payslip"
	DocumentTypeEmploymentContract DocumentType = "employment_contract"
	DocumentTypeTaxNotice          DocumentType = "tax_notice"
	DocumentTypeProofOfAddress     DocumentType = "proof_of_address"
	DocumentTypeUnknown            DocumentType = "unknown"
)

// KnownDocumentTypes returns every document type the extraction service may report.
func KnownDocumentTypes() []DocumentType {
	return []DocumentType{
		DocumentTypeIdentity,
		DocumentTypePayslip,
		DocumentTypeEmploymentContract,
		DocumentTypeTaxNotice,
		DocumentTypeProofOfAddress,
	}
}

// ParseDocumentType maps a raw type string to a DocumentType, falling back to unknown.
func ParseDocumentType(raw string) DocumentType {
	normalized := DocumentType(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range KnownDocumentTypes() {
		if normalized == known {
			return known
		}
	}
	return DocumentTypeUnknown
}

var documentTypeLabels = map[DocumentType]string{
	DocumentTypeIdentity:           "pièce d'identité",
	DocumentTypePayslip:            "bulletin de salaire",
	DocumentTypeEmploymentContract: "contrat de travail",
	DocumentTypeTaxNotice:          "avis d'imposition",
	DocumentTypeProofOfAddress:     "justificatif de domicile",
	DocumentTypeUnknown:            "document inconnu",
}

// Label returns the lower-case human readable name used in issue messages.
func (d DocumentType) Label() string {
	if label, ok := documentTypeLabels[d]; ok {
		return label
	}
	return string(d)
}

// Title returns the capitalised human readable name used in headings.
func (d DocumentType) Title() string {
	label := d.Label()
	if label == "" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// AnalysisStatus is the lifecycle tag of a single extraction.
type AnalysisStatus string

const (
	AnalysisStatusPending   AnalysisStatus = "pending"
	AnalysisStatusAnalyzing AnalysisStatus = "analyzing"
	AnalysisStatusCompleted AnalysisStatus = "completed"
	AnalysisStatusError     AnalysisStatus = "error"
)

// DocumentAnalysisResult is the outcome of extracting one uploaded file.
type DocumentAnalysisResult struct {
	DocumentType    DocumentType   `json:"documentType"`
	IsValid         bool           `json:"isValid"`
	Confidence      float64        `json:"confidence"`
	ExtractedData   ExtractedData  `json:"extractedData"`
	PotentialIssues []string       `json:"potentialIssues"`
	FileURL         string         `json:"fileUrl,omitempty"`
	FileName        string         `json:"fileName,omitempty"`
	UploadedAt      *time.Time     `json:"uploadedAt,omitempty"`
	Status          AnalysisStatus `json:"status,omitempty"`
	Error           string         `json:"error,omitempty"`
}

// Failed reports whether extraction itself failed, as opposed to a rule rejection.
func (r DocumentAnalysisResult) Failed() bool {
	return r.Status == AnalysisStatusError
}

// PayPeriod returns the payslip period, or "" for any other document.
func (r DocumentAnalysisResult) PayPeriod() string {
	if payslip, ok := r.ExtractedData.(*PayslipData); ok && payslip != nil {
		return strings.TrimSpace(payslip.PayPeriod)
	}
	return ""
}

// AddIssue appends an issue string.
func (r *DocumentAnalysisResult) AddIssue(issue string) {
	r.PotentialIssues = append(r.PotentialIssues, issue)
}

// UnmarshalJSON decodes extractedData into the variant matching documentType.
func (r *DocumentAnalysisResult) UnmarshalJSON(data []byte) error {
	type alias DocumentAnalysisResult
	var wire struct {
		alias
		ExtractedData json.RawMessage `json:"extractedData"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	extracted, err := DecodeExtractedData(wire.DocumentType, wire.ExtractedData)
	if err != nil {
		return fmt.Errorf("failed to decode extracted data: %w", err)
	}

	*r = DocumentAnalysisResult(wire.alias)
	r.ExtractedData = extracted
	return nil
}

// ApplicationBundle maps a document key to its analysis result.
// Multi-file steps use "<stepId>_<n>" keys, single-file steps use the bare step id.
type ApplicationBundle map[string]DocumentAnalysisResult

// DocumentKey builds the bundle key for the index-th (0-based) document of a multi-file step.
func DocumentKey(stepID DocumentType, index int) string {
	return string(stepID) + "_" + strconv.Itoa(index+1)
}

// DocumentTypeFromKey recovers the step id from a bundle key.
func DocumentTypeFromKey(key string) DocumentType {
	if i := strings.LastIndex(key, "_"); i > 0 {
		if _, err := strconv.Atoi(key[i+1:]); err == nil {
			return DocumentType(key[:i])
		}
	}
	return DocumentType(key)
}

// Keys returns the bundle keys in lexical order.
func (b ApplicationBundle) Keys() []string {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ValidPayslips returns the valid payslip entries sorted by pay period, most recent first.
func (b ApplicationBundle) ValidPayslips() []DocumentAnalysisResult {
	var payslips []DocumentAnalysisResult
	for key, doc := range b {
		if DocumentTypeFromKey(key) != DocumentTypePayslip || !doc.IsValid {
			continue
		}
		payslips = append(payslips, doc)
	}
	sort.SliceStable(payslips, func(i, j int) bool {
		return periodSortKey(payslips[i].PayPeriod()) > periodSortKey(payslips[j].PayPeriod())
	})
	return payslips
}

// Identity returns the identity document data if present.
func (b ApplicationBundle) Identity() (*IdentityData, bool) {
	doc, ok := b[string(DocumentTypeIdentity)]
	if !ok {
		return nil, false
	}
	identity, ok := doc.ExtractedData.(*IdentityData)
	return identity, ok && identity != nil
}

// periodSortKey turns "MM/YYYY" into "YYYYMM" so periods compare chronologically.
func periodSortKey(period string) string {
	if len(period) != 7 || period[2] != '/' {
		return period
	}
	return period[3:] + period[:2]
}
