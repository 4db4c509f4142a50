// Package models defines the data structures for the rental application engine.
package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ExtractedData is the per-type field set pulled out of a document.
// The concrete type is selected by the document type.
type ExtractedData interface {
	Kind() DocumentType
}

// IdentityData holds the fields of an identity document.
type IdentityData struct {
	Surname        string `json:"surname,omitempty"`
	GivenNames     string `json:"given_names,omitempty"`
	Nationality    string `json:"nationality,omitempty"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	DocumentNumber string `json:"document_number,omitempty"`
}

func (*IdentityData) Kind() DocumentType { return DocumentTypeIdentity }

// FullName joins surname and given names.
func (d *IdentityData) FullName() string {
	return strings.TrimSpace(strings.Join(nonEmpty(d.Surname, d.GivenNames), " "))
}

// MatchName is the name compared against other documents: the surname, or the
// given names when no surname was read.
func (d *IdentityData) MatchName() string {
	if s := strings.TrimSpace(d.Surname); s != "" {
		return s
	}
	return strings.TrimSpace(d.GivenNames)
}

// PayslipData holds the fields of a payslip.
type PayslipData struct {
	EmployeeName   string `json:"employee_name,omitempty"`
	CompanyName    string `json:"company_name,omitempty"`
	NetSalary      Number `json:"net_salary,omitempty"`
	PayPeriod      string `json:"pay_period,omitempty"`
	SeniorityDate  string `json:"seniority_date,omitempty"`
	Coefficient    Text   `json:"coefficient,omitempty"`
	JobTitle       string `json:"job_title,omitempty"`
	EmployeeStatus string `json:"employee_status,omitempty"`
	ContractType   string `json:"contract_type,omitempty"`
}

func (*PayslipData) Kind() DocumentType { return DocumentTypePayslip }

// EmploymentContractData holds the fields of an employment contract.
type EmploymentContractData struct {
	ContractType string `json:"contract_type,omitempty"`
	EmployeeName string `json:"employee_name,omitempty"`
	CompanyName  string `json:"company_name,omitempty"`
	StartDate    string `json:"start_date,omitempty"`
}

func (*EmploymentContractData) Kind() DocumentType { return DocumentTypeEmploymentContract }

// ProofOfAddressData holds the fields of a utility bill or rent receipt.
type ProofOfAddressData struct {
	ProviderName string `json:"provider_name,omitempty"`
	BillType     string `json:"bill_type,omitempty"`
	Date         string `json:"date,omitempty"`
	Amount       Number `json:"amount,omitempty"`
	Address      string `json:"address,omitempty"`
}

func (*ProofOfAddressData) Kind() DocumentType { return DocumentTypeProofOfAddress }

// TaxNoticeData holds the fields of a tax notice.
type TaxNoticeData struct {
	ReferenceIncome Number `json:"reference_income,omitempty"`
	TaxYear         Text   `json:"tax_year,omitempty"`
	NumberOfParts   Number `json:"number_of_parts,omitempty"`
	TaxAddress      string `json:"tax_address,omitempty"`
}

func (*TaxNoticeData) Kind() DocumentType { return DocumentTypeTaxNotice }

// RawData keeps the untyped fields of a document whose type is unknown.
type RawData map[string]any

func (RawData) Kind() DocumentType { return DocumentTypeUnknown }

// NewExtractedData returns an empty variant for the given type.
func NewExtractedData(t DocumentType) ExtractedData {
	switch t {
	case DocumentTypeIdentity:
		return &IdentityData{}
	case DocumentTypePayslip:
		return &PayslipData{}
	case DocumentTypeEmploymentContract:
		return &EmploymentContractData{}
	case DocumentTypeProofOfAddress:
		return &ProofOfAddressData{}
	case DocumentTypeTaxNotice:
		return &TaxNoticeData{}
	default:
		return RawData{}
	}
}

// DecodeExtractedData decodes raw JSON fields into the variant for t.
// Empty or null input yields an empty variant.
func DecodeExtractedData(t DocumentType, raw json.RawMessage) (ExtractedData, error) {
	data := NewExtractedData(t)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return data, nil
	}

	if rawData, ok := data.(RawData); ok {
		if err := json.Unmarshal(trimmed, &rawData); err != nil {
			return nil, err
		}
		return rawData, nil
	}

	if err := json.Unmarshal(trimmed, data); err != nil {
		return nil, err
	}
	return data, nil
}

// Number accepts a JSON number or a numeric string such as "2 345,50".
type Number float64

func (n *Number) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		s = strings.NewReplacer(" ", "", "\u00a0", "", "\u202f", "", "€", "").Replace(s)
		s = strings.ReplaceAll(s, ",", ".")
		if s == "" {
			*n = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*n = Number(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// Text accepts a JSON string or number and keeps it as a string.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	*t = Text(string(trimmed))
	return nil
}

func nonEmpty(values ...string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, strings.TrimSpace(v))
		}
	}
	return out
}
