package extraction

import (
	"strings"
)

const promptTemplate = `Analyze this document and provide a JSON response with the following structure:

{
  "document_type": "identity|payslip|employment_contract|tax_notice|proof_of_address",
  "validity_assessment": "Valid|Invalid",
  "extracted_information": {
    // For identity documents
    "surname": "string",
    "given_names": "string", // only the first given name
    "nationality": "string",
    "date_of_birth": "string",
    "document_number": "string",

    // For employment contracts
    "contract_type": "string",
    "employee_name": "string",
    "company_name": "string",
    "start_date": "string",

    // For payslips
    "employee_name": "string",
    "company_name": "string",
    "net_salary": number,
    "pay_period": "MM/YYYY",
    "seniority_date": "DD/MM/YYYY",
    "coefficient": "string",
    "job_title": "string",
    "employee_status": "cadre|non-cadre",

    // For proof of address
    "provider_name": "string",
    "bill_type": "electricity|water|internet|rent|home_insurance",
    "date": "string",
    "amount": number,
    "address": "string",

    // For tax notices
    "reference_income": number,
    "tax_year": "string",
    "number_of_parts": number,
    "tax_address": "string"
  },
  "potential_issues": ["string"]
}

Rules:
- Contract type must be one of: CDI, CDD, Interim
- Start date must be in DD/MM/YYYY format
- Payslip period must be in: {{periods}}
- Dates format: DD/MM/YYYY
- Numbers: use decimal points
- Currency: no symbols, just numbers`

// BuildPrompt returns the extraction prompt for the accepted payslip periods.
func BuildPrompt(validPeriods []string) string {
	return strings.Replace(promptTemplate, "{{periods}}", strings.Join(validPeriods, ", "), 1)
}
