// Package models defines the data structures for the rental application engine.
package models

// DocumentStep is one category of required document in the intake wizard.
type DocumentStep struct {
	ID                 DocumentType `json:"id"`
	Title              string       `json:"title"`
	Description        string       `json:"description"`
	HelpText           string       `json:"helpText"`
	AcceptedFormats    []string     `json:"acceptedFormats"`
	ValidationCriteria []string     `json:"validationCriteria"`
	MultipleFiles      bool         `json:"multipleFiles"`
	RequiredCount      int          `json:"requiredCount,omitempty"`
}

// Required returns how many valid documents complete the step.
func (s DocumentStep) Required() int {
	if !s.MultipleFiles || s.RequiredCount < 1 {
		return 1
	}
	return s.RequiredCount
}
