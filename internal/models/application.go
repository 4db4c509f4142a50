// Package models defines the data structures for the rental application engine.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ApplicationStatus represents the review status of a stored application.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "pending"
	ApplicationStatusApproved ApplicationStatus = "approved"
	ApplicationStatusRejected ApplicationStatus = "rejected"
)

// IsValid checks if the application status is valid.
func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

// DocumentStatus represents the review status of one stored document.
type DocumentStatus string

const (
	DocumentStatusPending  DocumentStatus = "pending"
	DocumentStatusVerified DocumentStatus = "verified"
	DocumentStatusRejected DocumentStatus = "rejected"
)

// IsValid checks if the document status is valid.
func (s DocumentStatus) IsValid() bool {
	switch s {
	case DocumentStatusPending, DocumentStatusVerified, DocumentStatusRejected:
		return true
	}
	return false
}

// ApplicantInfo is the contact information typed by the applicant on the summary form.
type ApplicantInfo struct {
	PropertyID string `json:"property_id"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Message    string `json:"message,omitempty"`
}

// AccountChoice says whether a user account is provisioned before submission.
type AccountChoice struct {
	CreateAccount bool   `json:"create_account"`
	Password      string `json:"password,omitempty"`
}

// DocumentStatusEntry is the stored review state of one document of an application.
type DocumentStatusEntry struct {
	Status        DocumentStatus `json:"status"`
	VerifiedAt    *time.Time     `json:"verifiedAt,omitempty"`
	Confidence    float64        `json:"confidence"`
	ExtractedData ExtractedData  `json:"extractedData"`
	FileURL       *string        `json:"fileUrl"`
	Comment       string         `json:"comment,omitempty"`
}

// DocumentStatusMap is the document_status column of an application, keyed by document key.
type DocumentStatusMap map[string]DocumentStatusEntry

// UnmarshalJSON decodes each entry's extractedData using the type implied by its key.
func (m *DocumentStatusMap) UnmarshalJSON(data []byte) error {
	var wire map[string]struct {
		Status        DocumentStatus  `json:"status"`
		VerifiedAt    *time.Time      `json:"verifiedAt,omitempty"`
		Confidence    float64         `json:"confidence"`
		ExtractedData json.RawMessage `json:"extractedData"`
		FileURL       *string         `json:"fileUrl"`
		Comment       string          `json:"comment,omitempty"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	out := make(DocumentStatusMap, len(wire))
	for key, entry := range wire {
		extracted, err := DecodeExtractedData(DocumentTypeFromKey(key), entry.ExtractedData)
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
		out[key] = DocumentStatusEntry{
			Status:        entry.Status,
			VerifiedAt:    entry.VerifiedAt,
			Confidence:    entry.Confidence,
			ExtractedData: extracted,
			FileURL:       entry.FileURL,
			Comment:       entry.Comment,
		}
	}
	*m = out
	return nil
}

// ApplicationRecord is the durable shape of a submitted rental application.
type ApplicationRecord struct {
	ID             string            `json:"id,omitempty"`
	PropertyID     string            `json:"property_id"`
	UserID         *string           `json:"user_id"`
	FirstName      string            `json:"first_name"`
	LastName       string            `json:"last_name"`
	Email          string            `json:"email"`
	Phone          string            `json:"phone"`
	Message        string            `json:"message,omitempty"`
	Status         ApplicationStatus `json:"status"`
	DocumentStatus DocumentStatusMap `json:"document_status"`
	CreatedAt      time.Time         `json:"created_at"`
}

// PropertySummary is the subset of a listing used in notification emails.
type PropertySummary struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Price    float64 `json:"price"`
	Location string  `json:"location"`
	Type     string  `json:"type"`
}

// Notification template types.
const (
	TemplateApplicationSubmitted = "application_submitted"
	TemplateDocumentRejection    = "document_rejection"
)

// Notification is one templated email to send about an application.
type Notification struct {
	ApplicationID string
	Template      string
	Recipient     string
	Variables     map[string]string
}
