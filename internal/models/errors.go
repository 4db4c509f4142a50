// Package models defines the data structures for the rental application engine.
package models

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Common errors
var (
	ErrNoFiles             = errors.New("no files provided")
	ErrFileTooLarge        = errors.New("file too large")
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrUnknownStep         = errors.New("unknown document step")
	ErrStepIncomplete      = errors.New("current step is not complete")
	ErrInvalidStepIndex    = errors.New("step index out of range")
	ErrStepLocked          = errors.New("step cannot be reached before the previous steps are complete")
	ErrNoPreviousStep      = errors.New("already at the first step")
	ErrNoNextStep          = errors.New("already at the last step")
	ErrNotLastStep         = errors.New("submission is only possible from the last step")
	ErrWizardSubmitted     = errors.New("application already submitted")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrInvalidPhone        = errors.New("invalid phone number")
	ErrMissingContact      = errors.New("email and phone are required")
	ErrMissingPassword     = errors.New("password is required to create an account")
	ErrAccountExists       = errors.New("an account already exists for this email")
	ErrApplicationNotFound = errors.New("application not found")
	ErrPropertyNotFound    = errors.New("property not found")
)

// FieldError reports a validation failure on one input field.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	// French numbers: +33, 0033 or 0, then 9 digits grouped by pairs with optional separators.
	phonePattern = regexp.MustCompile(`^(?:(?:\+|00)33|0)\s*[1-9](?:[\s.-]*\d{2}){4}$`)
)

// IsValidEmail reports whether email has a standard address shape.
func IsValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}

// IsValidPhone reports whether phone is a French phone number.
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// ValidateApplicantInfo validates the contact fields of an application.
func ValidateApplicantInfo(info ApplicantInfo) error {
	email := strings.TrimSpace(info.Email)
	phone := strings.TrimSpace(info.Phone)

	if email == "" {
		return &FieldError{Field: "email", Err: ErrMissingContact}
	}
	if phone == "" {
		return &FieldError{Field: "phone", Err: ErrMissingContact}
	}
	if !IsValidEmail(email) {
		return &FieldError{Field: "email", Err: ErrInvalidEmail}
	}
	if !IsValidPhone(phone) {
		return &FieldError{Field: "phone", Err: ErrInvalidPhone}
	}
	return nil
}

// ValidateAccountChoice checks that a password accompanies an account request.
func ValidateAccountChoice(choice AccountChoice) error {
	if choice.CreateAccount && strings.TrimSpace(choice.Password) == "" {
		return &FieldError{Field: "password", Err: ErrMissingPassword}
	}
	return nil
}
