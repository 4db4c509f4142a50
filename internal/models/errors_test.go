package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidEmail(t *testing.T) {
	tests := []struct {
		email    string
		expected bool
	}{
		{"jean@example.com", true},
		{"jean.dupont+loc@mail.example.fr", true},
		{"jean@example", false},
		{"jean example@mail.com", false},
		{"@example.com", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidEmail(tt.email))
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		phone    string
		expected bool
	}{
		{"0612345678", true},
		{"06 12 34 56 78", true},
		{"06.12.34.56.78", true},
		{"+33612345678", true},
		{"+33 6 12 34 56 78", true},
		{"0033612345678", true},
		{"0012345678", false},
		{"061234567", false},
		{"+44 7911 123456", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsValidPhone(tt.phone))
		})
	}
}

func TestValidateApplicantInfo(t *testing.T) {
	tests := []struct {
		name    string
		info    ApplicantInfo
		field   string
		wantErr error
	}{
		{"valid", ApplicantInfo{Email: "jean@example.com", Phone: "0612345678"}, "", nil},
		{"missing email", ApplicantInfo{Phone: "0612345678"}, "email", ErrMissingContact},
		{"missing phone", ApplicantInfo{Email: "jean@example.com", Phone: "  "}, "phone", ErrMissingContact},
		{"bad email", ApplicantInfo{Email: "jean", Phone: "0612345678"}, "email", ErrInvalidEmail},
		{"bad phone", ApplicantInfo{Email: "jean@example.com", Phone: "12"}, "phone", ErrInvalidPhone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateApplicantInfo(tt.info)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			var fieldErr *FieldError
			if assert.True(t, errors.As(err, &fieldErr)) {
				assert.Equal(t, tt.field, fieldErr.Field)
			}
		})
	}
}

func TestValidateAccountChoice(t *testing.T) {
	assert.NoError(t, ValidateAccountChoice(AccountChoice{}))
	assert.NoError(t, ValidateAccountChoice(AccountChoice{CreateAccount: true, Password: "secret"}))
	assert.ErrorIs(t, ValidateAccountChoice(AccountChoice{CreateAccount: true, Password: " "}), ErrMissingPassword)
}
