package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNumber_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		raw      string
		expected Number
		wantErr  bool
	}{
		{`2100.5`, 2100.5, false},
		{`"2100.50"`, 2100.5, false},
		{`"2 345,50"`, 2345.5, false},
		{`"1 234,00 €"`, 1234, false},
		{`""`, 0, false},
		{`null`, 0, false},
		{`"beaucoup"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			var n Number
			err := json.Unmarshal([]byte(tt.raw), &n)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, n)
		})
	}
}

func TestText_UnmarshalJSON(t *testing.T) {
	var payslip PayslipData
	require.NoError(t, json.Unmarshal([]byte(`{"coefficient":250}`), &payslip))
	assert.Equal(t, Text("250"), payslip.Coefficient)

	var notice TaxNoticeData
	require.NoError(t, json.Unmarshal([]byte(`{"tax_year":"2023"}`), &notice))
	assert.Equal(t, Text("2023"), notice.TaxYear)
}

func TestDecodeExtractedData(t *testing.T) {
	data, err := DecodeExtractedData(DocumentTypeIdentity, json.RawMessage(`{"surname":"Dupont","given_names":"Jean"}`))
	require.NoError(t, err)
	identity, ok := data.(*IdentityData)
	require.True(t, ok)
	assert.Equal(t, "Dupont Jean", identity.FullName())
	assert.Equal(t, "Dupont", identity.MatchName())

	data, err = DecodeExtractedData(DocumentTypeProofOfAddress, nil)
	require.NoError(t, err)
	assert.Equal(t, &ProofOfAddressData{}, data)

	data, err = DecodeExtractedData(DocumentTypeUnknown, json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, RawData{"a": float64(1)}, data)
	assert.Equal(t, DocumentTypeUnknown, data.Kind())

	_, err = DecodeExtractedData(DocumentTypePayslip, json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestIdentityData_MatchName(t *testing.T) {
	assert.Equal(t, "Jean", (&IdentityData{GivenNames: " Jean "}).MatchName())
	assert.Empty(t, (&IdentityData{}).FullName())
}
