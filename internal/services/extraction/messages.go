package extraction

import (
	"math"
	"strconv"
	"strings"

	"rental-application-engine/internal/models"
)

// LowConfidenceThreshold is the confidence below which a manual check is advised.
const LowConfidenceThreshold = 0.8

var billTypeLabels = map[string]string{
	"electricity":    "Facture d'électricité",
	"water":          "Facture d'eau",
	"internet":       "Facture internet",
	"rent":           "Quittance de loyer",
	"home_insurance": "Attestation d'assurance habitation",
}

// ValidationMessage renders the applicant-facing summary of one analysis result.
func ValidationMessage(result models.DocumentAnalysisResult) string {
	name := result.DocumentType.Title()
	if addr, ok := result.ExtractedData.(*models.ProofOfAddressData); ok && addr != nil {
		if label, ok := billTypeLabels[addr.BillType]; ok {
			name = label
		}
	}

	details := messageDetails(result.ExtractedData)

	switch {
	case !result.IsValid:
		return "⛔️ Document non valide\n" + strings.Join(result.PotentialIssues, "\n") + details
	case result.Confidence < LowConfidenceThreshold:
		return "⚠️ Vérification manuelle nécessaire\n" + name + details
	default:
		return "✅ Document valide\n" + name + details
	}
}

func messageDetails(data models.ExtractedData) string {
	var b strings.Builder
	line := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			b.WriteString("\n• " + label + " : " + value)
		}
	}
	amount := func(label string, n models.Number) {
		if n != 0 {
			line(label, FormatFrenchNumber(float64(n))+" €")
		}
	}

	switch d := data.(type) {
	case *models.IdentityData:
		b.WriteString("\n\nInformations principales :")
		line("Nom complet", d.FullName())
		line("Date de naissance", d.DateOfBirth)
		line("Nationalité", d.Nationality)
		line("N° de document", d.DocumentNumber)
	case *models.PayslipData:
		b.WriteString("\n\nInformations principales :")
		line("Salarié", d.EmployeeName)
		line("Entreprise", d.CompanyName)
		line("Fonction", d.JobTitle)
		line("Statut", d.EmployeeStatus)
		line("Coefficient", string(d.Coefficient))
		line("Date d'ancienneté", d.SeniorityDate)
		amount("Salaire net", d.NetSalary)
		line("Type de contrat", d.ContractType)
		line("Période", d.PayPeriod)
	case *models.ProofOfAddressData:
		b.WriteString("\n\nInformations principales :")
		if d.BillType != "" {
			label, ok := billTypeLabels[d.BillType]
			if !ok {
				label = "Autre"
			}
			line("Type de document", label)
		}
		line("Fournisseur", d.ProviderName)
		line("Date", d.Date)
		amount("Montant", d.Amount)
		line("Adresse", d.Address)
	case *models.TaxNoticeData:
		b.WriteString("\n\nInformations principales :")
		amount("Revenu fiscal de référence", d.ReferenceIncome)
		line("Année d'imposition", string(d.TaxYear))
		if d.NumberOfParts != 0 {
			line("Nombre de parts", FormatFrenchNumber(float64(d.NumberOfParts)))
		}
		line("Adresse fiscale", d.TaxAddress)
	}
	return b.String()
}

// FormatFrenchNumber formats n the fr-FR way: narrow no-break space thousands
// separator, comma decimal mark, at most three decimals.
func FormatFrenchNumber(n float64) string {
	neg := n < 0
	n = math.Abs(n)
	s := strconv.FormatFloat(math.Round(n*1000)/1000, 'f', -1, 64)

	intPart, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString("\u202f")
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteString("," + frac)
	}
	return b.String()
}
