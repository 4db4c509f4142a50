// Package intake implements the guided document intake: the step catalog, the
// payslip validity window, the wizard state machine, the upload orchestrator
// and the final document set validation.
package intake

import (
	"rental-application-engine/internal/models"
)

// Accepted MIME types for uploaded documents.
const (
	MimePDF  = "application/pdf"
	MimeJPEG = "image/jpeg"
	MimeJPG  = "image/jpg"
	MimePNG  = "image/png"
)

var acceptedFormats = []string{".pdf", ".jpg", ".jpeg", ".png"}

// DefaultSteps returns the document steps of a rental application, in wizard order.
func DefaultSteps() []models.DocumentStep {
	return []models.DocumentStep{
		{
			ID:              models.DocumentTypeIdentity,
			Title:           "Pièce d'identité",
			Description:     "Carte d'identité, passeport ou titre de séjour en cours de validité",
			HelpText:        "Le document doit être lisible, en couleur et non expiré",
			AcceptedFormats: acceptedFormats,
			ValidationCriteria: []string{
				"Document en cours de validité",
				"Photo et informations lisibles",
				"Recto et verso pour la carte d'identité",
			},
		},
		{
			ID:              models.DocumentTypePayslip,
			Title:           "Bulletins de salaire",
			Description:     "Vos 3 derniers bulletins de salaire",
			HelpText:        "Les bulletins doivent être récents et consécutifs",
			AcceptedFormats: acceptedFormats,
			ValidationCriteria: []string{
				"3 derniers mois",
				"Nom de l'employeur visible",
				"Salaire net lisible",
			},
			MultipleFiles: true,
			RequiredCount: 3,
		},
		{
			ID:              models.DocumentTypeEmploymentContract,
			Title:           "Contrat de travail",
			Description:     "Contrat de travail ou attestation employeur",
			HelpText:        "Le contrat doit être signé par les deux parties",
			AcceptedFormats: acceptedFormats,
			ValidationCriteria: []string{
				"Type de contrat visible (CDI, CDD, Intérim)",
				"Date d'embauche",
				"Signatures présentes",
			},
		},
		{
			ID:              models.DocumentTypeProofOfAddress,
			Title:           "Justificatif de domicile",
			Description:     "Facture de moins de 3 mois (électricité, eau, internet) ou quittance de loyer",
			HelpText:        "Le document doit être à votre nom et dater de moins de 3 mois",
			AcceptedFormats: acceptedFormats,
			ValidationCriteria: []string{
				"Moins de 3 mois",
				"Adresse complète visible",
				"Nom du titulaire",
			},
		},
	}
}

// Catalog is the immutable, ordered list of steps of a wizard.
type Catalog struct {
	steps []models.DocumentStep
	index map[models.DocumentType]int
}

// NewCatalog builds a catalog from the given steps. Steps are copied.
func NewCatalog(steps []models.DocumentStep) *Catalog {
	c := &Catalog{
		steps: make([]models.DocumentStep, len(steps)),
		index: make(map[models.DocumentType]int, len(steps)),
	}
	copy(c.steps, steps)
	for i, step := range c.steps {
		c.index[step.ID] = i
	}
	return c
}

// DefaultCatalog returns a catalog over DefaultSteps.
func DefaultCatalog() *Catalog {
	return NewCatalog(DefaultSteps())
}

// Len returns the number of steps.
func (c *Catalog) Len() int {
	return len(c.steps)
}

// At returns the step at index i.
func (c *Catalog) At(i int) (models.DocumentStep, bool) {
	if i < 0 || i >= len(c.steps) {
		return models.DocumentStep{}, false
	}
	return c.steps[i], true
}

// Step returns the step with the given id.
func (c *Catalog) Step(id models.DocumentType) (models.DocumentStep, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.DocumentStep{}, false
	}
	return c.steps[i], true
}

// Index returns the position of the step with the given id, or -1.
func (c *Catalog) Index(id models.DocumentType) int {
	if i, ok := c.index[id]; ok {
		return i
	}
	return -1
}

// Steps returns a copy of all steps in order.
func (c *Catalog) Steps() []models.DocumentStep {
	out := make([]models.DocumentStep, len(c.steps))
	copy(out, c.steps)
	return out
}

// IsAcceptedContentType reports whether a MIME type may be uploaded.
func IsAcceptedContentType(contentType string) bool {
	switch contentType {
	case MimePDF, MimeJPEG, MimeJPG, MimePNG:
		return true
	}
	return false
}
