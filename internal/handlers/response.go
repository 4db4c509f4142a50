package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/assembler"
	"rental-application-engine/internal/services/intake"
	"rental-application-engine/internal/utils"
)

// Response is the envelope of every API response.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		utils.GetLogger().Error("Failed to write response", zap.Error(err))
	}
}

func writeOK(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, Response{Success: true, Data: data})
}

// writeError maps err to a status code and an applicant-facing message. data,
// if set, carries partial results.
func writeError(w http.ResponseWriter, err error, data interface{}) {
	status, message := describeError(err)
	if status >= http.StatusInternalServerError {
		utils.GetLogger().Error("Request failed", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, Response{Success: false, Error: message, Data: data})
}

func describeError(err error) (int, string) {
	var preflight *intake.PreflightError
	var fileErr *intake.FileError
	var assemblyErr *assembler.AssemblyError
	var maxBytes *http.MaxBytesError

	switch {
	case errors.Is(err, ErrSessionNotFound):
		return http.StatusNotFound, "Session introuvable ou expirée"
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "Les fichiers envoyés sont trop volumineux"
	case errors.As(err, &preflight):
		switch {
		case errors.Is(err, models.ErrFileTooLarge):
			return http.StatusRequestEntityTooLarge, fmt.Sprintf("Le fichier %s est trop volumineux (max 5 Mo)", preflight.File)
		case errors.Is(err, models.ErrUnsupportedFileType):
			return http.StatusUnsupportedMediaType, fmt.Sprintf("Le fichier %s n'est pas au bon format (PDF, JPG ou PNG)", preflight.File)
		}
		return http.StatusBadRequest, "Fichier refusé : " + preflight.File
	case errors.Is(err, models.ErrNoFiles):
		return http.StatusBadRequest, "Veuillez sélectionner au moins un fichier"
	case errors.As(err, &fileErr):
		if fileErr.Stage == intake.StageUpload {
			return http.StatusBadGateway, fmt.Sprintf("Erreur lors de l'envoi du fichier %s", fileErr.File)
		}
		return http.StatusBadGateway, fmt.Sprintf("Erreur lors de l'analyse du document %s", fileErr.File)
	case errors.As(err, &assemblyErr):
		return assemblyStatus(assemblyErr), assembler.UserMessage(err)
	case errors.Is(err, models.ErrUnknownStep):
		return http.StatusNotFound, "Étape inconnue"
	case errors.Is(err, models.ErrDocumentNotFound):
		return http.StatusNotFound, "Document introuvable"
	case errors.Is(err, models.ErrApplicationNotFound):
		return http.StatusNotFound, "Dossier introuvable"
	case errors.Is(err, models.ErrInvalidStepIndex):
		return http.StatusBadRequest, "Étape invalide"
	case errors.Is(err, models.ErrStepIncomplete):
		return http.StatusConflict, "Veuillez compléter cette étape avant de continuer"
	case errors.Is(err, models.ErrStepLocked):
		return http.StatusConflict, "Veuillez compléter les étapes précédentes"
	case errors.Is(err, models.ErrNoPreviousStep):
		return http.StatusConflict, "Vous êtes déjà à la première étape"
	case errors.Is(err, models.ErrNoNextStep):
		return http.StatusConflict, "Vous êtes déjà à la dernière étape"
	case errors.Is(err, models.ErrNotLastStep):
		return http.StatusConflict, "Le dossier ne peut être envoyé qu'à la dernière étape"
	case errors.Is(err, models.ErrWizardSubmitted):
		return http.StatusConflict, "Votre dossier a déjà été envoyé"
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "Requête invalide"
	default:
		return http.StatusInternalServerError, "Une erreur est survenue"
	}
}

func assemblyStatus(err *assembler.AssemblyError) int {
	switch err.Stage {
	case assembler.StageValidation:
		return http.StatusUnprocessableEntity
	case assembler.StageContact:
		return http.StatusBadRequest
	case assembler.StageAccount:
		if errors.Is(err, models.ErrAccountExists) {
			return http.StatusConflict
		}
	case assembler.StageProperty:
		if errors.Is(err, models.ErrPropertyNotFound) {
			return http.StatusNotFound
		}
	}
	return http.StatusInternalServerError
}

var errBadRequest = errors.New("bad request")

func badRequest(err error) error {
	return fmt.Errorf("%w: %v", errBadRequest, err)
}
