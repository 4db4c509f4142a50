package intake

import (
	"fmt"
	"math"

	"rental-application-engine/internal/models"
)

// Wizard tracks one applicant's progress through the document steps.
// It is owned by a single session and is not safe for concurrent use.
type Wizard struct {
	catalog   *Catalog
	current   int
	documents map[models.DocumentType][]models.DocumentAnalysisResult
	submitted bool
	bundle    models.ApplicationBundle
}

// StepState is the view of one step in a snapshot.
type StepState struct {
	Step      models.DocumentStep             `json:"step"`
	Complete  bool                            `json:"complete"`
	Documents []models.DocumentAnalysisResult `json:"documents"`
}

// Snapshot is a serializable copy of the wizard state.
type Snapshot struct {
	CurrentStepIndex int                      `json:"currentStepIndex"`
	CurrentStep      models.DocumentType      `json:"currentStep"`
	Progress         int                      `json:"progress"`
	CanProceed       bool                     `json:"canProceed"`
	Submitted        bool                     `json:"submitted"`
	Steps            []StepState              `json:"steps"`
	Bundle           models.ApplicationBundle `json:"bundle,omitempty"`
}

// NewWizard creates a wizard positioned on the first step of catalog.
func NewWizard(catalog *Catalog) *Wizard {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Wizard{
		catalog:   catalog,
		documents: make(map[models.DocumentType][]models.DocumentAnalysisResult),
	}
}

// Catalog returns the step catalog.
func (w *Wizard) Catalog() *Catalog {
	return w.catalog
}

// CurrentIndex returns the 0-based index of the active step.
func (w *Wizard) CurrentIndex() int {
	return w.current
}

// CurrentStep returns the active step.
func (w *Wizard) CurrentStep() models.DocumentStep {
	step, _ := w.catalog.At(w.current)
	return step
}

// Submitted reports whether the wizard reached its terminal state.
func (w *Wizard) Submitted() bool {
	return w.submitted
}

// Bundle returns the flattened bundle produced by Submit, or nil before submission.
func (w *Wizard) Bundle() models.ApplicationBundle {
	return w.bundle
}

// Documents returns a copy of the documents recorded for a step, in upload order.
func (w *Wizard) Documents(stepID models.DocumentType) []models.DocumentAnalysisResult {
	docs := w.documents[stepID]
	out := make([]models.DocumentAnalysisResult, len(docs))
	copy(out, docs)
	return out
}

// IsStepComplete reports whether a step holds at least the required number of
// documents and every one of them is valid.
func (w *Wizard) IsStepComplete(stepID models.DocumentType) bool {
	step, ok := w.catalog.Step(stepID)
	if !ok {
		return false
	}
	docs := w.documents[stepID]
	if len(docs) < step.Required() {
		return false
	}
	for _, doc := range docs {
		if !doc.IsValid {
			return false
		}
	}
	return true
}

// CompletedSteps returns how many steps are complete.
func (w *Wizard) CompletedSteps() int {
	n := 0
	for _, step := range w.catalog.steps {
		if w.IsStepComplete(step.ID) {
			n++
		}
	}
	return n
}

// Progress returns the completion percentage, rounded to the nearest integer.
func (w *Wizard) Progress() int {
	total := w.catalog.Len()
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(w.CompletedSteps()) / float64(total)))
}

// CanProceed reports whether the active step is complete.
func (w *Wizard) CanProceed() bool {
	return w.IsStepComplete(w.CurrentStep().ID)
}

// GoNext moves to the next step. The active step must be complete.
func (w *Wizard) GoNext() error {
	if w.submitted {
		return models.ErrWizardSubmitted
	}
	if !w.CanProceed() {
		return fmt.Errorf("%w: %s", models.ErrStepIncomplete, w.CurrentStep().ID)
	}
	if w.current >= w.catalog.Len()-1 {
		return models.ErrNoNextStep
	}
	w.current++
	return nil
}

// GoPrevious moves back one step regardless of completion.
func (w *Wizard) GoPrevious() error {
	if w.submitted {
		return models.ErrWizardSubmitted
	}
	if w.current == 0 {
		return models.ErrNoPreviousStep
	}
	w.current--
	return nil
}

// JumpTo moves to step index. The target must be at or before the active step,
// or already complete.
func (w *Wizard) JumpTo(index int) error {
	if w.submitted {
		return models.ErrWizardSubmitted
	}
	step, ok := w.catalog.At(index)
	if !ok {
		return fmt.Errorf("%w: %d", models.ErrInvalidStepIndex, index)
	}
	if index > w.current && !w.IsStepComplete(step.ID) {
		return fmt.Errorf("%w: %s", models.ErrStepLocked, step.ID)
	}
	w.current = index
	return nil
}

// RecordDocument stores a document against a step. Single-file steps replace
// their document, multi-file steps append in upload order.
func (w *Wizard) RecordDocument(stepID models.DocumentType, doc models.DocumentAnalysisResult) error {
	if w.submitted {
		return models.ErrWizardSubmitted
	}
	step, ok := w.catalog.Step(stepID)
	if !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownStep, stepID)
	}
	if step.MultipleFiles {
		w.documents[stepID] = append(w.documents[stepID], doc)
	} else {
		w.documents[stepID] = []models.DocumentAnalysisResult{doc}
	}
	return nil
}

// RemoveDocument deletes the index-th document of a step.
func (w *Wizard) RemoveDocument(stepID models.DocumentType, index int) error {
	if w.submitted {
		return models.ErrWizardSubmitted
	}
	if _, ok := w.catalog.Step(stepID); !ok {
		return fmt.Errorf("%w: %s", models.ErrUnknownStep, stepID)
	}
	docs := w.documents[stepID]
	if index < 0 || index >= len(docs) {
		return fmt.Errorf("%w: %s #%d", models.ErrDocumentNotFound, stepID, index)
	}
	docs = append(docs[:index:index], docs[index+1:]...)
	if len(docs) == 0 {
		delete(w.documents, stepID)
	} else {
		w.documents[stepID] = docs
	}
	return nil
}

// Submit flattens the recorded documents and moves the wizard to its terminal
// state. It is only allowed from a complete last step.
func (w *Wizard) Submit() (models.ApplicationBundle, error) {
	if w.submitted {
		return nil, models.ErrWizardSubmitted
	}
	if w.current != w.catalog.Len()-1 {
		return nil, models.ErrNotLastStep
	}
	if !w.CanProceed() {
		return nil, fmt.Errorf("%w: %s", models.ErrStepIncomplete, w.CurrentStep().ID)
	}
	w.bundle = FlattenBundle(w.catalog, w.documents)
	w.submitted = true
	return w.bundle, nil
}

// Snapshot returns a copy of the state for display or serialization.
func (w *Wizard) Snapshot() Snapshot {
	snap := Snapshot{
		CurrentStepIndex: w.current,
		CurrentStep:      w.CurrentStep().ID,
		Progress:         w.Progress(),
		CanProceed:       w.CanProceed(),
		Submitted:        w.submitted,
		Steps:            make([]StepState, 0, w.catalog.Len()),
		Bundle:           w.bundle,
	}
	for _, step := range w.catalog.steps {
		snap.Steps = append(snap.Steps, StepState{
			Step:      step,
			Complete:  w.IsStepComplete(step.ID),
			Documents: w.Documents(step.ID),
		})
	}
	return snap
}

// FlattenBundle expands per-step documents into bundle keys. Multi-file steps
// become "<id>_1".."<id>_n" in list order, single-file steps keep the bare id.
func FlattenBundle(catalog *Catalog, documents map[models.DocumentType][]models.DocumentAnalysisResult) models.ApplicationBundle {
	bundle := make(models.ApplicationBundle)
	for _, step := range catalog.steps {
		docs := documents[step.ID]
		if len(docs) == 0 {
			continue
		}
		if step.MultipleFiles {
			for i, doc := range docs {
				bundle[models.DocumentKey(step.ID, i)] = doc
			}
			continue
		}
		bundle[string(step.ID)] = docs[len(docs)-1]
	}
	return bundle
}
