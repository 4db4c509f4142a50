package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rental-application-engine/internal/models"
	"rental-application-engine/internal/services/assembler"
	"rental-application-engine/internal/services/intake"
)

var testNow = time.Date(2024, time.June, 15, 9, 0, 0, 0, time.UTC)

type memoryStorage struct{}

func (memoryStorage) UploadObject(_ context.Context, _ string, _ []byte, _ string, progress func(float64)) error {
	if progress != nil {
		progress(1)
	}
	return nil
}

func (memoryStorage) PublicURL(_ context.Context, key string) (string, error) {
	return "https://files.example.com/" + key, nil
}

// stubAnalyzer answers with a valid document of the expected type. Payslips
// take their period from the queue.
type stubAnalyzer struct {
	mu      sync.Mutex
	periods []string
}

func (a *stubAnalyzer) Analyze(_ context.Context, _ string, expected models.DocumentType) models.DocumentAnalysisResult {
	result := models.DocumentAnalysisResult{
		DocumentType:    expected,
		IsValid:         true,
		Confidence:      0.9,
		ExtractedData:   models.NewExtractedData(expected),
		PotentialIssues: []string{},
		Status:          models.AnalysisStatusCompleted,
	}
	switch expected {
	case models.DocumentTypeIdentity:
		result.ExtractedData = &models.IdentityData{Surname: "Dupont", GivenNames: "Jean"}
	case models.DocumentTypePayslip:
		a.mu.Lock()
		period := a.periods[0]
		a.periods = a.periods[1:]
		a.mu.Unlock()
		result.ExtractedData = &models.PayslipData{EmployeeName: "Jean Dupont", PayPeriod: period}
	}
	return result
}

type stubSubmitter struct {
	bundles []models.ApplicationBundle
	infos   []models.ApplicantInfo
	errs    []error
}

func (s *stubSubmitter) Assemble(_ context.Context, bundle models.ApplicationBundle, info models.ApplicantInfo, _ models.AccountChoice) (*models.ApplicationRecord, error) {
	s.bundles = append(s.bundles, bundle)
	s.infos = append(s.infos, info)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &models.ApplicationRecord{ID: "app-1", PropertyID: info.PropertyID}, nil
}

type countingRecorder struct {
	results []string
	active  int
}

func (c *countingRecorder) ObserveSubmission(result string) { c.results = append(c.results, result) }
func (c *countingRecorder) SetActiveSessions(n int)         { c.active = n }

type testAPI struct {
	server    *httptest.Server
	sessions  *SessionStore
	submitter *stubSubmitter
	blobs     *memoryBlobs
	recorder  *countingRecorder
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	recorder := &countingRecorder{}
	sessions := NewSessionStore(nil, time.Hour, recorder)
	orchestrator := intake.NewOrchestrator(memoryStorage{}, &stubAnalyzer{periods: []string{"06/2024", "05/2024", "04/2024"}}, nil, intake.OrchestratorConfig{
		Now: func() time.Time { return testNow },
	})
	submitter := &stubSubmitter{}
	blobs := &memoryBlobs{objects: map[string][]byte{}}

	mux := http.NewServeMux()
	NewIntakeHandler(sessions, orchestrator, submitter, IntakeOptions{
		Blobs:          blobs,
		Recorder:       recorder,
		MaxUploadBytes: 1024,
	}).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return &testAPI{server: server, sessions: sessions, submitter: submitter, blobs: blobs, recorder: recorder}
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (a *testAPI) do(t *testing.T, method, path string, body []byte, contentType string) (int, envelope) {
	t.Helper()
	req, err := http.NewRequest(method, a.server.URL+path, bytes.NewReader(body))
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (a *testAPI) postJSON(t *testing.T, path string, body any) (int, envelope) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return a.do(t, http.MethodPost, path, data, "application/json")
}

type upload struct {
	name        string
	contentType string
	data        []byte
}

func pngFile(name string) upload {
	return upload{name: name, contentType: "image/png", data: []byte("\x89PNG\r\n\x1a\nfake")}
}

func (a *testAPI) upload(t *testing.T, sessionID string, step models.DocumentType, files ...upload) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, f.name))
		header.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return a.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/steps/"+string(step)+"/files", buf.Bytes(), mw.FormDataContentType())
}

func (a *testAPI) createSession(t *testing.T) string {
	t.Helper()
	status, env := a.postJSON(t, "/api/sessions", map[string]string{"property_id": "prop-1"})
	require.Equal(t, http.StatusCreated, status)
	var session SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &session))
	return session.SessionID
}

func decodeSession(t *testing.T, env envelope) SessionResponse {
	t.Helper()
	var session SessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &session))
	return session
}

func TestCreateAndGetSession(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)
	assert.Equal(t, 1, api.recorder.active)

	status, env := api.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	require.Equal(t, http.StatusOK, status)
	session := decodeSession(t, env)
	assert.Equal(t, "prop-1", session.PropertyID)
	assert.Equal(t, models.DocumentTypeIdentity, session.State.CurrentStep)
	assert.Zero(t, session.State.Progress)
	assert.Len(t, session.State.Steps, 4)

	status, _ = api.do(t, http.MethodDelete, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNoContent, status)
	assert.Zero(t, api.recorder.active)

	status, env = api.do(t, http.MethodGet, "/api/sessions/"+id, nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Session introuvable ou expirée", env.Error)
}

func TestCreateSession_RequiresProperty(t *testing.T) {
	api := newTestAPI(t)
	status, env := api.postJSON(t, "/api/sessions", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.False(t, env.Success)
}

func TestUpload_RecordsDocument(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	status, env := api.upload(t, id, models.DocumentTypeIdentity, pngFile("cni.png"))
	require.Equal(t, http.StatusOK, status, env.Error)

	var resp UploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	require.Len(t, resp.Files, 1)
	assert.Equal(t, intake.OutcomeAccepted, resp.Files[0].Outcome)
	assert.True(t, strings.HasPrefix(resp.Files[0].Message, "✅ Document valide\nPièce d'identité"))
	assert.True(t, resp.State.Steps[0].Complete)
	assert.Equal(t, 25, resp.State.Progress)
	require.NotNil(t, resp.Files[0].Result)
	assert.Contains(t, resp.Files[0].Result.FileURL, "https://files.example.com/prop-1/")
}

func TestUpload_Rejections(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	tests := []struct {
		name   string
		step   models.DocumentType
		files  []upload
		status int
	}{
		{"unsupported type", models.DocumentTypeIdentity, []upload{{name: "notes.txt", contentType: "text/plain", data: []byte("hello")}}, http.StatusUnsupportedMediaType},
		{"too large", models.DocumentTypeIdentity, []upload{{name: "big.png", contentType: "image/png", data: bytes.Repeat([]byte("a"), 2048)}}, http.StatusRequestEntityTooLarge},
		{"no files", models.DocumentTypeIdentity, nil, http.StatusBadRequest},
		{"unknown step", models.DocumentType("passport"), []upload{pngFile("a.png")}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := api.upload(t, id, tt.step, tt.files...)
			assert.Equal(t, tt.status, status)
			assert.False(t, env.Success)
			assert.NotEmpty(t, env.Error)
		})
	}
}

func TestNavigation(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	status, env := api.postJSON(t, "/api/sessions/"+id+"/next", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Veuillez compléter cette étape avant de continuer", env.Error)

	status, _ = api.postJSON(t, "/api/sessions/"+id+"/previous", nil)
	assert.Equal(t, http.StatusConflict, status)

	status, _ = api.upload(t, id, models.DocumentTypeIdentity, pngFile("cni.png"))
	require.Equal(t, http.StatusOK, status)

	status, env = api.postJSON(t, "/api/sessions/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, decodeSession(t, env).State.CurrentStepIndex)

	status, env = api.postJSON(t, "/api/sessions/"+id+"/jump", map[string]int{"index": 3})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Veuillez compléter les étapes précédentes", env.Error)

	status, env = api.postJSON(t, "/api/sessions/"+id+"/jump", map[string]int{"index": 0})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, decodeSession(t, env).State.CurrentStepIndex)

	status, _ = api.postJSON(t, "/api/sessions/"+id+"/jump", map[string]int{"index": 9})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = api.postJSON(t, "/api/sessions/"+id+"/jump", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestRemoveDocument(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	status, _ := api.upload(t, id, models.DocumentTypeIdentity, pngFile("cni.png"))
	require.Equal(t, http.StatusOK, status)

	status, env := api.do(t, http.MethodDelete, "/api/sessions/"+id+"/steps/identity/documents/1", nil, "")
	require.Equal(t, http.StatusOK, status)
	session := decodeSession(t, env)
	assert.False(t, session.State.Steps[0].Complete)
	assert.Zero(t, session.State.Progress)

	require.Len(t, api.blobs.deleted, 1)
	assert.True(t, strings.HasPrefix(api.blobs.deleted[0], "prop-1/"))

	status, _ = api.do(t, http.MethodDelete, "/api/sessions/"+id+"/steps/identity/documents/1", nil, "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Len(t, api.blobs.deleted, 1)
}

func completeWizard(t *testing.T, api *testAPI, id string) {
	t.Helper()
	steps := []struct {
		step  models.DocumentType
		files []upload
	}{
		{models.DocumentTypeIdentity, []upload{pngFile("cni.png")}},
		{models.DocumentTypePayslip, []upload{pngFile("juin.png"), pngFile("mai.png"), pngFile("avril.png")}},
		{models.DocumentTypeEmploymentContract, []upload{pngFile("contrat.png")}},
		{models.DocumentTypeProofOfAddress, []upload{pngFile("edf.png")}},
	}
	for i, s := range steps {
		status, env := api.upload(t, id, s.step, s.files...)
		require.Equal(t, http.StatusOK, status, env.Error)
		if i < len(steps)-1 {
			status, env = api.postJSON(t, "/api/sessions/"+id+"/next", nil)
			require.Equal(t, http.StatusOK, status, env.Error)
		}
	}
}

func TestSubmit(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)
	completeWizard(t, api, id)

	form := SubmitRequest{Email: "jean@example.com", Phone: "0612345678"}
	status, env := api.postJSON(t, "/api/sessions/"+id+"/submit", form)
	require.Equal(t, http.StatusCreated, status, env.Error)

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	assert.Equal(t, "app-1", resp.ApplicationID)

	require.Len(t, api.submitter.bundles, 1)
	bundle := api.submitter.bundles[0]
	assert.ElementsMatch(t, []string{"identity", "payslip_1", "payslip_2", "payslip_3", "employment_contract", "proof_of_address"}, bundle.Keys())
	assert.Equal(t, "prop-1", api.submitter.infos[0].PropertyID)

	status, env = api.postJSON(t, "/api/sessions/"+id+"/submit", form)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Votre dossier a déjà été envoyé", env.Error)
	assert.Equal(t, []string{"success", "conflict"}, api.recorder.results)
}

func TestSubmit_RetryAfterContactError(t *testing.T) {
	api := newTestAPI(t)
	api.submitter.errs = []error{&assembler.AssemblyError{
		Stage: assembler.StageContact,
		Err:   &models.FieldError{Field: "phone", Err: models.ErrInvalidPhone},
	}}
	id := api.createSession(t)
	completeWizard(t, api, id)

	status, env := api.postJSON(t, "/api/sessions/"+id+"/submit", SubmitRequest{Email: "jean@example.com", Phone: "123"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "Le numéro de téléphone n'est pas valide", env.Error)

	status, _ = api.postJSON(t, "/api/sessions/"+id+"/submit", SubmitRequest{Email: "jean@example.com", Phone: "0612345678"})
	assert.Equal(t, http.StatusCreated, status)
	require.Len(t, api.submitter.bundles, 2)
	assert.Equal(t, api.submitter.bundles[0].Keys(), api.submitter.bundles[1].Keys())
	assert.Equal(t, []string{"rejected", "success"}, api.recorder.results)
}

func TestSubmit_NotOnLastStep(t *testing.T) {
	api := newTestAPI(t)
	id := api.createSession(t)

	status, env := api.postJSON(t, "/api/sessions/"+id+"/submit", SubmitRequest{})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Le dossier ne peut être envoyé qu'à la dernière étape", env.Error)
	assert.Empty(t, api.submitter.bundles)
}

func TestListSteps(t *testing.T) {
	api := newTestAPI(t)
	status, env := api.do(t, http.MethodGet, "/api/steps", nil, "")
	require.Equal(t, http.StatusOK, status)

	var steps []models.DocumentStep
	require.NoError(t, json.Unmarshal(env.Data, &steps))
	require.Len(t, steps, 4)
	assert.Equal(t, models.DocumentTypePayslip, steps[1].ID)
}
