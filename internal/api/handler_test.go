package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/api"
	"github.com/jmerrifield20/incidentai/internal/auth"
	"github.com/jmerrifield20/incidentai/internal/classifier"
	"github.com/jmerrifield20/incidentai/internal/history"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/modelledger"
)

// ── Stubs ────────────────────────────────────────────────────────────────

type stubClassifier struct {
	mu      sync.Mutex
	result  incident.Result
	report  incident.TrainingReport
	trained []incident.TrainingRecord
	inputs  []classifier.Input
}

func (s *stubClassifier) Classify(in classifier.Input) incident.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, in)
	return s.result
}

func (s *stubClassifier) Train(_ context.Context, records []incident.TrainingRecord) incident.TrainingReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trained = records
	return s.report
}

func (s *stubClassifier) Metrics() incident.ModelMetrics {
	return incident.ModelMetrics{
		IsTrained:    true,
		Categories:   incident.Categories,
		ThreatLevels: incident.ThreatLevels,
		MaxFeatures:  5000,
	}
}

func setupRouter(t *testing.T, svc *stubClassifier, tokens *auth.TokenIssuer) (*gin.Engine, history.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	store := history.NewMemory()
	h := api.NewIncidentHandler(svc, store, zap.NewNop())
	h.SetLedger(modelledger.NewMemory())
	h.SetTokenIssuer(tokens)
	r := gin.New()
	h.Register(r.Group("/api/v1"))
	return r, store
}

func doJSON(r http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

var phishing = map[string]any{
	"title":          "Suspicious email",
	"description":    "Received an email asking to verify my bank account",
	"location":       "Mumbai",
	"incident_date":  "2024-03-01",
	"user_id":        "u-17",
	"evidence_files": []string{"mail.eml"},
}

func criticalResult() incident.Result {
	return incident.Result{
		PredictedType:   incident.CategoryPhishing,
		ConfidenceScore: 0.9,
		ThreatLevel:     incident.ThreatCritical,
		RiskScore:       0.9,
		Explanation:     "Classified as phishing with high confidence.",
	}
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestClassify_200_storesRecord(t *testing.T) {
	svc := &stubClassifier{result: criticalResult()}
	router, store := setupRouter(t, svc, nil)

	w := doJSON(router, http.MethodPost, "/api/v1/classify", phishing)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["predicted_type"] != "phishing" || resp["threat_level"] != "critical" {
		t.Errorf("unexpected response %v", resp)
	}
	if resp["ai_explanation"] == "" || resp["processing_time"] == nil {
		t.Errorf("missing explanation or processing_time: %v", resp)
	}

	recs, _ := store.List(context.Background(), 10)
	if len(recs) != 1 {
		t.Fatalf("expected 1 stored record, got %d", len(recs))
	}
	if recs[0].ID.String() != resp["incident_id"] || recs[0].UserID != "u-17" {
		t.Errorf("stored record = %+v", recs[0])
	}
	if got := svc.inputs[0]; got.Location != "Mumbai" || got.IncidentDate != "2024-03-01" {
		t.Errorf("classifier input = %+v", got)
	}
}

func TestClassify_422_missingFields(t *testing.T) {
	router, _ := setupRouter(t, &stubClassifier{}, nil)
	w := doJSON(router, http.MethodPost, "/api/v1/classify", map[string]any{"title": "x"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", w.Code, w.Body.String())
	}
}

func TestClassify_400_badJSON(t *testing.T) {
	router, _ := setupRouter(t, &stubClassifier{}, nil)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", bytes.NewBufferString("{"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestAlerts_200(t *testing.T) {
	router, store := setupRouter(t, &stubClassifier{result: criticalResult()}, nil)
	w := doJSON(router, http.MethodPost, "/api/v1/alerts", phishing)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		IncidentID string `json:"incident_id"`
		Alerts     []struct {
			Type     string `json:"type"`
			Priority string `json:"priority"`
		} `json:"alerts"`
		Classification incident.Result `json:"classification"`
	}
	json.Unmarshal(w.Body.Bytes(), &resp)
	if len(resp.Alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %+v", resp.Alerts)
	}
	if resp.Alerts[0].Type != "immediate_action_required" || resp.Alerts[1].Type != "high_risk_incident" {
		t.Errorf("alert types = %+v", resp.Alerts)
	}
	if resp.Classification.PredictedType != incident.CategoryPhishing {
		t.Errorf("classification = %+v", resp.Classification)
	}
	if recs, _ := store.List(context.Background(), 10); len(recs) != 0 {
		t.Errorf("alerts route stored %d records", len(recs))
	}
}

func TestTrain_JSON_200(t *testing.T) {
	svc := &stubClassifier{report: incident.TrainingReport{Status: incident.TrainingSuccess, TrainingSamples: 2}}
	router, _ := setupRouter(t, svc, nil)

	corpus := []incident.TrainingRecord{
		{Title: "a", Description: "b", IncidentType: "fraud"},
		{Title: "c", Description: "d", IncidentType: "malware"},
	}
	w := doJSON(router, http.MethodPost, "/api/v1/model/train", corpus)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.trained) != 2 || svc.trained[1].IncidentType != "malware" {
		t.Errorf("trained on %+v", svc.trained)
	}
}

func TestTrain_multipart_200(t *testing.T) {
	svc := &stubClassifier{report: incident.TrainingReport{Status: incident.TrainingSuccess}}
	router, _ := setupRouter(t, svc, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.WriteField("model_type", "classifier") //nolint:errcheck
	fw, _ := mw.CreateFormFile("training_data", "corpus.json")
	fw.Write([]byte(`[{"title":"t","description":"d","incident_type":"opsec"}]`)) //nolint:errcheck
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v1/model/train", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if len(svc.trained) != 1 || svc.trained[0].IncidentType != "opsec" {
		t.Errorf("trained on %+v", svc.trained)
	}
}

func TestTrain_409_inProgress(t *testing.T) {
	svc := &stubClassifier{report: incident.TrainingReport{
		Status: incident.TrainingError,
		Error:  classifier.ErrTrainingInProgress.Error(),
		Err:    classifier.ErrTrainingInProgress,
	}}
	router, _ := setupRouter(t, svc, nil)
	w := doJSON(router, http.MethodPost, "/api/v1/model/train", []incident.TrainingRecord{{Title: "x"}})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["status"] != "error" {
		t.Errorf("status = %v", resp["status"])
	}
}

func TestTrain_422_notArray(t *testing.T) {
	router, _ := setupRouter(t, &stubClassifier{}, nil)
	w := doJSON(router, http.MethodPost, "/api/v1/model/train", map[string]any{"title": "x"})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", w.Code)
	}
}

func TestTrain_401_withoutToken(t *testing.T) {
	tokens, _ := auth.NewTokenIssuer("secret", time.Hour)
	svc := &stubClassifier{report: incident.TrainingReport{Status: incident.TrainingSuccess}}
	router, _ := setupRouter(t, svc, tokens)

	w := doJSON(router, http.MethodPost, "/api/v1/model/train", []incident.TrainingRecord{})
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	token, _ := tokens.Issue("ops", []string{auth.ScopeTrain})
	w = doJSON(router, http.MethodPost, "/api/v1/model/train", []incident.TrainingRecord{},
		"Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", w.Code, w.Body.String())
	}
}

func TestMetrics_200(t *testing.T) {
	router, _ := setupRouter(t, &stubClassifier{}, nil)
	w := doJSON(router, http.MethodGet, "/api/v1/model/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["loaded"] != true || resp["max_features"].(float64) != 5000 {
		t.Errorf("metrics = %v", resp)
	}
	if n := len(resp["incident_types"].([]any)); n != incident.NumCategories {
		t.Errorf("expected %d incident types, got %d", incident.NumCategories, n)
	}
}

func TestLedger_200_genesis(t *testing.T) {
	router, _ := setupRouter(t, &stubClassifier{}, nil)
	w := doJSON(router, http.MethodGet, "/api/v1/model/ledger", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp map[string]any
	json.Unmarshal(w.Body.Bytes(), &resp)
	if resp["length"].(float64) != 1 || resp["verified"] != true {
		t.Errorf("ledger = %v", resp)
	}
}

func TestClassifications_listAndGet(t *testing.T) {
	svc := &stubClassifier{result: criticalResult()}
	router, _ := setupRouter(t, svc, nil)
	for i := 0; i < 3; i++ {
		doJSON(router, http.MethodPost, "/api/v1/classify", phishing)
	}

	w := doJSON(router, http.MethodGet, "/api/v1/classifications?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Classifications []incident.Record `json:"classifications"`
		Count           int               `json:"count"`
	}
	json.Unmarshal(w.Body.Bytes(), &list)
	if list.Count != 2 || len(list.Classifications) != 2 {
		t.Fatalf("list = %+v", list)
	}

	id := list.Classifications[0].ID.String()
	w = doJSON(router, http.MethodGet, "/api/v1/classifications/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestClassifications_errors(t *testing.T) {
	router, _ := setupRouter(t, &stubClassifier{}, nil)
	cases := []struct {
		path string
		want int
	}{
		{"/api/v1/classifications?limit=abc", http.StatusBadRequest},
		{"/api/v1/classifications/not-a-uuid", http.StatusBadRequest},
		{"/api/v1/classifications/6f1c3a2e-8a7b-4c47-9d59-0c6f3d1f2b11", http.StatusNotFound},
	}
	for _, tc := range cases {
		w := doJSON(router, http.MethodGet, tc.path, nil)
		if w.Code != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.path, tc.want, w.Code)
		}
	}
}
