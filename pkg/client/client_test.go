package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmerrifield20/incidentai/pkg/client"
)

// ── Stub server ─────────────────────────────────────────────────────────

const recordID = "550e8400-e29b-41d4-a716-446655440000"

func stubServer(t *testing.T, gets *atomic.Int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/classify", func(w http.ResponseWriter, r *http.Request) {
		var in client.IncidentRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Title == "" {
			http.Error(w, `{"error":"missing required fields: title"}`, http.StatusUnprocessableEntity)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"incident_id":      recordID,
			"predicted_type":   "phishing",
			"confidence_score": 0.82,
			"threat_level":     "high",
			"risk_score":       0.72,
			"ai_explanation":   "Classified as phishing with high confidence.",
			"features":         map[string]any{"phishing_keywords": 3, "location_risk": 0.8},
			"processing_time":  0.004,
		})
	})

	mux.HandleFunc("/api/v1/alerts", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"incident_id": recordID,
			"alerts": []map[string]any{
				{"type": "immediate_action_required", "priority": "high", "message": "Critical threat detected: malware", "actions": []string{"Isolate affected systems"}},
			},
			"classification": map[string]any{"predicted_type": "malware", "threat_level": "critical"},
			"timestamp":      time.Now().UTC(),
		})
	})

	mux.HandleFunc("/api/v1/model/train", func(w http.ResponseWriter, r *http.Request) {
		switch r.Header.Get("Authorization") {
		case "":
			http.Error(w, `{"error":"Bearer token required"}`, http.StatusUnauthorized)
		case "Bearer busy":
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]any{"status": "error", "error": "training already in progress"})
		case "Bearer fail":
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(map[string]any{"status": "error", "error": "fit vectorizer: empty vocabulary"})
		default:
			var records []client.TrainingRecord
			json.NewDecoder(r.Body).Decode(&records) //nolint:errcheck
			json.NewEncoder(w).Encode(map[string]any{
				"status":           "success",
				"training_samples": len(records),
				"test_accuracy":    0.9,
				"model_scores":     map[string]float64{"random_forest": 0.9},
			})
		}
	})

	mux.HandleFunc("/api/v1/model/metrics", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"is_trained":     true,
			"loaded":         true,
			"incident_types": []string{"fraud", "malware"},
			"max_features":   5000,
		})
	})

	mux.HandleFunc("/api/v1/model/ledger", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"length": 3, "root": "abc", "verified": true})
	})

	mux.HandleFunc("/api/v1/classifications", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "5" {
			http.Error(w, `{"error":"bad limit"}`, http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"classifications": []map[string]any{{"incident_id": recordID, "title": "t"}},
			"count":           1,
		})
	})

	mux.HandleFunc("/api/v1/classifications/", func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		if !strings.HasSuffix(r.URL.Path, recordID) {
			http.Error(w, `{"error":"classification not found"}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"incident_id": recordID, "title": "t"})
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]any{
			"status": "unhealthy",
			"components": map[string]any{
				"text_normalizer": map[string]any{"status": "unhealthy", "error": "dictionary missing"},
			},
		})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// ── Tests ────────────────────────────────────────────────────────────────

func TestClassify(t *testing.T) {
	srv := stubServer(t, new(atomic.Int32))
	c := client.MustNew(srv.URL)

	res, err := c.Classify(context.Background(), client.IncidentRequest{
		Title: "Suspicious email", Description: "verify your account", Location: "Mumbai",
	})
	if err != nil {
		t.Fatalf("Classify() error: %v", err)
	}
	if res.PredictedType != "phishing" || res.Features.PhishingKeywords != 3 {
		t.Errorf("result = %+v", res)
	}
}

func TestClassify_validationError(t *testing.T) {
	srv := stubServer(t, new(atomic.Int32))
	_, err := client.MustNew(srv.URL).Classify(context.Background(), client.IncidentRequest{})
	if err == nil || !strings.Contains(err.Error(), "missing required fields") {
		t.Errorf("err = %v", err)
	}
}

func TestAlerts(t *testing.T) {
	srv := stubServer(t, new(atomic.Int32))
	res, err := client.MustNew(srv.URL).Alerts(context.Background(), client.IncidentRequest{Title: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Alerts) != 1 || res.Classification.ThreatLevel != "critical" {
		t.Errorf("result = %+v", res)
	}
}

func TestTrain(t *testing.T) {
	srv := stubServer(t, new(atomic.Int32))
	records := []client.TrainingRecord{{Title: "a", Description: "b", IncidentType: "fraud"}}
	ctx := context.Background()

	report, err := client.MustNew(srv.URL, client.WithBearerToken("ok")).Train(ctx, records)
	if err != nil {
		t.Fatalf("Train() error: %v", err)
	}
	if report.Status != "success" || report.TrainingSamples != 1 {
		t.Errorf("report = %+v", report)
	}

	_, err = client.MustNew(srv.URL, client.WithBearerToken("busy")).Train(ctx, records)
	if !errors.Is(err, client.ErrTrainingInProgress) {
		t.Errorf("busy: err = %v, want ErrTrainingInProgress", err)
	}

	report, err = client.MustNew(srv.URL, client.WithBearerToken("fail")).Train(ctx, records)
	if err != nil || report.Status != "error" {
		t.Errorf("fail: report = %+v, err = %v", report, err)
	}

	_, err = client.MustNew(srv.URL).Train(ctx, records)
	if err == nil || !strings.Contains(err.Error(), "unauthorized") {
		t.Errorf("anonymous: err = %v", err)
	}
}

func TestMetricsAndLedger(t *testing.T) {
	srv := stubServer(t, new(atomic.Int32))
	c := client.MustNew(srv.URL)
	m, err := c.Metrics(context.Background())
	if err != nil || !m.Loaded || m.MaxFeatures != 5000 {
		t.Errorf("Metrics = %+v, %v", m, err)
	}
	l, err := c.Ledger(context.Background())
	if err != nil || l.Length != 3 || !l.Verified {
		t.Errorf("Ledger = %+v, %v", l, err)
	}
}

func TestClassifications(t *testing.T) {
	var gets atomic.Int32
	srv := stubServer(t, &gets)
	c := client.MustNew(srv.URL, client.WithCacheTTL(time.Minute))
	ctx := context.Background()

	list, err := c.ListClassifications(ctx, 5)
	if err != nil || len(list) != 1 || list[0].IncidentID != recordID {
		t.Fatalf("List = %+v, %v", list, err)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.GetClassification(ctx, recordID); err != nil {
			t.Fatal(err)
		}
	}
	if gets.Load() != 1 {
		t.Errorf("expected 1 server hit with cache, got %d", gets.Load())
	}

	_, err = c.GetClassification(ctx, "missing")
	if !errors.Is(err, client.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestHealth_decodes503(t *testing.T) {
	srv := stubServer(t, new(atomic.Int32))
	h, err := client.MustNew(srv.URL).Health(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if h.Status != "unhealthy" || h.Components["text_normalizer"].Error != "dictionary missing" {
		t.Errorf("health = %+v", h)
	}
}

func TestNew_invalidBase(t *testing.T) {
	if _, err := client.New("::not a url"); err == nil {
		t.Error("expected error for invalid base URL")
	}
	if _, err := client.New("http://x", client.WithCacheTTL(0)); err == nil {
		t.Error("expected error for zero cache ttl")
	}
}
