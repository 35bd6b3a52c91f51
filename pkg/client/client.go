package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// ErrNotFound is returned when the service answers 404.
var ErrNotFound = errors.New("not found")

// ErrTrainingInProgress is returned by Train when another run holds the
// training lock.
var ErrTrainingInProgress = errors.New("training already in progress")

// IncidentRequest is the payload of Classify and Alerts.
type IncidentRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	IncidentType  string   `json:"incident_type,omitempty"`
	EvidenceFiles []string `json:"evidence_files,omitempty"`
	Location      string   `json:"location"`
	IncidentDate  string   `json:"incident_date,omitempty"`
	UserID        string   `json:"user_id,omitempty"`
}

// Features is the feature vector reported with a classification.
type Features struct {
	TextLength        int     `json:"text_length"`
	WordCount         int     `json:"word_count"`
	TitleLength       int     `json:"title_length"`
	DescriptionLength int     `json:"description_length"`
	FraudKeywords     int     `json:"fraud_keywords"`
	MalwareKeywords   int     `json:"malware_keywords"`
	PhishingKeywords  int     `json:"phishing_keywords"`
	EspionageKeywords int     `json:"espionage_keywords"`
	OpsecKeywords     int     `json:"opsec_keywords"`
	LocationRisk      float64 `json:"location_risk"`
	UrgencyIndicators int     `json:"urgency_indicators"`
}

// ClassifyResult is returned by Classify.
type ClassifyResult struct {
	IncidentID      string   `json:"incident_id"`
	PredictedType   string   `json:"predicted_type"`
	ConfidenceScore float64  `json:"confidence_score"`
	ThreatLevel     string   `json:"threat_level"`
	RiskScore       float64  `json:"risk_score"`
	AIExplanation   string   `json:"ai_explanation"`
	Features        Features `json:"features"`
	ProcessingTime  float64  `json:"processing_time"`
}

// Classification is the classification block of history records and alert
// responses.
type Classification struct {
	PredictedType   string   `json:"predicted_type"`
	ConfidenceScore float64  `json:"confidence_score"`
	ThreatLevel     string   `json:"threat_level"`
	RiskScore       float64  `json:"risk_score"`
	Explanation     string   `json:"explanation"`
	Features        Features `json:"features"`
	Fallback        bool     `json:"fallback"`
	Degraded        bool     `json:"degraded,omitempty"`
}

// Alert is one recommended escalation.
type Alert struct {
	Type     string   `json:"type"`
	Priority string   `json:"priority"`
	Message  string   `json:"message"`
	Actions  []string `json:"actions"`
}

// AlertsResult is returned by Alerts.
type AlertsResult struct {
	IncidentID     string         `json:"incident_id"`
	Alerts         []Alert        `json:"alerts"`
	Classification Classification `json:"classification"`
	Timestamp      time.Time      `json:"timestamp"`
}

// TrainingRecord is one labelled example.
type TrainingRecord struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	IncidentType string `json:"incident_type"`
}

// TrainingReport is returned by Train.
type TrainingReport struct {
	Status          string             `json:"status"`
	ModelAccuracy   map[string]float64 `json:"model_scores,omitempty"`
	TrainingSamples int                `json:"training_samples"`
	MeanAccuracy    float64            `json:"test_accuracy"`
	VocabularySize  int                `json:"vocabulary_size,omitempty"`
	Error           string             `json:"error,omitempty"`
}

// ModelMetrics is returned by Metrics.
type ModelMetrics struct {
	IsTrained      bool               `json:"is_trained"`
	ModelLoaded    bool               `json:"model_loaded"`
	Loaded         bool               `json:"loaded"`
	IncidentTypes  []string           `json:"incident_types"`
	ThreatLevels   []string           `json:"threat_levels"`
	VocabularySize int                `json:"vocabulary_size"`
	MaxFeatures    int                `json:"max_features"`
	ModelAccuracy  map[string]float64 `json:"model_scores,omitempty"`
	TrainedAt      *time.Time         `json:"trained_at,omitempty"`
}

// LedgerSummary is returned by Ledger.
type LedgerSummary struct {
	Length   int    `json:"length"`
	Root     string `json:"root"`
	Verified bool   `json:"verified"`
	Error    string `json:"error,omitempty"`
}

// Record is a stored classification.
type Record struct {
	IncidentID     string         `json:"incident_id"`
	UserID         string         `json:"user_id,omitempty"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Location       string         `json:"location"`
	IncidentDate   string         `json:"incident_date,omitempty"`
	EvidenceFiles  []string       `json:"evidence_files"`
	ReportedType   string         `json:"reported_type,omitempty"`
	Classification Classification `json:"classification"`
	CreatedAt      time.Time      `json:"created_at"`
	// DescriptionUnreadable is set when the service could not decrypt the
	// stored description.
	DescriptionUnreadable bool `json:"description_unreadable,omitempty"`
}

// Health is returned by Health.
type Health struct {
	Status     string `json:"status"`
	Version    string `json:"version"`
	Components map[string]struct {
		Status string `json:"status"`
		Detail string `json:"detail,omitempty"`
		Error  string `json:"error,omitempty"`
	} `json:"components"`
}

// Client talks to one incidentd instance.
type Client struct {
	base        string
	httpClient  *http.Client
	bearerToken string
	cache       *recordCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an operator token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithCacheTTL caches GetClassification results for ttl.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) error {
		if ttl <= 0 {
			return fmt.Errorf("cache ttl must be positive, got %s", ttl)
		}
		c.cache = newRecordCache(ttl)
		return nil
	}
}

// WithInsecureSkipVerify disables TLS certificate verification.
// Only use this in development against a self-signed endpoint.
func WithInsecureSkipVerify() Option {
	return func(c *Client) error {
		c.httpClient = &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
			},
			Timeout: c.httpClient.Timeout,
		}
		return nil
	}
}

// New creates a Client for the service at base, e.g. http://localhost:8000.
func New(base string, opts ...Option) (*Client, error) {
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	c := &Client{
		base:       base,
		httpClient: &http.Client{Timeout: 10 * time.Minute},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(base string, opts ...Option) *Client {
	c, err := New(base, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify classifies an incident and stores it in the service history.
func (c *Client) Classify(ctx context.Context, in IncidentRequest) (*ClassifyResult, error) {
	var out ClassifyResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/classify", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Alerts classifies an incident and returns the alerts it triggers.
func (c *Client) Alerts(ctx context.Context, in IncidentRequest) (*AlertsResult, error) {
	var out AlertsResult
	if err := c.call(ctx, http.MethodPost, "/api/v1/alerts", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Train retrains the live model. A completed run that failed is reported
// through the returned report's Status with a nil error.
func (c *Client) Train(ctx context.Context, records []TrainingRecord) (*TrainingReport, error) {
	body, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode training records: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/model/train", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	status, raw, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}

	var report TrainingReport
	switch status {
	case http.StatusConflict:
		return nil, ErrTrainingInProgress
	case http.StatusOK, http.StatusUnprocessableEntity, http.StatusServiceUnavailable:
		if err := json.Unmarshal(raw, &report); err != nil {
			return nil, fmt.Errorf("decode training report: %w", err)
		}
		if report.Status == "" {
			return nil, fmt.Errorf("server error %d: %s", status, string(raw))
		}
		return &report, nil
	default:
		return nil, statusError(status, raw)
	}
}

// Metrics returns the model state.
func (c *Client) Metrics(ctx context.Context) (*ModelMetrics, error) {
	var out ModelMetrics
	if err := c.call(ctx, http.MethodGet, "/api/v1/model/metrics", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Ledger returns the model ledger summary.
func (c *Client) Ledger(ctx context.Context) (*LedgerSummary, error) {
	var out LedgerSummary
	if err := c.call(ctx, http.MethodGet, "/api/v1/model/ledger", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListClassifications returns up to limit stored records, most recent first.
// limit <= 0 uses the server default.
func (c *Client) ListClassifications(ctx context.Context, limit int) ([]Record, error) {
	path := "/api/v1/classifications"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Classifications []Record `json:"classifications"`
	}
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Classifications, nil
}

// GetClassification returns a stored record by incident ID.
func (c *Client) GetClassification(ctx context.Context, id string) (*Record, error) {
	if c.cache != nil {
		if r, ok := c.cache.get(id); ok {
			return r, nil
		}
	}
	var out Record
	if err := c.call(ctx, http.MethodGet, "/api/v1/classifications/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	if c.cache != nil {
		c.cache.set(id, &out)
	}
	return &out, nil
}

// Health returns the service readiness report. A 503 still decodes the
// report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return nil, err
	}
	status, raw, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusServiceUnavailable {
		return nil, statusError(status, raw)
	}
	var out Health
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode health: %w", err)
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	raw, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do executes an HTTP request, failing on any non-2xx status.
func (c *Client) do(req *http.Request) ([]byte, error) {
	status, body, err := c.doStatusBody(req)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, statusError(status, body)
	}
	return body, nil
}

// doStatusBody is a lower-level HTTP call that returns (statusCode, body, error)
// without failing on 4xx responses. The caller interprets the status code.
func (c *Client) doStatusBody(req *http.Request) (int, []byte, error) {
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

func statusError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	msg := string(body)
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("unauthorized: %s", msg)
	default:
		return fmt.Errorf("server error %d: %s", status, msg)
	}
}

// --- simple in-memory record cache ---

type cacheEntry struct {
	record    *Record
	expiresAt time.Time
}

type recordCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
}

func newRecordCache(ttl time.Duration) *recordCache {
	return &recordCache{entries: make(map[string]*cacheEntry), ttl: ttl}
}

func (rc *recordCache) get(key string) (*Record, bool) {
	rc.mu.RLock()
	defer rc.mu.RUnlock()
	e, ok := rc.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false
	}
	return e.record, true
}

func (rc *recordCache) set(key string, r *Record) {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	rc.entries[key] = &cacheEntry{record: r, expiresAt: time.Now().Add(rc.ttl)}
}
