// Package incident holds the data model shared by the classification core and
// the service surface around it.
package incident

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Category is the incident category predicted by the classifier.
type Category string

const (
	CategoryFraud             Category = "fraud"
	CategoryMalware           Category = "malware"
	CategoryPhishing          Category = "phishing"
	CategoryEspionage         Category = "espionage"
	CategoryOpsec             Category = "opsec"
	CategoryDDoS              Category = "ddos"
	CategoryDataBreach        Category = "data_breach"
	CategorySocialEngineering Category = "social_engineering"
	CategoryOther             Category = "other"
)

// Categories is the closed category set in its canonical order.
// Model posterior vectors are indexed by position in this slice.
var Categories = []Category{
	CategoryFraud,
	CategoryMalware,
	CategoryPhishing,
	CategoryEspionage,
	CategoryOpsec,
	CategoryDDoS,
	CategoryDataBreach,
	CategorySocialEngineering,
	CategoryOther,
}

// NumCategories is len(Categories).
const NumCategories = 9

var categoryIndex = func() map[Category]int {
	m := make(map[Category]int, len(Categories))
	for i, c := range Categories {
		m[c] = i
	}
	return m
}()

// ParseCategory maps a training label onto the closed set. Unknown labels map
// to CategoryOther.
func ParseCategory(s string) Category {
	c := Category(s)
	if _, ok := categoryIndex[c]; ok {
		return c
	}
	return CategoryOther
}

// Index returns the position of c in Categories, or the index of
// CategoryOther for values outside the set.
func (c Category) Index() int {
	if i, ok := categoryIndex[c]; ok {
		return i
	}
	return categoryIndex[CategoryOther]
}

// CategoryAt is the inverse of Index.
func CategoryAt(i int) Category {
	if i < 0 || i >= len(Categories) {
		return CategoryOther
	}
	return Categories[i]
}

// ThreatLevel is the ordinal severity of an incident.
type ThreatLevel string

const (
	ThreatLow      ThreatLevel = "low"
	ThreatMedium   ThreatLevel = "medium"
	ThreatHigh     ThreatLevel = "high"
	ThreatCritical ThreatLevel = "critical"
)

// ThreatLevels lists the levels in ascending order.
var ThreatLevels = []ThreatLevel{ThreatLow, ThreatMedium, ThreatHigh, ThreatCritical}

// Ordinal returns low=0 … critical=3. Unknown values rank as low.
func (l ThreatLevel) Ordinal() int {
	switch l {
	case ThreatMedium:
		return 1
	case ThreatHigh:
		return 2
	case ThreatCritical:
		return 3
	default:
		return 0
	}
}

// Text is the immutable textual input of a classification.
type Text struct {
	Title       string
	Description string
	Location    string
}

// Features is the fixed-size feature vector derived from a Text.
// Every field is always populated, zero for degenerate input.
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

// KeywordCount returns the keyword feature associated with c. Categories
// without a keyword list report zero.
func (f Features) KeywordCount(c Category) int {
	switch c {
	case CategoryFraud:
		return f.FraudKeywords
	case CategoryMalware:
		return f.MalwareKeywords
	case CategoryPhishing:
		return f.PhishingKeywords
	case CategoryEspionage:
		return f.EspionageKeywords
	case CategoryOpsec:
		return f.OpsecKeywords
	default:
		return 0
	}
}

// Result is the outcome of a single classify call.
type Result struct {
	PredictedType   Category    `json:"predicted_type"`
	ConfidenceScore float64     `json:"confidence_score"`
	ThreatLevel     ThreatLevel `json:"threat_level"`
	RiskScore       float64     `json:"risk_score"`
	Explanation     string      `json:"explanation"`
	Features        Features    `json:"features"`
	// Fallback is true when the rule cascade produced the category.
	Fallback bool `json:"fallback"`
	// Degraded is true when an internal failure was folded into the result.
	Degraded bool `json:"degraded,omitempty"`
}

// Clamp01 restricts v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// TrainingRecord is one labelled example of the training corpus.
type TrainingRecord struct {
	Title        string `json:"title"`
	Description  string `json:"description"`
	IncidentType string `json:"incident_type"`
}

// TrainingStatus is the outcome of a training call.
type TrainingStatus string

const (
	TrainingSuccess     TrainingStatus = "success"
	TrainingError       TrainingStatus = "error"
	TrainingInterrupted TrainingStatus = "interrupted"
)

// TrainingReport is returned by every training call.
type TrainingReport struct {
	Status          TrainingStatus     `json:"status"`
	ModelAccuracy   map[string]float64 `json:"model_scores,omitempty"`
	TrainingSamples int                `json:"training_samples"`
	MeanAccuracy    float64            `json:"test_accuracy"`
	VocabularySize  int                `json:"vocabulary_size,omitempty"`
	Error           string             `json:"error,omitempty"`
	Duration        time.Duration      `json:"-"`
	// Err is the cause behind Status error or interrupted.
	Err error `json:"-"`
}

// ModelMetrics describes the classifier state.
type ModelMetrics struct {
	IsTrained      bool               `json:"is_trained"`
	ModelLoaded    bool               `json:"model_loaded"`
	Categories     []Category         `json:"incident_types"`
	ThreatLevels   []ThreatLevel      `json:"threat_levels"`
	VocabularySize int                `json:"vocabulary_size"`
	MaxFeatures    int                `json:"max_features"`
	ModelAccuracy  map[string]float64 `json:"model_scores,omitempty"`
	TrainedAt      *time.Time         `json:"trained_at,omitempty"`
}

// Record is a persisted classification.
type Record struct {
	ID            uuid.UUID `json:"incident_id"`
	UserID        string    `json:"user_id,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Location      string    `json:"location"`
	IncidentDate  string    `json:"incident_date,omitempty"`
	EvidenceFiles []string  `json:"evidence_files"`
	ReportedType  string    `json:"reported_type,omitempty"`
	Result        Result    `json:"classification"`
	CreatedAt     time.Time `json:"created_at"`
	// DescriptionUnreadable marks a record whose stored description could
	// not be opened with the current key; Description is then empty.
	DescriptionUnreadable bool `json:"description_unreadable,omitempty"`
}

// ErrValidation is returned for malformed caller input.
type ErrValidation struct {
	Msg string
}

func (e *ErrValidation) Error() string { return e.Msg }
