package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/alerts"
	"github.com/jmerrifield20/incidentai/internal/classifier"
	"github.com/jmerrifield20/incidentai/internal/history"
	"github.com/jmerrifield20/incidentai/internal/incident"
)

type incidentRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	IncidentType  string   `json:"incident_type"`
	EvidenceFiles []string `json:"evidence_files"`
	Location      string   `json:"location"`
	IncidentDate  string   `json:"incident_date"`
	UserID        string   `json:"user_id"`
}

func (r *incidentRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(r.Description) == "" {
		missing = append(missing, "description")
	}
	if strings.TrimSpace(r.Location) == "" {
		missing = append(missing, "location")
	}
	if len(missing) > 0 {
		return &incident.ErrValidation{Msg: "missing required fields: " + strings.Join(missing, ", ")}
	}
	return nil
}

func (r *incidentRequest) input() classifier.Input {
	return classifier.Input{
		Text: incident.Text{
			Title:       r.Title,
			Description: r.Description,
			Location:    r.Location,
		},
		EvidenceFiles: r.EvidenceFiles,
		IncidentDate:  r.IncidentDate,
	}
}

type classifyResponse struct {
	IncidentID      uuid.UUID            `json:"incident_id"`
	PredictedType   incident.Category    `json:"predicted_type"`
	ConfidenceScore float64              `json:"confidence_score"`
	ThreatLevel     incident.ThreatLevel `json:"threat_level"`
	RiskScore       float64              `json:"risk_score"`
	AIExplanation   string               `json:"ai_explanation"`
	Features        incident.Features    `json:"features"`
	ProcessingTime  float64              `json:"processing_time"`
}

func (h *IncidentHandler) bind(c *gin.Context) (*incidentRequest, bool) {
	var req incidentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return nil, false
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return nil, false
	}
	return &req, true
}

// Classify handles POST /classify.
func (h *IncidentHandler) Classify(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	start := time.Now()
	res := h.svc.Classify(req.input())
	elapsed := time.Since(start)
	RecordClassification(res, elapsed)

	id := uuid.New()
	h.save(c.Request.Context(), id, req, res)

	c.JSON(http.StatusOK, classifyResponse{
		IncidentID:      id,
		PredictedType:   res.PredictedType,
		ConfidenceScore: res.ConfidenceScore,
		ThreatLevel:     res.ThreatLevel,
		RiskScore:       res.RiskScore,
		AIExplanation:   res.Explanation,
		Features:        res.Features,
		ProcessingTime:  elapsed.Seconds(),
	})
}

// save stores the record. Failures are logged, never surfaced.
func (h *IncidentHandler) save(ctx context.Context, id uuid.UUID, req *incidentRequest, res incident.Result) {
	if h.store == nil {
		return
	}
	evidence := req.EvidenceFiles
	if evidence == nil {
		evidence = []string{}
	}
	rec := &incident.Record{
		ID:            id,
		UserID:        req.UserID,
		Title:         req.Title,
		Description:   req.Description,
		Location:      req.Location,
		IncidentDate:  req.IncidentDate,
		EvidenceFiles: evidence,
		ReportedType:  req.IncidentType,
		Result:        res,
		CreatedAt:     time.Now().UTC(),
	}
	if err := h.store.Save(ctx, rec); err != nil {
		h.logger.Error("save classification", zap.String("incident_id", id.String()), zap.Error(err))
	}
}

// Alerts handles POST /alerts.
func (h *IncidentHandler) Alerts(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	start := time.Now()
	res := h.svc.Classify(req.input())
	RecordClassification(res, time.Since(start))

	id := uuid.New()
	derived := alerts.Derive(res)
	for _, a := range derived {
		RecordAlert(a.Type)
	}
	if len(derived) > 0 && h.dispatcher.Enabled() {
		h.dispatcher.Dispatch(c.Request.Context(), alerts.NewNotification(id, res, derived))
	}

	c.JSON(http.StatusOK, gin.H{
		"incident_id":    id,
		"alerts":         derived,
		"classification": res,
		"timestamp":      time.Now().UTC(),
	})
}

// ListClassifications handles GET /classifications?limit=N.
func (h *IncidentHandler) ListClassifications(c *gin.Context) {
	limit := history.DefaultLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = history.ClampLimit(n)
	}

	records, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list classifications", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list classifications"})
		return
	}
	if records == nil {
		records = []*incident.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"classifications": records, "count": len(records)})
}

// GetClassification handles GET /classifications/:id.
func (h *IncidentHandler) GetClassification(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid classification id"})
		return
	}
	rec, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, history.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "classification not found"})
		return
	}
	if err != nil {
		h.logger.Error("get classification", zap.String("id", id.String()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to get classification"})
		return
	}
	c.JSON(http.StatusOK, rec)
}
