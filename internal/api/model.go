package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/auth"
	"github.com/jmerrifield20/incidentai/internal/classifier"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/modelledger"
)

// Train handles POST /model/train. The corpus is either the JSON body or the
// multipart field training_data, as a file or a plain value.
func (h *IncidentHandler) Train(c *gin.Context) {
	records, err := readCorpus(c)
	if err != nil {
		status := http.StatusBadRequest
		if isValidation(err) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.trainingTimeout)
	defer cancel()

	h.logger.Info("training requested",
		zap.String("subject", auth.Subject(c)),
		zap.Int("records", len(records)),
	)
	report := h.svc.Train(ctx, records)
	RecordTraining(report)

	switch {
	case errors.Is(report.Err, classifier.ErrTrainingInProgress):
		c.JSON(http.StatusConflict, report)
	case report.Status == incident.TrainingSuccess:
		c.JSON(http.StatusOK, report)
	case report.Status == incident.TrainingInterrupted:
		c.JSON(http.StatusServiceUnavailable, report)
	default:
		c.JSON(http.StatusUnprocessableEntity, report)
	}
}

func readCorpus(c *gin.Context) ([]incident.TrainingRecord, error) {
	var raw []byte
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		if mt := c.PostForm("model_type"); mt != "" && mt != "classifier" {
			return nil, &incident.ErrValidation{Msg: "invalid model type " + mt}
		}
		if fh, err := c.FormFile("training_data"); err == nil {
			f, err := fh.Open()
			if err != nil {
				return nil, err
			}
			defer f.Close()
			if raw, err = io.ReadAll(f); err != nil {
				return nil, err
			}
		} else if v, ok := c.GetPostForm("training_data"); ok {
			raw = []byte(v)
		} else {
			return nil, &incident.ErrValidation{Msg: "missing training_data"}
		}
	} else {
		var err error
		if raw, err = io.ReadAll(c.Request.Body); err != nil {
			return nil, err
		}
	}

	var records []incident.TrainingRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, &incident.ErrValidation{Msg: "training data must be a JSON array of {title, description, incident_type}: " + err.Error()}
	}
	return records, nil
}

type metricsResponse struct {
	incident.ModelMetrics
	Loaded bool `json:"loaded"`
}

// Metrics handles GET /model/metrics.
func (h *IncidentHandler) Metrics(c *gin.Context) {
	m := h.svc.Metrics()
	if m.Categories == nil {
		m.Categories = []incident.Category{}
	}
	c.JSON(http.StatusOK, metricsResponse{
		ModelMetrics: m,
		Loaded:       m.IsTrained || m.ModelLoaded,
	})
}

type ledgerResponse struct {
	modelledger.Summary
	Recent []*modelledger.Entry `json:"recent"`
}

// Ledger handles GET /model/ledger.
func (h *IncidentHandler) Ledger(c *gin.Context) {
	ctx := c.Request.Context()
	sum, err := modelledger.Summarize(ctx, h.ledger)
	if err != nil {
		h.logger.Error("model ledger summary", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query model ledger"})
		return
	}
	if !sum.Verified {
		h.logger.Warn("model ledger integrity check failed", zap.String("error", sum.Error))
	}

	recent, err := h.ledger.Recent(ctx, 10)
	if err != nil {
		h.logger.Error("model ledger recent", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query model ledger"})
		return
	}
	c.JSON(http.StatusOK, ledgerResponse{Summary: sum, Recent: recent})
}
