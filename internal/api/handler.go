// Package api exposes the incident classifier over HTTP.
package api

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/alerts"
	"github.com/jmerrifield20/incidentai/internal/auth"
	"github.com/jmerrifield20/incidentai/internal/classifier"
	"github.com/jmerrifield20/incidentai/internal/history"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/modelledger"
)

// Classifier is the subset of *classifier.Service the handlers use.
type Classifier interface {
	Classify(in classifier.Input) incident.Result
	Train(ctx context.Context, records []incident.TrainingRecord) incident.TrainingReport
	Metrics() incident.ModelMetrics
}

// IncidentHandler serves the classification, alert, training and history
// routes.
type IncidentHandler struct {
	svc             Classifier
	store           history.Store
	dispatcher      *alerts.Dispatcher // nil = alerts are returned but not pushed
	ledger          modelledger.Ledger // nil = no ledger route
	tokens          *auth.TokenIssuer  // nil = training is open
	trainingTimeout time.Duration
	logger          *zap.Logger
}

// NewIncidentHandler creates an IncidentHandler.
func NewIncidentHandler(svc Classifier, store history.Store, logger *zap.Logger) *IncidentHandler {
	return &IncidentHandler{
		svc:             svc,
		store:           store,
		trainingTimeout: 5 * time.Minute,
		logger:          logger,
	}
}

// SetDispatcher configures webhook delivery of alerts.
func (h *IncidentHandler) SetDispatcher(d *alerts.Dispatcher) {
	h.dispatcher = d
}

// SetLedger configures the model ledger exposed at /model/ledger.
func (h *IncidentHandler) SetLedger(l modelledger.Ledger) {
	h.ledger = l
}

// SetTokenIssuer enables Bearer token checks on the training route.
func (h *IncidentHandler) SetTokenIssuer(t *auth.TokenIssuer) {
	h.tokens = t
}

// SetTrainingTimeout bounds each training request.
func (h *IncidentHandler) SetTrainingTimeout(d time.Duration) {
	if d > 0 {
		h.trainingTimeout = d
	}
}

// Register mounts the routes on the given router group.
func (h *IncidentHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/classify", h.Classify)
	rg.POST("/alerts", h.Alerts)

	m := rg.Group("/model")
	{
		m.GET("/metrics", h.Metrics)
		m.POST("/train", auth.RequireToken(h.tokens, auth.ScopeTrain), h.Train)
		if h.ledger != nil {
			m.GET("/ledger", h.Ledger)
		}
	}

	c := rg.Group("/classifications")
	{
		c.GET("", h.ListClassifications)
		c.GET("/:id", h.GetClassification)
	}
}

func isValidation(err error) bool {
	var v *incident.ErrValidation
	return errors.As(err, &v)
}
