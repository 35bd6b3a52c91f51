// Package alerts derives operator alerts from classification results and
// pushes them to configured webhooks.
package alerts

import (
	"time"

	"github.com/google/uuid"

	"github.com/jmerrifield20/incidentai/internal/incident"
)

// Alert types.
const (
	TypeImmediateAction = "immediate_action_required"
	TypeHighRisk        = "high_risk_incident"
)

// highRiskThreshold is the reported risk above which a high-risk alert fires.
const highRiskThreshold = 0.8

// Alert is one recommended escalation.
type Alert struct {
	Type     string   `json:"type"`
	Priority string   `json:"priority"`
	Message  string   `json:"message"`
	Actions  []string `json:"actions"`
}

// Notification is the webhook body for one alerted incident.
type Notification struct {
	DeliveryID    uuid.UUID            `json:"delivery_id"`
	IncidentID    uuid.UUID            `json:"incident_id"`
	Timestamp     time.Time            `json:"timestamp"`
	PredictedType incident.Category    `json:"predicted_type"`
	ThreatLevel   incident.ThreatLevel `json:"threat_level"`
	RiskScore     float64              `json:"risk_score"`
	Alerts        []Alert              `json:"alerts"`
}

// Derive returns the alerts triggered by res, possibly none.
func Derive(res incident.Result) []Alert {
	out := []Alert{}
	if res.ThreatLevel == incident.ThreatHigh || res.ThreatLevel == incident.ThreatCritical {
		out = append(out, Alert{
			Type:     TypeImmediateAction,
			Priority: "high",
			Message:  "Critical threat detected: " + string(res.PredictedType),
			Actions:  []string{"Contact CERT-Army immediately", "Isolate affected systems"},
		})
	}
	if res.RiskScore > highRiskThreshold {
		out = append(out, Alert{
			Type:     TypeHighRisk,
			Priority: "medium",
			Message:  "High-risk incident requires immediate attention",
			Actions:  []string{"Escalate to senior analyst", "Prepare incident response team"},
		})
	}
	return out
}

// NewNotification wraps the alerts of an incident for delivery.
func NewNotification(incidentID uuid.UUID, res incident.Result, alerts []Alert) Notification {
	return Notification{
		DeliveryID:    uuid.New(),
		IncidentID:    incidentID,
		Timestamp:     time.Now().UTC(),
		PredictedType: res.PredictedType,
		ThreatLevel:   res.ThreatLevel,
		RiskScore:     res.RiskScore,
		Alerts:        alerts,
	}
}
