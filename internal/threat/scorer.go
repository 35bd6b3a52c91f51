// Package threat turns a predicted category and its feature vector into a
// threat level, a reported risk score and a human-readable explanation. It
// also holds the keyword cascade used when no statistical model can vote.
package threat

import "github.com/jmerrifield20/incidentai/internal/incident"

// Adjustment is a single rule that moved the risk away from the category
// base value.
type Adjustment struct {
	Rule  string  `json:"rule"`
	Delta float64 `json:"delta"`
}

// Assessment is the output of a scoring run.
type Assessment struct {
	// Risk is the clamped category risk in [0,1]:
	//   >= 0.8 → critical
	//   >= 0.6 → high
	//   >= 0.4 → medium
	//   else   → low
	Risk float64 `json:"risk"`

	Level incident.ThreatLevel `json:"level"`

	// Adjustments lists every rule that triggered, in evaluation order.
	Adjustments []Adjustment `json:"adjustments"`
}

// Scorer derives the threat assessment of a classified incident.
type Scorer interface {
	Score(f incident.Features, c incident.Category) Assessment
}

// LevelFor maps a risk value onto the ordinal threat levels.
func LevelFor(risk float64) incident.ThreatLevel {
	switch {
	case risk >= 0.8:
		return incident.ThreatCritical
	case risk >= 0.6:
		return incident.ThreatHigh
	case risk >= 0.4:
		return incident.ThreatMedium
	default:
		return incident.ThreatLow
	}
}

// RiskScore combines classifier confidence with the threat level into the
// externally reported risk: confidence * (ordinal+1) / 4.
func RiskScore(confidence float64, level incident.ThreatLevel) float64 {
	return incident.Clamp01(incident.Clamp01(confidence) * float64(level.Ordinal()+1) / 4)
}
