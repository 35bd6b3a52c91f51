package threat

import "github.com/jmerrifield20/incidentai/internal/incident"

// adjustmentFunc inspects a feature vector and reports the delta its rule
// contributes, if any.
type adjustmentFunc func(f incident.Features) (Adjustment, bool)

// RuleBasedScorer is the default Scorer. It starts from a fixed base risk per
// category and applies a fixed list of feature rules.
type RuleBasedScorer struct {
	base  map[incident.Category]float64
	rules []adjustmentFunc
}

// BaseRisk is the starting risk of each category.
var BaseRisk = map[incident.Category]float64{
	incident.CategoryFraud:             0.3,
	incident.CategoryMalware:           0.7,
	incident.CategoryPhishing:          0.5,
	incident.CategoryEspionage:         0.9,
	incident.CategoryOpsec:             0.8,
	incident.CategoryDDoS:              0.6,
	incident.CategoryDataBreach:        0.8,
	incident.CategorySocialEngineering: 0.6,
	incident.CategoryOther:             0.4,
}

// NewRuleBasedScorer returns a RuleBasedScorer loaded with the default base
// table and rule set.
func NewRuleBasedScorer() *RuleBasedScorer {
	return &RuleBasedScorer{
		base: BaseRisk,
		rules: []adjustmentFunc{
			ruleUrgency,
			ruleLocation,
			ruleDetailedReport,
		},
	}
}

// Score implements Scorer.
func (s *RuleBasedScorer) Score(f incident.Features, c incident.Category) Assessment {
	base, ok := s.base[c]
	if !ok {
		base = s.base[incident.CategoryOther]
	}
	risk := base

	adjustments := []Adjustment{}
	for _, r := range s.rules {
		if a, ok := r(f); ok {
			risk += a.Delta
			adjustments = append(adjustments, a)
		}
	}
	risk = incident.Clamp01(risk)

	return Assessment{
		Risk:        risk,
		Level:       LevelFor(risk),
		Adjustments: adjustments,
	}
}

// ── Rules ─────────────────────────────────────────────────────────────────────

func ruleUrgency(f incident.Features) (Adjustment, bool) {
	if f.UrgencyIndicators > 0 {
		return Adjustment{Rule: "urgency_indicators", Delta: 0.2}, true
	}
	return Adjustment{}, false
}

func ruleLocation(f incident.Features) (Adjustment, bool) {
	if f.LocationRisk > 0.7 {
		return Adjustment{Rule: "high_risk_location", Delta: 0.1}, true
	}
	return Adjustment{}, false
}

// ruleDetailedReport rewards long normalised descriptions.
func ruleDetailedReport(f incident.Features) (Adjustment, bool) {
	if f.TextLength > 500 {
		return Adjustment{Rule: "detailed_report", Delta: 0.1}, true
	}
	return Adjustment{}, false
}
