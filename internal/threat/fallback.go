package threat

import "github.com/jmerrifield20/incidentai/internal/incident"

// FallbackConfidence is the confidence assigned to cascade predictions.
const FallbackConfidence = 0.6

// Fallback picks a category from keyword counts alone. The cascade is
// evaluated top to bottom and stops at the first match.
func Fallback(f incident.Features) incident.Category {
	switch {
	case f.FraudKeywords > f.MalwareKeywords && f.FraudKeywords > f.PhishingKeywords:
		return incident.CategoryFraud
	case f.MalwareKeywords > f.PhishingKeywords:
		return incident.CategoryMalware
	case f.PhishingKeywords > 0:
		return incident.CategoryPhishing
	case f.EspionageKeywords > 0:
		return incident.CategoryEspionage
	case f.OpsecKeywords > 0:
		return incident.CategoryOpsec
	default:
		return incident.CategoryOther
	}
}
