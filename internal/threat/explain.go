package threat

import (
	"fmt"

	"github.com/jmerrifield20/incidentai/internal/incident"
)

// Explain renders the category template followed by the level clause.
func Explain(c incident.Category, level incident.ThreatLevel, f incident.Features) string {
	return categorySentence(c, f) + levelClause(level)
}

func categorySentence(c incident.Category, f incident.Features) string {
	switch c {
	case incident.CategoryFraud:
		return fmt.Sprintf("Classified as fraud based on %d fraud-related keywords and financial context.", f.FraudKeywords)
	case incident.CategoryMalware:
		return fmt.Sprintf("Classified as malware based on %d malware-related keywords and technical indicators.", f.MalwareKeywords)
	case incident.CategoryPhishing:
		return fmt.Sprintf("Classified as phishing based on %d phishing-related keywords and social engineering indicators.", f.PhishingKeywords)
	case incident.CategoryEspionage:
		return fmt.Sprintf("Classified as espionage based on %d espionage-related keywords and security context.", f.EspionageKeywords)
	case incident.CategoryOpsec:
		return fmt.Sprintf("Classified as operational security breach based on %d OPSEC-related keywords.", f.OpsecKeywords)
	case incident.CategoryDDoS:
		return "Classified as DDoS attack based on network disruption indicators."
	case incident.CategoryDataBreach:
		return "Classified as data breach based on unauthorized access indicators."
	case incident.CategorySocialEngineering:
		return "Classified as social engineering based on manipulation indicators."
	default:
		return "Classified as other based on general cyber incident indicators."
	}
}

func levelClause(level incident.ThreatLevel) string {
	switch level {
	case incident.ThreatCritical:
		return " This is a CRITICAL threat requiring immediate attention."
	case incident.ThreatHigh:
		return " This is a HIGH threat requiring urgent attention."
	case incident.ThreatMedium:
		return " This is a MEDIUM threat requiring prompt attention."
	default:
		return " This is a LOW threat requiring standard attention."
	}
}
