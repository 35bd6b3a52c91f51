package ensemble

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// Ballot is one member's contribution to a decision.
type Ballot struct {
	Member     string
	Category   incident.Category
	Confidence float64
}

// Decision is the outcome of a vote.
type Decision struct {
	Category   incident.Category
	Confidence float64
	Ballots    []Ballot
}

// Vote asks every probabilistic member for its posterior. The category with
// the most arg-max votes wins; ties go to the lexicographically smallest
// category name. Confidence is the mean of the members' max probabilities.
// ok is false when no member could emit a posterior.
func Vote(members []Member, x vectorize.Vector) (d Decision, ok bool) {
	for _, m := range members {
		switch m := m.(type) {
		case *ProbabilisticMember:
			p := m.Model.PredictProba(x)
			if len(p) != incident.NumCategories {
				continue
			}
			i := floats.MaxIdx(p)
			d.Ballots = append(d.Ballots, Ballot{
				Member:     m.Name(),
				Category:   incident.CategoryAt(i),
				Confidence: p[i],
			})
		case *DeterministicMember:
		}
	}
	if len(d.Ballots) == 0 {
		return Decision{}, false
	}

	counts := make(map[incident.Category]int, len(d.Ballots))
	confs := make([]float64, len(d.Ballots))
	for i, b := range d.Ballots {
		counts[b.Category]++
		confs[i] = b.Confidence
	}
	best := d.Ballots[0].Category
	for c, n := range counts {
		if n > counts[best] || (n == counts[best] && c < best) {
			best = c
		}
	}
	d.Category = best
	d.Confidence = incident.Clamp01(stat.Mean(confs, nil))
	return d, true
}
