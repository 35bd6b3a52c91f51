package ensemble

import (
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// ProbabilisticModel emits a posterior distribution over incident.Categories.
type ProbabilisticModel interface {
	// PredictProba returns one probability per entry of incident.Categories.
	PredictProba(x vectorize.Vector) []float64
}

// LabelModel emits a category without a posterior.
type LabelModel interface {
	Predict(x vectorize.Vector) incident.Category
}

// Member is one ensemble slot. The implementations are closed to this
// package: a member is either a ProbabilisticMember or a DeterministicMember.
type Member interface {
	Name() string
	member()
}

// ProbabilisticMember votes with the arg-max of its posterior and contributes
// its max probability to the ensemble confidence.
type ProbabilisticMember struct {
	name  string
	Model ProbabilisticModel
}

// DeterministicMember is carried by the ensemble but never votes.
type DeterministicMember struct {
	name  string
	Model LabelModel
}

// Probabilistic wraps m as a voting member.
func Probabilistic(name string, m ProbabilisticModel) *ProbabilisticMember {
	return &ProbabilisticMember{name: name, Model: m}
}

// Deterministic wraps m as a non-voting member.
func Deterministic(name string, m LabelModel) *DeterministicMember {
	return &DeterministicMember{name: name, Model: m}
}

func (m *ProbabilisticMember) Name() string { return m.name }
func (m *DeterministicMember) Name() string { return m.name }

func (*ProbabilisticMember) member() {}
func (*DeterministicMember) member() {}
