package textnorm

import (
	"fmt"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Lemmatizer reduces a lowercase word to its dictionary base form. Words the
// dictionary does not know are returned unchanged.
type Lemmatizer interface {
	Lemma(word string) string
}

// State describes the process-wide NLP resources.
type State int

const (
	StateNotLoaded State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "not_loaded"
	}
}

// The English lemma dictionary is large, so it is loaded once per process and
// shared by every Normalizer.
var resources struct {
	mu    sync.Mutex
	state State
	lem   *golem.Lemmatizer
	err   error
}

// LoadResources loads the process-wide lemma dictionary. Only the first call
// does work; later calls report the same outcome.
func LoadResources() error {
	resources.mu.Lock()
	defer resources.mu.Unlock()
	if resources.state != StateNotLoaded {
		return resources.err
	}
	lem, err := golem.New(en.New())
	if err != nil {
		resources.state = StateFailed
		resources.err = fmt.Errorf("load english lemma dictionary: %w", err)
		return resources.err
	}
	resources.lem = lem
	resources.state = StateReady
	return nil
}

// Resources reports the state of the process-wide dictionary and the load
// error, if any.
func Resources() (State, error) {
	resources.mu.Lock()
	defer resources.mu.Unlock()
	return resources.state, resources.err
}

func dictionary() (Lemmatizer, error) {
	if err := LoadResources(); err != nil {
		return nil, err
	}
	resources.mu.Lock()
	defer resources.mu.Unlock()
	return resources.lem, nil
}
