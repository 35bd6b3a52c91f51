// Package classifier is the incident classification service: it owns the
// trained model snapshot and exposes classify, train, metrics and readiness.
//
// The vectoriser and the fitted ensemble live together in an immutable
// snapshot that is replaced atomically after a successful training run.
// Classify calls never observe a half-trained model.
package classifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jmerrifield20/incidentai/internal/ensemble"
	"github.com/jmerrifield20/incidentai/internal/features"
	"github.com/jmerrifield20/incidentai/internal/incident"
	"github.com/jmerrifield20/incidentai/internal/threat"
	"github.com/jmerrifield20/incidentai/internal/vectorize"
)

// ErrTrainingInProgress is reported when a training call arrives while
// another one is running.
var ErrTrainingInProgress = errors.New("training already in progress")

// ErrNoRecords is reported for an empty training corpus.
var ErrNoRecords = errors.New("no training records")

const (
	insufficientText = "Insufficient text for classification"
	emptyConfidence  = 0.5
	emptyRisk        = 0.3
	degradedScore    = 0.5
)

// Input is a classify request. EvidenceFiles and IncidentDate are carried
// for callers and logging; they do not influence the prediction.
type Input struct {
	incident.Text
	EvidenceFiles []string
	IncidentDate  string
}

// TrainingSource tells where a snapshot came from.
type TrainingSource int

const (
	// SourceTraining is a snapshot produced by an explicit Train call.
	SourceTraining TrainingSource = iota
	// SourceBootstrap is a snapshot loaded at startup.
	SourceBootstrap
)

// snapshot is a fitted model bundle. It is never mutated after Store.
type snapshot struct {
	vectorizer *vectorize.TFIDF
	ensemble   *ensemble.Ensemble
	trainedAt  time.Time
	samples    int
}

// Service implements the classification core.
type Service struct {
	extract   *features.Extractor
	scorer    threat.Scorer
	vecCfg    vectorize.Config
	ensCfg    ensemble.Config
	live      atomic.Pointer[snapshot]
	trained   atomic.Bool
	loaded    atomic.Bool
	trainMu   sync.Mutex
	onTrained func(TrainingSource, incident.TrainingReport) // nil = no hook
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Service with the default scorer and model settings.
func New(extract *features.Extractor, logger *zap.Logger) *Service {
	return &Service{
		extract: extract,
		scorer:  threat.NewRuleBasedScorer(),
		vecCfg:  vectorize.DefaultConfig(),
		ensCfg:  ensemble.DefaultConfig(),
		now:     time.Now,
		logger:  logger,
	}
}

// SetScorer replaces the threat scorer.
func (s *Service) SetScorer(sc threat.Scorer) {
	s.scorer = sc
}

// SetVectorizerConfig replaces the vocabulary settings used by later
// training runs.
func (s *Service) SetVectorizerConfig(cfg vectorize.Config) {
	s.vecCfg = cfg
}

// SetEnsembleConfig replaces the model settings used by later training runs.
func (s *Service) SetEnsembleConfig(cfg ensemble.Config) {
	s.ensCfg = cfg
}

// SetOnTrained registers a hook invoked after every training run that
// acquired the training lock, failed runs included.
func (s *Service) SetOnTrained(fn func(TrainingSource, incident.TrainingReport)) {
	s.onTrained = fn
}

// Classify predicts the category, threat level and risk of an incident. It
// never fails: internal errors fold into a degraded medium-threat result.
func (s *Service) Classify(in Input) (res incident.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("classification failed",
				zap.Any("panic", r),
				zap.String("title", in.Title),
			)
			res = degraded(fmt.Errorf("%v", r), res.Features)
		}
	}()

	f, normalized := s.extract.Extract(in.Text)
	if normalized == "" {
		return incident.Result{
			PredictedType:   incident.CategoryOther,
			ConfidenceScore: emptyConfidence,
			ThreatLevel:     incident.ThreatLow,
			RiskScore:       emptyRisk,
			Explanation:     insufficientText,
			Features:        f,
		}
	}
	res.Features = f

	category, confidence, fallback := s.predict(normalized, f)
	a := s.scorer.Score(f, category)

	s.logger.Debug("incident classified",
		zap.String("category", string(category)),
		zap.Float64("confidence", confidence),
		zap.String("level", string(a.Level)),
		zap.Bool("fallback", fallback),
		zap.Int("evidence_files", len(in.EvidenceFiles)),
	)

	return incident.Result{
		PredictedType:   category,
		ConfidenceScore: incident.Clamp01(confidence),
		ThreatLevel:     a.Level,
		RiskScore:       threat.RiskScore(confidence, a.Level),
		Explanation:     threat.Explain(category, a.Level, f),
		Features:        f,
		Fallback:        fallback,
	}
}

func (s *Service) predict(normalized string, f incident.Features) (incident.Category, float64, bool) {
	if snap := s.live.Load(); snap != nil {
		if d, ok := snap.ensemble.Vote(snap.vectorizer.Transform(normalized)); ok {
			return d.Category, d.Confidence, false
		}
	}
	return threat.Fallback(f), threat.FallbackConfidence, true
}

func degraded(err error, f incident.Features) incident.Result {
	return incident.Result{
		PredictedType:   incident.CategoryOther,
		ConfidenceScore: degradedScore,
		ThreatLevel:     incident.ThreatMedium,
		RiskScore:       degradedScore,
		Explanation:     "Classification error: " + err.Error(),
		Features:        f,
		Degraded:        true,
	}
}

// Train fits a new snapshot from records and swaps it in on success. Only
// one call runs at a time; a concurrent call reports ErrTrainingInProgress.
// A cancelled ctx yields status interrupted and leaves the live snapshot
// untouched.
func (s *Service) Train(ctx context.Context, records []incident.TrainingRecord) incident.TrainingReport {
	return s.train(ctx, records, SourceTraining)
}

// Bootstrap trains from a corpus at startup. On success the service counts
// as having loaded a prior model.
func (s *Service) Bootstrap(ctx context.Context, records []incident.TrainingRecord) incident.TrainingReport {
	return s.train(ctx, records, SourceBootstrap)
}

func (s *Service) train(ctx context.Context, records []incident.TrainingRecord, src TrainingSource) incident.TrainingReport {
	if !s.trainMu.TryLock() {
		return failure(ErrTrainingInProgress, len(records), 0)
	}
	defer s.trainMu.Unlock()

	start := s.now()
	report := s.fit(ctx, records)
	report.Duration = s.now().Sub(start)

	switch report.Status {
	case incident.TrainingSuccess:
		s.logger.Info("model trained",
			zap.Int("samples", report.TrainingSamples),
			zap.Int("vocabulary", report.VocabularySize),
			zap.Float64("test_accuracy", report.MeanAccuracy),
			zap.Any("model_scores", report.ModelAccuracy),
			zap.Duration("took", report.Duration),
		)
		if src == SourceBootstrap {
			s.loaded.Store(true)
		} else {
			s.trained.Store(true)
		}
	default:
		s.logger.Warn("model training failed",
			zap.String("status", string(report.Status)),
			zap.Int("samples", report.TrainingSamples),
			zap.Error(report.Err),
		)
	}
	if s.onTrained != nil {
		s.onTrained(src, report)
	}
	return report
}

func (s *Service) fit(ctx context.Context, records []incident.TrainingRecord) incident.TrainingReport {
	n := len(records)
	if n == 0 {
		return failure(ErrNoRecords, 0, 0)
	}
	texts := make([]string, n)
	labels := make([]incident.Category, n)
	norm := s.extract.Normalizer()
	for i, r := range records {
		texts[i] = norm.Normalize(r.Title + " " + r.Description)
		labels[i] = incident.ParseCategory(r.IncidentType)
	}

	vec, err := vectorize.Fit(texts, s.vecCfg)
	if err != nil {
		return failure(fmt.Errorf("fit vectorizer: %w", err), n, 0)
	}
	if err := ctx.Err(); err != nil {
		return failure(err, n, vec.Size())
	}
	ens, err := ensemble.Train(ctx, vec.TransformAll(texts), labels, vec.Size(), s.ensCfg)
	if err != nil {
		return failure(err, n, vec.Size())
	}
	if err := ctx.Err(); err != nil {
		return failure(err, n, vec.Size())
	}

	s.live.Store(&snapshot{
		vectorizer: vec,
		ensemble:   ens,
		trainedAt:  s.now().UTC(),
		samples:    n,
	})
	scores := make(map[string]float64, len(ens.Accuracy))
	for k, v := range ens.Accuracy {
		scores[k] = v
	}
	return incident.TrainingReport{
		Status:          incident.TrainingSuccess,
		ModelAccuracy:   scores,
		TrainingSamples: n,
		MeanAccuracy:    ens.MeanAccuracy(),
		VocabularySize:  vec.Size(),
	}
}

func failure(err error, samples, vocab int) incident.TrainingReport {
	status := incident.TrainingError
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		status = incident.TrainingInterrupted
		err = fmt.Errorf("training interrupted: %w", err)
	}
	return incident.TrainingReport{
		Status:          status,
		TrainingSamples: samples,
		VocabularySize:  vocab,
		Error:           err.Error(),
		Err:             err,
	}
}

// Metrics describes the live model.
func (s *Service) Metrics() incident.ModelMetrics {
	m := incident.ModelMetrics{
		IsTrained:    s.trained.Load(),
		ModelLoaded:  s.loaded.Load(),
		Categories:   append([]incident.Category(nil), incident.Categories...),
		ThreatLevels: append([]incident.ThreatLevel(nil), incident.ThreatLevels...),
		MaxFeatures:  s.vecCfg.MaxFeatures,
	}
	if snap := s.live.Load(); snap != nil {
		m.VocabularySize = snap.vectorizer.Size()
		m.ModelAccuracy = make(map[string]float64, len(snap.ensemble.Accuracy))
		for k, v := range snap.ensemble.Accuracy {
			m.ModelAccuracy[k] = v
		}
		at := snap.trainedAt
		m.TrainedAt = &at
	}
	return m
}

// IsLoaded is true once a bootstrap load or a training call has succeeded.
func (s *Service) IsLoaded() bool {
	return s.loaded.Load() || s.trained.Load()
}
