// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package intelligence

import (
	"context"
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/traylinx/bhasharouter/internal/config"
	"github.com/traylinx/bhasharouter/internal/hooks"
	"github.com/traylinx/bhasharouter/internal/intelligence/cache"
	"github.com/traylinx/bhasharouter/internal/intelligence/classifier"
	"github.com/traylinx/bhasharouter/internal/intelligence/confidence"
	"github.com/traylinx/bhasharouter/internal/intelligence/embedding"
	"github.com/traylinx/bhasharouter/internal/intelligence/language"
	"github.com/traylinx/bhasharouter/internal/intelligence/semantic"
	"github.com/traylinx/bhasharouter/internal/routing"
	"github.com/traylinx/bhasharouter/internal/util"
)

// Service builds the routing pipeline from configuration and owns the model
// resources behind it. A scoring method that fails to initialize is disabled
// with a warning; the service only fails when no method is left.
type Service struct {
	cfg      *config.Config
	stateBox *util.StateBox

	mu          sync.RWMutex
	initialized bool

	detector   *language.Detector
	engine     *embedding.Engine
	encoder    *cache.CachedEncoder
	references *semantic.ReferenceTable
	similarity *semantic.Router
	onnx       *classifier.ONNXClassifier
	classifier *classifier.Router
	arbiter    *Arbiter
	eventBus   *hooks.EventBus
}

// Status summarizes which parts of the pipeline are active.
type Status struct {
	Initialized    bool           `json:"initialized"`
	Primary        routing.Method `json:"primary"`
	Similarity     bool           `json:"similarity"`
	Classifier     bool           `json:"classifier"`
	EmbeddingModel string         `json:"embedding_backend"`
	ClassifierKind string         `json:"classifier_backend"`
	References     int            `json:"references"`
	Cache          *cache.Metrics `json:"cache,omitempty"`

	// ClassifierConfidence summarizes the top probabilities seen so far.
	ClassifierConfidence *confidence.Metrics `json:"classifier_confidence,omitempty"`
}

// NewService creates a service. Nothing is loaded until Initialize is called.
//
// Parameters:
//   - cfg: The router configuration, nil for defaults
//   - stateBox: State directory used to locate models, nil to derive it from cfg
//
// Returns:
//   - *Service: A new service instance
func NewService(cfg *config.Config, stateBox *util.StateBox) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{cfg: cfg, stateBox: stateBox}
}

// Initialize loads the detector, the scoring methods and the arbiter.
//
// Parameters:
//   - ctx: Context for encoding the reference phrases
//
// Returns:
//   - error: An error when the configuration is invalid or no method is available
func (s *Service) Initialize(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if s.stateBox == nil {
		sb, err := util.NewStateBoxAt(s.cfg.StateDir)
		if err != nil {
			return fmt.Errorf("failed to resolve state directory: %w", err)
		}
		s.stateBox = sb
	}
	locator := embedding.NewModelLocator(s.stateBox.RootPath())

	s.detector = newDetector(s.cfg.Language)

	thresholds, err := s.cfg.Routing.ThresholdTable()
	if err != nil {
		return fmt.Errorf("failed to build thresholds: %w", err)
	}
	settings, err := s.cfg.Routing.Policy()
	if err != nil {
		return err
	}

	if err := s.initSimilarity(ctx, locator); err != nil {
		log.Warnf("Similarity routing disabled: %v", err)
		s.releaseSimilarity()
	}
	if err := s.initClassifier(locator); err != nil {
		log.Warnf("Classifier routing disabled: %v", err)
		s.releaseClassifier()
	}

	// untyped nils keep a disabled method out of the arbiter
	var similarity, clf Ranker
	if s.similarity != nil {
		similarity = s.similarity
	}
	if s.classifier != nil {
		clf = s.classifier
	}

	policy := Policy{Primary: settings.Primary, Timeout: settings.Timeout, Concurrent: settings.Concurrent}
	arbiter, err := NewArbiter(s.detector, thresholds, similarity, clf, policy)
	if err != nil {
		s.releaseSimilarity()
		s.releaseClassifier()
		return fmt.Errorf("failed to create arbiter: %w", err)
	}
	if s.eventBus != nil {
		arbiter.SetEventBus(s.eventBus)
	}
	s.arbiter = arbiter
	s.initialized = true

	if similarity == nil || clf == nil {
		log.Warnf("Routing degraded: similarity=%v classifier=%v", similarity != nil, clf != nil)
	}
	log.Infof("Routing service initialized (primary: %s, similarity: %v, classifier: %v)",
		policy.Primary, similarity != nil, clf != nil)
	return nil
}

func newDetector(cfg config.LanguageConfig) *language.Detector {
	words := cfg.HinglishWords
	if len(words) == 0 {
		words = language.DefaultHinglishWords
	}
	if len(cfg.ExtraHinglishWords) > 0 {
		merged := make([]string, 0, len(words)+len(cfg.ExtraHinglishWords))
		merged = append(merged, words...)
		words = append(merged, cfg.ExtraHinglishWords...)
	}
	return language.NewDetector(language.Config{
		DevanagariRatio: cfg.DevanagariRatio,
		HinglishRatio:   cfg.HinglishRatio,
		HinglishWords:   words,
	})
}

func (s *Service) initSimilarity(ctx context.Context, locator *embedding.ModelLocator) error {
	ec := s.cfg.Embedding

	var inner embedding.Encoder
	switch ec.Backend {
	case config.BackendNone:
		log.Info("Similarity routing disabled by configuration")
		return nil
	case config.BackendNgram:
		inner = embedding.NewNgramEncoder(ec.NgramDimension, 0, 0)
	case config.BackendONNX:
		modelPath := ec.ModelPath
		if modelPath == "" {
			modelPath = locator.ModelPath(ec.Model)
		}
		vocabPath := ec.VocabPath
		if vocabPath == "" {
			vocabPath = locator.VocabPath(ec.Model)
		}
		libPath := ec.SharedLibraryPath
		if libPath == "" {
			libPath = locator.SharedLibraryPath()
		}
		engine, err := embedding.NewEngine(embedding.Config{ModelPath: modelPath, VocabPath: vocabPath})
		if err != nil {
			return fmt.Errorf("failed to create embedding engine: %w", err)
		}
		if err := engine.Initialize(libPath); err != nil {
			return fmt.Errorf("failed to initialize embedding engine: %w", err)
		}
		s.engine = engine
		inner = engine
	default:
		return fmt.Errorf("unknown embedding backend %q", ec.Backend)
	}

	s.encoder = cache.NewCachedEncoder(inner, ec.CacheSize, ec.CacheTTL)

	rf, err := semantic.LoadReferenceFile(s.cfg.References)
	if err != nil {
		return err
	}
	phrases, err := rf.Phrases()
	if err != nil {
		return err
	}
	// reference vectors bypass the cache so request traffic keeps it warm
	table, err := semantic.BuildReferenceTable(ctx, inner, phrases)
	if err != nil {
		return err
	}
	router, err := semantic.NewRouter(s.encoder, table)
	if err != nil {
		return err
	}

	s.references = table
	s.similarity = router
	log.Infof("Similarity routing ready (%s encoder, %d reference phrases)", ec.Backend, table.Size())
	return nil
}

func (s *Service) initClassifier(locator *embedding.ModelLocator) error {
	cc := s.cfg.Classifier

	labels, err := labelMap(cc.LabelMap)
	if err != nil {
		return err
	}

	var clf classifier.Classifier
	switch cc.Backend {
	case config.BackendNone:
		log.Info("Classifier routing disabled by configuration")
		return nil
	case config.BackendONNX:
		oc := classifier.ONNXConfig{
			ModelPath:         cc.ModelPath,
			VocabPath:         cc.VocabPath,
			LabelsPath:        cc.LabelsPath,
			SharedLibraryPath: cc.SharedLibraryPath,
		}
		if oc.ModelPath == "" {
			oc.ModelPath = locator.ModelPath(cc.Model)
		}
		if oc.VocabPath == "" {
			oc.VocabPath = locator.VocabPath(cc.Model)
		}
		if oc.LabelsPath == "" {
			oc.LabelsPath = locator.LabelsPath(cc.Model)
		}
		if oc.SharedLibraryPath == "" {
			oc.SharedLibraryPath = locator.SharedLibraryPath()
		}
		onnx, err := classifier.NewONNXClassifier(oc)
		if err != nil {
			return err
		}
		s.onnx = onnx
		clf = onnx
	case config.BackendHTTP:
		names := cc.Labels
		if len(names) == 0 {
			names = labelNames(labels)
		}
		httpClf, err := classifier.NewHTTPClassifier(classifier.HTTPConfig{
			Endpoint: cc.Endpoint,
			Labels:   names,
			APIKey:   cc.APIKey,
			Timeout:  cc.Timeout,
		})
		if err != nil {
			return err
		}
		clf = httpClf
	default:
		return fmt.Errorf("unknown classifier backend %q", cc.Backend)
	}

	router, err := classifier.NewRouter(clf, labels)
	if err != nil {
		return err
	}
	s.classifier = router
	log.Infof("Classifier routing ready (%s backend, %d labels)", cc.Backend, len(clf.Labels()))
	return nil
}

// labelMap converts the configured label map. An empty map selects the default.
func labelMap(m map[string]string) (classifier.LabelMap, error) {
	if len(m) == 0 {
		return nil, nil
	}
	out := make(classifier.LabelMap, len(m))
	for label, target := range m {
		h, err := routing.ParseHandlerID(target)
		if err != nil {
			return nil, fmt.Errorf("classifier.label-map[%s]: %w", label, err)
		}
		out[label] = h
	}
	return out, nil
}

func labelNames(m classifier.LabelMap) []string {
	if m == nil {
		m = classifier.DefaultLabelMap()
	}
	names := make([]string, 0, len(m))
	for label := range m {
		names = append(names, label)
	}
	sort.Strings(names)
	return names
}

func (s *Service) releaseSimilarity() {
	if s.engine != nil {
		if err := s.engine.Shutdown(); err != nil {
			log.Warnf("Failed to shut down embedding engine: %v", err)
		}
	}
	s.engine, s.encoder, s.references, s.similarity = nil, nil, nil, nil
}

func (s *Service) releaseClassifier() {
	if s.onnx != nil {
		if err := s.onnx.Shutdown(); err != nil {
			log.Warnf("Failed to shut down classifier: %v", err)
		}
	}
	s.onnx, s.classifier = nil, nil
}

// IsInitialized reports whether Initialize completed.
func (s *Service) IsInitialized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.initialized
}

// Arbiter returns the routing arbiter, or nil before Initialize.
func (s *Service) Arbiter() *Arbiter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.arbiter
}

// Detector returns the language detector, or nil before Initialize.
func (s *Service) Detector() *language.Detector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.detector
}

// Detect returns the language of text. Before Initialize it uses the
// configured word lists directly.
func (s *Service) Detect(text string) routing.Language {
	if d := s.Detector(); d != nil {
		return d.Detect(text)
	}
	return newDetector(s.cfg.Language).Detect(text)
}

// Route decides the handler for text.
func (s *Service) Route(ctx context.Context, text string) (*routing.Decision, error) {
	a := s.Arbiter()
	if a == nil {
		return nil, fmt.Errorf("routing service is not initialized")
	}
	return a.Decide(ctx, text)
}

// Decide is Route under the name the evaluation harness and the assist flow
// expect.
func (s *Service) Decide(ctx context.Context, text string) (*routing.Decision, error) {
	return s.Route(ctx, text)
}

// SetEventBus attaches the bus that receives routing events.
func (s *Service) SetEventBus(bus *hooks.EventBus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eventBus = bus
	if s.arbiter != nil {
		s.arbiter.SetEventBus(bus)
	}
}

// Status reports the active pipeline.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Initialized:    s.initialized,
		Similarity:     s.similarity != nil,
		Classifier:     s.classifier != nil,
		EmbeddingModel: s.cfg.Embedding.Backend,
		ClassifierKind: s.cfg.Classifier.Backend,
	}
	if s.arbiter != nil {
		st.Primary = s.arbiter.Policy().Primary
	}
	if s.references != nil {
		st.References = s.references.Size()
	}
	if s.encoder != nil {
		m := s.encoder.Metrics()
		st.Cache = &m
	}
	if s.classifier != nil {
		m := s.classifier.Scorer().GetMetrics()
		st.ClassifierConfidence = &m
	}
	return st
}

// Shutdown releases model sessions and the ONNX runtime.
func (s *Service) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseSimilarity()
	s.releaseClassifier()
	s.arbiter = nil
	s.initialized = false

	if err := embedding.DestroyRuntime(); err != nil {
		return err
	}
	log.Info("Routing service shut down")
	return nil
}
