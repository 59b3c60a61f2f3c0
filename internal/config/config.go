// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the bhasharouter server.
// It handles loading and parsing the YAML configuration file, applies defaults
// and environment overrides, and turns the routing section into the immutable
// threshold table used by the arbiter.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/traylinx/bhasharouter/internal/routing"
	"gopkg.in/yaml.v3"
)

// Environment variables that override file settings.
const (
	EnvAuthToken         = "BHASHA_AUTH_TOKEN"
	EnvClassifierAPIKey  = "BHASHA_CLASSIFIER_API_KEY"
	EnvArchiveAccessKey  = "BHASHA_ARCHIVE_ACCESS_KEY"
	EnvArchiveSecretKey  = "BHASHA_ARCHIVE_SECRET_KEY"
	EnvStoreDSN          = "BHASHA_STORE_DSN"
	EnvDispatchSecretFmt = "BHASHA_%s_CLIENT_SECRET"
)

// Backend names.
const (
	BackendNone   = "none"
	BackendNgram  = "ngram"
	BackendONNX   = "onnx"
	BackendHTTP   = "http"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// DefaultPort is the API listen port.
const DefaultPort = 8417

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces.
	Host string `yaml:"host" json:"host"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port" json:"port"`

	// StateDir overrides BHASHA_STATE_DIR for models, hooks, logs and run history.
	StateDir string `yaml:"state-dir" json:"state-dir"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether application logs are written to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxTotalSizeMB limits the total size (in MB) of log files under the logs directory.
	// Set to 0 to disable.
	LogsMaxTotalSizeMB int `yaml:"logs-max-total-size-mb" json:"logs-max-total-size-mb"`

	Auth       AuthConfig       `yaml:"auth" json:"-"`
	RateLimit  RateLimitConfig  `yaml:"rate-limit" json:"rate-limit"`
	Hooks      HooksConfig      `yaml:"hooks" json:"hooks"`
	Language   LanguageConfig   `yaml:"language" json:"language"`
	Routing    RoutingConfig    `yaml:"routing" json:"routing"`
	Embedding  EmbeddingConfig  `yaml:"embedding" json:"embedding"`
	Classifier ClassifierConfig `yaml:"classifier" json:"classifier"`
	Dispatch   DispatchConfig   `yaml:"dispatch" json:"dispatch"`
	Evaluation EvaluationConfig `yaml:"evaluation" json:"evaluation"`

	// References is the YAML file of reference phrases per handler.
	References string `yaml:"references" json:"references"`
}

// AuthConfig protects the HTTP API with a bearer token.
type AuthConfig struct {
	// Token is the API bearer token, plaintext or bcrypt hashed. Plaintext
	// values are hashed on load and written back to the file.
	Token string `yaml:"token"`

	// AllowLocalhost skips authentication for direct loopback clients.
	AllowLocalhost bool `yaml:"allow-localhost"`
}

// Enabled reports whether API authentication is configured.
func (a AuthConfig) Enabled() bool {
	return a.Token != ""
}

// RateLimitConfig bounds API requests per client.
type RateLimitConfig struct {
	RequestsPerMinute int `yaml:"requests-per-minute" json:"requests-per-minute"`
	Burst             int `yaml:"burst" json:"burst"`
}

// HooksConfig enables YAML automation hooks on routing events.
type HooksConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Dir     string `yaml:"dir" json:"dir"`
	Watch   bool   `yaml:"watch" json:"watch"`
}

// LanguageConfig tunes the language detector.
type LanguageConfig struct {
	DevanagariRatio float64 `yaml:"devanagari-ratio" json:"devanagari-ratio"`
	HinglishRatio   float64 `yaml:"hinglish-ratio" json:"hinglish-ratio"`
	// HinglishWords replaces the built-in word list when non-empty.
	HinglishWords []string `yaml:"hinglish-words,omitempty" json:"hinglish-words,omitempty"`
	// ExtraHinglishWords extends the active word list.
	ExtraHinglishWords []string `yaml:"extra-hinglish-words,omitempty" json:"extra-hinglish-words,omitempty"`
}

// RoutingConfig selects the arbiter policy and acceptance thresholds.
type RoutingConfig struct {
	Primary    string                      `yaml:"primary" json:"primary"`
	Timeout    time.Duration               `yaml:"timeout" json:"timeout"`
	Concurrent bool                        `yaml:"concurrent" json:"concurrent"`
	Thresholds map[string]ThresholdsConfig `yaml:"thresholds" json:"thresholds"`
}

// ThresholdsConfig is the YAML shape of routing.MethodThresholds.
type ThresholdsConfig struct {
	Default       *float64           `yaml:"default" json:"default,omitempty"`
	Handlers      map[string]float64 `yaml:"handlers,omitempty" json:"handlers,omitempty"`
	LanguageScale map[string]float64 `yaml:"language-scale,omitempty" json:"language-scale,omitempty"`
}

// EmbeddingConfig selects the sentence encoder used by similarity routing.
type EmbeddingConfig struct {
	// Backend is ngram, onnx or none.
	Backend           string        `yaml:"backend" json:"backend"`
	Model             string        `yaml:"model" json:"model"`
	ModelPath         string        `yaml:"model-path" json:"model-path"`
	VocabPath         string        `yaml:"vocab-path" json:"vocab-path"`
	SharedLibraryPath string        `yaml:"shared-library-path" json:"shared-library-path"`
	NgramDimension    int           `yaml:"ngram-dimension" json:"ngram-dimension"`
	CacheSize         int           `yaml:"cache-size" json:"cache-size"`
	CacheTTL          time.Duration `yaml:"cache-ttl" json:"cache-ttl"`
}

// ClassifierConfig selects the intent classifier.
type ClassifierConfig struct {
	// Backend is onnx, http or none.
	Backend           string            `yaml:"backend" json:"backend"`
	Model             string            `yaml:"model" json:"model"`
	ModelPath         string            `yaml:"model-path" json:"model-path"`
	VocabPath         string            `yaml:"vocab-path" json:"vocab-path"`
	LabelsPath        string            `yaml:"labels-path" json:"labels-path"`
	SharedLibraryPath string            `yaml:"shared-library-path" json:"shared-library-path"`
	Endpoint          string            `yaml:"endpoint" json:"endpoint"`
	APIKey            string            `yaml:"api-key" json:"-"`
	Labels            []string          `yaml:"labels,omitempty" json:"labels,omitempty"`
	Timeout           time.Duration     `yaml:"timeout" json:"timeout"`
	LabelMap          map[string]string `yaml:"label-map,omitempty" json:"label-map,omitempty"`
}

// DispatchConfig configures the downstream handler endpoints.
type DispatchConfig struct {
	// ExtractorsDir holds optional <handler>.lua parameter extractors.
	ExtractorsDir string `yaml:"extractors-dir" json:"extractors-dir"`
	// MaxQueryTokens truncates the forwarded query. 0 disables truncation.
	MaxQueryTokens int                         `yaml:"max-query-tokens" json:"max-query-tokens"`
	Handlers       map[string]HandlerEndpoint `yaml:"handlers" json:"handlers"`
}

// HandlerEndpoint is one downstream content generator.
type HandlerEndpoint struct {
	Endpoint string            `yaml:"endpoint" json:"endpoint"`
	Timeout  time.Duration     `yaml:"timeout" json:"timeout"`
	Headers  map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	// OAuth2 client credentials, optional.
	TokenURL     string   `yaml:"token-url" json:"token-url"`
	ClientID     string   `yaml:"client-id" json:"client-id"`
	ClientSecret string   `yaml:"client-secret" json:"-"`
	Scopes       []string `yaml:"scopes,omitempty" json:"scopes,omitempty"`
}

// EvaluationConfig configures the accuracy harness.
type EvaluationConfig struct {
	Corpus  string        `yaml:"corpus" json:"corpus"`
	Workers int           `yaml:"workers" json:"workers"`
	Store   StoreConfig   `yaml:"store" json:"store"`
	Archive ArchiveConfig `yaml:"archive" json:"archive"`
}

// StoreConfig selects where evaluation runs are recorded.
type StoreConfig struct {
	// Driver is sqlite or postgres. Empty disables run history.
	Driver string `yaml:"driver" json:"driver"`
	// DSN is the sqlite file path or the postgres connection string.
	DSN string `yaml:"dsn" json:"-"`
}

// ArchiveConfig uploads evaluation reports to S3-compatible storage.
type ArchiveConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	Endpoint    string `yaml:"endpoint" json:"endpoint"`
	Bucket      string `yaml:"bucket" json:"bucket"`
	Prefix      string `yaml:"prefix" json:"prefix"`
	UseSSL      bool   `yaml:"use-ssl" json:"use-ssl"`
	Compression string `yaml:"compression" json:"compression"`
	AccessKey   string `yaml:"access-key" json:"-"`
	SecretKey   string `yaml:"secret-key" json:"-"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	cfg.Host = ""
	cfg.Port = DefaultPort
	cfg.RateLimit = RateLimitConfig{RequestsPerMinute: 120, Burst: 20}
	cfg.Language = LanguageConfig{DevanagariRatio: 0.30, HinglishRatio: 0.20}
	cfg.Routing.Primary = string(routing.MethodClassifier)
	cfg.Routing.Timeout = 2 * time.Second
	cfg.Embedding = EmbeddingConfig{
		Backend:        BackendNgram,
		Model:          "paraphrase-multilingual-MiniLM-L12-v2",
		NgramDimension: 512,
		CacheSize:      10000,
		CacheTTL:       30 * time.Minute,
	}
	cfg.Classifier = ClassifierConfig{
		Backend: BackendNone,
		Model:   "bhasha-intent-classifier",
		Timeout: 5 * time.Second,
	}
	cfg.Dispatch.MaxQueryTokens = 256
	cfg.References = "data/references.yaml"
	cfg.Evaluation.Corpus = "data/corpus.yaml"
	cfg.Evaluation.Workers = 4
	cfg.Evaluation.Archive.Compression = "gzip"
	cfg.Evaluation.Archive.UseSSL = true
}

// LoadConfig reads a YAML configuration from the given file.
//
// Parameters:
//   - configFile: The path to the YAML configuration file
//
// Returns:
//   - *Config: The loaded configuration
//   - error: An error if the configuration could not be loaded
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional reads YAML from configFile.
// If optional is true and the file is missing or empty, it returns the defaults.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && (os.IsNotExist(err) || errors.Is(err, syscall.EISDIR)) {
			cfg := Default()
			cfg.applyEnv()
			return cfg, cfg.hashAuthToken("")
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	// Set defaults before unmarshal so that absent keys keep defaults.
	cfg.applyDefaults()

	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()
	cfg.Sanitize()

	if err := cfg.hashAuthToken(configFile); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides secrets from the environment.
func (cfg *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAuthToken)); v != "" {
		cfg.Auth.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvClassifierAPIKey)); v != "" {
		cfg.Classifier.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvArchiveAccessKey)); v != "" {
		cfg.Evaluation.Archive.AccessKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvArchiveSecretKey)); v != "" {
		cfg.Evaluation.Archive.SecretKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvStoreDSN)); v != "" {
		cfg.Evaluation.Store.DSN = v
	}
	for name, h := range cfg.Dispatch.Handlers {
		env := fmt.Sprintf(EnvDispatchSecretFmt, strings.ToUpper(name))
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			h.ClientSecret = v
			cfg.Dispatch.Handlers[name] = h
		}
	}
}

// hashAuthToken replaces a plaintext token with its bcrypt hash. When the
// plaintext came from configFile the hash is persisted back to it.
func (cfg *Config) hashAuthToken(configFile string) error {
	token := strings.TrimSpace(cfg.Auth.Token)
	cfg.Auth.Token = token
	if token == "" || looksLikeBcrypt(token) {
		return nil
	}

	hashed, err := hashSecret(token)
	if err != nil {
		return fmt.Errorf("failed to hash auth token: %w", err)
	}
	cfg.Auth.Token = hashed

	if configFile != "" && os.Getenv(EnvAuthToken) == "" {
		// Preserve YAML comments and ordering; update only the nested key.
		_ = SaveConfigPreserveCommentsUpdateNestedScalar(configFile, []string{"auth", "token"}, hashed)
	}
	return nil
}

// Sanitize normalizes whitespace, casing and out-of-range values.
func (cfg *Config) Sanitize() {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if cfg.LogsMaxTotalSizeMB < 0 {
		cfg.LogsMaxTotalSizeMB = 0
	}
	if cfg.RateLimit.RequestsPerMinute < 0 {
		cfg.RateLimit.RequestsPerMinute = 0
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 1
	}

	cfg.Routing.Primary = strings.ToLower(strings.TrimSpace(cfg.Routing.Primary))
	cfg.Embedding.Backend = normalizeBackend(cfg.Embedding.Backend, BackendNgram)
	cfg.Classifier.Backend = normalizeBackend(cfg.Classifier.Backend, BackendNone)
	cfg.Classifier.Endpoint = strings.TrimSpace(cfg.Classifier.Endpoint)
	cfg.Evaluation.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Evaluation.Store.Driver))
	cfg.Evaluation.Archive.Compression = strings.ToLower(strings.TrimSpace(cfg.Evaluation.Archive.Compression))
	if cfg.Evaluation.Workers <= 0 {
		cfg.Evaluation.Workers = 1
	}

	cfg.Language.HinglishWords = normalizeWords(cfg.Language.HinglishWords)
	cfg.Language.ExtraHinglishWords = normalizeWords(cfg.Language.ExtraHinglishWords)

	for name, h := range cfg.Dispatch.Handlers {
		h.Endpoint = strings.TrimSpace(h.Endpoint)
		h.Headers = NormalizeHeaders(h.Headers)
		if h.Timeout <= 0 {
			h.Timeout = 10 * time.Second
		}
		cfg.Dispatch.Handlers[name] = h
	}
}

func normalizeBackend(s, def string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return def
	}
	return s
}

func normalizeWords(words []string) []string {
	if len(words) == 0 {
		return nil
	}
	out := make([]string, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// NormalizeHeaders trims header keys and values and removes empty pairs.
func NormalizeHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	clean := make(map[string]string, len(headers))
	for k, v := range headers {
		key := strings.TrimSpace(k)
		val := strings.TrimSpace(v)
		if key == "" || val == "" {
			continue
		}
		clean[key] = val
	}
	if len(clean) == 0 {
		return nil
	}
	return clean
}

// Validate checks cross-field constraints. It does not touch the filesystem.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", cfg.Port))
	}
	if r := cfg.Language.DevanagariRatio; r <= 0 || r >= 1 {
		errs = append(errs, fmt.Errorf("language.devanagari-ratio must be in (0,1), got %v", r))
	}
	if r := cfg.Language.HinglishRatio; r <= 0 || r >= 1 {
		errs = append(errs, fmt.Errorf("language.hinglish-ratio must be in (0,1), got %v", r))
	}

	if _, err := cfg.Routing.Policy(); err != nil {
		errs = append(errs, err)
	}
	if _, err := cfg.Routing.ThresholdTable(); err != nil {
		errs = append(errs, err)
	}

	switch cfg.Embedding.Backend {
	case BackendNgram, BackendONNX, BackendNone:
	default:
		errs = append(errs, fmt.Errorf("unknown embedding backend %q", cfg.Embedding.Backend))
	}
	switch cfg.Classifier.Backend {
	case BackendNone, BackendONNX:
	case BackendHTTP:
		if cfg.Classifier.Endpoint == "" {
			errs = append(errs, fmt.Errorf("classifier.endpoint is required for the http backend"))
		}
		if len(cfg.Classifier.Labels) == 0 {
			errs = append(errs, fmt.Errorf("classifier.labels is required for the http backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown classifier backend %q", cfg.Classifier.Backend))
	}
	if cfg.Embedding.Backend == BackendNone && cfg.Classifier.Backend == BackendNone {
		errs = append(errs, fmt.Errorf("at least one of embedding.backend and classifier.backend must be enabled"))
	}
	for label, h := range cfg.Classifier.LabelMap {
		if _, err := routing.ParseHandlerID(h); err != nil {
			errs = append(errs, fmt.Errorf("classifier.label-map[%s]: %w", label, err))
		}
	}

	for name, h := range cfg.Dispatch.Handlers {
		id, err := routing.ParseHandlerID(name)
		if err != nil || !id.IsHandler() {
			errs = append(errs, fmt.Errorf("dispatch.handlers: %w: %q", routing.ErrUnknownHandler, name))
			continue
		}
		if h.Endpoint == "" {
			errs = append(errs, fmt.Errorf("dispatch.handlers[%s].endpoint is required", name))
		}
		if h.TokenURL != "" && h.ClientID == "" {
			errs = append(errs, fmt.Errorf("dispatch.handlers[%s].client-id is required with token-url", name))
		}
	}

	switch cfg.Evaluation.Store.Driver {
	case "", StoreSQLite:
	case StorePostgres:
		if cfg.Evaluation.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("evaluation.store.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown evaluation store driver %q", cfg.Evaluation.Store.Driver))
	}

	if a := cfg.Evaluation.Archive; a.Enabled {
		if a.Endpoint == "" || a.Bucket == "" {
			errs = append(errs, fmt.Errorf("evaluation.archive requires endpoint and bucket"))
		}
		switch a.Compression {
		case "gzip", "zstd", "brotli", "none":
		default:
			errs = append(errs, fmt.Errorf("unknown archive compression %q", a.Compression))
		}
	}

	return errors.Join(errs...)
}

// PolicySettings is the validated arbiter policy.
type PolicySettings struct {
	Primary    routing.Method
	Timeout    time.Duration
	Concurrent bool
}

// Policy validates and returns the arbiter policy.
func (r RoutingConfig) Policy() (PolicySettings, error) {
	primary := routing.MethodClassifier
	if r.Primary != "" {
		m, err := routing.ParseMethod(r.Primary)
		if err != nil {
			return PolicySettings{}, fmt.Errorf("routing.primary: %w", err)
		}
		primary = m
	}
	if r.Timeout < 0 {
		return PolicySettings{}, fmt.Errorf("routing.timeout must not be negative")
	}
	return PolicySettings{Primary: primary, Timeout: r.Timeout, Concurrent: r.Concurrent}, nil
}

// ThresholdTable merges the configured thresholds over the defaults and
// freezes them.
func (r RoutingConfig) ThresholdTable() (*routing.ThresholdTable, error) {
	methods := routing.DefaultThresholds()

	for name, tc := range r.Thresholds {
		m, err := routing.ParseMethod(name)
		if err != nil {
			return nil, fmt.Errorf("routing.thresholds: %w", err)
		}
		mt := methods[m]
		if tc.Default != nil {
			mt.Default = *tc.Default
		}
		if len(tc.Handlers) > 0 {
			mt.Handlers = make(map[routing.HandlerID]float64, len(tc.Handlers))
			for h, v := range tc.Handlers {
				id, err := routing.ParseHandlerID(h)
				if err != nil {
					return nil, fmt.Errorf("routing.thresholds.%s: %w", m, err)
				}
				mt.Handlers[id] = v
			}
		}
		if tc.LanguageScale != nil {
			mt.LanguageScale = make(map[routing.Language]float64, len(tc.LanguageScale))
			for l, v := range tc.LanguageScale {
				lang, err := routing.ParseLanguage(l)
				if err != nil {
					return nil, fmt.Errorf("routing.thresholds.%s: %w", m, err)
				}
				mt.LanguageScale[lang] = v
			}
		}
		methods[m] = mt
	}

	return routing.NewThresholdTable(methods)
}
