// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/traylinx/bhasharouter/internal/routing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv(EnvAuthToken, "")
	cfg, err := LoadConfig(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Host != "" || cfg.Port != DefaultPort {
		t.Errorf("Unexpected listen defaults: %q:%d", cfg.Host, cfg.Port)
	}
	if cfg.Routing.Primary != "classifier" || cfg.Routing.Timeout != 2*time.Second {
		t.Errorf("Unexpected routing defaults: %+v", cfg.Routing)
	}
	if cfg.Embedding.Backend != BackendNgram || cfg.Classifier.Backend != BackendNone {
		t.Errorf("Unexpected backends: %s/%s", cfg.Embedding.Backend, cfg.Classifier.Backend)
	}
	if cfg.Auth.Enabled() {
		t.Error("Auth should be disabled without a token")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}

	table, err := cfg.Routing.ThresholdTable()
	if err != nil {
		t.Fatal(err)
	}
	if got := table.Threshold(routing.MethodSimilarity, routing.HandlerPoem, routing.Hinglish); got < 0.2549 || got > 0.2551 {
		t.Errorf("Expected scaled hinglish similarity threshold 0.255, got %v", got)
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv(EnvAuthToken, "")
	path := writeConfig(t, `
port: 9000
routing:
  primary: Similarity
  timeout: 750ms
  concurrent: true
  thresholds:
    similarity:
      default: 0.4
      handlers:
        food_locator: 0.5
      language-scale: {}
    classifier:
      handlers:
        vividh_bharti: 0.7
language:
  extra-hinglish-words: ["  Gaana ", "gaana", ""]
embedding:
  backend: ONNX
classifier:
  backend: http
  endpoint: http://localhost:9100/classify
  labels: [story_telling, other]
dispatch:
  handlers:
    food_locator:
      endpoint: " http://localhost:9200/food "
      headers:
        " X-Team ": " bhasha "
        "X-Empty": ""
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	policy, _ := cfg.Routing.Policy()
	if policy.Primary != routing.MethodSimilarity || policy.Timeout != 750*time.Millisecond || !policy.Concurrent {
		t.Errorf("Unexpected policy: %+v", policy)
	}

	table, err := cfg.Routing.ThresholdTable()
	if err != nil {
		t.Fatal(err)
	}
	if got := table.Threshold(routing.MethodSimilarity, routing.HandlerRestaurant, routing.Hinglish); got != 0.5 {
		t.Errorf("Expected unscaled 0.5, got %v", got)
	}
	if got := table.Threshold(routing.MethodSimilarity, routing.HandlerStory, routing.English); got != 0.4 {
		t.Errorf("Expected default 0.4, got %v", got)
	}
	if got := table.Threshold(routing.MethodClassifier, routing.HandlerMusic, routing.English); got != 0.7 {
		t.Errorf("Expected 0.7, got %v", got)
	}
	if got := table.Threshold(routing.MethodClassifier, routing.HandlerMusic+"x", routing.English); got < 1e9 {
		t.Errorf("Unknown handler should never pass, got %v", got)
	}

	if len(cfg.Language.ExtraHinglishWords) != 1 || cfg.Language.ExtraHinglishWords[0] != "gaana" {
		t.Errorf("Words were not normalized: %v", cfg.Language.ExtraHinglishWords)
	}
	if cfg.Embedding.Backend != BackendONNX {
		t.Errorf("Backend was not normalized: %s", cfg.Embedding.Backend)
	}
	food := cfg.Dispatch.Handlers["food_locator"]
	if food.Endpoint != "http://localhost:9200/food" || food.Timeout != 10*time.Second {
		t.Errorf("Unexpected dispatch endpoint: %+v", food)
	}
	if len(food.Headers) != 1 || food.Headers["X-Team"] != "bhasha" {
		t.Errorf("Headers were not normalized: %v", food.Headers)
	}
}

func TestLoadConfig_AuthTokenHashedAndPersisted(t *testing.T) {
	t.Setenv(EnvAuthToken, "")
	path := writeConfig(t, "# api settings\nport: 8417\nauth:\n  # bearer token\n  token: s3cret\n")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if !looksLikeBcrypt(cfg.Auth.Token) {
		t.Fatalf("Token was not hashed: %q", cfg.Auth.Token)
	}
	if !VerifySecret(cfg.Auth.Token, "s3cret") || VerifySecret(cfg.Auth.Token, "wrong") {
		t.Error("VerifySecret mismatch")
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "s3cret") {
		t.Error("Plaintext token was not replaced in the file")
	}
	if !strings.Contains(string(data), "# bearer token") {
		t.Error("Comments were not preserved")
	}

	// the persisted hash is loaded as-is
	again, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if again.Auth.Token != cfg.Auth.Token {
		t.Error("Hashed token should not be re-hashed")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv(EnvAuthToken, "from-env")
	t.Setenv(EnvClassifierAPIKey, "clf-key")
	t.Setenv("BHASHA_LEFTOVER_CHEF_CLIENT_SECRET", "chef-secret")

	path := writeConfig(t, `
dispatch:
  handlers:
    leftover_chef:
      endpoint: http://localhost:9300
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifySecret(cfg.Auth.Token, "from-env") {
		t.Error("Env token was not applied")
	}
	if cfg.Classifier.APIKey != "clf-key" {
		t.Error("Classifier key was not applied")
	}
	if cfg.Dispatch.Handlers["leftover_chef"].ClientSecret != "chef-secret" {
		t.Error("Dispatch client secret was not applied")
	}

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "token") {
		t.Error("Env tokens must not be written to the config file")
	}
}

func TestLoadConfigOptional(t *testing.T) {
	t.Setenv(EnvAuthToken, "")
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("Optional missing config should not fail: %v", err)
	}
	if cfg.Port != DefaultPort {
		t.Error("Expected defaults")
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Required missing config should fail")
	}
	if _, err := LoadConfig(writeConfig(t, "port: [")); err == nil {
		t.Error("Malformed YAML should fail")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"primary", func(c *Config) { c.Routing.Primary = "fused" }, "routing.primary"},
		{"threshold range", func(c *Config) {
			v := 1.5
			c.Routing.Thresholds = map[string]ThresholdsConfig{"classifier": {Default: &v}}
		}, "outside method range"},
		{"threshold handler", func(c *Config) {
			c.Routing.Thresholds = map[string]ThresholdsConfig{"similarity": {Handlers: map[string]float64{"weather": 0.3}}}
		}, "unknown handler"},
		{"no backend", func(c *Config) { c.Embedding.Backend = BackendNone }, "at least one"},
		{"http endpoint", func(c *Config) { c.Classifier.Backend = BackendHTTP }, "classifier.endpoint"},
		{"label map", func(c *Config) { c.Classifier.LabelMap = map[string]string{"x": "weather"} }, "label-map"},
		{"dispatch handler", func(c *Config) {
			c.Dispatch.Handlers = map[string]HandlerEndpoint{"clarification_needed": {Endpoint: "http://x"}}
		}, "dispatch.handlers"},
		{"store", func(c *Config) { c.Evaluation.Store.Driver = "mysql" }, "store driver"},
		{"archive", func(c *Config) { c.Evaluation.Archive.Enabled = true }, "endpoint and bucket"},
		{"ratio", func(c *Config) { c.Language.HinglishRatio = 0 }, "hinglish-ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestSaveConfigPreserveCommentsUpdateNestedScalar(t *testing.T) {
	path := writeConfig(t, "# top comment\nport: 8417\nevaluation:\n  # corpus file\n  corpus: data/corpus.yaml\n")

	if err := SaveConfigPreserveCommentsUpdateNestedScalar(path, []string{"evaluation", "store", "driver"}, "sqlite"); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Evaluation.Store.Driver != StoreSQLite || cfg.Evaluation.Corpus != "data/corpus.yaml" {
		t.Errorf("Unexpected evaluation config: %+v", cfg.Evaluation)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "# top comment") || !strings.Contains(string(data), "# corpus file") {
		t.Errorf("Comments were lost:\n%s", data)
	}

	if err := SaveConfigPreserveCommentsUpdateNestedScalar(path, nil, "x"); err == nil {
		t.Error("Expected error for empty path")
	}
}

func TestExampleConfigIsValid(t *testing.T) {
	t.Setenv(EnvAuthToken, "")
	t.Setenv(EnvStoreDSN, "")
	cfg, err := LoadConfig(filepath.Join("..", "..", "config.example.yaml"))
	if err != nil {
		t.Fatalf("Failed to load example config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Example config does not validate: %v", err)
	}
	if cfg.Auth.Enabled() {
		t.Error("Example config must not ship a token")
	}

	want := Default()
	if cfg.Port != want.Port || cfg.Routing.Primary != want.Routing.Primary || cfg.Embedding.CacheTTL != want.Embedding.CacheTTL {
		t.Errorf("Example config drifted from the defaults: %+v", cfg)
	}
	table, err := cfg.Routing.ThresholdTable()
	if err != nil {
		t.Fatalf("ThresholdTable failed: %v", err)
	}
	if got := table.Threshold(routing.MethodSimilarity, routing.HandlerPoem, routing.Hinglish); got < 0.2549 || got > 0.2551 {
		t.Errorf("Expected scaled hinglish similarity threshold 0.255, got %v", got)
	}
}
