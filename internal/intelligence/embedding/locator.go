// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"os"
	"path/filepath"
	"runtime"
)

// LibraryPathEnv overrides the ONNX runtime shared library location.
const LibraryPathEnv = "ONNXRUNTIME_LIB_PATH"

// ModelLocator finds model files and the ONNX runtime library under a
// models directory laid out as <base>/<model>/{model.onnx,vocab.txt,labels.txt}.
type ModelLocator struct {
	// BaseDir is the base directory for model storage
	BaseDir string
}

// NewModelLocator creates a locator rooted at <stateDir>/models. An empty
// stateDir falls back to ~/.bhasharouter.
func NewModelLocator(stateDir string) *ModelLocator {
	if stateDir == "" {
		homeDir, _ := os.UserHomeDir()
		stateDir = filepath.Join(homeDir, ".bhasharouter")
	}
	return &ModelLocator{BaseDir: filepath.Join(stateDir, "models")}
}

// ModelPath returns the path to the ONNX graph of modelName.
func (l *ModelLocator) ModelPath(modelName string) string {
	return filepath.Join(l.BaseDir, modelName, "model.onnx")
}

// VocabPath returns the path to the WordPiece vocabulary of modelName.
func (l *ModelLocator) VocabPath(modelName string) string {
	return filepath.Join(l.BaseDir, modelName, "vocab.txt")
}

// LabelsPath returns the path to the output label list of a classifier model.
func (l *ModelLocator) LabelsPath(modelName string) string {
	return filepath.Join(l.BaseDir, modelName, "labels.txt")
}

// SharedLibraryPath returns the ONNX runtime shared library, checking
// LibraryPathEnv first and then the usual install locations for the OS.
// It returns an empty string when nothing is found.
func (l *ModelLocator) SharedLibraryPath() string {
	if envPath := os.Getenv(LibraryPathEnv); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/usr/local/lib/libonnxruntime.dylib",
			"/opt/homebrew/lib/libonnxruntime.dylib",
			filepath.Join(l.BaseDir, "..", "lib", "libonnxruntime.dylib"),
		}
	case "linux":
		paths = []string{
			"/usr/local/lib/libonnxruntime.so",
			"/usr/lib/libonnxruntime.so",
			"/usr/lib/x86_64-linux-gnu/libonnxruntime.so",
			filepath.Join(l.BaseDir, "..", "lib", "libonnxruntime.so"),
		}
	case "windows":
		paths = []string{
			`C:\Program Files\onnxruntime\lib\onnxruntime.dll`,
			filepath.Join(l.BaseDir, "..", "lib", "onnxruntime.dll"),
		}
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ModelExists reports whether the ONNX graph of modelName is present.
func (l *ModelLocator) ModelExists(modelName string) bool {
	_, err := os.Stat(l.ModelPath(modelName))
	return err == nil
}

// EnsureModelDir creates the directory for modelName.
func (l *ModelLocator) EnsureModelDir(modelName string) error {
	return os.MkdirAll(filepath.Join(l.BaseDir, modelName), 0o755)
}
