// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package embedding

import (
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"
)

var runtimeMu sync.Mutex

// InitRuntime initializes the process-wide ONNX runtime environment.
// It is shared by the sentence encoder and the intent classifier, and calling
// it again after a successful initialization is a no-op.
//
// Parameters:
//   - sharedLibPath: Path to the ONNX runtime shared library, or empty for the default
//
// Returns:
//   - error: Any error encountered during initialization
func InitRuntime(sharedLibPath string) error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if ort.IsInitialized() {
		return nil
	}

	if sharedLibPath != "" {
		ort.SetSharedLibraryPath(sharedLibPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX runtime: %w", err)
	}

	log.Info("ONNX runtime initialized")
	return nil
}

// DestroyRuntime releases the ONNX runtime environment. Sessions must be
// destroyed first.
func DestroyRuntime() error {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if !ort.IsInitialized() {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return fmt.Errorf("failed to destroy ONNX runtime: %w", err)
	}
	return nil
}
