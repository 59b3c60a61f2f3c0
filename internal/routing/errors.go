// Copyright 2026 The switchAILocal Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package routing

import "errors"

var (
	// ErrCapabilityUnavailable wraps any failure of the embedding encoder or
	// the intent classifier, timeouts included.
	ErrCapabilityUnavailable = errors.New("routing capability unavailable")

	// ErrNoRoutingMethod is returned when neither scoring method could be used.
	ErrNoRoutingMethod = errors.New("no routing method available")

	// ErrEmptyInput marks blank requests.
	ErrEmptyInput = errors.New("empty input")

	// ErrUnknownHandler is returned for a handler name outside the closed set.
	ErrUnknownHandler = errors.New("unknown handler")

	// ErrUnknownLanguage is returned for a language name outside the closed set.
	ErrUnknownLanguage = errors.New("unknown language")
)
