/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package prefs is the configuration channel between the control plane and
// the hooks: a shared-preferences XML file written durably by one side and
// re-read on every consultation by the other.
package prefs

import (
	"errors"
)

var (
	// ErrNoRoot is returned when a document has no <map> root element.
	ErrNoRoot = errors.New("preferences document has no map root")
	// ErrMalformedEntry is returned for an entry the decoder cannot interpret.
	ErrMalformedEntry = errors.New("malformed preferences entry")
	// ErrDocumentTooLarge is returned when the backing file exceeds the read bound.
	ErrDocumentTooLarge = errors.New("preferences document too large")
	// ErrCommitFailed wraps any failure of the durable write itself.
	ErrCommitFailed = errors.New("preferences commit failed")
	// ErrElevatedUnavailable is returned when the elevated command is not installed.
	ErrElevatedUnavailable = errors.New("elevated command not available")
	// ErrMirrorRecord is returned for a KV value that is not a mirror record.
	ErrMirrorRecord = errors.New("invalid mirror record")
)
