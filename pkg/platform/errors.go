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

// Package platform models a hooked process image: a named table of surfaces
// and methods that host code calls through and that hooks can replace.
package platform

import (
	"errors"
)

var (
	// ErrSurfaceNotFound is returned when the image does not carry a surface at all.
	ErrSurfaceNotFound = errors.New("surface not present in image")
	// ErrMethodNotFound is returned when the surface exists but lacks the method.
	ErrMethodNotFound = errors.New("method not present on surface")
	// ErrSignatureMismatch is returned when the method exists with a different signature.
	ErrSignatureMismatch = errors.New("method signature mismatch")
	// ErrLooperQuit is returned when posting to a looper that has stopped.
	ErrLooperQuit = errors.New("looper has quit")
	// ErrCancelled marks a scheduled task that was cancelled before it ran.
	ErrCancelled = errors.New("scheduled task cancelled")
	errNilMethod = errors.New("method implementation is nil")
)
