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

package models

import (
	"time"
)

// ResolutionStatus is the outcome of probing one target on a process image.
type ResolutionStatus string

const (
	StatusFound             ResolutionStatus = "found"
	StatusNotFound          ResolutionStatus = "not_found"
	StatusSignatureMismatch ResolutionStatus = "signature_mismatch"
)

// HookPhase says whether a hook runs before or after the original method.
type HookPhase string

const (
	PhaseBefore HookPhase = "before"
	PhaseAfter  HookPhase = "after"
)

// TargetKind groups targets by the rule the engine applies to them.
type TargetKind string

const (
	KindAccessor     TargetKind = "accessor"
	KindMutator      TargetKind = "mutator"
	KindComposite    TargetKind = "composite"
	KindRegistration TargetKind = "registration"
	KindBatch        TargetKind = "batch"
	KindDispatch     TargetKind = "dispatch"
	KindAsync        TargetKind = "async"
	// KindHelper marks methods the hooks call but never replace.
	KindHelper TargetKind = "helper"
)

// ResolvedTarget records whether one (surface, method) pair exists on an image.
type ResolvedTarget struct {
	Surface   string           `json:"surface"`
	Method    string           `json:"method"`
	Signature string           `json:"signature"`
	Kind      TargetKind       `json:"kind"`
	Phase     HookPhase        `json:"phase"`
	Status    ResolutionStatus `json:"status"`
	Detail    string           `json:"detail,omitempty"`
}

// Found reports whether the engine should try to hook the target.
func (t ResolvedTarget) Found() bool {
	return t.Status == StatusFound
}

// Key renders the target as surface.method for logs.
func (t ResolvedTarget) Key() string {
	return t.Surface + "." + t.Method
}

// Registration is one installed hook.
type Registration struct {
	ID          string         `json:"id"`
	Image       string         `json:"image"`
	Target      ResolvedTarget `json:"target"`
	Phase       HookPhase      `json:"phase"`
	InstalledAt time.Time      `json:"installed_at"`
}

// AttachReport summarises one attach call.
type AttachReport struct {
	Image         string            `json:"image"`
	Attached      bool              `json:"attached"`
	Targets       []ResolvedTarget  `json:"targets"`
	Registrations []Registration    `json:"registrations"`
	Failures      map[string]string `json:"failures,omitempty"`
}

// RegistrationsFor counts installed hooks on one surface.
func (r *AttachReport) RegistrationsFor(surface string) int {
	n := 0

	for i := range r.Registrations {
		if r.Registrations[i].Target.Surface == surface {
			n++
		}
	}

	return n
}
