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

// Package probe resolves which location surfaces a process image carries.
package probe

import (
	"errors"
	"fmt"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/platform"
)

// Descriptor names one (surface, method, signature) the engine may hook.
type Descriptor struct {
	Surface   platform.Surface
	Method    platform.Method
	Kind      models.TargetKind
	Phase     models.HookPhase
	Signature string
	lookup    func(img *platform.Image) error
}

// Key returns the table key of the descriptor.
func (d Descriptor) Key() platform.Key {
	return platform.K(d.Surface, d.Method)
}

func describe[F any](s platform.Surface, m platform.Method, kind models.TargetKind, phase models.HookPhase) Descriptor {
	key := platform.K(s, m)

	return Descriptor{
		Surface:   s,
		Method:    m,
		Kind:      kind,
		Phase:     phase,
		Signature: platform.SignatureOf[F](),
		lookup: func(img *platform.Image) error {
			_, err := platform.Lookup[F](img, key)
			return err
		},
	}
}

// Probe resolves descriptors against images. It holds no per-image state.
type Probe struct {
	logger logger.Logger
}

// New returns a probe.
func New(log logger.Logger) *Probe {
	return &Probe{logger: log}
}

// Resolve checks one descriptor. Absence and signature differences are
// outcomes, not errors.
func (p *Probe) Resolve(img *platform.Image, d Descriptor) (target models.ResolvedTarget) {
	target = models.ResolvedTarget{
		Surface:   string(d.Surface),
		Method:    string(d.Method),
		Signature: d.Signature,
		Kind:      d.Kind,
		Phase:     d.Phase,
		Status:    models.StatusNotFound,
	}

	defer func() {
		if r := recover(); r != nil {
			target.Status = models.StatusNotFound
			target.Detail = fmt.Sprintf("probe panicked: %v", r)
		}
	}()

	if img == nil || d.lookup == nil {
		target.Detail = "nothing to probe"
		return target
	}

	err := d.lookup(img)

	switch {
	case err == nil:
		target.Status = models.StatusFound
	case errors.Is(err, platform.ErrSignatureMismatch):
		target.Status = models.StatusSignatureMismatch
		target.Detail = err.Error()
	default:
		target.Detail = err.Error()
	}

	return target
}

// ResolveAll resolves every descriptor, in order.
func (p *Probe) ResolveAll(img *platform.Image, descriptors []Descriptor) []models.ResolvedTarget {
	out := make([]models.ResolvedTarget, 0, len(descriptors))

	for _, d := range descriptors {
		t := p.Resolve(img, d)

		p.logger.Debug().
			Str("target", t.Key()).
			Str("status", string(t.Status)).
			Str("detail", t.Detail).
			Msg("Probed target")

		out = append(out, t)
	}

	return out
}

// Summary counts targets per status.
func Summary(targets []models.ResolvedTarget) map[models.ResolutionStatus]int {
	counts := make(map[models.ResolutionStatus]int, 3)
	for _, t := range targets {
		counts[t.Status]++
	}

	return counts
}
