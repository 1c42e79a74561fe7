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

// Package hook attaches location overrides to a process image. Every hook
// re-reads the preferences store, asks the provider for one reading, and
// applies it according to the kind of method it wraps.
package hook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/override"
	"github.com/carverauto/geoshim/pkg/platform"
	"github.com/carverauto/geoshim/pkg/prefs"
	"github.com/carverauto/geoshim/pkg/probe"
	"github.com/carverauto/geoshim/pkg/pump"
)

// Engine installs hooks on allow-listed images.
type Engine struct {
	store    prefs.Reader
	provider *override.Provider
	pump     *pump.Pump
	probe    *probe.Probe
	allowed  map[string]struct{}
	logger   logger.Logger

	mu       sync.Mutex
	attached map[*platform.Image]*imageState
}

// imageState is what the hooks of one image share.
type imageState struct {
	img       *platform.Image
	ctx       context.Context
	mu        sync.RWMutex
	originals map[platform.Key]any
	report    models.AttachReport
}

func (st *imageState) keep(key platform.Key, fn any) {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.originals[key] = fn
}

func (st *imageState) original(key platform.Key) (any, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	fn, ok := st.originals[key]

	return fn, ok
}

// NewEngine wires the engine. allowed names the images Attach acts on.
func NewEngine(store prefs.Reader, provider *override.Provider, p *pump.Pump, allowed []string, log logger.Logger) *Engine {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}

	return &Engine{
		store:    store,
		provider: provider,
		pump:     p,
		probe:    probe.New(log),
		allowed:  set,
		logger:   log,
		attached: make(map[*platform.Image]*imageState),
	}
}

// Allowed reports whether Attach acts on an image with this name.
func (e *Engine) Allowed(name string) bool {
	_, ok := e.allowed[name]
	return ok
}

// Attach probes img and installs one hook per found target. Images outside
// the allow-list are left alone. Attaching the same image twice returns the
// first report without hooking again. Attach never fails; per-target
// problems are recorded in the report.
func (e *Engine) Attach(ctx context.Context, img *platform.Image) models.AttachReport {
	if img == nil {
		e.logger.Warn().Err(errNilImage).Msg("Attach skipped")
		return models.AttachReport{}
	}

	if !e.Allowed(img.Name()) {
		e.logger.Debug().Str("image", img.Name()).Msg("Image not on allow-list, ignoring")
		return models.AttachReport{Image: img.Name()}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if st, ok := e.attached[img]; ok {
		return st.report
	}

	// Hooks run for the image's lifetime, not the caller's.
	st := &imageState{
		img:       img,
		ctx:       context.WithoutCancel(ctx),
		originals: make(map[platform.Key]any),
		report: models.AttachReport{
			Image:    img.Name(),
			Attached: true,
			Failures: make(map[string]string),
		},
	}

	e.logAttachConfig(st)

	st.report.Targets = e.probe.ResolveAll(img, probe.Targets())

	for _, target := range st.report.Targets {
		if !target.Found() {
			continue
		}

		if err := e.installGuarded(st, target); err != nil {
			st.report.Failures[target.Key()] = err.Error()
			e.logger.Warn().Err(err).Str("image", img.Name()).Str("target", target.Key()).Msg("Hook install failed")

			continue
		}

		st.report.Registrations = append(st.report.Registrations, models.Registration{
			ID:          uuid.NewString(),
			Image:       img.Name(),
			Target:      target,
			Phase:       target.Phase,
			InstalledAt: time.Now(),
		})
	}

	e.attached[img] = st

	counts := probe.Summary(st.report.Targets)
	e.logger.Info().
		Str("image", img.Name()).
		Int("hooks", len(st.report.Registrations)).
		Int("not_found", counts[models.StatusNotFound]).
		Int("signature_mismatch", counts[models.StatusSignatureMismatch]).
		Int("failures", len(st.report.Failures)).
		Msg("Attached location hooks")

	return st.report
}

// Report returns the attach report for img, if it was attached.
func (e *Engine) Report(img *platform.Image) (models.AttachReport, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.attached[img]
	if !ok {
		return models.AttachReport{}, false
	}

	return st.report, true
}

// Stop cancels synthetic deliveries that have not run yet.
func (e *Engine) Stop() {
	e.pump.Stop()
}

func (e *Engine) logAttachConfig(st *imageState) {
	cfg, outcome := e.store.Read(st.ctx)

	ev := e.logger.Info().
		Str("image", st.img.Name()).
		Str("outcome", string(outcome)).
		Bool("enabled", cfg.Enabled)

	if cfg.Latitude != nil {
		ev = ev.Float64("latitude", *cfg.Latitude)
	}

	if cfg.Longitude != nil {
		ev = ev.Float64("longitude", *cfg.Longitude)
	}

	ev.Msg("Override config at attach")
}

func (e *Engine) installGuarded(st *imageState, target models.ResolvedTarget) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("install panicked: %v", r)
		}
	}()

	key := platform.K(platform.Surface(target.Surface), platform.Method(target.Method))

	install, ok := rules[key]
	if !ok {
		return fmt.Errorf("%w: %s", errNoRule, target.Key())
	}

	return install(e, st, target, key)
}

// consult is the start of every hook body: reload the store, then compute
// one reading. ok is false when nothing should be rewritten.
func (e *Engine) consult(st *imageState) (models.SyntheticReading, bool) {
	cfg, _ := e.store.Read(st.ctx)

	return e.provider.Current(cfg)
}

// guard runs body and turns any error or panic into a logged fault. The
// caller keeps its original value whenever guard returns false.
func (e *Engine) guard(target models.ResolvedTarget, body func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn().Str("target", target.Key()).Interface("panic", r).Msg("Hook body panicked, passing through")

			ok = false
		}
	}()

	if err := body(); err != nil {
		e.logger.Warn().Err(err).Str("target", target.Key()).Msg("Hook body failed, passing through")
		return false
	}

	return true
}
