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

package prefs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carverauto/geoshim/pkg/kv"
	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
)

// MirrorRecord is the KV value a remote control plane publishes.
type MirrorRecord struct {
	Revision  string                `json:"revision"`
	Config    models.OverrideConfig `json:"config"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// Mirror copies operator intent from a KV key into the local backing file.
type Mirror struct {
	store  kv.KVStore
	key    string
	writer *Writer
	logger logger.Logger

	mu           sync.Mutex
	lastRevision string
}

// NewMirror returns a mirror of key in store, committed through writer.
func NewMirror(store kv.KVStore, key string, writer *Writer, log logger.Logger) *Mirror {
	return &Mirror{store: store, key: key, writer: writer, logger: log}
}

// Publish stores cfg under the mirror key with a fresh revision.
func (m *Mirror) Publish(ctx context.Context, cfg models.OverrideConfig) (MirrorRecord, error) {
	rec := MirrorRecord{
		Revision:  uuid.NewString(),
		Config:    cfg,
		UpdatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return MirrorRecord{}, err
	}

	if err := m.store.Put(ctx, m.key, data, 0); err != nil {
		return MirrorRecord{}, fmt.Errorf("publish override: %w", err)
	}

	return rec, nil
}

// Start runs the mirror in the background until ctx ends.
func (m *Mirror) Start(ctx context.Context) {
	go func() {
		if err := m.Run(ctx); err != nil && ctx.Err() == nil {
			m.logger.Warn().Err(err).Str("key", m.key).Msg("Override mirror stopped")
		}
	}()
}

// Run applies the current value, then every update, until ctx ends or the
// watch closes. A deleted key disables the override.
func (m *Mirror) Run(ctx context.Context) error {
	if data, found, err := m.store.Get(ctx, m.key); err != nil {
		m.logger.Warn().Err(err).Str("key", m.key).Msg("Initial mirror read failed")
	} else if found {
		m.apply(ctx, data)
	}

	ch, err := m.store.Watch(ctx, m.key)
	if err != nil {
		return fmt.Errorf("watch %s: %w", m.key, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}

			m.apply(ctx, data)
		}
	}
}

func (m *Mirror) apply(ctx context.Context, data []byte) {
	var rec MirrorRecord

	if len(data) == 0 {
		rec.Revision = "deleted"
	} else if err := decodeRecord(data, &rec); err != nil {
		m.logger.Warn().Err(err).Str("key", m.key).Msg("Ignoring invalid mirror record")
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.Revision == m.lastRevision {
		return
	}

	if _, err := m.writer.WriteOverride(ctx, rec.Config); err != nil {
		m.logger.Error().Err(err).Str("revision", rec.Revision).Msg("Failed to commit mirrored override")
		return
	}

	m.lastRevision = rec.Revision

	m.logger.Info().
		Str("revision", rec.Revision).
		Bool("enabled", rec.Config.Enabled).
		Msg("Applied mirrored override")
}

func decodeRecord(data []byte, rec *MirrorRecord) error {
	if err := json.Unmarshal(data, rec); err != nil {
		return fmt.Errorf("%w: %w", ErrMirrorRecord, err)
	}

	if rec.Revision == "" {
		return fmt.Errorf("%w: missing revision", ErrMirrorRecord)
	}

	if err := rec.Config.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrMirrorRecord, err)
	}

	return nil
}

// LastRevision returns the revision most recently committed.
func (m *Mirror) LastRevision() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastRevision
}
