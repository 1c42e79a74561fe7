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

//go:generate mockgen -destination=mock_reader.go -package=prefs github.com/carverauto/geoshim/pkg/prefs Reader

package prefs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
)

// maxDocumentSize bounds every read of the backing file.
const maxDocumentSize = 64 << 10

// ReadOutcome says which path produced a configuration.
type ReadOutcome string

const (
	// ReadOK means the structured read returned a non-empty document.
	ReadOK ReadOutcome = "read_ok"
	// ReadDegraded means the raw-text fallback produced the result.
	ReadDegraded ReadOutcome = "degraded"
	// ReadDisabled means both paths failed and the safe default was returned.
	ReadDisabled ReadOutcome = "disabled"
)

// Reader is the hook side of the channel. Read never fails; every failure
// degrades to a disabled configuration.
type Reader interface {
	Read(ctx context.Context) (models.OverrideConfig, ReadOutcome)
}

// Store reads the backing file. It holds no cached view: every Read goes back
// to disk.
type Store struct {
	path   string
	logger logger.Logger
}

var _ Reader = (*Store)(nil)

// NewStore returns a reader for the file at path.
func NewStore(path string, log logger.Logger) *Store {
	return &Store{path: path, logger: log}
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Read reloads the backing file and returns the current operator intent.
func (s *Store) Read(ctx context.Context) (cfg models.OverrideConfig, outcome ReadOutcome) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn().Interface("panic", r).Str("path", s.path).Msg("Preferences read panicked")

			cfg, outcome = models.OverrideConfig{}, ReadDisabled
		}
	}()

	if ctx.Err() != nil {
		return models.OverrideConfig{}, ReadDisabled
	}

	raw, readErr := readBounded(s.path)

	if readErr == nil {
		doc, err := Decode(bytes.NewReader(raw))

		switch {
		case err != nil:
			s.logger.Debug().Err(err).Str("path", s.path).Msg("Structured preferences read failed, scanning raw text")
		case doc.Len() == 0:
			s.logger.Debug().Str("path", s.path).Msg("Structured preferences read returned no keys, scanning raw text")
		default:
			return ConfigFromDocument(doc), ReadOK
		}
	} else {
		s.logger.Debug().Err(readErr).Str("path", s.path).Msg("Preferences file unreadable")
	}

	s.logDiagnostics()

	if readErr != nil {
		return models.OverrideConfig{}, ReadDisabled
	}

	cfg, ok := Scan(raw)
	if !ok {
		s.logger.Debug().Str("path", s.path).Msg("Raw scan found no enabled flag")
		return models.OverrideConfig{}, ReadDisabled
	}

	return cfg, ReadDegraded
}

func readBounded(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	data, err := io.ReadAll(io.LimitReader(f, maxDocumentSize+1))
	if err != nil {
		return nil, err
	}

	if len(data) > maxDocumentSize {
		return nil, fmt.Errorf("%w: %s", ErrDocumentTooLarge, path)
	}

	return data, nil
}

// ConfigFromDocument interprets a structured document. spoofing_enabled wins
// over enabled when both are present.
func ConfigFromDocument(doc *Document) models.OverrideConfig {
	enabled, ok := doc.Bool(KeySpoofingEnabled)
	if !ok {
		enabled, _ = doc.Bool(KeyEnabled)
	}

	if !enabled {
		return models.OverrideConfig{}
	}

	cfg := models.OverrideConfig{Enabled: true}

	if s, ok := doc.String(KeyLatitude); ok {
		cfg.Latitude = parseCoordinate(s)
	}

	if s, ok := doc.String(KeyLongitude); ok {
		cfg.Longitude = parseCoordinate(s)
	}

	if alt, ok := doc.Float(KeyAltitude); ok {
		cfg.Altitude = models.NonZeroFloat32(alt)
	}

	return cfg
}

func parseCoordinate(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}

	return models.NonZeroFloat64(v)
}
