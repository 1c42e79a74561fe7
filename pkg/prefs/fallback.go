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
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/carverauto/geoshim/pkg/models"
)

// Each field is matched on its own so a file truncated or corrupted
// elsewhere still yields the fields that are intact.
//
//nolint:gochecknoglobals // compiled once
var (
	spoofingEnabledPattern = regexp.MustCompile(
		`name="spoofing_enabled"(?:\s+value="(true|false)"\s*/>|\s*>\s*(true|false)\s*</boolean>)`)
	enabledPattern = regexp.MustCompile(
		`name="enabled"(?:\s+value="(true|false)"\s*/>|\s*>\s*(true|false)\s*</boolean>)`)
	latitudePattern  = regexp.MustCompile(`name="latitude">([^<]+)</string>`)
	longitudePattern = regexp.MustCompile(`name="longitude">([^<]+)</string>`)
	altitudePattern  = regexp.MustCompile(`name="altitude"\s+value="([^"]+)"`)
)

// Scan extracts the override fields from raw file text without parsing it as
// a document. ok is false when no enabled flag can be found.
func Scan(raw []byte) (models.OverrideConfig, bool) {
	enabled, ok := matchBool(spoofingEnabledPattern, raw)
	if !ok {
		enabled, ok = matchBool(enabledPattern, raw)
	}

	if !ok {
		return models.OverrideConfig{}, false
	}

	if !enabled {
		return models.OverrideConfig{}, true
	}

	cfg := models.OverrideConfig{Enabled: true}

	if m := latitudePattern.FindSubmatch(raw); m != nil {
		cfg.Latitude = parseCoordinate(string(m[1]))
	}

	if m := longitudePattern.FindSubmatch(raw); m != nil {
		cfg.Longitude = parseCoordinate(string(m[1]))
	}

	if m := altitudePattern.FindSubmatch(raw); m != nil {
		if alt, err := strconv.ParseFloat(string(m[1]), 32); err == nil {
			cfg.Altitude = models.NonZeroFloat32(float32(alt))
		}
	}

	return cfg, true
}

func matchBool(re *regexp.Regexp, raw []byte) (value, ok bool) {
	m := re.FindSubmatch(raw)
	if m == nil {
		return false, false
	}

	v := m[1]
	if len(v) == 0 {
		v = m[2]
	}

	return string(v) == "true", true
}

// logDiagnostics records why the structured read may have come back empty.
func (s *Store) logDiagnostics() {
	ev := s.logger.Debug()
	if ev == nil {
		return
	}

	dir := filepath.Dir(s.path)
	info, statErr := os.Stat(s.path)

	ev = ev.Str("path", s.path).
		Bool("exists", statErr == nil).
		Bool("readable", unix.Access(s.path, unix.R_OK) == nil)

	if statErr == nil {
		ev = ev.Str("mode", info.Mode().Perm().String()).Int64("size", info.Size())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		ev.Err(err).Str("dir", dir).Msg("Preferences directory not listable")
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}

	ev.Str("dir", dir).Strs("files", names).Msg("Preferences fallback diagnostics")
}
