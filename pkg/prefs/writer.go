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
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
)

const dirMode = 0o771

// syncDirFunc is replaced in tests.
//
//nolint:gochecknoglobals // test seam
var syncDirFunc = syncDir

// CommitResult reports a durable write and the permission repair after it.
type CommitResult struct {
	Committed bool   `json:"committed"`
	Path      string `json:"path"`
	// DirSynced is false when the rename landed but the directory fsync
	// failed; readers already see the new document.
	DirSynced bool `json:"dir_synced"`
	// InProcessWidened is true when the writer's own chmod succeeded.
	InProcessWidened bool `json:"in_process_widened"`
	// ElevatedWidened is true when the elevated command ran successfully.
	ElevatedWidened bool `json:"elevated_widened"`
	// Readable is true when the file passed an access check afterwards.
	Readable  bool   `json:"readable"`
	WidenNote string `json:"widen_note,omitempty"`
}

// Writer is the control-plane side of the channel. Calls are serialized.
type Writer struct {
	cfg    models.PrefsConfig
	mode   os.FileMode
	runner CommandRunner
	logger logger.Logger
	mu     sync.Mutex
}

// WriterOption customizes a Writer.
type WriterOption func(*Writer)

// WithCommandRunner replaces the runner used for the elevated chmod.
func WithCommandRunner(r CommandRunner) WriterOption {
	return func(w *Writer) {
		w.runner = r
	}
}

// NewWriter validates cfg and returns a writer for its path.
func NewWriter(cfg models.PrefsConfig, log logger.Logger, opts ...WriterOption) (*Writer, error) {
	mode, err := cfg.Mode()
	if err != nil {
		return nil, err
	}

	w := &Writer{
		cfg:    cfg,
		mode:   mode,
		runner: execRunner{},
		logger: log,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w, nil
}

// Path returns the backing file location.
func (w *Writer) Path() string {
	return w.cfg.Path()
}

// WriteOverride persists cfg. Enabling writes the coordinates and both flags;
// disabling only flips the flags and leaves the last coordinates in place.
func (w *Writer) WriteOverride(ctx context.Context, cfg models.OverrideConfig) (CommitResult, error) {
	return w.Edit(ctx, func(doc *Document) {
		doc.PutBool(KeyEnabled, cfg.Enabled)
		doc.PutBool(KeySpoofingEnabled, cfg.Enabled)

		if !cfg.Enabled {
			return
		}

		putCoordinate(doc, KeyLatitude, cfg.Latitude)
		putCoordinate(doc, KeyLongitude, cfg.Longitude)

		if cfg.Altitude != nil {
			doc.PutFloat(KeyAltitude, *cfg.Altitude)
		} else {
			doc.Remove(KeyAltitude)
		}
	})
}

func putCoordinate(doc *Document, key string, v *float64) {
	if v == nil {
		doc.Remove(key)
		return
	}

	doc.PutString(key, strconv.FormatFloat(*v, 'f', -1, 64))
}

// Edit applies fn to the current document and commits the result before
// returning. Widening runs after the commit and never turns a committed write
// into an error.
func (w *Writer) Edit(ctx context.Context, fn func(doc *Document)) (CommitResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.cfg.Path()
	result := CommitResult{Path: path}

	doc := w.load(path)
	fn(doc)

	if err := w.commit(path, doc); err != nil {
		w.logger.Error().Err(err).Str("path", path).Msg("Preferences commit failed")
		return result, fmt.Errorf("%w: %w", ErrCommitFailed, err)
	}

	result.Committed = true

	if err := syncDirFunc(filepath.Dir(path)); err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Preferences renamed but directory sync failed")
	} else {
		result.DirSynced = true
	}

	w.widen(ctx, path, &result)

	w.logger.Debug().
		Str("path", path).
		Bool("in_process_widened", result.InProcessWidened).
		Bool("elevated_widened", result.ElevatedWidened).
		Bool("readable", result.Readable).
		Msg("Preferences committed")

	return result, nil
}

// load starts from the existing document so unrelated keys survive an edit.
func (w *Writer) load(path string) *Document {
	raw, err := readBounded(path)
	if err != nil {
		return NewDocument()
	}

	doc, err := Decode(bytes.NewReader(raw))
	if err != nil {
		w.logger.Warn().Err(err).Str("path", path).Msg("Existing preferences unreadable, rewriting from scratch")
		return NewDocument()
	}

	return doc
}

// commit replaces path atomically. The directory fsync is left to the caller.
func (w *Writer) commit(path string, doc *Document) (err error) {
	dir := filepath.Dir(path)

	if err = os.MkdirAll(dir, dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}

	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = doc.Encode(tmp); err != nil {
		return err
	}

	if err = tmp.Sync(); err != nil {
		return err
	}

	if err = tmp.Close(); err != nil {
		return err
	}

	return os.Rename(tmp.Name(), path)
}

func syncDir(dir string) error {
	fd, err := unix.Open(dir, unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return fmt.Errorf("open dir %s: %w", dir, err)
	}
	defer func() { _ = unix.Close(fd) }()

	if err := unix.Fsync(fd); err != nil && !errors.Is(err, unix.EINVAL) {
		return fmt.Errorf("fsync dir %s: %w", dir, err)
	}

	return nil
}
