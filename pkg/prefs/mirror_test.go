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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/geoshim/pkg/kv"
	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
)

func record(t *testing.T, revision string, cfg models.OverrideConfig) []byte {
	t.Helper()

	data, err := json.Marshal(MirrorRecord{Revision: revision, Config: cfg, UpdatedAt: time.Now()})
	require.NoError(t, err)

	return data
}

func TestMirrorAppliesUpdates(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	cfg := testPrefsConfig(t)
	w, err := NewWriter(cfg, logger.NewTestLogger(), WithCommandRunner(&fakeRunner{}))
	require.NoError(t, err)

	enabled := models.OverrideConfig{Enabled: true, Latitude: float64p(35.6762), Longitude: float64p(139.6503)}

	updates := make(chan []byte, 4)

	store.EXPECT().Get(gomock.Any(), "override").Return(record(t, "rev-1", enabled), true, nil)
	store.EXPECT().Watch(gomock.Any(), "override").Return((<-chan []byte)(updates), nil)

	mirror := NewMirror(store, "override", w, logger.NewTestLogger())
	reader := NewStore(cfg.Path(), logger.NewTestLogger())

	updates <- record(t, "rev-1", enabled)
	updates <- []byte("not json")
	updates <- record(t, "rev-2", models.OverrideConfig{})
	close(updates)

	require.NoError(t, mirror.Run(context.Background()))
	assert.Equal(t, "rev-2", mirror.LastRevision())

	got, outcome := reader.Read(context.Background())
	assert.Equal(t, ReadOK, outcome)
	assert.False(t, got.Enabled)
}

func TestMirrorRejectsOutOfRangeRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	cfg := testPrefsConfig(t)
	w, err := NewWriter(cfg, logger.NewTestLogger(), WithCommandRunner(&fakeRunner{}))
	require.NoError(t, err)

	good := models.OverrideConfig{Enabled: true, Latitude: float64p(52.52), Longitude: float64p(13.405)}
	bad := models.OverrideConfig{Enabled: true, Latitude: float64p(500), Longitude: float64p(13.405)}

	updates := make(chan []byte, 2)
	updates <- record(t, "rev-bad", bad)
	close(updates)

	store.EXPECT().Get(gomock.Any(), "override").Return(record(t, "rev-good", good), true, nil)
	store.EXPECT().Watch(gomock.Any(), "override").Return((<-chan []byte)(updates), nil)

	mirror := NewMirror(store, "override", w, logger.NewTestLogger())
	require.NoError(t, mirror.Run(context.Background()))
	assert.Equal(t, "rev-good", mirror.LastRevision())

	got, outcome := NewStore(cfg.Path(), logger.NewTestLogger()).Read(context.Background())
	assert.Equal(t, ReadOK, outcome)
	assert.InDelta(t, 52.52, *got.Latitude, 1e-9)

	var rec MirrorRecord
	require.ErrorIs(t, decodeRecord(record(t, "rev-bad", bad), &rec), ErrMirrorRecord)
	require.ErrorIs(t, decodeRecord(record(t, "rev-bad", bad), &rec), models.ErrInvalidCoordinate)
}

func TestMirrorInitialValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	cfg := testPrefsConfig(t)
	w, err := NewWriter(cfg, logger.NewTestLogger(), WithCommandRunner(&fakeRunner{}))
	require.NoError(t, err)

	enabled := models.OverrideConfig{Enabled: true, Latitude: float64p(-33.8688), Longitude: float64p(151.2093)}
	updates := make(chan []byte)

	store.EXPECT().Get(gomock.Any(), "override").Return(record(t, "rev-9", enabled), true, nil)
	store.EXPECT().Watch(gomock.Any(), "override").Return((<-chan []byte)(updates), nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	mirror := NewMirror(store, "override", w, logger.NewTestLogger())

	go func() { done <- mirror.Run(ctx) }()

	require.Eventually(t, func() bool { return mirror.LastRevision() == "rev-9" }, time.Second, 10*time.Millisecond)

	got, _ := NewStore(cfg.Path(), logger.NewTestLogger()).Read(context.Background())
	assert.Equal(t, enabled, got)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestMirrorDeleteDisables(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	cfg := testPrefsConfig(t)
	w, err := NewWriter(cfg, logger.NewTestLogger(), WithCommandRunner(&fakeRunner{}))
	require.NoError(t, err)

	updates := make(chan []byte, 1)
	updates <- nil
	close(updates)

	store.EXPECT().Get(gomock.Any(), "override").Return(nil, false, nil)
	store.EXPECT().Watch(gomock.Any(), "override").Return((<-chan []byte)(updates), nil)

	require.NoError(t, NewMirror(store, "override", w, logger.NewTestLogger()).Run(context.Background()))

	got, outcome := NewStore(cfg.Path(), logger.NewTestLogger()).Read(context.Background())
	assert.Equal(t, ReadOK, outcome)
	assert.False(t, got.Enabled)
}

func TestMirrorPublish(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	var stored []byte

	store.EXPECT().
		Put(gomock.Any(), "override", gomock.Any(), time.Duration(0)).
		DoAndReturn(func(_ context.Context, _ string, value []byte, _ time.Duration) error {
			stored = value
			return nil
		})

	mirror := NewMirror(store, "override", nil, logger.NewTestLogger())

	rec, err := mirror.Publish(context.Background(), models.OverrideConfig{Enabled: true, Latitude: float64p(1), Longitude: float64p(2)})
	require.NoError(t, err)
	assert.Len(t, rec.Revision, 36)

	var decoded MirrorRecord
	require.NoError(t, decodeRecord(stored, &decoded))
	assert.Equal(t, rec.Revision, decoded.Revision)
	assert.True(t, decoded.Config.Active())
}
