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

package control

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/geoshim/pkg/kv"
	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/prefs"
)

type noopRunner struct{}

func (noopRunner) LookPath(string) (string, error) { return "", errors.New("not installed") }

func (noopRunner) Run(context.Context, string, ...string) ([]byte, error) { return nil, nil }

func newController(t *testing.T, opts ...Option) (*Controller, *prefs.Store) {
	t.Helper()

	cfg := models.PrefsConfig{
		Dir:      filepath.Join(t.TempDir(), "shared_prefs"),
		Name:     models.DefaultPrefsName,
		FileMode: "0644",
	}

	log := logger.NewTestLogger()

	w, err := prefs.NewWriter(cfg, log, prefs.WithCommandRunner(noopRunner{}))
	require.NoError(t, err)

	store := prefs.NewStore(cfg.Path(), log)

	return New(w, log, append([]Option{WithReader(store)}, opts...)...), store
}

func TestStartStopRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, store := newController(t)

	committed, err := c.StartOverride(ctx, models.Coordinate{Latitude: 51.5074, Longitude: -0.1278})
	require.NoError(t, err)
	assert.True(t, committed)

	cfg, outcome := store.Read(ctx)
	assert.Equal(t, prefs.ReadOK, outcome)
	assert.True(t, cfg.Active())
	assert.InDelta(t, 51.5074, *cfg.Latitude, 1e-9)
	assert.InDelta(t, -0.1278, *cfg.Longitude, 1e-9)
	assert.Nil(t, cfg.Altitude)

	committed, err = c.StopOverride(ctx)
	require.NoError(t, err)
	assert.True(t, committed)

	cfg, outcome = c.Status(ctx)
	assert.Equal(t, prefs.ReadOK, outcome)
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.Active())
}

func TestStartWithAltitude(t *testing.T) {
	ctx := context.Background()
	c, store := newController(t)

	alt := float32(35.5)

	_, err := c.StartOverride(ctx, models.Coordinate{Latitude: 48.8566, Longitude: 2.3522, Altitude: &alt})
	require.NoError(t, err)

	cfg, _ := store.Read(ctx)
	require.NotNil(t, cfg.Altitude)
	assert.InDelta(t, 35.5, float64(*cfg.Altitude), 1e-6)
}

func TestStartRejectsInvalidCoordinate(t *testing.T) {
	c, store := newController(t)

	committed, err := c.StartOverride(context.Background(), models.Coordinate{Latitude: 91, Longitude: 0})
	require.ErrorIs(t, err, ErrInvalidCoordinate)
	assert.False(t, committed)

	_, outcome := store.Read(context.Background())
	assert.Equal(t, prefs.ReadDisabled, outcome)
}

func TestStatusWithoutReader(t *testing.T) {
	c := New(nil, logger.NewTestLogger())

	cfg, outcome := c.Status(context.Background())
	assert.Equal(t, prefs.ReadDisabled, outcome)
	assert.False(t, cfg.Enabled)
}

func TestStartPublishesToMirror(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	store.EXPECT().Put(gomock.Any(), "override", gomock.Any(), gomock.Any()).Return(nil)

	mirror := prefs.NewMirror(store, "override", nil, logger.NewTestLogger())
	c, _ := newController(t, WithPublisher(mirror))

	committed, err := c.StartOverride(context.Background(), models.Coordinate{Latitude: 51.5074, Longitude: -0.1278})
	require.NoError(t, err)
	assert.True(t, committed)
}

func TestPublishFailureDoesNotFailCommit(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	store.EXPECT().Put(gomock.Any(), "override", gomock.Any(), gomock.Any()).Return(errors.New("nats down"))

	c, _ := newController(t, WithPublisher(prefs.NewMirror(store, "override", nil, logger.NewTestLogger())))

	committed, err := c.StopOverride(context.Background())
	require.NoError(t, err)
	assert.True(t, committed)
}

func TestParseCoordinate(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    models.Coordinate
		wantAlt float32
		wantErr bool
	}{
		{name: "pair", in: "51.5074,-0.1278", want: models.Coordinate{Latitude: 51.5074, Longitude: -0.1278}},
		{name: "spaces", in: " 40.7128 , -74.0060 \n", want: models.Coordinate{Latitude: 40.7128, Longitude: -74.006}},
		{name: "altitude", in: "1,2,300", want: models.Coordinate{Latitude: 1, Longitude: 2}, wantAlt: 300},
		{name: "one value", in: "51.5", wantErr: true},
		{name: "text", in: "north,south", wantErr: true},
		{name: "out of range", in: "10,200", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCoordinate(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidCoordinate)
				return
			}

			require.NoError(t, err)
			assert.InDelta(t, tt.want.Latitude, got.Latitude, 1e-9)
			assert.InDelta(t, tt.want.Longitude, got.Longitude, 1e-9)

			if tt.wantAlt != 0 {
				require.NotNil(t, got.Altitude)
				assert.InDelta(t, float64(tt.wantAlt), float64(*got.Altitude), 1e-6)
			} else {
				assert.Nil(t, got.Altitude)
			}
		})
	}
}
