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

package hook

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/override"
	"github.com/carverauto/geoshim/pkg/platform"
	"github.com/carverauto/geoshim/pkg/prefs"
	"github.com/carverauto/geoshim/pkg/pump"
)

const (
	appName    = "com.example.maps"
	london     = 51.5074
	londonLon  = -0.1278
	berlinLat  = 52.52
	berlinLon  = 13.405
	pumpDelay  = 10 * time.Millisecond
	waitWindow = 2 * time.Second
)

//nolint:gochecknoglobals // fixed test instant
var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time         { return fixedNow }
func (fixedClock) Elapsed() time.Duration { return 42 * time.Second }

// stubStore is a prefs.Reader whose config can change between reads.
type stubStore struct {
	mu    sync.Mutex
	cfg   models.OverrideConfig
	reads atomic.Int32
}

func (s *stubStore) Read(_ context.Context) (models.OverrideConfig, prefs.ReadOutcome) {
	s.reads.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cfg.Enabled {
		return s.cfg, prefs.ReadDisabled
	}

	return s.cfg, prefs.ReadOK
}

func (s *stubStore) set(cfg models.OverrideConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg = cfg
}

func enabledAt(lat, lon float64) models.OverrideConfig {
	return models.OverrideConfig{
		Enabled:   true,
		Latitude:  models.NonZeroFloat64(lat),
		Longitude: models.NonZeroFloat64(lon),
	}
}

type harness struct {
	main     *platform.Looper
	device   *platform.Device
	img      *platform.Image
	store    *stubStore
	engine   *Engine
	consumer *platform.Consumer
}

func newHarness(t *testing.T, profile platform.Profile, cfg models.OverrideConfig) *harness {
	t.Helper()

	return newHarnessWithClock(t, profile, cfg, fixedClock{})
}

// newHarnessWithClock uses clock for synthetic timestamps; nil means the real clocks.
func newHarnessWithClock(t *testing.T, profile platform.Profile, cfg models.OverrideConfig, clock override.Clock) *harness {
	t.Helper()

	main := platform.NewLooper("main", 0)
	t.Cleanup(main.Quit)

	device := platform.NewDevice()
	img := platform.NewImage(appName, profile, device, main)
	store := &stubStore{cfg: cfg}

	log := logger.NewTestLogger()
	engine := NewEngine(store, override.NewProvider(clock), pump.New(pumpDelay, log), []string{appName}, log)
	t.Cleanup(engine.Stop)

	return &harness{
		main:     main,
		device:   device,
		img:      img,
		store:    store,
		engine:   engine,
		consumer: platform.NewConsumer(img),
	}
}

func (h *harness) attach(t *testing.T) models.AttachReport {
	t.Helper()

	report := h.engine.Attach(context.Background(), h.img)
	require.True(t, report.Attached)
	require.Empty(t, report.Failures)

	return report
}

//nolint:gochecknoglobals // profile fixture
var modern = platform.Profile{Name: "modern", APILevel: 33, PlayServices: true}

func TestAttachIgnoresImagesOffAllowList(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	other := platform.NewImage("com.example.other", modern, h.device, h.main)

	report := h.engine.Attach(context.Background(), other)
	assert.False(t, report.Attached)
	assert.Empty(t, report.Registrations)

	h.device.Report(platform.Fix{Latitude: berlinLat, Longitude: berlinLon})

	l, err := platform.NewConsumer(other).LastKnownLocation("gps")
	require.NoError(t, err)
	assert.InDelta(t, berlinLat, l.Raw().Latitude, 1e-9)
}

func TestAttachIsIdempotent(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))

	first := h.attach(t)
	assert.Len(t, first.Registrations, 16)

	second := h.engine.Attach(context.Background(), h.img)
	assert.Equal(t, first.Registrations, second.Registrations)

	h.device.Report(platform.Fix{Latitude: berlinLat, Longitude: berlinLon})

	l, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)

	before := h.store.reads.Load()
	lat, err := h.consumer.Latitude(l)
	require.NoError(t, err)
	assert.InDelta(t, london, lat, 1e-9)
	assert.Equal(t, int32(1), h.store.reads.Load()-before, "a second attach must not stack hooks")

	stored, ok := h.engine.Report(h.img)
	require.True(t, ok)
	assert.Equal(t, first.Image, stored.Image)
}

func TestAccessorsReturnOverride(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	loc := platform.NewLocationFrom(platform.Fix{Latitude: berlinLat, Longitude: berlinLon, Accuracy: 3, Speed: 7, Bearing: 90, Altitude: 34})

	reading, err := h.consumer.Snapshot(loc)
	require.NoError(t, err)
	assert.InDelta(t, london, reading.Latitude, 1e-9)
	assert.InDelta(t, londonLon, reading.Longitude, 1e-9)
	assert.InDelta(t, float64(models.SyntheticAccuracy), float64(reading.Accuracy), 1e-6)
	assert.Zero(t, reading.Speed)
	assert.Zero(t, reading.Bearing)
	assert.InDelta(t, 34.0, reading.Altitude, 1e-9, "unset altitude passes through")

	alt := float32(120)
	cfg := enabledAt(london, londonLon)
	cfg.Altitude = &alt
	h.store.set(cfg)

	altitude, err := h.consumer.Altitude(loc)
	require.NoError(t, err)
	assert.InDelta(t, 120.0, altitude, 1e-6)
}

func TestAccessorRepeatedCallsAgree(t *testing.T) {
	h := newHarnessWithClock(t, modern, enabledAt(london, londonLon), nil)
	h.attach(t)

	loc := platform.NewLocationFrom(platform.Fix{Latitude: berlinLat, Longitude: berlinLon})

	lat1, err := h.consumer.Latitude(loc)
	require.NoError(t, err)
	lon1, err := h.consumer.Longitude(loc)
	require.NoError(t, err)

	lat2, err := h.consumer.Latitude(loc)
	require.NoError(t, err)
	lon2, err := h.consumer.Longitude(loc)
	require.NoError(t, err)

	assert.Equal(t, lat1, lat2)
	assert.Equal(t, lon1, lon2)
	assert.InDelta(t, london, lat1, 1e-9)
	assert.InDelta(t, londonLon, lon1, 1e-9)

	h.device.Report(platform.Fix{Latitude: berlinLat, Longitude: berlinLon})

	first, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)

	time.Sleep(2 * time.Millisecond)

	second, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)

	// Timestamps follow the real clock; the position must not move.
	assert.Equal(t, first.Raw().Latitude, second.Raw().Latitude)
	assert.Equal(t, first.Raw().Longitude, second.Raw().Longitude)
	assert.False(t, second.Raw().Time.Before(first.Raw().Time))
}

func TestDisabledPassesThrough(t *testing.T) {
	h := newHarness(t, modern, models.OverrideConfig{Enabled: false, Latitude: models.NonZeroFloat64(london), Longitude: models.NonZeroFloat64(londonLon)})
	h.attach(t)

	h.device.Report(platform.Fix{Latitude: berlinLat, Longitude: berlinLon, Accuracy: 3})

	l, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)

	reading, err := h.consumer.Snapshot(l)
	require.NoError(t, err)
	assert.InDelta(t, berlinLat, reading.Latitude, 1e-9)
	assert.InDelta(t, berlinLon, reading.Longitude, 1e-9)
	assert.InDelta(t, 3.0, float64(reading.Accuracy), 1e-6)
}

func TestMissingCoordinatePassesThrough(t *testing.T) {
	h := newHarness(t, modern, models.OverrideConfig{Enabled: true, Latitude: models.NonZeroFloat64(london)})
	h.attach(t)

	loc := platform.NewLocationFrom(platform.Fix{Latitude: berlinLat, Longitude: berlinLon})

	lat, err := h.consumer.Latitude(loc)
	require.NoError(t, err)
	assert.InDelta(t, berlinLat, lat, 1e-9)
}

func TestConfigChangesApplyWithoutReattach(t *testing.T) {
	h := newHarness(t, modern, models.OverrideConfig{})
	h.attach(t)

	loc := platform.NewLocationFrom(platform.Fix{Latitude: berlinLat, Longitude: berlinLon})

	lat, err := h.consumer.Latitude(loc)
	require.NoError(t, err)
	assert.InDelta(t, berlinLat, lat, 1e-9)

	h.store.set(enabledAt(london, londonLon))

	lat, err = h.consumer.Latitude(loc)
	require.NoError(t, err)
	assert.InDelta(t, london, lat, 1e-9)

	h.store.set(models.OverrideConfig{})

	lat, err = h.consumer.Latitude(loc)
	require.NoError(t, err)
	assert.InDelta(t, berlinLat, lat, 1e-9)
}

func TestMutatorRewritesArgument(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	loc := platform.NewLocationFrom(platform.Fix{})
	require.NoError(t, h.consumer.SetLatitude(loc, 1.5))
	require.NoError(t, h.consumer.SetLongitude(loc, 2.5))

	assert.InDelta(t, london, loc.Raw().Latitude, 1e-9)
	assert.InDelta(t, londonLon, loc.Raw().Longitude, 1e-9)
}

func TestCompositeMutatesInPlace(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	h.device.Report(platform.Fix{Provider: "gps", Latitude: berlinLat, Longitude: berlinLon, Accuracy: 3, Speed: 5})

	l, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)

	raw := l.Raw()
	assert.Equal(t, "gps", raw.Provider)
	assert.InDelta(t, london, raw.Latitude, 1e-9)
	assert.InDelta(t, londonLon, raw.Longitude, 1e-9)
	assert.InDelta(t, float64(models.SyntheticAccuracy), float64(raw.Accuracy), 1e-6)
	assert.Zero(t, raw.Speed)
	assert.Equal(t, fixedNow, raw.Time)
	assert.Equal(t, 42*time.Second, raw.ElapsedRealtime)
}

func TestCompositeSynthesizesWhenHostHasNoFix(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	l, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)
	require.NotNil(t, l)

	raw := l.Raw()
	assert.Equal(t, models.SyntheticProvider, raw.Provider)
	assert.InDelta(t, london, raw.Latitude, 1e-9)
	assert.Equal(t, fixedNow, raw.Time)

	l, err = h.consumer.ProviderLocation()
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, models.SyntheticProvider, l.Raw().Provider)
}

func TestCompositeWithoutOverrideKeepsNil(t *testing.T) {
	h := newHarness(t, modern, models.OverrideConfig{})
	h.attach(t)

	l, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestMissingHelperLeavesOriginal(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	h.img.Remove(platform.K(platform.SurfaceLocation, platform.MethodSetSpeed))
	h.device.Report(platform.Fix{Latitude: berlinLat, Longitude: berlinLon, Speed: 5})

	l, err := h.consumer.LastKnownLocation("gps")
	require.NoError(t, err)

	raw := l.Raw()
	assert.InDelta(t, berlinLat, raw.Latitude, 1e-9, "no field may change when a helper is missing")
	assert.InDelta(t, 5.0, float64(raw.Speed), 1e-6)

	lat, err := h.consumer.Latitude(l)
	require.NoError(t, err)
	assert.InDelta(t, london, lat, 1e-9, "accessors do not depend on helpers")
}

func TestBatchRewritesEveryElement(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	empty, err := h.consumer.ResultLocations(platform.NewLocationResult())
	require.NoError(t, err)
	assert.Empty(t, empty)

	result := platform.NewLocationResult(
		platform.NewLocationFrom(platform.Fix{Latitude: 1, Longitude: 1}),
		platform.NewLocationFrom(platform.Fix{Latitude: 2, Longitude: 2}),
	)

	ls, err := h.consumer.ResultLocations(result)
	require.NoError(t, err)
	require.Len(t, ls, 2)

	for _, l := range ls {
		assert.InDelta(t, london, l.Raw().Latitude, 1e-9)
		assert.InDelta(t, londonLon, l.Raw().Longitude, 1e-9)
	}

	last, err := h.consumer.ResultLastLocation(result)
	require.NoError(t, err)
	assert.InDelta(t, london, last.Raw().Latitude, 1e-9)
}

func TestAsyncTaskCompletesWithOverride(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	ctx, cancel := context.WithTimeout(context.Background(), waitWindow)
	defer cancel()

	l, err := h.consumer.FusedLastLocation(ctx)
	require.NoError(t, err)
	require.NotNil(t, l)
	assert.Equal(t, models.SyntheticProvider, l.Raw().Provider)
	assert.InDelta(t, london, l.Raw().Latitude, 1e-9)

	h.device.Report(platform.Fix{Provider: "fused", Latitude: berlinLat, Longitude: berlinLon})

	l, err = h.consumer.FusedLastLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "fused", l.Raw().Provider)
	assert.InDelta(t, london, l.Raw().Latitude, 1e-9)
}

func TestRegistrationQueuesSyntheticFix(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	got := make(chan *platform.Location, 4)

	err := h.consumer.RequestLocationUpdates("gps", platform.LocationRequest{}, platform.ListenerFunc(func(l *platform.Location) {
		got <- l
	}))
	require.NoError(t, err)

	select {
	case l := <-got:
		assert.Equal(t, models.SyntheticProvider, l.Raw().Provider)
		assert.InDelta(t, london, l.Raw().Latitude, 1e-9)
		assert.InDelta(t, londonLon, l.Raw().Longitude, 1e-9)
	case <-time.After(waitWindow):
		t.Fatal("listener never received the synthetic fix")
	}

	assert.Equal(t, 1, h.device.Subscribers(), "the original registration still runs")
}

func TestRegistrationWhileDisabledQueuesNothing(t *testing.T) {
	h := newHarness(t, modern, models.OverrideConfig{})
	h.attach(t)

	var calls atomic.Int32

	err := h.consumer.RequestLocationUpdates("gps", platform.LocationRequest{}, platform.ListenerFunc(func(*platform.Location) {
		calls.Add(1)
	}))
	require.NoError(t, err)

	time.Sleep(5 * pumpDelay)
	assert.Zero(t, calls.Load())
	assert.Zero(t, h.engine.pump.Pending())
}

func TestFusedUpdatesAndDispatch(t *testing.T) {
	h := newHarness(t, modern, enabledAt(london, londonLon))
	h.attach(t)

	worker := platform.NewLooper("worker", 0)
	defer worker.Quit()

	results := make(chan *platform.LocationResult, 4)
	cb := platform.CallbackFunc(func(r *platform.LocationResult) { results <- r })

	_, err := h.consumer.FusedRequestLocationUpdates(platform.LocationRequest{}, cb, worker)
	require.NoError(t, err)

	next := func() *platform.LocationResult {
		select {
		case r := <-results:
			return r
		case <-time.After(waitWindow):
			t.Fatal("callback never fired")
			return nil
		}
	}

	synthetic := next()
	ls := synthetic.Locations()
	require.Len(t, ls, 1)
	assert.Equal(t, models.SyntheticProvider, ls[0].Raw().Provider)
	assert.InDelta(t, london, ls[0].Raw().Latitude, 1e-9)

	h.device.Report(platform.Fix{Provider: "fused", Latitude: berlinLat, Longitude: berlinLon})

	delivered := next().Locations()
	require.Len(t, delivered, 1)
	assert.Equal(t, "fused", delivered[0].Raw().Provider)
	assert.InDelta(t, london, delivered[0].Raw().Latitude, 1e-9, "dispatch rewrites inbound results")
}

func TestMissingSurfacesAreSkipped(t *testing.T) {
	h := newHarness(t, platform.Profile{Name: "legacy", APILevel: 29}, enabledAt(london, londonLon))

	report := h.attach(t)
	assert.Len(t, report.Registrations, 10)
	assert.Zero(t, report.RegistrationsFor(string(platform.SurfaceFusedLocationClient)))

	l := platform.NewLocationFrom(platform.Fix{Latitude: berlinLat})
	lat, err := h.consumer.Latitude(l)
	require.NoError(t, err)
	assert.InDelta(t, london, lat, 1e-9)
}

func TestSignatureMismatchIsNotHooked(t *testing.T) {
	h := newHarness(t, platform.Profile{Name: "latest", APILevel: 35, PlayServices: true}, enabledAt(london, londonLon))

	report := h.attach(t)
	assert.Len(t, report.Registrations, 15)

	var mismatched []string

	for _, target := range report.Targets {
		if target.Status == models.StatusSignatureMismatch {
			mismatched = append(mismatched, target.Key())
		}
	}

	assert.Equal(t, []string{"location_manager.request_location_updates"}, mismatched)
}

func TestOneStoreReadPerConsultation(t *testing.T) {
	ctrl := gomock.NewController(t)
	reader := prefs.NewMockReader(ctrl)

	reader.EXPECT().Read(gomock.Any()).Return(enabledAt(london, londonLon), prefs.ReadOK).Times(2)

	main := platform.NewLooper("main", 0)
	defer main.Quit()

	img := platform.NewImage(appName, modern, platform.NewDevice(), main)
	log := logger.NewTestLogger()
	engine := NewEngine(reader, override.NewProvider(fixedClock{}), pump.New(pumpDelay, log), []string{appName}, log)

	engine.Attach(context.Background(), img)

	lat, err := platform.NewConsumer(img).Latitude(platform.NewLocationFrom(platform.Fix{}))
	require.NoError(t, err)
	assert.InDelta(t, london, lat, 1e-9)
}

func TestAttachNilImage(t *testing.T) {
	log := logger.NewTestLogger()
	engine := NewEngine(&stubStore{}, override.NewProvider(nil), pump.New(0, log), []string{appName}, log)

	report := engine.Attach(context.Background(), nil)
	assert.False(t, report.Attached)
}
