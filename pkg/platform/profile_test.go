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

package platform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageProfiles(t *testing.T) {
	device := NewDevice()

	legacy := NewImage("android", Profile{APILevel: 29}, device, nil)
	assert.True(t, legacy.Has(SurfaceLocation))
	assert.True(t, legacy.Has(SurfaceLocationManager))
	assert.False(t, legacy.Has(SurfaceLocationProvider))
	assert.False(t, legacy.Has(SurfaceFusedLocationClient))

	modern := NewImage("com.google.android.gms", Profile{APILevel: 33, PlayServices: true}, device, nil)
	assert.True(t, modern.Has(SurfaceLocationProvider))
	assert.True(t, modern.Has(SurfaceLocationResult))
	assert.True(t, modern.Has(SurfaceLocationCallback))
	assert.True(t, modern.Has(SurfaceFusedLocationClient))
}

func TestNewImageOmit(t *testing.T) {
	img := NewImage("android", Profile{
		APILevel: 33,
		Omit:     []Key{K(SurfaceLocation, MethodGetBearing)},
	}, NewDevice(), nil)

	_, err := Lookup[Float32Getter](img, K(SurfaceLocation, MethodGetBearing))
	require.ErrorIs(t, err, ErrMethodNotFound)
}

func TestLookupProfile(t *testing.T) {
	p, err := LookupProfile("latest")
	require.NoError(t, err)
	assert.Equal(t, 35, p.APILevel)
	assert.True(t, p.PlayServices)

	_, err = LookupProfile("nope")
	require.Error(t, err)
	assert.Equal(t, []string{"aosp", "latest", "legacy", "modern"}, ProfileNames())
}

func TestConsumerReadsDevice(t *testing.T) {
	main := NewLooper("main", 0)
	defer main.Quit()

	device := NewDevice()
	img := NewImage("com.example.maps", Profile{APILevel: 33, PlayServices: true}, device, main)
	c := NewConsumer(img)

	l, err := c.LastKnownLocation("gps")
	require.NoError(t, err)
	assert.Nil(t, l)

	device.Report(Fix{Provider: "gps", Latitude: 52.52, Longitude: 13.405, Accuracy: 4})

	l, err = c.LastKnownLocation("gps")
	require.NoError(t, err)
	require.NotNil(t, l)

	r, err := c.Snapshot(l)
	require.NoError(t, err)
	assert.InDelta(t, 52.52, r.Latitude, 1e-9)
	assert.InDelta(t, 13.405, r.Longitude, 1e-9)
	assert.InDelta(t, float32(4), r.Accuracy, 1e-6)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	fused, err := c.FusedLastLocation(ctx)
	require.NoError(t, err)
	require.NotNil(t, fused)
	assert.InDelta(t, 52.52, fused.Raw().Latitude, 1e-9)
}

func TestConsumerListenerDelivery(t *testing.T) {
	main := NewLooper("main", 0)
	defer main.Quit()

	device := NewDevice()
	img := NewImage("com.example.maps", Profile{APILevel: 35, PlayServices: true}, device, main)
	c := NewConsumer(img)

	got := make(chan *Location, 1)
	require.NoError(t, c.RequestLocationUpdates("gps", LocationRequest{}, ListenerFunc(func(l *Location) { got <- l })))

	batches := make(chan *LocationResult, 1)
	_, err := c.FusedRequestLocationUpdates(LocationRequest{}, CallbackFunc(func(r *LocationResult) { batches <- r }), nil)
	require.NoError(t, err)

	assert.Equal(t, 2, device.Subscribers())

	device.Report(Fix{Latitude: 1, Longitude: 2})

	select {
	case l := <-got:
		assert.InDelta(t, 1.0, l.Raw().Latitude, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("listener not called")
	}

	select {
	case r := <-batches:
		last, err := c.ResultLastLocation(r)
		require.NoError(t, err)
		assert.InDelta(t, 2.0, last.Raw().Longitude, 1e-9)
	case <-time.After(time.Second):
		t.Fatal("callback not called")
	}
}

func TestConsumerMissingSurface(t *testing.T) {
	c := NewConsumer(NewImage("android", Profile{APILevel: 29}, NewDevice(), nil))

	_, err := c.ProviderLocation()
	require.ErrorIs(t, err, ErrSurfaceNotFound)

	_, err = c.FusedLastLocation(context.Background())
	require.ErrorIs(t, err, ErrSurfaceNotFound)
}
