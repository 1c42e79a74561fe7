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
	"time"
)

// Fix is the plain value carried by a Location.
type Fix struct {
	Provider        string        `json:"provider"`
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	Altitude        float64       `json:"altitude"`
	Accuracy        float32       `json:"accuracy"`
	Speed           float32       `json:"speed"`
	Bearing         float32       `json:"bearing"`
	Time            time.Time     `json:"time"`
	ElapsedRealtime time.Duration `json:"elapsed_realtime"`
}

// Location is the platform's rich position object. Its fields are only
// reachable through the image's location surface, the way host code sees them.
// A Location is not safe for concurrent mutation.
type Location struct {
	fix Fix
}

// NewLocationFrom wraps a Fix.
func NewLocationFrom(fix Fix) *Location {
	return &Location{fix: fix}
}

// Raw returns the stored fields without going through any hook.
func (l *Location) Raw() Fix {
	if l == nil {
		return Fix{}
	}

	return l.fix
}

// LocationRequest carries the caller's update preferences.
type LocationRequest struct {
	Interval     time.Duration
	MinDistance  float32
	HighAccuracy bool
	MaxUpdates   int
}

// LocationResult is a batch of fixes delivered to a LocationCallback.
type LocationResult struct {
	locations []*Location
}

// LocationListener receives fixes requested through the location manager.
type LocationListener interface {
	OnLocationChanged(l *Location)
}

// LocationCallback receives batched fixes from the fused client.
type LocationCallback interface {
	OnLocationResult(r *LocationResult)
}

// ListenerFunc adapts a function to LocationListener.
type ListenerFunc func(l *Location)

func (f ListenerFunc) OnLocationChanged(l *Location) { f(l) }

// CallbackFunc adapts a function to LocationCallback.
type CallbackFunc func(r *LocationResult)

func (f CallbackFunc) OnLocationResult(r *LocationResult) { f(r) }

func defineLocationSurface(img *Image) {
	img.Define(K(SurfaceLocation, MethodNew), LocationFactory(func(provider string) *Location {
		return &Location{fix: Fix{Provider: provider}}
	}))

	img.Define(K(SurfaceLocation, MethodGetLatitude), Float64Getter(func(l *Location) float64 { return l.fix.Latitude }))
	img.Define(K(SurfaceLocation, MethodGetLongitude), Float64Getter(func(l *Location) float64 { return l.fix.Longitude }))
	img.Define(K(SurfaceLocation, MethodGetAltitude), Float64Getter(func(l *Location) float64 { return l.fix.Altitude }))
	img.Define(K(SurfaceLocation, MethodGetAccuracy), Float32Getter(func(l *Location) float32 { return l.fix.Accuracy }))
	img.Define(K(SurfaceLocation, MethodGetSpeed), Float32Getter(func(l *Location) float32 { return l.fix.Speed }))
	img.Define(K(SurfaceLocation, MethodGetBearing), Float32Getter(func(l *Location) float32 { return l.fix.Bearing }))
	img.Define(K(SurfaceLocation, MethodGetTime), TimeGetter(func(l *Location) time.Time { return l.fix.Time }))
	img.Define(K(SurfaceLocation, MethodGetElapsedRealtime), DurationGetter(func(l *Location) time.Duration {
		return l.fix.ElapsedRealtime
	}))

	img.Define(K(SurfaceLocation, MethodSetLatitude), Float64Setter(func(l *Location, v float64) { l.fix.Latitude = v }))
	img.Define(K(SurfaceLocation, MethodSetLongitude), Float64Setter(func(l *Location, v float64) { l.fix.Longitude = v }))
	img.Define(K(SurfaceLocation, MethodSetAltitude), Float64Setter(func(l *Location, v float64) { l.fix.Altitude = v }))
	img.Define(K(SurfaceLocation, MethodSetAccuracy), Float32Setter(func(l *Location, v float32) { l.fix.Accuracy = v }))
	img.Define(K(SurfaceLocation, MethodSetSpeed), Float32Setter(func(l *Location, v float32) { l.fix.Speed = v }))
	img.Define(K(SurfaceLocation, MethodSetBearing), Float32Setter(func(l *Location, v float32) { l.fix.Bearing = v }))
	img.Define(K(SurfaceLocation, MethodSetTime), TimeSetter(func(l *Location, t time.Time) { l.fix.Time = t }))
	img.Define(K(SurfaceLocation, MethodSetElapsedRealtime), DurationSetter(func(l *Location, d time.Duration) {
		l.fix.ElapsedRealtime = d
	}))
}

func defineLocationResultSurface(img *Image) {
	img.Define(K(SurfaceLocationResult, MethodCreate), ResultFactory(func(locations []*Location) *LocationResult {
		copied := make([]*Location, len(locations))
		copy(copied, locations)

		return &LocationResult{locations: copied}
	}))

	img.Define(K(SurfaceLocationResult, MethodGetLocations), ResultLocationsFunc(func(r *LocationResult) []*Location {
		if r == nil {
			return nil
		}

		return r.locations
	}))

	img.Define(K(SurfaceLocationResult, MethodGetLastLocation), ResultLocationFunc(func(r *LocationResult) *Location {
		if r == nil || len(r.locations) == 0 {
			return nil
		}

		return r.locations[len(r.locations)-1]
	}))
}

// NewLocationResult builds a batch directly, bypassing the image.
func NewLocationResult(locations ...*Location) *LocationResult {
	return &LocationResult{locations: locations}
}

// Locations returns the batch without going through any hook.
func (r *LocationResult) Locations() []*Location {
	if r == nil {
		return nil
	}

	return r.locations
}
