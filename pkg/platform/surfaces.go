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
	"fmt"
	"time"
)

// Surface identifies one API entry point family exposing or consuming positions.
type Surface string

// Method identifies one method on a surface.
type Method string

const (
	SurfaceLocation            Surface = "location"
	SurfaceLocationManager     Surface = "location_manager"
	SurfaceLocationProvider    Surface = "location_provider"
	SurfaceLocationResult      Surface = "location_result"
	SurfaceLocationCallback    Surface = "location_callback"
	SurfaceFusedLocationClient Surface = "fused_location_client"
)

const (
	MethodNew                    Method = "new"
	MethodGetLatitude            Method = "get_latitude"
	MethodGetLongitude           Method = "get_longitude"
	MethodGetAccuracy            Method = "get_accuracy"
	MethodGetSpeed               Method = "get_speed"
	MethodGetBearing             Method = "get_bearing"
	MethodGetAltitude            Method = "get_altitude"
	MethodGetTime                Method = "get_time"
	MethodGetElapsedRealtime     Method = "get_elapsed_realtime"
	MethodSetLatitude            Method = "set_latitude"
	MethodSetLongitude           Method = "set_longitude"
	MethodSetAccuracy            Method = "set_accuracy"
	MethodSetSpeed               Method = "set_speed"
	MethodSetBearing             Method = "set_bearing"
	MethodSetAltitude            Method = "set_altitude"
	MethodSetTime                Method = "set_time"
	MethodSetElapsedRealtime     Method = "set_elapsed_realtime"
	MethodGetLastKnownLocation   Method = "get_last_known_location"
	MethodRequestLocationUpdates Method = "request_location_updates"
	MethodGetLocation            Method = "get_location"
	MethodCreate                 Method = "create"
	MethodGetLocations           Method = "get_locations"
	MethodGetLastLocation        Method = "get_last_location"
	MethodOnLocationResult       Method = "on_location_result"
)

// Key addresses one method in an image's table.
type Key struct {
	Surface Surface `json:"surface"`
	Method  Method  `json:"method"`
}

// K is shorthand for building a Key.
func K(s Surface, m Method) Key {
	return Key{Surface: s, Method: m}
}

func (k Key) String() string {
	return string(k.Surface) + "." + string(k.Method)
}

// Method signatures. Table entries are stored as these named types so a probe
// can tell a matching method from one that merely shares its name.
type (
	LocationFactory func(provider string) *Location
	Float64Getter   func(l *Location) float64
	Float32Getter   func(l *Location) float32
	TimeGetter      func(l *Location) time.Time
	DurationGetter  func(l *Location) time.Duration
	Float64Setter   func(l *Location, v float64)
	Float32Setter   func(l *Location, v float32)
	TimeSetter      func(l *Location, t time.Time)
	DurationSetter  func(l *Location, d time.Duration)

	LastKnownLocationFunc      func(provider string) *Location
	RequestUpdatesFunc         func(provider string, minTime time.Duration, minDistance float32, listener LocationListener)
	RequestUpdatesExecutorFunc func(provider string, req LocationRequest, executor *Looper, listener LocationListener)
	ProviderLocationFunc       func() *Location

	ResultFactory       func(locations []*Location) *LocationResult
	ResultLocationsFunc func(r *LocationResult) []*Location
	ResultLocationFunc  func(r *LocationResult) *Location
	CallbackDispatch    func(cb LocationCallback, r *LocationResult)

	LastLocationTaskFunc    func() *Task
	FusedRequestUpdatesFunc func(req LocationRequest, cb LocationCallback, looper *Looper) *Task
)

// SignatureOf names the signature type F for diagnostics.
func SignatureOf[F any]() string {
	var zero F
	return fmt.Sprintf("%T", zero)
}
