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
	"time"
)

// Consumer is host code reading positions through an image. Every call
// resolves the method from the table at call time.
type Consumer struct {
	img *Image
}

// NewConsumer returns a consumer bound to img.
func NewConsumer(img *Image) *Consumer {
	return &Consumer{img: img}
}

// Image returns the image the consumer calls through.
func (c *Consumer) Image() *Image {
	return c.img
}

func (c *Consumer) float64Of(m Method, l *Location) (float64, error) {
	fn, err := Lookup[Float64Getter](c.img, K(SurfaceLocation, m))
	if err != nil {
		return 0, err
	}

	return fn(l), nil
}

func (c *Consumer) float32Of(m Method, l *Location) (float32, error) {
	fn, err := Lookup[Float32Getter](c.img, K(SurfaceLocation, m))
	if err != nil {
		return 0, err
	}

	return fn(l), nil
}

// Latitude calls location.get_latitude.
func (c *Consumer) Latitude(l *Location) (float64, error) {
	return c.float64Of(MethodGetLatitude, l)
}

// Longitude calls location.get_longitude.
func (c *Consumer) Longitude(l *Location) (float64, error) {
	return c.float64Of(MethodGetLongitude, l)
}

// Altitude calls location.get_altitude.
func (c *Consumer) Altitude(l *Location) (float64, error) {
	return c.float64Of(MethodGetAltitude, l)
}

// Accuracy calls location.get_accuracy.
func (c *Consumer) Accuracy(l *Location) (float32, error) {
	return c.float32Of(MethodGetAccuracy, l)
}

// Speed calls location.get_speed.
func (c *Consumer) Speed(l *Location) (float32, error) {
	return c.float32Of(MethodGetSpeed, l)
}

// Bearing calls location.get_bearing.
func (c *Consumer) Bearing(l *Location) (float32, error) {
	return c.float32Of(MethodGetBearing, l)
}

// SetLatitude calls location.set_latitude.
func (c *Consumer) SetLatitude(l *Location, v float64) error {
	fn, err := Lookup[Float64Setter](c.img, K(SurfaceLocation, MethodSetLatitude))
	if err != nil {
		return err
	}

	fn(l, v)

	return nil
}

// SetLongitude calls location.set_longitude.
func (c *Consumer) SetLongitude(l *Location, v float64) error {
	fn, err := Lookup[Float64Setter](c.img, K(SurfaceLocation, MethodSetLongitude))
	if err != nil {
		return err
	}

	fn(l, v)

	return nil
}

// LastKnownLocation calls location_manager.get_last_known_location.
func (c *Consumer) LastKnownLocation(provider string) (*Location, error) {
	fn, err := Lookup[LastKnownLocationFunc](c.img, K(SurfaceLocationManager, MethodGetLastKnownLocation))
	if err != nil {
		return nil, err
	}

	return fn(provider), nil
}

// RequestLocationUpdates calls location_manager.request_location_updates,
// using whichever of the two signatures the image carries.
func (c *Consumer) RequestLocationUpdates(provider string, req LocationRequest, listener LocationListener) error {
	key := K(SurfaceLocationManager, MethodRequestLocationUpdates)

	if fn, err := Lookup[RequestUpdatesFunc](c.img, key); err == nil {
		fn(provider, req.Interval, req.MinDistance, listener)
		return nil
	}

	fn, err := Lookup[RequestUpdatesExecutorFunc](c.img, key)
	if err != nil {
		return err
	}

	fn(provider, req, c.img.MainLooper(), listener)

	return nil
}

// ProviderLocation calls location_provider.get_location.
func (c *Consumer) ProviderLocation() (*Location, error) {
	fn, err := Lookup[ProviderLocationFunc](c.img, K(SurfaceLocationProvider, MethodGetLocation))
	if err != nil {
		return nil, err
	}

	return fn(), nil
}

// ResultLocations calls location_result.get_locations.
func (c *Consumer) ResultLocations(r *LocationResult) ([]*Location, error) {
	fn, err := Lookup[ResultLocationsFunc](c.img, K(SurfaceLocationResult, MethodGetLocations))
	if err != nil {
		return nil, err
	}

	return fn(r), nil
}

// ResultLastLocation calls location_result.get_last_location.
func (c *Consumer) ResultLastLocation(r *LocationResult) (*Location, error) {
	fn, err := Lookup[ResultLocationFunc](c.img, K(SurfaceLocationResult, MethodGetLastLocation))
	if err != nil {
		return nil, err
	}

	return fn(r), nil
}

// FusedLastLocation calls fused_location_client.get_last_location and waits
// for the task.
func (c *Consumer) FusedLastLocation(ctx context.Context) (*Location, error) {
	fn, err := Lookup[LastLocationTaskFunc](c.img, K(SurfaceFusedLocationClient, MethodGetLastLocation))
	if err != nil {
		return nil, err
	}

	return fn().Await(ctx)
}

// FusedRequestLocationUpdates calls fused_location_client.request_location_updates.
func (c *Consumer) FusedRequestLocationUpdates(req LocationRequest, cb LocationCallback, looper *Looper) (*Task, error) {
	fn, err := Lookup[FusedRequestUpdatesFunc](c.img, K(SurfaceFusedLocationClient, MethodRequestLocationUpdates))
	if err != nil {
		return nil, err
	}

	return fn(req, cb, looper), nil
}

// Reading is what a consumer observes for one Location.
type Reading struct {
	Latitude  float64       `json:"latitude"`
	Longitude float64       `json:"longitude"`
	Altitude  float64       `json:"altitude"`
	Accuracy  float32       `json:"accuracy"`
	Speed     float32       `json:"speed"`
	Bearing   float32       `json:"bearing"`
	Time      time.Time     `json:"time"`
	Elapsed   time.Duration `json:"elapsed_realtime"`
}

// Snapshot reads every field of l through the image's accessors.
func (c *Consumer) Snapshot(l *Location) (Reading, error) {
	var (
		r   Reading
		err error
	)

	if r.Latitude, err = c.Latitude(l); err != nil {
		return r, err
	}

	if r.Longitude, err = c.Longitude(l); err != nil {
		return r, err
	}

	if r.Altitude, err = c.Altitude(l); err != nil {
		return r, err
	}

	if r.Accuracy, err = c.Accuracy(l); err != nil {
		return r, err
	}

	if r.Speed, err = c.Speed(l); err != nil {
		return r, err
	}

	if r.Bearing, err = c.Bearing(l); err != nil {
		return r, err
	}

	timeFn, err := Lookup[TimeGetter](c.img, K(SurfaceLocation, MethodGetTime))
	if err != nil {
		return r, err
	}

	r.Time = timeFn(l)

	elapsedFn, err := Lookup[DurationGetter](c.img, K(SurfaceLocation, MethodGetElapsedRealtime))
	if err != nil {
		return r, err
	}

	r.Elapsed = elapsedFn(l)

	return r, nil
}
