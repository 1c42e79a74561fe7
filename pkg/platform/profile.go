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
	"sort"
	"time"
)

const (
	// apiProviderLocation is the first level exposing location_provider.get_location.
	apiProviderLocation = 31
	// apiExecutorUpdates is the first level where request_location_updates takes an executor.
	apiExecutorUpdates = 34
)

// Profile describes which surfaces a platform build exposes.
type Profile struct {
	Name         string `json:"name"`
	APILevel     int    `json:"api_level"`
	PlayServices bool   `json:"play_services"`
	// Omit strips methods after the standard table is built.
	Omit []Key `json:"omit,omitempty"`
}

//nolint:gochecknoglobals // named profiles are fixed reference builds
var profiles = map[string]Profile{
	"legacy": {Name: "legacy", APILevel: 29},
	"modern": {Name: "modern", APILevel: 33, PlayServices: true},
	"latest": {Name: "latest", APILevel: 35, PlayServices: true},
	"aosp":   {Name: "aosp", APILevel: 33},
}

// LookupProfile returns a named reference profile.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown platform profile %q (known: %v)", name, ProfileNames())
	}

	return p, nil
}

// ProfileNames lists the reference profiles.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// NewImage builds the standard method table for profile, backed by device.
func NewImage(name string, profile Profile, device *Device, main *Looper) *Image {
	img := NewEmptyImage(name, main)

	defineLocationSurface(img)
	defineLocationManagerSurface(img, profile, device)

	if profile.APILevel >= apiProviderLocation {
		img.Define(K(SurfaceLocationProvider, MethodGetLocation), ProviderLocationFunc(device.LastKnown))
	}

	if profile.PlayServices {
		defineLocationResultSurface(img)
		img.Define(K(SurfaceLocationCallback, MethodOnLocationResult), CallbackDispatch(func(cb LocationCallback, r *LocationResult) {
			cb.OnLocationResult(r)
		}))
		defineFusedClientSurface(img, device)
	}

	for _, key := range profile.Omit {
		img.Remove(key)
	}

	return img
}

func defineLocationManagerSurface(img *Image, profile Profile, device *Device) {
	img.Define(K(SurfaceLocationManager, MethodGetLastKnownLocation), LastKnownLocationFunc(func(_ string) *Location {
		return device.LastKnown()
	}))

	key := K(SurfaceLocationManager, MethodRequestLocationUpdates)

	if profile.APILevel >= apiExecutorUpdates {
		img.Define(key, RequestUpdatesExecutorFunc(func(_ string, _ LocationRequest, executor *Looper, listener LocationListener) {
			subscribeListener(img, device, executor, listener)
		}))

		return
	}

	img.Define(key, RequestUpdatesFunc(func(_ string, _ time.Duration, _ float32, listener LocationListener) {
		subscribeListener(img, device, img.MainLooper(), listener)
	}))
}

func subscribeListener(img *Image, device *Device, looper *Looper, listener LocationListener) {
	if listener == nil {
		return
	}

	if looper == nil {
		looper = img.MainLooper()
	}

	device.Subscribe(func(fix Fix) {
		_ = looper.Post(func() {
			listener.OnLocationChanged(NewLocationFrom(fix))
		})
	})
}

func defineFusedClientSurface(img *Image, device *Device) {
	img.Define(K(SurfaceFusedLocationClient, MethodGetLastLocation), LastLocationTaskFunc(func() *Task {
		task := NewTask()

		if err := img.MainLooper().Post(func() { task.Complete(device.LastKnown(), nil) }); err != nil {
			task.Complete(nil, err)
		}

		return task
	}))

	img.Define(K(SurfaceFusedLocationClient, MethodRequestLocationUpdates), FusedRequestUpdatesFunc(
		func(_ LocationRequest, cb LocationCallback, looper *Looper) *Task {
			if cb == nil {
				return CompletedTask(nil, nil)
			}

			if looper == nil {
				looper = img.MainLooper()
			}

			device.Subscribe(func(fix Fix) {
				_ = looper.Post(func() {
					dispatchResult(img, cb, NewLocationFrom(fix))
				})
			})

			return CompletedTask(nil, nil)
		}))
}

// dispatchResult routes a fix through the image's own create and dispatch
// methods so that whatever is installed there sees the delivery.
func dispatchResult(img *Image, cb LocationCallback, l *Location) {
	create, err := Lookup[ResultFactory](img, K(SurfaceLocationResult, MethodCreate))
	if err != nil {
		create = func(ls []*Location) *LocationResult { return NewLocationResult(ls...) }
	}

	result := create([]*Location{l})

	dispatch, err := Lookup[CallbackDispatch](img, K(SurfaceLocationCallback, MethodOnLocationResult))
	if err != nil {
		cb.OnLocationResult(result)
		return
	}

	dispatch(cb, result)
}
