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
	"fmt"

	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/platform"
)

// helperOf returns the un-hooked implementation of key when the engine
// replaced it, and the image's current one otherwise. Helpers are looked up
// per call so a surface that disappears shows up as a fault on that call.
func helperOf[F any](st *imageState, key platform.Key) (F, error) {
	if fn, ok := st.original(key); ok {
		if typed, ok := fn.(F); ok {
			return typed, nil
		}
	}

	return platform.Lookup[F](st.img, key)
}

// setters are the location mutators a composite rewrite writes through.
type setters struct {
	latitude  platform.Float64Setter
	longitude platform.Float64Setter
	altitude  platform.Float64Setter
	accuracy  platform.Float32Setter
	speed     platform.Float32Setter
	bearing   platform.Float32Setter
	time      platform.TimeSetter
	elapsed   platform.DurationSetter
}

// resolveSetters looks every setter up before anything is written, so a
// missing helper never leaves a half-rewritten location behind.
func resolveSetters(st *imageState, withAltitude bool) (setters, error) {
	var (
		s   setters
		err error
	)

	loc := func(m platform.Method) platform.Key { return platform.K(platform.SurfaceLocation, m) }

	if s.latitude, err = helperOf[platform.Float64Setter](st, loc(platform.MethodSetLatitude)); err != nil {
		return s, err
	}

	if s.longitude, err = helperOf[platform.Float64Setter](st, loc(platform.MethodSetLongitude)); err != nil {
		return s, err
	}

	if withAltitude {
		if s.altitude, err = helperOf[platform.Float64Setter](st, loc(platform.MethodSetAltitude)); err != nil {
			return s, err
		}
	}

	if s.accuracy, err = helperOf[platform.Float32Setter](st, loc(platform.MethodSetAccuracy)); err != nil {
		return s, err
	}

	if s.speed, err = helperOf[platform.Float32Setter](st, loc(platform.MethodSetSpeed)); err != nil {
		return s, err
	}

	if s.bearing, err = helperOf[platform.Float32Setter](st, loc(platform.MethodSetBearing)); err != nil {
		return s, err
	}

	if s.time, err = helperOf[platform.TimeSetter](st, loc(platform.MethodSetTime)); err != nil {
		return s, err
	}

	if s.elapsed, err = helperOf[platform.DurationSetter](st, loc(platform.MethodSetElapsedRealtime)); err != nil {
		return s, err
	}

	return s, nil
}

func (s setters) apply(l *platform.Location, r models.SyntheticReading) {
	s.latitude(l, r.Latitude)
	s.longitude(l, r.Longitude)

	if s.altitude != nil && r.AltitudeSet {
		s.altitude(l, r.Altitude)
	}

	s.accuracy(l, r.Accuracy)
	s.speed(l, r.Speed)
	s.bearing(l, r.Bearing)
	s.time(l, r.Time)
	s.elapsed(l, r.ElapsedRealtime)
}

// composite rewrites l in place, or builds a new location when l is nil.
func composite(st *imageState, l *platform.Location, r models.SyntheticReading) (*platform.Location, error) {
	s, err := resolveSetters(st, r.AltitudeSet)
	if err != nil {
		return nil, err
	}

	if l == nil {
		return synthesize(st, s, r)
	}

	s.apply(l, r)

	return l, nil
}

func synthesize(st *imageState, s setters, r models.SyntheticReading) (*platform.Location, error) {
	factory, err := helperOf[platform.LocationFactory](st, platform.K(platform.SurfaceLocation, platform.MethodNew))
	if err != nil {
		return nil, err
	}

	l := factory(models.SyntheticProvider)
	if l == nil {
		return nil, fmt.Errorf("%s returned nil", platform.K(platform.SurfaceLocation, platform.MethodNew))
	}

	s.apply(l, r)

	return l, nil
}

// synthesizeFresh builds a new location carrying r.
func synthesizeFresh(st *imageState, r models.SyntheticReading) (*platform.Location, error) {
	s, err := resolveSetters(st, r.AltitudeSet)
	if err != nil {
		return nil, err
	}

	return synthesize(st, s, r)
}

// rewriteAll applies r to every element of a batch. Empty batches stay empty.
func rewriteAll(st *imageState, ls []*platform.Location, r models.SyntheticReading) error {
	if len(ls) == 0 {
		return nil
	}

	s, err := resolveSetters(st, r.AltitudeSet)
	if err != nil {
		return err
	}

	for _, l := range ls {
		if l != nil {
			s.apply(l, r)
		}
	}

	return nil
}

// syntheticResult wraps one synthesized location the way the host builds
// results for its callbacks.
func syntheticResult(st *imageState, r models.SyntheticReading) (*platform.LocationResult, error) {
	l, err := synthesizeFresh(st, r)
	if err != nil {
		return nil, err
	}

	create, err := helperOf[platform.ResultFactory](st, platform.K(platform.SurfaceLocationResult, platform.MethodCreate))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errNoResultType, err)
	}

	return create([]*platform.Location{l}), nil
}
