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

package models

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ErrInvalidCoordinate marks a position no location can carry.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// OverrideConfig is the operator intent shared between the control plane and
// the hooks. A coordinate of exactly zero is stored as absent.
type OverrideConfig struct {
	Enabled   bool     `json:"enabled"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Altitude  *float32 `json:"altitude,omitempty"`
}

// HasTarget reports whether both coordinates are present and nonzero.
func (c OverrideConfig) HasTarget() bool {
	return c.Latitude != nil && *c.Latitude != 0 && c.Longitude != nil && *c.Longitude != 0
}

// Active reports whether hooks should rewrite anything at all.
func (c OverrideConfig) Active() bool {
	return c.Enabled && c.HasTarget()
}

// Coordinate is the position the operator picks on the control plane.
type Coordinate struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float32 `json:"altitude,omitempty"`
}

// Validate rejects out-of-range or non-finite values.
func (c Coordinate) Validate() error {
	switch {
	case !validLatitude(c.Latitude):
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Latitude)
	case !validLongitude(c.Longitude):
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Longitude)
	case c.Altitude != nil && !validAltitude(*c.Altitude):
		return fmt.Errorf("%w: altitude %v", ErrInvalidCoordinate, *c.Altitude)
	}

	return nil
}

// Validate checks whichever coordinates are present. Absent ones are fine.
func (c OverrideConfig) Validate() error {
	switch {
	case c.Latitude != nil && !validLatitude(*c.Latitude):
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, *c.Latitude)
	case c.Longitude != nil && !validLongitude(*c.Longitude):
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, *c.Longitude)
	case c.Altitude != nil && !validAltitude(*c.Altitude):
		return fmt.Errorf("%w: altitude %v", ErrInvalidCoordinate, *c.Altitude)
	}

	return nil
}

func validLatitude(v float64) bool {
	return !math.IsNaN(v) && v >= -90 && v <= 90
}

func validLongitude(v float64) bool {
	return !math.IsNaN(v) && v >= -180 && v <= 180
}

func validAltitude(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

// NonZeroFloat64 returns nil for exact zero. Zero doubles as the "unset"
// sentinel, so a target on the equator or prime meridian cannot be expressed.
func NonZeroFloat64(v float64) *float64 {
	if v == 0 {
		return nil
	}

	return &v
}

// NonZeroFloat32 is the float32 counterpart of NonZeroFloat64.
func NonZeroFloat32(v float32) *float32 {
	if v == 0 {
		return nil
	}

	return &v
}

const (
	// SyntheticAccuracy is the horizontal accuracy reported for overridden fixes, in meters.
	SyntheticAccuracy float32 = 10.0
	// SyntheticSpeed reports a stationary device.
	SyntheticSpeed float32 = 0.0
	// SyntheticBearing reports no heading.
	SyntheticBearing float32 = 0.0
	// SyntheticProvider names locations fabricated by the hooks.
	SyntheticProvider = "spoofed"
)

// SyntheticReading is the fabricated fix handed to every intercepted surface
// during one consultation.
type SyntheticReading struct {
	Latitude        float64       `json:"latitude"`
	Longitude       float64       `json:"longitude"`
	Accuracy        float32       `json:"accuracy"`
	Speed           float32       `json:"speed"`
	Bearing         float32       `json:"bearing"`
	Altitude        float64       `json:"altitude"`
	Time            time.Time     `json:"time"`
	ElapsedRealtime time.Duration `json:"elapsed_realtime"`
	// AltitudeSet is true when the altitude came from config rather than the zero default.
	AltitudeSet bool `json:"altitude_set"`
}
