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

// Package override computes the synthetic fix handed to intercepted surfaces.
package override

import (
	"github.com/carverauto/geoshim/pkg/models"
)

// Provider turns an OverrideConfig into a SyntheticReading.
type Provider struct {
	clock Clock
}

// NewProvider returns a provider. A nil clock uses the system clocks.
func NewProvider(clock Clock) *Provider {
	if clock == nil {
		clock = newRealClock()
	}

	return &Provider{clock: clock}
}

// Current returns the reading for cfg, or false when cfg does not call for
// an override. Each call samples the clocks once; callers reuse the result
// for every field they touch.
func (p *Provider) Current(cfg models.OverrideConfig) (models.SyntheticReading, bool) {
	if !cfg.Active() {
		return models.SyntheticReading{}, false
	}

	reading := models.SyntheticReading{
		Latitude:        *cfg.Latitude,
		Longitude:       *cfg.Longitude,
		Accuracy:        models.SyntheticAccuracy,
		Speed:           models.SyntheticSpeed,
		Bearing:         models.SyntheticBearing,
		Time:            p.clock.Now(),
		ElapsedRealtime: p.clock.Elapsed(),
	}

	if cfg.Altitude != nil && *cfg.Altitude != 0 {
		reading.Altitude = float64(*cfg.Altitude)
		reading.AltitudeSet = true
	}

	return reading, true
}
