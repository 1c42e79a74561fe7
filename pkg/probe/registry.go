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

package probe

import (
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/platform"
)

//nolint:gochecknoglobals // target table must be package-level
var targets = []Descriptor{
	describe[platform.Float64Getter](platform.SurfaceLocation, platform.MethodGetLatitude, models.KindAccessor, models.PhaseAfter),
	describe[platform.Float64Getter](platform.SurfaceLocation, platform.MethodGetLongitude, models.KindAccessor, models.PhaseAfter),
	describe[platform.Float32Getter](platform.SurfaceLocation, platform.MethodGetAccuracy, models.KindAccessor, models.PhaseAfter),
	describe[platform.Float32Getter](platform.SurfaceLocation, platform.MethodGetSpeed, models.KindAccessor, models.PhaseAfter),
	describe[platform.Float32Getter](platform.SurfaceLocation, platform.MethodGetBearing, models.KindAccessor, models.PhaseAfter),
	describe[platform.Float64Getter](platform.SurfaceLocation, platform.MethodGetAltitude, models.KindAccessor, models.PhaseAfter),
	describe[platform.Float64Setter](platform.SurfaceLocation, platform.MethodSetLatitude, models.KindMutator, models.PhaseBefore),
	describe[platform.Float64Setter](platform.SurfaceLocation, platform.MethodSetLongitude, models.KindMutator, models.PhaseBefore),

	describe[platform.LastKnownLocationFunc](platform.SurfaceLocationManager, platform.MethodGetLastKnownLocation,
		models.KindComposite, models.PhaseAfter),
	describe[platform.RequestUpdatesFunc](platform.SurfaceLocationManager, platform.MethodRequestLocationUpdates,
		models.KindRegistration, models.PhaseAfter),

	describe[platform.ProviderLocationFunc](platform.SurfaceLocationProvider, platform.MethodGetLocation,
		models.KindComposite, models.PhaseAfter),

	describe[platform.ResultLocationFunc](platform.SurfaceLocationResult, platform.MethodGetLastLocation,
		models.KindComposite, models.PhaseAfter),
	describe[platform.ResultLocationsFunc](platform.SurfaceLocationResult, platform.MethodGetLocations,
		models.KindBatch, models.PhaseAfter),

	describe[platform.CallbackDispatch](platform.SurfaceLocationCallback, platform.MethodOnLocationResult,
		models.KindDispatch, models.PhaseBefore),

	describe[platform.LastLocationTaskFunc](platform.SurfaceFusedLocationClient, platform.MethodGetLastLocation,
		models.KindAsync, models.PhaseAfter),
	describe[platform.FusedRequestUpdatesFunc](platform.SurfaceFusedLocationClient, platform.MethodRequestLocationUpdates,
		models.KindRegistration, models.PhaseAfter),
}

//nolint:gochecknoglobals // helper table must be package-level
var helpers = []Descriptor{
	describe[platform.LocationFactory](platform.SurfaceLocation, platform.MethodNew, models.KindHelper, ""),
	describe[platform.Float64Setter](platform.SurfaceLocation, platform.MethodSetAltitude, models.KindHelper, ""),
	describe[platform.Float32Setter](platform.SurfaceLocation, platform.MethodSetAccuracy, models.KindHelper, ""),
	describe[platform.Float32Setter](platform.SurfaceLocation, platform.MethodSetSpeed, models.KindHelper, ""),
	describe[platform.Float32Setter](platform.SurfaceLocation, platform.MethodSetBearing, models.KindHelper, ""),
	describe[platform.TimeSetter](platform.SurfaceLocation, platform.MethodSetTime, models.KindHelper, ""),
	describe[platform.DurationSetter](platform.SurfaceLocation, platform.MethodSetElapsedRealtime, models.KindHelper, ""),
	describe[platform.ResultFactory](platform.SurfaceLocationResult, platform.MethodCreate, models.KindHelper, ""),
}

// Targets returns the hookable descriptors.
func Targets() []Descriptor {
	out := make([]Descriptor, len(targets))
	copy(out, targets)

	return out
}

// Helpers returns the methods the hooks call on the host but never replace.
func Helpers() []Descriptor {
	out := make([]Descriptor, len(helpers))
	copy(out, helpers)

	return out
}
