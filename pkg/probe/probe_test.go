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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/platform"
)

func find(t *testing.T, targets []models.ResolvedTarget, surface platform.Surface, method platform.Method) models.ResolvedTarget {
	t.Helper()

	for _, target := range targets {
		if target.Surface == string(surface) && target.Method == string(method) {
			return target
		}
	}

	t.Fatalf("target %s.%s not probed", surface, method)

	return models.ResolvedTarget{}
}

func TestResolveAllFullProfile(t *testing.T) {
	img := platform.NewImage("com.google.android.gms", platform.Profile{APILevel: 33, PlayServices: true}, platform.NewDevice(), nil)

	resolved := New(logger.NewTestLogger()).ResolveAll(img, Targets())
	require.Len(t, resolved, len(Targets()))

	for _, target := range resolved {
		assert.Equal(t, models.StatusFound, target.Status, target.Key())
	}

	lat := find(t, resolved, platform.SurfaceLocation, platform.MethodGetLatitude)
	assert.Equal(t, "platform.Float64Getter", lat.Signature)
	assert.Equal(t, models.KindAccessor, lat.Kind)
	assert.Equal(t, models.PhaseAfter, lat.Phase)
}

func TestResolveMissingSurfaces(t *testing.T) {
	img := platform.NewImage("android", platform.Profile{APILevel: 29}, platform.NewDevice(), nil)

	resolved := New(logger.NewTestLogger()).ResolveAll(img, Targets())

	fused := find(t, resolved, platform.SurfaceFusedLocationClient, platform.MethodGetLastLocation)
	assert.Equal(t, models.StatusNotFound, fused.Status)
	assert.NotEmpty(t, fused.Detail)

	provider := find(t, resolved, platform.SurfaceLocationProvider, platform.MethodGetLocation)
	assert.Equal(t, models.StatusNotFound, provider.Status)

	counts := Summary(resolved)
	assert.Equal(t, 10, counts[models.StatusFound])
	assert.Equal(t, 6, counts[models.StatusNotFound])
}

func TestResolveSignatureMismatch(t *testing.T) {
	img := platform.NewImage("android", platform.Profile{APILevel: 34}, platform.NewDevice(), nil)

	target := New(logger.NewTestLogger()).ResolveAll(img, Targets())
	updates := find(t, target, platform.SurfaceLocationManager, platform.MethodRequestLocationUpdates)

	assert.Equal(t, models.StatusSignatureMismatch, updates.Status)
	assert.False(t, updates.Found())
}

func TestResolveIsIdempotent(t *testing.T) {
	img := platform.NewImage("android", platform.Profile{APILevel: 33}, platform.NewDevice(), nil)
	p := New(logger.NewTestLogger())

	first := p.ResolveAll(img, Targets())
	second := p.ResolveAll(img, Targets())

	assert.Equal(t, first, second)
}

func TestResolveNilImage(t *testing.T) {
	target := New(logger.NewTestLogger()).Resolve(nil, Targets()[0])
	assert.Equal(t, models.StatusNotFound, target.Status)
}

func TestHelpersResolve(t *testing.T) {
	img := platform.NewImage("com.google.android.gms", platform.Profile{APILevel: 33, PlayServices: true}, platform.NewDevice(), nil)

	for _, target := range New(logger.NewTestLogger()).ResolveAll(img, Helpers()) {
		assert.Equal(t, models.StatusFound, target.Status, target.Key())
		assert.Equal(t, models.KindHelper, target.Kind)
	}
}
