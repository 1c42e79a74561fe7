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
	"time"

	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/platform"
	"github.com/carverauto/geoshim/pkg/pump"
)

// installer replaces one method on st.img with its hooked version.
type installer func(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error

//nolint:gochecknoglobals // rule table must be package-level
var rules = map[platform.Key]installer{
	platform.K(platform.SurfaceLocation, platform.MethodGetLatitude): accessor64(
		func(r models.SyntheticReading) (float64, bool) { return r.Latitude, true }),
	platform.K(platform.SurfaceLocation, platform.MethodGetLongitude): accessor64(
		func(r models.SyntheticReading) (float64, bool) { return r.Longitude, true }),
	platform.K(platform.SurfaceLocation, platform.MethodGetAltitude): accessor64(
		func(r models.SyntheticReading) (float64, bool) { return r.Altitude, r.AltitudeSet }),
	platform.K(platform.SurfaceLocation, platform.MethodGetAccuracy): accessor32(
		func(r models.SyntheticReading) float32 { return r.Accuracy }),
	platform.K(platform.SurfaceLocation, platform.MethodGetSpeed): accessor32(
		func(r models.SyntheticReading) float32 { return r.Speed }),
	platform.K(platform.SurfaceLocation, platform.MethodGetBearing): accessor32(
		func(r models.SyntheticReading) float32 { return r.Bearing }),

	platform.K(platform.SurfaceLocation, platform.MethodSetLatitude): mutator(
		func(r models.SyntheticReading) float64 { return r.Latitude }),
	platform.K(platform.SurfaceLocation, platform.MethodSetLongitude): mutator(
		func(r models.SyntheticReading) float64 { return r.Longitude }),

	platform.K(platform.SurfaceLocationManager, platform.MethodGetLastKnownLocation):       installLastKnown,
	platform.K(platform.SurfaceLocationManager, platform.MethodRequestLocationUpdates):     installRequestUpdates,
	platform.K(platform.SurfaceLocationProvider, platform.MethodGetLocation):               installProviderLocation,
	platform.K(platform.SurfaceLocationResult, platform.MethodGetLastLocation):             installResultLast,
	platform.K(platform.SurfaceLocationResult, platform.MethodGetLocations):                installResultLocations,
	platform.K(platform.SurfaceLocationCallback, platform.MethodOnLocationResult):          installDispatch,
	platform.K(platform.SurfaceFusedLocationClient, platform.MethodGetLastLocation):        installFusedLast,
	platform.K(platform.SurfaceFusedLocationClient, platform.MethodRequestLocationUpdates): installFusedUpdates,
}

// accessor64 replaces a float64 getter's result after the original ran.
func accessor64(pick func(models.SyntheticReading) (float64, bool)) installer {
	return func(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
		orig, err := platform.Lookup[platform.Float64Getter](st.img, key)
		if err != nil {
			return err
		}

		st.keep(key, orig)

		return st.img.Replace(key, platform.Float64Getter(func(l *platform.Location) float64 {
			out := orig(l)

			e.guard(t, func() error {
				if r, ok := e.consult(st); ok {
					if replaced, use := pick(r); use {
						out = replaced
					}
				}

				return nil
			})

			return out
		}))
	}
}

func accessor32(pick func(models.SyntheticReading) float32) installer {
	return func(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
		orig, err := platform.Lookup[platform.Float32Getter](st.img, key)
		if err != nil {
			return err
		}

		st.keep(key, orig)

		return st.img.Replace(key, platform.Float32Getter(func(l *platform.Location) float32 {
			out := orig(l)

			e.guard(t, func() error {
				if r, ok := e.consult(st); ok {
					out = pick(r)
				}

				return nil
			})

			return out
		}))
	}
}

// mutator rewrites the argument before the original setter runs.
func mutator(pick func(models.SyntheticReading) float64) installer {
	return func(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
		orig, err := platform.Lookup[platform.Float64Setter](st.img, key)
		if err != nil {
			return err
		}

		st.keep(key, orig)

		return st.img.Replace(key, platform.Float64Setter(func(l *platform.Location, v float64) {
			arg := v

			e.guard(t, func() error {
				if r, ok := e.consult(st); ok {
					arg = pick(r)
				}

				return nil
			})

			orig(l, arg)
		}))
	}
}

// compositeResult is the shared body of every composite hook.
func (e *Engine) compositeResult(st *imageState, t models.ResolvedTarget, l *platform.Location) *platform.Location {
	out := l

	e.guard(t, func() error {
		r, ok := e.consult(st)
		if !ok {
			return nil
		}

		rewritten, err := composite(st, l, r)
		if err != nil {
			return err
		}

		out = rewritten

		return nil
	})

	return out
}

func installLastKnown(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.LastKnownLocationFunc](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.LastKnownLocationFunc(func(provider string) *platform.Location {
		return e.compositeResult(st, t, orig(provider))
	}))
}

func installProviderLocation(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.ProviderLocationFunc](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.ProviderLocationFunc(func() *platform.Location {
		return e.compositeResult(st, t, orig())
	}))
}

func installResultLast(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.ResultLocationFunc](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.ResultLocationFunc(func(res *platform.LocationResult) *platform.Location {
		return e.compositeResult(st, t, orig(res))
	}))
}

func installResultLocations(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.ResultLocationsFunc](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.ResultLocationsFunc(func(res *platform.LocationResult) []*platform.Location {
		ls := orig(res)

		e.guard(t, func() error {
			if len(ls) == 0 {
				return nil
			}

			r, ok := e.consult(st)
			if !ok {
				return nil
			}

			return rewriteAll(st, ls, r)
		})

		return ls
	}))
}

// installDispatch rewrites every location of the inbound result before the
// callback sees it.
func installDispatch(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.CallbackDispatch](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.CallbackDispatch(func(cb platform.LocationCallback, res *platform.LocationResult) {
		e.guard(t, func() error {
			if res == nil {
				return nil
			}

			r, ok := e.consult(st)
			if !ok {
				return nil
			}

			locations, err := helperOf[platform.ResultLocationsFunc](st,
				platform.K(platform.SurfaceLocationResult, platform.MethodGetLocations))
			if err != nil {
				return err
			}

			return rewriteAll(st, locations(res), r)
		})

		orig(cb, res)
	}))
}

// installFusedLast wraps the returned task so the composite rule runs when
// it completes.
func installFusedLast(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.LastLocationTaskFunc](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.LastLocationTaskFunc(func() *platform.Task {
		task := orig()
		if task == nil {
			return nil
		}

		wrapped := platform.NewTask()

		task.OnComplete(func(l *platform.Location, err error) {
			if err != nil {
				wrapped.Complete(l, err)
				return
			}

			wrapped.Complete(e.compositeResult(st, t, l), nil)
		})

		return wrapped
	}))
}

// installRequestUpdates lets the registration through, then queues one
// synthetic fix for the listener on the main looper.
func installRequestUpdates(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.RequestUpdatesFunc](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.RequestUpdatesFunc(
		func(provider string, minTime time.Duration, minDistance float32, listener platform.LocationListener) {
			orig(provider, minTime, minDistance, listener)

			e.guard(t, func() error {
				if listener == nil {
					return nil
				}

				r, ok := e.consult(st)
				if !ok {
					return nil
				}

				e.pump.Deliver(t, pump.OnLooper(st.img.MainLooper()), func() error {
					l, err := synthesizeFresh(st, r)
					if err != nil {
						return err
					}

					listener.OnLocationChanged(l)

					return nil
				})

				return nil
			})
		}))
}

// installFusedUpdates queues one synthetic result on the caller's looper,
// or the main looper when none was given.
func installFusedUpdates(e *Engine, st *imageState, t models.ResolvedTarget, key platform.Key) error {
	orig, err := platform.Lookup[platform.FusedRequestUpdatesFunc](st.img, key)
	if err != nil {
		return err
	}

	st.keep(key, orig)

	return st.img.Replace(key, platform.FusedRequestUpdatesFunc(
		func(req platform.LocationRequest, cb platform.LocationCallback, looper *platform.Looper) *platform.Task {
			task := orig(req, cb, looper)

			e.guard(t, func() error {
				if cb == nil {
					return nil
				}

				r, ok := e.consult(st)
				if !ok {
					return nil
				}

				target := looper
				if target == nil {
					target = st.img.MainLooper()
				}

				e.pump.Deliver(t, pump.OnLooper(target), func() error {
					res, err := syntheticResult(st, r)
					if err != nil {
						return err
					}

					cb.OnLocationResult(res)

					return nil
				})

				return nil
			})

			return task
		}))
}
