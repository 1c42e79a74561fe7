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
	"reflect"
	"sort"
	"sync"
)

// Image is one loaded process image. Host code resolves methods through the
// table on every call, so a replaced entry takes effect for all later callers.
type Image struct {
	name   string
	main   *Looper
	mu     sync.RWMutex
	table  map[Key]any
	usable map[Surface]bool
}

// NewEmptyImage creates an image with no surfaces. The main looper is the
// execution context listener deliveries default to.
func NewEmptyImage(name string, main *Looper) *Image {
	return &Image{
		name:   name,
		main:   main,
		table:  make(map[Key]any),
		usable: make(map[Surface]bool),
	}
}

// Name returns the process image name, e.g. com.google.android.gms.
func (img *Image) Name() string {
	return img.name
}

// MainLooper returns the image's main execution context.
func (img *Image) MainLooper() *Looper {
	return img.main
}

// Has reports whether the image carries the surface.
func (img *Image) Has(s Surface) bool {
	img.mu.RLock()
	defer img.mu.RUnlock()

	return img.usable[s]
}

// Define installs a method implementation, creating the surface if needed.
func (img *Image) Define(key Key, fn any) {
	img.mu.Lock()
	defer img.mu.Unlock()

	img.usable[key.Surface] = true
	img.table[key] = fn
}

// DeclareSurface registers a surface without methods.
func (img *Image) DeclareSurface(s Surface) {
	img.mu.Lock()
	defer img.mu.Unlock()

	img.usable[s] = true
}

// Remove drops a method from the table. The surface stays declared.
func (img *Image) Remove(key Key) {
	img.mu.Lock()
	defer img.mu.Unlock()

	delete(img.table, key)
}

// Replace swaps an existing method for fn. fn must carry the same signature
// type as the method it replaces.
func (img *Image) Replace(key Key, fn any) error {
	if fn == nil {
		return fmt.Errorf("%w: %s", errNilMethod, key)
	}

	if v := reflect.ValueOf(fn); v.Kind() == reflect.Func && v.IsNil() {
		return fmt.Errorf("%w: %s", errNilMethod, key)
	}

	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.usable[key.Surface] {
		return fmt.Errorf("%w: %s", ErrSurfaceNotFound, key.Surface)
	}

	current, ok := img.table[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMethodNotFound, key)
	}

	if reflect.TypeOf(current) != reflect.TypeOf(fn) {
		return fmt.Errorf("%w: %s has %T, got %T", ErrSignatureMismatch, key, current, fn)
	}

	img.table[key] = fn

	return nil
}

// Methods lists the keys defined on a surface, sorted for stable output.
func (img *Image) Methods(s Surface) []Key {
	img.mu.RLock()
	defer img.mu.RUnlock()

	keys := make([]Key, 0)

	for k := range img.table {
		if k.Surface == s {
			keys = append(keys, k)
		}
	}

	sort.Slice(keys, func(i, j int) bool { return keys[i].Method < keys[j].Method })

	return keys
}

func (img *Image) raw(key Key) (any, error) {
	img.mu.RLock()
	defer img.mu.RUnlock()

	if !img.usable[key.Surface] {
		return nil, fmt.Errorf("%w: %s", ErrSurfaceNotFound, key.Surface)
	}

	fn, ok := img.table[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, key)
	}

	return fn, nil
}

// Lookup resolves key to a method of signature F.
func Lookup[F any](img *Image, key Key) (F, error) {
	var zero F

	raw, err := img.raw(key)
	if err != nil {
		return zero, err
	}

	fn, ok := raw.(F)
	if !ok {
		return zero, fmt.Errorf("%w: %s has %T, want %T", ErrSignatureMismatch, key, raw, zero)
	}

	return fn, nil
}
