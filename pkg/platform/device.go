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
	"sync"
)

// Device is the true position source behind an image. Tests and the simulator
// drive it with Report.
type Device struct {
	mu          sync.RWMutex
	last        *Fix
	nextID      int
	subscribers map[int]func(Fix)
}

// NewDevice creates a device with no fix yet.
func NewDevice() *Device {
	return &Device{subscribers: make(map[int]func(Fix))}
}

// Report records a new true fix and fans it out to subscribers.
func (d *Device) Report(fix Fix) {
	d.mu.Lock()
	stored := fix
	d.last = &stored

	subs := make([]func(Fix), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		subs = append(subs, fn)
	}
	d.mu.Unlock()

	for _, fn := range subs {
		fn(fix)
	}
}

// LastKnown returns a fresh Location for the last fix, or nil.
func (d *Device) LastKnown() *Location {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.last == nil {
		return nil
	}

	return NewLocationFrom(*d.last)
}

// Subscribe registers fn for future fixes and returns an unsubscribe func.
func (d *Device) Subscribe(fn func(Fix)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.subscribers[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.subscribers, id)
		d.mu.Unlock()
	}
}

// Subscribers reports how many subscriptions are live.
func (d *Device) Subscribers() int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return len(d.subscribers)
}
