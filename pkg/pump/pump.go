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

// Package pump delivers one synthetic fix to each newly registered listener.
package pump

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
)

// DefaultDelay keeps the delivery behind the platform's own registration work.
const DefaultDelay = 100 * time.Millisecond

var (
	// ErrNoLooper is returned when a registration carries no execution context.
	ErrNoLooper = errors.New("no looper to deliver on")
	// ErrStopped is returned after Stop.
	ErrStopped = errors.New("pump stopped")
)

// Pump schedules deliveries and tracks them until they finish.
type Pump struct {
	delay   time.Duration
	logger  logger.Logger
	mu      sync.Mutex
	pending map[Handle]struct{}
	stopped bool
}

// New returns a pump. A non-positive delay uses DefaultDelay.
func New(delay time.Duration, log logger.Logger) *Pump {
	if delay <= 0 {
		delay = DefaultDelay
	}

	return &Pump{
		delay:   delay,
		logger:  log,
		pending: make(map[Handle]struct{}),
	}
}

// Delay returns the scheduling delay.
func (p *Pump) Delay() time.Duration {
	return p.delay
}

// Deliver schedules deliver on sched. Failures to schedule and faults inside
// deliver are logged, never returned: the caller is a hook that must not fail.
// The handle is nil when nothing was scheduled.
func (p *Pump) Deliver(target models.ResolvedTarget, sched Scheduler, deliver func() error) Handle {
	if sched == nil {
		p.fault(target, ErrNoLooper)
		return nil
	}

	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()

	if stopped {
		p.fault(target, ErrStopped)
		return nil
	}

	handle, err := sched.Schedule(
		func() { p.run(target, deliver) },
		func(err error) { p.fault(target, fmt.Errorf("dropped: %w", err)) },
		p.delay,
	)
	if err != nil {
		p.fault(target, fmt.Errorf("schedule: %w", err))
		return nil
	}

	if handle == nil {
		return nil
	}

	p.track(handle)

	return handle
}

func (p *Pump) run(target models.ResolvedTarget, deliver func() error) {
	defer func() {
		if r := recover(); r != nil {
			p.fault(target, fmt.Errorf("listener panicked: %v", r))
		}
	}()

	if err := deliver(); err != nil {
		p.fault(target, err)
		return
	}

	p.logger.Debug().Str("target", target.Key()).Msg("Delivered synthetic fix")
}

func (p *Pump) fault(target models.ResolvedTarget, err error) {
	p.logger.Warn().Err(err).Str("target", target.Key()).Msg("Synthetic delivery failed")
}

func (p *Pump) track(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pruneLocked()
	p.pending[h] = struct{}{}
}

func (p *Pump) pruneLocked() {
	for h := range p.pending {
		select {
		case <-h.Done():
			delete(p.pending, h)
		default:
		}
	}
}

// Pending returns how many deliveries have not finished yet.
func (p *Pump) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pruneLocked()

	return len(p.pending)
}

// Stop cancels every pending delivery and refuses new ones.
func (p *Pump) Stop() {
	p.mu.Lock()
	p.stopped = true

	handles := make([]Handle, 0, len(p.pending))
	for h := range p.pending {
		handles = append(handles, h)
	}
	p.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}
