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
	"sync/atomic"
	"time"
)

const defaultLooperBacklog = 64

// task is a queued unit of work. dropped, when set, runs instead of run if the
// looper quits first.
type task struct {
	run     func()
	dropped func()
}

// Looper is a serial execution context: tasks posted to it run one at a time on
// its own goroutine, in post order. Listener deliveries run on a looper.
type Looper struct {
	name   string
	tasks  chan task
	quit   chan struct{}
	done   chan struct{}
	once   sync.Once
	mu     sync.RWMutex
	closed bool
	// onPanic observes tasks that panicked; the looper keeps running.
	onPanic func(recovered interface{})
}

// NewLooper starts a looper. backlog bounds the queue; Post blocks when full.
func NewLooper(name string, backlog int) *Looper {
	if backlog <= 0 {
		backlog = defaultLooperBacklog
	}

	l := &Looper{
		name:  name,
		tasks: make(chan task, backlog),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	go l.loop()

	return l
}

// SetPanicHandler installs an observer for panicking tasks. Call before posting.
func (l *Looper) SetPanicHandler(fn func(recovered interface{})) {
	l.onPanic = fn
}

// Name returns the looper name.
func (l *Looper) Name() string {
	return l.name
}

func (l *Looper) loop() {
	defer close(l.done)

	for {
		select {
		case <-l.quit:
			return
		default:
		}

		select {
		case <-l.quit:
			return
		case t := <-l.tasks:
			l.runTask(t.run)
		}
	}
}

func (l *Looper) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil && l.onPanic != nil {
			l.onPanic(r)
		}
	}()

	fn()
}

// Post enqueues fn.
func (l *Looper) Post(fn func()) error {
	return l.post(task{run: fn})
}

func (l *Looper) post(t task) error {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return ErrLooperQuit
	}

	select {
	case <-l.quit:
		return ErrLooperQuit
	default:
	}

	select {
	case <-l.quit:
		return ErrLooperQuit
	case l.tasks <- t:
		return nil
	}
}

// PostDelayed enqueues fn after delay. The returned handle can cancel it.
func (l *Looper) PostDelayed(fn func(), delay time.Duration) (*Scheduled, error) {
	select {
	case <-l.quit:
		return nil, ErrLooperQuit
	default:
	}

	s := &Scheduled{done: make(chan struct{})}

	s.timer = time.AfterFunc(delay, func() {
		if s.cancelled.Load() {
			return
		}

		err := l.post(task{
			run: func() {
				defer s.finish(nil)

				if s.cancelled.Load() {
					return
				}

				fn()
			},
			dropped: func() { s.finish(ErrLooperQuit) },
		})
		if err != nil {
			s.finish(err)
		}
	})

	return s, nil
}

// Quit stops the looper. Queued tasks that have not started are dropped, and
// delayed tasks among them finish with ErrLooperQuit.
func (l *Looper) Quit() {
	l.once.Do(func() {
		close(l.quit)
		<-l.done

		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()

		l.drain()
	})

	<-l.done
}

func (l *Looper) drain() {
	for {
		select {
		case t := <-l.tasks:
			if t.dropped != nil {
				t.dropped()
			}
		default:
			return
		}
	}
}

// Scheduled is a delayed task on a looper.
type Scheduled struct {
	timer     *time.Timer
	cancelled atomic.Bool
	finished  sync.Once
	done      chan struct{}
	err       error
}

func (s *Scheduled) finish(err error) {
	s.finished.Do(func() {
		s.err = err
		close(s.done)
	})
}

// Cancel prevents the task from running if it has not started yet.
func (s *Scheduled) Cancel() {
	s.cancelled.Store(true)
	s.timer.Stop()
	s.finish(ErrCancelled)
}

// Done is closed once the task ran, was cancelled, could not be posted, or was
// dropped by a quitting looper.
func (s *Scheduled) Done() <-chan struct{} {
	return s.done
}

// Err reports why the task did not run. Valid after Done is closed.
func (s *Scheduled) Err() error {
	<-s.done
	return s.err
}
