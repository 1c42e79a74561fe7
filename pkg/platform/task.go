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
	"context"
	"sync"
)

// Task is a one-shot asynchronous location result.
type Task struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	result    *Location
	err       error
	listeners []func(*Location, error)
}

// NewTask returns a pending task.
func NewTask() *Task {
	return &Task{done: make(chan struct{})}
}

// CompletedTask returns a task that already holds its result.
func CompletedTask(l *Location, err error) *Task {
	t := NewTask()
	t.Complete(l, err)

	return t
}

// Complete settles the task. Only the first call has any effect.
func (t *Task) Complete(l *Location, err error) bool {
	t.mu.Lock()
	if t.completed {
		t.mu.Unlock()
		return false
	}

	t.completed = true
	t.result = l
	t.err = err
	listeners := t.listeners
	t.listeners = nil
	close(t.done)
	t.mu.Unlock()

	for _, fn := range listeners {
		fn(l, err)
	}

	return true
}

// OnComplete runs fn with the result, immediately if the task has settled.
func (t *Task) OnComplete(fn func(*Location, error)) {
	t.mu.Lock()
	if !t.completed {
		t.listeners = append(t.listeners, fn)
		t.mu.Unlock()

		return
	}

	l, err := t.result, t.err
	t.mu.Unlock()

	fn(l, err)
}

// Done is closed once the task settles.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Await blocks until the task settles or ctx ends.
func (t *Task) Await(ctx context.Context) (*Location, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.done:
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	return t.result, t.err
}
