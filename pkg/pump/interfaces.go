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

package pump

//go:generate mockgen -destination=mock_pump.go -package=pump github.com/carverauto/geoshim/pkg/pump Scheduler,Handle

import (
	"errors"
	"time"

	"github.com/carverauto/geoshim/pkg/platform"
)

// Scheduler runs a task once on an execution context after a delay. onFail
// receives the reason a scheduled task was dropped without running; it is not
// called for cancellation.
type Scheduler interface {
	Schedule(fn func(), onFail func(error), delay time.Duration) (Handle, error)
}

// Handle is a scheduled task.
type Handle interface {
	Cancel()
	Done() <-chan struct{}
}

type looperScheduler struct {
	looper *platform.Looper
}

// OnLooper schedules onto l.
func OnLooper(l *platform.Looper) Scheduler {
	return looperScheduler{looper: l}
}

func (s looperScheduler) Schedule(fn func(), onFail func(error), delay time.Duration) (Handle, error) {
	if s.looper == nil {
		return nil, ErrNoLooper
	}

	scheduled, err := s.looper.PostDelayed(fn, delay)
	if err != nil {
		return nil, err
	}

	if onFail != nil {
		go func() {
			<-scheduled.Done()

			if err := scheduled.Err(); err != nil && !errors.Is(err, platform.ErrCancelled) {
				onFail(err)
			}
		}()
	}

	return scheduled, nil
}
