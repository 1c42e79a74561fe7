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

package override

import (
	"time"

	"golang.org/x/sys/unix"
)

// realClock reads CLOCK_BOOTTIME for elapsed time, the base platform fixes use.
type realClock struct {
	start time.Time
}

func newRealClock() realClock {
	return realClock{start: time.Now()}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (c realClock) Elapsed() time.Duration {
	var ts unix.Timespec

	if err := unix.ClockGettime(unix.CLOCK_BOOTTIME, &ts); err != nil {
		return time.Since(c.start)
	}

	return time.Duration(ts.Nano())
}
