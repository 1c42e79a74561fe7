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

package prefs

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

const (
	appearRetries  = 5
	appearInterval = 50 * time.Millisecond
)

// CommandRunner runs the elevated permission repair.
type CommandRunner interface {
	LookPath(name string) (string, error)
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// widen makes the committed file readable by the hook side: an in-process
// chmod first, then the elevated command when that was not enough.
func (w *Writer) widen(ctx context.Context, path string, result *CommitResult) {
	if !w.waitForFile(ctx, path) {
		result.WidenNote = "file did not appear after commit"
		w.logger.Warn().Str("path", path).Msg("Preferences file missing after commit")

		return
	}

	if err := chmodInProcess(path, w.mode); err != nil {
		w.logger.Debug().Err(err).Str("path", path).Msg("In-process chmod failed")
	} else {
		result.InProcessWidened = true
	}

	if !result.InProcessWidened || !hasMode(path, w.mode) {
		if err := w.chmodElevated(ctx, path); err != nil {
			result.WidenNote = err.Error()
			w.logger.Warn().Err(err).Str("path", path).Msg("Elevated chmod failed")
		} else {
			result.ElevatedWidened = true
		}
	}

	result.Readable = unix.Access(path, unix.R_OK) == nil
}

func (w *Writer) waitForFile(ctx context.Context, path string) bool {
	for attempt := 0; ; attempt++ {
		if _, err := os.Stat(path); err == nil {
			return true
		}

		if attempt >= appearRetries {
			return false
		}

		timer := time.NewTimer(appearInterval)

		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
	}
}

func chmodInProcess(path string, mode os.FileMode) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return unix.Fchmod(int(f.Fd()), uint32(mode.Perm()))
}

func hasMode(path string, mode os.FileMode) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}

	return info.Mode().Perm() == mode.Perm()
}

// chmodElevated runs e.g. `su -c "chmod 644 <path>"`. The command's presence
// is checked first so a device without it fails fast.
func (w *Writer) chmodElevated(ctx context.Context, path string) error {
	cmd := w.cfg.ElevatedCommand
	if len(cmd) == 0 {
		return fmt.Errorf("%w: none configured", ErrElevatedUnavailable)
	}

	if _, err := w.runner.LookPath(cmd[0]); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrElevatedUnavailable, cmd[0], err)
	}

	timeout := time.Duration(w.cfg.ElevatedTimeout)
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := make([]string, 0, len(cmd))
	args = append(args, cmd[1:]...)
	args = append(args, fmt.Sprintf("chmod %o '%s'", w.mode.Perm(), path))

	out, err := w.runner.Run(ctx, cmd[0], args...)
	if err != nil {
		return fmt.Errorf("%s: %w (output: %q)", cmd[0], err, out)
	}

	return nil
}
