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

// Package procscan finds running processes whose image is on the attach
// allow-list.
package procscan

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/carverauto/geoshim/pkg/logger"
)

var ErrNoProcesses = errors.New("process table unavailable")

// imageAliases maps process names to the image they host.
//
//nolint:gochecknoglobals // static alias table
var imageAliases = map[string]string{
	"system_server": "android",
}

// Match is one running allow-listed process.
type Match struct {
	PID   int32  `json:"pid"`
	Image string `json:"image"`
	Name  string `json:"name"`
}

type candidate struct {
	pid   int32
	name  string
	argv0 string
}

// Scanner lists allow-listed processes.
type Scanner struct {
	allowed map[string]struct{}
	logger  logger.Logger
	list    func(ctx context.Context) ([]candidate, error)
}

// New returns a scanner over the local process table.
func New(allowed []string, log logger.Logger) *Scanner {
	set := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		set[name] = struct{}{}
	}

	return &Scanner{
		allowed: set,
		logger:  log,
		list:    listProcesses,
	}
}

// Scan returns the matching processes ordered by image, then pid.
func (s *Scanner) Scan(ctx context.Context) ([]Match, error) {
	candidates, err := s.list(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoProcesses, err)
	}

	var matches []Match

	for _, c := range candidates {
		image := imageOf(c)
		if _, ok := s.allowed[image]; !ok {
			continue
		}

		matches = append(matches, Match{PID: c.pid, Image: image, Name: c.name})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Image != matches[j].Image {
			return matches[i].Image < matches[j].Image
		}

		return matches[i].PID < matches[j].PID
	})

	s.logger.Debug().Int("scanned", len(candidates)).Int("matched", len(matches)).Msg("Process scan complete")

	return matches, nil
}

// imageOf prefers argv[0]: the kernel truncates comm to 15 bytes, which cuts
// most package names short.
func imageOf(c candidate) string {
	name := c.name
	if c.argv0 != "" {
		name = filepath.Base(c.argv0)
	}

	// Secondary processes run as package:suffix.
	if i := strings.IndexByte(name, ':'); i > 0 {
		name = name[:i]
	}

	if alias, ok := imageAliases[name]; ok {
		return alias
	}

	return name
}

func listProcesses(ctx context.Context) ([]candidate, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]candidate, 0, len(procs))

	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Processes exit between listing and inspection.
			continue
		}

		c := candidate{pid: p.Pid, name: name}

		if argv, err := p.CmdlineSliceWithContext(ctx); err == nil && len(argv) > 0 {
			c.argv0 = argv[0]
		}

		out = append(out, c)
	}

	return out, nil
}
