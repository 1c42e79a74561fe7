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

// Package cli implements the geoshim command line.
package cli

import (
	"flag"
	"fmt"
	"io"
)

const (
	defaultProfile = "modern"
	defaultImage   = "com.google.android.apps.maps"
)

// SubcommandHandler defines the interface for parsing subcommand flags.
type SubcommandHandler interface {
	Parse(args []string, cfg *CmdConfig) error
}

func newFlagSet(name string, cfg *CmdConfig) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.ConfigFile, "config", "", "path to geoshim config file")
	fs.BoolVar(&cfg.JSON, "json", false, "machine-readable output")

	return fs
}

func parseInto(fs *flag.FlagSet, args []string, cfg *CmdConfig) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing %s flags: %w", fs.Name(), err)
	}

	cfg.Args = fs.Args()

	return nil
}

// StartHandler handles flags for the start subcommand.
type StartHandler struct{}

// Parse processes the command-line arguments for the start subcommand.
func (StartHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet("start", cfg)
	fs.StringVar(&cfg.Coordinate, "coord", "", "target as lat,lon[,alt]")
	fs.BoolVar(&cfg.Clipboard, "clipboard", false, "read the target from the clipboard")

	if err := parseInto(fs, args, cfg); err != nil {
		return err
	}

	if cfg.Coordinate != "" && cfg.Clipboard {
		return errCoordinateTwice
	}

	if cfg.Coordinate == "" && !cfg.Clipboard {
		return errCoordinateMissing
	}

	return nil
}

// ConfigOnlyHandler handles subcommands that take only the common flags.
type ConfigOnlyHandler struct {
	Name string
}

// Parse processes the common flags.
func (h ConfigOnlyHandler) Parse(args []string, cfg *CmdConfig) error {
	return parseInto(newFlagSet(h.Name, cfg), args, cfg)
}

// ProfileHandler handles flags for probe and simulate.
type ProfileHandler struct {
	Name string
}

// Parse processes the profile selection flags.
func (h ProfileHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := newFlagSet(h.Name, cfg)
	fs.StringVar(&cfg.Profile, "profile", defaultProfile, "platform profile")
	fs.StringVar(&cfg.Image, "image", defaultImage, "image name to attach")

	return parseInto(fs, args, cfg)
}

func subcommands() map[string]SubcommandHandler {
	return map[string]SubcommandHandler{
		"start":    StartHandler{},
		"stop":     ConfigOnlyHandler{Name: "stop"},
		"status":   ConfigOnlyHandler{Name: "status"},
		"mirror":   ConfigOnlyHandler{Name: "mirror"},
		"version":  ConfigOnlyHandler{Name: "version"},
		"probe":    ProfileHandler{Name: "probe"},
		"simulate": ProfileHandler{Name: "simulate"},
	}
}

// ParseFlags parses args, which excludes the program name.
func ParseFlags(args []string) (*CmdConfig, error) {
	cfg := &CmdConfig{}

	if len(args) == 0 {
		cfg.Help = true
		return cfg, nil
	}

	cfg.SubCmd = args[0]

	switch cfg.SubCmd {
	case "help", "-h", "-help", "--help":
		cfg.Help = true
		return cfg, nil
	}

	handler, ok := subcommands()[cfg.SubCmd]
	if !ok {
		return cfg, fmt.Errorf("%w: %q", errUnknownSubcommand, cfg.SubCmd)
	}

	if err := handler.Parse(args[1:], cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}
