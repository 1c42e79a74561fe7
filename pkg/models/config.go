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

package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/carverauto/geoshim/pkg/logger"
)

// Duration is a time.Duration that unmarshals from "100ms" style strings or
// from a number of nanoseconds.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		// parse numeric as nanoseconds
		*d = Duration(time.Duration(value))
		return nil
	case string:
		dur, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}

		*d = Duration(dur)

		return nil
	default:
		return errInvalidDuration
	}
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

const (
	// ControlPlanePackage is the package that owns the backing preferences file.
	ControlPlanePackage = "io.carverauto.geoshim"
	// DefaultPrefsName is the base name of the backing preferences file.
	DefaultPrefsName = "LocationSpoofer"

	defaultFileMode        = "0644"
	defaultDeliveryDelay   = 100 * time.Millisecond
	defaultElevatedTimeout = 5 * time.Second
	defaultMirrorBucket    = "geoshim"
	defaultMirrorKey       = "override"
	maxDeliveryDelay       = 5 * time.Second
)

var (
	errInvalidDuration       = errors.New("invalid duration")
	errInvalidFileMode       = errors.New("prefs.file_mode must be an octal permission such as 0644")
	errDeliveryDelayRange    = errors.New("attach.delivery_delay must be between 0 and 5s")
	errMirrorURLRequired     = errors.New("mirror.nats_url is required when the mirror is enabled")
	errMirrorKeyPair         = errors.New("mirror.tls.cert_file and mirror.tls.key_file must be set together")
	errAllowListEmpty        = errors.New("attach.allowed_images must name at least one image")
	errPrefsNameHasSeparator = errors.New("prefs.name must be a bare file name")
)

// DefaultAllowedImages are the process images that consume location data on a
// stock device: the system framework, Play Services, Maps and the control plane.
func DefaultAllowedImages() []string {
	return []string{
		"android",
		"com.android.server",
		"com.google.android.gms",
		"com.google.android.apps.maps",
		ControlPlanePackage,
	}
}

// PrefsConfig locates the backing file shared by both sides.
type PrefsConfig struct {
	Dir             string   `json:"dir"`
	Name            string   `json:"name"`
	FileMode        string   `json:"file_mode"`
	ElevatedCommand []string `json:"elevated_command"`
	ElevatedTimeout Duration `json:"elevated_timeout"`
}

// Path returns the full path of the backing file.
func (p PrefsConfig) Path() string {
	return filepath.Join(p.Dir, p.Name+".xml")
}

// Mode parses FileMode.
func (p PrefsConfig) Mode() (os.FileMode, error) {
	mode, err := strconv.ParseUint(p.FileMode, 8, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", errInvalidFileMode, p.FileMode)
	}

	return os.FileMode(mode), nil
}

// AttachConfig controls which images are hooked and how synthetic events are paced.
type AttachConfig struct {
	AllowedImages []string `json:"allowed_images"`
	DeliveryDelay Duration `json:"delivery_delay"`
}

// MirrorConfig wires a remote control plane through a JetStream KV bucket.
type MirrorConfig struct {
	Enabled   bool       `json:"enabled"`
	NATSURL   string     `json:"nats_url"`
	Bucket    string     `json:"bucket"`
	Key       string     `json:"key"`
	CredsFile string     `json:"creds_file,omitempty"`
	TLS       *MirrorTLS `json:"tls,omitempty"`
}

// MirrorTLS enables (m)TLS to the NATS server. CertFile and KeyFile are
// optional together; CAFile alone verifies the server.
type MirrorTLS struct {
	CAFile     string `json:"ca_file"`
	CertFile   string `json:"cert_file,omitempty"`
	KeyFile    string `json:"key_file,omitempty"`
	ServerName string `json:"server_name,omitempty"`
}

// AgentConfig is the file/env configuration of the geoshim binary.
type AgentConfig struct {
	Prefs   PrefsConfig    `json:"prefs"`
	Attach  AttachConfig   `json:"attach"`
	Mirror  MirrorConfig   `json:"mirror"`
	Logging *logger.Config `json:"logging,omitempty"`
}

// DefaultAgentConfig returns a config with every default applied.
func DefaultAgentConfig() *AgentConfig {
	cfg := &AgentConfig{}
	cfg.applyDefaults()

	return cfg
}

func (c *AgentConfig) applyDefaults() {
	if c.Prefs.Dir == "" {
		c.Prefs.Dir = filepath.Join("/data/data", ControlPlanePackage, "shared_prefs")
	}

	if c.Prefs.Name == "" {
		c.Prefs.Name = DefaultPrefsName
	}

	if c.Prefs.FileMode == "" {
		c.Prefs.FileMode = defaultFileMode
	}

	if c.Prefs.ElevatedCommand == nil {
		c.Prefs.ElevatedCommand = []string{"su", "-c"}
	}

	if c.Prefs.ElevatedTimeout == 0 {
		c.Prefs.ElevatedTimeout = Duration(defaultElevatedTimeout)
	}

	if c.Attach.AllowedImages == nil {
		c.Attach.AllowedImages = DefaultAllowedImages()
	}

	if c.Attach.DeliveryDelay == 0 {
		c.Attach.DeliveryDelay = Duration(defaultDeliveryDelay)
	}

	if c.Mirror.Bucket == "" {
		c.Mirror.Bucket = defaultMirrorBucket
	}

	if c.Mirror.Key == "" {
		c.Mirror.Key = defaultMirrorKey
	}

	if c.Logging == nil {
		c.Logging = logger.DefaultConfig()
	}
}

// Validate applies defaults and rejects settings the agent cannot run with.
func (c *AgentConfig) Validate() error {
	c.applyDefaults()

	if _, err := c.Prefs.Mode(); err != nil {
		return err
	}

	if filepath.Base(c.Prefs.Name) != c.Prefs.Name {
		return errPrefsNameHasSeparator
	}

	if len(c.Attach.AllowedImages) == 0 {
		return errAllowListEmpty
	}

	delay := time.Duration(c.Attach.DeliveryDelay)
	if delay < 0 || delay > maxDeliveryDelay {
		return errDeliveryDelayRange
	}

	if c.Mirror.Enabled && c.Mirror.NATSURL == "" {
		return errMirrorURLRequired
	}

	if t := c.Mirror.TLS; t != nil && (t.CertFile == "") != (t.KeyFile == "") {
		return errMirrorKeyPair
	}

	return nil
}
