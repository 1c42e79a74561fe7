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

// Package control is the operator side of the override channel: it turns a
// picked coordinate into a committed preferences document.
package control

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/prefs"
)

// Publisher forwards operator intent to remote consumers.
type Publisher interface {
	Publish(ctx context.Context, cfg models.OverrideConfig) (prefs.MirrorRecord, error)
}

// Controller starts and stops the override.
type Controller struct {
	writer    *prefs.Writer
	reader    prefs.Reader
	publisher Publisher
	logger    logger.Logger
}

// Option customizes a Controller.
type Option func(*Controller)

// WithPublisher also publishes every committed change.
func WithPublisher(p Publisher) Option {
	return func(c *Controller) {
		c.publisher = p
	}
}

// WithReader sets the reader used by Status.
func WithReader(r prefs.Reader) Option {
	return func(c *Controller) {
		c.reader = r
	}
}

// New returns a controller writing through w.
func New(w *prefs.Writer, log logger.Logger, opts ...Option) *Controller {
	c := &Controller{
		writer: w,
		logger: log,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// StartOverride commits coord as the active override.
func (c *Controller) StartOverride(ctx context.Context, coord models.Coordinate) (bool, error) {
	if err := ValidateCoordinate(coord); err != nil {
		return false, err
	}

	cfg := models.OverrideConfig{
		Enabled:   true,
		Latitude:  models.NonZeroFloat64(coord.Latitude),
		Longitude: models.NonZeroFloat64(coord.Longitude),
	}

	if coord.Altitude != nil {
		cfg.Altitude = models.NonZeroFloat32(*coord.Altitude)
	}

	if !cfg.HasTarget() {
		c.logger.Warn().
			Float64("latitude", coord.Latitude).
			Float64("longitude", coord.Longitude).
			Msg("Coordinate on the equator or prime meridian reads back as unset; hooks will pass through")
	}

	return c.commit(ctx, cfg)
}

// StopOverride disables the override. The last coordinates stay in the file.
func (c *Controller) StopOverride(ctx context.Context) (bool, error) {
	return c.commit(ctx, models.OverrideConfig{Enabled: false})
}

// Status reads the document the way the hooks will see it.
func (c *Controller) Status(ctx context.Context) (models.OverrideConfig, prefs.ReadOutcome) {
	if c.reader == nil {
		return models.OverrideConfig{}, prefs.ReadDisabled
	}

	return c.reader.Read(ctx)
}

func (c *Controller) commit(ctx context.Context, cfg models.OverrideConfig) (bool, error) {
	res, err := c.writer.WriteOverride(ctx, cfg)
	if err != nil {
		c.logger.Error().Err(err).Str("path", c.writer.Path()).Msg("Failed to commit override")
		return false, err
	}

	if !res.Committed {
		return false, ErrNotCommitted
	}

	ev := c.logger.Info()
	if !res.Readable {
		ev = c.logger.Warn().Str("widen_note", res.WidenNote)
	}

	ev.Str("path", res.Path).
		Bool("enabled", cfg.Enabled).
		Bool("readable", res.Readable).
		Bool("elevated", res.ElevatedWidened).
		Msg("Override committed")

	if c.publisher != nil {
		rec, err := c.publisher.Publish(ctx, cfg)
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to publish override to mirror")
		} else {
			c.logger.Debug().Str("revision", rec.Revision).Msg("Published override")
		}
	}

	return true, nil
}

// ValidateCoordinate rejects values no location can carry.
func ValidateCoordinate(coord models.Coordinate) error {
	return coord.Validate()
}

// ParseCoordinate reads "lat,lon" or "lat,lon,alt".
func ParseCoordinate(s string) (models.Coordinate, error) {
	parts := strings.Split(strings.TrimSpace(s), ",")
	if len(parts) != 2 && len(parts) != 3 {
		return models.Coordinate{}, fmt.Errorf("%w: want lat,lon[,alt], got %q", ErrInvalidCoordinate, s)
	}

	var (
		coord models.Coordinate
		err   error
	)

	if coord.Latitude, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: latitude: %w", ErrInvalidCoordinate, err)
	}

	if coord.Longitude, err = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err != nil {
		return models.Coordinate{}, fmt.Errorf("%w: longitude: %w", ErrInvalidCoordinate, err)
	}

	if len(parts) == 3 {
		alt, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 32)
		if err != nil {
			return models.Coordinate{}, fmt.Errorf("%w: altitude: %w", ErrInvalidCoordinate, err)
		}

		a := float32(alt)
		coord.Altitude = &a
	}

	return coord, ValidateCoordinate(coord)
}
