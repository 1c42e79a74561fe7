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

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/atotto/clipboard"
	"github.com/rs/zerolog"

	"github.com/carverauto/geoshim/pkg/config"
	"github.com/carverauto/geoshim/pkg/control"
	"github.com/carverauto/geoshim/pkg/hook"
	"github.com/carverauto/geoshim/pkg/kv"
	"github.com/carverauto/geoshim/pkg/kv/kvnats"
	"github.com/carverauto/geoshim/pkg/lifecycle"
	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
	"github.com/carverauto/geoshim/pkg/natsutil"
	"github.com/carverauto/geoshim/pkg/override"
	"github.com/carverauto/geoshim/pkg/platform"
	"github.com/carverauto/geoshim/pkg/prefs"
	"github.com/carverauto/geoshim/pkg/probe"
	"github.com/carverauto/geoshim/pkg/procscan"
	"github.com/carverauto/geoshim/pkg/pump"
	"github.com/carverauto/geoshim/pkg/version"
)

const deliveryGrace = time.Second

// Runner executes parsed commands. Its hooks are replaceable in tests.
type Runner struct {
	Out           io.Writer
	ReadClipboard func() (string, error)
	ConnectKV     func(ctx context.Context, cfg models.MirrorConfig) (kv.KVStore, error)
}

// NewRunner returns a runner writing command output to out.
func NewRunner(out io.Writer) *Runner {
	return &Runner{
		Out:           out,
		ReadClipboard: clipboard.ReadAll,
		ConnectKV:     connectMirror,
	}
}

func connectMirror(ctx context.Context, cfg models.MirrorConfig) (kv.KVStore, error) {
	opts, err := natsutil.ConnectOptions(cfg)
	if err != nil {
		return nil, err
	}

	return kvnats.Connect(ctx, cfg.NATSURL, cfg.Bucket, opts...)
}

// session is the state every config-backed command shares.
type session struct {
	cfg    *models.AgentConfig
	log    logger.Logger
	writer *prefs.Writer
	store  *prefs.Store
	kv     kv.KVStore
	mirror *prefs.Mirror
}

func (s *session) Close() {
	if s.kv != nil {
		if err := s.kv.Close(); err != nil {
			s.log.Warn().Err(err).Msg("Failed to close mirror store")
		}
	}
}

func (s *session) controller() *control.Controller {
	opts := []control.Option{control.WithReader(s.store)}
	if s.mirror != nil {
		opts = append(opts, control.WithPublisher(s.mirror))
	}

	return control.New(s.writer, s.log, opts...)
}

// Run dispatches cmd.
func (r *Runner) Run(ctx context.Context, cmd *CmdConfig) error {
	if cmd.Help {
		ShowHelp(r.Out)
		return nil
	}

	switch cmd.SubCmd {
	case "version":
		return r.runVersion(cmd)
	case "probe":
		return r.runProbe(cmd)
	}

	s, err := r.setup(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	switch cmd.SubCmd {
	case "start":
		return r.runStart(ctx, cmd, s)
	case "stop":
		return r.runStop(ctx, s)
	case "status":
		return r.runStatus(ctx, cmd, s)
	case "simulate":
		return r.runSimulate(ctx, cmd, s)
	case "mirror":
		return r.runMirror(ctx, s)
	}

	return fmt.Errorf("%w: %q", errUnknownSubcommand, cmd.SubCmd)
}

func (r *Runner) setup(ctx context.Context, cmd *CmdConfig) (*session, error) {
	cfg, err := r.loadConfig(ctx, cmd)
	if err != nil {
		return nil, err
	}

	log, err := lifecycle.CreateComponentLogger("geoshim-"+cmd.SubCmd, cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	writer, err := prefs.NewWriter(cfg.Prefs, log)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:    cfg,
		log:    log,
		writer: writer,
		store:  prefs.NewStore(cfg.Prefs.Path(), log),
	}

	if !cfg.Mirror.Enabled {
		return s, nil
	}

	store, err := r.ConnectKV(ctx, cfg.Mirror)
	if err != nil {
		if cmd.SubCmd == "mirror" {
			return nil, fmt.Errorf("connect mirror: %w", err)
		}

		log.Warn().Err(err).Str("url", cfg.Mirror.NATSURL).Msg("Mirror unavailable, continuing without it")

		return s, nil
	}

	s.kv = store
	s.mirror = prefs.NewMirror(store, cfg.Mirror.Key, writer, log)

	return s, nil
}

// loadConfig reads the agent config. With CONFIG_SOURCE=kv the bucket is
// reached through the GEOSHIM_MIRROR_* variables before any file is read.
func (r *Runner) loadConfig(ctx context.Context, cmd *CmdConfig) (*models.AgentConfig, error) {
	cfg := &models.AgentConfig{}
	loader := config.NewConfig(nil)

	if config.UsesKV() {
		store, err := r.connectConfigKV(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errLoadConfig, err)
		}

		defer func() { _ = store.Close() }()

		loader.SetKVStore(store)
	}

	if err := loader.LoadAndValidate(ctx, cmd.ConfigFile, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", errLoadConfig, err)
	}

	return cfg, nil
}

func (r *Runner) connectConfigKV(ctx context.Context) (kv.KVStore, error) {
	var mc models.MirrorConfig

	env := config.NewEnvConfigLoader(nil, config.DefaultEnvPrefix+"MIRROR_")
	if err := env.Load(ctx, "", &mc); err != nil {
		return nil, err
	}

	if mc.NATSURL == "" {
		return nil, errKVSourceURL
	}

	if mc.Bucket == "" {
		mc.Bucket = models.DefaultAgentConfig().Mirror.Bucket
	}

	return r.ConnectKV(ctx, mc)
}

func (r *Runner) runStart(ctx context.Context, cmd *CmdConfig, s *session) error {
	text := cmd.Coordinate

	if cmd.Clipboard {
		clip, err := r.ReadClipboard()
		if err != nil {
			return fmt.Errorf("%w: %w", errClipboardRead, err)
		}

		text = clip
	}

	coord, err := control.ParseCoordinate(text)
	if err != nil {
		return err
	}

	if _, err := s.controller().StartOverride(ctx, coord); err != nil {
		return err
	}

	fmt.Fprintf(r.Out, "override enabled at %.6f,%.6f (%s)\n", coord.Latitude, coord.Longitude, s.writer.Path())

	return nil
}

func (r *Runner) runStop(ctx context.Context, s *session) error {
	if _, err := s.controller().StopOverride(ctx); err != nil {
		return err
	}

	fmt.Fprintf(r.Out, "override disabled (%s)\n", s.writer.Path())

	return nil
}

type statusReport struct {
	Path      string                `json:"path"`
	Outcome   prefs.ReadOutcome     `json:"outcome"`
	Active    bool                  `json:"active"`
	Config    models.OverrideConfig `json:"config"`
	Processes []procscan.Match      `json:"processes"`
}

func (r *Runner) runStatus(ctx context.Context, cmd *CmdConfig, s *session) error {
	cfg, outcome := s.controller().Status(ctx)

	report := statusReport{
		Path:    s.store.Path(),
		Outcome: outcome,
		Active:  cfg.Active(),
		Config:  cfg,
	}

	matches, err := procscan.New(s.cfg.Attach.AllowedImages, s.log).Scan(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Process scan failed")
	}

	report.Processes = matches

	if cmd.JSON {
		return r.writeJSON(report)
	}

	fmt.Fprintf(r.Out, "path:     %s\noutcome:  %s\nactive:   %t\n", report.Path, report.Outcome, report.Active)

	if cfg.HasTarget() {
		fmt.Fprintf(r.Out, "target:   %.6f,%.6f\n", *cfg.Latitude, *cfg.Longitude)
	}

	if cfg.Altitude != nil {
		fmt.Fprintf(r.Out, "altitude: %.1f\n", *cfg.Altitude)
	}

	tw := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PID\tIMAGE\tNAME")

	for _, m := range matches {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", m.PID, m.Image, m.Name)
	}

	return tw.Flush()
}

type probeReport struct {
	Profile platform.Profile        `json:"profile"`
	Targets []models.ResolvedTarget `json:"targets"`
	Helpers []models.ResolvedTarget `json:"helpers"`
}

func (r *Runner) runProbe(cmd *CmdConfig) error {
	profile, err := platform.LookupProfile(cmd.Profile)
	if err != nil {
		return err
	}

	img := platform.NewImage(profile.Name, profile, platform.NewDevice(), nil)
	p := probe.New(logger.NewWriterLogger(os.Stderr, zerolog.WarnLevel))

	report := probeReport{
		Profile: profile,
		Targets: p.ResolveAll(img, probe.Targets()),
		Helpers: p.ResolveAll(img, probe.Helpers()),
	}

	if cmd.JSON {
		return r.writeJSON(report)
	}

	tw := tabwriter.NewWriter(r.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TARGET\tKIND\tPHASE\tSTATUS")

	for _, group := range [][]models.ResolvedTarget{report.Targets, report.Helpers} {
		for _, t := range group {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", t.Key(), t.Kind, t.Phase, t.Status)
		}
	}

	return tw.Flush()
}

type simulateReport struct {
	Image     string            `json:"image"`
	Attached  bool              `json:"attached"`
	Hooks     int               `json:"hooks"`
	Outcome   prefs.ReadOutcome `json:"outcome"`
	Truth     platform.Fix      `json:"truth"`
	Observed  platform.Reading  `json:"observed"`
	Delivered *platform.Reading `json:"delivered,omitempty"`
}

// runSimulate attaches the hooks to an in-process image backed by the
// configured preferences file and reads a fix the way an app would.
func (r *Runner) runSimulate(ctx context.Context, cmd *CmdConfig, s *session) error {
	profile, err := platform.LookupProfile(cmd.Profile)
	if err != nil {
		return err
	}

	main := platform.NewLooper("main", 0)
	defer main.Quit()

	device := platform.NewDevice()
	img := platform.NewImage(cmd.Image, profile, device, main)

	engine := hook.NewEngine(s.store, override.NewProvider(nil),
		pump.New(time.Duration(s.cfg.Attach.DeliveryDelay), s.log), s.cfg.Attach.AllowedImages, s.log)
	defer engine.Stop()

	attach := engine.Attach(ctx, img)

	truth := platform.Fix{
		Provider:  "gps",
		Latitude:  37.4220,
		Longitude: -122.0841,
		Accuracy:  4,
		Speed:     1.5,
		Time:      time.Now(),
	}
	device.Report(truth)

	consumer := platform.NewConsumer(img)

	last, err := consumer.LastKnownLocation(truth.Provider)
	if err != nil {
		return err
	}

	observed, err := consumer.Snapshot(last)
	if err != nil {
		return err
	}

	_, outcome := s.store.Read(ctx)

	report := simulateReport{
		Image:    img.Name(),
		Attached: attach.Attached,
		Hooks:    len(attach.Registrations),
		Outcome:  outcome,
		Truth:    truth,
		Observed: observed,
	}

	delivered := make(chan *platform.Location, 1)
	listener := platform.ListenerFunc(func(l *platform.Location) {
		select {
		case delivered <- l:
		default:
		}
	})

	if err := consumer.RequestLocationUpdates(truth.Provider, platform.LocationRequest{}, listener); err != nil {
		s.log.Debug().Err(err).Msg("Update registration unavailable")
	} else {
		wait := time.NewTimer(time.Duration(s.cfg.Attach.DeliveryDelay) + deliveryGrace)
		defer wait.Stop()

		select {
		case l := <-delivered:
			if reading, err := consumer.Snapshot(l); err == nil {
				report.Delivered = &reading
			}
		case <-wait.C:
		case <-ctx.Done():
		}
	}

	if cmd.JSON {
		return r.writeJSON(report)
	}

	fmt.Fprintf(r.Out, "image:     %s (attached=%t, hooks=%d, config=%s)\n", report.Image, report.Attached, report.Hooks, report.Outcome)
	fmt.Fprintf(r.Out, "truth:     %.6f,%.6f\n", truth.Latitude, truth.Longitude)
	fmt.Fprintf(r.Out, "observed:  %.6f,%.6f accuracy=%.1f\n", observed.Latitude, observed.Longitude, observed.Accuracy)

	if report.Delivered != nil {
		fmt.Fprintf(r.Out, "delivered: %.6f,%.6f\n", report.Delivered.Latitude, report.Delivered.Longitude)
	}

	return nil
}

func (r *Runner) runMirror(ctx context.Context, s *session) error {
	if s.mirror == nil {
		return errMirrorDisabled
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	s.log.Info().
		Str("url", s.cfg.Mirror.NATSURL).
		Str("bucket", s.cfg.Mirror.Bucket).
		Str("key", s.cfg.Mirror.Key).
		Msg("Mirroring override")

	if err := s.mirror.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (r *Runner) runVersion(cmd *CmdConfig) error {
	if cmd.JSON {
		return r.writeJSON(version.GetInfo())
	}

	fmt.Fprintf(r.Out, "geoshim %s\n", version.GetFullVersion())

	return nil
}

func (r *Runner) writeJSON(v interface{}) error {
	enc := json.NewEncoder(r.Out)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
