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

// Package natsutil builds NATS connection options from the mirror config.
package natsutil

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"github.com/nats-io/nats.go"

	"github.com/carverauto/geoshim/pkg/models"
)

var (
	// ErrTLSRequired is returned when TLSConfig is called without a TLS section.
	ErrTLSRequired = errors.New("mirror tls section required")
	// ErrCAParsingFailed is returned when CA certificate cannot be parsed
	ErrCAParsingFailed = errors.New("failed to parse CA certificate")
)

// TLSConfig builds a tls.Config for connecting to NATS. A client certificate
// is loaded only when both CertFile and KeyFile are set.
func TLSConfig(sec *models.MirrorTLS) (*tls.Config, error) {
	if sec == nil {
		return nil, ErrTLSRequired
	}

	caCert, err := os.ReadFile(sec.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}

	caPool := x509.NewCertPool()
	if !caPool.AppendCertsFromPEM(caCert) {
		return nil, ErrCAParsingFailed
	}

	cfg := &tls.Config{
		RootCAs:    caPool,
		ServerName: sec.ServerName,
		MinVersion: tls.VersionTLS13,
	}

	if sec.CertFile != "" && sec.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(sec.CertFile, sec.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate: %w", err)
		}

		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// ConnectOptions turns the mirror's credentials and TLS settings into
// nats.Options.
func ConnectOptions(cfg models.MirrorConfig) ([]nats.Option, error) {
	var opts []nats.Option

	if cfg.TLS != nil {
		tlsCfg, err := TLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}

		opts = append(opts, nats.Secure(tlsCfg))
	}

	if cfg.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(cfg.CredsFile))
	}

	return opts, nil
}
