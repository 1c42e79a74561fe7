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

package natsutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/geoshim/pkg/models"
)

func TestTLSConfigRequiresSection(t *testing.T) {
	_, err := TLSConfig(nil)
	require.ErrorIs(t, err, ErrTLSRequired)
}

func TestTLSConfigRejectsBadCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	_, err := TLSConfig(&models.MirrorTLS{CAFile: path})
	require.ErrorIs(t, err, ErrCAParsingFailed)
}

func TestTLSConfigMissingCA(t *testing.T) {
	_, err := TLSConfig(&models.MirrorTLS{CAFile: filepath.Join(t.TempDir(), "missing.pem")})
	require.Error(t, err)
}

func TestConnectOptions(t *testing.T) {
	opts, err := ConnectOptions(models.MirrorConfig{})
	require.NoError(t, err)
	assert.Empty(t, opts)

	opts, err = ConnectOptions(models.MirrorConfig{CredsFile: "/etc/geoshim/mirror.creds"})
	require.NoError(t, err)
	assert.Len(t, opts, 1)

	_, err = ConnectOptions(models.MirrorConfig{TLS: &models.MirrorTLS{CAFile: filepath.Join(t.TempDir(), "missing.pem")}})
	require.Error(t, err)
}
