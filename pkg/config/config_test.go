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

package config

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/carverauto/geoshim/pkg/kv"
	"github.com/carverauto/geoshim/pkg/logger"
	"github.com/carverauto/geoshim/pkg/models"
)

func writeJSON(t *testing.T, path string, value interface{}) {
	t.Helper()

	data, err := json.Marshal(value)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestLoadAndValidateFromFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := filepath.Join(t.TempDir(), "geoshim.json")
	writeJSON(t, path, map[string]interface{}{
		"prefs":  map[string]interface{}{"dir": "/tmp/prefs"},
		"attach": map[string]interface{}{"delivery_delay": "250ms"},
	})

	cfg := &models.AgentConfig{}
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, cfg))

	assert.Equal(t, "/tmp/prefs/LocationSpoofer.xml", cfg.Prefs.Path())
	assert.Equal(t, models.Duration(250*time.Millisecond), cfg.Attach.DeliveryDelay)
	assert.Equal(t, models.DefaultAllowedImages(), cfg.Attach.AllowedImages)
}

func TestLoadAndValidateNoPathUsesDefaults(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "")

	cfg := &models.AgentConfig{}
	require.NoError(t, NewConfig(nil).LoadAndValidate(context.Background(), "", cfg))
	assert.Equal(t, models.DefaultPrefsName, cfg.Prefs.Name)
}

func TestLoadAndValidateRejectsInvalid(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "file")

	path := filepath.Join(t.TempDir(), "geoshim.json")
	writeJSON(t, path, map[string]interface{}{
		"attach": map[string]interface{}{"delivery_delay": "10s"},
	})

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), path, &models.AgentConfig{})
	require.Error(t, err)
}

func TestLoadAndValidateRejectsNonPointer(t *testing.T) {
	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", models.AgentConfig{})
	require.ErrorIs(t, err, errInvalidConfigPtr)
}

func TestLoadAndValidateUnknownSource(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "consul")

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "x.json", &models.AgentConfig{})
	require.ErrorIs(t, err, errInvalidConfigSource)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("GEOSHIM_PREFS_DIR", "/data/local/tmp")
	t.Setenv("GEOSHIM_PREFS_ELEVATED_TIMEOUT", "2s")
	t.Setenv("GEOSHIM_ATTACH_ALLOWED_IMAGES", "android, com.google.android.gms")
	t.Setenv("GEOSHIM_MIRROR_ENABLED", "true")
	t.Setenv("GEOSHIM_MIRROR_NATS_URL", "nats://127.0.0.1:4222")

	cfg := &models.AgentConfig{}
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", cfg))

	assert.Equal(t, "/data/local/tmp", cfg.Prefs.Dir)
	assert.Equal(t, models.Duration(2*time.Second), cfg.Prefs.ElevatedTimeout)
	assert.Equal(t, []string{"android", "com.google.android.gms"}, cfg.Attach.AllowedImages)
	assert.True(t, cfg.Mirror.Enabled)
	assert.Equal(t, "geoshim", cfg.Mirror.Bucket)
	require.NotNil(t, cfg.Logging)
}

func TestLoadFromEnvInvalidValue(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("GEOSHIM_MIRROR_ENABLED", "maybe")

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", &models.AgentConfig{})
	require.Error(t, err)
}

func TestLoadFromEnvJSON(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "env")
	t.Setenv("CONFIG_ENV_PREFIX", "TEST_")
	t.Setenv("TEST_CONFIG_JSON", `{"prefs":{"name":"Other"}}`)

	cfg := &models.AgentConfig{}
	require.NoError(t, NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "", cfg))
	assert.Equal(t, "Other", cfg.Prefs.Name)
}

func TestEnvLoaderKeepsNilSection(t *testing.T) {
	type section struct {
		Value string `json:"value"`
	}

	type root struct {
		Name    string   `json:"name"`
		Section *section `json:"section"`
	}

	t.Setenv("ZZTEST_NAME", "set")

	var dst root
	require.NoError(t, NewEnvConfigLoader(nil, "ZZTEST_").Load(context.Background(), "", &dst))
	assert.Equal(t, "set", dst.Name)
	assert.Nil(t, dst.Section)

	t.Setenv("ZZTEST_SECTION_VALUE", "inner")
	require.NoError(t, NewEnvConfigLoader(nil, "ZZTEST_").Load(context.Background(), "", &dst))
	require.NotNil(t, dst.Section)
	assert.Equal(t, "inner", dst.Section.Value)
}

func TestLoadFromKV(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	store.EXPECT().
		Get(gomock.Any(), "config/geoshim").
		Return([]byte(`{"prefs":{"dir":"/kv/prefs"}}`), true, nil)

	c := NewConfig(logger.NewTestLogger())
	c.SetKVStore(store)

	cfg := &models.AgentConfig{}
	require.NoError(t, c.LoadAndValidate(context.Background(), "/etc/geoshim/geoshim.json", cfg))
	assert.Equal(t, "/kv/prefs", cfg.Prefs.Dir)
}

func TestLoadFromKVFallsBackToFile(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	store.EXPECT().Get(gomock.Any(), "config/geoshim").Return(nil, false, errors.New("no responders"))

	path := filepath.Join(t.TempDir(), "geoshim.json")
	writeJSON(t, path, map[string]interface{}{"prefs": map[string]interface{}{"dir": "/file/prefs"}})

	c := NewConfig(logger.NewTestLogger())
	c.SetKVStore(store)

	cfg := &models.AgentConfig{}
	require.NoError(t, c.LoadAndValidate(context.Background(), path, cfg))
	assert.Equal(t, "/file/prefs", cfg.Prefs.Dir)
}

func TestLoadFromKVWithoutStore(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "kv")

	err := NewConfig(logger.NewTestLogger()).LoadAndValidate(context.Background(), "x.json", &models.AgentConfig{})
	require.ErrorIs(t, err, errKVStoreNotSet)
}

func TestKeyForPath(t *testing.T) {
	assert.Equal(t, "config/geoshim", KeyForPath("/etc/geoshim/geoshim.json"))
	assert.Equal(t, "config/agent", KeyForPath("agent"))
	assert.Equal(t, DefaultKVKey, KeyForPath(""))
}

func TestLoadFromKVWithoutPath(t *testing.T) {
	t.Setenv("CONFIG_SOURCE", "KV")
	assert.True(t, UsesKV())

	ctrl := gomock.NewController(t)
	store := kv.NewMockKVStore(ctrl)

	store.EXPECT().Get(gomock.Any(), DefaultKVKey).Return(nil, false, nil)

	c := NewConfig(logger.NewTestLogger())
	c.SetKVStore(store)

	err := c.LoadAndValidate(context.Background(), "", &models.AgentConfig{})
	require.ErrorIs(t, err, errLoadConfigFailed)
	require.ErrorIs(t, err, errKVKeyNotFound)
}
