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

package kvnats

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carverauto/geoshim/pkg/kv"
)

func runJetStreamServer(t *testing.T) *server.Server {
	t.Helper()

	srv, err := server.NewServer(&server.Options{
		Host:      "127.0.0.1",
		Port:      -1,
		JetStream: true,
		StoreDir:  t.TempDir(),
		NoLog:     true,
		NoSigs:    true,
	})
	require.NoError(t, err)

	go srv.Start()

	t.Cleanup(srv.Shutdown)

	if !srv.ReadyForConnections(10 * time.Second) {
		t.Fatalf("embedded NATS server not ready for connections")
	}

	require.Eventually(t, srv.JetStreamEnabled, 5*time.Second, 50*time.Millisecond)

	return srv
}

func nextValue(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()

	select {
	case v, ok := <-ch:
		require.True(t, ok, "watch closed early")
		return v
	case <-time.After(5 * time.Second):
		t.Fatal("no watch update")
		return nil
	}
}

func TestClientRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	srv := runJetStreamServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	c, err := Connect(ctx, srv.ClientURL(), "geoshim")
	require.NoError(t, err)

	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, "geoshim", c.Bucket())

	_, found, err := c.Get(ctx, "override")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Put(ctx, "override", []byte(`{"revision":"rev-1"}`), 0))

	value, found, err := c.Get(ctx, "override")
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"revision":"rev-1"}`, string(value))

	require.ErrorIs(t, c.Create(ctx, "override", []byte("x"), 0), kv.ErrKeyExists)
	require.NoError(t, c.Create(ctx, "fresh", []byte("y"), 0))

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()

	updates, err := c.Watch(watchCtx, "override")
	require.NoError(t, err)

	// The watch starts with the current value.
	assert.JSONEq(t, `{"revision":"rev-1"}`, string(nextValue(t, updates)))

	require.NoError(t, c.Put(ctx, "override", []byte(`{"revision":"rev-2"}`), 0))
	assert.JSONEq(t, `{"revision":"rev-2"}`, string(nextValue(t, updates)))

	require.NoError(t, c.Delete(ctx, "override"))
	assert.Nil(t, nextValue(t, updates), "a delete is delivered as nil")

	_, found, err = c.Get(ctx, "override")
	require.NoError(t, err)
	assert.False(t, found)

	stopWatch()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-updates:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond, "watch channel not closed after cancel")
}

func TestNewBindsSharedConnection(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping embedded NATS test in short mode")
	}

	srv := runJetStreamServer(t)

	nc, err := nats.Connect(srv.ClientURL())
	require.NoError(t, err)

	t.Cleanup(nc.Close)

	c, err := New(nc, "shared")
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.True(t, nc.IsConnected(), "Close must leave a borrowed connection open")
}

func TestConnectRequiresURLAndBucket(t *testing.T) {
	_, err := Connect(context.Background(), "", "geoshim")
	require.ErrorIs(t, err, kv.ErrURLRequired)

	_, err = Connect(context.Background(), "nats://127.0.0.1:4222", "")
	require.ErrorIs(t, err, kv.ErrBucketRequired)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(nil, "")
	require.ErrorIs(t, err, kv.ErrBucketRequired)
}
