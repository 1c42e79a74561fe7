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

// Package kvnats backs kv.KVStore with a NATS JetStream key-value bucket.
package kvnats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/carverauto/geoshim/pkg/kv"
)

const (
	bucketSetupTimeout = 5 * time.Second
	clientName         = "geoshim"
)

type Client struct {
	nc     *nats.Conn
	kv     jetstream.KeyValue
	bucket string
	owned  bool
}

// Ensure Client implements kv.KVStore
var _ kv.KVStore = (*Client)(nil)

// Connect dials url and binds to bucket, creating it if needed. The
// connection is closed by Close.
func Connect(ctx context.Context, url, bucket string, opts ...nats.Option) (*Client, error) {
	if url == "" {
		return nil, kv.ErrURLRequired
	}

	if bucket == "" {
		return nil, kv.ErrBucketRequired
	}

	opts = append([]nats.Option{nats.Name(clientName), nats.MaxReconnects(-1)}, opts...)

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	c, err := bind(ctx, nc, bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}

	c.owned = true

	return c, nil
}

// New binds an existing connection to bucket. Close leaves nc open.
func New(nc *nats.Conn, bucket string) (*Client, error) {
	if bucket == "" {
		return nil, kv.ErrBucketRequired
	}

	ctx, cancel := context.WithTimeout(context.Background(), bucketSetupTimeout)
	defer cancel()

	return bind(ctx, nc, bucket)
}

func bind(ctx context.Context, nc *nats.Conn, bucket string) (*Client, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:  bucket,
		History: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create KV bucket %s: %w", bucket, err)
	}

	return &Client{nc: nc, kv: store, bucket: bucket}, nil
}

// Bucket returns the bound bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, bool, error) {
	entry, err := c.kv.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("failed to get key %s: %w", key, err)
	}

	return entry.Value(), true, nil
}

// Put stores value. TTL is bucket level in JetStream, so ttl is ignored.
func (c *Client) Put(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := c.kv.Put(ctx, key, value); err != nil {
		return fmt.Errorf("failed to put key %s: %w", key, err)
	}

	return nil
}

func (c *Client) Create(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if _, err := c.kv.Create(ctx, key, value); err != nil {
		if errors.Is(err, jetstream.ErrKeyExists) {
			return kv.ErrKeyExists
		}

		return fmt.Errorf("failed to create key %s: %w", key, err)
	}

	return nil
}

func (c *Client) Delete(ctx context.Context, key string) error {
	if err := c.kv.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	return nil
}

func (c *Client) Watch(ctx context.Context, key string) (<-chan []byte, error) {
	watcher, err := c.kv.Watch(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to watch key %s: %w", key, err)
	}

	ch := make(chan []byte, 1)

	go func() {
		defer close(ch)
		defer func() { _ = watcher.Stop() }()

		for {
			select {
			case <-ctx.Done():
				return
			case update, ok := <-watcher.Updates():
				if !ok {
					return
				}

				// nil marks the end of the initial values.
				if update == nil {
					continue
				}

				var value []byte

				if op := update.Operation(); op != jetstream.KeyValueDelete && op != jetstream.KeyValuePurge {
					value = update.Value()
				}

				select {
				case ch <- value:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func (c *Client) Close() error {
	if c.owned {
		c.nc.Close()
	}

	return nil
}
