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

//go:generate mockgen -destination=mock_kv.go -package=kv github.com/carverauto/geoshim/pkg/kv KVStore

// Package kv pkg/kv/interfaces.go
package kv

import (
	"context"
	"time"
)

// KVStore is the key-value store the override mirror publishes to and watches.
type KVStore interface {
	// Get retrieves the value for key. The boolean reports whether the key exists.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores value under key. A zero ttl keeps the value until deleted.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Create stores value only if key does not exist yet, else ErrKeyExists.
	Create(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key.
	Delete(ctx context.Context, key string) error

	// Watch streams the value of key whenever it changes, nil on delete.
	// The channel closes when ctx ends or the store closes.
	Watch(ctx context.Context, key string) (<-chan []byte, error)

	// Close releases the connection.
	Close() error
}
