// Copyright 2025 The ragmcp authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package objstore abstracts the bucket that holds knowledge-base corpus
// objects. The store is a dumb byte sink; corpus semantics live in pkg/kb.
package objstore

import (
	"context"
	"fmt"

	"github.com/ragmcp/ragmcp/pkg/config"
)

// Store is the object-storage surface the knowledge base needs. WaitExists
// and WaitAbsent poll until the key reaches the wanted state or the
// configured attempt cap runs out, so callers can rely on read-after-write
// ordering across eventually consistent backends.
type Store interface {
	List(ctx context.Context, prefix string) ([]string, error)
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	DeleteBatch(ctx context.Context, keys []string) error
	WaitExists(ctx context.Context, key string) error
	WaitAbsent(ctx context.Context, key string) error
}

// New builds a store for the configured backend.
func New(cfg config.ObjectStoreConfig) (Store, error) {
	switch cfg.Backend {
	case config.ObjectStoreMemory:
		return NewMemoryStore(), nil
	case config.ObjectStoreS3:
		return NewMinioStore(cfg)
	default:
		return nil, fmt.Errorf("unknown object store backend: %s", cfg.Backend)
	}
}
