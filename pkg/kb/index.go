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

// Package kb maintains the searchable tool corpus: a JSONL object in the
// store, indexed by the retrieval service, queried at conversation time to
// pick the tools a turn gets to see.
package kb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/ragmcp/ragmcp/pkg/config"
	"github.com/ragmcp/ragmcp/pkg/llms"
	"github.com/ragmcp/ragmcp/pkg/objstore"
	"github.com/ragmcp/ragmcp/pkg/retrieval"
)

// queryAllProbe is the broad query used to approximate "everything
// currently indexed". Tool descriptions are short functional texts, so a
// generic probe with a large top-K surfaces the whole corpus in practice.
const (
	queryAllProbe = "tool function API method service utility helper"
	queryAllTopK  = 100
)

const corpusObjectName = "tools.jsonl"

// ToolIndex is not safe for concurrent replace-vs-replace or
// replace-vs-query use; callers serialize.
type ToolIndex struct {
	store   objstore.Store
	service retrieval.Service
	cfg     config.KnowledgeBaseConfig
}

func NewToolIndex(store objstore.Store, service retrieval.Service, cfg config.KnowledgeBaseConfig) *ToolIndex {
	return &ToolIndex{store: store, service: service, cfg: cfg}
}

// ReplaceCorpus atomically swaps the indexed corpus for the given entries:
// clear the old objects, upload the new JSONL, trigger ingestion, and wait
// for the job to finish. An empty entry set is rejected before anything is
// touched. A stopped job is returned as a non-error terminal outcome.
func (x *ToolIndex) ReplaceCorpus(ctx context.Context, entries []llms.ToolEntry) (*retrieval.Job, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCorpus
	}

	if err := x.clear(ctx); err != nil {
		return nil, err
	}

	key, err := x.upload(ctx, entries)
	if err != nil {
		return nil, err
	}
	slog.Info("Uploaded tool corpus", "key", key, "tools", len(entries))

	jobID, err := x.service.StartIngestionJob(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to start ingestion job: %w", err)
	}

	return x.awaitJob(ctx, jobID)
}

// Query retrieves the tools most relevant to the given text. Hits that do
// not parse as tool entries are logged and dropped.
func (x *ToolIndex) Query(ctx context.Context, text string, topK int) (*llms.ToolConfig, error) {
	records, err := x.service.Retrieve(ctx, text, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}

	entries := make([]llms.ToolEntry, 0, len(records))
	for _, record := range records {
		var entry llms.ToolEntry
		if err := json.Unmarshal([]byte(record.Content), &entry); err != nil {
			slog.Warn("Dropping malformed knowledge base record", "error", err)
			continue
		}
		// Valid JSON that isn't a tool entry decodes to an empty name;
		// drop it like a parse failure.
		if entry.ToolSpec.Name == "" {
			slog.Warn("Dropping knowledge base record without a tool name")
			continue
		}
		entries = append(entries, entry)
	}

	slog.Debug("Queried knowledge base", "hits", len(records), "tools", len(entries))
	return &llms.ToolConfig{Tools: entries}, nil
}

// QueryAll approximates the full indexed catalog with one broad query.
func (x *ToolIndex) QueryAll(ctx context.Context) (*llms.ToolConfig, error) {
	return x.Query(ctx, queryAllProbe, queryAllTopK)
}

func (x *ToolIndex) clear(ctx context.Context) error {
	keys, err := x.store.List(ctx, x.cfg.Prefix)
	if err != nil {
		return fmt.Errorf("failed to list corpus objects: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := x.store.DeleteBatch(ctx, keys); err != nil {
		return fmt.Errorf("failed to delete corpus objects: %w", err)
	}
	for _, key := range keys {
		if err := x.store.WaitAbsent(ctx, key); err != nil {
			return fmt.Errorf("failed waiting for %s deletion: %w", key, err)
		}
	}

	slog.Debug("Cleared old corpus", "objects", len(keys))
	return nil
}

// upload materializes the entries as a temporary JSONL file, pushes it to
// the store, and waits for the object to become visible. The temp file is
// removed on every exit path.
func (x *ToolIndex) upload(ctx context.Context, entries []llms.ToolEntry) (string, error) {
	tmp, err := os.CreateTemp("", "tool-corpus-*.jsonl")
	if err != nil {
		return "", fmt.Errorf("failed to create temp corpus file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			tmp.Close()
			return "", fmt.Errorf("failed to encode tool entry: %w", err)
		}
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp corpus file: %w", err)
	}

	data, err := os.ReadFile(tmp.Name())
	if err != nil {
		return "", fmt.Errorf("failed to read temp corpus file: %w", err)
	}

	key := x.cfg.Prefix + corpusObjectName
	if err := x.store.Put(ctx, key, data); err != nil {
		return "", fmt.Errorf("failed to upload corpus: %w", err)
	}
	if err := x.store.WaitExists(ctx, key); err != nil {
		return "", fmt.Errorf("failed waiting for corpus upload: %w", err)
	}

	return key, nil
}

func (x *ToolIndex) awaitJob(ctx context.Context, jobID string) (*retrieval.Job, error) {
	interval := time.Duration(x.cfg.PollInterval) * time.Second
	deadline := time.Now().Add(time.Duration(x.cfg.IngestTimeout) * time.Second)

	lastStatus := retrieval.JobPending
	for {
		job, err := x.service.GetIngestionJob(ctx, jobID)
		if err != nil {
			return nil, fmt.Errorf("failed to poll ingestion job %s: %w", jobID, err)
		}
		lastStatus = job.Status

		switch job.Status {
		case retrieval.JobComplete, retrieval.JobStopped:
			slog.Info("Ingestion finished", "job_id", jobID, "status", job.Status)
			return job, nil
		case retrieval.JobFailed:
			return job, &IngestionFailedError{JobID: jobID, Reasons: job.FailureReasons}
		}

		if time.Now().After(deadline) {
			return job, &IngestionTimeoutError{JobID: jobID, LastStatus: string(lastStatus)}
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-time.After(interval):
		}
	}
}
