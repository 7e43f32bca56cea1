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

package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ragmcp/ragmcp/pkg/embedders"
	"github.com/ragmcp/ragmcp/pkg/objstore"
	"github.com/ragmcp/ragmcp/pkg/vector"
)

type jobState struct {
	job     Job
	stopped bool
}

// LocalService rebuilds a vector collection from the newline-delimited
// corpus objects in the store: one point per line, embedded individually.
// Jobs run on a background goroutine detached from the caller's context.
type LocalService struct {
	store      objstore.Store
	embedder   embedders.Embedder
	vectors    vector.Provider
	collection string
	prefix     string

	mu   sync.Mutex
	jobs map[string]*jobState
}

func NewLocalService(store objstore.Store, embedder embedders.Embedder, vectors vector.Provider, collection, prefix string) *LocalService {
	return &LocalService{
		store:      store,
		embedder:   embedder,
		vectors:    vectors,
		collection: collection,
		prefix:     prefix,
		jobs:       make(map[string]*jobState),
	}
}

func (s *LocalService) StartIngestionJob(ctx context.Context) (string, error) {
	jobID := uuid.New().String()

	s.mu.Lock()
	s.jobs[jobID] = &jobState{job: Job{ID: jobID, Status: JobPending}}
	s.mu.Unlock()

	slog.Info("Started ingestion job", "job_id", jobID, "collection", s.collection)

	go s.runIngestion(jobID)

	return jobID, nil
}

func (s *LocalService) GetIngestionJob(ctx context.Context, jobID string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("unknown ingestion job: %s", jobID)
	}

	snapshot := state.job
	snapshot.FailureReasons = append([]string(nil), state.job.FailureReasons...)
	return &snapshot, nil
}

func (s *LocalService) Retrieve(ctx context.Context, query string, topK int) ([]Record, error) {
	queryVector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.vectors.Search(ctx, s.collection, queryVector, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search collection %s: %w", s.collection, err)
	}

	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, Record{Content: hit.Content, Score: hit.Score})
	}
	return records, nil
}

func (s *LocalService) StopIngestionJob(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("unknown ingestion job: %s", jobID)
	}

	if !state.job.Status.Terminal() {
		state.stopped = true
	}
	return nil
}

func (s *LocalService) runIngestion(jobID string) {
	ctx := context.Background()

	s.setStatus(jobID, JobInProgress)

	lines, err := s.readCorpus(ctx)
	if err != nil {
		s.fail(jobID, err.Error())
		return
	}

	vectorSize := uint64(s.embedder.Dimension())
	if err := s.vectors.Recreate(ctx, s.collection, vectorSize); err != nil {
		s.fail(jobID, err.Error())
		return
	}

	for _, line := range lines {
		if s.stopRequested(jobID) {
			s.setStatus(jobID, JobStopped)
			slog.Info("Ingestion job stopped", "job_id", jobID)
			return
		}

		embedding, err := s.embedder.Embed(ctx, line)
		if err != nil {
			s.fail(jobID, fmt.Sprintf("failed to embed record: %v", err))
			return
		}

		point := vector.Point{
			ID:      uuid.New().String(),
			Vector:  embedding,
			Payload: map[string]any{"content": line},
		}
		if err := s.vectors.Upsert(ctx, s.collection, []vector.Point{point}); err != nil {
			s.fail(jobID, fmt.Sprintf("failed to upsert record: %v", err))
			return
		}
	}

	s.setStatus(jobID, JobComplete)
	slog.Info("Ingestion job complete", "job_id", jobID, "records", len(lines))
}

func (s *LocalService) readCorpus(ctx context.Context) ([]string, error) {
	keys, err := s.store.List(ctx, s.prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list corpus objects: %w", err)
	}

	var lines []string
	for _, key := range keys {
		data, err := s.store.Get(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("failed to read corpus object %s: %w", key, err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

func (s *LocalService) setStatus(jobID string, status JobStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.jobs[jobID]; ok && !state.job.Status.Terminal() {
		state.job.Status = status
	}
}

func (s *LocalService) fail(jobID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if state, ok := s.jobs[jobID]; ok && !state.job.Status.Terminal() {
		state.job.Status = JobFailed
		state.job.FailureReasons = append(state.job.FailureReasons, reason)
	}
	slog.Error("Ingestion job failed", "job_id", jobID, "reason", reason)
}

func (s *LocalService) stopRequested(jobID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.jobs[jobID]
	return ok && state.stopped
}
