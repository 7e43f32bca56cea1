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

// Package retrieval exposes the ingestion-and-search service the
// knowledge base is built on. Ingestion is asynchronous: StartIngestionJob
// returns a job id immediately and callers poll GetIngestionJob until the
// job reaches a terminal status.
package retrieval

import "context"

// JobStatus is the ingestion lifecycle. Transitions only move forward:
// pending -> in_progress -> one of the terminal statuses.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobInProgress JobStatus = "in_progress"
	JobComplete   JobStatus = "complete"
	JobFailed     JobStatus = "failed"
	JobStopped    JobStatus = "stopped"
)

// Terminal reports whether the status is final.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobComplete, JobFailed, JobStopped:
		return true
	default:
		return false
	}
}

// Job is a snapshot of one ingestion job.
type Job struct {
	ID             string
	Status         JobStatus
	FailureReasons []string
}

// Record is one retrieval hit. Content is the raw indexed text.
type Record struct {
	Content string
	Score   float32
}

type Service interface {
	// StartIngestionJob triggers a full rebuild of the index from the
	// stored corpus and returns without waiting for it.
	StartIngestionJob(ctx context.Context) (string, error)
	GetIngestionJob(ctx context.Context, jobID string) (*Job, error)
	Retrieve(ctx context.Context, query string, topK int) ([]Record, error)
	// StopIngestionJob requests a cooperative stop; the job lands on the
	// stopped status once the worker notices.
	StopIngestionJob(ctx context.Context, jobID string) error
}
