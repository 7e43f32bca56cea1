package retrieval

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragmcp/ragmcp/pkg/objstore"
	"github.com/ragmcp/ragmcp/pkg/vector"
)

type fakeEmbedder struct {
	mu    sync.Mutex
	err   error
	calls int
	// gate, when set, blocks each Embed until released once.
	started chan struct{}
	release chan struct{}
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.calls++
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimension() int { return 3 }
func (f *fakeEmbedder) Close() error   { return nil }

type fakeVectors struct {
	mu        sync.Mutex
	recreated bool
	points    []vector.Point
	searchHit []vector.SearchResult
}

func (f *fakeVectors) Recreate(ctx context.Context, collection string, vectorSize uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recreated = true
	f.points = nil
	return nil
}

func (f *fakeVectors) Upsert(ctx context.Context, collection string, points []vector.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.points = append(f.points, points...)
	return nil
}

func (f *fakeVectors) Search(ctx context.Context, collection string, queryVector []float32, topK int) ([]vector.SearchResult, error) {
	return f.searchHit, nil
}

func (f *fakeVectors) DeleteCollection(ctx context.Context, collection string) error { return nil }
func (f *fakeVectors) Close() error                                                  { return nil }

func (f *fakeVectors) pointCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.points)
}

func waitForTerminal(t *testing.T, svc *LocalService, jobID string) *Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := svc.GetIngestionJob(context.Background(), jobID)
		require.NoError(t, err)
		if job.Status.Terminal() {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("ingestion job never reached a terminal status")
	return nil
}

func newTestService(corpus string) (*LocalService, *fakeEmbedder, *fakeVectors, objstore.Store) {
	store := objstore.NewMemoryStore()
	if corpus != "" {
		_ = store.Put(context.Background(), "kb-data/tools.jsonl", []byte(corpus))
	}
	embedder := &fakeEmbedder{}
	vectors := &fakeVectors{}
	svc := NewLocalService(store, embedder, vectors, "tool-corpus", "kb-data/")
	return svc, embedder, vectors, store
}

func TestIngestionJobCompletes(t *testing.T) {
	svc, embedder, vectors, _ := newTestService("line one\nline two\nline three\n")

	jobID, err := svc.StartIngestionJob(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job := waitForTerminal(t, svc, jobID)
	assert.Equal(t, JobComplete, job.Status)
	assert.True(t, vectors.recreated)
	assert.Equal(t, 3, vectors.pointCount())
	assert.Equal(t, 3, embedder.calls)

	// Job status never moves backward once terminal.
	again, err := svc.GetIngestionJob(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, JobComplete, again.Status)
}

func TestIngestionJobFailsOnEmbedderError(t *testing.T) {
	svc, embedder, _, _ := newTestService("one line\n")
	embedder.err = fmt.Errorf("embedder offline")

	jobID, err := svc.StartIngestionJob(context.Background())
	require.NoError(t, err)

	job := waitForTerminal(t, svc, jobID)
	assert.Equal(t, JobFailed, job.Status)
	require.NotEmpty(t, job.FailureReasons)
	assert.Contains(t, job.FailureReasons[0], "embedder offline")
}

func TestStopIngestionJob(t *testing.T) {
	svc, embedder, vectors, _ := newTestService("one\ntwo\nthree\n")
	embedder.started = make(chan struct{})
	embedder.release = make(chan struct{})

	jobID, err := svc.StartIngestionJob(context.Background())
	require.NoError(t, err)

	// Wait for the worker to reach the first embed, request the stop,
	// then let it proceed; it must notice before the next record.
	<-embedder.started
	require.NoError(t, svc.StopIngestionJob(context.Background(), jobID))

	embedder.started = nil
	close(embedder.release)

	job := waitForTerminal(t, svc, jobID)
	assert.Equal(t, JobStopped, job.Status)
	assert.Less(t, vectors.pointCount(), 3)
}

func TestRetrieve(t *testing.T) {
	svc, _, vectors, _ := newTestService("")
	vectors.searchHit = []vector.SearchResult{
		{ID: "1", Content: "first", Score: 0.9},
		{ID: "2", Content: "second", Score: 0.5},
	}

	records, err := svc.Retrieve(context.Background(), "query", 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "first", records[0].Content)
	assert.InDelta(t, 0.9, records[0].Score, 0.0001)
}

func TestGetIngestionJobUnknownID(t *testing.T) {
	svc, _, _, _ := newTestService("")

	_, err := svc.GetIngestionJob(context.Background(), "nope")
	require.Error(t, err)

	err = svc.StopIngestionJob(context.Background(), "nope")
	require.Error(t, err)
}
