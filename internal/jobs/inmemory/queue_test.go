package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/copanyhq/revenue-sync/internal/jobs"
)

func waitForStatus(t *testing.T, store jobs.JobStore, jobID string, want jobs.JobStatus) *jobs.SyncTenantJob {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("Job %s never reached status %s", jobID, want)
	return nil
}

func TestQueue_ProcessesJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	handled := make(chan string, 1)
	handler := func(ctx context.Context, job jobs.Job) error {
		syncJob := job.(*jobs.SyncTenantJob)
		syncJob.NewReports = 3
		handled <- syncJob.TenantID
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.SyncTenantJob{TenantID: "tenant-1"}
	if err := q.PublishSyncTenant(ctx, job); err != nil {
		t.Fatalf("PublishSyncTenant failed: %v", err)
	}
	if job.JobID == "" {
		t.Fatal("Expected publish to assign a job ID")
	}

	select {
	case tenantID := <-handled:
		if tenantID != "tenant-1" {
			t.Errorf("Handled tenant %s", tenantID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Handler never called")
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if final.NewReports != 3 {
		t.Errorf("Expected handler counters to persist, got %d", final.NewReports)
	}
	if final.StartedAt == nil || final.CompletedAt == nil {
		t.Error("Expected started/completed timestamps")
	}
}

func TestQueue_SequentialProcessing(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var inFlight, maxInFlight int
	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	var ids []string
	for i := 0; i < 5; i++ {
		job := &jobs.SyncTenantJob{TenantID: "tenant"}
		if err := q.PublishSyncTenant(ctx, job); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, job.JobID)
	}

	for _, id := range ids {
		waitForStatus(t, store, id, jobs.JobStatusCompleted)
	}

	mu.Lock()
	defer mu.Unlock()
	if maxInFlight != 1 {
		t.Errorf("Expected sequential processing, saw %d jobs in flight", maxInFlight)
	}
}

func TestQueue_FailureWithoutRetries(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls int
	var mu sync.Mutex
	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		calls++
		mu.Unlock()
		return errors.New("sync blew up")
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.SyncTenantJob{TenantID: "tenant-1"}
	if err := q.PublishSyncTenant(ctx, job); err != nil {
		t.Fatal(err)
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if final.Error != "sync blew up" {
		t.Errorf("Expected handler error on job, got %q", final.Error)
	}

	// MaxRetries defaults to zero: one attempt, no re-runs.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("Expected exactly 1 attempt, got %d", calls)
	}
}

func TestQueue_RetryWhenConfigured(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var calls int
	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls == 1 {
			return errors.New("transient")
		}
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.SyncTenantJob{TenantID: "tenant-1", MaxRetries: 2}
	if err := q.PublishSyncTenant(ctx, job); err != nil {
		t.Fatal(err)
	}

	final := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if final.RetryCount != 1 {
		t.Errorf("Expected 1 retry, got %d", final.RetryCount)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatal(err)
	}

	err := q.PublishSyncTenant(context.Background(), &jobs.SyncTenantJob{TenantID: "tenant-1"})
	if err == nil {
		t.Error("Expected error publishing to a closed queue")
	}
}

func TestQueue_StopWaitsForInFlight(t *testing.T) {
	store := NewStore()
	q := NewQueue(10, store)

	ctx := context.Background()

	started := make(chan struct{})
	handler := func(ctx context.Context, job jobs.Job) error {
		close(started)
		time.Sleep(50 * time.Millisecond)
		return nil
	}

	if err := q.Start(ctx, handler); err != nil {
		t.Fatal(err)
	}

	job := &jobs.SyncTenantJob{TenantID: "tenant-1"}
	if err := q.PublishSyncTenant(ctx, job); err != nil {
		t.Fatal(err)
	}

	<-started

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	final, err := store.GetJob(ctx, job.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != jobs.JobStatusCompleted {
		t.Errorf("Expected in-flight job to finish before Stop returned, status = %s", final.Status)
	}
}
