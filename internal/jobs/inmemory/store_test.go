package inmemory

import (
	"context"
	"testing"

	"github.com/copanyhq/revenue-sync/internal/jobs"
)

func TestStore_SaveAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	job := &jobs.SyncTenantJob{
		JobID:    "job-1",
		TenantID: "tenant-1",
		Status:   jobs.JobStatusPending,
	}

	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatalf("SaveJob failed: %v", err)
	}

	got, err := s.GetJob(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetJob failed: %v", err)
	}
	if got.TenantID != "tenant-1" || got.Status != jobs.JobStatusPending {
		t.Errorf("Unexpected job: %+v", got)
	}

	// The store keeps copies; mutating the returned job must not leak in.
	got.Status = jobs.JobStatusFailed
	again, _ := s.GetJob(ctx, "job-1")
	if again.Status != jobs.JobStatusPending {
		t.Error("Store returned a shared pointer instead of a copy")
	}
}

func TestStore_SaveRequiresID(t *testing.T) {
	s := NewStore()
	if err := s.SaveJob(context.Background(), &jobs.SyncTenantJob{}); err == nil {
		t.Error("Expected error for job without ID")
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	if _, err := s.GetJob(context.Background(), "nope"); err == nil {
		t.Error("Expected error for unknown job")
	}
}

func TestStore_ListJobs(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	seed := []*jobs.SyncTenantJob{
		{JobID: "a", TenantID: "t1", Status: jobs.JobStatusCompleted},
		{JobID: "b", TenantID: "t1", Status: jobs.JobStatusPending},
		{JobID: "c", TenantID: "t2", Status: jobs.JobStatusPending},
	}
	for _, j := range seed {
		if err := s.SaveJob(ctx, j); err != nil {
			t.Fatal(err)
		}
	}

	all, err := s.ListJobs(ctx, jobs.JobFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 jobs, got %d", len(all))
	}

	byTenant, _ := s.ListJobs(ctx, jobs.JobFilter{TenantID: "t1"})
	if len(byTenant) != 2 {
		t.Errorf("Expected 2 jobs for t1, got %d", len(byTenant))
	}

	byStatus, _ := s.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusPending})
	if len(byStatus) != 2 {
		t.Errorf("Expected 2 pending jobs, got %d", len(byStatus))
	}

	both, _ := s.ListJobs(ctx, jobs.JobFilter{TenantID: "t2", Status: jobs.JobStatusPending})
	if len(both) != 1 || both[0].JobID != "c" {
		t.Errorf("Expected job c, got %v", both)
	}

	limited, _ := s.ListJobs(ctx, jobs.JobFilter{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("Expected 2 jobs with limit, got %d", len(limited))
	}

	offset, _ := s.ListJobs(ctx, jobs.JobFilter{Offset: 5})
	if len(offset) != 0 {
		t.Errorf("Expected empty page past the end, got %d", len(offset))
	}
}

func TestStore_UpdateJobStatus(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	if err := s.SaveJob(ctx, &jobs.SyncTenantJob{JobID: "job-1", Status: jobs.JobStatusRunning}); err != nil {
		t.Fatal(err)
	}

	if err := s.UpdateJobStatus(ctx, "job-1", jobs.JobStatusFailed, "boom"); err != nil {
		t.Fatalf("UpdateJobStatus failed: %v", err)
	}

	got, _ := s.GetJob(ctx, "job-1")
	if got.Status != jobs.JobStatusFailed || got.Error != "boom" {
		t.Errorf("Unexpected job after update: %+v", got)
	}

	if err := s.UpdateJobStatus(ctx, "missing", jobs.JobStatusFailed, ""); err == nil {
		t.Error("Expected error for unknown job")
	}
}
