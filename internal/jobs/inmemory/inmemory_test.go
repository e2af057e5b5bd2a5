package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvloznov/bookkeeper/internal/domain"
	"github.com/dvloznov/bookkeeper/internal/jobs"
)

func waitForStatus(t *testing.T, s *Store, jobID string, want jobs.JobStatus) *jobs.Job {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		job, err := s.GetJob(context.Background(), jobID)
		if err == nil && job.Status == want {
			return job
		}
		time.Sleep(5 * time.Millisecond)
	}
	job, _ := s.GetJob(context.Background(), jobID)
	t.Fatalf("job %s did not reach %s, last state %+v", jobID, want, job)
	return nil
}

func TestStore_SaveAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	if err := s.SaveJob(ctx, &jobs.Job{}); err == nil {
		t.Error("expected error for missing job ID")
	}

	job := &jobs.Job{JobID: "j1", Type: jobs.JobTypeSuggestEntry, TransactionIDs: []string{"tx-1"}}
	if err := s.SaveJob(ctx, job); err != nil {
		t.Fatal(err)
	}
	job.TransactionIDs[0] = "mutated"

	got, err := s.GetJob(ctx, "j1")
	if err != nil {
		t.Fatal(err)
	}
	if got.TransactionIDs[0] != "tx-1" {
		t.Errorf("store shares slices with caller")
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("GetJob(missing) = %v, want ErrNotFound", err)
	}
}

func TestStore_DismissedStaysDismissed(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_ = s.SaveJob(ctx, &jobs.Job{JobID: "j1", Status: jobs.JobStatusRunning})

	if err := s.UpdateJobStatus(ctx, "j1", jobs.JobStatusDismissed, ""); err != nil {
		t.Fatal(err)
	}

	late := &jobs.Job{
		JobID:      "j1",
		Status:     jobs.JobStatusCompleted,
		Suggestion: &domain.Suggestion{Description: "late"},
	}
	if err := s.SaveJob(ctx, late); err != nil {
		t.Fatal(err)
	}

	got, _ := s.GetJob(ctx, "j1")
	if got.Status != jobs.JobStatusDismissed {
		t.Errorf("status = %s, want dismissed", got.Status)
	}
	if got.Suggestion != nil {
		t.Errorf("late result was kept")
	}
}

func TestStore_ListJobs(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, st := range []jobs.JobStatus{jobs.JobStatusCompleted, jobs.JobStatusFailed, jobs.JobStatusCompleted} {
		_ = s.SaveJob(ctx, &jobs.Job{
			JobID:     string(rune('a' + i)),
			Type:      jobs.JobTypeSuggestEntry,
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
	}
	_ = s.SaveJob(ctx, &jobs.Job{JobID: "x", Type: jobs.JobTypeExtractStatement, CreatedAt: base})

	tests := []struct {
		name   string
		filter jobs.JobFilter
		want   []string
	}{
		{"all", jobs.JobFilter{}, []string{"a", "x", "b", "c"}},
		{"by type", jobs.JobFilter{Type: jobs.JobTypeSuggestEntry}, []string{"a", "b", "c"}},
		{"by status", jobs.JobFilter{Status: jobs.JobStatusCompleted}, []string{"a", "c"}},
		{"limit", jobs.JobFilter{Limit: 1}, []string{"a"}},
		{"offset", jobs.JobFilter{Offset: 3}, []string{"c"}},
		{"offset past end", jobs.JobFilter{Offset: 10}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListJobs(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d jobs, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].JobID != tt.want[i] {
					t.Errorf("[%d] = %s, want %s", i, got[i].JobID, tt.want[i])
				}
			}
		})
	}
}

func newTestQueue(store *Store) *Queue {
	return NewQueue(10, store, WithWorkers(1), WithBackoff(func(int) time.Duration { return time.Millisecond }))
}

func TestQueue_ProcessesJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)
	defer q.Close()

	err := q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		job.Suggestion = &domain.Suggestion{Description: "Rent"}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	job := &jobs.Job{Type: jobs.JobTypeSuggestEntry}
	if err := q.Publish(ctx, job); err != nil {
		t.Fatal(err)
	}
	if job.JobID == "" || job.MaxRetries != defaultMaxRetries {
		t.Errorf("defaults not applied: %+v", job)
	}

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.Suggestion == nil || done.Suggestion.Description != "Rent" {
		t.Errorf("result not stored: %+v", done.Suggestion)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Errorf("timestamps not set")
	}
}

func TestQueue_RetriesThenSucceeds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)
	defer q.Close()

	var calls int32
	_ = q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("model unavailable")
		}
		return nil
	})

	job := &jobs.Job{Type: jobs.JobTypeExtractStatement}
	_ = q.Publish(ctx, job)

	done := waitForStatus(t, store, job.JobID, jobs.JobStatusCompleted)
	if done.RetryCount != 2 {
		t.Errorf("RetryCount = %d, want 2", done.RetryCount)
	}
	if done.Error != "" {
		t.Errorf("Error = %q, want cleared", done.Error)
	}
}

func TestQueue_PermanentFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)
	defer q.Close()

	var calls int32
	_ = q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		atomic.AddInt32(&calls, 1)
		return jobs.Permanent(errors.New("quota exceeded"))
	})

	job := &jobs.Job{Type: jobs.JobTypeSuggestEntry}
	_ = q.Publish(ctx, job)

	failed := waitForStatus(t, store, job.JobID, jobs.JobStatusFailed)
	if failed.RetryCount != 0 || atomic.LoadInt32(&calls) != 1 {
		t.Errorf("permanent error was retried: count=%d calls=%d", failed.RetryCount, atomic.LoadInt32(&calls))
	}
	if failed.Error != "quota exceeded" {
		t.Errorf("Error = %q", failed.Error)
	}
}

func TestQueue_DismissedBeforeRunIsSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := NewStore()
	q := newTestQueue(store)
	defer q.Close()

	job := &jobs.Job{Type: jobs.JobTypeSuggestEntry}
	_ = q.Publish(ctx, job)
	_ = store.UpdateJobStatus(ctx, job.JobID, jobs.JobStatusDismissed, "")

	ran := make(chan struct{}, 1)
	_ = q.Start(ctx, func(ctx context.Context, job *jobs.Job) error {
		ran <- struct{}{}
		return nil
	})

	select {
	case <-ran:
		t.Fatal("dismissed job was executed")
	case <-time.After(50 * time.Millisecond):
	}
	got, _ := store.GetJob(ctx, job.JobID)
	if got.Status != jobs.JobStatusDismissed {
		t.Errorf("status = %s", got.Status)
	}
}

func TestQueue_PublishAfterStop(t *testing.T) {
	q := newTestQueue(NewStore())
	if err := q.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := q.Publish(context.Background(), &jobs.Job{}); err == nil {
		t.Error("expected error publishing to a stopped queue")
	}
}
