package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"smartbill/internal/session"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "nested", "smartbill.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestSessionStore(t *testing.T) {
	ctx := context.Background()
	store := newTestRepo(t).Sessions()

	s, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load empty: %v", err)
	}
	if s.Authenticated() {
		t.Fatalf("fresh store should have no session")
	}

	if err := store.Save(ctx, session.New("first")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, session.New("second")); err != nil {
		t.Fatalf("Save overwrite: %v", err)
	}
	s, err = store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if s.Token() != "second" {
		t.Fatalf("token = %q, want second", s.Token())
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	s, _ = store.Load(ctx)
	if s.Authenticated() {
		t.Fatalf("token survived Clear: %q", s.Token())
	}
}

func TestSessionStore_SaveEmptyClears(t *testing.T) {
	ctx := context.Background()
	store := newTestRepo(t).Sessions()

	if err := store.Save(ctx, session.New("tok")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(ctx, session.New("  ")); err != nil {
		t.Fatalf("Save empty: %v", err)
	}
	if s, _ := store.Load(ctx); s.Authenticated() {
		t.Fatalf("empty save should clear the token")
	}
}

func TestExportJobs_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job, err := repo.CreateExportJob(ctx, "b1", []byte(`{"title":"Water"}`))
	if err != nil {
		t.Fatalf("CreateExportJob: %v", err)
	}
	if job.ID == "" || job.Status != JobPending {
		t.Fatalf("unexpected job %+v", job)
	}

	got, err := repo.GetExportJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetExportJob: %v", err)
	}
	if got.BillID != "b1" || string(got.Payload) != `{"title":"Water"}` {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Fatalf("created_at not parsed")
	}

	if err := repo.MarkExportDone(ctx, job.ID, "sheet!A1"); err != nil {
		t.Fatalf("MarkExportDone: %v", err)
	}
	got, _ = repo.GetExportJob(ctx, job.ID)
	if got.Status != JobDone || got.Ref != "sheet!A1" {
		t.Fatalf("after done: %+v", got)
	}

	pending, err := repo.PendingExportJobs(ctx, 10)
	if err != nil {
		t.Fatalf("PendingExportJobs: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("done job still pending: %+v", pending)
	}
}

func TestExportJobs_FailedAttempts(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	job, err := repo.CreateExportJob(ctx, "b1", []byte(`{}`))
	if err != nil {
		t.Fatalf("CreateExportJob: %v", err)
	}

	if err := repo.MarkExportFailed(ctx, job.ID, "sheet quota", 2); err != nil {
		t.Fatalf("MarkExportFailed: %v", err)
	}
	got, _ := repo.GetExportJob(ctx, job.ID)
	if got.Status != JobPending || got.Attempts != 1 || got.Error != "sheet quota" {
		t.Fatalf("after first failure: %+v", got)
	}

	if err := repo.MarkExportFailed(ctx, job.ID, "sheet quota", 2); err != nil {
		t.Fatalf("MarkExportFailed: %v", err)
	}
	got, _ = repo.GetExportJob(ctx, job.ID)
	if got.Status != JobFailed || got.Attempts != 2 {
		t.Fatalf("after second failure: %+v", got)
	}
}

func TestExportJobs_PendingOrderAndLimit(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	var ids []string
	for i := range 3 {
		at := base.Add(time.Duration(i) * 100 * time.Millisecond)
		repo.now = func() time.Time { return at }
		job, err := repo.CreateExportJob(ctx, "b", []byte(`{}`))
		if err != nil {
			t.Fatalf("CreateExportJob: %v", err)
		}
		ids = append(ids, job.ID)
	}

	pending, err := repo.PendingExportJobs(ctx, 2)
	if err != nil {
		t.Fatalf("PendingExportJobs: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len = %d, want 2", len(pending))
	}
	if pending[0].ID != ids[0] || pending[1].ID != ids[1] {
		t.Fatalf("order = %s,%s want %s,%s", pending[0].ID, pending[1].ID, ids[0], ids[1])
	}
}

func TestExportJobs_NotFound(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetExportJob(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
	if err := repo.MarkExportDone(context.Background(), "missing", "x"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("err = %v, want ErrJobNotFound", err)
	}
}

func TestRunMigrations_RerunKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "smartbill.db")

	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("NewSQLiteRepository: %v", err)
	}
	if err := repo.Sessions().Save(ctx, session.New("kept")); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := repo.CreateExportJob(ctx, "b1", []byte(`{}`)); err != nil {
		t.Fatalf("CreateExportJob: %v", err)
	}
	repo.Close()

	if err := RunMigrations(path); err != nil {
		t.Fatalf("RunMigrations on current schema: %v", err)
	}

	repo, err = NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer repo.Close()

	s, err := repo.Sessions().Load(ctx)
	if err != nil || s.Token() != "kept" {
		t.Fatalf("Load = %q, %v; want kept", s.Token(), err)
	}
	jobs, err := repo.PendingExportJobs(ctx, 10)
	if err != nil || len(jobs) != 1 {
		t.Fatalf("PendingExportJobs = %d jobs, %v; want 1", len(jobs), err)
	}
}
