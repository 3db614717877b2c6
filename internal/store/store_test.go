package store

import (
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a new temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate test db: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestMigrateIdempotent(t *testing.T) {
	db := setupTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate failed: %v", err)
	}
}

func TestCreateAndGetRun(t *testing.T) {
	db := setupTestDB(t)

	r := &Run{ID: "run-1", Idea: "a todo app"}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if r.Status != RunPending {
		t.Errorf("status after create = %q, want pending", r.Status)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got == nil {
		t.Fatal("GetRun returned nil for an existing run")
	}
	if got.Idea != "a todo app" || got.Status != RunPending {
		t.Errorf("got run %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not persisted")
	}
}

func TestGetRunMissing(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetRun("nope")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Errorf("GetRun(nope) = %+v, want nil", got)
	}
}

func TestUpdateRunStatus(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateRun(&Run{ID: "run-1", Idea: "x"}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	for _, status := range []RunStatus{RunRunning, RunCompleted} {
		if err := db.UpdateRunStatus("run-1", status); err != nil {
			t.Fatalf("UpdateRunStatus(%s) failed: %v", status, err)
		}
		got, _ := db.GetRun("run-1")
		if got.Status != status {
			t.Errorf("status = %q, want %q", got.Status, status)
		}
	}
}

func TestUpdateRunStatusMissing(t *testing.T) {
	db := setupTestDB(t)

	if err := db.UpdateRunStatus("nope", RunFailed); err == nil {
		t.Fatal("UpdateRunStatus succeeded for a missing run")
	}
}

func TestAttachAndListArtifacts(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateRun(&Run{ID: "run-1", Idea: "x"}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	a1 := &Artifact{RunID: "run-1", Type: "prd", Path: "/out/PRD.md"}
	a2 := &Artifact{RunID: "run-1", Type: "source_code", Path: "/out/source_code"}
	if err := db.AttachArtifact(a1); err != nil {
		t.Fatalf("AttachArtifact failed: %v", err)
	}
	if err := db.AttachArtifact(a2); err != nil {
		t.Fatalf("AttachArtifact failed: %v", err)
	}
	if a1.ID == 0 || a2.ID == 0 {
		t.Error("artifact IDs not assigned")
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if len(got.Artifacts) != 2 {
		t.Fatalf("artifacts = %d, want 2", len(got.Artifacts))
	}
	if got.Artifacts[0].Type != "prd" || got.Artifacts[1].Type != "source_code" {
		t.Errorf("artifact order = %q, %q", got.Artifacts[0].Type, got.Artifacts[1].Type)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := setupTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		r := &Run{ID: id, Idea: "x", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.CreateRun(r); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	runs, err := db.ListRuns(nil, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("ListRuns returned %d runs, want 3", len(runs))
	}
	if runs[0].ID != "run-c" || runs[2].ID != "run-a" {
		t.Errorf("order = %s, %s, %s, want newest first", runs[0].ID, runs[1].ID, runs[2].ID)
	}
}

func TestListRunsStatusFilterAndLimit(t *testing.T) {
	db := setupTestDB(t)

	for _, id := range []string{"run-1", "run-2", "run-3"} {
		if err := db.CreateRun(&Run{ID: id, Idea: "x"}); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}
	if err := db.UpdateRunStatus("run-2", RunCompleted); err != nil {
		t.Fatalf("UpdateRunStatus failed: %v", err)
	}

	completed := RunCompleted
	runs, err := db.ListRuns(&completed, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != "run-2" {
		t.Errorf("filtered runs = %+v, want only run-2", runs)
	}

	runs, err = db.ListRuns(nil, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("limited runs = %d, want 2", len(runs))
	}
}

func TestDeleteRunCascades(t *testing.T) {
	db := setupTestDB(t)

	if err := db.CreateRun(&Run{ID: "run-1", Idea: "x"}); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := db.AttachArtifact(&Artifact{RunID: "run-1", Type: "prd", Path: "/out/PRD.md"}); err != nil {
		t.Fatalf("AttachArtifact failed: %v", err)
	}

	if err := db.DeleteRun("run-1"); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	got, err := db.GetRun("run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got != nil {
		t.Error("run still present after delete")
	}

	artifacts, err := db.ListArtifacts("run-1")
	if err != nil {
		t.Fatalf("ListArtifacts failed: %v", err)
	}
	if len(artifacts) != 0 {
		t.Errorf("artifacts survived the cascade: %+v", artifacts)
	}
}
