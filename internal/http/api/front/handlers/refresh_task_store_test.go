package handlers

import (
	"errors"
	"testing"
	"time"
)

func TestRefreshTaskStoreCreateRunning(t *testing.T) {
	store := newRefreshTaskStore(time.Minute, 10)

	task := store.Create()

	if task.Status != refreshTaskStatusRunning {
		t.Fatalf("expected running status, got %s", task.Status)
	}
	if task.FinishedAt != nil {
		t.Fatalf("expected finished_at nil on create")
	}
	if task.TaskID == "" {
		t.Fatalf("expected generated task id")
	}
	if other := store.Create(); other.TaskID == task.TaskID {
		t.Fatalf("expected unique task ids")
	}
}

func TestRefreshTaskStoreFinishSetsStatus(t *testing.T) {
	store := newRefreshTaskStore(time.Minute, 10)

	successTask := store.Create()
	if ok := store.Finish(successTask.TaskID, nil); !ok {
		t.Fatalf("expected finish success")
	}
	successTask, ok := store.Get(successTask.TaskID)
	if !ok {
		t.Fatalf("expected success task exists")
	}
	if successTask.Status != refreshTaskStatusSuccess || successTask.FinishedAt == nil {
		t.Fatalf("unexpected success task: %+v", successTask)
	}
	if ok := store.Finish(successTask.TaskID, errors.New("late")); ok {
		t.Fatalf("expected second finish to be ignored")
	}

	failedTask := store.Create()
	store.Finish(failedTask.TaskID, errors.New(" backend unavailable "))
	failedTask, ok = store.Get(failedTask.TaskID)
	if !ok {
		t.Fatalf("expected failed task exists")
	}
	if failedTask.Status != refreshTaskStatusFailed {
		t.Fatalf("expected failed status, got %s", failedTask.Status)
	}
	if failedTask.LastError != "backend unavailable" {
		t.Fatalf("expected trimmed last error, got %q", failedTask.LastError)
	}
}

func TestRefreshTaskStoreExpiresFinishedTasks(t *testing.T) {
	store := newRefreshTaskStore(time.Minute, 10)
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }

	finished := store.Create()
	running := store.Create()
	store.Finish(finished.TaskID, nil)

	now = now.Add(2 * time.Minute)
	if _, ok := store.Get(finished.TaskID); ok {
		t.Fatalf("expected finished task to expire")
	}
	if _, ok := store.Get(running.TaskID); !ok {
		t.Fatalf("expected running task to be kept")
	}
}

func TestRefreshTaskStoreEvictsOldestFinished(t *testing.T) {
	store := newRefreshTaskStore(time.Hour, 2)

	first := store.Create()
	store.Finish(first.TaskID, nil)
	second := store.Create()
	third := store.Create()

	if _, ok := store.Get(first.TaskID); ok {
		t.Fatalf("expected oldest finished task evicted")
	}
	for _, taskID := range []string{second.TaskID, third.TaskID} {
		if _, ok := store.Get(taskID); !ok {
			t.Fatalf("expected running task %s kept", taskID)
		}
	}

	fourth := store.Create()
	if _, ok := store.Get(fourth.TaskID); !ok {
		t.Fatalf("running tasks are never evicted")
	}
}

func TestCloneRefreshTaskCopiesFinishedAt(t *testing.T) {
	finishedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	src := &refreshTask{TaskID: "t", FinishedAt: &finishedAt}

	cloned := cloneRefreshTask(src)
	*cloned.FinishedAt = finishedAt.Add(time.Hour)

	if !src.FinishedAt.Equal(finishedAt) {
		t.Fatalf("clone shares finished_at pointer")
	}
	if got := cloneRefreshTask(nil); got.TaskID != "" {
		t.Fatalf("expected zero task for nil source")
	}
}
