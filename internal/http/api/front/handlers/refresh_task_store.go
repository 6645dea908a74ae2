package handlers

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	refreshTaskStatusRunning = "running"
	refreshTaskStatusSuccess = "success"
	refreshTaskStatusFailed  = "failed"
)

type refreshTask struct {
	TaskID     string
	Status     string
	CreatedAt  time.Time
	FinishedAt *time.Time
	LastError  string
}

// refreshTaskStore tracks manual refresh tasks so clients can poll their outcome.
// Finished tasks expire after ttl; at most maxTasks are kept, running tasks are never evicted.
type refreshTaskStore struct {
	mu       sync.Mutex
	tasks    map[string]*refreshTask
	order    []string
	ttl      time.Duration
	maxTasks int
	now      func() time.Time
}

func newRefreshTaskStore(ttl time.Duration, maxTasks int) *refreshTaskStore {
	return &refreshTaskStore{
		tasks:    make(map[string]*refreshTask),
		ttl:      ttl,
		maxTasks: maxTasks,
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (s *refreshTaskStore) Create() refreshTask {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	task := &refreshTask{
		TaskID:    uuid.NewString(),
		Status:    refreshTaskStatusRunning,
		CreatedAt: now,
	}
	s.tasks[task.TaskID] = task
	s.order = append(s.order, task.TaskID)
	s.cleanupLocked(now)
	return cloneRefreshTask(task)
}

func (s *refreshTaskStore) Get(taskID string) (refreshTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cleanupLocked(s.now())
	task, ok := s.tasks[taskID]
	if !ok {
		return refreshTask{}, false
	}
	return cloneRefreshTask(task), true
}

// Finish marks the task done. A non-nil err marks it failed.
func (s *refreshTaskStore) Finish(taskID string, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[taskID]
	if !ok || task.FinishedAt != nil {
		return false
	}
	finishedAt := s.now()
	task.FinishedAt = &finishedAt
	task.Status = refreshTaskStatusSuccess
	if err != nil {
		task.Status = refreshTaskStatusFailed
		task.LastError = strings.TrimSpace(err.Error())
	}
	s.cleanupLocked(finishedAt)
	return true
}

func (s *refreshTaskStore) cleanupLocked(now time.Time) {
	kept := s.order[:0]
	for _, taskID := range s.order {
		task, ok := s.tasks[taskID]
		if !ok {
			continue
		}
		if s.ttl > 0 && task.FinishedAt != nil && now.Sub(*task.FinishedAt) >= s.ttl {
			delete(s.tasks, taskID)
			continue
		}
		kept = append(kept, taskID)
	}
	s.order = kept

	if s.maxTasks <= 0 {
		return
	}
	for len(s.tasks) > s.maxTasks {
		index := -1
		for i, taskID := range s.order {
			if s.tasks[taskID].FinishedAt != nil {
				index = i
				break
			}
		}
		if index < 0 {
			return
		}
		delete(s.tasks, s.order[index])
		s.order = append(s.order[:index], s.order[index+1:]...)
	}
}

func cloneRefreshTask(src *refreshTask) refreshTask {
	if src == nil {
		return refreshTask{}
	}
	cloned := *src
	if src.FinishedAt != nil {
		finishedAt := *src.FinishedAt
		cloned.FinishedAt = &finishedAt
	}
	return cloned
}
