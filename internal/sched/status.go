package sched

import "strings"

// Statistics are running totals accumulated tick by tick.
type Statistics struct {
	TotalExecutionTime   int `json:"totalExecutionTime"`
	TotalIdleTime        int `json:"totalIdleTime"`
	TotalMissedDeadlines int `json:"totalMissedDeadlines"`
}

// TaskStatus is a read-only view of one task.
type TaskStatus struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	Period           int    `json:"period"`
	ExecutionTime    int    `json:"executionTime"`
	Deadline         *int   `json:"deadline,omitempty"`
	Aperiodic        bool   `json:"aperiodic,omitempty"`
	RemainingTime    int    `json:"remainingTime"`
	StartTime        int    `json:"startTime"`
	BlockedResource  string `json:"blockedResource,omitempty"`
	Executions       int    `json:"executions"`
	MissedDeadlines  int    `json:"missedDeadlines"`
	CompletedJobs    int    `json:"completedJobs"`
	LastExecutedTick int    `json:"lastExecutedTick"`
}

// ResourceStatus is a read-only view of one resource.
type ResourceStatus struct {
	ID           string   `json:"id"`
	Status       string   `json:"status"` // Available or Blocked
	BlockedTasks []string `json:"blockedTasks"`
}

// StatisticsReport bundles the totals with per-task counters.
type StatisticsReport struct {
	Statistics
	Ticks int          `json:"ticks"`
	Tasks []TaskStatus `json:"tasks"`
}

// Snapshot is everything the dashboard renders, taken under one read lock.
type Snapshot struct {
	Policy      PolicyKind       `json:"policy"`
	Tick        int              `json:"tick"`
	CurrentTask string           `json:"currentTask,omitempty"`
	Tasks       []TaskStatus     `json:"tasks"`
	Resources   []ResourceStatus `json:"resources"`
	Statistics  Statistics       `json:"statistics"`
	History     []HistoryEntry   `json:"history"`
	Alerts      []Alert          `json:"alerts"`
}

func statusOf(t *Task) TaskStatus {
	ts := TaskStatus{
		ID:               t.ID,
		Status:           t.State().String(),
		Period:           t.Period,
		ExecutionTime:    t.ExecutionTime,
		Aperiodic:        t.Aperiodic,
		RemainingTime:    t.remaining,
		StartTime:        t.startTime,
		BlockedResource:  t.blockedResource,
		Executions:       t.executionCount,
		MissedDeadlines:  t.missedDeadlines,
		CompletedJobs:    t.completedJobs,
		LastExecutedTick: t.lastExecutionTime,
	}
	if dl, err := t.Deadline.Get(); err == nil {
		ts.Deadline = &dl
	}
	return ts
}

// Now returns the next tick Run or Step will simulate.
func (s *Scheduler) Now() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now
}

// TaskStatus reports one task.
func (s *Scheduler) TaskStatus(id string) (TaskStatus, error) {
	if strings.TrimSpace(id) == "" {
		return TaskStatus{}, newError(KindValidation, "task status", "task ID must be a non-empty string")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return TaskStatus{}, newError(KindScheduling, "task status", "task with ID %s not found", id).withTask(id)
	}
	return statusOf(t), nil
}

// Tasks reports every task in dispatch order, then retired one-shot tasks.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.taskStatuses()
}

// allTasks lists the dispatch order followed by retired tasks.
// Must be called with s.mu held.
func (s *Scheduler) allTasks() []*Task {
	return append(s.policy.Tasks(), s.retired...)
}

func (s *Scheduler) taskStatuses() []TaskStatus {
	tasks := s.allTasks()
	out := make([]TaskStatus, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, statusOf(t))
	}
	return out
}

// Order returns task IDs in dispatch order.
func (s *Scheduler) Order() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tasks := s.policy.Tasks()
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	return ids
}

// Resources reports every resource in registration order, recomputing its
// waiters from the tasks on each call.
func (s *Scheduler) Resources() []ResourceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resourceStatuses()
}

func (s *Scheduler) resourceStatuses() []ResourceStatus {
	tasks := s.allTasks()
	out := make([]ResourceStatus, 0, s.resources.Size())
	s.resources.Each(func(_, v interface{}) {
		r := v.(*Resource)
		waiters := r.waiters(tasks)
		status := "Available"
		if len(waiters) > 0 {
			status = "Blocked"
		}
		out = append(out, ResourceStatus{ID: r.ID, Status: status, BlockedTasks: waiters})
	})
	return out
}

// Statistics returns the running totals.
func (s *Scheduler) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// Report returns the totals together with per-task counters.
func (s *Scheduler) Report() StatisticsReport {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatisticsReport{Statistics: s.stats, Ticks: s.now, Tasks: s.taskStatuses()}
}

// History returns a copy of the full execution history.
func (s *Scheduler) History() []HistoryEntry {
	return s.HistoryWindow(0)
}

// HistoryWindow returns the last limit history records; limit <= 0 means all.
func (s *Scheduler) HistoryWindow(limit int) []HistoryEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.historyWindow(limit)
}

func (s *Scheduler) historyWindow(limit int) []HistoryEntry {
	h := s.history
	if limit > 0 && len(h) > limit {
		h = h[len(h)-limit:]
	}
	out := make([]HistoryEntry, len(h))
	copy(out, h)
	return out
}

// Alerts returns the recent alerts, oldest first.
func (s *Scheduler) Alerts() []Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.recentAlerts()
}

func (s *Scheduler) recentAlerts() []Alert {
	vals := s.alerts.Values()
	out := make([]Alert, 0, len(vals))
	for _, v := range vals {
		out = append(out, v.(Alert))
	}
	return out
}

// Snapshot captures the full status surface at once.
func (s *Scheduler) Snapshot(historyLimit int) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Policy:     s.policy.Kind(),
		Tick:       s.now,
		Tasks:      s.taskStatuses(),
		Resources:  s.resourceStatuses(),
		Statistics: s.stats,
		History:    s.historyWindow(historyLimit),
		Alerts:     s.recentAlerts(),
	}
	if s.current != nil {
		snap.CurrentTask = s.current.ID
	}
	return snap
}
