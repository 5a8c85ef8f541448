// internal/sched/scheduler.go

package sched

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/emirpasic/gods/maps/linkedhashmap"
	"github.com/emirpasic/gods/queues/circularbuffer"

	"rtsched/internal/logging"
)

// Scheduler drives a Policy over a discrete tick axis and accumulates
// statistics and history.
type Scheduler struct {
	// Scheduler-related
	mu        sync.RWMutex          // protects the scheduler state
	cfg       Config                // sanitized tunables
	policy    Policy                // dispatch order and selection
	now       int                   // next tick to simulate
	tasks     map[string]*Task      // map of all tasks by ID
	resources *linkedhashmap.Map    // resource ID -> *Resource, registration order
	current   *Task                 // task most recently dispatched
	retired   []*Task               // finished one-shot tasks, kept for status queries
	history   []HistoryEntry        // append-only execution history
	alerts    *circularbuffer.Queue // recent alerts
	stats     Statistics
	observer  Observer

	// logging-related
	logger    *slog.Logger
	csvFile   *os.File
	csvWriter *csv.Writer
}

// Option configures optional Scheduler dependencies.
type Option func(*Scheduler)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger.With("component", "scheduler")
		}
	}
}

// WithObserver registers the notification observer.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) { s.observer = o }
}

// WithPolicy overrides the policy derived from Config.
func WithPolicy(p Policy) Option {
	return func(s *Scheduler) {
		if p != nil {
			s.policy = p
		}
	}
}

// New creates a new Scheduler with the given configuration.
func New(cfg Config, opts ...Option) (*Scheduler, error) {
	cfg = cfg.Sanitize()
	s := &Scheduler{
		cfg:       cfg,
		tasks:     make(map[string]*Task),
		resources: linkedhashmap.New(),
		alerts:    circularbuffer.New(cfg.Alerts),
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.policy == nil {
		p, err := NewPolicy(cfg)
		if err != nil {
			return nil, err
		}
		s.policy = p
	}
	return s, nil
}

// Policy returns the active dispatch policy.
func (s *Scheduler) Policy() PolicyKind { return s.policy.Kind() }

// Observe replaces the observer. Pass nil to stop notifications.
func (s *Scheduler) Observe(o Observer) {
	s.mu.Lock()
	s.observer = o
	s.mu.Unlock()
}

// EnableCSVLogging opens the given file path for CSV logging of history records,
// replacing any log opened before. Must be called before Run().
func (s *Scheduler) EnableCSVLogging(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"tick", "task_id", "action"}); err != nil {
		f.Close()
		return err
	}
	w.Flush()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csvFile != nil {
		if err := s.closeCSV(); err != nil {
			s.logger.Warn("closing previous csv log", "error", err)
		}
	}
	s.csvFile = f
	s.csvWriter = w
	return nil
}

// Close flushes and closes the CSV log, if any.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.csvFile == nil {
		return nil
	}
	return s.closeCSV()
}

// closeCSV must be called with s.mu held and a log open.
func (s *Scheduler) closeCSV() error {
	s.csvWriter.Flush()
	err := s.csvWriter.Error()
	if cerr := s.csvFile.Close(); err == nil {
		err = cerr
	}
	s.csvFile, s.csvWriter = nil, nil
	return err
}

// AddTask validates d and registers the resulting task.
func (s *Scheduler) AddTask(d TaskDescriptor) error {
	t, err := NewTask(d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.tasks[t.ID]; dup {
		return newError(KindScheduling, "add task", "task with ID %s already exists", t.ID).withTask(t.ID)
	}
	if err := s.policy.Admit(t); err != nil {
		return err
	}
	s.policy.Insert(t)
	s.tasks[t.ID] = t
	s.logger.Debug("task added", "task_id", t.ID, "period", t.Period,
		"execution_time", t.ExecutionTime, "aperiodic", t.Aperiodic)
	return nil
}

// RemoveTask drops a task and its resource waits.
func (s *Scheduler) RemoveTask(id string) error {
	if strings.TrimSpace(id) == "" {
		return newError(KindValidation, "remove task", "task ID must be a non-empty string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return newError(KindScheduling, "remove task", "task with ID %s not found", id).withTask(id)
	}
	s.policy.Remove(t)
	s.dropTask(t)
	s.logger.Debug("task removed", "task_id", id)
	return nil
}

// dropTask forgets t after the policy released it. Must be called with s.mu held.
func (s *Scheduler) dropTask(t *Task) {
	delete(s.tasks, t.ID)
	for i, r := range s.retired {
		if r == t {
			s.retired = append(s.retired[:i], s.retired[i+1:]...)
			break
		}
	}
	s.resources.Each(func(_, v interface{}) {
		v.(*Resource).removeWaiter(t.ID)
	})
	if s.current == t {
		s.current = nil
	}
}

// AddResource registers an exclusive resource.
func (s *Scheduler) AddResource(id string) error {
	if strings.TrimSpace(id) == "" {
		return newError(KindValidation, "add resource", "resource ID must be a non-empty string")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.resources.Get(id); dup {
		return newError(KindResourceConflict, "add resource", "resource with ID %s already exists", id).withResource(id)
	}
	s.resources.Put(id, newResource(id))
	return nil
}

// BlockTask marks a task as waiting on a registered resource.
func (s *Scheduler) BlockTask(taskID, resourceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return newError(KindScheduling, "block", "task with ID %s not found", taskID).withTask(taskID)
	}
	v, ok := s.resources.Get(resourceID)
	if !ok {
		return newError(KindResourceConflict, "block", "resource %q is not registered", resourceID).
			withTask(taskID).withResource(resourceID)
	}
	if t.blocked && t.blockedResource != resourceID {
		if prev, ok := s.resources.Get(t.blockedResource); ok {
			prev.(*Resource).removeWaiter(taskID)
		}
	}
	if err := t.Block(resourceID); err != nil {
		return err
	}
	v.(*Resource).addWaiter(taskID)
	s.logger.Debug("task blocked", "task_id", taskID, "resource_id", resourceID)
	return nil
}

// UnblockTask releases a task's resource wait.
func (s *Scheduler) UnblockTask(taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[taskID]
	if !ok {
		return newError(KindScheduling, "unblock", "task with ID %s not found", taskID).withTask(taskID)
	}
	resourceID := t.blockedResource
	if err := t.Unblock(); err != nil {
		return err
	}
	if v, ok := s.resources.Get(resourceID); ok {
		v.(*Resource).removeWaiter(taskID)
	}
	s.logger.Debug("task unblocked", "task_id", taskID, "resource_id", resourceID)
	return nil
}

// Schedule selects the task to dispatch at tick without executing it and
// returns its status, or nil when the processor would idle.
func (s *Scheduler) Schedule(tick int) (*TaskStatus, error) {
	if tick < 0 {
		return nil, newError(KindValidation, "schedule", "current time must be non-negative, got %d", tick)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.dispatch(tick)
	if t == nil {
		return nil, nil
	}
	st := statusOf(t)
	return &st, nil
}

// Run simulates duration ticks starting at Now().
func (s *Scheduler) Run(duration int) error {
	if duration <= 0 {
		return newError(KindValidation, "run", "duration must be a positive number of ticks, got %d", duration)
	}
	s.mu.RLock()
	empty := len(s.tasks) == 0
	s.mu.RUnlock()
	if empty {
		return newError(KindScheduling, "run", "no tasks to schedule")
	}

	for i := 0; i < duration; i++ {
		s.Step()
	}
	return nil
}

// Step simulates a single tick and notifies the observer.
func (s *Scheduler) Step() {
	s.mu.Lock()
	events := s.tick()
	obs := s.observer
	s.mu.Unlock() // NOTE: Unlock before notifying so observers may query status

	if obs == nil {
		return
	}
	for _, ev := range events {
		obs.Notify(ev)
	}
}

// tick runs one tick of the loop: period bookkeeping, dispatch, one tick of
// work. A failing execution is logged and the tick counts as idle.
// Must be called with s.mu held.
func (s *Scheduler) tick() []StatusEvent {
	tick := s.now
	s.now++

	s.enforcePeriods(tick)

	ev := StatusEvent{Kind: StatusTick, Tick: tick}
	t := s.dispatch(tick)
	if t == nil {
		s.stats.TotalIdleTime++
		return []StatusEvent{ev}
	}

	if err := t.Execute(tick); err != nil {
		s.stats.TotalIdleTime++
		s.fault(tick, t, err)
		return []StatusEvent{{Kind: StatusFault, Tick: tick, TaskID: t.ID, Err: err}, ev}
	}
	s.stats.TotalExecutionTime++
	ev.TaskID = t.ID

	if t.IsCompleted() {
		if s.policy.Retire(t) {
			t.finish()
			s.record(tick, t.ID, ActionCompleted)
			s.retired = append(s.retired, t)
			s.current = nil
			s.record(tick, t.ID, ActionRetired)
		} else {
			t.Reset()
			s.record(tick, t.ID, ActionCompleted)
		}
	}
	return []StatusEvent{ev}
}

// enforcePeriods resets periodic tasks whose period elapsed and flags
// deadline overruns. Must be called with s.mu held.
func (s *Scheduler) enforcePeriods(tick int) {
	for _, t := range s.policy.Tasks() {
		if t.Aperiodic || t.Period <= 0 {
			continue
		}

		if dl, err := t.Deadline.Get(); err == nil && dl < t.Period &&
			t.remaining > 0 && tick == t.startTime+dl {
			s.record(tick, t.ID, ActionDeadlineOverrun)
			s.alert(tick, t.ID, KindDeadline.Code(),
				fmt.Sprintf("task %s passed its deadline with %d ticks of work left", t.ID, t.remaining))
			s.logger.Info("deadline overrun", "tick", tick, "task_id", t.ID, "remaining", t.remaining)
		}

		if tick >= t.startTime+t.Period {
			missed := t.remaining > 0
			left := t.remaining
			t.Reset()
			if missed {
				s.stats.TotalMissedDeadlines++
				s.record(tick, t.ID, ActionMissed)
				s.alert(tick, t.ID, KindDeadline.Code(),
					fmt.Sprintf("task %s missed its period with %d ticks of work left", t.ID, left))
				s.logger.Info("period missed", "tick", tick, "task_id", t.ID, "remaining", left)
			}
		}
	}
}

// dispatch asks the policy for the next task and records new decisions.
// Must be called with s.mu held.
func (s *Scheduler) dispatch(tick int) *Task {
	t, fresh := s.policy.Select(tick, s.current)
	if t == nil {
		return nil
	}
	if fresh {
		s.record(tick, t.ID, ActionScheduled)
		s.logger.Debug("dispatch", "tick", tick, "task_id", t.ID, "policy", s.policy.Kind())
	}
	s.current = t
	return t
}

func (s *Scheduler) fault(tick int, t *Task, err error) {
	s.record(tick, t.ID, ActionFault)
	code := KindValidation.Code()
	if kind, ok := KindOf(err); ok {
		code = kind.Code()
	}
	s.alert(tick, t.ID, code, err.Error())
	s.logger.Warn("tick execution failed", "tick", tick, "task_id", t.ID, "error", err)
}

func (s *Scheduler) record(tick int, taskID string, action Action) {
	s.history = append(s.history, HistoryEntry{Tick: tick, TaskID: taskID, Action: action})

	if s.csvWriter == nil {
		return
	}
	rec := []string{strconv.Itoa(tick), taskID, action.String()}
	err := s.csvWriter.Write(rec)
	if err == nil {
		s.csvWriter.Flush()
		err = s.csvWriter.Error()
	}
	if err != nil {
		// a broken log stays off for the rest of the run
		s.logger.Warn("csv log write failed, disabling csv logging", "tick", tick, "error", err)
		s.closeCSV()
	}
}

func (s *Scheduler) alert(tick int, taskID, code, msg string) {
	if s.alerts.Full() {
		s.alerts.Dequeue()
	}
	s.alerts.Enqueue(Alert{Tick: tick, TaskID: taskID, Code: code, Message: msg})
}

// Reset drops every task, resource, statistic and history record and
// rewinds the clock to tick 0.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	s.policy.Clear()
	s.tasks = make(map[string]*Task)
	s.resources.Clear()
	s.current = nil
	s.retired = nil
	s.history = nil
	s.alerts.Clear()
	s.stats = Statistics{}
	s.now = 0
	obs := s.observer
	s.mu.Unlock()

	if obs != nil {
		obs.Notify(StatusEvent{Kind: StatusReset})
	}
}
