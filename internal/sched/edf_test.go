package sched

import (
	"errors"
	"reflect"
	"testing"
)

func ids(tasks []*Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func edfPolicy(t *testing.T, s *Scheduler) *EDF {
	t.Helper()
	p, ok := s.policy.(*EDF)
	if !ok {
		t.Fatalf("expected EDF policy, got %T", s.policy)
	}
	return p
}

func TestEDF_RequiresDeadline(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	if err := s.AddTask(desc("T1", 6, 2)); !errors.Is(err, ErrDeadline) {
		t.Errorf("expected Deadline error, got %v", err)
	}
	if err := s.AddTask(aperiodic("AP", 1)); err != nil {
		t.Errorf("aperiodic tasks need no deadline, got %v", err)
	}
}

func TestEDF_SortByDeadline(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, descDL("T1", 6, 2, 6), descDL("T2", 4, 1, 4))

	if got, want := ids(edfPolicy(t, s).Periodic()), []string{"T2", "T1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestEDF_OrderRecomputedEachSelection(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, descDL("A", 10, 1, 8), descDL("B", 10, 1, 3), descDL("C", 10, 1, 5))

	if _, err := s.Schedule(7); err != nil {
		t.Fatal(err)
	}
	periodic := edfPolicy(t, s).Periodic()
	if got, want := ids(periodic), []string{"B", "C", "A"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	wantDeadlines := map[string]int{"A": 15, "B": 10, "C": 12}
	for i, task := range periodic {
		if task.AbsoluteDeadline() != wantDeadlines[task.ID] {
			t.Errorf("%s: expected absolute deadline %d, got %d", task.ID, wantDeadlines[task.ID], task.AbsoluteDeadline())
		}
		if i > 0 && periodic[i-1].AbsoluteDeadline() > task.AbsoluteDeadline() {
			t.Errorf("periodic tasks out of deadline order at %d", i)
		}
	}
}

func TestEDF_ExecutesByDeadline(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, descDL("T1", 6, 2, 6), descDL("T2", 6, 2, 3))

	if err := s.Run(6); err != nil {
		t.Fatal(err)
	}

	for _, id := range []string{"T1", "T2"} {
		st, _ := s.TaskStatus(id)
		if st.CompletedJobs != 1 {
			t.Errorf("%s: expected 1 completed job by tick 6, got %d", id, st.CompletedJobs)
		}
		if st.Executions != 2 {
			t.Errorf("%s: expected 2 ticks of service, got %d", id, st.Executions)
		}
	}

	h := s.History()
	if h[0] != (HistoryEntry{Tick: 0, TaskID: "T2", Action: ActionScheduled}) {
		t.Errorf("expected T2 dispatched first, got %+v", h[0])
	}
	if stats := s.Statistics(); stats.TotalExecutionTime != 4 || stats.TotalIdleTime != 2 {
		t.Errorf("unexpected statistics %+v", stats)
	}
}

func TestEDF_AperiodicPreemptsAndRetires(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, descDL("T1", 6, 2, 6), aperiodic("T2", 1))

	if err := s.Run(1); err != nil {
		t.Fatal(err)
	}
	t1, _ := s.TaskStatus("T1")
	if t1.Executions != 0 {
		t.Errorf("periodic task ran while an aperiodic task was ready: %d", t1.Executions)
	}
	if n := len(edfPolicy(t, s).Aperiodic()); n != 0 {
		t.Errorf("expected empty aperiodic queue, got %d", n)
	}

	if err := s.Run(2); err != nil {
		t.Fatal(err)
	}
	t1, _ = s.TaskStatus("T1")
	if t1.Executions != 2 {
		t.Errorf("expected T1 to run once the queue drained, got %d", t1.Executions)
	}

	t2, err := s.TaskStatus("T2")
	if err != nil {
		t.Fatalf("retired aperiodic task should stay queryable: %v", err)
	}
	if t2.Executions != 1 || t2.CompletedJobs != 1 || t2.Status != "Completed" {
		t.Errorf("expected T2 completed after 1 execution, got %+v", t2)
	}
	if got, want := s.Order(), []string{"T1"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected dispatch order %v, got %v", want, got)
	}
	if n := len(s.Tasks()); n != 2 {
		t.Errorf("expected retired task in the status list, got %d tasks", n)
	}

	var retired bool
	for _, h := range s.History() {
		if h.TaskID == "T2" && h.Action == ActionRetired && h.Tick == 0 {
			retired = true
		}
	}
	if !retired {
		t.Errorf("expected retired entry for T2, got %+v", s.History())
	}
}

func TestEDF_AperiodicExclusivity(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, descDL("P", 10, 2, 1), aperiodic("A1", 2), aperiodic("A2", 1))
	if err := s.AddResource("R"); err != nil {
		t.Fatal(err)
	}

	got, _ := s.Schedule(0)
	if got.ID != "A1" {
		t.Errorf("expected first ready aperiodic task A1, got %s", got.ID)
	}

	if err := s.BlockTask("A1", "R"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Schedule(0)
	if got.ID != "A2" {
		t.Errorf("expected A2 while A1 is blocked, got %s", got.ID)
	}

	if err := s.BlockTask("A2", "R"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Schedule(0)
	if got.ID != "P" {
		t.Errorf("expected periodic task when no aperiodic task is ready, got %s", got.ID)
	}

	if err := s.UnblockTask("A2"); err != nil {
		t.Fatal(err)
	}
	got, _ = s.Schedule(0)
	if got.Aperiodic != true {
		t.Errorf("a ready aperiodic task must win over deadlines, got %s", got.ID)
	}
}

func TestEDF_DeadlineModes(t *testing.T) {
	tests := []struct {
		mode     string
		lastTick map[string]int
	}{
		{DeadlineModeTick, map[string]int{"A": 9, "B": 10}},
		{DeadlineModeActivation, map[string]int{"A": 10, "B": 4}},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Policy = string(EarliestDeadlineFirst)
			cfg.DeadlineMode = tt.mode
			s, err := New(cfg)
			if err != nil {
				t.Fatal(err)
			}
			mustAdd(t, s, descDL("A", 20, 8, 20), descDL("B", 10, 5, 12))

			if err := s.Run(11); err != nil {
				t.Fatal(err)
			}
			for id, want := range tt.lastTick {
				st, _ := s.TaskStatus(id)
				if st.LastExecutedTick != want {
					t.Errorf("%s: expected last execution at %d, got %d", id, want, st.LastExecutedTick)
				}
			}
		})
	}
}

func TestEDF_RemoveAperiodic(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, aperiodic("A1", 3), descDL("P", 5, 1, 5))
	if err := s.RemoveTask("A1"); err != nil {
		t.Fatal(err)
	}
	if got, want := s.Order(), []string{"P"}; !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	got, _ := s.Schedule(0)
	if got == nil || got.ID != "P" {
		t.Errorf("expected P, got %v", got)
	}
}

func TestEDF_ExhaustedTaskNotSelected(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, descDL("T1", 6, 2, 6), aperiodic("AP", 1))

	// budget spent outside the tick loop, so nothing resets or retires AP
	if err := s.tasks["AP"].Execute(0); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.Schedule(0); got == nil || got.ID != "T1" {
		t.Fatalf("expected T1 while AP has no work left, got %v", got)
	}

	if err := s.Run(20); err != nil {
		t.Fatal(err)
	}
	t1, _ := s.TaskStatus("T1")
	if t1.Executions != 8 {
		t.Errorf("expected T1 to run 8 ticks, got %d", t1.Executions)
	}
	if stats := s.Statistics(); stats.TotalExecutionTime != 8 || stats.TotalIdleTime != 12 {
		t.Errorf("unexpected statistics %+v", stats)
	}
	for _, h := range s.History() {
		if h.Action == ActionFault {
			t.Errorf("unexpected fault %+v", h)
		}
	}
	if n := len(s.Alerts()); n != 0 {
		t.Errorf("expected no alerts, got %+v", s.Alerts())
	}
}

func TestEDF_OrderAfterCompletionReset(t *testing.T) {
	s := newTestScheduler(t, EarliestDeadlineFirst)
	mustAdd(t, s, descDL("A", 4, 1, 4), descDL("B", 20, 5, 6))

	if err := s.Run(1); err != nil {
		t.Fatal(err)
	}
	// A finished at tick 0 and moved to its next period (deadline 8)
	want := []string{"B", "A"}
	if got := s.Order(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	periodic := edfPolicy(t, s).Periodic()
	if got := ids(periodic); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if periodic[0].AbsoluteDeadline() != 6 || periodic[1].AbsoluteDeadline() != 8 {
		t.Errorf("expected deadlines 6 and 8, got %d and %d",
			periodic[0].AbsoluteDeadline(), periodic[1].AbsoluteDeadline())
	}
}
