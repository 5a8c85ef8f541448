// internal/sched/edf.go

package sched

import (
	"github.com/emirpasic/gods/lists/arraylist"
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"
)

// EDF is the dynamic-priority earliest-deadline-first policy. Periodic tasks
// are ordered by absolute deadline; aperiodic tasks wait in a FIFO queue and
// preempt every periodic task while any of them is ready.
type EDF struct {
	rbt       *redblacktree.Tree // orderKey{absoluteDeadline, seq} -> *Task
	keys      map[*Task]orderKey
	seqs      map[*Task]uint64
	aperiodic *arraylist.List
	seq       uint64

	// fixed keeps absoluteDeadline at startTime+deadline instead of
	// recomputing it from the current tick on every selection.
	fixed bool
}

// NewEDF returns an empty EDF policy. With fixedDeadlines the absolute
// deadline is set once per period activation.
func NewEDF(fixedDeadlines bool) *EDF {
	return &EDF{
		rbt:       redblacktree.NewWith(cmp),
		keys:      make(map[*Task]orderKey),
		seqs:      make(map[*Task]uint64),
		aperiodic: arraylist.New(),
		fixed:     fixedDeadlines,
	}
}

func (p *EDF) Kind() PolicyKind { return EarliestDeadlineFirst }

func (p *EDF) Admit(t *Task) error {
	if !t.Aperiodic && !t.Deadline.Present() {
		return newError(KindDeadline, "add task",
			"EDF scheduling requires periodic task %s to have a deadline", t.ID).withTask(t.ID)
	}
	return nil
}

func (p *EDF) Insert(t *Task) {
	p.seq++
	if t.Aperiodic {
		p.aperiodic.Add(t)
		return
	}
	p.seqs[t] = p.seq
	p.put(t)
}

func (p *EDF) put(t *Task) {
	k := p.liveKey(t)
	p.keys[t] = k
	p.rbt.Put(k, t)
}

func (p *EDF) Remove(t *Task) {
	if t.Aperiodic {
		if i := p.aperiodic.IndexOf(t); i >= 0 {
			p.aperiodic.Remove(i)
		}
		return
	}
	if k, ok := p.keys[t]; ok {
		p.rbt.Remove(k)
		delete(p.keys, t)
		delete(p.seqs, t)
	}
}

// Select returns the first ready aperiodic task with work left if there is
// one. Otherwise it refreshes every periodic deadline, re-sorts, and returns
// the earliest ready periodic task.
func (p *EDF) Select(tick int, current *Task) (*Task, bool) {
	if _, v := p.aperiodic.Find(func(_ int, v interface{}) bool {
		return v.(*Task).dispatchable(tick)
	}); v != nil {
		t := v.(*Task)
		return t, t != current
	}

	p.reorder(tick)

	it := p.rbt.Iterator()
	for it.Next() {
		if t := it.Value().(*Task); t.dispatchable(tick) {
			return t, t != current
		}
	}
	return nil, false
}

// reorder recomputes absolute deadlines for tick and rebuilds the tree.
func (p *EDF) reorder(tick int) {
	tasks := p.periodic()
	p.rbt.Clear()
	for _, t := range tasks {
		if !p.fixed {
			t.updateDeadline(tick)
		}
		p.put(t)
	}
}

// Retire drops aperiodic tasks once their single job is done.
func (p *EDF) Retire(t *Task) bool {
	if !t.Aperiodic {
		return false
	}
	p.Remove(t)
	return true
}

// periodic lists periodic tasks by their current absolute deadline. A reset
// between selections moves a deadline without re-keying the tree, so the
// values are sorted on read instead of trusting the tree order.
func (p *EDF) periodic() []*Task {
	values := p.rbt.Values()
	utils.Sort(values, func(a, b interface{}) int {
		return cmp(p.liveKey(a.(*Task)), p.liveKey(b.(*Task)))
	})
	out := make([]*Task, 0, len(values))
	for _, v := range values {
		out = append(out, v.(*Task))
	}
	return out
}

func (p *EDF) liveKey(t *Task) orderKey {
	return orderKey{rank: t.absoluteDeadline, seq: p.seqs[t]}
}

// Tasks lists the aperiodic queue first, then periodic tasks by deadline.
func (p *EDF) Tasks() []*Task {
	out := make([]*Task, 0, p.aperiodic.Size()+p.rbt.Size())
	p.aperiodic.Each(func(_ int, v interface{}) {
		out = append(out, v.(*Task))
	})
	return append(out, p.periodic()...)
}

// Periodic returns periodic tasks ordered by absolute deadline.
func (p *EDF) Periodic() []*Task { return p.periodic() }

// Aperiodic returns the aperiodic queue in arrival order.
func (p *EDF) Aperiodic() []*Task {
	out := make([]*Task, 0, p.aperiodic.Size())
	p.aperiodic.Each(func(_ int, v interface{}) {
		out = append(out, v.(*Task))
	})
	return out
}

func (p *EDF) Clear() {
	p.rbt.Clear()
	p.aperiodic.Clear()
	p.keys = make(map[*Task]orderKey)
	p.seqs = make(map[*Task]uint64)
}
