// internal/sched/ratemonotonic.go

package sched

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// RM is the fixed-priority rate-monotonic policy: shorter period, higher
// priority. Tasks stay ordered by (period, insertion sequence).
type RM struct {
	rbt  *redblacktree.Tree // orderKey{period, seq} -> *Task
	keys map[*Task]orderKey
	seq  uint64
}

// NewRM returns an empty rate-monotonic policy.
func NewRM() *RM {
	return &RM{
		rbt:  redblacktree.NewWith(cmp),
		keys: make(map[*Task]orderKey),
	}
}

func (p *RM) Kind() PolicyKind { return RateMonotonic }

func (p *RM) Admit(t *Task) error {
	if t.Aperiodic {
		return newError(KindValidation, "add task",
			"rate-monotonic scheduling does not accept aperiodic task %s", t.ID).withTask(t.ID)
	}
	return nil
}

func (p *RM) Insert(t *Task) {
	p.seq++
	k := orderKey{rank: t.Period, seq: p.seq}
	p.keys[t] = k
	p.rbt.Put(k, t)
}

func (p *RM) Remove(t *Task) {
	if k, ok := p.keys[t]; ok {
		p.rbt.Remove(k)
		delete(p.keys, t)
	}
}

// Select keeps dispatching current while it is still ready and unfinished;
// otherwise it takes the shortest-period ready task.
func (p *RM) Select(tick int, current *Task) (*Task, bool) {
	var first *Task
	it := p.rbt.Iterator()
	for it.Next() {
		if t := it.Value().(*Task); t.dispatchable(tick) {
			first = t
			break
		}
	}
	if first == nil {
		return nil, false
	}

	if current != nil && current.dispatchable(tick) {
		if _, owned := p.keys[current]; owned {
			return current, false
		}
	}
	return first, true
}

// Retire keeps periodic tasks; RM never holds aperiodic ones.
func (p *RM) Retire(*Task) bool { return false }

func (p *RM) Tasks() []*Task {
	out := make([]*Task, 0, p.rbt.Size())
	for _, v := range p.rbt.Values() {
		out = append(out, v.(*Task))
	}
	return out
}

func (p *RM) Clear() {
	p.rbt.Clear()
	p.keys = make(map[*Task]orderKey)
}
