package sched

// Resource is a named exclusive lock tasks may wait on. It only records
// waiters; blocking itself lives on the Task.
type Resource struct {
	ID           string
	blockedTasks []string
}

func newResource(id string) *Resource {
	return &Resource{ID: id}
}

func (r *Resource) addWaiter(taskID string) {
	for _, id := range r.blockedTasks {
		if id == taskID {
			return
		}
	}
	r.blockedTasks = append(r.blockedTasks, taskID)
}

func (r *Resource) removeWaiter(taskID string) {
	for i, id := range r.blockedTasks {
		if id == taskID {
			r.blockedTasks = append(r.blockedTasks[:i], r.blockedTasks[i+1:]...)
			return
		}
	}
}

// waiters reconciles the recorded waiter list with the tasks actually blocked
// on r. Recorded order wins; tasks blocked directly through Task.Block are
// appended in dispatch order.
func (r *Resource) waiters(tasks []*Task) []string {
	blockedHere := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		if t.blocked && t.blockedResource == r.ID {
			blockedHere[t.ID] = true
		}
	}

	out := make([]string, 0, len(blockedHere))
	seen := make(map[string]bool, len(blockedHere))
	for _, id := range r.blockedTasks {
		if blockedHere[id] && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for _, t := range tasks {
		if blockedHere[t.ID] && !seen[t.ID] {
			out = append(out, t.ID)
			seen[t.ID] = true
		}
	}
	return out
}
