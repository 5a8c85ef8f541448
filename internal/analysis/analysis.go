// Package analysis runs the classic static schedulability tests over a task
// set and summarizes what a simulation actually observed.
package analysis

import (
	"math"

	"golang.org/x/exp/constraints"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"rtsched/internal/sched"
)

type Number interface {
	constraints.Integer | constraints.Float
}

func ratio[T Number](num, den T) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Verdict is the outcome of a schedulability test.
type Verdict string

const (
	Schedulable  Verdict = "schedulable"
	Inconclusive Verdict = "inconclusive" // sufficient test failed, load still <= 1
	Overloaded   Verdict = "overloaded"
)

// TaskLoad is one task's share of the processor.
type TaskLoad struct {
	ID          string  `json:"id"`
	Utilization float64 `json:"utilization"` // C / T
	Density     float64 `json:"density"`     // C / min(D, T)
}

// Report is the static analysis of a task set under one policy.
type Report struct {
	Policy      sched.PolicyKind `json:"policy"`
	Tasks       int              `json:"tasks"`
	Utilization float64          `json:"utilization"`
	Density     float64          `json:"density"`
	Bound       float64          `json:"bound"`
	Verdict     Verdict          `json:"verdict"`
	Schedulable bool             `json:"schedulable"`
	Loads       []TaskLoad       `json:"loads"`
}

func loads(ds []sched.TaskDescriptor) []TaskLoad {
	out := make([]TaskLoad, 0, len(ds))
	for _, d := range ds {
		if d.Aperiodic || d.Period <= 0 {
			continue
		}
		window := d.Period
		if dl, err := d.Deadline.Get(); err == nil && dl < window {
			window = dl
		}
		out = append(out, TaskLoad{
			ID:          d.ID,
			Utilization: ratio(d.ExecutionTime, d.Period),
			Density:     ratio(d.ExecutionTime, window),
		})
	}
	return out
}

func sum(ls []TaskLoad, f func(TaskLoad) float64) float64 {
	vals := make([]float64, len(ls))
	for i, l := range ls {
		vals[i] = f(l)
	}
	return floats.Sum(vals)
}

// Utilization is the total C/T over the periodic tasks; aperiodic tasks
// carry no steady load.
func Utilization(ds []sched.TaskDescriptor) float64 {
	return sum(loads(ds), func(l TaskLoad) float64 { return l.Utilization })
}

// Density is the total C/min(D,T) over the periodic tasks.
func Density(ds []sched.TaskDescriptor) float64 {
	return sum(loads(ds), func(l TaskLoad) float64 { return l.Density })
}

// LiuLaylandBound is n(2^(1/n) - 1), the rate-monotonic utilization bound
// for n tasks.
func LiuLaylandBound(n int) float64 {
	if n <= 0 {
		return 1
	}
	fn := float64(n)
	return fn * (math.Pow(2, 1/fn) - 1)
}

// Analyze applies the Liu-Layland test for rate-monotonic and the density
// test for EDF.
func Analyze(policy sched.PolicyKind, ds []sched.TaskDescriptor) Report {
	ls := loads(ds)
	r := Report{
		Policy:      policy,
		Tasks:       len(ls),
		Utilization: sum(ls, func(l TaskLoad) float64 { return l.Utilization }),
		Density:     sum(ls, func(l TaskLoad) float64 { return l.Density }),
		Loads:       ls,
	}

	load := r.Density
	r.Bound = 1
	if policy == sched.RateMonotonic {
		load = r.Utilization
		r.Bound = LiuLaylandBound(len(ls))
	}

	const eps = 1e-9
	switch {
	case load <= r.Bound+eps:
		r.Verdict = Schedulable
	case r.Utilization <= 1+eps:
		r.Verdict = Inconclusive
	default:
		r.Verdict = Overloaded
	}
	r.Schedulable = r.Verdict == Schedulable
	return r
}

// Observation summarizes a finished simulation.
type Observation struct {
	Ticks       int     `json:"ticks"`
	Busy        float64 `json:"busy"`        // fraction of ticks spent executing
	MissRate    float64 `json:"missRate"`    // missed / (missed + completed) over all tasks
	MeanMisses  float64 `json:"meanMisses"`  // mean missed periods per task
	WorstTaskID string  `json:"worstTaskId"` // task with the most misses
}

// Observe derives an Observation from a scheduler report.
func Observe(r sched.StatisticsReport) Observation {
	o := Observation{
		Ticks: r.Ticks,
		Busy:  ratio(r.TotalExecutionTime, r.Ticks),
	}
	if len(r.Tasks) == 0 {
		return o
	}

	misses := make([]float64, len(r.Tasks))
	var jobs int
	for i, t := range r.Tasks {
		misses[i] = float64(t.MissedDeadlines)
		jobs += t.MissedDeadlines + t.CompletedJobs
	}
	o.MeanMisses = stat.Mean(misses, nil)
	o.MissRate = ratio(floats.Sum(misses), float64(jobs))
	if floats.Max(misses) > 0 {
		o.WorstTaskID = r.Tasks[floats.MaxIdx(misses)].ID
	}
	return o
}

// MeanUtilization averages utilization samples, e.g. across reloads.
func MeanUtilization(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return stat.Mean(samples, nil)
}
