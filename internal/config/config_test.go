package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"rtsched/internal/job"
	"rtsched/internal/sched"
)

const sample = `
scheduler:
  policy: edf
  tick_ms: 20
dashboard:
  addr: ":3000"
log:
  level: info
  format: text
resources:
  - id: RESOURCE_A
tasks:
  - {id: T1, period: 10, executionTime: 2, deadline: 8}
  - {id: T2, period: 15, executionTime: 3}
  - {id: AP, period: 0, executionTime: 1, aperiodic: true}
development:
  log:
    level: debug
production:
  dashboard:
    addr: ":8080"
  scheduler:
    policy: rate-monotonic
  tasks:
    - {id: P1, period: 5, executionTime: 1}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFor_Development(t *testing.T) {
	cfg, err := LoadFor(writeFile(t, "config.yaml", sample), "development")
	if err != nil {
		t.Fatalf("LoadFor: %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("expected development, got %s", cfg.Environment)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("expected overlay log level debug, got %q", cfg.Log.Level)
	}
	if cfg.Scheduler.Policy != "edf" || cfg.Scheduler.TickMS != 20 {
		t.Errorf("unexpected scheduler section %+v", cfg.Scheduler)
	}
	if cfg.Scheduler.Alerts != 64 || cfg.Scheduler.DeadlineMode != sched.DeadlineModeTick {
		t.Errorf("expected defaults for omitted scheduler keys, got %+v", cfg.Scheduler)
	}
	if len(cfg.Tasks) != 3 || cfg.Tasks[0].Deadline == nil || *cfg.Tasks[0].Deadline != 8 {
		t.Errorf("unexpected tasks %+v", cfg.Tasks)
	}
	if !cfg.Tasks[2].Aperiodic {
		t.Errorf("expected AP aperiodic, got %+v", cfg.Tasks[2])
	}
	if got := cfg.ResourceIDs(); !reflect.DeepEqual(got, []string{"RESOURCE_A"}) {
		t.Errorf("unexpected resources %v", got)
	}
}

func TestLoadFor_Production(t *testing.T) {
	cfg, err := LoadFor(writeFile(t, "config.yml", sample), "production")
	if err != nil {
		t.Fatalf("LoadFor: %v", err)
	}
	if cfg.Dashboard.Addr != ":8080" || cfg.Scheduler.Policy != "rate-monotonic" {
		t.Errorf("expected production overlay, got %+v", cfg)
	}
	if len(cfg.Tasks) != 1 || cfg.Tasks[0].ID != "P1" {
		t.Errorf("expected overlay to replace tasks, got %+v", cfg.Tasks)
	}
	// shallow merge: the overlay replaces whole sections
	if cfg.Scheduler.TickMS != 50 {
		t.Errorf("expected default tick_ms after section replace, got %d", cfg.Scheduler.TickMS)
	}
}

func TestLoad_UsesEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvVar, "production")
	cfg, err := Load(writeFile(t, "config.yaml", sample))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Environment != "production" {
		t.Errorf("expected production, got %s", cfg.Environment)
	}

	t.Setenv(EnvVar, "")
	if Environment() != "development" {
		t.Errorf("expected development fallback, got %s", Environment())
	}
}

func TestLoadFor_JSON(t *testing.T) {
	body := `{
  "scheduler": {"policy": "rate-monotonic"},
  "resources": [{"id": "R1"}],
  "tasks": [{"id": "T1", "period": 10, "executionTime": 2}],
  "test": {"log": {"level": "error"}}
}`
	cfg, err := LoadFor(writeFile(t, "config.json", body), "test")
	if err != nil {
		t.Fatalf("LoadFor: %v", err)
	}
	if cfg.Log.Level != "error" || len(cfg.Tasks) != 1 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadFor_Errors(t *testing.T) {
	if _, err := LoadFor(writeFile(t, "config.toml", "x = 1"), "development"); !errors.Is(err, sched.ErrValidation) {
		t.Errorf("expected Validation for unsupported format, got %v", err)
	}
	if _, err := LoadFor(filepath.Join(t.TempDir(), "missing.yaml"), "development"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
	if _, err := LoadFor(writeFile(t, "bad.yaml", "tasks: [\n"), "development"); !errors.Is(err, sched.ErrValidation) {
		t.Errorf("expected Validation for malformed YAML, got %v", err)
	}
}

func TestValidate_ReportsEverything(t *testing.T) {
	neg := -1
	cfg := Default()
	cfg.Scheduler.Policy = "lottery"
	cfg.Tasks = []TaskSpec{
		{ID: "", Period: 10, ExecutionTime: 1},
		{ID: "T1", Period: 0, ExecutionTime: 0},
		{ID: "T1", Period: 5, ExecutionTime: 1, Deadline: &neg},
		{ID: "AP", Period: 0, ExecutionTime: 1, Aperiodic: true},
	}
	cfg.Resources = []ResourceSpec{{ID: "R1"}, {ID: " "}}
	cfg.Script = []job.Step{
		{Action: job.ActionBlock, Task: "T9", Resource: "R1"},
		{Action: job.ActionRun},
	}

	err := cfg.Validate()
	if !errors.Is(err, sched.ErrValidation) {
		t.Fatalf("expected Validation, got %v", err)
	}
	for _, want := range []string{
		`unknown policy "lottery"`,
		"task 0: id must be a non-empty string",
		"task 1: period must be a positive number",
		"task 1: executionTime must be a positive number",
		"task 2: duplicate id T1",
		"task 2: deadline must be a positive number",
		"resource 1: id must be a non-empty string",
		"script step 0: unknown task T9",
		"script step 1: run needs a positive tick count",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
	if strings.Contains(err.Error(), "task 3") {
		t.Errorf("aperiodic task with period 0 is valid, got %v", err)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	_, err := Parse([]byte("scheduler: {policy: rm}\n"), "development")
	if err == nil {
		t.Fatal("expected missing fields to fail")
	}
	for _, want := range []string{"missing required field: tasks", "missing required field: resources"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in %v", want, err)
		}
	}
}

func TestDescriptors(t *testing.T) {
	dl := 8
	cfg := Default()
	cfg.Tasks = []TaskSpec{
		{ID: "T1", Period: 10, ExecutionTime: 2, Deadline: &dl},
		{ID: "T2", Period: 15, ExecutionTime: 3},
		{ID: "AP", ExecutionTime: 1, Aperiodic: true},
	}

	rm := cfg.Descriptors()
	if v, err := rm[0].Deadline.Get(); err != nil || v != 8 {
		t.Errorf("expected explicit deadline 8, got %v (%v)", v, err)
	}
	if rm[1].Deadline.Present() {
		t.Error("rate-monotonic tasks keep an absent deadline")
	}

	cfg.Scheduler.Policy = "edf"
	edf := cfg.Descriptors()
	if v, err := edf[1].Deadline.Get(); err != nil || v != 15 {
		t.Errorf("expected EDF deadline to default to the period, got %v (%v)", v, err)
	}
	if edf[2].Deadline.Present() {
		t.Error("aperiodic tasks never get a default deadline")
	}
}

func TestSteps_DefaultsToDemo(t *testing.T) {
	cfg, err := LoadFor(writeFile(t, "config.yaml", sample), "development")
	if err != nil {
		t.Fatal(err)
	}
	steps := cfg.Steps()
	if len(steps) != 6 || steps[0].Task != "T2" || steps[0].Resource != "RESOURCE_A" {
		t.Errorf("expected demo script, got %+v", steps)
	}

	cfg.Script = []job.Step{{Action: job.ActionRun, Ticks: 5}}
	if got := cfg.Steps(); len(got) != 1 {
		t.Errorf("expected configured script, got %+v", got)
	}
}

func TestWatch_ReloadsOnChange(t *testing.T) {
	t.Setenv(EnvVar, "development")
	path := writeFile(t, "config.yaml", sample)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reloaded := make(chan *Config, 1)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 10*time.Millisecond, func(c *Config) {
			select {
			case reloaded <- c:
			default:
			}
		}, nil)
	}()

	time.Sleep(50 * time.Millisecond)
	changed := strings.Replace(sample, "tick_ms: 20", "tick_ms: 125", 1)
	if err := os.WriteFile(path, []byte(changed), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-reloaded:
		if cfg.Scheduler.TickMS != 125 {
			t.Errorf("expected reloaded tick_ms 125, got %d", cfg.Scheduler.TickMS)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWatch_KeepsPreviousOnBadReload(t *testing.T) {
	path := writeFile(t, "config.yaml", sample)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	called := false
	go func() {
		time.Sleep(30 * time.Millisecond)
		os.WriteFile(path, []byte("tasks: [\n"), 0o644)
	}()
	err := Watch(ctx, path, 10*time.Millisecond, func(*Config) { called = true }, nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
	if called {
		t.Error("a failed reload must not replace the configuration")
	}
}
