package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "github.com/goccy/go-yaml"
	"github.com/markphelps/optional"

	"rtsched/internal/job"
	"rtsched/internal/logging"
	"rtsched/internal/sched"
)

// EnvVar selects the environment overlay merged over the base file.
const EnvVar = "RTSCHED_ENV"

const defaultEnvironment = "development"

// environments are overlay blocks; they never survive the merge.
var environments = []string{"development", "production", "test"}

// TaskSpec mirrors one entry of the `tasks` list.
type TaskSpec struct {
	ID            string `yaml:"id" json:"id"`
	Period        int    `yaml:"period" json:"period"`
	ExecutionTime int    `yaml:"executionTime" json:"executionTime"`
	Deadline      *int   `yaml:"deadline,omitempty" json:"deadline,omitempty"`
	Aperiodic     bool   `yaml:"aperiodic,omitempty" json:"aperiodic,omitempty"`
}

// ResourceSpec mirrors one entry of the `resources` list.
type ResourceSpec struct {
	ID string `yaml:"id" json:"id"`
}

// Dashboard mirrors the `dashboard` section.
type Dashboard struct {
	Addr string `yaml:"addr" json:"addr"` // :3000 (by default)
}

// Config mirrors the whole configuration file after the overlay.
type Config struct {
	Scheduler sched.Config   `yaml:"scheduler" json:"scheduler"`
	Dashboard Dashboard      `yaml:"dashboard" json:"dashboard"`
	Log       logging.Config `yaml:"log" json:"log"`
	Resources []ResourceSpec `yaml:"resources" json:"resources"`
	Tasks     []TaskSpec     `yaml:"tasks" json:"tasks"`
	Script    []job.Step     `yaml:"script,omitempty" json:"script,omitempty"`

	Environment string `yaml:"-" json:"environment"`
	Path        string `yaml:"-" json:"path"`
}

// Default is used for every value the file leaves out.
func Default() Config {
	return Config{
		Scheduler:   sched.DefaultConfig(),
		Dashboard:   Dashboard{Addr: ":3000"},
		Log:         logging.Config{Level: "info", Format: "text"},
		Environment: defaultEnvironment,
	}
}

// Environment returns the overlay named by RTSCHED_ENV, or development.
func Environment() string {
	if env := strings.TrimSpace(os.Getenv(EnvVar)); env != "" {
		return env
	}
	return defaultEnvironment
}

// Load reads path for the current Environment.
func Load(path string) (*Config, error) {
	return LoadFor(path, Environment())
}

// LoadFor reads a YAML or JSON file, merges the env overlay over it and
// validates the result.
func LoadFor(path, env string) (*Config, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch ext {
	case "json", "yaml", "yml":
	default:
		return nil, fmt.Errorf("%w: unsupported file format %q, use JSON or YAML", sched.ErrValidation, ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data, env)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	cfg.Path = path
	return cfg, nil
}

// Parse decodes a document (JSON is valid YAML), merges the env overlay
// over it and validates the result.
func Parse(data []byte, env string) (*Config, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", sched.ErrValidation, err)
	}

	merged, err := yaml.Marshal(overlay(raw, env))
	if err != nil {
		return nil, fmt.Errorf("encode merged config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(merged, &cfg); err != nil {
		return nil, fmt.Errorf("%w: decode config: %v", sched.ErrValidation, err)
	}
	cfg.Environment = env

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Scheduler = cfg.Scheduler.Sanitize()
	return &cfg, nil
}

// overlay shallow-merges the env block over the base document and drops
// every environment block.
func overlay(base map[string]any, env string) map[string]any {
	merged := make(map[string]any, len(base))
	for k, v := range base {
		merged[k] = v
	}
	if block, ok := base[env].(map[string]any); ok {
		for k, v := range block {
			merged[k] = v
		}
	}
	for _, e := range environments {
		delete(merged, e)
	}
	delete(merged, env)
	return merged
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if _, err := sched.ParsePolicy(c.Scheduler.Policy); err != nil {
		errs = append(errs, fmt.Errorf("scheduler: unknown policy %q", c.Scheduler.Policy))
	}
	if c.Tasks == nil {
		errs = append(errs, errors.New("missing required field: tasks"))
	}
	if c.Resources == nil {
		errs = append(errs, errors.New("missing required field: resources"))
	}

	taskIDs := make(map[string]bool, len(c.Tasks))
	for i, t := range c.Tasks {
		if strings.TrimSpace(t.ID) == "" {
			errs = append(errs, fmt.Errorf("task %d: id must be a non-empty string", i))
		} else if taskIDs[t.ID] {
			errs = append(errs, fmt.Errorf("task %d: duplicate id %s", i, t.ID))
		}
		taskIDs[t.ID] = true

		switch {
		case t.Aperiodic && t.Period < 0:
			errs = append(errs, fmt.Errorf("task %d: period must not be negative", i))
		case !t.Aperiodic && t.Period <= 0:
			errs = append(errs, fmt.Errorf("task %d: period must be a positive number", i))
		}
		if t.ExecutionTime <= 0 {
			errs = append(errs, fmt.Errorf("task %d: executionTime must be a positive number", i))
		}
		if t.Deadline != nil && *t.Deadline <= 0 {
			errs = append(errs, fmt.Errorf("task %d: deadline must be a positive number", i))
		}
	}

	resIDs := make(map[string]bool, len(c.Resources))
	for i, r := range c.Resources {
		if strings.TrimSpace(r.ID) == "" {
			errs = append(errs, fmt.Errorf("resource %d: id must be a non-empty string", i))
		} else if resIDs[r.ID] {
			errs = append(errs, fmt.Errorf("resource %d: duplicate id %s", i, r.ID))
		}
		resIDs[r.ID] = true
	}

	for i, st := range c.Script {
		if err := st.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("script step %d: %w", i, err))
			continue
		}
		if st.Task != "" && !taskIDs[st.Task] {
			errs = append(errs, fmt.Errorf("script step %d: unknown task %s", i, st.Task))
		}
		if st.Resource != "" && !resIDs[st.Resource] {
			errs = append(errs, fmt.Errorf("script step %d: unknown resource %s", i, st.Resource))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: configuration validation failed: %w", sched.ErrValidation, errors.Join(errs...))
	}
	return nil
}

// Descriptors converts the task list for the scheduler. Under EDF a periodic
// task without a deadline gets its period as deadline.
func (c *Config) Descriptors() []sched.TaskDescriptor {
	kind, _ := sched.ParsePolicy(c.Scheduler.Policy)
	edf := kind == sched.EarliestDeadlineFirst

	out := make([]sched.TaskDescriptor, 0, len(c.Tasks))
	for _, t := range c.Tasks {
		d := sched.TaskDescriptor{
			ID:            t.ID,
			Period:        t.Period,
			ExecutionTime: t.ExecutionTime,
			Aperiodic:     t.Aperiodic,
		}
		switch {
		case t.Deadline != nil:
			d.Deadline = optional.NewInt(*t.Deadline)
		case edf && !t.Aperiodic:
			d.Deadline = optional.NewInt(t.Period)
		}
		out = append(out, d)
	}
	return out
}

// ResourceIDs lists resource ids in file order.
func (c *Config) ResourceIDs() []string {
	ids := make([]string, 0, len(c.Resources))
	for _, r := range c.Resources {
		ids = append(ids, r.ID)
	}
	return ids
}

// Steps returns the configured script, or the contention demo on the first
// resource when the file has none.
func (c *Config) Steps() []job.Step {
	if len(c.Script) > 0 || len(c.Resources) == 0 {
		return c.Script
	}
	return job.DemoScript(c.Descriptors(), c.Resources[0].ID)
}
