package sched

// Config mirrors the `scheduler` section of the configuration file.
type Config struct {
	Policy       string `yaml:"policy" json:"policy"`               // rate-monotonic (by default) or edf
	DeadlineMode string `yaml:"deadline_mode" json:"deadline_mode"` // tick (by default) or activation; EDF only
	TickMS       int    `yaml:"tick_ms" json:"tick_ms"`             // 50 (by default); pacing for live runs
	Alerts       int    `yaml:"alerts" json:"alerts"`               // 64 (by default); recent-alert window
}

// DefaultConfig is used when no configuration file provides a value.
func DefaultConfig() Config {
	return Config{
		Policy:       string(RateMonotonic),
		DeadlineMode: DeadlineModeTick,
		TickMS:       50,
		Alerts:       64,
	}
}

// Sanitize applies the sanity clamps and fills empty fields with defaults.
func (c Config) Sanitize() Config {
	def := DefaultConfig()
	if kind, err := ParsePolicy(c.Policy); err == nil {
		c.Policy = string(kind)
	}
	if c.DeadlineMode != DeadlineModeActivation {
		c.DeadlineMode = def.DeadlineMode
	}
	if c.TickMS <= 0 {
		c.TickMS = def.TickMS
	}
	if c.Alerts <= 0 {
		c.Alerts = def.Alerts
	}
	return c
}
