package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// SchedulerConfig holds background job settings.
type SchedulerConfig struct {
	Enabled bool

	// File - optional YAML file with per-job overrides (SCHEDULER_FILE).
	File string

	TickInterval time.Duration
	JobTimeout   time.Duration

	// Concurrency - сколько сообщений задание отправляет параллельно.
	Concurrency int

	// MinStreak - минимальная серия для вечернего напоминания.
	MinStreak int

	// Schedules overrides the default trigger of a job by name.
	Schedules map[string]string

	// Disabled jobs are not registered.
	Disabled map[string]bool
}

// JobEnabled reports whether the named job should be registered.
func (s SchedulerConfig) JobEnabled(name string) bool {
	return !s.Disabled[name]
}

// ScheduleFor returns the configured trigger for name, or def.
func (s SchedulerConfig) ScheduleFor(name, def string) string {
	if spec, ok := s.Schedules[name]; ok && spec != "" {
		return spec
	}
	return def
}

// schedulerFile is the YAML layout of SCHEDULER_FILE:
//
//	concurrency: 4
//	min_streak: 5
//	jobs:
//	  daily_summary:
//	    schedule: "0 8 * * *"
//	  weekly_stats:
//	    enabled: false
type schedulerFile struct {
	Concurrency int                     `yaml:"concurrency"`
	MinStreak   int                     `yaml:"min_streak"`
	JobTimeout  string                  `yaml:"job_timeout"`
	Jobs        map[string]jobFileEntry `yaml:"jobs"`
}

type jobFileEntry struct {
	Schedule string `yaml:"schedule"`
	Enabled  *bool  `yaml:"enabled"`
}

func loadSchedulerConfig() (SchedulerConfig, error) {
	cfg := SchedulerConfig{
		Enabled:      getEnvBool("SCHEDULER_ENABLED", true),
		File:         getEnv("SCHEDULER_FILE", ""),
		TickInterval: getEnvDuration("SCHEDULER_TICK", time.Second),
		JobTimeout:   getEnvDuration("SCHEDULER_JOB_TIMEOUT", 10*time.Minute),
		Concurrency:  getEnvInt("SCHEDULER_CONCURRENCY", 8),
		MinStreak:    getEnvInt("SCHEDULER_MIN_STREAK", 3),
		Schedules:    make(map[string]string),
		Disabled:     make(map[string]bool),
	}
	for _, name := range strings.Split(getEnv("SCHEDULER_DISABLED_JOBS", ""), ",") {
		if name = strings.TrimSpace(name); name != "" {
			cfg.Disabled[name] = true
		}
	}

	if cfg.File == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(cfg.File)
	if err != nil {
		return cfg, fmt.Errorf("read %s: %w", cfg.File, err)
	}
	if err := cfg.apply(data); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", cfg.File, err)
	}
	return cfg, nil
}

// apply merges a YAML document over the environment settings.
func (s *SchedulerConfig) apply(data []byte) error {
	var file schedulerFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}

	if file.Concurrency > 0 {
		s.Concurrency = file.Concurrency
	}
	if file.MinStreak > 0 {
		s.MinStreak = file.MinStreak
	}
	if file.JobTimeout != "" {
		d, err := time.ParseDuration(file.JobTimeout)
		if err != nil {
			return fmt.Errorf("job_timeout: %w", err)
		}
		s.JobTimeout = d
	}
	for name, entry := range file.Jobs {
		if entry.Schedule != "" {
			s.Schedules[name] = entry.Schedule
		}
		if entry.Enabled != nil {
			s.Disabled[name] = !*entry.Enabled
		}
	}
	return nil
}
