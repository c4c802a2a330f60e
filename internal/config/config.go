// Package config loads the TOML configuration file that declares the
// scheduled tasks and process-level settings. Environment variables fill in
// the working directory and listen port when the file leaves them empty.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/volodyslav/volodyslav/internal/cronexpr"
	"github.com/volodyslav/volodyslav/internal/logger"
)

// TaskConfig declares one shell task on a cron schedule.
type TaskConfig struct {
	Name       string        `toml:"name" mapstructure:"name"`
	Schedule   string        `toml:"schedule" mapstructure:"schedule"`
	Command    string        `toml:"command" mapstructure:"command"`
	Args       []string      `toml:"args" mapstructure:"args"`
	WorkDir    string        `toml:"workdir" mapstructure:"workdir"`
	RetryDelay time.Duration `toml:"retry_delay" mapstructure:"retry_delay"`
}

// SchedulerConfig tunes the polling loop.
type SchedulerConfig struct {
	PollInterval time.Duration `toml:"poll_interval" mapstructure:"poll_interval"`
}

// ServerConfig configures the HTTP status endpoint.
type ServerConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	WorkDir     string          `toml:"workdir" mapstructure:"workdir"`
	Log         logger.Config   `toml:"log" mapstructure:"log"`
	Scheduler   SchedulerConfig `toml:"scheduler" mapstructure:"scheduler"`
	Server      ServerConfig    `toml:"server" mapstructure:"server"`
	HistoryDSNs []string        `toml:"history_dsns" mapstructure:"history_dsns"`
	Tasks       []TaskConfig    `toml:"tasks" mapstructure:"tasks"`
}

// Load reads and validates the TOML file at path.
func Load(path string) (*FileConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var fc FileConfig
	if err := v.Unmarshal(&fc); err != nil {
		return nil, err
	}
	if err := fc.Validate(); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Validate rejects configurations the scheduler would refuse at Initialize,
// so mistakes surface before anything is persisted.
func (fc *FileConfig) Validate() error {
	seen := make(map[string]struct{}, len(fc.Tasks))
	for i, task := range fc.Tasks {
		name := strings.TrimSpace(task.Name)
		if name == "" {
			return fmt.Errorf("task %d: name must not be empty", i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("task %q: duplicate name", name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(task.Command) == "" {
			return fmt.Errorf("task %q: command must not be empty", name)
		}
		if _, err := cronexpr.Parse(task.Schedule); err != nil {
			return fmt.Errorf("task %q: %w", name, err)
		}
		if task.RetryDelay < 0 {
			return fmt.Errorf("task %q: retry_delay must not be negative", name)
		}
	}
	if fc.Scheduler.PollInterval < 0 {
		return fmt.Errorf("scheduler.poll_interval must not be negative")
	}
	return nil
}
