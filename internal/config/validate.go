package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateCalendar(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir is required")
	}
	if c.Paths.LogDir == "" {
		return errors.New("paths.log_dir is required")
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.MaxRetries < 0 {
		return fmt.Errorf("queue.max_retries must not be negative, got %d", c.Queue.MaxRetries)
	}
	if c.Queue.InitialBackoffMS <= 0 {
		return fmt.Errorf("queue.initial_backoff_ms must be positive, got %d", c.Queue.InitialBackoffMS)
	}
	if c.Queue.BackoffMultiplier < 1 {
		return fmt.Errorf("queue.backoff_multiplier must be at least 1, got %d", c.Queue.BackoffMultiplier)
	}
	if c.Queue.PollInterval <= 0 {
		return fmt.Errorf("queue.poll_interval must be positive, got %d", c.Queue.PollInterval)
	}
	if c.Queue.TempSweepInterval <= 0 {
		return fmt.Errorf("queue.temp_sweep_interval must be positive, got %d", c.Queue.TempSweepInterval)
	}
	if c.Queue.TempSweepAge < 0 {
		return fmt.Errorf("queue.temp_sweep_age must not be negative, got %d", c.Queue.TempSweepAge)
	}
	return nil
}

func (c *Config) validateCalendar() error {
	switch c.Calendar.Mode {
	case CalendarModeAuto, CalendarModeSuggest:
	default:
		return fmt.Errorf("calendar.mode: unsupported value %q", c.Calendar.Mode)
	}
	if c.Calendar.Enabled && c.Calendar.BaseURL == "" {
		return errors.New("calendar.base_url is required when calendar sync is enabled")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
