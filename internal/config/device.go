package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// EnsureDeviceID returns the stable device identifier sent with classify
// requests. When the config does not set one, a generated identifier is
// persisted under the data directory and reused across restarts.
func (c *Config) EnsureDeviceID() (string, error) {
	if c.Classifier.DeviceID != "" {
		return c.Classifier.DeviceID, nil
	}

	if err := c.EnsureDirectories(); err != nil {
		return "", err
	}
	idPath := filepath.Join(c.Paths.DataDir, "device_id")

	raw, err := os.ReadFile(idPath)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if id != "" {
			c.Classifier.DeviceID = id
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("read device id: %w", err)
	}

	id := uuid.NewString()
	if err := os.WriteFile(idPath, []byte(id+"\n"), 0o644); err != nil {
		return "", fmt.Errorf("persist device id: %w", err)
	}
	c.Classifier.DeviceID = id
	return id, nil
}
