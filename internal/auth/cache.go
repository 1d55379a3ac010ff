package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// sessionCache persists the signed-in session across restarts.
// An empty path disables persistence.
type sessionCache struct {
	path string
}

func (c sessionCache) Load() (*Session, error) {
	if c.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session cache: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session cache: %w", err)
	}
	if s.User.Subject == "" {
		return nil, nil
	}
	return &s, nil
}

func (c sessionCache) Save(s *Session) error {
	if c.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session cache dir: %w", err)
	}

	// Write to a temp file and rename so a crash never leaves half a file.
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session cache: %w", err)
	}
	if err := os.Rename(tmp, c.path); err != nil {
		return fmt.Errorf("failed to rename session cache: %w", err)
	}
	return nil
}

func (c sessionCache) Clear() error {
	if c.path == "" {
		return nil
	}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session cache: %w", err)
	}
	return nil
}
