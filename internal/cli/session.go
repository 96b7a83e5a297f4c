package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"nifty-paper/internal/config"
)

// Session holds the persisted login state for the CLI.
type Session struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsAdmin   bool      `json:"is_admin"`
	SavedAt   time.Time `json:"saved_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

func sessionPath(configDir string) string {
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}
	return filepath.Join(configDir, "session.json")
}

// LoadSession reads the saved session, if any. A missing file returns nil
// without error.
func LoadSession(configDir string) (*Session, error) {
	data, err := os.ReadFile(sessionPath(configDir))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}
	if !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt) {
		return nil, nil
	}
	return &s, nil
}

// SaveSession persists the session with owner-only permissions.
func SaveSession(configDir string, s *Session) error {
	path := sessionPath(configDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	s.SavedAt = time.Now()
	if s.ExpiresAt.IsZero() {
		s.ExpiresAt = s.SavedAt.Add(24 * time.Hour)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	return nil
}

// ClearSession removes the saved session.
func ClearSession(configDir string) error {
	err := os.Remove(sessionPath(configDir))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
