package command

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/emilythestrangee/kaen/internal/models"
	"github.com/emilythestrangee/kaen/internal/thread"
)

// session is the signed in identity kept between invocations.
type session struct {
	APIURL      string `yaml:"api_url"`
	Token       string `yaml:"token"`
	UserID      int    `yaml:"user_id"`
	Username    string `yaml:"username"`
	DisplayName string `yaml:"display_name"`
	AvatarURL   string `yaml:"avatar_url,omitempty"`
}

func newSession(api, token string, user models.User) *session {
	return &session{
		APIURL:      api,
		Token:       token,
		UserID:      user.ID,
		Username:    user.Username,
		DisplayName: user.Name(),
		AvatarURL:   user.Avatar,
	}
}

func (s *session) viewer() *thread.Viewer {
	return &thread.Viewer{ID: s.UserID, DisplayName: s.DisplayName, AvatarURL: s.AvatarURL}
}

// sessionPath is $KAEN_SESSION or session.yaml in the user config dir.
func sessionPath() (string, error) {
	if p := os.Getenv("KAEN_SESSION"); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	return filepath.Join(dir, "kaen", "session.yaml"), nil
}

// loadSession returns nil when nobody is signed in.
func loadSession() (*session, error) {
	path, err := sessionPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var s session
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse session %s: %w", path, err)
	}
	if s.Token == "" || s.UserID <= 0 {
		return nil, nil
	}
	return &s, nil
}

func saveSession(s *session) error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

func deleteSession() error {
	path, err := sessionPath()
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
