// Package session persists the CLI's PomeloX login between runs.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// ErrNoSession is returned when no login has been saved.
var ErrNoSession = errors.New("not logged in, run the login command first")

// Session is the saved login of the CLI user.
type Session struct {
	Token    string    `json:"token"`
	UserID   string    `json:"userId"`
	UserName string    `json:"userName,omitempty"`
	BaseURL  string    `json:"baseUrl,omitempty"`
	SavedAt  time.Time `json:"savedAt"`

	// Scans are the most recent codes scanned from the shell, newest last.
	Scans []string `json:"scans,omitempty"`

	mu   sync.Mutex
	path string
}

// maxScans bounds the scan history kept in the session file.
const maxScans = 20

const sessionFile = "session.json"

// DefaultPath returns the session file under the user's config directory,
// falling back to the working directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return sessionFile
	}
	return filepath.Join(dir, "pomelox", sessionFile)
}

// Load reads the session at path. A missing file yields an empty session
// bound to path.
func Load(path string) (*Session, error) {
	s := &Session{path: path}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(s); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, nil
}

// LoggedIn reports whether a token is stored.
func (s *Session) LoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Token != ""
}

// RequireToken returns the stored token or ErrNoSession.
func (s *Session) RequireToken() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Token == "" {
		return "", ErrNoSession
	}
	return s.Token, nil
}

// SetLogin records a successful login.
func (s *Session) SetLogin(token, userID, userName, baseURL string, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token, s.UserID, s.UserName, s.BaseURL = token, userID, userName, baseURL
	s.SavedAt = now.UTC()
}

// AddScan appends code to the scan history, dropping the oldest entries.
func (s *Session) AddScan(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Scans = append(s.Scans, code)
	if n := len(s.Scans); n > maxScans {
		s.Scans = append([]string(nil), s.Scans[n-maxScans:]...)
	}
}

// Clear forgets the login and scan history.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Token, s.UserID, s.UserName = "", "", ""
	s.Scans = nil
	s.SavedAt = time.Time{}
}

// Save writes the session to its path with owner-only permissions.
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
