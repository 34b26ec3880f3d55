package session

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestLoad_FileNotExist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.LoggedIn() {
		t.Error("expected empty session")
	}
	if _, err := s.RequireToken(); !errors.Is(err, ErrNoSession) {
		t.Errorf("RequireToken error = %v; want ErrNoSession", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 9, 11, 10, 0, 0, 0, time.UTC)
	s.SetLogin("tok", "42", "wangwu", "https://api.example", now)
	s.AddScan("VG_ACTIVITY_1")
	if err := s.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file mode = %o; want 600", perm)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	token, err := loaded.RequireToken()
	if err != nil || token != "tok" {
		t.Errorf("token = %q, %v", token, err)
	}
	if loaded.UserID != "42" || loaded.BaseURL != "https://api.example" || !loaded.SavedAt.Equal(now) {
		t.Errorf("unexpected session: %+v", loaded)
	}
	if len(loaded.Scans) != 1 || loaded.Scans[0] != "VG_ACTIVITY_1" {
		t.Errorf("scans = %v", loaded.Scans)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected decode error")
	}
}

func TestAddScan_KeepsNewest(t *testing.T) {
	s := &Session{}
	for i := 0; i < maxScans+5; i++ {
		s.AddScan(strconv.Itoa(i))
	}
	if len(s.Scans) != maxScans {
		t.Fatalf("len = %d; want %d", len(s.Scans), maxScans)
	}
	if s.Scans[0] != "5" || s.Scans[maxScans-1] != strconv.Itoa(maxScans+4) {
		t.Errorf("unexpected history %v", s.Scans)
	}
}

func TestClear(t *testing.T) {
	s := &Session{}
	s.SetLogin("tok", "1", "u", "", time.Now())
	s.AddScan("x")
	s.Clear()
	if s.LoggedIn() || len(s.Scans) != 0 {
		t.Errorf("expected cleared session: %+v", s)
	}
}

func TestPrompter_Credentials(t *testing.T) {
	var out bytes.Buffer
	p := NewPrompter(strings.NewReader("  alice@example.edu \nsecret\n"), &out)
	user, pass, err := p.Credentials()
	if err != nil {
		t.Fatalf("Credentials failed: %v", err)
	}
	if user != "alice@example.edu" || pass != "secret" {
		t.Errorf("got %q / %q", user, pass)
	}
	if !strings.Contains(out.String(), "Password: ") {
		t.Errorf("prompts = %q", out.String())
	}
}

func TestPrompter_Errors(t *testing.T) {
	p := NewPrompter(strings.NewReader("\n"), io.Discard)
	if _, err := p.Require("Code: "); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("blank answer error = %v; want ErrEmptyInput", err)
	}
	if _, err := p.Ask("Again: "); !errors.Is(err, io.EOF) {
		t.Errorf("exhausted input error = %v; want io.EOF", err)
	}
}
