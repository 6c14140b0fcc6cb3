package repository

import (
	"errors"
	"path/filepath"
	"testing"
)

func newTestSettings(t *testing.T) (*BoltSettings, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.db")
	s, err := OpenSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestSettings_GetMissing(t *testing.T) {
	s, _ := newTestSettings(t)

	_, err := s.Get("device_config")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSettings_PutGetOverwrite(t *testing.T) {
	s, _ := newTestSettings(t)

	if err := s.Put("content_version", []byte("1.0.0")); err != nil {
		t.Fatal(err)
	}
	if err := s.Put("content_version", []byte("1.0.1")); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get("content_version")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "1.0.1" {
		t.Errorf("value = %q, want 1.0.1", got)
	}
}

func TestSettings_SurvivesReopen(t *testing.T) {
	s, path := newTestSettings(t)

	if err := s.Put("device_config", []byte(`{"valid":true}`)); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := OpenSettings(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.Get("device_config")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != `{"valid":true}` {
		t.Errorf("value = %s", got)
	}
}
