package updater

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileTargetCommitAndRollback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "atod")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o755))
	target := NewFileTarget(path, 0o755)

	sink, err := target.Begin(2)
	require.NoError(t, err)
	_, err = sink.Write([]byte("v2"))
	require.NoError(t, err)

	got, _ := os.ReadFile(path)
	assert.Equal(t, "v1", string(got), "nothing visible before commit")

	require.NoError(t, sink.Commit())
	got, _ = os.ReadFile(path)
	assert.Equal(t, "v2", string(got))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o755), info.Mode().Perm())

	require.NoError(t, target.Rollback())
	got, _ = os.ReadFile(path)
	assert.Equal(t, "v1", string(got))
	_, err = os.Stat(path + PreviousSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestFileTargetFirstInstall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "content.zip")
	target := NewFileTarget(path, 0o644)

	sink, err := target.Begin(-1)
	require.NoError(t, err)
	_, _ = sink.Write([]byte("ui"))
	require.NoError(t, sink.Commit())

	got, _ := os.ReadFile(path)
	assert.Equal(t, "ui", string(got))
	assert.Error(t, target.Rollback(), "no previous image on first install")
}

func TestFileTargetAbort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "atod")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o755))

	sink, err := NewFileTarget(path, 0o755).Begin(0)
	require.NoError(t, err)
	_, _ = sink.Write([]byte("partial"))
	require.NoError(t, sink.Abort())

	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
	got, _ := os.ReadFile(path)
	assert.Equal(t, "v1", string(got))
}

func TestSpoolClean(t *testing.T) {
	s := NewSpool(filepath.Join(t.TempDir(), "spool"))
	f, err := s.Create()
	require.NoError(t, err)
	_, _ = f.Write([]byte("leftover"))

	require.NoError(t, s.Clean())
	left, _ := filepath.Glob(filepath.Join(s.Dir(), "*"))
	assert.Empty(t, left)
}

func TestTask(t *testing.T) {
	release := make(chan struct{})
	task := Go(KindFirmware, "1.0.1", "http://x", time.Now(), func() error {
		<-release
		return ErrNetwork
	})
	assert.False(t, task.Finished())
	assert.NoError(t, task.Err())

	close(release)
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("task did not finish")
	}
	assert.ErrorIs(t, task.Err(), ErrNetwork)
}

func TestTaskRecoversPanic(t *testing.T) {
	task := Go(KindContent, "7", "http://x", time.Now(), func() error { panic("boom") })
	<-task.Done()
	assert.ErrorContains(t, task.Err(), "boom")
}

func TestFileTargetCommitSurvivesDirSyncFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "content.zip")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o644))
	target := NewFileTarget(path, 0o644)
	var synced []string
	target.syncDir = func(dir string) error {
		synced = append(synced, dir)
		return errors.New("input/output error")
	}

	sink, err := target.Begin(2)
	require.NoError(t, err)
	_, err = sink.Write([]byte("v2"))
	require.NoError(t, err)

	require.NoError(t, sink.Commit(), "the rename already activated the image")
	assert.Equal(t, []string{filepath.Dir(path)}, synced)
	got, _ := os.ReadFile(path)
	assert.Equal(t, "v2", string(got))
	prev, _ := os.ReadFile(path + PreviousSuffix)
	assert.Equal(t, "v1", string(prev))
}
