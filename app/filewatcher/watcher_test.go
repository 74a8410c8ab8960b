package filewatcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidrelay/app/config"
	"vidrelay/app/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ownerSet struct {
	mu   sync.Mutex
	dirs map[string]bool
}

func (o *ownerSet) Owns(dir string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.dirs[dir]
}

func mkdirAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(path, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(path, "media.mp4"), []byte("x"), 0644))
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestSweepRemovesOnlyUnownedStaleDirs(t *testing.T) {
	dir := t.TempDir()
	owned := filepath.Join(dir, "owned")
	stale := filepath.Join(dir, "stale")
	fresh := filepath.Join(dir, "fresh")
	mkdirAged(t, owned, time.Hour)
	mkdirAged(t, stale, time.Hour)
	mkdirAged(t, fresh, 0)

	owner := &ownerSet{dirs: map[string]bool{owned: true}}
	j, err := NewJanitor(dir, config.JanitorConfig{Grace: 10 * time.Minute}, owner, logger.NewNop())
	require.NoError(t, err)

	assert.Equal(t, 1, j.Sweep())
	assert.DirExists(t, owned)
	assert.DirExists(t, fresh)
	assert.NoDirExists(t, stale)

	assert.Equal(t, 0, j.Sweep())
}

func TestJanitorTracksCreatedDirs(t *testing.T) {
	dir := t.TempDir()
	j, err := NewJanitor(dir, config.JanitorConfig{Grace: time.Hour, SweepSpec: "@every 1h"}, &ownerSet{}, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, j.Start())
	defer j.Stop()

	work := filepath.Join(dir, "new")
	require.NoError(t, os.Mkdir(work, 0755))
	require.Eventually(t, func() bool {
		j.mu.Lock()
		defer j.mu.Unlock()
		_, ok := j.seen[work]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	// 宽限期内不清理
	assert.Equal(t, 0, j.Sweep())
	assert.DirExists(t, work)
}

func TestJanitorRejectsBadSchedule(t *testing.T) {
	j, err := NewJanitor(t.TempDir(), config.JanitorConfig{SweepSpec: "not a spec"}, &ownerSet{}, logger.NewNop())
	require.NoError(t, err)
	assert.Error(t, j.Start())
	assert.Error(t, j.Schedule("bogus", func() {}))
}
