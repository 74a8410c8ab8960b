package task

import (
	"sync"
	"testing"
	"time"

	"vidrelay/app/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTask(user int64, url string) model.Task {
	key := model.TaskKey{UserID: user, ChatID: user, URL: url}
	return model.Task{
		ID:        key.ID(),
		UserID:    user,
		ChatID:    user,
		URL:       url,
		Phase:     model.PhaseFetching,
		StartedAt: time.Now(),
	}
}

func TestRegistryRegisterRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	tk := newTask(1, "https://a")

	require.NoError(t, r.Register(tk, nil))
	assert.ErrorIs(t, r.Register(tk, nil), ErrTaskExists)
	assert.Equal(t, 1, r.Len())
}

func TestRegistryDeregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	tk := newTask(1, "https://a")
	require.NoError(t, r.Register(tk, nil))

	assert.True(t, r.Deregister(tk.ID))
	assert.False(t, r.Deregister(tk.ID))

	_, ok := r.Get(tk.ID)
	assert.False(t, ok)
	assert.False(t, r.UpdateProgress(tk.ID, model.ProgressSample{Percent: 10}))
	assert.False(t, r.SetPhase(tk.ID, model.PhaseUploading))

	// 移除后可以重新登记
	require.NoError(t, r.Register(tk, nil))
}

func TestRegistryGetReturnsCopyWithLatestSample(t *testing.T) {
	r := NewRegistry()
	tk := newTask(1, "https://a")
	require.NoError(t, r.Register(tk, nil))

	r.UpdateProgress(tk.ID, model.ProgressSample{Percent: 55, Transferred: 550, Total: 1000})
	r.SetPhase(tk.ID, model.PhaseUploading)

	got, ok := r.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, 55.0, got.Progress.Percent)
	assert.Equal(t, model.PhaseUploading, got.Phase)

	got.Title = "mutated"
	again, _ := r.Get(tk.ID)
	assert.Empty(t, again.Title)
}

func TestRegistryCancelInvokesCancelFunc(t *testing.T) {
	r := NewRegistry()
	tk := newTask(1, "https://a")
	called := 0
	require.NoError(t, r.Register(tk, func() { called++ }))

	assert.True(t, r.Cancel(tk.ID))
	assert.False(t, r.Cancel(tk.ID))
	assert.Equal(t, 1, called)
	_, ok := r.Get(tk.ID)
	assert.False(t, ok)
}

func TestRegistryConcurrentProgress(t *testing.T) {
	r := NewRegistry()
	tk := newTask(1, "https://a")
	require.NoError(t, r.Register(tk, nil))

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i <= 100; i++ {
				r.UpdateProgress(tk.ID, model.ProgressSample{Percent: float64(i)})
				_, _ = r.Get(tk.ID)
			}
		}()
	}
	wg.Wait()

	got, ok := r.Get(tk.ID)
	require.True(t, ok)
	assert.Equal(t, 100.0, got.Progress.Percent)
}

func TestRegistryQueries(t *testing.T) {
	r := NewRegistry()
	a := newTask(1, "https://a")
	a.WorkDir = "/tmp/a"
	b := newTask(1, "https://b")
	b.StartedAt = a.StartedAt.Add(time.Second)
	c := newTask(2, "https://c")
	c.StartedAt = a.StartedAt.Add(2 * time.Second)
	for _, tk := range []model.Task{c, a, b} {
		require.NoError(t, r.Register(tk, nil))
	}

	assert.ElementsMatch(t, []string{a.ID, b.ID, c.ID}, r.IDs())
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, r.CountByUser())
	assert.True(t, r.Owns("/tmp/a"))
	assert.False(t, r.Owns("/tmp/z"))

	list := r.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{a.ID, b.ID, c.ID}, []string{list[0].ID, list[1].ID, list[2].ID})
}
