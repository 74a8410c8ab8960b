package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"vidrelay/app/logger"
	"vidrelay/app/model"
	"vidrelay/app/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressBar(t *testing.T) {
	tests := []struct {
		percent float64
		want    string
	}{
		{0, "░░░░░░░░░░"},
		{60, "██████░░░░"},
		{65.9, "██████░░░░"},
		{100, "██████████"},
		{150, "██████████"},
		{-3, "░░░░░░░░░░"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ProgressBar(tt.percent, 10), "percent %.1f", tt.percent)
	}
	assert.Empty(t, ProgressBar(50, 0))
}

func TestRenderProgress(t *testing.T) {
	text := RenderProgress("en", model.PhaseFetching, model.ProgressSample{
		Percent:     60,
		Transferred: 60 << 20,
		Total:       100 << 20,
		Speed:       2 << 20,
		ETA:         20 * time.Second,
	})
	assert.Contains(t, text, "Downloading")
	assert.Contains(t, text, "[██████░░░░] 60.0%")
	assert.Contains(t, text, "60.0 MiB of 100.0 MiB")
	assert.Contains(t, text, "2.0 MiB/s")
	assert.Contains(t, text, "20s")

	unknown := RenderProgress("en", model.PhaseUploading, model.ProgressSample{})
	assert.Contains(t, unknown, "0 B of ?")
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KiB", FormatBytes(1536))
	assert.Equal(t, "2.0 GiB", FormatBytes(2<<30))
}

func newWatchedTask(t *testing.T, r *task.Registry, phase model.Phase) string {
	t.Helper()
	key := model.TaskKey{UserID: 1, ChatID: 1, URL: "https://youtube.com/watch?v=x"}
	require.NoError(t, r.Register(model.Task{
		ID:              key.ID(),
		UserID:          1,
		ChatID:          1,
		Phase:           phase,
		StatusMessageID: 42,
		Language:        "en",
		StartedAt:       time.Now(),
	}, nil))
	return key.ID()
}

func TestReporterEditsUntilDeregistered(t *testing.T) {
	r := task.NewRegistry()
	m := &fakeMessenger{}
	id := newWatchedTask(t, r, model.PhaseFetching)
	r.UpdateProgress(id, model.ProgressSample{Percent: 30, Transferred: 3, Total: 10})

	rep := NewReporter(r, m, 10*time.Millisecond, logger.NewNop())
	stop := rep.Watch(context.Background(), id)
	defer stop()

	require.Eventually(t, func() bool {
		return len(m.editsFor(42)) > 0
	}, time.Second, 5*time.Millisecond)
	e := m.lastEdit(42)
	assert.Contains(t, e.text, "30.0%")
	require.Len(t, e.kb, 1)
	assert.Equal(t, CallbackCancel+task.ShortToken(id), e.kb[0][0].Data)

	// 内容不变时不重复编辑
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, m.editsFor(42), 1)

	r.Deregister(id)
	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reporter did not stop")
	}
}

func TestReporterSkipsWaitingPhases(t *testing.T) {
	r := task.NewRegistry()
	m := &fakeMessenger{}
	id := newWatchedTask(t, r, model.PhaseAwaitingQuality)

	stop := NewReporter(r, m, 10*time.Millisecond, logger.NewNop()).Watch(context.Background(), id)
	defer stop()

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, m.editsFor(42))

	r.SetPhase(id, model.PhasePostProcessing)
	require.Eventually(t, func() bool {
		return len(m.editsFor(42)) > 0
	}, time.Second, 5*time.Millisecond)
	assert.True(t, strings.HasPrefix(m.lastEdit(42).text, "⚙️ Processing"))
}

func TestReporterStopsWhenMessageGone(t *testing.T) {
	r := task.NewRegistry()
	calls := make(chan struct{}, 16)
	m := &fakeMessenger{editErr: func(int) error {
		calls <- struct{}{}
		return ErrMessageGone
	}}
	id := newWatchedTask(t, r, model.PhaseFetching)

	rep := NewReporter(r, m, 10*time.Millisecond, logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	finished := make(chan struct{})
	go func() {
		rep.loop(ctx, id)
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("loop kept running after message was deleted")
	}
	assert.Len(t, calls, 1)
	_, ok := r.Get(id)
	assert.True(t, ok, "task itself is left alone")
}
