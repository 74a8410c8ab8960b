package task

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateAdmitsUpToLimit(t *testing.T) {
	g := NewGate(2, 0)

	_, ok := g.Admit("a", 1)
	assert.True(t, ok)
	_, ok = g.Admit("b", 2)
	assert.True(t, ok)
	tc, ok := g.Admit("c", 3)
	assert.False(t, ok)
	assert.Equal(t, 1, g.Position("c"))
	assert.Equal(t, 2, g.ActiveCount())

	select {
	case <-tc.Ready():
		t.Fatal("queued ticket must not be ready")
	default:
	}
}

func TestGateReleasePromotesFIFO(t *testing.T) {
	g := NewGate(1, 0)
	_, ok := g.Admit("a", 1)
	require.True(t, ok)
	tb, _ := g.Admit("b", 2)
	tc, _ := g.Admit("c", 3)
	assert.Equal(t, []string{"b", "c"}, g.QueuedIDs())

	assert.True(t, g.Release("a"))
	require.NoError(t, tb.Wait(context.Background()))
	assert.True(t, g.IsActive("b"))
	assert.Equal(t, 1, g.Position("c"))

	assert.True(t, g.Release("b"))
	require.NoError(t, tc.Wait(context.Background()))
	assert.Empty(t, g.QueuedIDs())
}

func TestGateReleaseIsIdempotent(t *testing.T) {
	g := NewGate(1, 0)
	g.Admit("a", 1)
	g.Admit("b", 2)

	assert.True(t, g.Release("a"))
	assert.False(t, g.Release("a"))
	// 第二次释放不能把 b 的槽位让给别人
	_, ok := g.Admit("c", 3)
	assert.False(t, ok)
	assert.Equal(t, 1, g.ActiveCount())
}

func TestGateReadmitActive(t *testing.T) {
	g := NewGate(1, 0)
	g.Admit("a", 1)
	tk, ok := g.Admit("a", 1)
	assert.True(t, ok)
	require.NoError(t, tk.Wait(context.Background()))
	assert.Equal(t, 1, g.ActiveCount())
}

func TestGatePerUserLimit(t *testing.T) {
	g := NewGate(3, 1)
	_, ok := g.Admit("u1-a", 1)
	require.True(t, ok)
	_, ok = g.Admit("u1-b", 1)
	assert.False(t, ok)
	// 其他用户不受影响
	_, ok = g.Admit("u2-a", 2)
	assert.True(t, ok)

	g.Release("u1-a")
	assert.True(t, g.IsActive("u1-b"))
}

func TestGateWithdraw(t *testing.T) {
	g := NewGate(1, 0)
	g.Admit("a", 1)
	tb, _ := g.Admit("b", 2)
	tc, _ := g.Admit("c", 3)

	assert.True(t, g.Withdraw("b"))
	assert.Equal(t, []string{"c"}, g.QueuedIDs())

	g.Release("a")
	require.NoError(t, tc.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, tb.Wait(ctx), context.DeadlineExceeded)

	// 已放行的撤回等同释放
	assert.True(t, g.Withdraw("c"))
	assert.Equal(t, 0, g.ActiveCount())
	assert.False(t, g.Withdraw("c"))
}

func TestGateSetLimitPromotes(t *testing.T) {
	g := NewGate(1, 0)
	g.Admit("a", 1)
	tb, _ := g.Admit("b", 2)

	g.SetLimit(2)
	require.NoError(t, tb.Wait(context.Background()))
	assert.Equal(t, 2, g.Limit())

	g.SetLimit(0)
	assert.Equal(t, 1, g.Limit())
}

func TestGateNeverExceedsLimit(t *testing.T) {
	const limit = 3
	g := NewGate(limit, 0)

	var running, peak int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("task-%d", i)
			tk, _ := g.Admit(id, int64(i))
			assert.NoError(t, tk.Wait(context.Background()))

			n := atomic.AddInt64(&running, 1)
			for {
				p := atomic.LoadInt64(&peak)
				if n <= p || atomic.CompareAndSwapInt64(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt64(&running, -1)
			g.Release(id)
		}(i)
	}
	wg.Wait()

	assert.LessOrEqual(t, peak, int64(limit))
	assert.Equal(t, 0, g.ActiveCount())
	assert.Empty(t, g.QueuedIDs())
}
