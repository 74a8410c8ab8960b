package task

import (
	"context"
	"sync"
)

// Ticket 一次准入申请
type Ticket struct {
	id     string
	userID int64
	ready  chan struct{}
	once   sync.Once
}

func newTicket(id string, userID int64) *Ticket {
	return &Ticket{id: id, userID: userID, ready: make(chan struct{})}
}

func (t *Ticket) grant() {
	t.once.Do(func() { close(t.ready) })
}

// ID 任务 ID
func (t *Ticket) ID() string {
	return t.id
}

// Ready 获得槽位后关闭
func (t *Ticket) Ready() <-chan struct{} {
	return t.ready
}

// Wait 阻塞直到获得槽位或 ctx 结束
func (t *Ticket) Wait(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Gate 并发准入控制，等待者按先进先出获得槽位
type Gate struct {
	mu         sync.Mutex
	limit      int
	perUser    int // 0 表示不限制
	active     map[string]int64
	userActive map[int64]int
	queue      []*Ticket
}

// NewGate 创建准入控制
func NewGate(limit, perUser int) *Gate {
	if limit < 1 {
		limit = 1
	}
	if perUser < 0 {
		perUser = 0
	}
	return &Gate{
		limit:      limit,
		perUser:    perUser,
		active:     make(map[string]int64),
		userActive: make(map[int64]int),
	}
}

func (g *Gate) eligible(userID int64) bool {
	if len(g.active) >= g.limit {
		return false
	}
	return g.perUser == 0 || g.userActive[userID] < g.perUser
}

func (g *Gate) activate(t *Ticket) {
	g.active[t.id] = t.userID
	g.userActive[t.userID]++
	t.grant()
}

// Admit 申请槽位；未获准时返回排队中的 Ticket
func (g *Gate) Admit(taskID string, userID int64) (*Ticket, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.active[taskID]; ok {
		t := newTicket(taskID, userID)
		t.grant()
		return t, true
	}
	for _, t := range g.queue {
		if t.id == taskID {
			return t, false
		}
	}

	t := newTicket(taskID, userID)
	if g.eligible(userID) {
		g.activate(t)
		return t, true
	}
	g.queue = append(g.queue, t)
	return t, false
}

// Release 释放槽位并唤醒排队者，重复调用返回 false
func (g *Gate) Release(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.release(taskID)
}

func (g *Gate) release(taskID string) bool {
	userID, ok := g.active[taskID]
	if !ok {
		return false
	}
	delete(g.active, taskID)
	if g.userActive[userID]--; g.userActive[userID] <= 0 {
		delete(g.userActive, userID)
	}
	g.promote()
	return true
}

// promote 按排队顺序放行可运行的等待者
func (g *Gate) promote() {
	for len(g.active) < g.limit {
		idx := -1
		for i, t := range g.queue {
			if g.eligible(t.userID) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return
		}
		t := g.queue[idx]
		g.queue = append(g.queue[:idx], g.queue[idx+1:]...)
		g.activate(t)
	}
}

// Withdraw 撤回排队申请；若已被放行则释放槽位
func (g *Gate) Withdraw(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, t := range g.queue {
		if t.id == taskID {
			g.queue = append(g.queue[:i], g.queue[i+1:]...)
			return true
		}
	}
	return g.release(taskID)
}

// SetLimit 调整全局上限，调大时立即放行等待者
func (g *Gate) SetLimit(n int) {
	if n < 1 {
		n = 1
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.limit = n
	g.promote()
}

// Limit 当前全局上限
func (g *Gate) Limit() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.limit
}

// ActiveCount 占用槽位的任务数
func (g *Gate) ActiveCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.active)
}

// IsActive 任务是否持有槽位
func (g *Gate) IsActive(taskID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.active[taskID]
	return ok
}

// QueuedIDs 排队中的任务 ID，按先后顺序
func (g *Gate) QueuedIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, len(g.queue))
	for i, t := range g.queue {
		ids[i] = t.id
	}
	return ids
}

// Position 排队位置，从 1 开始；未排队返回 0
func (g *Gate) Position(taskID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, t := range g.queue {
		if t.id == taskID {
			return i + 1
		}
	}
	return 0
}
