package task

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"vidrelay/app/model"

	"github.com/patrickmn/go-cache"
)

// Purpose 等待用户输入的用途
type Purpose string

const (
	PurposeQuality   Purpose = "quality"
	PurposeTitle     Purpose = "title"
	PurposeRename    Purpose = "rename"
	PurposeThumbnail Purpose = "thumbnail"
)

// ContinuationKey 按 (用户, 会话, 用途) 定位挂起的任务，Ref 区分同一用途的多个任务
type ContinuationKey struct {
	UserID  int64
	ChatID  int64
	Purpose Purpose
	Ref     string
}

func (k ContinuationKey) String() string {
	if k.Ref != "" {
		return fmt.Sprintf("%d:%d:%s:%s", k.UserID, k.ChatID, k.Purpose, k.Ref)
	}
	return fmt.Sprintf("%d:%d:%s", k.UserID, k.ChatID, k.Purpose)
}

// Continuation 挂起任务的恢复记录
type Continuation struct {
	Key       ContinuationKey
	TaskID    string
	Resume    model.Phase // 恢复后进入的阶段
	Options   []string    // 可选项，如清晰度标签
	Context   any         // 恢复所需的上下文
	CreatedAt time.Time

	taken atomic.Bool
}

// ContinuationStore 挂起记录存储，超时的记录交给 onExpire 处理
type ContinuationStore struct {
	mu       sync.Mutex
	items    *cache.Cache
	onExpire func(*Continuation)
}

// NewContinuationStore 创建存储，ttl 为等待用户输入的最长时间
func NewContinuationStore(ttl time.Duration, onExpire func(*Continuation)) *ContinuationStore {
	cleanup := ttl / 2
	if cleanup <= 0 || cleanup > time.Minute {
		cleanup = time.Minute
	}
	s := &ContinuationStore{
		items:    cache.New(ttl, cleanup),
		onExpire: onExpire,
	}
	s.items.OnEvicted(func(_ string, v interface{}) {
		c, ok := v.(*Continuation)
		if !ok || !c.taken.CompareAndSwap(false, true) {
			return
		}
		if s.onExpire != nil {
			s.onExpire(c)
		}
	})
	return s
}

// Put 保存挂起记录，返回被替换的旧记录
func (s *ContinuationStore) Put(c *Continuation) *Continuation {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	// 已过期但未清理的记录先走过期回调，避免被静默覆盖
	s.items.DeleteExpired()

	key := c.Key.String()
	var displaced *Continuation
	if v, ok := s.items.Get(key); ok {
		if old := v.(*Continuation); old.taken.CompareAndSwap(false, true) {
			displaced = old
		}
	}
	s.items.SetDefault(key, c)
	return displaced
}

// Take 取出并删除挂起记录
func (s *ContinuationStore) Take(key ContinuationKey) (*Continuation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.items.Get(key.String())
	if !ok {
		return nil, false
	}
	c := v.(*Continuation)
	if !c.taken.CompareAndSwap(false, true) {
		return nil, false
	}
	s.items.Delete(key.String())
	return c, true
}

// TakeTask 取出属于指定任务的挂起记录
func (s *ContinuationStore) TakeTask(taskID string) (*Continuation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, item := range s.items.Items() {
		c := item.Object.(*Continuation)
		if c.TaskID != taskID {
			continue
		}
		if !c.taken.CompareAndSwap(false, true) {
			return nil, false
		}
		s.items.Delete(key)
		return c, true
	}
	return nil, false
}

// Peek 查看挂起记录但不取出
func (s *ContinuationStore) Peek(key ContinuationKey) (*Continuation, bool) {
	v, ok := s.items.Get(key.String())
	if !ok {
		return nil, false
	}
	return v.(*Continuation), true
}

// Pending 当前一个用户在某会话中的挂起用途，按 Ref 区分的记录也计入
func (s *ContinuationStore) Pending(userID, chatID int64) []Purpose {
	seen := make(map[Purpose]bool)
	for _, item := range s.items.Items() {
		c, ok := item.Object.(*Continuation)
		if !ok || c.Key.UserID != userID || c.Key.ChatID != chatID {
			continue
		}
		seen[c.Key.Purpose] = true
	}
	var purposes []Purpose
	for _, p := range []Purpose{PurposeQuality, PurposeTitle, PurposeRename, PurposeThumbnail} {
		if seen[p] {
			purposes = append(purposes, p)
		}
	}
	return purposes
}

// Flush 取出全部挂起记录，关闭时使用
func (s *ContinuationStore) Flush() []*Continuation {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Continuation
	for key, item := range s.items.Items() {
		c := item.Object.(*Continuation)
		if c.taken.CompareAndSwap(false, true) {
			out = append(out, c)
		}
		s.items.Delete(key)
	}
	return out
}

// Len 挂起记录数量
func (s *ContinuationStore) Len() int {
	return s.items.ItemCount()
}
