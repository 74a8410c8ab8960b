package task

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"vidrelay/app/model"
)

// ErrTaskExists 同一任务 ID 已在运行
var ErrTaskExists = errors.New("任务已存在")

type entry struct {
	mu     sync.Mutex
	task   model.Task
	sample atomic.Pointer[model.ProgressSample]
	cancel context.CancelFunc
}

// Registry 保存所有进行中任务的状态
type Registry struct {
	mu    sync.RWMutex
	tasks map[string]*entry
}

// NewRegistry 创建任务注册表
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]*entry)}
}

// Register 登记任务，cancel 在取消时调用
func (r *Registry) Register(t model.Task, cancel context.CancelFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[t.ID]; ok {
		return ErrTaskExists
	}
	e := &entry{task: t, cancel: cancel}
	sample := t.Progress
	e.sample.Store(&sample)
	r.tasks[t.ID] = e
	return nil
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.tasks[id]
	return e, ok
}

// UpdateProgress 写入最新进度；只替换采样槽，不加注册表写锁
func (r *Registry) UpdateProgress(id string, s model.ProgressSample) bool {
	e, ok := r.lookup(id)
	if !ok {
		return false
	}
	e.sample.Store(&s)
	return true
}

// SetPhase 更新任务阶段
func (r *Registry) SetPhase(id string, phase model.Phase) bool {
	return r.Update(id, func(t *model.Task) {
		t.Phase = phase
	})
}

// Update 在任务锁内修改任务字段
func (r *Registry) Update(id string, fn func(t *model.Task)) bool {
	e, ok := r.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	fn(&e.task)
	e.mu.Unlock()
	return true
}

// Get 返回任务副本
func (r *Registry) Get(id string) (model.Task, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return model.Task{}, false
	}
	return e.snapshot(), true
}

func (e *entry) snapshot() model.Task {
	e.mu.Lock()
	t := e.task
	e.mu.Unlock()
	if s := e.sample.Load(); s != nil {
		t.Progress = *s
	}
	return t
}

// Deregister 移除任务，重复调用返回 false
func (r *Registry) Deregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tasks[id]; !ok {
		return false
	}
	delete(r.tasks, id)
	return true
}

// Cancel 移除任务并触发其取消函数
func (r *Registry) Cancel(id string) bool {
	r.mu.Lock()
	e, ok := r.tasks[id]
	if ok {
		delete(r.tasks, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	if e.cancel != nil {
		e.cancel()
	}
	return true
}

// Len 任务数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tasks)
}

// IDs 所有任务 ID
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.tasks))
	for id := range r.tasks {
		ids = append(ids, id)
	}
	return ids
}

// List 按开始时间排序的任务副本
func (r *Registry) List() []model.Task {
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.tasks))
	for _, e := range r.tasks {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	list := make([]model.Task, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.snapshot())
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].StartedAt.Equal(list[j].StartedAt) {
			return list[i].ID < list[j].ID
		}
		return list[i].StartedAt.Before(list[j].StartedAt)
	})
	return list
}

// CountByUser 每个用户的任务数
func (r *Registry) CountByUser() map[int64]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[int64]int)
	for _, e := range r.tasks {
		e.mu.Lock()
		counts[e.task.UserID]++
		e.mu.Unlock()
	}
	return counts
}

// Owns 工作目录是否属于某个进行中的任务
func (r *Registry) Owns(workDir string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.tasks {
		e.mu.Lock()
		dir := e.task.WorkDir
		e.mu.Unlock()
		if dir == workDir {
			return true
		}
	}
	return false
}
