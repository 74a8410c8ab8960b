package service

import (
	"vidrelay/app/logger"
	"vidrelay/app/task"
)

// CancelResult 取消结果
type CancelResult struct {
	Found  bool
	TaskID string
	// Denied 任务存在但不属于发起取消的用户
	Denied bool
}

// Canceller 按短令牌取消任务
type Canceller struct {
	registry *task.Registry
	gate     *task.Gate
	pipeline *Pipeline
	logger   *logger.Logger
}

// NewCanceller 创建取消控制器
func NewCanceller(registry *task.Registry, gate *task.Gate, pipeline *Pipeline, log *logger.Logger) *Canceller {
	return &Canceller{
		registry: registry,
		gate:     gate,
		pipeline: pipeline,
		logger:   log,
	}
}

// Cancel 在已登记和排队的任务中查找令牌并取消，找不到时不做任何修改
func (c *Canceller) Cancel(token string) CancelResult {
	id, ok := c.resolve(token)
	if !ok {
		return CancelResult{}
	}
	return c.abort(id)
}

// CancelAs 以用户身份取消，只能取消自己的任务，管理员不受限制
func (c *Canceller) CancelAs(token string, userID int64, admin bool) CancelResult {
	id, ok := c.resolve(token)
	if !ok {
		return CancelResult{}
	}
	if !admin {
		owner, ok := c.pipeline.Owner(id)
		if !ok {
			return CancelResult{}
		}
		if owner != userID {
			c.logger.Warnf("拒绝取消他人任务: %d, %s", userID, id)
			return CancelResult{TaskID: id, Denied: true}
		}
	}
	return c.abort(id)
}

func (c *Canceller) resolve(token string) (string, bool) {
	ids := append(c.registry.IDs(), c.gate.QueuedIDs()...)
	id, ok := task.Resolve(token, ids)
	if !ok {
		c.logger.Debugf("没有可取消的任务: %s", token)
	}
	return id, ok
}

func (c *Canceller) abort(id string) CancelResult {
	if !c.pipeline.Abort(id) {
		return CancelResult{}
	}
	c.logger.Infof("取消任务: %s", id)
	return CancelResult{Found: true, TaskID: id}
}
