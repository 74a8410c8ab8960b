package handler

import (
	"net/http"

	"vidrelay/app/model"
	"vidrelay/app/service"
	"vidrelay/app/task"

	"github.com/gin-gonic/gin"
)

// TaskHandler 下载任务处理器
type TaskHandler struct {
	registry  *task.Registry
	gate      *task.Gate
	canceller *service.Canceller
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(registry *task.Registry, gate *task.Gate, canceller *service.Canceller) *TaskHandler {
	return &TaskHandler{
		registry:  registry,
		gate:      gate,
		canceller: canceller,
	}
}

// TaskView 任务列表条目
type TaskView struct {
	model.Task
	Token     string `json:"token"`
	Waiting   bool   `json:"waiting"`
	HoldsSlot bool   `json:"holds_slot"`
}

// ListTasks 列出进行中与排队的任务
func (h *TaskHandler) ListTasks(c *gin.Context) {
	tasks := h.registry.List()
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, TaskView{
			Task:      t,
			Token:     task.ShortToken(t.ID),
			Waiting:   t.Phase.IsWaiting(),
			HoldsSlot: h.gate.IsActive(t.ID),
		})
	}

	queued := h.gate.QueuedIDs()
	tokens := make([]string, 0, len(queued))
	for _, id := range queued {
		tokens = append(tokens, task.ShortToken(id))
	}

	success(c, gin.H{
		"active": views,
		"queued": tokens,
	}, "success")
}

// CancelTask 按短令牌取消任务
func (h *TaskHandler) CancelTask(c *gin.Context) {
	res := h.canceller.Cancel(c.Param("token"))
	if !res.Found {
		fail(c, http.StatusNotFound, "任务不存在")
		return
	}
	success(c, gin.H{"task_id": res.TaskID}, "已取消")
}
