package model

import (
	"fmt"
	"time"
)

// Phase 任务阶段
type Phase string

const (
	PhaseQueued          Phase = "queued"
	PhaseFetching        Phase = "fetching"
	PhaseAwaitingQuality Phase = "awaiting_quality"
	PhaseAwaitingTitle   Phase = "awaiting_title"
	PhaseAwaitingRename  Phase = "awaiting_rename"
	PhasePostProcessing  Phase = "post_processing"
	PhaseUploading       Phase = "uploading"
	PhaseDone            Phase = "done"
	PhaseFailed          Phase = "failed"
	PhaseCancelled       Phase = "cancelled"
)

// IsTerminal 是否为终止阶段
func (p Phase) IsTerminal() bool {
	return p == PhaseDone || p == PhaseFailed || p == PhaseCancelled
}

// IsActive 是否占用并发槽位
func (p Phase) IsActive() bool {
	return p == PhaseFetching || p == PhasePostProcessing || p == PhaseUploading
}

// IsWaiting 是否在等待用户输入
func (p Phase) IsWaiting() bool {
	return p == PhaseAwaitingQuality || p == PhaseAwaitingTitle || p == PhaseAwaitingRename
}

// ProgressSample 进度采样
type ProgressSample struct {
	Percent     float64       `json:"percent"`
	Transferred int64         `json:"transferred"`
	Total       int64         `json:"total"` // 未知时为 0
	Speed       float64       `json:"speed"` // 字节/秒
	ETA         time.Duration `json:"eta"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// TaskKey 任务唯一标识的组成部分
type TaskKey struct {
	UserID int64
	ChatID int64
	URL    string
}

// ID 生成稳定的任务 ID
func (k TaskKey) ID() string {
	return fmt.Sprintf("%d_%d_%s", k.UserID, k.ChatID, k.URL)
}

// Task 内存中的任务状态
type Task struct {
	ID              string         `json:"id"`
	UserID          int64          `json:"user_id"`
	ChatID          int64          `json:"chat_id"`
	URL             string         `json:"url"`
	Quality         string         `json:"quality"`         // 用户选择的清晰度，如 720p
	FormatSelector  string         `json:"format_selector"` // 传给提取工具的格式
	AudioOnly       bool           `json:"audio_only"`
	Phase           Phase          `json:"phase"`
	Progress        ProgressSample `json:"progress"`
	StartedAt       time.Time      `json:"started_at"`
	StatusMessageID int            `json:"status_message_id"`
	Language        string         `json:"language"`
	Title           string         `json:"title"`
	WorkDir         string         `json:"work_dir"`
}

// Elapsed 任务已运行时长
func (t *Task) Elapsed() time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	return time.Since(t.StartedAt)
}
