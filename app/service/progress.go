package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"vidrelay/app/i18n"
	"vidrelay/app/logger"
	"vidrelay/app/model"
	"vidrelay/app/task"
)

// 进度条宽度
const barWidth = 10

// 回调数据前缀
const (
	CallbackCancel  = "cancel:"
	CallbackQuality = "q:"
)

// Reporter 定时把任务进度刷新到状态消息
type Reporter struct {
	registry  *task.Registry
	messenger Messenger
	interval  time.Duration
	logger    *logger.Logger
}

// NewReporter 创建进度播报器
func NewReporter(registry *task.Registry, messenger Messenger, interval time.Duration, log *logger.Logger) *Reporter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Reporter{
		registry:  registry,
		messenger: messenger,
		interval:  interval,
		logger:    log,
	}
}

// Watch 为任务启动播报循环，返回的 stop 会等待循环退出
func (r *Reporter) Watch(ctx context.Context, taskID string) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.loop(ctx, taskID)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			wg.Wait()
		})
	}
}

func (r *Reporter) loop(ctx context.Context, taskID string) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	token := task.ShortToken(taskID)
	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		t, ok := r.registry.Get(taskID)
		if !ok || t.Phase.IsTerminal() {
			return
		}
		// 等待输入或排队时没有新采样，状态消息由流水线接管
		if !t.Phase.IsActive() {
			last = ""
			continue
		}

		text := RenderProgress(t.Language, t.Phase, t.Progress)
		if text == last {
			continue
		}

		err := r.messenger.EditText(ctx, t.ChatID, t.StatusMessageID, text, CancelKeyboard(t.Language, token))
		switch {
		case err == nil:
			last = text
		case errors.Is(err, ErrMessageGone):
			r.logger.Warnf("状态消息已不存在，停止播报: %s", taskID)
			return
		case ctx.Err() != nil:
			return
		default:
			// 限流等错误本轮跳过
			r.logger.Debugf("刷新进度失败: %s, %v", taskID, err)
		}
	}
}

// CancelKeyboard 带取消按钮的键盘
func CancelKeyboard(lang, token string) Keyboard {
	return Keyboard{{{Text: i18n.T(lang, "cancel"), Data: CallbackCancel + token}}}
}

// RenderProgress 生成进度文本
func RenderProgress(lang string, phase model.Phase, s model.ProgressSample) string {
	var b strings.Builder
	b.WriteString(i18n.T(lang, "phase_"+string(phase)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "[%s] %.1f%%", ProgressBar(s.Percent, barWidth), clampPercent(s.Percent))

	total := "?"
	if s.Total > 0 {
		total = FormatBytes(s.Total)
	}
	eta := "-"
	if s.ETA > 0 {
		eta = s.ETA.Round(time.Second).String()
	}
	b.WriteString("\n")
	b.WriteString(i18n.T(lang, "progress_detail", FormatBytes(s.Transferred), total, FormatBytes(int64(s.Speed)), eta))
	return b.String()
}

// ProgressBar 固定宽度的块字符进度条
func ProgressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Floor(clampPercent(percent) / 100 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func clampPercent(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// FormatBytes 人类可读的字节数
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// sampleFrom 由已传输与总量计算进度采样
func sampleFrom(transferred, total int64, started time.Time) model.ProgressSample {
	s := model.ProgressSample{
		Transferred: transferred,
		Total:       total,
		UpdatedAt:   time.Now(),
	}
	if total > 0 {
		s.Percent = float64(transferred) / float64(total) * 100
	}
	if elapsed := time.Since(started).Seconds(); elapsed > 0 {
		s.Speed = float64(transferred) / elapsed
		if s.Speed > 0 && total > transferred {
			s.ETA = time.Duration(float64(total-transferred) / s.Speed * float64(time.Second))
		}
	}
	return s
}
