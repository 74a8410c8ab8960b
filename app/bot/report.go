package bot

import (
	"context"
	"fmt"
	"time"
)

// AnnounceStartup 启动后向审计频道报告
func (b *Bot) AnnounceStartup(ctx context.Context) {
	text := fmt.Sprintf("<b>🚀 Bot started</b>\n@%s\nConcurrency limit: %d\nTime: %s",
		b.API.Self.UserName, b.Gate.Limit(), time.Now().Format("2006-01-02 15:04:05"))
	if err := b.Client.SendLog(ctx, text); err != nil {
		b.logger.Warnf("发送启动日志失败: %v", err)
	}
}

// DailyReport 汇总过去 24 小时的交付情况
func (b *Bot) DailyReport(ctx context.Context) {
	day, err := b.Stats.Since(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		b.logger.Errorf("统计每日数据失败: %v", err)
		return
	}
	users, err := b.Users.Count(ctx)
	if err != nil {
		b.logger.Errorf("统计用户数失败: %v", err)
		return
	}
	text := fmt.Sprintf("<b>📅 Daily report</b>\nVideos: %d\nSize: %.2f MB\nUsers: %d\nActive now: %d",
		day.Videos, float64(day.TotalBytes)/(1<<20), users, b.Registry.Len())
	if err := b.Client.SendLog(ctx, text); err != nil {
		b.logger.Warnf("发送每日报告失败: %v", err)
	}
	b.logger.Infof("每日报告: %d 个视频, %d 字节", day.Videos, day.TotalBytes)
}
