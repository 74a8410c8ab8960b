package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"vidrelay/app/i18n"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// memberStatus 视为已关注的成员状态
func memberStatus(status string) bool {
	switch status {
	case "creator", "administrator", "member":
		return true
	default:
		return false
	}
}

// isMember 检查用户是否关注了全部强制频道
func (b *Bot) isMember(userID int64) (bool, error) {
	if b.cfg.Bot.IsAdmin(userID) {
		return true, nil
	}
	for _, ch := range b.cfg.Bot.ForceChannels {
		member, err := b.API.GetChatMember(tgbotapi.GetChatMemberConfig{
			ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
				SuperGroupUsername: ch,
				UserID:             userID,
			},
		})
		if err != nil {
			var apiErr *tgbotapi.Error
			if errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Message), "not found") {
				return false, nil
			}
			return false, fmt.Errorf("查询频道成员失败 %s: %w", ch, err)
		}
		if !memberStatus(member.Status) {
			return false, nil
		}
	}
	return true, nil
}

// ensureMember 未关注时发送关注按钮并返回 false
func (b *Bot) ensureMember(ctx context.Context, chatID, userID int64, lang string) bool {
	if len(b.cfg.Bot.ForceChannels) == 0 {
		return true
	}
	ok, err := b.isMember(userID)
	if err != nil {
		// 查询失败时不阻塞用户
		b.logger.Warnf("检查频道关注失败: %d, %v", userID, err)
		return true
	}
	if !ok {
		b.reply(ctx, chatID, i18n.T(lang, "join_channels"), JoinKeyboard(lang, b.cfg.Bot.ForceChannels))
	}
	return ok
}
