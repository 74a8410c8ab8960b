package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"vidrelay/app/config"
	"vidrelay/app/i18n"
	"vidrelay/app/logger"
	"vidrelay/app/model"
	"vidrelay/app/service"
	"vidrelay/app/task"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// 发到审计频道的错误长度上限
const maxLogErrorRunes = 1000

// Deps 机器人依赖
type Deps struct {
	API          *tgbotapi.BotAPI
	Client       *Client
	Users        *service.UserService
	Stats        *service.StatsService
	SystemConfig *service.SystemConfigService
	Pipeline     *service.Pipeline
	Canceller    *service.Canceller
	Registry     *task.Registry
	Gate         *task.Gate
	Restart      func()
}

// Bot 处理消息与回调
type Bot struct {
	Deps
	cfg    *config.Config
	logger *logger.Logger
	wg     sync.WaitGroup
}

// New 创建机器人
func New(cfg *config.Config, deps Deps, log *logger.Logger) *Bot {
	return &Bot{
		Deps:   deps,
		cfg:    cfg,
		logger: log,
	}
}

// Run 拉取更新直到 ctx 结束，返回前等待所有处理协程退出
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.API.GetUpdatesChan(u)

	b.logger.Infof("机器人已启动: @%s", b.API.Self.UserName)
	for {
		select {
		case <-ctx.Done():
			b.API.StopReceivingUpdates()
			b.wg.Wait()
			b.logger.Info("机器人已停止")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.wg.Wait()
				return errors.New("更新通道已关闭")
			}
			b.wg.Add(1)
			go func(update tgbotapi.Update) {
				defer b.wg.Done()
				b.dispatch(ctx, update)
			}(update)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.reportError(ctx, fmt.Errorf("处理更新时发生 panic: %v", r))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// reportError 记录错误并转发到审计频道
func (b *Bot) reportError(ctx context.Context, err error) {
	b.logger.Errorf("处理更新失败: %v", err)
	text := err.Error()
	if utf8.RuneCountInString(text) > maxLogErrorRunes {
		text = string([]rune(text)[:maxLogErrorRunes]) + "…"
	}
	if sendErr := b.Client.SendLog(ctx, "Error: "+text); sendErr != nil {
		b.logger.Debugf("发送错误日志失败: %v", sendErr)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string, kb service.Keyboard) {
	if _, err := b.Client.SendText(ctx, chatID, text, kb); err != nil {
		b.logger.Warnf("回复消息失败: %d, %v", chatID, err)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	from := msg.From
	profile := service.Profile{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
	}
	// 客户端未上报语言时使用配置的默认语言
	if from.LanguageCode != "" {
		profile.Language = i18n.Match(from.LanguageCode)
	}
	user, err := b.Users.Touch(ctx, profile)
	if err != nil {
		b.reportError(ctx, err)
		return
	}
	lang := user.Language
	chatID := msg.Chat.ID
	admin := b.cfg.Bot.IsAdmin(from.ID)

	if user.Banned && !admin {
		b.reply(ctx, chatID, i18n.T(lang, "banned"), nil)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user, admin)
		return
	}

	if len(msg.Photo) > 0 {
		key := task.ContinuationKey{UserID: from.ID, ChatID: chatID, Purpose: task.PurposeThumbnail}
		if _, ok := b.Pipeline.Continuations().Take(key); ok {
			b.saveThumbnail(ctx, chatID, user, msg.Photo)
			return
		}
	}

	if msg.Text != "" && b.Pipeline.ResumeText(from.ID, chatID, msg.Text) {
		return
	}

	b.handleURLs(ctx, msg, user)
}

func (b *Bot) handleURLs(ctx context.Context, msg *tgbotapi.Message, user *model.BotUser) {
	lang := user.Language
	chatID := msg.Chat.ID
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	urls := ExtractURLs(text)
	if len(urls) == 0 {
		b.reply(ctx, chatID, i18n.T(lang, "invalid_url"), nil)
		return
	}
	if ok := b.ensureMember(ctx, chatID, msg.From.ID, lang); !ok {
		return
	}
	if len(urls) > 1 {
		b.reply(ctx, chatID, i18n.T(lang, "processing_videos", len(urls)), nil)
	}

	for _, u := range urls {
		if !Supported(u, b.cfg.Bot.SupportedPlatforms) {
			b.reply(ctx, chatID, i18n.T(lang, "unsupported_platform", html.EscapeString(u)), nil)
			continue
		}
		_, err := b.Pipeline.Submit(ctx, service.SubmitRequest{UserID: msg.From.ID, ChatID: chatID, URL: u})
		switch {
		case err == nil:
		case errors.Is(err, service.ErrDuplicateTask):
			b.reply(ctx, chatID, i18n.T(lang, "duplicate"), nil)
		case errors.Is(err, service.ErrBanned):
			b.reply(ctx, chatID, i18n.T(lang, "banned"), nil)
		default:
			b.reply(ctx, chatID, i18n.T(lang, "error_occurred", html.EscapeString(err.Error())), nil)
			b.reportError(ctx, err)
		}
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *model.BotUser, admin bool) {
	lang := user.Language
	chatID := msg.Chat.ID
	args := strings.TrimSpace(msg.CommandArguments())

	switch msg.Command() {
	case "start":
		if b.ensureMember(ctx, chatID, msg.From.ID, lang) {
			b.reply(ctx, chatID, i18n.T(lang, "welcome"), nil)
		}
	case "help":
		text := i18n.T(lang, "help", html.EscapeString(strings.Join(b.cfg.Bot.SupportedPlatforms, ", ")))
		if admin {
			text += i18n.T(lang, "admin_help")
		}
		b.reply(ctx, chatID, text, nil)
	case "about":
		b.reply(ctx, chatID, i18n.T(lang, "about", html.EscapeString(b.cfg.Bot.UpdatesChannel)), nil)
	case "settings":
		b.reply(ctx, chatID, i18n.T(lang, "settings_menu"), SettingsKeyboard(user))
	case "skip":
		if b.Pipeline.ResumeText(msg.From.ID, chatID, "/skip") {
			return
		}
		key := "nothing_to_skip"
		for _, p := range b.Pipeline.Continuations().Pending(msg.From.ID, chatID) {
			if p == task.PurposeQuality {
				key = "pick_quality_first"
			}
		}
		b.reply(ctx, chatID, i18n.T(lang, key), nil)
	case "stats":
		b.sendStats(ctx, chatID, lang)
	case "users":
		n, err := b.Users.Count(ctx)
		if err != nil {
			b.reportError(ctx, err)
			return
		}
		b.reply(ctx, chatID, i18n.T(lang, "total_users", n), nil)
	case "info":
		act, err := b.Stats.Activity(ctx, msg.From.ID)
		if err != nil {
			b.reportError(ctx, err)
			return
		}
		b.reply(ctx, chatID, i18n.T(lang, "info", act.Videos, float64(act.TotalBytes)/(1<<20), act.LastActive.Format("2006-01-02 15:04:05")), nil)
	case "setthumbnail":
		if reply := msg.ReplyToMessage; reply != nil && len(reply.Photo) > 0 {
			b.saveThumbnail(ctx, chatID, user, reply.Photo)
			return
		}
		b.Pipeline.Continuations().Put(&task.Continuation{
			Key: task.ContinuationKey{UserID: msg.From.ID, ChatID: chatID, Purpose: task.PurposeThumbnail},
		})
		b.reply(ctx, chatID, i18n.T(lang, "thumbnail_prompt"), nil)
	case "delthumbnail":
		if user.ThumbnailFileID == "" {
			b.reply(ctx, chatID, i18n.T(lang, "no_thumbnail"), nil)
			return
		}
		if err := b.Users.SetThumbnail(ctx, msg.From.ID, ""); err != nil {
			b.reportError(ctx, err)
			return
		}
		b.reply(ctx, chatID, i18n.T(lang, "thumbnail_deleted"), nil)
	case "broadcast", "ban", "unban", "setlimit", "restart":
		if !admin {
			b.reply(ctx, chatID, i18n.T(lang, "admin_only"), nil)
			return
		}
		b.handleAdminCommand(ctx, chatID, lang, msg.Command(), args)
	default:
		b.reply(ctx, chatID, i18n.T(lang, "help", html.EscapeString(strings.Join(b.cfg.Bot.SupportedPlatforms, ", "))), nil)
	}
}

func (b *Bot) handleAdminCommand(ctx context.Context, chatID int64, lang, command, args string) {
	switch command {
	case "broadcast":
		if args == "" {
			b.reply(ctx, chatID, i18n.T(lang, "broadcast_usage"), nil)
			return
		}
		sent, failed := b.broadcast(ctx, args)
		b.reply(ctx, chatID, i18n.T(lang, "broadcast_done", sent, failed), nil)
	case "ban", "unban":
		id, err := strconv.ParseInt(args, 10, 64)
		if err != nil {
			b.reply(ctx, chatID, i18n.T(lang, command+"_usage"), nil)
			return
		}
		if err := b.Users.SetBanned(ctx, id, command == "ban"); err != nil {
			b.reportError(ctx, err)
			return
		}
		key := "banned_user"
		if command == "unban" {
			key = "unbanned_user"
		}
		b.reply(ctx, chatID, i18n.T(lang, key, id), nil)
	case "setlimit":
		n, err := strconv.Atoi(args)
		if err != nil || n < 1 {
			b.reply(ctx, chatID, i18n.T(lang, "limit_usage", b.Gate.Limit()), nil)
			return
		}
		if err := b.SystemConfig.SetConcurrencyLimit(ctx, n); err != nil {
			b.reportError(ctx, err)
			return
		}
		b.reply(ctx, chatID, i18n.T(lang, "limit_set", n), nil)
	case "restart":
		b.reply(ctx, chatID, i18n.T(lang, "restarting"), nil)
		if b.Restart != nil {
			b.Restart()
		}
	}
}

// broadcast 向全部未封禁用户发送消息
func (b *Bot) broadcast(ctx context.Context, text string) (sent, failed int) {
	ids, err := b.Users.BroadcastTargets(ctx)
	if err != nil {
		b.reportError(ctx, err)
		return 0, 0
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if _, err := b.Client.SendText(ctx, id, text, nil); err != nil {
			failed++
			b.logger.Debugf("广播失败: %d, %v", id, err)
		} else {
			sent++
		}
		// Bot API 群发限速约每秒 30 条
		time.Sleep(40 * time.Millisecond)
	}
	b.logger.Infof("广播完成: 成功 %d, 失败 %d", sent, failed)
	return sent, failed
}

func (b *Bot) saveThumbnail(ctx context.Context, chatID int64, user *model.BotUser, photos []tgbotapi.PhotoSize) {
	fileID := photos[len(photos)-1].FileID
	if err := b.Users.SetThumbnail(ctx, user.TelegramID, fileID); err != nil {
		b.reportError(ctx, err)
		return
	}
	b.reply(ctx, chatID, i18n.T(user.Language, "thumbnail_saved"), nil)
}

func (b *Bot) sendStats(ctx context.Context, chatID int64, lang string) {
	g, err := b.Stats.Global(ctx)
	if err != nil {
		b.reportError(ctx, err)
		return
	}
	b.reply(ctx, chatID, i18n.T(lang, "bot_stats",
		g.TotalVideos,
		float64(g.TotalBytes)/(1<<20),
		float64(g.TotalMillis)/1000,
		b.Registry.Len(),
		len(b.Gate.QueuedIDs()),
	), nil)
}

func (b *Bot) answer(callbackID, text string) {
	if _, err := b.API.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		b.logger.Debugf("应答回调失败: %v", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.From == nil || cq.Message == nil {
		b.answer(cq.ID, "")
		return
	}
	user, err := b.Users.Preferences(ctx, cq.From.ID)
	if err != nil {
		b.answer(cq.ID, "")
		b.reportError(ctx, err)
		return
	}
	lang := user.Language
	chatID := cq.Message.Chat.ID
	data := cq.Data

	switch {
	case strings.HasPrefix(data, service.CallbackCancel):
		token := strings.TrimPrefix(data, service.CallbackCancel)
		res := b.Canceller.CancelAs(token, cq.From.ID, b.cfg.Bot.IsAdmin(cq.From.ID))
		if res.Denied {
			b.answer(cq.ID, i18n.T(lang, "not_your_task"))
			return
		}
		if !res.Found {
			b.answer(cq.ID, i18n.T(lang, "nothing_to_cancel"))
			return
		}
		b.answer(cq.ID, i18n.T(lang, "download_cancelled"))

	case strings.HasPrefix(data, service.CallbackQuality):
		token, label, ok := strings.Cut(strings.TrimPrefix(data, service.CallbackQuality), ":")
		if !ok {
			b.answer(cq.ID, "")
			return
		}
		switch err := b.Pipeline.ResumeQuality(cq.From.ID, chatID, token, label); {
		case err == nil:
			b.answer(cq.ID, label)
		case errors.Is(err, service.ErrNoPending):
			b.answer(cq.ID, i18n.T(lang, "expired"))
		default:
			b.answer(cq.ID, err.Error())
		}

	case data == cbJoined:
		ok, err := b.isMember(cq.From.ID)
		if err != nil || !ok {
			b.answer(cq.ID, i18n.T(lang, "join_all_channels"))
			return
		}
		b.answer(cq.ID, "")
		b.edit(ctx, chatID, cq.Message.MessageID, i18n.T(lang, "welcome"), nil)

	case strings.HasPrefix(data, cbSettings):
		b.handleSettings(ctx, cq, user)

	default:
		b.answer(cq.ID, "")
	}
}

func (b *Bot) edit(ctx context.Context, chatID int64, msgID int, text string, kb service.Keyboard) {
	if err := b.Client.EditText(ctx, chatID, msgID, text, kb); err != nil {
		b.logger.Debugf("编辑消息失败: %v", err)
	}
}

func (b *Bot) handleSettings(ctx context.Context, cq *tgbotapi.CallbackQuery, user *model.BotUser) {
	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	msgID := cq.Message.MessageID
	lang := user.Language
	data := cq.Data

	var notice string
	var err error
	switch {
	case data == cbClose:
		b.answer(cq.ID, "")
		if err := b.Client.Delete(ctx, chatID, msgID); err != nil {
			b.logger.Debugf("删除设置菜单失败: %v", err)
		}
		return
	case data == cbMenu:
	case data == cbLang:
		b.answer(cq.ID, "")
		b.edit(ctx, chatID, msgID, i18n.T(lang, "select_language"), LanguageKeyboard(lang))
		return
	case data == cbQuality:
		b.answer(cq.ID, "")
		b.edit(ctx, chatID, msgID, i18n.T(lang, "select_quality"), QualityKeyboard(lang))
		return
	case data == cbFormat:
		b.answer(cq.ID, "")
		b.edit(ctx, chatID, msgID, i18n.T(lang, "select_format"), FormatKeyboard(lang))
		return
	case strings.HasPrefix(data, cbLang+":"):
		code := i18n.Match(strings.TrimPrefix(data, cbLang+":"))
		if err = b.Users.SetLanguage(ctx, userID, code); err == nil {
			lang = code
			notice = i18n.T(lang, "language_updated")
		}
	case strings.HasPrefix(data, cbQuality+":"):
		if err = b.Users.SetDefaultQuality(ctx, userID, strings.TrimPrefix(data, cbQuality+":")); err == nil {
			notice = i18n.T(lang, "quality_updated")
		}
	case strings.HasPrefix(data, cbFormat+":"):
		if err = b.Users.SetUploadFormat(ctx, userID, strings.TrimPrefix(data, cbFormat+":")); err == nil {
			notice = i18n.T(lang, "format_updated")
		}
	case strings.HasPrefix(data, cbToggle):
		setting := service.Setting(strings.TrimPrefix(data, cbToggle))
		var on bool
		if on, err = b.Users.Toggle(ctx, userID, setting); err == nil {
			notice = i18n.T(lang, "toggle_updated", i18n.T(lang, toggleLabels[setting]), onOff(lang, on))
		}
	}
	if err != nil {
		b.answer(cq.ID, i18n.T(lang, "error_occurred", err.Error()))
		return
	}
	b.answer(cq.ID, notice)

	fresh, err := b.Users.Preferences(ctx, userID)
	if err != nil {
		b.reportError(ctx, err)
		return
	}
	b.edit(ctx, chatID, msgID, i18n.T(fresh.Language, "settings_menu"), SettingsKeyboard(fresh))
}
