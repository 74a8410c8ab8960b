package bot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"vidrelay/app/logger"
	"vidrelay/app/service"
	"vidrelay/app/utils/downloader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Client 基于 Bot API 的消息客户端
type Client struct {
	api          *tgbotapi.BotAPI
	files        *downloader.Downloader
	logChannelID int64
	logger       *logger.Logger
}

// NewClient 创建消息客户端
func NewClient(api *tgbotapi.BotAPI, files *downloader.Downloader, logChannelID int64, log *logger.Logger) *Client {
	return &Client{
		api:          api,
		files:        files,
		logChannelID: logChannelID,
		logger:       log,
	}
}

var _ service.Messenger = (*Client)(nil)

// Markup 内联键盘转换为 Bot API 结构
func Markup(kb service.Keyboard) *tgbotapi.InlineKeyboardMarkup {
	if len(kb) == 0 {
		return nil
	}
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, row := range kb {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(b.Text, b.URL))
			} else {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
			}
		}
		rows = append(rows, buttons)
	}
	markup := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &markup
}

// SendText 发送 HTML 文本，返回消息 ID
func (c *Client) SendText(ctx context.Context, chatID int64, text string, kb service.Keyboard) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	if markup := Markup(kb); markup != nil {
		msg.ReplyMarkup = *markup
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("发送消息失败: %w", err)
	}
	return sent.MessageID, nil
}

// EditText 编辑消息；消息不存在时返回 ErrMessageGone，内容未变视为成功
func (c *Client) EditText(ctx context.Context, chatID int64, messageID int, text string, kb service.Keyboard) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = Markup(kb)
	_, err := c.api.Request(edit)
	return classifyEditError(err)
}

// classifyEditError 归类编辑消息的错误
func classifyEditError(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "message is not modified"):
		return nil
	case strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message can't be edited"),
		strings.Contains(msg, "chat not found"),
		strings.Contains(msg, "bot was blocked"):
		return fmt.Errorf("%w: %v", service.ErrMessageGone, err)
	default:
		return fmt.Errorf("编辑消息失败: %w", err)
	}
}

// Delete 删除消息
func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("删除消息失败: %w", err)
	}
	return nil
}

// countingReader 统计已读取字节数用于上传进度
type countingReader struct {
	ctx     context.Context
	r       io.Reader
	total   int64
	written atomic.Int64
	report  func(written, total int64)
}

// Read ctx 取消后返回错误以中止上传
func (cr *countingReader) Read(p []byte) (int, error) {
	if cr.ctx != nil {
		if err := cr.ctx.Err(); err != nil {
			return 0, err
		}
	}
	n, err := cr.r.Read(p)
	if n > 0 {
		w := cr.written.Add(int64(n))
		if cr.report != nil {
			cr.report(w, cr.total)
		}
	}
	return n, err
}

// SendMedia 上传附件，读取进度通过 OnProgress 回报
func (c *Client) SendMedia(ctx context.Context, u service.Upload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(u.Path)
	if err != nil {
		return fmt.Errorf("打开上传文件失败: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("读取上传文件失败: %w", err)
	}

	file := tgbotapi.FileReader{
		Name:   filepath.Base(u.Path),
		Reader: &countingReader{ctx: ctx, r: f, total: info.Size(), report: u.OnProgress},
	}
	var thumb tgbotapi.RequestFileData
	if u.ThumbPath != "" {
		thumb = tgbotapi.FilePath(u.ThumbPath)
	}

	var cfg tgbotapi.Chattable
	switch u.Kind {
	case service.MediaVideo:
		v := tgbotapi.NewVideo(u.ChatID, file)
		v.Caption = u.Caption
		v.ParseMode = tgbotapi.ModeHTML
		v.Duration = u.Duration
		v.SupportsStreaming = true
		v.Thumb = thumb
		cfg = v
	case service.MediaAudio:
		a := tgbotapi.NewAudio(u.ChatID, file)
		a.Caption = u.Caption
		a.ParseMode = tgbotapi.ModeHTML
		a.Title = u.Title
		a.Duration = u.Duration
		a.Thumb = thumb
		cfg = a
	case service.MediaPhoto:
		p := tgbotapi.NewPhoto(u.ChatID, file)
		p.Caption = u.Caption
		p.ParseMode = tgbotapi.ModeHTML
		cfg = p
	default:
		d := tgbotapi.NewDocument(u.ChatID, file)
		d.Caption = u.Caption
		d.ParseMode = tgbotapi.ModeHTML
		d.Thumb = thumb
		cfg = d
	}

	if _, err := c.api.Send(cfg); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("上传%s已中止: %w", u.Kind, ctxErr)
		}
		return fmt.Errorf("上传%s失败: %w", u.Kind, err)
	}
	return nil
}

// SendLog 发送到审计频道，未配置时忽略
func (c *Client) SendLog(ctx context.Context, text string) error {
	if c.logChannelID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(c.logChannelID, text)
	msg.DisableWebPagePreview = true
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("发送审计日志失败: %w", err)
	}
	return nil
}

// DownloadFile 下载用户上传的文件
func (c *Client) DownloadFile(ctx context.Context, fileID, dest string) error {
	file, err := c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("获取文件信息失败: %w", err)
	}
	url := file.Link(c.api.Token)
	if _, err := c.files.Fetch(ctx, url, dest); err != nil {
		return fmt.Errorf("下载文件失败: %w", err)
	}
	return nil
}
