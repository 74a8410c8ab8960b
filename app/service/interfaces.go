package service

import (
	"context"
	"errors"
	"time"

	"vidrelay/app/model"
)

var (
	// ErrDuplicateTask 同一链接已在处理
	ErrDuplicateTask = errors.New("任务已在处理中")
	// ErrBanned 用户已被封禁
	ErrBanned = errors.New("用户已被封禁")
	// ErrTooLarge 文件超过上传上限
	ErrTooLarge = errors.New("文件超过上传上限")
	// ErrMessageGone 状态消息已不存在或不可编辑
	ErrMessageGone = errors.New("消息不存在")
	// ErrNoFormats 没有可下载的格式
	ErrNoFormats = errors.New("没有可下载的格式")
	// ErrNoPending 没有等待中的输入
	ErrNoPending = errors.New("没有等待中的任务")
	// ErrInvalidChoice 选项不在候选列表中
	ErrInvalidChoice = errors.New("无效的选项")
	// ErrShuttingDown 服务正在关闭
	ErrShuttingDown = errors.New("服务正在关闭")

	errCancelled  = errors.New("用户取消")
	errExpired    = errors.New("等待输入超时")
	errSuperseded = errors.New("被新的请求替代")
)

// FetchRequest 下载参数
type FetchRequest struct {
	URL           string
	WorkDir       string
	Format        string // 提取工具的格式选择器
	AudioOnly     bool
	Container     string
	SubtitleLangs []string
	MultiAudio    bool
	Timeout       time.Duration
	OnProgress    func(model.ProgressSample)
}

// Artifact 下载产物
type Artifact struct {
	MediaPath     string
	ThumbnailPath string
	SubtitlePath  string
	Title         string
	Duration      float64
}

// Extractor 媒体提取服务
type Extractor interface {
	Probe(ctx context.Context, url string) (*model.MediaInfo, error)
	Fetch(ctx context.Context, req FetchRequest) (*Artifact, error)
}

// TranscodeRequest 转码参数
type TranscodeRequest struct {
	Input      string
	Output     string
	Subtitles  string
	Duration   float64 // 秒，用于计算进度
	OnProgress func(percent float64)
}

// Transcoder 转码服务
type Transcoder interface {
	Compress(ctx context.Context, req TranscodeRequest) error
	BurnSubtitles(ctx context.Context, req TranscodeRequest) error
	Preview(ctx context.Context, input, output string, length time.Duration) error
}

// Button 内联按钮，URL 非空时为链接按钮
type Button struct {
	Text string
	Data string
	URL  string
}

// Keyboard 内联键盘，按行排列
type Keyboard [][]Button

// MediaKind 附件类型
type MediaKind string

const (
	MediaVideo    MediaKind = "video"
	MediaAudio    MediaKind = "audio"
	MediaDocument MediaKind = "document"
	MediaPhoto    MediaKind = "photo"
)

// Upload 待发送的附件
type Upload struct {
	ChatID     int64
	Kind       MediaKind
	Path       string
	Caption    string
	Title      string
	ThumbPath  string
	Duration   int
	OnProgress func(written, total int64)
}

// Messenger 消息平台客户端
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb Keyboard) (int, error)
	EditText(ctx context.Context, chatID int64, messageID int, text string, kb Keyboard) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	SendMedia(ctx context.Context, u Upload) error
	SendLog(ctx context.Context, text string) error
	DownloadFile(ctx context.Context, fileID, dest string) error
}

// PreferenceStore 用户偏好与进行中任务计数
type PreferenceStore interface {
	Preferences(ctx context.Context, userID int64) (*model.BotUser, error)
	IncrementActive(ctx context.Context, userID int64) error
	DecrementActive(ctx context.Context, userID int64) error
}

// StatsRecorder 记录成功交付
type StatsRecorder interface {
	RecordDelivery(ctx context.Context, rec model.DownloadRecord) error
}
