package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot       BotConfig       `mapstructure:"bot"`
	Download  DownloadConfig  `mapstructure:"download"`
	Transcode TranscodeConfig `mapstructure:"transcode"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Janitor   JanitorConfig   `mapstructure:"janitor"`
}

type BotConfig struct {
	Token              string   `mapstructure:"token"`
	APIEndpoint        string   `mapstructure:"api_endpoint"` // 自建 Bot API 服务地址，留空使用官方
	Debug              bool     `mapstructure:"debug"`
	AdminIDs           []int64  `mapstructure:"admin_ids"`
	ForceChannels      []string `mapstructure:"force_channels"` // 强制关注的频道，如 @channel
	LogChannelID       int64    `mapstructure:"log_channel_id"` // 审计日志频道
	UpdatesChannel     string   `mapstructure:"updates_channel"`
	SupportedPlatforms []string `mapstructure:"supported_platforms"`
	DefaultLanguage    string   `mapstructure:"default_language"`
}

type DownloadConfig struct {
	Dir                 string        `mapstructure:"dir"`
	MaxConcurrent       int           `mapstructure:"max_concurrent"`
	PerUserLimit        int           `mapstructure:"per_user_limit"` // 0 表示不限制
	Retries             int           `mapstructure:"retries"`
	Timeout             time.Duration `mapstructure:"timeout"`
	RateLimit           string        `mapstructure:"rate_limit"` // 传给 yt-dlp 的限速，如 500K
	SubtitleLangs       []string      `mapstructure:"subtitle_langs"`
	CompressThresholdMB int64         `mapstructure:"compress_threshold_mb"`
	MaxUploadMB         int64         `mapstructure:"max_upload_mb"`
	ProgressInterval    time.Duration `mapstructure:"progress_interval"`
	PendingTTL          time.Duration `mapstructure:"pending_ttl"` // 等待用户输入的最长时间
	FilenameMaxLen      int           `mapstructure:"filename_max_len"`
	PremiumUsername     string        `mapstructure:"premium_username"`
	PremiumPassword     string        `mapstructure:"premium_password"`
	AutoInstall         bool          `mapstructure:"auto_install"` // 启动时自动安装 yt-dlp
}

type TranscodeConfig struct {
	FFmpegPath string `mapstructure:"ffmpeg_path"`
	Workers    int    `mapstructure:"workers"`
	Preset     string `mapstructure:"preset"`
	CRF        int    `mapstructure:"crf"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite 或 postgres
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    string `mapstructure:"port"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`      // json 或 text
	Output     string `mapstructure:"output"`      // stdout 或 file
	MaxSize    int    `mapstructure:"max_size"`    // 兆字节
	MaxBackups int    `mapstructure:"max_backups"` // 备份数量
	MaxAge     int    `mapstructure:"max_age"`     // 天数
	Compress   bool   `mapstructure:"compress"`    // 是否压缩旧文件
}

type JWTConfig struct {
	Secret     string `mapstructure:"secret"`      // JWT 密钥
	ExpireTime int    `mapstructure:"expire_time"` // 过期时间（小时）
	Issuer     string `mapstructure:"issuer"`      // 签发者
}

type JanitorConfig struct {
	Grace       time.Duration `mapstructure:"grace"`        // 孤立文件的宽限期
	SweepSpec   string        `mapstructure:"sweep_spec"`   // 定期清扫的 cron 表达式
	DailyReport string        `mapstructure:"daily_report"` // 每日统计推送的 cron 表达式，留空关闭
}

// IsAdmin 判断用户是否为管理员
func (c *BotConfig) IsAdmin(userID int64) bool {
	for _, id := range c.AdminIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CompressThresholdBytes 压缩阈值（字节）
func (c *DownloadConfig) CompressThresholdBytes() int64 {
	return c.CompressThresholdMB << 20
}

// MaxUploadBytes 上传大小上限（字节）
func (c *DownloadConfig) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func Load() *Config {
	setDefaults()

	// 读取配置
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("未找到配置文件，使用默认配置")
		} else {
			log.Fatalf("读取配置文件出错: %v", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		log.Fatalf("无法解码配置: %v", err)
	}

	// 验证配置
	if err := Validate(&config); err != nil {
		log.Fatalf("配置验证失败: %v", err)
	}

	return &config
}

// setDefaults 设置默认配置
func setDefaults() {
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("bot.token", "")
	viper.SetDefault("bot.default_language", "en")
	viper.SetDefault("bot.supported_platforms", []string{
		"youtube", "vimeo", "dailymotion", "instagram", "x.com", "twitter.com",
		"facebook.com", "tiktok.com", "youtu.be", "fb.watch",
	})

	viper.SetDefault("download.dir", "downloads")
	viper.SetDefault("download.max_concurrent", 5)
	viper.SetDefault("download.per_user_limit", 0)
	viper.SetDefault("download.retries", 3)
	viper.SetDefault("download.timeout", 30*time.Minute)
	viper.SetDefault("download.rate_limit", "")
	viper.SetDefault("download.subtitle_langs", []string{"en"})
	viper.SetDefault("download.compress_threshold_mb", 1000)
	viper.SetDefault("download.max_upload_mb", 2000)
	viper.SetDefault("download.progress_interval", 2*time.Second)
	viper.SetDefault("download.pending_ttl", 15*time.Minute)
	viper.SetDefault("download.filename_max_len", 100)

	viper.SetDefault("transcode.ffmpeg_path", "ffmpeg")
	viper.SetDefault("transcode.workers", 2)
	viper.SetDefault("transcode.preset", "medium")
	viper.SetDefault("transcode.crf", 23)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.dsn", "data/vidrelay.db")

	viper.SetDefault("server.enabled", false)
	viper.SetDefault("server.port", "5000")

	// 日志默认配置
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")
	viper.SetDefault("log.output", "stdout")
	viper.SetDefault("log.max_size", 100)
	viper.SetDefault("log.max_backups", 3)
	viper.SetDefault("log.max_age", 28)
	viper.SetDefault("log.compress", true)

	// JWT默认配置
	viper.SetDefault("jwt.secret", "your-secret-key-change-in-production")
	viper.SetDefault("jwt.expire_time", 24) // 24小时
	viper.SetDefault("jwt.issuer", "vidrelay")

	viper.SetDefault("janitor.grace", 10*time.Minute)
	viper.SetDefault("janitor.sweep_spec", "@every 10m")
	viper.SetDefault("janitor.daily_report", "0 0 * * *")
}

// Validate 验证配置的有效性
func Validate(config *Config) error {
	if config.Bot.Token == "" {
		return fmt.Errorf("机器人 token 未设置")
	}
	if config.Download.Dir == "" {
		return fmt.Errorf("下载目录未设置")
	}
	if config.Download.MaxConcurrent < 1 {
		return fmt.Errorf("最大并发数必须大于 0")
	}
	if config.Download.PerUserLimit < 0 {
		return fmt.Errorf("单用户并发数不能为负数")
	}
	if config.Download.ProgressInterval < time.Second || config.Download.ProgressInterval > 2*time.Second {
		return fmt.Errorf("进度刷新间隔必须在 1~2 秒之间: %s", config.Download.ProgressInterval)
	}
	if config.Download.MaxUploadMB < config.Download.CompressThresholdMB {
		return fmt.Errorf("上传上限 %dMB 小于压缩阈值 %dMB", config.Download.MaxUploadMB, config.Download.CompressThresholdMB)
	}
	if config.Download.FilenameMaxLen < 16 {
		return fmt.Errorf("文件名长度上限过小: %d", config.Download.FilenameMaxLen)
	}
	switch config.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("不支持的数据库驱动: %s", config.Database.Driver)
	}
	if config.Server.Enabled {
		if config.Server.Port == "" {
			return fmt.Errorf("服务器端口未设置")
		}
		if config.JWT.Secret == "" {
			return fmt.Errorf("JWT密钥未设置")
		}
	}
	return nil
}
