package downloader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"resty.dev/v3"
)

// Config 下载配置
type Config struct {
	UserAgent string        // User-Agent
	Timeout   time.Duration // 超时时间
	MaxSize   int64         // 文件大小上限，0 表示不限制
}

// DefaultConfig 默认下载配置，用于缩略图等小文件
func DefaultConfig() Config {
	return Config{
		UserAgent: "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
		Timeout:   time.Minute,
		MaxSize:   10 << 20,
	}
}

// Result 下载结果
type Result struct {
	Size     int64         // 文件大小
	Duration time.Duration // 耗时
	Path     string        // 保存路径
}

// Downloader 基于 resty 的文件下载器
type Downloader struct {
	client *resty.Client
	cfg    Config
}

// New 创建下载器
func New(cfg Config) *Downloader {
	client := resty.New()
	client.SetTimeout(cfg.Timeout)
	client.SetHeader("User-Agent", cfg.UserAgent)
	client.SetHeader("Accept", "*/*")
	return &Downloader{client: client, cfg: cfg}
}

// Close 释放连接
func (d *Downloader) Close() error {
	return d.client.Close()
}

// Fetch 下载 url 到 savePath，先写临时文件成功后再改名
func (d *Downloader) Fetch(ctx context.Context, url, savePath string) (*Result, error) {
	if err := os.MkdirAll(filepath.Dir(savePath), 0755); err != nil {
		return nil, fmt.Errorf("创建保存目录失败: %w", err)
	}

	tmpPath := savePath + ".tmp"
	start := time.Now()

	resp, err := d.client.R().
		SetContext(ctx).
		SetOutputFileName(tmpPath).
		Get(url)
	if err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("HTTP请求失败: %w", err)
	}
	if resp.StatusCode() != 200 {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("下载失败，状态码: %d", resp.StatusCode())
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("读取下载文件失败: %w", err)
	}
	if d.cfg.MaxSize > 0 && info.Size() > d.cfg.MaxSize {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("文件过大: %d bytes", info.Size())
	}

	if err := os.Rename(tmpPath, savePath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("重命名文件失败: %w", err)
	}

	return &Result{
		Size:     info.Size(),
		Duration: time.Since(start),
		Path:     savePath,
	}, nil
}
