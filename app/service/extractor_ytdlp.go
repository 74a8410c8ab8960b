package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"vidrelay/app/config"
	"vidrelay/app/logger"
	"vidrelay/app/model"

	"github.com/lrstanley/go-ytdlp"
)

// 进度回调频率
const ytdlpProgressEvery = 500 * time.Millisecond

// 下载文件名前缀，其余文件按扩展名识别
const mediaStem = "media"

var (
	subtitleExts  = []string{".srt", ".vtt", ".ass"}
	thumbnailExts = []string{".jpg", ".jpeg", ".png", ".webp"}
)

// YtdlpExtractor 基于 yt-dlp 的提取服务
type YtdlpExtractor struct {
	cfg        config.DownloadConfig
	ffmpegPath string
	logger     *logger.Logger
}

// NewYtdlpExtractor 创建提取服务
func NewYtdlpExtractor(cfg config.DownloadConfig, ffmpegPath string, log *logger.Logger) *YtdlpExtractor {
	return &YtdlpExtractor{
		cfg:        cfg,
		ffmpegPath: ffmpegPath,
		logger:     log,
	}
}

// Install 确保 yt-dlp 可执行文件可用
func (e *YtdlpExtractor) Install(ctx context.Context) error {
	if _, err := ytdlp.Install(ctx, nil); err != nil {
		return fmt.Errorf("安装 yt-dlp 失败: %w", err)
	}
	return nil
}

// Probe 只读取元数据，不下载
func (e *YtdlpExtractor) Probe(ctx context.Context, url string) (*model.MediaInfo, error) {
	cmd := ytdlp.New().
		SkipDownload().
		DumpSingleJSON().
		NoPlaylist()
	e.authenticate(cmd, url)

	result, err := cmd.Run(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("获取元数据失败: %w", err)
	}

	var info model.MediaInfo
	if err := json.Unmarshal([]byte(result.Stdout), &info); err != nil {
		return nil, fmt.Errorf("解析元数据失败: %w", err)
	}
	return &info, nil
}

// Fetch 下载到工作目录，并找出媒体、字幕与缩略图文件
func (e *YtdlpExtractor) Fetch(ctx context.Context, req FetchRequest) (*Artifact, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	cmd := e.buildCommand(req)
	if req.OnProgress != nil {
		cmd.ProgressFunc(ytdlpProgressEvery, func(update ytdlp.ProgressUpdate) {
			req.OnProgress(progressFromUpdate(update))
		})
	}

	e.logger.Debugf("yt-dlp 下载: %s, 格式 %s", req.URL, req.Format)
	if _, err := cmd.Run(ctx, req.URL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	return CollectArtifact(req.WorkDir)
}

func (e *YtdlpExtractor) buildCommand(req FetchRequest) *ytdlp.Command {
	cmd := ytdlp.New().
		NoPlaylist().
		Output(filepath.Join(req.WorkDir, mediaStem+".%(ext)s")).
		Format(req.Format).
		Retries(strconv.Itoa(max(e.cfg.Retries, 0)))

	if e.cfg.RateLimit != "" {
		cmd.LimitRate(e.cfg.RateLimit)
	}
	if e.ffmpegPath != "" {
		cmd.FFmpegLocation(e.ffmpegPath)
	}

	if req.AudioOnly {
		cmd.ExtractAudio().AudioFormat("mp3")
	} else {
		cmd.MergeOutputFormat(req.Container).WriteThumbnail()
		if len(req.SubtitleLangs) > 0 {
			cmd.WriteSubs().SubLangs(strings.Join(req.SubtitleLangs, ",")).ConvertSubs("srt")
		}
		if req.MultiAudio {
			cmd.AudioMultistreams()
		}
	}

	e.authenticate(cmd, req.URL)
	return cmd
}

// authenticate YouTube 链接使用会员账号
func (e *YtdlpExtractor) authenticate(cmd *ytdlp.Command, url string) {
	if e.cfg.PremiumUsername == "" || !isYouTube(url) {
		return
	}
	cmd.Username(e.cfg.PremiumUsername).Password(e.cfg.PremiumPassword)
}

func isYouTube(url string) bool {
	u := strings.ToLower(url)
	return strings.Contains(u, "youtube.com") || strings.Contains(u, "youtu.be")
}

func progressFromUpdate(update ytdlp.ProgressUpdate) model.ProgressSample {
	s := sampleFrom(int64(update.DownloadedBytes), int64(update.TotalBytes), update.Started)
	if update.Started.IsZero() {
		s.Speed = 0
		s.ETA = 0
	}
	if eta := update.ETA(); eta > 0 {
		s.ETA = eta
	}
	return s
}

// CollectArtifact 按扩展名识别工作目录中的产物
func CollectArtifact(workDir string) (*Artifact, error) {
	entries, err := os.ReadDir(workDir)
	if err != nil {
		return nil, fmt.Errorf("读取工作目录失败: %w", err)
	}

	a := &Artifact{}
	var mediaSize int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		path := filepath.Join(workDir, name)
		switch {
		case hasExt(subtitleExts, ext):
			a.SubtitlePath = path
		case hasExt(thumbnailExts, ext):
			a.ThumbnailPath = path
		case ext == ".part" || ext == ".ytdl":
		default:
			info, err := entry.Info()
			if err != nil {
				continue
			}
			// 合并失败时可能残留多个分片，取最大的文件
			if info.Size() > mediaSize {
				mediaSize = info.Size()
				a.MediaPath = path
			}
		}
	}
	if a.MediaPath == "" {
		return nil, fmt.Errorf("下载结果中没有媒体文件: %s", workDir)
	}
	return a, nil
}

func hasExt(list []string, ext string) bool {
	for _, e := range list {
		if e == ext {
			return true
		}
	}
	return false
}
