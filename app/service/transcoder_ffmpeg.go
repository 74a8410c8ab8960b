package service

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"vidrelay/app/config"
	"vidrelay/app/logger"

	"golang.org/x/sync/semaphore"
)

const (
	videoCodec       = "libx264"
	audioCodec       = "aac"
	audioBitrate     = "128k"
	fastStart        = "+faststart"
	progressTarget   = "pipe:2"
	progressTimeKey  = "out_time_us="
	stderrTailBytes  = 2048
	previewMaxHeight = 480
)

// FFmpegTranscoder 以受限并发调用 ffmpeg
type FFmpegTranscoder struct {
	cfg    config.TranscodeConfig
	sem    *semaphore.Weighted
	logger *logger.Logger
}

// NewFFmpegTranscoder 创建转码服务，Workers 为同时运行的 ffmpeg 数
func NewFFmpegTranscoder(cfg config.TranscodeConfig, log *logger.Logger) *FFmpegTranscoder {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Preset == "" {
		cfg.Preset = "medium"
	}
	if cfg.CRF <= 0 {
		cfg.CRF = 23
	}
	return &FFmpegTranscoder{
		cfg:    cfg,
		sem:    semaphore.NewWeighted(int64(cfg.Workers)),
		logger: log,
	}
}

// BuildCompressArgs 压缩参数
func (t *FFmpegTranscoder) BuildCompressArgs(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-c:v", videoCodec,
		"-preset", t.cfg.Preset,
		"-crf", strconv.Itoa(t.cfg.CRF),
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-movflags", fastStart,
		"-progress", progressTarget,
		"-nostats",
		out,
	}
}

// BuildBurnArgs 烧录字幕参数
func (t *FFmpegTranscoder) BuildBurnArgs(in, subtitles, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-vf", "subtitles=" + escapeFilterPath(subtitles),
		"-c:v", videoCodec,
		"-preset", t.cfg.Preset,
		"-crf", strconv.Itoa(t.cfg.CRF),
		"-c:a", "copy",
		"-progress", progressTarget,
		"-nostats",
		out,
	}
}

// BuildPreviewArgs 截取开头片段并缩小
func (t *FFmpegTranscoder) BuildPreviewArgs(in, out string, length time.Duration) []string {
	return []string{
		"-y",
		"-i", in,
		"-t", strconv.FormatFloat(length.Seconds(), 'f', -1, 64),
		"-vf", fmt.Sprintf("scale=-2:'min(%d,ih)'", previewMaxHeight),
		"-c:v", videoCodec,
		"-preset", "veryfast",
		"-c:a", audioCodec,
		"-b:a", audioBitrate,
		"-movflags", fastStart,
		"-nostats",
		out,
	}
}

// escapeFilterPath 转义 ffmpeg 滤镜参数中的特殊字符
func escapeFilterPath(path string) string {
	r := strings.NewReplacer(
		`\`, `\\\\`,
		`:`, `\\:`,
		`'`, `\\\'`,
		`,`, `\,`,
		`[`, `\[`,
		`]`, `\]`,
	)
	return r.Replace(path)
}

// Compress 重新编码以减小体积
func (t *FFmpegTranscoder) Compress(ctx context.Context, req TranscodeRequest) error {
	return t.run(ctx, t.BuildCompressArgs(req.Input, req.Output), req)
}

// BurnSubtitles 把字幕烧录进画面
func (t *FFmpegTranscoder) BurnSubtitles(ctx context.Context, req TranscodeRequest) error {
	return t.run(ctx, t.BuildBurnArgs(req.Input, req.Subtitles, req.Output), req)
}

// Preview 生成预览片段
func (t *FFmpegTranscoder) Preview(ctx context.Context, input, output string, length time.Duration) error {
	return t.run(ctx, t.BuildPreviewArgs(input, output, length), TranscodeRequest{Input: input, Output: output})
}

func (t *FFmpegTranscoder) run(ctx context.Context, args []string, req TranscodeRequest) error {
	if err := t.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer t.sem.Release(1)

	cmd := exec.CommandContext(ctx, t.cfg.FFmpegPath, args...)
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("创建 ffmpeg 输出管道失败: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("启动 ffmpeg 失败: %w", err)
	}

	tail := make(chan string, 1)
	go func() {
		tail <- monitorProgress(stderr, req.Duration, req.OnProgress)
	}()

	err = cmd.Wait()
	lastLines := <-tail
	if err != nil {
		os.Remove(req.Output)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("ffmpeg 执行失败: %w: %s", err, lastLines)
	}

	t.logger.Debugf("ffmpeg 完成: %s, 耗时 %s", req.Output, time.Since(start).Round(time.Millisecond))
	return nil
}

// monitorProgress 解析 -progress 输出，返回末尾的错误信息
func monitorProgress(r io.Reader, duration float64, onProgress func(float64)) string {
	var buf bytes.Buffer
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, progressTimeKey) {
			us, err := strconv.ParseInt(strings.TrimPrefix(line, progressTimeKey), 10, 64)
			if err != nil || duration <= 0 || onProgress == nil {
				continue
			}
			onProgress(clampPercent(float64(us) / 1e6 / duration * 100))
			continue
		}
		if strings.Contains(line, "=") && !strings.Contains(line, " ") {
			// 其余进度键值对
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
		if buf.Len() > stderrTailBytes {
			buf.Next(buf.Len() - stderrTailBytes)
		}
	}
	return strings.TrimSpace(buf.String())
}
