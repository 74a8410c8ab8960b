package service

import (
	"context"
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"vidrelay/app/config"
	"vidrelay/app/i18n"
	"vidrelay/app/logger"
	"vidrelay/app/model"
	"vidrelay/app/task"
	"vidrelay/app/utils/filename"
	"vidrelay/app/utils/thumbnail"

	"github.com/google/uuid"
)

// 返回给用户的错误信息长度上限
const maxUserErrorRunes = 1000

// 跳过输入的指令
const skipCommand = "/skip"

// 预览片段长度
const previewLength = 10 * time.Second

// PipelineConfig 流水线参数
type PipelineConfig struct {
	DownloadDir       string
	MaxUploadBytes    int64
	CompressThreshold int64
	FilenameMaxLen    int
	Timeout           time.Duration
	SubtitleLangs     []string
	PendingTTL        time.Duration
	ProgressInterval  time.Duration
}

// NewPipelineConfig 从下载配置生成流水线参数
func NewPipelineConfig(cfg config.DownloadConfig) PipelineConfig {
	return PipelineConfig{
		DownloadDir:       cfg.Dir,
		MaxUploadBytes:    cfg.MaxUploadBytes(),
		CompressThreshold: cfg.CompressThresholdBytes(),
		FilenameMaxLen:    cfg.FilenameMaxLen,
		Timeout:           cfg.Timeout,
		SubtitleLangs:     cfg.SubtitleLangs,
		PendingTTL:        cfg.PendingTTL,
		ProgressInterval:  cfg.ProgressInterval,
	}
}

// FinishedTask 任务结束时的摘要
type FinishedTask struct {
	Task  model.Task
	Phase model.Phase
	Err   error
	Size  int64
}

// Deps 流水线依赖
type Deps struct {
	Registry    *task.Registry
	Gate        *task.Gate
	Extractor   Extractor
	Transcoder  Transcoder
	Messenger   Messenger
	Preferences PreferenceStore
	Stats       StatsRecorder
	OnFinish    func(FinishedTask)
}

// SubmitRequest 用户提交的链接
type SubmitRequest struct {
	UserID int64
	ChatID int64
	URL    string
}

// job 单个任务的执行上下文，挂起期间随 Continuation 保存
type job struct {
	id    string
	key   model.TaskKey
	token string
	lang  string
	prefs model.BotUser

	ctx    context.Context
	cancel context.CancelFunc

	statusMsgID int
	startedAt   time.Time

	quality   string
	selector  string
	audioOnly bool
	info      *model.MediaInfo
	workDir   string
	artifact  *Artifact
	title     string
	fileBase  string
	finalPath string
	size      int64

	registered bool
	counted    bool
	stopReport func()

	finishOnce sync.Once
}

// Pipeline 任务状态机：准入、下载、后处理、交付、清理
type Pipeline struct {
	cfg      PipelineConfig
	deps     Deps
	reporter *Reporter
	conts    *task.ContinuationStore
	logger   *logger.Logger

	mu      sync.Mutex
	jobs    map[string]*job
	closed  bool
	wg      sync.WaitGroup
	rootCtx context.Context
	stopAll context.CancelFunc
}

// NewPipeline 创建流水线
func NewPipeline(cfg PipelineConfig, deps Deps, log *logger.Logger) *Pipeline {
	if cfg.FilenameMaxLen <= 0 {
		cfg.FilenameMaxLen = filename.DefaultMaxLen
	}
	if cfg.PendingTTL <= 0 {
		cfg.PendingTTL = 15 * time.Minute
	}
	rootCtx, stopAll := context.WithCancel(context.Background())
	p := &Pipeline{
		cfg:      cfg,
		deps:     deps,
		reporter: NewReporter(deps.Registry, deps.Messenger, cfg.ProgressInterval, log),
		logger:   log,
		jobs:     make(map[string]*job),
		rootCtx:  rootCtx,
		stopAll:  stopAll,
	}
	p.conts = task.NewContinuationStore(cfg.PendingTTL, p.onContinuationExpired)
	return p
}

// Continuations 挂起记录存储
func (p *Pipeline) Continuations() *task.ContinuationStore {
	return p.conts
}

// Submit 受理链接并在后台执行，返回任务 ID
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	key := model.TaskKey{UserID: req.UserID, ChatID: req.ChatID, URL: req.URL}
	id := key.ID()

	prefs, err := p.deps.Preferences.Preferences(ctx, req.UserID)
	if err != nil {
		return "", fmt.Errorf("读取用户设置失败: %w", err)
	}
	if prefs.Banned {
		return "", ErrBanned
	}

	jobCtx, cancel := context.WithCancel(p.rootCtx)
	j := &job{
		id:        id,
		key:       key,
		token:     task.ShortToken(id),
		lang:      prefs.Language,
		prefs:     *prefs,
		ctx:       jobCtx,
		cancel:    cancel,
		startedAt: time.Now(),
		quality:   prefs.DefaultQuality,
		audioOnly: prefs.WantsAudio(),
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		cancel()
		return "", ErrShuttingDown
	}
	if _, ok := p.jobs[id]; ok {
		p.mu.Unlock()
		cancel()
		return "", ErrDuplicateTask
	}
	p.jobs[id] = j
	p.mu.Unlock()

	msgID, err := p.deps.Messenger.SendText(ctx, req.ChatID, i18n.T(j.lang, "processing_request"), CancelKeyboard(j.lang, j.token))
	if err != nil {
		p.mu.Lock()
		delete(p.jobs, id)
		p.mu.Unlock()
		cancel()
		return "", fmt.Errorf("发送状态消息失败: %w", err)
	}
	j.statusMsgID = msgID

	p.logger.Infof("受理任务: %s", id)
	p.spawn(j, model.PhaseFetching)
	return id, nil
}

// spawn 在新协程中准入并从指定阶段继续执行
func (p *Pipeline) spawn(j *job, from model.Phase) {
	p.wg.Add(1)
	go p.run(j, from)
}

// run 执行一段流水线；除挂起外的所有出口都会进入 finish
func (p *Pipeline) run(j *job, from model.Phase) {
	defer p.wg.Done()

	var suspended bool
	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("内部错误: %v", r)
			suspended = false
		}
		if !suspended {
			p.finish(j, err)
		}
	}()

	if err = p.admit(j); err != nil {
		return
	}
	suspended, err = p.advance(j, from)
}

// admit 经准入控制获得槽位，首次获准时登记任务
func (p *Pipeline) admit(j *job) error {
	ticket, granted := p.deps.Gate.Admit(j.id, j.key.UserID)
	if !granted {
		if j.registered {
			p.deps.Registry.SetPhase(j.id, model.PhaseQueued)
		}
		pos := p.deps.Gate.Position(j.id)
		p.logger.Infof("⏳ 任务排队: %s, 位置 %d", j.id, pos)
		p.editStatus(j, i18n.T(j.lang, "queued", pos), CancelKeyboard(j.lang, j.token))
		if err := ticket.Wait(j.ctx); err != nil {
			return err
		}
	}
	if j.ctx.Err() != nil {
		return j.ctx.Err()
	}
	if j.registered {
		return nil
	}

	t := model.Task{
		ID:              j.id,
		UserID:          j.key.UserID,
		ChatID:          j.key.ChatID,
		URL:             j.key.URL,
		Quality:         j.quality,
		AudioOnly:       j.audioOnly,
		Phase:           model.PhaseFetching,
		StartedAt:       j.startedAt,
		StatusMessageID: j.statusMsgID,
		Language:        j.lang,
	}
	if err := p.deps.Registry.Register(t, j.cancel); err != nil {
		return err
	}
	j.registered = true

	if err := p.deps.Preferences.IncrementActive(j.ctx, j.key.UserID); err != nil {
		p.logger.Warnf("增加进行中任务数失败: %d, %v", j.key.UserID, err)
	} else {
		j.counted = true
	}

	j.stopReport = p.reporter.Watch(j.ctx, j.id)
	return nil
}

// advance 从 from 阶段依次执行，返回是否挂起
func (p *Pipeline) advance(j *job, from model.Phase) (bool, error) {
	stages := []struct {
		phase model.Phase
		run   func(*job) (bool, error)
	}{
		{model.PhaseFetching, p.fetch},
		{model.PhaseAwaitingTitle, p.editTitle},
		{model.PhaseAwaitingRename, p.rename},
		{model.PhasePostProcessing, p.postProcess},
		{model.PhaseUploading, p.deliver},
	}

	started := false
	for _, st := range stages {
		if st.phase == from {
			started = true
		}
		if !started {
			continue
		}
		if err := j.ctx.Err(); err != nil {
			return false, err
		}
		suspended, err := st.run(j)
		if err != nil || suspended {
			return suspended, err
		}
	}
	if !started {
		return false, fmt.Errorf("未知的恢复阶段: %s", from)
	}
	// 最后一段执行期间被取消的任务不算交付成功
	if err := j.ctx.Err(); err != nil {
		return false, err
	}
	return false, nil
}

func (p *Pipeline) setPhase(j *job, phase model.Phase) {
	p.deps.Registry.Update(j.id, func(t *model.Task) {
		t.Phase = phase
	})
	p.deps.Registry.UpdateProgress(j.id, model.ProgressSample{UpdatedAt: time.Now()})
}

// fetch 探测格式、选择清晰度并下载
func (p *Pipeline) fetch(j *job) (bool, error) {
	p.setPhase(j, model.PhaseFetching)

	if j.info == nil {
		info, err := p.deps.Extractor.Probe(j.ctx, j.key.URL)
		if err != nil {
			return false, fmt.Errorf("解析链接失败: %w", err)
		}
		j.info = info
		if j.title == "" {
			j.title = info.Title
		}
	}

	if j.selector == "" {
		if j.audioOnly {
			j.selector = audioSelector
		} else {
			choices := QualityChoices(j.info.Formats)
			if j.quality == model.QualityAsk && len(choices) > 1 {
				return p.askQuality(j, choices)
			}
			f, err := SelectFormat(j.quality, j.info.Formats)
			switch {
			case errors.Is(err, ErrNoFormats) && len(j.info.Formats) > 0:
				// 只有音频或未标注分辨率的格式，交给提取工具决定
				j.selector = "best"
			case err != nil:
				return false, err
			default:
				j.selector = FormatSelector(f)
				j.quality = f.Label()
			}
		}
	}

	if j.workDir == "" {
		j.workDir = filepath.Join(p.cfg.DownloadDir, newWorkDirName())
		if err := os.MkdirAll(j.workDir, 0755); err != nil {
			return false, fmt.Errorf("创建工作目录失败: %w", err)
		}
	}
	p.deps.Registry.Update(j.id, func(t *model.Task) {
		t.Quality = j.quality
		t.FormatSelector = j.selector
		t.Title = j.title
		t.WorkDir = j.workDir
	})

	p.logger.Infof("开始下载: %s, 格式 %s", j.id, j.selector)
	artifact, err := p.deps.Extractor.Fetch(j.ctx, FetchRequest{
		URL:           j.key.URL,
		WorkDir:       j.workDir,
		Format:        j.selector,
		AudioOnly:     j.audioOnly,
		Container:     j.prefs.Container(),
		SubtitleLangs: p.cfg.SubtitleLangs,
		MultiAudio:    j.prefs.MultiAudio,
		Timeout:       p.cfg.Timeout,
		OnProgress: func(s model.ProgressSample) {
			p.deps.Registry.UpdateProgress(j.id, s)
		},
	})
	if err != nil {
		return false, fmt.Errorf("下载失败: %w", err)
	}
	j.artifact = artifact
	if j.title == "" {
		j.title = artifact.Title
	}
	if j.title == "" {
		j.title = "video"
	}
	return false, nil
}

func newWorkDirName() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}

// askQuality 挂起等待用户选择清晰度
func (p *Pipeline) askQuality(j *job, choices []string) (bool, error) {
	kb := make(Keyboard, 0, len(choices)/2+2)
	var row []Button
	for _, label := range choices {
		row = append(row, Button{Text: label, Data: CallbackQuality + j.token + ":" + label})
		if len(row) == 2 {
			kb = append(kb, row)
			row = nil
		}
	}
	if len(row) > 0 {
		kb = append(kb, row)
	}
	kb = append(kb, CancelKeyboard(j.lang, j.token)...)

	prompt := i18n.T(j.lang, "choose_quality", html.EscapeString(j.title))
	return p.suspend(j, &task.Continuation{
		Key:     task.ContinuationKey{UserID: j.key.UserID, ChatID: j.key.ChatID, Purpose: task.PurposeQuality, Ref: j.token},
		TaskID:  j.id,
		Resume:  model.PhaseFetching,
		Options: choices,
	}, model.PhaseAwaitingQuality, prompt, kb)
}

// editTitle 按设置挂起等待新标题
func (p *Pipeline) editTitle(j *job) (bool, error) {
	if !j.prefs.EditMetadata {
		return false, nil
	}
	prompt := i18n.T(j.lang, "edit_title_prompt", html.EscapeString(j.title))
	return p.suspend(j, &task.Continuation{
		Key:    task.ContinuationKey{UserID: j.key.UserID, ChatID: j.key.ChatID, Purpose: task.PurposeTitle},
		TaskID: j.id,
		Resume: model.PhaseAwaitingRename,
	}, model.PhaseAwaitingTitle, prompt, CancelKeyboard(j.lang, j.token))
}

// rename 按设置挂起等待新文件名
func (p *Pipeline) rename(j *job) (bool, error) {
	if !j.prefs.RenameFile {
		return false, nil
	}
	current := j.fileBase
	if current == "" {
		current = j.title
	}
	prompt := i18n.T(j.lang, "rename_prompt", html.EscapeString(filename.Sanitize(current, p.cfg.FilenameMaxLen)))
	return p.suspend(j, &task.Continuation{
		Key:    task.ContinuationKey{UserID: j.key.UserID, ChatID: j.key.ChatID, Purpose: task.PurposeRename},
		TaskID: j.id,
		Resume: model.PhasePostProcessing,
	}, model.PhaseAwaitingRename, prompt, CancelKeyboard(j.lang, j.token))
}

// suspend 释放槽位并保存挂起记录，等待用户输入
func (p *Pipeline) suspend(j *job, c *task.Continuation, phase model.Phase, prompt string, kb Keyboard) (bool, error) {
	c.Context = j
	p.setPhase(j, phase)
	p.deps.Gate.Release(j.id)
	p.editStatus(j, prompt, kb)

	if displaced := p.conts.Put(c); displaced != nil {
		if old, ok := displaced.Context.(*job); ok {
			p.logger.Infof("挂起任务被替代: %s", old.id)
			go p.finish(old, errSuperseded)
		}
	}

	// 挂起的同时被取消：收回记录由本段完成清理
	if err := j.ctx.Err(); err != nil {
		if _, ok := p.conts.TakeTask(j.id); ok {
			return false, err
		}
	}
	p.logger.Infof("任务挂起等待输入: %s, %s", j.id, phase)
	return true, nil
}

// ResumeQuality 用户选择清晰度后恢复下载
func (p *Pipeline) ResumeQuality(userID, chatID int64, token, label string) error {
	key := task.ContinuationKey{UserID: userID, ChatID: chatID, Purpose: task.PurposeQuality, Ref: token}
	c, ok := p.conts.Peek(key)
	if !ok {
		return ErrNoPending
	}
	if !contains(c.Options, label) {
		return ErrInvalidChoice
	}
	if c, ok = p.conts.Take(key); !ok {
		return ErrNoPending
	}

	j := c.Context.(*job)
	j.quality = label
	p.logger.Infof("用户选择清晰度: %s, %s", j.id, label)
	p.spawn(j, c.Resume)
	return nil
}

// ResumeText 处理标题或文件名输入，/skip 保留原值；没有等待中的输入返回 false
func (p *Pipeline) ResumeText(userID, chatID int64, text string) bool {
	text = strings.TrimSpace(text)
	for _, purpose := range []task.Purpose{task.PurposeTitle, task.PurposeRename} {
		c, ok := p.conts.Take(task.ContinuationKey{UserID: userID, ChatID: chatID, Purpose: purpose})
		if !ok {
			continue
		}
		j := c.Context.(*job)
		if text != "" && text != skipCommand {
			if purpose == task.PurposeTitle {
				j.title = text
				p.deps.Registry.Update(j.id, func(t *model.Task) { t.Title = text })
			} else {
				j.fileBase = text
			}
		}
		p.spawn(j, c.Resume)
		return true
	}
	return false
}

// postProcess 压缩、烧录字幕并按最终文件名改名
func (p *Pipeline) postProcess(j *job) (bool, error) {
	p.setPhase(j, model.PhasePostProcessing)
	media := j.artifact.MediaPath

	onProgress := func(percent float64) {
		p.deps.Registry.UpdateProgress(j.id, model.ProgressSample{Percent: percent, UpdatedAt: time.Now()})
	}

	if j.prefs.Compression && !j.audioOnly {
		size, err := fileSize(media)
		if err != nil {
			return false, err
		}
		if size > p.cfg.CompressThreshold {
			out := filepath.Join(j.workDir, "compressed."+j.prefs.Container())
			p.logger.Infof("压缩文件: %s, %s", j.id, FormatBytes(size))
			if err := p.deps.Transcoder.Compress(j.ctx, TranscodeRequest{
				Input:      media,
				Output:     out,
				Duration:   j.duration(),
				OnProgress: onProgress,
			}); err != nil {
				return false, fmt.Errorf("压缩失败: %w", err)
			}
			os.Remove(media)
			media = out
		}
	}

	if j.artifact.SubtitlePath != "" && !j.audioOnly && j.prefs.BurnSubtitles {
		out := filepath.Join(j.workDir, "subbed"+filepath.Ext(media))
		if err := p.deps.Transcoder.BurnSubtitles(j.ctx, TranscodeRequest{
			Input:      media,
			Output:     out,
			Subtitles:  j.artifact.SubtitlePath,
			Duration:   j.duration(),
			OnProgress: onProgress,
		}); err != nil {
			return false, fmt.Errorf("烧录字幕失败: %w", err)
		}
		os.Remove(media)
		media = out
	}

	base := j.fileBase
	if base == "" {
		base = j.title
	}
	ext := filepath.Ext(media)
	if ext == "" {
		ext = "." + j.prefs.Container()
		if j.audioOnly {
			ext = ".mp3"
		}
	}
	// 先截断再改名，避免超长文件名
	final := filepath.Join(j.workDir, filename.Build(base, ext, p.cfg.FilenameMaxLen))
	if final != media {
		if err := os.Rename(media, final); err != nil {
			return false, fmt.Errorf("重命名失败: %w", err)
		}
	}
	j.finalPath = final
	return false, nil
}

func (j *job) duration() float64 {
	if j.artifact != nil && j.artifact.Duration > 0 {
		return j.artifact.Duration
	}
	if j.info != nil {
		return j.info.Duration
	}
	return 0
}

// deliver 检查大小并上传到会话
func (p *Pipeline) deliver(j *job) (bool, error) {
	size, err := fileSize(j.finalPath)
	if err != nil {
		return false, err
	}
	j.size = size
	if size > p.cfg.MaxUploadBytes {
		return false, fmt.Errorf("%w: %.2fMB", ErrTooLarge, megabytes(size))
	}

	p.setPhase(j, model.PhaseUploading)
	p.editStatus(j, i18n.T(j.lang, "uploading_file", html.EscapeString(filepath.Base(j.finalPath)), megabytes(size)), CancelKeyboard(j.lang, j.token))

	thumb := p.prepareThumbnail(j)

	if j.prefs.SendPreview && !j.audioOnly {
		p.sendPreview(j)
	}

	kind := MediaVideo
	if j.audioOnly {
		kind = MediaAudio
	}
	uploadStart := time.Now()
	err = p.deps.Messenger.SendMedia(j.ctx, Upload{
		ChatID:    j.key.ChatID,
		Kind:      kind,
		Path:      j.finalPath,
		Caption:   html.EscapeString(j.title),
		Title:     j.title,
		ThumbPath: thumb,
		Duration:  int(j.duration()),
		OnProgress: func(written, total int64) {
			p.deps.Registry.UpdateProgress(j.id, sampleFrom(written, total, uploadStart))
		},
	})
	if ctxErr := j.ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return false, fmt.Errorf("上传失败: %w", err)
	}

	if j.prefs.SendSubtitle && j.artifact.SubtitlePath != "" {
		if err := p.deps.Messenger.SendMedia(j.ctx, Upload{
			ChatID: j.key.ChatID,
			Kind:   MediaDocument,
			Path:   j.artifact.SubtitlePath,
		}); err != nil {
			p.logger.Warnf("发送字幕失败: %s, %v", j.id, err)
		}
	}
	if j.prefs.SendThumbnail && thumb != "" {
		if err := p.deps.Messenger.SendMedia(j.ctx, Upload{
			ChatID: j.key.ChatID,
			Kind:   MediaPhoto,
			Path:   thumb,
		}); err != nil {
			p.logger.Warnf("发送缩略图失败: %s, %v", j.id, err)
		}
	}
	return false, nil
}

// prepareThumbnail 优先使用用户自定义缩略图，否则使用下载得到的缩略图
func (p *Pipeline) prepareThumbnail(j *job) string {
	dst := filepath.Join(j.workDir, "thumb.jpg")

	if j.prefs.ThumbnailFileID != "" {
		src := filepath.Join(j.workDir, "custom_thumb")
		err := p.deps.Messenger.DownloadFile(j.ctx, j.prefs.ThumbnailFileID, src)
		if err == nil {
			err = thumbnail.Prepare(src, dst)
		}
		if err == nil {
			return dst
		}
		p.logger.Warnf("自定义缩略图不可用: %s, %v", j.id, err)
	}

	if j.artifact.ThumbnailPath != "" && thumbnail.IsImage(j.artifact.ThumbnailPath) {
		if err := thumbnail.Prepare(j.artifact.ThumbnailPath, dst); err != nil {
			p.logger.Warnf("处理缩略图失败: %s, %v", j.id, err)
			return ""
		}
		return dst
	}
	return ""
}

func (p *Pipeline) sendPreview(j *job) {
	out := filepath.Join(j.workDir, "preview.mp4")
	if err := p.deps.Transcoder.Preview(j.ctx, j.finalPath, out, previewLength); err != nil {
		p.logger.Warnf("生成预览失败: %s, %v", j.id, err)
		return
	}
	if err := p.deps.Messenger.SendMedia(j.ctx, Upload{
		ChatID:  j.key.ChatID,
		Kind:    MediaVideo,
		Path:    out,
		Caption: i18n.T(j.lang, "preview"),
	}); err != nil {
		p.logger.Warnf("发送预览失败: %s, %v", j.id, err)
	}
	os.Remove(out)
}

// finish 任务终结：注销、释放槽位、计数回退、清理文件、统计与通知，只执行一次
func (p *Pipeline) finish(j *job, cause error) {
	j.finishOnce.Do(func() {
		phase := terminalPhase(cause)
		snapshot, _ := p.deps.Registry.Get(j.id)
		if snapshot.ID == "" {
			snapshot = model.Task{ID: j.id, UserID: j.key.UserID, ChatID: j.key.ChatID, URL: j.key.URL, StartedAt: j.startedAt}
		}
		snapshot.Phase = phase
		snapshot.Title = j.title

		p.deps.Registry.Deregister(j.id)
		if j.stopReport != nil {
			j.stopReport()
		}
		p.deps.Gate.Withdraw(j.id)
		j.cancel()

		// 清理阶段不受任务取消影响
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if j.counted {
			if err := p.deps.Preferences.DecrementActive(ctx, j.key.UserID); err != nil {
				p.logger.Errorf("回退进行中任务数失败: %d, %v", j.key.UserID, err)
			}
		}

		if j.workDir != "" {
			if err := os.RemoveAll(j.workDir); err != nil {
				p.logger.Errorf("清理工作目录失败: %s, %v", j.workDir, err)
			}
		}

		elapsed := time.Since(j.startedAt)
		if phase == model.PhaseDone && p.deps.Stats != nil {
			if err := p.deps.Stats.RecordDelivery(ctx, model.DownloadRecord{
				UserID:     j.key.UserID,
				Title:      j.title,
				URL:        j.key.URL,
				Size:       j.size,
				DurationMs: elapsed.Milliseconds(),
				AudioOnly:  j.audioOnly,
			}); err != nil {
				p.logger.Errorf("记录统计失败: %s, %v", j.id, err)
			}
		}

		p.audit(ctx, j, phase, cause, elapsed)
		p.notify(ctx, j, phase, cause, elapsed)

		p.mu.Lock()
		delete(p.jobs, j.id)
		p.mu.Unlock()

		if p.deps.OnFinish != nil {
			p.deps.OnFinish(FinishedTask{Task: snapshot, Phase: phase, Err: cause, Size: j.size})
		}
	})
}

func terminalPhase(cause error) model.Phase {
	switch {
	case cause == nil:
		return model.PhaseDone
	case errors.Is(cause, errCancelled), errors.Is(cause, errExpired),
		errors.Is(cause, errSuperseded), errors.Is(cause, context.Canceled):
		return model.PhaseCancelled
	default:
		return model.PhaseFailed
	}
}

func (p *Pipeline) audit(ctx context.Context, j *job, phase model.Phase, cause error, elapsed time.Duration) {
	var line string
	switch phase {
	case model.PhaseDone:
		p.logger.Infof("✅ 任务完成: %s, %s, 耗时 %s", j.id, FormatBytes(j.size), elapsed.Round(time.Millisecond))
		line = fmt.Sprintf("User %d downloaded: %s (%.2fMB)", j.key.UserID, j.title, megabytes(j.size))
	case model.PhaseCancelled:
		p.logger.Infof("🚫 任务取消: %s, %v", j.id, cause)
		line = fmt.Sprintf("User %d cancelled: %s", j.key.UserID, j.key.URL)
	default:
		p.logger.Errorf("❌ 任务失败: %s, %v", j.id, cause)
		line = fmt.Sprintf("User %d failed: %s\n%s", j.key.UserID, j.key.URL, truncateRunes(cause.Error(), maxUserErrorRunes))
	}
	if err := p.deps.Messenger.SendLog(ctx, line); err != nil {
		p.logger.Debugf("写入日志频道失败: %v", err)
	}
}

func (p *Pipeline) notify(ctx context.Context, j *job, phase model.Phase, cause error, elapsed time.Duration) {
	if j.statusMsgID == 0 {
		return
	}
	var text string
	switch {
	case phase == model.PhaseDone:
		text = i18n.T(j.lang, "done", elapsed.Round(time.Second))
	case errors.Is(cause, errExpired):
		text = i18n.T(j.lang, "expired")
	case errors.Is(cause, errSuperseded):
		text = i18n.T(j.lang, "superseded")
	case phase == model.PhaseCancelled:
		text = i18n.T(j.lang, "download_cancelled")
	case errors.Is(cause, ErrTooLarge):
		text = i18n.T(j.lang, "too_large", megabytes(j.size), p.cfg.MaxUploadBytes>>20)
	case errors.Is(cause, ErrNoFormats):
		text = i18n.T(j.lang, "no_formats")
	default:
		text = i18n.T(j.lang, "failed", html.EscapeString(truncateRunes(cause.Error(), maxUserErrorRunes)))
	}

	err := p.deps.Messenger.EditText(ctx, j.key.ChatID, j.statusMsgID, text, nil)
	if errors.Is(err, ErrMessageGone) {
		_, err = p.deps.Messenger.SendText(ctx, j.key.ChatID, text, nil)
	}
	if err != nil {
		p.logger.Warnf("通知用户失败: %s, %v", j.id, err)
	}
}

func (p *Pipeline) editStatus(j *job, text string, kb Keyboard) {
	if j.statusMsgID == 0 {
		return
	}
	if err := p.deps.Messenger.EditText(j.ctx, j.key.ChatID, j.statusMsgID, text, kb); err != nil {
		p.logger.Debugf("更新状态消息失败: %s, %v", j.id, err)
	}
}

// onContinuationExpired 等待输入超时，按取消处理
func (p *Pipeline) onContinuationExpired(c *task.Continuation) {
	j, ok := c.Context.(*job)
	if !ok {
		return
	}
	p.logger.Infof("等待输入超时: %s", j.id)
	go p.finish(j, errExpired)
}

// Abort 取消任务：挂起中的直接终结，运行或排队中的通过 ctx 中断
func (p *Pipeline) Abort(taskID string) bool {
	p.mu.Lock()
	j, ok := p.jobs[taskID]
	p.mu.Unlock()
	if !ok {
		return false
	}

	if c, ok := p.conts.TakeTask(taskID); ok {
		if cj, ok := c.Context.(*job); ok {
			go p.finish(cj, errCancelled)
			return true
		}
	}

	if !p.deps.Registry.Cancel(taskID) {
		j.cancel()
	}
	return true
}

// Owner 未结束任务的发起用户
func (p *Pipeline) Owner(taskID string) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	j, ok := p.jobs[taskID]
	if !ok {
		return 0, false
	}
	return j.key.UserID, true
}

// Active 未结束的任务数，包括排队和挂起的任务
func (p *Pipeline) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobs)
}

// Shutdown 取消全部任务并等待清理完成
func (p *Pipeline) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.stopAll()
	for _, c := range p.conts.Flush() {
		if j, ok := c.Context.(*job); ok {
			p.finish(j, context.Canceled)
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("等待任务结束超时: %w", ctx.Err())
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("读取文件失败: %w", err)
	}
	return info.Size(), nil
}

func megabytes(n int64) float64 {
	return float64(n) / (1 << 20)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
