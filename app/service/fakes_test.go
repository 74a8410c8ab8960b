package service

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"vidrelay/app/logger"
	"vidrelay/app/model"
	"vidrelay/app/task"

	"github.com/stretchr/testify/require"
)

type edit struct {
	msgID int
	text  string
	kb    Keyboard
}

type fakeMessenger struct {
	mu      sync.Mutex
	nextID  int
	sent    []string
	edits   []edit
	uploads []Upload
	logs    []string
	editErr func(msgID int) error
	// uploadHook 在记录上传前调用，返回错误即上传失败
	uploadHook func(ctx context.Context, u Upload) error
}

func (m *fakeMessenger) SendText(_ context.Context, _ int64, text string, _ Keyboard) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.sent = append(m.sent, text)
	return m.nextID, nil
}

func (m *fakeMessenger) EditText(_ context.Context, _ int64, messageID int, text string, kb Keyboard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.editErr != nil {
		if err := m.editErr(messageID); err != nil {
			return err
		}
	}
	m.edits = append(m.edits, edit{msgID: messageID, text: text, kb: kb})
	return nil
}

func (m *fakeMessenger) Delete(context.Context, int64, int) error { return nil }

func (m *fakeMessenger) SendMedia(ctx context.Context, u Upload) error {
	if _, err := os.Stat(u.Path); err != nil {
		return err
	}
	if m.uploadHook != nil {
		if err := m.uploadHook(ctx, u); err != nil {
			return err
		}
	}
	if u.OnProgress != nil {
		u.OnProgress(1, 1)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads = append(m.uploads, u)
	return nil
}

func (m *fakeMessenger) SendLog(_ context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, text)
	return nil
}

func (m *fakeMessenger) DownloadFile(context.Context, string, string) error {
	return errors.New("not available")
}

func (m *fakeMessenger) editsFor(msgID int) []edit {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []edit
	for _, e := range m.edits {
		if e.msgID == msgID {
			out = append(out, e)
		}
	}
	return out
}

func (m *fakeMessenger) lastEdit(msgID int) edit {
	edits := m.editsFor(msgID)
	if len(edits) == 0 {
		return edit{}
	}
	return edits[len(edits)-1]
}

func (m *fakeMessenger) uploadsOf(kind MediaKind) []Upload {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Upload
	for _, u := range m.uploads {
		if u.Kind == kind {
			out = append(out, u)
		}
	}
	return out
}

func (m *fakeMessenger) uploadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.uploads)
}

// fakeExtractor 按 URL 阻塞下载，直到对应通道关闭
type fakeExtractor struct {
	mu       sync.Mutex
	info     model.MediaInfo
	fetchErr error
	size     int64
	blocks   map[string]chan struct{}
	requests []FetchRequest
	started  chan string
	// 同时产出字幕与缩略图文件
	withSubtitles bool
	withThumbnail bool
}

func newFakeExtractor() *fakeExtractor {
	return &fakeExtractor{
		info: model.MediaInfo{
			ID:       "abc",
			Title:    "Sample Clip",
			Duration: 12,
			Formats:  sampleFormats(),
		},
		size:    4,
		blocks:  make(map[string]chan struct{}),
		started: make(chan string, 16),
	}
}

func (e *fakeExtractor) block(url string) chan struct{} {
	e.mu.Lock()
	defer e.mu.Unlock()
	ch := make(chan struct{})
	e.blocks[url] = ch
	return ch
}

func (e *fakeExtractor) Probe(ctx context.Context, _ string) (*model.MediaInfo, error) {
	info := e.info
	return &info, ctx.Err()
}

func (e *fakeExtractor) Fetch(ctx context.Context, req FetchRequest) (*Artifact, error) {
	e.mu.Lock()
	e.requests = append(e.requests, req)
	ch := e.blocks[req.URL]
	e.mu.Unlock()

	e.started <- req.URL
	if req.OnProgress != nil {
		req.OnProgress(model.ProgressSample{Percent: 50, Transferred: 2, Total: 4, UpdatedAt: time.Now()})
	}
	if ch != nil {
		select {
		case <-ch:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if e.fetchErr != nil {
		return nil, e.fetchErr
	}

	path := filepath.Join(req.WorkDir, "media.mp4")
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	// 大文件用稀疏文件模拟
	if err := f.Truncate(e.size); err != nil {
		return nil, err
	}
	art := &Artifact{MediaPath: path, Title: e.info.Title, Duration: e.info.Duration}
	if e.withSubtitles {
		art.SubtitlePath = filepath.Join(req.WorkDir, "media.en.srt")
		if err := os.WriteFile(art.SubtitlePath, []byte("1\n00:00:00,000 --> 00:00:01,000\nhi\n"), 0644); err != nil {
			return nil, err
		}
	}
	if e.withThumbnail {
		art.ThumbnailPath = filepath.Join(req.WorkDir, "media.png")
		if err := writePNG(art.ThumbnailPath); err != nil {
			return nil, err
		}
	}
	return art, nil
}

func writePNG(path string) error {
	img := image.NewRGBA(image.Rect(0, 0, 64, 36))
	for x := 0; x < 64; x++ {
		for y := 0; y < 36; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 4), G: 80, B: 160, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

func (e *fakeExtractor) lastRequest() FetchRequest {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests[len(e.requests)-1]
}

type fakeTranscoder struct {
	mu    sync.Mutex
	calls []string
	// failOn 指定失败的操作，失败前先写出半成品
	failOn string
}

func (tc *fakeTranscoder) record(name string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.calls = append(tc.calls, name)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

func (tc *fakeTranscoder) transcode(name string, req TranscodeRequest) error {
	tc.record(name)
	tc.mu.Lock()
	fail := tc.failOn == name
	tc.mu.Unlock()
	if fail {
		if err := os.WriteFile(req.Output, []byte("partial"), 0644); err != nil {
			return err
		}
		return errors.New("ffmpeg exited with status 1")
	}
	return copyFile(req.Input, req.Output)
}

func (tc *fakeTranscoder) Compress(_ context.Context, req TranscodeRequest) error {
	return tc.transcode("compress", req)
}

func (tc *fakeTranscoder) BurnSubtitles(_ context.Context, req TranscodeRequest) error {
	return tc.transcode("burn", req)
}

func (tc *fakeTranscoder) callNames() []string {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]string(nil), tc.calls...)
}

func (tc *fakeTranscoder) Preview(_ context.Context, input, output string, _ time.Duration) error {
	tc.record("preview")
	return copyFile(input, output)
}

// fakeStore 内存中的用户设置与计数
type fakeStore struct {
	mu         sync.Mutex
	prefs      map[int64]model.BotUser
	active     map[int64]int
	increments int
	decrements int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		prefs:  make(map[int64]model.BotUser),
		active: make(map[int64]int),
	}
}

func (s *fakeStore) set(u model.BotUser) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prefs[u.TelegramID] = u
}

func (s *fakeStore) Preferences(_ context.Context, userID int64) (*model.BotUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.prefs[userID]
	if !ok {
		u = *model.NewBotUser(userID, "en")
		u.DefaultQuality = model.QualityBest
	}
	return &u, nil
}

func (s *fakeStore) IncrementActive(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.increments++
	s.active[userID]++
	return nil
}

func (s *fakeStore) DecrementActive(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decrements++
	if s.active[userID] > 0 {
		s.active[userID]--
	}
	return nil
}

func (s *fakeStore) activeFor(userID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active[userID]
}

type fakeStats struct {
	mu      sync.Mutex
	records []model.DownloadRecord
}

func (s *fakeStats) RecordDelivery(_ context.Context, rec model.DownloadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	return nil
}

func (s *fakeStats) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

type harness struct {
	pipeline   *Pipeline
	registry   *task.Registry
	gate       *task.Gate
	messenger  *fakeMessenger
	extractor  *fakeExtractor
	transcoder *fakeTranscoder
	store      *fakeStore
	stats      *fakeStats
	finished   chan FinishedTask
	dir        string
}

func newHarness(t *testing.T, limit int, tweak func(*PipelineConfig)) *harness {
	t.Helper()
	h := &harness{
		registry:   task.NewRegistry(),
		gate:       task.NewGate(limit, 0),
		messenger:  &fakeMessenger{},
		extractor:  newFakeExtractor(),
		transcoder: &fakeTranscoder{},
		store:      newFakeStore(),
		stats:      &fakeStats{},
		finished:   make(chan FinishedTask, 16),
		dir:        t.TempDir(),
	}
	cfg := PipelineConfig{
		DownloadDir:       h.dir,
		MaxUploadBytes:    2000 << 20,
		CompressThreshold: 1000 << 20,
		FilenameMaxLen:    100,
		Timeout:           time.Minute,
		SubtitleLangs:     []string{"en"},
		PendingTTL:        time.Minute,
		ProgressInterval:  20 * time.Millisecond,
	}
	if tweak != nil {
		tweak(&cfg)
	}
	h.pipeline = NewPipeline(cfg, Deps{
		Registry:    h.registry,
		Gate:        h.gate,
		Extractor:   h.extractor,
		Transcoder:  h.transcoder,
		Messenger:   h.messenger,
		Preferences: h.store,
		Stats:       h.stats,
		OnFinish: func(ft FinishedTask) {
			h.finished <- ft
		},
	}, logger.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.pipeline.Shutdown(ctx)
	})
	return h
}

func (h *harness) wait(t *testing.T) FinishedTask {
	t.Helper()
	select {
	case ft := <-h.finished:
		return ft
	case <-time.After(5 * time.Second):
		t.Fatal("task did not finish")
		return FinishedTask{}
	}
}

func (h *harness) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case url := <-h.extractor.started:
		return url
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not start")
		return ""
	}
}

// assertClean 终结后不能留下任何工作文件或内存状态
func (h *harness) assertClean(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	require.Empty(t, entries, "work dirs must be removed")
	require.Equal(t, 0, h.registry.Len())
	require.Equal(t, 0, h.gate.ActiveCount())
	require.Empty(t, h.gate.QueuedIDs())
	require.Equal(t, 0, h.pipeline.Continuations().Len())
}
