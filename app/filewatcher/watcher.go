package filewatcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"vidrelay/app/config"
	"vidrelay/app/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/robfig/cron/v3"
)

// Owner 判断工作目录是否仍被任务占用
type Owner interface {
	Owns(workDir string) bool
}

// Janitor 监控下载目录并定期清理无主的工作目录
type Janitor struct {
	dir     string
	grace   time.Duration
	spec    string
	owner   Owner
	logger  *logger.Logger
	watcher *fsnotify.Watcher
	cron    *cron.Cron

	mu       sync.Mutex
	seen     map[string]time.Time // fsnotify 观察到的创建时间
	stopCh   chan struct{}
	wg       sync.WaitGroup
	watching bool
}

// NewJanitor 创建清理器，dir 为下载根目录
func NewJanitor(dir string, cfg config.JanitorConfig, owner Owner, log *logger.Logger) (*Janitor, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("创建下载目录失败: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("创建文件监控器失败: %w", err)
	}

	spec := cfg.SweepSpec
	if spec == "" {
		spec = "@every 10m"
	}
	return &Janitor{
		dir:     filepath.Clean(dir),
		grace:   cfg.Grace,
		spec:    spec,
		owner:   owner,
		logger:  log,
		watcher: watcher,
		cron:    cron.New(),
		seen:    make(map[string]time.Time),
		stopCh:  make(chan struct{}),
	}, nil
}

// Schedule 在清理器的调度器上注册额外的定时任务
func (j *Janitor) Schedule(spec string, fn func()) error {
	if _, err := j.cron.AddFunc(spec, fn); err != nil {
		return fmt.Errorf("注册定时任务失败: %s, %w", spec, err)
	}
	return nil
}

// Start 启动监控与定期清扫，启动时先清扫一次
func (j *Janitor) Start() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.watching {
		return fmt.Errorf("清理器已经在运行")
	}
	if err := j.watcher.Add(j.dir); err != nil {
		return fmt.Errorf("添加监控目录失败: %w", err)
	}
	if _, err := j.cron.AddFunc(j.spec, func() { j.Sweep() }); err != nil {
		return fmt.Errorf("清扫计划无效: %s, %w", j.spec, err)
	}

	j.watching = true
	j.wg.Add(1)
	go j.watchLoop()
	j.cron.Start()

	go j.Sweep()
	j.logger.Infof("清理器已启动，监控目录: %s，宽限期 %s", j.dir, j.grace)
	return nil
}

// Stop 停止监控与调度
func (j *Janitor) Stop() error {
	j.mu.Lock()
	if !j.watching {
		j.mu.Unlock()
		return nil
	}
	j.watching = false
	j.mu.Unlock()

	close(j.stopCh)
	err := j.watcher.Close()
	j.wg.Wait()
	<-j.cron.Stop().Done()

	j.logger.Info("清理器已停止")
	return err
}

func (j *Janitor) watchLoop() {
	defer j.wg.Done()

	for {
		select {
		case event, ok := <-j.watcher.Events:
			if !ok {
				return
			}
			j.handleEvent(event)

		case err, ok := <-j.watcher.Errors:
			if !ok {
				return
			}
			j.logger.Errorf("清理器监控错误: %v", err)

		case <-j.stopCh:
			return
		}
	}
}

func (j *Janitor) handleEvent(event fsnotify.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	switch {
	case event.Op&fsnotify.Create != 0:
		j.seen[event.Name] = time.Now()
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		delete(j.seen, event.Name)
	}
}

// createdAt 优先使用监控到的创建时间，否则使用修改时间
func (j *Janitor) createdAt(path string, info os.FileInfo) time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	if t, ok := j.seen[path]; ok {
		return t
	}
	return info.ModTime()
}

// Sweep 删除超过宽限期且不属于任何任务的条目，返回删除数量
func (j *Janitor) Sweep() int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		j.logger.Errorf("读取下载目录失败: %s, %v", j.dir, err)
		return 0
	}

	removed := 0
	now := time.Now()
	for _, entry := range entries {
		path := filepath.Join(j.dir, entry.Name())
		if j.owner.Owns(path) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if now.Sub(j.createdAt(path, info)) < j.grace {
			continue
		}

		if err := os.RemoveAll(path); err != nil {
			j.logger.Warnf("清理残留文件失败: %s, %v", path, err)
			continue
		}
		j.mu.Lock()
		delete(j.seen, path)
		j.mu.Unlock()
		removed++
		j.logger.Warnf("清理无主的残留文件: %s", path)
	}
	if removed > 0 {
		j.logger.Infof("本次清扫删除了 %d 个残留条目", removed)
	}
	return removed
}
