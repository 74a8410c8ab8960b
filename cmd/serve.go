package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vidrelay/app/bot"
	"vidrelay/app/config"
	"vidrelay/app/database"
	"vidrelay/app/filewatcher"
	"vidrelay/app/logger"
	"vidrelay/app/server"
	"vidrelay/app/service"
	"vidrelay/app/task"
	"vidrelay/app/utils/downloader"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
)

// 管理员重启时的退出码，由进程管理器负责拉起
const restartExitCode = 3

var serveCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "启动机器人",
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.Load()

		// 创建日志器
		log := logger.New(cfg.Log)

		restart, err := serve(cfg, log)
		if err != nil {
			log.Errorf("运行失败: %v", err)
			log.Close()
			os.Exit(1)
		}
		log.Info("服务已退出")
		log.Close()
		if restart {
			os.Exit(restartExitCode)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func newBotAPI(cfg config.BotConfig) (*tgbotapi.BotAPI, error) {
	var api *tgbotapi.BotAPI
	var err error
	if cfg.APIEndpoint != "" {
		api, err = tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, cfg.APIEndpoint)
	} else {
		api, err = tgbotapi.NewBotAPI(cfg.Token)
	}
	if err != nil {
		return nil, fmt.Errorf("连接 Bot API 失败: %w", err)
	}
	api.Debug = cfg.Debug
	return api, nil
}

// serve 组装全部组件并阻塞到收到信号或重启指令，返回是否需要重启
func serve(cfg *config.Config, log *logger.Logger) (bool, error) {
	// 初始化数据库
	if err := database.Init(cfg, log); err != nil {
		return false, fmt.Errorf("数据库初始化失败: %w", err)
	}
	defer database.Close()
	db := database.GetDB()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api, err := newBotAPI(cfg.Bot)
	if err != nil {
		return false, err
	}

	files := downloader.New(downloader.DefaultConfig())
	defer files.Close()

	registry := task.NewRegistry()
	gate := task.NewGate(cfg.Download.MaxConcurrent, cfg.Download.PerUserLimit)

	users := service.NewUserService(db, cfg.Bot.DefaultLanguage, log.Named("users"))
	stats := service.NewStatsService(db)
	sysConfig := service.NewSystemConfigService(db, gate, log.Named("config"))
	limit := sysConfig.ApplyStored(ctx, cfg.Download.MaxConcurrent)
	log.Infof("并发上限: %d", limit)

	// 进程刚启动时没有任务在运行，清零上次遗留的计数
	if err := users.ReconcileActive(ctx, registry.CountByUser()); err != nil {
		log.Warnf("校正进行中任务计数失败: %v", err)
	}

	extractor := service.NewYtdlpExtractor(cfg.Download, cfg.Transcode.FFmpegPath, log.Named("ytdlp"))
	if cfg.Download.AutoInstall {
		if err := extractor.Install(ctx); err != nil {
			return false, fmt.Errorf("安装 yt-dlp 失败: %w", err)
		}
	}
	transcoder := service.NewFFmpegTranscoder(cfg.Transcode, log.Named("ffmpeg"))
	client := bot.NewClient(api, files, cfg.Bot.LogChannelID, log.Named("telegram"))

	pipeline := service.NewPipeline(service.NewPipelineConfig(cfg.Download), service.Deps{
		Registry:    registry,
		Gate:        gate,
		Extractor:   extractor,
		Transcoder:  transcoder,
		Messenger:   client,
		Preferences: users,
		Stats:       stats,
		OnFinish: func(f service.FinishedTask) {
			log.Debugf("任务结束: %s, %s, %d", f.Task.ID, f.Phase, f.Size)
		},
	}, log.Named("pipeline"))
	canceller := service.NewCanceller(registry, gate, pipeline, log.Named("cancel"))

	restartCh := make(chan struct{}, 1)
	b := bot.New(cfg, bot.Deps{
		API:          api,
		Client:       client,
		Users:        users,
		Stats:        stats,
		SystemConfig: sysConfig,
		Pipeline:     pipeline,
		Canceller:    canceller,
		Registry:     registry,
		Gate:         gate,
		Restart: func() {
			select {
			case restartCh <- struct{}{}:
			default:
			}
		},
	}, log.Named("bot"))

	janitor, err := filewatcher.NewJanitor(cfg.Download.Dir, cfg.Janitor, registry, log.Named("janitor"))
	if err != nil {
		return false, err
	}
	if cfg.Janitor.DailyReport != "" {
		if err := janitor.Schedule(cfg.Janitor.DailyReport, func() { b.DailyReport(ctx) }); err != nil {
			return false, err
		}
	}
	if err := janitor.Start(); err != nil {
		return false, err
	}
	defer janitor.Stop()

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(cfg, server.Deps{
			Registry:     registry,
			Gate:         gate,
			Canceller:    canceller,
			SystemConfig: sysConfig,
			Stats:        stats,
			Users:        users,
		}, log.Named("http"))
		go func() {
			if err := srv.Start(); err != nil {
				log.Errorf("启动服务器失败: %v", err)
			}
		}()
	}

	botCtx, stopBot := context.WithCancel(ctx)
	botDone := make(chan error, 1)
	go func() { botDone <- b.Run(botCtx) }()
	b.AnnounceStartup(ctx)

	restart, botStopped := false, false
	select {
	case <-ctx.Done():
		log.Info("收到关闭信号，正在关闭...")
	case <-restartCh:
		log.Info("收到重启指令，正在关闭...")
		restart = true
	case err := <-botDone:
		log.Errorf("机器人异常退出: %v", err)
		botStopped = true
	}
	stopBot()
	if !botStopped {
		<-botDone
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Errorf("服务器关闭失败: %v", err)
		}
	}
	if err := pipeline.Shutdown(shutdownCtx); err != nil {
		log.Errorf("流水线关闭失败: %v", err)
	}
	return restart, nil
}
