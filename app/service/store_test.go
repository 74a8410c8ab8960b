package service

import (
	"context"
	"path/filepath"
	"testing"

	"vidrelay/app/config"
	"vidrelay/app/database"
	"vidrelay/app/logger"
	"vidrelay/app/model"
	"vidrelay/app/task"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		DSN:    filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	require.NoError(t, database.InitDefaults(db, &config.Config{
		Download: config.DownloadConfig{MaxConcurrent: 5},
	}))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestUserServiceCreatesWithDefaults(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(openTestDB(t), "en", logger.NewNop())

	u, err := users.Touch(ctx, Profile{TelegramID: 10, Username: "alice", Language: "es"})
	require.NoError(t, err)
	assert.Equal(t, "es", u.Language)
	assert.Equal(t, model.ContainerMP4, u.UploadFormat)
	assert.True(t, u.BurnSubtitles)
	assert.Equal(t, model.QualityAsk, u.DefaultQuality)

	// 再次接触不覆盖已有语言
	u, err = users.Touch(ctx, Profile{TelegramID: 10, Language: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "es", u.Language)

	n, err := users.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestUserServiceSettings(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(openTestDB(t), "en", logger.NewNop())

	on, err := users.Toggle(ctx, 1, SettingCompression)
	require.NoError(t, err)
	assert.True(t, on)
	off, err := users.Toggle(ctx, 1, SettingBurnSubtitles)
	require.NoError(t, err)
	assert.False(t, off)
	_, err = users.Toggle(ctx, 1, Setting("nope"))
	assert.ErrorIs(t, err, ErrUnknownSetting)

	require.NoError(t, users.SetDefaultQuality(ctx, 1, model.QualityAudio))
	require.NoError(t, users.SetUploadFormat(ctx, 1, model.ContainerMKV))
	assert.Error(t, users.SetUploadFormat(ctx, 1, "avi"))
	require.NoError(t, users.SetThumbnail(ctx, 1, "file-1"))

	u, err := users.Preferences(ctx, 1)
	require.NoError(t, err)
	assert.True(t, u.Compression)
	assert.False(t, u.BurnSubtitles)
	assert.True(t, u.WantsAudio())
	assert.Equal(t, model.ContainerMKV, u.Container())
	assert.Equal(t, "file-1", u.ThumbnailFileID)
}

func TestUserServiceActiveCounter(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(openTestDB(t), "en", logger.NewNop())
	_, err := users.Preferences(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, users.IncrementActive(ctx, 1))
	require.NoError(t, users.IncrementActive(ctx, 1))
	require.NoError(t, users.DecrementActive(ctx, 1))
	require.NoError(t, users.DecrementActive(ctx, 1))
	// 不会减到负数
	require.NoError(t, users.DecrementActive(ctx, 1))

	u, err := users.Preferences(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, u.ActiveDownloads)

	// 保存设置不覆盖计数
	require.NoError(t, users.IncrementActive(ctx, 1))
	_, err = users.Toggle(ctx, 1, SettingRenameFile)
	require.NoError(t, err)
	u, err = users.Preferences(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, u.ActiveDownloads)

	assert.Error(t, users.IncrementActive(ctx, 999))
}

func TestUserServiceReconcileAndBan(t *testing.T) {
	ctx := context.Background()
	users := NewUserService(openTestDB(t), "en", logger.NewNop())
	for _, id := range []int64{1, 2, 3} {
		_, err := users.Preferences(ctx, id)
		require.NoError(t, err)
		require.NoError(t, users.IncrementActive(ctx, id))
	}

	require.NoError(t, users.ReconcileActive(ctx, map[int64]int{2: 1}))
	for id, want := range map[int64]int{1: 0, 2: 1, 3: 0} {
		u, err := users.Preferences(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, u.ActiveDownloads, "user %d", id)
	}

	require.NoError(t, users.SetBanned(ctx, 2, true))
	ids, err := users.BroadcastTargets(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3}, ids)

	u, err := users.Preferences(ctx, 2)
	require.NoError(t, err)
	assert.True(t, u.Banned)
}

func TestStatsServiceRecordDelivery(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	stats := NewStatsService(db)
	users := NewUserService(db, "en", logger.NewNop())
	_, err := users.Preferences(ctx, 1)
	require.NoError(t, err)

	require.NoError(t, stats.RecordDelivery(ctx, model.DownloadRecord{UserID: 1, Title: "a", Size: 100, DurationMs: 1500}))
	require.NoError(t, stats.RecordDelivery(ctx, model.DownloadRecord{UserID: 1, Title: "b", Size: 50, DurationMs: 500}))
	require.NoError(t, stats.RecordDelivery(ctx, model.DownloadRecord{UserID: 2, Title: "c", Size: 7}))

	g, err := stats.Global(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 3, g.TotalVideos)
	assert.EqualValues(t, 157, g.TotalBytes)
	assert.EqualValues(t, 2000, g.TotalMillis)

	act, err := stats.Activity(ctx, 1)
	require.NoError(t, err)
	assert.EqualValues(t, 2, act.Videos)
	assert.EqualValues(t, 150, act.TotalBytes)
	assert.False(t, act.LastActive.IsZero())

	none, err := stats.Activity(ctx, 42)
	require.NoError(t, err)
	assert.Zero(t, none.Videos)
}

func TestSystemConfigServiceLimit(t *testing.T) {
	ctx := context.Background()
	gate := task.NewGate(1, 0)
	svc := NewSystemConfigService(openTestDB(t), gate, logger.NewNop())

	assert.Equal(t, 5, svc.ApplyStored(ctx, 2))
	assert.Equal(t, 5, gate.Limit())

	require.NoError(t, svc.SetConcurrencyLimit(ctx, 3))
	assert.Equal(t, 3, gate.Limit())
	assert.Equal(t, 3, svc.ConcurrencyLimit(ctx, 9))

	assert.Error(t, svc.SetConcurrencyLimit(ctx, 0))
	assert.Equal(t, 3, gate.Limit())
}
