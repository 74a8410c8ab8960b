package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	return &Config{
		Bot: BotConfig{Token: "123:abc", AdminIDs: []int64{1}},
		Download: DownloadConfig{
			Dir:                 "downloads",
			MaxConcurrent:       5,
			ProgressInterval:    2 * time.Second,
			CompressThresholdMB: 1000,
			MaxUploadMB:         2000,
			FilenameMaxLen:      100,
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/test.db"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing token", func(c *Config) { c.Bot.Token = "" }, true},
		{"zero concurrency", func(c *Config) { c.Download.MaxConcurrent = 0 }, true},
		{"negative per user", func(c *Config) { c.Download.PerUserLimit = -1 }, true},
		{"progress too fast", func(c *Config) { c.Download.ProgressInterval = 500 * time.Millisecond }, true},
		{"progress too slow", func(c *Config) { c.Download.ProgressInterval = 3 * time.Second }, true},
		{"upload below threshold", func(c *Config) { c.Download.MaxUploadMB = 500 }, true},
		{"short filename", func(c *Config) { c.Download.FilenameMaxLen = 8 }, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, true},
		{"server without secret", func(c *Config) {
			c.Server = ServerConfig{Enabled: true, Port: "5000"}
		}, true},
		{"server with secret", func(c *Config) {
			c.Server = ServerConfig{Enabled: true, Port: "5000"}
			c.JWT.Secret = "s"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsAdminAndSizes(t *testing.T) {
	cfg := validConfig()
	assert.True(t, cfg.Bot.IsAdmin(1))
	assert.False(t, cfg.Bot.IsAdmin(2))
	assert.EqualValues(t, 2000<<20, cfg.Download.MaxUploadBytes())
	assert.EqualValues(t, 1000<<20, cfg.Download.CompressThresholdBytes())
}
