package model

import (
	"time"

	"gorm.io/gorm"
)

// SystemConfig 运行期可调整的系统配置
type SystemConfig struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	ConfigKey   string         `gorm:"uniqueIndex;not null;size:100;comment:配置键" json:"config_key"`
	ConfigValue string         `gorm:"type:text;comment:配置值" json:"config_value"`
	ConfigType  string         `gorm:"size:20;default:string;comment:配置类型" json:"config_type"`
	Category    string         `gorm:"size:50;comment:配置分类" json:"category"`
	Description string         `gorm:"size:200;comment:配置描述" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at"`
}

// TableName 指定表名
func (SystemConfig) TableName() string {
	return "system_configs"
}

// 配置键
const (
	KeyMaxConcurrentDownloads = "max_concurrent_downloads"
)

// 配置分类
const (
	CategoryDownload = "download"
)

// 配置类型
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
)
