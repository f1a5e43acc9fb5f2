package schema

import "time"

// SchemaMeta 记录本地库的 schema 版本号，单行表（ID=1）。
// 启动时与当前代码期望的版本比对，版本落后才跑迁移，
// 迁移失败时数据库进入安全模式而不是带着半套表继续写。
type SchemaMeta struct {
	ID            int       `gorm:"primaryKey"`
	SchemaVersion int       `gorm:"not null"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

func (SchemaMeta) TableName() string {
	return "schema_meta"
}
