// Package models contains the database model definitions for operator
// preferences. Show data itself lives in project files owned by the engine.
package models

import (
	"time"
)

// Setting is a durable key/value preference.
// Table: settings
type Setting struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Key       string    `gorm:"column:key;uniqueIndex"`
	Value     string    `gorm:"column:value"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Setting) TableName() string { return "settings" }

// RecentProject is a project file the operator opened or saved.
// Table: recent_projects
type RecentProject struct {
	ID        string    `gorm:"column:id;primaryKey"`
	Path      string    `gorm:"column:path;uniqueIndex"`
	Name      string    `gorm:"column:name"`
	ProjectID string    `gorm:"column:project_id"`
	OpenedAt  time.Time `gorm:"column:opened_at;index"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (RecentProject) TableName() string { return "recent_projects" }

// All returns every model, in migration order.
func All() []any {
	return []any{
		&Setting{},
		&RecentProject{},
	}
}
