package models

import "time"

// AuditLog — история действий по проекту.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"index"`

	UserID uint
	User   User

	Entity   string `gorm:"size:50;not null;index:idx_audit_entity"` // "project", "proposal", "issue"
	EntityID uint   `gorm:"index:idx_audit_entity"`
	Action   string `gorm:"size:50;not null"` // "create", "select_proposal", "approve" и т.п.
	Details  string `gorm:"type:text"`
}
