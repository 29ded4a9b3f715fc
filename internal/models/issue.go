package models

import "time"

type IssueStatus string

const (
	IssueOpen     IssueStatus = "open"
	IssueResolved IssueStatus = "resolved"
)

type Issue struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	ProjectID uint `gorm:"not null;index"`
	CreatorID uint `gorm:"not null"`
	Creator   User

	Title       string      `gorm:"size:255;not null"`
	Description string      `gorm:"type:text"`
	Status      IssueStatus `gorm:"type:varchar(20);not null;default:open;index"`

	Comments []IssueComment
}

func (Issue) TableName() string {
	return "project_issues"
}

// IssueComment — запись в обсуждении, не редактируется.
type IssueComment struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	IssueID uint `gorm:"not null;index"`
	UserID  uint `gorm:"not null"`
	User    User

	Message string `gorm:"type:text;not null"`
}
