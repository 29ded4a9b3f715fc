package models

import "time"

// ProjectFile — версия результата работы, строки только добавляются.
type ProjectFile struct {
	ID uint `gorm:"primaryKey"`

	ProjectID  uint `gorm:"not null;uniqueIndex:uq_project_files_version"`
	UploaderID uint `gorm:"not null"`
	Uploader   User

	Filename    string    `gorm:"size:255;not null"`
	Filepath    string    `gorm:"size:1024;not null"`
	Version     int       `gorm:"not null;default:1;uniqueIndex:uq_project_files_version"`
	Description string    `gorm:"type:text"`
	UploadedAt  time.Time `gorm:"autoCreateTime"`
}
