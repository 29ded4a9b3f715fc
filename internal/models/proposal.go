package models

import "time"

// Proposal — ставка исполнителя; одна на пару (проект, исполнитель).
type Proposal struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	ProjectID uint `gorm:"not null;uniqueIndex:uq_proposals_project_contractor"`
	Project   Project

	ContractorID uint `gorm:"not null;uniqueIndex:uq_proposals_project_contractor;index"`
	Contractor   User

	Quote        float64 `gorm:"type:decimal(12,2);not null"`
	Message      string  `gorm:"type:text"`
	ProposalFile string  `gorm:"size:500"`
}
