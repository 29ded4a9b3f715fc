package models

import (
	"time"

	"work-platform/internal/budget"

	"gorm.io/gorm"
)

type ProjectStatus string

const (
	StatusOpen            ProjectStatus = "open"
	StatusInProgress      ProjectStatus = "in_progress"
	StatusPendingApproval ProjectStatus = "pending_approval"
	StatusCompleted       ProjectStatus = "completed"
	StatusRejected        ProjectStatus = "rejected"
)

type Project struct {
	gorm.Model
	ClientID uint `gorm:"not null;index"`
	Client   User

	// задаётся только при выборе предложения
	ContractorID *uint `gorm:"index"`
	Contractor   *User

	Title       string        `gorm:"size:255;not null"`
	Description string        `gorm:"type:text;not null"`
	Status      ProjectStatus `gorm:"type:varchar(30);not null;default:open;index"`

	Deadline *time.Time
	Budget   string `gorm:"size:100"` // метка диапазона для отображения

	BudgetMin *float64
	BudgetMax *float64 // nil — сверху не ограничено

	CompletedAt *time.Time
}

// Expired — срок подачи предложений истёк.
func (p *Project) Expired(now time.Time) bool {
	return p.Deadline != nil && now.After(*p.Deadline)
}

// Bounds — числовые границы бюджета; для старых строк разбирается метка.
func (p *Project) Bounds() budget.Bounds {
	if b, ok := budget.FromColumns(p.BudgetMin, p.BudgetMax); ok {
		return b
	}
	return budget.Parse(p.Budget)
}

// BudgetValue — число для сортировки «по бюджету» и фильтров поиска.
func (p *Project) BudgetValue() int64 {
	if p.BudgetMax != nil {
		return int64(*p.BudgetMax)
	}
	return budget.Representative(p.Budget)
}

// HasContractor сообщает, что исполнитель назначен.
func (p *Project) HasContractor() bool {
	return p.ContractorID != nil
}

// IsMember — пользователь является заказчиком или назначенным исполнителем.
func (p *Project) IsMember(userID uint) bool {
	return p.ClientID == userID || (p.ContractorID != nil && *p.ContractorID == userID)
}
