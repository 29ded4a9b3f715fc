package models

import "time"

// Direction — кто кого оценивает.
type Direction string

const (
	ClientToContractor Direction = "client_to_contractor"
	ContractorToClient Direction = "contractor_to_client"
)

func (d Direction) Valid() bool {
	return d == ClientToContractor || d == ContractorToClient
}

// DirectionFrom — направление отзыва, который оставляет пользователь с этой ролью.
func DirectionFrom(role UserRole) Direction {
	if role == RoleClient {
		return ClientToContractor
	}
	return ContractorToClient
}

// Dimensions — подписи трёх оценок.
func (d Direction) Dimensions() [3]string {
	if d == ContractorToClient {
		return [3]string{"Понятность требований", "Сложность приёмки", "Отношение"}
	}
	return [3]string{"Качество результата", "Скорость работы", "Отношение"}
}

type Review struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time

	ProjectID uint `gorm:"not null;uniqueIndex:uq_reviews_project_reviewer_direction"`
	Project   Project

	ReviewerID uint `gorm:"not null;uniqueIndex:uq_reviews_project_reviewer_direction"`
	Reviewer   User

	RevieweeID uint `gorm:"not null;index"`
	Reviewee   User

	Direction Direction `gorm:"type:varchar(30);not null;uniqueIndex:uq_reviews_project_reviewer_direction"`

	Score1  int     `gorm:"not null;check:score1 BETWEEN 1 AND 5"`
	Score2  int     `gorm:"not null;check:score2 BETWEEN 1 AND 5"`
	Score3  int     `gorm:"not null;check:score3 BETWEEN 1 AND 5"`
	Average float64 `gorm:"type:decimal(3,1);not null"`
	Comment string  `gorm:"type:text"`
}

func (Review) TableName() string {
	return "reviews"
}
