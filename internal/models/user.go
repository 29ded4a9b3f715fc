package models

import "gorm.io/gorm"

type UserRole string

const (
	RoleClient     UserRole = "client"
	RoleContractor UserRole = "contractor"
)

// Valid — роль из закрытого набора; другие значения в форму не пропускаем.
func (r UserRole) Valid() bool {
	return r == RoleClient || r == RoleContractor
}

// Area — префикс маршрутов роли: /client или /contractor.
func (r UserRole) Area() string {
	return "/" + string(r)
}

type User struct {
	gorm.Model
	Username     string   `gorm:"uniqueIndex;size:100;not null"`
	Email        string   `gorm:"uniqueIndex;size:255;not null"`
	PasswordHash string   `gorm:"column:hashed_password;size:255;not null"`
	Role         UserRole `gorm:"type:varchar(20);not null"` // после регистрации не меняется
	Avatar       string   `gorm:"size:500"`                  // относительный путь в каталоге загрузок
	Introduction string   `gorm:"type:text"`
}
