package auth

import (
	"work-platform/internal/apperr"
	"work-platform/internal/models"
)

// Identity — то, что известно о вошедшем пользователе.
type Identity struct {
	ID       uint
	Username string
	Email    string
	Role     models.UserRole
}

// Client и Contractor — разные типы, поэтому операции заказчика нельзя
// вызвать с личностью исполнителя.
type Client struct{ Identity }

type Contractor struct{ Identity }

func FromUser(u *models.User) Identity {
	return Identity{ID: u.ID, Username: u.Username, Email: u.Email, Role: u.Role}
}

func (i Identity) IsClient() bool     { return i.Role == models.RoleClient }
func (i Identity) IsContractor() bool { return i.Role == models.RoleContractor }

// Require возвращает личность любого вошедшего пользователя.
func Require(u *models.User) (Identity, error) {
	if u == nil {
		return Identity{}, apperr.Unauthenticated("Необходимо войти в систему")
	}
	return FromUser(u), nil
}

func AsClient(u *models.User) (Client, error) {
	id, err := Require(u)
	if err != nil {
		return Client{}, err
	}
	if !id.IsClient() {
		return Client{}, apperr.Forbidden("Доступно только заказчикам")
	}
	return Client{id}, nil
}

func AsContractor(u *models.User) (Contractor, error) {
	id, err := Require(u)
	if err != nil {
		return Contractor{}, err
	}
	if !id.IsContractor() {
		return Contractor{}, apperr.Forbidden("Доступно только исполнителям")
	}
	return Contractor{id}, nil
}
