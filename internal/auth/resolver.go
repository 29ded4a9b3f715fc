package auth

import (
	"context"
	"errors"
	"fmt"

	"work-platform/internal/models"

	"gorm.io/gorm"
)

// SessionKey — ключ сессии с id пользователя.
const SessionKey = "user_id"

// Resolver находит пользователя по значению из сессии.
type Resolver struct {
	db *gorm.DB
}

func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve возвращает nil, nil для анонима и для id несуществующего
// пользователя; ошибка только при сбое БД.
func (r *Resolver) Resolve(ctx context.Context, raw any) (*models.User, error) {
	id, ok := sessionID(raw)
	if !ok {
		return nil, nil
	}

	var u models.User
	err := r.db.WithContext(ctx).First(&u, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session user %d: %w", id, err)
	}
	return &u, nil
}

// cookie-сессия кодирует значения через gob, но старые куки могли хранить int
func sessionID(raw any) (uint, bool) {
	switch v := raw.(type) {
	case uint:
		return v, v > 0
	case int:
		return uint(v), v > 0
	case int64:
		return uint(v), v > 0
	case uint64:
		return uint(v), v > 0
	default:
		return 0, false
	}
}
