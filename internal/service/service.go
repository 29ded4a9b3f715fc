// Package service содержит бизнес-операции площадки. Хендлеры передают сюда
// уже проверенную личность (auth.Client, auth.Contractor или auth.Identity),
// а всё, что касается владения строками и статусов, проверяется здесь.
package service

import (
	"errors"
	"io"
	"time"

	"work-platform/internal/apperr"
	"work-platform/internal/metrics"
	"work-platform/internal/storage"

	"gorm.io/gorm"
)

// Upload — загруженный файл; хендлер открывает multipart-часть сам.
type Upload struct {
	Filename string
	Body     io.Reader
}

func (u *Upload) present() bool {
	return u != nil && u.Filename != "" && u.Body != nil
}

type base struct {
	db      *gorm.DB
	files   *storage.Store
	metrics *metrics.Metrics
	now     func() time.Time
}

type Services struct {
	Users     *UserService
	Projects  *ProjectService
	Proposals *ProposalService
	Issues    *IssueService
	Reviews   *ReviewService

	base *base
}

// New собирает сервисы над одним пулом соединений и одним хранилищем файлов.
func New(db *gorm.DB, files *storage.Store, m *metrics.Metrics) *Services {
	b := &base{db: db, files: files, metrics: m, now: time.Now}
	return &Services{
		Users:     &UserService{b},
		Projects:  &ProjectService{b},
		Proposals: &ProposalService{b},
		Issues:    &IssueService{b},
		Reviews:   &ReviewService{b},
		base:      b,
	}
}

// dbErr: ErrRecordNotFound превращается в NotFound с текстом msg, остальное — внутренний сбой.
func dbErr(err error, op, msg string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperr.NotFound(msg)
	}
	return apperr.Internal(op, err)
}

// discard удаляет файл, для которого не удалось записать строку в БД.
func (b *base) discard(rel string) {
	if rel == "" {
		return
	}
	_ = b.files.Remove(rel)
}
