package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"work-platform/internal/apperr"
	"work-platform/internal/auth"
	"work-platform/internal/models"
	"work-platform/internal/storage"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

var validate = validator.New()

var avatarExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

type UserService struct {
	*base
}

type RegisterInput struct {
	Username string
	Email    string
	Password string
	Role     models.UserRole
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)

	if len([]rune(in.Username)) < 3 || len(in.Password) < 6 {
		return nil, apperr.Validation("Слишком короткий логин или пароль")
	}
	if err := validate.Var(in.Email, "required,email"); err != nil {
		return nil, apperr.Validation("Некорректный email")
	}
	if !in.Role.Valid() {
		return nil, apperr.Validation("Неверная роль")
	}

	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error
	if err != nil {
		return nil, apperr.Internal("check user", err)
	}
	if count > 0 {
		return nil, apperr.Conflict("Пользователь с таким логином или email уже существует")
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, apperr.Internal("hash password", err)
	}

	user := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         in.Role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.Conflict("Пользователь с таким логином или email уже существует")
		}
		return nil, apperr.Internal("create user", err)
	}
	return &user, nil
}

func (s *UserService) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Validation("Неверный логин или пароль")
	}
	if err != nil {
		return nil, apperr.Internal("find user", err)
	}
	if err := auth.CheckPassword(password, user.PasswordHash); err != nil {
		return nil, apperr.Validation("Неверный логин или пароль")
	}
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, dbErr(err, "get user", "Пользователь не найден")
	}
	return &user, nil
}

// ReviewStats — сводка полученных отзывов, всё округлено до десятых.
type ReviewStats struct {
	Count   int
	Average float64
	Dim     [3]float64
	Labels  [3]string
}

type Profile struct {
	User    models.User
	Reviews []models.Review
	Stats   ReviewStats
}

// Profile — публичная страница: пользователь, полученные отзывы (новые сверху) и сводка.
func (s *UserService) Profile(ctx context.Context, userID uint) (*Profile, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var reviews []models.Review
	err = s.db.WithContext(ctx).
		Preload("Reviewer").
		Preload("Project").
		Where("reviewee_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, apperr.Internal("list reviews", err)
	}

	p := &Profile{User: *user, Reviews: reviews}
	p.Stats.Labels = receivedDirection(user.Role).Dimensions()
	if n := len(reviews); n > 0 {
		var avg, d1, d2, d3 float64
		for _, r := range reviews {
			avg += r.Average
			d1 += float64(r.Score1)
			d2 += float64(r.Score2)
			d3 += float64(r.Score3)
		}
		p.Stats.Count = n
		p.Stats.Average = round1(avg / float64(n))
		p.Stats.Dim = [3]float64{round1(d1 / float64(n)), round1(d2 / float64(n)), round1(d3 / float64(n))}
	}
	return p, nil
}

// receivedDirection — направление отзывов, которые получает пользователь с этой ролью.
func receivedDirection(role models.UserRole) models.Direction {
	if role == models.RoleClient {
		return models.ContractorToClient
	}
	return models.ClientToContractor
}

// UpdateProfile меняет описание и, если передан, аватар. Новый файл
// удаляется, если строку обновить не удалось.
func (s *UserService) UpdateProfile(ctx context.Context, id auth.Identity, intro string, avatar *Upload) error {
	updates := map[string]any{"introduction": strings.TrimSpace(intro)}

	var saved string
	if avatar.present() {
		ext := strings.ToLower(filepath.Ext(avatar.Filename))
		if !avatarExtensions[ext] {
			return apperr.Validation("Аватар должен быть изображением JPG, PNG, GIF или WEBP")
		}
		rel, n, err := s.files.Save(id.ID, storage.Avatar, avatar.Filename, avatar.Body)
		if err != nil {
			return apperr.Internal("save avatar", err)
		}
		s.metrics.Uploaded(string(storage.Avatar), n)
		saved = rel
		updates["avatar"] = rel
	}

	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id.ID).Updates(updates)
	if res.Error != nil {
		s.discard(saved)
		return apperr.Internal("update profile", res.Error)
	}
	if res.RowsAffected == 0 {
		s.discard(saved)
		return apperr.NotFound("Пользователь не найден")
	}
	return nil
}

type PreviewStats struct {
	Rating string `json:"rating"`
	Count  int64  `json:"count"`
}

// Preview — данные всплывающей карточки пользователя.
type Preview struct {
	ID       uint            `json:"id"`
	Username string          `json:"username"`
	Avatar   *string         `json:"avatar"`
	Role     models.UserRole `json:"role"`
	Stats    PreviewStats    `json:"stats"`
}

func (s *UserService) Preview(ctx context.Context, userID uint) (*Preview, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	var agg struct {
		Count int64
		Avg   float64
	}
	err = s.db.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS count, COALESCE(AVG(average), 0) AS avg").
		Where("reviewee_id = ?", userID).
		Scan(&agg).Error
	if err != nil {
		return nil, apperr.Internal("preview stats", err)
	}

	p := &Preview{
		ID:       user.ID,
		Username: user.Username,
		Role:     user.Role,
		Stats:    PreviewStats{Rating: "Пока нет отзывов"},
	}
	if user.Avatar != "" {
		url := AvatarURL(user.ID)
		p.Avatar = &url
	}
	if agg.Count > 0 {
		p.Stats.Rating = formatRating(round1(agg.Avg))
		p.Stats.Count = agg.Count
	}
	return p, nil
}

// AvatarURL — адрес, по которому отдаётся аватар пользователя.
func AvatarURL(userID uint) string {
	return "/users/avatar/" + strconv.FormatUint(uint64(userID), 10)
}

func formatRating(v float64) string {
	return fmt.Sprintf("%.1f ⭐", v)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
