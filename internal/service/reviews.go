package service

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"work-platform/internal/apperr"
	"work-platform/internal/auth"
	"work-platform/internal/database"
	"work-platform/internal/models"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

// комментарии хранятся простым текстом, экранирует шаблон
var stripTags = bluemonday.StrictPolicy()

type ReviewService struct {
	*base
}

type ReviewInput struct {
	Score1, Score2, Score3 int
	Comment                string
}

func (in ReviewInput) valid() bool {
	for _, v := range []int{in.Score1, in.Score2, in.Score3} {
		if v < 1 || v > 5 {
			return false
		}
	}
	return true
}

// SanitizeComment убирает разметку и оставляет текст.
func SanitizeComment(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripTags.Sanitize(strings.TrimSpace(s))))
}

// Submit сохраняет отзыв участника о другой стороне завершённого проекта.
// Направление определяется по участию; повтор даёт ErrAlreadyRated.
func (s *ReviewService) Submit(ctx context.Context, id auth.Identity, projectID uint, in ReviewInput) (*models.Review, error) {
	if !in.valid() {
		return nil, apperr.Validation("Оценки должны быть от 1 до 5")
	}

	p, err := member(ctx, s.db, id, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusCompleted || !p.HasContractor() {
		return nil, apperr.Conflict("Оставить отзыв можно только по завершённому проекту")
	}

	dir, reviewee := models.ClientToContractor, *p.ContractorID
	if p.ClientID != id.ID {
		dir, reviewee = models.ContractorToClient, p.ClientID
	}

	existing, err := findReview(ctx, s.db, projectID, id.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.ErrAlreadyRated
	}

	r := models.Review{
		ProjectID:  projectID,
		ReviewerID: id.ID,
		RevieweeID: reviewee,
		Direction:  dir,
		Score1:     in.Score1,
		Score2:     in.Score2,
		Score3:     in.Score3,
		Average:    round1(float64(in.Score1+in.Score2+in.Score3) / 3),
		Comment:    SanitizeComment(in.Comment),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&r).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, id.ID, database.EntityProject, projectID, "review", "Оставлен отзыв ("+string(dir)+")")
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, apperr.ErrAlreadyRated
	}
	if err != nil {
		return nil, apperr.Internal("create review", err)
	}
	return &r, nil
}

// Mine — отзыв, который пользователь оставил по проекту, или nil.
func (s *ReviewService) Mine(ctx context.Context, projectID, reviewerID uint) (*models.Review, error) {
	return findReview(ctx, s.db, projectID, reviewerID)
}

type PreviewComment struct {
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

// RatingPreview — средние по каждой оценке и последние комментарии.
type RatingPreview struct {
	Direction models.Direction `json:"direction"`
	Labels    [3]string        `json:"labels"`
	Averages  [3]float64       `json:"averages"`
	Count     int64            `json:"count"`
	Comments  []PreviewComment `json:"comments"`
}

func (s *ReviewService) Preview(ctx context.Context, userID uint, dir models.Direction, n int) (*RatingPreview, error) {
	if !dir.Valid() {
		return nil, apperr.Validation("Неизвестное направление отзыва")
	}

	var agg struct {
		Cnt int64
		A1  float64
		A2  float64
		A3  float64
	}
	err := s.db.WithContext(ctx).Model(&models.Review{}).
		Select("COUNT(*) AS cnt, COALESCE(AVG(score1), 0) AS a1, COALESCE(AVG(score2), 0) AS a2, COALESCE(AVG(score3), 0) AS a3").
		Where("reviewee_id = ? AND direction = ?", userID, string(dir)).
		Scan(&agg).Error
	if err != nil {
		return nil, apperr.Internal("rating preview", err)
	}

	out := &RatingPreview{
		Direction: dir,
		Labels:    dir.Dimensions(),
		Averages:  [3]float64{round1(agg.A1), round1(agg.A2), round1(agg.A3)},
		Count:     agg.Cnt,
		Comments:  []PreviewComment{},
	}

	err = s.db.WithContext(ctx).Model(&models.Review{}).
		Select("comment", "created_at").
		Where("reviewee_id = ? AND direction = ? AND comment <> ''", userID, string(dir)).
		Order("created_at DESC, id DESC").
		Limit(n).
		Scan(&out.Comments).Error
	if err != nil {
		return nil, apperr.Internal("rating preview comments", err)
	}
	return out, nil
}

func findReview(ctx context.Context, db *gorm.DB, projectID, reviewerID uint) (*models.Review, error) {
	var r models.Review
	err := db.WithContext(ctx).Where("project_id = ? AND reviewer_id = ?", projectID, reviewerID).First(&r).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("find review", err)
	}
	return &r, nil
}
