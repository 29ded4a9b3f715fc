package service

import (
	"context"
	"strings"

	"work-platform/internal/apperr"
	"work-platform/internal/auth"
	"work-platform/internal/database"
	"work-platform/internal/models"

	"gorm.io/gorm"
)

const msgIssueNotFound = "Вопрос не найден"

type IssueService struct {
	*base
}

// Create открывает вопрос по проекту, у которого уже есть исполнитель.
// Создать его могут заказчик и назначенный исполнитель.
func (s *IssueService) Create(ctx context.Context, id auth.Identity, projectID uint, title, description string) (*models.Issue, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Validation("Укажите тему вопроса")
	}

	p, err := member(ctx, s.db, id, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.StatusOpen {
		return nil, apperr.Conflict("Вопросы можно открывать после выбора исполнителя")
	}

	issue := models.Issue{
		ProjectID:   projectID,
		CreatorID:   id.ID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Status:      models.IssueOpen,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&issue).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, id.ID, database.EntityProject, projectID, "issue_open", "Открыт вопрос «"+issue.Title+"»")
	})
	if err != nil {
		return nil, apperr.Internal("create issue", err)
	}
	return &issue, nil
}

// Comment добавляет сообщение в обсуждение и возвращает id проекта.
func (s *IssueService) Comment(ctx context.Context, id auth.Identity, issueID uint, message string) (uint, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return 0, apperr.Validation("Сообщение не может быть пустым")
	}

	var projectID uint
	err := s.db.WithContext(ctx).
		Table("project_issues AS i").
		Select("i.project_id").
		Joins("JOIN projects p ON p.id = i.project_id AND p.deleted_at IS NULL").
		Where("i.id = ? AND (p.client_id = ? OR p.contractor_id = ?)", issueID, id.ID, id.ID).
		Scan(&projectID).Error
	if err != nil {
		return 0, apperr.Internal("find issue", err)
	}
	if projectID == 0 {
		return 0, apperr.NotFound(msgIssueNotFound)
	}

	comment := models.IssueComment{IssueID: issueID, UserID: id.ID, Message: message}
	if err := s.db.WithContext(ctx).Create(&comment).Error; err != nil {
		return 0, apperr.Internal("create comment", err)
	}
	return projectID, nil
}

// Resolve закрывает вопрос. Условие на владельца проекта стоит в самом UPDATE;
// чужой и несуществующий вопрос дают NotFound.
func (s *IssueService) Resolve(ctx context.Context, c auth.Client, issueID uint) (uint, error) {
	var projectID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Issue{}).
			Where("id = ? AND project_id IN (?)", issueID,
				tx.Model(&models.Project{}).Select("id").Where("client_id = ?", c.ID)).
			Update("status", string(models.IssueResolved))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return apperr.NotFound(msgIssueNotFound)
		}

		if err := tx.Model(&models.Issue{}).Select("project_id").Where("id = ?", issueID).Scan(&projectID).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, c.ID, database.EntityProject, projectID, "issue_resolve", "Вопрос закрыт")
	})
	if err != nil {
		return 0, transitionErr(err, "resolve issue")
	}
	return projectID, nil
}

// ListForProject — вопросы участника проекта, новые сверху; комментарии по времени.
func (s *IssueService) ListForProject(ctx context.Context, id auth.Identity, projectID uint) ([]models.Issue, error) {
	if _, err := member(ctx, s.db, id, projectID); err != nil {
		return nil, err
	}
	return listIssues(ctx, s.db, projectID)
}

func (s *IssueService) CountOpen(ctx context.Context, projectID uint) (int64, error) {
	return countOpenIssues(ctx, s.db, projectID)
}

func listIssues(ctx context.Context, db *gorm.DB, projectID uint) ([]models.Issue, error) {
	var issues []models.Issue
	err := db.WithContext(ctx).
		Preload("Creator").
		Preload("Comments", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Preload("Comments.User").
		Where("project_id = ?", projectID).
		Order("created_at DESC, id DESC").
		Find(&issues).Error
	if err != nil {
		return nil, apperr.Internal("list issues", err)
	}
	return issues, nil
}

func countOpenIssues(ctx context.Context, db *gorm.DB, projectID uint) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Model(&models.Issue{}).
		Where("project_id = ? AND status = ?", projectID, string(models.IssueOpen)).
		Count(&n).Error
	if err != nil {
		return 0, apperr.Internal("count open issues", err)
	}
	return n, nil
}
