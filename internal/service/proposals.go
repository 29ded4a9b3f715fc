package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"

	"work-platform/internal/apperr"
	"work-platform/internal/auth"
	"work-platform/internal/database"
	"work-platform/internal/models"
	"work-platform/internal/storage"

	"gorm.io/gorm"
)

type ProposalService struct {
	*base
}

type ProposalInput struct {
	Quote   float64
	Message string
	File    *Upload // необязательный, только PDF
}

// Submit принимает ставку по открытому проекту. Одна ставка на пару
// (проект, исполнитель): предпроверка плюс уникальный индекс.
func (s *ProposalService) Submit(ctx context.Context, k auth.Contractor, projectID uint, in ProposalInput) (*models.Proposal, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, projectID).Error; err != nil {
		return nil, dbErr(err, "load project", msgProjectNotFound)
	}
	if p.Status != models.StatusOpen {
		return nil, apperr.Conflict("Проект больше не принимает предложения")
	}
	if p.Expired(s.now()) {
		return nil, apperr.Conflict("Срок подачи предложений истёк")
	}

	if math.IsNaN(in.Quote) || math.IsInf(in.Quote, 0) || in.Quote <= 0 {
		return nil, apperr.Validation("Укажите сумму больше нуля")
	}
	if b := p.Bounds(); !b.Contains(in.Quote) {
		return nil, apperr.Validation(fmt.Sprintf("Сумма %.0f вне бюджета проекта (%s)", in.Quote, b))
	}
	hasFile := in.File.present()
	if hasFile && strings.ToLower(filepath.Ext(in.File.Filename)) != ".pdf" {
		return nil, apperr.Validation("Файл предложения должен быть в формате PDF")
	}

	var dup int64
	err := s.db.WithContext(ctx).Model(&models.Proposal{}).
		Where("project_id = ? AND contractor_id = ?", projectID, k.ID).
		Count(&dup).Error
	if err != nil {
		return nil, apperr.Internal("check proposal", err)
	}
	if dup > 0 {
		return nil, apperr.ErrAlreadyProposed
	}

	prop := models.Proposal{
		ProjectID:    projectID,
		ContractorID: k.ID,
		Quote:        math.Round(in.Quote*100) / 100,
		Message:      strings.TrimSpace(in.Message),
	}

	var size int64
	if hasFile {
		rel, n, err := s.files.Save(projectID, storage.Proposals, in.File.Filename, in.File.Body)
		if err != nil {
			return nil, apperr.Internal("save proposal file", err)
		}
		prop.ProposalFile, size = rel, n
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&prop).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, k.ID, database.EntityProject, projectID, "propose",
			fmt.Sprintf("%s предложил %.2f", k.Username, prop.Quote))
	})
	if err != nil {
		s.discard(prop.ProposalFile)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperr.ErrAlreadyProposed
		}
		return nil, apperr.Internal("create proposal", err)
	}

	s.metrics.Uploaded(string(storage.Proposals), size)
	return &prop, nil
}

// ListForProject — ставки по проекту заказчика, дешёвые сверху.
func (s *ProposalService) ListForProject(ctx context.Context, c auth.Client, projectID uint) ([]models.Proposal, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ? AND client_id = ?", projectID, c.ID).
		Count(&n).Error
	if err != nil {
		return nil, apperr.Internal("check project owner", err)
	}
	if n == 0 {
		return nil, apperr.NotFound(msgProjectNotFound)
	}
	return listProposals(ctx, s.db, projectID)
}

func listProposals(ctx context.Context, db *gorm.DB, projectID uint) ([]models.Proposal, error) {
	var proposals []models.Proposal
	err := db.WithContext(ctx).
		Preload("Contractor").
		Where("project_id = ?", projectID).
		Order("quote ASC, id ASC").
		Find(&proposals).Error
	if err != nil {
		return nil, apperr.Internal("list proposals", err)
	}
	return proposals, nil
}
