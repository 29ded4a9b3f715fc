package database

import (
	"fmt"

	"work-platform/internal/budget"
	"work-platform/internal/logutils"
	"work-platform/internal/models"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// Migrate применяет миграции по порядку; уже применённые пропускаются.
func Migrate(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, migrations())
	if err := m.Migrate(); err != nil {
		return fmt.Errorf("could not migrate: %w", err)
	}
	logutils.Log.Info("database schema is up to date")
	return nil
}

func migrations() []*gormigrate.Migration {
	return []*gormigrate.Migration{
		{
			// старые базы: колонки с прежними именами
			ID:      "202401150001_rename_legacy_columns",
			Migrate: renameLegacyColumns,
		},
		{
			// до create_tables: иначе не построится uq_project_files_version
			ID:      "202406200001_renumber_legacy_file_versions",
			Migrate: renumberLegacyFileVersions,
		},
		{
			ID: "202401150002_create_tables",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(
					&models.User{},
					&models.Project{},
					&models.Proposal{},
					&models.ProjectFile{},
					&models.Issue{},
					&models.IssueComment{},
					&models.Review{},
					&models.AuditLog{},
				)
			},
		},
		{
			ID:      "202401150003_backfill_budget_bounds",
			Migrate: backfillBudgetBounds,
		},
		{
			ID:      "202406200002_review_direction_from_target_role",
			Migrate: reviewDirectionFromTargetRole,
		},
	}
}

type rename struct {
	table, from, to string
}

var legacyRenames = []rename{
	{"proposals", "submitted_at", "created_at"},
	{"reviews", "rating_1", "score1"},
	{"reviews", "rating_2", "score2"},
	{"reviews", "rating_3", "score3"},
	{"reviews", "average_score", "average"},
}

func renameLegacyColumns(tx *gorm.DB) error {
	mg := tx.Migrator()
	for _, r := range legacyRenames {
		if !mg.HasTable(r.table) || !mg.HasColumn(r.table, r.from) || mg.HasColumn(r.table, r.to) {
			continue
		}
		if err := mg.RenameColumn(r.table, r.from, r.to); err != nil {
			return fmt.Errorf("rename %s.%s: %w", r.table, r.from, err)
		}
		logutils.Log.WithFields(logutils.Fields{"table": r.table, "column": r.from}).Info("renamed legacy column")
	}

	// настоящее значение для старых строк выставляет reviewDirectionFromTargetRole
	if mg.HasTable("reviews") && !mg.HasColumn("reviews", "direction") {
		err := tx.Exec("ALTER TABLE reviews ADD COLUMN direction varchar(30) NOT NULL DEFAULT '" +
			string(models.ClientToContractor) + "'").Error
		if err != nil {
			return fmt.Errorf("add reviews.direction: %w", err)
		}
	}
	return nil
}

// renumberLegacyFileVersions нумерует файлы проекта по порядку загрузки там,
// где старая схема оставила всем файлам version = 1.
func renumberLegacyFileVersions(tx *gorm.DB) error {
	mg := tx.Migrator()
	if !mg.HasTable("project_files") || !mg.HasColumn("project_files", "version") {
		return nil
	}

	dups := tx.Table("project_files").
		Select("project_id").
		Group("project_id, version").
		Having("COUNT(*) > 1")
	var rows []struct {
		ID        uint
		ProjectID uint
	}
	err := tx.Table("project_files").
		Select("id", "project_id").
		Where("project_id IN (?)", dups).
		Order("project_id, uploaded_at, id").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("find duplicate file versions: %w", err)
	}

	next := make(map[uint]int)
	for _, r := range rows {
		next[r.ProjectID]++
		err := tx.Table("project_files").
			Where("id = ?", r.ID).
			Update("version", next[r.ProjectID]).Error
		if err != nil {
			return fmt.Errorf("renumber file %d: %w", r.ID, err)
		}
	}
	if len(next) > 0 {
		logutils.Log.WithField("projects", len(next)).Info("renumbered legacy file versions")
	}
	return nil
}

// reviewDirectionFromTargetRole переносит target_role старой схемы в direction
// и удаляет колонку: модель её не заполняет, а NOT NULL ломает вставку.
func reviewDirectionFromTargetRole(tx *gorm.DB) error {
	mg := tx.Migrator()
	if !mg.HasTable("reviews") || !mg.HasColumn("reviews", "target_role") {
		return nil
	}

	// target_role — роль того, кого оценивают
	byTarget := map[models.UserRole]models.Direction{
		models.RoleContractor: models.ClientToContractor,
		models.RoleClient:     models.ContractorToClient,
	}
	for role, dir := range byTarget {
		err := tx.Table("reviews").
			Where("target_role = ?", string(role)).
			Update("direction", string(dir)).Error
		if err != nil {
			return fmt.Errorf("backfill reviews.direction for %s: %w", role, err)
		}
	}

	if err := tx.Exec("ALTER TABLE reviews DROP COLUMN target_role").Error; err != nil {
		return fmt.Errorf("drop reviews.target_role: %w", err)
	}
	logutils.Log.Info("moved reviews.target_role to direction")
	return nil
}

// backfillBudgetBounds заполняет числовые границы по метке для старых проектов.
func backfillBudgetBounds(tx *gorm.DB) error {
	var rows []struct {
		ID     uint
		Budget string
	}
	err := tx.Model(&models.Project{}).
		Unscoped().
		Select("id", "budget").
		Where("budget_min IS NULL AND budget <> ''").
		Find(&rows).Error
	if err != nil {
		return err
	}

	for _, r := range rows {
		if !budget.Known(r.Budget) {
			continue
		}
		lo, hi := budget.Parse(r.Budget).Columns()
		err := tx.Model(&models.Project{}).
			Unscoped().
			Where("id = ?", r.ID).
			UpdateColumns(map[string]any{"budget_min": lo, "budget_max": hi}).Error
		if err != nil {
			return fmt.Errorf("backfill project %d: %w", r.ID, err)
		}
	}
	return nil
}
