package database

import (
	"fmt"

	"work-platform/internal/models"

	"gorm.io/gorm"
)

// EntityProject — все события журнала привязаны к проекту, даже если
// меняется ставка, вопрос или отзыв.
const EntityProject = "project"

// CreateAuditLog пишет событие в журнал в той же транзакции, что и изменение.
func CreateAuditLog(tx *gorm.DB, userID uint, entity string, entityID uint, action, details string) error {
	record := models.AuditLog{
		UserID:   userID,
		Entity:   entity,
		EntityID: entityID,
		Action:   action,
		Details:  details,
	}
	if err := tx.Create(&record).Error; err != nil {
		return fmt.Errorf("audit %s %s/%d: %w", action, entity, entityID, err)
	}
	return nil
}
