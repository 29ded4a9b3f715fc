// Package lifecycle — таблица переходов статуса проекта.
//
// Все изменения статуса проходят через Next; сервис проектов берёт Sources
// для условия WHERE status IN (...) в UPDATE.
package lifecycle

import (
	"errors"
	"fmt"

	"work-platform/internal/models"
)

type Event string

const (
	SelectProposal    Event = "select_proposal"
	UploadDeliverable Event = "upload_deliverable"
	Approve           Event = "approve"
	Reject            Event = "reject"
)

var ErrIllegalTransition = errors.New("illegal status transition")

type edge struct {
	from  models.ProjectStatus
	event Event
}

var transitions = map[edge]models.ProjectStatus{
	{models.StatusOpen, SelectProposal}:          models.StatusInProgress,
	{models.StatusInProgress, UploadDeliverable}: models.StatusPendingApproval,
	{models.StatusRejected, UploadDeliverable}:   models.StatusPendingApproval,
	{models.StatusPendingApproval, Approve}:      models.StatusCompleted,
	{models.StatusPendingApproval, Reject}:       models.StatusRejected,
}

// порядок фиксирован, чтобы SQL с IN (...) был стабильным
var statusOrder = []models.ProjectStatus{
	models.StatusOpen,
	models.StatusInProgress,
	models.StatusPendingApproval,
	models.StatusCompleted,
	models.StatusRejected,
}

// Initial — статус нового проекта.
func Initial() models.ProjectStatus {
	return models.StatusOpen
}

// Next возвращает статус после события или ErrIllegalTransition.
func Next(from models.ProjectStatus, ev Event) (models.ProjectStatus, error) {
	to, ok := transitions[edge{from, ev}]
	if !ok {
		return "", fmt.Errorf("%w: %s on %s", ErrIllegalTransition, ev, from)
	}
	return to, nil
}

// Sources — статусы, из которых событие допустимо.
func Sources(ev Event) []models.ProjectStatus {
	var out []models.ProjectStatus
	for _, s := range statusOrder {
		if _, ok := transitions[edge{s, ev}]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Target — статус после события; у каждого события он один.
func Target(ev Event) (models.ProjectStatus, bool) {
	for _, s := range statusOrder {
		if to, ok := transitions[edge{s, ev}]; ok {
			return to, true
		}
	}
	return "", false
}

// HasContractor: contractor_id заполнен ровно в этих статусах.
func HasContractor(s models.ProjectStatus) bool {
	return s != models.StatusOpen && Valid(s)
}

func Valid(s models.ProjectStatus) bool {
	for _, v := range statusOrder {
		if v == s {
			return true
		}
	}
	return false
}

// Label — подпись статуса для шаблонов.
func Label(s models.ProjectStatus) string {
	switch s {
	case models.StatusOpen:
		return "Открыт"
	case models.StatusInProgress:
		return "В работе"
	case models.StatusPendingApproval:
		return "На приёмке"
	case models.StatusCompleted:
		return "Завершён"
	case models.StatusRejected:
		return "На доработке"
	default:
		return string(s)
	}
}
