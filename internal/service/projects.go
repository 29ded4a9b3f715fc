package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"work-platform/internal/apperr"
	"work-platform/internal/auth"
	"work-platform/internal/budget"
	"work-platform/internal/database"
	"work-platform/internal/lifecycle"
	"work-platform/internal/models"
	"work-platform/internal/storage"

	"gorm.io/gorm"
)

const msgProjectNotFound = "Проект не найден"

type ProjectService struct {
	*base
}

type ProjectInput struct {
	Title       string
	Description string
	Budget      string
	Deadline    *time.Time
}

func (in *ProjectInput) normalize(now time.Time) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Budget = strings.TrimSpace(in.Budget)

	if in.Title == "" || in.Description == "" {
		return apperr.Validation("Укажите название и описание проекта")
	}
	if in.Budget != "" && !budget.Known(in.Budget) {
		return apperr.Validation("Выберите бюджет из списка")
	}
	if in.Deadline != nil && in.Deadline.Before(now) {
		return apperr.Validation("Срок подачи предложений уже прошёл")
	}
	return nil
}

// bounds — числовые колонки бюджета; без метки границ нет.
func (in *ProjectInput) bounds() (lo, hi *float64) {
	if in.Budget == "" {
		return nil, nil
	}
	return budget.Parse(in.Budget).Columns()
}

func (s *ProjectService) Create(ctx context.Context, c auth.Client, in ProjectInput) (*models.Project, error) {
	if err := in.normalize(s.now()); err != nil {
		return nil, err
	}
	lo, hi := in.bounds()

	p := models.Project{
		ClientID:    c.ID,
		Title:       in.Title,
		Description: in.Description,
		Status:      lifecycle.Initial(),
		Deadline:    in.Deadline,
		Budget:      in.Budget,
		BudgetMin:   lo,
		BudgetMax:   hi,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return database.CreateAuditLog(tx, c.ID, database.EntityProject, p.ID, "create", "Создан проект «"+p.Title+"»")
	})
	if err != nil {
		return nil, apperr.Internal("create project", err)
	}
	return &p, nil
}

// Update правит открытый проект владельца.
func (s *ProjectService) Update(ctx context.Context, c auth.Client, projectID uint, in ProjectInput) error {
	if err := in.normalize(s.now()); err != nil {
		return err
	}
	lo, hi := in.bounds()

	var affected int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Project{}).
			Where("id = ? AND client_id = ? AND status = ?", projectID, c.ID, string(models.StatusOpen)).
			Updates(map[string]any{
				"title":       in.Title,
				"description": in.Description,
				"budget":      in.Budget,
				"budget_min":  lo,
				"budget_max":  hi,
				"deadline":    in.Deadline,
			})
		if res.Error != nil {
			return res.Error
		}
		if affected = res.RowsAffected; affected == 0 {
			return nil
		}
		return database.CreateAuditLog(tx, c.ID, database.EntityProject, projectID, "update", "Проект изменён")
	})
	if err != nil {
		return apperr.Internal("update project", err)
	}
	if affected > 0 {
		return nil
	}

	p, err := s.owned(ctx, c, projectID)
	if err != nil {
		return err
	}
	if p.Status != models.StatusOpen {
		return apperr.Conflict("Редактировать можно только открытый проект")
	}
	return apperr.ErrLostRace
}

// owned загружает проект заказчика; чужой и несуществующий неотличимы.
func (s *ProjectService) owned(ctx context.Context, c auth.Client, projectID uint) (*models.Project, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Preload("Contractor").
		Where("id = ? AND client_id = ?", projectID, c.ID).
		First(&p).Error
	if err != nil {
		return nil, dbErr(err, "load project", msgProjectNotFound)
	}
	return &p, nil
}

// ForEdit — открытый проект для формы редактирования.
func (s *ProjectService) ForEdit(ctx context.Context, c auth.Client, projectID uint) (*models.Project, error) {
	p, err := s.owned(ctx, c, projectID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.StatusOpen {
		return nil, apperr.Conflict("Редактировать можно только открытый проект")
	}
	return p, nil
}

// ListForClient: сначала ждущие приёмки, затем открытые, в работе, на доработке, завершённые.
func (s *ProjectService) ListForClient(ctx context.Context, c auth.Client) ([]models.Project, error) {
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Preload("Contractor").
		Where("client_id = ?", c.ID).
		Order(`CASE status
			WHEN 'pending_approval' THEN 1
			WHEN 'open' THEN 2
			WHEN 'in_progress' THEN 3
			WHEN 'rejected' THEN 4
			WHEN 'completed' THEN 5
			ELSE 6 END`).
		Order("created_at DESC, id DESC").
		Find(&projects).Error
	if err != nil {
		return nil, apperr.Internal("list client projects", err)
	}
	return projects, nil
}

type ClientProjectView struct {
	Project    models.Project
	Proposals  []models.Proposal
	Files      []models.ProjectFile
	Issues     []models.Issue
	OpenIssues int64
	MyReview   *models.Review
	CanReview  bool
}

func (s *ProjectService) DetailForClient(ctx context.Context, c auth.Client, projectID uint) (*ClientProjectView, error) {
	p, err := s.owned(ctx, c, projectID)
	if err != nil {
		return nil, err
	}
	v := &ClientProjectView{Project: *p}

	if v.Proposals, err = listProposals(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	if v.Files, err = listFiles(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	if v.Issues, err = listIssues(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	for _, is := range v.Issues {
		if is.Status == models.IssueOpen {
			v.OpenIssues++
		}
	}
	if p.Status == models.StatusCompleted {
		if v.MyReview, err = findReview(ctx, s.db, projectID, c.ID); err != nil {
			return nil, err
		}
		v.CanReview = v.MyReview == nil && p.HasContractor()
	}
	return v, nil
}

// move — одно условное изменение статуса.
type move struct {
	event     lifecycle.Event
	projectID uint
	ownerCol  string // client_id или contractor_id
	ownerID   uint
	set       map[string]any
	guard     string
	guardArgs []any
}

// transition выполняет UPDATE, который заново проверяет id, владельца и
// исходный статус. Ноль затронутых строк значит, что состояние уже изменилось.
func (s *ProjectService) transition(tx *gorm.DB, m move) error {
	to, ok := lifecycle.Target(m.event)
	if !ok {
		return fmt.Errorf("%w: %s", lifecycle.ErrIllegalTransition, m.event)
	}
	var from []string
	for _, st := range lifecycle.Sources(m.event) {
		from = append(from, string(st))
	}

	set := map[string]any{"status": string(to)}
	for k, v := range m.set {
		set[k] = v
	}

	q := tx.Model(&models.Project{}).
		Where("id = ? AND "+m.ownerCol+" = ? AND status IN ?", m.projectID, m.ownerID, from)
	if m.guard != "" {
		q = q.Where(m.guard, m.guardArgs...)
	}
	res := q.Updates(set)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperr.ErrLostRace
	}
	return nil
}

// guardFailed — ответ на событие, недопустимое в текущем статусе.
func guardFailed(err error, msg string) error {
	if errors.Is(err, lifecycle.ErrIllegalTransition) {
		return apperr.Conflict(msg)
	}
	return err
}

// SelectProposal назначает автора предложения исполнителем открытого проекта.
func (s *ProjectService) SelectProposal(ctx context.Context, c auth.Client, projectID, proposalID uint) error {
	p, err := s.owned(ctx, c, projectID)
	if err != nil {
		return err
	}
	if _, err := lifecycle.Next(p.Status, lifecycle.SelectProposal); err != nil {
		return guardFailed(err, "Исполнитель уже выбран")
	}

	var prop models.Proposal
	err = s.db.WithContext(ctx).
		Preload("Contractor").
		Where("id = ? AND project_id = ?", proposalID, projectID).
		First(&prop).Error
	if err != nil {
		return dbErr(err, "load proposal", "Предложение не найдено")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transition(tx, move{
			event:     lifecycle.SelectProposal,
			projectID: projectID,
			ownerCol:  "client_id",
			ownerID:   c.ID,
			set:       map[string]any{"contractor_id": prop.ContractorID},
		})
		if err != nil {
			return err
		}
		return database.CreateAuditLog(tx, c.ID, database.EntityProject, projectID, string(lifecycle.SelectProposal),
			fmt.Sprintf("Выбран исполнитель %s, сумма %.2f", prop.Contractor.Username, prop.Quote))
	})
	if err != nil {
		return transitionErr(err, "select proposal")
	}
	s.metrics.Transition(string(lifecycle.SelectProposal))
	return nil
}

// Approve принимает результат; открытые вопросы блокируют завершение
// и в предпроверке, и в самом UPDATE.
func (s *ProjectService) Approve(ctx context.Context, c auth.Client, projectID uint) error {
	p, err := s.owned(ctx, c, projectID)
	if err != nil {
		return err
	}
	if _, err := lifecycle.Next(p.Status, lifecycle.Approve); err != nil {
		return guardFailed(err, "Проект не ожидает приёмки")
	}

	open, err := countOpenIssues(ctx, s.db, projectID)
	if err != nil {
		return err
	}
	if open > 0 {
		return apperr.ErrOpenIssues
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transition(tx, move{
			event:     lifecycle.Approve,
			projectID: projectID,
			ownerCol:  "client_id",
			ownerID:   c.ID,
			set:       map[string]any{"completed_at": s.now()},
			guard:     "NOT EXISTS (SELECT 1 FROM project_issues WHERE project_issues.project_id = projects.id AND project_issues.status = ?)",
			guardArgs: []any{string(models.IssueOpen)},
		})
		if err != nil {
			return err
		}
		return database.CreateAuditLog(tx, c.ID, database.EntityProject, projectID, string(lifecycle.Approve), "Результат принят, проект завершён")
	})
	if errors.Is(err, apperr.ErrLostRace) {
		// вопрос могли открыть между проверкой и UPDATE
		if n, cerr := countOpenIssues(ctx, s.db, projectID); cerr == nil && n > 0 {
			return apperr.ErrOpenIssues
		}
	}
	if err != nil {
		return transitionErr(err, "approve project")
	}
	s.metrics.Transition(string(lifecycle.Approve))
	return nil
}

func (s *ProjectService) Reject(ctx context.Context, c auth.Client, projectID uint) error {
	p, err := s.owned(ctx, c, projectID)
	if err != nil {
		return err
	}
	if _, err := lifecycle.Next(p.Status, lifecycle.Reject); err != nil {
		return guardFailed(err, "Проект не ожидает приёмки")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := s.transition(tx, move{
			event:     lifecycle.Reject,
			projectID: projectID,
			ownerCol:  "client_id",
			ownerID:   c.ID,
		})
		if err != nil {
			return err
		}
		return database.CreateAuditLog(tx, c.ID, database.EntityProject, projectID, string(lifecycle.Reject), "Результат отправлен на доработку")
	})
	if err != nil {
		return transitionErr(err, "reject project")
	}
	s.metrics.Transition(string(lifecycle.Reject))
	return nil
}

// transitionErr оставляет ошибки apperr как есть, остальное — внутренний сбой.
func transitionErr(err error, op string) error {
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperr.ErrLostRace
	}
	return apperr.Internal(op, err)
}

// UploadDeliverable сохраняет результат новой версией и переводит проект на
// приёмку. Файл удаляется, если транзакция не прошла.
func (s *ProjectService) UploadDeliverable(ctx context.Context, k auth.Contractor, projectID uint, up *Upload, description string) (*models.ProjectFile, error) {
	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, projectID).Error; err != nil {
		return nil, dbErr(err, "load project", msgProjectNotFound)
	}
	if p.ContractorID == nil || *p.ContractorID != k.ID {
		if p.Status == models.StatusOpen {
			return nil, apperr.Forbidden("Загружать результат может только выбранный исполнитель")
		}
		return nil, apperr.NotFound(msgProjectNotFound)
	}
	if _, err := lifecycle.Next(p.Status, lifecycle.UploadDeliverable); err != nil {
		return nil, guardFailed(err, "Сейчас загрузить результат нельзя")
	}
	if !up.present() {
		return nil, apperr.Validation("Выберите файл")
	}

	rel, n, err := s.files.Save(projectID, storage.Deliverables, up.Filename, up.Body)
	if err != nil {
		return nil, apperr.Internal("save deliverable", err)
	}

	file := models.ProjectFile{
		ProjectID:   projectID,
		UploaderID:  k.ID,
		Filename:    up.Filename,
		Filepath:    rel,
		Description: strings.TrimSpace(description),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var last int
		err := tx.Model(&models.ProjectFile{}).
			Where("project_id = ?", projectID).
			Select("COALESCE(MAX(version), 0)").
			Scan(&last).Error
		if err != nil {
			return err
		}
		file.Version = last + 1
		if err := tx.Create(&file).Error; err != nil {
			return err
		}
		err = s.transition(tx, move{
			event:     lifecycle.UploadDeliverable,
			projectID: projectID,
			ownerCol:  "contractor_id",
			ownerID:   k.ID,
		})
		if err != nil {
			return err
		}
		return database.CreateAuditLog(tx, k.ID, database.EntityProject, projectID, string(lifecycle.UploadDeliverable),
			fmt.Sprintf("Загружена версия %d: %s", file.Version, file.Filename))
	})
	if err != nil {
		s.discard(rel)
		return nil, transitionErr(err, "upload deliverable")
	}

	s.metrics.Uploaded(string(storage.Deliverables), n)
	s.metrics.Transition(string(lifecycle.UploadDeliverable))
	return &file, nil
}

type ContractorProjectView struct {
	Project     models.Project
	Assigned    bool
	Expired     bool
	MyProposal  *models.Proposal
	Files       []models.ProjectFile
	Issues      []models.Issue
	MyReview    *models.Review
	CanReview   bool
	BudgetRange budget.Bounds
}

// DetailForContractor: открытые проекты видны всем исполнителям, остальные
// только назначенному.
func (s *ProjectService) DetailForContractor(ctx context.Context, k auth.Contractor, projectID uint) (*ContractorProjectView, error) {
	var p models.Project
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("id = ? AND (status = ? OR contractor_id = ?)", projectID, string(models.StatusOpen), k.ID).
		First(&p).Error
	if err != nil {
		return nil, dbErr(err, "load project", msgProjectNotFound)
	}

	v := &ContractorProjectView{
		Project:     p,
		Assigned:    p.ContractorID != nil && *p.ContractorID == k.ID,
		Expired:     p.Expired(s.now()),
		BudgetRange: p.Bounds(),
	}

	var prop models.Proposal
	err = s.db.WithContext(ctx).Where("project_id = ? AND contractor_id = ?", projectID, k.ID).First(&prop).Error
	switch {
	case err == nil:
		v.MyProposal = &prop
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, apperr.Internal("load own proposal", err)
	}

	if !v.Assigned {
		return v, nil
	}
	if v.Files, err = listFiles(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	if v.Issues, err = listIssues(ctx, s.db, projectID); err != nil {
		return nil, err
	}
	if p.Status == models.StatusCompleted {
		if v.MyReview, err = findReview(ctx, s.db, projectID, k.ID); err != nil {
			return nil, err
		}
		v.CanReview = v.MyReview == nil
	}
	return v, nil
}

// Сортировки ленты исполнителя.
const (
	SortNewest     = "newest"
	SortDeadline   = "deadline"
	SortBudgetHigh = "budget_high"
)

type BrowseFilter struct {
	Query          string
	MinBudget      *int64
	MaxBudget      *int64
	DeadlineDays   *int
	DeadlineBefore *time.Time
	Sort           string
}

type BrowseItem struct {
	Project     models.Project
	HasProposed bool
	BudgetValue int64
}

// likeEscaper экранирует % и _, чтобы поисковая строка совпадала буквально.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// Browse — открытые проекты с неистёкшим сроком. Фильтр и сортировка по
// бюджету выполняются после запроса, по уже загруженным строкам.
func (s *ProjectService) Browse(ctx context.Context, k auth.Contractor, f BrowseFilter) ([]BrowseItem, error) {
	now := s.now()
	q := s.db.WithContext(ctx).
		Preload("Client").
		Where("status = ?", string(models.StatusOpen)).
		Where("deadline IS NULL OR deadline > ?", now)

	if term := strings.ToLower(strings.TrimSpace(f.Query)); term != "" {
		like := "%" + likeEscaper.Replace(term) + "%"
		q = q.Where(`LOWER(title) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\'`, like, like)
	}
	switch {
	case f.DeadlineDays != nil:
		q = q.Where("deadline <= ?", now.AddDate(0, 0, *f.DeadlineDays))
	case f.DeadlineBefore != nil:
		q = q.Where("deadline <= ?", *f.DeadlineBefore)
	}

	switch f.Sort {
	case SortDeadline:
		q = q.Order("CASE WHEN deadline IS NULL THEN 1 ELSE 0 END").Order("deadline ASC")
	default:
		q = q.Order("created_at DESC, id DESC")
	}

	var projects []models.Project
	if err := q.Find(&projects).Error; err != nil {
		return nil, apperr.Internal("browse projects", err)
	}

	var proposed []uint
	err := s.db.WithContext(ctx).Model(&models.Proposal{}).
		Where("contractor_id = ?", k.ID).
		Pluck("project_id", &proposed).Error
	if err != nil {
		return nil, apperr.Internal("list own proposals", err)
	}
	mine := make(map[uint]bool, len(proposed))
	for _, id := range proposed {
		mine[id] = true
	}

	items := make([]BrowseItem, 0, len(projects))
	for _, p := range projects {
		v := p.BudgetValue()
		if f.MinBudget != nil && v < *f.MinBudget {
			continue
		}
		if f.MaxBudget != nil && v > *f.MaxBudget {
			continue
		}
		items = append(items, BrowseItem{Project: p, HasProposed: mine[p.ID], BudgetValue: v})
	}

	if f.Sort == SortBudgetHigh {
		sort.SliceStable(items, func(i, j int) bool { return items[i].BudgetValue > items[j].BudgetValue })
	}
	return items, nil
}

// Вкладки «моих проектов» исполнителя.
const (
	TabOpen            = "open"
	TabInProgress      = "in_progress"
	TabPendingApproval = "pending_approval"
	TabCompleted       = "completed"
)

var tabStatuses = map[string][]string{
	TabInProgress:      {string(models.StatusInProgress), string(models.StatusRejected)},
	TabPendingApproval: {string(models.StatusPendingApproval)},
	TabCompleted:       {string(models.StatusCompleted)},
}

// MyProjects — проекты, где исполнитель назначен; на доработке считаются «в работе».
func (s *ProjectService) MyProjects(ctx context.Context, k auth.Contractor, tab string) ([]models.Project, error) {
	statuses, ok := tabStatuses[tab]
	if !ok {
		return nil, nil
	}
	var projects []models.Project
	err := s.db.WithContext(ctx).
		Preload("Client").
		Where("contractor_id = ? AND status IN ?", k.ID, statuses).
		Order("created_at DESC, id DESC").
		Find(&projects).Error
	if err != nil {
		return nil, apperr.Internal("list contractor projects", err)
	}
	return projects, nil
}

type ContractorStats struct {
	Open            int64
	InProgress      int64
	PendingApproval int64
	Completed       int64
}

func (s *ProjectService) Stats(ctx context.Context, k auth.Contractor) (ContractorStats, error) {
	var st ContractorStats
	db := s.db.WithContext(ctx)

	err := db.Model(&models.Project{}).
		Where("status = ? AND (deadline IS NULL OR deadline > ?)", string(models.StatusOpen), s.now()).
		Count(&st.Open).Error
	if err != nil {
		return st, apperr.Internal("count open projects", err)
	}

	for tab, dst := range map[string]*int64{
		TabInProgress:      &st.InProgress,
		TabPendingApproval: &st.PendingApproval,
		TabCompleted:       &st.Completed,
	} {
		err := db.Model(&models.Project{}).
			Where("contractor_id = ? AND status IN ?", k.ID, tabStatuses[tab]).
			Count(dst).Error
		if err != nil {
			return st, apperr.Internal("count contractor projects", err)
		}
	}
	return st, nil
}

// member загружает проект, если пользователь — его заказчик или назначенный исполнитель.
func member(ctx context.Context, db *gorm.DB, id auth.Identity, projectID uint) (*models.Project, error) {
	var p models.Project
	err := db.WithContext(ctx).
		Where("id = ? AND (client_id = ? OR contractor_id = ?)", projectID, id.ID, id.ID).
		First(&p).Error
	if err != nil {
		return nil, dbErr(err, "load project", msgProjectNotFound)
	}
	return &p, nil
}

// History — журнал событий проекта для его участников, от старых к новым.
func (s *ProjectService) History(ctx context.Context, id auth.Identity, projectID uint) (*models.Project, []models.AuditLog, error) {
	p, err := member(ctx, s.db, id, projectID)
	if err != nil {
		return nil, nil, err
	}
	var logs []models.AuditLog
	err = s.db.WithContext(ctx).
		Preload("User").
		Where("entity = ? AND entity_id = ?", database.EntityProject, projectID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	if err != nil {
		return nil, nil, apperr.Internal("list history", err)
	}
	return p, logs, nil
}

// CanAccessFile решает, может ли пользователь скачать сохранённый файл.
// Путь уже прошёл storage.Resolve; здесь проверяется только владение.
// Результаты видят участники проекта, файл предложения только заказчик и автор.
func (s *ProjectService) CanAccessFile(ctx context.Context, id auth.Identity, rel string) error {
	owner, cat, err := storage.Parse(rel)
	if err != nil {
		return apperr.NotFound("Файл не найден")
	}
	if cat == storage.Avatar {
		return nil
	}

	var p models.Project
	if err := s.db.WithContext(ctx).First(&p, owner).Error; err != nil {
		return dbErr(err, "load project", "Файл не найден")
	}

	switch cat {
	case storage.Deliverables:
		if p.IsMember(id.ID) {
			return nil
		}
	case storage.Proposals:
		if p.ClientID == id.ID {
			return nil
		}
		if !id.IsContractor() {
			break
		}
		var n int64
		err := s.db.WithContext(ctx).Model(&models.Proposal{}).
			Where("project_id = ? AND contractor_id = ? AND proposal_file = ?", owner, id.ID, rel).
			Count(&n).Error
		if err != nil {
			return apperr.Internal("check proposal file", err)
		}
		if n > 0 {
			return nil
		}
	}
	return apperr.NotFound("Файл не найден")
}

func listFiles(ctx context.Context, db *gorm.DB, projectID uint) ([]models.ProjectFile, error) {
	var files []models.ProjectFile
	err := db.WithContext(ctx).
		Preload("Uploader").
		Where("project_id = ?", projectID).
		Order("version DESC").
		Find(&files).Error
	if err != nil {
		return nil, apperr.Internal("list project files", err)
	}
	return files, nil
}
