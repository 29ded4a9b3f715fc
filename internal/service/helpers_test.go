package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"work-platform/internal/auth"
	"work-platform/internal/database"
	"work-platform/internal/metrics"
	"work-platform/internal/models"
	"work-platform/internal/storage"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	svc   *Services
	files *storage.Store
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { database.Close(db) })

	require.NoError(t, database.Migrate(db))

	f := &fixture{
		t:     t,
		ctx:   context.Background(),
		db:    db,
		files: storage.New(t.TempDir()),
		now:   time.Date(2030, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = New(db, f.files, metrics.New(prometheus.NewRegistry()))
	f.svc.base.now = func() time.Time { return f.now }
	return f
}

func (f *fixture) user(name string, role models.UserRole) *models.User {
	f.t.Helper()
	u, err := f.svc.Users.Register(f.ctx, RegisterInput{
		Username: name,
		Email:    name + "@example.com",
		Password: "password",
		Role:     role,
	})
	require.NoError(f.t, err)
	return u
}

func (f *fixture) client(name string) auth.Client {
	f.t.Helper()
	c, err := auth.AsClient(f.user(name, models.RoleClient))
	require.NoError(f.t, err)
	return c
}

func (f *fixture) contractor(name string) auth.Contractor {
	f.t.Helper()
	k, err := auth.AsContractor(f.user(name, models.RoleContractor))
	require.NoError(f.t, err)
	return k
}

func (f *fixture) project(c auth.Client, label string) *models.Project {
	f.t.Helper()
	p, err := f.svc.Projects.Create(f.ctx, c, ProjectInput{
		Title:       "Landing page",
		Description: "One page site",
		Budget:      label,
	})
	require.NoError(f.t, err)
	return p
}

// assigned — проект в работе у исполнителя k.
func (f *fixture) assigned(c auth.Client, k auth.Contractor) *models.Project {
	f.t.Helper()
	p := f.project(c, "5,001 - 10,000")
	prop, err := f.svc.Proposals.Submit(f.ctx, k, p.ID, ProposalInput{Quote: 8000})
	require.NoError(f.t, err)
	require.NoError(f.t, f.svc.Projects.SelectProposal(f.ctx, c, p.ID, prop.ID))
	return f.reload(p.ID)
}

func (f *fixture) upload(k auth.Contractor, projectID uint, name string) (*models.ProjectFile, error) {
	return f.svc.Projects.UploadDeliverable(f.ctx, k, projectID,
		&Upload{Filename: name, Body: strings.NewReader("deliverable " + name)}, "")
}

// pending — проект на приёмке.
func (f *fixture) pending(c auth.Client, k auth.Contractor) *models.Project {
	f.t.Helper()
	p := f.assigned(c, k)
	_, err := f.upload(k, p.ID, "v1.zip")
	require.NoError(f.t, err)
	return f.reload(p.ID)
}

func (f *fixture) completed(c auth.Client, k auth.Contractor) *models.Project {
	f.t.Helper()
	p := f.pending(c, k)
	require.NoError(f.t, f.svc.Projects.Approve(f.ctx, c, p.ID))
	return f.reload(p.ID)
}

func (f *fixture) reload(id uint) *models.Project {
	f.t.Helper()
	var p models.Project
	require.NoError(f.t, f.db.First(&p, id).Error)
	return &p
}

func (f *fixture) count(model any, query string, args ...any) int64 {
	f.t.Helper()
	var n int64
	require.NoError(f.t, f.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

// checkInvariants проверяет связь статуса с исполнителем и отсутствие
// открытых вопросов у завершённых проектов.
func (f *fixture) checkInvariants() {
	f.t.Helper()
	var projects []models.Project
	require.NoError(f.t, f.db.Find(&projects).Error)
	for _, p := range projects {
		require.Equal(f.t, p.Status != models.StatusOpen, p.ContractorID != nil,
			"project %d status %s contractor %v", p.ID, p.Status, p.ContractorID)
		if p.Status == models.StatusCompleted {
			require.Zero(f.t, f.count(&models.Issue{}, "project_id = ? AND status = ?", p.ID, models.IssueOpen))
		}
	}
}
