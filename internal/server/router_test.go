package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"work-platform/internal/assistant"
	"work-platform/internal/auth"
	"work-platform/internal/config"
	"work-platform/internal/database"
	"work-platform/internal/handlers"
	"work-platform/internal/metrics"
	"work-platform/internal/models"
	"work-platform/internal/service"
	"work-platform/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type app struct {
	t  *testing.T
	db *gorm.DB
	r  *gin.Engine
}

func newApp(t *testing.T, opts ...func(*config.Config)) *app {
	t.Helper()
	gin.SetMode(gin.TestMode)

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

	cfg := &config.Config{
		SessionSecret: "test-secret",
		TemplateGlob:  "../../web/templates/*.html",
		StaticDir:     "../../web/static",
	}
	for _, opt := range opts {
		opt(cfg)
	}
	files := storage.New(t.TempDir())
	m := metrics.New(prometheus.NewRegistry())
	r, err := NewRouter(cfg, Deps{
		Handler:  handlers.New(service.New(db, files, m), files, assistant.New(config.AIConfig{})),
		Resolver: auth.NewResolver(db),
		Metrics:  m,
	})
	require.NoError(t, err)
	return &app{t: t, db: db, r: r}
}

func (a *app) do(method, path string, body io.Reader, contentType string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	a.r.ServeHTTP(w, req)
	return w
}

func (a *app) get(path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return a.do(http.MethodGet, path, nil, "", cookies)
}

func (a *app) post(path string, form url.Values, cookies []*http.Cookie) *httptest.ResponseRecorder {
	return a.do(http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded", cookies)
}

func (a *app) postFile(path string, fields map[string]string, field, name, content string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(a.t, mw.WriteField(k, v))
	}
	if field != "" {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(a.t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(a.t, err)
	}
	require.NoError(a.t, mw.Close())
	return a.do(http.MethodPost, path, &buf, mw.FormDataContentType(), cookies)
}

func (a *app) register(name string, role models.UserRole) {
	a.t.Helper()
	w := a.post("/register", url.Values{
		"username": {name},
		"email":    {name + "@example.com"},
		"password": {"password"},
		"role":     {string(role)},
	}, nil)
	require.Equal(a.t, http.StatusFound, w.Code, w.Body.String())
}

func (a *app) login(name string) []*http.Cookie {
	a.t.Helper()
	w := a.post("/login", url.Values{"username": {name}, "password": {"password"}}, nil)
	require.Equal(a.t, http.StatusFound, w.Code, w.Body.String())
	return w.Result().Cookies()
}

func (a *app) project(id uint) models.Project {
	a.t.Helper()
	var p models.Project
	require.NoError(a.t, a.db.First(&p, id).Error)
	return p
}

func (a *app) count(model any, query string, args ...any) int64 {
	a.t.Helper()
	var n int64
	require.NoError(a.t, a.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func location(w *httptest.ResponseRecorder) string {
	loc, _ := url.QueryUnescape(w.Header().Get("Location"))
	return loc
}

func TestRegister_DuplicateDoesNotCreateUser(t *testing.T) {
	a := newApp(t)
	a.register("alice", models.RoleClient)

	w := a.post("/register", url.Values{
		"username": {"alice"},
		"email":    {"new@example.com"},
		"password": {"password"},
		"role":     {"contractor"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "уже существует")

	w = a.post("/register", url.Values{
		"username": {"bob"},
		"email":    {"alice@example.com"},
		"password": {"password"},
		"role":     {"client"},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, int64(1), a.count(&models.User{}, "1 = 1"))
}

func TestLogin(t *testing.T) {
	a := newApp(t)
	a.register("alice", models.RoleClient)

	w := a.post("/login", url.Values{"username": {"alice"}, "password": {"wrong-password"}}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Неверный логин или пароль")

	w = a.post("/login", url.Values{"username": {"alice"}, "password": {"password"}}, nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/client/dashboard", w.Header().Get("Location"))

	w = a.get("/", w.Result().Cookies())
	assert.Equal(t, "/client/dashboard", w.Header().Get("Location"))
}

func TestRoleGates(t *testing.T) {
	a := newApp(t)
	a.register("alice", models.RoleClient)
	a.register("ivan", models.RoleContractor)
	ivan := a.login("ivan")

	w := a.get("/client/dashboard", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = a.get("/client/dashboard", ivan)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = a.get("/contractor/dashboard", ivan)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Кабинет исполнителя")
}

func TestDownload_RejectsTraversal(t *testing.T) {
	a := newApp(t)
	a.register("ivan", models.RoleContractor)
	ivan := a.login("ivan")

	for _, p := range []string{"uploads/../../etc/passwd", "/etc/passwd", "etc/passwd", ""} {
		w := a.get("/contractor/download?path="+url.QueryEscape(p), ivan)
		assert.Equal(t, http.StatusBadRequest, w.Code, p)
	}
}

func TestPublicPages(t *testing.T) {
	a := newApp(t)

	for _, p := range []string{"/", "/login", "/register", "/support", "/health"} {
		w := a.get(p, nil)
		assert.Equal(t, http.StatusOK, w.Code, p)
	}
	assert.Equal(t, http.StatusNotFound, a.get("/no/such/page", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.get("/users/profile/999", nil).Code)
}

func TestChat_NotConfigured(t *testing.T) {
	a := newApp(t)

	w := a.do(http.MethodPost, "/ai/chat", strings.NewReader(`{"message":"нужен сайт"}`), "application/json", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Code int `json:"code"`
		Data struct {
			Reply string `json:"reply"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Zero(t, body.Code)
	assert.Equal(t, assistant.ReplyNotConfigured, body.Data.Reply)
}

func TestProjectFlow(t *testing.T) {
	a := newApp(t)
	a.register("alice", models.RoleClient)
	a.register("ivan", models.RoleContractor)
	a.register("petr", models.RoleContractor)
	alice, ivan, petr := a.login("alice"), a.login("ivan"), a.login("petr")

	// публикация
	w := a.post("/client/create_project", url.Values{
		"title":       {"Landing page"},
		"description": {"One page site"},
		"budget":      {"5,001 - 10,000"},
	}, alice)
	require.Equal(t, http.StatusFound, w.Code, w.Body.String())
	var p models.Project
	require.NoError(t, a.db.Where("title = ?", "Landing page").First(&p).Error)
	pid := fmt.Sprint(p.ID)
	assert.True(t, strings.HasPrefix(location(w), "/client/project/"+pid))

	w = a.post("/client/create_project", url.Values{
		"title": {"Bad"}, "description": {"x"}, "budget": {"free"},
	}, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.get("/contractor/dashboard?q=landing", ivan)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Landing page")

	// ставки
	w = a.postFile("/contractor/project/"+pid+"/propose", map[string]string{"quote": "12000"}, "", "", "", ivan)
	assert.Contains(t, location(w), "error=")
	assert.Contains(t, location(w), "5001 - 10000")

	w = a.postFile("/contractor/project/"+pid+"/propose", map[string]string{"quote": "7000", "message": "Сделаю"},
		"proposal_file", "offer.pdf", "%PDF-1.4", ivan)
	assert.Contains(t, location(w), "message=")
	var prop models.Proposal
	require.NoError(t, a.db.Where("project_id = ?", p.ID).First(&prop).Error)
	assert.NotEmpty(t, prop.ProposalFile)

	w = a.get("/client/project/"+pid, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ivan")
	assert.Contains(t, w.Body.String(), "7000")

	// петр не видит чужой файл предложения, заказчик видит
	fileURL := "/download?path=" + url.QueryEscape(prop.ProposalFile)
	assert.Equal(t, http.StatusNotFound, a.get("/contractor"+fileURL, petr).Code)
	w = a.get("/client"+fileURL, alice)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	// выбор исполнителя
	w = a.post(fmt.Sprintf("/client/select_proposal/%d/%d", p.ID, prop.ID), nil, alice)
	assert.Contains(t, location(w), "message=")
	assert.Equal(t, models.StatusInProgress, a.project(p.ID).Status)

	w = a.post(fmt.Sprintf("/client/select_proposal/%d/%d", p.ID, prop.ID), nil, alice)
	assert.Contains(t, location(w), "error=")

	// сдача работы
	w = a.postFile("/contractor/project/"+pid+"/upload", map[string]string{"description": "v1"}, "file", "site.zip", "zip", petr)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = a.postFile("/contractor/project/"+pid+"/upload", map[string]string{"description": "v1"}, "file", "site.zip", "zip", ivan)
	assert.Contains(t, location(w), "message=")
	assert.Equal(t, models.StatusPendingApproval, a.project(p.ID).Status)
	assert.Equal(t, int64(1), a.count(&models.ProjectFile{}, "project_id = ?", p.ID))

	w = a.get("/contractor/project/"+pid, ivan)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "site.zip")

	// открытый вопрос блокирует приёмку
	w = a.post("/contractor/project/"+pid+"/create_issue", url.Values{"title": {"Логотип"}, "description": {"Какой?"}}, ivan)
	assert.Contains(t, location(w), "message=")
	var issue models.Issue
	require.NoError(t, a.db.Where("project_id = ?", p.ID).First(&issue).Error)
	iid := fmt.Sprint(issue.ID)

	w = a.post("/client/issue/"+iid+"/comment", url.Values{"message": {"Старый"}}, alice)
	assert.Equal(t, http.StatusFound, w.Code)

	w = a.post("/client/manage_case/"+pid, url.Values{"action": {"accept"}}, alice)
	assert.Contains(t, location(w), "error=")
	assert.Equal(t, models.StatusPendingApproval, a.project(p.ID).Status)

	w = a.get("/client/project/"+pid, alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Логотип")
	assert.Contains(t, w.Body.String(), "Старый")

	w = a.post("/client/issue/"+iid+"/resolve", nil, alice)
	assert.Contains(t, location(w), "message=")

	w = a.post("/client/project/"+pid+"/approve", nil, alice)
	assert.Contains(t, location(w), "message=")
	assert.Equal(t, models.StatusCompleted, a.project(p.ID).Status)

	// отзывы
	scores := url.Values{"score1": {"5"}, "score2": {"4"}, "score3": {"4"}, "comment": {"<b>Отлично</b>"}}
	w = a.post("/users/review/"+pid, scores, alice)
	assert.Contains(t, location(w), "message=")
	w = a.post("/users/review/"+pid, scores, alice)
	assert.Contains(t, location(w), "message=")
	assert.Equal(t, int64(1), a.count(&models.Review{}, "project_id = ? AND direction = ?", p.ID, models.ClientToContractor))

	w = a.post("/api/ratings", url.Values{"project_id": {pid}, "score1": {"4"}, "score2": {"4"}, "score3": {"5"}}, ivan)
	assert.Contains(t, location(w), "/contractor/project/"+pid)
	assert.Equal(t, int64(2), a.count(&models.Review{}, "project_id = ?", p.ID))

	var ivanUser models.User
	require.NoError(t, a.db.Where("username = ?", "ivan").First(&ivanUser).Error)
	w = a.get(fmt.Sprintf("/users/profile/%d", ivanUser.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "4.3")
	assert.Contains(t, w.Body.String(), "Отлично")
	assert.NotContains(t, w.Body.String(), "<b>Отлично")

	w = a.get(fmt.Sprintf("/users/api/preview/%d", ivanUser.ID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var preview struct {
		Code int             `json:"code"`
		Data service.Preview `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &preview))
	assert.Equal(t, "ivan", preview.Data.Username)
	assert.Equal(t, "4.3 ⭐", preview.Data.Stats.Rating)

	w = a.get(fmt.Sprintf("/api/contractors/%d/rating-preview", ivanUser.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Отлично")

	w = a.get("/projects/"+pid+"/history", alice)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "approve")
	assert.Equal(t, http.StatusNotFound, a.get("/projects/"+pid+"/history", petr).Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newApp(t)
	a.get("/health", nil)

	w := a.get("/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "workplatform_http_requests_total")
}

func TestMetricsEndpoint_SeparateListener(t *testing.T) {
	a := newApp(t, func(cfg *config.Config) { cfg.MetricsAddr = "127.0.0.1:9091" })

	w := a.get("/metrics", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.NotContains(t, w.Body.String(), "workplatform_http_requests_total")
}
