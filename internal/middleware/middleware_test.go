package middleware

import (
	"context"
	"html/template"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"work-platform/internal/auth"
	"work-platform/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeResolver map[uint]*models.User

func (f fakeResolver) Resolve(_ context.Context, raw any) (*models.User, error) {
	id, ok := raw.(uint)
	if !ok {
		return nil, nil
	}
	return f[id], nil
}

func newRouter(r UserResolver) *gin.Engine {
	gin.SetMode(gin.TestMode)
	e := gin.New()
	e.SetHTMLTemplate(template.Must(template.New(ErrorTemplate).Parse(`{{.Status}} {{.Message}}`)))
	e.Use(sessions.Sessions("test", cookie.NewStore([]byte("secret"))))
	e.Use(RequestID(), InjectUser(r))

	e.GET("/as/:id", func(c *gin.Context) {
		id, _ := strconv.Atoi(c.Param("id"))
		s := sessions.Default(c)
		s.Set(auth.SessionKey, uint(id))
		_ = s.Save()
		c.Status(http.StatusNoContent)
	})
	e.GET("/whoami", func(c *gin.Context) {
		name := "anonymous"
		if u := CurrentUser(c); u != nil {
			name = u.Username
		}
		if sessions.Default(c).Get(auth.SessionKey) == nil {
			name += " (no session)"
		}
		c.String(http.StatusOK, name)
	})
	e.GET("/any", RequireAuth(), func(c *gin.Context) {
		c.String(http.StatusOK, CurrentIdentity(c).Username)
	})
	e.GET("/client", RequireClient(), func(c *gin.Context) {
		c.String(http.StatusOK, "client "+CurrentClient(c).Username)
	})
	e.GET("/contractor", RequireContractor(), func(c *gin.Context) {
		c.String(http.StatusOK, "contractor "+CurrentContractor(c).Username)
	})
	return e
}

func login(t *testing.T, e *gin.Engine, id uint) []*http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	e.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/as/"+strconv.Itoa(int(id)), nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}

func get(e *gin.Engine, path string, cookies []*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)
	return w
}

func users() fakeResolver {
	return fakeResolver{
		1: {Model: gorm.Model{ID: 1}, Username: "alice", Role: models.RoleClient},
		2: {Model: gorm.Model{ID: 2}, Username: "ivan", Role: models.RoleContractor},
	}
}

func TestInjectUser(t *testing.T) {
	e := newRouter(users())

	w := get(e, "/whoami", nil)
	assert.Equal(t, "anonymous (no session)", w.Body.String())

	w = get(e, "/whoami", login(t, e, 1))
	assert.Equal(t, "alice", w.Body.String())
}

func TestInjectUser_StaleSessionIsCleared(t *testing.T) {
	e := newRouter(users())

	w := get(e, "/whoami", login(t, e, 99))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous (no session)", w.Body.String())
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestRoleGates(t *testing.T) {
	e := newRouter(users())
	alice := login(t, e, 1)
	ivan := login(t, e, 2)

	w := get(e, "/client", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = get(e, "/client", alice)
	assert.Equal(t, "client alice", w.Body.String())

	w = get(e, "/client", ivan)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Доступно только заказчикам")

	w = get(e, "/contractor", ivan)
	assert.Equal(t, "contractor ivan", w.Body.String())

	w = get(e, "/contractor", alice)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = get(e, "/any", ivan)
	assert.Equal(t, "ivan", w.Body.String())
}

func TestRequestID(t *testing.T) {
	e := newRouter(users())

	w := get(e, "/whoami", nil)
	assert.Len(t, w.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	e.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}
