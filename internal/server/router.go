package server

import (
	"net/http"
	"time"

	"work-platform/internal/auth"
	"work-platform/internal/config"
	"work-platform/internal/handlers"
	"work-platform/internal/metrics"
	"work-platform/internal/middleware"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
)

// Deps — всё, что роутер получает снаружи.
type Deps struct {
	Handler  *handlers.Handler
	Resolver *auth.Resolver
	Metrics  *metrics.Metrics
}

func NewRouter(cfg *config.Config, d Deps) (*gin.Engine, error) {
	if err := handlers.RegisterValidators(); err != nil {
		return nil, err
	}

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Logger(), gin.Recovery(), d.Metrics.Middleware())

	r.Static("/static", cfg.StaticDir)
	r.SetFuncMap(handlers.TemplateFuncs())
	r.LoadHTMLGlob(cfg.TemplateGlob)

	store := cookie.NewStore([]byte(cfg.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions("wp_session", store))
	r.Use(middleware.InjectUser(d.Resolver))

	h := d.Handler
	r.NoRoute(h.NotFound)

	// ГЛАВНАЯ
	r.GET("/", h.Index)
	r.GET("/support", h.Support)

	// AUTH
	r.GET("/register", h.ShowRegister)
	r.POST("/register", h.Register)
	r.GET("/login", h.ShowLogin)
	r.POST("/login", h.Login)
	r.GET("/logout", h.Logout)

	// ПРОФИЛИ (публичные)
	r.GET("/users/profile/:id", h.Profile)
	r.GET("/users/avatar/:id", h.Avatar)
	r.GET("/users/api/preview/:id", h.UserPreview)
	r.GET("/api/contractors/:id/rating-preview", h.RatingPreview)
	r.GET("/api/users/:id/rating-preview", h.RatingPreview)

	r.POST("/ai/chat", h.Chat)

	authed := r.Group("/")
	authed.Use(middleware.RequireAuth())
	authed.GET("/users/profile/edit/me", h.ShowEditProfile)
	authed.POST("/users/profile/edit/me", h.UpdateProfile)
	authed.POST("/users/review/:project_id", h.Review)
	authed.POST("/api/ratings", h.Rating)
	authed.GET("/projects/:id/history", h.ProjectHistory)

	// ЗАКАЗЧИК
	client := r.Group("/client")
	client.Use(middleware.RequireClient())
	client.GET("/dashboard", h.ClientDashboard)
	client.GET("/create_project", h.ShowCreateProject)
	client.POST("/create_project", h.CreateProject)
	client.GET("/project/:id", h.ClientProject)
	client.GET("/project/:id/edit", h.ShowEditProject)
	client.POST("/project/:id/edit", h.UpdateProject)
	client.POST("/select_proposal/:project_id/:proposal_id", h.SelectProposal)
	client.POST("/project/:id/approve", h.Approve)
	client.POST("/project/:id/reject", h.Reject)
	client.POST("/manage_case/:id", h.ManageCase)
	client.POST("/project/:id/create_issue", h.CreateIssue)
	client.POST("/issue/:id/comment", h.CommentIssue)
	client.POST("/issue/:id/resolve", h.ResolveIssue)
	client.GET("/download", h.Download)

	// ИСПОЛНИТЕЛЬ
	contractor := r.Group("/contractor")
	contractor.Use(middleware.RequireContractor())
	contractor.GET("/dashboard", h.ContractorDashboard)
	contractor.GET("/project/:id", h.ContractorProject)
	contractor.POST("/project/:id/propose", h.Propose)
	contractor.POST("/project/:id/upload", h.UploadDeliverable)
	contractor.POST("/project/:id/create_issue", h.CreateIssue)
	contractor.POST("/issue/:id/comment", h.CommentIssue)
	contractor.GET("/download", h.Download)

	// СЛУЖЕБНОЕ
	if cfg.MetricsAddr == "" {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	return r, nil
}
