package handlers

import (
	"net/http"

	"work-platform/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Index отправляет вошедшего пользователя в его кабинет.
func (h *Handler) Index(c *gin.Context) {
	if u := middleware.CurrentUser(c); u != nil {
		c.Redirect(http.StatusFound, u.Role.Area()+"/dashboard")
		return
	}
	render(c, http.StatusOK, "index.html", nil)
}

func (h *Handler) Support(c *gin.Context) {
	render(c, http.StatusOK, "support.html", nil)
}

func (h *Handler) NotFound(c *gin.Context) {
	errorPage(c, http.StatusNotFound, "Страница не найдена")
}
