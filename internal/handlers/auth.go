package handlers

import (
	"net/http"

	"work-platform/internal/apperr"
	"work-platform/internal/auth"
	"work-platform/internal/middleware"
	"work-platform/internal/models"
	"work-platform/internal/service"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

func (h *Handler) ShowRegister(c *gin.Context) {
	render(c, http.StatusOK, "register.html", gin.H{"Form": registerForm{}})
}

func (h *Handler) Register(c *gin.Context) {
	var form registerForm
	if err := c.ShouldBind(&form); err != nil {
		render(c, http.StatusBadRequest, "register.html", gin.H{"Form": form, "Error": "Заполните все поля и выберите роль"})
		return
	}

	_, err := h.svc.Users.Register(c.Request.Context(), service.RegisterInput{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Role:     models.UserRole(form.Role),
	})
	if err != nil {
		if k := apperr.KindOf(err); k == apperr.KindValidation || k == apperr.KindConflict {
			render(c, http.StatusBadRequest, "register.html", gin.H{"Form": form, "Error": apperr.Message(err)})
			return
		}
		h.fail(c, err, "")
		return
	}

	redirectWith(c, "/login", "message", "Регистрация прошла успешно, войдите")
}

func (h *Handler) ShowLogin(c *gin.Context) {
	render(c, http.StatusOK, "login.html", nil)
}

func (h *Handler) Login(c *gin.Context) {
	var form loginForm
	if err := c.ShouldBind(&form); err != nil {
		render(c, http.StatusBadRequest, "login.html", gin.H{"Error": "Некорректные данные"})
		return
	}

	user, err := h.svc.Users.Authenticate(c.Request.Context(), form.Username, form.Password)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			render(c, http.StatusUnauthorized, "login.html", gin.H{"Username": form.Username, "Error": apperr.Message(err)})
			return
		}
		h.fail(c, err, "")
		return
	}

	sess := sessions.Default(c)
	sess.Clear()
	sess.Set(auth.SessionKey, user.ID)
	if err := sess.Save(); err != nil {
		h.fail(c, apperr.Internal("save session", err), "")
		return
	}

	c.Redirect(http.StatusFound, user.Role.Area()+"/dashboard")
}

func (h *Handler) Logout(c *gin.Context) {
	sess := sessions.Default(c)
	sess.Clear()
	_ = sess.Save()
	c.Redirect(http.StatusFound, "/")
}

// me — личность из контекста для маршрутов за RequireAuth.
func me(c *gin.Context) auth.Identity {
	return middleware.CurrentIdentity(c)
}
