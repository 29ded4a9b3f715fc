package handlers

import (
	"net/http"
	"net/url"
	"strconv"

	"work-platform/internal/apperr"
	"work-platform/internal/assistant"
	"work-platform/internal/service"
	"work-platform/internal/storage"

	"github.com/gin-gonic/gin"
)

// Handler держит зависимости HTTP-слоя; собирается один раз при старте.
type Handler struct {
	svc   *service.Services
	files *storage.Store
	ai    *assistant.Assistant
}

func New(svc *service.Services, files *storage.Store, ai *assistant.Assistant) *Handler {
	return &Handler{svc: svc, files: files, ai: ai}
}

// fail переводит ошибку сервиса в ответ. Ошибки ввода и конфликты
// возвращают пользователя на back с текстом в ?error=.
func (h *Handler) fail(c *gin.Context, err error, back string) {
	msg := apperr.Message(err)
	switch apperr.KindOf(err) {
	case apperr.KindUnauthenticated:
		c.Redirect(http.StatusFound, "/login")
	case apperr.KindForbidden:
		errorPage(c, http.StatusForbidden, msg)
	case apperr.KindNotFound:
		errorPage(c, http.StatusNotFound, msg)
	case apperr.KindValidation, apperr.KindConflict:
		if back == "" {
			errorPage(c, http.StatusBadRequest, msg)
			return
		}
		redirectWith(c, back, "error", msg)
	default:
		_ = c.Error(err)
		errorPage(c, http.StatusInternalServerError, msg)
	}
}

func redirectWith(c *gin.Context, path, key, msg string) {
	c.Redirect(http.StatusFound, path+"?"+url.Values{key: {msg}}.Encode())
}

// idParam читает числовой параметр пути; мусор отвечает 404.
func idParam(c *gin.Context, name string) (uint, bool) {
	v, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || v == 0 {
		errorPage(c, http.StatusNotFound, "Страница не найдена")
		return 0, false
	}
	return uint(v), true
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
