package handlers

import (
	"errors"
	"net/http"
	"os"

	"work-platform/internal/apperr"
	"work-platform/internal/service"
	"work-platform/internal/storage"

	"github.com/gin-gonic/gin"
)

// formUpload открывает файл из multipart-поля. Отсутствующий файл не ошибка:
// возвращается nil, решает сервис.
func formUpload(c *gin.Context, field string) (*service.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, func() {}, nil
	}
	if err != nil {
		return nil, func() {}, apperr.Validation("Не удалось прочитать файл")
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, apperr.Internal("open upload", err)
	}
	return &service.Upload{Filename: fh.Filename, Body: f}, func() { _ = f.Close() }, nil
}

// Download отдаёт сохранённый файл. Путь проверяется до любого обращения к диску.
func (h *Handler) Download(c *gin.Context) {
	rel := c.Query("path")
	full, err := h.files.Resolve(rel)
	if err != nil {
		errorPage(c, http.StatusBadRequest, "Недопустимый путь к файлу")
		return
	}

	if err := h.svc.Projects.CanAccessFile(c.Request.Context(), me(c), rel); err != nil {
		h.fail(c, err, "")
		return
	}
	if _, err := os.Stat(full); err != nil {
		errorPage(c, http.StatusNotFound, "Файл не найден")
		return
	}
	c.FileAttachment(full, storage.DisplayName(rel))
}

func (h *Handler) Avatar(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	u, err := h.svc.Users.Get(c.Request.Context(), id)
	if err != nil || u.Avatar == "" {
		c.Status(http.StatusNotFound)
		return
	}
	full, err := h.files.Resolve(u.Avatar)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.File(full)
}
