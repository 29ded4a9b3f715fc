package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"work-platform/internal/apperr"
	"work-platform/internal/middleware"
	"work-platform/internal/models"
	"work-platform/internal/response"

	"github.com/gin-gonic/gin"
)

const editProfileURL = "/users/profile/edit/me"

func (h *Handler) Profile(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Users.Profile(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	cur := middleware.CurrentUser(c)
	render(c, http.StatusOK, "profile_view.html", gin.H{
		"Profile": p,
		"IsMe":    cur != nil && cur.ID == id,
	})
}

func (h *Handler) ShowEditProfile(c *gin.Context) {
	u, err := h.svc.Users.Get(c.Request.Context(), me(c).ID)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	render(c, http.StatusOK, "profile_edit.html", gin.H{"User": u})
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	id := me(c)
	avatar, done, err := formUpload(c, "avatar")
	if err != nil {
		h.fail(c, err, editProfileURL)
		return
	}
	defer done()

	if err := h.svc.Users.UpdateProfile(c.Request.Context(), id, c.PostForm("introduction"), avatar); err != nil {
		h.fail(c, err, editProfileURL)
		return
	}
	redirectWith(c, "/users/profile/"+itoa(id.ID), "message", "Профиль сохранён")
}

// UserPreview — JSON для всплывающей карточки.
func (h *Handler) UserPreview(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	p, err := h.svc.Users.Preview(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// RatingPreview — средние оценки и последние комментарии. По умолчанию
// отзывы заказчиков об исполнителе.
func (h *Handler) RatingPreview(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	dir := models.Direction(c.DefaultQuery("direction", string(models.ClientToContractor)))
	p, err := h.svc.Reviews.Preview(c.Request.Context(), id, dir, 3)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, p)
}

// Review — форма отзыва на странице проекта.
func (h *Handler) Review(c *gin.Context) {
	projectID, ok := idParam(c, "project_id")
	if !ok {
		return
	}
	var form reviewForm
	if err := c.ShouldBind(&form); err != nil {
		redirectWith(c, projectURL(me(c), projectID), "error", "Оценки должны быть от 1 до 5")
		return
	}
	h.submitReview(c, projectID, form)
}

// Rating — тот же отзыв, но id проекта приходит полем формы.
func (h *Handler) Rating(c *gin.Context) {
	var form ratingForm
	if err := c.ShouldBind(&form); err != nil {
		if form.ProjectID == 0 {
			errorPage(c, http.StatusBadRequest, "Не указан проект")
			return
		}
		redirectWith(c, projectURL(me(c), form.ProjectID), "error", "Оценки должны быть от 1 до 5")
		return
	}
	h.submitReview(c, form.ProjectID, form.reviewForm)
}

// повторный отзыв не ошибка: пользователь просто видит, что уже оценил
func (h *Handler) submitReview(c *gin.Context, projectID uint, form reviewForm) {
	id := me(c)
	back := projectURL(id, projectID)

	_, err := h.svc.Reviews.Submit(c.Request.Context(), id, projectID, form.input())
	switch {
	case err == nil:
		redirectWith(c, back, "message", "Спасибо за отзыв")
	case errors.Is(err, apperr.ErrAlreadyRated):
		redirectWith(c, back, "message", apperr.Message(err))
	default:
		h.fail(c, err, back)
	}
}

func parseID(s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil || v == 0 {
		return 0, apperr.NotFound("Пользователь не найден")
	}
	return uint(v), nil
}
