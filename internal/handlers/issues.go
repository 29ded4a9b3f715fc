package handlers

import (
	"net/http"

	"work-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

func projectURL(id auth.Identity, projectID uint) string {
	return id.Role.Area() + "/project/" + itoa(projectID)
}

// CreateIssue открывает вопрос; доступен обеим сторонам проекта.
func (h *Handler) CreateIssue(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	id := me(c)
	back := projectURL(id, projectID)

	var form issueForm
	if err := c.ShouldBind(&form); err != nil {
		redirectWith(c, back, "error", "Укажите заголовок вопроса")
		return
	}
	if _, err := h.svc.Issues.Create(c.Request.Context(), id, projectID, form.Title, form.Description); err != nil {
		h.fail(c, err, back)
		return
	}
	redirectWith(c, back, "message", "Вопрос создан")
}

func (h *Handler) CommentIssue(c *gin.Context) {
	issueID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var form commentForm
	if err := c.ShouldBind(&form); err != nil {
		errorPage(c, http.StatusBadRequest, "Сообщение не может быть пустым")
		return
	}

	id := me(c)
	projectID, err := h.svc.Issues.Comment(c.Request.Context(), id, issueID, form.Message)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	c.Redirect(http.StatusFound, projectURL(id, projectID)+"#issue-"+itoa(issueID))
}

func (h *Handler) ProjectHistory(c *gin.Context) {
	projectID, ok := idParam(c, "id")
	if !ok {
		return
	}
	id := me(c)
	p, logs, err := h.svc.Projects.History(c.Request.Context(), id, projectID)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	render(c, http.StatusOK, "project_history.html", gin.H{
		"Project": p,
		"Logs":    logs,
		"Back":    projectURL(id, projectID),
	})
}
