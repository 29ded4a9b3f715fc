package handlers

import (
	"net/http"

	"work-platform/internal/apperr"
	"work-platform/internal/middleware"
	"work-platform/internal/models"

	"github.com/gin-gonic/gin"
)

func clientProjectURL(id uint) string {
	return "/client/project/" + itoa(id)
}

func (h *Handler) ClientDashboard(c *gin.Context) {
	projects, err := h.svc.Projects.ListForClient(c.Request.Context(), middleware.CurrentClient(c))
	if err != nil {
		h.fail(c, err, "")
		return
	}
	render(c, http.StatusOK, "client_dashboard.html", gin.H{"Projects": projects})
}

func (h *Handler) ShowCreateProject(c *gin.Context) {
	render(c, http.StatusOK, "project_form.html", gin.H{
		"Form":   projectForm{},
		"Action": "/client/create_project",
	})
}

func (h *Handler) CreateProject(c *gin.Context) {
	var form projectForm
	if err := c.ShouldBind(&form); err != nil {
		renderProjectForm(c, form, "/client/create_project", false, "Укажите название, описание и бюджет из списка")
		return
	}
	in, err := form.input()
	if err != nil {
		renderProjectForm(c, form, "/client/create_project", false, apperr.Message(err))
		return
	}

	p, err := h.svc.Projects.Create(c.Request.Context(), middleware.CurrentClient(c), in)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			renderProjectForm(c, form, "/client/create_project", false, apperr.Message(err))
			return
		}
		h.fail(c, err, "")
		return
	}
	redirectWith(c, clientProjectURL(p.ID), "message", "Проект опубликован")
}

func (h *Handler) ShowEditProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Projects.ForEdit(c.Request.Context(), middleware.CurrentClient(c), id)
	if err != nil {
		h.fail(c, err, clientProjectURL(id))
		return
	}

	form := projectForm{Title: p.Title, Description: p.Description, Budget: p.Budget}
	if p.Deadline != nil {
		form.Deadline = p.Deadline.Local().Format("2006-01-02")
	}
	renderProjectForm(c, form, clientProjectURL(id)+"/edit", true, "")
}

func (h *Handler) UpdateProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	action := clientProjectURL(id) + "/edit"

	var form projectForm
	if err := c.ShouldBind(&form); err != nil {
		renderProjectForm(c, form, action, true, "Укажите название, описание и бюджет из списка")
		return
	}
	in, err := form.input()
	if err != nil {
		renderProjectForm(c, form, action, true, apperr.Message(err))
		return
	}

	err = h.svc.Projects.Update(c.Request.Context(), middleware.CurrentClient(c), id, in)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindValidation {
			renderProjectForm(c, form, action, true, apperr.Message(err))
			return
		}
		h.fail(c, err, clientProjectURL(id))
		return
	}
	redirectWith(c, clientProjectURL(id), "message", "Проект обновлён")
}

func renderProjectForm(c *gin.Context, form projectForm, action string, edit bool, msg string) {
	status := http.StatusOK
	if msg != "" {
		status = http.StatusBadRequest
	}
	render(c, status, "project_form.html", gin.H{
		"Form":   form,
		"Action": action,
		"IsEdit": edit,
		"Error":  msg,
	})
}

func (h *Handler) ClientProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Projects.DetailForClient(c.Request.Context(), middleware.CurrentClient(c), id)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	render(c, http.StatusOK, "client_project.html", gin.H{
		"View":       v,
		"Dimensions": models.ClientToContractor.Dimensions(),
	})
}

func (h *Handler) SelectProposal(c *gin.Context) {
	projectID, ok := idParam(c, "project_id")
	if !ok {
		return
	}
	proposalID, ok := idParam(c, "proposal_id")
	if !ok {
		return
	}

	err := h.svc.Projects.SelectProposal(c.Request.Context(), middleware.CurrentClient(c), projectID, proposalID)
	if err != nil {
		h.fail(c, err, clientProjectURL(projectID))
		return
	}
	redirectWith(c, clientProjectURL(projectID), "message", "Исполнитель выбран")
}

func (h *Handler) Approve(c *gin.Context) {
	h.closeCase(c, "accept")
}

func (h *Handler) Reject(c *gin.Context) {
	h.closeCase(c, "reject")
}

// ManageCase — старая форма приёмки с полем action=accept|reject.
func (h *Handler) ManageCase(c *gin.Context) {
	var form manageForm
	if err := c.ShouldBind(&form); err != nil {
		errorPage(c, http.StatusBadRequest, "Неизвестное действие")
		return
	}
	h.closeCase(c, form.Action)
}

func (h *Handler) closeCase(c *gin.Context, action string) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	ctx, cl := c.Request.Context(), middleware.CurrentClient(c)

	var err error
	msg := "Работа принята, проект завершён"
	if action == "accept" {
		err = h.svc.Projects.Approve(ctx, cl, id)
	} else {
		err = h.svc.Projects.Reject(ctx, cl, id)
		msg = "Работа отправлена на доработку"
	}
	if err != nil {
		h.fail(c, err, clientProjectURL(id))
		return
	}
	redirectWith(c, clientProjectURL(id), "message", msg)
}

func (h *Handler) ResolveIssue(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	projectID, err := h.svc.Issues.Resolve(c.Request.Context(), middleware.CurrentClient(c), id)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	redirectWith(c, clientProjectURL(projectID), "message", "Вопрос закрыт")
}
