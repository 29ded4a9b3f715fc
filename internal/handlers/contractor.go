package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"work-platform/internal/middleware"
	"work-platform/internal/models"
	"work-platform/internal/service"

	"github.com/gin-gonic/gin"
)

func contractorProjectURL(id uint) string {
	return "/contractor/project/" + itoa(id)
}

// ContractorDashboard: вкладка open — лента поиска, остальные — свои проекты.
func (h *Handler) ContractorDashboard(c *gin.Context) {
	ctx, k := c.Request.Context(), middleware.CurrentContractor(c)
	tab := c.DefaultQuery("status", service.TabOpen)

	stats, err := h.svc.Projects.Stats(ctx, k)
	if err != nil {
		h.fail(c, err, "")
		return
	}

	data := gin.H{"Stats": stats, "Tab": tab}
	if tab == service.TabOpen {
		f := browseFilter(c)
		items, err := h.svc.Projects.Browse(ctx, k, f)
		if err != nil {
			h.fail(c, err, "")
			return
		}
		data["Items"] = items
		data["Filter"] = gin.H{
			"Q":              f.Query,
			"MinBudget":      c.Query("min_budget"),
			"MaxBudget":      c.Query("max_budget"),
			"DeadlineDays":   c.Query("deadline_days"),
			"CustomDeadline": c.Query("custom_deadline"),
			"Sort":           f.Sort,
		}
	} else {
		projects, err := h.svc.Projects.MyProjects(ctx, k, tab)
		if err != nil {
			h.fail(c, err, "")
			return
		}
		data["Projects"] = projects
	}
	render(c, http.StatusOK, "contractor_dashboard.html", data)
}

// browseFilter разбирает параметры поиска; нечисловые значения игнорируются.
func browseFilter(c *gin.Context) service.BrowseFilter {
	f := service.BrowseFilter{
		Query: c.Query("q"),
		Sort:  c.DefaultQuery("sort", service.SortNewest),
	}
	if f.Query == "" {
		f.Query = c.Query("search")
	}
	f.MinBudget = optInt64(c.Query("min_budget"))
	f.MaxBudget = optInt64(c.Query("max_budget"))

	switch days := strings.TrimSpace(c.Query("deadline_days")); days {
	case "":
	case "custom":
		if d, err := time.ParseInLocation("2006-01-02", c.Query("custom_deadline"), time.Local); err == nil {
			end := d.Add(24*time.Hour - time.Second)
			f.DeadlineBefore = &end
		}
	default:
		if n, err := strconv.Atoi(days); err == nil && n > 0 {
			f.DeadlineDays = &n
		}
	}
	return f
}

func optInt64(s string) *int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || v < 0 {
		return nil
	}
	return &v
}

func (h *Handler) ContractorProject(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	v, err := h.svc.Projects.DetailForContractor(c.Request.Context(), middleware.CurrentContractor(c), id)
	if err != nil {
		h.fail(c, err, "")
		return
	}
	render(c, http.StatusOK, "contractor_project.html", gin.H{
		"View":       v,
		"Dimensions": models.ContractorToClient.Dimensions(),
	})
}

func (h *Handler) Propose(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	back := contractorProjectURL(id)

	var form proposalForm
	if err := c.ShouldBind(&form); err != nil {
		redirectWith(c, back, "error", "Укажите сумму предложения числом больше нуля")
		return
	}
	file, done, err := formUpload(c, "proposal_file")
	if err != nil {
		h.fail(c, err, back)
		return
	}
	defer done()

	_, err = h.svc.Proposals.Submit(c.Request.Context(), middleware.CurrentContractor(c), id, service.ProposalInput{
		Quote:   form.Quote,
		Message: form.Message,
		File:    file,
	})
	if err != nil {
		h.fail(c, err, back)
		return
	}
	redirectWith(c, back, "message", "Предложение отправлено")
}

func (h *Handler) UploadDeliverable(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	back := contractorProjectURL(id)

	file, done, err := formUpload(c, "file")
	if err != nil {
		h.fail(c, err, back)
		return
	}
	defer done()

	_, err = h.svc.Projects.UploadDeliverable(c.Request.Context(), middleware.CurrentContractor(c), id, file, c.PostForm("description"))
	if err != nil {
		h.fail(c, err, back)
		return
	}
	redirectWith(c, back, "message", "Результат отправлен заказчику на приёмку")
}
