package handlers

import (
	"errors"
	"fmt"
	"html/template"
	"time"

	"work-platform/internal/budget"
	"work-platform/internal/lifecycle"
	"work-platform/internal/middleware"
	"work-platform/internal/models"
	"work-platform/internal/service"
	"work-platform/internal/storage"

	"github.com/gin-gonic/gin"
)

// render — обёртка над c.HTML, которая во все шаблоны прокидывает
// CurrentUser и сообщения из ?message= / ?error=.
func render(c *gin.Context, status int, tmpl string, data gin.H) {
	if data == nil {
		data = gin.H{}
	}

	if u := middleware.CurrentUser(c); u != nil {
		data["CurrentUser"] = u
		data["CurrentUsername"] = u.Username
		data["CurrentUserRole"] = u.Role
	}
	if _, ok := data["Message"]; !ok {
		data["Message"] = c.Query("message")
	}
	if _, ok := data["Error"]; !ok {
		data["Error"] = c.Query("error")
	}

	c.HTML(status, tmpl, data)
}

func errorPage(c *gin.Context, status int, msg string) {
	render(c, status, middleware.ErrorTemplate, gin.H{"Status": status, "Message": msg, "Error": ""})
	c.Abort()
}

// TemplateFuncs — функции, доступные во всех шаблонах.
func TemplateFuncs() template.FuncMap {
	return template.FuncMap{
		"statusLabel": func(s models.ProjectStatus) string { return lifecycle.Label(s) },
		"fileName":    storage.DisplayName,
		"budgets":     func() []string { return budget.Labels },
		"avatarURL":   service.AvatarURL,
		"scores":      func() []int { return []int{1, 2, 3, 4, 5} },
		"money":       func(v float64) string { return fmt.Sprintf("%.0f", v) },
		"rating":      func(v float64) string { return fmt.Sprintf("%.1f", v) },
		"datetime":    func(t time.Time) string { return t.Local().Format("2006-01-02 15:04") },
		"deadline": func(t *time.Time) string {
			if t == nil {
				return "Без срока"
			}
			return t.Local().Format("2006-01-02")
		},
		"dict": dict,
	}
}

// dict собирает map для передачи нескольких значений во вложенный шаблон.
func dict(pairs ...any) (map[string]any, error) {
	if len(pairs)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]any, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict: key %v is not a string", pairs[i])
		}
		m[key] = pairs[i+1]
	}
	return m, nil
}
