package handlers

import (
	"strings"
	"time"

	"work-platform/internal/apperr"
	"work-platform/internal/budget"
	"work-platform/internal/service"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators добавляет в валидатор gin правило budgetlabel.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return v.RegisterValidation("budgetlabel", func(fl validator.FieldLevel) bool {
		return budget.Known(fl.Field().String())
	})
}

type registerForm struct {
	Username string `form:"username" binding:"required"`
	Email    string `form:"email" binding:"required"`
	Password string `form:"password" binding:"required"`
	Role     string `form:"role" binding:"required,oneof=client contractor"`
}

type loginForm struct {
	Username string `form:"username" binding:"required"`
	Password string `form:"password" binding:"required"`
}

type projectForm struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description" binding:"required"`
	Budget      string `form:"budget" binding:"omitempty,budgetlabel"`
	Deadline    string `form:"deadline"`
}

// input: срок из формы — дата, проект принимает ставки до конца этого дня.
func (f projectForm) input() (service.ProjectInput, error) {
	in := service.ProjectInput{Title: f.Title, Description: f.Description, Budget: f.Budget}
	if s := strings.TrimSpace(f.Deadline); s != "" {
		d, err := time.ParseInLocation("2006-01-02", s, time.Local)
		if err != nil {
			return in, apperr.Validation("Неверный формат даты")
		}
		end := d.Add(24*time.Hour - time.Second)
		in.Deadline = &end
	}
	return in, nil
}

type proposalForm struct {
	Quote   float64 `form:"quote" binding:"required,gt=0"`
	Message string  `form:"message"`
}

type reviewForm struct {
	Score1  int    `form:"score1" binding:"required,min=1,max=5"`
	Score2  int    `form:"score2" binding:"required,min=1,max=5"`
	Score3  int    `form:"score3" binding:"required,min=1,max=5"`
	Comment string `form:"comment" binding:"max=2000"`
}

func (f reviewForm) input() service.ReviewInput {
	return service.ReviewInput{Score1: f.Score1, Score2: f.Score2, Score3: f.Score3, Comment: f.Comment}
}

type ratingForm struct {
	ProjectID uint `form:"project_id" binding:"required"`
	reviewForm
}

type issueForm struct {
	Title       string `form:"title" binding:"required,max=200"`
	Description string `form:"description"`
}

type commentForm struct {
	Message string `form:"message" binding:"required"`
}

type manageForm struct {
	Action string `form:"action" binding:"required,oneof=accept reject"`
}

type chatRequest struct {
	Message string `json:"message" binding:"required"`
}
