package middleware

import (
	"net/http"

	"work-platform/internal/apperr"
	"work-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

// ErrorTemplate — шаблон страницы ошибки, который рисуют гейты.
const ErrorTemplate = "error.html"

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := auth.Require(CurrentUser(c))
		if err != nil {
			deny(c, err)
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func RequireClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		cl, err := auth.AsClient(CurrentUser(c))
		if err != nil {
			deny(c, err)
			return
		}
		c.Set(identityKey, cl.Identity)
		c.Set(clientKey, cl)
		c.Next()
	}
}

func RequireContractor() gin.HandlerFunc {
	return func(c *gin.Context) {
		k, err := auth.AsContractor(CurrentUser(c))
		if err != nil {
			deny(c, err)
			return
		}
		c.Set(identityKey, k.Identity)
		c.Set(contractorKey, k)
		c.Next()
	}
}

// аноним уходит на вход, чужая роль получает 403
func deny(c *gin.Context, err error) {
	if apperr.KindOf(err) == apperr.KindUnauthenticated {
		c.Redirect(http.StatusFound, "/login")
		c.Abort()
		return
	}
	c.HTML(http.StatusForbidden, ErrorTemplate, gin.H{
		"CurrentUser": CurrentUser(c),
		"Status":      http.StatusForbidden,
		"Message":     apperr.Message(err),
	})
	c.Abort()
}
