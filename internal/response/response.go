package response

import (
	"net/http"

	"work-platform/internal/apperr"

	"github.com/gin-gonic/gin"
)

type Response[T any] struct {
	Code ErrorCode `json:"code"`
	Data T         `json:"data"`
	Msg  string    `json:"msg"`
}

// Success отдаёт данные с кодом OK.
func Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response[any]{Code: OK, Data: data})
}

// Error переводит ошибку сервиса в JSON-ответ; текст внутренних сбоев не раскрывается.
func Error(c *gin.Context, err error) {
	code, status := CodeFor(apperr.KindOf(err))
	c.JSON(status, Response[any]{Code: code, Msg: apperr.Message(err)})
}

// BadRequestError — для ошибок привязки параметров gin.
func BadRequestError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, Response[any]{Code: InvalidRequest, Msg: msg})
}
