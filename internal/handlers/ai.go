package handlers

import (
	"work-platform/internal/response"

	"github.com/gin-gonic/gin"
)

// Chat проксирует вопрос ассистенту. Ответ всегда 200: ассистент сам
// подставляет понятный текст, если недоступен.
func (h *Handler) Chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequestError(c, "Пустое сообщение")
		return
	}
	response.Success(c, gin.H{"reply": h.ai.Reply(c.Request.Context(), req.Message)})
}
