// Package assistant помогает заказчику сформулировать описание проекта.
// Работает с любым OpenAI-совместимым API; по умолчанию Gemini.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"work-platform/internal/config"
	"work-platform/internal/logutils"

	"github.com/sashabaranov/go-openai"
)

const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

const systemPrompt = `Ты помощник по составлению заданий для фрилансеров.
Помоги пользователю превратить расплывчатую идею в понятное и конкретное описание проекта.
Ограничения:
1. Отвечай только на вопросы о заказах и требованиях к проекту.
2. Не больше 150 слов.
3. Сразу предложи «Название» и «Описание задачи».`

// Ответы пользователю; ошибки ассистента наружу не выходят.
const (
	ReplyNotConfigured = "Ассистент не настроен: не задан API-ключ."
	ReplyQuota         = "Лимит запросов к ассистенту исчерпан, попробуйте через минуту."
	ReplyNoModel       = "Нет доступной модели, проверьте права API-ключа."
	ReplyFailure       = "Ассистент временно недоступен, попробуйте позже."
)

type Assistant struct {
	client *openai.Client
	models []string
}

// New без ключа возвращает ассистента, который отвечает ReplyNotConfigured.
func New(cfg config.AIConfig) *Assistant {
	a := &Assistant{models: cfg.Models}
	if cfg.APIKey == "" {
		return a
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	cc.BaseURL = DefaultBaseURL
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	a.client = openai.NewClientWithConfig(cc)
	return a
}

func (a *Assistant) Configured() bool {
	return a != nil && a.client != nil
}

// Reply перебирает модели по порядку: 400, 404 и 429 переводят к следующей,
// прочие ошибки прекращают перебор.
func (a *Assistant) Reply(ctx context.Context, message string) string {
	if !a.Configured() {
		return ReplyNotConfigured
	}

	var lastStatus int
	for _, model := range a.models {
		reply, err := a.complete(ctx, model, message)
		if err == nil {
			return reply
		}

		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && skippable(apiErr.HTTPStatusCode) {
			logutils.Log.WithFields(logutils.Fields{"model": model, "status": apiErr.HTTPStatusCode}).
				Warn("assistant model unavailable, trying next")
			lastStatus = apiErr.HTTPStatusCode
			continue
		}

		logutils.Log.WithError(err).WithField("model", model).Error("assistant request failed")
		return ReplyFailure
	}

	if lastStatus == http.StatusTooManyRequests {
		return ReplyQuota
	}
	return ReplyNoModel
}

func (a *Assistant) complete(ctx context.Context, model, message string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", model)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func skippable(status int) bool {
	switch status {
	case http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests:
		return true
	}
	return false
}
