package assistant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"work-platform/internal/config"

	"github.com/stretchr/testify/assert"
)

// fakeAPI отвечает по модели: статус ошибки или текст.
func fakeAPI(t *testing.T, statuses map[string]int) (*httptest.Server, *[]string) {
	t.Helper()
	var (
		mu    sync.Mutex
		tried []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)

		var req struct {
			Model string `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		mu.Lock()
		tried = append(tried, req.Model)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if code, ok := statuses[req.Model]; ok {
			w.WriteHeader(code)
			_, _ = w.Write([]byte(`{"error":{"message":"unavailable","type":"error","code":"x"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"` + req.Model +
			`","choices":[{"index":0,"message":{"role":"assistant","content":" Название: сайт "},"finish_reason":"stop"}]}`))
	}))
	t.Cleanup(srv.Close)
	return srv, &tried
}

func TestReply_NotConfigured(t *testing.T) {
	a := New(config.AIConfig{Models: []string{"m"}})

	assert.False(t, a.Configured())
	assert.Equal(t, ReplyNotConfigured, a.Reply(context.Background(), "hi"))
}

func TestReply_FallsBackToNextModel(t *testing.T) {
	srv, tried := fakeAPI(t, map[string]int{"m1": http.StatusNotFound, "m2": http.StatusTooManyRequests})
	a := New(config.AIConfig{APIKey: "k", BaseURL: srv.URL, Models: []string{"m1", "m2", "m3"}})

	assert.Equal(t, "Название: сайт", a.Reply(context.Background(), "нужен сайт"))
	assert.Equal(t, []string{"m1", "m2", "m3"}, *tried)
}

func TestReply_QuotaExhausted(t *testing.T) {
	srv, _ := fakeAPI(t, map[string]int{"m1": http.StatusBadRequest, "m2": http.StatusTooManyRequests})
	a := New(config.AIConfig{APIKey: "k", BaseURL: srv.URL, Models: []string{"m1", "m2"}})

	assert.Equal(t, ReplyQuota, a.Reply(context.Background(), "hi"))
}

func TestReply_StopsOnServerError(t *testing.T) {
	srv, tried := fakeAPI(t, map[string]int{"m1": http.StatusInternalServerError})
	a := New(config.AIConfig{APIKey: "k", BaseURL: srv.URL, Models: []string{"m1", "m2"}})

	assert.Equal(t, ReplyFailure, a.Reply(context.Background(), "hi"))
	assert.Equal(t, []string{"m1"}, *tried)
}
