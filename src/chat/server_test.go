package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"farmassist-server-go/src/core/auth"
	dialogue "farmassist-server-go/src/core/chat"
	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/gateway/gatewaytest"
	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, provider types.LLMProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewConsoleLogger("error", nil)
	gw := gateway.New(provider, gateway.RetryConfig{Attempts: 2, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}, nil, logger)

	engine := gin.New()
	engine.Use(gateway.CORS("*"))
	require.NoError(t, NewDefaultChatService(gw, nil, logger).Start(context.Background(), engine, engine.Group("/api")))
	return engine
}

func post(t *testing.T, engine *gin.Engine, req ChatRequest) (*httptest.ResponseRecorder, map[string]string) {
	t.Helper()
	data, err := json.Marshal(req)
	require.NoError(t, err)

	httpReq := httptest.NewRequest(http.MethodPost, "/api/farming-chat", strings.NewReader(string(data)))
	httpReq.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httpReq)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return w, body
}

func TestChat_HistoryReplay(t *testing.T) {
	for _, n := range []int{0, 1, 3, 8} {
		t.Run(fmt.Sprintf("%d轮历史", n), func(t *testing.T) {
			provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: "Plant after the first rains."})
			engine := newTestEngine(t, provider)

			history := make([]dialogue.Turn, 0, n)
			for i := 0; i < n; i++ {
				turnType := "user"
				if i%2 == 1 {
					turnType = "bot"
				}
				history = append(history, dialogue.Turn{Type: turnType, Text: fmt.Sprintf("turn %d", i)})
			}

			w, body := post(t, engine, ChatRequest{Message: "When should I plant beans?", Language: "en", ConversationHistory: history})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, "Plant after the first rains.", body["response"])

			messages := provider.LastRequest().Messages
			require.Len(t, messages, n+2)
			assert.Equal(t, types.RoleSystem, messages[0].Role)
			assert.Equal(t, LocaleFor("en").SystemPrompt, messages[0].Content)
			for i, turn := range history {
				assert.Equal(t, turn.Text, messages[i+1].Content)
				if turn.Type == "user" {
					assert.Equal(t, types.RoleUser, messages[i+1].Role)
				} else {
					assert.Equal(t, types.RoleAssistant, messages[i+1].Role)
				}
			}
			assert.Equal(t, types.Message{Role: types.RoleUser, Content: "When should I plant beans?"}, messages[n+1])
		})
	}
}

func TestChat_ResponsePassthrough(t *testing.T) {
	content := "  ```json\n{\"not\":\"parsed\"}\n```  \n"
	engine := newTestEngine(t, gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: content}))

	w, body := post(t, engine, ChatRequest{Message: "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content, body["response"])
	assert.NotContains(t, body, "error")
}

func TestChat_LanguageSelection(t *testing.T) {
	tests := []struct {
		language string
		want     string
	}{
		{"en", "en"},
		{"fr", "fr"},
		{"rw", "rw"},
		{"RW", "rw"},
		{"sw", "en"},
		{"", "en"},
	}
	for _, tt := range tests {
		t.Run("语言"+tt.language, func(t *testing.T) {
			provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: "ok"})
			engine := newTestEngine(t, provider)

			w, _ := post(t, engine, ChatRequest{Message: "hello", Language: tt.language})
			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, LocaleFor(tt.want).SystemPrompt, provider.LastRequest().Messages[0].Content)
		})
	}
}

func TestChat_Failures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		language   string
		wantStatus int
		want       func(Locale) string
	}{
		{name: "限流", err: &types.UpstreamError{StatusCode: 429}, language: "fr", wantStatus: http.StatusTooManyRequests, want: func(l Locale) string { return l.RateLimited }},
		{name: "额度不足", err: &types.UpstreamError{StatusCode: 402}, language: "rw", wantStatus: http.StatusPaymentRequired, want: func(l Locale) string { return l.Quota }},
		{name: "上游失败", err: &types.UpstreamError{StatusCode: 500}, language: "en", wantStatus: http.StatusInternalServerError, want: func(l Locale) string { return l.Unavailable }},
		{name: "网络错误", err: &types.UpstreamError{Message: "dial tcp: timeout"}, language: "en", wantStatus: http.StatusInternalServerError, want: func(l Locale) string { return l.Unavailable }},
		{name: "缺少密钥", err: types.ErrMissingAPIKey, language: "rw", wantStatus: http.StatusInternalServerError, want: func(l Locale) string { return l.Unavailable }},
		{name: "上游超时", err: &types.UpstreamError{Message: "Client.Timeout exceeded while awaiting headers", Err: context.DeadlineExceeded}, language: "fr", wantStatus: http.StatusInternalServerError, want: func(l Locale) string { return l.Unavailable }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Err: tt.err}))

			w, body := post(t, engine, ChatRequest{Message: "help", Language: tt.language})
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.want(LocaleFor(tt.language)), body["response"])
			assert.NotEmpty(t, body["error"])
			assert.NotContains(t, body["error"], "dial tcp")
		})
	}
}

func TestChat_EmptyMessage(t *testing.T) {
	provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: "ok"})
	engine := newTestEngine(t, provider)

	w, body := post(t, engine, ChatRequest{Message: "   ", Language: "fr"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, LocaleFor("fr").EmptyMessage, body["response"])
	assert.Equal(t, 0, provider.Calls())
}

func TestChat_Options(t *testing.T) {
	engine := newTestEngine(t, gatewaytest.NewFakeProvider())

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/farming-chat", nil))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLocales_Complete(t *testing.T) {
	for code, l := range locales {
		t.Run(code, func(t *testing.T) {
			assert.Equal(t, code, l.Code)
			assert.NotEmpty(t, l.SystemPrompt)
			assert.NotEmpty(t, l.EmptyMessage)
			assert.NotEmpty(t, l.RateLimited)
			assert.NotEmpty(t, l.Quota)
			assert.NotEmpty(t, l.Unavailable)
		})
	}
}

func TestChat_BlankHistoryTurnsSkipped(t *testing.T) {
	provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: "ok"})
	engine := newTestEngine(t, provider)

	history := []dialogue.Turn{
		{Type: "user", Text: "My beans have yellow leaves"},
		{Type: "bot", Text: ""},
		{Type: "user", Text: "   "},
		{Type: "bot", Text: "Check for root rot."},
	}
	w, _ := post(t, engine, ChatRequest{Message: "What next?", Language: "en", ConversationHistory: history})
	require.Equal(t, http.StatusOK, w.Code)

	messages := provider.LastRequest().Messages
	require.Len(t, messages, 4)
	assert.Equal(t, "My beans have yellow leaves", messages[1].Content)
	assert.Equal(t, "Check for root rot.", messages[2].Content)
	assert.Equal(t, "What next?", messages[3].Content)
}

func TestChat_UnauthorizedReplyIsLocalized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	at, err := auth.NewAuthToken("secret")
	require.NoError(t, err)

	provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: "ok"})
	logger := utils.NewConsoleLogger("error", nil)
	gw := gateway.New(provider, gateway.RetryConfig{Attempts: 1}, nil, logger)
	engine := gin.New()
	require.NoError(t, NewDefaultChatService(gw, at, logger).Start(context.Background(), engine, engine.Group("/api")))

	for _, language := range []string{"fr", "rw", "en", ""} {
		t.Run("语言"+language, func(t *testing.T) {
			w, body := post(t, engine, ChatRequest{Message: "hello", Language: language})
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Equal(t, LocaleFor(language).Unavailable, body["response"])
			assert.NotEmpty(t, body["error"])
		})
	}
	assert.Equal(t, 0, provider.Calls())
}
