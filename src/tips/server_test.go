package tips

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"farmassist-server-go/src/core/gateway"
	"farmassist-server-go/src/core/gateway/gatewaytest"
	"farmassist-server-go/src/core/types"
	"farmassist-server-go/src/core/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tipsReply = "```json\n" + `{"tips":[` +
	`{"title":"Top-dress maize","description":"Apply urea before the next rain.","category":"fertilization","priority":"high","timeRelevant":"today","basedOn":["weather"],"localResources":["cooperative store"],"expectedBenefit":"better yield"},` +
	`{"title":"Scout for fall armyworm","description":"Check whorls every morning.","category":"pest_control","priority":"medium"}` +
	`]}` + "\n```"

func newTestEngine(t *testing.T, provider types.LLMProvider) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := utils.NewConsoleLogger("error", nil)
	gw := gateway.New(provider, gateway.RetryConfig{Attempts: 1, InitialDelay: time.Millisecond}, nil, logger)

	engine := gin.New()
	engine.Use(gateway.CORS("*"))
	require.NoError(t, NewDefaultTipsService(gw, nil, logger).Start(context.Background(), engine, engine.Group("/api")))
	return engine
}

func post(engine *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/generate-custom-tips", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

type tipsBody struct {
	Tips     []map[string]interface{} `json:"tips"`
	Error    string                   `json:"error"`
	Fallback bool                     `json:"fallback"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) tipsBody {
	t.Helper()
	var body tipsBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func TestTips_EmptyBodyUsesDefaults(t *testing.T) {
	for _, body := range []string{"", "{}"} {
		t.Run("请求体"+body, func(t *testing.T) {
			provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: tipsReply})
			engine := newTestEngine(t, provider)

			w := post(engine, body)
			require.Equal(t, http.StatusOK, w.Code)
			got := decode(t, w)
			require.Len(t, got.Tips, 2)
			assert.Equal(t, "Top-dress maize", got.Tips[0]["title"])

			prompt := provider.LastRequest().Messages[1].Content
			assert.Contains(t, prompt, "Kigali, Rwanda")
			assert.Contains(t, prompt, "maize, beans")
			assert.Contains(t, prompt, "1-2 hectares")
			assert.Contains(t, prompt, "Temperature (°C): 24")
			assert.Contains(t, prompt, "Humidity (%): 65")
			assert.Contains(t, prompt, "Rainfall: moderate")
			assert.Contains(t, prompt, "beans: stable, maize: stable")
			assert.Contains(t, prompt, timeframeFocus[TimeframeToday])
			assert.False(t, provider.LastRequest().Vision)
		})
	}
}

func TestTips_RequestFieldsReachPrompt(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    []string
		notWant []string
	}{
		{
			name: "完整请求",
			body: `{
				"farmProfile": {"location": "Musanze", "crops": ["potatoes"]},
				"weatherData": {"temperature": "18", "humidity": 80.5, "rainfall": "heavy"},
				"marketData": {"potatoes": "rising"},
				"timeframe": "Weekly"
			}`,
			want: []string{
				"Location: Musanze",
				"Crops: potatoes",
				"Farm size: 1-2 hectares",
				"Temperature (°C): 18",
				"Humidity (%): 80.5",
				"Rainfall: heavy",
				"Season: current season",
				"potatoes: rising",
				timeframeFocus[TimeframeWeekly],
			},
			notWant: []string{"maize: stable"},
		},
		{
			name: "农场面积为数字",
			body: `{"farmProfile": {"farmSize": 2.5, "experience": 3}}`,
			want: []string{"Farm size: 2.5", "Experience level: 3", "Location: Kigali, Rwanda"},
		},
		{
			name: "降雨量为数字",
			body: `{"weatherData": {"rainfall": 12, "season": 2025}}`,
			want: []string{"Rainfall: 12", "Season: 2025", "Temperature (°C): 24"},
		},
		{
			name:    "行情为对象",
			body:    `{"marketData": {"maize": {"price": 350, "trend": "up"}, "beans": 900}}`,
			want:    []string{`beans: 900, maize: {"price":350,"trend":"up"}`},
			notWant: []string{"maize: stable"},
		},
		{
			name: "字段为null时使用默认值",
			body: `{"farmProfile": {"farmSize": null}, "weatherData": {"rainfall": null}}`,
			want: []string{"Farm size: 1-2 hectares", "Rainfall: moderate"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: tipsReply})
			engine := newTestEngine(t, provider)

			w := post(engine, tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			require.Equal(t, 1, provider.Calls())

			prompt := provider.LastRequest().Messages[1].Content
			for _, want := range tt.want {
				assert.Contains(t, prompt, want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, prompt, notWant)
			}
		})
	}
}

func TestTips_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		reply      gatewaytest.FakeReply
		wantStatus int
		wantTips   int
	}{
		{name: "限流返回单条兜底建议", reply: gatewaytest.FakeReply{Err: &types.UpstreamError{StatusCode: 429}}, wantStatus: http.StatusTooManyRequests, wantTips: 1},
		{name: "额度不足按500处理", reply: gatewaytest.FakeReply{Err: &types.UpstreamError{StatusCode: 402}}, wantStatus: http.StatusInternalServerError, wantTips: 0},
		{name: "上游失败返回空列表", reply: gatewaytest.FakeReply{Err: &types.UpstreamError{StatusCode: 500}}, wantStatus: http.StatusInternalServerError, wantTips: 0},
		{name: "缺少密钥", reply: gatewaytest.FakeReply{Err: types.ErrMissingAPIKey}, wantStatus: http.StatusInternalServerError, wantTips: 0},
		{name: "上游超时", reply: gatewaytest.FakeReply{Err: &types.UpstreamError{Message: "Client.Timeout exceeded while awaiting headers", Err: context.DeadlineExceeded}}, wantStatus: http.StatusInternalServerError, wantTips: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, gatewaytest.NewFakeProvider(tt.reply))

			w := post(engine, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			got := decode(t, w)
			assert.NotNil(t, got.Tips)
			assert.Len(t, got.Tips, tt.wantTips)
			assert.NotEmpty(t, got.Error)
			assert.Contains(t, w.Body.String(), `"tips":[`)
		})
	}
}

func TestTips_UnparseableReplyGivesSingleTip(t *testing.T) {
	engine := newTestEngine(t, gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: "Plant early and weed often."}))

	w := post(engine, "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w)
	require.Len(t, got.Tips, 1)
	assert.Equal(t, "Daily crop monitoring", got.Tips[0]["title"])
	assert.True(t, got.Fallback)
}

func TestTips_MalformedBody(t *testing.T) {
	provider := gatewaytest.NewFakeProvider(gatewaytest.FakeReply{Content: tipsReply})
	engine := newTestEngine(t, provider)

	w := post(engine, `{"farmProfile": [`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"tips":[]`)
	assert.Equal(t, 0, provider.Calls())
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    FlexString
		wantErr bool
	}{
		{name: "整数", input: `24`, want: "24"},
		{name: "小数", input: `65.5`, want: "65.5"},
		{name: "字符串", input: `"24°C"`, want: "24°C"},
		{name: "null", input: `null`, want: ""},
		{name: "布尔值", input: `true`, want: "true"},
		{name: "数组", input: `[1, 2]`, want: "[1,2]"},
		{name: "对象", input: `{"price": 350, "trend": "up"}`, want: `{"price":350,"trend":"up"}`},
		{name: "非法JSON", input: `{"price":`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got FlexString
			err := json.Unmarshal([]byte(tt.input), &got)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFocusFor(t *testing.T) {
	assert.Equal(t, timeframeFocus[TimeframeLearning], focusFor("learning"))
	assert.Equal(t, timeframeFocus[TimeframeToday], focusFor("next-year"))
}
