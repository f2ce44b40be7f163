package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"emotion-engine/internal/config"
	"emotion-engine/internal/engine"
	"emotion-engine/internal/history"
	"emotion-engine/internal/model"
	"emotion-engine/internal/traits"
	"emotion-engine/internal/transition"
)

func testServer(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.History.SweepInterval = time.Hour

	store := history.NewInMemoryStore(cfg.History)
	eng := engine.New(cfg, store, traits.NewRegistry())
	t.Cleanup(func() {
		eng.Close()
		store.Close()
	})
	return NewServer(cfg, eng).Routes()
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

// TestHealthz 验证健康检查。
func TestHealthz(t *testing.T) {
	h := testServer(t)
	w := doJSON(t, h, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz = %d", w.Code)
	}
}

// TestStimulusRoundTrip 验证刺激提交到状态读取的完整往返。
func TestStimulusRoundTrip(t *testing.T) {
	h := testServer(t)

	w := doJSON(t, h, http.MethodPost, "/api/entities/stu-1/stimuli", model.StimulusRequest{
		Stimulus:  "做对一道题",
		Outcome:   model.OutcomeSuccess,
		Intensity: 0.7,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("stimulus = %d body=%s", w.Code, w.Body.String())
	}

	var st model.EmotionalState
	if err := json.Unmarshal(w.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.Valence <= 0 {
		t.Fatalf("success valence = %v, want positive", st.Valence)
	}

	w = doJSON(t, h, http.MethodGet, "/api/entities/stu-1/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("state = %d", w.Code)
	}
	var resp struct {
		EntityID string                `json:"entity_id"`
		State    *model.EmotionalState `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.State == nil || resp.State.PrimaryEmotion != st.PrimaryEmotion {
		t.Fatalf("state response = %s, want the generated state", w.Body.String())
	}
}

// TestStimulusValidation 验证参数校验的错误语义。
func TestStimulusValidation(t *testing.T) {
	h := testServer(t)

	// 空刺激描述
	w := doJSON(t, h, http.MethodPost, "/api/entities/stu-1/stimuli", model.StimulusRequest{
		Outcome: model.OutcomeSuccess,
	})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty stimulus = %d, want 400", w.Code)
	}

	// 非法 JSON
	req := httptest.NewRequest(http.MethodPost, "/api/entities/stu-1/stimuli", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad json = %d, want 400", rec.Code)
	}
}

// TestUnknownEntityStateIsNull 验证未知实体返回空 state 而不是 404。
func TestUnknownEntityStateIsNull(t *testing.T) {
	h := testServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/entities/ghost/state", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("unknown entity state = %d, want 200", w.Code)
	}
	var resp struct {
		State *model.EmotionalState `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.State != nil {
		t.Fatalf("unknown entity state = %+v, want null", resp.State)
	}
}

// TestAnalyzeUnknownEntityIs404 验证分析接口对无基线实体的错误映射。
func TestAnalyzeUnknownEntityIs404(t *testing.T) {
	h := testServer(t)

	w := doJSON(t, h, http.MethodGet, "/api/entities/ghost/analysis", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("analyze unknown entity = %d, want 404", w.Code)
	}
}

// TestHistoryQueryValidation 验证查询参数解析。
func TestHistoryQueryValidation(t *testing.T) {
	h := testServer(t)

	// 未知情绪名
	w := doJSON(t, h, http.MethodGet, "/api/entities/stu-1/history/query?emotions=happiness", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("unknown emotion = %d, want 400", w.Code)
	}

	// 非法时间戳
	w = doJSON(t, h, http.MethodGet, "/api/entities/stu-1/history/query?from=yesterday", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("bad timestamp = %d, want 400", w.Code)
	}

	// 合法组合查询空实体返回空结果
	w = doJSON(t, h, http.MethodGet,
		"/api/entities/stu-1/history/query?emotions=joy,trust&min_intensity=0.2&limit=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("valid query = %d body=%s", w.Code, w.Body.String())
	}
	var result model.QueryResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if result.TotalMatched != 0 {
		t.Fatalf("empty entity matched %d", result.TotalMatched)
	}
}

// TestTraitsRegistration 验证特质注册接口与生成链路打通。
func TestTraitsRegistration(t *testing.T) {
	h := testServer(t)

	w := doJSON(t, h, http.MethodPut, "/api/entities/stu-1/traits", model.TraitWeights{
		Instability: 0.9, Sociability: 0.5, Persistence: 0.5,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("traits = %d body=%s", w.Code, w.Body.String())
	}

	w = doJSON(t, h, http.MethodGet, "/api/statistics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("statistics = %d", w.Code)
	}
	var stats model.Statistics
	if err := json.Unmarshal(w.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode statistics: %v", err)
	}
	if stats.EntitiesWithTraits != 1 {
		t.Fatalf("entities with traits = %d, want 1", stats.EntitiesWithTraits)
	}
}

// TestStreamDeliversFrames 验证 WebSocket 帧流的端到端链路。
// 场景：客户端订阅实体的帧流后触发一次过渡，应收到插值帧，
// 且最终收到带完成标记的终帧。
func TestStreamDeliversFrames(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.History.SweepInterval = time.Hour
	// 压缩节拍与时长，让过渡在测试里几百毫秒内跑完。
	cfg.Transition.TickInterval = 10 * time.Millisecond
	cfg.Transition.MinDuration = 20 * time.Millisecond
	cfg.Transition.MaxDuration = 150 * time.Millisecond

	store := history.NewInMemoryStore(cfg.History)
	eng := engine.New(cfg, store, traits.NewRegistry())
	t.Cleanup(func() {
		eng.Close()
		store.Close()
	})

	srv := httptest.NewServer(NewServer(cfg, eng).Routes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/entities/stu-1/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	// 握手完成到服务端订阅之间有一小段窗口，等它建好再触发过渡。
	time.Sleep(50 * time.Millisecond)

	// 两次刺激：第二次启动过渡，帧开始广播。
	ctx := context.Background()
	if _, err := eng.GenerateState(ctx, "stu-1", model.StimulusRequest{
		Stimulus: "做对", Outcome: model.OutcomeSuccess, Intensity: 0.6,
	}); err != nil {
		t.Fatalf("first stimulus: %v", err)
	}
	if _, err := eng.GenerateState(ctx, "stu-1", model.StimulusRequest{
		Stimulus: "做错", Outcome: model.OutcomeFailure, Intensity: 0.8,
	}); err != nil {
		t.Fatalf("second stimulus: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	received := 0
	for {
		var frame transition.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.Fatalf("read frame after %d frames: %v", received, err)
		}
		received++
		if frame.EntityID != "stu-1" {
			t.Fatalf("frame for wrong entity: %s", frame.EntityID)
		}
		if frame.Completed {
			if frame.Progress != 1 {
				t.Fatalf("completed frame progress = %v, want 1", frame.Progress)
			}
			break
		}
	}
	if received == 0 {
		t.Fatal("no frames received")
	}
}
