package api

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"emotion-engine/internal/config"
	"emotion-engine/internal/engine"
	"emotion-engine/internal/model"
)

// Server 把情绪引擎暴露为 HTTP + WebSocket 服务。
// 引擎本身是进程内 API，这一层只做参数解析、错误语义映射和流式推送。
type Server struct {
	cfg    *config.Config
	engine *engine.Engine

	upgrader websocket.Upgrader
}

// NewServer 创建 API 服务。
func NewServer(cfg *config.Config, eng *engine.Engine) *Server {
	return &Server{
		cfg:    cfg,
		engine: eng,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// 引擎面向内网的教学服务消费，开发期放开跨域；
				// 暴露公网时应改为白名单。
				return true
			},
		},
	}
}

// Routes 组装路由。
func (s *Server) Routes() http.Handler {
	// Gin 统一承载中间件与路由，便于扩展日志/鉴权/限流等能力。
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.GET("/healthz", s.handleHealthz)
	r.POST("/api/entities/:id/stimuli", s.handleStimulus)
	r.GET("/api/entities/:id/state", s.handleCurrentState)
	r.GET("/api/entities/:id/history", s.handleHistory)
	r.GET("/api/entities/:id/history/query", s.handleHistoryQuery)
	r.GET("/api/entities/:id/analysis", s.handleAnalyze)
	r.PUT("/api/entities/:id/traits", s.handleTraits)
	r.GET("/api/entities/:id/stream", s.handleStream)
	r.GET("/api/statistics", s.handleStatistics)
	return r
}

// handleHealthz 返回服务健康状态。
func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleStimulus 接收一次刺激并返回新生成的状态。
// 越界的强度值由引擎钳制处理，这里不做数值校验。
func (s *Server) handleStimulus(c *gin.Context) {
	var req model.StimulusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.Stimulus == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "stimulus required"})
		return
	}

	st, err := s.engine.GenerateState(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "generate state failed"})
		return
	}
	c.JSON(http.StatusOK, st)
}

// handleCurrentState 返回规范当前状态与可见插值状态。
// 未知实体返回空 state 而不是 404，只有 Analyze 需要基线。
func (s *Server) handleCurrentState(c *gin.Context) {
	entityID := c.Param("id")
	current, ok := s.engine.GetCurrentState(c.Request.Context(), entityID)
	if !ok {
		c.JSON(http.StatusOK, gin.H{"entity_id": entityID, "state": nil})
		return
	}

	resp := gin.H{"entity_id": entityID, "state": current}
	if s.engine.InTransition(entityID) {
		visible, _ := s.engine.GetVisibleState(c.Request.Context(), entityID)
		resp["visible_state"] = visible
		resp["in_transition"] = true
	}
	c.JSON(http.StatusOK, resp)
}

// handleHistory 返回实体完整历史档案，未知实体返回空档案。
func (s *Server) handleHistory(c *gin.Context) {
	entityID := c.Param("id")
	rec, ok := s.engine.GetHistory(c.Request.Context(), entityID)
	if !ok {
		c.JSON(http.StatusOK, model.HistoryRecord{
			EntityID:    entityID,
			States:      []model.EmotionalState{},
			Transitions: []model.EmotionalTransition{},
		})
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleHistoryQuery 按条件查询历史。
func (s *Server) handleHistoryQuery(c *gin.Context) {
	criteria, err := parseCriteria(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := s.engine.QueryHistory(c.Request.Context(), c.Param("id"), criteria)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "query failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleAnalyze 执行完整分析。没有基线状态的实体返回 404。
func (s *Server) handleAnalyze(c *gin.Context) {
	result, err := s.engine.Analyze(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, engine.ErrNoState) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no state recorded for entity"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "analyze failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// handleTraits 注册实体的人格特质权重。
func (s *Server) handleTraits(c *gin.Context) {
	var w model.TraitWeights
	if err := c.ShouldBindJSON(&w); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	s.engine.RegisterTraitWeights(c.Param("id"), w)
	c.JSON(http.StatusOK, gin.H{"entity_id": c.Param("id"), "traits": w})
}

// handleStatistics 返回引擎级运行统计。
func (s *Server) handleStatistics(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetStatistics(c.Request.Context()))
}

// handleStream 把实体的过渡插值帧流接到 WebSocket 上。
// 客户端不发业务消息，读循环只用来感知断连。
func (s *Server) handleStream(c *gin.Context) {
	entityID := c.Param("id")

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("[API] ❌ websocket upgrade failed: entity=%s err=%v", entityID, err)
		return
	}
	log.Printf("[API] 📡 frame stream opened: entity=%s client=%s", entityID, c.Request.RemoteAddr)

	frames, cancel := s.engine.SubscribeFrames(entityID)
	defer cancel()
	defer conn.Close()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	pingInterval := s.cfg.Server.PingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			log.Printf("[API] 🔌 frame stream closed by client: entity=%s", entityID)
			return
		case frame := <-frames:
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("[API] frame write failed: entity=%s err=%v", entityID, err)
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// parseCriteria 把查询参数映射为 QueryCriteria。
func parseCriteria(c *gin.Context) (model.QueryCriteria, error) {
	var criteria model.QueryCriteria

	if raw := c.Query("emotions"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			e := model.Emotion(strings.TrimSpace(part))
			if !model.IsValidEmotion(e) {
				return criteria, errors.New("unknown emotion: " + string(e))
			}
			criteria.Emotions = append(criteria.Emotions, e)
		}
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return criteria, errors.New("invalid from timestamp")
		}
		criteria.From = t
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return criteria, errors.New("invalid to timestamp")
		}
		criteria.To = t
	}
	if raw := c.Query("min_intensity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return criteria, errors.New("invalid min_intensity")
		}
		criteria.MinIntensity = v
	}
	if raw := c.Query("max_intensity"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return criteria, errors.New("invalid max_intensity")
		}
		criteria.MaxIntensity = v
	}
	criteria.TriggerContains = c.Query("trigger")
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return criteria, errors.New("invalid limit")
		}
		criteria.Limit = n
	}
	return criteria, nil
}
