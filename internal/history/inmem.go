package history

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"emotion-engine/internal/config"
	"emotion-engine/internal/model"
)

// record 是单个实体的内部档案。索引是派生的、可丢弃的缓存，
// 永远可以从 states 重建，绝不能当作事实来源。
type record struct {
	states      []model.EmotionalState
	transitions []model.EmotionalTransition
	patterns    []model.Pattern

	lastAnalysis time.Time
	lastActivity time.Time

	byEmotion map[model.Emotion][]model.EmotionalState
	byTrigger map[string][]model.EmotionalState
}

// InMemoryStore 是基于内存的历史存储实现。
// 单把全局锁串行化所有读写：实体规模可控，锁竞争不是瓶颈；
// 资源上限靠截断/压缩/TTL 清扫维持，存储永远不会因为持续写入而报错。
type InMemoryStore struct {
	cfg config.HistoryConfig
	now func() time.Time

	mu      sync.RWMutex
	records map[string]*record

	done chan struct{}
	wg   sync.WaitGroup
}

// NewInMemoryStore 创建存储并启动 TTL 后台清扫，Close 负责停掉。
func NewInMemoryStore(cfg config.HistoryConfig) *InMemoryStore {
	s := &InMemoryStore{
		cfg:     cfg,
		now:     time.Now,
		records: make(map[string]*record),
		done:    make(chan struct{}),
	}
	s.wg.Add(1)
	go s.sweepLoop()
	return s
}

// Close 停止后台清扫并等待退出。
func (s *InMemoryStore) Close() {
	close(s.done)
	s.wg.Wait()
}

// Append 追加状态：截断到容量上限、更新二级索引、刷新活跃时间，
// 达到压缩阈值时顺带做一次压缩。
func (s *InMemoryStore) Append(_ context.Context, entityID string, st model.EmotionalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(entityID)
	rec.states = append(rec.states, st)
	if len(rec.states) > s.cfg.MaxDepth {
		rec.states = rec.states[len(rec.states)-s.cfg.MaxDepth:]
	}

	s.indexLocked(rec, st)
	rec.lastActivity = s.now()

	if len(rec.states) >= s.cfg.CompressionThreshold {
		s.compressLocked(entityID, rec)
	}
	return nil
}

// AppendTransition 追加过渡历史，容量与状态历史同一上限。
func (s *InMemoryStore) AppendTransition(_ context.Context, entityID string, tr model.EmotionalTransition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.getOrCreateLocked(entityID)
	rec.transitions = append(rec.transitions, tr)
	if len(rec.transitions) > s.cfg.MaxDepth {
		rec.transitions = rec.transitions[len(rec.transitions)-s.cfg.MaxDepth:]
	}
	rec.lastActivity = s.now()
	return nil
}

// Query 按条件过滤。未知实体返回空结果而不是错误。
func (s *InMemoryStore) Query(_ context.Context, entityID string, c model.QueryCriteria) (model.QueryResult, error) {
	start := s.now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[entityID]
	if !ok {
		return model.QueryResult{Elapsed: s.now().Sub(start)}, nil
	}

	states := make([]model.EmotionalState, 0, len(rec.states))
	for _, st := range rec.states {
		if matchState(st, c) {
			states = append(states, st)
		}
	}
	total := len(states)
	if c.Limit > 0 && len(states) > c.Limit {
		// limit 取"最近 N 条"，不是随机采样。
		states = states[len(states)-c.Limit:]
	}

	transitions := make([]model.EmotionalTransition, 0, len(rec.transitions))
	for _, tr := range rec.transitions {
		if matchTransition(tr, c) {
			transitions = append(transitions, tr)
		}
	}
	if c.Limit > 0 && len(transitions) > c.Limit {
		transitions = transitions[len(transitions)-c.Limit:]
	}

	return model.QueryResult{
		States:       states,
		Transitions:  transitions,
		TotalMatched: total,
		Elapsed:      s.now().Sub(start),
	}, nil
}

// Record 返回档案副本，未知实体返回 ErrNotFound。
func (s *InMemoryStore) Record(_ context.Context, entityID string) (*model.HistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[entityID]
	if !ok {
		return nil, ErrNotFound
	}

	out := &model.HistoryRecord{
		EntityID:     entityID,
		States:       make([]model.EmotionalState, len(rec.states)),
		Transitions:  make([]model.EmotionalTransition, len(rec.transitions)),
		Patterns:     make([]model.Pattern, len(rec.patterns)),
		LastAnalysis: rec.lastAnalysis,
		LastActivity: rec.lastActivity,
	}
	copy(out.States, rec.states)
	copy(out.Transitions, rec.transitions)
	copy(out.Patterns, rec.patterns)
	return out, nil
}

// LatestState 返回最新的规范状态。
func (s *InMemoryStore) LatestState(_ context.Context, entityID string) (model.EmotionalState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[entityID]
	if !ok || len(rec.states) == 0 {
		return model.EmotionalState{}, false
	}
	return rec.states[len(rec.states)-1], true
}

// RecordAnalysis 写回最近一次分析的模式与时间戳。
func (s *InMemoryStore) RecordAnalysis(_ context.Context, entityID string, patterns []model.Pattern, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[entityID]
	if !ok {
		return ErrNotFound
	}
	rec.patterns = append([]model.Pattern(nil), patterns...)
	rec.lastAnalysis = at
	return nil
}

// Stats 返回活跃实体数与当前主情绪分布。
func (s *InMemoryStore) Stats(_ context.Context) (int, map[model.Emotion]int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dist := make(map[model.Emotion]int)
	for _, rec := range s.records {
		if len(rec.states) == 0 {
			continue
		}
		dist[rec.states[len(rec.states)-1].PrimaryEmotion]++
	}
	return len(s.records), dist
}

// EvictIdle 清除 lastActivity 早于 TTL 的实体，整体删除（含索引），
// 没有软删除。返回清除数量。
func (s *InMemoryStore) EvictIdle(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for entityID, rec := range s.records {
		if now.Sub(rec.lastActivity) > s.cfg.TTL {
			delete(s.records, entityID)
			evicted++
		}
	}
	return evicted
}

// QueryByEmotion 直接走二级索引的快速通道，返回索引里该情绪的状态副本。
// 索引有容量上限，结果可能比全量过滤少；需要精确结果时用 Query。
func (s *InMemoryStore) QueryByEmotion(entityID string, emotion model.Emotion) []model.EmotionalState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[entityID]
	if !ok {
		return nil
	}
	return append([]model.EmotionalState(nil), rec.byEmotion[emotion]...)
}

// QueryByTrigger 触发描述索引的快速通道，key 为小写触发全文。
func (s *InMemoryStore) QueryByTrigger(entityID, trigger string) []model.EmotionalState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[entityID]
	if !ok {
		return nil
	}
	return append([]model.EmotionalState(nil), rec.byTrigger[strings.ToLower(trigger)]...)
}

func (s *InMemoryStore) getOrCreateLocked(entityID string) *record {
	rec, ok := s.records[entityID]
	if !ok {
		rec = &record{
			byEmotion: make(map[model.Emotion][]model.EmotionalState),
			byTrigger: make(map[string][]model.EmotionalState),
		}
		s.records[entityID] = rec
	}
	return rec
}

// indexLocked 把状态写入两个二级索引，每个索引条目各自封顶。
func (s *InMemoryStore) indexLocked(rec *record, st model.EmotionalState) {
	appendCapped := func(list []model.EmotionalState) []model.EmotionalState {
		list = append(list, st)
		if len(list) > s.cfg.IndexCap {
			list = list[len(list)-s.cfg.IndexCap:]
		}
		return list
	}
	rec.byEmotion[st.PrimaryEmotion] = appendCapped(rec.byEmotion[st.PrimaryEmotion])
	key := strings.ToLower(st.Trigger)
	rec.byTrigger[key] = appendCapped(rec.byTrigger[key])
}

// compressLocked 对旧的一半状态隔条丢弃，新的一半原样保留。
// 这是有意偏向近期细节的有损压实，不是摘要。索引随后整体重建。
func (s *InMemoryStore) compressLocked(entityID string, rec *record) {
	half := len(rec.states) / 2
	if half < 2 {
		return
	}

	before := len(rec.states)
	kept := make([]model.EmotionalState, 0, before-half/2)
	for i := 0; i < half; i += 2 {
		kept = append(kept, rec.states[i])
	}
	kept = append(kept, rec.states[half:]...)
	rec.states = kept

	rec.byEmotion = make(map[model.Emotion][]model.EmotionalState)
	rec.byTrigger = make(map[string][]model.EmotionalState)
	for _, st := range rec.states {
		s.indexLocked(rec, st)
	}

	log.Printf("[HISTORY] compressed entity=%s states %d -> %d", entityID, before, len(rec.states))
}

func (s *InMemoryStore) sweepLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.EvictIdle(s.now()); n > 0 {
				log.Printf("[HISTORY] 🧹 evicted %d idle entities", n)
			}
		}
	}
}

func matchState(st model.EmotionalState, c model.QueryCriteria) bool {
	if len(c.Emotions) > 0 {
		found := false
		for _, e := range c.Emotions {
			if st.PrimaryEmotion == e {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !c.From.IsZero() && st.Timestamp.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && st.Timestamp.After(c.To) {
		return false
	}
	if st.Intensity < c.MinIntensity {
		return false
	}
	if c.MaxIntensity > 0 && st.Intensity > c.MaxIntensity {
		return false
	}
	if c.TriggerContains != "" &&
		!strings.Contains(strings.ToLower(st.Trigger), strings.ToLower(c.TriggerContains)) {
		return false
	}
	return true
}

func matchTransition(tr model.EmotionalTransition, c model.QueryCriteria) bool {
	if !c.From.IsZero() && tr.StartTime.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && tr.StartTime.After(c.To) {
		return false
	}
	if c.TriggerContains != "" &&
		!strings.Contains(strings.ToLower(tr.Trigger), strings.ToLower(c.TriggerContains)) {
		return false
	}
	return true
}
