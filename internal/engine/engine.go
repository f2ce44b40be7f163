package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"emotion-engine/internal/analysis"
	"emotion-engine/internal/config"
	"emotion-engine/internal/factory"
	"emotion-engine/internal/history"
	"emotion-engine/internal/model"
	"emotion-engine/internal/traits"
	"emotion-engine/internal/transition"
)

// ErrNoState 表示实体还没有任何已记录的状态。
// Analyze 需要基线才有意义，所以这里是硬错误；
// GetCurrentState/GetHistory 对同样的情况返回空结果，这个不对称是有意的。
var ErrNoState = errors.New("no emotional state recorded")

// Engine 情绪引擎的对外门面
//
// 职责与契约：
// - GenerateState：查特质 → 工厂造状态 →（有旧状态时）异步启动过渡 →
//   同步把*目标状态*写入历史。过渡只负责可见状态的平滑动画，
//   规范历史立即记录目标状态。
// - Analyze：没有基线状态直接报错；否则取窗口内最近历史跑趋势/异常/模式，
//   再按固定规则表派生建议。
// - 不同实体的调用可以安全并发；同一实体由存储与执行器内部的锁串行化，
//   "当前状态"以最后一次 GenerateState 为准（last-writer-wins）。
type Engine struct {
	cfg     *config.Config
	factory *factory.Factory
	calc    *transition.Calculator
	runner  *transition.Runner
	store   history.Store
	traits  *traits.Registry
	now     func() time.Time

	// genMu 串行化状态生成：prior 读取与历史写入必须是一个原子步骤，
	// 否则同实体并发生成会交错出错误的过渡对。
	genMu sync.Mutex
}

// New 创建情绪引擎。执行器由引擎自建自管，Close 负责停掉。
func New(cfg *config.Config, store history.Store, reg *traits.Registry) *Engine {
	e := &Engine{
		cfg:     cfg,
		factory: factory.New(cfg.Factory),
		calc:    transition.NewCalculator(cfg.Transition),
		store:   store,
		traits:  reg,
		now:     time.Now,
	}
	// 过渡终结后归档进历史：自然完成的原样入档，被取代的带 Superseded 标记。
	e.runner = transition.NewRunner(cfg.Transition, func(tr model.EmotionalTransition) {
		if err := store.AppendTransition(context.Background(), tr.EntityID, tr); err != nil {
			log.Printf("[ENGINE] archive transition failed: entity=%s err=%v", tr.EntityID, err)
		}
	})
	return e
}

// Close 停掉过渡执行器。历史存储的生命周期由调用方管理。
func (e *Engine) Close() {
	e.runner.Close()
}

// GenerateState 处理一次刺激并返回新生成的情绪状态。
// 新状态立即成为规范的当前状态；若存在旧状态，可见状态
// 会经由过渡在后台平滑逼近，并取代该实体任何在途过渡。
func (e *Engine) GenerateState(ctx context.Context, entityID string, req model.StimulusRequest) (model.EmotionalState, error) {
	e.genMu.Lock()
	defer e.genMu.Unlock()

	tw, _ := e.traits.Lookup(entityID)

	var priorPtr *model.EmotionalState
	prior, hasPrior := e.store.LatestState(ctx, entityID)
	if hasPrior {
		priorPtr = &prior
	}

	st := e.factory.CreateState(req, tw, priorPtr)

	if hasPrior {
		spec := e.calc.Calculate(prior, st, tw)
		e.runner.Start(model.EmotionalTransition{
			TransitionID: uuid.NewString(),
			EntityID:     entityID,
			From:         prior,
			To:           st,
			Trigger:      st.Trigger,
			Duration:     spec.Duration,
			Curve:        spec.Curve,
			Confidence:   spec.Confidence,
			StartTime:    e.now(),
		})
		log.Printf("[ENGINE] %s: %s -> %s (outcome=%s duration=%v curve=%s)",
			entityID, prior.PrimaryEmotion, st.PrimaryEmotion, req.Outcome, spec.Duration, spec.Curve)
	} else {
		log.Printf("[ENGINE] %s: initial state %s (outcome=%s intensity=%.2f)",
			entityID, st.PrimaryEmotion, req.Outcome, st.Intensity)
	}

	if err := e.store.Append(ctx, entityID, st); err != nil {
		return model.EmotionalState{}, fmt.Errorf("append state: %w", err)
	}
	return st, nil
}

// GetCurrentState 返回实体规范的当前状态；不存在时第二个返回值为 false，
// 不报错。
func (e *Engine) GetCurrentState(ctx context.Context, entityID string) (model.EmotionalState, bool) {
	return e.store.LatestState(ctx, entityID)
}

// GetVisibleState 返回实体当下的可见状态：有在途过渡时是插值状态，
// 否则回落到规范当前状态。
func (e *Engine) GetVisibleState(ctx context.Context, entityID string) (model.EmotionalState, bool) {
	if st, ok := e.runner.Visible(entityID); ok {
		return st, true
	}
	return e.store.LatestState(ctx, entityID)
}

// InTransition 返回实体当前是否有在途过渡。
func (e *Engine) InTransition(entityID string) bool {
	_, ok := e.runner.Visible(entityID)
	return ok
}

// GetHistory 返回实体的历史档案副本；未知实体返回 (nil, false)，不报错。
func (e *Engine) GetHistory(ctx context.Context, entityID string) (*model.HistoryRecord, bool) {
	rec, err := e.store.Record(ctx, entityID)
	if err != nil {
		return nil, false
	}
	return rec, true
}

// QueryHistory 按条件查询实体历史。
func (e *Engine) QueryHistory(ctx context.Context, entityID string, c model.QueryCriteria) (model.QueryResult, error) {
	return e.store.Query(ctx, entityID, c)
}

// RegisterTraitWeights 注册实体的人格特质权重。
func (e *Engine) RegisterTraitWeights(entityID string, w model.TraitWeights) {
	e.traits.Register(entityID, w)
}

// SubscribeFrames 订阅实体过渡的插值帧流。
func (e *Engine) SubscribeFrames(entityID string) (<-chan transition.Frame, func()) {
	return e.runner.Subscribe(entityID)
}

// Analyze 对实体做一次完整分析。
// 没有任何已记录状态时返回 ErrNoState（包装了实体标识）。
func (e *Engine) Analyze(ctx context.Context, entityID string) (*model.AnalysisResult, error) {
	current, ok := e.store.LatestState(ctx, entityID)
	if !ok {
		return nil, fmt.Errorf("analyze %s: %w", entityID, ErrNoState)
	}

	now := e.now()
	q, err := e.store.Query(ctx, entityID, model.QueryCriteria{
		From:  now.Add(-e.cfg.Analysis.WindowDuration),
		Limit: e.cfg.Analysis.Window,
	})
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	states := q.States

	anomalies := analysis.DetectAnomalies(states)
	patterns := analysis.DetectPatterns(states, anomalies, now)

	result := &model.AnalysisResult{
		EntityID:         entityID,
		CurrentState:     current,
		ValenceTrend:     analysis.ValenceTrend(states),
		IntensityTrend:   analysis.IntensityTrend(states),
		DominantEmotion:  analysis.DominantEmotion(states),
		EmotionFrequency: analysis.EmotionFrequency(states),
		AverageDuration:  analysis.AverageDuration(states),
		Stability:        analysis.Stability(states),
		Patterns:         patterns,
		Anomalies:        anomalies,
		Recommendations:  buildRecommendations(current, patterns, anomalies),
		Confidence:       analysisConfidence(len(states), e.cfg.Analysis.Window),
		SampleSize:       len(states),
		AnalyzedAt:       now,
	}

	if err := e.store.RecordAnalysis(ctx, entityID, patterns, now); err != nil {
		// 写回失败不影响本次分析结果，记录即可。
		log.Printf("[ENGINE] record analysis failed: entity=%s err=%v", entityID, err)
	}
	return result, nil
}

// GetStatistics 返回引擎级运行统计。
func (e *Engine) GetStatistics(ctx context.Context) model.Statistics {
	entities, dist := e.store.Stats(ctx)
	return model.Statistics{
		ActiveEntities:      entities,
		EntitiesWithTraits:  e.traits.Count(),
		ActiveTransitions:   e.runner.ActiveCount(),
		EmotionDistribution: dist,
	}
}

// analysisConfidence 样本越接近完整窗口，分析置信度越高。
func analysisConfidence(samples, window int) float64 {
	if window <= 0 || samples == 0 {
		return 0
	}
	ratio := float64(samples) / float64(window)
	return model.Clamp01(0.3 + 0.7*ratio)
}
