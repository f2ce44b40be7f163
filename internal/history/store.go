package history

import (
	"context"
	"errors"
	"time"

	"emotion-engine/internal/model"
)

var ErrNotFound = errors.New("entity history not found")

// Store 是情绪历史存储的抽象。
//
// 契约：
// - Append 永远成功：容量靠从最旧端截断维持，不靠拒绝写入。
// - Query 对未知实体返回空结果而不是错误（读取路径对轮询友好）。
// - Record 对未知实体返回 ErrNotFound，由上层决定语义（GetHistory 宽松、Analyze 严格）。
type Store interface {
	// Append 追加一个状态并维护容量上限与二级索引。
	Append(ctx context.Context, entityID string, st model.EmotionalState) error
	// AppendTransition 追加一条已完成（或被取代归档）的过渡。
	AppendTransition(ctx context.Context, entityID string, tr model.EmotionalTransition) error
	// Query 按条件过滤历史，limit 语义为"过滤后保留最近 N 条"。
	Query(ctx context.Context, entityID string, c model.QueryCriteria) (model.QueryResult, error)
	// Record 返回实体完整档案的副本。
	Record(ctx context.Context, entityID string) (*model.HistoryRecord, error)
	// LatestState 返回实体最新的规范状态，第二个返回值表示是否存在。
	LatestState(ctx context.Context, entityID string) (model.EmotionalState, bool)
	// RecordAnalysis 把最近一次分析检出的模式写回档案。
	RecordAnalysis(ctx context.Context, entityID string, patterns []model.Pattern, at time.Time) error
	// Stats 返回活跃实体数和各实体当前主情绪的分布。
	Stats(ctx context.Context) (int, map[model.Emotion]int)
}
