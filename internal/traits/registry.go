// Package traits 是人格子系统在本引擎侧的只读边界。
// 特质权重由外部注册、按实体查表；缺省实体在查表时一次性补齐
// 中性默认值，下游计算不再出现可空字段。
package traits

import (
	"sync"

	"emotion-engine/internal/model"
)

// Registry 按实体保存特质权重。
type Registry struct {
	mu      sync.RWMutex
	weights map[string]model.TraitWeights
}

// NewRegistry 创建空的特质注册表。
func NewRegistry() *Registry {
	return &Registry{weights: make(map[string]model.TraitWeights)}
}

// Register 注册或覆盖实体的特质权重，各分量钳制到 [0,1]。
func (r *Registry) Register(entityID string, w model.TraitWeights) {
	w.Instability = model.Clamp01(w.Instability)
	w.Sociability = model.Clamp01(w.Sociability)
	w.Persistence = model.Clamp01(w.Persistence)

	r.mu.Lock()
	r.weights[entityID] = w
	r.mu.Unlock()
}

// Lookup 返回实体的特质权重；未注册时返回中性默认值。
// 第二个返回值表示是否为显式注册的权重。
func (r *Registry) Lookup(entityID string) (model.TraitWeights, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if w, ok := r.weights[entityID]; ok {
		return w, true
	}
	return model.DefaultTraitWeights(), false
}

// Count 返回显式注册过特质的实体数量。
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.weights)
}
