package transition

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"emotion-engine/internal/config"
	"emotion-engine/internal/model"
)

// Frame 是节拍推进时产生的一帧插值状态，供 UI 流式消费。
type Frame struct {
	EntityID     string               `json:"entity_id"`
	TransitionID string               `json:"transition_id"`
	Seq          int64                `json:"seq"`
	Progress     float64              `json:"progress"`
	State        model.EmotionalState `json:"state"`
	Completed    bool                 `json:"completed"`
	ServerTS     time.Time            `json:"server_ts"`
}

// ArchiveHandler 在过渡终结时被调用：自然完成的过渡原样传入，
// 被取代的过渡带 Superseded 标记传入。后者不会产生 Completed 帧。
type ArchiveHandler func(tr model.EmotionalTransition)

// running 是单个实体的在途过渡。
// 状态机：Idle → Running → {Completed | Superseded}。
type running struct {
	tr       model.EmotionalTransition
	progress float64
}

// Runner 过渡执行器
// 每个实体最多持有一个在途过渡；对同一实体再次 Start 会取消旧过渡
// （last-writer-wins，旧过渡不发完成事件）。插值由固定节拍推进。
type Runner struct {
	cfg       config.TransitionConfig
	onArchive ArchiveHandler
	now       func() time.Time

	mu     sync.Mutex
	active map[string]*running
	subs   map[string]map[string]chan Frame
	seq    int64

	done chan struct{}
	wg   sync.WaitGroup
}

// NewRunner 创建并启动过渡执行器，Close 负责停掉节拍循环。
func NewRunner(cfg config.TransitionConfig, onArchive ArchiveHandler) *Runner {
	r := &Runner{
		cfg:       cfg,
		onArchive: onArchive,
		now:       time.Now,
		active:    make(map[string]*running),
		subs:      make(map[string]map[string]chan Frame),
		done:      make(chan struct{}),
	}
	r.wg.Add(1)
	go r.tickLoop()
	return r
}

// Start 为实体启动一个新过渡。
// 副作用：同一实体的在途过渡被标记为取代、移出执行队列，不产生完成事件，
// 但会带 Superseded 标记归档，过渡历史因此是完整的审计轨迹。
func (r *Runner) Start(tr model.EmotionalTransition) {
	if tr.TransitionID == "" {
		tr.TransitionID = uuid.NewString()
	}
	if tr.StartTime.IsZero() {
		tr.StartTime = r.now()
	}

	var superseded *model.EmotionalTransition

	r.mu.Lock()
	if old, ok := r.active[tr.EntityID]; ok {
		log.Printf("[RUNNER] transition superseded: entity=%s old=%s new=%s progress=%.2f",
			tr.EntityID, old.tr.TransitionID, tr.TransitionID, old.progress)
		archived := old.tr
		archived.Superseded = true
		superseded = &archived
	}
	r.active[tr.EntityID] = &running{tr: tr}
	r.mu.Unlock()

	if superseded != nil && r.onArchive != nil {
		r.onArchive(*superseded)
	}
}

// Stop 提前取消实体的在途过渡，返回是否确实存在一个在途过渡。
func (r *Runner) Stop(entityID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.active[entityID]; !ok {
		return false
	}
	delete(r.active, entityID)
	return true
}

// Visible 返回实体当前的可见插值状态。
// 没有在途过渡时返回 false，调用方应回落到规范的当前状态。
func (r *Runner) Visible(entityID string) (model.EmotionalState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.active[entityID]
	if !ok {
		return model.EmotionalState{}, false
	}
	return Interpolate(run.tr, run.progress), true
}

// ActiveCount 返回在途过渡数量，用于统计接口。
func (r *Runner) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Subscribe 订阅实体的插值帧流，返回只读通道和取消函数。
// 慢消费者的帧会被丢弃（与事件队列同样的背压策略），不阻塞节拍。
func (r *Runner) Subscribe(entityID string) (<-chan Frame, func()) {
	subID := uuid.NewString()
	ch := make(chan Frame, 64)

	r.mu.Lock()
	if r.subs[entityID] == nil {
		r.subs[entityID] = make(map[string]chan Frame)
	}
	r.subs[entityID][subID] = ch
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if m, ok := r.subs[entityID]; ok {
			delete(m, subID)
			if len(m) == 0 {
				delete(r.subs, entityID)
			}
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Close 停止节拍循环并等待其退出。
func (r *Runner) Close() {
	close(r.done)
	r.wg.Wait()
}

func (r *Runner) tickLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.tick()
		}
	}
}

// tick 推进所有在途过渡一拍：重算进度、广播插值帧、收割已完成的过渡。
func (r *Runner) tick() {
	now := r.now()

	var completed []model.EmotionalTransition

	r.mu.Lock()
	for entityID, run := range r.active {
		elapsed := now.Sub(run.tr.StartTime)
		progress := float64(elapsed) / float64(run.tr.Duration)
		if progress < 0 {
			progress = 0
		}
		if progress > 1 {
			progress = 1
		}
		run.progress = progress

		r.seq++
		frame := Frame{
			EntityID:     entityID,
			TransitionID: run.tr.TransitionID,
			Seq:          r.seq,
			Progress:     progress,
			State:        Interpolate(run.tr, progress),
			Completed:    progress >= 1,
			ServerTS:     now,
		}
		r.broadcastLocked(entityID, frame)

		if progress >= 1 {
			completed = append(completed, run.tr)
			delete(r.active, entityID)
		}
	}
	r.mu.Unlock()

	// 归档回调放到锁外执行，历史存储有自己的锁。
	for _, tr := range completed {
		if r.onArchive != nil {
			r.onArchive(tr)
		}
	}
}

func (r *Runner) broadcastLocked(entityID string, frame Frame) {
	for _, ch := range r.subs[entityID] {
		select {
		case ch <- frame:
		default:
			// 订阅者跟不上节拍时丢帧，插值帧是幂等快照，丢了无碍。
		}
	}
}

// Interpolate 计算过渡在给定进度下的插值状态。
// 数值字段（intensity/valence/arousal）按缓动后的权重线性插值并钳制；
// 类别字段（主情绪/次级情绪/触发描述）在进度 0.5 处离散切换，
// 情绪标签不做模糊混合，这是刻意的设计而不是疏漏。
func Interpolate(tr model.EmotionalTransition, progress float64) model.EmotionalState {
	eased := Ease(tr.Curve, progress)

	out := tr.From
	if progress >= 0.5 {
		out = tr.To
	}

	out.Intensity = model.Clamp01(lerp(tr.From.Intensity, tr.To.Intensity, eased))
	out.Valence = model.ClampValence(lerp(tr.From.Valence, tr.To.Valence, eased))
	out.Arousal = model.Clamp01(lerp(tr.From.Arousal, tr.To.Arousal, eased))
	return out
}

func lerp(from, to, t float64) float64 {
	return from + (to-from)*t
}
