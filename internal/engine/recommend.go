package engine

import "emotion-engine/internal/model"

// 建议全部来自固定规则表：当前状态的愉悦度/强度 + 检出的模式。
// 异常自带的建议文案直接并入，不在这里重复生成。

var patternRecommendations = map[model.PatternType][]string{
	model.PatternFrustrationSpiral: {
		"挫败螺旋进行中：立刻切换到一个确定能完成的任务打断下行",
		"暂停新知识输入，先处理情绪再继续教学",
	},
	model.PatternPlateau: {
		"学习状态进入平台期，引入新的刺激形式或提高一档难度",
	},
	model.PatternRecoveryBounce: {
		"情绪正在恢复，保持当前节奏并及时给予正向反馈",
	},
	model.PatternBreakthrough: {
		"疑似理解突破，趁热安排一个迁移应用类任务巩固",
	},
	model.PatternLearningCycle: {
		"挣扎-领悟循环运转正常，维持现有的难度曲线",
	},
}

// buildRecommendations 汇总三路建议并按出现顺序去重。
func buildRecommendations(current model.EmotionalState, patterns []model.Pattern, anomalies []model.Anomaly) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(items ...string) {
		for _, s := range items {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}

	// 当前状态规则表。
	switch {
	case current.Valence < -0.5:
		add("当前情绪明显负面，降低任务难度并给出鼓励性反馈")
	case current.Valence > 0.5 && current.Intensity > 0.6:
		add("当前情绪积极且投入，适合推进更有挑战的内容")
	}
	if current.Intensity > 0.8 {
		add("情绪强度偏高，放缓节奏避免过载")
	}
	if current.Intensity < 0.2 {
		add("情绪强度偏低，提高刺激强度或更换刺激形式")
	}

	for _, p := range patterns {
		add(patternRecommendations[p.Type]...)
	}
	for _, a := range anomalies {
		add(a.Recommendations...)
	}

	if len(out) == 0 {
		add("状态正常，按当前节奏继续")
	}
	return out
}
