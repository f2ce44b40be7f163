package model

import "time"

// 本文件集中存放进程启动时构造一次、运行期只读的情绪常量表。
// 注意：这些表是查表常量而不是可变全局状态，任何运行时写入都是 bug。

// AllEmotions 按固定顺序列出八种基本情绪。
var AllEmotions = []Emotion{
	EmotionJoy, EmotionTrust, EmotionFear, EmotionSurprise,
	EmotionSadness, EmotionDisgust, EmotionAnger, EmotionAnticipation,
}

// emotionValence 是每种基本情绪的固定愉悦度常量。
var emotionValence = map[Emotion]float64{
	EmotionJoy:          0.8,
	EmotionTrust:        0.6,
	EmotionFear:         -0.7,
	EmotionSurprise:     0.2,
	EmotionSadness:      -0.8,
	EmotionDisgust:      -0.6,
	EmotionAnger:        -0.7,
	EmotionAnticipation: 0.4,
}

// emotionBaseDuration 是每种情绪的基准持续时长。
// 悲伤残留最久，惊讶消散最快。
var emotionBaseDuration = map[Emotion]time.Duration{
	EmotionJoy:          30 * time.Second,
	EmotionTrust:        45 * time.Second,
	EmotionFear:         20 * time.Second,
	EmotionSurprise:     10 * time.Second,
	EmotionSadness:      60 * time.Second,
	EmotionDisgust:      25 * time.Second,
	EmotionAnger:        30 * time.Second,
	EmotionAnticipation: 35 * time.Second,
}

// ValenceOf 返回情绪的固定愉悦度常量；未知情绪按中性 0 处理。
func ValenceOf(e Emotion) float64 {
	return emotionValence[e]
}

// BaseDurationOf 返回情绪的基准持续时长；未知情绪给 30 秒兜底。
func BaseDurationOf(e Emotion) time.Duration {
	if d, ok := emotionBaseDuration[e]; ok {
		return d
	}
	return 30 * time.Second
}

// IsValidEmotion 判断是否为八种基本情绪之一。
func IsValidEmotion(e Emotion) bool {
	_, ok := emotionValence[e]
	return ok
}

// Clamp01 把数值钳制到 [0,1]。
// 与其拒绝上游启发式产生的噪声值，不如在边界处收敛（见错误处理约定）。
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ClampValence 把愉悦度钳制到 [-1,1]。
func ClampValence(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}
