// Package analysis 在历史状态切片上做纯函数式的趋势与异常分析。
// 所有函数无状态、无副作用，输入切片不会被修改。
package analysis

import (
	"math"
	"time"

	"emotion-engine/internal/model"
)

const (
	// stableSlopeThreshold 斜率绝对值低于此值视为平稳。
	stableSlopeThreshold = 0.01
	// volatileVarianceThreshold 方差超过此值视为波动。
	volatileVarianceThreshold = 0.1
)

// ValenceTrend 计算愉悦度序列的线性趋势。
func ValenceTrend(states []model.EmotionalState) model.TrendReport {
	values := make([]float64, len(states))
	for i, st := range states {
		values[i] = st.Valence
	}
	return trendOf(values)
}

// IntensityTrend 计算强度序列的线性趋势。
func IntensityTrend(states []model.EmotionalState) model.TrendReport {
	values := make([]float64, len(states))
	for i, st := range states {
		values[i] = st.Intensity
	}
	return trendOf(values)
}

// trendOf 对下标-数值序列做最小二乘回归并分类：
// 先判平稳（|slope| 小），再判波动（方差大），否则按斜率符号。
func trendOf(values []float64) model.TrendReport {
	if len(values) < 2 {
		return model.TrendReport{Direction: model.TrendStable}
	}

	slope := olsSlope(values)
	variance := varianceOf(values)

	report := model.TrendReport{Slope: slope, Variance: variance}
	switch {
	case math.Abs(slope) < stableSlopeThreshold:
		report.Direction = model.TrendStable
	case variance > volatileVarianceThreshold:
		report.Direction = model.TrendVolatile
	case slope > 0:
		report.Direction = model.TrendIncreasing
	default:
		report.Direction = model.TrendDecreasing
	}
	return report
}

// olsSlope 普通最小二乘斜率，自变量为序列下标。
func olsSlope(values []float64) float64 {
	n := float64(len(values))
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range values {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func varianceOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := meanOf(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// DominantEmotion 返回切片中出现最多的主情绪（众数）。
func DominantEmotion(states []model.EmotionalState) model.Emotion {
	counts := make(map[model.Emotion]int)
	for _, st := range states {
		counts[st.PrimaryEmotion]++
	}

	var dominant model.Emotion
	best := 0
	// 按固定顺序遍历，计数相同取先出现的情绪，结果可复现。
	for _, e := range model.AllEmotions {
		if counts[e] > best {
			best = counts[e]
			dominant = e
		}
	}
	return dominant
}

// EmotionFrequency 返回归一化的主情绪频率表（总和为 1）。
func EmotionFrequency(states []model.EmotionalState) map[model.Emotion]float64 {
	freq := make(map[model.Emotion]float64)
	if len(states) == 0 {
		return freq
	}
	for _, st := range states {
		freq[st.PrimaryEmotion]++
	}
	n := float64(len(states))
	for e := range freq {
		freq[e] /= n
	}
	return freq
}

// AverageDuration 返回预期持续时长的均值。
func AverageDuration(states []model.EmotionalState) time.Duration {
	if len(states) == 0 {
		return 0
	}
	var sum time.Duration
	for _, st := range states {
		sum += st.ExpectedDuration
	}
	return sum / time.Duration(len(states))
}

// Stability 返回强度序列的稳定系数：1 - 变异系数（stddev/mean）。
// 均值为 0 时按约定返回 1（不做除零）。结果钳制到 [0,1]。
func Stability(states []model.EmotionalState) float64 {
	if len(states) == 0 {
		return 1
	}
	values := make([]float64, len(states))
	for i, st := range states {
		values[i] = st.Intensity
	}
	mean := meanOf(values)
	if mean == 0 {
		return 1
	}
	stddev := math.Sqrt(varianceOf(values))
	return model.Clamp01(1 - stddev/mean)
}
