package analysis

import (
	"math"
	"testing"
	"time"

	"emotion-engine/internal/model"
)

func valenceStates(valences ...float64) []model.EmotionalState {
	out := make([]model.EmotionalState, len(valences))
	for i, v := range valences {
		out[i] = model.EmotionalState{PrimaryEmotion: model.EmotionJoy, Valence: v, Intensity: 0.5}
	}
	return out
}

func intensityStates(intensities ...float64) []model.EmotionalState {
	out := make([]model.EmotionalState, len(intensities))
	for i, v := range intensities {
		out[i] = model.EmotionalState{PrimaryEmotion: model.EmotionJoy, Intensity: v}
	}
	return out
}

// TestTrendClassification 验证四个趋势方向的分类边界。
// 场景：恒定序列→平稳；缓升→上升；缓降→下降；大幅交替→波动
// （波动判定优先于斜率符号）。
func TestTrendClassification(t *testing.T) {
	cases := []struct {
		name     string
		valences []float64
		want     model.TrendDirection
	}{
		{"constant", []float64{0.3, 0.3, 0.3, 0.3, 0.3, 0.3}, model.TrendStable},
		{"rising", []float64{0, 0.1, 0.2, 0.3, 0.4, 0.5}, model.TrendIncreasing},
		{"falling", []float64{0.5, 0.4, 0.3, 0.2, 0.1, 0}, model.TrendDecreasing},
		{"alternating", []float64{-0.8, 0.8, -0.8, 0.8, -0.8, 0.8}, model.TrendVolatile},
		{"too short", []float64{0.9}, model.TrendStable},
	}

	for _, tc := range cases {
		got := ValenceTrend(valenceStates(tc.valences...))
		if got.Direction != tc.want {
			t.Errorf("%s: direction = %s, want %s (slope=%.4f variance=%.4f)",
				tc.name, got.Direction, tc.want, got.Slope, got.Variance)
		}
	}
}

// TestOLSSlopeExact 验证最小二乘斜率对完美线性序列的精确结果。
func TestOLSSlopeExact(t *testing.T) {
	slope := olsSlope([]float64{0, 0.1, 0.2, 0.3, 0.4})
	if math.Abs(slope-0.1) > 1e-9 {
		t.Fatalf("slope = %v, want 0.1", slope)
	}
	if got := olsSlope([]float64{0.7}); got != 0 {
		t.Fatalf("single point slope = %v, want 0", got)
	}
}

// TestDominantEmotionTieBreak 验证众数情绪的可复现并列裁决。
// 场景：joy 和 sadness 各出现两次，按固定情绪顺序 joy 在前胜出。
func TestDominantEmotionTieBreak(t *testing.T) {
	states := []model.EmotionalState{
		{PrimaryEmotion: model.EmotionSadness},
		{PrimaryEmotion: model.EmotionJoy},
		{PrimaryEmotion: model.EmotionSadness},
		{PrimaryEmotion: model.EmotionJoy},
	}
	if got := DominantEmotion(states); got != model.EmotionJoy {
		t.Fatalf("dominant = %s, want joy", got)
	}
}

// TestEmotionFrequencyNormalized 验证频率表总和为 1。
func TestEmotionFrequencyNormalized(t *testing.T) {
	states := []model.EmotionalState{
		{PrimaryEmotion: model.EmotionJoy},
		{PrimaryEmotion: model.EmotionJoy},
		{PrimaryEmotion: model.EmotionFear},
		{PrimaryEmotion: model.EmotionAnger},
	}
	freq := EmotionFrequency(states)

	if math.Abs(freq[model.EmotionJoy]-0.5) > 1e-9 {
		t.Fatalf("joy frequency = %v, want 0.5", freq[model.EmotionJoy])
	}
	var sum float64
	for _, f := range freq {
		sum += f
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("frequency sum = %v, want 1", sum)
	}

	if len(EmotionFrequency(nil)) != 0 {
		t.Fatal("empty slice should yield empty frequency table")
	}
}

// TestStability 验证稳定系数的边界约定与单调性。
func TestStability(t *testing.T) {
	// 空切片与零均值按约定返回 1。
	if got := Stability(nil); got != 1 {
		t.Fatalf("empty stability = %v, want 1", got)
	}
	if got := Stability(intensityStates(0, 0, 0)); got != 1 {
		t.Fatalf("zero-mean stability = %v, want 1", got)
	}

	// 恒定序列最稳定。
	if got := Stability(intensityStates(0.5, 0.5, 0.5, 0.5)); got != 1 {
		t.Fatalf("constant stability = %v, want 1", got)
	}

	steady := Stability(intensityStates(0.5, 0.52, 0.48, 0.5))
	jumpy := Stability(intensityStates(0.1, 0.9, 0.1, 0.9))
	if steady <= jumpy {
		t.Fatalf("steady series should score higher: steady=%v jumpy=%v", steady, jumpy)
	}
	if jumpy < 0 || jumpy > 1 {
		t.Fatalf("stability out of [0,1]: %v", jumpy)
	}
}

// TestAverageDuration 验证预期时长均值。
func TestAverageDuration(t *testing.T) {
	states := []model.EmotionalState{
		{ExpectedDuration: 10 * time.Second},
		{ExpectedDuration: 30 * time.Second},
	}
	if got := AverageDuration(states); got != 20*time.Second {
		t.Fatalf("average duration = %v, want 20s", got)
	}
	if got := AverageDuration(nil); got != 0 {
		t.Fatalf("empty average duration = %v, want 0", got)
	}
}
