package transition

import (
	"math"

	"emotion-engine/internal/model"
)

// Ease 把归一化进度 t ∈ [0,1] 映射为插值权重。
// 约定：所有曲线满足 f(0)=0、f(1)=1；bounce/elastic 中段允许越出 [0,1]
// 以产生弹性观感，越界只在最终数值插值输出时统一钳制，不在曲线内钳制。
func Ease(curve model.Curve, t float64) float64 {
	switch curve {
	case model.CurveEaseIn:
		return t * t
	case model.CurveEaseOut:
		return t * (2 - t)
	case model.CurveEaseInOut:
		if t < 0.5 {
			return 2 * t * t
		}
		return -1 + (4-2*t)*t
	case model.CurveBounce:
		return easeOutBounce(t)
	case model.CurveElastic:
		return easeOutElastic(t)
	default:
		return t
	}
}

// easeOutBounce 标准四段弹跳公式。
func easeOutBounce(t float64) float64 {
	const n1 = 7.5625
	const d1 = 2.75

	switch {
	case t < 1/d1:
		return n1 * t * t
	case t < 2/d1:
		t -= 1.5 / d1
		return n1*t*t + 0.75
	case t < 2.5/d1:
		t -= 2.25 / d1
		return n1*t*t + 0.9375
	default:
		t -= 2.625 / d1
		return n1*t*t + 0.984375
	}
}

// easeOutElastic 阻尼正弦公式，中段会越过 1 再回落。
func easeOutElastic(t float64) float64 {
	if t == 0 {
		return 0
	}
	if t == 1 {
		return 1
	}
	const c4 = (2 * math.Pi) / 3
	return math.Pow(2, -10*t)*math.Sin((t*10-0.75)*c4) + 1
}
