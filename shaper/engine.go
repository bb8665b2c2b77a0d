// Package shaper 为布局核心测量元素宽度。
//
// 复杂文字（阿拉伯文、希伯来文、印度系文字等）在连续排列时会产生连字与连写形态，
// 逐字测量的宽度与上下文中的实际宽度不同。Shaper 在每次布局前把相邻的复杂文字元素
// 合并成组整体整形，再按 cluster 把字形宽度分回各个元素，绘制时复用同一组字形。
package shaper

import (
	"errors"

	"github.com/ByLCY/quire/bidi"
	"github.com/ByLCY/quire/layout"
)

// ErrNoEngine 表示没有可用的整形引擎。
var ErrNoEngine = errors.New("整形引擎不可用")

// Glyph 是整形结果中的一个字形，长度单位为像素。
// Cluster 为该字形对应的首个 rune 在整形文本中的下标。
type Glyph struct {
	GlyphID  uint32  `json:"glyphId"`
	Cluster  int     `json:"cluster"`
	XAdvance float64 `json:"xAdvance"`
	YAdvance float64 `json:"yAdvance"`
	XOffset  float64 `json:"xOffset"`
	YOffset  float64 `json:"yOffset"`
}

// ShapeResult 是一次整形调用的输出。Ascent 与 Descent 均为正数。
type ShapeResult struct {
	Glyphs       []Glyph `json:"glyphs"`
	TotalAdvance float64 `json:"totalAdvance"`
	Ascent       float64 `json:"ascent"`
	Descent      float64 `json:"descent"`
}

// Engine 是整形能力的提供者。
type Engine interface {
	ShapeText(text []rune, fontID string, size float64, dir bidi.Direction) (ShapeResult, error)
	IsFontReady(fontID string) bool
}

// BasicMeasurer 对整段字符串做不考虑上下文的测量，在整形不可用时使用。
type BasicMeasurer interface {
	MeasureText(text, fontID string, size float64) (layout.Metrics, error)
}

// estimateMetrics 是没有任何测量后端时的估算：按半个字号估算每个 rune 的宽度。
func estimateMetrics(text string, size float64) layout.Metrics {
	if size <= 0 {
		size = 16
	}
	n := 0
	for range text {
		n++
	}
	return layout.Metrics{
		Width:   float64(n) * size * 0.5,
		Height:  size,
		Ascent:  size * 0.8,
		Descent: size * 0.2,
	}
}
