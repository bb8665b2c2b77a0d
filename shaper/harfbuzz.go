package shaper

import (
	"math"
	"sync"

	"github.com/go-text/typesetting/di"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/ByLCY/quire/bidi"
	"github.com/ByLCY/quire/fonts"
)

// HarfbuzzEngine 通过 go-text/typesetting 的 HarfBuzz 移植实现 Engine。
// 字体来自 fonts.Registry；同一时刻只执行一次整形。
type HarfbuzzEngine struct {
	reg *fonts.Registry

	mu     sync.Mutex
	shaper shaping.HarfbuzzShaper
}

var _ Engine = (*HarfbuzzEngine)(nil)

// NewHarfbuzzEngine 创建使用 reg 中字体的整形引擎。
func NewHarfbuzzEngine(reg *fonts.Registry) *HarfbuzzEngine {
	return &HarfbuzzEngine{reg: reg}
}

// IsFontReady 报告字体是否已加载，可直接用于整形。
func (e *HarfbuzzEngine) IsFontReady(fontID string) bool {
	return e.reg.IsReady(fontID)
}

// ShapeText 整形 text。size 为像素字号。
func (e *HarfbuzzEngine) ShapeText(text []rune, fontID string, size float64, dir bidi.Direction) (ShapeResult, error) {
	face, err := e.reg.Face(fontID)
	if err != nil {
		return ShapeResult{}, err
	}
	direction := di.DirectionLTR
	if dir == bidi.RTL {
		direction = di.DirectionRTL
	}
	input := shaping.Input{
		Text:      text,
		RunStart:  0,
		RunEnd:    len(text),
		Direction: direction,
		Face:      face,
		Size:      toFixed(size),
		Script:    scriptOf(text),
	}

	e.mu.Lock()
	out := e.shaper.Shape(input)
	e.mu.Unlock()

	res := ShapeResult{
		Glyphs:       make([]Glyph, 0, len(out.Glyphs)),
		TotalAdvance: fromFixed(out.Advance),
		Ascent:       fromFixed(out.LineBounds.Ascent),
		Descent:      -fromFixed(out.LineBounds.Descent),
	}
	for _, g := range out.Glyphs {
		res.Glyphs = append(res.Glyphs, Glyph{
			GlyphID:  uint32(g.GlyphID),
			Cluster:  g.ClusterIndex,
			XAdvance: fromFixed(g.XAdvance),
			YAdvance: fromFixed(g.YAdvance),
			XOffset:  fromFixed(g.XOffset),
			YOffset:  fromFixed(g.YOffset),
		})
	}
	return res, nil
}

func toFixed(v float64) fixed.Int26_6 { return fixed.Int26_6(math.Round(v * 64)) }

func fromFixed(v fixed.Int26_6) float64 { return float64(v) / 64 }

// scriptOf 返回文本中第一个非通用文字的 script。
func scriptOf(text []rune) language.Script {
	for _, r := range text {
		s := language.LookupScript(r)
		if s != language.Common && s != language.Inherited {
			return s
		}
	}
	return language.Latin
}

// complexScripts 是需要上下文整形的文字集合。
var complexScripts = map[language.Script]bool{
	language.Arabic:     true,
	language.Syriac:     true,
	language.Thaana:     true,
	language.Nko:        true,
	language.Hebrew:     true,
	language.Devanagari: true,
	language.Bengali:    true,
	language.Gurmukhi:   true,
	language.Gujarati:   true,
	language.Oriya:      true,
	language.Tamil:      true,
	language.Telugu:     true,
	language.Kannada:    true,
	language.Malayalam:  true,
	language.Sinhala:    true,
	language.Thai:       true,
	language.Lao:        true,
	language.Khmer:      true,
	language.Myanmar:    true,
	language.Tibetan:    true,
	language.Mongolian:  true,
}

// needsShaping 报告 text 是否包含复杂文字。
func needsShaping(text string) bool {
	for _, r := range text {
		if complexScripts[language.LookupScript(r)] {
			return true
		}
	}
	return false
}
