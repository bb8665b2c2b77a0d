package document

import (
	"math"
	"strconv"
	"strings"
)

// 长度统一换算为 96dpi 下的像素。
const (
	DPI     = 96.0
	MmToPx  = DPI / 25.4
	PtToPx  = DPI / 72
	PxToMm  = 1 / MmToPx
	CmToPx  = 10 * MmToPx
	InToPx  = DPI
	defSize = 12 * PtToPx
)

// Unit 是长度的单位后缀，空串表示未写单位，按像素处理。
type Unit string

const (
	UnitPX Unit = "px"
	UnitPT Unit = "pt"
	UnitMM Unit = "mm"
	UnitCM Unit = "cm"
	UnitIN Unit = "in"
)

// pxPer 是每单位对应的像素数。
var pxPer = map[Unit]float64{
	"":     1,
	UnitPX: 1,
	UnitPT: PtToPx,
	UnitMM: MmToPx,
	UnitCM: CmToPx,
	UnitIN: InToPx,
}

// Length 保留作者写下的数值与单位。
type Length struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit,omitempty"`
}

// Px 换算为像素。
func (l Length) Px() float64 { return l.Value * pxPer[l.Unit] }

// To 换算为目标单位的数值。
func (l Length) To(target Unit) float64 { return l.Px() / pxPer[target] }

func (l Length) String() string {
	return strconv.FormatFloat(l.Value, 'f', -1, 64) + string(l.Unit)
}

// ParseLength 解析 12pt、18mm、40 之类的长度，ok 为 false 表示不是合法的长度。
func ParseLength(value string) (Length, bool) {
	v := strings.ToLower(strings.TrimSpace(value))
	num, unit := v, Unit("")
	if n := len(v); n > 2 {
		if _, ok := pxPer[Unit(v[n-2:])]; ok {
			num, unit = strings.TrimSpace(v[:n-2]), Unit(v[n-2:])
		}
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Length{}, false
	}
	return Length{Value: f, Unit: unit}, true
}

// parsePx 解析长度并换算为像素，非法值返回 0。
func parsePx(value string) float64 {
	l, ok := ParseLength(value)
	if !ok {
		return 0
	}
	return l.Px()
}

// parseDimension 支持百分比，reference 为百分比的基准像素值。
func parseDimension(value string, reference float64) float64 {
	v := strings.TrimSpace(value)
	if strings.HasSuffix(v, "%") {
		if f, err := strconv.ParseFloat(strings.TrimSuffix(v, "%"), 64); err == nil {
			return reference * f / 100
		}
		return 0
	}
	return parsePx(v)
}

// LineHeight 是 line-height 的取值：Factor 非零时为字号倍数（1.5x），否则为绝对长度（18pt）。
type LineHeight struct {
	Factor   float64 `json:"factor,omitempty"`
	Absolute Length  `json:"absolute,omitempty"`
}

// ParseLineHeight 解析 line-height 属性，非正值视为非法。
func ParseLineHeight(value string) (LineHeight, bool) {
	v := strings.TrimSpace(value)
	if f, ok := strings.CutSuffix(v, "x"); ok {
		n, err := strconv.ParseFloat(f, 64)
		if err != nil || !(n > 0) {
			return LineHeight{}, false
		}
		return LineHeight{Factor: n}, true
	}
	l, ok := ParseLength(v)
	if !ok || l.Value <= 0 {
		return LineHeight{}, false
	}
	return LineHeight{Absolute: l}, true
}

// Px 返回字号为 fontSize 像素时的行高。
func (lh LineHeight) Px(fontSize float64) float64 {
	if lh.Factor > 0 {
		return fontSize * lh.Factor
	}
	return lh.Absolute.Px()
}

// RowMargin 把行高换算为元素的行距倍数。行高超出字号的部分平分在行的上下两侧，
// 每侧为 RowMargin × defaultRowMargin。
func (lh LineHeight) RowMargin(fontSize, defaultRowMargin float64) float64 {
	if defaultRowMargin <= 0 {
		return 1
	}
	return max(0, (lh.Px(fontSize)-fontSize)/2) / defaultRowMargin
}
