// Package bidi 计算一行文本的双向嵌入层级、方向段与视觉顺序。
//
// 包内全部为纯函数，不持有任何可变状态，可在任意 goroutine 中并发调用。
// 层级解析使用 fribidi，段落方向与 L1 所需的字符类别来自 golang.org/x/text/unicode/bidi。
package bidi

import (
	"github.com/benoitkugler/textprocessing/fribidi"
	xbidi "golang.org/x/text/unicode/bidi"
)

// Direction 表示书写方向。Auto 仅作为输入，表示按首个强方向字符推断。
type Direction int

const (
	Auto Direction = iota
	LTR
	RTL
)

func (d Direction) String() string {
	switch d {
	case LTR:
		return "ltr"
	case RTL:
		return "rtl"
	default:
		return "auto"
	}
}

// MarshalText 让方向在 JSON 中以 "ltr"/"rtl" 出现。
func (d Direction) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// UnmarshalText 解析 "ltr"/"rtl"/"auto"，未知值按 auto 处理。
func (d *Direction) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ltr":
		*d = LTR
	case "rtl":
		*d = RTL
	default:
		*d = Auto
	}
	return nil
}

// Level 是 UAX#9 的嵌入层级，奇数为 RTL，偶数为 LTR。
type Level uint8

// Direction 返回层级对应的方向。
func (l Level) Direction() Direction {
	if l%2 == 1 {
		return RTL
	}
	return LTR
}

func classOf(r rune) xbidi.Class {
	p, _ := xbidi.LookupRune(r)
	return p.Class()
}

func isIsolateInitiator(c xbidi.Class) bool {
	return c == xbidi.LRI || c == xbidi.RLI || c == xbidi.FSI
}

// removedByX9 标记 X9 中被移除的字符：嵌入/覆盖控制符与边界中性字符。
func removedByX9(c xbidi.Class) bool {
	switch c {
	case xbidi.LRE, xbidi.RLE, xbidi.LRO, xbidi.RLO, xbidi.PDF, xbidi.BN:
		return true
	}
	return false
}


// ParagraphDirection 按 P2/P3 返回文本的段落方向；没有强方向字符时为 LTR。
func ParagraphDirection(text string) Direction {
	runes := []rune(text)
	classes := make([]xbidi.Class, len(runes))
	for i, r := range runes {
		classes[i] = classOf(r)
	}
	if firstStrong(classes, 0, len(classes)) == RTL {
		return RTL
	}
	return LTR
}

// firstStrong 在 [from,to) 内寻找首个强方向字符，跳过隔离段内部。
// 未找到时返回 Auto。
func firstStrong(classes []xbidi.Class, from, to int) Direction {
	depth := 0
	for i := from; i < to; i++ {
		c := classes[i]
		switch {
		case isIsolateInitiator(c):
			depth++
		case c == xbidi.PDI:
			if depth == 0 {
				return Auto
			}
			depth--
		case c == xbidi.B:
			return Auto
		case depth == 0 && c == xbidi.L:
			return LTR
		case depth == 0 && (c == xbidi.R || c == xbidi.AL):
			return RTL
		}
	}
	return Auto
}

// EmbeddingLevels 返回 text 中每个 rune 的嵌入层级。
// dir 为 LTR/RTL 时直接作为段落方向，Auto 时取首个强方向字符（默认 LTR）。
// 层级解析（含括号配对与隔离序列）交给 fribidi，行尾空白的 L1 在此补齐。
func EmbeddingLevels(text string, dir Direction) []Level {
	runes := []rune(text)
	if len(runes) == 0 {
		return []Level{}
	}
	types := make([]fribidi.CharType, len(runes))
	brackets := make([]fribidi.BracketType, len(runes))
	orig := make([]xbidi.Class, len(runes))
	for i, r := range runes {
		types[i] = fribidi.GetBidiType(r)
		if types[i] == fribidi.ON {
			brackets[i] = fribidi.GetBracket(r)
		}
		orig[i] = classOf(r)
	}
	base := fribidi.CharType(fribidi.ON)
	switch dir {
	case LTR:
		base = fribidi.LTR
	case RTL:
		base = fribidi.RTL
	}
	resolved, _ := fribidi.GetParEmbeddingLevels(types, brackets, &base)

	paraLevel := Level(0)
	if base == fribidi.RTL {
		paraLevel = 1
	}
	levels := make([]Level, len(runes))
	for i, l := range resolved {
		if l < 0 {
			l = 0
		}
		levels[i] = Level(l)
	}
	resetWhitespace(orig, levels, paraLevel)
	return levels
}

// resetWhitespace 实现 L1：分隔符与行尾空白回到段落层级。
func resetWhitespace(orig []xbidi.Class, levels []Level, paraLevel Level) {
	trailing := true
	for i := len(orig) - 1; i >= 0; i-- {
		c := orig[i]
		switch {
		case c == xbidi.S || c == xbidi.B:
			levels[i] = paraLevel
			trailing = true
		case c == xbidi.WS || isIsolateInitiator(c) || c == xbidi.PDI || removedByX9(c):
			if trailing {
				levels[i] = paraLevel
			}
		default:
			trailing = false
		}
	}
}
