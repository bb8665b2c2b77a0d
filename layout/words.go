package layout

import (
	"unicode"
	"unicode/utf8"
)

// isWordRune 报告 r 是否属于可连写的单词字符。
// 汉字、假名与谚文每个字都是独立的断行机会，不计入单词。
func isWordRune(r rune) bool {
	if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) ||
		r == '\'' || r == '’' || r == '_' || r == '-'
}

// isWordElement 报告元素是否为单个单词字符构成的文本。
func (b *breaker) isWordElement(i int) bool {
	el := b.elements[i]
	if !el.IsText() || el.Value == "" || el.Width != nil {
		return false
	}
	r, _ := utf8.DecodeRuneInString(el.Value)
	return isWordRune(r)
}

// prevVisible 返回 i 之前第一个未隐藏元素的下标，不存在时返回 -1。
func (b *breaker) prevVisible(i int) int {
	for k := i - 1; k >= 0; k-- {
		if !b.elements[k].Hidden {
			return k
		}
	}
	return -1
}

// isWordStart 报告元素 i 是否开启一个新单词。
func (b *breaker) isWordStart(i int) bool {
	if !b.isWordElement(i) {
		return false
	}
	p := b.prevVisible(i)
	return p < 0 || !b.isWordElement(p)
}

// wordWidth 从 i 开始向后扫描同一单词的元素并累加基础宽度，隐藏元素被跳过。
func (b *breaker) wordWidth(i int) float64 {
	total := 0.0
	for k := i; k < len(b.elements); k++ {
		if b.elements[k].Hidden {
			continue
		}
		if !b.isWordElement(k) {
			break
		}
		total += b.base[k]
	}
	return total
}

// tabBeforeMarker 报告制表符 i 之后（跨过连续的制表符）是否紧跟列表标记。
func (b *breaker) tabBeforeMarker(i int) bool {
	for k := i + 1; k < len(b.elements); k++ {
		el := b.elements[k]
		switch {
		case el.Hidden || el.Kind == KindTab:
			continue
		case el.Kind == KindListMarker:
			return true
		default:
			return false
		}
	}
	return false
}

// precedingTabs 统计列表标记 i 之前紧邻的制表符个数。
func (b *breaker) precedingTabs(i int) int {
	n := 0
	for k := i - 1; k >= 0; k-- {
		el := b.elements[k]
		if el.Hidden {
			continue
		}
		if el.Kind != KindTab {
			break
		}
		n++
	}
	return n
}
