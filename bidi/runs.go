package bidi

import (
	"strings"
	"unicode"
)

// Span 是层级相同的最大连续 rune 区间 [Start, End)。
type Span struct {
	Start     int       `json:"start"`
	End       int       `json:"end"`
	Level     Level     `json:"level"`
	Direction Direction `json:"direction"`
}

// DirectionalRuns 把层级数组切分为同层级的最大连续区间。
// levels 短于 text 的 rune 数时只处理有层级的部分。
func DirectionalRuns(text string, levels []Level) []Span {
	n := len([]rune(text))
	if len(levels) < n {
		n = len(levels)
	}
	var spans []Span
	for i := 0; i < n; {
		j := i + 1
		for j < n && levels[j] == levels[i] {
			j++
		}
		spans = append(spans, Span{Start: i, End: j, Level: levels[i], Direction: levels[i].Direction()})
		i = j
	}
	return spans
}

// VisualOrder 返回 [start,end) 区间按规则 L2 重排后的逻辑下标序列：
// 从最高层级到 1，逐层反转层级不低于当前值的每个最大连续区间。
func VisualOrder(levels []Level, start, end int) []int {
	if start < 0 {
		start = 0
	}
	if end > len(levels) {
		end = len(levels)
	}
	if end <= start {
		return []int{}
	}
	order := make([]int, end-start)
	for i := range order {
		order[i] = start + i
	}
	lv := levels[start:end]
	reverseByLevel(order, func(k int) Level { return lv[k] })
	return order
}

// reverseByLevel 对 items 原地执行嵌套反转；levelAt 按 items 的原始位置给出层级。
func reverseByLevel(items []int, levelAt func(k int) Level) {
	n := len(items)
	if n == 0 {
		return
	}
	cur := make([]Level, n)
	var maxL Level
	for k := 0; k < n; k++ {
		cur[k] = levelAt(k)
		if cur[k] > maxL {
			maxL = cur[k]
		}
	}
	for lvl := maxL; lvl >= 1; lvl-- {
		for k := 0; k < n; {
			if cur[k] < lvl {
				k++
				continue
			}
			e := k
			for e < n && cur[e] >= lvl {
				e++
			}
			for a, b := k, e-1; a < b; a, b = a+1, b-1 {
				items[a], items[b] = items[b], items[a]
				cur[a], cur[b] = cur[b], cur[a]
			}
			k = e
		}
	}
}

// Segment 是参与行分析的一个元素：Index 为元素下标，Style 为样式标识。
// 非文本元素应以 U+FFFC 作为 Text。
type Segment struct {
	Index int
	Text  string
	Style string
}

// Run 是一行中层级与样式都相同的连续元素区间，End 不包含。
type Run struct {
	Start     int       `json:"start"`
	End       int       `json:"end"`
	Level     Level     `json:"level"`
	Direction Direction `json:"direction"`
	Elements  []int     `json:"elements"`
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}

// AnalyzeRow 把一行的元素按嵌入层级与样式分组为 Run。
//
// 空行或纯空白行返回覆盖全部元素的单个 LTR Run；
// 整行只有一个 LTR Run 时返回空切片，表示调用方无需特殊处理。
func AnalyzeRow(segs []Segment, dir Direction) []Run {
	var sb strings.Builder
	blank := true
	for _, s := range segs {
		sb.WriteString(s.Text)
		if blank && !isBlank(s.Text) {
			blank = false
		}
	}
	if len(segs) == 0 || blank {
		run := Run{Direction: LTR, Elements: make([]int, 0, len(segs))}
		if len(segs) > 0 {
			run.Start = segs[0].Index
			run.End = segs[len(segs)-1].Index + 1
		}
		for _, s := range segs {
			run.Elements = append(run.Elements, s.Index)
		}
		return []Run{run}
	}

	levels := EmbeddingLevels(sb.String(), dir)
	segLevels := make([]Level, len(segs))
	offset := 0
	for i, s := range segs {
		n := len([]rune(s.Text))
		switch {
		case n > 0 && offset < len(levels):
			segLevels[i] = levels[offset]
		case i > 0:
			segLevels[i] = segLevels[i-1]
		}
		offset += n
	}

	var runs []Run
	for i, s := range segs {
		if i == 0 || segLevels[i] != segLevels[i-1] || s.Style != segs[i-1].Style {
			runs = append(runs, Run{
				Start:     s.Index,
				Level:     segLevels[i],
				Direction: segLevels[i].Direction(),
			})
		}
		r := &runs[len(runs)-1]
		r.Elements = append(r.Elements, s.Index)
		r.End = s.Index + 1
	}
	if len(runs) == 1 && runs[0].Direction == LTR {
		return []Run{}
	}
	return runs
}

// ReorderRuns 以 Run 为单位执行与 VisualOrder 相同的嵌套反转，返回视觉顺序的新切片。
func ReorderRuns(runs []Run) []Run {
	idx := make([]int, len(runs))
	for i := range idx {
		idx[i] = i
	}
	reverseByLevel(idx, func(k int) Level { return runs[k].Level })
	out := make([]Run, len(runs))
	for i, k := range idx {
		out[i] = runs[k]
	}
	return out
}

// IsMixed 报告层级数组中是否同时存在不同的层级。
func IsMixed(levels []Level) bool {
	for i := 1; i < len(levels); i++ {
		if levels[i] != levels[0] {
			return true
		}
	}
	return false
}
