package bidi

import (
	"reflect"
	"sort"
	"testing"
)

func levelsOf(ints ...int) []Level {
	out := make([]Level, len(ints))
	for i, v := range ints {
		out[i] = Level(v)
	}
	return out
}

func TestEmbeddingLevelsPureLTR(t *testing.T) {
	got := EmbeddingLevels("abc", Auto)
	if want := levelsOf(0, 0, 0); !reflect.DeepEqual(got, want) {
		t.Fatalf("纯 LTR 层级错误: got=%v want=%v", got, want)
	}
	if len(EmbeddingLevels("", Auto)) != 0 {
		t.Fatalf("空文本应返回空层级")
	}
}

func TestEmbeddingLevelsHebrewAutoDetect(t *testing.T) {
	text := "שלום"
	if ParagraphDirection(text) != RTL {
		t.Fatalf("希伯来文段落方向应为 RTL")
	}
	got := EmbeddingLevels(text, Auto)
	if want := levelsOf(1, 1, 1, 1); !reflect.DeepEqual(got, want) {
		t.Fatalf("RTL 层级错误: got=%v want=%v", got, want)
	}
}

func TestEmbeddingLevelsMixedInLTRParagraph(t *testing.T) {
	got := EmbeddingLevels("abc שלום def", Auto)
	want := levelsOf(0, 0, 0, 0, 1, 1, 1, 1, 0, 0, 0, 0)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("混排层级错误: got=%v want=%v", got, want)
	}
	order := VisualOrder(got, 0, len(got))
	wantOrder := []int{0, 1, 2, 3, 7, 6, 5, 4, 8, 9, 10, 11}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Fatalf("视觉顺序错误: got=%v want=%v", order, wantOrder)
	}
}

// 数字在 RTL 段落中保持 LTR 阅读顺序。
func TestEmbeddingLevelsNumbersInRTL(t *testing.T) {
	got := EmbeddingLevels("שלום 123", Auto)
	want := levelsOf(1, 1, 1, 1, 1, 2, 2, 2)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("RTL 中数字层级错误: got=%v want=%v", got, want)
	}
	order := VisualOrder(got, 0, len(got))
	wantOrder := []int{5, 6, 7, 4, 3, 2, 1, 0}
	if !reflect.DeepEqual(order, wantOrder) {
		t.Fatalf("视觉顺序错误: got=%v want=%v", order, wantOrder)
	}
}

func TestEmbeddingLevelsTrailingWhitespaceReset(t *testing.T) {
	got := EmbeddingLevels("שלום ", LTR)
	if got[4] != 0 {
		t.Fatalf("行尾空白应回到段落层级 0，实际 %d", got[4])
	}
	if got[0] != 1 {
		t.Fatalf("希伯来字符在 LTR 段落中应为层级 1，实际 %d", got[0])
	}
}

func TestEmbeddingLevelsExplicitOverride(t *testing.T) {
	// RLO ... PDF 把拉丁字母强制为 R。
	got := EmbeddingLevels("a\u202ebc\u202cd", LTR)
	if got[2] != 1 || got[3] != 1 {
		t.Fatalf("RLO 覆盖区间应为层级 1: %v", got)
	}
	if got[0] != 0 || got[5] != 0 {
		t.Fatalf("覆盖区间外应为层级 0: %v", got)
	}
}

// 成对括号取同一层级（N0），不随两侧的相邻字符各自解析。
func TestEmbeddingLevelsBracketPairs(t *testing.T) {
	cases := []struct {
		text        string
		dir         Direction
		open, close int
		want        Level
	}{
		{"smith (fabrikam عربي) עברית", RTL, 6, 20, 1},
		{"1.2 שלום [a] b", Auto, 9, 11, 1},
		{"a (ש) b", LTR, 2, 4, 0},
	}
	for _, c := range cases {
		got := EmbeddingLevels(c.text, c.dir)
		if got[c.open] != c.want || got[c.close] != c.want {
			t.Fatalf("%q 的括号层级应均为 %d: %v", c.text, c.want, got)
		}
	}

	got := EmbeddingLevels("smith (fabrikam عربي) עברית", RTL)
	if got[0] != 2 || got[7] != 2 || got[16] != 1 {
		t.Fatalf("括号内外的强字符层级错误: %v", got)
	}
	if got[5] != 1 {
		t.Fatalf("L 与括号之间的空白应取嵌入方向: %v", got)
	}
	if got := EmbeddingLevels("1.2 שלום [a] b", Auto); got[10] != 2 {
		t.Fatalf("括号内的拉丁字母应为层级 2: %v", got)
	}
}

// 隔离段内的字符不影响外部中性字符的解析。
func TestEmbeddingLevelsIsolateSequence(t *testing.T) {
	got := EmbeddingLevels("a \u2067שלום\u2069 b", LTR)
	if got[1] != 0 || got[8] != 0 {
		t.Fatalf("隔离段两侧的空白应为层级 0: %v", got)
	}
	if got[3] != 1 {
		t.Fatalf("RLI 内的希伯来字符应为层级 1: %v", got)
	}
}

func TestDirectionalRuns(t *testing.T) {
	text := "ab \u05e9\u05c1"
	levels := EmbeddingLevels(text, LTR)
	spans := DirectionalRuns(text, levels)
	if len(spans) < 2 {
		t.Fatalf("应至少切出两个方向段: %+v", spans)
	}
	total := 0
	for i, sp := range spans {
		if i > 0 && spans[i-1].End != sp.Start {
			t.Fatalf("方向段不连续: %+v", spans)
		}
		total += sp.End - sp.Start
	}
	if total != len(levels) {
		t.Fatalf("方向段覆盖长度错误: %d != %d", total, len(levels))
	}
}

// VisualOrder 的结果必须是逻辑下标的一个排列。
func TestVisualOrderIsPermutation(t *testing.T) {
	samples := []string{
		"hello world",
		"abc שלום def",
		"שלום 123 עולם",
		"مرحبا بالعالم 2024 test",
		"a\u2067שלום\u2069 b",
	}
	for _, s := range samples {
		levels := EmbeddingLevels(s, Auto)
		order := VisualOrder(levels, 0, len(levels))
		sorted := append([]int(nil), order...)
		sort.Ints(sorted)
		for i, v := range sorted {
			if v != i {
				t.Fatalf("%q 的视觉顺序不是排列: %v", s, order)
			}
		}
	}
}

func TestVisualOrderSubRange(t *testing.T) {
	levels := levelsOf(0, 1, 1, 1, 0)
	got := VisualOrder(levels, 1, 4)
	if want := []int{3, 2, 1}; !reflect.DeepEqual(got, want) {
		t.Fatalf("子区间视觉顺序错误: got=%v want=%v", got, want)
	}
}

func segs(style string, texts ...string) []Segment {
	out := make([]Segment, len(texts))
	for i, s := range texts {
		out[i] = Segment{Index: i, Text: s, Style: style}
	}
	return out
}

func TestAnalyzeRowUniformLTRReturnsEmpty(t *testing.T) {
	runs := AnalyzeRow(segs("s", "a", "b", " ", "c"), Auto)
	if runs == nil || len(runs) != 0 {
		t.Fatalf("单一 LTR 行应返回空切片，实际 %+v", runs)
	}
}

func TestAnalyzeRowWhitespaceOnly(t *testing.T) {
	runs := AnalyzeRow(segs("s", " ", "\t"), Auto)
	if len(runs) != 1 {
		t.Fatalf("纯空白行应返回单个 Run，实际 %d", len(runs))
	}
	if runs[0].Direction != LTR || !reflect.DeepEqual(runs[0].Elements, []int{0, 1}) {
		t.Fatalf("纯空白行 Run 错误: %+v", runs[0])
	}
	if empty := AnalyzeRow(nil, Auto); len(empty) != 1 || len(empty[0].Elements) != 0 {
		t.Fatalf("空行应返回单个空 Run: %+v", empty)
	}
}

func TestAnalyzeRowSplitsOnLevelAndStyle(t *testing.T) {
	runs := AnalyzeRow(segs("s", "a", "b", " ", "ש", "ל"), Auto)
	if len(runs) != 2 {
		t.Fatalf("应按层级切为两个 Run，实际 %+v", runs)
	}
	if runs[0].Start != 0 || runs[0].End != 3 || runs[1].Start != 3 || runs[1].End != 5 {
		t.Fatalf("Run 边界错误: %+v", runs)
	}
	if runs[1].Direction != RTL {
		t.Fatalf("第二个 Run 应为 RTL")
	}

	styled := []Segment{{Index: 0, Text: "a", Style: "x"}, {Index: 1, Text: "b", Style: "y"}}
	if got := AnalyzeRow(styled, Auto); len(got) != 2 {
		t.Fatalf("样式变化应切分 Run，实际 %+v", got)
	}
}

// Run 拼接后必须还原行内的逻辑元素序列。
func TestAnalyzeRowConcatenationAndIdempotence(t *testing.T) {
	in := segs("s", "ש", "ל", " ", "a", "b", " ", "1", "2")
	first := AnalyzeRow(in, Auto)
	var all []int
	for _, r := range first {
		all = append(all, r.Elements...)
	}
	for i, v := range all {
		if v != i {
			t.Fatalf("Run 拼接结果不是逻辑顺序: %v", all)
		}
	}
	second := AnalyzeRow(in, Auto)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("AnalyzeRow 不是幂等的:\n%+v\n%+v", first, second)
	}
}

func TestReorderRunsRTLParagraph(t *testing.T) {
	runs := AnalyzeRow(segs("s", "ש", "ל", "ו", "ם", " ", "a", "b", "c"), Auto)
	if len(runs) != 2 {
		t.Fatalf("应得到两个 Run，实际 %+v", runs)
	}
	visual := ReorderRuns(runs)
	if visual[0].Start != 5 || visual[1].Start != 0 {
		t.Fatalf("RTL 段落中 Run 应反序: %+v", visual)
	}
	if runs[0].Start != 0 {
		t.Fatalf("ReorderRuns 不应修改输入")
	}
}
