package layout

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func testOptions(innerWidth float64) Options {
	return Options{
		InnerWidth:      innerWidth,
		PageHeight:      1000,
		Scale:           1,
		IsPagingMode:    true,
		ListBaseIndent:  24,
		ListLevelIndent: 20,
	}
}

// textRun 构造每个字符一个元素的文本序列，宽度统一为 w。
func textRun(s string, w float64) ([]Element, []Metrics) {
	var els []Element
	var ms []Metrics
	for _, r := range s {
		els = append(els, Element{Index: len(els), Kind: KindText, Value: string(r)})
		ms = append(ms, Metrics{Width: w, Height: 10, Ascent: 8, Descent: 2})
	}
	return els, ms
}

func appendElement(els []Element, ms []Metrics, el Element, m Metrics) ([]Element, []Metrics) {
	el.Index = len(els)
	return append(els, el), append(ms, m)
}

func mustCompute(t *testing.T, els []Element, ms []Metrics, opts Options) *Result {
	t.Helper()
	res, err := Compute(els, ms, opts)
	if err != nil {
		t.Fatalf("布局计算失败: %v", err)
	}
	return res
}

func rowIndices(res *Result) [][]int {
	out := make([][]int, len(res.Rows))
	for i, r := range res.Rows {
		out[i] = r.ElementIndices
	}
	return out
}

func TestComputeScenarioSingleRow(t *testing.T) {
	els, ms := textRun("abcde", 10)
	res := mustCompute(t, els, ms, testOptions(100))
	if len(res.Rows) != 1 {
		t.Fatalf("期望 1 行，实际 %d", len(res.Rows))
	}
	if want := []int{0, 1, 2, 3, 4}; !reflect.DeepEqual(res.Rows[0].ElementIndices, want) {
		t.Fatalf("行元素错误: %v", res.Rows[0].ElementIndices)
	}
	if res.Rows[0].Width != 50 {
		t.Fatalf("行宽应为 50，实际 %v", res.Rows[0].Width)
	}
	if res.Rows[0].Height != 8+2+2*DefaultRowMargin {
		t.Fatalf("行高计算错误: %v", res.Rows[0].Height)
	}
}

func TestComputeScenarioNarrowRows(t *testing.T) {
	els, ms := textRun("abcde", 30)
	res := mustCompute(t, els, ms, testOptions(50))
	if len(res.Rows) <= 1 {
		t.Fatalf("应产生多行")
	}
	total := 0
	for _, r := range res.Rows {
		if len(r.ElementIndices) > 2 {
			t.Fatalf("每行最多 2 个元素: %v", r.ElementIndices)
		}
		total += len(r.ElementIndices)
	}
	if total != 5 {
		t.Fatalf("元素总数应为 5，实际 %d", total)
	}
}

func TestComputeScenarioPageBreak(t *testing.T) {
	els, ms := textRun("A", 10)
	els, ms = appendElement(els, ms, Element{Kind: KindPageBreak}, Metrics{})
	more, moreMs := textRun("B", 10)
	for i := range more {
		els, ms = appendElement(els, ms, more[i], moreMs[i])
	}

	res := mustCompute(t, els, ms, testOptions(500))
	breaks := 0
	for _, r := range res.Rows {
		if r.IsPageBreak {
			breaks++
			if !reflect.DeepEqual(r.ElementIndices, []int{1}) {
				t.Fatalf("分页行应只包含分页符: %v", r.ElementIndices)
			}
		}
	}
	if breaks != 1 {
		t.Fatalf("应恰好有一行分页行，实际 %d", breaks)
	}
	if len(res.PageBoundaryStates) < 1 {
		t.Fatalf("应至少有一个页边界状态")
	}
	if res.PageCount != 2 || res.Rows[2].PageNo != 1 {
		t.Fatalf("分页后内容应位于第 2 页: pages=%d rows=%+v", res.PageCount, res.Rows)
	}
}

func TestComputeBreaksBeforeWord(t *testing.T) {
	els, ms := textRun("ab cd", 10)
	res := mustCompute(t, els, ms, testOptions(40))
	want := [][]int{{0, 1, 2}, {3, 4}}
	if got := rowIndices(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("应在单词前换行: got=%v want=%v", got, want)
	}
}

func TestComputeHardBreaksLongWord(t *testing.T) {
	els, ms := textRun("abcdef", 10)
	res := mustCompute(t, els, ms, testOptions(40))
	want := [][]int{{0, 1, 2, 3}, {4, 5}}
	if got := rowIndices(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("超长单词应硬断行: got=%v want=%v", got, want)
	}
}

func TestComputeCJKBreaksAnywhere(t *testing.T) {
	els, ms := textRun("ab中文字", 10)
	res := mustCompute(t, els, ms, testOptions(40))
	want := [][]int{{0, 1, 2, 3}, {4}}
	if got := rowIndices(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("汉字之间应可断行: got=%v want=%v", got, want)
	}
}

func TestComputeWidthNotEnough(t *testing.T) {
	els, ms := textRun("a", 150)
	more, moreMs := textRun(" b", 10)
	for i := range more {
		els, ms = appendElement(els, ms, more[i], moreMs[i])
	}
	res := mustCompute(t, els, ms, testOptions(100))
	if !res.Rows[0].IsWidthNotEnough {
		t.Fatalf("超宽单元素行应标记 IsWidthNotEnough")
	}
	if !reflect.DeepEqual(res.Rows[0].ElementIndices, []int{0}) {
		t.Fatalf("超宽元素应独占一行: %v", rowIndices(res))
	}
	for _, r := range res.Rows[1:] {
		if r.IsWidthNotEnough {
			t.Fatalf("普通行不应标记 IsWidthNotEnough")
		}
	}
}

func TestComputeLineBreakStartsRow(t *testing.T) {
	els, ms := textRun("ab\ncd", 10)
	res := mustCompute(t, els, ms, testOptions(500))
	want := [][]int{{0, 1}, {2, 3, 4}}
	if got := rowIndices(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("换行符应开启新行: got=%v want=%v", got, want)
	}
	if res.Rows[1].Widths[0] != 0 {
		t.Fatalf("换行符宽度应为 0")
	}
}

func TestComputeTableOwnsRow(t *testing.T) {
	els, ms := textRun("a", 10)
	els, ms = appendElement(els, ms, Element{Kind: KindTable}, Metrics{Width: 80, Height: 60})
	els, ms = appendElement(els, ms, Element{Kind: KindText, Value: "b"}, Metrics{Width: 10, Height: 10, Ascent: 8, Descent: 2})

	res := mustCompute(t, els, ms, testOptions(500))
	want := [][]int{{0}, {1}, {2}}
	if got := rowIndices(res); !reflect.DeepEqual(got, want) {
		t.Fatalf("表格应独占一行: got=%v want=%v", got, want)
	}
	if res.Rows[1].Ascent != 60 {
		t.Fatalf("表格行的 ascent 应为表格高度，实际 %v", res.Rows[1].Ascent)
	}
}

func TestComputeScalesWideImage(t *testing.T) {
	els, ms := textRun("a", 10)
	els, ms = appendElement(els, ms, Element{Kind: KindImage}, Metrics{Width: 200, Height: 100})
	res := mustCompute(t, els, ms, testOptions(100))
	if len(res.Rows) != 2 {
		t.Fatalf("放不下的图片应换到新行: %v", rowIndices(res))
	}
	img := res.Rows[1]
	if img.Width != 100 || img.Ascent != 50 {
		t.Fatalf("图片应等比缩小: width=%v ascent=%v", img.Width, img.Ascent)
	}
	if img.IsWidthNotEnough {
		t.Fatalf("缩小后的图片不应标记宽度不足")
	}
}

func TestComputeAppliesScale(t *testing.T) {
	els, ms := textRun("abcde", 10)
	opts := testOptions(60)
	opts.Scale = 2
	res := mustCompute(t, els, ms, opts)
	if len(res.Rows) != 1 || res.Rows[0].Width != 100 {
		t.Fatalf("缩放后宽度应为 100 且不换行: %+v", res.Rows)
	}
}

func TestComputeListIndent(t *testing.T) {
	list := &ListInfo{ListID: "l1", Level: 1}
	var els []Element
	var ms []Metrics
	text := Metrics{Width: 10, Height: 10, Ascent: 8, Descent: 2}
	els, ms = appendElement(els, ms, Element{Kind: KindText, Value: LineBreak, List: list}, text)
	els, ms = appendElement(els, ms, Element{Kind: KindTab, List: list}, Metrics{})
	els, ms = appendElement(els, ms, Element{Kind: KindTab, List: list}, Metrics{})
	els, ms = appendElement(els, ms, Element{Kind: KindListMarker, Value: "1.", List: list}, text)
	for _, r := range "xy" {
		els, ms = appendElement(els, ms, Element{Kind: KindText, Value: string(r), List: list}, text)
	}
	els, ms = appendElement(els, ms, Element{Kind: KindText, Value: LineBreak, List: list}, text)
	els, ms = appendElement(els, ms, Element{Kind: KindListMarker, Value: "2.", List: list}, text)

	res := mustCompute(t, els, ms, testOptions(500))
	if len(res.Rows) != 2 {
		t.Fatalf("期望两行列表项: %v", rowIndices(res))
	}
	first := res.Rows[0]
	wantOffset := 2*DefaultTabWidth + 24 + 20
	if !first.IsList || !first.IsListStart || first.OffsetX != wantOffset {
		t.Fatalf("列表首行字段错误: %+v", first)
	}
	if first.Widths[1] != 0 || first.Widths[2] != 0 {
		t.Fatalf("列表标记前的制表符宽度应为 0: %v", first.Widths)
	}
	if !reflect.DeepEqual(first.ListHierarchy, []int{1, 1}) || first.ListIndex != 0 {
		t.Fatalf("列表编号错误: %+v", first)
	}
	second := res.Rows[1]
	if !reflect.DeepEqual(second.ListHierarchy, []int{1, 2}) || second.ListIndex != 1 {
		t.Fatalf("第二项编号错误: %+v", second)
	}
	if second.OffsetX != 24+20 {
		t.Fatalf("无制表符时缩进应为基础缩进加层级缩进: %v", second.OffsetX)
	}
}

// 制表符与层级把缩进推过可用宽度时，列表首行要标记宽度不足。
func TestComputeListIndentWiderThanRow(t *testing.T) {
	list := &ListInfo{ListID: "l1", Level: 2}
	var els []Element
	var ms []Metrics
	els, ms = appendElement(els, ms, Element{Kind: KindTab, List: list}, Metrics{})
	els, ms = appendElement(els, ms, Element{Kind: KindTab, List: list}, Metrics{})
	els, ms = appendElement(els, ms, Element{Kind: KindListMarker, Value: "1.", List: list}, Metrics{Width: 8, Height: 10, Ascent: 8, Descent: 2})

	res := mustCompute(t, els, ms, testOptions(120))
	row := res.Rows[len(res.Rows)-1]
	if !row.IsListStart {
		t.Fatalf("末行应为列表首行: %v", rowIndices(res))
	}
	if want := 2*DefaultTabWidth + 24 + 2*20; row.OffsetX != want {
		t.Fatalf("缩进错误: got=%v want=%v", row.OffsetX, want)
	}
	if !row.IsWidthNotEnough {
		t.Fatalf("缩进超出可用宽度的行应标记 IsWidthNotEnough: %+v", row)
	}
	checkInvariants(t, els, res, 120)
}

func TestComputeListContinuationRowsKeepOffset(t *testing.T) {
	list := &ListInfo{ListID: "l1"}
	text := Metrics{Width: 10, Height: 10, Ascent: 8, Descent: 2}
	var els []Element
	var ms []Metrics
	els, ms = appendElement(els, ms, Element{Kind: KindListMarker, Value: "•", List: list}, text)
	for _, r := range "a b c d e f g" {
		els, ms = appendElement(els, ms, Element{Kind: KindText, Value: string(r), List: list}, text)
	}
	res := mustCompute(t, els, ms, testOptions(74))
	if len(res.Rows) < 2 {
		t.Fatalf("列表项应折成多行: %v", rowIndices(res))
	}
	for _, r := range res.Rows {
		if r.OffsetX != 24 || !r.IsList || r.ListID != "l1" {
			t.Fatalf("续行应保留列表缩进: %+v", r)
		}
		if r.Width > 74-24 {
			t.Fatalf("扣除缩进后行宽溢出: %v", r.Width)
		}
	}
	if res.Rows[1].IsListStart {
		t.Fatalf("续行不应标记 IsListStart")
	}
}

func TestComputeControlMinWidth(t *testing.T) {
	text := Metrics{Width: 10, Height: 10, Ascent: 8, Descent: 2}
	var els []Element
	var ms []Metrics
	for _, r := range "ab" {
		els, ms = appendElement(els, ms, Element{Kind: KindText, Value: string(r), Control: &ControlInfo{ID: "c", Role: ControlValue}}, text)
	}
	els, ms = appendElement(els, ms, Element{Kind: KindText, Value: "]", Control: &ControlInfo{ID: "c", Role: ControlPostfix, MinWidth: 50}}, Metrics{Width: 5, Height: 10, Ascent: 8, Descent: 2})

	res := mustCompute(t, els, ms, testOptions(500))
	if got := res.Rows[0].Widths[2]; got != 35 {
		t.Fatalf("后缀应补足到最小宽度: %v", got)
	}
}

func TestComputeHiddenElementsSkipped(t *testing.T) {
	els, ms := textRun("abc", 10)
	els[1].Hidden = true
	res := mustCompute(t, els, ms, testOptions(500))
	if !reflect.DeepEqual(res.Rows[0].ElementIndices, []int{0, 2}) {
		t.Fatalf("隐藏元素不应出现在行中: %v", res.Rows[0].ElementIndices)
	}
}

func TestComputeRTLRow(t *testing.T) {
	els, ms := textRun("שלום", 10)
	res := mustCompute(t, els, ms, testOptions(500))
	if !res.Rows[0].IsRTL || res.Rows[0].ReservedEdge() != "right" {
		t.Fatalf("希伯来文行应为 RTL: %+v", res.Rows[0])
	}

	mixed, mixedMs := textRun("ab שלום", 10)
	res = mustCompute(t, mixed, mixedMs, testOptions(500))
	if res.Rows[0].IsRTL || !res.Rows[0].IsBidiMixed {
		t.Fatalf("LTR 中嵌入希伯来文应为混排: %+v", res.Rows[0])
	}
}

func TestComputeInputErrors(t *testing.T) {
	els, ms := textRun("ab", 10)
	_, err := Compute(els, ms[:1], testOptions(100))
	var le *Error
	if !errors.As(err, &le) || le.Kind != KindInput {
		t.Fatalf("长度不一致应返回输入错误: %v", err)
	}

	if _, err := Compute(els, ms, testOptions(math.Inf(1))); !errors.As(err, &le) || le.Kind != KindInput {
		t.Fatalf("非有限宽度应返回输入错误: %v", err)
	}

	bad := math.NaN()
	els[0].Width = &bad
	res, err := Compute(els, ms, testOptions(100))
	if res != nil || !errors.As(err, &le) || le.Index != 0 {
		t.Fatalf("非法自定义宽度应返回元素 0 的错误且无结果: %v", err)
	}
}

// 所有结果都要满足的结构性质。
func checkInvariants(t *testing.T, els []Element, res *Result, avail float64) {
	t.Helper()
	var all []int
	prevPage := 0
	for k, r := range res.Rows {
		if r.RowIndex != k {
			t.Fatalf("rowIndex 不连续: %d != %d", r.RowIndex, k)
		}
		if r.PageNo < prevPage {
			t.Fatalf("页码递减: row %d", k)
		}
		prevPage = r.PageNo
		sum := 0.0
		for _, w := range r.Widths {
			sum += w
		}
		if !r.IsWidthNotEnough && sum > avail-r.OffsetX+1e-6 {
			t.Fatalf("行 %d 宽度 %v 超出可用宽度 %v", k, sum, avail)
		}
		all = append(all, r.ElementIndices...)
	}
	var want []int
	for i, el := range els {
		if !el.Hidden {
			want = append(want, i)
		}
	}
	if !reflect.DeepEqual(all, want) {
		t.Fatalf("行拼接后的逻辑序列错误:\n got=%v\nwant=%v", all, want)
	}
}

func TestComputeInvariants(t *testing.T) {
	els, ms := textRun("the quick brown fox jumps over the lazy dog שלום עולם 123 中文排版测试 end", 9)
	els[5].Hidden = true
	els, ms = appendElement(els, ms, Element{Kind: KindPageBreak}, Metrics{})
	more, moreMs := textRun("tail text", 9)
	for i := range more {
		els, ms = appendElement(els, ms, more[i], moreMs[i])
	}
	for _, w := range []float64{30, 55, 100, 333} {
		opts := testOptions(w)
		opts.PageHeight = 50
		res := mustCompute(t, els, ms, opts)
		checkInvariants(t, els, res, w)
	}
}
