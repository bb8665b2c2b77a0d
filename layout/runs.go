package layout

import "github.com/ByLCY/quire/bidi"

// RowRuns 对一行运行双向分析，返回逻辑顺序的 Run。
// 结果为空切片表示整行是单一 LTR Run，无需特殊处理。
func RowRuns(elements []Element, row Row) []bidi.Run {
	segs := make([]bidi.Segment, 0, len(row.ElementIndices))
	for _, i := range row.ElementIndices {
		el := elements[i]
		segs = append(segs, bidi.Segment{Index: i, Text: el.BidiText(), Style: el.Style.Key()})
	}
	dir := bidi.LTR
	if row.IsRTL {
		dir = bidi.RTL
	}
	return bidi.AnalyzeRow(segs, dir)
}

// RowView 是一行的逻辑 Run 与视觉顺序 Run，供定位与绘制使用。
type RowView struct {
	RowIndex int        `json:"rowIndex"`
	Logical  []bidi.Run `json:"logical"`
	Visual   []bidi.Run `json:"visual"`
}

// AnalyzeRows 为结果中的每一行计算 RowView。
func AnalyzeRows(elements []Element, res *Result) []RowView {
	if res == nil {
		return nil
	}
	views := make([]RowView, 0, len(res.Rows))
	for _, row := range res.Rows {
		logical := RowRuns(elements, row)
		views = append(views, RowView{
			RowIndex: row.RowIndex,
			Logical:  logical,
			Visual:   bidi.ReorderRuns(logical),
		})
	}
	return views
}
