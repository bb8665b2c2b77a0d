package layout

import (
	"math"
	"strings"

	"github.com/ByLCY/quire/bidi"
)

// widthEpsilon 吸收浮点累加误差，避免恰好填满的行被误判为溢出。
const widthEpsilon = 1e-9

// BreakerState 是分行器在相邻两个元素之间携带的全部状态。
// 它按值传递：step 接收旧状态并返回新状态，旧值中的切片不会被改写。
// 页码由 paginator 维护，不在此处。
type BreakerState struct {
	RowIndex         int
	ListID           string
	PrevListLevel    int
	ListHierarchy    []int
	ListOffsetX      float64
	ControlID        string
	ControlRealWidth float64

	row openRow
}

// StateFrom 把页边界状态还原为分行器状态，用于续排。
func StateFrom(s PageBoundaryState) BreakerState {
	return BreakerState{
		RowIndex:         s.RowIndex,
		ListID:           s.ListID,
		PrevListLevel:    s.PrevListLevel,
		ListHierarchy:    cloneInts(s.ListHierarchy),
		ListOffsetX:      s.ListOffsetX,
		ControlID:        s.ControlID,
		ControlRealWidth: s.ControlRealWidth,
	}
}

// snapshot 记录在元素 index 处开始新行时的可续排状态，PageNo 由 paginator 回填。
func (s BreakerState) snapshot(index int) PageBoundaryState {
	return PageBoundaryState{
		StartIndex:       index,
		RowIndex:         s.RowIndex,
		ListID:           s.ListID,
		PrevListLevel:    s.PrevListLevel,
		ListHierarchy:    cloneInts(s.ListHierarchy),
		ListOffsetX:      s.ListOffsetX,
		ControlID:        s.ControlID,
		ControlRealWidth: s.ControlRealWidth,
	}
}

// openRow 是正在累积的行。with 总是返回新值。
type openRow struct {
	start PageBoundaryState

	indices []int
	widths  []float64
	width   float64
	ascent  float64
	descent float64
	margin  float64
	offsetX float64

	isPageBreak   bool
	isList        bool
	isListStart   bool
	listID        string
	listLevel     int
	listIndex     int
	listHierarchy []int
	rowFlex       RowFlex
	notEnough     bool
}

func (r openRow) empty() bool { return len(r.indices) == 0 }

func (r openRow) with(index int, width, ascent, descent float64) openRow {
	next := r
	next.indices = append(append(make([]int, 0, len(r.indices)+1), r.indices...), index)
	next.widths = append(append(make([]float64, 0, len(r.widths)+1), r.widths...), width)
	next.width = r.width + width
	next.ascent = math.Max(r.ascent, ascent)
	next.descent = math.Max(r.descent, descent)
	return next
}

// breaker 持有一次计算中只读的输入与预先算好的基础尺寸（已缩放）。
type breaker struct {
	elements []Element
	opts     Options
	avail    float64

	base    []float64
	ascent  []float64
	descent []float64
}

func newBreaker(elements []Element, metrics []Metrics, opts Options) (*breaker, error) {
	b := &breaker{
		elements: elements,
		opts:     opts,
		avail:    opts.availableWidth(),
		base:     make([]float64, len(elements)),
		ascent:   make([]float64, len(elements)),
		descent:  make([]float64, len(elements)),
	}
	scale := opts.Scale
	for i, el := range elements {
		m := metrics[i]
		for _, v := range []float64{m.Width, m.Height, m.Ascent, m.Descent} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, inputError("measure", i, "度量值不是有限数")
			}
		}
		w := m.Width
		if el.Width != nil {
			w = *el.Width
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return nil, inputError("measure", i, "自定义宽度无效: %v", w)
			}
		}
		w *= scale

		switch {
		case el.IsBlock():
			h := m.Height
			if el.Height > 0 {
				h = el.Height
			}
			h *= scale
			if el.Kind == KindImage && w > b.avail && w > 0 {
				h *= b.avail / w
				w = b.avail
			}
			b.ascent[i] = h
		case m.Ascent == 0 && m.Descent == 0:
			b.ascent[i] = m.Height * scale
		default:
			b.ascent[i] = m.Ascent * scale
			b.descent[i] = m.Descent * scale
		}
		if el.IsLineBreak() || el.Kind == KindPageBreak {
			w = 0
		}
		b.base[i] = w
	}
	return b, nil
}

// emitted 是一条已关闭的行及其开启时的续排快照。
type emitted struct {
	row   Row
	start PageBoundaryState
}

// step 处理元素 i，返回新状态与本步关闭的行。
func (b *breaker) step(st BreakerState, i int) (BreakerState, []emitted) {
	el := b.elements[i]
	if el.Hidden {
		return st, nil
	}
	var out []emitted
	emit := func() {
		if st.row.empty() {
			return
		}
		var e emitted
		st, e = b.close(st)
		out = append(out, e)
	}

	switch {
	case el.Kind == KindPageBreak:
		emit()
		st = b.place(st, i)
		st.row.isPageBreak = true
		emit()
	case el.Kind == KindTable:
		emit()
		st = b.place(st, i)
		emit()
	case el.IsLineBreak():
		emit()
		st = b.place(st, i)
	default:
		if !st.row.empty() && b.shouldBreak(st, i) {
			emit()
		}
		st = b.place(st, i)
	}
	return st, out
}

// flush 关闭最后一行，ok 为 false 表示没有未关闭的行。
func (b *breaker) flush(st BreakerState) (BreakerState, emitted, bool) {
	if st.row.empty() {
		return st, emitted{}, false
	}
	next, e := b.close(st)
	return next, e, true
}

// shouldBreak 判断元素 i 是否必须放到下一行。
func (b *breaker) shouldBreak(st BreakerState, i int) bool {
	avail := b.avail - st.row.offsetX
	w := b.width(st, i)
	if st.row.width+w > avail+widthEpsilon {
		return true
	}
	if b.elements[i].Kind == KindImage || !b.isWordStart(i) {
		return false
	}
	// 整个单词放不下、但在新行中放得下时，在单词前换行。
	ww := b.wordWidth(i)
	return st.row.width+ww > avail+widthEpsilon && ww <= b.freshAvail(st, i)+widthEpsilon
}

// freshAvail 返回元素 i 若开启新行时可用的宽度。
func (b *breaker) freshAvail(st BreakerState, i int) float64 {
	el := b.elements[i]
	if el.List != nil && el.List.ListID == st.ListID {
		return b.avail - st.ListOffsetX
	}
	return b.avail
}

// width 返回元素 i 在当前状态下的实际宽度。
func (b *breaker) width(st BreakerState, i int) float64 {
	el := b.elements[i]
	w := b.base[i]
	switch {
	case el.Kind == KindTab && el.Width == nil:
		if b.tabBeforeMarker(i) {
			return 0
		}
		return b.opts.DefaultTabWidth * b.opts.Scale
	case el.Control != nil && el.Control.Role == ControlPostfix:
		real := 0.0
		if st.ControlID == el.Control.ID {
			real = st.ControlRealWidth
		}
		if pad := el.Control.MinWidth*b.opts.Scale - real; pad > 0 {
			w += pad
		}
	}
	return w
}

// place 把元素 i 放入当前行；行为空时先记录续排快照并开启新行。
func (b *breaker) place(st BreakerState, i int) BreakerState {
	el := b.elements[i]
	opening := st.row.empty()
	var snap PageBoundaryState
	if opening {
		snap = st.snapshot(i)
	}

	w := b.width(st, i)
	st = b.advanceList(st, i)
	st = b.advanceControl(st, i, w)

	if opening {
		st.row = openRow{
			start:   snap,
			rowFlex: el.RowFlex,
			margin:  b.rowMargin(el),
		}
		if el.List != nil {
			st.row = b.withList(st.row, st)
		}
	}
	marker := el.Kind == KindListMarker && el.List != nil
	if marker {
		st.row = b.withList(st.row, st)
		st.row.isListStart = true
	}

	st.row = st.row.with(i, w, b.ascent[i], b.descent[i])
	// 列表标记会抬高已开启行的缩进，需要按整行宽度重新判断。
	if (opening || marker) && st.row.width > b.avail-st.row.offsetX+widthEpsilon {
		st.row.notEnough = true
	}
	return st
}

func (b *breaker) withList(r openRow, st BreakerState) openRow {
	r.isList = true
	r.listID = st.ListID
	r.listLevel = st.PrevListLevel
	r.listHierarchy = cloneInts(st.ListHierarchy)
	r.listIndex = 0
	if n := len(st.ListHierarchy); n > 0 {
		r.listIndex = st.ListHierarchy[n-1] - 1
	}
	r.offsetX = st.ListOffsetX
	return r
}

func (b *breaker) rowMargin(el Element) float64 {
	factor := el.RowMargin
	if factor == 0 {
		factor = 1
	}
	return b.opts.DefaultRowMargin * factor * b.opts.Scale
}

// advanceList 根据元素 i 更新列表上下文。列表标记递增编号，非列表元素结束列表。
func (b *breaker) advanceList(st BreakerState, i int) BreakerState {
	el := b.elements[i]
	if el.List == nil {
		if st.ListID != "" || st.ListHierarchy != nil {
			st.ListID = ""
			st.PrevListLevel = 0
			st.ListHierarchy = nil
			st.ListOffsetX = 0
		}
		return st
	}
	level := el.List.Level
	if level < 0 {
		level = 0
	}
	if el.Kind != KindListMarker {
		if el.List.ListID != st.ListID {
			st.ListID = el.List.ListID
			st.PrevListLevel = level
			st.ListHierarchy = nil
			st.ListOffsetX = b.listIndent(0, level)
		}
		return st
	}

	var h []int
	if len(el.List.Hierarchy) > 0 {
		h = cloneInts(el.List.Hierarchy)
	} else {
		var prev []int
		if el.List.ListID == st.ListID {
			prev = st.ListHierarchy
		}
		h = make([]int, level+1)
		copy(h, prev)
		for k := 0; k < level; k++ {
			if h[k] == 0 {
				h[k] = 1
			}
		}
		h[level]++
	}
	st.ListID = el.List.ListID
	st.PrevListLevel = level
	st.ListHierarchy = h
	st.ListOffsetX = b.listIndent(b.precedingTabs(i), level)
	return st
}

// listIndent 计算列表标记前预留的缩进：tabs 个制表位加基础缩进与层级缩进。
func (b *breaker) listIndent(tabs, level int) float64 {
	o := b.opts
	return (float64(tabs)*o.DefaultTabWidth + o.ListBaseIndent + float64(level)*o.ListLevelIndent) * o.Scale
}

// advanceControl 累计控件内容宽度；离开控件时清零。
func (b *breaker) advanceControl(st BreakerState, i int, w float64) BreakerState {
	el := b.elements[i]
	if el.Control == nil {
		if st.ControlID != "" {
			st.ControlID = ""
			st.ControlRealWidth = 0
		}
		return st
	}
	if el.Control.ID != st.ControlID {
		st.ControlID = el.Control.ID
		st.ControlRealWidth = 0
	}
	st.ControlRealWidth += w
	return st
}

// close 把当前行转换为 Row 并返回清空后的状态。
func (b *breaker) close(st BreakerState) (BreakerState, emitted) {
	r := st.row
	row := Row{
		Width:            r.width,
		Height:           r.ascent + r.descent + 2*r.margin,
		Ascent:           r.ascent,
		Descent:          r.descent,
		StartIndex:       r.indices[0],
		RowIndex:         st.RowIndex,
		IsPageBreak:      r.isPageBreak,
		IsList:           r.isList,
		IsListStart:      r.isListStart,
		ListID:           r.listID,
		ListIndex:        r.listIndex,
		ListLevel:        r.listLevel,
		ListHierarchy:    r.listHierarchy,
		OffsetX:          r.offsetX,
		RowFlex:          r.rowFlex,
		ElementIndices:   r.indices,
		Widths:           r.widths,
		IsWidthNotEnough: r.notEnough,
	}
	row.IsRTL, row.IsBidiMixed = b.direction(r.indices)
	start := r.start
	st.RowIndex++
	st.row = openRow{}
	return st, emitted{row: row, start: start}
}

// direction 对行内文本运行双向分析，得到行方向与是否混排。
func (b *breaker) direction(indices []int) (rtl, mixed bool) {
	var sb strings.Builder
	for _, i := range indices {
		sb.WriteString(b.elements[i].BidiText())
	}
	text := sb.String()
	if text == "" {
		return false, false
	}
	levels := bidi.EmbeddingLevels(text, bidi.Auto)
	return bidi.ParagraphDirection(text) == bidi.RTL, bidi.IsMixed(levels)
}
