package layout

import "math"

// paginator 把分行器输出的行依次分配到页面，并在每页开始时记录续排状态。
type paginator struct {
	paging        bool
	contentHeight float64
	stopAtPage    *int

	pageNo     int
	used       float64
	rowsOnPage int

	rows    []Row
	states  []PageBoundaryState
	stopped bool
	next    int
}

func newPaginator(opts Options, first PageBoundaryState) *paginator {
	p := &paginator{
		paging:        opts.IsPagingMode,
		contentHeight: opts.pageContentHeight(),
		pageNo:        first.PageNo,
	}
	if opts.IsPagingMode {
		p.stopAtPage = opts.StopAtPage
	}
	p.states = append(p.states, first)
	return p
}

// add 为行分配页码；返回 false 表示已到达 StopAtPage 限制，应停止产出。
func (p *paginator) add(e emitted) bool {
	row := e.row
	if p.paging && p.rowsOnPage > 0 && (row.IsPageBreak || p.used+row.Height > p.contentHeight+widthEpsilon) {
		p.pageNo++
		p.used = 0
		p.rowsOnPage = 0
		st := e.start
		st.PageNo = p.pageNo
		p.states = append(p.states, st)
	}
	if p.stopAtPage != nil && p.pageNo > *p.stopAtPage {
		p.stopped = true
		p.next = row.StartIndex
		return false
	}
	row.PageNo = p.pageNo
	p.used += row.Height
	p.rowsOnPage++
	p.rows = append(p.rows, row)
	return true
}

func (p *paginator) result(prefix []Row, n int) *Result {
	rows := make([]Row, 0, len(prefix)+len(p.rows))
	rows = append(rows, prefix...)
	rows = append(rows, p.rows...)
	res := &Result{
		Rows:               rows,
		PageBoundaryStates: p.states,
		PageCount:          p.pageNo + 1,
		Complete:           !p.stopped,
		NextIndex:          n,
	}
	if p.stopped {
		// 最后一个状态属于尚未产出的页，留给空闲续排使用。
		res.PageCount = p.pageNo
		res.NextIndex = p.next
	}
	return res
}

// Compute 对 elements 执行分行与分页。metrics 必须与 elements 一一对应。
//
// 设置 opts.StartFromIndex 与 opts.InitialLayoutState 时从该下标续排，
// 结果中的 PageBoundaryStates 从续排所在页开始；opts.InitialRows 会原样放在结果行的前面。
// 输入不合法时返回 *Error 且不返回任何行。
func Compute(elements []Element, metrics []Metrics, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	if err := validate(elements, metrics, opts); err != nil {
		return nil, err
	}
	first, err := resumeState(elements, opts)
	if err != nil {
		return nil, err
	}
	b, err := newBreaker(elements, metrics, opts)
	if err != nil {
		return nil, err
	}

	p := newPaginator(opts, first)
	st := StateFrom(first)
	for i := first.StartIndex; i < len(elements) && !p.stopped; i++ {
		var out []emitted
		st, out = b.step(st, i)
		for _, e := range out {
			if !p.add(e) {
				break
			}
		}
	}
	if !p.stopped {
		if _, e, ok := b.flush(st); ok {
			p.add(e)
		}
	}
	return p.result(opts.InitialRows, len(elements)), nil
}

func validate(elements []Element, metrics []Metrics, opts Options) error {
	if len(elements) != len(metrics) {
		return inputError("validate", -1, "元素数量 %d 与度量数量 %d 不一致", len(elements), len(metrics))
	}
	checks := []struct {
		name string
		v    float64
	}{
		{"innerWidth", opts.InnerWidth},
		{"scale", opts.Scale},
		{"pageHeight", opts.PageHeight},
		{"mainOuterHeight", opts.MainOuterHeight},
		{"defaultRowMargin", opts.DefaultRowMargin},
		{"defaultTabWidth", opts.DefaultTabWidth},
		{"tdPadding", opts.TdPadding},
		{"listBaseIndent", opts.ListBaseIndent},
		{"listLevelIndent", opts.ListLevelIndent},
	}
	for _, c := range checks {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return inputError("validate", -1, "%s 不是有限数", c.name)
		}
	}
	if opts.InnerWidth <= 0 || opts.Scale <= 0 {
		return inputError("validate", -1, "innerWidth 与 scale 必须为正数")
	}
	if opts.availableWidth() <= 0 {
		return inputError("validate", -1, "扣除内边距后可用宽度不足")
	}
	if opts.IsPagingMode && opts.pageContentHeight() <= 0 {
		return inputError("validate", -1, "页面正文高度必须为正数")
	}
	return nil
}

// resumeState 返回本次计算的起始状态。续排输入与元素不匹配时返回 ErrStaleResume。
func resumeState(elements []Element, opts Options) (PageBoundaryState, error) {
	if opts.InitialLayoutState == nil {
		if opts.StartFromIndex != 0 || len(opts.InitialRows) > 0 {
			return PageBoundaryState{}, staleError("resume", "缺少起始状态")
		}
		return PageBoundaryState{}, nil
	}
	st := *opts.InitialLayoutState
	st.ListHierarchy = cloneInts(st.ListHierarchy)
	switch {
	case st.StartIndex != opts.StartFromIndex:
		return PageBoundaryState{}, staleError("resume", "状态下标 %d 与起点 %d 不一致", st.StartIndex, opts.StartFromIndex)
	case st.StartIndex < 0 || st.StartIndex > len(elements):
		return PageBoundaryState{}, staleError("resume", "起点 %d 超出元素范围 %d", st.StartIndex, len(elements))
	}
	if n := len(opts.InitialRows); n > 0 {
		last := opts.InitialRows[n-1]
		if last.EndIndex() >= st.StartIndex || last.RowIndex+1 != st.RowIndex {
			return PageBoundaryState{}, staleError("resume", "前缀行与起始状态不衔接")
		}
	}
	return st, nil
}
