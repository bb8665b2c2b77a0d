package layout

import (
	"context"
	"log/slog"
	"sync"
)

// Session 保存最近一次完整或部分的布局结果，在编辑后从受影响的页续排。
// 方法可并发调用，但同一时刻只会执行一次计算。
type Session struct {
	opts   Options
	logger *slog.Logger

	mu   sync.Mutex
	last *Result
}

// NewSession 创建会话。opts.StopAtPage 只作用于 Relayout，Idle 总是排完剩余部分。
func NewSession(opts Options, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	opts.StartFromIndex = 0
	opts.InitialLayoutState = nil
	opts.InitialRows = nil
	return &Session{opts: opts, logger: logger}
}

// Last 返回最近一次的结果，可能为 nil。
func (s *Session) Last() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// Relayout 在 editIndex 处发生编辑后重新布局。editIndex 之前的元素必须未变。
// 续排状态不可用时退回全量计算。
func (s *Session) Relayout(ctx context.Context, elements []Element, metrics []Metrics, editIndex int) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	opts := s.opts
	page := -1
	if s.last != nil {
		page = s.resumePage(editIndex)
	}
	if page > 0 {
		st := s.last.PageBoundaryStates[page]
		opts.StartFromIndex = st.StartIndex
		opts.InitialLayoutState = &st
		opts.InitialRows = rowsBefore(s.last.Rows, st.RowIndex)
		res, err := Compute(elements, metrics, opts)
		switch {
		case err == nil:
			res.PageBoundaryStates = append(append([]PageBoundaryState(nil), s.last.PageBoundaryStates[:page]...), res.PageBoundaryStates...)
			s.last = res
			return res, nil
		case IsNotReady(err):
			s.logger.Debug("续排状态不可用，改为全量布局", "page", page, "err", err)
		default:
			return nil, err
		}
	}

	opts.StartFromIndex = 0
	opts.InitialLayoutState = nil
	opts.InitialRows = nil
	res, err := Compute(elements, metrics, opts)
	if err != nil {
		return nil, err
	}
	s.last = res
	return res, nil
}

// Idle 补完上一次被 StopAtPage 截断的布局；已完整时直接返回上次结果。
func (s *Session) Idle(ctx context.Context, elements []Element, metrics []Metrics) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil || s.last.Complete {
		return s.last, nil
	}

	states := s.last.PageBoundaryStates
	st := states[len(states)-1]
	opts := s.opts
	opts.StopAtPage = nil
	opts.StartFromIndex = st.StartIndex
	opts.InitialLayoutState = &st
	opts.InitialRows = s.last.Rows
	res, err := Compute(elements, metrics, opts)
	if err != nil {
		if !IsNotReady(err) {
			return nil, err
		}
		s.logger.Debug("空闲续排状态不可用，改为全量布局", "err", err)
		opts.StartFromIndex = 0
		opts.InitialLayoutState = nil
		opts.InitialRows = nil
		if res, err = Compute(elements, metrics, opts); err != nil {
			return nil, err
		}
		s.last = res
		return res, nil
	}
	res.PageBoundaryStates = append(append([]PageBoundaryState(nil), states[:len(states)-1]...), res.PageBoundaryStates...)
	s.last = res
	return res, nil
}

// resumePage 返回可安全续排的页：包含编辑的页的前一页。
// 上一页末行的断行可能向后查看到编辑位置所在的单词，因此退一页。
func (s *Session) resumePage(editIndex int) int {
	states := s.last.PageBoundaryStates
	if !s.last.Complete {
		// 最后一个状态属于未产出的页。
		states = states[:len(states)-1]
	}
	page := 0
	for p, st := range states {
		if st.StartIndex <= editIndex {
			page = p
		}
	}
	if page > 0 {
		page--
	}
	return page
}

func rowsBefore(rows []Row, rowIndex int) []Row {
	n := 0
	for n < len(rows) && rows[n].RowIndex < rowIndex {
		n++
	}
	return append([]Row(nil), rows[:n]...)
}
