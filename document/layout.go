package document

import (
	"context"
	"errors"
	"fmt"

	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/shaper"
)

// DefaultCellPadding 是表格单元格两侧的默认内边距。
const DefaultCellPadding = 4.0

// FrameLayout 是一个 Frame 的测量与排版结果。Result 只在独立排版的 Frame 上填写。
type FrameLayout struct {
	Metrics []layout.Metrics     `json:"metrics"`
	Result  *layout.Result       `json:"result,omitempty"`
	Height  float64              `json:"height"`
	Tables  map[int]*TableLayout `json:"tables,omitempty"`
	pass    *shaper.Pass
}

// Pass 返回测量该 Frame 时的整形上下文，绘制时用于取回字形。
func (fl *FrameLayout) Pass() *shaper.Pass { return fl.pass }

// TableLayout 是表格的排版结果，每个单元格都是独立的排版周期。
type TableLayout struct {
	Columns    []float64        `json:"columns"`
	RowHeights []float64        `json:"rowHeights"`
	Cells      [][]*FrameLayout `json:"cells"`
}

// Measured 是正文排版前的准备结果：页眉页脚与表格已排版，正文已测量。
type Measured struct {
	Body    *FrameLayout   `json:"body"`
	Header  *FrameLayout   `json:"header,omitempty"`
	Footer  *FrameLayout   `json:"footer,omitempty"`
	Options layout.Options `json:"options"`

	passes []*shaper.Pass
}

// NeedsRelayout 报告是否有排版周期使用了基础测量，字体就绪后应重新排版。
func (m *Measured) NeedsRelayout() bool {
	for _, p := range m.passes {
		if p.NeedsRelayout() {
			return true
		}
	}
	return false
}

// Ready 等待所有排版周期触发的字体加载。
func (m *Measured) Ready(ctx context.Context) error {
	var errs []error
	for _, p := range m.passes {
		if err := p.Ready(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Measure 排版页眉、页脚与表格单元格并测量正文。base 提供缩放、行距与缩进等设置，
// 页面几何由文档决定。
func (d *Document) Measure(s *shaper.Shaper, base layout.Options) (*Measured, error) {
	if s == nil {
		return nil, fmt.Errorf("document: 缺少 Shaper")
	}
	base.StartFromIndex = 0
	base.InitialLayoutState = nil
	base.InitialRows = nil
	base.StopAtPage = nil
	if base.Scale == 0 {
		base.Scale = 1
	}

	m := &Measured{}
	width := d.Page.ContentWidth()
	var err error
	var headerH, footerH float64
	if d.Header != nil {
		if m.Header, err = m.independent(s, d.Header, width, base); err != nil {
			return nil, fmt.Errorf("页眉排版失败: %w", err)
		}
		headerH = m.Header.Height / base.Scale
	}
	if d.Footer != nil {
		if m.Footer, err = m.independent(s, d.Footer, width, base); err != nil {
			return nil, fmt.Errorf("页脚排版失败: %w", err)
		}
		footerH = m.Footer.Height / base.Scale
	}

	opts := base
	opts.InnerWidth = width
	opts.StartX = d.Page.Margin.Left
	opts.StartY = d.Page.Margin.Top + headerH
	opts.PageHeight = d.Page.Height
	opts.MainOuterHeight = d.Page.Margin.Top + d.Page.Margin.Bottom + headerH + footerH
	opts.IsPagingMode = true
	opts.IsFromTable = false
	m.Options = opts

	if m.Body, err = m.measure(s, d.Body, opts); err != nil {
		return nil, err
	}
	return m, nil
}

// Layout 测量并排版整篇文档。
func (d *Document) Layout(s *shaper.Shaper, base layout.Options) (*Measured, error) {
	m, err := d.Measure(s, base)
	if err != nil {
		return nil, err
	}
	res, err := layout.Compute(d.Body.Elements, m.Body.Metrics, m.Options)
	if err != nil {
		return nil, fmt.Errorf("正文排版失败: %w", err)
	}
	m.Body.Result = res
	m.Body.Height = rowsHeight(res.Rows)
	return m, nil
}

// measure 先确定 Frame 内表格的尺寸，再测量全部元素。
func (m *Measured) measure(s *shaper.Shaper, f *Frame, opts layout.Options) (*FrameLayout, error) {
	fl := &FrameLayout{}
	if len(f.Tables) > 0 {
		fl.Tables = map[int]*TableLayout{}
	}
	for idx, t := range f.Tables {
		tl, h, err := m.table(s, t, opts)
		if err != nil {
			return nil, fmt.Errorf("表格 %d: %w", idx, err)
		}
		f.Elements[idx].Height = h
		fl.Tables[idx] = tl
	}
	fl.pass = s.Precompute(f.Elements)
	m.passes = append(m.passes, fl.pass)
	metrics, err := fl.pass.MeasureAll()
	if err != nil {
		return nil, err
	}
	fl.Metrics = metrics
	return fl, nil
}

// independent 以不分页模式排版一个 Frame，高度取显式高度或全部行高之和。
func (m *Measured) independent(s *shaper.Shaper, f *Frame, width float64, base layout.Options) (*FrameLayout, error) {
	opts := base
	opts.InnerWidth = width
	opts.IsPagingMode = false
	fl, err := m.measure(s, f, opts)
	if err != nil {
		return nil, err
	}
	res, err := layout.Compute(f.Elements, fl.Metrics, opts)
	if err != nil {
		return nil, err
	}
	fl.Result = res
	fl.Height = rowsHeight(res.Rows)
	if f.Height > 0 {
		fl.Height = f.Height * opts.Scale
	}
	return fl, nil
}

// table 逐个单元格独立排版，返回未缩放的表格高度。
func (m *Measured) table(s *shaper.Shaper, t *Table, base layout.Options) (*TableLayout, float64, error) {
	pad := base.TdPadding
	if pad == 0 {
		pad = DefaultCellPadding
	}
	tl := &TableLayout{Columns: t.Columns}
	total := 0.0
	for _, row := range t.Rows {
		cells := make([]*FrameLayout, len(row))
		rowH := 0.0
		for i, cell := range row {
			opts := base
			opts.IsFromTable = true
			opts.TdPadding = pad
			cl, err := m.independent(s, cell, t.Columns[i], opts)
			if err != nil {
				return nil, 0, err
			}
			if h := cl.Height/base.Scale + 2*pad; h > rowH {
				rowH = h
			}
			cells[i] = cl
		}
		tl.Cells = append(tl.Cells, cells)
		tl.RowHeights = append(tl.RowHeights, rowH)
		total += rowH
	}
	return tl, total, nil
}

func rowsHeight(rows []layout.Row) float64 {
	h := 0.0
	for _, r := range rows {
		h += r.Height
	}
	return h
}
