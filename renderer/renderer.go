// Package renderer 把分行结果换算为页面坐标，并把文本交给绘制后端。
package renderer

import (
	"slices"

	"github.com/ByLCY/quire/bidi"
	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/shaper"
)

// GlyphRun 是一次绘制调用的输入。坐标为缩放后的像素，原点在页面左上角。
type GlyphRun struct {
	Index    int            `json:"index"`
	PageNo   int            `json:"pageNo"`
	X        float64        `json:"x"`
	Baseline float64        `json:"baseline"`
	Width    float64        `json:"width"`
	FontID   string         `json:"fontId"`
	Size     float64        `json:"size"` // 缩放后的字号
	Color    string         `json:"color,omitempty"`
	Text     string         `json:"text"`
	Glyphs   []shaper.Glyph `json:"glyphs,omitempty"` // 步进已缩放；为空时后端自行排布 Text
	RTL      bool           `json:"rtl,omitempty"`
}

// Painter 是绘制后端。
type Painter interface {
	RenderGlyphs(run GlyphRun) error
}

// Box 是元素在页面上的位置。X、Y 为元素框左上角，Height 为所在行的行高。
type Box struct {
	Index    int     `json:"index"`
	PageNo   int     `json:"pageNo"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	Baseline float64 `json:"baseline"`
	RTL      bool    `json:"rtl,omitempty"`
}

// Position 按行的对齐方式、列表缩进与双向视觉顺序计算每个元素的位置。
// 换页时纵向游标回到 StartY。返回值按页、行、视觉顺序排列。
func Position(elements []layout.Element, res *layout.Result, opts layout.Options) []Box {
	if res == nil {
		return nil
	}
	scale := opts.Scale
	if scale == 0 {
		scale = 1
	}
	avail := opts.AvailableWidth()
	left := opts.StartX * scale
	top := opts.StartY * scale
	if opts.IsFromTable {
		left += opts.TdPadding * scale
		top += opts.TdPadding * scale
	}

	var out []Box
	page := -1
	y := top
	for ri, row := range res.Rows {
		if row.PageNo != page {
			page = row.PageNo
			y = top
		}
		widths := make(map[int]float64, len(row.ElementIndices))
		for k, idx := range row.ElementIndices {
			if k < len(row.Widths) {
				widths[idx] = row.Widths[k]
			}
		}

		space := avail - row.OffsetX
		start := left
		if !row.IsRTL {
			start += row.OffsetX
		}
		extra := space - row.Width
		gap := 0.0
		switch row.RowFlex {
		case layout.FlexCenter:
			start += extra / 2
		case layout.FlexRight:
			start += extra
		case layout.FlexAlignment:
			if n := len(row.ElementIndices); n > 1 && extra > 0 && !lastOfParagraph(elements, res.Rows, ri) {
				gap = extra / float64(n-1)
			} else if row.IsRTL {
				start += extra
			}
		default:
			if row.IsRTL {
				start += extra
			}
		}

		margin := (row.Height - row.Ascent - row.Descent) / 2
		baseline := y + margin + row.Ascent
		x := start
		for _, vr := range visualRuns(elements, row) {
			for _, idx := range vr.order {
				w := widths[idx]
				out = append(out, Box{
					Index:    idx,
					PageNo:   row.PageNo,
					X:        x,
					Y:        y,
					Width:    w,
					Height:   row.Height,
					Baseline: baseline,
					RTL:      vr.rtl,
				})
				x += w + gap
			}
		}
		y += row.Height
	}
	return out
}

type visualRun struct {
	order []int
	rtl   bool
}

// visualRuns 返回一行中按视觉顺序排列的元素；RTL Run 内部倒序。
func visualRuns(elements []layout.Element, row layout.Row) []visualRun {
	runs := layout.RowRuns(elements, row)
	if len(runs) == 0 {
		return []visualRun{{order: row.ElementIndices}}
	}
	var out []visualRun
	for _, r := range bidi.ReorderRuns(runs) {
		order := slices.Clone(r.Elements)
		rtl := r.Direction == bidi.RTL
		if rtl {
			slices.Reverse(order)
		}
		out = append(out, visualRun{order: order, rtl: rtl})
	}
	return out
}

// lastOfParagraph 报告第 ri 行之后是否结束了段落：没有后续行，或下一行以换行开始。
func lastOfParagraph(elements []layout.Element, rows []layout.Row, ri int) bool {
	if ri+1 >= len(rows) {
		return true
	}
	next := rows[ri+1]
	if len(next.ElementIndices) == 0 {
		return true
	}
	el := elements[next.ElementIndices[0]]
	return el.IsLineBreak() || el.Kind == layout.KindPageBreak || el.IsBlock()
}

// Paint 把文本与列表标记交给 p 绘制，其余元素由调用方处理。
// pass 非空时使用测量阶段分组整形得到的字形，保证绘制宽度与排版一致。
func Paint(p Painter, elements []layout.Element, boxes []Box, pass *shaper.Pass, reg *fonts.Registry, scale float64) error {
	if scale == 0 {
		scale = 1
	}
	for _, b := range boxes {
		el := elements[b.Index]
		if el.Hidden || !(el.IsText() || el.Kind == layout.KindListMarker) {
			continue
		}
		run := GlyphRun{
			Index:    b.Index,
			PageNo:   b.PageNo,
			X:        b.X,
			Baseline: b.Baseline,
			Width:    b.Width,
			FontID:   reg.ResolveOrDefault(el.Style.Font, el.Style.Bold, el.Style.Italic),
			Size:     el.Style.Size * scale,
			Color:    el.Style.Color,
			Text:     el.Value,
			RTL:      b.RTL,
		}
		if pass != nil {
			if gs, ok := pass.Glyphs(b.Index); ok {
				run.Glyphs = scaleGlyphs(gs, scale)
			}
		}
		if err := p.RenderGlyphs(run); err != nil {
			return err
		}
	}
	return nil
}

func scaleGlyphs(gs []shaper.Glyph, scale float64) []shaper.Glyph {
	if scale == 1 {
		return gs
	}
	out := make([]shaper.Glyph, len(gs))
	for i, g := range gs {
		g.XAdvance *= scale
		g.YAdvance *= scale
		g.XOffset *= scale
		g.YOffset *= scale
		out[i] = g
	}
	return out
}
