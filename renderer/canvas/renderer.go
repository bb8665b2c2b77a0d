package canvasrenderer

import (
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"strings"
	"sync"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/font"

	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
	"github.com/ByLCY/quire/shaper"
)

const tableBorderWidth = 0.2

// 布局使用 96dpi 像素，canvas 使用毫米与 pt。
const (
	pxToMm = 25.4 / 96
	pxToPt = 0.75
)

// Renderer 通过 github.com/tdewolff/canvas 提供基础测量，并为 Painter 提供字体。
// 字体数据来自登记表；字体尚未加载时使用内置字族。
type Renderer struct {
	reg *fonts.Registry

	fontMu         sync.Mutex
	fontFamilies   map[string]*fontFamilyEntry
	fallbackFamily map[canvas.FontStyle]*canvas.FontFamily
}

var (
	_ shaper.BasicMeasurer = (*Renderer)(nil)
	_ renderer.Painter     = (*Painter)(nil)
)

type fontFamilyEntry struct {
	family *canvas.FontFamily
	style  canvas.FontStyle
}

// NewRenderer 创建以 reg 为字体来源的 Renderer。
func NewRenderer(reg *fonts.Registry) *Renderer {
	return &Renderer{
		reg:            reg,
		fontFamilies:   map[string]*fontFamilyEntry{},
		fallbackFamily: map[canvas.FontStyle]*canvas.FontFamily{},
	}
}

// MeasureText 实现 shaper.BasicMeasurer。size 与返回值均为像素。
func (r *Renderer) MeasureText(text, fontID string, size float64) (layout.Metrics, error) {
	face, err := r.fontFace(fontID, size*pxToPt, canvas.Black)
	if err != nil {
		return layout.Metrics{}, err
	}
	fm := face.Metrics()
	ascent := fm.Ascent / pxToMm
	descent := math.Abs(fm.Descent) / pxToMm
	return layout.Metrics{
		Width:   face.TextWidth(text) / pxToMm,
		Height:  ascent + descent,
		Ascent:  ascent,
		Descent: descent,
	}, nil
}

func (r *Renderer) fontFace(fontID string, sizePt float64, col color.Color) (*canvas.FontFace, error) {
	family, style, err := r.ensureFontFamily(fontID)
	if err != nil {
		return nil, err
	}
	return family.Face(sizePt, col, style, canvas.FontNormal), nil
}

// ensureFontFamily 返回字体 id 对应的字族。只缓存来自登记表的字族，
// 回退字族不占用 id 的缓存位，字体加载完成后即可替换。
func (r *Renderer) ensureFontFamily(fontID string) (*canvas.FontFamily, canvas.FontStyle, error) {
	r.fontMu.Lock()
	defer r.fontMu.Unlock()

	if entry, ok := r.fontFamilies[fontID]; ok {
		return entry.family, entry.style, nil
	}

	style := parseFontStyle(fontID)
	if r.reg != nil {
		if data, err := r.reg.Data(fontID); err == nil {
			family := canvas.NewFontFamily(fontID)
			if err := family.LoadFont(data, 0, style); err != nil {
				return nil, canvas.FontRegular, fmt.Errorf("加载字体 %s 失败: %w", fontID, err)
			}
			r.fontFamilies[fontID] = &fontFamilyEntry{family: family, style: style}
			return family, style, nil
		}
	}
	family, err := r.fallback(style)
	if err != nil {
		return nil, canvas.FontRegular, err
	}
	return family, style, nil
}

func (r *Renderer) fallback(style canvas.FontStyle) (*canvas.FontFamily, error) {
	if family, ok := r.fallbackFamily[style]; ok {
		return family, nil
	}
	data, err := fonts.Load(builtinName(style))
	if err != nil {
		return nil, err
	}
	family := canvas.NewFontFamily("quire-fallback")
	if err := family.LoadFont(data, 0, style); err != nil {
		return nil, err
	}
	r.fallbackFamily[style] = family
	return family, nil
}

func builtinName(style canvas.FontStyle) string {
	italic := style&canvas.FontItalic != 0
	bold := style&^canvas.FontItalic == canvas.FontBold
	switch {
	case bold && italic:
		return "lmroman10bolditalic"
	case bold:
		return "lmroman10bold"
	case italic:
		return "lmroman10italic"
	default:
		return "lmroman10regular"
	}
}

// parseFontStyle 从字体 id 的变体后缀（-bold、-italic）得到 canvas 字形。
func parseFontStyle(fontID string) canvas.FontStyle {
	s := strings.ToLower(fontID)
	result := canvas.FontRegular
	if strings.HasSuffix(s, "-bold") || strings.Contains(s, "-bold-") {
		result = canvas.FontBold
	}
	if strings.HasSuffix(s, "-italic") {
		result |= canvas.FontItalic
	}
	return result
}

func parseColor(hex string) color.Color {
	if hex == "" {
		return canvas.Black
	}
	return canvas.Hex(hex)
}

// Painter 把绘制调用落到每页一个 canvas.Canvas 上，坐标原点在左上角。
type Painter struct {
	r             *Renderer
	width, height float64 // 毫米
	pages         map[int]*canvas.Canvas
	ctxs          map[int]*canvas.Context
	count         int
}

// NewPainter 创建 Painter，width 与 height 为页面像素尺寸。
func NewPainter(r *Renderer, width, height float64) *Painter {
	return &Painter{
		r:      r,
		width:  width * pxToMm,
		height: height * pxToMm,
		pages:  map[int]*canvas.Canvas{},
		ctxs:   map[int]*canvas.Context{},
	}
}

func (p *Painter) page(n int) *canvas.Context {
	if ctx, ok := p.ctxs[n]; ok {
		return ctx
	}
	c := canvas.New(p.width, p.height)
	ctx := canvas.NewContext(c)
	ctx.SetCoordSystem(canvas.CartesianIV)
	p.pages[n] = c
	p.ctxs[n] = ctx
	return ctx
}

// RenderGlyphs 实现 renderer.Painter。run 带有测量阶段的字形时按其字形号与步进绘制轮廓，
// 保证绘制宽度与排版宽度一致；否则由 canvas 自行整形 run.Text。起点取 run 的左端。
func (p *Painter) RenderGlyphs(run renderer.GlyphRun) error {
	if run.Text == "" && len(run.Glyphs) == 0 {
		return nil
	}
	face, err := p.r.fontFace(run.FontID, run.Size*pxToPt, parseColor(run.Color))
	if err != nil {
		return err
	}
	ctx := p.page(run.PageNo)
	if len(run.Glyphs) == 0 {
		ctx.DrawText(run.X*pxToMm, run.Baseline*pxToMm, canvas.NewTextLine(face, run.Text, canvas.Left))
		p.count++
		return nil
	}
	path, err := glyphPath(face, run.Glyphs)
	if err != nil {
		return fmt.Errorf("绘制字形 %s 失败: %w", run.FontID, err)
	}
	ctx.Push()
	ctx.SetFillColor(parseColor(run.Color))
	ctx.SetStrokeWidth(0)
	ctx.DrawPath(run.X*pxToMm, run.Baseline*pxToMm, path)
	ctx.Pop()
	p.count++
	return nil
}

// glyphPath 按字形号与像素步进生成轮廓，原点在基线左端。
// 字形轮廓 y 轴向上，结果翻转为页面坐标的 y 轴向下。
func glyphPath(face *canvas.FontFace, glyphs []shaper.Glyph) (*canvas.Path, error) {
	p := &canvas.Path{}
	ppem := face.PPEM(canvas.DefaultResolution)
	var x, y float64
	for _, g := range glyphs {
		err := face.Font.GlyphPath(p, uint16(g.GlyphID), ppem, (x+g.XOffset)*pxToMm, (y+g.YOffset)*pxToMm, face.MmPerEm, font.NoHinting)
		if err != nil {
			return nil, err
		}
		x += g.XAdvance
		y += g.YAdvance
	}
	return p.Transform(canvas.Identity.ReflectY()), nil
}

// DrawImage 把图片缩放到 b 的宽度绘制在 b 的左上角。
func (p *Painter) DrawImage(b renderer.Box, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("读取图片 %s 失败: %w", path, err)
	}
	img, _, err := image.Decode(file)
	file.Close()
	if err != nil {
		return fmt.Errorf("解码图片 %s 失败: %w", path, err)
	}
	width := b.Width * pxToMm
	if width <= 0 {
		return nil
	}
	dpmm := float64(img.Bounds().Dx()) / width
	if dpmm <= 0 {
		dpmm = 1
	}
	p.page(b.PageNo).DrawImage(b.X*pxToMm, b.Y*pxToMm, img, canvas.DPMM(dpmm))
	p.count++
	return nil
}

// DrawTableGrid 在 b 的位置按列宽与行高绘制单元格边框，尺寸为缩放后的像素。
func (p *Painter) DrawTableGrid(b renderer.Box, columns, rowHeights []float64) {
	ctx := p.page(b.PageNo)
	ctx.SetFillColor(color.RGBA{0, 0, 0, 0})
	ctx.SetStrokeColor(canvas.Black)
	ctx.SetStrokeWidth(tableBorderWidth)
	y := b.Y
	for _, h := range rowHeights {
		x := b.X
		for _, w := range columns {
			ctx.DrawPath(x*pxToMm, y*pxToMm, canvas.Rectangle(w*pxToMm, h*pxToMm))
			x += w
		}
		y += h
	}
	p.count++
}

// Pages 返回按页码排序的画布。
func (p *Painter) Pages() []*canvas.Canvas {
	n := 0
	for k := range p.pages {
		n = max(n, k+1)
	}
	out := make([]*canvas.Canvas, 0, n)
	for k := 0; k < n; k++ {
		if c, ok := p.pages[k]; ok {
			out = append(out, c)
		}
	}
	return out
}

// Count 返回已执行的绘制调用数。
func (p *Painter) Count() int { return p.count }
