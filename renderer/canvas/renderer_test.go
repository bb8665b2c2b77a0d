package canvasrenderer

import (
	"context"
	"image"
	"math"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/tdewolff/canvas"

	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
	"github.com/ByLCY/quire/shaper"
)

func regularID() string { return fonts.ID(fonts.DefaultFamily, false, false) }

func TestMeasureTextUsesFallbackBeforeLoad(t *testing.T) {
	reg := fonts.NewRegistry("", nil)
	r := NewRenderer(reg)

	before, err := r.MeasureText("hello", regularID(), 16)
	if err != nil {
		t.Fatalf("measure error: %v", err)
	}
	if before.Width <= 0 || before.Ascent <= 0 || before.Descent <= 0 {
		t.Fatalf("fallback metrics should be positive: %+v", before)
	}
	if before.Height != before.Ascent+before.Descent {
		t.Fatalf("height should equal ascent+descent: %+v", before)
	}

	if err := reg.Load(context.Background(), regularID()); err != nil {
		t.Fatalf("load builtin font: %v", err)
	}
	after, err := r.MeasureText("hello", regularID(), 16)
	if err != nil {
		t.Fatalf("measure error: %v", err)
	}
	// 回退字族与登记表中的字体同为 Latin Modern 常规体。
	if diff := after.Width - before.Width; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("same face should measure the same: before=%g after=%g", before.Width, after.Width)
	}
}

func TestMeasureTextScalesWithSize(t *testing.T) {
	r := NewRenderer(fonts.NewRegistry("", nil))
	small, _ := r.MeasureText("Quire", regularID(), 12)
	large, _ := r.MeasureText("Quire", regularID(), 24)
	if ratio := large.Width / small.Width; ratio < 1.99 || ratio > 2.01 {
		t.Fatalf("width should scale with font size, ratio=%g", ratio)
	}
	wide, _ := r.MeasureText("Quire Quire", regularID(), 12)
	if wide.Width <= small.Width {
		t.Fatalf("longer text should be wider: %g <= %g", wide.Width, small.Width)
	}
}

func TestParseFontStyle(t *testing.T) {
	cases := map[string]canvas.FontStyle{
		"Body":                   canvas.FontRegular,
		"Body-bold":              canvas.FontBold,
		"Body-italic":            canvas.FontRegular | canvas.FontItalic,
		"Body-bold-italic":       canvas.FontBold | canvas.FontItalic,
		"LatinModern-bold":       canvas.FontBold,
		"Notosans-boldface-wide": canvas.FontRegular,
	}
	for id, want := range cases {
		if got := parseFontStyle(id); got != want {
			t.Fatalf("%s: expected %v, got %v", id, want, got)
		}
	}
	if builtinName(canvas.FontBold|canvas.FontItalic) != "lmroman10bolditalic" || builtinName(canvas.FontRegular) != "lmroman10regular" {
		t.Fatalf("builtin fallback names mismatch")
	}
}

func TestShaperWithCanvasMeasurer(t *testing.T) {
	reg := fonts.NewRegistry("", nil)
	r := NewRenderer(reg)
	s, err := shaper.New(shaper.Config{Registry: reg, Basic: r})
	if err != nil {
		t.Fatalf("new shaper: %v", err)
	}
	els := []layout.Element{
		{Index: 0, Kind: layout.KindText, Value: "A", Style: layout.Style{Size: 16}},
		{Index: 1, Kind: layout.KindText, Value: "B", Style: layout.Style{Size: 16}},
	}
	ms, err := s.Precompute(els).MeasureAll()
	if err != nil {
		t.Fatalf("measure all: %v", err)
	}
	want, _ := r.MeasureText("A", regularID(), 16)
	if ms[0].Width != want.Width {
		t.Fatalf("shaper should fall back to canvas measurer: %+v vs %+v", ms[0], want)
	}
}

func TestPainterDrawsPages(t *testing.T) {
	reg := fonts.NewRegistry("", nil)
	r := NewRenderer(reg)
	p := NewPainter(r, 794, 1123)

	runs := []renderer.GlyphRun{
		{PageNo: 0, X: 20, Baseline: 40, FontID: regularID(), Size: 16, Text: "Hi"},
		{PageNo: 1, X: 20, Baseline: 40, FontID: fonts.ID(fonts.DefaultFamily, true, false), Size: 16, Color: "#0f62fe", Text: "Bold"},
		{PageNo: 1, X: 60, Baseline: 40, FontID: regularID(), Size: 16},
	}
	for _, run := range runs {
		if err := p.RenderGlyphs(run); err != nil {
			t.Fatalf("render glyphs: %v", err)
		}
	}
	if p.Count() != 2 {
		t.Fatalf("empty runs should be skipped, count=%d", p.Count())
	}

	dir := t.TempDir()
	path := filepath.Join(dir, "dot.png")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 8, 4))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	f.Close()
	if err := p.DrawImage(renderer.Box{PageNo: 1, X: 10, Y: 10, Width: 80, Height: 40}, path); err != nil {
		t.Fatalf("draw image: %v", err)
	}
	if err := p.DrawImage(renderer.Box{Width: 10}, filepath.Join(dir, "missing.png")); err == nil {
		t.Fatalf("missing image should fail")
	}
	p.DrawTableGrid(renderer.Box{PageNo: 0, X: 20, Y: 60}, []float64{100, 200}, []float64{24, 24})

	if got := len(p.Pages()); got != 2 {
		t.Fatalf("expected 2 pages, got %d", got)
	}
	if p.Count() != 4 {
		t.Fatalf("unexpected draw count %d", p.Count())
	}
}

func TestPainterUsesMeasuredGlyphs(t *testing.T) {
	r := NewRenderer(fonts.NewRegistry("", nil))
	face, err := r.fontFace(regularID(), 16*pxToPt, canvas.Black)
	if err != nil {
		t.Fatalf("font face: %v", err)
	}
	h := uint32(face.Font.GlyphIndex('H'))
	single, err := glyphPath(face, []shaper.Glyph{{GlyphID: h, XAdvance: 40}})
	if err != nil {
		t.Fatalf("glyph path: %v", err)
	}
	double, err := glyphPath(face, []shaper.Glyph{{GlyphID: h, XAdvance: 40}, {GlyphID: h, XAdvance: 40}})
	if err != nil {
		t.Fatalf("glyph path: %v", err)
	}
	sb, db := single.Bounds(), double.Bounds()
	if diff := (db.X1 - db.X0) - (sb.X1 - sb.X0); math.Abs(diff-40*pxToMm) > 1e-6 {
		t.Fatalf("second glyph should sit one measured advance later, diff=%g", diff)
	}
	// 页面坐标 y 轴向下，大写字母位于基线上方。
	if sb.Y0 >= 0 || sb.Y1 > 1e-6 {
		t.Fatalf("glyph should be above the baseline: %+v", sb)
	}

	p := NewPainter(r, 794, 1123)
	run := renderer.GlyphRun{X: 20, Baseline: 40, FontID: regularID(), Size: 16, Glyphs: []shaper.Glyph{{GlyphID: h, XAdvance: 12}}}
	if err := p.RenderGlyphs(run); err != nil {
		t.Fatalf("render glyphs: %v", err)
	}
	if p.Count() != 1 || len(p.Pages()) != 1 {
		t.Fatalf("glyph-only run should be drawn, count=%d", p.Count())
	}
}
