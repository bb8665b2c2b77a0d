package document

import (
	"math"
	"testing"
)

func TestLengthConversions(t *testing.T) {
	for _, pt := range []float64{0, 0.001, 1, 12, 14.4, 72, 1000} {
		mm := Length{Value: pt, Unit: UnitPT}.To(UnitMM)
		back := Length{Value: mm, Unit: UnitMM}.To(UnitPT)
		if math.Abs(back-pt) > 1e-9 {
			t.Fatalf("pt→mm→pt 往返误差过大: in=%gpt back=%g", pt, back)
		}
	}
	if got := (Length{Value: 96}).To(UnitIN); got != 1 {
		t.Fatalf("96 无单位应为 1in: %g", got)
	}
	if s := (Length{Value: 12.5, Unit: UnitPT}).String(); s != "12.5pt" {
		t.Fatalf("String 应保留原始写法: %s", s)
	}
}

func TestParseLength(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1in", 96},
		{"2.54cm", 96},
		{"25.4mm", 96},
		{"72pt", 96},
		{"12PT", 16},
		{"40px", 40},
		{" 40 ", 40},
		{"-2px", -2},
	}
	for _, c := range cases {
		l, ok := ParseLength(c.in)
		if !ok {
			t.Fatalf("%q 应能解析", c.in)
		}
		if got := l.Px(); math.Abs(got-c.want) > 1e-9 {
			t.Fatalf("%q 转 px 期望 %g，实际 %g", c.in, c.want, got)
		}
	}
	for _, bad := range []string{"portrait", "", "mm", "inf", "NaNpx"} {
		if _, ok := ParseLength(bad); ok {
			t.Fatalf("%q 不应解析为长度", bad)
		}
	}
	if got := parseDimension("50%", 300); got != 150 {
		t.Fatalf("百分比应按基准换算: %g", got)
	}
	if got := parsePx("oops"); got != 0 {
		t.Fatalf("非法值应为 0: %g", got)
	}
}

func TestLineHeight(t *testing.T) {
	lh, ok := ParseLineHeight("1.5x")
	if !ok || lh.Factor != 1.5 {
		t.Fatalf("1.5x 应解析为倍数行高: %+v", lh)
	}
	if got := lh.Px(16); got != 24 {
		t.Fatalf("1.5x 行高期望 24px，实际 %g", got)
	}
	if got := lh.RowMargin(16, 1); got != 4 {
		t.Fatalf("行距倍数期望 4，实际 %g", got)
	}

	lh, ok = ParseLineHeight("18pt")
	if !ok || lh.Factor != 0 || lh.Absolute.Unit != UnitPT {
		t.Fatalf("18pt 应解析为绝对行高: %+v", lh)
	}
	if got := lh.Px(16); math.Abs(got-24) > 1e-9 {
		t.Fatalf("18pt 行高期望 24px，实际 %g", got)
	}
	if got := (LineHeight{Factor: 0.8}).RowMargin(16, 1); got != 0 {
		t.Fatalf("行高小于字号时行距应为 0: %g", got)
	}
	for _, bad := range []string{"abc", "0x", "-1x", "0pt"} {
		if _, ok := ParseLineHeight(bad); ok {
			t.Fatalf("%q 不应解析成功", bad)
		}
	}
}

func TestResolvePage(t *testing.T) {
	doc := build(t, "doc T v1 {\n page a5 landscape margin 10mm 20mm 30mm {\n \"x\"\n }\n}\n", BuildOptions{})
	p := doc.Page
	if math.Abs(p.Width-210*MmToPx) > 1e-9 || math.Abs(p.Height-148*MmToPx) > 1e-9 {
		t.Fatalf("横向 A5 尺寸错误: %+v", p)
	}
	want := Margin{10 * MmToPx, 20 * MmToPx, 30 * MmToPx, 20 * MmToPx}
	if p.Margin != want {
		t.Fatalf("三值页边距展开错误: %+v", p.Margin)
	}
	if d := build(t, "doc T v1 {\n page Letter {\n \"x\"\n }\n}\n", BuildOptions{}); d.Page.Margin.Left != DefaultMargin {
		t.Fatalf("默认页边距错误: %+v", d.Page.Margin)
	}
}

func TestParseColor(t *testing.T) {
	c, err := ParseColor("#0F62FE")
	if err != nil || c.Hex() != "#0f62fe" || c.A != 0xff {
		t.Fatalf("六位颜色解析错误: %+v %v", c, err)
	}
	if c, _ := ParseColor("#abc"); c.Hex() != "#aabbcc" {
		t.Fatalf("三位颜色应展开: %s", c.Hex())
	}
	if c, _ := ParseColor("#00000080"); c.A != 0x80 || c.Hex() != "#00000080" {
		t.Fatalf("透明度应保留: %+v", c)
	}
	for _, bad := range []string{"0f62fe", "#12345", "#gggggg"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("%q 应解析失败", bad)
		}
	}
}
