package document

import (
	"fmt"
	"strings"

	"github.com/ByLCY/quire/dsl"
)

// DefaultMargin 是未写 margin 时四边的页边距。
const DefaultMargin = 20 * MmToPx

// Margin 是页边距，单位为像素。
type Margin struct {
	Top    float64 `json:"top"`
	Right  float64 `json:"right"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
}

// Page 是纸张几何，单位为像素。
type Page struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Margin Margin  `json:"margin"`
}

// ContentWidth 返回版心宽度。
func (p Page) ContentWidth() float64 { return p.Width - p.Margin.Left - p.Margin.Right }

// 纸张尺寸，单位毫米，纵向。
var paperSizes = map[string][2]float64{
	"A3":     {297, 420},
	"A4":     {210, 297},
	"A5":     {148, 210},
	"A6":     {105, 148},
	"B5":     {176, 250},
	"LETTER": {215.9, 279.4},
	"LEGAL":  {215.9, 355.6},
}

// resolvePage 解析 page A4 [portrait|landscape] [margin v1 [v2 [v3 [v4]]]]。
func resolvePage(spec dsl.PageSpec) (Page, error) {
	size, ok := paperSizes[strings.ToUpper(spec.Size)]
	if !ok {
		return Page{}, fmt.Errorf("暂不支持的纸张尺寸：%s", spec.Size)
	}
	page := Page{
		Width:  size[0] * MmToPx,
		Height: size[1] * MmToPx,
		Margin: Margin{DefaultMargin, DefaultMargin, DefaultMargin, DefaultMargin},
	}
	params := spec.Params
	for i := 0; i < len(params); i++ {
		switch strings.ToLower(params[i].Value) {
		case "landscape":
			page.Width, page.Height = page.Height, page.Width
		case "portrait":
		case "margin":
			var vals []float64
			for i+1 < len(params) && len(vals) < 4 {
				l, ok := ParseLength(params[i+1].Value)
				if !ok {
					break
				}
				vals = append(vals, l.Px())
				i++
			}
			if len(vals) == 0 {
				return Page{}, fmt.Errorf("margin 缺少数值")
			}
			page.Margin = boxShorthand(vals)
		default:
			return Page{}, fmt.Errorf("未知的页面参数：%s", params[i].Value)
		}
	}
	if page.ContentWidth() <= 0 {
		return Page{}, fmt.Errorf("页边距超出纸张宽度")
	}
	return page, nil
}

// boxShorthand 按 CSS 的四边简写展开 1 到 4 个值。
func boxShorthand(v []float64) Margin {
	switch len(v) {
	case 1:
		return Margin{v[0], v[0], v[0], v[0]}
	case 2:
		return Margin{v[0], v[1], v[0], v[1]}
	case 3:
		return Margin{v[0], v[1], v[2], v[1]}
	default:
		return Margin{v[0], v[1], v[2], v[3]}
	}
}
