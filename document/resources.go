package document

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/fonts"
)

// FontResource 描述一个字族的各个字形文件。
type FontResource struct {
	Name       string `json:"name"`
	Src        string `json:"src"`
	Bold       string `json:"bold,omitempty"`
	Italic     string `json:"italic,omitempty"`
	BoldItalic string `json:"boldItalic,omitempty"`
}

// ImageResource 是可按名称引用的图片。
type ImageResource struct {
	Name   string  `json:"name"`
	Src    string  `json:"src"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	DPI    int     `json:"dpi,omitempty"`
}

// Style 是命名样式，Props 为继承展开后的属性。
type Style struct {
	Name    string            `json:"name"`
	Extends string            `json:"extends,omitempty"`
	Props   map[string]string `json:"props"`
}

// ResourceSet 汇总 resources 段中声明的资源。
type ResourceSet struct {
	Fonts  map[string]FontResource  `json:"fonts"`
	Colors map[string]Color         `json:"colors"`
	Images map[string]ImageResource `json:"images"`
	Styles map[string]Style         `json:"styles"`
}

// Meta 是文档元数据。
type Meta struct {
	Title    string   `json:"title,omitempty"`
	Author   string   `json:"author,omitempty"`
	Subject  string   `json:"subject,omitempty"`
	Creator  string   `json:"creator,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Color 是带透明度的 sRGB 颜色，A 为 255 表示不透明。
type Color struct {
	R, G, B, A uint8
}

// Hex 返回 #rrggbb，半透明时返回 #rrggbbaa。
func (c Color) Hex() string {
	if c.A == 0xff {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// MarshalText 让颜色在调试 JSON 中以十六进制出现。
func (c Color) MarshalText() ([]byte, error) { return []byte(c.Hex()), nil }

// ParseColor 解析 #rgb、#rrggbb 与 #rrggbbaa。
func ParseColor(value string) (Color, error) {
	hex, ok := strings.CutPrefix(strings.TrimSpace(value), "#")
	if !ok {
		return Color{}, fmt.Errorf("颜色值 %s 缺少 #", value)
	}
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return Color{}, fmt.Errorf("颜色值 %s 长度无效", value)
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("颜色值 %s 无法解析", value)
	}
	return Color{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// resourceLoader 逐条读取 resources 段中的命令。
type resourceLoader struct {
	set    ResourceSet
	styles map[string]Style // 继承展开前
}

func collectResources(doc *dsl.Document) (ResourceSet, error) {
	l := &resourceLoader{
		set: ResourceSet{
			Fonts:  map[string]FontResource{},
			Colors: map[string]Color{},
			Images: map[string]ImageResource{},
		},
		styles: map[string]Style{},
	}
	for _, block := range doc.Blocks("resources") {
		for _, cmd := range block.Commands() {
			if len(cmd.Args) == 0 {
				continue
			}
			if err := l.load(cmd); err != nil {
				return l.set, fmt.Errorf("第 %d 行 %s %s: %w", cmd.Pos.Line, cmd.Name, cmd.Args[0].Value, err)
			}
		}
	}
	styles, err := flattenStyles(l.styles)
	if err != nil {
		return l.set, err
	}
	l.set.Styles = styles
	return l.set, nil
}

func (l *resourceLoader) load(cmd *dsl.Command) error {
	name := cmd.Args[0].Value
	props := cmd.Block.Assignments()
	switch cmd.Name {
	case "font":
		l.set.Fonts[name] = FontResource{
			Name:       name,
			Src:        props["src"].Text(),
			Bold:       props["bold"].Text(),
			Italic:     props["italic"].Text(),
			BoldItalic: props["bold-italic"].Text(),
		}
	case "color":
		// color Accent = #0F62FE，值取最后一个参数。
		if len(cmd.Args) < 2 {
			return fmt.Errorf("缺少颜色值")
		}
		c, err := ParseColor(cmd.Args[len(cmd.Args)-1].Value)
		if err != nil {
			return err
		}
		l.set.Colors[name] = c
	case "image":
		img := ImageResource{
			Name:   name,
			Src:    props["src"].Text(),
			Width:  parsePx(props["width"].Text()),
			Height: parsePx(props["height"].Text()),
		}
		if v, err := strconv.Atoi(props["dpi"].Text()); err == nil {
			img.DPI = v
		}
		l.set.Images[name] = img
	case "style":
		st := Style{Name: name, Props: map[string]string{}}
		if len(cmd.Args) >= 3 && strings.EqualFold(cmd.Args[1].Value, "extends") {
			st.Extends = cmd.Args[2].Value
		}
		for key, v := range props {
			if val := v.Text(); val != "" {
				st.Props[key] = val
			}
		}
		l.styles[name] = st
	}
	return nil
}

// flattenStyles 沿 extends 链自根向下合并属性，子样式覆盖父样式。
func flattenStyles(styles map[string]Style) (map[string]Style, error) {
	out := make(map[string]Style, len(styles))
	for _, name := range slices.Sorted(maps.Keys(styles)) {
		chain := []Style{styles[name]}
		seen := map[string]bool{name: true}
		for parent := styles[name].Extends; parent != ""; {
			st, ok := styles[parent]
			if !ok {
				return nil, fmt.Errorf("style %s 继承的 %s 未定义", name, parent)
			}
			if seen[parent] {
				return nil, fmt.Errorf("style 继承存在循环：%s", name)
			}
			seen[parent] = true
			chain = append(chain, st)
			parent = st.Extends
		}
		props := map[string]string{}
		for i := len(chain) - 1; i >= 0; i-- {
			maps.Copy(props, chain[i].Props)
		}
		st := styles[name]
		st.Props = props
		out[name] = st
	}
	return out, nil
}

// attrs 以命名样式为底、行内属性覆盖，得到命令的最终属性。
func (r ResourceSet) attrs(style string, inline map[string]string) map[string]string {
	out := map[string]string{}
	if st, ok := r.Styles[style]; ok {
		maps.Copy(out, st.Props)
	}
	maps.Copy(out, inline)
	return out
}

// color 解析颜色资源名或字面值，无法识别时返回空串。
func (r ResourceSet) color(value string) string {
	if c, ok := r.Colors[value]; ok {
		return c.Hex()
	}
	if c, err := ParseColor(value); err == nil {
		return c.Hex()
	}
	return ""
}

// registerFonts 把字体资源登记到 reg，字族名即资源名。
func registerFonts(reg *fonts.Registry, res ResourceSet) {
	for _, f := range res.Fonts {
		for _, v := range []struct {
			bold, italic bool
			src          string
		}{
			{false, false, f.Src},
			{true, false, f.Bold},
			{false, true, f.Italic},
			{true, true, f.BoldItalic},
		} {
			if v.src != "" {
				reg.Register(f.Name, v.bold, v.italic, v.src)
			}
		}
	}
}

func collectMeta(doc *dsl.Document) Meta {
	meta := Meta{Creator: "Quire"}
	for _, block := range doc.Blocks("meta") {
		for key, v := range block.Assignments() {
			switch key {
			case "title":
				meta.Title = v.Text()
			case "author":
				meta.Author = v.Text()
			case "subject":
				meta.Subject = v.Text()
			case "creator":
				meta.Creator = v.Text()
			case "keywords":
				meta.Keywords = v.Texts()
			}
		}
	}
	return meta
}
