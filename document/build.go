// Package document 把 DSL 文档展开为布局核心使用的元素流。
//
// 文本按字符拆成元素（组合附加符号随基字符），段落以换行元素开头；
// 表格与图片作为块元素，其尺寸在排版前由本包计算。
package document

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/ByLCY/quire/binding"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
)

// BuildOptions 配置 Build。
type BuildOptions struct {
	// Data 绑定到文本中的 ${path} 占位符。
	Data any
	// BaseDir 用于解析图片与字体的相对路径。
	BaseDir string
	// Registry 非空时登记 resources 中声明的字体。
	Registry *fonts.Registry
}

// Frame 是一段独立排版的内容：正文、页眉、页脚或表格单元格。
type Frame struct {
	Elements []layout.Element `json:"elements"`
	// Tables 与 Images 以元素下标为键。
	Tables map[int]*Table `json:"tables,omitempty"`
	Images map[int]string `json:"images,omitempty"`
	Height float64        `json:"height,omitempty"` // 显式高度，0 表示由内容决定
}

// Table 是表格块元素的内容。
type Table struct {
	Width   float64    `json:"width"`
	Columns []float64  `json:"columns"`
	Rows    [][]*Frame `json:"rows"`
}

// Document 是展开后的文档。
type Document struct {
	Name      string      `json:"name"`
	Meta      Meta        `json:"meta"`
	Page      Page        `json:"page"`
	Resources ResourceSet `json:"resources"`
	Body      *Frame      `json:"body"`
	Header    *Frame      `json:"header,omitempty"`
	Footer    *Frame      `json:"footer,omitempty"`
	// Unbound 是数据中找不到的占位符路径，对应文本保持原样。
	Unbound []string `json:"unbound,omitempty"`
}

// Build 根据 DSL AST 生成文档的元素流。
func Build(doc *dsl.Document, opts BuildOptions) (*Document, error) {
	if doc == nil {
		return nil, fmt.Errorf("文档为空")
	}
	res, err := collectResources(doc)
	if err != nil {
		return nil, err
	}
	if opts.Registry != nil {
		registerFonts(opts.Registry, res)
	}
	section := doc.FirstPage()
	if section == nil {
		return nil, fmt.Errorf("文档中缺少 page 段落")
	}
	if section.Block == nil {
		return nil, fmt.Errorf("page 段落缺少内容")
	}
	page, err := resolvePage(section.Spec)
	if err != nil {
		return nil, err
	}

	b := &builder{res: res, opts: opts, binder: binding.New(opts.Data)}
	out := &Document{
		Name:      doc.Name,
		Meta:      collectMeta(doc),
		Page:      page,
		Resources: res,
	}

	var body []*dsl.Statement
	for _, st := range section.Block.Statements {
		if st.Command == nil {
			body = append(body, st)
			continue
		}
		switch st.Command.Name {
		case "header", "footer":
			f, err := b.frame(st.Command.Block, page.ContentWidth())
			if err != nil {
				return nil, fmt.Errorf("%s: %w", st.Command.Name, err)
			}
			attrs := st.Command.Pairs()
			f.Height = parseDimension(attrs["height"], page.Height)
			if st.Command.Name == "header" {
				out.Header = f
			} else {
				out.Footer = f
			}
		default:
			body = append(body, st)
		}
	}
	out.Body, err = b.frame(&dsl.Block{Statements: body}, page.ContentWidth())
	if err != nil {
		return nil, err
	}
	out.Unbound = b.binder.Missing()
	return out, nil
}

type builder struct {
	res    ResourceSet
	opts   BuildOptions
	binder *binding.Binder

	lists    int
	controls int
}

// flow 是一个 Frame 的构建上下文。
type flow struct {
	frame *Frame
	width float64
}

func (f *flow) add(el layout.Element) int {
	el.Index = len(f.frame.Elements)
	f.frame.Elements = append(f.frame.Elements, el)
	return el.Index
}

// inline 是行内内容继承的属性。
type inline struct {
	style     layout.Style
	rowFlex   layout.RowFlex
	rowMargin float64
	list      *layout.ListInfo
}

func (b *builder) frame(block *dsl.Block, width float64) (*Frame, error) {
	f := &flow{frame: &Frame{Tables: map[int]*Table{}, Images: map[int]string{}}, width: width}
	if block != nil {
		if err := b.blocks(block, f); err != nil {
			return nil, err
		}
	}
	return f.frame, nil
}

// blocks 处理块级语句：段落、列表、表格、图片与分页符。
func (b *builder) blocks(block *dsl.Block, f *flow) error {
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			// 块级的裸字符串视为默认样式的段落。
			in := b.baseInline()
			f.add(b.lineBreak(in))
			b.text(string(stmt.Text.Value), in, f)
			continue
		}
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		var err error
		switch cmd.Name {
		case "p":
			err = b.paragraph(cmd, f)
		case "list":
			err = b.list(cmd, f)
		case "table":
			err = b.table(cmd, f)
		case "image":
			in := b.baseInline()
			f.add(b.lineBreak(in))
			err = b.image(cmd, in, f)
		case "pagebreak":
			f.add(layout.Element{Kind: layout.KindPageBreak, Style: b.baseInline().style})
		default:
			return fmt.Errorf("第 %d 行: 不支持的块级命令 %s", cmd.Pos.Line, cmd.Name)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) baseInline() inline {
	return inline{style: layout.Style{Font: "", Size: defSize}}
}

// apply 把属性叠加到继承的行内属性上。
func (b *builder) apply(in inline, attrs map[string]string) inline {
	if v := attrs["font"]; v != "" {
		in.style.Font = v
	}
	if v := attrs["size"]; v != "" {
		if px := parsePx(v); px > 0 {
			in.style.Size = px
		}
	}
	if v := attrs["bold"]; v != "" {
		in.style.Bold = v == "true"
	}
	if v := attrs["italic"]; v != "" {
		in.style.Italic = v == "true"
	}
	if v := attrs["color"]; v != "" {
		in.style.Color = b.res.color(v)
	}
	if v := attrs["align"]; v != "" {
		in.rowFlex = parseAlign(v)
	}
	if v := attrs["line-height"]; v != "" {
		if lh, ok := ParseLineHeight(v); ok {
			in.rowMargin = lh.RowMargin(in.style.Size, layout.DefaultRowMargin)
		}
	}
	return in
}

func parseAlign(v string) layout.RowFlex {
	switch strings.ToLower(v) {
	case "center", "middle":
		return layout.FlexCenter
	case "right", "end":
		return layout.FlexRight
	case "justify", "alignment":
		return layout.FlexAlignment
	default:
		return layout.FlexLeft
	}
}

func (b *builder) attrs(cmd *dsl.Command) map[string]string {
	style, attrs := cmd.Attrs()
	return b.res.attrs(style, attrs)
}

func (b *builder) lineBreak(in inline) layout.Element {
	return layout.Element{
		Kind:      layout.KindText,
		Value:     layout.LineBreak,
		Style:     in.style,
		RowFlex:   in.rowFlex,
		RowMargin: in.rowMargin,
		List:      in.list,
	}
}

func (b *builder) paragraph(cmd *dsl.Command, f *flow) error {
	in := b.apply(b.baseInline(), b.attrs(cmd))
	f.add(b.lineBreak(in))
	return b.inlines(cmd.Block, in, f)
}

// inlines 处理段落内的文本与行内命令。
func (b *builder) inlines(block *dsl.Block, in inline, f *flow) error {
	if block == nil {
		return nil
	}
	for _, stmt := range block.Statements {
		if stmt.Text != nil {
			b.text(string(stmt.Text.Value), in, f)
			continue
		}
		if stmt.Command == nil {
			continue
		}
		cmd := stmt.Command
		switch cmd.Name {
		case "span":
			if err := b.inlines(cmd.Block, b.apply(in, b.attrs(cmd)), f); err != nil {
				return err
			}
		case "br":
			f.add(b.lineBreak(in))
		case "tab":
			f.add(layout.Element{Kind: layout.KindTab, Style: in.style, List: in.list})
		case "checkbox":
			attrs := cmd.Pairs()
			checked := strconv.FormatBool(attrs["checked"] == "true")
			f.add(layout.Element{Kind: layout.KindCheckbox, Value: checked, Style: in.style, List: in.list})
		case "field":
			if err := b.field(cmd, in, f); err != nil {
				return err
			}
		case "image":
			if err := b.image(cmd, in, f); err != nil {
				return err
			}
		default:
			return fmt.Errorf("第 %d 行: 不支持的行内命令 %s", cmd.Pos.Line, cmd.Name)
		}
	}
	return nil
}

// text 把字符串拆成元素：\n 为换行，\t 为制表符，组合附加符号并入前一个字符。
func (b *builder) text(content string, in inline, f *flow) {
	content = b.binder.Expand(content)
	var cluster []rune
	flush := func() {
		if len(cluster) == 0 {
			return
		}
		f.add(layout.Element{Kind: layout.KindText, Value: string(cluster), Style: in.style, List: in.list})
		cluster = cluster[:0]
	}
	for _, r := range content {
		switch {
		case r == '\n':
			flush()
			f.add(b.lineBreak(in))
		case r == '\t':
			flush()
			f.add(layout.Element{Kind: layout.KindTab, Style: in.style, List: in.list})
		case len(cluster) > 0 && isCombining(r):
			cluster = append(cluster, r)
		default:
			flush()
			cluster = append(cluster, r)
		}
	}
	flush()
}

func isCombining(r rune) bool {
	return unicode.In(r, unicode.Mn, unicode.Me) || r == '\u200d'
}

// list 展开列表：每一项依次为换行、缩进制表符、列表标记与内容，全部携带列表信息。
func (b *builder) list(cmd *dsl.Command, f *flow) error {
	b.lists++
	id := fmt.Sprintf("list-%d", b.lists)
	attrs := b.attrs(cmd)
	ordered := attrs["type"] != "bullet"
	base := b.apply(b.baseInline(), attrs)

	var counters []int
	if cmd.Block == nil {
		return nil
	}
	for _, stmt := range cmd.Block.Statements {
		if stmt.Command == nil || stmt.Command.Name != "item" {
			continue
		}
		item := stmt.Command
		iattrs := b.attrs(item)
		level, _ := strconv.Atoi(iattrs["level"])
		if level < 0 {
			level = 0
		}
		indent, _ := strconv.Atoi(iattrs["indent"])

		if len(counters) > level+1 {
			counters = counters[:level+1]
		}
		for len(counters) < level+1 {
			counters = append(counters, 0)
		}
		for k := 0; k < level; k++ {
			if counters[k] == 0 {
				counters[k] = 1
			}
		}
		counters[level]++
		hierarchy := append([]int(nil), counters...)

		in := b.apply(base, iattrs)
		in.list = &layout.ListInfo{ListID: id, Level: level}
		f.add(b.lineBreak(in))
		for k := 0; k < indent; k++ {
			f.add(layout.Element{Kind: layout.KindTab, Style: in.style, List: in.list})
		}
		f.add(layout.Element{
			Kind:  layout.KindListMarker,
			Value: marker(ordered, hierarchy),
			Style: in.style,
			List:  &layout.ListInfo{ListID: id, Level: level, Hierarchy: hierarchy},
		})
		if err := b.inlines(item.Block, in, f); err != nil {
			return err
		}
	}
	return nil
}

var bullets = []string{"•", "◦", "▪"}

func marker(ordered bool, hierarchy []int) string {
	if !ordered {
		return bullets[(len(hierarchy)-1)%len(bullets)]
	}
	parts := make([]string, len(hierarchy))
	for i, n := range hierarchy {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ".") + "."
}

// field 展开控件：内容元素之后跟一个后缀元素，后缀按最小宽度补齐。
func (b *builder) field(cmd *dsl.Command, in inline, f *flow) error {
	b.controls++
	name, attrs := cmd.Attrs()
	if name == "" {
		name = "field"
	}
	id := fmt.Sprintf("%s#%d", name, b.controls)
	in = b.apply(in, attrs)
	minWidth := parseDimension(attrs["min-width"], f.width)

	start := len(f.frame.Elements)
	if err := b.inlines(cmd.Block, in, f); err != nil {
		return err
	}
	for i := start; i < len(f.frame.Elements); i++ {
		if f.frame.Elements[i].IsLineBreak() {
			continue
		}
		f.frame.Elements[i].Control = &layout.ControlInfo{ID: id, Role: layout.ControlValue}
	}
	postfix := attrs["postfix"]
	if postfix == "" {
		postfix = " "
	}
	f.add(layout.Element{
		Kind:    layout.KindText,
		Value:   postfix,
		Style:   in.style,
		List:    in.list,
		Control: &layout.ControlInfo{ID: id, Role: layout.ControlPostfix, MinWidth: minWidth},
	})
	return nil
}

// image 解析图片尺寸：显式宽高优先，只给一边时按原图比例补齐。
func (b *builder) image(cmd *dsl.Command, in inline, f *flow) error {
	name, attrs := cmd.Attrs()
	src := attrs["src"]
	var resImg ImageResource
	if r, ok := b.res.Images[name]; ok {
		resImg = r
		if src == "" {
			src = r.Src
		}
	}
	if src == "" {
		src = name
	}
	if src == "" {
		return fmt.Errorf("第 %d 行: image 缺少 src", cmd.Pos.Line)
	}
	path := src
	if !filepath.IsAbs(path) && b.opts.BaseDir != "" {
		path = filepath.Join(b.opts.BaseDir, path)
	}

	w := parseDimension(attrs["width"], f.width)
	h := parseDimension(attrs["height"], f.width)
	if w == 0 {
		w = resImg.Width
	}
	if h == 0 {
		h = resImg.Height
	}
	if w == 0 || h == 0 {
		nw, nh, err := imageSize(path, resImg.DPI)
		if err != nil {
			return fmt.Errorf("第 %d 行: %w", cmd.Pos.Line, err)
		}
		switch {
		case w == 0 && h == 0:
			w, h = nw, nh
		case w == 0:
			w = nw * h / nh
		default:
			h = nh * w / nw
		}
	}
	idx := f.add(layout.Element{Kind: layout.KindImage, Value: src, Width: &w, Height: h, Style: in.style, List: in.list})
	f.frame.Images[idx] = path
	return nil
}

// table 展开表格。列宽来自 widths（逗号分隔，支持百分比），否则平分表格宽度。
func (b *builder) table(cmd *dsl.Command, f *flow) error {
	attrs := cmd.Pairs()
	width := f.width
	if v := attrs["width"]; v != "" {
		if w := parseDimension(v, f.width); w > 0 {
			width = w
		}
	}
	t := &Table{Width: width}
	if cmd.Block != nil {
		for _, stmt := range cmd.Block.Statements {
			if stmt.Command == nil || stmt.Command.Name != "row" || stmt.Command.Block == nil {
				continue
			}
			var cells []*dsl.Command
			for _, cs := range stmt.Command.Block.Statements {
				if cs.Command != nil && cs.Command.Name == "cell" {
					cells = append(cells, cs.Command)
				}
			}
			if len(cells) == 0 {
				continue
			}
			if t.Columns == nil {
				t.Columns = columnWidths(attrs["widths"], len(cells), width)
			}
			if len(cells) != len(t.Columns) {
				return fmt.Errorf("第 %d 行: 表格行有 %d 个单元格，应为 %d 个", stmt.Command.Pos.Line, len(cells), len(t.Columns))
			}
			row := make([]*Frame, len(cells))
			for i, cell := range cells {
				cf, err := b.frame(cell.Block, t.Columns[i])
				if err != nil {
					return err
				}
				row[i] = cf
			}
			t.Rows = append(t.Rows, row)
		}
	}
	tw := t.Width
	idx := f.add(layout.Element{Kind: layout.KindTable, Width: &tw, Style: b.baseInline().style})
	f.frame.Tables[idx] = t
	return nil
}

func columnWidths(spec string, n int, total float64) []float64 {
	out := make([]float64, n)
	parts := strings.Split(spec, ",")
	if spec != "" && len(parts) == n {
		sum := 0.0
		for i, p := range parts {
			out[i] = parseDimension(strings.TrimSpace(p), total)
			sum += out[i]
		}
		if sum > 0 {
			return out
		}
	}
	for i := range out {
		out[i] = total / float64(n)
	}
	return out
}
