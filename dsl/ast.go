package dsl

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Document 是 .quire 文件的根节点：doc 名称、版本与若干段落。
type Document struct {
	Pos      lexer.Position `parser:"" json:"-"`
	Name     string         `parser:"Newline* 'doc' @Ident"`
	Version  string         `parser:"@Ident"`
	Sections []*Section     `parser:"'{' Newline* ( @@ Newline* )* '}' Newline*"`
}

// Section 是顶层段落，三者取其一。
type Section struct {
	Meta      *MetaSection      `parser:"  @@"`
	Resources *ResourcesSection `parser:"| @@"`
	Page      *PageSection      `parser:"| @@"`
}

// Kind 返回段落类别名。
func (s *Section) Kind() string {
	switch {
	case s == nil:
		return "unknown"
	case s.Meta != nil:
		return "meta"
	case s.Resources != nil:
		return "resources"
	case s.Page != nil:
		return "page"
	}
	return "unknown"
}

type MetaSection struct {
	Block *Block `parser:"'meta' @@"`
}

type ResourcesSection struct {
	Block *Block `parser:"'resources' @@"`
}

// PageSection 是 page 段落：纸张规格与页面内容。
type PageSection struct {
	Spec  PageSpec `parser:"'page' @@"`
	Block *Block   `parser:"@@"`
}

// PageSpec 保存纸张名与其后的参数，例如 portrait、margin 18mm。
type PageSpec struct {
	Size   string `parser:"@Ident"`
	Params []*Arg `parser:"@@*"`
}

// Block 是花括号包围的语句列表，语句以换行或分号分隔。
type Block struct {
	Statements []*Statement `parser:"'{' Newline* ( @@ ( ';' | Newline )* )* '}'"`
}

// Commands 返回块中的命令语句，跳过赋值与文本。
func (b *Block) Commands() []*Command {
	if b == nil {
		return nil
	}
	var out []*Command
	for _, st := range b.Statements {
		if st.Command != nil {
			out = append(out, st.Command)
		}
	}
	return out
}

// Assignments 把块中的 key: value 语句收集为小写键的表。
func (b *Block) Assignments() map[string]*Value {
	out := map[string]*Value{}
	if b == nil {
		return out
	}
	for _, st := range b.Statements {
		if st.Assignment != nil {
			out[strings.ToLower(st.Assignment.Key)] = st.Assignment.Value
		}
	}
	return out
}

type Statement struct {
	Assignment *Assignment  `parser:"  @@"`
	Command    *Command     `parser:"| @@"`
	Text       *TextLiteral `parser:"| @@"`
}

// Assignment 是 key: value 形式的属性。
type Assignment struct {
	Key   string `parser:"@Ident"`
	Value *Value `parser:"':' Newline* @@"`
}

// Command 是排版命令：名称、参数与可选的内容块。
type Command struct {
	Pos   lexer.Position `parser:"" json:"-"`
	Name  string         `parser:"@Ident"`
	Args  []*Arg         `parser:"@@*"`
	Block *Block         `parser:"( Newline* @@ )?"`
}

// Attrs 把参数按 key value 成对解析。参数个数为奇数且首个参数是标识符时，
// 首个参数作为名称返回（样式名、字段名等），否则 name 为空。落单的末尾参数被忽略。
func (c *Command) Attrs() (name string, attrs map[string]string) {
	attrs = map[string]string{}
	if c == nil {
		return "", attrs
	}
	args := c.Args
	if len(args)%2 == 1 && args[0].IsIdent() {
		name = args[0].Value
		args = args[1:]
	}
	for i := 0; i+1 < len(args); i += 2 {
		attrs[args[i].Value] = args[i+1].Value
	}
	return name, attrs
}

// Pairs 与 Attrs 相同，但不识别首个名称参数。
func (c *Command) Pairs() map[string]string {
	attrs := map[string]string{}
	if c == nil {
		return attrs
	}
	for i := 0; i+1 < len(c.Args); i += 2 {
		attrs[c.Args[i].Value] = c.Args[i+1].Value
	}
	return attrs
}

type TextLiteral struct {
	Value StringLiteral `parser:"@String"`
}

// Value 是属性值。
type Value struct {
	String *StringLiteral `parser:"  @String"`
	Number *string        `parser:"| @Number"`
	Color  *string        `parser:"| @Color"`
	Ident  *string        `parser:"| @Ident"`
	Array  *ArrayValue    `parser:"| @@"`
	Object *InlineObject  `parser:"| @@"`
}

// Text 返回标量值的文本形式，数组与对象返回空串。
func (v *Value) Text() string {
	switch {
	case v == nil:
		return ""
	case v.String != nil:
		return string(*v.String)
	case v.Number != nil:
		return *v.Number
	case v.Color != nil:
		return *v.Color
	case v.Ident != nil:
		return *v.Ident
	}
	return ""
}

// Texts 返回数组中非空的标量值；标量本身视为单元素数组。
func (v *Value) Texts() []string {
	if v == nil {
		return nil
	}
	if v.Array == nil {
		if s := v.Text(); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(v.Array.Values))
	for _, item := range v.Array.Values {
		if s := item.Text(); s != "" {
			out = append(out, s)
		}
	}
	return out
}

type ArrayValue struct {
	Values []*Value `parser:"'[' Newline* ( @@ ( (',' | ';' | Newline+) Newline* @@ )* )? Newline* ']'"`
}

type InlineObject struct {
	Entries []*Assignment `parser:"'{' Newline* ( @@ Newline* ( (';' | ',' | Newline+) Newline* @@ Newline* )* )? Newline* '}'"`
}

// FirstPage 返回文档中的第一个 page 段落。
func (d *Document) FirstPage() *PageSection {
	if d == nil {
		return nil
	}
	for _, s := range d.Sections {
		if s.Page != nil {
			return s.Page
		}
	}
	return nil
}

// Blocks 返回指定类别段落的内容块，按出现顺序。
func (d *Document) Blocks(kind string) []*Block {
	if d == nil {
		return nil
	}
	var out []*Block
	for _, s := range d.Sections {
		switch {
		case kind == "meta" && s.Meta != nil:
			out = append(out, s.Meta.Block)
		case kind == "resources" && s.Resources != nil:
			out = append(out, s.Resources.Block)
		case kind == "page" && s.Page != nil:
			out = append(out, s.Page.Block)
		}
	}
	return out
}
