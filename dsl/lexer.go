package dsl

import (
	"fmt"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var quireLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Whitespace", Pattern: `[ \t\r]+`},
	{Name: "Newline", Pattern: `\n+`},
	{Name: "BlockComment", Pattern: `/\*[^*]*\*+(?:[^/*][^*]*\*+)*/`},
	{Name: "LineComment", Pattern: `//[^\n]*`},
	{Name: "Color", Pattern: `#(?:[0-9A-Fa-f]{8}|[0-9A-Fa-f]{6}|[0-9A-Fa-f]{3})\b`},
	{Name: "HashComment", Pattern: `#[^\n]*`},
	// 数值可带长度单位，x 表示行高倍数。
	{Name: "Number", Pattern: `-?(?:\d+\.\d+|\d+)(?:pt|px|mm|cm|in|%|x)?`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_-]*`},
	{Name: "Symbol", Pattern: `[][(),.=:;]`},
	{Name: "LBrace", Pattern: `{`},
	{Name: "RBrace", Pattern: `}`},
})

var (
	tokenKinds = func() map[lexer.TokenType]string {
		out := map[lexer.TokenType]string{}
		for name, tt := range quireLexer.Symbols() {
			out[tt] = name
		}
		return out
	}()
	newlineToken = tokenType("Newline")
	lbraceToken  = tokenType("LBrace")
	rbraceToken  = tokenType("RBrace")
	symbolToken  = tokenType("Symbol")
	stringToken  = tokenType("String")
)

func tokenType(name string) lexer.TokenType {
	tt, ok := quireLexer.Symbols()[name]
	if !ok {
		panic(fmt.Sprintf("dsl: 未定义的记号 %s", name))
	}
	return tt
}

// Arg 是命令名之后的一个参数记号。Type 为记号类别（Ident、Number、String、Color、Symbol），
// String 类参数的 Value 已去掉引号。
type Arg struct {
	Type  string         `json:"type"`
	Value string         `json:"value"`
	Raw   string         `json:"raw"`
	Pos   lexer.Position `json:"-"`
}

// Parse 实现 participle.Parseable：在换行、花括号或分号前逐个吞入记号。
func (a *Arg) Parse(lex *lexer.PeekingLexer) error {
	tok := lex.Peek()
	if endOfArgs(tok) {
		return participle.NextMatch
	}
	tok = lex.Next()
	kind, ok := tokenKinds[tok.Type]
	if !ok {
		kind = fmt.Sprintf("#%d", tok.Type)
	}
	val := tok.Value
	if tok.Type == stringToken {
		s, err := strconv.Unquote(tok.Value)
		if err != nil {
			return participle.Errorf(tok.Pos, "字符串 %s 无效: %v", tok.Value, err)
		}
		val = s
	}
	*a = Arg{Type: kind, Value: val, Raw: tok.Value, Pos: tok.Pos}
	return nil
}

// IsIdent 报告参数是否为裸标识符。
func (a *Arg) IsIdent() bool { return a != nil && a.Type == "Ident" }

func endOfArgs(tok *lexer.Token) bool {
	if tok == nil || tok.EOF() {
		return true
	}
	switch tok.Type {
	case newlineToken, lbraceToken, rbraceToken:
		return true
	case symbolToken:
		return tok.Value == ";"
	}
	return false
}

// StringLiteral 在捕获时按 Go 字符串规则去掉引号并处理转义。
type StringLiteral string

// Capture 实现 participle.Capture。
func (s *StringLiteral) Capture(values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("dsl: 字符串缺少内容")
	}
	val, err := strconv.Unquote(values[0])
	if err != nil {
		return err
	}
	*s = StringLiteral(val)
	return nil
}
