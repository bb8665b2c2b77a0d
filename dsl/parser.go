// Package dsl 解析 .quire 文档描述语言。
package dsl

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/participle/v2"
)

var parser = participle.MustBuild[Document](
	participle.Lexer(quireLexer),
	participle.Elide("Whitespace", "LineComment", "BlockComment", "HashComment"),
)

// Parse 从 r 读取并解析文档。
func Parse(r io.Reader) (*Document, error) {
	return parser.Parse("", r)
}

// ParseString 解析字符串形式的文档。
func ParseString(input string) (*Document, error) {
	return parser.ParseString("", input)
}

// ParseFile 解析文件，错误信息带文件名与行列号。
func ParseFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("无法打开 DSL 文件 %s: %w", path, err)
	}
	defer f.Close()
	return parser.Parse(path, f)
}
