package fonts

import (
	"fmt"
	"strings"

	"github.com/go-fonts/latin-modern/lmroman10bold"
	"github.com/go-fonts/latin-modern/lmroman10bolditalic"
	"github.com/go-fonts/latin-modern/lmroman10italic"
	"github.com/go-fonts/latin-modern/lmroman10regular"
)

// BuiltinPrefix 标记内置字体来源，例如 "builtin:lmroman10regular"。
const BuiltinPrefix = "builtin:"

// DefaultFamily 是内置回退字体的字族名。
const DefaultFamily = "LatinModern"

var builtin = map[string][]byte{
	"lmroman10regular":    lmroman10regular.TTF,
	"lmroman10bold":       lmroman10bold.TTF,
	"lmroman10italic":     lmroman10italic.TTF,
	"lmroman10bolditalic": lmroman10bolditalic.TTF,
}

// builtinSource 返回内置字族某一字形变体的来源字符串。
func builtinSource(bold, italic bool) string {
	switch {
	case bold && italic:
		return BuiltinPrefix + "lmroman10bolditalic"
	case bold:
		return BuiltinPrefix + "lmroman10bold"
	case italic:
		return BuiltinPrefix + "lmroman10italic"
	default:
		return BuiltinPrefix + "lmroman10regular"
	}
}

// Load 返回内置字体的字节数据，src 可写为 "builtin:lmroman10regular" 或直接 "lmroman10regular"。
// "builtin:lmroman" 视为常规体。
func Load(src string) ([]byte, error) {
	name := strings.TrimPrefix(src, BuiltinPrefix)
	if name == "lmroman" {
		name = "lmroman10regular"
	}
	data, ok := builtin[name]
	if !ok {
		return nil, fmt.Errorf("读取内置字体 %s 失败: %w", src, ErrUnknownFont)
	}
	return data, nil
}
