// Package binding 把文本中的 ${path} 占位符绑定到 JSON 数据。
package binding

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{([^}]*)\}`)

// Binder 替换占位符，并记录无法解析的路径。零值不可用，请用 New。
type Binder struct {
	data    any
	missing []string
	seen    map[string]bool
}

// New 创建绑定到 data 的 Binder。data 通常来自 json.Unmarshal。
func New(data any) *Binder {
	return &Binder{data: data, seen: map[string]bool{}}
}

// Expand 替换 text 中的占位符。data 为 nil 或路径不存在时保留原占位符。
func (b *Binder) Expand(text string) string {
	if b.data == nil || !strings.Contains(text, "${") {
		return text
	}
	return placeholder.ReplaceAllStringFunc(text, func(match string) string {
		path := strings.TrimSpace(match[2 : len(match)-1])
		if path == "" {
			return match
		}
		if v, ok := Lookup(b.data, path); ok {
			return Format(v)
		}
		if !b.seen[path] {
			b.seen[path] = true
			b.missing = append(b.missing, path)
		}
		return match
	})
}

// Missing 返回展开过程中未能解析的路径，按首次出现的顺序。
func (b *Binder) Missing() []string { return b.missing }

// Interpolate 是 New(data).Expand(text) 的简写。
func Interpolate(text string, data any) string {
	return New(data).Expand(text)
}

// Placeholders 返回 text 中出现的全部路径。
func Placeholders(text string) []string {
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(text, -1) {
		if p := strings.TrimSpace(m[1]); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Lookup 按 a.b[0].c 形式的路径取值。map 需以字符串为键，下标作用于切片与数组。
func Lookup(data any, path string) (any, bool) {
	steps, ok := splitPath(path)
	if !ok {
		return nil, false
	}
	cur := data
	for _, st := range steps {
		if st.key != "" {
			if cur, ok = field(cur, st.key); !ok {
				return nil, false
			}
			continue
		}
		if cur, ok = index(cur, st.index); !ok {
			return nil, false
		}
	}
	return cur, true
}

type step struct {
	key   string
	index int
}

func splitPath(path string) ([]step, bool) {
	var steps []step
	for _, part := range strings.Split(path, ".") {
		name, rest, _ := strings.Cut(part, "[")
		if name != "" {
			steps = append(steps, step{key: name})
		} else if rest == "" {
			return nil, false
		}
		for rest != "" {
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, false
			}
			i, err := strconv.Atoi(rest[:end])
			if err != nil {
				return nil, false
			}
			steps = append(steps, step{index: i})
			rest = strings.TrimPrefix(rest[end+1:], "[")
		}
	}
	return steps, len(steps) > 0
}

func field(cur any, key string) (any, bool) {
	if m, ok := cur.(map[string]any); ok {
		v, ok := m[key]
		return v, ok
	}
	rv := reflect.ValueOf(cur)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	v := rv.MapIndex(reflect.ValueOf(key).Convert(rv.Type().Key()))
	if !v.IsValid() {
		return nil, false
	}
	return v.Interface(), true
}

func index(cur any, i int) (any, bool) {
	if s, ok := cur.([]any); ok {
		if i < 0 || i >= len(s) {
			return nil, false
		}
		return s[i], true
	}
	rv := reflect.ValueOf(cur)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if i < 0 || i >= rv.Len() {
		return nil, false
	}
	return rv.Index(i).Interface(), true
}

// Format 把取到的值转成文本。整数值的浮点数不带小数部分，nil 为空串。
func Format(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case interface{ String() string }:
		return x.String()
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		parts := make([]string, rv.Len())
		for i := range parts {
			parts[i] = Format(rv.Index(i).Interface())
		}
		return strings.Join(parts, ", ")
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	}
	return fmt.Sprint(v)
}
