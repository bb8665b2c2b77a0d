package layout

import (
	"errors"
	"fmt"
)

// ErrorKind 区分布局错误的类别。
type ErrorKind string

const (
	// KindInput 表示输入不合法，本次计算不返回任何行。
	KindInput ErrorKind = "input"
	// KindNotReady 表示续排状态与当前输入不匹配，调用方应推迟或改为全量计算。
	KindNotReady ErrorKind = "notReady"
)

// ErrStaleResume 在续排状态过期时返回，可用 errors.Is 判断。
var ErrStaleResume = errors.New("续排状态已过期")

// Error 是布局核心返回的结构化错误。Index 为出错元素下标，-1 表示与具体元素无关。
type Error struct {
	Kind  ErrorKind
	Op    string
	Index int
	Err   error
}

func (e *Error) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("layout %s: 元素 %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("layout %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func inputError(op string, index int, format string, args ...any) error {
	return &Error{Kind: KindInput, Op: op, Index: index, Err: fmt.Errorf(format, args...)}
}

func staleError(op string, format string, args ...any) error {
	return &Error{Kind: KindNotReady, Op: op, Index: -1, Err: fmt.Errorf("%w: "+format, append([]any{ErrStaleResume}, args...)...)}
}

// IsNotReady 报告 err 是否为可推迟处理的续排错误。
func IsNotReady(err error) bool {
	var le *Error
	return errors.As(err, &le) && le.Kind == KindNotReady
}
