// Package bridge 让分行与分页在独立的 worker 中执行。
//
// 调用方与 worker 之间只通过 JSON 消息通信，输入输出都按值复制。每个请求携带严格递增的
// requestId，同一逻辑通道上被新请求取代的旧结果直接丢弃，这是唯一的取消手段。
package bridge

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ByLCY/quire/layout"
)

// MessageType 是消息的类别。
type MessageType string

const (
	TypePing    MessageType = "PING"
	TypePong    MessageType = "PONG"
	TypeCompute MessageType = "COMPUTE_LAYOUT"
	TypeResult  MessageType = "LAYOUT_RESULT"
	TypeError   MessageType = "LAYOUT_ERROR"
)

// Message 是线上的消息信封，不同类别使用其中不同的字段。
type Message struct {
	Type      MessageType `json:"type"`
	RequestID uint64      `json:"requestId,omitempty"`

	// COMPUTE_LAYOUT
	Elements []layout.Element `json:"elements,omitempty"`
	Metrics  []layout.Metrics `json:"metrics,omitempty"`
	Options  *layout.Options  `json:"options,omitempty"`

	// LAYOUT_RESULT
	Rows               []layout.Row               `json:"rows,omitempty"`
	PageBoundaryStates []layout.PageBoundaryState `json:"pageBoundaryStates,omitempty"`
	PageCount          int                        `json:"pageCount,omitempty"`
	Complete           bool                       `json:"complete,omitempty"`
	NextIndex          int                        `json:"nextIndex,omitempty"`
	ComputeTimeMs      float64                    `json:"computeTimeMs,omitempty"`

	// LAYOUT_ERROR
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Encode 把消息编码为 JSON。
func Encode(m Message) ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("bridge: 编码 %s 失败: %w", m.Type, err)
	}
	return data, nil
}

// Decode 解析 JSON 消息，并校验消息类别。
func Decode(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("bridge: 解析消息失败: %w", err)
	}
	switch m.Type {
	case TypePing, TypePong, TypeCompute, TypeResult, TypeError:
		return m, nil
	case "":
		return Message{}, errors.New("bridge: 消息缺少 type")
	default:
		return Message{}, fmt.Errorf("bridge: 未知的消息类型 %q", m.Type)
	}
}

// resultMessage 把布局结果装入 LAYOUT_RESULT。
func resultMessage(id uint64, res *layout.Result, ms float64) Message {
	return Message{
		Type:               TypeResult,
		RequestID:          id,
		Rows:               res.Rows,
		PageBoundaryStates: res.PageBoundaryStates,
		PageCount:          res.PageCount,
		Complete:           res.Complete,
		NextIndex:          res.NextIndex,
		ComputeTimeMs:      ms,
	}
}

// result 从 LAYOUT_RESULT 还原布局结果。
func (m Message) result() *layout.Result {
	return &layout.Result{
		Rows:               m.Rows,
		PageBoundaryStates: m.PageBoundaryStates,
		PageCount:          m.PageCount,
		Complete:           m.Complete,
		NextIndex:          m.NextIndex,
	}
}

// errorMessage 把布局错误装入 LAYOUT_ERROR，保留错误类别以便调用方区分可推迟的错误。
func errorMessage(id uint64, err error) Message {
	m := Message{Type: TypeError, RequestID: id, Error: err.Error()}
	var le *layout.Error
	if errors.As(err, &le) {
		m.ErrorKind = string(le.Kind)
	}
	return m
}
