package layout

import "fmt"

// 该文件定义布局核心的输入元素与输出行/页边界状态，
// 同时供 Compute Bridge 的 JSON 报文与调试输出共用。

// ElementKind 区分元素种类。
type ElementKind string

const (
	KindText       ElementKind = "text"
	KindImage      ElementKind = "image"
	KindTab        ElementKind = "tab"
	KindPageBreak  ElementKind = "pageBreak"
	KindCheckbox   ElementKind = "checkbox"
	KindTable      ElementKind = "table"
	KindListMarker ElementKind = "listMarker"
)

// LineBreak 是表示强制换行的文本值，该元素总是开启新的一行。
const LineBreak = "\n"

// RowFlex 是行的水平对齐方式。
type RowFlex string

const (
	FlexLeft      RowFlex = "left"
	FlexCenter    RowFlex = "center"
	FlexRight     RowFlex = "right"
	FlexAlignment RowFlex = "alignment" // 两端对齐
)

// Style 描述元素的文字样式。Size 以像素为单位。
type Style struct {
	Font   string  `json:"font"`
	Size   float64 `json:"size"`
	Bold   bool    `json:"bold,omitempty"`
	Italic bool    `json:"italic,omitempty"`
	Color  string  `json:"color,omitempty"`
}

// Key 返回样式的稳定标识，用于测量缓存与 bidi 分段。
func (s Style) Key() string {
	return fmt.Sprintf("%s|%g|%t|%t|%s", s.Font, s.Size, s.Bold, s.Italic, s.Color)
}

// ListInfo 记录列表元素所属的列表与层级。
// Hierarchy 非空时由宿主给定编号路径，否则由分行器推算。
type ListInfo struct {
	ListID    string `json:"listId"`
	Level     int    `json:"level"`
	Hierarchy []int  `json:"hierarchy,omitempty"`
}

// ControlRole 标识元素在表单控件中的角色。
type ControlRole string

const (
	ControlValue   ControlRole = "value"
	ControlPostfix ControlRole = "postfix"
)

// ControlInfo 把元素挂到一个有最小宽度的控件上；
// 控件内容宽度不足 MinWidth 时，postfix 元素会被补足宽度。
type ControlInfo struct {
	ID       string      `json:"id"`
	Role     ControlRole `json:"role"`
	MinWidth float64     `json:"minWidth,omitempty"`
}

// Element 是一个内容原子：一段文本、一个行内对象或列表标记。
// 布局核心只读取元素，不会修改它。
type Element struct {
	Index     int          `json:"index"`
	Kind      ElementKind  `json:"kind"`
	Value     string       `json:"value,omitempty"`
	Style     Style        `json:"style"`
	Width     *float64     `json:"width,omitempty"`  // 自定义宽度（未缩放）
	Height    float64      `json:"height,omitempty"` // 块元素的高度（未缩放）
	List      *ListInfo    `json:"list,omitempty"`
	Control   *ControlInfo `json:"control,omitempty"`
	RowFlex   RowFlex      `json:"rowFlex,omitempty"`
	RowMargin float64      `json:"rowMargin,omitempty"` // 行距倍数，0 视为 1
	Hidden    bool         `json:"hidden,omitempty"`
}

// IsText 报告元素是否为普通文本（不含强制换行）。
func (e Element) IsText() bool { return e.Kind == KindText && e.Value != LineBreak }

// IsLineBreak 报告元素是否为强制换行。
func (e Element) IsLineBreak() bool { return e.Kind == KindText && e.Value == LineBreak }

// IsBlock 报告元素是否按不透明尺寸排版。
func (e Element) IsBlock() bool { return e.Kind == KindTable || e.Kind == KindImage }

// BidiText 返回参与双向分析的文本；非文本元素以 U+FFFC 代替。
func (e Element) BidiText() string {
	switch e.Kind {
	case KindText, KindListMarker:
		return e.Value
	case KindTab:
		return "\t"
	}
	return "￼"
}

// Metrics 是布局前附加到元素上的尺寸信息（未缩放）。
type Metrics struct {
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Ascent  float64 `json:"ascent"`
	Descent float64 `json:"descent"`
}

// Row 是分配到同一视觉行的一段连续元素。
type Row struct {
	Width            float64   `json:"width"`
	Height           float64   `json:"height"`
	Ascent           float64   `json:"ascent"`
	Descent          float64   `json:"descent"`
	StartIndex       int       `json:"startIndex"`
	RowIndex         int       `json:"rowIndex"`
	PageNo           int       `json:"pageNo"`
	IsPageBreak      bool      `json:"isPageBreak,omitempty"`
	IsRTL            bool      `json:"isRTL,omitempty"`
	IsBidiMixed      bool      `json:"isBidiMixed,omitempty"`
	IsList           bool      `json:"isList,omitempty"`
	IsListStart      bool      `json:"isListStart,omitempty"`
	ListID           string    `json:"listId,omitempty"`
	ListIndex        int       `json:"listIndex,omitempty"`
	ListLevel        int       `json:"listLevel,omitempty"`
	ListHierarchy    []int     `json:"listHierarchy,omitempty"`
	OffsetX          float64   `json:"offsetX,omitempty"`
	RowFlex          RowFlex   `json:"rowFlex,omitempty"`
	ElementIndices   []int     `json:"elementIndices"`
	Widths           []float64 `json:"widths"`
	IsWidthNotEnough bool      `json:"isWidthNotEnough,omitempty"`
}

// EndIndex 返回行内最后一个元素的下标，空行返回 StartIndex-1。
func (r Row) EndIndex() int {
	if len(r.ElementIndices) == 0 {
		return r.StartIndex - 1
	}
	return r.ElementIndices[len(r.ElementIndices)-1]
}

// ReservedEdge 返回列表缩进 OffsetX 所在的边："left" 或 RTL 行的 "right"。
func (r Row) ReservedEdge() string {
	if r.IsRTL {
		return "right"
	}
	return "left"
}

// PageBoundaryState 是在某个元素下标恢复分行所需的最小状态，
// 每页开始时生成一份，重新计算时整体替换而不会被修改。
type PageBoundaryState struct {
	PageNo           int     `json:"pageNo"`
	StartIndex       int     `json:"startIndex"`
	RowIndex         int     `json:"rowIndex"`
	ListID           string  `json:"listId,omitempty"`
	PrevListLevel    int     `json:"prevListLevel"`
	ListHierarchy    []int   `json:"listHierarchy,omitempty"`
	ListOffsetX      float64 `json:"listOffsetX,omitempty"`
	ControlID        string  `json:"controlId,omitempty"`
	ControlRealWidth float64 `json:"controlRealWidth"`
}

// Result 是一次布局计算的输出。
type Result struct {
	Rows               []Row               `json:"rows"`
	PageBoundaryStates []PageBoundaryState `json:"pageBoundaryStates"`
	PageCount          int                 `json:"pageCount"`
	// Complete 为 false 表示受 StopAtPage 限制提前停止，NextIndex 为剩余部分的起点。
	Complete  bool `json:"complete"`
	NextIndex int  `json:"nextIndex"`
}

func cloneInts(in []int) []int {
	if in == nil {
		return nil
	}
	return append([]int(nil), in...)
}
