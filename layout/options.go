package layout

// Options 是一次布局计算的配置，字段与 Compute Bridge 报文中的 LayoutOptions 一一对应。
// 长度单位均为像素，除 Scale 外都是未缩放的值。
type Options struct {
	InnerWidth       float64 `json:"innerWidth"`
	StartX           float64 `json:"startX"`
	StartY           float64 `json:"startY"`
	PageHeight       float64 `json:"pageHeight"`
	MainOuterHeight  float64 `json:"mainOuterHeight"` // 页眉、页脚与上下边距占用的高度
	Scale            float64 `json:"scale"`
	IsPagingMode     bool    `json:"isPagingMode"`
	DefaultRowMargin float64 `json:"defaultRowMargin"`
	DefaultTabWidth  float64 `json:"defaultTabWidth"`
	TdPadding        float64 `json:"tdPadding,omitempty"`
	IsFromTable      bool    `json:"isFromTable,omitempty"`

	// 列表缩进
	ListBaseIndent  float64 `json:"listBaseIndent,omitempty"`
	ListLevelIndent float64 `json:"listLevelIndent,omitempty"`

	// 续排：从 StartFromIndex 开始，以 InitialLayoutState 作为起始状态。
	// InitialRows 为已知的前缀行，会原样拷贝到结果中。
	StartFromIndex     int                `json:"startFromIndex,omitempty"`
	InitialLayoutState *PageBoundaryState `json:"initialLayoutState,omitempty"`
	InitialRows        []Row              `json:"initialRows,omitempty"`

	// StopAtPage 非空时，在第 StopAtPage+1 页的第一行之前停止。
	StopAtPage *int `json:"stopAtPage,omitempty"`
}

// 默认取值，与文档主体的常用设置保持一致。
const (
	DefaultRowMargin       = 1.0
	DefaultTabWidth        = 32.0
	DefaultListBaseIndent  = 24.0
	DefaultListLevelIndent = 20.0
)

// DefaultOptions 返回一个 A4 竖版、96dpi、分页模式的配置。
func DefaultOptions() Options {
	return Options{
		InnerWidth:       794 - 2*68,
		PageHeight:       1123,
		MainOuterHeight:  2 * 68,
		Scale:            1,
		IsPagingMode:     true,
		DefaultRowMargin: DefaultRowMargin,
		DefaultTabWidth:  DefaultTabWidth,
		ListBaseIndent:   DefaultListBaseIndent,
		ListLevelIndent:  DefaultListLevelIndent,
	}
}

// withDefaults 补全零值字段，返回副本。
func (o Options) withDefaults() Options {
	if o.Scale == 0 {
		o.Scale = 1
	}
	if o.DefaultRowMargin == 0 {
		o.DefaultRowMargin = DefaultRowMargin
	}
	if o.DefaultTabWidth == 0 {
		o.DefaultTabWidth = DefaultTabWidth
	}
	return o
}

// availableWidth 返回行可用的缩放后宽度；表格单元格内需扣除两侧内边距。
func (o Options) availableWidth() float64 {
	w := o.InnerWidth * o.Scale
	if o.IsFromTable {
		w -= 2 * o.TdPadding * o.Scale
	}
	return w
}

// AvailableWidth 返回行可用的缩放后宽度，定位对齐时使用。
func (o Options) AvailableWidth() float64 { return o.withDefaults().availableWidth() }

// pageContentHeight 返回单页可用于正文的缩放后高度。
func (o Options) pageContentHeight() float64 {
	return (o.PageHeight - o.MainOuterHeight) * o.Scale
}
