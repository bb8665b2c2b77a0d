package shaper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"

	"github.com/ByLCY/quire/bidi"
	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
)

// DefaultCacheSize 是测量缓存的默认容量。
const DefaultCacheSize = 4096

// Config 配置 Shaper。Registry 必填，Engine 与 Basic 可以为空。
type Config struct {
	Registry  *fonts.Registry
	Engine    Engine
	Basic     BasicMeasurer
	CacheSize int
	Logger    *slog.Logger
}

// Shaper 是宿主持有的测量服务，缓存跨布局周期复用。
type Shaper struct {
	reg    *fonts.Registry
	engine Engine
	basic  BasicMeasurer
	cache  *lru.Cache
	logger *slog.Logger
}

// New 创建 Shaper。
func New(cfg Config) (*Shaper, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("shaper: 缺少字体登记表")
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("shaper: 创建缓存失败: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Shaper{
		reg:    cfg.Registry,
		engine: cfg.Engine,
		basic:  cfg.Basic,
		cache:  cache,
		logger: logger,
	}, nil
}

// BeginPass 标记新的布局周期开始；changed 表示内容或样式有变化，此时清空缓存。
func (s *Shaper) BeginPass(changed bool) {
	if changed {
		s.cache.Purge()
	}
}

// CacheLen 返回缓存中的条目数。
func (s *Shaper) CacheLen() int { return s.cache.Len() }

// member 是整形组中的一个元素，[start,end) 为其在组文本中的 rune 区间。
type member struct {
	index      int
	start, end int
}

// shapeGroup 是一段字体与字号相同、需要整体整形的连续元素。
type shapeGroup struct {
	fontID  string
	size    float64
	members []member
}

// shaped 记录某个元素从所在组中分得的宽度与字形。
type shaped struct {
	width   float64
	ascent  float64
	descent float64
	glyphs  []Glyph
}

// Pass 是一次布局周期的测量上下文，必须先由 Precompute 创建。Pass 不能并发使用。
type Pass struct {
	s        *Shaper
	elements []layout.Element
	shaped   map[int]shaped
	pending  map[string]bool
}

// Precompute 对 elements 分组整形，返回本周期的测量上下文。
func (s *Shaper) Precompute(elements []layout.Element) *Pass {
	p := &Pass{
		s:        s,
		elements: elements,
		shaped:   map[int]shaped{},
		pending:  map[string]bool{},
	}
	for _, g := range p.groups() {
		p.shapeGroup(g)
	}
	return p
}

func (p *Pass) fontID(st layout.Style) string {
	return p.s.reg.ResolveOrDefault(st.Font, st.Bold, st.Italic)
}

// groups 扫描元素并切分整形组。空白文本只能追加到已打开的组。
func (p *Pass) groups() []shapeGroup {
	var out []shapeGroup
	var cur *shapeGroup
	offset := 0
	closeGroup := func() {
		if cur != nil {
			out = append(out, *cur)
			cur = nil
		}
	}
	for i, el := range p.elements {
		if el.Hidden {
			continue
		}
		plain := el.IsText() && el.Width == nil
		switch {
		case plain && needsShaping(el.Value):
			id := p.fontID(el.Style)
			if cur == nil || cur.fontID != id || cur.size != el.Style.Size {
				closeGroup()
				cur = &shapeGroup{fontID: id, size: el.Style.Size}
				offset = 0
			}
		case plain && cur != nil && isBlank(el.Value):
		default:
			closeGroup()
			continue
		}
		n := len([]rune(el.Value))
		cur.members = append(cur.members, member{index: i, start: offset, end: offset + n})
		offset += n
	}
	closeGroup()
	return out
}

func isBlank(s string) bool {
	return s != "" && strings.TrimFunc(s, unicode.IsSpace) == ""
}

// shapeGroup 对一组元素整体整形，并把每个字形的宽度归到其 cluster 所在的元素。
func (p *Pass) shapeGroup(g shapeGroup) {
	if p.s.engine == nil {
		return
	}
	if !p.s.fontReady(g.fontID) {
		p.requestFont(g.fontID)
		return
	}
	var sb strings.Builder
	for _, m := range g.members {
		sb.WriteString(p.elements[m.index].Value)
	}
	text := sb.String()
	res, err := p.s.shape(text, g.fontID, g.size)
	if err != nil {
		p.s.logger.Debug("分组整形失败，退回逐个测量", "font", g.fontID, "err", err)
		return
	}

	parts := make([]shaped, len(g.members))
	k := 0
	for _, gl := range res.Glyphs {
		// RTL 结果的字形是视觉顺序，cluster 不单调，需要重新定位。
		if k >= len(g.members) || gl.Cluster < g.members[k].start || gl.Cluster >= g.members[k].end {
			k = memberAt(g.members, gl.Cluster)
		}
		if k < 0 {
			k = 0
			continue
		}
		parts[k].width += gl.XAdvance
		parts[k].glyphs = append(parts[k].glyphs, gl)
	}
	for j, m := range g.members {
		parts[j].ascent = res.Ascent
		parts[j].descent = res.Descent
		p.shaped[m.index] = parts[j]
	}
}

func memberAt(members []member, cluster int) int {
	for k, m := range members {
		if cluster >= m.start && cluster < m.end {
			return k
		}
	}
	return -1
}

// shape 带缓存地调用整形引擎。
func (s *Shaper) shape(text, fontID string, size float64) (ShapeResult, error) {
	key := cacheKey{kind: "shape", text: text, fontID: fontID, size: size}
	if v, ok := s.cache.Get(key); ok {
		return v.(ShapeResult), nil
	}
	runes := []rune(text)
	res, err := s.engine.ShapeText(runes, fontID, size, bidi.ParagraphDirection(text))
	if err != nil {
		return ShapeResult{}, err
	}
	s.cache.Add(key, res)
	return res, nil
}

type cacheKey struct {
	kind   string
	text   string
	fontID string
	size   float64
}

// fontReady 报告字体在登记表与整形引擎两侧是否都可用。
func (s *Shaper) fontReady(id string) bool {
	if !s.reg.IsReady(id) {
		return false
	}
	return s.engine == nil || s.engine.IsFontReady(id)
}

// requestFont 触发字体的后台加载，并记录本周期需要在字体就绪后重新布局。
func (p *Pass) requestFont(id string) {
	if p.pending[id] {
		return
	}
	p.pending[id] = true
	if p.s.reg.IsRegistered(id) {
		p.s.reg.LoadAsync(id)
	}
	p.s.logger.Debug("字体未就绪，使用基础测量", "font", id)
}

// Measure 返回元素 i 的度量。整形或字体不可用时退回基础测量，不会因资源未就绪而失败。
func (p *Pass) Measure(i int) (layout.Metrics, error) {
	if i < 0 || i >= len(p.elements) {
		return layout.Metrics{}, fmt.Errorf("shaper: 元素下标 %d 越界", i)
	}
	el := p.elements[i]
	switch el.Kind {
	case layout.KindImage, layout.KindTable:
		m := layout.Metrics{Height: el.Height, Ascent: el.Height}
		if el.Width != nil {
			m.Width = *el.Width
		}
		return m, nil
	case layout.KindPageBreak:
		return layout.Metrics{}, nil
	case layout.KindCheckbox:
		size := el.Style.Size
		if size <= 0 {
			size = 16
		}
		w := size
		if el.Width != nil {
			w = *el.Width
		}
		return layout.Metrics{Width: w, Height: size, Ascent: size}, nil
	}

	if sh, ok := p.shaped[i]; ok {
		return layout.Metrics{Width: sh.width, Height: sh.ascent + sh.descent, Ascent: sh.ascent, Descent: sh.descent}, nil
	}

	text := el.Value
	if el.Kind == layout.KindTab || el.IsLineBreak() {
		// 只取字体的纵向度量，宽度由分行器决定。
		text = " "
	}
	m := p.measureText(text, el.Style)
	if el.Kind == layout.KindTab || el.IsLineBreak() {
		m.Width = 0
	}
	if el.Width != nil {
		m.Width = *el.Width
	}
	return m, nil
}

// MeasureAll 依次测量全部元素，返回与 elements 平行的度量数组。
func (p *Pass) MeasureAll() ([]layout.Metrics, error) {
	out := make([]layout.Metrics, len(p.elements))
	for i := range p.elements {
		m, err := p.Measure(i)
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

func (p *Pass) measureText(text string, st layout.Style) layout.Metrics {
	id := p.fontID(st)
	key := cacheKey{kind: "measure", text: text, fontID: id, size: st.Size}
	if v, ok := p.s.cache.Get(key); ok {
		return v.(layout.Metrics)
	}

	ready := p.s.fontReady(id)
	if !ready {
		p.requestFont(id)
	}
	if ready && p.s.engine != nil {
		if res, err := p.s.engine.ShapeText([]rune(text), id, st.Size, bidi.ParagraphDirection(text)); err == nil {
			m := layout.Metrics{Width: res.TotalAdvance, Height: res.Ascent + res.Descent, Ascent: res.Ascent, Descent: res.Descent}
			p.s.cache.Add(key, m)
			return m
		}
	}
	if p.s.basic != nil {
		if m, err := p.s.basic.MeasureText(text, id, st.Size); err == nil {
			// 字体未就绪时的结果只在本周期有效，不写入缓存。
			if ready {
				p.s.cache.Add(key, m)
			}
			return m
		}
	}
	return estimateMetrics(text, st.Size)
}

// Glyphs 返回元素 i 在分组整形中分得的字形，绘制时直接使用以保证宽度一致。
func (p *Pass) Glyphs(i int) ([]Glyph, bool) {
	sh, ok := p.shaped[i]
	if !ok {
		return nil, false
	}
	return sh.glyphs, true
}

// NeedsRelayout 报告本周期是否因字体未就绪而使用了基础测量。
func (p *Pass) NeedsRelayout() bool { return len(p.pending) > 0 }

// PendingFonts 返回本周期等待加载的字体 id。
func (p *Pass) PendingFonts() []string {
	out := make([]string, 0, len(p.pending))
	for id := range p.pending {
		out = append(out, id)
	}
	return out
}

// Ready 等待本周期触发的全部字体加载完成。返回 nil 后应重新执行一次布局。
func (p *Pass) Ready(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for id := range p.pending {
		if !p.s.reg.IsRegistered(id) {
			continue
		}
		g.Go(func() error {
			return p.s.reg.Load(ctx, id)
		})
	}
	return g.Wait()
}
