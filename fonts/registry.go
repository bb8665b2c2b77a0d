// Package fonts 管理文档用到的字体：登记来源、解析字体 id，并按需加载字体文件。
//
// Registry 由宿主创建后注入到测量与绘制组件中，同一字体的并发加载只会执行一次。
package fonts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-text/typesetting/font"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrUnknownFont 表示字体 id 或来源没有登记。
	ErrUnknownFont = errors.New("未登记的字体")
	// ErrNotReady 表示字体已登记但尚未加载完成。
	ErrNotReady = errors.New("字体尚未加载")
)

type variant struct {
	family string
	bold   bool
	italic bool
}

type entry struct {
	src  string
	data []byte
	face *font.Face
	err  error
}

// Registry 是字体登记表。零值不可用，请使用 NewRegistry。
type Registry struct {
	baseDir string
	logger  *slog.Logger

	mu       sync.RWMutex
	variants map[variant]string
	entries  map[string]*entry

	group singleflight.Group
}

// NewRegistry 创建登记表并登记内置字族 DefaultFamily。
// baseDir 用于解析相对路径的字体文件。
func NewRegistry(baseDir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Registry{
		baseDir:  baseDir,
		logger:   logger,
		variants: map[variant]string{},
		entries:  map[string]*entry{},
	}
	for _, bold := range []bool{false, true} {
		for _, italic := range []bool{false, true} {
			r.Register(DefaultFamily, bold, italic, builtinSource(bold, italic))
		}
	}
	return r
}

// ID 返回字族变体对应的字体 id。
func ID(family string, bold, italic bool) string {
	id := family
	if bold {
		id += "-bold"
	}
	if italic {
		id += "-italic"
	}
	return id
}

// Register 登记一个字体来源并返回其 id；src 为文件路径或 builtin:* 形式。
// 重复登记同一变体会替换来源并丢弃已加载的数据。
func (r *Registry) Register(family string, bold, italic bool, src string) string {
	id := ID(family, bold, italic)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[variant{family, bold, italic}] = id
	r.entries[id] = &entry{src: src}
	return id
}

// RegisterData 登记已在内存中的字体数据，解析成功后立即可用。
func (r *Registry) RegisterData(family string, bold, italic bool, data []byte) (string, error) {
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("解析字体 %s 失败: %w", family, err)
	}
	id := ID(family, bold, italic)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.variants[variant{family, bold, italic}] = id
	r.entries[id] = &entry{src: "memory:" + id, data: data, face: face}
	return id, nil
}

// Resolve 按 粗斜体 → 常规粗细 → 常规字形 → 常规体 的顺序查找字族变体，
// 字族未登记时返回 false。
func (r *Registry) Resolve(family string, bold, italic bool) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range []variant{
		{family, bold, italic},
		{family, false, italic},
		{family, bold, false},
		{family, false, false},
	} {
		if id, ok := r.variants[v]; ok {
			return id, true
		}
	}
	return "", false
}

// ResolveOrDefault 与 Resolve 相同，但字族未登记时退回内置字族。
func (r *Registry) ResolveOrDefault(family string, bold, italic bool) string {
	if id, ok := r.Resolve(family, bold, italic); ok {
		return id
	}
	id, _ := r.Resolve(DefaultFamily, bold, italic)
	return id
}

// IsReady 报告字体是否已加载。
func (r *Registry) IsReady(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && e.face != nil
}

// IsRegistered 报告字体 id 是否已登记。
func (r *Registry) IsRegistered(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[id]
	return ok
}

// Face 返回已加载字体的解析结果。
func (r *Registry) Face(id string) (*font.Face, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFont, id)
	case e.face == nil:
		return nil, fmt.Errorf("%w: %s", ErrNotReady, id)
	}
	return e.face, nil
}

// Data 返回已加载字体的原始字节，供绘制后端构建字体。
func (r *Registry) Data(id string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	switch {
	case !ok:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFont, id)
	case e.data == nil:
		return nil, fmt.Errorf("%w: %s", ErrNotReady, id)
	}
	return e.data, nil
}

// Load 读取并解析字体。并发调用共享同一次加载；ctx 取消只影响当前调用者的等待。
func (r *Registry) Load(ctx context.Context, id string) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	var src string
	var ready bool
	if ok {
		src, ready = e.src, e.face != nil
	}
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownFont, id)
	}
	if ready {
		return nil
	}

	ch := r.group.DoChan(id, func() (any, error) {
		return nil, r.load(id, src)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LoadAsync 在后台加载字体，返回的 channel 在加载结束后收到结果。
func (r *Registry) LoadAsync(id string) <-chan error {
	done := make(chan error, 1)
	go func() {
		err := r.Load(context.Background(), id)
		if err != nil {
			r.logger.Warn("字体加载失败", "font", id, "err", err)
		}
		done <- err
	}()
	return done
}

func (r *Registry) load(id, src string) error {
	data, err := r.read(src)
	if err != nil {
		r.setErr(id, err)
		return err
	}
	face, err := font.ParseTTF(bytes.NewReader(data))
	if err != nil {
		err = fmt.Errorf("解析字体 %s 失败: %w", src, err)
		r.setErr(id, err)
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.entries[id]; ok && cur.src == src {
		cur.data = data
		cur.face = face
		cur.err = nil
	}
	r.logger.Debug("字体已加载", "font", id, "src", src, "bytes", len(data))
	return nil
}

func (r *Registry) setErr(id string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.err = err
	}
}

// Err 返回字体最近一次加载失败的原因。
func (r *Registry) Err(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.entries[id]; ok {
		return e.err
	}
	return fmt.Errorf("%w: %s", ErrUnknownFont, id)
}

func (r *Registry) read(src string) ([]byte, error) {
	if strings.HasPrefix(src, BuiltinPrefix) {
		return Load(src)
	}
	path := src
	if !filepath.IsAbs(path) && r.baseDir != "" {
		path = filepath.Join(r.baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取字体文件 %s 失败: %w", path, err)
	}
	return data, nil
}
