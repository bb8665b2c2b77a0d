package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ByLCY/quire/bridge"
	"github.com/ByLCY/quire/document"
	"github.com/ByLCY/quire/dsl"
	"github.com/ByLCY/quire/fonts"
	"github.com/ByLCY/quire/layout"
	"github.com/ByLCY/quire/renderer"
	canvasrenderer "github.com/ByLCY/quire/renderer/canvas"
	"github.com/ByLCY/quire/shaper"
)

func main() {
	input := flag.String("in", "examples/demo.quire", "DSL 文件路径")
	configPath := flag.String("config", "", "配置文件路径，默认读取当前目录的 quire.toml")
	debug := flag.String("debug", "", "布局调试 JSON 输出路径")
	dataJSON := flag.String("data", "", "绑定到 DSL 的 JSON 数据")
	worker := flag.Bool("worker", false, "通过计算桥排版")
	stopAtPage := flag.Int("stop-at-page", -2, "首次排版只排到该页（从 0 开始），-1 表示不限制")
	paint := flag.Bool("paint", false, "把排版结果绘制到内存画布并统计绘制调用")
	flag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}
	if *worker {
		cfg.Bridge.Enabled = true
	}
	if *stopAtPage >= -1 {
		cfg.Layout.StopAtPage = *stopAtPage
	}

	var inputData any
	if *dataJSON != "" {
		if err := json.Unmarshal([]byte(*dataJSON), &inputData); err != nil {
			log.Fatalf("解析 data JSON 失败: %v", err)
		}
	}

	out, err := run(context.Background(), *input, inputData, cfg)
	if err != nil {
		log.Fatalf("排版失败: %v", err)
	}
	res := out.measured.Body.Result
	fmt.Printf("排版完成：%d 行，%d 页\n", len(res.Rows), res.PageCount)

	if *paint {
		n, err := paintDocument(out)
		if err != nil {
			log.Fatalf("绘制失败: %v", err)
		}
		fmt.Printf("已绘制 %d 次\n", n)
	}
	if *debug != "" {
		if err := writeDebug(out.doc, res, *debug); err != nil {
			log.Fatalf("%v", err)
		}
	}
}

// output 是一次运行的全部中间结果。
type output struct {
	doc      *document.Document
	measured *document.Measured
	reg      *fonts.Registry
	canvas   *canvasrenderer.Renderer
}

// run 串联解析、构建、测量与排版。
func run(ctx context.Context, inputPath string, data any, cfg Config) (*output, error) {
	logger := cfg.Logger()
	ast, err := dsl.ParseFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("解析 DSL 失败: %w", err)
	}

	baseDir := filepath.Dir(inputPath)
	fontDir := cfg.Fonts.Dir
	if fontDir == "" {
		fontDir = baseDir
	}
	reg := fonts.NewRegistry(fontDir, logger)
	doc, err := document.Build(ast, document.BuildOptions{Data: data, BaseDir: baseDir, Registry: reg})
	if err != nil {
		return nil, fmt.Errorf("构建文档失败: %w", err)
	}
	if len(doc.Unbound) > 0 {
		logger.Warn("数据中缺少占位符", "paths", doc.Unbound)
	}

	cr := canvasrenderer.NewRenderer(reg)
	s, err := shaper.New(shaper.Config{
		Registry:  reg,
		Engine:    shaper.NewHarfbuzzEngine(reg),
		Basic:     cr,
		CacheSize: cfg.Shaper.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	opts := cfg.Options()
	m, err := doc.Measure(s, opts)
	if err != nil {
		return nil, fmt.Errorf("测量失败: %w", err)
	}
	if cfg.Fonts.Preload && m.NeedsRelayout() {
		if err := m.Ready(ctx); err != nil {
			logger.Warn("部分字体加载失败，使用回退字体", "err", err)
		}
		s.BeginPass(false)
		if m, err = doc.Measure(s, opts); err != nil {
			return nil, fmt.Errorf("测量失败: %w", err)
		}
	}
	// Measure 会填入页面几何，StopAtPage 沿用配置。
	bodyOpts := m.Options
	bodyOpts.StopAtPage = opts.StopAtPage

	var res *layout.Result
	if cfg.Bridge.Enabled {
		res, err = computeRemote(ctx, doc.Body.Elements, m.Body.Metrics, bodyOpts, cfg, logger)
	} else {
		res, err = computeInline(ctx, doc.Body.Elements, m.Body.Metrics, bodyOpts, logger)
	}
	if err != nil {
		return nil, err
	}
	m.Body.Result = res
	m.Options = bodyOpts
	m.Options.StopAtPage = nil
	return &output{doc: doc, measured: m, reg: reg, canvas: cr}, nil
}

// computeInline 在当前 goroutine 排版；首次排版受 StopAtPage 限制时由 Session 补完。
func computeInline(ctx context.Context, els []layout.Element, ms []layout.Metrics, opts layout.Options, logger *slog.Logger) (*layout.Result, error) {
	sess := layout.NewSession(opts, logger)
	res, err := sess.Relayout(ctx, els, ms, 0)
	if err != nil {
		return nil, fmt.Errorf("正文排版失败: %w", err)
	}
	if !res.Complete {
		logger.Info("首屏排版完成", "pages", res.PageCount, "next", res.NextIndex)
		if res, err = sess.Idle(ctx, els, ms); err != nil {
			return nil, fmt.Errorf("正文续排失败: %w", err)
		}
	}
	return res, nil
}

// computeRemote 通过进程内管道把排版交给计算桥。
func computeRemote(ctx context.Context, els []layout.Element, ms []layout.Metrics, opts layout.Options, cfg Config, logger *slog.Logger) (*layout.Result, error) {
	workerEnd, clientEnd := bridge.NewPipe(cfg.Bridge.QueueSize)
	w := bridge.NewWorker(workerEnd, logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		if err := w.Serve(ctx); err != nil && ctx.Err() == nil {
			logger.Error("计算桥退出", "err", err)
		}
	}()

	client := bridge.NewClient(clientEnd,
		bridge.WithPingTimeout(cfg.PingTimeout()),
		bridge.WithQueueSize(cfg.Bridge.QueueSize),
		bridge.WithLogger(logger),
	)
	defer client.Close()
	if err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("计算桥未响应: %w", err)
	}

	out, err := client.Compute("body", bridge.Input{Elements: els, Metrics: ms, Options: opts}).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("正文排版失败: %w", err)
	}
	res := out.Result
	logger.Debug("计算桥返回", "requestId", out.RequestID, "elapsed", out.ComputeTime)
	if res.Complete {
		return res, nil
	}

	// 从未产出页的续排状态补完剩余部分。
	logger.Info("首屏排版完成", "pages", res.PageCount, "next", res.NextIndex)
	states := res.PageBoundaryStates
	st := states[len(states)-1]
	rest := opts
	rest.StopAtPage = nil
	rest.StartFromIndex = st.StartIndex
	rest.InitialLayoutState = &st
	rest.InitialRows = res.Rows
	out, err = client.Compute("body", bridge.Input{Elements: els, Metrics: ms, Options: rest}).Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("正文续排失败: %w", err)
	}
	full := out.Result
	full.PageBoundaryStates = append(append([]layout.PageBoundaryState(nil), states[:len(states)-1]...), full.PageBoundaryStates...)
	return full, nil
}

// paintDocument 把正文、页眉页脚与表格绘制到内存画布，返回绘制调用数。
func paintDocument(out *output) (int, error) {
	doc, m := out.doc, out.measured
	scale := m.Options.Scale
	p := canvasrenderer.NewPainter(out.canvas, doc.Page.Width*scale, doc.Page.Height*scale)

	pad := m.Options.TdPadding
	if pad == 0 {
		pad = document.DefaultCellPadding
	}

	body := m.Body.Result
	boxes := renderer.Position(doc.Body.Elements, body, m.Options)
	if err := paintFrame(p, doc.Body, m.Body, boxes, out.reg, scale, pad); err != nil {
		return 0, err
	}

	for page := 0; page < body.PageCount; page++ {
		if doc.Header != nil {
			opts := frameOptions(m.Options, doc.Page.Margin.Left, doc.Page.Margin.Top)
			if err := paintRepeated(p, doc.Header, m.Header, opts, page, out.reg, pad); err != nil {
				return 0, err
			}
		}
		if doc.Footer != nil {
			top := doc.Page.Height - doc.Page.Margin.Bottom - m.Footer.Height/scale
			opts := frameOptions(m.Options, doc.Page.Margin.Left, top)
			if err := paintRepeated(p, doc.Footer, m.Footer, opts, page, out.reg, pad); err != nil {
				return 0, err
			}
		}
	}
	return p.Count(), nil
}

func frameOptions(base layout.Options, x, y float64) layout.Options {
	opts := base
	opts.StartX = x
	opts.StartY = y
	opts.IsPagingMode = false
	return opts
}

// paintRepeated 把页眉或页脚绘制到指定页。
func paintRepeated(p *canvasrenderer.Painter, f *document.Frame, fl *document.FrameLayout, opts layout.Options, page int, reg *fonts.Registry, pad float64) error {
	boxes := renderer.Position(f.Elements, fl.Result, opts)
	for i := range boxes {
		boxes[i].PageNo = page
	}
	return paintFrame(p, f, fl, boxes, reg, opts.Scale, pad)
}

// paintFrame 绘制一个 Frame 的文本、图片与表格，表格单元格递归绘制。
func paintFrame(p *canvasrenderer.Painter, f *document.Frame, fl *document.FrameLayout, boxes []renderer.Box, reg *fonts.Registry, scale, pad float64) error {
	if err := renderer.Paint(p, f.Elements, boxes, fl.Pass(), reg, scale); err != nil {
		return err
	}
	for _, b := range boxes {
		if path, ok := f.Images[b.Index]; ok {
			if err := p.DrawImage(b, path); err != nil {
				return err
			}
		}
		t, ok := f.Tables[b.Index]
		if !ok {
			continue
		}
		tl := fl.Tables[b.Index]
		cols := scaled(tl.Columns, scale)
		rows := scaled(tl.RowHeights, scale)
		p.DrawTableGrid(b, cols, rows)
		y := b.Y
		for ri, row := range t.Rows {
			x := b.X
			for ci, cell := range row {
				cl := tl.Cells[ri][ci]
				opts := layout.Options{
					InnerWidth:  tl.Columns[ci],
					StartX:      x / scale,
					StartY:      y / scale,
					Scale:       scale,
					IsFromTable: true,
					TdPadding:   pad,
				}
				cellBoxes := renderer.Position(cell.Elements, cl.Result, opts)
				for i := range cellBoxes {
					cellBoxes[i].PageNo = b.PageNo
				}
				if err := paintFrame(p, cell, cl, cellBoxes, reg, scale, pad); err != nil {
					return err
				}
				x += cols[ci]
			}
			y += rows[ri]
		}
	}
	return nil
}

func scaled(vs []float64, scale float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = v * scale
	}
	return out
}

func writeDebug(doc *document.Document, res *layout.Result, debugPath string) error {
	if err := os.MkdirAll(filepath.Dir(debugPath), 0o755); err != nil {
		return fmt.Errorf("创建调试目录失败: %w", err)
	}
	runs := layout.AnalyzeRows(doc.Body.Elements, res)
	if err := layout.WriteDebugJSON(res, runs, debugPath); err != nil {
		return fmt.Errorf("输出调试 JSON 失败: %w", err)
	}
	return nil
}
