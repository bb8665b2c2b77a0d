package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ByLCY/quire/layout"
)

// DefaultPingTimeout 是 Ping 在 ctx 没有截止时间时使用的超时。
const DefaultPingTimeout = 5 * time.Second

// DefaultQueueSize 是待发送消息队列的默认长度。
const DefaultQueueSize = 64

var (
	// ErrSuperseded 表示请求已被同一通道上的新请求取代，结果不会送达。
	ErrSuperseded = errors.New("bridge: 请求已被取代")
	// ErrTransport 表示传输通道失败，未完成的请求全部被拒绝，需要重新发起。
	ErrTransport = errors.New("bridge: 传输失败")
	// ErrPingTimeout 表示存活检查在超时前没有收到 PONG。
	ErrPingTimeout = errors.New("bridge: 存活检查超时")
	// ErrQueueFull 表示待发送队列已满。
	ErrQueueFull = errors.New("bridge: 发送队列已满")
)

// RemoteError 是 worker 返回的 LAYOUT_ERROR。
type RemoteError struct {
	RequestID uint64
	Kind      string
	Message   string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: 请求 %d 失败: %s", e.RequestID, e.Message)
}

// NotReady 报告错误是否为可推迟的续排状态过期。
func (e *RemoteError) NotReady() bool { return e.Kind == string(layout.KindNotReady) }

// Input 是一次布局请求的输入。
type Input struct {
	Elements []layout.Element
	Metrics  []layout.Metrics
	Options  layout.Options
}

// Output 是一次布局请求的结果。
type Output struct {
	RequestID   uint64
	Result      *layout.Result
	ComputeTime time.Duration
}

// Future 是尚未完成的布局请求。
type Future struct {
	id   uint64
	done chan struct{}
	once sync.Once
	out  *Output
	err  error
}

func newFuture(id uint64) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

// RequestID 返回请求 id。
func (f *Future) RequestID() uint64 { return f.id }

// Done 在请求完成（成功或失败）后关闭。
func (f *Future) Done() <-chan struct{} { return f.done }

// Wait 等待请求完成。ctx 取消只结束等待，不影响请求本身。
func (f *Future) Wait(ctx context.Context) (*Output, error) {
	select {
	case <-f.done:
		return f.out, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) resolve(out *Output, err error) {
	f.once.Do(func() {
		f.out, f.err = out, err
		close(f.done)
	})
}

type pending struct {
	channel string
	future  *Future
}

// Client 是调用方一侧的桥接端。Compute 与 Ping 可以在多个 goroutine 中调用。
type Client struct {
	t           Transport
	logger      *slog.Logger
	pingTimeout time.Duration

	nextID atomic.Uint64
	outbox chan []byte
	stop   chan struct{}

	mu      sync.Mutex
	pending map[uint64]pending
	latest  map[string]uint64
	pings   map[uint64]chan error
	err     error
}

// ClientOption 调整 Client 的配置。
type ClientOption func(*Client)

// WithPingTimeout 设置 Ping 的默认超时。
func WithPingTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.pingTimeout = d
		}
	}
}

// WithLogger 设置日志输出。
func WithLogger(l *slog.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithQueueSize 设置待发送队列长度。
func WithQueueSize(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.outbox = make(chan []byte, n)
		}
	}
}

// NewClient 创建客户端并启动收发 goroutine。
func NewClient(t Transport, opts ...ClientOption) *Client {
	c := &Client{
		t:           t,
		logger:      slog.Default(),
		pingTimeout: DefaultPingTimeout,
		outbox:      make(chan []byte, DefaultQueueSize),
		stop:        make(chan struct{}),
		pending:     map[uint64]pending{},
		latest:      map[string]uint64{},
		pings:       map[uint64]chan error{},
	}
	for _, opt := range opts {
		opt(c)
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

// Compute 在 channel 上发起布局请求并立即返回。同一 channel 上之前未完成的请求
// 以 ErrSuperseded 结束，其结果到达时被丢弃。
func (c *Client) Compute(channel string, in Input) *Future {
	id := c.nextID.Add(1)
	f := newFuture(id)
	opts := in.Options
	data, err := Encode(Message{
		Type:      TypeCompute,
		RequestID: id,
		Elements:  in.Elements,
		Metrics:   in.Metrics,
		Options:   &opts,
	})
	if err != nil {
		// JSON 无法表示 NaN 与 Inf，这类输入按 worker 的校验结果处理。
		var uv *json.UnsupportedValueError
		if errors.As(err, &uv) {
			err = &RemoteError{RequestID: id, Kind: string(layout.KindInput), Message: "输入包含非有限数值 " + uv.Str}
		}
		f.resolve(nil, err)
		return f
	}

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		f.resolve(nil, err)
		return f
	}
	if prev, ok := c.latest[channel]; ok {
		if p, ok := c.pending[prev]; ok {
			delete(c.pending, prev)
			p.future.resolve(nil, ErrSuperseded)
		}
	}
	c.latest[channel] = id
	c.pending[id] = pending{channel: channel, future: f}
	c.mu.Unlock()

	if !c.enqueue(data) {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		f.resolve(nil, ErrQueueFull)
	}
	return f
}

// Ping 检查 worker 是否存活。ctx 没有截止时间时使用默认超时。
func (c *Client) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.pingTimeout)
		defer cancel()
	}
	id := c.nextID.Add(1)
	data, err := Encode(Message{Type: TypePing, RequestID: id})
	if err != nil {
		return err
	}
	ch := make(chan error, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pings[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pings, id)
		c.mu.Unlock()
	}()

	if !c.enqueue(data) {
		return ErrQueueFull
	}
	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrPingTimeout, ctx.Err())
	}
}

// Close 关闭传输通道，未完成的请求以 ErrTransport 结束。
func (c *Client) Close() error {
	err := c.t.Close()
	c.fail(ErrClosed)
	return err
}

func (c *Client) enqueue(data []byte) bool {
	select {
	case c.outbox <- data:
		return true
	case <-c.stop:
		return false
	default:
		return false
	}
}

func (c *Client) writeLoop() {
	ctx := context.Background()
	for {
		select {
		case data := <-c.outbox:
			if err := c.t.Send(ctx, data); err != nil {
				c.fail(err)
				return
			}
		case <-c.stop:
			return
		}
	}
}

func (c *Client) readLoop() {
	ctx := context.Background()
	for {
		data, err := c.t.Recv(ctx)
		if err != nil {
			c.fail(err)
			return
		}
		msg, err := Decode(data)
		if err != nil {
			c.logger.Warn("忽略无法解析的响应", "err", err)
			continue
		}
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Type == TypePong {
		if ch, ok := c.pings[msg.RequestID]; ok {
			notify(ch, nil)
		}
		return
	}

	p, ok := c.pending[msg.RequestID]
	if !ok || c.latest[p.channel] != msg.RequestID {
		c.logger.Debug("丢弃过期响应", "requestId", msg.RequestID, "type", msg.Type)
		return
	}
	delete(c.pending, msg.RequestID)

	switch msg.Type {
	case TypeResult:
		p.future.resolve(&Output{
			RequestID:   msg.RequestID,
			Result:      msg.result(),
			ComputeTime: time.Duration(msg.ComputeTimeMs * float64(time.Millisecond)),
		}, nil)
	case TypeError:
		p.future.resolve(nil, &RemoteError{RequestID: msg.RequestID, Kind: msg.ErrorKind, Message: msg.Error})
	default:
		p.future.resolve(nil, fmt.Errorf("bridge: 请求 %d 收到意外的响应类型 %s", msg.RequestID, msg.Type))
	}
}

// fail 记录传输失败并拒绝全部未完成的请求，之后的请求立即失败。
func (c *Client) fail(cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return
	}
	c.err = fmt.Errorf("%w: %v", ErrTransport, cause)
	close(c.stop)
	for id, p := range c.pending {
		delete(c.pending, id)
		p.future.resolve(nil, c.err)
	}
	for _, ch := range c.pings {
		notify(ch, c.err)
	}
	c.logger.Debug("桥接通道失效", "err", cause)
}

func notify(ch chan error, err error) {
	select {
	case ch <- err:
	default:
	}
}
