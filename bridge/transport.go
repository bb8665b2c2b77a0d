package bridge

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed 表示传输通道已关闭。
var ErrClosed = errors.New("bridge: 通道已关闭")

// Transport 是一端的消息通道，每次 Send/Recv 传递一条完整的编码消息。
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Recv(ctx context.Context) ([]byte, error)
	Close() error
}

// pipeEnd 是进程内管道的一端。
type pipeEnd struct {
	in   <-chan []byte
	out  chan<- []byte
	done chan struct{}
	once *sync.Once
}

// NewPipe 创建一对相连的进程内传输端点，buffer 为每个方向的队列长度。
// 任一端 Close 后两端都不可再用。
func NewPipe(buffer int) (Transport, Transport) {
	if buffer < 0 {
		buffer = 0
	}
	a := make(chan []byte, buffer)
	b := make(chan []byte, buffer)
	done := make(chan struct{})
	once := &sync.Once{}
	return &pipeEnd{in: b, out: a, done: done, once: once},
		&pipeEnd{in: a, out: b, done: done, once: once}
}

func (p *pipeEnd) Send(ctx context.Context, data []byte) error {
	// 复制一份，避免两端共享底层数组。
	buf := append([]byte(nil), data...)
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.out <- buf:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Recv(ctx context.Context) ([]byte, error) {
	select {
	case data := <-p.in:
		return data, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
