package bridge

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ByLCY/quire/layout"
)

// ComputeFunc 执行一次布局计算，默认为 layout.Compute。
type ComputeFunc func(elements []layout.Element, metrics []layout.Metrics, opts layout.Options) (*layout.Result, error)

// Worker 在传输通道的另一端按到达顺序处理请求。
type Worker struct {
	t       Transport
	compute ComputeFunc
	logger  *slog.Logger
}

// NewWorker 创建 worker。logger 为空时使用 slog.Default()。
func NewWorker(t Transport, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{t: t, compute: layout.Compute, logger: logger}
}

// Serve 循环处理消息，直到 ctx 取消或通道关闭。通道关闭时返回 nil。
func (w *Worker) Serve(ctx context.Context) error {
	for {
		data, err := w.t.Recv(ctx)
		if err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := Decode(data)
		if err != nil {
			w.logger.Warn("忽略无法解析的消息", "err", err)
			continue
		}
		reply, ok := w.handle(msg)
		if !ok {
			continue
		}
		out, err := Encode(reply)
		if err != nil {
			out, _ = Encode(errorMessage(msg.RequestID, err))
		}
		if err := w.t.Send(ctx, out); err != nil {
			if errors.Is(err, ErrClosed) {
				return nil
			}
			return err
		}
	}
}

func (w *Worker) handle(msg Message) (Message, bool) {
	switch msg.Type {
	case TypePing:
		return Message{Type: TypePong, RequestID: msg.RequestID}, true
	case TypeCompute:
		opts := layout.DefaultOptions()
		if msg.Options != nil {
			opts = *msg.Options
		}
		start := time.Now()
		res, err := w.compute(msg.Elements, msg.Metrics, opts)
		if err != nil {
			w.logger.Debug("布局计算失败", "requestId", msg.RequestID, "err", err)
			return errorMessage(msg.RequestID, err), true
		}
		ms := float64(time.Since(start).Microseconds()) / 1000
		return resultMessage(msg.RequestID, res, ms), true
	default:
		w.logger.Warn("worker 收到不支持的消息", "type", msg.Type)
		return Message{}, false
	}
}
