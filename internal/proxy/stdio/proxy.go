package stdio

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tkingovr/roochguard/internal/jsonrpc"
	"github.com/tkingovr/roochguard/internal/proxy"
)

// maxLineBytes bounds a single newline-delimited message.
const maxLineBytes = 10 * 1024 * 1024

// Bridge reads newline-delimited JSON-RPC requests and writes one response
// line per request. A batch line is answered with one array line. Submissions go through the filter chain via the
// dispatcher; other methods are passed to the node.
type Bridge struct {
	dispatcher *proxy.Dispatcher
	logger     *zap.Logger
}

// NewBridge creates a stdio bridge.
func NewBridge(dispatcher *proxy.Dispatcher, logger *zap.Logger) *Bridge {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{dispatcher: dispatcher, logger: logger.Named("stdio")}
}

// Run processes requests from src until EOF or until ctx is done.
// Requests are handled one at a time, in order.
func (b *Bridge) Run(ctx context.Context, src io.Reader, dst io.Writer) error {
	lines := make(chan []byte)
	scanErr := make(chan error, 1)

	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(src)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return ctx.Err()
				}
			}
			if err := b.handleLine(ctx, line, dst); err != nil {
				return err
			}
		}
	}
}

func (b *Bridge) handleLine(ctx context.Context, line []byte, dst io.Writer) error {
	if len(line) == 0 {
		return nil
	}
	if proxy.IsBatch(line) {
		return b.handleBatch(ctx, line, dst)
	}

	msg, err := jsonrpc.Parse(line)
	if err != nil {
		b.logger.Warn("unparseable request", zap.Error(err))
		return b.writeLine(dst, jsonrpc.NewErrorResponse(nil, jsonrpc.ErrorCodeParse, err.Error()))
	}

	resp := b.dispatcher.Handle(ctx, msg)
	if msg.IsNotification() {
		return nil
	}
	if resp.Error != nil {
		b.logger.Info("request failed",
			zap.String("method", msg.Method),
			zap.Int("code", resp.Error.Code),
			zap.String("message", resp.Error.Message),
		)
	}
	return b.writeLine(dst, resp)
}

func (b *Bridge) handleBatch(ctx context.Context, line []byte, dst io.Writer) error {
	responses, invalid := b.dispatcher.HandleBatch(ctx, line)
	if invalid != nil {
		b.logger.Warn("invalid batch", zap.String("message", invalid.Error.Message))
		return b.writeLine(dst, invalid)
	}
	if len(responses) == 0 {
		return nil
	}
	return b.writeLine(dst, responses)
}

// writeLine writes v as a single JSON line.
func (b *Bridge) writeLine(w io.Writer, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding response: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
