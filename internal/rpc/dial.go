package rpc

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dial connects to an RPC endpoint. A non-empty token is sent as a bearer
// token.
func Dial(ctx context.Context, url, token string, opts Options, logger *zap.Logger) (*Peer, error) {
	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return NewPeer(conn, opts, logger), nil
}

// Backoff doubles a retry delay from Base up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Next(d time.Duration) time.Duration {
	if d <= 0 {
		return b.Base
	}
	return min(d*2, b.Max)
}

// Redial keeps a connection alive until ctx is done. Each new peer is passed
// to connected before it starts running; the returned release func is called
// once that peer has shut down, before the next dial.
func Redial(ctx context.Context, logger *zap.Logger, backoff Backoff,
	dial func(context.Context) (*Peer, error),
	connected func(*Peer) (release func()),
) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	var delay time.Duration
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		p, err := dial(ctx)
		if err != nil {
			delay = backoff.Next(delay)
			logger.Warn("dial failed", zap.Error(err), zap.Duration("retry_in", delay))
			if !sleep(ctx, delay) {
				return ctx.Err()
			}
			continue
		}
		delay = 0

		release := connected(p)
		err = p.Run(ctx)
		release()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !errors.Is(err, ErrConnectionClosed) {
			logger.Info("connection lost", zap.Error(err))
		}
		delay = backoff.Next(delay)
		if !sleep(ctx, delay) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
